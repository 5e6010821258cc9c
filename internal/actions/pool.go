// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package actions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/matt-FFFFFF/rollbatch/internal/ctxlog"
	"github.com/matt-FFFFFF/rollbatch/internal/remote"
	"github.com/matt-FFFFFF/rollbatch/internal/runbatch"
)

// Defaults for load-balanced services.
const (
	DefaultDepoolThreshold = 1
	DefaultDepoolSleep     = 5 * time.Second
	DefaultRepoolSleep     = 5 * time.Second
)

var (
	// ErrDepoolThreshold is returned when a batch would depool more hosts than allowed.
	ErrDepoolThreshold = errors.New("batch size is greater than the depool threshold")
	// ErrDepoolCommand is returned when a pool is configured without depool or repool command.
	ErrDepoolCommand = errors.New("pool needs both a depool and a repool command")
	// ErrStillDepooled is wrapped by failures that leave hosts out of the pool.
	ErrStillDepooled = errors.New("hosts may still be depooled")
)

// Pool takes the batch out of a load balancer around the action.
type Pool struct {
	DepoolCommand   string
	RepoolCommand   string
	DepoolSleep     time.Duration
	RepoolSleep     time.Duration
	DepoolThreshold int
	Sleeper         runbatch.Sleeper
}

func (p *Pool) defaults() {
	if p.DepoolThreshold <= 0 {
		p.DepoolThreshold = DefaultDepoolThreshold
	}

	if p.Sleeper == nil {
		p.Sleeper = runbatch.Sleep
	}
}

// Validate checks the pool against the effective batch size.
// The returned error is a *runbatch.ConfigurationError.
func (p Pool) Validate(batchSize int) error {
	p.defaults()

	var errs []error

	if p.DepoolCommand == "" || p.RepoolCommand == "" {
		errs = append(errs, ErrDepoolCommand)
	}

	if batchSize > p.DepoolThreshold {
		errs = append(errs, fmt.Errorf("%w: batch size %d, threshold %d", ErrDepoolThreshold, batchSize, p.DepoolThreshold))
	}

	return runbatch.NewConfigurationError(errors.Join(errs...))
}

// Wrap returns an action that depools the batch, waits, runs action, waits and repools.
// If the action fails the hosts are left depooled for an operator to inspect.
func (p Pool) Wrap(exec remote.Executor, action runbatch.ActionFunc) runbatch.ActionFunc {
	p.defaults()

	return func(ctx context.Context, req runbatch.Request) (runbatch.Outcome, error) {
		hosts := req.Batch.Hosts

		if o, err := run(ctx, exec, req, hosts, p.DepoolCommand); err != nil {
			stillDepooled(ctx, hosts, err)
			return o, fmt.Errorf("depool: %w: %w", ErrStillDepooled, err)
		}

		if err := sleep(ctx, p.Sleeper, req.DryRun, "depool", p.DepoolSleep); err != nil {
			stillDepooled(ctx, hosts, err)
			return runbatch.Outcome{}, fmt.Errorf("%w: %w", ErrStillDepooled, err)
		}

		o, err := action(ctx, req)
		if err == nil && o.Status != runbatch.StatusSuccess {
			err = fmt.Errorf("status %d: %s", o.Status, o.Message)
		}

		if err != nil {
			stillDepooled(ctx, hosts, err)
			return o, fmt.Errorf("%w: %w", ErrStillDepooled, err)
		}

		if err := sleep(ctx, p.Sleeper, req.DryRun, "repool", p.RepoolSleep); err != nil {
			stillDepooled(ctx, hosts, err)
			return runbatch.Outcome{}, fmt.Errorf("%w: %w", ErrStillDepooled, err)
		}

		if ro, err := run(ctx, exec, req, hosts, p.RepoolCommand); err != nil {
			stillDepooled(ctx, hosts, err)
			return ro, fmt.Errorf("repool: %w: %w", ErrStillDepooled, err)
		}

		return o, nil
	}
}

func stillDepooled(ctx context.Context, hosts []string, err error) {
	ctxlog.Error(ctx, "unrecoverable error, the following hosts are still depooled",
		"hosts", hosts,
		"error", err.Error(),
	)
}
