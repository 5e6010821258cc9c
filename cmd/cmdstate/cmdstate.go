// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package cmdstate carries process level state from main into the subcommands.
// Signal handling starts before any subcommand knows which run it will start,
// so the stop request travels through the context.
package cmdstate

import (
	"context"
	"sync"

	"github.com/matt-FFFFFF/rollbatch/internal/runbatch"
	"github.com/urfave/cli/v3"
)

type drainerKey struct{}

// Drainer forwards an operator stop request to the current run.
// A request that arrives before a run registers is delivered on registration.
type Drainer struct {
	mu      sync.Mutex
	fn      func()
	pending bool
}

// Drain stops the registered run, or remembers the request until one registers.
func (d *Drainer) Drain() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.fn != nil {
		d.fn()
		return
	}

	d.pending = true
}

// Set registers fn as the stop function of the current run. A nil fn unregisters.
func (d *Drainer) Set(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.fn = fn

	if d.pending && fn != nil {
		fn()
	}
}

// WithDrainer returns a copy of ctx carrying d.
func WithDrainer(ctx context.Context, d *Drainer) context.Context {
	return context.WithValue(ctx, drainerKey{}, d)
}

// DrainerFrom returns the drainer on ctx, or an unconnected one when there is none.
func DrainerFrom(ctx context.Context) *Drainer {
	if d, ok := ctx.Value(drainerKey{}).(*Drainer); ok && d != nil {
		return d
	}

	return &Drainer{}
}

// Exit converts err into a cli exit error.
// Configuration errors exit with runbatch.StatusConfigError, everything else with runbatch.StatusFailure.
func Exit(err error) error {
	if err == nil {
		return nil
	}

	code := runbatch.StatusFailure
	if runbatch.IsConfigurationError(err) {
		code = runbatch.StatusConfigError
	}

	return cli.Exit(err.Error(), code)
}
