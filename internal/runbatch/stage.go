// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runbatch

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/matt-FFFFFF/rollbatch/internal/ctxlog"
)

// RunStage runs hooks in order against req and returns one outcome per hook.
// Errors and panics become StatusFailure outcomes. After the first failing hook
// the remaining hooks are recorded as skipped.
func RunStage(ctx context.Context, stage Stage, hooks []Hook, req Request) []Outcome {
	if len(hooks) == 0 {
		return nil
	}

	outcomes := make([]Outcome, 0, len(hooks))
	failed := false

	for _, h := range hooks {
		if failed {
			outcomes = append(outcomes, skippedOutcome(stage, h.Label, req, "previous hook failed"))
			continue
		}

		o := invoke(ctx, stage, h.Label, h.Run, req)
		if o.Failed() {
			failed = true

			ctxlog.Warn(ctx, "hook failed",
				"stage", stage.String(),
				"hook", h.Label,
				"status", o.Status,
				"message", o.Message,
			)
		}

		outcomes = append(outcomes, o)
	}

	return outcomes
}

// invoke calls fn, converting errors and panics into failing outcomes,
// and stamps the outcome with its stage, label and batch coordinates.
func invoke(ctx context.Context, stage Stage, label string, fn HookFunc, req Request) (out Outcome) {
	start := Now()

	defer func() {
		if r := recover(); r != nil {
			perr := NewErrPanic(r)
			out = Outcome{
				Status:  StatusFailure,
				Message: perr.Error(),
				Err:     errors.Join(ErrStageFailure, perr),
			}
		}

		out = stamp(out, stage, label, req)
		out.Duration = Now().Sub(start)
	}()

	if fn == nil {
		return Outcome{
			Status:  StatusFailure,
			Message: ErrMissingHandler.Error(),
			Err:     errors.Join(ErrStageFailure, ErrMissingHandler),
		}
	}

	o, err := fn(ctx, req)
	if err != nil {
		status := o.Status
		if status <= StatusSuccess {
			status = StatusFailure
		}

		return Outcome{
			Status:  status,
			Message: err.Error(),
			Err:     errors.Join(ErrStageFailure, err),
		}
	}

	if o.Status != StatusSuccess && o.Err == nil {
		o.Err = fmt.Errorf("%w: status %d: %s", ErrStageFailure, o.Status, o.Message)
	}

	o.Skipped = false

	return o
}

func stamp(o Outcome, stage Stage, label string, req Request) Outcome {
	o.Stage = stage
	o.Label = label
	o.Group = req.Batch.Group
	o.GroupIndex = req.Batch.GroupIndex
	o.BatchIndex = req.Batch.Index
	o.BatchCount = req.Batch.Count
	o.Hosts = slices.Clone(req.Batch.Hosts)

	return o
}

func skippedOutcome(stage Stage, label string, req Request, reason string) Outcome {
	return stamp(Outcome{Status: StatusSuccess, Message: reason, Skipped: true}, stage, label, req)
}

func anyFailed(outcomes []Outcome) bool {
	return slices.ContainsFunc(outcomes, Outcome.Failed)
}
