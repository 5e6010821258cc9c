// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runbatch

import (
	"slices"
	"time"
)

// RunResult is the aggregate of one run.
// Status is the worst outcome status, clamped into [0, StatusMax], and is the process exit code.
type RunResult struct {
	RunID       string    `json:"run_id,omitempty"`
	Action      string    `json:"action,omitempty"`
	DryRun      bool      `json:"dry_run"`
	Status      int       `json:"status"`
	Interrupted bool      `json:"interrupted"`
	Started     time.Time `json:"started"`
	Finished    time.Time `json:"finished"`
	Outcomes    []Outcome `json:"outcomes"`
	Succeeded   []string  `json:"succeeded_hosts"`
	Failed      []string  `json:"failed_hosts"`
	Untouched   []string  `json:"untouched_hosts"`
}

// Aggregate reduces outcomes into a RunResult. Only status codes are inspected.
// Negative statuses count as StatusFailure; statuses above StatusMax become StatusMax.
// No outcomes is success.
func Aggregate(outcomes []Outcome) *RunResult {
	res := &RunResult{
		Status:   StatusSuccess,
		Outcomes: slices.Clone(outcomes),
	}

	for _, o := range outcomes {
		if o.Skipped {
			continue
		}

		res.Status = max(res.Status, clampStatus(o.Status))
	}

	res.Succeeded, res.Failed, res.Untouched = hostSets(outcomes)

	return res
}

func clampStatus(s int) int {
	switch {
	case s < 0:
		return StatusFailure
	case s > StatusMax:
		return StatusMax
	default:
		return s
	}
}

type batchKey struct {
	group int
	batch int
}

// hostSets splits hosts by what happened to their batch.
// A batch is touched when any pre, action or post step ran. A touched batch with a
// failing step puts its hosts in failed, otherwise in succeeded. Everything else is untouched.
func hostSets(outcomes []Outcome) (succeeded, failed, untouched []string) {
	type state struct {
		hosts   []string
		touched bool
		failed  bool
	}

	var order []batchKey

	states := make(map[batchKey]*state)

	for _, o := range outcomes {
		if o.Stage == StageGroupEntry {
			continue
		}

		k := batchKey{group: o.GroupIndex, batch: o.BatchIndex}

		st, ok := states[k]
		if !ok {
			st = &state{hosts: o.Hosts}
			states[k] = st
			order = append(order, k)
		}

		if o.Skipped {
			continue
		}

		st.touched = true

		if o.Failed() {
			st.failed = true
		}
	}

	succeeded, failed, untouched = []string{}, []string{}, []string{}

	for _, k := range order {
		st := states[k]

		switch {
		case st.touched && st.failed:
			failed = append(failed, st.hosts...)
		case st.touched:
			succeeded = append(succeeded, st.hosts...)
		default:
			untouched = append(untouched, st.hosts...)
		}
	}

	return succeeded, failed, untouched
}

func (r *RunResult) finish(runID string, cfg Config, start, end time.Time, interrupted bool) {
	r.RunID = runID
	r.Action = cfg.Action.Name
	r.DryRun = cfg.DryRun
	r.Started = start
	r.Finished = end
	r.Interrupted = interrupted

	if interrupted && r.Status == StatusSuccess {
		r.Status = StatusFailure
	}
}

// Duration is the wall time of the run.
func (r *RunResult) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// HasFailure reports whether any outcome failed.
func (r *RunResult) HasFailure() bool {
	return slices.ContainsFunc(r.Outcomes, Outcome.Failed)
}

// Skipped returns the number of skipped outcomes.
func (r *RunResult) Skipped() int {
	n := 0

	for _, o := range r.Outcomes {
		if o.Skipped {
			n++
		}
	}

	return n
}
