// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runbatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/matt-FFFFFF/rollbatch/internal/ctxlog"
	"github.com/matt-FFFFFF/rollbatch/internal/hostgroup"
	"github.com/matt-FFFFFF/rollbatch/internal/progress"
	"github.com/oklog/ulid/v2"
)

const (
	// DefaultBatchDefault is used when Config.BatchDefault is zero.
	DefaultBatchDefault = 1
	// DefaultBatchMax is used when Config.BatchMax is zero.
	DefaultBatchMax = 40
)

// Now is the clock used for timestamps and durations.
var Now = time.Now

// Sleeper blocks for d or until ctx is done, whichever is first.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the default Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Config is everything a run needs. It is read-only once passed to New.
type Config struct {
	BatchSize        int // 0 means BatchDefault
	BatchDefault     int
	BatchMax         int
	GraceSleep       time.Duration
	MinGraceSleep    time.Duration
	DryRun           bool
	Reason           string
	Action           Action
	GroupEntry       GroupEntryFunc // optional
	Pre              []Hook
	Post             []Hook
	PreFailurePolicy PreFailurePolicy
	MaxFailedBatches int // 0 means unlimited
	Reporter         progress.Reporter
	Sleeper          Sleeper
}

// EffectiveBatchSize returns BatchSize, or BatchDefault when BatchSize is zero.
func (c Config) EffectiveBatchSize() int {
	if c.BatchSize != 0 {
		return c.BatchSize
	}

	return c.BatchDefault
}

// Orchestrator runs the configured action over host groups.
type Orchestrator struct {
	cfg       Config
	drainCh   chan struct{}
	drainOnce sync.Once
}

// New validates cfg and returns an Orchestrator.
// Every problem found is returned together inside one ConfigurationError.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.BatchDefault == 0 {
		cfg.BatchDefault = DefaultBatchDefault
	}

	if cfg.BatchMax == 0 {
		cfg.BatchMax = DefaultBatchMax
	}

	if cfg.Sleeper == nil {
		cfg.Sleeper = Sleep
	}

	if cfg.Reporter == nil {
		cfg.Reporter = progress.NewNullReporter()
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &Orchestrator{
		cfg:     cfg,
		drainCh: make(chan struct{}),
	}, nil
}

func (c Config) validate() error {
	merr := newValidationErrors()

	if c.BatchMax < 1 {
		merr = multierror.Append(merr, fmt.Errorf("%w: batch_max %d", ErrInvalidBatchSize, c.BatchMax))
	}

	if c.BatchDefault < 1 || c.BatchDefault > c.BatchMax {
		merr = multierror.Append(merr, fmt.Errorf("%w: batch_default %d not in [1, %d]", ErrInvalidBatchSize, c.BatchDefault, c.BatchMax))
	}

	if size := c.EffectiveBatchSize(); size < 1 || size > c.BatchMax {
		merr = multierror.Append(merr, fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidBatchSize, size, c.BatchMax))
	}

	if c.GraceSleep < 0 || c.MinGraceSleep < 0 {
		merr = multierror.Append(merr, fmt.Errorf("%w: durations must not be negative", ErrGraceSleepTooShort))
	} else if c.GraceSleep < c.MinGraceSleep {
		merr = multierror.Append(merr, fmt.Errorf("%w: %s is below the minimum %s", ErrGraceSleepTooShort, c.GraceSleep, c.MinGraceSleep))
	}

	if c.MaxFailedBatches < 0 {
		merr = multierror.Append(merr, fmt.Errorf("%w: %d", ErrInvalidMaxFailed, c.MaxFailedBatches))
	}

	if c.PreFailurePolicy.String() == preFailureUnknownStr {
		merr = multierror.Append(merr, fmt.Errorf("%w: %d", ErrPreFailurePolicyUnknown, c.PreFailurePolicy))
	}

	if c.Action.Run == nil {
		merr = multierror.Append(merr, fmt.Errorf("%w: action %q", ErrMissingHandler, c.Action.Name))
	}

	for _, h := range c.Pre {
		if h.Run == nil {
			merr = multierror.Append(merr, fmt.Errorf("%w: pre hook %q", ErrMissingHandler, h.Label))
		}
	}

	for _, h := range c.Post {
		if h.Run == nil {
			merr = multierror.Append(merr, fmt.Errorf("%w: post hook %q", ErrMissingHandler, h.Label))
		}
	}

	if err := merr.ErrorOrNil(); err != nil {
		return NewConfigurationError(err)
	}

	return nil
}

// Config returns a copy of the validated configuration, defaults applied.
func (o *Orchestrator) Config() Config {
	return o.cfg
}

// Drain asks a running Run to stop before its next batch.
// The in-flight batch completes. It is safe to call from any goroutine, more than once.
func (o *Orchestrator) Drain() {
	o.drainOnce.Do(func() { close(o.drainCh) })
}

func (o *Orchestrator) stopping(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}

	select {
	case <-o.drainCh:
		return true
	default:
		return false
	}
}

// sleep waits the grace period. It returns false when woken by Drain or ctx.
func (o *Orchestrator) sleep(ctx context.Context) bool {
	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-o.drainCh:
			cancel()
		case <-sctx.Done():
		}
	}()

	if err := o.cfg.Sleeper(sctx, o.cfg.GraceSleep); err != nil {
		return false
	}

	return !o.stopping(ctx)
}

// stopReason says why the remaining batches are skipped.
type stopReason int

const (
	notStopped stopReason = iota
	stoppedInterrupted
	stoppedPreFailure
	stoppedMaxFailed
)

func (s stopReason) message() string {
	switch s {
	case stoppedInterrupted:
		return "skipped: run interrupted"
	case stoppedPreFailure:
		return "skipped: pre stage failed and on_pre_failure is abort-run"
	case stoppedMaxFailed:
		return "skipped: max failed batches reached"
	default:
		return ""
	}
}

type groupPlan struct {
	group   hostgroup.HostGroup
	batches []hostgroup.Batch
}

// run holds the state of one pass. Only the goroutine calling Run touches it.
type run struct {
	o         *Orchestrator
	outcomes  []Outcome
	processed int
	failed    int
	stop      stopReason
}

// Plan partitions groups with the effective batch size.
func (o *Orchestrator) Plan(groups []hostgroup.HostGroup) ([][]hostgroup.Batch, error) {
	plans, err := o.plan(groups)
	if err != nil {
		return nil, err
	}

	out := make([][]hostgroup.Batch, len(plans))
	for i, p := range plans {
		out[i] = p.batches
	}

	return out, nil
}

func (o *Orchestrator) plan(groups []hostgroup.HostGroup) ([]groupPlan, error) {
	plans := make([]groupPlan, len(groups))

	for gi, g := range groups {
		batches, err := hostgroup.Partition(g, o.cfg.EffectiveBatchSize())
		if err != nil {
			return nil, NewConfigurationError(err)
		}

		for i := range batches {
			batches[i].GroupIndex = gi
		}

		plans[gi] = groupPlan{group: g, batches: batches}
	}

	return plans, nil
}

// Run processes every batch of every group in order and returns the aggregated result.
// Cancelling ctx or calling Drain stops the run before the next batch;
// outcomes recorded so far are kept and the rest are recorded as skipped.
func (o *Orchestrator) Run(ctx context.Context, groups []hostgroup.HostGroup) *RunResult {
	start := Now()
	runID := ulid.Make().String()

	ctx = ctxlog.With(ctx, "run_id", runID, "action", o.cfg.Action.Name)

	r := &run{o: o}

	plans, err := o.plan(groups)
	if err != nil {
		// unreachable after New validated the batch size
		ctxlog.Error(ctx, "planning failed", "error", err)

		res := Aggregate(nil)
		res.Status = StatusConfigError
		res.finish(runID, o.cfg, start, Now(), false)

		return res
	}

	total := 0
	for _, p := range plans {
		total += len(p.batches)
	}

	ctxlog.Info(ctx, "run started",
		"groups", len(plans),
		"batches", total,
		"batch_size", o.cfg.EffectiveBatchSize(),
		"dry_run", o.cfg.DryRun,
		"reason", o.cfg.Reason,
	)
	o.report(progress.Event{Type: progress.EventRunStarted, BatchIndex: -1, BatchCount: total, Message: o.cfg.Action.Name})

	for gi, p := range plans {
		r.runGroup(ctx, gi, p)
	}

	res := Aggregate(r.outcomes)
	res.finish(runID, o.cfg, start, Now(), r.stop == stoppedInterrupted)

	ctxlog.Info(ctx, "run completed", "status", res.Status, "interrupted", res.Interrupted, "duration", res.Duration().String())
	o.report(progress.Event{Type: progress.EventRunCompleted, BatchIndex: -1, Status: res.Status, Duration: res.Duration()})

	return res
}

func (r *run) runGroup(ctx context.Context, gi int, p groupPlan) {
	o := r.o
	gctx := ctxlog.With(ctx, "group", p.group.Name())

	if len(p.batches) > 0 {
		r.pause(ctx, gctx, p.batches[0])
	} else if r.stop == notStopped && o.stopping(ctx) {
		r.stop = stoppedInterrupted
	}

	if r.stop != notStopped {
		r.skipBatches(p.batches, r.stop.message(), r.stop.cause())
		return
	}

	if o.cfg.GroupEntry != nil {
		out := o.enterGroup(gctx, gi, p)
		r.outcomes = append(r.outcomes, out)

		if out.Failed() {
			ctxlog.Error(gctx, "group entry failed, skipping group", "status", out.Status, "message", out.Message)
			o.report(progress.Event{
				Type: progress.EventGroupSkipped, Group: p.group.Name(), GroupIndex: gi, BatchIndex: -1,
				BatchCount: len(p.batches), Status: out.Status, Message: out.Message,
			})
			r.skipBatches(p.batches, "skipped: group entry failed", ErrGroupEntryFailure)

			return
		}
	}

	ctxlog.Debug(gctx, "group entered", "batches", len(p.batches))
	o.report(progress.Event{
		Type: progress.EventGroupEntered, Group: p.group.Name(), GroupIndex: gi, BatchIndex: -1,
		BatchCount: len(p.batches), Hosts: p.group.Hosts(),
	})

	for i, b := range p.batches {
		if i > 0 {
			r.pause(ctx, gctx, b)
		} else if r.stop == notStopped && o.stopping(ctx) {
			r.stop = stoppedInterrupted
		}

		if r.stop != notStopped {
			r.skipBatches(p.batches[i:], r.stop.message(), r.stop.cause())
			return
		}

		r.processed++
		batchFailed, preFailed := r.runBatch(gctx, b)

		if batchFailed {
			r.failed++
		}

		if preFailed && o.cfg.PreFailurePolicy == PreFailureAbortRun {
			ctxlog.Error(gctx, "pre stage failed, aborting run", "batch", b.Index)
			r.stop = stoppedPreFailure
		}

		if o.cfg.MaxFailedBatches > 0 && r.failed >= o.cfg.MaxFailedBatches && r.stop == notStopped {
			ctxlog.Error(gctx, "too many failed batches, aborting run", "failed", r.failed, "max_failed", o.cfg.MaxFailedBatches)
			r.stop = stoppedMaxFailed
		}
	}
}

// pause waits the grace period ahead of batch b, unless nothing has been processed yet.
// The first batch of a group is waited for before the group is entered.
func (r *run) pause(ctx, gctx context.Context, b hostgroup.Batch) {
	o := r.o

	if r.stop == notStopped && o.stopping(ctx) {
		r.stop = stoppedInterrupted
	}

	if r.stop != notStopped || r.processed == 0 {
		return
	}

	ctxlog.Info(gctx, "sleeping before next batch", "grace_sleep", o.cfg.GraceSleep.String())
	o.report(progress.Event{
		Type: progress.EventSleeping, Group: b.Group, GroupIndex: b.GroupIndex, BatchIndex: b.Index,
		BatchCount: b.Count, Duration: o.cfg.GraceSleep,
	})

	if !o.sleep(ctx) {
		r.stop = stoppedInterrupted
	}
}

func (s stopReason) cause() error {
	if s == stoppedInterrupted {
		return ErrInterrupted
	}

	return nil
}

func (o *Orchestrator) enterGroup(ctx context.Context, gi int, p groupPlan) (out Outcome) {
	start := Now()
	label := "group entry"

	defer func() {
		if rec := recover(); rec != nil {
			perr := NewErrPanic(rec)
			out = Outcome{Status: StatusFailure, Message: perr.Error(), Err: errors.Join(ErrGroupEntryFailure, perr)}
		}

		out.Stage = StageGroupEntry
		out.Label = label
		out.Group = p.group.Name()
		out.GroupIndex = gi
		out.BatchIndex = -1
		out.BatchCount = len(p.batches)
		out.Hosts = p.group.Hosts()
		out.Duration = Now().Sub(start)
	}()

	res, err := o.cfg.GroupEntry(ctx, p.group, gi, len(p.batches))
	if err != nil {
		status := res.Status
		if status <= StatusSuccess {
			status = StatusFailure
		}

		return Outcome{Status: status, Message: err.Error(), Err: errors.Join(ErrGroupEntryFailure, err)}
	}

	if res.Status != StatusSuccess && res.Err == nil {
		res.Err = fmt.Errorf("%w: status %d: %s", ErrGroupEntryFailure, res.Status, res.Message)
	}

	res.Skipped = false

	return res
}

// runBatch runs pre, action and post for one batch.
func (r *run) runBatch(ctx context.Context, b hostgroup.Batch) (failed, preFailed bool) {
	o := r.o
	bctx := ctxlog.With(ctx, "batch", b.Index+1, "batches", b.Count)
	req := Request{Batch: b, DryRun: o.cfg.DryRun, Reason: o.cfg.Reason}

	ctxlog.Info(bctx, "batch started", "hosts", b.Hosts)
	o.report(progress.Event{
		Type: progress.EventBatchStarted, Group: b.Group, GroupIndex: b.GroupIndex, BatchIndex: b.Index,
		BatchCount: b.Count, Hosts: b.Hosts,
	})

	start := Now()
	first := len(r.outcomes)

	pre := RunStage(bctx, StagePre, o.cfg.Pre, req)
	r.record(pre...)

	if anyFailed(pre) {
		r.record(skippedOutcome(StageAction, o.cfg.Action.Name, req, "skipped: pre stage failed"))

		for _, h := range o.cfg.Post {
			r.record(skippedOutcome(StagePost, h.Label, req, "skipped: pre stage failed"))
		}

		r.batchDone(bctx, b, first, start)

		return true, true
	}

	act := invoke(bctx, StageAction, o.cfg.Action.Name, o.cfg.Action.Run, req)
	if act.Failed() {
		ctxlog.Error(bctx, "action failed", "status", act.Status, "message", act.Message)
	}

	r.record(act)

	post := RunStage(bctx, StagePost, o.cfg.Post, req)
	r.record(post...)

	return r.batchDone(bctx, b, first, start), false
}

func (r *run) batchDone(ctx context.Context, b hostgroup.Batch, first int, start time.Time) bool {
	status := StatusSuccess
	failed := false

	for _, out := range r.outcomes[first:] {
		if out.Failed() {
			failed = true
			status = max(status, clampStatus(out.Status))
		}
	}

	ctxlog.Info(ctx, "batch completed", "status", status)
	r.o.report(progress.Event{
		Type: progress.EventBatchCompleted, Group: b.Group, GroupIndex: b.GroupIndex, BatchIndex: b.Index,
		BatchCount: b.Count, Hosts: b.Hosts, Status: status, Duration: Now().Sub(start),
	})

	return failed
}

func (r *run) record(outs ...Outcome) {
	for _, out := range outs {
		if out.Stage == StagePre || out.Stage == StagePost || out.Stage == StageAction {
			r.o.report(progress.Event{
				Type: progress.EventStageCompleted, Group: out.Group, GroupIndex: out.GroupIndex,
				BatchIndex: out.BatchIndex, BatchCount: out.BatchCount, Stage: out.Stage.String(),
				Label: out.Label, Hosts: out.Hosts, Status: out.Status, Message: out.Message, Skipped: out.Skipped,
				Duration: out.Duration,
			})
		}

		r.outcomes = append(r.outcomes, out)
	}
}

// skipBatches records one skipped action outcome per batch.
func (r *run) skipBatches(batches []hostgroup.Batch, reason string, cause error) {
	for _, b := range batches {
		out := skippedOutcome(StageAction, r.o.cfg.Action.Name, Request{Batch: b}, reason)
		out.Err = cause
		r.outcomes = append(r.outcomes, out)

		r.o.report(progress.Event{
			Type: progress.EventBatchSkipped, Group: b.Group, GroupIndex: b.GroupIndex, BatchIndex: b.Index,
			BatchCount: b.Count, Hosts: b.Hosts, Message: reason,
		})
	}
}

func (o *Orchestrator) report(e progress.Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = Now()
	}

	o.cfg.Reporter.Report(e)
}
