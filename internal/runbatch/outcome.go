// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runbatch

import (
	"context"
	"fmt"
	"time"

	"github.com/matt-FFFFFF/rollbatch/internal/hostgroup"
)

const (
	// StatusSuccess is the status of a successful step.
	StatusSuccess = 0
	// StatusFailure is the generic failure status used for errors and panics.
	StatusFailure = 1
	// StatusConfigError is the exit code for configuration errors.
	StatusConfigError = 2
	// StatusMax is the highest status a run can report.
	// Codes 90-99 are reserved by the invoking runtime.
	StatusMax = 89
)

// Stage identifies where in a batch an outcome was produced.
type Stage int

const (
	// StageGroupEntry is the once-per-group hook.
	StageGroupEntry Stage = iota
	// StagePre holds the hooks run before the action.
	StagePre
	// StageAction is the action itself.
	StageAction
	// StagePost holds the hooks run after the action.
	StagePost
)

const (
	stageGroupEntryStr = "group-entry"
	stagePreStr        = "pre"
	stageActionStr     = "action"
	stagePostStr       = "post"
	stageUnknownStr    = "unknown"
)

// String returns the string representation of the Stage.
func (s Stage) String() string {
	switch s {
	case StageGroupEntry:
		return stageGroupEntryStr
	case StagePre:
		return stagePreStr
	case StageAction:
		return stageActionStr
	case StagePost:
		return stagePostStr
	default:
		return stageUnknownStr
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Outcome is the result of one hook, action or group-entry invocation.
// Only Status drives control flow; Message is kept for reporting.
type Outcome struct {
	Status     int           `json:"status"`
	Message    string        `json:"message,omitempty"`
	Stage      Stage         `json:"stage"`
	Label      string        `json:"label"`
	Group      string        `json:"group"`
	GroupIndex int           `json:"group_index"`
	BatchIndex int           `json:"batch_index"` // -1 for group-entry outcomes
	BatchCount int           `json:"batch_count"`
	Hosts      []string      `json:"hosts,omitempty"`
	Skipped    bool          `json:"skipped,omitempty"`
	Duration   time.Duration `json:"duration"`
	Err        error         `json:"-"`
}

// Failed reports whether the outcome counts as a failure.
func (o Outcome) Failed() bool {
	return !o.Skipped && o.Status != StatusSuccess
}

// Success returns a successful outcome with an optional message.
func Success(msg string) Outcome {
	return Outcome{Status: StatusSuccess, Message: msg}
}

// Failure returns a failing outcome with the given status and formatted message.
// A status of zero or less is replaced with StatusFailure.
func Failure(status int, format string, args ...any) Outcome {
	if status <= StatusSuccess {
		status = StatusFailure
	}

	return Outcome{Status: status, Message: fmt.Sprintf(format, args...)}
}

// Request is what a hook or action is invoked with.
type Request struct {
	Batch  hostgroup.Batch
	DryRun bool   // handlers must not change remote state when set
	Reason string // administrative reason, for logs and audit
}

// HookFunc is the signature shared by hooks and actions.
// A non-zero Outcome.Status or a non-nil error is a failure.
type HookFunc func(ctx context.Context, req Request) (Outcome, error)

// ActionFunc is the handler behind a named action.
type ActionFunc = HookFunc

// Hook is a labelled pre or post step.
type Hook struct {
	Label string
	Run   HookFunc
}

// Action is the resolved action for a run.
type Action struct {
	Name string
	Run  ActionFunc
}

// GroupEntryFunc runs once per group before its first batch.
type GroupEntryFunc func(ctx context.Context, group hostgroup.HostGroup, groupIndex, batchCount int) (Outcome, error)
