// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runbatch

import (
	"errors"
	"fmt"
)

// PreFailurePolicy decides how far a failing pre stage reaches.
type PreFailurePolicy int

const (
	// PreFailureAbortBatch skips the action and post hooks of the failing batch only.
	PreFailureAbortBatch PreFailurePolicy = iota
	// PreFailureAbortRun also skips every remaining batch of the run.
	PreFailureAbortRun
)

const (
	preFailureAbortBatchStr = "abort-batch"
	preFailureAbortRunStr   = "abort-run"
	preFailureUnknownStr    = "unknown"
)

// ErrPreFailurePolicyUnknown is returned when an unknown PreFailurePolicy value is encountered.
var ErrPreFailurePolicyUnknown = errors.New("unknown pre-failure policy")

// String returns the string representation of the PreFailurePolicy.
func (p PreFailurePolicy) String() string {
	switch p {
	case PreFailureAbortBatch:
		return preFailureAbortBatchStr
	case PreFailureAbortRun:
		return preFailureAbortRunStr
	default:
		return preFailureUnknownStr
	}
}

// NewPreFailurePolicy creates a PreFailurePolicy from a string. The empty string is abort-batch.
func NewPreFailurePolicy(s string) (PreFailurePolicy, error) {
	switch s {
	case "", preFailureAbortBatchStr:
		return PreFailureAbortBatch, nil
	case preFailureAbortRunStr:
		return PreFailureAbortRun, nil
	default:
		return PreFailurePolicy(-1), fmt.Errorf("%w: %q", ErrPreFailurePolicyUnknown, s)
	}
}
