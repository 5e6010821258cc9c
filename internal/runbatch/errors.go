// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runbatch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/matt-FFFFFF/rollbatch/internal/hostgroup"
)

var (
	// ErrInvalidBatchSize is returned when the batch size is outside [1, BatchMax].
	ErrInvalidBatchSize = hostgroup.ErrInvalidBatchSize
	// ErrActionNotDeclared is returned when the requested action is not in the valid actions.
	ErrActionNotDeclared = errors.New("action not declared in valid actions")
	// ErrMissingHandler is returned when a declared action or a hook has no handler.
	ErrMissingHandler = errors.New("no handler registered")
	// ErrGraceSleepTooShort is returned when the grace sleep is negative or below the minimum.
	ErrGraceSleepTooShort = errors.New("grace sleep too short")
	// ErrInvalidMaxFailed is returned when the max failed threshold is negative.
	ErrInvalidMaxFailed = errors.New("max failed batches must not be negative")
	// ErrStageFailure marks an outcome produced by a failing hook or action.
	ErrStageFailure = errors.New("stage failure")
	// ErrGroupEntryFailure marks an outcome produced by a failing group-entry hook.
	ErrGroupEntryFailure = errors.New("group entry failure")
	// ErrInterrupted marks outcomes skipped because the run was interrupted.
	ErrInterrupted = errors.New("run interrupted")
)

// ConfigurationError is returned for anything that must be fixed before a host is touched.
type ConfigurationError struct {
	Err error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Err.Error()
}

// Unwrap returns the wrapped error.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NewConfigurationError wraps err, which is usually one of the package sentinels.
func NewConfigurationError(err error) error {
	if err == nil {
		return nil
	}

	return &ConfigurationError{Err: err}
}

// IsConfigurationError reports whether err has a ConfigurationError in its chain.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError

	return errors.As(err, &ce)
}

// ErrPanic is the error recorded when a hook or action panics.
// It is constructed with the value that caused the panic.
type ErrPanic struct {
	v any
}

// Error implements the error interface for ErrPanic.
func (e *ErrPanic) Error() string {
	prefix := "panic:"

	switch x := e.v.(type) {
	case string:
		return fmt.Sprintf("%s %s", prefix, x)
	case error:
		return fmt.Sprintf("%s %s", prefix, x.Error())
	default:
		return fmt.Sprintf("%s %v", prefix, x)
	}
}

// NewErrPanic creates a new ErrPanic with the given value.
func NewErrPanic(v any) error {
	return &ErrPanic{v: v}
}

// listFormat renders accumulated errors on a single line.
func listFormat(es []error) string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}

	return strings.Join(msgs, "; ")
}

func newValidationErrors() *multierror.Error {
	return &multierror.Error{ErrorFormat: listFormat}
}
