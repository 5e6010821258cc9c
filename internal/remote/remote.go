// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package remote

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

var (
	// ErrNoCommand is returned when Run is called without commands.
	ErrNoCommand = errors.New("no command given")
	// ErrCommandFailed is wrapped by HostError when a command exits non-zero.
	ErrCommandFailed = errors.New("command exited with non-zero status")
)

// Executor runs commands on a set of hosts.
// The returned slice has one entry per host, in the order of hosts.
// The error is non-nil when any host failed and wraps one *HostError per failed host.
type Executor interface {
	Run(ctx context.Context, hosts []string, commands ...string) ([]HostResult, error)
}

// Uploader copies content to path on every host.
type Uploader interface {
	Upload(ctx context.Context, hosts []string, content []byte, path string, mode fs.FileMode) error
}

// HostResult holds the result of executing commands on a single host.
type HostResult struct {
	Host     string
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
	Err      error // connection, timeout or non-zero exit
}

// OK reports whether every command succeeded on the host.
func (r HostResult) OK() bool {
	return r.Err == nil && r.ExitCode == 0
}

// HostError describes the failure of one host.
type HostError struct {
	Host     string
	ExitCode int
	Stderr   string
	Err      error
}

// Error implements the error interface.
func (e *HostError) Error() string {
	sb := strings.Builder{}
	sb.WriteString(e.Host)
	sb.WriteString(": ")
	sb.WriteString(e.Err.Error())

	if e.ExitCode > 0 {
		fmt.Fprintf(&sb, " (exit code %d)", e.ExitCode)
	}

	if s := strings.TrimSpace(e.Stderr); s != "" {
		sb.WriteString(": ")
		sb.WriteString(firstLine(s))
	}

	return sb.String()
}

// Unwrap returns the wrapped error.
func (e *HostError) Unwrap() error {
	return e.Err
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

// Collect turns failed results into a single error, or nil when every host succeeded.
func Collect(results []HostResult) error {
	merr := &multierror.Error{ErrorFormat: hostErrorFormat}

	for _, r := range results {
		if r.OK() {
			continue
		}

		err := r.Err
		if err == nil {
			err = ErrCommandFailed
		}

		merr = multierror.Append(merr, &HostError{
			Host:     r.Host,
			ExitCode: r.ExitCode,
			Stderr:   string(r.Stderr),
			Err:      err,
		})
	}

	return merr.ErrorOrNil()
}

func hostErrorFormat(es []error) string {
	if len(es) == 1 {
		return es[0].Error()
	}

	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}

	return fmt.Sprintf("%d hosts failed: %s", len(es), strings.Join(msgs, "; "))
}

// FailedHosts returns the hosts whose result is not OK, in order.
func FailedHosts(results []HostResult) []string {
	var out []string

	for _, r := range results {
		if !r.OK() {
			out = append(out, r.Host)
		}
	}

	return out
}

// ExitCode returns the highest exit code among results, or 1 when a host
// failed without an exit code.
func ExitCode(results []HostResult) int {
	code := 0

	for _, r := range results {
		switch {
		case r.ExitCode > code:
			code = r.ExitCode
		case !r.OK() && code == 0:
			code = 1
		}
	}

	return code
}
