// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package remote

import (
	"context"
	"errors"
	"io/fs"
)

// ErrOffline is returned by Offline for every call.
var ErrOffline = errors.New("remote execution is disabled")

// Transport is an Executor and Uploader holding connections that must be released.
type Transport interface {
	Executor
	Uploader
	Close() error
}

var (
	_ Transport = (*SSH)(nil)
	_ Transport = Offline{}
)

// Offline is a Transport that never contacts a host.
// It backs dry runs and plan display, where any remote call is a bug.
type Offline struct{}

// Run implements Executor.
func (Offline) Run(_ context.Context, hosts []string, _ ...string) ([]HostResult, error) {
	results := make([]HostResult, len(hosts))
	for i, h := range hosts {
		results[i] = HostResult{Host: h, ExitCode: -1, Err: ErrOffline}
	}

	return results, ErrOffline
}

// Upload implements Uploader.
func (Offline) Upload(context.Context, []string, []byte, string, fs.FileMode) error {
	return ErrOffline
}

// Close implements Transport.
func (Offline) Close() error {
	return nil
}
