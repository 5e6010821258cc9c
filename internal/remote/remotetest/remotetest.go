// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package remotetest provides a scriptable in-memory remote.Executor and remote.Uploader.
package remotetest

import (
	"context"
	"io/fs"
	"slices"
	"strings"
	"sync"

	"github.com/matt-FFFFFF/rollbatch/internal/remote"
)

var (
	_ remote.Executor = (*Executor)(nil)
	_ remote.Uploader = (*Executor)(nil)
)

// Call is one recorded Run or Upload.
type Call struct {
	Hosts    []string
	Commands []string
	Upload   *Upload
}

// Upload is the payload of a recorded Upload call.
type Upload struct {
	Content []byte
	Path    string
	Mode    fs.FileMode
}

// Response is what a host answers to a command.
type Response struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
}

// Responder decides the response of host to command. Returning ok=false means success with no output.
type Responder func(host, command string) (Response, bool)

// Executor records calls and answers them with its Responder.
type Executor struct {
	mu        sync.Mutex
	calls     []Call
	Responder Responder
	UploadErr func(host, path string) error
	closed    bool
}

var _ remote.Transport = (*Executor)(nil)

// New returns an Executor whose commands all succeed.
func New() *Executor {
	return &Executor{}
}

// FailOn returns a Responder that fails commands containing substr on the given hosts,
// or on every host when hosts is empty.
func FailOn(substr string, code int, hosts ...string) Responder {
	return func(host, command string) (Response, bool) {
		if !strings.Contains(command, substr) {
			return Response{}, false
		}

		if len(hosts) > 0 && !slices.Contains(hosts, host) {
			return Response{}, false
		}

		return Response{ExitCode: code, Stderr: "failed: " + command}, true
	}
}

// Run implements remote.Executor.
func (e *Executor) Run(ctx context.Context, hosts []string, commands ...string) ([]remote.HostResult, error) {
	if len(commands) == 0 {
		return nil, remote.ErrNoCommand
	}

	e.mu.Lock()
	e.calls = append(e.calls, Call{Hosts: slices.Clone(hosts), Commands: slices.Clone(commands)})
	responder := e.Responder
	e.mu.Unlock()

	results := make([]remote.HostResult, len(hosts))

	for i, h := range hosts {
		res := remote.HostResult{Host: h}

		if err := ctx.Err(); err != nil {
			res.Err = err
			results[i] = res

			continue
		}

		var stdout, stderr strings.Builder

		for _, c := range commands {
			if responder == nil {
				continue
			}

			r, ok := responder(h, c)
			if !ok {
				continue
			}

			stdout.WriteString(r.Stdout)
			stderr.WriteString(r.Stderr)
			res.ExitCode = r.ExitCode
			res.Err = r.Err

			if r.Err == nil && r.ExitCode != 0 {
				res.Err = remote.ErrCommandFailed
			}

			if res.Err != nil {
				break
			}
		}

		res.Stdout = []byte(stdout.String())
		res.Stderr = []byte(stderr.String())
		results[i] = res
	}

	return results, remote.Collect(results)
}

// Upload implements remote.Uploader.
func (e *Executor) Upload(_ context.Context, hosts []string, content []byte, path string, mode fs.FileMode) error {
	e.mu.Lock()
	e.calls = append(e.calls, Call{
		Hosts:  slices.Clone(hosts),
		Upload: &Upload{Content: slices.Clone(content), Path: path, Mode: mode},
	})
	uploadErr := e.UploadErr
	e.mu.Unlock()

	if uploadErr == nil {
		return nil
	}

	var results []remote.HostResult

	for _, h := range hosts {
		if err := uploadErr(h, path); err != nil {
			results = append(results, remote.HostResult{Host: h, Err: err})
		}
	}

	return remote.Collect(results)
}

// Calls returns a copy of the recorded calls.
func (e *Executor) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()

	return slices.Clone(e.calls)
}

// Commands returns every command run, in order, flattened.
func (e *Executor) Commands() []string {
	var out []string

	for _, c := range e.Calls() {
		out = append(out, c.Commands...)
	}

	return out
}

// Close implements remote.Transport.
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true

	return nil
}

// Closed reports whether Close was called.
func (e *Executor) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.closed
}
