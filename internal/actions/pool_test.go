// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package actions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matt-FFFFFF/rollbatch/internal/remote/remotetest"
	"github.com/matt-FFFFFF/rollbatch/internal/runbatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPool(s *sleepRecorder) Pool {
	return Pool{
		DepoolCommand:   "depool",
		RepoolCommand:   "pool",
		DepoolSleep:     3 * time.Second,
		RepoolSleep:     7 * time.Second,
		DepoolThreshold: 2,
		Sleeper:         s.sleep,
	}
}

func recordingAction(exec *remotetest.Executor, status int, err error) runbatch.ActionFunc {
	return func(ctx context.Context, req runbatch.Request) (runbatch.Outcome, error) {
		_, _ = exec.Run(ctx, req.Batch.Hosts, "action")
		return runbatch.Outcome{Status: status, Message: "done"}, err
	}
}

func TestPool_Wrap(t *testing.T) {
	exec := remotetest.New()
	sleeper := &sleepRecorder{}
	fn := testPool(sleeper).Wrap(exec, recordingAction(exec, 0, nil))

	o, err := fn(t.Context(), request("h1", "h2"))
	require.NoError(t, err)
	assert.Equal(t, "done", o.Message)
	assert.Equal(t, []string{"depool", "action", "pool"}, exec.Commands())
	assert.Equal(t, []time.Duration{3 * time.Second, 7 * time.Second}, sleeper.slept())
}

func TestPool_ActionFailureLeavesHostsDepooled(t *testing.T) {
	tests := []struct {
		name   string
		status int
		err    error
	}{
		{"status", 4, nil},
		{"error", 0, errors.New("boom")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			exec := remotetest.New()
			sleeper := &sleepRecorder{}
			fn := testPool(sleeper).Wrap(exec, recordingAction(exec, tc.status, tc.err))

			_, err := fn(t.Context(), request("h1"))
			require.ErrorIs(t, err, ErrStillDepooled)
			assert.Equal(t, []string{"depool", "action"}, exec.Commands())
			assert.Equal(t, []time.Duration{3 * time.Second}, sleeper.slept())
		})
	}
}

func TestPool_DepoolFailureSkipsAction(t *testing.T) {
	exec := remotetest.New()
	exec.Responder = remotetest.FailOn("depool", 1)
	fn := testPool(&sleepRecorder{}).Wrap(exec, recordingAction(exec, 0, nil))

	_, err := fn(t.Context(), request("h1"))
	require.ErrorIs(t, err, ErrStillDepooled)
	assert.Equal(t, []string{"depool"}, exec.Commands())
}

func TestPool_RepoolFailure(t *testing.T) {
	exec := remotetest.New()
	exec.Responder = func(host, command string) (remotetest.Response, bool) {
		if command == "pool" {
			return remotetest.Response{ExitCode: 6}, true
		}

		return remotetest.Response{}, false
	}
	fn := testPool(&sleepRecorder{}).Wrap(exec, recordingAction(exec, 0, nil))

	o, err := fn(t.Context(), request("h1"))
	require.ErrorIs(t, err, ErrStillDepooled)
	assert.Equal(t, 6, o.Status)
}

func TestPool_DryRun(t *testing.T) {
	exec := remotetest.New()
	sleeper := &sleepRecorder{}
	req := request("h1")
	req.DryRun = true

	h := New(exec, Settings{RunCommand: "uptime"})
	_, err := testPool(sleeper).Wrap(exec, h.RunCommand)(t.Context(), req)
	require.NoError(t, err)
	assert.Empty(t, exec.Calls())
	assert.Empty(t, sleeper.slept())
}

func TestPool_Validate(t *testing.T) {
	p := testPool(&sleepRecorder{})

	require.NoError(t, p.Validate(2))

	err := p.Validate(3)
	require.ErrorIs(t, err, ErrDepoolThreshold)
	assert.True(t, runbatch.IsConfigurationError(err))

	err = Pool{DepoolCommand: "depool"}.Validate(2)
	require.ErrorIs(t, err, ErrDepoolCommand)
	require.ErrorIs(t, err, ErrDepoolThreshold)
}
