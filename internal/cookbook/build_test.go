// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package cookbook

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matt-FFFFFF/rollbatch/internal/actions"
	"github.com/matt-FFFFFF/rollbatch/internal/hostgroup"
	"github.com/matt-FFFFFF/rollbatch/internal/inventory"
	"github.com/matt-FFFFFF/rollbatch/internal/remote/remotetest"
	"github.com/matt-FFFFFF/rollbatch/internal/runbatch"
	"github.com/prashantv/gostub"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sleeps struct {
	mu sync.Mutex
	d  []time.Duration
}

func (s *sleeps) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.d = append(s.d, d)

	return ctx.Err()
}

func (s *sleeps) count(d time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0

	for _, v := range s.d {
		if v == d {
			n++
		}
	}

	return n
}

func exampleDefinition(t *testing.T) *Definition {
	t.Helper()

	def, err := ParseYAML([]byte(ExampleYAML))
	require.NoError(t, err)

	return def
}

func intPtr(i int) *int { return &i }

func TestActionName(t *testing.T) {
	def := exampleDefinition(t)

	_, err := def.ActionName("")
	require.ErrorIs(t, err, ErrNoAction)
	assert.True(t, runbatch.IsConfigurationError(err))

	name, err := def.ActionName("reboot")
	require.NoError(t, err)
	assert.Equal(t, "reboot", name)

	def.ValidActions = []string{"restart_daemons"}
	name, err = def.ActionName("")
	require.NoError(t, err)
	assert.Equal(t, "restart_daemons", name)
}

func TestReason(t *testing.T) {
	assert.Equal(t, "kernel upgrade", Reason("kernel upgrade", ""))
	assert.Equal(t, "kernel upgrade (T12345)", Reason("kernel upgrade", "T12345"))
}

func TestBuild(t *testing.T) {
	def := exampleDefinition(t)
	grace := 45 * time.Second

	o, err := def.Build(t.Context(), Overrides{
		Action:       "restart_daemons",
		BatchSize:    2,
		GraceSleep:   &grace,
		MaxFailed:    intPtr(3),
		OnPreFailure: "abort-run",
		Reason:       "security update",
		TaskID:       "T1",
	}, Deps{Executor: remotetest.New()})
	require.NoError(t, err)

	cfg := o.Config()
	assert.Equal(t, "restart_daemons", cfg.Action.Name)
	assert.Equal(t, 2, cfg.EffectiveBatchSize())
	assert.Equal(t, 4, cfg.BatchMax)
	assert.Equal(t, grace, cfg.GraceSleep)
	assert.Equal(t, time.Second, cfg.MinGraceSleep)
	assert.Equal(t, 3, cfg.MaxFailedBatches)
	assert.Equal(t, runbatch.PreFailureAbortRun, cfg.PreFailurePolicy)
	assert.Equal(t, "security update (T1)", cfg.Reason)
	assert.Len(t, cfg.Pre, 1)
	assert.Len(t, cfg.Post, 1)
	assert.Nil(t, cfg.GroupEntry)
}

func TestBuild_UnknownActionTouchesNoHost(t *testing.T) {
	def := exampleDefinition(t)
	exec := remotetest.New()

	o, err := def.Build(t.Context(), Overrides{Action: "decommission", Reason: "r"}, Deps{Executor: exec, Uploader: exec})
	require.Error(t, err)
	assert.Nil(t, o)
	assert.True(t, runbatch.IsConfigurationError(err))
	assert.ErrorIs(t, err, runbatch.ErrActionNotDeclared)
	assert.Empty(t, exec.Calls())
}

func TestBuild_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Definition)
		ov       Overrides
		expected error
	}{
		{
			name:     "batch size above max",
			ov:       Overrides{Action: "reboot", BatchSize: 5, Reason: "r"},
			expected: runbatch.ErrInvalidBatchSize,
		},
		{
			name:     "batch size above depool threshold",
			ov:       Overrides{Action: "reboot", BatchSize: 3, Reason: "r"},
			expected: actions.ErrDepoolThreshold,
		},
		{
			name:     "grace sleep below minimum",
			ov:       Overrides{Action: "reboot", GraceSleep: new(time.Duration), Reason: "r"},
			expected: runbatch.ErrGraceSleepTooShort,
		},
		{
			name:     "declared but not registered",
			mutate:   func(d *Definition) { d.ValidActions = append(d.ValidActions, "reimage") },
			ov:       Overrides{Action: "reboot", Reason: "r"},
			expected: runbatch.ErrMissingHandler,
		},
		{
			name:     "unknown policy override",
			ov:       Overrides{Action: "reboot", OnPreFailure: "ignore", Reason: "r"},
			expected: runbatch.ErrPreFailurePolicyUnknown,
		},
		{
			name:     "reason required",
			ov:       Overrides{Action: "reboot"},
			expected: ErrNoReason,
		},
		{
			name:     "restart_daemons declared without daemons",
			mutate:   func(d *Definition) { d.RestartDaemons = nil },
			ov:       Overrides{Action: "restart_daemons", Reason: "r"},
			expected: actions.ErrNoDaemons,
		},
		{
			name:     "restart_daemons declared without daemons, other action chosen",
			mutate:   func(d *Definition) { d.RestartDaemons = nil },
			ov:       Overrides{Action: "reboot", Reason: "r"},
			expected: actions.ErrNoDaemons,
		},
		{
			name: "run_command declared without a command",
			mutate: func(d *Definition) {
				d.ValidActions = append(d.ValidActions, "run_command")
				d.RunCommand = "  "
			},
			ov:       Overrides{Action: "run_command", Reason: "r"},
			expected: actions.ErrNoRunCommand,
		},
		{
			name:     "invalid definition",
			mutate:   func(d *Definition) { d.GraceSleep = "never" },
			ov:       Overrides{Action: "reboot", Reason: "r"},
			expected: ErrInvalidDuration,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			def := exampleDefinition(t)
			if tc.mutate != nil {
				tc.mutate(def)
			}

			exec := remotetest.New()

			_, err := def.Build(t.Context(), tc.ov, Deps{Executor: exec})
			require.ErrorIs(t, err, tc.expected)
			assert.True(t, runbatch.IsConfigurationError(err))
			assert.Empty(t, exec.Calls())
		})
	}
}

func TestBuild_DryRunNeedsNoReason(t *testing.T) {
	_, err := exampleDefinition(t).Build(t.Context(), Overrides{Action: "reboot", DryRun: true}, Deps{Executor: remotetest.New()})
	assert.NoError(t, err)
}

func TestBuild_UploadSourceReadFromFs(t *testing.T) {
	memFs(t, map[string]string{"scripts/wait-ready.sh": "#!/bin/sh\nexit 0\n"})

	def, err := ParseHCL([]byte(ExampleHCL), "aqs.hcl")
	require.NoError(t, err)

	exec := remotetest.New()
	o, err := def.Build(t.Context(), Overrides{Action: "restart_daemons", Reason: "r"}, Deps{Executor: exec, Uploader: exec})
	require.NoError(t, err)

	out, err := o.Config().Post[0].Run(t.Context(), runbatch.Request{Batch: hostgroup.Batch{Group: "eqiad", Hosts: []string{"aqs1010"}}})
	require.NoError(t, err)
	assert.False(t, out.Failed())

	calls := exec.Calls()
	require.Len(t, calls, 2)
	require.NotNil(t, calls[0].Upload)
	assert.Equal(t, "#!/bin/sh\nexit 0\n", string(calls[0].Upload.Content))
	assert.Equal(t, []string{"/tmp/rollbatch-wait-ready.sh"}, calls[1].Commands)
}

func TestBuild_UploadSourceMissing(t *testing.T) {
	memFs(t, nil)

	def, err := ParseHCL([]byte(ExampleHCL), "aqs.hcl")
	require.NoError(t, err)

	_, err = def.Build(t.Context(), Overrides{Action: "reboot", Reason: "r"}, Deps{Executor: remotetest.New()})
	require.ErrorIs(t, err, ErrInvalidScript)
	assert.True(t, runbatch.IsConfigurationError(err))
}

func TestHooks_InvalidUploadMode(t *testing.T) {
	exec := remotetest.New()

	_, err := exampleDefinition(t).hooks(Deps{Executor: exec, Uploader: exec}, []ScriptDefinition{
		{Name: "ready", Upload: &UploadDefinition{Content: "exit 0", Path: "/tmp/ready.sh", Mode: "rwx"}},
	})
	require.ErrorIs(t, err, ErrInvalidScript)
	assert.True(t, runbatch.IsConfigurationError(err))
	assert.Empty(t, exec.Calls())
}

func TestBuildAndRun(t *testing.T) {
	def := exampleDefinition(t)
	def.Pool.DepoolThreshold = 2

	exec := remotetest.New()
	s := &sleeps{}

	resolver, err := def.Resolver()
	require.NoError(t, err)

	groups, err := resolver.Resolve(t.Context(), inventory.Selector{Alias: "aqs"})
	require.NoError(t, err)

	o, err := def.Build(t.Context(), Overrides{Action: "restart_daemons", BatchSize: 2, Reason: "r"},
		Deps{Executor: exec, Uploader: exec, Sleeper: s.sleep})
	require.NoError(t, err)

	res := o.Run(t.Context(), groups)
	require.NotNil(t, res)
	assert.Equal(t, runbatch.StatusSuccess, res.Status)
	assert.Equal(t, 3, s.count(30*time.Second), "one grace sleep between each of the 4 batches")
	assert.Equal(t, 8, s.count(5*time.Second), "depool and repool sleeps for each batch")

	restarts := 0

	for _, c := range exec.Commands() {
		if strings.Contains(c, "restart aqs") {
			restarts++
		}
	}

	assert.Equal(t, 4, restarts)
	assert.Len(t, res.Succeeded, 7)
	assert.Empty(t, res.Failed)
	assert.Empty(t, res.Untouched)
}

func TestResolver(t *testing.T) {
	t.Run("inline", func(t *testing.T) {
		r, err := exampleDefinition(t).Resolver()
		require.NoError(t, err)

		_, err = r.Resolve(t.Context(), inventory.Selector{Alias: "eqiad"})
		require.ErrorIs(t, err, inventory.ErrAliasNotAllowed)
	})

	t.Run("file", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "/inv.yaml", []byte("groups:\n  - name: a\n    hosts: [h1]\n"), 0o644))

		stub := gostub.Stub(&inventory.FsFactory, func() afero.Fs { return fs })
		defer stub.Reset()

		r, err := (&Definition{InventoryFile: "/inv.yaml"}).Resolver()
		require.NoError(t, err)

		groups, err := r.Resolve(t.Context(), inventory.Selector{Query: "h*"})
		require.NoError(t, err)
		assert.Equal(t, []string{"h1"}, groups[0].Hosts())
	})

	t.Run("none", func(t *testing.T) {
		_, err := (&Definition{}).Resolver()
		require.ErrorIs(t, err, ErrNoInventory)
		assert.True(t, runbatch.IsConfigurationError(err))
	})
}
