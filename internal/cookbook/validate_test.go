// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package cookbook

import (
	"testing"
	"time"

	"github.com/matt-FFFFFF/rollbatch/internal/actions"
	"github.com/matt-FFFFFF/rollbatch/internal/inventory"
	"github.com/matt-FFFFFF/rollbatch/internal/runbatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_AccumulatesErrors(t *testing.T) {
	def := &Definition{
		ValidActions:  []string{"reboot", "reboot"},
		GraceSleep:    "soon",
		RebootTimeout: "-1m",
		OnPreFailure:  "panic",
		PreScripts: []ScriptDefinition{
			{Name: "empty"},
			{Upload: &UploadDefinition{Mode: "999"}},
		},
		GroupEntry:    &GroupEntryDefinition{},
		Pool:          &PoolDefinition{DepoolCommand: "depool"},
		Inventory:     &inventory.Inventory{Groups: []inventory.Group{{Name: "a"}}},
		InventoryFile: "/etc/inventory.yaml",
	}

	err := def.Validate()
	require.Error(t, err)
	assert.True(t, runbatch.IsConfigurationError(err))

	for _, target := range []error{
		ErrNoName,
		ErrInvalidDuration,
		runbatch.ErrPreFailurePolicyUnknown,
		ErrInvalidScript,
		actions.ErrEmptyScript,
		ErrInvalidGroupEntry,
		actions.ErrDepoolCommand,
		ErrInventoryConflict,
	} {
		assert.ErrorIs(t, err, target)
	}

	msg := err.Error()
	assert.Contains(t, msg, `valid_actions lists "reboot" more than once`)
	assert.Contains(t, msg, "grace_sleep:")
	assert.Contains(t, msg, "reboot_timeout:")
	assert.Contains(t, msg, "pre_scripts[0] (empty)")
	assert.Contains(t, msg, "pre_scripts[1]: upload needs a path")
	assert.Contains(t, msg, "exactly one of source or content")
	assert.Contains(t, msg, `invalid file mode "999"`)
}

func TestValidate_NoActions(t *testing.T) {
	err := (&Definition{Name: "x"}).Validate()
	require.ErrorIs(t, err, ErrNoValidActions)
}

func TestValidate_Minimal(t *testing.T) {
	def := &Definition{Name: "x", ValidActions: []string{"run_command"}, RunCommand: "uptime"}

	s, err := def.parse()
	require.NoError(t, err)
	assert.Equal(t, DefaultGraceSleep, s.graceSleep)
	assert.Equal(t, DefaultMinGraceSleep, s.minGraceSleep)
	assert.Equal(t, actions.DefaultRebootTimeout, s.rebootTimeout)
	assert.Equal(t, runbatch.PreFailureAbortBatch, s.policy)
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in       string
		expected time.Duration
		wantErr  bool
	}{
		{"", 7 * time.Second, false},
		{"30", 30 * time.Second, false},
		{"1m30s", 90 * time.Second, false},
		{" 0s ", 0, false},
		{"-5s", 0, true},
		{"later", 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			d, err := parseDuration(tc.in, 7*time.Second)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidDuration)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expected, d)
		})
	}
}

func TestParseMode(t *testing.T) {
	m, err := parseMode("")
	require.NoError(t, err)
	assert.Equal(t, actions.DefaultScriptMode, m)

	m, err = parseMode("0700")
	require.NoError(t, err)
	assert.Equal(t, "-rwx------", m.String())

	_, err = parseMode("rwx")
	assert.Error(t, err)
}
