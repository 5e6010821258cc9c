// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package target

import (
	"bytes"
	"testing"
	"time"

	"github.com/matt-FFFFFF/rollbatch/internal/color"
	"github.com/matt-FFFFFF/rollbatch/internal/cookbook"
	"github.com/matt-FFFFFF/rollbatch/internal/hostgroup"
	"github.com/matt-FFFFFF/rollbatch/internal/runbatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWritePlan(t *testing.T) {
	prev := color.SetEnabled(false)
	defer color.SetEnabled(prev)

	eqiad, err := hostgroup.Partition(hostgroup.New("eqiad", "h1", "h2", "h3"), 2)
	require.NoError(t, err)

	codfw, err := hostgroup.Partition(hostgroup.New("codfw", "h4"), 2)
	require.NoError(t, err)

	def := &cookbook.Definition{Name: "aqs", Description: "Restart AQS"}
	cfg := runbatch.Config{
		BatchSize:        2,
		GraceSleep:       30 * time.Second,
		Reason:           "kernel update",
		Action:           runbatch.Action{Name: "reboot"},
		MaxFailedBatches: 1,
		DryRun:           true,
	}

	var buf bytes.Buffer
	require.NoError(t, WritePlan(&buf, def, cfg, [][]hostgroup.Batch{eqiad, nil, codfw}))

	want := "Cookbook aqs\n" +
		"  Restart AQS\n" +
		"  action: reboot, batch size: 2, grace sleep: 30s, on pre failure: abort-batch\n" +
		"  stops after 1 failed batches\n" +
		"  reason: kernel update\n" +
		"  dry-run: no host will be changed\n" +
		"eqiad (3 hosts, 2 batches)\n" +
		"  batch 1/2: h1, h2\n" +
		"  batch 2/2: h3\n" +
		"codfw (1 hosts, 1 batches)\n" +
		"  batch 1/1: h4\n" +
		"Total: 4 hosts in 3 batches\n"

	assert.Equal(t, want, buf.String())
}

func TestWritePlan_Empty(t *testing.T) {
	prev := color.SetEnabled(false)
	defer color.SetEnabled(prev)

	var buf bytes.Buffer
	require.NoError(t, WritePlan(&buf, &cookbook.Definition{Name: "empty"}, runbatch.Config{
		BatchDefault: 1,
		Action:       runbatch.Action{Name: "run_command"},
	}, nil))

	assert.Contains(t, buf.String(), "batch size: 1")
	assert.NotContains(t, buf.String(), "reason:")
	assert.NotContains(t, buf.String(), "dry-run")
	assert.Contains(t, buf.String(), "Total: 0 hosts in 0 batches\n")
}
