// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runbatch

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/matt-FFFFFF/rollbatch/internal/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *RunResult {
	outcomes := []Outcome{
		{Stage: StagePre, Label: "check quorum", Group: "eqiad", BatchIndex: 0, BatchCount: 2, Hosts: []string{"h1"}},
		{Stage: StageAction, Label: "reboot", Group: "eqiad", BatchIndex: 0, BatchCount: 2, Hosts: []string{"h1"}},
		{Stage: StagePre, Label: "check quorum", Group: "eqiad", BatchIndex: 1, BatchCount: 2, Hosts: []string{"h2"}, Status: 3, Message: "quorum lost"},
		{Stage: StageAction, Label: "reboot", Group: "eqiad", BatchIndex: 1, BatchCount: 2, Hosts: []string{"h2"}, Skipped: true, Message: "skipped: pre stage failed"},
		{Stage: StageAction, Label: "reboot", Group: "codfw", GroupIndex: 1, BatchIndex: 0, BatchCount: 1, Hosts: []string{"h3"}, Skipped: true, Message: "skipped: run interrupted"},
	}

	res := Aggregate(outcomes)
	res.RunID = "01JXAMPLE"
	res.Action = "reboot"
	res.Started = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	res.Finished = res.Started.Add(90 * time.Second)
	res.Interrupted = true

	return res
}

func TestWriteText(t *testing.T) {
	prev := color.SetEnabled(false)
	defer color.SetEnabled(prev)

	buf := &bytes.Buffer{}
	require.NoError(t, sampleResult().WriteText(buf, nil))

	out := buf.String()
	assert.Contains(t, out, "Run 01JXAMPLE")
	assert.Contains(t, out, "action: reboot, status: 3, duration: 1m30s")
	assert.Contains(t, out, "interrupted before completion")
	assert.Contains(t, out, "✗ eqiad")
	assert.Contains(t, out, "✓ batch 1/2 [h1]")
	assert.Contains(t, out, "✗ batch 2/2 [h2]")
	assert.Contains(t, out, "✗ pre: check quorum (status: 3)")
	assert.Contains(t, out, "➜ Error: quorum lost")
	assert.Contains(t, out, "~ codfw")
	assert.Contains(t, out, "skipped: run interrupted")
	assert.Contains(t, out, "Hosts succeeded (1): h1")
	assert.Contains(t, out, "Hosts failed (1): h2")
	assert.Contains(t, out, "Hosts not touched (1): h3")
	assert.NotContains(t, out, "\033[")
}

func TestWriteText_HideSkipped(t *testing.T) {
	prev := color.SetEnabled(false)
	defer color.SetEnabled(prev)

	buf := &bytes.Buffer{}
	require.NoError(t, sampleResult().WriteText(buf, &OutputOptions{}))

	out := buf.String()
	assert.NotContains(t, out, "~ action: reboot")
	assert.NotContains(t, out, "Hosts succeeded")
}

func TestWriteJSON(t *testing.T) {
	prev := color.SetEnabled(false)
	defer color.SetEnabled(prev)

	buf := &bytes.Buffer{}
	require.NoError(t, sampleResult().WriteJSON(buf))

	var doc struct {
		RunID     string   `json:"run_id"`
		Status    int      `json:"status"`
		Failed    []string `json:"failed_hosts"`
		Untouched []string `json:"untouched_hosts"`
		Outcomes  []struct {
			Stage   string `json:"stage"`
			Skipped bool   `json:"skipped"`
		} `json:"outcomes"`
	}

	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "01JXAMPLE", doc.RunID)
	assert.Equal(t, 3, doc.Status)
	assert.Equal(t, []string{"h2"}, doc.Failed)
	assert.Equal(t, []string{"h3"}, doc.Untouched)
	require.Len(t, doc.Outcomes, 5)
	assert.Equal(t, "pre", doc.Outcomes[0].Stage)
	assert.True(t, doc.Outcomes[3].Skipped)
}
