// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runbatch

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/TylerBrock/colorjson"
	"github.com/matt-FFFFFF/rollbatch/internal/color"
	"github.com/matt-FFFFFF/rollbatch/internal/progress"
)

// ErrWriteResult is returned when a result cannot be written.
var ErrWriteResult = errors.New("failed to write result")

// OutputOptions controls what is included in the text output.
type OutputOptions struct {
	ShowSuccessDetails bool // Whether to show messages for successful steps
	ShowSkipped        bool // Whether to list skipped steps individually
	ShowHosts          bool // Whether to list the host summary
}

// DefaultOutputOptions returns a default set of output options.
func DefaultOutputOptions() *OutputOptions {
	return &OutputOptions{
		ShowSuccessDetails: false,
		ShowSkipped:        true,
		ShowHosts:          true,
	}
}

type batchNode struct {
	label    string
	outcomes []Outcome
}

type groupNode struct {
	name    string
	entry   *Outcome
	batches []*batchNode
}

// tree groups outcomes by group then batch, preserving order.
func (r *RunResult) tree() []*groupNode {
	var groups []*groupNode

	byGroup := make(map[int]*groupNode)
	byBatch := make(map[batchKey]*batchNode)

	for i := range r.Outcomes {
		o := r.Outcomes[i]

		g, ok := byGroup[o.GroupIndex]
		if !ok {
			g = &groupNode{name: o.Group}
			byGroup[o.GroupIndex] = g
			groups = append(groups, g)
		}

		if o.Stage == StageGroupEntry {
			g.entry = &o
			continue
		}

		k := batchKey{group: o.GroupIndex, batch: o.BatchIndex}

		b, ok := byBatch[k]
		if !ok {
			b = &batchNode{label: fmt.Sprintf("%s %v", progress.BatchLabel(o.BatchIndex, o.BatchCount), o.Hosts)}
			byBatch[k] = b
			g.batches = append(g.batches, b)
		}

		b.outcomes = append(b.outcomes, o)
	}

	return groups
}

func symbol(failed, skipped bool) (string, string) {
	switch {
	case failed:
		return color.Colorize("✗", color.FgRed), color.ControlString(color.Bold, color.FgRed)
	case skipped:
		return color.Colorize("~", color.FgYellow), color.ControlString(color.Bold, color.FgYellow)
	default:
		return color.Colorize("✓", color.FgGreen), color.ControlString(color.Bold, color.FgGreen)
	}
}

// WriteText writes a tree report of the run to w.
func (r *RunResult) WriteText(w io.Writer, options *OutputOptions) error {
	if options == nil {
		options = DefaultOutputOptions()
	}

	sb := &strings.Builder{}

	mode := ""
	if r.DryRun {
		mode = " (dry-run)"
	}

	fmt.Fprintf(sb, "%s %s%s\n", color.Colorize("Run", color.Bold), r.RunID, mode)
	fmt.Fprintf(sb, "  action: %s, status: %d, duration: %s\n", r.Action, r.Status, r.Duration().Round(time.Millisecond))

	if r.Interrupted {
		fmt.Fprintf(sb, "  %s\n", color.Colorize("interrupted before completion", color.FgYellow))
	}

	for _, g := range r.tree() {
		writeGroup(sb, g, options)
	}

	if options.ShowHosts {
		writeHosts(sb, "Hosts succeeded", r.Succeeded, color.FgGreen)
		writeHosts(sb, "Hosts failed", r.Failed, color.FgRed)
		writeHosts(sb, "Hosts not touched", r.Untouched, color.FgYellow)
	}

	if _, err := io.WriteString(w, sb.String()); err != nil {
		return errors.Join(ErrWriteResult, err)
	}

	return nil
}

func writeGroup(sb *strings.Builder, g *groupNode, options *OutputOptions) {
	groupFailed := g.entry != nil && g.entry.Failed()
	allSkipped := true

	for _, b := range g.batches {
		for _, o := range b.outcomes {
			groupFailed = groupFailed || o.Failed()
			allSkipped = allSkipped && o.Skipped
		}
	}

	sym, prefix := symbol(groupFailed, allSkipped && len(g.batches) > 0)
	fmt.Fprintf(sb, "%s %s%s%s\n", sym, prefix, g.name, color.ControlString(color.Reset))

	if g.entry != nil {
		writeOutcome(sb, *g.entry, "  ", options)
	}

	for _, b := range g.batches {
		failed := false
		skipped := true

		for _, o := range b.outcomes {
			failed = failed || o.Failed()
			skipped = skipped && o.Skipped
		}

		sym, prefix := symbol(failed, skipped)
		fmt.Fprintf(sb, "  %s %s%s%s\n", sym, prefix, b.label, color.ControlString(color.Reset))

		if skipped && len(b.outcomes) > 0 {
			fmt.Fprintf(sb, "      %s\n", b.outcomes[0].Message)
			continue
		}

		for _, o := range b.outcomes {
			if o.Skipped && !options.ShowSkipped {
				continue
			}

			writeOutcome(sb, o, "    ", options)
		}
	}
}

func writeOutcome(sb *strings.Builder, o Outcome, indent string, options *OutputOptions) {
	sym, prefix := symbol(o.Failed(), o.Skipped)

	fmt.Fprintf(sb, "%s%s %s%s: %s%s", indent, sym, prefix, o.Stage, o.Label, color.ControlString(color.Reset))

	if o.Status != StatusSuccess {
		fmt.Fprintf(sb, " (status: %d)", o.Status)
	}

	sb.WriteString("\n")

	switch {
	case o.Failed():
		fmt.Fprintf(sb, "%s  %s %s\n", indent, color.Colorize("➜ Error:", color.FgRed), o.Message)
	case o.Skipped && o.Message != "":
		fmt.Fprintf(sb, "%s  %s\n", indent, color.Colorize(o.Message, color.FgYellow))
	case options.ShowSuccessDetails && o.Message != "":
		fmt.Fprintf(sb, "%s  ➜ %s\n", indent, o.Message)
	}
}

func writeHosts(sb *strings.Builder, title string, hosts []string, c color.Code) {
	fmt.Fprintf(sb, "%s (%d)", color.Colorize(title, c), len(hosts))

	if len(hosts) > 0 {
		fmt.Fprintf(sb, ": %s", strings.Join(hosts, ", "))
	}

	sb.WriteString("\n")
}

// WriteJSON writes the run as an indented JSON document, coloured when colour is enabled.
func (r *RunResult) WriteJSON(w io.Writer) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return errors.Join(ErrWriteResult, err)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return errors.Join(ErrWriteResult, err)
	}

	f := colorjson.NewFormatter()
	f.Indent = 2
	f.DisabledColor = !color.Enabled()

	out, err := f.Marshal(doc)
	if err != nil {
		return errors.Join(ErrWriteResult, err)
	}

	out = append(out, '\n')

	if _, err := w.Write(out); err != nil {
		return errors.Join(ErrWriteResult, err)
	}

	return nil
}
