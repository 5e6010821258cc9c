// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/matt-FFFFFF/rollbatch/internal/progress"
	"github.com/matt-FFFFFF/rollbatch/internal/runbatch"
)

const (
	headerHeight      = 2
	footerHeight      = 3
	minViewportHeight = 3
	durationRounding  = 100 * time.Millisecond
	helpText          = "↑/↓ or j/k to scroll, PgUp/PgDn for pages, 'q' to stop after the current batch"
	helpTextCompleted = "↑/↓ or j/k to scroll, 'q' to quit and return to terminal"
	shuttingDownText  = "Shutting down...\n"
)

// ProgressEventMsg wraps a progress event for the tea framework.
type ProgressEventMsg struct {
	Event progress.Event
}

// RunCompletedMsg carries the final result of the run.
type RunCompletedMsg struct {
	Result *runbatch.RunResult
}

// Init implements bubbletea.Model.Init.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements bubbletea.Model.Update.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()

	case ProgressEventMsg:
		m.Apply(msg.Event)

	case RunCompletedMsg:
		m.completed = true
		m.result = msg.Result

		return m, nil
	}

	if m.ready {
		m.viewport, cmd = m.viewport.Update(msg)
	}

	return m, cmd
}

func (m *Model) resize() {
	h := max(m.height-headerHeight-footerHeight-2, minViewportHeight)
	w := max(m.width-2, 1)

	if !m.ready {
		m.viewport = viewport.New(w, h)
		m.ready = true

		return
	}

	m.viewport.Width = w
	m.viewport.Height = h
}

// View implements bubbletea.Model.View.
func (m *Model) View() string {
	if m.quitting && !m.completed {
		return shuttingDownText
	}

	var view strings.Builder

	title := "Rollout"
	if m.action != "" {
		title += ": " + m.action
	}

	view.WriteString(m.styles.Title.Render(title))
	view.WriteString("\n")
	view.WriteString(m.renderStatusBar())
	view.WriteString("\n")

	content := m.renderTree()

	if !m.ready {
		view.WriteString(content)
		return view.String()
	}

	m.viewport.SetContent(content)
	view.WriteString(m.styles.Border.Render(m.viewport.View()))
	view.WriteString("\n")

	if m.completed {
		view.WriteString(m.styles.Help.Render(helpTextCompleted))
	} else {
		view.WriteString(m.styles.Help.Render(helpText))
	}

	return view.String()
}

func (m *Model) renderStatusBar() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("batches %d/%d", m.doneBatches, m.totalBatches))

	switch {
	case m.completed && m.Status() == runbatch.StatusSuccess:
		parts = append(parts, m.styles.Success.Render("✅ completed successfully"))
	case m.completed:
		parts = append(parts, m.styles.Failed.Render(fmt.Sprintf("❌ completed with status %d", m.Status())))
	case m.sleeping != "":
		parts = append(parts, m.styles.Running.Render("💤 "+m.sleeping))
	}

	return strings.Join(parts, "  ")
}

func (m *Model) renderTree() string {
	var b strings.Builder

	for i, g := range m.groups {
		m.renderNode(&b, g, "", i == len(m.groups)-1)
	}

	return b.String()
}

func (m *Model) renderNode(b *strings.Builder, n *Node, prefix string, isLast bool) {
	connector := "├── "
	childPrefix := prefix + "│   "

	if isLast {
		connector = "└── "
		childPrefix = prefix + "    "
	}

	icon, name := m.decorate(n)

	b.WriteString(m.styles.TreeBranch.Render(prefix + connector))
	b.WriteString(icon + " " + name)

	if n.Duration > 0 {
		b.WriteString(m.styles.Output.Render(fmt.Sprintf(" (%v)", n.Duration.Round(durationRounding))))
	}

	switch {
	case n.Status == StatusFailed && n.Message != "":
		b.WriteString(" " + m.styles.Error.Render("Error: "+firstLine(n.Message)))
	case n.Status == StatusSkipped && n.Message != "":
		b.WriteString(" " + m.styles.Skipped.Render(firstLine(n.Message)))
	}

	b.WriteString("\n")

	for i, c := range n.Children {
		m.renderNode(b, c, childPrefix, i == len(n.Children)-1)
	}
}

func (m *Model) decorate(n *Node) (string, string) {
	switch n.Status {
	case StatusRunning:
		return "⚡", m.styles.Running.Render(n.Name)
	case StatusSuccess:
		return "✅", m.styles.Success.Render(n.Name)
	case StatusFailed:
		return "❌", m.styles.Failed.Render(n.Name)
	case StatusSkipped:
		return "⏭️", m.styles.Skipped.Render(n.Name)
	default:
		return "⏳", m.styles.Pending.Render(n.Name)
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}
