// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
	"github.com/matt-FFFFFF/rollbatch/internal/progress"
	"github.com/matt-FFFFFF/rollbatch/internal/runbatch"
)

// NodeStatus represents the current state of a tree node.
type NodeStatus int

const (
	StatusPending NodeStatus = iota
	StatusRunning
	StatusSuccess
	StatusFailed
	StatusSkipped
)

// String returns a string representation of the node status.
func (s NodeStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Node is a group, batch or step in the rollout tree.
type Node struct {
	Name     string
	Status   NodeStatus
	Message  string
	Hosts    []string
	Started  time.Time
	Duration time.Duration
	Children []*Node
}

func (n *Node) finish(status NodeStatus, d time.Duration) {
	n.Status = status
	n.Duration = d
}

// Model represents the TUI application state.
// Update and View are only ever called from the bubbletea event loop.
type Model struct {
	action       string
	totalBatches int
	doneBatches  int
	groups       []*Node
	nodes        map[string]*Node
	sleeping     string
	runStatus    int
	completed    bool
	result       *runbatch.RunResult
	quitting     bool

	width    int
	height   int
	viewport viewport.Model
	ready    bool

	styles *Styles
}

// Styles contains all the styling for the TUI.
type Styles struct {
	Title      lipgloss.Style
	Pending    lipgloss.Style
	Running    lipgloss.Style
	Success    lipgloss.Style
	Failed     lipgloss.Style
	Skipped    lipgloss.Style
	Output     lipgloss.Style
	Error      lipgloss.Style
	Help       lipgloss.Style
	TreeBranch lipgloss.Style
	Border     lipgloss.Style
}

// NewStyles creates the default styling for the TUI.
func NewStyles() *Styles {
	return &Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")),
		Pending: lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")),
		Running: lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")).
			Bold(true),
		Success: lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")),
		Failed: lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")),
		Skipped: lipgloss.NewStyle().
			Foreground(lipgloss.Color("3")),
		Output: lipgloss.NewStyle().
			Foreground(lipgloss.Color("7")).
			Italic(true),
		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Italic(true),
		Help: lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")),
		TreeBranch: lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")),
		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")),
	}
}

// NewModel creates a new TUI model.
func NewModel() *Model {
	return &Model{
		nodes:  make(map[string]*Node),
		styles: NewStyles(),
	}
}

// node returns the node at path, creating it and its parents as needed.
func (m *Model) node(path ...string) *Node {
	key := strings.Join(path, "/")
	if n, ok := m.nodes[key]; ok {
		return n
	}

	n := &Node{Name: path[len(path)-1]}
	m.nodes[key] = n

	if len(path) == 1 {
		m.groups = append(m.groups, n)
	} else {
		parent := m.node(path[:len(path)-1]...)
		parent.Children = append(parent.Children, n)
	}

	return n
}

func statusOf(status int, skipped bool) NodeStatus {
	switch {
	case skipped:
		return StatusSkipped
	case status != runbatch.StatusSuccess:
		return StatusFailed
	default:
		return StatusSuccess
	}
}

// Apply folds a progress event into the tree.
func (m *Model) Apply(e progress.Event) {
	switch e.Type {
	case progress.EventRunStarted:
		m.action = e.Message
		m.totalBatches = e.BatchCount

	case progress.EventGroupEntered:
		g := m.node(e.Group)
		g.Status = StatusRunning
		g.Hosts = e.Hosts
		g.Started = e.Timestamp

	case progress.EventGroupSkipped:
		m.sleeping = ""

		g := m.node(e.Group)
		g.Status = StatusFailed
		g.Message = e.Message

	case progress.EventSleeping:
		m.sleeping = fmt.Sprintf("sleeping %s before %s %s", e.Duration, e.Group, progress.BatchLabel(e.BatchIndex, e.BatchCount))

	case progress.EventBatchStarted:
		m.sleeping = ""

		g := m.node(e.Group)
		if g.Status == StatusPending {
			g.Status = StatusRunning
		}

		b := m.batch(e)
		b.Status = StatusRunning
		b.Started = e.Timestamp

	case progress.EventStageCompleted:
		name := e.Stage
		if e.Label != "" {
			name += ": " + e.Label
		}

		s := m.node(e.Group, m.batchName(e), name)
		s.finish(statusOf(e.Status, e.Skipped), e.Duration)
		s.Message = e.Message

	case progress.EventBatchCompleted:
		m.doneBatches++

		b := m.batch(e)
		b.finish(statusOf(e.Status, false), e.Duration)

		g := m.node(e.Group)
		if b.Status == StatusFailed {
			g.Status = StatusFailed
		}

		m.closeGroup(g, e)

	case progress.EventBatchSkipped:
		b := m.batch(e)
		b.Status = StatusSkipped
		b.Message = e.Message

		m.closeGroup(m.node(e.Group), e)

	case progress.EventRunCompleted:
		m.sleeping = ""
		m.runStatus = e.Status
		m.completed = true
	}
}

func (m *Model) batchName(e progress.Event) string {
	return fmt.Sprintf("%s %v", progress.BatchLabel(e.BatchIndex, e.BatchCount), e.Hosts)
}

func (m *Model) batch(e progress.Event) *Node {
	b := m.node(e.Group, m.batchName(e))
	b.Hosts = e.Hosts

	return b
}

// closeGroup settles a running group once its last batch is done.
func (m *Model) closeGroup(g *Node, e progress.Event) {
	if e.BatchIndex != e.BatchCount-1 || g.Status != StatusRunning {
		return
	}

	g.Status = StatusSuccess

	for _, b := range g.Children {
		if b.Status == StatusSkipped {
			g.Status = StatusSkipped
		}
	}

	if !g.Started.IsZero() {
		g.Duration = e.Timestamp.Sub(g.Started)
	}
}

// Completed reports whether the run has finished.
func (m *Model) Completed() bool {
	return m.completed
}

// Status returns the run status once the run has finished.
func (m *Model) Status() int {
	if m.result != nil {
		return m.result.Status
	}

	return m.runStatus
}
