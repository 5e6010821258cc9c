// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/matt-FFFFFF/rollbatch/internal/progress"
	"github.com/matt-FFFFFF/rollbatch/internal/runbatch"
)

var _ progress.Reporter = (*Reporter)(nil)

// Sender is the part of tea.Program the reporter needs.
type Sender interface {
	Send(msg tea.Msg)
}

// Reporter implements progress.Reporter and forwards events to the TUI.
type Reporter struct {
	sender Sender
	closed bool
	mutex  sync.RWMutex
}

// NewReporter creates a new TUI progress reporter.
func NewReporter(sender Sender) *Reporter {
	return &Reporter{
		sender: sender,
	}
}

// Report implements progress.Reporter.Report.
func (r *Reporter) Report(event progress.Event) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if r.closed || r.sender == nil {
		return
	}

	r.sender.Send(ProgressEventMsg{Event: event})
}

// Close implements progress.Reporter.Close.
func (r *Reporter) Close() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.closed = true
}

// Runner manages the TUI application and progress event integration.
type Runner struct {
	model    *Model
	program  *tea.Program
	reporter *Reporter
}

// NewRunner creates a new TUI runner. Options are passed to tea.NewProgram.
func NewRunner(opts ...tea.ProgramOption) *Runner {
	model := NewModel()

	if len(opts) == 0 {
		opts = []tea.ProgramOption{tea.WithAltScreen(), tea.WithMouseCellMotion()}
	}

	program := tea.NewProgram(model, opts...)

	return &Runner{
		model:    model,
		program:  program,
		reporter: NewReporter(program),
	}
}

// Reporter returns the progress reporter feeding this runner.
func (r *Runner) Reporter() progress.Reporter {
	return r.reporter
}

// Run starts the TUI and executes work alongside it.
// When the operator quits before work returns, onQuit is called and Run waits
// for work to finish. After work returns the TUI stays up until the operator quits.
func (r *Runner) Run(work func() *runbatch.RunResult, onQuit func()) (*runbatch.RunResult, error) {
	resultChan := make(chan *runbatch.RunResult, 1)

	go func() {
		resultChan <- work()
	}()

	tuiDone := make(chan error, 1)

	go func() {
		_, err := r.program.Run()
		tuiDone <- err
	}()

	select {
	case res := <-resultChan:
		r.program.Send(RunCompletedMsg{Result: res})

		err := <-tuiDone

		r.reporter.Close()

		return res, err

	case err := <-tuiDone:
		r.reporter.Close()

		if onQuit != nil {
			onQuit()
		}

		return <-resultChan, err
	}
}
