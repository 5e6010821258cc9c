// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package progress

import (
	"strconv"
	"time"
)

// Event represents a state change in a rollout.
type Event struct {
	Type       EventType     // Event type indicating what happened
	Group      string        // Host group name, empty for run level events
	GroupIndex int           // Zero-based position of the group in the run
	BatchIndex int           // Zero-based batch index within the group, -1 when not batch scoped
	BatchCount int           // Number of batches in the group
	Stage      string        // Stage name for EventStageCompleted
	Label      string        // Hook or action label for EventStageCompleted
	Hosts      []string      // Hosts in the batch
	Status     int           // Outcome status for completion events
	Message    string        // Human-readable status message
	Skipped    bool          // The step was recorded without running
	Duration   time.Duration // Sleep length for EventSleeping, elapsed time for completion events
	Timestamp  time.Time     // When the event occurred
}

// Path returns the hierarchical location of the event, e.g. ["aqs-eqiad", "batch 2/3", "pre"].
func (e Event) Path() []string {
	path := make([]string, 0, 3)
	if e.Group == "" {
		return path
	}

	path = append(path, e.Group)

	if e.BatchIndex >= 0 && e.BatchCount > 0 {
		path = append(path, BatchLabel(e.BatchIndex, e.BatchCount))
	}

	if e.Stage != "" {
		path = append(path, e.Stage)
	}

	return path
}

// EventType represents the type of progress event.
type EventType int

const (
	// EventRunStarted is the first event of a run.
	EventRunStarted EventType = iota
	// EventGroupEntered indicates the group-entry hook succeeded and batches will follow.
	EventGroupEntered
	// EventGroupSkipped indicates the group-entry hook failed and the group's batches are skipped.
	EventGroupSkipped
	// EventBatchStarted indicates a batch is about to run its pre stage.
	EventBatchStarted
	// EventStageCompleted indicates a single hook or the action finished.
	EventStageCompleted
	// EventBatchCompleted indicates a batch finished, successfully or not.
	EventBatchCompleted
	// EventBatchSkipped indicates a batch was not run.
	EventBatchSkipped
	// EventSleeping indicates the grace sleep between batches has begun.
	EventSleeping
	// EventRunCompleted is the last event of a run.
	EventRunCompleted
)

// String implements the Stringer interface for EventType.
func (et EventType) String() string {
	switch et {
	case EventRunStarted:
		return "run-started"
	case EventGroupEntered:
		return "group-entered"
	case EventGroupSkipped:
		return "group-skipped"
	case EventBatchStarted:
		return "batch-started"
	case EventStageCompleted:
		return "stage-completed"
	case EventBatchCompleted:
		return "batch-completed"
	case EventBatchSkipped:
		return "batch-skipped"
	case EventSleeping:
		return "sleeping"
	case EventRunCompleted:
		return "run-completed"
	default:
		return "unknown"
	}
}

// BatchLabel formats a zero-based batch index as a one-based "batch i/n" label.
func BatchLabel(index, count int) string {
	return "batch " + strconv.Itoa(index+1) + "/" + strconv.Itoa(count)
}

// Reporter is the interface for sending progress events.
type Reporter interface {
	// Report sends a progress event. Implementations must not block the orchestrator.
	Report(event Event)
	// Close signals that no more events will be sent and cleans up resources.
	Close()
}

// Listener receives progress events.
// TUI implementations and other monitoring systems implement this interface.
type Listener interface {
	// OnEvent is called when a progress event is received.
	OnEvent(event Event)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(Event)

// OnEvent calls f(event).
func (f ListenerFunc) OnEvent(event Event) {
	f(event)
}

// NullReporter is a no-op implementation of Reporter.
type NullReporter struct{}

// Report implements Reporter.Report by doing nothing.
func (nr *NullReporter) Report(Event) {}

// Close implements Reporter.Close by doing nothing.
func (nr *NullReporter) Close() {}

// NewNullReporter creates a new NullReporter.
func NewNullReporter() Reporter {
	return &NullReporter{}
}
