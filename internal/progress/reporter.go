// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package progress

import (
	"context"
	"sync"
)

var _ Reporter = (*ChannelReporter)(nil)

// ChannelReporter implements Reporter using a buffered channel.
// Report never blocks: when the buffer is full the event is dropped.
type ChannelReporter struct {
	ch     chan Event
	ctx    context.Context
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	once   sync.Once
}

// NewChannelReporter creates a new ChannelReporter with the specified buffer size.
// Events reported after ctx is done are dropped.
func NewChannelReporter(ctx context.Context, bufferSize int) *ChannelReporter {
	return &ChannelReporter{
		ch:  make(chan Event, bufferSize),
		ctx: ctx,
	}
}

// Report implements Reporter.Report.
func (cr *ChannelReporter) Report(event Event) {
	cr.mu.RLock()
	defer cr.mu.RUnlock()

	if cr.closed || cr.ctx.Err() != nil {
		return
	}

	select {
	case cr.ch <- event:
	default:
		// full, drop
	}
}

// Close implements Reporter.Close.
// It closes the channel and waits for listeners to consume what was buffered.
func (cr *ChannelReporter) Close() {
	cr.once.Do(func() {
		cr.mu.Lock()
		cr.closed = true
		close(cr.ch)
		cr.mu.Unlock()
		cr.wg.Wait()
	})
}

// Listen forwards events to listener on a new goroutine until the reporter is closed.
// Only one of Listen or Events should be used per reporter.
func (cr *ChannelReporter) Listen(listener Listener) {
	cr.wg.Add(1)

	go func() {
		defer cr.wg.Done()

		for event := range cr.ch {
			listener.OnEvent(event)
		}
	}()
}

// Events returns a read-only channel of progress events.
// Useful when you want to handle events manually instead of using a listener.
func (cr *ChannelReporter) Events() <-chan Event {
	return cr.ch
}

// MultiReporter fans each event out to several reporters.
type MultiReporter []Reporter

// Report implements Reporter.Report.
func (m MultiReporter) Report(event Event) {
	for _, r := range m {
		r.Report(event)
	}
}

// Close implements Reporter.Close.
func (m MultiReporter) Close() {
	for _, r := range m {
		r.Close()
	}
}
