// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package signalbroker

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startWatch(ctx context.Context, sigCh chan os.Signal, drain func(), cancel context.CancelFunc) *sync.WaitGroup {
	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()
		Watch(ctx, sigCh, drain, cancel)
	}()

	return &wg
}

func TestWatch_FirstSignalDrains(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var drains atomic.Int32

	sigCh := make(chan os.Signal, 1)
	wg := startWatch(ctx, sigCh, func() { drains.Add(1) }, cancel)

	sigCh <- os.Interrupt

	assert.Eventually(t, func() bool { return drains.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.NoError(t, ctx.Err(), "context should not be cancelled after first signal")

	close(sigCh)
	wg.Wait()
}

func TestWatch_SecondSignalCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var drains atomic.Int32

	sigCh := make(chan os.Signal, 2)
	wg := startWatch(ctx, sigCh, func() { drains.Add(1) }, cancel)

	sigCh <- os.Interrupt
	sigCh <- os.Interrupt

	wg.Wait()
	assert.Error(t, ctx.Err())
	assert.Equal(t, int32(1), drains.Load())
}

func TestWatch_DifferentSignalsDrainOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var drains atomic.Int32

	sigCh := make(chan os.Signal, 2)
	wg := startWatch(ctx, sigCh, func() { drains.Add(1) }, cancel)

	sigCh <- os.Interrupt
	sigCh <- syscall.SIGTERM

	time.Sleep(50 * time.Millisecond)
	assert.NoError(t, ctx.Err(), "context should not be cancelled for different signals")
	assert.Equal(t, int32(1), drains.Load())

	close(sigCh)
	wg.Wait()
}

func TestWatch_NilDrain(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 2)
	wg := startWatch(ctx, sigCh, nil, cancel)

	sigCh <- os.Interrupt
	sigCh <- os.Interrupt

	wg.Wait()
	assert.Error(t, ctx.Err())
}

func TestWatch_ReturnsOnContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal)
	wg := startWatch(ctx, sigCh, nil, cancel)

	cancel()
	wg.Wait()
}
