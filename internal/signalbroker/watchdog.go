// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package signalbroker

import (
	"context"
	"os"

	"github.com/matt-FFFFFF/rollbatch/internal/ctxlog"
)

// Watch monitors the signal channel until it is closed or ctx is done.
// The first signal received calls drain, which should let the in-flight batch finish
// and stop before the next one. The second signal of a given type calls cancel.
// drain may be nil.
func Watch(ctx context.Context, sigCh chan os.Signal, drain func(), cancel context.CancelFunc) {
	sigMap := make(map[os.Signal]struct{})
	drained := false

	for {
		var sig os.Signal

		select {
		case <-ctx.Done():
			return
		case s, ok := <-sigCh:
			if !ok {
				return
			}

			sig = s
		}

		if _, ok := sigMap[sig]; ok {
			ctxlog.Warn(ctx, "watchdog", "detail", "received second signal of type, cancelling in-flight batch", "signal", sig.String())
			cancel()

			return
		}

		sigMap[sig] = struct{}{}

		if drained {
			ctxlog.Info(ctx, "watchdog", "detail", "already draining", "signal", sig.String())
			continue
		}

		drained = true

		ctxlog.Warn(ctx, "watchdog", "detail", "received first signal, finishing current batch then stopping", "signal", sig.String())

		if drain != nil {
			drain()
		}
	}
}
