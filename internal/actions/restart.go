// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package actions

import (
	"context"
	"strings"

	"github.com/matt-FFFFFF/rollbatch/internal/runbatch"
)

// RestartDaemons restarts the configured daemons on the batch.
// With IgnoreRestartErrors only active daemons are restarted and failures are ignored.
func (h *Handlers) RestartDaemons(ctx context.Context, req runbatch.Request) (runbatch.Outcome, error) {
	if len(h.settings.RestartDaemons) == 0 {
		return runbatch.Outcome{}, ErrNoDaemons
	}

	return run(ctx, h.exec, req, req.Batch.Hosts, restartCommands(h.settings.RestartDaemons, h.settings.IgnoreRestartErrors)...)
}

func restartCommands(daemons []string, ignoreErrors bool) []string {
	if !ignoreErrors {
		return []string{systemctl + " restart " + strings.Join(daemons, " ")}
	}

	cmds := make([]string, len(daemons))

	for i, d := range daemons {
		cmds[i] = systemctl + " --quiet is-active " + d + " && " + systemctl + " restart " + d + " || /bin/true"
	}

	return cmds
}

// RunCommand runs the configured command on the batch.
func (h *Handlers) RunCommand(ctx context.Context, req runbatch.Request) (runbatch.Outcome, error) {
	if strings.TrimSpace(h.settings.RunCommand) == "" {
		return runbatch.Outcome{}, ErrNoRunCommand
	}

	return run(ctx, h.exec, req, req.Batch.Hosts, h.settings.RunCommand)
}
