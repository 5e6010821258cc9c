// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package actions

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/matt-FFFFFF/rollbatch/internal/ctxlog"
	"github.com/matt-FFFFFF/rollbatch/internal/remote"
	"github.com/matt-FFFFFF/rollbatch/internal/runbatch"
)

const (
	bootIDCommand = "cat /proc/sys/kernel/random/boot_id"
	rebootCommand = "nohup sh -c 'sleep 1; " + systemctl + " reboot' >/dev/null 2>&1 &"
)

// Reboot reboots the batch and waits until every host reports a new boot id.
func (h *Handlers) Reboot(ctx context.Context, req runbatch.Request) (runbatch.Outcome, error) {
	hosts := req.Batch.Hosts

	if req.DryRun {
		ctxlog.Info(ctx, "dry-run: would reboot hosts", "hosts", hosts, "reason", req.Reason)
		return runbatch.Success("dry-run: reboot"), nil
	}

	before, err := h.bootIDs(ctx, hosts)
	if err != nil {
		return runbatch.Outcome{}, fmt.Errorf("could not read boot id: %w", err)
	}

	ctxlog.Info(ctx, "rebooting hosts", "hosts", hosts, "reason", req.Reason)

	if results, err := h.exec.Run(ctx, hosts, rebootCommand); err != nil {
		return runbatch.Outcome{Status: remote.ExitCode(results)}, fmt.Errorf("could not reboot: %w", err)
	}

	if err := h.waitReboot(ctx, hosts, before); err != nil {
		return runbatch.Outcome{}, err
	}

	return runbatch.Success(fmt.Sprintf("rebooted %d hosts", len(hosts))), nil
}

// bootIDs reads the current boot id of every host.
func (h *Handlers) bootIDs(ctx context.Context, hosts []string) (map[string]string, error) {
	results, err := h.exec.Run(ctx, hosts, bootIDCommand)
	if err != nil {
		return nil, err
	}

	ids := make(map[string]string, len(results))

	for _, r := range results {
		ids[r.Host] = strings.TrimSpace(string(r.Stdout))
	}

	return ids, nil
}

// waitReboot polls the pending hosts until each reports a boot id different from before.
// Hosts that cannot be reached yet are still rebooting.
func (h *Handlers) waitReboot(ctx context.Context, hosts []string, before map[string]string) error {
	wctx, cancel := context.WithTimeout(ctx, h.settings.RebootTimeout)
	defer cancel()

	pending := slices.Clone(hosts)

	for len(pending) > 0 {
		if err := h.settings.Sleeper(wctx, h.settings.RebootPoll); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			return fmt.Errorf("%w within %s: %s", ErrRebootTimeout, h.settings.RebootTimeout, strings.Join(pending, ", "))
		}

		results, err := h.exec.Run(wctx, pending, bootIDCommand)
		if err != nil {
			ctxlog.Debug(ctx, "hosts not reachable yet", "error", err.Error())
		}

		var still []string

		for _, r := range results {
			id := strings.TrimSpace(string(r.Stdout))
			if !r.OK() || id == "" || id == before[r.Host] {
				still = append(still, r.Host)
				continue
			}

			ctxlog.Debug(ctx, "host is back", "host", r.Host, "boot_id", id)
		}

		pending = still
	}

	return nil
}
