// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package actions

import (
	"context"
	"strconv"
	"strings"

	"github.com/matt-FFFFFF/rollbatch/internal/hostgroup"
	"github.com/matt-FFFFFF/rollbatch/internal/remote"
	"github.com/matt-FFFFFF/rollbatch/internal/runbatch"
)

// GroupEntry runs commands once per group before its first batch.
// Commands may use the placeholders {group}, {group_index}, {batches} and {hosts}.
// When Hosts is empty the commands run on every host of the group.
type GroupEntry struct {
	Hosts    []string
	Commands []string
}

// Func returns the group-entry hook, or nil when there is nothing to run.
func (g GroupEntry) Func(exec remote.Executor, dryRun bool, reason string) runbatch.GroupEntryFunc {
	if len(g.Commands) == 0 {
		return nil
	}

	return func(ctx context.Context, group hostgroup.HostGroup, groupIndex, batchCount int) (runbatch.Outcome, error) {
		hosts := g.Hosts
		if len(hosts) == 0 {
			hosts = group.Hosts()
		}

		r := strings.NewReplacer(
			"{group}", group.Name(),
			"{group_index}", strconv.Itoa(groupIndex),
			"{batches}", strconv.Itoa(batchCount),
			"{hosts}", strings.Join(group.Hosts(), ","),
		)

		cmds := make([]string, len(g.Commands))
		for i, c := range g.Commands {
			cmds[i] = r.Replace(c)
		}

		req := runbatch.Request{
			Batch:  hostgroup.Batch{Group: group.Name(), GroupIndex: groupIndex, Index: -1, Count: batchCount, Hosts: hosts},
			DryRun: dryRun,
			Reason: reason,
		}

		return run(ctx, exec, req, hosts, cmds...)
	}
}
