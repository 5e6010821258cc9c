// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package show

import (
	"context"

	"github.com/matt-FFFFFF/rollbatch/cmd/cmdstate"
	"github.com/matt-FFFFFF/rollbatch/cmd/target"
	"github.com/matt-FFFFFF/rollbatch/internal/cookbook"
	"github.com/matt-FFFFFF/rollbatch/internal/remote"
	"github.com/matt-FFFFFF/rollbatch/internal/runbatch"
	"github.com/urfave/cli/v3"
)

// NewCommand returns the command that prints the batch plan of a run without contacting any host.
func NewCommand() *cli.Command {
	return &cli.Command{
		Name:  "show",
		Usage: "Show the batches a run would go through",
		Description: `Show loads and validates the cookbook, resolves the selected hosts and prints
the batches in the order a run would process them. No host is contacted.`,
		Arguments: []cli.Argument{
			target.ActionArgument(),
		},
		Flags:  target.Flags(),
		Action: actionFunc,
	}
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	def, groups, err := target.Load(ctx, cmd)
	if err != nil {
		return cmdstate.Exit(err)
	}

	ov := cookbook.Overrides{
		Action:    cmd.StringArg(target.ActionArg),
		BatchSize: cmd.Int(target.BatchSizeFlag),
		DryRun:    true,
	}

	orch, err := def.Build(ctx, ov, cookbook.Deps{Executor: remote.Offline{}, Uploader: remote.Offline{}})
	if err != nil {
		return cmdstate.Exit(err)
	}

	plan, err := orch.Plan(groups)
	if err != nil {
		return cmdstate.Exit(runbatch.NewConfigurationError(err))
	}

	cfg := orch.Config()
	cfg.DryRun = false

	return cmdstate.Exit(target.WritePlan(cmd.Root().Writer, def, cfg, plan))
}
