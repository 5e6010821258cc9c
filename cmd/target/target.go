// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package target holds the flags and loading shared by the subcommands that
// select hosts from a cookbook inventory.
package target

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/matt-FFFFFF/rollbatch/internal/color"
	"github.com/matt-FFFFFF/rollbatch/internal/cookbook"
	"github.com/matt-FFFFFF/rollbatch/internal/ctxlog"
	"github.com/matt-FFFFFF/rollbatch/internal/hostgroup"
	"github.com/matt-FFFFFF/rollbatch/internal/inventory"
	"github.com/matt-FFFFFF/rollbatch/internal/progress"
	"github.com/matt-FFFFFF/rollbatch/internal/runbatch"
	"github.com/urfave/cli/v3"
)

const (
	CookbookFlag  = "cookbook"
	AliasFlag     = "alias"
	QueryFlag     = "query"
	ActionArg     = "action"
	BatchSizeFlag = "batchsize"
)

// ErrNoCookbook is returned when no cookbook location is given.
var ErrNoCookbook = errors.New("a cookbook is required, use --cookbook or -f")

// Flags returns the cookbook and host selection flags.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    CookbookFlag,
			Aliases: []string{"f"},
			Usage: "URL of the YAML or HCL cookbook. " +
				"Supports Hashicorp's go-getter syntax for fetching files from various sources.",
			Sources:   cli.EnvVars("ROLLBATCH_COOKBOOK"),
			TakesFile: true,
			OnlyOnce:  true,
		},
		&cli.StringFlag{
			Name:     AliasFlag,
			Aliases:  []string{"a"},
			Usage:    "Inventory alias or group name to target",
			OnlyOnce: true,
		},
		&cli.StringFlag{
			Name:     QueryFlag,
			Aliases:  []string{"q"},
			Usage:    "Comma separated host name globs, narrows the alias when both are given",
			OnlyOnce: true,
		},
		&cli.IntFlag{
			Name:     BatchSizeFlag,
			Aliases:  []string{"b"},
			Usage:    "Number of hosts per batch. Defaults to the cookbook batch_default.",
			OnlyOnce: true,
		},
	}
}

// ActionArgument is the positional action argument.
func ActionArgument() cli.Argument {
	return &cli.StringArg{
		Name:      ActionArg,
		UsageText: "[ACTION]",
		Config: cli.StringConfig{
			TrimSpace: true,
		},
	}
}

// Load fetches the cookbook named by the flags and resolves the selected hosts.
// Every error is a *runbatch.ConfigurationError.
func Load(ctx context.Context, cmd *cli.Command) (*cookbook.Definition, []hostgroup.HostGroup, error) {
	url := cmd.String(CookbookFlag)
	if url == "" {
		return nil, nil, runbatch.NewConfigurationError(ErrNoCookbook)
	}

	def, err := cookbook.Load(ctx, url)
	if err != nil {
		return nil, nil, asConfigurationError(err)
	}

	resolver, err := def.Resolver()
	if err != nil {
		return nil, nil, err
	}

	sel := inventory.Selector{Alias: cmd.String(AliasFlag), Query: cmd.String(QueryFlag)}

	groups, err := resolver.Resolve(ctx, sel)
	if err != nil {
		return nil, nil, runbatch.NewConfigurationError(fmt.Errorf("%s: %w", sel, err))
	}

	ctxlog.Debug(ctx, "targets resolved", "cookbook", def.Name, "selector", sel.String(), "groups", len(groups))

	return def, groups, nil
}

func asConfigurationError(err error) error {
	if runbatch.IsConfigurationError(err) {
		return err
	}

	return runbatch.NewConfigurationError(err)
}

// WritePlan describes the batches a run would go through.
func WritePlan(w io.Writer, def *cookbook.Definition, cfg runbatch.Config, plan [][]hostgroup.Batch) error {
	sb := &strings.Builder{}

	fmt.Fprintf(sb, "%s %s\n", color.Colorize("Cookbook", color.Bold), def.Name)

	if def.Description != "" {
		fmt.Fprintf(sb, "  %s\n", def.Description)
	}

	fmt.Fprintf(sb, "  action: %s, batch size: %d, grace sleep: %s, on pre failure: %s\n",
		cfg.Action.Name, cfg.EffectiveBatchSize(), cfg.GraceSleep, cfg.PreFailurePolicy)

	if cfg.MaxFailedBatches > 0 {
		fmt.Fprintf(sb, "  stops after %d failed batches\n", cfg.MaxFailedBatches)
	}

	if cfg.Reason != "" {
		fmt.Fprintf(sb, "  reason: %s\n", cfg.Reason)
	}

	if cfg.DryRun {
		fmt.Fprintf(sb, "  %s\n", color.Colorize("dry-run: no host will be changed", color.FgYellow))
	}

	hosts, batches := 0, 0

	for _, group := range plan {
		if len(group) == 0 {
			continue
		}

		n := 0
		for _, b := range group {
			n += len(b.Hosts)
		}

		fmt.Fprintf(sb, "%s (%d hosts, %d batches)\n", color.Colorize(group[0].Group, color.Bold), n, len(group))

		for _, b := range group {
			fmt.Fprintf(sb, "  %s: %s\n", progress.BatchLabel(b.Index, b.Count), strings.Join(b.Hosts, ", "))
		}

		hosts += n
		batches += len(group)
	}

	fmt.Fprintf(sb, "Total: %d hosts in %d batches\n", hosts, batches)

	if _, err := io.WriteString(w, sb.String()); err != nil {
		return fmt.Errorf("failed to write plan: %w", err)
	}

	return nil
}
