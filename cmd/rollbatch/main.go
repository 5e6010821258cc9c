// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main contains the rollbatch command-line interface (CLI).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/matt-FFFFFF/rollbatch"
	"github.com/matt-FFFFFF/rollbatch/cmd/cmdstate"
	"github.com/matt-FFFFFF/rollbatch/cmd/rollbatch/example"
	"github.com/matt-FFFFFF/rollbatch/cmd/rollbatch/run"
	"github.com/matt-FFFFFF/rollbatch/cmd/rollbatch/show"
	"github.com/matt-FFFFFF/rollbatch/internal/ctxlog"
	"github.com/matt-FFFFFF/rollbatch/internal/signalbroker"
	"github.com/urfave/cli/v3"
)

const (
	verboseFlag   = "verbose"
	logFormatFlag = "log-format"
)

// newRootCmd returns the root command for the CLI.
func newRootCmd() *cli.Command {
	return &cli.Command{
		Commands: []*cli.Command{
			run.NewCommand(),
			show.NewCommand(),
			example.NewCommand(),
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  verboseFlag,
				Usage: "Log at debug level. Overrides " + ctxlog.LevelEnvName() + ".",
			},
			&cli.StringFlag{
				Name:  logFormatFlag,
				Usage: "Log format: pretty or json",
				Value: "pretty",
			},
		},
		Before:    before,
		Writer:    os.Stdout,
		ErrWriter: os.Stderr,
		Name:      "rollbatch",
		Description: `Rollbatch rolls an action such as a daemon restart or a reboot over a fleet of hosts,
a few hosts at a time. Every host group is split into batches; each batch runs the cookbook's
pre scripts, the action and the post scripts, and the run sleeps between batches.

Cookbooks are YAML or HCL files, fetched with Hashicorp's go-getter syntax.`,
		Usage:     "rollbatch run -f cookbook.yaml -a aqs --reason 'kernel upgrade' reboot",
		Copyright: "Copyright (c) matt-FFFFFF 2025. All rights reserved.",
		Authors: []any{
			"Matt White (matt-FFFFFF)",
		},
		EnableShellCompletion: true,
	}
}

// before applies the logging flags to the context logger.
func before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool(verboseFlag) {
		ctxlog.LevelVar.Set(slog.LevelDebug)
	}

	switch format := cmd.String(logFormatFlag); format {
	case "pretty", "":
		return ctx, nil
	case "json":
		return ctxlog.New(ctx, ctxlog.NewJSONLogger(cmd.ErrWriter)), nil
	default:
		return ctx, cli.Exit(fmt.Sprintf("Invalid log format: %s. Valid formats: pretty, json", format), 2)
	}
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	ctx = ctxlog.New(ctx, ctxlog.DefaultLogger)
	defer cancel()

	drainer := &cmdstate.Drainer{}
	ctx = cmdstate.WithDrainer(ctx, drainer)

	sigCh := signalbroker.New(ctx)

	go signalbroker.Watch(ctx, sigCh, drainer.Drain, cancel)

	rootCmd := newRootCmd()
	rootCmd.Version = fmt.Sprintf("%s (commit: %s)", rollbatch.Version, rollbatch.Commit)

	// Exit codes from cli.Exit are handled by the cli framework
	err := rootCmd.Run(ctx, os.Args)
	if err != nil {
		ctxlog.Logger(ctx).Error("command execution failed", "error", err)
		os.Exit(1)
	}
}
