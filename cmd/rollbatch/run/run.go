// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package run

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/matt-FFFFFF/rollbatch/cmd/cmdstate"
	"github.com/matt-FFFFFF/rollbatch/cmd/target"
	"github.com/matt-FFFFFF/rollbatch/internal/color"
	"github.com/matt-FFFFFF/rollbatch/internal/cookbook"
	"github.com/matt-FFFFFF/rollbatch/internal/ctxlog"
	"github.com/matt-FFFFFF/rollbatch/internal/hostgroup"
	"github.com/matt-FFFFFF/rollbatch/internal/prompt"
	"github.com/matt-FFFFFF/rollbatch/internal/remote"
	"github.com/matt-FFFFFF/rollbatch/internal/runbatch"
	"github.com/matt-FFFFFF/rollbatch/internal/tui"
	"github.com/urfave/cli/v3"
)

const (
	graceSleepFlag           = "grace-sleep"
	maxFailedFlag            = "max-failed"
	onPreFailureFlag         = "on-pre-failure"
	ignoreRestartErrorsFlag  = "ignore-restart-errors"
	dryRunFlag               = "dry-run"
	reasonFlag               = "reason"
	taskIDFlag               = "task-id"
	sshUserFlag              = "ssh-user"
	sshKeyFlag               = "ssh-key"
	sshPortFlag              = "ssh-port"
	knownHostsFlag           = "known-hosts"
	insecureHostKeyFlag      = "insecure-ignore-host-key"
	parallelismFlag          = "parallelism"
	connectTimeoutFlag       = "connect-timeout"
	tuiFlag                  = "tui"
	yesFlag                  = "yes"
	outputFlag               = "output"
	outFlag                  = "out"
	outputSuccessDetailsFlag = "output-success-details"

	outputText = "text"
	outputJSON = "json"
)

// ErrOutputFormat is returned for an unknown --output value.
var ErrOutputFormat = errors.New("output format must be text or json")

var (
	// NewTransport opens the remote transport of a run that changes hosts.
	NewTransport = func(cfg remote.SSHConfig) (remote.Transport, error) {
		return remote.NewSSH(cfg)
	}
	// Confirm asks the operator to approve the plan written in summary.
	Confirm = prompt.ConfirmTerminal
	// Sleeper is passed to the orchestrator and the actions; nil uses runbatch.Sleep.
	Sleeper runbatch.Sleeper
	// CreateFile opens the --out file for writing.
	CreateFile = func(name string) (io.WriteCloser, error) {
		return os.Create(name)
	}
)

// NewCommand returns the command that rolls an action over the selected hosts.
func NewCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run a cookbook action over the selected hosts, batch by batch",
		Description: `Run resolves the hosts selected by --alias and --query from the cookbook inventory,
splits every host group into batches and runs the action on one batch at a time:
pre scripts, then the action, then post scripts, with a grace sleep between batches.

The action is the positional argument. It may be omitted when the cookbook declares a single valid action.
The exit code is the worst status of the run; configuration errors exit with 2.

Send SIGINT or SIGTERM once to stop after the current batch, twice to interrupt it.`,
		Arguments: []cli.Argument{
			target.ActionArgument(),
		},
		Flags: append(target.Flags(),
			&cli.DurationFlag{
				Name:     graceSleepFlag,
				Usage:    "Sleep between batches. Overrides the cookbook grace_sleep.",
				OnlyOnce: true,
			},
			&cli.IntFlag{
				Name:     maxFailedFlag,
				Usage:    "Stop after this many failed batches, 0 for no limit. Overrides the cookbook max_failed.",
				OnlyOnce: true,
			},
			&cli.StringFlag{
				Name:     onPreFailureFlag,
				Usage:    "What a failing pre script aborts: abort-batch or abort-run",
				OnlyOnce: true,
			},
			&cli.BoolFlag{
				Name:     ignoreRestartErrorsFlag,
				Usage:    "Only restart daemons that are running and ignore restart failures",
				OnlyOnce: true,
			},
			&cli.BoolFlag{
				Name:     dryRunFlag,
				Aliases:  []string{"n"},
				Usage:    "Log what would be done without contacting any host",
				OnlyOnce: true,
			},
			&cli.StringFlag{
				Name:     reasonFlag,
				Aliases:  []string{"r"},
				Usage:    "Administrative reason for the run, required unless --dry-run",
				OnlyOnce: true,
			},
			&cli.StringFlag{
				Name:     taskIDFlag,
				Aliases:  []string{"t"},
				Usage:    "Task tracker id appended to the reason",
				OnlyOnce: true,
			},
			&cli.StringFlag{
				Name:     sshUserFlag,
				Usage:    "SSH user. Defaults to $USER.",
				Sources:  cli.EnvVars("ROLLBATCH_SSH_USER"),
				OnlyOnce: true,
			},
			&cli.StringFlag{
				Name:      sshKeyFlag,
				Usage:     "SSH private key file. The SSH agent is used as well when SSH_AUTH_SOCK is set.",
				Sources:   cli.EnvVars("ROLLBATCH_SSH_KEY"),
				TakesFile: true,
				OnlyOnce:  true,
			},
			&cli.IntFlag{
				Name:     sshPortFlag,
				Usage:    "SSH port",
				Value:    remote.DefaultPort,
				OnlyOnce: true,
			},
			&cli.StringFlag{
				Name:      knownHostsFlag,
				Usage:     "known_hosts file. Defaults to ~/.ssh/known_hosts.",
				TakesFile: true,
				OnlyOnce:  true,
			},
			&cli.BoolFlag{
				Name:     insecureHostKeyFlag,
				Usage:    "Do not check host keys",
				OnlyOnce: true,
			},
			&cli.IntFlag{
				Name:     parallelismFlag,
				Aliases:  []string{"p"},
				Usage:    "Maximum number of hosts of a batch contacted at once",
				Value:    remote.DefaultParallelism,
				OnlyOnce: true,
			},
			&cli.DurationFlag{
				Name:     connectTimeoutFlag,
				Usage:    "SSH connection timeout",
				Value:    remote.DefaultConnectTimeout,
				OnlyOnce: true,
			},
			&cli.BoolFlag{
				Name:     tuiFlag,
				Aliases:  []string{"interactive"},
				Usage:    "Run with interactive Terminal User Interface (TUI) showing real-time progress",
				OnlyOnce: true,
			},
			&cli.BoolFlag{
				Name:     yesFlag,
				Aliases:  []string{"y"},
				Usage:    "Do not ask for confirmation before starting",
				OnlyOnce: true,
			},
			&cli.StringFlag{
				Name:     outputFlag,
				Aliases:  []string{"o"},
				Usage:    "Result format: text or json",
				Value:    outputText,
				OnlyOnce: true,
			},
			&cli.StringFlag{
				Name:      outFlag,
				Usage:     "Also write the result as JSON to this file",
				TakesFile: true,
				OnlyOnce:  true,
			},
			&cli.BoolFlag{
				Name:     outputSuccessDetailsFlag,
				Aliases:  []string{"success"},
				Usage:    "Include the messages of successful steps in the text result",
				OnlyOnce: true,
			},
		),
		Action: actionFunc,
	}
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	logger := ctxlog.Logger(ctx).With("command", cmd.Name)
	logger.Debug("Running run command")

	format := strings.ToLower(cmd.String(outputFlag))
	if format != outputText && format != outputJSON {
		return cmdstate.Exit(runbatch.NewConfigurationError(fmt.Errorf("%w: %q", ErrOutputFormat, format)))
	}

	def, groups, err := target.Load(ctx, cmd)
	if err != nil {
		return cmdstate.Exit(err)
	}

	ov := overrides(cmd)

	tr, err := transport(cmd, ov.DryRun)
	if err != nil {
		return cmdstate.Exit(err)
	}

	defer tr.Close() //nolint:errcheck

	var runner *tui.Runner

	deps := cookbook.Deps{Executor: tr, Uploader: tr, Sleeper: Sleeper}

	if cmd.Bool(tuiFlag) {
		runner = tui.NewRunner()
		deps.Reporter = runner.Reporter()
	}

	orch, err := def.Build(ctx, ov, deps)
	if err != nil {
		return cmdstate.Exit(err)
	}

	plan, err := orch.Plan(groups)
	if err != nil {
		return cmdstate.Exit(runbatch.NewConfigurationError(err))
	}

	if !ov.DryRun && !cmd.Bool(yesFlag) {
		var summary bytes.Buffer
		if err := target.WritePlan(&summary, def, orch.Config(), plan); err != nil {
			return cmdstate.Exit(err)
		}

		if err := Confirm(cmd.Root().ErrWriter, summary.String(), "Start the run?"); err != nil {
			logger.Warn("run not started", "error", err)
			return cli.Exit(err.Error(), runbatch.StatusFailure)
		}
	}

	drainer := cmdstate.DrainerFrom(ctx)
	drainer.Set(orch.Drain)

	defer drainer.Set(nil)

	res := execute(ctx, cmd, orch, groups, runner)

	if out := cmd.String(outFlag); out != "" {
		if err := writeFile(out, res); err != nil {
			logger.Error(fmt.Sprintf("Failed to write results to file %s: %s", out, err.Error()))
			return cli.Exit("", runbatch.StatusFailure)
		}

		logger.Info(fmt.Sprintf("Results written to %s", out))
	}

	if err := write(cmd, format, res); err != nil {
		logger.Error(fmt.Sprintf("Failed to write results: %s", err.Error()))
		return cli.Exit("", runbatch.StatusFailure)
	}

	if res.Status != runbatch.StatusSuccess {
		return cli.Exit("", res.Status)
	}

	return nil
}

func overrides(cmd *cli.Command) cookbook.Overrides {
	ov := cookbook.Overrides{
		Action:              cmd.StringArg(target.ActionArg),
		BatchSize:           cmd.Int(target.BatchSizeFlag),
		OnPreFailure:        cmd.String(onPreFailureFlag),
		IgnoreRestartErrors: cmd.Bool(ignoreRestartErrorsFlag),
		DryRun:              cmd.Bool(dryRunFlag),
		Reason:              cmd.String(reasonFlag),
		TaskID:              cmd.String(taskIDFlag),
	}

	if cmd.IsSet(graceSleepFlag) {
		d := cmd.Duration(graceSleepFlag)
		ov.GraceSleep = &d
	}

	if cmd.IsSet(maxFailedFlag) {
		n := cmd.Int(maxFailedFlag)
		ov.MaxFailed = &n
	}

	return ov
}

// transport returns the SSH transport, or an offline one for dry runs.
func transport(cmd *cli.Command, dryRun bool) (remote.Transport, error) {
	if dryRun {
		return remote.Offline{}, nil
	}

	tr, err := NewTransport(remote.SSHConfig{
		User:                  cmd.String(sshUserFlag),
		Port:                  cmd.Int(sshPortFlag),
		KeyFile:               cmd.String(sshKeyFlag),
		KnownHostsFile:        cmd.String(knownHostsFlag),
		InsecureIgnoreHostKey: cmd.Bool(insecureHostKeyFlag),
		Parallelism:           cmd.Int(parallelismFlag),
		ConnectTimeout:        cmd.Duration(connectTimeoutFlag),
	})
	if err != nil {
		return nil, runbatch.NewConfigurationError(err)
	}

	return tr, nil
}

func execute(
	ctx context.Context, cmd *cli.Command, orch *runbatch.Orchestrator, groups []hostgroup.HostGroup, runner *tui.Runner,
) *runbatch.RunResult {
	if runner == nil {
		return orch.Run(ctx, groups)
	}

	logger := ctxlog.Logger(ctx)
	logger.Info("Starting interactive TUI mode...")

	buf := new(bytes.Buffer)
	tuiCtx := ctxlog.NewForTUI(ctx, buf)

	res, err := runner.Run(func() *runbatch.RunResult {
		return orch.Run(tuiCtx, groups)
	}, orch.Drain)

	buf.WriteTo(cmd.Root().ErrWriter) //nolint:errcheck

	if err != nil {
		logger.Error(fmt.Sprintf("TUI execution error: %s", err.Error()), "error", err.Error())
	}

	return res
}

func write(cmd *cli.Command, format string, res *runbatch.RunResult) error {
	if format == outputJSON {
		return res.WriteJSON(cmd.Root().Writer)
	}

	opts := runbatch.DefaultOutputOptions()
	opts.ShowSuccessDetails = cmd.Bool(outputSuccessDetailsFlag)

	return res.WriteText(cmd.Root().Writer, opts)
}

// writeFile writes res as uncoloured JSON to name.
func writeFile(name string, res *runbatch.RunResult) error {
	f, err := CreateFile(name)
	if err != nil {
		return err
	}

	prev := color.SetEnabled(false)
	defer color.SetEnabled(prev)

	if err := res.WriteJSON(f); err != nil {
		f.Close() //nolint:errcheck
		return err
	}

	return f.Close()
}
