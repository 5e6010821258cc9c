// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package actions

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/matt-FFFFFF/rollbatch/internal/actionregistry"
	"github.com/matt-FFFFFF/rollbatch/internal/ctxlog"
	"github.com/matt-FFFFFF/rollbatch/internal/remote"
	"github.com/matt-FFFFFF/rollbatch/internal/runbatch"
)

// Names of the built-in actions.
const (
	Reboot         actionregistry.Action = "reboot"
	RestartDaemons actionregistry.Action = "restart_daemons"
	RunCommand     actionregistry.Action = "run_command"
)

const (
	// DefaultRebootTimeout bounds how long reboot waits for hosts to come back.
	DefaultRebootTimeout = 30 * time.Minute
	// DefaultRebootPoll is the interval between boot id checks.
	DefaultRebootPoll = 10 * time.Second

	systemctl = "/bin/systemctl"
)

var (
	// ErrNoDaemons is returned by restart_daemons when no daemon is configured.
	ErrNoDaemons = errors.New("no daemons configured to restart")
	// ErrNoRunCommand is returned by run_command when no command is configured.
	ErrNoRunCommand = errors.New("no command configured for run_command")
	// ErrRebootTimeout is returned when hosts do not report a new boot id in time.
	ErrRebootTimeout = errors.New("hosts did not come back after reboot")
)

// Settings holds the cookbook values the built-in actions need.
type Settings struct {
	RestartDaemons      []string
	IgnoreRestartErrors bool
	RebootTimeout       time.Duration
	RebootPoll          time.Duration
	RunCommand          string
	Sleeper             runbatch.Sleeper
}

// Handlers implements the built-in actions on top of an executor.
type Handlers struct {
	exec     remote.Executor
	settings Settings
}

// New returns Handlers. Zero durations and a nil sleeper get defaults.
func New(exec remote.Executor, settings Settings) *Handlers {
	if settings.RebootTimeout <= 0 {
		settings.RebootTimeout = DefaultRebootTimeout
	}

	if settings.RebootPoll <= 0 {
		settings.RebootPoll = DefaultRebootPoll
	}

	if settings.Sleeper == nil {
		settings.Sleeper = runbatch.Sleep
	}

	return &Handlers{exec: exec, settings: settings}
}

// Registrations returns the registry entries for every built-in action.
func (h *Handlers) Registrations() []actionregistry.Registration {
	return []actionregistry.Registration{
		actionregistry.Register(Reboot, h.Reboot),
		actionregistry.Register(RestartDaemons, h.RestartDaemons),
		actionregistry.Register(RunCommand, h.RunCommand),
	}
}

// run executes commands on the batch hosts, or only logs them in dry-run mode.
func run(ctx context.Context, exec remote.Executor, req runbatch.Request, hosts []string, commands ...string) (runbatch.Outcome, error) {
	if req.DryRun {
		ctxlog.Info(ctx, "dry-run: would run commands",
			"hosts", hosts,
			"commands", commands,
		)

		return runbatch.Success("dry-run: " + strings.Join(commands, "; ")), nil
	}

	ctxlog.Debug(ctx, "running commands", "hosts", hosts, "commands", commands)

	results, err := exec.Run(ctx, hosts, commands...)
	if err != nil {
		return runbatch.Outcome{Status: remote.ExitCode(results)}, err
	}

	return runbatch.Success(strings.Join(commands, "; ")), nil
}

// sleep waits d, or only logs it in dry-run mode.
func sleep(ctx context.Context, s runbatch.Sleeper, dryRun bool, what string, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	if dryRun {
		ctxlog.Info(ctx, "dry-run: would have slept", "for", what, "duration", d.String())
		return nil
	}

	ctxlog.Info(ctx, "sleeping", "for", what, "duration", d.String())

	return s(ctx, d)
}
