// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package cookbook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/matt-FFFFFF/rollbatch/internal/actionregistry"
	"github.com/matt-FFFFFF/rollbatch/internal/actions"
	"github.com/matt-FFFFFF/rollbatch/internal/ctxlog"
	"github.com/matt-FFFFFF/rollbatch/internal/inventory"
	"github.com/matt-FFFFFF/rollbatch/internal/progress"
	"github.com/matt-FFFFFF/rollbatch/internal/remote"
	"github.com/matt-FFFFFF/rollbatch/internal/runbatch"
	"github.com/spf13/afero"
)

var (
	// ErrNoAction is returned when no action is given and the cookbook allows more than one.
	ErrNoAction = errors.New("an action is required when more than one action is valid")
	// ErrNoReason is returned when a run that changes hosts has no reason.
	ErrNoReason = errors.New("a reason is required")
	// ErrNoInventory is returned when the cookbook has neither inventory nor inventory_file.
	ErrNoInventory = errors.New("cookbook has no inventory")
)

// Overrides are command line values that take precedence over the cookbook.
// Zero values and nil pointers keep the cookbook value.
type Overrides struct {
	Action              string
	BatchSize           int
	GraceSleep          *time.Duration
	MaxFailed           *int
	OnPreFailure        string
	IgnoreRestartErrors bool
	DryRun              bool
	Reason              string
	TaskID              string
}

// Deps are the collaborators the assembled orchestrator talks to.
type Deps struct {
	Executor remote.Executor
	Uploader remote.Uploader   // may be nil when no script uploads
	Reporter progress.Reporter // may be nil
	Sleeper  runbatch.Sleeper  // may be nil
}

// ActionName returns requested, or the only valid action when requested is empty.
func (d *Definition) ActionName(requested string) (string, error) {
	if requested != "" {
		return requested, nil
	}

	if len(d.ValidActions) == 1 {
		return d.ValidActions[0], nil
	}

	return "", runbatch.NewConfigurationError(fmt.Errorf("%w: choose one of %v", ErrNoAction, d.ValidActions))
}

// Reason joins the administrative reason and the optional task id.
func Reason(reason, taskID string) string {
	if taskID == "" {
		return reason
	}

	return fmt.Sprintf("%s (%s)", reason, taskID)
}

// Build assembles an orchestrator from the definition and the overrides.
// Every error is a *runbatch.ConfigurationError and no host has been contacted when it is returned.
func (d *Definition) Build(ctx context.Context, ov Overrides, deps Deps) (*runbatch.Orchestrator, error) {
	s, err := d.parse()
	if err != nil {
		return nil, err
	}

	if ov.Reason == "" && !ov.DryRun {
		return nil, runbatch.NewConfigurationError(ErrNoReason)
	}

	name, err := d.ActionName(ov.Action)
	if err != nil {
		return nil, err
	}

	if ov.OnPreFailure != "" {
		if s.policy, err = runbatch.NewPreFailurePolicy(ov.OnPreFailure); err != nil {
			return nil, runbatch.NewConfigurationError(err)
		}
	}

	if ov.GraceSleep != nil {
		s.graceSleep = *ov.GraceSleep
	}

	maxFailed := d.MaxFailed
	if ov.MaxFailed != nil {
		maxFailed = *ov.MaxFailed
	}

	handlers := actions.New(deps.Executor, actions.Settings{
		RestartDaemons:      d.RestartDaemons,
		IgnoreRestartErrors: d.IgnoreRestartErrors || ov.IgnoreRestartErrors,
		RebootTimeout:       s.rebootTimeout,
		RunCommand:          d.RunCommand,
		Sleeper:             deps.Sleeper,
	})

	registry, err := actionregistry.New(handlers.Registrations()...)
	if err != nil {
		return nil, runbatch.NewConfigurationError(err)
	}

	declared := actionregistry.Actions(d.ValidActions...)

	if err := registry.Validate(declared); err != nil {
		return nil, err
	}

	handler, err := registry.Resolve(actionregistry.Action(name), declared)
	if err != nil {
		return nil, err
	}

	cfg := runbatch.Config{
		BatchSize:        ov.BatchSize,
		BatchDefault:     d.BatchDefault,
		BatchMax:         d.BatchMax,
		GraceSleep:       s.graceSleep,
		MinGraceSleep:    s.minGraceSleep,
		DryRun:           ov.DryRun,
		Reason:           Reason(ov.Reason, ov.TaskID),
		PreFailurePolicy: s.policy,
		MaxFailedBatches: maxFailed,
		Reporter:         deps.Reporter,
		Sleeper:          deps.Sleeper,
	}

	if d.Pool != nil {
		pool := actions.Pool{
			DepoolCommand:   d.Pool.DepoolCommand,
			RepoolCommand:   d.Pool.RepoolCommand,
			DepoolSleep:     s.depoolSleep,
			RepoolSleep:     s.repoolSleep,
			DepoolThreshold: d.Pool.DepoolThreshold,
			Sleeper:         deps.Sleeper,
		}

		if err := pool.Validate(effectiveBatchSize(cfg)); err != nil {
			return nil, err
		}

		handler = pool.Wrap(deps.Executor, handler)
	}

	cfg.Action = runbatch.Action{Name: name, Run: handler}

	if cfg.Pre, err = d.hooks(deps, d.PreScripts); err != nil {
		return nil, err
	}

	if cfg.Post, err = d.hooks(deps, d.PostScripts); err != nil {
		return nil, err
	}

	if d.GroupEntry != nil {
		ge := actions.GroupEntry{Hosts: d.GroupEntry.Hosts, Commands: d.GroupEntry.Commands}
		cfg.GroupEntry = ge.Func(deps.Executor, ov.DryRun, cfg.Reason)
	}

	ctxlog.Debug(ctx, "cookbook assembled",
		"cookbook", d.Name,
		"action", name,
		"batch_size", effectiveBatchSize(cfg),
		"grace_sleep", s.graceSleep.String(),
		"on_pre_failure", s.policy.String(),
	)

	return runbatch.New(cfg)
}

func effectiveBatchSize(cfg runbatch.Config) int {
	if cfg.BatchDefault == 0 {
		cfg.BatchDefault = runbatch.DefaultBatchDefault
	}

	return cfg.EffectiveBatchSize()
}

func (d *Definition) hooks(deps Deps, defs []ScriptDefinition) ([]runbatch.Hook, error) {
	scripts := make([]actions.Script, len(defs))

	for i, def := range defs {
		sc := actions.Script{Name: def.Name, Command: def.Command}

		if u := def.Upload; u != nil {
			content := []byte(u.Content)

			if u.Source != "" {
				data, err := afero.ReadFile(FsFactory(), u.Source)
				if err != nil {
					return nil, runbatch.NewConfigurationError(fmt.Errorf("%w: %s: %w", ErrInvalidScript, u.Source, err))
				}

				content = data
			}

			mode, err := parseMode(u.Mode)
			if err != nil {
				return nil, runbatch.NewConfigurationError(fmt.Errorf("%w: %w", ErrInvalidScript, err))
			}

			sc.Upload = &actions.Upload{Content: content, Path: u.Path, Mode: mode}
		}

		scripts[i] = sc
	}

	return actions.Hooks(deps.Executor, deps.Uploader, scripts...), nil
}

// Resolver returns the inventory resolver of the cookbook, loading inventory_file when set.
func (d *Definition) Resolver() (*inventory.Static, error) {
	var inv inventory.Inventory

	switch {
	case d.Inventory != nil:
		inv = *d.Inventory
	case d.InventoryFile != "":
		loaded, err := inventory.Load(d.InventoryFile)
		if err != nil {
			return nil, runbatch.NewConfigurationError(err)
		}

		inv = loaded
	}

	if inv.IsEmpty() {
		return nil, runbatch.NewConfigurationError(ErrNoInventory)
	}

	r, err := inventory.NewStatic(inv, d.AllowedAliases)
	if err != nil {
		return nil, runbatch.NewConfigurationError(err)
	}

	return r, nil
}
