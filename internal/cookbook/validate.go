// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package cookbook

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/matt-FFFFFF/rollbatch/internal/actions"
	"github.com/matt-FFFFFF/rollbatch/internal/runbatch"
)

// Defaults for fields a cookbook leaves empty.
const (
	DefaultGraceSleep    = time.Second
	DefaultMinGraceSleep = time.Second
)

var (
	// ErrNoName is returned when a cookbook has no name.
	ErrNoName = errors.New("cookbook has no name")
	// ErrNoValidActions is returned when valid_actions is empty.
	ErrNoValidActions = errors.New("valid_actions must list at least one action")
	// ErrInvalidDuration is returned for a duration that cannot be parsed or is negative.
	ErrInvalidDuration = errors.New("invalid duration")
	// ErrInvalidScript is returned for a malformed pre or post script.
	ErrInvalidScript = errors.New("invalid script")
	// ErrInvalidGroupEntry is returned for a group_entry without commands.
	ErrInvalidGroupEntry = errors.New("group_entry needs at least one command")
	// ErrInventoryConflict is returned when both inventory and inventory_file are set.
	ErrInventoryConflict = errors.New("inventory and inventory_file are mutually exclusive")
)

// settings are the typed values of a definition.
type settings struct {
	graceSleep    time.Duration
	minGraceSleep time.Duration
	rebootTimeout time.Duration
	depoolSleep   time.Duration
	repoolSleep   time.Duration
	policy        runbatch.PreFailurePolicy
}

// Validate checks the definition on its own, without command line overrides.
// All problems are reported together in one *runbatch.ConfigurationError.
func (d *Definition) Validate() error {
	_, err := d.parse()
	return err
}

func (d *Definition) parse() (settings, error) {
	var (
		s    settings
		errs []error
	)

	duration := func(field, value string, def time.Duration) time.Duration {
		v, err := parseDuration(value, def)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
		}

		return v
	}

	if strings.TrimSpace(d.Name) == "" {
		errs = append(errs, ErrNoName)
	}

	errs = append(errs, validateActions(d.ValidActions)...)
	errs = append(errs, d.validateActionSettings()...)

	s.graceSleep = duration("grace_sleep", d.GraceSleep, DefaultGraceSleep)
	s.minGraceSleep = duration("min_grace_sleep", d.MinGraceSleep, DefaultMinGraceSleep)
	s.rebootTimeout = duration("reboot_timeout", d.RebootTimeout, actions.DefaultRebootTimeout)

	policy, err := runbatch.NewPreFailurePolicy(d.OnPreFailure)
	if err != nil {
		errs = append(errs, fmt.Errorf("on_pre_failure: %w", err))
	}

	s.policy = policy

	if d.BatchDefault < 0 || d.BatchMax < 0 || d.MaxFailed < 0 {
		errs = append(errs, fmt.Errorf("%w: batch_default, batch_max and max_failed must not be negative", runbatch.ErrInvalidBatchSize))
	}

	for i, sc := range d.PreScripts {
		errs = append(errs, validateScript("pre_scripts", i, sc)...)
	}

	for i, sc := range d.PostScripts {
		errs = append(errs, validateScript("post_scripts", i, sc)...)
	}

	if d.GroupEntry != nil && len(d.GroupEntry.Commands) == 0 {
		errs = append(errs, ErrInvalidGroupEntry)
	}

	if d.Pool != nil {
		s.depoolSleep = duration("pool.depool_sleep", d.Pool.DepoolSleep, actions.DefaultDepoolSleep)
		s.repoolSleep = duration("pool.repool_sleep", d.Pool.RepoolSleep, actions.DefaultRepoolSleep)

		if d.Pool.DepoolCommand == "" || d.Pool.RepoolCommand == "" {
			errs = append(errs, actions.ErrDepoolCommand)
		}
	}

	if d.Inventory != nil {
		if d.InventoryFile != "" {
			errs = append(errs, ErrInventoryConflict)
		}

		if err := d.Inventory.Validate(); err != nil {
			errs = append(errs, err)
		}
	}

	return s, validationError(errs)
}

func validationError(errs []error) error {
	merr := &multierror.Error{ErrorFormat: listFormat}

	for _, err := range errs {
		if err != nil {
			merr = multierror.Append(merr, err)
		}
	}

	return runbatch.NewConfigurationError(merr.ErrorOrNil())
}

func listFormat(es []error) string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}

	return strings.Join(msgs, "; ")
}

func validateActions(names []string) []error {
	if len(names) == 0 {
		return []error{ErrNoValidActions}
	}

	var errs []error

	for i, n := range names {
		if n == "" {
			errs = append(errs, fmt.Errorf("valid_actions[%d] is empty", i))
		}

		if slices.Index(names, n) != i {
			errs = append(errs, fmt.Errorf("valid_actions lists %q more than once", n))
		}
	}

	return errs
}

// validateActionSettings checks every declared built-in action has the settings it runs with.
func (d *Definition) validateActionSettings() []error {
	var errs []error

	if slices.Contains(d.ValidActions, string(actions.RestartDaemons)) && len(d.RestartDaemons) == 0 {
		errs = append(errs, fmt.Errorf("restart_daemons: %w", actions.ErrNoDaemons))
	}

	if slices.Contains(d.ValidActions, string(actions.RunCommand)) && strings.TrimSpace(d.RunCommand) == "" {
		errs = append(errs, fmt.Errorf("run_command: %w", actions.ErrNoRunCommand))
	}

	return errs
}

func validateScript(field string, i int, sc ScriptDefinition) []error {
	var errs []error

	where := fmt.Sprintf("%s[%d]", field, i)
	if sc.Name != "" {
		where += " (" + sc.Name + ")"
	}

	if sc.Command == "" && sc.Upload == nil {
		errs = append(errs, fmt.Errorf("%w: %s: %w", ErrInvalidScript, where, actions.ErrEmptyScript))
	}

	if u := sc.Upload; u != nil {
		if u.Path == "" {
			errs = append(errs, fmt.Errorf("%w: %s: upload needs a path", ErrInvalidScript, where))
		}

		if (u.Source == "") == (u.Content == "") {
			errs = append(errs, fmt.Errorf("%w: %s: upload needs exactly one of source or content", ErrInvalidScript, where))
		}

		if _, err := parseMode(u.Mode); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %w", ErrInvalidScript, where, err))
		}
	}

	return errs
}

// parseDuration accepts a time.ParseDuration string or a bare number of seconds.
func parseDuration(value string, def time.Duration) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return def, nil
	}

	if n, err := strconv.Atoi(value); err == nil {
		value = strconv.Itoa(n) + "s"
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return def, fmt.Errorf("%w: %q", ErrInvalidDuration, value)
	}

	if d < 0 {
		return def, fmt.Errorf("%w: %q is negative", ErrInvalidDuration, value)
	}

	return d, nil
}

func parseMode(mode string) (fs.FileMode, error) {
	if mode == "" {
		return actions.DefaultScriptMode, nil
	}

	m, err := strconv.ParseUint(mode, 8, 32)
	if err != nil || m > 0o777 {
		return 0, fmt.Errorf("invalid file mode %q", mode)
	}

	return fs.FileMode(m), nil
}
