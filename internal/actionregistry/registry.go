// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package actionregistry

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/hashicorp/go-multierror"
	"github.com/matt-FFFFFF/rollbatch/internal/runbatch"
)

var (
	// ErrDuplicateAction is returned when an action is registered twice.
	ErrDuplicateAction = errors.New("action registered more than once")
	// ErrInvalidRegistration is returned for an empty name or a nil handler.
	ErrInvalidRegistration = errors.New("invalid action registration")
)

// Action is the name of an action, e.g. "reboot".
type Action string

// Registration pairs an action name with its handler.
type Registration struct {
	Name    Action
	Handler runbatch.ActionFunc
}

// Register is a convenience constructor for Registration.
func Register(name Action, handler runbatch.ActionFunc) Registration {
	return Registration{Name: name, Handler: handler}
}

// Registry holds the mapping between action names and their handlers.
type Registry struct {
	handlers map[Action]runbatch.ActionFunc
}

// New builds a registry. Registering a name twice, an empty name or a nil handler is an error.
func New(registrations ...Registration) (*Registry, error) {
	r := &Registry{handlers: make(map[Action]runbatch.ActionFunc, len(registrations))}
	merr := &multierror.Error{}

	for _, reg := range registrations {
		switch {
		case reg.Name == "" || reg.Handler == nil:
			merr = multierror.Append(merr, fmt.Errorf("%w: %q", ErrInvalidRegistration, reg.Name))
		case r.has(reg.Name):
			merr = multierror.Append(merr, fmt.Errorf("%w: %q", ErrDuplicateAction, reg.Name))
		default:
			r.handlers[reg.Name] = reg.Handler
		}
	}

	if err := merr.ErrorOrNil(); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *Registry) has(name Action) bool {
	_, ok := r.handlers[name]
	return ok
}

// Names returns the registered action names, sorted.
func (r *Registry) Names() []Action {
	return slices.Sorted(maps.Keys(r.handlers))
}

// Resolve returns the handler for name.
// name must be in declared and registered, otherwise a *runbatch.ConfigurationError is returned.
func (r *Registry) Resolve(name Action, declared []Action) (runbatch.ActionFunc, error) {
	if !slices.Contains(declared, name) {
		return nil, runbatch.NewConfigurationError(
			fmt.Errorf("%w: %q, valid actions are %v", runbatch.ErrActionNotDeclared, name, declared),
		)
	}

	h, ok := r.handlers[name]
	if !ok {
		return nil, runbatch.NewConfigurationError(fmt.Errorf("%w: action %q", runbatch.ErrMissingHandler, name))
	}

	return h, nil
}

// Validate checks every declared action has a handler.
func (r *Registry) Validate(declared []Action) error {
	merr := &multierror.Error{}

	for _, name := range declared {
		if !r.has(name) {
			merr = multierror.Append(merr, fmt.Errorf("%w: action %q", runbatch.ErrMissingHandler, name))
		}
	}

	if err := merr.ErrorOrNil(); err != nil {
		return runbatch.NewConfigurationError(err)
	}

	return nil
}

// Actions converts names to Actions.
func Actions(names ...string) []Action {
	out := make([]Action, len(names))
	for i, n := range names {
		out[i] = Action(n)
	}

	return out
}
