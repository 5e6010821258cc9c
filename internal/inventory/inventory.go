// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package inventory resolves an alias and host query into ordered host groups.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"path"
	"slices"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/matt-FFFFFF/rollbatch/internal/ctxlog"
	"github.com/matt-FFFFFF/rollbatch/internal/hostgroup"
)

var (
	// ErrNoHosts is returned when a selector matches no host at all.
	ErrNoHosts = errors.New("selector matched no hosts")
	// ErrUnknownAlias is returned for an alias that names neither an alias nor a group.
	ErrUnknownAlias = errors.New("unknown alias")
	// ErrAliasNotAllowed is returned for an alias missing from the allowed aliases.
	ErrAliasNotAllowed = errors.New("alias is not allowed")
	// ErrEmptySelector is returned when neither alias nor query is given.
	ErrEmptySelector = errors.New("an alias or a query is required")
	// ErrInvalidQuery is returned for a malformed glob pattern.
	ErrInvalidQuery = errors.New("invalid host query")
	// ErrInvalidInventory is returned when the inventory is inconsistent.
	ErrInvalidInventory = errors.New("invalid inventory")
)

// Group is a named list of hosts.
type Group struct {
	Name  string   `yaml:"name" hcl:"name,label"`
	Hosts []string `yaml:"hosts" hcl:"hosts"`
}

// Inventory holds the known groups, in run order, and the aliases naming subsets of them.
type Inventory struct {
	Groups  []Group             `yaml:"groups" hcl:"group,block"`
	Aliases map[string][]string `yaml:"aliases" hcl:"aliases,optional"`
}

// IsEmpty reports whether the inventory has no group.
func (inv Inventory) IsEmpty() bool {
	return len(inv.Groups) == 0
}

// Validate checks group names are unique and non-empty, and that aliases only name known groups.
func (inv Inventory) Validate() error {
	var merr *multierror.Error

	seen := make(map[string]struct{}, len(inv.Groups))

	for i, g := range inv.Groups {
		if g.Name == "" {
			merr = multierror.Append(merr, fmt.Errorf("group %d has no name", i))
			continue
		}

		if _, ok := seen[g.Name]; ok {
			merr = multierror.Append(merr, fmt.Errorf("group %q defined more than once", g.Name))
		}

		seen[g.Name] = struct{}{}
	}

	for _, alias := range slices.Sorted(maps.Keys(inv.Aliases)) {
		if len(inv.Aliases[alias]) == 0 {
			merr = multierror.Append(merr, fmt.Errorf("alias %q names no group", alias))
		}

		for _, g := range inv.Aliases[alias] {
			if _, ok := seen[g]; !ok {
				merr = multierror.Append(merr, fmt.Errorf("alias %q references unknown group %q", alias, g))
			}
		}
	}

	if err := merr.ErrorOrNil(); err != nil {
		return errors.Join(ErrInvalidInventory, err)
	}

	return nil
}

// Selector picks hosts. Alias restricts to the groups of an alias (or a single group by name).
// Query is a comma separated list of glob patterns matched against host names.
type Selector struct {
	Alias string
	Query string
}

// String implements fmt.Stringer.
func (s Selector) String() string {
	switch {
	case s.Alias != "" && s.Query != "":
		return "alias " + s.Alias + " and query " + s.Query
	case s.Alias != "":
		return "alias " + s.Alias
	default:
		return "query " + s.Query
	}
}

// Resolver turns a selector into host groups.
type Resolver interface {
	Resolve(ctx context.Context, sel Selector) ([]hostgroup.HostGroup, error)
}

var _ Resolver = (*Static)(nil)

// Static resolves selectors against an in-memory inventory.
type Static struct {
	inv     Inventory
	allowed []string
}

// NewStatic validates inv and returns a resolver.
// When allowedAliases is not empty only those aliases may be selected.
func NewStatic(inv Inventory, allowedAliases []string) (*Static, error) {
	if err := inv.Validate(); err != nil {
		return nil, err
	}

	return &Static{inv: inv, allowed: slices.Clone(allowedAliases)}, nil
}

// Resolve implements Resolver. Groups keep inventory order; a host listed in several
// groups is only kept in the first. Groups left empty by the query are dropped.
func (s *Static) Resolve(ctx context.Context, sel Selector) ([]hostgroup.HostGroup, error) {
	if sel.Alias == "" && sel.Query == "" {
		return nil, ErrEmptySelector
	}

	groups, err := s.groups(sel.Alias)
	if err != nil {
		return nil, err
	}

	patterns, err := parseQuery(sel.Query)
	if err != nil {
		return nil, err
	}

	var (
		out   []hostgroup.HostGroup
		total int
	)

	seen := make(map[string]struct{})

	for _, g := range groups {
		var hosts []string

		for _, h := range g.Hosts {
			if _, dup := seen[h]; dup || !matches(patterns, h) {
				continue
			}

			seen[h] = struct{}{}
			hosts = append(hosts, h)
		}

		if len(hosts) == 0 {
			continue
		}

		total += len(hosts)
		out = append(out, hostgroup.New(g.Name, hosts...))
	}

	if total == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoHosts, sel)
	}

	ctxlog.Debug(ctx, "resolved hosts", "selector", sel.String(), "groups", len(out), "hosts", total)

	return out, nil
}

func (s *Static) groups(alias string) ([]Group, error) {
	if alias == "" {
		return s.inv.Groups, nil
	}

	if len(s.allowed) > 0 && !slices.Contains(s.allowed, alias) {
		return nil, fmt.Errorf("%w: %q, allowed aliases are %v", ErrAliasNotAllowed, alias, s.allowed)
	}

	names, ok := s.inv.Aliases[alias]
	if !ok {
		if !slices.ContainsFunc(s.inv.Groups, func(g Group) bool { return g.Name == alias }) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownAlias, alias)
		}

		names = []string{alias}
	}

	var groups []Group

	for _, g := range s.inv.Groups {
		if slices.Contains(names, g.Name) {
			groups = append(groups, g)
		}
	}

	return groups, nil
}

func parseQuery(q string) ([]string, error) {
	if strings.TrimSpace(q) == "" {
		return nil, nil
	}

	var patterns []string

	for _, p := range strings.Split(q, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}

		if _, err := path.Match(p, ""); err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrInvalidQuery, p, err)
		}

		patterns = append(patterns, p)
	}

	return patterns, nil
}

func matches(patterns []string, host string) bool {
	if len(patterns) == 0 {
		return true
	}

	for _, p := range patterns {
		if ok, _ := path.Match(p, host); ok {
			return true
		}
	}

	return false
}
