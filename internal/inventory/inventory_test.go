// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package inventory

import (
	"testing"

	"github.com/matt-FFFFFF/rollbatch/internal/hostgroup"
	"github.com/prashantv/gostub"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testInventory() Inventory {
	return Inventory{
		Groups: []Group{
			{Name: "eqiad", Hosts: []string{"aqs1001", "aqs1002", "aqs1003", "restbase1001"}},
			{Name: "codfw", Hosts: []string{"aqs2001", "aqs2002"}},
			{Name: "canary", Hosts: []string{"aqs1001", "aqs2009"}},
		},
		Aliases: map[string][]string{
			"aqs":     {"eqiad", "codfw"},
			"aqs-all": {"canary", "eqiad", "codfw"},
		},
	}
}

func groupsToMap(groups []hostgroup.HostGroup) map[string][]string {
	out := make(map[string][]string, len(groups))
	for _, g := range groups {
		out[g.Name()] = g.Hosts()
	}

	return out
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		sel      Selector
		names    []string
		expected map[string][]string
	}{
		{
			name:  "alias keeps inventory order",
			sel:   Selector{Alias: "aqs"},
			names: []string{"eqiad", "codfw"},
			expected: map[string][]string{
				"eqiad": {"aqs1001", "aqs1002", "aqs1003", "restbase1001"},
				"codfw": {"aqs2001", "aqs2002"},
			},
		},
		{
			name:  "group name as alias",
			sel:   Selector{Alias: "codfw"},
			names: []string{"codfw"},
			expected: map[string][]string{
				"codfw": {"aqs2001", "aqs2002"},
			},
		},
		{
			name:  "query narrows and drops empty groups",
			sel:   Selector{Alias: "aqs", Query: "aqs100[12]"},
			names: []string{"eqiad"},
			expected: map[string][]string{
				"eqiad": {"aqs1001", "aqs1002"},
			},
		},
		{
			name:  "query alone spans all groups, duplicates kept once",
			sel:   Selector{Query: "aqs1001, aqs2*"},
			names: []string{"eqiad", "codfw", "canary"},
			expected: map[string][]string{
				"eqiad":  {"aqs1001"},
				"codfw":  {"aqs2001", "aqs2002"},
				"canary": {"aqs2009"},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r, err := NewStatic(testInventory(), nil)
			require.NoError(t, err)

			groups, err := r.Resolve(t.Context(), tc.sel)
			require.NoError(t, err)

			var names []string
			for _, g := range groups {
				names = append(names, g.Name())
			}

			assert.Equal(t, tc.names, names)
			assert.Equal(t, tc.expected, groupsToMap(groups))
		})
	}
}

func TestResolve_Errors(t *testing.T) {
	tests := []struct {
		name     string
		allowed  []string
		sel      Selector
		expected error
	}{
		{"empty selector", nil, Selector{}, ErrEmptySelector},
		{"unknown alias", nil, Selector{Alias: "nope"}, ErrUnknownAlias},
		{"alias not allowed", []string{"aqs"}, Selector{Alias: "aqs-all"}, ErrAliasNotAllowed},
		{"no hosts", nil, Selector{Alias: "codfw", Query: "aqs1*"}, ErrNoHosts},
		{"bad pattern", nil, Selector{Query: "aqs[1"}, ErrInvalidQuery},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r, err := NewStatic(testInventory(), tc.allowed)
			require.NoError(t, err)

			groups, err := r.Resolve(t.Context(), tc.sel)
			require.ErrorIs(t, err, tc.expected)
			assert.Nil(t, groups)
		})
	}
}

func TestResolve_AllowedAlias(t *testing.T) {
	r, err := NewStatic(testInventory(), []string{"aqs"})
	require.NoError(t, err)

	groups, err := r.Resolve(t.Context(), Selector{Alias: "aqs"})
	require.NoError(t, err)
	assert.Len(t, groups, 2)

	// A query without alias is not subject to the allow list.
	groups, err = r.Resolve(t.Context(), Selector{Query: "restbase*"})
	require.NoError(t, err)
	assert.Equal(t, []string{"restbase1001"}, groups[0].Hosts())
}

func TestValidate(t *testing.T) {
	inv := Inventory{
		Groups: []Group{{Name: "a"}, {Name: "a"}, {}},
		Aliases: map[string][]string{
			"x": {"a", "missing"},
			"y": {},
		},
	}

	err := inv.Validate()
	require.ErrorIs(t, err, ErrInvalidInventory)
	assert.Contains(t, err.Error(), `group "a" defined more than once`)
	assert.Contains(t, err.Error(), "group 2 has no name")
	assert.Contains(t, err.Error(), `alias "x" references unknown group "missing"`)
	assert.Contains(t, err.Error(), `alias "y" names no group`)

	_, err = NewStatic(inv, nil)
	assert.ErrorIs(t, err, ErrInvalidInventory)
}

func TestLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	stub := gostub.Stub(&FsFactory, func() afero.Fs { return fs })
	defer stub.Reset()

	require.NoError(t, afero.WriteFile(fs, "/etc/rollbatch/inventory.yaml", []byte(`groups:
  - name: eqiad
    hosts: [aqs1001, aqs1002]
  - name: codfw
    hosts:
      - aqs2001
aliases:
  aqs: [eqiad, codfw]
`), 0o644))

	inv, err := Load("/etc/rollbatch/inventory.yaml")
	require.NoError(t, err)
	assert.Equal(t, testInventory().Aliases["aqs"], inv.Aliases["aqs"])
	require.Len(t, inv.Groups, 2)
	assert.Equal(t, []string{"aqs1001", "aqs1002"}, inv.Groups[0].Hosts)
	assert.False(t, inv.IsEmpty())

	_, err = Load("/missing.yaml")
	require.ErrorIs(t, err, ErrReadInventory)

	require.NoError(t, afero.WriteFile(fs, "/bad.yaml", []byte("groups: [{name: a, unknown: 1}]\n"), 0o644))
	_, err = Load("/bad.yaml")
	require.ErrorIs(t, err, ErrReadInventory)
}
