// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package hostgroup holds named, ordered groups of hosts and splits them into batches.
package hostgroup

import (
	"errors"
	"fmt"
	"slices"
)

// ErrInvalidBatchSize is returned when a batch size is less than one.
var ErrInvalidBatchSize = errors.New("batch size must be at least 1")

// HostGroup is an ordered, named collection of hosts.
// The zero value is an unnamed empty group.
type HostGroup struct {
	name  string
	hosts []string
}

// New creates a HostGroup. The hosts slice is copied.
func New(name string, hosts ...string) HostGroup {
	return HostGroup{
		name:  name,
		hosts: slices.Clone(hosts),
	}
}

// Name returns the group name.
func (g HostGroup) Name() string {
	return g.name
}

// Hosts returns a copy of the hosts in order.
func (g HostGroup) Hosts() []string {
	return slices.Clone(g.hosts)
}

// Len returns the number of hosts.
func (g HostGroup) Len() int {
	return len(g.hosts)
}

// String implements fmt.Stringer.
func (g HostGroup) String() string {
	return fmt.Sprintf("%s (%d hosts)", g.name, len(g.hosts))
}

// Batch is a contiguous slice of one group processed as a unit.
type Batch struct {
	Group      string   // name of the owning group
	GroupIndex int      // position of the owning group in the run
	Index      int      // zero-based batch index within the group
	Count      int      // number of batches in the group
	Hosts      []string // hosts in order
}

// IsLast reports whether b is the last batch of its group.
func (b Batch) IsLast() bool {
	return b.Index == b.Count-1
}

// String implements fmt.Stringer.
func (b Batch) String() string {
	return fmt.Sprintf("%s batch %d/%d %v", b.Group, b.Index+1, b.Count, b.Hosts)
}

// BatchCount returns ceil(n/size). It returns 0 for size < 1.
func BatchCount(n, size int) int {
	if size < 1 || n <= 0 {
		return 0
	}

	return (n + size - 1) / size
}

// Partition splits group into contiguous batches of size hosts, preserving order.
// The last batch may be shorter. An empty group yields no batches.
// GroupIndex is left at zero; callers that own several groups set it.
func Partition(group HostGroup, size int) ([]Batch, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBatchSize, size)
	}

	count := BatchCount(len(group.hosts), size)
	batches := make([]Batch, 0, count)

	for i, chunk := range chunked(group.hosts, size) {
		batches = append(batches, Batch{
			Group: group.name,
			Index: i,
			Count: count,
			Hosts: chunk,
		})
	}

	return batches, nil
}

func chunked(hosts []string, size int) [][]string {
	var out [][]string
	for c := range slices.Chunk(hosts, size) {
		out = append(out, slices.Clone(c))
	}

	return out
}
