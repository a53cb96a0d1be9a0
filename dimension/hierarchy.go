// Copyright 2020-2021 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dimension

import (
	"sort"
	"strings"
	"sync"

	"github.com/molapdb/molap/core"
)

// edge is a parent->child weighted relation. A child can have more than
// one parent (diamond hierarchies, spec S4), so the hierarchy is a DAG,
// not a tree.
type edge struct {
	child  core.MemberID
	weight float64
}

// leafWeight is one entry of a memoized leaf expansion.
type leafWeight struct {
	base   core.MemberID
	weight float64
}

// snapshot is the full set of mutable tables an edit session stages and
// commits atomically, per spec.md §4.1's "Commit is a single atomic swap:
// new member table, new edge table".
type snapshot struct {
	members  map[core.MemberID]*Member
	nameIdx  map[string]core.MemberID // case-folded name/alias -> id, one shared namespace
	children map[core.MemberID][]edge
	parents  map[core.MemberID]map[core.MemberID]bool
	subsets  map[string][]core.MemberID
	order    []core.MemberID
	nextID   core.MemberID
}

func newSnapshot() *snapshot {
	return &snapshot{
		members:  make(map[core.MemberID]*Member),
		nameIdx:  make(map[string]core.MemberID),
		children: make(map[core.MemberID][]edge),
		parents:  make(map[core.MemberID]map[core.MemberID]bool),
		subsets:  make(map[string][]core.MemberID),
	}
}

func (s *snapshot) clone() *snapshot {
	cp := newSnapshot()
	cp.nextID = s.nextID
	for id, m := range s.members {
		cp.members[id] = m.clone()
	}
	for k, v := range s.nameIdx {
		cp.nameIdx[k] = v
	}
	for p, es := range s.children {
		cp.children[p] = append([]edge(nil), es...)
	}
	for c, ps := range s.parents {
		np := make(map[core.MemberID]bool, len(ps))
		for p := range ps {
			np[p] = true
		}
		cp.parents[c] = np
	}
	for name, ms := range s.subsets {
		cp.subsets[name] = append([]core.MemberID(nil), ms...)
	}
	cp.order = append([]core.MemberID(nil), s.order...)
	return cp
}

func fold(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

// Dimension is a named set of members with a weighted-edge hierarchy
// (spec.md §3 Dimension, §4.1). All structural mutation happens through
// an EditSession (BeginEdit); the convenience methods below (AddMember,
// etc.) open, apply, and commit a single-operation session each.
type Dimension struct {
	name string

	mu               sync.RWMutex
	live             *snapshot
	structureVersion uint64

	editMu  sync.Mutex // serializes edit sessions (single-writer, spec.md §5)
	editing bool

	expansionMu sync.Mutex
	expansions  map[core.MemberID][]leafWeight
	expansionSV uint64 // structure version the memo was built against
}

// NewDimension creates an empty dimension named name.
func NewDimension(name string) *Dimension {
	return &Dimension{
		name: name,
		live: newSnapshot(),
	}
}

// Name returns the dimension's name.
func (d *Dimension) Name() string { return d.name }

// StructureVersion returns the monotonic counter bumped on every commit
// (spec.md §3 "Structure version / data version / rules version").
func (d *Dimension) StructureVersion() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.structureVersion
}

func (d *Dimension) snapshot() *snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.live
}

// Resolve looks up name (case-insensitively, by name or alias) and
// returns its member id.
func (d *Dimension) Resolve(name string) (core.MemberID, bool) {
	s := d.snapshot()
	id, ok := s.nameIdx[fold(name)]
	return id, ok
}

// Member returns the member with the given id, if any, from the current
// committed snapshot.
func (d *Dimension) Member(id core.MemberID) (*Member, bool) {
	s := d.snapshot()
	m, ok := s.members[id]
	return m, ok
}

// MemberByName is a convenience combining Resolve and Member.
func (d *Dimension) MemberByName(name string) (*Member, bool) {
	id, ok := d.Resolve(name)
	if !ok {
		return nil, false
	}
	return d.Member(id)
}

// Members returns every member in insertion order.
func (d *Dimension) Members() []*Member {
	s := d.snapshot()
	out := make([]*Member, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.members[id])
	}
	return out
}

// IsBase reports whether id has no children (a leaf, able to store
// facts) in the current committed snapshot.
func (d *Dimension) IsBase(id core.MemberID) bool {
	s := d.snapshot()
	return len(s.children[id]) == 0
}

// Roots returns every member with no parent (invariant I2 requires at
// least one to exist and every member to be reachable from one).
func (d *Dimension) Roots() []core.MemberID {
	s := d.snapshot()
	var roots []core.MemberID
	for _, id := range s.order {
		if len(s.parents[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// Top returns the dimension's unique root, used by the resolver to
// default an omitted coordinate (spec.md §4.3). ok is false if there is
// not exactly one root.
func (d *Dimension) Top() (core.MemberID, bool) {
	roots := d.Roots()
	if len(roots) != 1 {
		return 0, false
	}
	return roots[0], true
}

// Children returns the weighted child edges of id.
func (d *Dimension) Children(id core.MemberID) []struct {
	Child  core.MemberID
	Weight float64
} {
	s := d.snapshot()
	es := s.children[id]
	out := make([]struct {
		Child  core.MemberID
		Weight float64
	}, len(es))
	for i, e := range es {
		out[i] = struct {
			Child  core.MemberID
			Weight float64
		}{e.child, e.weight}
	}
	return out
}

// LeafExpansion returns the memoized set of (base_member, aggregate
// weight) pairs reachable from id, sorted ascending by base id (spec.md
// §4.1 contract). Duplicate base leaves arising from diamond hierarchies
// are summed. The memo is keyed by structure version and recomputed
// lazily on first use after a commit invalidates it (spec.md "State
// machine (edit session)").
func (d *Dimension) LeafExpansion(id core.MemberID) []struct {
	Base   core.MemberID
	Weight float64
} {
	s := d.snapshot()
	sv := d.StructureVersion()

	d.expansionMu.Lock()
	if d.expansions == nil || d.expansionSV != sv {
		d.expansions = make(map[core.MemberID][]leafWeight)
		d.expansionSV = sv
	}
	cached, ok := d.expansions[id]
	if !ok {
		cached = computeLeafExpansion(s, id)
		d.expansions[id] = cached
	}
	d.expansionMu.Unlock()

	out := make([]struct {
		Base   core.MemberID
		Weight float64
	}, len(cached))
	for i, lw := range cached {
		out[i] = struct {
			Base   core.MemberID
			Weight float64
		}{lw.base, lw.weight}
	}
	return out
}

// computeLeafExpansion performs the DFS with multiplicative weights
// described in spec.md §4.1 "Algorithm". Cycles are impossible by
// invariant I1, enforced at edge-insertion time, so no visited-path guard
// is needed here.
func computeLeafExpansion(s *snapshot, id core.MemberID) []leafWeight {
	totals := make(map[core.MemberID]float64)
	var walk func(core.MemberID, float64)
	walk = func(m core.MemberID, weight float64) {
		children := s.children[m]
		if len(children) == 0 {
			totals[m] += weight
			return
		}
		for _, e := range children {
			walk(e.child, weight*e.weight)
		}
	}
	walk(id, 1.0)

	out := make([]leafWeight, 0, len(totals))
	for base, w := range totals {
		out = append(out, leafWeight{base: base, weight: w})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].base < out[j].base })
	return out
}

// wouldCycle reports whether adding an edge parent->child would create a
// cycle, i.e. parent is already reachable (downward) from child.
func wouldCycle(s *snapshot, parent, child core.MemberID) bool {
	if parent == child {
		return true
	}
	visited := make(map[core.MemberID]bool)
	var walk func(core.MemberID) bool
	walk = func(m core.MemberID) bool {
		if m == parent {
			return true
		}
		if visited[m] {
			return false
		}
		visited[m] = true
		for _, e := range s.children[m] {
			if walk(e.child) {
				return true
			}
		}
		return false
	}
	return walk(child)
}
