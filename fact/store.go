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

// Package fact implements the per-cube sparse Fact Store (spec.md §4.2):
// a hash map from packed base address to value, backed by a per-dimension
// inverted index so area iteration can intersect candidates instead of
// scanning the full map.
package fact

import (
	"sort"
	"sync"

	"github.com/molapdb/molap/core"
)

// slot is the store's internal identity for one stored fact, stable for
// the life of the fact so the inverted index's bitmaps can reference it
// without re-packing the address on every lookup.
type slot uint64

// Store is the sparse fact store for one cube. It is safe for concurrent
// readers; writers must hold the owning database's write lock (spec.md
// §5 "Shared resources").
type Store struct {
	arity int

	mu       sync.RWMutex
	values   map[slot]float64
	addrs    map[slot]core.BaseAddress
	bySlot   map[string]slot // packed-address string -> slot, for write/read lookups
	index    *invertedIndex
	nextSlot slot
}

// NewStore creates an empty fact store for a cube with the given arity
// (number of dimensions).
func NewStore(arity int) *Store {
	return &Store{
		arity:  arity,
		values: make(map[slot]float64),
		addrs:  make(map[slot]core.BaseAddress),
		bySlot: make(map[string]slot),
		index:  newInvertedIndex(arity),
	}
}

func packKey(addr core.BaseAddress) string {
	b := make([]byte, len(addr)*4)
	for i, id := range addr {
		b[i*4] = byte(id >> 24)
		b[i*4+1] = byte(id >> 16)
		b[i*4+2] = byte(id >> 8)
		b[i*4+3] = byte(id)
	}
	return string(b)
}

// Write sets the fact at addr to value, or removes it if value is zero
// (invariant F1: no zero-valued fact is stored). The inverted index
// update is applied under the same lock as the primary map write
// (invariant F2).
func (s *Store) Write(addr core.BaseAddress, value float64) {
	if len(addr) != s.arity {
		panic("fact: address arity mismatch")
	}
	key := packKey(addr)

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, had := s.bySlot[key]
	if value == 0 {
		if had {
			s.removeLocked(existing, key)
		}
		return
	}

	if had {
		s.values[existing] = value
		return
	}

	sl := s.nextSlot
	s.nextSlot++
	s.values[sl] = value
	s.addrs[sl] = append(core.BaseAddress(nil), addr...)
	s.bySlot[key] = sl
	s.index.add(addr, sl)
}

func (s *Store) removeLocked(sl slot, key string) {
	addr := s.addrs[sl]
	delete(s.values, sl)
	delete(s.addrs, sl)
	delete(s.bySlot, key)
	s.index.remove(addr, sl)
}

// Read returns the stored value at addr, or 0.0 if absent.
func (s *Store) Read(addr core.BaseAddress) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sl, ok := s.bySlot[packKey(addr)]
	if !ok {
		return 0
	}
	return s.values[sl]
}

// Count returns the number of stored (non-zero) facts.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// SizeEstimate returns a rough byte-size estimate of the store's
// footprint, for collaborators doing capacity planning.
func (s *Store) SizeEstimate() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	perFact := int64(8 /* value */ + s.arity*4 /* packed address */ + 32 /* map overhead */)
	return perFact * int64(len(s.values))
}

// DeleteArea removes every stored fact whose address intersects area.
func (s *Store) DeleteArea(area core.AreaSpec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sl := range s.index.candidates(area) {
		if addr, ok := s.addrs[sl]; ok {
			s.removeLocked(sl, packKey(addr))
		}
	}
}

// DeleteMember removes every stored fact that references id in
// dimension dimIdx, used by cascading member removal (spec.md §4.1
// InUse, invariant F3). It returns the removed addresses for the error
// sink / invalidation log.
func (s *Store) DeleteMember(dimIdx int, id core.MemberID) []core.BaseAddress {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []core.BaseAddress
	for _, sl := range s.index.dims[dimIdx].slotsFor(id) {
		if addr, ok := s.addrs[sl]; ok {
			removed = append(removed, append(core.BaseAddress(nil), addr...))
			s.removeLocked(sl, packKey(addr))
		}
	}
	return removed
}

// Fact pairs a base address with its stored value, the element type of
// IterArea.
type Fact struct {
	Addr  core.BaseAddress
	Value float64
}

// IterArea enumerates only stored non-zero facts intersecting area, in
// ascending packed-address order (spec.md §4.4 "Tie-breaks": "Summation
// order is ascending by packed base address").
func (s *Store) IterArea(area core.AreaSpec) []Fact {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slots := s.index.candidates(area)
	out := make([]Fact, 0, len(slots))
	for _, sl := range slots {
		addr, ok := s.addrs[sl]
		if !ok {
			continue
		}
		out = append(out, Fact{Addr: append(core.BaseAddress(nil), addr...), Value: s.values[sl]})
	}
	sort.Slice(out, func(i, j int) bool {
		return lessAddr(out[i].Addr, out[j].Addr)
	})
	return out
}

func lessAddr(a, b core.BaseAddress) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
