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

// Package cache implements the Result Cache (spec.md §4.6): a bounded LRU
// keyed by (cube, general address, structure_version, rules_version,
// data_version), looked up before evaluation and published after.
package cache

import (
	"container/list"
	"sync"

	"github.com/mitchellh/hashstructure"

	"github.com/molapdb/molap/core"
)

// Key is the cache key's logical shape; Hash folds it to the actual map
// key via mitchellh/hashstructure so a composite GeneralAddress (which
// contains selector coordinates, not just comparable scalars) can still
// be used as a lookup key.
type Key struct {
	Cube             string
	Address          core.GeneralAddress
	StructureVersion uint64
	RulesVersion     uint64
	DataVersion      uint64
}

// Hash returns k's stable hash, used as the actual cache map key.
func (k Key) Hash() (uint64, error) {
	return hashstructure.Hash(k, nil)
}

type entry struct {
	key   uint64
	value core.Value
	elem  *list.Element
}

// Cache is a bounded LRU result cache for one cube. It is safe for
// concurrent use.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[uint64]*entry
	order    *list.List // front = most recently used
}

// New creates a Cache with the given capacity. A non-positive capacity
// disables caching: Get always misses and Put is a no-op, which lets a
// negative Config.CacheCapacity behave as "cache off" without a separate
// code path (a zero Config.CacheCapacity is replaced by the default
// before it reaches New).
func New(capacity int) *Cache {
	return &Cache{
		capacity: capacity,
		entries:  make(map[uint64]*entry),
		order:    list.New(),
	}
}

// Get looks up key, promoting the entry to most-recently-used on a hit.
func (c *Cache) Get(key Key) (core.Value, bool) {
	if c.capacity <= 0 {
		return core.Value{}, false
	}
	h, err := key.Hash()
	if err != nil {
		return core.Value{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[h]
	if !ok {
		return core.Value{}, false
	}
	c.order.MoveToFront(e.elem)
	return e.value, true
}

// Put publishes value under key, evicting the least-recently-used entry
// if the cache is at capacity. Callers must not call Put for an
// evaluation that touched a volatile rule or produced an error/recursion
// marker (spec.md §4.6 "not published"); Cube.Evaluate enforces this, not
// Cache itself, since only the caller knows whether a volatile rule fired.
func (c *Cache) Put(key Key, value core.Value) {
	if c.capacity <= 0 {
		return
	}
	h, err := key.Hash()
	if err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[h]; ok {
		e.value = value
		c.order.MoveToFront(e.elem)
		return
	}

	e := &entry{key: h, value: value}
	e.elem = c.order.PushFront(e)
	c.entries[h] = e

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*entry).key)
	}
}

// Len returns the number of entries currently cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Versions tracks the three independent version counters a cube's cache
// keys are built from (spec.md §4.6). Database.RemoveMember bumps
// StructureVersion (Cube.evaluate also adds each of its dimensions' own
// structure versions into the key, so any committed dimension edit
// changes it), rule add/remove bumps RulesVersion, and fact writes bump
// DataVersion.
type Versions struct {
	mu        sync.Mutex
	structure uint64
	rules     uint64
	data      uint64
}

// BumpStructure increments the structure version, invalidating every
// cached entry keyed against an older one.
func (v *Versions) BumpStructure() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.structure++
}

// BumpRules increments the rules version.
func (v *Versions) BumpRules() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rules++
}

// BumpData increments the data version, used to approximate fact-write
// invalidation without tracking exact address intersections.
func (v *Versions) BumpData() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.data++
}

// Snapshot returns the current (structure, rules, data) version triple.
func (v *Versions) Snapshot() (structure, rules, data uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.structure, v.rules, v.data
}
