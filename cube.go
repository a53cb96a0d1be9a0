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

package molap

import (
	"strings"
	"sync"

	"github.com/molapdb/molap/aggregate"
	"github.com/molapdb/molap/cache"
	"github.com/molapdb/molap/core"
	"github.com/molapdb/molap/fact"
	"github.com/molapdb/molap/resolver"
	"github.com/molapdb/molap/rules"
)

// Cube is the per-cube facade (spec.md §6 "Cube facade"): indexed
// read/write by member-name tuple or pre-built address, area access, rule
// registration. It wires the Resolver, Fact Store, Rules Engine,
// Aggregation Engine, and Result Cache together and implements both
// core.Evaluator (cached re-evaluation of a cell) and core.CubeSchema (so
// rule cursors can resolve `c["X"]` shifts). Rule cursors evaluate
// through the Aggregation Engine, not through the Cube, so their shifted
// reads bypass the Result Cache.
type Cube struct {
	db   *Database
	name string
	dims resolver.CubeDimensions

	resolver *resolver.Resolver
	store    *fact.Store
	rules    *rules.Engine
	agg      *aggregate.Engine
	cache    *cache.Cache
	versions cache.Versions

	mu sync.Mutex // serializes writes to this cube, per spec.md §5
}

func newCube(db *Database, name string, dims resolver.CubeDimensions) *Cube {
	c := &Cube{
		db:       db,
		name:     name,
		dims:     dims,
		resolver: resolver.New(dims),
		store:    fact.NewStore(len(dims)),
		cache:    cache.New(db.cfg.CacheCapacity),
	}
	c.rules = rules.NewEngine(dims, c, name)
	c.agg = aggregate.New(name, dims, c.store, c.rules)
	c.rules.SetEvaluator(c.agg)
	return c
}

// Name returns the cube's name.
func (c *Cube) Name() string { return c.name }

// DimensionCount satisfies core.CubeSchema.
func (c *Cube) DimensionCount() int { return len(c.dims) }

// DimensionName satisfies core.CubeSchema.
func (c *Cube) DimensionName(i int) string { return c.dims[i].Name() }

// ResolveMember satisfies core.CubeSchema.
func (c *Cube) ResolveMember(i int, name string) (core.MemberID, bool) {
	return c.dims[i].Resolve(name)
}

// FindDimension satisfies core.CubeSchema.
func (c *Cube) FindDimension(name string) (int, bool) {
	fold := strings.ToLower(strings.TrimSpace(name))
	for i, d := range c.dims {
		if strings.ToLower(d.Name()) == fold {
			return i, true
		}
	}
	return 0, false
}

// Evaluate satisfies core.Evaluator, re-entering the cache -> rules ->
// aggregation pipeline for a (possibly shifted) address. The rules engine
// is wired to the Aggregation Engine (newCube), so rules.Cursor.Value
// does not go through this method.
func (c *Cube) Evaluate(ctx *core.Context, cubeName string, addr core.GeneralAddress, visited core.VisitSet) core.Value {
	if cubeName != c.name {
		return core.ErrorValue(core.ErrUnknownCube.New(cubeName))
	}
	return c.evaluate(ctx, addr, visited)
}

func (c *Cube) evaluate(ctx *core.Context, addr core.GeneralAddress, visited core.VisitSet) core.Value {
	ids := make([]core.MemberID, len(addr))
	for i, coord := range addr {
		if coord.Kind != core.SelectorSingle {
			return core.ErrorValue(core.ErrNotBaseAddress.New(addr))
		}
		ids[i] = coord.Single
	}

	sv, rv, dv := c.versions.Snapshot()
	for _, d := range c.dims {
		sv += d.StructureVersion()
	}
	key := cache.Key{Cube: c.name, Address: addr, StructureVersion: sv, RulesVersion: rv, DataVersion: dv}
	if v, ok := c.cache.Get(key); ok {
		return v
	}

	v := c.agg.Evaluate(ctx, c.name, addr, visited)
	if (v.Marker == core.MarkerNumber || v.Marker == core.MarkerNone) && !v.Volatile {
		c.cache.Put(key, v)
	}
	return v
}

// Get reads the cell named by tokens, one per cube dimension in order,
// resolving wildcards/subsets/attribute filters against each dimension
// exactly as the Resolver describes (spec.md §4.3/§6 "Indexed read/write
// by a tuple of member names"). A token that resolves to a selector
// rather than a single member (a bare "*", a subset, an attribute
// filter) makes the read a sum over every member the selector names,
// each independently resolved (and, if aggregated, summed along its own
// hierarchy) before the outer selector sum combines them.
func (c *Cube) Get(ctx *Context, tokens ...string) (core.Value, error) {
	span, done := ctx.StartSpan("cube.get")
	defer done()
	_ = span

	addr, err := c.resolver.ResolvePositional(tokens)
	if err != nil {
		return core.Value{}, err
	}
	if addr.IsBaseShaped() {
		return c.evaluate(ctx, addr, core.VisitSet{}), nil
	}
	return c.evaluateSelectors(ctx, addr), nil
}

// evaluateSelectors sums evaluate() over every fully-single address in
// the Cartesian product of addr's per-dimension selector expansions.
func (c *Cube) evaluateSelectors(ctx *Context, addr core.GeneralAddress) core.Value {
	choices := make([][]core.MemberID, len(addr))
	for i, coord := range addr {
		if coord.IsSingle() {
			choices[i] = []core.MemberID{coord.Single}
			continue
		}
		choices[i] = resolver.Expand(c.dims[i], coord)
	}

	sum := core.None()
	idx := make([]int, len(choices))
	for {
		single := make(core.GeneralAddress, len(choices))
		for i, sel := range choices {
			if len(sel) == 0 {
				single = nil
				break
			}
			single[i] = core.SingleCoordinate(sel[idx[i]])
		}
		if single != nil {
			sum = core.Add(sum, c.evaluate(ctx, single, core.VisitSet{}))
		}

		pos := len(idx) - 1
		for pos >= 0 {
			idx[pos]++
			if pos < len(choices) && len(choices[pos]) > 0 && idx[pos] < len(choices[pos]) {
				break
			}
			idx[pos] = 0
			pos--
		}
		if pos < 0 {
			break
		}
	}
	return sum
}

// Set writes value at the base cell named by tokens. It is an error
// (NotBaseAddress) if any token resolves to a non-base member or a
// multi-member selector; use an Area for splash/bulk writes (area.go).
func (c *Cube) Set(ctx *Context, value float64, tokens ...string) error {
	addr, err := c.resolver.ResolvePositional(tokens)
	if err != nil {
		return err
	}
	baseAddr := make(core.BaseAddress, len(addr))
	for i, coord := range addr {
		if coord.Kind != core.SelectorSingle || !c.dims[i].IsBase(coord.Single) {
			return core.ErrNotBaseAddress.New(addr)
		}
		baseAddr[i] = coord.Single
	}

	c.mu.Lock()
	c.store.Write(baseAddr, value)
	c.mu.Unlock()

	c.versions.BumpData()
	return nil
}

// Area resolves tokens (which may include wildcards, subsets, attribute
// filters, and bare "*") into an Area handle for bulk operations (§4.7).
func (c *Cube) Area(tokens ...string) (*Area, error) {
	addr, err := c.resolver.ResolvePositional(tokens)
	if err != nil {
		return nil, err
	}
	return &Area{cube: c, addr: addr}, nil
}

// RegisterRule adds rule to this cube's Rules Engine, returning its id.
func (c *Cube) RegisterRule(rule *rules.Rule) string {
	rule.CubeName = c.name
	id := c.rules.Register(rule)
	c.versions.BumpRules()
	return id
}

// UnregisterRule removes the rule with the given id.
func (c *Cube) UnregisterRule(id string) bool {
	ok := c.rules.Unregister(id)
	if ok {
		c.versions.BumpRules()
	}
	return ok
}

// RuleInfo is a read-only view of a registered rule, for the
// SPEC_FULL §C rule introspection surface.
type RuleInfo struct {
	ID       string
	Scope    rules.Scope
	Volatile bool
}

// Rules lists every rule registered on this cube, in evaluation order.
func (c *Cube) Rules() []RuleInfo {
	rs := c.rules.List()
	out := make([]RuleInfo, len(rs))
	for i, r := range rs {
		out[i] = RuleInfo{ID: r.ID, Scope: r.Scope, Volatile: r.Volatile}
	}
	return out
}

// ExplainCell reports which rule, if any, would decide the value at the
// cell named by tokens (SPEC_FULL §C rule introspection): the first rule
// whose trigger matches, under the same scope gating Evaluate itself
// applies, without running the full aggregation walk.
func (c *Cube) ExplainCell(ctx *Context, tokens ...string) (RuleInfo, bool, error) {
	addr, err := c.resolver.ResolvePositional(tokens)
	if err != nil {
		return RuleInfo{}, false, err
	}
	ids := make([]core.MemberID, len(addr))
	aggregated := false
	for i, coord := range addr {
		if coord.Kind != core.SelectorSingle {
			return RuleInfo{}, false, core.ErrNotBaseAddress.New(addr)
		}
		ids[i] = coord.Single
		if !c.dims[i].IsBase(coord.Single) {
			aggregated = true
		}
	}

	var outcome rules.Outcome
	if aggregated {
		outcome = c.rules.MatchPreWalk(ctx, ids, core.VisitSet{})
	} else {
		outcome = c.rules.MatchBaseLeaf(ctx, ids, core.VisitSet{})
	}
	if !outcome.Matched {
		return RuleInfo{}, false, nil
	}
	for _, r := range c.rules.List() {
		if r.ID == outcome.RuleID {
			return RuleInfo{ID: r.ID, Scope: r.Scope, Volatile: r.Volatile}, true, nil
		}
	}
	return RuleInfo{}, false, nil
}
