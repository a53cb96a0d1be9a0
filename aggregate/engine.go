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

// Package aggregate implements the Aggregation Engine (spec.md §4.4): the
// weighted Cartesian-product summation that turns a cell address
// containing aggregated coordinates into a scalar, driven by the Fact
// Store's sparse candidate set rather than a full cross-product walk.
package aggregate

import (
	"fmt"

	"github.com/molapdb/molap/core"
	"github.com/molapdb/molap/fact"
	"github.com/molapdb/molap/resolver"
	"github.com/molapdb/molap/rules"
)

// Engine evaluates cells of one cube. It implements core.Evaluator so the
// rules engine's Cell cursor can call back into it (see core.Evaluator).
type Engine struct {
	cubeName string
	dims     resolver.CubeDimensions
	store    *fact.Store
	rules    *rules.Engine
}

// New creates an Engine for one cube, wiring the dimensions it aggregates
// over, the Fact Store it reads, and the Rules Engine consulted at every
// visited coordinate.
func New(cubeName string, dims resolver.CubeDimensions, store *fact.Store, re *rules.Engine) *Engine {
	return &Engine{cubeName: cubeName, dims: dims, store: store, rules: re}
}

type expansion struct {
	bases   []core.MemberID
	weights map[core.MemberID]float64
}

// Evaluate computes the value at addr, satisfying core.Evaluator. Every
// coordinate of addr must be a single member per dimension (spec.md §3: a
// "cell" always names exactly one member, base or aggregated, per
// dimension); area-shaped addresses are a Resolver/Area-operation concern
// handled above this layer.
func (e *Engine) Evaluate(ctx *core.Context, cubeName string, addr core.GeneralAddress, visited core.VisitSet) core.Value {
	if cubeName != e.cubeName {
		return core.ErrorValue(core.ErrUnknownCube.New(cubeName))
	}
	if len(addr) != len(e.dims) {
		return core.ErrorValue(core.ErrUnderdefinedAddress.New(e.cubeName))
	}

	ids := make([]core.MemberID, len(addr))
	for i, c := range addr {
		if c.Kind != core.SelectorSingle {
			return core.ErrorValue(core.ErrNotBaseAddress.New(addr))
		}
		ids[i] = c.Single
	}

	key := cellKey(ids)
	if visited.Has(key) {
		return core.Recursion()
	}
	nv := visited.With(key)

	aggregated := false
	expansions := make([]expansion, len(e.dims))
	for i, d := range e.dims {
		span, done := ctx.StartSpan(fmt.Sprintf("aggregate.expand.%s", d.Name()))
		exp := d.LeafExpansion(ids[i])
		done()
		_ = span

		bases := make([]core.MemberID, len(exp))
		weights := make(map[core.MemberID]float64, len(exp))
		for j, lw := range exp {
			bases[j] = lw.Base
			weights[lw.Base] = lw.Weight
		}
		expansions[i] = expansion{bases: bases, weights: weights}
		if !(len(exp) == 1 && exp[0].Base == ids[i] && exp[0].Weight == 1.0) {
			aggregated = true
		}
	}

	if !aggregated {
		if outcome := e.rules.MatchBaseLeaf(ctx, ids, visited); outcome.Matched {
			return outcome.Value
		}
		return core.Number(e.store.Read(core.BaseAddress(ids)))
	}

	if outcome := e.rules.MatchPreWalk(ctx, ids, visited); outcome.Matched {
		return outcome.Value
	}
	return e.walk(ctx, expansions, nv)
}

// walk drives the summation from the Fact Store's sparse candidate set
// (spec.md §4.4 "the sparsest dimension's candidate set drives
// iteration"), scaling each visited leaf's value by the product of its
// per-dimension expansion weights and evaluating BASE_LEVEL/ALL_LEVELS
// rules at each visited base coordinate before falling back to the
// stored value.
func (e *Engine) walk(ctx *core.Context, expansions []expansion, visited core.VisitSet) core.Value {
	area := core.AreaSpec{Dims: make([][]core.MemberID, len(expansions))}
	for i, exp := range expansions {
		area.Dims[i] = exp.bases
	}

	sum := core.None()
	for _, f := range e.store.IterArea(area) {
		w := 1.0
		for i, id := range f.Addr {
			w *= expansions[i].weights[id]
		}
		if w == 0 {
			continue
		}

		leafAddr := []core.MemberID(f.Addr)
		var leaf core.Value
		if outcome := e.rules.MatchBaseLeaf(ctx, leafAddr, visited); outcome.Matched {
			leaf = outcome.Value
		} else {
			leaf = core.Number(f.Value)
		}

		if leaf.IsNumeric() {
			leaf = core.Number(leaf.Float() * w)
		}
		sum = core.Add(sum, leaf)
	}
	return sum
}

func cellKey(ids []core.MemberID) string {
	return fmt.Sprint(ids)
}

var _ core.Evaluator = (*Engine)(nil)
