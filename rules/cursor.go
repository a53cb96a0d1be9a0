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

package rules

import (
	"github.com/molapdb/molap/core"
)

// Cursor is the cell handle passed to a rule's Func (spec.md §4.5 "Cell
// cursor"). c["Actual"] style coordinate shifts are exposed as Shift;
// reading the shifted cell's value forces evaluation through the bound
// core.Evaluator, recursively re-entering the rules engine at the new
// address under the same recursion guard.
type Cursor struct {
	engine  *Engine
	schema  core.CubeSchema
	cube    string
	addr    []core.MemberID
	visited core.VisitSet
	ctx     *core.Context
}

// bind attaches the schema and cube name a Cursor needs to resolve
// dimension-qualified shifts and to call back into the bound Evaluator.
// Engine.invoke calls this once per rule invocation with the schema and
// cube name the Engine was created with.
func (c *Cursor) bind(schema core.CubeSchema, cube string) *Cursor {
	c.schema = schema
	c.cube = cube
	return c
}

// Shift returns a new Cursor with dimName's coordinate replaced by
// memberName, leaving every other dimension unchanged (spec.md §4.5
// "c[\"Actual\"] ... shifts the Datatype coordinate to Actual, all other
// coordinates held fixed"). dimName may be "" to resolve memberName by
// unique name search across the cube's dimensions, mirroring the
// resolver's unqualified-token rule.
func (c *Cursor) Shift(dimName, memberName string) (*Cursor, error) {
	idx := -1
	if dimName != "" {
		i, ok := c.schema.FindDimension(dimName)
		if !ok {
			return nil, core.ErrUnknownDimension.New(dimName)
		}
		idx = i
	} else {
		for i := 0; i < c.schema.DimensionCount(); i++ {
			if _, ok := c.schema.ResolveMember(i, memberName); ok {
				if idx != -1 {
					return nil, core.ErrAmbiguousMember.New(memberName, nil)
				}
				idx = i
			}
		}
		if idx == -1 {
			return nil, core.ErrUnknownMember.New(memberName)
		}
	}

	id, ok := c.schema.ResolveMember(idx, memberName)
	if !ok {
		return nil, core.ErrUnknownMember.New(memberName)
	}

	next := append([]core.MemberID(nil), c.addr...)
	next[idx] = id
	return &Cursor{
		engine:  c.engine,
		schema:  c.schema,
		cube:    c.cube,
		addr:    next,
		visited: c.visited,
		ctx:     c.ctx,
	}, nil
}

// MustShift is Shift without an error return, for rule bodies that treat
// an unresolvable shift as a programming error worth panicking on (the
// engine recovers the panic into MarkerError, see Engine.invoke).
func (c *Cursor) MustShift(dimName, memberName string) *Cursor {
	n, err := c.Shift(dimName, memberName)
	if err != nil {
		panic(err)
	}
	return n
}

// Value forces evaluation of the cursor's current address through the
// bound Evaluator, recursing into cell evaluation (and so into the rules
// engine again) under the same VisitSet.
func (c *Cursor) Value() core.Value {
	eval := c.engine.evaluator()
	if eval == nil {
		return core.ErrorValue(core.ErrEditSessionClosed.New("no evaluator bound to rules engine"))
	}
	addr := make(core.GeneralAddress, len(c.addr))
	for i, id := range c.addr {
		addr[i] = core.SingleCoordinate(id)
	}
	return eval.Evaluate(c.ctx, c.cube, addr, c.visited)
}

// Float is Value shortened to the common case of a rule doing scalar
// arithmetic on a sibling cell, e.g. `c.MustShift("Datatype",
// "Actual").Float() * 1.1` (spec.md §4.5 DeltaPct example, scenario S3).
// Non-numeric results (#REC, #ERR, empty) collapse to 0.
func (c *Cursor) Float() float64 {
	return c.Value().Float()
}

// Address returns the cursor's current address as a plain MemberID
// slice, one per cube dimension, for rule bodies that want to inspect
// coordinates directly rather than shift and re-evaluate.
func (c *Cursor) Address() []core.MemberID {
	return append([]core.MemberID(nil), c.addr...)
}
