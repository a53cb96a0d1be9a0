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

// Package rules implements the Rules Engine and Cell cursor (spec.md
// §4.5): trigger matching, scope-gated dispatch, the recursion guard, and
// integration of a rule's explicit return variant into cell evaluation.
package rules

import (
	"fmt"
	"sync"

	"github.com/satori/go.uuid"

	"github.com/molapdb/molap/core"
	"github.com/molapdb/molap/resolver"
)

// Scope gates when a rule is eligible to be matched (spec.md §4.5
// "Scopes").
type Scope uint8

const (
	// AllLevels is the default scope: eligible at top-level evaluation
	// before walking leaves if the target is aggregated, and on each
	// base leaf if the base matches.
	AllLevels Scope = iota
	// BaseLevel is eligible only on base-leaf evaluation.
	BaseLevel
	// AggregationLevel is eligible only when the target address contains
	// at least one aggregated coordinate.
	AggregationLevel
	// OnEntry rules are never matched during read evaluation; fact
	// writes (fact.Store.Write, Cube.Set) do not invoke them either.
	OnEntry
	// Command rules are never matched during read evaluation; no command
	// entry point exists that invokes them.
	Command
)

// Trigger is a conjunction of per-dimension selectors, one per cube
// dimension, in cube order. A selector with Kind == core.SelectorAny
// places no constraint on that dimension.
type Trigger core.GeneralAddress

// Func is the rule callable ABI: an explicit return variant
// (spec.md §9 "Rules as user callables with sentinels -> explicit
// return variant") instead of magic sentinels on the cursor object. A
// panicking Func is recovered by the engine and treated as MarkerError.
type Func func(ctx *core.Context, c *Cursor) core.Value

// Rule is one registered computation (spec.md §3 Rule).
type Rule struct {
	ID              string
	CubeName        string
	Trigger         Trigger
	Scope           Scope
	CommandKeywords []string
	Body            Func
	Volatile        bool
}

// Outcome is the result of matching and, if matched, invoking a rule.
type Outcome struct {
	Matched  bool
	RuleID   string
	Value    core.Value
	Volatile bool
}

// Engine is the per-cube ordered rule list and dispatcher.
type Engine struct {
	dims     resolver.CubeDimensions
	schema   core.CubeSchema
	cubeName string

	mu    sync.RWMutex
	rules []*Rule

	evalMu sync.RWMutex
	eval   core.Evaluator // set once via SetEvaluator, see core.Evaluator doc
}

// NewEngine creates a Rules Engine bound to a cube's dimensions and
// schema, used respectively to expand trigger selectors into concrete
// member-id sets for matching and to bind a Cursor's Shift/Value calls
// (core.CubeSchema, schema is usually the same *molap.Cube that also
// implements core.Evaluator).
func NewEngine(dims resolver.CubeDimensions, schema core.CubeSchema, cubeName string) *Engine {
	return &Engine{dims: dims, schema: schema, cubeName: cubeName}
}

// SetEvaluator wires the aggregation engine in after construction,
// breaking the aggregate<->rules import cycle (see core.Evaluator).
func (e *Engine) SetEvaluator(ev core.Evaluator) {
	e.evalMu.Lock()
	defer e.evalMu.Unlock()
	e.eval = ev
}

func (e *Engine) evaluator() core.Evaluator {
	e.evalMu.RLock()
	defer e.evalMu.RUnlock()
	return e.eval
}

// Register appends rule to the end of the registration order (spec.md
// "Rules form an ordered list per cube; first match ... wins") and
// assigns it a stable id if it doesn't already have one.
func (e *Engine) Register(rule *Rule) string {
	if rule.ID == "" {
		rule.ID = uuid.NewV4().String()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append(e.rules, rule)
	return rule.ID
}

// Unregister removes the rule with the given id, if present.
func (e *Engine) Unregister(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, r := range e.rules {
		if r.ID == id {
			e.rules = append(e.rules[:i], e.rules[i+1:]...)
			return true
		}
	}
	return false
}

// List returns every registered rule, in registration order.
func (e *Engine) List() []*Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]*Rule(nil), e.rules...)
}

func (e *Engine) candidates(scopes ...Scope) []*Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	want := make(map[Scope]bool, len(scopes))
	for _, s := range scopes {
		want[s] = true
	}
	var out []*Rule
	for _, r := range e.rules {
		if want[r.Scope] {
			out = append(out, r)
		}
	}
	return out
}

// matches reports whether addr (one member id per dimension) satisfies
// every per-dimension selector of the trigger (spec.md §4.5 point 2:
// "match if every specified selector contains the address's coordinate
// in that dimension").
func (e *Engine) matches(trigger Trigger, addr []core.MemberID) bool {
	if len(trigger) == 0 {
		return true
	}
	for i, sel := range trigger {
		if sel.Kind == core.SelectorAny {
			continue
		}
		ids := resolver.Expand(e.dims[i], sel)
		found := false
		for _, id := range ids {
			if id == addr[i] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// MatchPreWalk is called by the aggregation engine before walking leaves
// when the evaluation target contains at least one aggregated
// coordinate (spec.md §4.4 step 5). Rules with AllLevels or
// AggregationLevel scope are eligible.
func (e *Engine) MatchPreWalk(ctx *core.Context, addr []core.MemberID, visited core.VisitSet) Outcome {
	return e.dispatch(ctx, addr, visited, e.candidates(AllLevels, AggregationLevel))
}

// MatchBaseLeaf is called by the aggregation engine at each visited base
// coordinate during the leaf walk (spec.md §4.4 step 4). Rules with
// AllLevels or BaseLevel scope are eligible.
func (e *Engine) MatchBaseLeaf(ctx *core.Context, addr []core.MemberID, visited core.VisitSet) Outcome {
	return e.dispatch(ctx, addr, visited, e.candidates(AllLevels, BaseLevel))
}

func (e *Engine) dispatch(ctx *core.Context, addr []core.MemberID, visited core.VisitSet, rules []*Rule) Outcome {
	key := addrKey(addr)
	for _, r := range rules {
		if !e.matches(r.Trigger, addr) {
			continue
		}
		if visited.Has(key) {
			// RuleRecursion (spec P8): caught, never panics the stack.
			return Outcome{Matched: true, RuleID: r.ID, Value: core.Recursion()}
		}
		v := e.invoke(ctx, r, addr, visited.With(key))
		if v.Marker == core.MarkerContinue {
			continue
		}
		if r.Volatile {
			v.Volatile = true
		}
		return Outcome{Matched: true, RuleID: r.ID, Value: v, Volatile: r.Volatile}
	}
	return Outcome{Matched: false}
}

func (e *Engine) invoke(ctx *core.Context, r *Rule, addr []core.MemberID, visited core.VisitSet) (result core.Value) {
	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("rule %s panicked: %v", r.ID, p)
			ctx.Logger().WithError(err).WithField("rule", r.ID).Error("rule callable panicked")
			result = core.ErrorValue(err)
		}
	}()

	cur := (&Cursor{
		engine:  e,
		addr:    append([]core.MemberID(nil), addr...),
		visited: visited,
		ctx:     ctx,
	}).bind(e.schema, e.cubeName)
	v := r.Body(ctx, cur)
	if v.Marker == core.MarkerError && v.Err != nil {
		ctx.Logger().WithError(v.Err).WithField("rule", r.ID).Warn("rule returned an error")
	}
	return v
}

// addrKey builds the VisitSet key for addr. Position carries dimension
// identity here (addr[i] is always dimension i's coordinate), so the key
// need only be a stable string encoding of the slice, not a sorted one.
func addrKey(addr []core.MemberID) string {
	return fmt.Sprint(addr)
}
