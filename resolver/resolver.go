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

// Package resolver implements the Address/Area Resolver (spec.md §4.3):
// turning a user-facing address (positional, dimension-qualified, or a
// mix, with optional wildcards/subsets/attribute filters) into a
// canonical core.GeneralAddress.
package resolver

import (
	"path/filepath"
	"strings"

	"github.com/molapdb/molap/core"
	"github.com/molapdb/molap/dimension"
)

// CubeDimensions is the ordered list of dimensions a Resolver resolves
// against, in cube order.
type CubeDimensions []*dimension.Dimension

// Resolver resolves address tokens against one cube's dimensions.
type Resolver struct {
	dims CubeDimensions
}

// New creates a Resolver bound to dims, in cube order.
func New(dims CubeDimensions) *Resolver {
	return &Resolver{dims: dims}
}

// Token is one piece of user input: either a bare member/selector token
// (dimension inferred by unique name) or a "dimension:member" qualified
// token (dimension named explicitly). Positional tokens (no qualifier)
// are matched to cube dimension order by the caller before being passed
// in as a bare Token when there is no ambiguity to resolve; Resolve
// accepts either positional-by-index or name-addressed input, see
// ResolvePositional / ResolveMixed.
type Token struct {
	Dimension string // "" if unqualified
	Value     string
}

// ResolvePositional resolves one token per cube dimension, in cube
// order. Dimensions with an empty token default to the dimension's
// unique root (spec.md §4.3); a dimension with no unique root is
// UnderdefinedAddress.
func (r *Resolver) ResolvePositional(tokens []string) (core.GeneralAddress, error) {
	if len(tokens) > len(r.dims) {
		return nil, core.ErrUnderdefinedAddress.New(r.dims[len(r.dims)-1].Name())
	}
	addr := make(core.GeneralAddress, len(r.dims))
	for i, d := range r.dims {
		var tok string
		if i < len(tokens) {
			tok = tokens[i]
		}
		c, err := r.resolveOne(d, tok)
		if err != nil {
			return nil, err
		}
		addr[i] = c
	}
	return addr, nil
}

// ResolveMixed resolves a mixture of qualified ("dimension:member") and
// unqualified tokens, order-independent for qualified tokens. Unqualified
// tokens are matched by unique name search across the cube's dimensions
// (spec.md §4.3); on a name present in more than one dimension,
// AmbiguousMember is returned unless the qualified form was used.
// Dimensions that receive no token default to their root.
func (r *Resolver) ResolveMixed(tokens []Token) (core.GeneralAddress, error) {
	assigned := make(map[int]string)

	for _, t := range tokens {
		if t.Dimension != "" {
			idx, ok := r.indexOf(t.Dimension)
			if !ok {
				return nil, core.ErrUnknownDimension.New(t.Dimension)
			}
			assigned[idx] = t.Value
			continue
		}
		idx, err := r.findUniqueDimensionForValue(t.Value)
		if err != nil {
			return nil, err
		}
		assigned[idx] = t.Value
	}

	addr := make(core.GeneralAddress, len(r.dims))
	for i, d := range r.dims {
		c, err := r.resolveOne(d, assigned[i])
		if err != nil {
			return nil, err
		}
		addr[i] = c
	}
	return addr, nil
}

// findUniqueDimensionForValue implements the "unqualified members are
// resolved by unique name search across the cube's dimensions" rule,
// including the wildcard/list/attribute selector forms: a selector is
// attributed to whichever single dimension can parse and satisfy it.
func (r *Resolver) findUniqueDimensionForValue(value string) (int, error) {
	var matches []int
	for i, d := range r.dims {
		if _, ok := resolveSelectorAgainst(d, value); ok {
			matches = append(matches, i)
		}
	}
	switch len(matches) {
	case 0:
		return 0, core.ErrUnknownMember.New(value)
	case 1:
		return matches[0], nil
	default:
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = r.dims[m].Name()
		}
		return 0, core.ErrAmbiguousMember.New(value, names)
	}
}

func (r *Resolver) indexOf(dimName string) (int, bool) {
	fold := strings.ToLower(strings.TrimSpace(dimName))
	for i, d := range r.dims {
		if strings.ToLower(d.Name()) == fold {
			return i, true
		}
	}
	return 0, false
}

func (r *Resolver) resolveOne(d *dimension.Dimension, tok string) (core.Coordinate, error) {
	if tok == "" {
		top, ok := d.Top()
		if !ok {
			return core.Coordinate{}, core.ErrUnderdefinedAddress.New(d.Name())
		}
		return core.SingleCoordinate(top), nil
	}
	c, ok := resolveSelectorAgainst(d, tok)
	if !ok {
		return core.Coordinate{}, core.ErrUnknownMember.New(tok)
	}
	return c, nil
}

// resolveSelectorAgainst parses tok against dimension d's member/alias
// namespace, subsets, and attribute-filter/wildcard/list grammar
// (spec.md §4.3 "Canonicalization rules"). ok is false if tok cannot be
// resolved against d at all (distinct from a resolved-but-empty
// selector, which is still ok=true -- e.g. a wildcard matching nothing).
func resolveSelectorAgainst(d *dimension.Dimension, tok string) (core.Coordinate, bool) {
	trimmed := strings.TrimSpace(tok)

	if trimmed == "*" {
		return core.Coordinate{Kind: core.SelectorAny}, true
	}

	if strings.Contains(trimmed, ",") {
		parts := strings.Split(trimmed, ",")
		var ids []core.MemberID
		for _, p := range parts {
			id, ok := d.Resolve(strings.TrimSpace(p))
			if !ok {
				return core.Coordinate{}, false
			}
			ids = append(ids, id)
		}
		return core.Coordinate{Kind: core.SelectorList, List: ids}, true
	}

	if strings.Contains(trimmed, ":") {
		parts := strings.SplitN(trimmed, ":", 2)
		attrName, attrValue := parts[0], parts[1]
		idx := d.AttributeIndex(attrName)
		if _, ok := idx[attrValue]; !ok {
			return core.Coordinate{}, false
		}
		return core.Coordinate{Kind: core.SelectorAttribute, AttrName: attrName, AttrValue: attrValue}, true
	}

	if strings.ContainsAny(trimmed, "*?") {
		matched := false
		for _, m := range d.Members() {
			if ok, _ := filepath.Match(trimmed, m.Name); ok {
				matched = true
				break
			}
		}
		if !matched {
			return core.Coordinate{}, false
		}
		return core.Coordinate{Kind: core.SelectorWildcard, Pattern: trimmed}, true
	}

	if subset := d.Subset(trimmed); subset != nil {
		return core.Coordinate{Kind: core.SelectorSubset, SubsetName: trimmed}, true
	}

	if id, ok := d.Resolve(trimmed); ok {
		return core.SingleCoordinate(id), true
	}

	return core.Coordinate{}, false
}

// Expand turns a single dimension's Coordinate into its concrete member
// id set, aggregated members included, used by area-spec construction
// (ExpandArea, which then leaf-expands the result), by Cube's selector-sum
// read path, and by rule-trigger matching.
func Expand(d *dimension.Dimension, c core.Coordinate) []core.MemberID {
	switch c.Kind {
	case core.SelectorSingle:
		return []core.MemberID{c.Single}
	case core.SelectorAny:
		ids := make([]core.MemberID, 0, len(d.Members()))
		for _, m := range d.Members() {
			ids = append(ids, m.ID)
		}
		return ids
	case core.SelectorList:
		return c.List
	case core.SelectorSubset:
		return d.Subset(c.SubsetName)
	case core.SelectorAttribute:
		ids, _ := d.MembersMatchingAttribute(c.AttrName, c.AttrValue)
		return ids
	case core.SelectorWildcard:
		var ids []core.MemberID
		for _, m := range d.Members() {
			if ok, _ := filepath.Match(c.Pattern, m.Name); ok {
				ids = append(ids, m.ID)
			}
		}
		return ids
	default:
		return nil
	}
}

// ExpandArea expands every coordinate of addr against dims into a
// core.AreaSpec of concrete base member-id sets, in dimension order.
// Area operations read/write/delete raw facts in the Fact Store, which
// are only ever keyed by base member ids (spec.md §4.2 invariant F3), so
// any non-base id a coordinate names -- a SelectorSingle on an
// aggregated member, or a SelectorAny/wildcard/subset/attribute set that
// includes one -- is leaf-expanded to its base descendants before it
// reaches the area spec.
func ExpandArea(dims CubeDimensions, addr core.GeneralAddress) core.AreaSpec {
	out := core.AreaSpec{Dims: make([][]core.MemberID, len(dims))}
	for i, d := range dims {
		out.Dims[i] = expandToBase(d, Expand(d, addr[i]))
	}
	return out
}

// expandToBase replaces every non-base id in ids with its leaf
// expansion's base descendants, deduplicating the result (a diamond
// hierarchy can reach the same base member through more than one
// aggregated ancestor already present in ids).
func expandToBase(d *dimension.Dimension, ids []core.MemberID) []core.MemberID {
	seen := make(map[core.MemberID]bool, len(ids))
	out := make([]core.MemberID, 0, len(ids))
	for _, id := range ids {
		if d.IsBase(id) {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
			continue
		}
		for _, lw := range d.LeafExpansion(id) {
			if !seen[lw.Base] {
				seen[lw.Base] = true
				out = append(out, lw.Base)
			}
		}
	}
	return out
}
