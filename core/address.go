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

package core

import (
	"fmt"
	"strings"
)

// MemberID is a small stable integer identifying a member within one
// dimension. IDs are only unique within a dimension, never across
// dimensions.
type MemberID uint32

// BaseAddress is a tuple of base-member ids, one per dimension of a cube,
// in cube order. It is the key type for the fact store.
type BaseAddress []MemberID

// String renders a base address as a packed, comparable representation
// suitable for log messages; it is not used as a map key (see
// fact.packKey for that).
func (a BaseAddress) String() string {
	parts := make([]string, len(a))
	for i, id := range a {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return "(" + strings.Join(parts, ",") + ")"
}

// SelectorKind distinguishes the ways a general address coordinate can
// select more than one member at once.
type SelectorKind uint8

const (
	// SelectorSingle is not really a selector: the coordinate names one
	// member exactly (base or aggregated).
	SelectorSingle SelectorKind = iota
	// SelectorSubset selects a named, ordered list of members.
	SelectorSubset
	// SelectorAttribute selects every member whose named attribute equals
	// a given value ("dim:attr:value").
	SelectorAttribute
	// SelectorWildcard selects every member whose name matches a glob
	// using '*' and '?' against member names only.
	SelectorWildcard
	// SelectorList selects an explicit, literal list of members.
	SelectorList
	// SelectorAny selects every member of the dimension (bare "*").
	SelectorAny
)

// Coordinate is one dimension's contribution to a general address: either
// a single member (the common case, usable directly as a read/evaluate
// target) or a selector describing a set of members (which makes the
// address describe an area rather than a single cell, see AreaSpec).
type Coordinate struct {
	Kind SelectorKind
	// Single is populated when Kind == SelectorSingle.
	Single MemberID
	// AttrName/AttrValue populated when Kind == SelectorAttribute.
	AttrName  string
	AttrValue interface{}
	// SubsetName populated when Kind == SelectorSubset.
	SubsetName string
	// Pattern populated when Kind == SelectorWildcard.
	Pattern string
	// List populated when Kind == SelectorList.
	List []MemberID
}

// SingleCoordinate builds the common-case coordinate naming one member.
func SingleCoordinate(id MemberID) Coordinate {
	return Coordinate{Kind: SelectorSingle, Single: id}
}

// IsSingle reports whether this coordinate names exactly one member.
func (c Coordinate) IsSingle() bool { return c.Kind == SelectorSingle }

// GeneralAddress permits any member (base or aggregated) or any selector
// per dimension, one entry per dimension of the owning cube, in cube
// order. A GeneralAddress all of whose coordinates are SelectorSingle
// base members is a base address; any other shape is an area.
type GeneralAddress []Coordinate

// IsBaseShaped reports whether every coordinate is a single member,
// making this address a candidate read/evaluate target rather than an
// area (whether the members are actually base-level is a dimension-level
// question the resolver/aggregator answer, not this package).
func (a GeneralAddress) IsBaseShaped() bool {
	for _, c := range a {
		if !c.IsSingle() {
			return false
		}
	}
	return true
}

// AreaSpec is the resolved, dimension-order list of per-dimension
// candidate base-member sets used to drive fact store area iteration
// (§4.2, §4.7). Unlike GeneralAddress it has already been expanded:
// each entry is the concrete set of base member ids the corresponding
// coordinate resolves to.
type AreaSpec struct {
	Dims [][]MemberID
}

// Size returns the cardinality of the full Cartesian product the area
// describes, used for the AreaTooLarge guardrail.
func (a AreaSpec) Size() int64 {
	var total int64 = 1
	for _, d := range a.Dims {
		total *= int64(len(d))
	}
	return total
}
