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
	"fmt"

	"github.com/spf13/cast"

	"github.com/molapdb/molap/core"
)

// Subset returns the named ordered member list (spec.md §3 Subset), or
// nil if undefined.
func (d *Dimension) Subset(name string) []core.MemberID {
	s := d.snapshot()
	return append([]core.MemberID(nil), s.subsets[name]...)
}

// AttributeString returns a member's attribute coerced to a string via
// spf13/cast, tolerating values that arrived as numbers or bools through
// a persistence hook's generic representation (SPEC_FULL §B).
func (d *Dimension) AttributeString(id core.MemberID, name string) (string, error) {
	raw, ok := d.rawAttribute(id, name)
	if !ok {
		return "", fmt.Errorf("dimension %s: member %d has no attribute %q", d.name, id, name)
	}
	return cast.ToStringE(raw)
}

// AttributeFloat returns a member's attribute coerced to a float64.
func (d *Dimension) AttributeFloat(id core.MemberID, name string) (float64, error) {
	raw, ok := d.rawAttribute(id, name)
	if !ok {
		return 0, fmt.Errorf("dimension %s: member %d has no attribute %q", d.name, id, name)
	}
	return cast.ToFloat64E(raw)
}

// AttributeBool returns a member's attribute coerced to a bool.
func (d *Dimension) AttributeBool(id core.MemberID, name string) (bool, error) {
	raw, ok := d.rawAttribute(id, name)
	if !ok {
		return false, fmt.Errorf("dimension %s: member %d has no attribute %q", d.name, id, name)
	}
	return cast.ToBoolE(raw)
}

func (d *Dimension) rawAttribute(id core.MemberID, name string) (interface{}, bool) {
	s := d.snapshot()
	m, ok := s.members[id]
	if !ok {
		return nil, false
	}
	v, ok := m.Attributes[name]
	return v, ok
}

// AttributeIndex builds (uncached beyond the snapshot it was built from)
// a map from the string form of an attribute's value to every member
// that carries it, backing the resolver's `dim:attr:value` selector
// form (spec.md §4.3, SPEC_FULL §C "Attribute indexing"). Building it
// lazily per-query is acceptable at this spec's target scale (≤32
// dimensions, ≤ a few million facts -- dimensions themselves are
// expected to hold at most tens of thousands of members).
func (d *Dimension) AttributeIndex(name string) map[string][]core.MemberID {
	s := d.snapshot()
	idx := make(map[string][]core.MemberID)
	for _, id := range s.order {
		m := s.members[id]
		raw, ok := m.Attributes[name]
		if !ok {
			continue
		}
		key, err := cast.ToStringE(raw)
		if err != nil {
			continue
		}
		idx[key] = append(idx[key], id)
	}
	return idx
}

// MembersMatchingAttribute returns every member whose attribute name
// casts to a string equal to value.
func (d *Dimension) MembersMatchingAttribute(name string, value interface{}) ([]core.MemberID, error) {
	target, err := cast.ToStringE(value)
	if err != nil {
		return nil, err
	}
	return d.AttributeIndex(name)[target], nil
}
