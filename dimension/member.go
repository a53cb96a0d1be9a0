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

// Package dimension implements the Member Registry and Dimension
// Hierarchy (spec.md §4.1): per-member names/aliases/attributes, the
// parent/child weighted edges, and the memoized leaf expansion that the
// aggregation engine walks.
package dimension

import "github.com/molapdb/molap/core"

// Member is one element of a dimension.
type Member struct {
	ID      core.MemberID
	Name    string
	Aliases map[string]bool
	// Attributes holds raw values; use Dimension.AttributeString,
	// AttributeFloat or AttributeBool for typed coercion via spf13/cast.
	Attributes map[string]interface{}
	Format     string
}

// clone deep-copies m for use in a new edit-session snapshot; the
// returned Member shares no mutable state with m.
func (m *Member) clone() *Member {
	cp := &Member{
		ID:         m.ID,
		Name:       m.Name,
		Aliases:    make(map[string]bool, len(m.Aliases)),
		Attributes: make(map[string]interface{}, len(m.Attributes)),
		Format:     m.Format,
	}
	for k, v := range m.Aliases {
		cp.Aliases[k] = v
	}
	for k, v := range m.Attributes {
		cp.Attributes[k] = v
	}
	return cp
}
