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
	"github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"

	"github.com/molapdb/molap/core"
)

// EditState is the edit session state machine of spec.md §4.1:
// Clean -> Editing -> (Commit | Rollback) -> Clean.
type EditState uint8

const (
	StateClean EditState = iota
	StateEditing
	StateCommitted
	StateRolledBack
)

// EditSession is the staged mutation buffer for one round of structural
// edits to a Dimension. Reads against the Dimension during Editing see
// the pre-edit snapshot (snapshot isolation, spec.md §5); Commit swaps
// the buffer in as a single atomic operation or fails without any
// partial change becoming visible (spec.md "Failure semantics").
type EditSession struct {
	Token string // satori/go.uuid token identifying this session for logs

	dim   *Dimension
	state EditState
	buf   *snapshot
}

// BeginEdit opens an edit session on d. Only one session may be open on a
// dimension at a time (single-writer, spec.md §5); BeginEdit blocks until
// any prior session has been committed or rolled back.
func (d *Dimension) BeginEdit() *EditSession {
	d.editMu.Lock()
	s := d.snapshot()
	return &EditSession{
		Token: uuid.NewV4().String(),
		dim:   d,
		state: StateEditing,
		buf:   s.clone(),
	}
}

func (es *EditSession) requireEditing() error {
	if es.state != StateEditing {
		return core.ErrEditSessionClosed.New(es.dim.name)
	}
	return nil
}

// AddMember inserts a member, optionally as a child of parent with the
// given weight (default +1.0 is the caller's responsibility; see
// Dimension.AddMember for the convenience wrapper). Fails with
// DuplicateName if the name/alias collides, CycleDetected if the parent
// edge would introduce a cycle.
func (es *EditSession) AddMember(name string, parent string, weight float64) (core.MemberID, error) {
	if err := es.requireEditing(); err != nil {
		return 0, err
	}
	key := fold(name)
	if _, exists := es.buf.nameIdx[key]; exists {
		return 0, core.ErrDuplicateName.New(name, es.dim.name)
	}

	id := es.buf.nextID
	es.buf.nextID++

	m := &Member{
		ID:         id,
		Name:       name,
		Aliases:    make(map[string]bool),
		Attributes: make(map[string]interface{}),
	}
	es.buf.members[id] = m
	es.buf.nameIdx[key] = id
	es.buf.order = append(es.buf.order, id)
	if es.buf.parents[id] == nil {
		es.buf.parents[id] = make(map[core.MemberID]bool)
	}

	if parent != "" {
		parentID, ok := es.buf.nameIdx[fold(parent)]
		if !ok {
			return 0, core.ErrUnknownMember.New(parent)
		}
		if err := es.addEdgeLocked(parentID, id, weight); err != nil {
			return 0, err
		}
	}

	return id, nil
}

// AddEdge adds (or, if one already exists for this parent/child pair,
// see SetWeight) a weighted parent->child edge, without creating a new
// member. This is how diamond hierarchies are built: a member created
// under one parent is given a second parent with its own weight (spec
// scenario S4).
func (es *EditSession) AddEdge(parent, child core.MemberID, weight float64) error {
	if err := es.requireEditing(); err != nil {
		return err
	}
	return es.addEdgeLocked(parent, child, weight)
}

func (es *EditSession) addEdgeLocked(parent, child core.MemberID, weight float64) error {
	if wouldCycle(es.buf, parent, child) {
		return core.ErrCycleDetected.New(childName(es.buf, child), parentName(es.buf, parent))
	}
	es.buf.children[parent] = append(es.buf.children[parent], edge{child: child, weight: weight})
	if es.buf.parents[child] == nil {
		es.buf.parents[child] = make(map[core.MemberID]bool)
	}
	es.buf.parents[child][parent] = true
	return nil
}

func childName(s *snapshot, id core.MemberID) string {
	if m, ok := s.members[id]; ok {
		return m.Name
	}
	return "?"
}
func parentName(s *snapshot, id core.MemberID) string { return childName(s, id) }

// SetWeight updates the weight of an existing parent->child edge, adding
// it if absent.
func (es *EditSession) SetWeight(parent, child core.MemberID, weight float64) error {
	if err := es.requireEditing(); err != nil {
		return err
	}
	es.buf.parents[child] = es.buf.parents[child]
	for i, e := range es.buf.children[parent] {
		if e.child == child {
			es.buf.children[parent][i].weight = weight
			return nil
		}
	}
	return es.addEdgeLocked(parent, child, weight)
}

// RemoveMember removes a member and its edges. It returns true if id was
// a base member at removal time, so the caller (the Database facade,
// which has visibility into every cube's fact store) can decide whether
// a cascading fact delete is needed (spec.md §4.1 InUse / I5).
func (es *EditSession) RemoveMember(id core.MemberID) (wasBase bool, err error) {
	if err := es.requireEditing(); err != nil {
		return false, err
	}
	m, ok := es.buf.members[id]
	if !ok {
		return false, nil
	}
	wasBase = len(es.buf.children[id]) == 0

	delete(es.buf.nameIdx, fold(m.Name))
	for alias := range m.Aliases {
		delete(es.buf.nameIdx, fold(alias))
	}
	delete(es.buf.members, id)
	delete(es.buf.children, id)
	delete(es.buf.parents, id)
	for parent, edges := range es.buf.children {
		kept := edges[:0]
		for _, e := range edges {
			if e.child != id {
				kept = append(kept, e)
			}
		}
		es.buf.children[parent] = kept
	}
	for i, oid := range es.buf.order {
		if oid == id {
			es.buf.order = append(es.buf.order[:i], es.buf.order[i+1:]...)
			break
		}
	}
	return wasBase, nil
}

// AddAlias adds an additional name for id, sharing the dimension's single
// name/alias namespace.
func (es *EditSession) AddAlias(id core.MemberID, alias string) error {
	if err := es.requireEditing(); err != nil {
		return err
	}
	key := fold(alias)
	if _, exists := es.buf.nameIdx[key]; exists {
		return core.ErrDuplicateName.New(alias, es.dim.name)
	}
	m, ok := es.buf.members[id]
	if !ok {
		return core.ErrUnknownMember.New(alias)
	}
	m.Aliases[alias] = true
	es.buf.nameIdx[key] = id
	return nil
}

// Rename changes a member's primary name. The old name becomes
// unresolvable unless it was also registered as an alias.
func (es *EditSession) Rename(id core.MemberID, newName string) error {
	if err := es.requireEditing(); err != nil {
		return err
	}
	m, ok := es.buf.members[id]
	if !ok {
		return core.ErrUnknownMember.New(newName)
	}
	key := fold(newName)
	if existing, exists := es.buf.nameIdx[key]; exists && existing != id {
		return core.ErrDuplicateName.New(newName, es.dim.name)
	}
	delete(es.buf.nameIdx, fold(m.Name))
	m.Name = newName
	es.buf.nameIdx[key] = id
	return nil
}

// AddAttribute sets a typed attribute value on a member.
func (es *EditSession) AddAttribute(id core.MemberID, name string, value interface{}) error {
	if err := es.requireEditing(); err != nil {
		return err
	}
	m, ok := es.buf.members[id]
	if !ok {
		return core.ErrUnknownMember.New(name)
	}
	m.Attributes[name] = value
	return nil
}

// DefineSubset creates or replaces a named, ordered member list.
func (es *EditSession) DefineSubset(name string, members []core.MemberID) error {
	if err := es.requireEditing(); err != nil {
		return err
	}
	es.buf.subsets[name] = append([]core.MemberID(nil), members...)
	return nil
}

// Commit atomically swaps the dimension's live tables for the staged
// buffer and bumps the structure version. A failed commit (session
// already closed) discards nothing further since nothing was visible
// yet.
func (es *EditSession) Commit() error {
	if err := es.requireEditing(); err != nil {
		return err
	}
	defer es.dim.editMu.Unlock()
	es.dim.mu.Lock()
	es.dim.live = es.buf
	es.dim.structureVersion++
	es.dim.mu.Unlock()
	es.state = StateCommitted

	es.dim.editing = false
	logrus.WithFields(logrus.Fields{
		"dimension": es.dim.name,
		"session":   es.Token,
		"version":   es.dim.structureVersion,
	}).Debug("dimension edit session committed")
	return nil
}

// Rollback discards the edit buffer; the dimension is unchanged.
func (es *EditSession) Rollback() {
	defer es.dim.editMu.Unlock()
	es.state = StateRolledBack
	es.dim.editing = false
}

// --- convenience single-operation wrappers used outside explicit
// multi-step edit sessions ---

// AddMember opens a session, adds one member, and commits.
func (d *Dimension) AddMember(name string, parent string, weight float64) (core.MemberID, error) {
	es := d.BeginEdit()
	id, err := es.AddMember(name, parent, weight)
	if err != nil {
		es.Rollback()
		return 0, err
	}
	return id, es.Commit()
}

// RemoveMember opens a session, removes one member, and commits.
func (d *Dimension) RemoveMember(name string) (wasBase bool, err error) {
	id, ok := d.Resolve(name)
	if !ok {
		return false, core.ErrUnknownMember.New(name)
	}
	es := d.BeginEdit()
	wasBase, err = es.RemoveMember(id)
	if err != nil {
		es.Rollback()
		return false, err
	}
	return wasBase, es.Commit()
}

// AddAlias opens a session, adds one alias, and commits.
func (d *Dimension) AddAlias(name, alias string) error {
	id, ok := d.Resolve(name)
	if !ok {
		return core.ErrUnknownMember.New(name)
	}
	es := d.BeginEdit()
	if err := es.AddAlias(id, alias); err != nil {
		es.Rollback()
		return err
	}
	return es.Commit()
}

// SetWeight opens a session, updates one edge weight, and commits.
func (d *Dimension) SetWeight(parent, child string, weight float64) error {
	pid, ok := d.Resolve(parent)
	if !ok {
		return core.ErrUnknownMember.New(parent)
	}
	cid, ok := d.Resolve(child)
	if !ok {
		return core.ErrUnknownMember.New(child)
	}
	es := d.BeginEdit()
	if err := es.SetWeight(pid, cid, weight); err != nil {
		es.Rollback()
		return err
	}
	return es.Commit()
}
