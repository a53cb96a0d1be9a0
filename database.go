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
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/molapdb/molap/core"
	"github.com/molapdb/molap/dimension"
	"github.com/molapdb/molap/persist"
	"github.com/molapdb/molap/resolver"
)

// Database is the top-level facade (spec.md §6 "Database facade"): owns
// every dimension and cube, serializes structural edits and cascade
// deletes on a single write lock (spec.md §5 "Shared resources"), and
// optionally holds a persist.Hook attached with WithPersistence; none of
// its methods call the hook.
type Database struct {
	name string
	cfg  Config
	hook persist.Hook

	mu    sync.RWMutex
	dims  map[string]*dimension.Dimension
	cubes map[string]*Cube

	errSinkMu sync.RWMutex
	errSink   func(ctx *Context, err error)
}

// New creates a Database named name. A nil cfg applies SPEC_FULL §A.3
// defaults, mirroring the teacher's sqle.New(cfg).
func New(name string, cfg *Config) *Database {
	return &Database{
		name:  name,
		cfg:   applyDefaults(cfg),
		dims:  make(map[string]*dimension.Dimension),
		cubes: make(map[string]*Cube),
	}
}

// Name returns the database's name.
func (db *Database) Name() string { return db.name }

// WithPersistence attaches hook as the database's persistence backend.
func (db *Database) WithPersistence(hook persist.Hook) *Database {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.hook = hook
	return db
}

// SetErrorSink installs the callback invoked for observability-only
// errors. Only cascade deletes (RemoveMember) are reported to it; rule
// errors and recursion are not sent to the sink, they are carried as
// markers on the evaluated Value and rule errors are logged through the
// Context's logger.
func (db *Database) SetErrorSink(sink func(ctx *Context, err error)) {
	db.errSinkMu.Lock()
	defer db.errSinkMu.Unlock()
	db.errSink = sink
}

func (db *Database) reportError(ctx *Context, err error) {
	db.errSinkMu.RLock()
	sink := db.errSink
	db.errSinkMu.RUnlock()
	if sink != nil {
		sink(ctx, err)
	}
}

// AddDimension creates and registers a new, empty dimension.
func (db *Database) AddDimension(name string) (*dimension.Dimension, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.dims[name]; ok {
		return nil, core.ErrDuplicateName.New(name, db.name)
	}
	d := dimension.NewDimension(name)
	db.dims[name] = d
	return d, nil
}

// Dimension returns the named dimension, if registered.
func (db *Database) Dimension(name string) (*dimension.Dimension, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	d, ok := db.dims[name]
	return d, ok
}

// Dimensions returns every registered dimension, sorted by name.
func (db *Database) Dimensions() []*dimension.Dimension {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]*dimension.Dimension, 0, len(db.dims))
	for _, d := range db.dims {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// RemoveDimension drops a dimension, refusing if any cube still
// references it (invariant I5).
func (db *Database) RemoveDimension(name string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.dims[name]; !ok {
		return core.ErrUnknownDimension.New(name)
	}
	for _, c := range db.cubes {
		for _, d := range c.dims {
			if d.Name() == name {
				return core.ErrReferentialIntegrity.New(name, c.name)
			}
		}
	}
	delete(db.dims, name)
	return nil
}

// AddCube creates a cube over dimNames, in the given order, wiring a
// fresh Fact Store, Rules Engine, Aggregation Engine, and Result Cache
// together (spec.md §2 component diagram).
func (db *Database) AddCube(name string, dimNames []string) (*Cube, error) {
	if len(dimNames) == 0 {
		return nil, core.ErrNoDimensions.New(name)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.cubes[name]; ok {
		return nil, core.ErrDuplicateName.New(name, db.name)
	}

	dims := make(resolver.CubeDimensions, len(dimNames))
	for i, dn := range dimNames {
		d, ok := db.dims[dn]
		if !ok {
			return nil, core.ErrUnknownDimension.New(dn)
		}
		dims[i] = d
	}

	c := newCube(db, name, dims)
	db.cubes[name] = c
	return c, nil
}

// Cube returns the named cube, if registered.
func (db *Database) Cube(name string) (*Cube, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	c, ok := db.cubes[name]
	return c, ok
}

// Cubes returns every registered cube, sorted by name.
func (db *Database) Cubes() []*Cube {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]*Cube, 0, len(db.cubes))
	for _, c := range db.cubes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// RemoveCube drops a cube and all of its stored facts.
func (db *Database) RemoveCube(name string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.cubes[name]; !ok {
		return core.ErrUnknownCube.New(name)
	}
	delete(db.cubes, name)
	return nil
}

// BeginEdit opens a structural edit session on the named dimension
// (spec.md §4.1 "Clean -> Editing"). Committing the session makes the
// new structure visible to every cube over the dimension (cube cache keys
// include the dimension's structure version); it does not cascade fact
// deletes for removed members -- RemoveMember is the path that does.
func (db *Database) BeginEdit(dimName string) (*dimension.EditSession, error) {
	d, ok := db.Dimension(dimName)
	if !ok {
		return nil, core.ErrUnknownDimension.New(dimName)
	}
	return d.BeginEdit(), nil
}

// RemoveMember is the high-level cascade-aware member removal the
// Database facade exposes (spec.md §7 "InUse ... Log + cascade delete of
// facts"): it opens an edit session, removes the member, and -- if the
// member was a base member with stored facts -- deletes every dependent
// fact across every cube that references dimName, provided
// Config.CascadeDeleteEnabled.
func (db *Database) RemoveMember(ctx *Context, dimName, memberName string) error {
	d, ok := db.Dimension(dimName)
	if !ok {
		return core.ErrUnknownDimension.New(dimName)
	}

	es := d.BeginEdit()
	id, ok := d.Resolve(memberName)
	if !ok {
		es.Rollback()
		return core.ErrUnknownMember.New(memberName)
	}

	wasBase, err := es.RemoveMember(id)
	if err != nil {
		es.Rollback()
		return err
	}
	if err := es.Commit(); err != nil {
		return errors.Wrap(err, "molap: committing member removal")
	}

	if wasBase {
		db.cascadeDeleteMember(ctx, dimName, id)
	}
	db.bumpStructureVersions(dimName)
	return nil
}

func (db *Database) cascadeDeleteMember(ctx *Context, dimName string, id core.MemberID) {
	if !db.cfg.CascadeDeleteEnabled {
		return
	}
	db.mu.RLock()
	cubes := make([]*Cube, 0, len(db.cubes))
	for _, c := range db.cubes {
		cubes = append(cubes, c)
	}
	db.mu.RUnlock()

	for _, c := range cubes {
		for i, d := range c.dims {
			if d.Name() != dimName {
				continue
			}
			removed := c.store.DeleteMember(i, id)
			if len(removed) > 0 {
				db.reportError(ctx, core.ErrInUse.New(dimName, c.name))
				c.versions.BumpData()
			}
		}
	}
}

func (db *Database) bumpStructureVersions(dimName string) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	for _, c := range db.cubes {
		for _, d := range c.dims {
			if d.Name() == dimName {
				c.versions.BumpStructure()
				break
			}
		}
	}
}
