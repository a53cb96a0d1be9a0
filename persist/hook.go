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

// Package persist defines the Persistence Hook (spec.md §6): a pluggable
// interface the core invokes for snapshot save and journal append. The
// core prescribes what is persisted, never how; Bolt (bolt.go) is the
// default implementation.
package persist

import (
	"time"

	"github.com/molapdb/molap/core"
)

// BatchID identifies one open write batch (spec.md §4.7 "each area write
// is a logical batch").
type BatchID string

// StructureChangeKind enumerates the dimension edit operations the
// journal records, mirroring dimension.EditSession's operation set.
type StructureChangeKind uint8

const (
	MemberAdded StructureChangeKind = iota
	EdgeAdded
	WeightChanged
	MemberRemoved
	AliasAdded
	MemberRenamed
	AttributeSet
	SubsetDefined
)

// StructureChange is one journaled structural edit.
type StructureChange struct {
	Dimension string
	Kind      StructureChangeKind
	Payload   map[string]interface{}
}

// Metadata is the database-level record (spec.md §6 "metadata (name,
// created_at, engine_version)").
type Metadata struct {
	Name         string    `yaml:"name"`
	CreatedAt    time.Time `yaml:"created_at"`
	EngineVersion string   `yaml:"engine_version"`
}

// MemberRecord is one row of a dimension's member table.
type MemberRecord struct {
	ID         uint32                 `yaml:"id"`
	Name       string                 `yaml:"name"`
	Aliases    []string               `yaml:"aliases"`
	Attributes map[string]interface{} `yaml:"attributes"`
}

// EdgeRecord is one weighted parent->child edge.
type EdgeRecord struct {
	Parent uint32  `yaml:"parent"`
	Child  uint32  `yaml:"child"`
	Weight float64 `yaml:"weight"`
}

// DimensionRecord is one dimension's full persisted table set.
type DimensionRecord struct {
	Name    string              `yaml:"name"`
	Members []MemberRecord      `yaml:"members"`
	Edges   []EdgeRecord        `yaml:"edges"`
	Subsets map[string][]uint32 `yaml:"subsets"`
}

// CubeRecord is a cube's persisted identity (spec.md §6 "cube table:
// name, dim_order"). Rules are never persisted; collaborators restore
// them on open.
type CubeRecord struct {
	Name     string   `yaml:"name"`
	DimOrder []string `yaml:"dim_order"`
}

// FactRecord is one stored fact (spec.md §6 "fact table: cube_id,
// packed_address, value").
type FactRecord struct {
	Cube  string   `yaml:"cube"`
	Addr  []uint32 `yaml:"addr"`
	Value float64  `yaml:"value"`
}

// Snapshot is the full logical state of one database, used by
// LoadSnapshot and by a Hook implementation's internal bookkeeping.
type Snapshot struct {
	Metadata   Metadata          `yaml:"metadata"`
	Dimensions []DimensionRecord `yaml:"dimensions"`
	Cubes      []CubeRecord      `yaml:"cubes"`
	Facts      []FactRecord      `yaml:"facts"`
}

// Record is one journal entry replayed in order by ReplayJournal.
type Record struct {
	Batch     BatchID
	Fact      *FactRecord
	Structure *StructureChange
}

// Hook is the pluggable persistence boundary (spec.md §6). Every method
// takes a *core.Context so implementations can log and trace; none of
// them are required to block the in-memory engine -- a Hook may buffer
// and flush asynchronously, as long as ReplayJournal on reopen produces
// an equivalent state.
type Hook interface {
	// BeginBatch opens a new write batch and returns its id.
	BeginBatch(ctx *core.Context) (BatchID, error)
	// AppendFactWrite journals one fact write within an open batch.
	AppendFactWrite(ctx *core.Context, batch BatchID, cube string, addr []uint32, value float64) error
	// AppendStructureChange journals one structural edit within an open
	// batch.
	AppendStructureChange(ctx *core.Context, batch BatchID, change StructureChange) error
	// CommitBatch durably finalizes batch; entries appended to it become
	// visible to a subsequent ReplayJournal.
	CommitBatch(ctx *core.Context, batch BatchID) error
	// LoadSnapshot returns the most recently saved full snapshot, or
	// ok=false if none exists yet (a fresh database).
	LoadSnapshot(ctx *core.Context) (snap *Snapshot, ok bool, err error)
	// ReplayJournal calls apply, in commit order, for every committed
	// journal entry recorded after the last snapshot.
	ReplayJournal(ctx *core.Context, apply func(Record) error) error
	// SaveSnapshot persists snap as the new baseline, superseding the
	// journal entries it subsumes.
	SaveSnapshot(ctx *core.Context, snap *Snapshot) error
	// Close releases any resources the hook holds open.
	Close() error
}
