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

package persist

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/boltdb/bolt"
	"github.com/satori/go.uuid"
	"gopkg.in/yaml.v2"

	"github.com/molapdb/molap/core"
)

var (
	bucketMeta    = []byte("meta")
	bucketJournal = []byte("journal")

	keyMetadata = []byte("metadata")
	keySnapshot = []byte("snapshot")
)

// BoltHook is the default Hook implementation (spec.md §6), backed by a
// single boltdb file. Journal entries are buffered per batch in memory
// and flushed to the "journal" bucket as a single boltdb transaction on
// CommitBatch, so a crash mid-batch leaves no partial entries for
// ReplayJournal to see.
type BoltHook struct {
	db *bolt.DB

	mu      sync.Mutex
	batches map[BatchID][]Record
	seq     uint64
}

// OpenBolt opens (creating if absent) a boltdb file at path as the
// persistence backend for one database.
func OpenBolt(path string, name string) (*BoltHook, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("persist: opening bolt store: %w", err)
	}

	h := &BoltHook{db: db, batches: make(map[BatchID][]Record)}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketMeta, bucketJournal} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		meta := tx.Bucket(bucketMeta)
		if meta.Get(keyMetadata) == nil {
			m := Metadata{Name: name, CreatedAt: time.Now().UTC(), EngineVersion: "1"}
			buf, err := yaml.Marshal(m)
			if err != nil {
				return err
			}
			return meta.Put(keyMetadata, buf)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return h, nil
}

func (h *BoltHook) BeginBatch(ctx *core.Context) (BatchID, error) {
	id := BatchID(uuid.NewV4().String())
	h.mu.Lock()
	h.batches[id] = nil
	h.mu.Unlock()
	return id, nil
}

func (h *BoltHook) AppendFactWrite(ctx *core.Context, batch BatchID, cube string, addr []uint32, value float64) error {
	rec := Record{Batch: batch, Fact: &FactRecord{Cube: cube, Addr: append([]uint32(nil), addr...), Value: value}}
	return h.buffer(batch, rec)
}

func (h *BoltHook) AppendStructureChange(ctx *core.Context, batch BatchID, change StructureChange) error {
	rec := Record{Batch: batch, Structure: &change}
	return h.buffer(batch, rec)
}

func (h *BoltHook) buffer(batch BatchID, rec Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.batches[batch]; !ok {
		return fmt.Errorf("persist: batch %s is not open", batch)
	}
	h.batches[batch] = append(h.batches[batch], rec)
	return nil
}

// CommitBatch flushes every buffered entry of batch into the journal
// bucket as one boltdb transaction, under monotonically increasing keys
// so ReplayJournal's bucket scan reproduces commit order.
func (h *BoltHook) CommitBatch(ctx *core.Context, batch BatchID) error {
	h.mu.Lock()
	recs := h.batches[batch]
	delete(h.batches, batch)
	h.mu.Unlock()

	if len(recs) == 0 {
		return nil
	}

	return h.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJournal)
		for _, rec := range recs {
			buf, err := yaml.Marshal(rec)
			if err != nil {
				return err
			}
			h.mu.Lock()
			h.seq++
			seq := h.seq
			h.mu.Unlock()
			if err := b.Put(seqKey(seq), buf); err != nil {
				return err
			}
		}
		return nil
	})
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}

// LoadSnapshot returns the most recently saved snapshot, if any.
func (h *BoltHook) LoadSnapshot(ctx *core.Context) (*Snapshot, bool, error) {
	var snap *Snapshot
	err := h.db.View(func(tx *bolt.Tx) error {
		buf := tx.Bucket(bucketMeta).Get(keySnapshot)
		if buf == nil {
			return nil
		}
		snap = &Snapshot{}
		return yaml.Unmarshal(buf, snap)
	})
	if err != nil {
		return nil, false, err
	}
	return snap, snap != nil, nil
}

// SaveSnapshot writes snap as the new baseline and, in the same boltdb
// transaction, empties the journal bucket, so a later ReplayJournal sees
// only entries committed after this snapshot.
func (h *BoltHook) SaveSnapshot(ctx *core.Context, snap *Snapshot) error {
	buf, err := yaml.Marshal(snap)
	if err != nil {
		return err
	}
	return h.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketMeta).Put(keySnapshot, buf); err != nil {
			return err
		}
		if err := tx.DeleteBucket(bucketJournal); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketJournal)
		return err
	})
}

// ReplayJournal calls apply for every journal entry committed since the
// last SaveSnapshot, in boltdb bucket (== commit) order.
func (h *BoltHook) ReplayJournal(ctx *core.Context, apply func(Record) error) error {
	return h.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJournal)
		return b.ForEach(func(k, v []byte) error {
			var rec Record
			if err := yaml.Unmarshal(v, &rec); err != nil {
				return err
			}
			return apply(rec)
		})
	})
}

// Close closes the underlying boltdb file.
func (h *BoltHook) Close() error {
	return h.db.Close()
}

var _ Hook = (*BoltHook)(nil)
