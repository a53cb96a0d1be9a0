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

package fact

import (
	"github.com/pilosa/pilosa/roaring"

	"github.com/molapdb/molap/core"
)

// dimBitmaps is the per-dimension half of the inverted index: for every
// base member id seen in this dimension's position, the set of fact
// slots whose address carries that id there. Using pilosa's roaring
// bitmaps (rather than map[MemberID]map[slot]struct{}) makes the
// per-dimension union and the cross-dimension intersection both run in
// close to O(popcount) instead of a full hash-set walk, the same role
// bitmaps play in the teacher's own sql/index/pilosa driver.
type dimBitmaps struct {
	byMember map[core.MemberID]*roaring.Bitmap
}

func newDimBitmaps() *dimBitmaps {
	return &dimBitmaps{byMember: make(map[core.MemberID]*roaring.Bitmap)}
}

func (d *dimBitmaps) add(id core.MemberID, sl slot) {
	bm, ok := d.byMember[id]
	if !ok {
		bm = roaring.NewBitmap()
		d.byMember[id] = bm
	}
	bm.Add(uint64(sl))
}

func (d *dimBitmaps) remove(id core.MemberID, sl slot) {
	bm, ok := d.byMember[id]
	if !ok {
		return
	}
	bm.Remove(uint64(sl))
}

// union returns the bitmap of every slot whose address carries any of
// ids in this dimension's position. The result is a fresh bitmap, safe
// for the caller to intersect in place.
func (d *dimBitmaps) union(ids []core.MemberID) *roaring.Bitmap {
	out := roaring.NewBitmap()
	for _, id := range ids {
		if bm, ok := d.byMember[id]; ok {
			out = out.Union(bm)
		}
	}
	return out
}

// slotsFor returns every slot currently carrying id in this dimension's
// position, used by cascading member deletes.
func (d *dimBitmaps) slotsFor(id core.MemberID) []slot {
	bm, ok := d.byMember[id]
	if !ok {
		return nil
	}
	return bitmapSlots(bm)
}

func bitmapSlots(bm *roaring.Bitmap) []slot {
	if bm == nil {
		return nil
	}
	out := make([]slot, 0, bm.Count())
	itr := bm.Iterator()
	itr.Seek(0)
	for {
		v, eof := itr.Next()
		if eof {
			break
		}
		out = append(out, slot(v))
	}
	return out
}

// invertedIndex is the full per-cube index: one dimBitmaps per dimension
// position (spec.md §4.2 "dim -> { base_member_id -> set<fact_slot> }").
type invertedIndex struct {
	dims []*dimBitmaps
}

func newInvertedIndex(arity int) *invertedIndex {
	idx := &invertedIndex{dims: make([]*dimBitmaps, arity)}
	for i := range idx.dims {
		idx.dims[i] = newDimBitmaps()
	}
	return idx
}

func (idx *invertedIndex) add(addr core.BaseAddress, sl slot) {
	for i, id := range addr {
		idx.dims[i].add(id, sl)
	}
}

func (idx *invertedIndex) remove(addr core.BaseAddress, sl slot) {
	for i, id := range addr {
		idx.dims[i].remove(id, sl)
	}
}

// candidates intersects the per-dimension unions for area and returns the
// resulting slot ids. This is the "sparsest dimension drives iteration"
// behavior of spec.md §4.2/§4.4: a dimension whose area selects a small
// number of members contributes a small union bitmap, which collapses
// the intersection quickly regardless of the order dimensions are
// intersected in.
func (idx *invertedIndex) candidates(area core.AreaSpec) []slot {
	if len(area.Dims) != len(idx.dims) {
		panic("fact: area arity mismatch")
	}
	var result *roaring.Bitmap
	for i, ids := range area.Dims {
		u := idx.dims[i].union(ids)
		if result == nil {
			result = u
			continue
		}
		result = result.Intersect(u)
		if result.Count() == 0 {
			return nil
		}
	}
	if result == nil {
		return nil
	}
	return bitmapSlots(result)
}
