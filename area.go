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
	"github.com/molapdb/molap/core"
	"github.com/molapdb/molap/resolver"
)

// Area is a partial address naming more than one cell at once (spec.md
// §4.7): a resolved GeneralAddress, some of whose coordinates are
// selectors rather than single members. Area write/copy/shift/delete are
// all compositions of enumerate + write, deferring cache invalidation
// until the whole batch completes (a single Database.cfg.AreaGuardrail
// check plus one cache.Versions.BumpData call per batch, rather than one
// per cell).
type Area struct {
	cube *Cube
	addr core.GeneralAddress
}

func (a *Area) expand() (core.AreaSpec, error) {
	spec := expandAreaAddr(a.cube, a.addr)
	if spec.Size() > a.cube.db.cfg.AreaGuardrail {
		return core.AreaSpec{}, core.ErrAreaTooLarge.New(spec.Size(), a.cube.db.cfg.AreaGuardrail)
	}
	return spec, nil
}

// SetValue writes value across the area (spec.md §4.7 "area.set_value").
// With expandAll it enumerates the full Cartesian product of every
// coordinate's leaf expansion and writes every resulting base cell,
// recreating any previously cascade-deleted cell; without it, only
// addresses that already carry a stored fact are overwritten.
func (a *Area) SetValue(ctx *Context, value float64, expandAll bool) error {
	spec, err := a.expand()
	if err != nil {
		return err
	}

	a.cube.mu.Lock()
	defer a.cube.mu.Unlock()

	if expandAll {
		for _, addr := range cartesian(spec) {
			a.cube.store.Write(addr, value)
		}
	} else {
		for _, f := range a.cube.store.IterArea(spec) {
			a.cube.store.Write(f.Addr, value)
		}
	}
	a.cube.versions.BumpData()
	return nil
}

// Delete removes every stored fact intersecting the area.
func (a *Area) Delete(ctx *Context) error {
	spec, err := a.expand()
	if err != nil {
		return err
	}
	a.cube.mu.Lock()
	a.cube.store.DeleteArea(spec)
	a.cube.mu.Unlock()
	a.cube.versions.BumpData()
	return nil
}

// Scale multiplies every existing stored fact in the area by k (spec.md
// §4.7 "area = other_area * k"), the area-level scalar-arithmetic
// composition.
func (a *Area) Scale(ctx *Context, k float64) error {
	spec, err := a.expand()
	if err != nil {
		return err
	}

	a.cube.mu.Lock()
	defer a.cube.mu.Unlock()

	for _, f := range a.cube.store.IterArea(spec) {
		a.cube.store.Write(f.Addr, f.Value*k)
	}
	a.cube.versions.BumpData()
	return nil
}

// Copy overwrites dst's stored facts with a's, pairing addresses by
// position within each dimension's expanded member-id list (both areas
// must expand to the same per-dimension cardinalities).
func (a *Area) Copy(ctx *Context, dst *Area) error {
	srcSpec, err := a.expand()
	if err != nil {
		return err
	}
	dstSpec, err := dst.expand()
	if err != nil {
		return err
	}
	if len(srcSpec.Dims) != len(dstSpec.Dims) {
		return core.ErrNotBaseAddress.New(a.addr)
	}
	for i := range srcSpec.Dims {
		if len(srcSpec.Dims[i]) != len(dstSpec.Dims[i]) {
			return core.ErrNotBaseAddress.New(a.addr)
		}
	}

	a.cube.mu.Lock()
	defer a.cube.mu.Unlock()

	srcAddrs := cartesian(srcSpec)
	dstAddrs := cartesian(dstSpec)
	for i, srcAddr := range srcAddrs {
		v := a.cube.store.Read(srcAddr)
		if v == 0 {
			continue
		}
		dst.cube.store.Write(dstAddrs[i], v)
	}
	dst.cube.versions.BumpData()
	return nil
}

// Shift returns a new Area with dimName's coordinate replaced by
// memberName, every other coordinate unchanged (spec.md §4.7 "area
// shift").
func (a *Area) Shift(dimName, memberName string) (*Area, error) {
	idx, ok := a.cube.FindDimension(dimName)
	if !ok {
		return nil, core.ErrUnknownDimension.New(dimName)
	}
	id, ok := a.cube.dims[idx].Resolve(memberName)
	if !ok {
		return nil, core.ErrUnknownMember.New(memberName)
	}
	next := append(core.GeneralAddress(nil), a.addr...)
	next[idx] = core.SingleCoordinate(id)
	return &Area{cube: a.cube, addr: next}, nil
}

func expandAreaAddr(c *Cube, addr core.GeneralAddress) core.AreaSpec {
	return resolver.ExpandArea(c.dims, addr)
}

// cartesian enumerates every base address in spec's full Cartesian
// product, in dimension order.
func cartesian(spec core.AreaSpec) []core.BaseAddress {
	if len(spec.Dims) == 0 {
		return nil
	}
	for _, d := range spec.Dims {
		if len(d) == 0 {
			return nil
		}
	}
	total := int(spec.Size())
	out := make([]core.BaseAddress, 0, total)
	idx := make([]int, len(spec.Dims))
	for {
		addr := make(core.BaseAddress, len(spec.Dims))
		for i, ix := range idx {
			addr[i] = spec.Dims[i][ix]
		}
		out = append(out, addr)

		pos := len(idx) - 1
		for pos >= 0 {
			idx[pos]++
			if idx[pos] < len(spec.Dims[pos]) {
				break
			}
			idx[pos] = 0
			pos--
		}
		if pos < 0 {
			break
		}
	}
	return out
}
