// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The ProbeChain is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the ProbeChain. If not, see <http://www.gnu.org/licenses/>.

package handle

import "github.com/fjl/memsize"

// slab is a typed free-list arena for one Kind. Slots are never returned to
// the Go runtime; a released slot is recycled on the next allocation of the
// same Kind, with the Go GC, not an intrusive byte-level free-list link,
// owning the memory.
type slab struct {
	slots []*Handle
	free  []int // indices into slots available for reuse
}

// Pool is the handle object model's allocator: one slab per Kind, plus a
// generation counter per slot. Release bumps the slot's generation, so a
// stale caller-held handle that resurfaces is detected rather than silently
// aliasing whatever was allocated into the recycled slot next.
type Pool struct {
	slabs [numKinds]slab
	gens  [numKinds][]uint32
}

// NewPool creates an empty handle pool.
func NewPool() *Pool {
	return &Pool{}
}

// alloc returns a *Handle of the given kind with payload, reusing a freed
// slot if one is available.
func (p *Pool) alloc(kind Kind, payload any) *Handle {
	s := &p.slabs[kind]
	gens := &p.gens[kind]
	if n := len(s.free); n > 0 {
		idx := s.free[n-1]
		s.free = s.free[:n-1]
		h := &Handle{kind: kind, generation: (*gens)[idx], index: idx, payload: payload}
		s.slots[idx] = h
		return h
	}
	idx := len(s.slots)
	*gens = append(*gens, 0)
	h := &Handle{kind: kind, generation: 0, index: idx, payload: payload}
	s.slots = append(s.slots, h)
	return h
}

// NewScope allocates a KindScope handle.
func (p *Pool) NewScope(obj *ScopeObj) *Handle { return p.alloc(KindScope, obj) }

// NewVariable allocates a KindVariable handle.
func (p *Pool) NewVariable(obj *VariableObj) *Handle { return p.alloc(KindVariable, obj) }

// NewIndexed allocates a KindIndexed handle.
func (p *Pool) NewIndexed(obj *IndexedObj) *Handle { return p.alloc(KindIndexed, obj) }

// NewConstant allocates a KindConstant handle.
func (p *Pool) NewConstant(obj *ConstantObj) *Handle { return p.alloc(KindConstant, obj) }

// NewRange allocates a KindRange handle.
func (p *Pool) NewRange(obj *RangeObj) *Handle { return p.alloc(KindRange, obj) }

// NewVarIterator allocates a KindVarIterator handle over a scope's variable
// names.
func (p *Pool) NewVarIterator(obj *VarIteratorObj) *Handle { return p.alloc(KindVarIterator, obj) }

// NewWordIterator allocates a KindVarIterator handle over a memory
// variable's word indices. It shares Kind with NewVarIterator (both model
// "advance position, emit next handle") but carries a distinct payload
// type, so AsVarIterator and AsWordIterator never cross-downcast.
func (p *Pool) NewWordIterator(obj *WordIteratorObj) *Handle { return p.alloc(KindVarIterator, obj) }

// NewCallback allocates a KindCallback handle around an arbitrary payload
// owned by package callback.
func (p *Pool) NewCallback(payload any) *Handle { return p.alloc(KindCallback, payload) }

// Release destroys h, returning its slot to the free list for its Kind.
// Releasing an already-released or foreign handle is a no-op, so no
// double-free can corrupt the allocator: the slot index either belongs to
// this pool's current slab for that Kind, in which case it is idempotently
// marked free, or it does not, in which case nothing happens.
func (p *Pool) Release(h *Handle) {
	if h == nil {
		return
	}
	s := &p.slabs[h.kind]
	if h.index < 0 || h.index >= len(s.slots) || s.slots[h.index] != h {
		return
	}
	s.slots[h.index] = nil
	p.gens[h.kind][h.index]++
	s.free = append(s.free, h.index)
}

// Live reports whether h is still a live, owned handle (not released).
func (p *Pool) Live(h *Handle) bool {
	if h == nil {
		return false
	}
	s := &p.slabs[h.kind]
	return h.index >= 0 && h.index < len(s.slots) && s.slots[h.index] == h
}

// Stats summarizes pool occupancy for diagnostics.
type Stats struct {
	Kind  Kind
	Live  int
	Freed int
}

// Diagnostics returns per-Kind occupancy plus the pool's resident memory
// footprint as reported by memsize, useful for spotting handle churn or
// leaks in long-running demo sessions.
func (p *Pool) Diagnostics() (stats []Stats, footprintBytes uint64) {
	for k := Kind(0); k < numKinds; k++ {
		s := &p.slabs[k]
		stats = append(stats, Stats{Kind: k, Live: len(s.slots) - len(s.free), Freed: len(s.free)})
	}
	r := memsize.Scan(p)
	return stats, uint64(r.Total)
}
