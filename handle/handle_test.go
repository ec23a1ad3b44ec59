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

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/probeum/govpi/model"
)

func TestPoolAllocAndDowncast(t *testing.T) {
	p := NewPool()
	h := p.NewScope(&ScopeObj{})
	assert.Equal(t, KindScope, h.Kind())

	obj, ok := AsScope(h)
	assert.True(t, ok)
	assert.NotNil(t, obj)

	_, ok = AsVariable(h)
	assert.False(t, ok, "a scope handle must never downcast as a variable")
}

func TestPoolReleaseIsIdempotentAndNoDoubleFree(t *testing.T) {
	p := NewPool()
	h1 := p.NewConstant(&ConstantObj{Value: 1})
	p.Release(h1)
	p.Release(h1) // idempotent: second release is a no-op

	assert.False(t, p.Live(h1))

	// Allocating a run of fresh handles of the same kind recycles the freed
	// slot and then grows the slab, but the stale h1 must never alias any of
	// the new objects or come back to life.
	fresh := make([]*Handle, 0, 4)
	for i := int32(2); i < 6; i++ {
		h := p.NewConstant(&ConstantObj{Value: i})
		assert.True(t, p.Live(h))
		fresh = append(fresh, h)
	}
	assert.False(t, p.Live(h1), "a released handle never becomes live again")
	for i, h := range fresh {
		v, ok := AsConstant(h)
		assert.True(t, ok)
		assert.Equal(t, int32(i+2), v.Value)
	}

	// Slabs are per-kind: an allocation of a different kind after the
	// release must never land in (or read back through) the constant
	// slab's freed slot.
	sc := p.NewScope(&ScopeObj{})
	assert.True(t, p.Live(sc))
	_, ok := AsConstant(sc)
	assert.False(t, ok, "a scope handle must never read back as a constant")
	assert.False(t, p.Live(h1))
}

func TestNullHandle(t *testing.T) {
	assert.True(t, Null(nil))
	p := NewPool()
	h := p.NewScope(&ScopeObj{})
	assert.False(t, Null(h))
}

func TestWordIteratorYieldsEveryWordExactlyOnce(t *testing.T) {
	v := &model.Variable{
		Name:          "mem",
		Dims:          2,
		Bits:          32,
		UnpackedRange: model.Range{LHS: 15, RHS: 0},
	}
	it := &WordIteratorObj{Var: v}

	seen := make(map[int32]bool)
	for {
		idx, ok := it.Scan()
		if !ok {
			break
		}
		assert.False(t, seen[idx], "word %d scanned twice", idx)
		seen[idx] = true
	}
	assert.Len(t, seen, 16)
}

func TestRangeObjOneShotIterator(t *testing.T) {
	r := &RangeObj{LHS: 7, RHS: 0}
	_, ok := r.Scan()
	assert.True(t, ok, "first scan yields one element")
	_, ok = r.Scan()
	assert.False(t, ok, "second scan terminates")
}

func TestVarIteratorObjAndWordIteratorObjAreDistinctPayloads(t *testing.T) {
	p := NewPool()
	wordIterHandle := p.NewWordIterator(&WordIteratorObj{})
	_, ok := AsVarIterator(wordIterHandle)
	assert.False(t, ok, "a word iterator must not downcast as a name iterator")
	_, ok = AsWordIterator(wordIterHandle)
	assert.True(t, ok)

	nameIterHandle := p.NewVarIterator(&VarIteratorObj{Names: []string{"a"}})
	_, ok = AsWordIterator(nameIterHandle)
	assert.False(t, ok, "a name iterator must not downcast as a word iterator")
}
