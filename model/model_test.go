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

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRangeOffsetBothOrientations(t *testing.T) {
	descending := Range{LHS: 7, RHS: 0}
	offset, ok := descending.Offset(3)
	assert.True(t, ok)
	assert.Equal(t, 3, offset)

	ascending := Range{LHS: 0, RHS: 7}
	offset, ok = ascending.Offset(3)
	assert.True(t, ok)
	assert.Equal(t, 3, offset)

	_, ok = ascending.Offset(8)
	assert.False(t, ok)
}

func TestRangeMinMaxCount(t *testing.T) {
	r := Range{LHS: 15, RHS: 0}
	assert.Equal(t, int32(0), r.Min())
	assert.Equal(t, int32(15), r.Max())
	assert.Equal(t, 16, r.Count())
}

func TestVariableMask(t *testing.T) {
	v := &Variable{Bits: 1}
	assert.Equal(t, uint64(1), v.Mask())

	v = &Variable{Bits: 32}
	assert.Equal(t, uint64(0xFFFFFFFF), v.Mask())

	v = &Variable{Bits: 64, Type: U64}
	assert.Equal(t, ^uint64(0), v.Mask())
}

func TestFullNameStable(t *testing.T) {
	assert.Equal(t, "top.reg_a", FullName("top", "reg_a"))
	assert.Equal(t, "top.mem[3]", IndexedFullName("top", "mem", 3))
}

func TestVariableWordAt(t *testing.T) {
	v := &Variable{
		Bits:          8,
		Dims:          2,
		UnpackedRange: Range{LHS: 0, RHS: 3},
		ElemStride:    1,
		Storage:       []byte{0xAA, 0xBB, 0xCC, 0xDD},
	}
	word, ok := v.WordAt(2)
	assert.True(t, ok)
	assert.Equal(t, []byte{0xCC}, word)

	_, ok = v.WordAt(9)
	assert.False(t, ok)
}
