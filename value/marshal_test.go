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

package value

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/gofuzz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probeum/govpi/model"
)

func TestGetIntZeroExtends(t *testing.T) {
	target := Target{Bytes: []byte{0xFF}, Bits: 8, Type: model.U8}
	v, err := Get(target, IntVal)
	require.NoError(t, err)
	assert.Equal(t, int64(0xFF), v.Integer)
}

func TestGetIntRejectsWide(t *testing.T) {
	target := Target{Bytes: make([]byte, 32), Bits: 256, Type: model.WIDE}
	_, err := Get(target, IntVal)
	assert.ErrorIs(t, err, ErrWideRejected)
}

func TestDecStrValRejectsWide(t *testing.T) {
	target := Target{Bytes: make([]byte, 32), Bits: 256, Type: model.WIDE}
	_, err := Get(target, DecStrVal)
	assert.ErrorIs(t, err, ErrWideRejected)

	err = Put(target, Value{Format: DecStrVal, Str: "1"})
	assert.ErrorIs(t, err, ErrWideRejected)
}

func TestPutIntMasksToDeclaredWidth(t *testing.T) {
	target := Target{Bytes: []byte{0}, Bits: 2, Type: model.U8}
	require.NoError(t, Put(target, Value{Format: IntVal, Integer: 5}))
	v, err := Get(target, IntVal)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.Integer, "5 & 0b11 == 1")
}

func TestDecStrValTrailingGarbageStoresPrefix(t *testing.T) {
	target := Target{Bytes: make([]byte, 2), Bits: 16, Type: model.U16}
	require.NoError(t, Put(target, Value{Format: DecStrVal, Str: "42xyz"}))
	v, err := Get(target, IntVal)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.Integer)

	err = Put(target, Value{Format: DecStrVal, Str: "xyz"})
	assert.ErrorIs(t, err, ErrDecParse)
}

func TestPutValueRejectsReadOnly(t *testing.T) {
	target := Target{Bytes: []byte{0}, Bits: 8, Type: model.U8, ReadOnly: true}
	err := Put(target, Value{Format: IntVal, Integer: 1})
	assert.ErrorIs(t, err, ErrReadOnly)
}

func TestBinStrValRoundTripZeroFillsShortString(t *testing.T) {
	target := Target{Bytes: []byte{0xFF}, Bits: 8, Type: model.U8}
	// A string shorter than the declared width zero-fills the rest.
	require.NoError(t, Put(target, Value{Format: BinStrVal, Str: "11"}))
	v, err := Get(target, BinStrVal)
	require.NoError(t, err)
	assert.Equal(t, "00000011", v.Str)
}

func TestOctStrValRoundTrip(t *testing.T) {
	target := Target{Bytes: make([]byte, 2), Bits: 9, Type: model.U16}
	require.NoError(t, Put(target, Value{Format: OctStrVal, Str: "777"}))
	v, err := Get(target, OctStrVal)
	require.NoError(t, err)
	assert.Equal(t, "777", v.Str)
}

func TestHexStrValRoundTripByteAligned(t *testing.T) {
	target := Target{Bytes: make([]byte, 2), Bits: 16, Type: model.U16}
	require.NoError(t, Put(target, Value{Format: HexStrVal, Str: "ABCD"}))
	v, err := Get(target, HexStrVal)
	require.NoError(t, err)
	assert.Equal(t, "abcd", v.Str)
}

func TestHexStrValRoundTripWide(t *testing.T) {
	// A byte-aligned 256-bit width takes the hexutils path on both put and get.
	target := Target{Bytes: make([]byte, 32), Bits: 256, Type: model.WIDE}
	want := strings.Repeat("0", 63) + "1"
	require.NoError(t, Put(target, Value{Format: HexStrVal, Str: want}))
	v, err := Get(target, HexStrVal)
	require.NoError(t, err)
	assert.Equal(t, 64, len(v.Str))
}

func TestStringValRoundTrip(t *testing.T) {
	target := Target{Bytes: make([]byte, 4), Bits: 32, Type: model.U32}
	require.NoError(t, Put(target, Value{Format: StringVal, Str: "go"}))
	v, err := Get(target, StringVal)
	require.NoError(t, err)
	assert.Contains(t, v.Str, "go")
}

func TestVectorValPacksLittleEndianLanes(t *testing.T) {
	target := Target{Bytes: make([]byte, 8), Bits: 64, Type: model.U64}
	require.NoError(t, Put(target, Value{Format: VectorVal, Vector: []Lane{{AVal: 1}, {AVal: 2}}}))
	v, err := Get(target, VectorVal)
	require.NoError(t, err)
	want := []Lane{{AVal: 1}, {AVal: 2}}
	if diff := cmp.Diff(want, v.Vector); diff != "" {
		t.Errorf("vector mismatch (-want +got):\n%s", diff)
	}
}

func TestVectorValCapacityExceeded(t *testing.T) {
	target := Target{Bytes: make([]byte, (MaxVectorWords+1)*4), Bits: (MaxVectorWords + 1) * 32, Type: model.WIDE}
	_, err := Get(target, VectorVal)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
}

// TestBinStrValFuzzedWidths checks round-trip fidelity across random
// declared widths and bit patterns.
func TestBinStrValFuzzedWidths(t *testing.T) {
	fz := fuzz.New().NilChance(0)
	for i := 0; i < 50; i++ {
		var bits int
		fz.Fuzz(&bits)
		bits = 1 + (abs(bits) % 256)
		byteLen := (bits + 7) / 8
		target := Target{Bytes: make([]byte, byteLen), Bits: bits, Type: widthType(bits)}

		bitstr := make([]byte, bits)
		for j := range bitstr {
			if j%3 == 0 {
				bitstr[j] = '1'
			} else {
				bitstr[j] = '0'
			}
		}
		require.NoError(t, Put(target, Value{Format: BinStrVal, Str: string(bitstr)}))
		v, err := Get(target, BinStrVal)
		require.NoError(t, err)
		assert.Equal(t, string(bitstr), v.Str)
	}
}

// TestIntValFuzzedRoundTrip checks that put-then-get of a fuzzed integer
// always reads back the value masked to the declared width, across random
// widths up to the 32-bit lane limit.
func TestIntValFuzzedRoundTrip(t *testing.T) {
	fz := fuzz.New().NilChance(0)
	for i := 0; i < 100; i++ {
		var bits int
		var raw uint64
		fz.Fuzz(&bits)
		fz.Fuzz(&raw)
		bits = 1 + (abs(bits) % 32)

		typ := widthType(bits)
		target := Target{Bytes: make([]byte, typ.LaneBits()/8), Bits: bits, Type: typ}

		require.NoError(t, Put(target, Value{Format: IntVal, Integer: int64(raw)}))
		v, err := Get(target, IntVal)
		require.NoError(t, err)

		mask := uint64(1)<<uint(bits) - 1
		assert.Equal(t, int64(raw&mask), v.Integer, "bits=%d raw=%#x", bits, raw)
	}
}

func widthType(bits int) model.ElementType {
	switch {
	case bits <= 8:
		return model.U8
	case bits <= 16:
		return model.U16
	case bits <= 32:
		return model.U32
	case bits <= 64:
		return model.U64
	default:
		return model.WIDE
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
