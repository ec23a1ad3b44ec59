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

import "github.com/holiman/uint256"

// Storage convention: bit i (0 = LSB of the whole value) lives at
// Bytes[i/8], bit (i%8) of that byte. This is the little-endian-bit-in-byte
// layout the generated model's packed arrays use.

func bitAt(b []byte, bitIdx, bits int) int {
	if bitIdx < 0 || bitIdx >= bits {
		return 0
	}
	byteIdx := bitIdx / 8
	if byteIdx >= len(b) {
		return 0
	}
	return int((b[byteIdx] >> uint(bitIdx%8)) & 1)
}

func setBitAt(b []byte, bitIdx int, v int) {
	byteIdx := bitIdx / 8
	if byteIdx >= len(b) {
		return
	}
	mask := byte(1) << uint(bitIdx%8)
	if v != 0 {
		b[byteIdx] |= mask
	} else {
		b[byteIdx] &^= mask
	}
}

// window extracts up to winWidth bits starting at bit offset
// groupIdx*winWidth (bit 0 of the window is the LSB of the group), zero
// filling past bits-1.
func window(b []byte, bits, winWidth, groupIdx int) uint8 {
	var v uint8
	for k := 0; k < winWidth; k++ {
		bitIdx := groupIdx*winWidth + k
		v |= uint8(bitAt(b, bitIdx, bits)) << uint(k)
	}
	return v
}

func setWindow(b []byte, bits, winWidth, groupIdx int, v uint8) {
	for k := 0; k < winWidth; k++ {
		bitIdx := groupIdx*winWidth + k
		if bitIdx >= bits {
			continue
		}
		setBitAt(b, bitIdx, int((v>>uint(k))&1))
	}
}

// binString renders `bits` characters MSB to LSB, '0'/'1', truncating to
// capacity cap (returns the truncated flag).
func binString(b []byte, bits, capacity int) (string, bool) {
	n := bits
	truncated := false
	if n > capacity {
		n = capacity
		truncated = true
	}
	out := make([]byte, n)
	// Printed string is MSB-first; if truncated we keep the *most*
	// significant n characters.
	for i := 0; i < n; i++ {
		bitIdx := bits - 1 - i
		if bitAt(b, bitIdx, bits) != 0 {
			out[i] = '1'
		} else {
			out[i] = '0'
		}
	}
	return string(out), truncated
}

// octString renders ceil(bits/3) octal digits MSB first.
func octString(b []byte, bits, capacity int) (string, bool) {
	digits := (bits + 2) / 3
	n := digits
	truncated := false
	if n > capacity {
		n = capacity
		truncated = true
	}
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		group := digits - 1 - i
		out[i] = '0' + window(b, bits, 3, group)
	}
	return string(out), truncated
}

const hexDigits = "0123456789abcdef"

// hexString renders ceil(bits/4) lowercase hex digits MSB first. Widths up
// to 256 bits load the value into a uint256 accumulator and extract nibbles
// from it without math/big allocation churn; wider values fall back to the
// generic windowed loop.
func hexString(b []byte, bits, capacity int) (string, bool) {
	digits := (bits + 3) / 4
	n := digits
	truncated := false
	if n > capacity {
		n = capacity
		truncated = true
	}
	out := make([]byte, n)
	if bits <= 256 {
		be := make([]byte, (bits+7)/8)
		for i := range be {
			be[len(be)-1-i] = byteAt(b, i)
		}
		var z uint256.Int
		z.SetBytes(be)
		for i := 0; i < n; i++ {
			group := digits - 1 - i
			var tmp uint256.Int
			tmp.Rsh(&z, uint(group*4))
			out[i] = hexDigits[tmp.Uint64()&0xF]
		}
		return string(out), truncated
	}
	for i := 0; i < n; i++ {
		group := digits - 1 - i
		out[i] = hexDigits[window(b, bits, 4, group)]
	}
	return string(out), truncated
}

func byteAt(b []byte, i int) byte {
	if i < 0 || i >= len(b) {
		return 0
	}
	return b[i]
}
