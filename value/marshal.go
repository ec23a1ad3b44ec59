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
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/imroc/biu"
	"github.com/status-im/keycard-go/hexutils"

	"github.com/probeum/govpi/log"
	"github.com/probeum/govpi/model"
)

var marshalLog = log.New("component", "value")

// Get converts t's current storage into the requested format. String
// results are freshly allocated Go strings, so the returned Value stays
// valid after later Get calls; no scratch buffer is shared between calls.
func Get(t Target, format Format) (Value, error) {
	switch format {
	case IntVal:
		return getInt(t)
	case VectorVal:
		return getVector(t)
	case BinStrVal:
		s, truncated := binString(t.Bytes, t.Bits, maxStrBuf)
		if truncated {
			marshalLog.Warn("BinStrVal truncated", "bits", t.Bits, "capacity", maxStrBuf)
		}
		return Value{Format: BinStrVal, Str: s}, warnIfTruncated(truncated)
	case OctStrVal:
		s, truncated := octString(t.Bytes, t.Bits, maxStrBuf)
		if truncated {
			marshalLog.Warn("OctStrVal truncated", "bits", t.Bits, "capacity", maxStrBuf)
		}
		return Value{Format: OctStrVal, Str: s}, warnIfTruncated(truncated)
	case HexStrVal:
		s, truncated := hexStringFast(t)
		if truncated {
			marshalLog.Warn("HexStrVal truncated", "bits", t.Bits, "capacity", maxStrBuf)
		}
		return Value{Format: HexStrVal, Str: s}, warnIfTruncated(truncated)
	case DecStrVal:
		return getDec(t)
	case StringVal:
		s, truncated := getString(t)
		if truncated {
			marshalLog.Warn("StringVal truncated", "bits", t.Bits, "capacity", maxStrBuf)
		}
		return Value{Format: StringVal, Str: s}, warnIfTruncated(truncated)
	default:
		return Value{}, ErrUnsupportedFormat
	}
}

func warnIfTruncated(truncated bool) error {
	if truncated {
		return ErrTruncated
	}
	return nil
}

func hexStringFast(t Target) (string, bool) {
	if t.Bits%8 == 0 && len(t.Bytes)*8 >= t.Bits {
		n := t.Bits / 8
		rev := make([]byte, n)
		for i := 0; i < n; i++ {
			rev[i] = t.Bytes[n-1-i]
		}
		s := strings.ToLower(hexutils.BytesToHex(rev))
		if len(s) > maxStrBuf {
			return s[:maxStrBuf], true
		}
		return s, false
	}
	return hexString(t.Bytes, t.Bits, maxStrBuf)
}

func getInt(t Target) (Value, error) {
	switch t.Type {
	case model.U8, model.U16, model.U32:
		v := readLittleEndian(t.Bytes, t.Type)
		return Value{Format: IntVal, Integer: int64(v)}, nil
	default:
		return Value{}, ErrWideRejected
	}
}

func readLittleEndian(b []byte, t model.ElementType) uint64 {
	switch t {
	case model.U8:
		if len(b) < 1 {
			return 0
		}
		return uint64(b[0])
	case model.U16:
		if len(b) < 2 {
			return 0
		}
		return uint64(binary.LittleEndian.Uint16(b))
	case model.U32:
		if len(b) < 4 {
			return 0
		}
		return uint64(binary.LittleEndian.Uint32(b))
	case model.U64:
		if len(b) < 8 {
			return 0
		}
		return binary.LittleEndian.Uint64(b)
	default:
		return 0
	}
}

func getVector(t Target) (Value, error) {
	words := (t.Bits + 31) / 32
	if words == 0 {
		words = 1
	}
	if words > MaxVectorWords {
		return Value{}, ErrCapacityExceeded
	}
	lanes := make([]Lane, words)
	for i := 0; i < words; i++ {
		start := i * 4
		var word uint32
		for k := 0; k < 4; k++ {
			if start+k < len(t.Bytes) {
				word |= uint32(t.Bytes[start+k]) << uint(k*8)
			}
		}
		lanes[i] = Lane{AVal: word, BVal: 0}
	}
	return Value{Format: VectorVal, Vector: lanes}, nil
}

func getDec(t Target) (Value, error) {
	switch t.Type {
	case model.U8, model.U16, model.U32, model.U64:
		v := readLittleEndian(t.Bytes, t.Type)
		return Value{Format: DecStrVal, Str: strconv.FormatUint(v, 10)}, nil
	default:
		return Value{}, ErrWideRejected
	}
}

func getString(t Target) (string, bool) {
	n := len(t.Bytes)
	truncated := false
	if n > maxStrBuf {
		n = maxStrBuf
		truncated = true
	}
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		c := t.Bytes[n-1-i]
		if c == 0 {
			c = ' '
		}
		out[i] = c
	}
	return string(out), truncated
}

// debugBinary renders word as grouped binary for Trace-level diagnostics.
func debugBinary(word []byte) string {
	return biu.BytesToBinaryString(word)
}

// Put writes v (interpreted per v.Format) into t's storage. It never
// partially applies a rejected write.
func Put(t Target, v Value) error {
	if t.ReadOnly {
		marshalLog.Warn("put_value on read-only variable rejected")
		return ErrReadOnly
	}
	switch v.Format {
	case IntVal:
		return putInt(t, v.Integer)
	case VectorVal:
		return putVector(t, v.Vector)
	case BinStrVal:
		return putBinStr(t, v.Str)
	case OctStrVal:
		return putOctStr(t, v.Str)
	case DecStrVal:
		return putDecStr(t, v.Str)
	case HexStrVal:
		return putHexStr(t, v.Str)
	case StringVal:
		return putStringVal(t, v.Str)
	default:
		return ErrUnsupportedFormat
	}
}

// putInt stores value & mask, where the mask is derived from the declared
// bit width, not the lane width: writing 5 to a 2-bit register stores 1.
func putInt(t Target, value int64) error {
	switch t.Type {
	case model.U8, model.U16, model.U32:
		writeLittleEndian(t.Bytes, t.Type, uint64(value)&t.mask())
		return nil
	default:
		return ErrWideRejected
	}
}

func writeLittleEndian(b []byte, t model.ElementType, v uint64) {
	switch t {
	case model.U8:
		if len(b) >= 1 {
			b[0] = byte(v)
		}
	case model.U16:
		if len(b) >= 2 {
			binary.LittleEndian.PutUint16(b, uint16(v))
		}
	case model.U32:
		if len(b) >= 4 {
			binary.LittleEndian.PutUint32(b, uint32(v))
		}
	case model.U64:
		if len(b) >= 8 {
			binary.LittleEndian.PutUint64(b, v)
		}
	}
}

func putVector(t Target, lanes []Lane) error {
	switch t.Type {
	case model.U8, model.U16, model.U32:
		if len(lanes) == 0 {
			return nil
		}
		mask := (uint64(1) << uint(t.Type.LaneBits())) - 1
		writeLittleEndian(t.Bytes, t.Type, uint64(lanes[0].AVal)&mask)
		return nil
	case model.U64:
		var v uint64
		if len(lanes) > 0 {
			v = uint64(lanes[0].AVal)
		}
		if len(lanes) > 1 {
			v |= uint64(lanes[1].AVal) << 32
		}
		writeLittleEndian(t.Bytes, model.U64, v)
		return nil
	case model.WIDE:
		for i, lane := range lanes {
			start := i * 4
			for k := 0; k < 4; k++ {
				if start+k < len(t.Bytes) {
					t.Bytes[start+k] = byte(lane.AVal >> uint(k*8))
				}
			}
		}
		return nil
	default:
		return ErrUnsupportedFormat
	}
}

// putBinStr zero-fills storage first, then ORs in bits from str, so the
// final storage equals the packed value of the provided string regardless
// of the order bits are written in.
func putBinStr(t Target, str string) error {
	for i := range t.Bytes {
		t.Bytes[i] = 0
	}
	n := len(str)
	for i := 0; i < t.Bits; i++ {
		pos := n - i - 1
		bit := 0
		if pos >= 0 && pos < n && str[pos] == '1' {
			bit = 1
		}
		if bit != 0 {
			setBitAt(t.Bytes, i, 1)
		}
	}
	marshalLog.Trace("put BinStrVal", "bits", t.Bits, "stored", debugBinary(t.Bytes))
	return nil
}

func putOctStr(t Target, str string) error {
	for i := range t.Bytes {
		t.Bytes[i] = 0
	}
	digits := (t.Bits + 2) / 3
	n := len(str)
	for d := 0; d < digits; d++ {
		pos := n - d - 1
		var v uint8
		if pos >= 0 && pos < n && str[pos] >= '0' && str[pos] <= '7' {
			v = str[pos] - '0'
		}
		setWindow(t.Bytes, t.Bits, 3, d, v)
	}
	return nil
}

func putDecStr(t Target, str string) error {
	if t.Type == model.WIDE || t.Type.LaneBits() == 0 {
		return ErrWideRejected
	}
	s := strings.TrimSpace(str)
	digits := 0
	for digits < len(s) && s[digits] >= '0' && s[digits] <= '9' {
		digits++
	}
	if digits == 0 {
		marshalLog.Warn("DecStrVal parse failed: no digits", "str", str)
		return ErrDecParse
	}
	// Trailing garbage after the digit run warns but the parsed prefix is
	// still stored.
	if digits < len(s) {
		marshalLog.Warn("DecStrVal trailing characters ignored", "str", str)
	}
	v, err := strconv.ParseUint(s[:digits], 10, 64)
	if err != nil {
		// Overflow past 64 bits: truncate to the all-ones value the mask
		// admits rather than aborting a syntactically valid write.
		marshalLog.Warn("DecStrVal overflow", "str", str, "err", err)
		v = ^uint64(0)
	}
	writeLittleEndian(t.Bytes, t.Type, v&t.mask())
	return nil
}

func (t Target) mask() uint64 {
	bits := t.Bits
	if bits <= 0 {
		return 0
	}
	if bits >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(bits)) - 1
}

func putHexStr(t Target, str string) error {
	for i := range t.Bytes {
		t.Bytes[i] = 0
	}
	s := str
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
	}
	if t.Bits%8 == 0 && len(s) == t.Bits/4 {
		if raw := hexutils.HexToBytes(strings.ToLower(s)); len(raw)*8 == t.Bits {
			n := len(raw)
			for i := 0; i < n && i < len(t.Bytes); i++ {
				t.Bytes[i] = raw[n-1-i]
			}
			return nil
		}
	}
	digits := (t.Bits + 3) / 4
	n := len(s)
	for d := 0; d < digits; d++ {
		pos := n - d - 1
		var v uint8
		if pos >= 0 && pos < n {
			v = hexNibble(s[pos])
		}
		setWindow(t.Bytes, t.Bits, 4, d, v)
	}
	return nil
}

func hexNibble(c byte) uint8 {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	default:
		marshalLog.Warn("HexStrVal invalid character", "char", string(c))
		return 0
	}
}

func putStringVal(t Target, str string) error {
	for i := range t.Bytes {
		t.Bytes[i] = 0
	}
	n := len(str)
	width := len(t.Bytes)
	for i := 0; i < width; i++ {
		if i >= n {
			continue
		}
		t.Bytes[width-1-i] = str[i]
	}
	return nil
}
