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

// Package value marshals between packed bit storage and the eight VPI value
// formats.
package value

import (
	"errors"

	"github.com/probeum/govpi/model"
)

// Format is one of the eight value representations the standard mandates.
type Format uint8

const (
	IntVal Format = iota
	VectorVal
	BinStrVal
	OctStrVal
	DecStrVal
	HexStrVal
	StringVal
	NullFormat // named for completeness; Get and Put reject it with ErrUnsupportedFormat
)

func (f Format) String() string {
	switch f {
	case IntVal:
		return "IntVal"
	case VectorVal:
		return "VectorVal"
	case BinStrVal:
		return "BinStrVal"
	case OctStrVal:
		return "OctStrVal"
	case DecStrVal:
		return "DecStrVal"
	case HexStrVal:
		return "HexStrVal"
	case StringVal:
		return "StringVal"
	case NullFormat:
		return "NullFormat"
	default:
		return "unknown"
	}
}

// Lane is one 32-bit slice of a VectorVal; BVal is always 0 on read (the
// runtime models only two-state storage).
type Lane struct {
	AVal uint32
	BVal uint32
}

// Value is the tagged union returned by Get and consumed by Put. Only the
// field matching Format is meaningful.
type Value struct {
	Format Format

	Integer int64 // IntVal; zero-extended per lane type
	Vector  []Lane
	Str     string // Bin/Oct/Dec/Hex/StringVal
}

// MaxVectorWords bounds the number of 32-bit lanes a VectorVal read will
// produce. Exceeding it is fatal, not truncated.
const MaxVectorWords = 128 // 4096 bits

// maxStrBuf bounds the length of a string read; longer results are
// truncated with a warning.
const maxStrBuf = 4096

var (
	// ErrWideRejected is returned when IntVal/DecStrVal is requested on a
	// U64/WIDE variable (IntVal) or a WIDE variable (DecStrVal).
	ErrWideRejected = errors.New("value: format not supported for this lane type")

	// ErrUnsupportedFormat is returned for (format, lane) combinations the
	// standard does not define a conversion for.
	ErrUnsupportedFormat = errors.New("value: unsupported format/lane combination")

	// ErrCapacityExceeded is a read that would exceed MaxVectorWords;
	// fatal, not merely truncated.
	ErrCapacityExceeded = errors.New("value: lane count exceeds maximum word count")

	// ErrDecParse is a DecStrVal write whose string contains no leading
	// digits at all; a digit run followed by garbage is stored with a
	// warning instead.
	ErrDecParse = errors.New("value: decimal string has no digits")

	// ErrReadOnly is returned by Put against a read-only variable.
	ErrReadOnly = errors.New("value: variable is read-only")

	// ErrTruncated is a non-fatal warning: a string read was clipped to
	// the static buffer's capacity.
	ErrTruncated = errors.New("value: string result truncated to buffer capacity")
)

// Target is the byte-addressable object Get/Put operate over: either a
// whole Variable's storage (Dims 0/1) or one resolved memory word (Dims 2).
// Building a Target is the seam between package handle's object model and
// this package's pure bit-twiddling.
type Target struct {
	Bytes    []byte
	Bits     int
	Type     model.ElementType
	ReadOnly bool
}
