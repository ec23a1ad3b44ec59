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

// Package handle implements the opaque, typed handle object model: a closed
// tagged-variant object addressable by foreign callers, backed by a typed
// slab allocator. Downcasting is a tag comparison, not a reinterpreting
// cast: a handle produced as one Kind can never successfully downcast to
// another, and a failed cast yields the zero value and false, never a panic.
package handle

import "github.com/probeum/govpi/model"

// Kind discriminates the handle variants the runtime supports.
type Kind uint8

const (
	KindScope Kind = iota
	KindVariable
	KindIndexed
	KindConstant
	KindRange
	KindVarIterator
	KindCallback
	numKinds
)

func (k Kind) String() string {
	switch k {
	case KindScope:
		return "scope"
	case KindVariable:
		return "variable"
	case KindIndexed:
		return "indexed-variable"
	case KindConstant:
		return "constant"
	case KindRange:
		return "range"
	case KindVarIterator:
		return "var-iterator"
	case KindCallback:
		return "callback"
	default:
		return "unknown"
	}
}

// ScopeObj backs a KindScope handle.
type ScopeObj struct {
	Scope model.Scope
}

// VariableObj backs a KindVariable handle. The shadow buffer used for
// value-change detection lives on the registered callback, not here: a
// variable handle with no callback pays nothing for it.
type VariableObj struct {
	Scope  model.Scope
	Var    *model.Variable
	Mask   uint64
	Stride int
}

// IndexedObj backs a KindIndexed handle: a variable plus a resolved memory
// word.
type IndexedObj struct {
	Scope model.Scope
	Var   *model.Variable
	Index int32
	Word  []byte
}

// ConstantObj backs a KindConstant handle.
type ConstantObj struct {
	Value int32
}

// RangeObj backs a KindRange handle: a one-shot iterable range.
type RangeObj struct {
	LHS, RHS int32
	step     int // 0 = not yet scanned, 1 = scanned once (exhausted)
}

// VarIteratorObj backs a KindVarIterator handle: position in a scope's
// variable map.
type VarIteratorObj struct {
	Scope model.Scope
	Names []string
	Pos   int
}

// WordIteratorObj backs a KindVarIterator handle produced by iterating
// MemoryWord over a 2-dim Variable: a position walking the variable's
// unpacked range, one step per word. It shares KindVarIterator with
// VarIteratorObj (both are "advance position, emit next handle, stop at
// end") but is a distinct payload type, so a handle built as one can never
// downcast as the other.
type WordIteratorObj struct {
	Scope model.Scope
	Var   *model.Variable
	Pos   int // words already emitted, walking from Min() to Max()
}

// Scan advances a WordIteratorObj, returning the next memory index or
// (0, false) once every word in the range has been emitted exactly once.
func (it *WordIteratorObj) Scan() (int32, bool) {
	r := it.Var.UnpackedRange
	if it.Pos >= r.Count() {
		return 0, false
	}
	idx := r.Min() + int32(it.Pos)
	it.Pos++
	return idx, true
}

// A KindCallback handle's payload is a *callback.Callback, defined in
// package callback to avoid an import cycle and referenced here only by Kind.

// Handle is the opaque object foreign callers address. The nil *Handle is
// the null handle (Null reports that).
type Handle struct {
	kind       Kind
	generation uint32
	index      int
	payload    any
}

// Kind reports the handle's variant.
func (h *Handle) Kind() Kind { return h.kind }

// Null reports whether h is the nil handle.
func Null(h *Handle) bool { return h == nil }

func asKind[T any](h *Handle, want Kind) (T, bool) {
	var zero T
	if h == nil || h.kind != want {
		return zero, false
	}
	t, ok := h.payload.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// AsScope downcasts h to a ScopeObj, or (nil, false) if h is not a scope
// handle.
func AsScope(h *Handle) (*ScopeObj, bool) { return asKind[*ScopeObj](h, KindScope) }

// AsVariable downcasts h to a VariableObj.
func AsVariable(h *Handle) (*VariableObj, bool) { return asKind[*VariableObj](h, KindVariable) }

// AsIndexed downcasts h to an IndexedObj.
func AsIndexed(h *Handle) (*IndexedObj, bool) { return asKind[*IndexedObj](h, KindIndexed) }

// AsConstant downcasts h to a ConstantObj.
func AsConstant(h *Handle) (*ConstantObj, bool) { return asKind[*ConstantObj](h, KindConstant) }

// AsRange downcasts h to a RangeObj.
func AsRange(h *Handle) (*RangeObj, bool) { return asKind[*RangeObj](h, KindRange) }

// AsVarIterator downcasts h to a VarIteratorObj.
func AsVarIterator(h *Handle) (*VarIteratorObj, bool) {
	return asKind[*VarIteratorObj](h, KindVarIterator)
}

// AsWordIterator downcasts h to a WordIteratorObj.
func AsWordIterator(h *Handle) (*WordIteratorObj, bool) {
	return asKind[*WordIteratorObj](h, KindVarIterator)
}

// AsCallback downcasts h's payload to T (the callback package's own object
// type), avoiding a dependency cycle between handle and callback.
func AsCallback[T any](h *Handle) (T, bool) { return asKind[T](h, KindCallback) }

// Scan advances a RangeObj's one-shot iterator: the first call returns a
// clone of the range, the next returns false. Range endpoints are consumed
// as a one-element collection, so the iterator terminates after a single
// step even though there is only one range object.
func (r *RangeObj) Scan() (RangeObj, bool) {
	if r.step != 0 {
		return RangeObj{}, false
	}
	r.step = 1
	return RangeObj{LHS: r.LHS, RHS: r.RHS, step: 1}, true
}

// Scan advances a VarIteratorObj, returning the next variable name or
// ("", false) at end.
func (it *VarIteratorObj) Scan() (string, bool) {
	if it.Pos >= len(it.Names) {
		return "", false
	}
	name := it.Names[it.Pos]
	it.Pos++
	return name, true
}
