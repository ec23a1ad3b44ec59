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

// Package vpi wires the handle pool, name resolver, value marshaller, and
// callback scheduler behind one entry-point surface: Runtime. Each ABI entry
// point is one exported method and asserts exclusive entry through a size-1
// semaphore before touching shared state, since the standard's C ABI assumes
// a single active call into the PLI layer at a time. The Dispatch* methods
// are driver-loop hooks, not ABI entry points, and do not take the guard.
package vpi

import (
	"fmt"
	"sort"

	"golang.org/x/sync/semaphore"

	"github.com/probeum/govpi/callback"
	"github.com/probeum/govpi/handle"
	"github.com/probeum/govpi/log"
	"github.com/probeum/govpi/model"
	"github.com/probeum/govpi/resolve"
	"github.com/probeum/govpi/value"
	"github.com/probeum/govpi/vpierr"
)

var rtLog = log.New("component", "vpi")

// Runtime is the process-wide ABI surface. One Runtime serves one running
// simulation model.
type Runtime struct {
	pool     *handle.Pool
	resolver *resolve.Resolver
	sched    *callback.Registry
	errs     *vpierr.Surface
	model    model.Model

	sem *semaphore.Weighted

	files  map[int32]*demoFile
	nextFD int32
}

type demoFile struct {
	name string
}

// New builds a Runtime over m, wiring a resolver with the given name-cache
// size and an error surface honoring m's fatal-on-error policy.
func New(m model.Model, resolverCacheSize int) *Runtime {
	rt := &Runtime{
		pool:     handle.NewPool(),
		resolver: resolve.New(resolverAdapter{m}, resolverCacheSize),
		sched:    callback.NewRegistry(),
		model:    m,
		sem:      semaphore.NewWeighted(1),
		files:    make(map[int32]*demoFile),
	}
	rt.errs = vpierr.NewSurface(m.ProductName(), m.FatalOnVpiError(), m.Fatal, "")
	rt.errs.OnSet(func(sev vpierr.Severity) {
		rt.sched.CallReason(callback.ReasonPLIError)
	})
	return rt
}

type resolverAdapter struct{ m model.Model }

func (r resolverAdapter) ScopeByName(name string) (model.Scope, bool) { return r.m.ScopeByName(name) }

// enter asserts exclusive entry to the ABI surface, returning a function
// that releases it. A failed acquisition (a caller re-entering from inside
// an already-active call, e.g. a callback that itself calls back into the
// runtime) is logged at error level and still proceeds: the standard
// does not define reentrant PLI calls, but aborting the simulation over it
// would be worse than the well-defined single-threaded behavior Go gives us
// for free here.
func (rt *Runtime) enter() func() {
	if !rt.sem.TryAcquire(1) {
		rtLog.Error("reentrant VPI call detected")
		return func() {}
	}
	return func() { rt.sem.Release(1) }
}

// enterReset is enter plus the error-slot reset the standard prescribes on
// entry to every ABI call except vpi_chk_error, which must observe the
// error left by whatever call preceded it. Every entry point but CheckError
// and NextDeadline uses this instead of enter.
func (rt *Runtime) enterReset() func() {
	release := rt.enter()
	rt.errs.Reset()
	return release
}

// ---- Property getters -----------------------------------------------------

// Property is a vpi_get/vpi_get_str property selector.
type Property int32

const (
	PropType Property = iota
	PropSize
	PropVector
	PropDirection
	PropLeftRange
	PropRightRange
	PropFullName
)

// ObjType is the value returned for PropType.
type ObjType int32

const (
	TypeScope ObjType = iota + 1
	TypeReg
	TypeMemory
	TypeMemoryWord
	TypeConstant
	TypeRange
	TypeIterator
	TypeCallback
)

// GetInt implements vpi_get: integer-valued properties of a handle.
func (rt *Runtime) GetInt(prop Property, h *handle.Handle) (int32, bool) {
	defer rt.enterReset()()
	if handle.Null(h) {
		return 0, false
	}
	switch h.Kind() {
	case handle.KindScope:
		if prop == PropType {
			return int32(TypeScope), true
		}
	case handle.KindVariable:
		obj, _ := handle.AsVariable(h)
		switch prop {
		case PropType:
			if obj.Var.Dims == 2 {
				return int32(TypeMemory), true
			}
			return int32(TypeReg), true
		case PropSize:
			return int32(obj.Var.Bits), true
		case PropVector:
			if obj.Var.Dims >= 1 {
				return 1, true
			}
			return 0, true
		case PropDirection:
			return int32(obj.Var.Direction), true
		case PropLeftRange:
			v, ok := resolve.RangeEndpoint(obj.Var, resolve.LeftRange)
			return v, ok
		case PropRightRange:
			v, ok := resolve.RangeEndpoint(obj.Var, resolve.RightRange)
			return v, ok
		}
	case handle.KindIndexed:
		obj, _ := handle.AsIndexed(h)
		switch prop {
		case PropType:
			return int32(TypeMemoryWord), true
		case PropSize:
			return int32(obj.Var.Bits), true
		case PropLeftRange:
			return int32(obj.Var.Bits) - 1, true
		case PropRightRange:
			return 0, true
		}
	case handle.KindConstant:
		if prop == PropType {
			return int32(TypeConstant), true
		}
	case handle.KindRange:
		obj, _ := handle.AsRange(h)
		if obj != nil {
			switch prop {
			case PropType:
				return int32(TypeRange), true
			case PropLeftRange:
				return obj.LHS, true
			case PropRightRange:
				return obj.RHS, true
			}
		}
	case handle.KindVarIterator:
		if prop == PropType {
			return int32(TypeIterator), true
		}
	case handle.KindCallback:
		if prop == PropType {
			return int32(TypeCallback), true
		}
	}
	rt.errs.Raise(vpierr.SeverityWarning, "vpi_get", 0, "unsupported property %d for %s handle", prop, h.Kind())
	return 0, false
}

// GetStr implements vpi_get_str: string-valued properties of a handle.
func (rt *Runtime) GetStr(prop Property, h *handle.Handle) (string, bool) {
	defer rt.enterReset()()
	if handle.Null(h) {
		return "", false
	}
	if prop != PropFullName {
		rt.errs.Raise(vpierr.SeverityWarning, "vpi_get_str", 0, "unsupported string property %d", prop)
		return "", false
	}
	switch h.Kind() {
	case handle.KindScope:
		obj, _ := handle.AsScope(h)
		return obj.Scope.FullName(), true
	case handle.KindVariable:
		obj, _ := handle.AsVariable(h)
		return model.FullName(obj.Scope.FullName(), obj.Var.Name), true
	case handle.KindIndexed:
		obj, _ := handle.AsIndexed(h)
		return model.IndexedFullName(obj.Scope.FullName(), obj.Var.Name, obj.Index), true
	default:
		rt.errs.Raise(vpierr.SeverityWarning, "vpi_get_str", 0, "full name not defined for %s handle", h.Kind())
		return "", false
	}
}

// ---- Name resolution and indexing -----------------------------------------

// HandleByName implements vpi_handle_by_name.
func (rt *Runtime) HandleByName(name string, scopeHandle *handle.Handle) *handle.Handle {
	defer rt.enterReset()()

	var scope model.Scope
	if !handle.Null(scopeHandle) {
		if obj, ok := handle.AsScope(scopeHandle); ok {
			scope = obj.Scope
		}
	}

	s, v, varScope, ok := rt.resolver.HandleByName(name, scope)
	if !ok {
		rt.errs.Raise(vpierr.SeverityWarning, "vpi_handle_by_name", 0, "name not found: %s", name)
		return nil
	}
	if v == nil {
		return rt.pool.NewScope(&handle.ScopeObj{Scope: s})
	}
	return rt.pool.NewVariable(&handle.VariableObj{
		Scope:  varScope,
		Var:    v,
		Mask:   v.Mask(),
		Stride: v.Stride(),
	})
}

// HandleByIndex implements vpi_handle_by_index: indexing a memory Variable
// handle at index, yielding an Indexed handle over the resolved word.
func (rt *Runtime) HandleByIndex(varHandle *handle.Handle, index int32) *handle.Handle {
	defer rt.enterReset()()

	obj, ok := handle.AsVariable(varHandle)
	if !ok {
		rt.errs.Raise(vpierr.SeverityWarning, "vpi_handle_by_index", 0, "handle is not a memory variable")
		return nil
	}
	// The bounds check and offset resolution live in package resolve;
	// WordAt below only turns the already-validated offset into a
	// storage slice.
	if _, inRange := resolve.HandleByIndex(obj.Var, index); !inRange {
		rt.errs.Raise(vpierr.SeverityWarning, "vpi_handle_by_index", 0, "index %d out of range for %s", index, obj.Var.Name)
		return nil
	}
	word, _ := obj.Var.WordAt(index)
	return rt.pool.NewIndexed(&handle.IndexedObj{Scope: obj.Scope, Var: obj.Var, Index: index, Word: word})
}

// Relation is a vpi_handle relation kind.
type Relation = resolve.Relation

const (
	LeftRange  = resolve.LeftRange
	RightRange = resolve.RightRange
)

// Handle implements vpi_handle: relation navigation from obj. For a memory
// (2-dim) Variable handle this resolves the unpacked-range endpoint as a
// Constant handle; for a Range handle it reads the stored endpoint directly.
func (rt *Runtime) Handle(rel Relation, obj *handle.Handle) *handle.Handle {
	defer rt.enterReset()()

	if v, ok := handle.AsVariable(obj); ok {
		endpoint, found := resolve.RangeEndpoint(v.Var, rel)
		if !found {
			rt.errs.Raise(vpierr.SeverityWarning, "vpi_handle", 0, "relation not defined for non-memory variable %s", v.Var.Name)
			return nil
		}
		return rt.pool.NewConstant(&handle.ConstantObj{Value: endpoint})
	}
	if r, ok := handle.AsRange(obj); ok {
		switch rel {
		case LeftRange:
			return rt.pool.NewConstant(&handle.ConstantObj{Value: r.LHS})
		case RightRange:
			return rt.pool.NewConstant(&handle.ConstantObj{Value: r.RHS})
		}
	}
	rt.errs.Raise(vpierr.SeverityWarning, "vpi_handle", 0, "unsupported handle/relation combination")
	return nil
}

// ---- Iteration --------------------------------------------------------

// IterateKind is a vpi_iterate object-collection selector.
type IterateKind int

const (
	IterMemoryWord IterateKind = iota
	IterReg
	IterRange
)

// Iterate implements vpi_iterate. MemoryWord over a 2-dim Variable yields an
// iterator over its unpacked range's word indices; Reg over a Scope yields
// an iterator over that scope's variable names; Range over a 2-dim Variable
// yields its unpacked-range object, a one-shot iterable whose endpoints are
// read back through Handle(LeftRange/RightRange). Any other combination is
// "unsupported" and returns nil.
func (rt *Runtime) Iterate(kind IterateKind, obj *handle.Handle) *handle.Handle {
	defer rt.enterReset()()

	switch kind {
	case IterMemoryWord:
		v, ok := handle.AsVariable(obj)
		if !ok || v.Var.Dims != 2 {
			rt.errs.Raise(vpierr.SeverityWarning, "vpi_iterate", 0, "MemoryWord requires a memory variable handle")
			return nil
		}
		return rt.pool.NewWordIterator(&handle.WordIteratorObj{Scope: v.Scope, Var: v.Var})
	case IterRange:
		v, ok := handle.AsVariable(obj)
		if !ok || v.Var.Dims != 2 {
			rt.errs.Raise(vpierr.SeverityWarning, "vpi_iterate", 0, "Range requires a memory variable handle")
			return nil
		}
		return rt.pool.NewRange(&handle.RangeObj{LHS: v.Var.UnpackedRange.LHS, RHS: v.Var.UnpackedRange.RHS})
	case IterReg:
		s, ok := handle.AsScope(obj)
		if !ok {
			rt.errs.Raise(vpierr.SeverityWarning, "vpi_iterate", 0, "Reg requires a scope handle")
			return nil
		}
		names := make([]string, 0, len(s.Scope.Variables()))
		for name := range s.Scope.Variables() {
			names = append(names, name)
		}
		sort.Strings(names)
		return rt.pool.NewVarIterator(&handle.VarIteratorObj{Scope: s.Scope, Names: names})
	default:
		rt.errs.Raise(vpierr.SeverityWarning, "vpi_iterate", 0, "unsupported iterate kind %d", kind)
		return nil
	}
}

// Scan implements vpi_scan: advance iter and return the next element handle,
// or nil once exhausted. A word iterator yields an Indexed handle per call;
// a variable-name iterator yields a Variable handle looked up in its scope;
// a range yields a clone of itself exactly once, then terminates.
func (rt *Runtime) Scan(iter *handle.Handle) *handle.Handle {
	defer rt.enterReset()()

	if r, ok := handle.AsRange(iter); ok {
		clone, more := r.Scan()
		if !more {
			return nil
		}
		return rt.pool.NewRange(&clone)
	}
	if w, ok := handle.AsWordIterator(iter); ok {
		idx, more := w.Scan()
		if !more {
			return nil
		}
		word, inRange := w.Var.WordAt(idx)
		if !inRange {
			return nil
		}
		return rt.pool.NewIndexed(&handle.IndexedObj{Scope: w.Scope, Var: w.Var, Index: idx, Word: word})
	}
	if it, ok := handle.AsVarIterator(iter); ok {
		name, more := it.Scan()
		if !more {
			return nil
		}
		v, found := it.Scope.Variable(name)
		if !found {
			return nil
		}
		return rt.pool.NewVariable(&handle.VariableObj{Scope: it.Scope, Var: v, Mask: v.Mask(), Stride: v.Stride()})
	}
	return nil
}

// ---- Value access -------------------------------------------------------

func targetOf(h *handle.Handle) (value.Target, bool) {
	if v, ok := handle.AsVariable(h); ok {
		return value.Target{Bytes: v.Var.Storage, Bits: v.Var.Bits, Type: v.Var.Type, ReadOnly: v.Var.ReadOnly}, true
	}
	if idx, ok := handle.AsIndexed(h); ok {
		return value.Target{Bytes: idx.Word, Bits: idx.Var.Bits, Type: idx.Var.Type, ReadOnly: idx.Var.ReadOnly}, true
	}
	return value.Target{}, false
}

// GetValue implements vpi_get_value.
func (rt *Runtime) GetValue(h *handle.Handle, format value.Format) (value.Value, bool) {
	defer rt.enterReset()()
	t, ok := targetOf(h)
	if !ok {
		rt.errs.Raise(vpierr.SeverityWarning, "vpi_get_value", 0, "handle does not carry a value")
		return value.Value{}, false
	}
	v, err := value.Get(t, format)
	if err != nil {
		if err == value.ErrCapacityExceeded {
			// A read exceeding the word-count limit is a distinct, more
			// severe category than an ordinary lookup warning; escalate
			// it rather than folding it into the warning path below.
			rt.errs.Raise(vpierr.SeverityInternal, "vpi_get_value", 0, "%v", err)
			return v, false
		}
		rt.errs.Raise(vpierr.SeverityWarning, "vpi_get_value", 0, "%v", err)
		// A truncated string is a warning, not a failed read: the caller
		// still gets the (clipped) value back.
		return v, err == value.ErrTruncated
	}
	return v, true
}

// PutValue implements vpi_put_value.
func (rt *Runtime) PutValue(h *handle.Handle, v value.Value) bool {
	defer rt.enterReset()()
	t, ok := targetOf(h)
	if !ok {
		rt.errs.Raise(vpierr.SeverityWarning, "vpi_put_value", 0, "handle does not carry a value")
		return false
	}
	if err := value.Put(t, v); err != nil {
		rt.errs.Raise(vpierr.SeverityWarning, "vpi_put_value", 0, "%v", err)
		return false
	}
	return true
}

// ---- Callbacks ------------------------------------------------------------

// RegisterCB implements vpi_register_cb.
func (rt *Runtime) RegisterCB(reason callback.Reason, fn callback.Func, userData interface{}, format value.Format, target *handle.Handle, delay uint64) *handle.Handle {
	defer rt.enterReset()()

	cb := &callback.Callback{Reason: reason, Fn: fn, UserData: userData, Format: format, Delay: delay}
	if !handle.Null(target) {
		if t, ok := targetOf(target); ok {
			cb.Target = handleValueTarget{t}
		}
	}
	if !rt.sched.Register(cb, rt.model.Now()) {
		rt.errs.Raise(vpierr.SeverityWarning, "vpi_register_cb", 0, "unsupported callback reason %d", reason)
		return nil
	}
	return rt.pool.NewCallback(cb)
}

// RemoveCB implements vpi_remove_cb.
func (rt *Runtime) RemoveCB(h *handle.Handle) bool {
	defer rt.enterReset()()
	cb, ok := handle.AsCallback[*callback.Callback](h)
	if !ok {
		return false
	}
	rt.sched.Remove(cb)
	rt.pool.Release(h)
	return true
}

type handleValueTarget struct{ t value.Target }

func (h handleValueTarget) Bytes() []byte             { return h.t.Bytes }
func (h handleValueTarget) ValueTarget() value.Target { return h.t }

// DispatchValueChange and DispatchTimed let the driving demo loop (or a
// test) advance the scheduler; neither is part of the standard ABI, but
// something has to call into package callback from outside a handle's own
// mutation path.
func (rt *Runtime) DispatchValueChange()                  { rt.sched.CallValueChange() }
func (rt *Runtime) DispatchTimed(now uint64)              { rt.sched.CallTimed(now) }
func (rt *Runtime) DispatchReason(reason callback.Reason) { rt.sched.CallReason(reason) }

// NoDeadline is NextDeadline's "nothing pending" sentinel, the all-ones
// encoding the driver loop compares against.
const NoDeadline = ^uint64(0)

// NextDeadline returns the earliest pending after-delay deadline, or
// NoDeadline when the deadline set is empty.
func (rt *Runtime) NextDeadline() uint64 {
	defer rt.enter()()
	if d, ok := rt.sched.NextDeadline(); ok {
		return d
	}
	return NoDeadline
}

// ---- I/O and control -------------------------------------------------------

// FOpen implements vpi_fopen, returning a simulator-local file descriptor.
func (rt *Runtime) FOpen(name string) int32 {
	defer rt.enterReset()()
	rt.nextFD++
	fd := rt.nextFD
	rt.files[fd] = &demoFile{name: name}
	return fd
}

// FClose implements vpi_fclose.
func (rt *Runtime) FClose(fd int32) {
	defer rt.enterReset()()
	delete(rt.files, fd)
}

// VPrintf implements vpi_vprintf/vpi_fprintf, logged through the same
// structured logger as everything else rather than written to the
// simulator-local file table (the demo model has no real file backing).
func (rt *Runtime) VPrintf(fd int32, format string, args ...interface{}) {
	defer rt.enterReset()()
	msg := fmt.Sprintf(format, args...)
	rtLog.Info(msg, "fd", fd)
}

// FFlush implements vpi_mcd_flush/vpi_flush.
func (rt *Runtime) FFlush(fd int32) {
	defer rt.enterReset()()
	rt.model.FlushCall(fd)
}

// Compare implements vpi_compare_objects: true iff both handles were
// allocated to the same pool slot at the same generation.
func (rt *Runtime) Compare(a, b *handle.Handle) bool {
	defer rt.enterReset()()
	if handle.Null(a) || handle.Null(b) {
		return handle.Null(a) && handle.Null(b)
	}
	return a == b
}

// ReleaseHandle implements vpi_release_handle.
func (rt *Runtime) ReleaseHandle(h *handle.Handle) {
	defer rt.enterReset()()
	rt.pool.Release(h)
}

// FreeObject is an alias of ReleaseHandle (the standard's deprecated name
// for the same operation).
func (rt *Runtime) FreeObject(h *handle.Handle) { rt.ReleaseHandle(h) }

// GetVlogInfo implements vpi_get_vlog_info.
func (rt *Runtime) GetVlogInfo() vpierr.VlogInfo {
	defer rt.enterReset()()
	return vpierr.VlogInfo{
		Argv:           rt.model.CommandArgs(),
		ProductName:    rt.model.ProductName(),
		ProductVersion: rt.model.ProductVersion(),
	}
}

// Control implements vpi_control for $finish/$stop.
func (rt *Runtime) Control(op vpierr.ControlOp, finish, stop func()) bool {
	defer rt.enterReset()()
	return rt.errs.Control(op, finish, stop)
}

// CheckError implements vpi_chk_error.
func (rt *Runtime) CheckError() vpierr.Record {
	defer rt.enter()()
	return rt.errs.CheckError()
}
