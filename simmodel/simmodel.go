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

// Package simmodel is a reference, in-memory implementation of
// model.Model/model.Scope: it stands in for the generated simulation model
// the runtime is built against, so the ABI surface has something real to
// exercise in tests and the demo CLI. It is deliberately not part of the
// runtime's core.
package simmodel

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"

	"github.com/probeum/govpi/log"
	"github.com/probeum/govpi/model"
)

var simLog = log.New("component", "simmodel")

// VarSpec describes one variable to create within a Scope.
type VarSpec struct {
	Name      string
	Type      model.ElementType
	Bits      int
	Dims      int
	RangeLHS  int32
	RangeRHS  int32
	Direction model.Direction
	ReadOnly  bool
}

// Scope is an in-memory design scope: a flat map of variables plus a fixed
// full name.
type Scope struct {
	name string
	vars map[string]*model.Variable
}

// NewScope creates an empty scope named fullName.
func NewScope(fullName string) *Scope {
	return &Scope{name: fullName, vars: make(map[string]*model.Variable)}
}

func (s *Scope) FullName() string { return s.name }

func (s *Scope) Variable(name string) (*model.Variable, bool) {
	v, ok := s.vars[name]
	return v, ok
}

func (s *Scope) Variables() map[string]*model.Variable { return s.vars }

// storageSize computes the byte length of a variable's backing storage:
// one element's stride for Dims 0/1, Count elements of that stride for
// Dims 2.
func storageSize(spec VarSpec) int {
	stride := (spec.Bits + 7) / 8
	if stride == 0 {
		stride = 1
	}
	if spec.Dims != 2 {
		return stride
	}
	r := model.Range{LHS: spec.RangeLHS, RHS: spec.RangeRHS}
	return stride * r.Count()
}

// AddVariable declares spec within s, backed by the caller-supplied storage
// slice (a heap slice, or a region returned by Model.OpenMmapStorage).
func (s *Scope) AddVariable(spec VarSpec, storage []byte) *model.Variable {
	v := &model.Variable{
		Name:          spec.Name,
		Type:          spec.Type,
		Bits:          spec.Bits,
		Dims:          spec.Dims,
		UnpackedRange: model.Range{LHS: spec.RangeLHS, RHS: spec.RangeRHS},
		Direction:     spec.Direction,
		ReadOnly:      spec.ReadOnly,
		Storage:       storage,
	}
	if spec.Dims == 2 {
		v.ElemStride = (spec.Bits + 7) / 8
		if v.ElemStride == 0 {
			v.ElemStride = 1
		}
	}
	s.vars[spec.Name] = v
	return v
}

// Model is the in-memory reference model: a flat table of scopes plus the
// bookkeeping vpi.Runtime's contract requires (finish flag, fatal policy,
// product identity, a simulated clock).
type Model struct {
	scopes map[string]*Scope

	finished      bool
	fatalOnVpiErr bool
	product       string
	version       string
	args          []string
	now           uint64

	mmapFile *os.File
	mmap     mmap.MMap
}

// New creates an empty reference model.
func New(product, version string, args []string, fatalOnVpiErr bool) *Model {
	return &Model{
		scopes:        make(map[string]*Scope),
		product:       product,
		version:       version,
		args:          args,
		fatalOnVpiErr: fatalOnVpiErr,
	}
}

// AddScope registers s under its own full name.
func (m *Model) AddScope(s *Scope) { m.scopes[s.FullName()] = s }

func (m *Model) ScopeByName(name string) (model.Scope, bool) {
	s, ok := m.scopes[name]
	if !ok {
		return nil, false
	}
	return s, true
}

func (m *Model) GotFinish() bool        { return m.finished }
func (m *Model) FatalOnVpiError() bool  { return m.fatalOnVpiErr }
func (m *Model) ProductName() string    { return m.product }
func (m *Model) ProductVersion() string { return m.version }
func (m *Model) CommandArgs() []string  { return m.args }
func (m *Model) Now() uint64            { return m.now }

// Advance moves the simulated clock forward by delta, the demo driver's
// stand-in for "the next simulation step ran."
func (m *Model) Advance(delta uint64) { m.now += delta }

// Finish marks $finish as having been invoked.
func (m *Model) Finish() { m.finished = true }

// FlushCall is the vpi_flush/vpi_mcd_flush hook; the reference model has no
// real file descriptors to flush, so it only logs.
func (m *Model) FlushCall(fd int32) {
	simLog.Debug("flush requested", "fd", fd)
}

// Fatal aborts the process, matching the standard's "$finish then exit"
// escalation for fatal-severity VPI errors.
func (m *Model) Fatal(file string, line int, context, msg string) {
	simLog.Crit("fatal VPI error", "file", file, "line", line, "context", context, "msg", msg)
	os.Exit(1)
}

// OpenMmapStorage maps size bytes from path (created/truncated if needed)
// and returns a slice view of the mapping for AddVariable to hand out as
// backing storage, so very large memories can live in a file instead of a
// heap slice per variable. The Model takes ownership of the mapping and
// closes it on Close.
func (m *Model) OpenMmapStorage(path string, size int) ([]byte, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("simmodel: open mmap storage: %w", err)
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return nil, fmt.Errorf("simmodel: truncate mmap storage: %w", err)
	}
	mapped, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("simmodel: mmap storage: %w", err)
	}
	m.mmapFile = f
	m.mmap = mapped
	return []byte(mapped), nil
}

// Close releases any mmap-backed storage the model opened.
func (m *Model) Close() error {
	if m.mmap != nil {
		if err := m.mmap.Unmap(); err != nil {
			return err
		}
		m.mmap = nil
	}
	if m.mmapFile != nil {
		return m.mmapFile.Close()
	}
	return nil
}
