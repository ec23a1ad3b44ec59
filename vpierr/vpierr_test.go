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

package vpierr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRaiseSetsRecordAndNotifiesOnSet(t *testing.T) {
	s := NewSurface("govpi-test", false, nil, "session-1")
	var notified Severity
	var calls int
	s.OnSet(func(sev Severity) {
		notified = sev
		calls++
	})

	s.Raise(SeverityWarning, "file.go", 42, "something happened: %d", 7)

	rec := s.CheckError()
	assert.True(t, rec.Set)
	assert.Equal(t, SeverityWarning, rec.Severity)
	assert.Equal(t, "something happened: 7", rec.Message)
	assert.Equal(t, 1, calls)
	assert.Equal(t, SeverityWarning, notified)
}

func TestCheckErrorNeverResets(t *testing.T) {
	s := NewSurface("govpi-test", false, nil, "session-1")
	s.Raise(SeverityNotice, "f", 1, "hello")
	s.CheckError()
	rec := s.CheckError()
	assert.True(t, rec.Set, "CheckError must not clear the slot")
}

func TestResetClearsSlot(t *testing.T) {
	s := NewSurface("govpi-test", false, nil, "session-1")
	s.Raise(SeverityNotice, "f", 1, "hello")
	s.Reset()
	assert.False(t, s.CheckError().Set)
}

func TestFatalEscalationOnErrorSeverity(t *testing.T) {
	var gotFile string
	var gotLine int
	fatal := func(file string, line int, context, msg string) {
		gotFile = file
		gotLine = line
	}
	s := NewSurface("govpi-test", true, fatal, "session-1")
	s.Raise(SeverityError, "bad.go", 99, "boom")
	assert.Equal(t, "bad.go", gotFile)
	assert.Equal(t, 99, gotLine)
}

func TestFatalNotEscalatedBelowErrorSeverity(t *testing.T) {
	called := false
	fatal := func(file string, line int, context, msg string) { called = true }
	s := NewSurface("govpi-test", true, fatal, "session-1")
	s.Raise(SeverityWarning, "f", 1, "not fatal")
	assert.False(t, called)
}

func TestControlUnknownOpRaisesWarning(t *testing.T) {
	s := NewSurface("govpi-test", false, nil, "session-1")
	ok := s.Control(ControlOp(99), nil, nil)
	assert.False(t, ok)
	assert.Equal(t, SeverityWarning, s.CheckError().Severity)
}

func TestControlFinishAndStopInvokeCallbacks(t *testing.T) {
	s := NewSurface("govpi-test", false, nil, "session-1")
	var finished, stopped bool
	assert.True(t, s.Control(ControlFinish, func() { finished = true }, func() { stopped = true }))
	assert.True(t, finished)
	assert.False(t, stopped)

	assert.True(t, s.Control(ControlStop, func() { finished = true }, func() { stopped = true }))
	assert.True(t, stopped)
}

func TestNewSurfaceMintsSessionIDWhenEmpty(t *testing.T) {
	s := NewSurface("govpi-test", false, nil, "")
	assert.NotEmpty(t, s.SessionID)
}
