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

// Package vpierr implements the error record and simulator-control surface:
// severity-tagged error state with a single structured raise routine that
// takes severity, source location, and a formatted message, fatal
// escalation policy, and the finish/stop control operations.
package vpierr

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/probeum/govpi/log"
)

var errLog = log.New("component", "vpierr")

// Severity mirrors the standard's error levels, lowest first.
type Severity uint8

const (
	SeverityNotice Severity = iota
	SeverityWarning
	SeverityError
	SeveritySystem
	SeverityInternal
)

func (s Severity) String() string {
	switch s {
	case SeverityNotice:
		return "notice"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeveritySystem:
		return "system"
	case SeverityInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Record is the single error slot's contents.
type Record struct {
	Set      bool
	Severity Severity
	Message  string
	Product  string
	File     string
	Line     int
	Code     string
}

// FatalFunc aborts the process; supplied by the model.
type FatalFunc func(file string, line int, context, msg string)

// Surface is the process-wide error and control state, modeled as an
// explicit object rather than package-level globals.
type Surface struct {
	rec Record

	Product       string
	FatalOnVpiErr bool
	Fatal         FatalFunc
	SessionID     string

	// onSet is invoked with the severity after every Raise; vpi.Runtime
	// wires this to dispatch registered PLI-error callbacks without
	// vpierr depending on package callback.
	onSet func(Severity)
}

// NewSurface creates an error surface. sessionID distinguishes concurrent
// demo runs sharing a log stream; if empty, a fresh uuid is minted.
func NewSurface(product string, fatalOnVpiErr bool, fatal FatalFunc, sessionID string) *Surface {
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	return &Surface{Product: product, FatalOnVpiErr: fatalOnVpiErr, Fatal: fatal, SessionID: sessionID}
}

// OnSet registers the callback invoked whenever Raise sets the error slot.
func (s *Surface) OnSet(fn func(Severity)) { s.onSet = fn }

// Reset clears the error slot. ABI entries call this on entry where the
// standard prescribes it; CheckError never calls it.
func (s *Surface) Reset() { s.rec = Record{} }

// Raise records sev/msg (with file/line captured by the caller) into the
// single error slot, logs it, dispatches PLI-error callbacks if any are
// registered, and, if sev >= SeverityError and the fatal policy is
// enabled, aborts the process via Fatal.
func (s *Surface) Raise(sev Severity, file string, line int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	s.rec = Record{Set: true, Severity: sev, Message: msg, Product: s.Product, File: file, Line: line}

	switch sev {
	case SeverityInternal, SeveritySystem:
		errLog.Error(msg, "severity", sev.String(), "file", file, "line", line, "session", s.SessionID)
	case SeverityError:
		errLog.Warn(msg, "severity", sev.String(), "file", file, "line", line)
	default:
		errLog.Debug(msg, "severity", sev.String(), "file", file, "line", line)
	}

	if s.onSet != nil {
		s.onSet(sev)
	}

	if sev >= SeverityError && s.FatalOnVpiErr && s.Fatal != nil {
		s.Fatal(file, line, "*VPI*", msg)
	}
}

// CheckError returns the current error record without resetting it.
func (s *Surface) CheckError() Record { return s.rec }

// ControlOp is a simulator-control operation.
type ControlOp int32

const (
	ControlFinish ControlOp = iota + 1
	ControlStop
)

// Control dispatches a simulator-control operation. Unknown operations
// warn and return false.
func (s *Surface) Control(op ControlOp, finish func(), stop func()) bool {
	switch op {
	case ControlFinish:
		errLog.Info("*VPI* finish")
		if finish != nil {
			finish()
		}
		return true
	case ControlStop:
		errLog.Info("*VPI* stop")
		if stop != nil {
			stop()
		}
		return true
	default:
		s.Raise(SeverityWarning, "*VPI*", 0, "unknown control operation %d", op)
		return false
	}
}

// VlogInfo is the payload returned by get_vlog_info.
type VlogInfo struct {
	Argv           []string
	ProductName    string
	ProductVersion string
}
