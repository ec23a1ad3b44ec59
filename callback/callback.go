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

// Package callback implements the callback scheduler: a registry of
// callbacks keyed by reason, a time-ordered deadline queue for delay
// callbacks, and value-change detection via shadow copies. Dispatch is
// written to tolerate a callback mutating the registry it is being invoked
// from, removing itself, removing a sibling, or registering a new one:
// reason-set dispatch snapshots the members and skips any removed mid-pass,
// and timed dispatch pops each entry before invoking it.
package callback

import (
	"sort"

	"github.com/probeum/govpi/log"
	"github.com/probeum/govpi/value"
)

var cbLog = log.New("component", "callback")

// Reason enumerates the callback reasons the runtime supports. Any other
// reason is rejected with a warning at Register time.
type Reason uint8

const (
	ReasonValueChange Reason = iota
	ReasonReadWriteSync
	ReasonReadOnlySync
	ReasonNextSimTime
	ReasonStartOfSim
	ReasonEndOfSim
	ReasonPLIError
	ReasonEnterInteractive
	ReasonExitInteractive
	ReasonInteractiveScopeChange
	ReasonAfterDelay
	numReasons
)

func (r Reason) String() string {
	switch r {
	case ReasonValueChange:
		return "value-change"
	case ReasonReadWriteSync:
		return "read-write-sync"
	case ReasonReadOnlySync:
		return "read-only-sync"
	case ReasonNextSimTime:
		return "next-sim-time"
	case ReasonStartOfSim:
		return "start-of-sim"
	case ReasonEndOfSim:
		return "end-of-sim"
	case ReasonPLIError:
		return "pli-error"
	case ReasonEnterInteractive:
		return "enter-interactive"
	case ReasonExitInteractive:
		return "exit-interactive"
	case ReasonInteractiveScopeChange:
		return "interactive-scope-change"
	case ReasonAfterDelay:
		return "after-delay"
	default:
		return "unsupported"
	}
}

// ValidReason reports whether r is one of the supported reasons.
func ValidReason(r Reason) bool { return r < numReasons }

// Func is invoked when a callback fires. The Data field is populated by the
// scheduler for value-change dispatch (the value read in the registrant's
// requested format); it is nil for every other reason.
type Func func(cb *Callback, data *value.Value) int32

// ValueTarget is the narrow seam into package value needed to read a
// variable's current bytes for change detection and dispatch, without
// callback depending on package handle (which would create an import
// cycle through package vpi).
type ValueTarget interface {
	Bytes() []byte
	ValueTarget() value.Target
}

// Callback is the object a Callback handle wraps: a copy of the caller's
// registration plus scheduling state.
type Callback struct {
	Reason   Reason
	Fn       Func
	UserData interface{}
	Format   value.Format // requested value format for value-change dispatch

	Target ValueTarget // non-nil for value-change callbacks
	shadow []byte

	// Delay is the requested relative delay; Deadline is Delay +
	// registration-time "now" for after-delay callbacks.
	Delay    uint64
	Deadline uint64

	seq uint64 // monotone registration order; the deadline tie-breaker
}

// deadlineEntry is one row of the time-ordered deadline set.
type deadlineEntry struct {
	deadline uint64
	seq      uint64
	cb       *Callback
}

// Registry is the callback scheduler state: one set per Reason, plus the
// deadline-ordered set of after-delay callbacks.
type Registry struct {
	reasonSets [numReasons]map[*Callback]struct{}
	deadlines  []deadlineEntry
	nextSeq    uint64
}

// NewRegistry creates an empty callback registry.
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.reasonSets {
		r.reasonSets[i] = make(map[*Callback]struct{})
	}
	return r
}

// Register adds cb to the scheduler. For ReasonValueChange it initializes
// cb's shadow buffer to the current storage contents. For ReasonAfterDelay
// it computes the absolute deadline from now+cb.Delay and inserts into the
// deadline set, which stays sorted by (deadline, seq).
func (r *Registry) Register(cb *Callback, now uint64) bool {
	if !ValidReason(cb.Reason) {
		cbLog.Warn("unsupported callback reason", "reason", cb.Reason)
		return false
	}
	cb.seq = r.nextSeq
	r.nextSeq++

	if cb.Reason == ReasonValueChange {
		if cb.Target != nil && cb.shadow == nil {
			src := cb.Target.Bytes()
			cb.shadow = append([]byte(nil), src...)
		}
	}

	if cb.Reason == ReasonAfterDelay {
		cb.Deadline = now + cb.Delay
		r.insertDeadline(deadlineEntry{deadline: cb.Deadline, seq: cb.seq, cb: cb})
		return true
	}

	r.reasonSets[cb.Reason][cb] = struct{}{}
	return true
}

func (r *Registry) insertDeadline(e deadlineEntry) {
	i := sort.Search(len(r.deadlines), func(i int) bool {
		d := r.deadlines[i]
		if d.deadline != e.deadline {
			return d.deadline > e.deadline
		}
		return d.seq > e.seq
	})
	r.deadlines = append(r.deadlines, deadlineEntry{})
	copy(r.deadlines[i+1:], r.deadlines[i:])
	r.deadlines[i] = e
}

// Remove unregisters cb. It is idempotent: removing a callback that is not
// registered (including one already removed) is a no-op.
func (r *Registry) Remove(cb *Callback) {
	if cb.Reason == ReasonAfterDelay {
		for i, e := range r.deadlines {
			if e.cb == cb {
				r.deadlines = append(r.deadlines[:i], r.deadlines[i+1:]...)
				return
			}
		}
		return
	}
	delete(r.reasonSets[cb.Reason], cb)
}

// NextDeadline returns the earliest pending after-delay deadline, or
// (0, false) if none is pending ("none" encoded by the caller as all-ones
// if it needs the C sentinel).
func (r *Registry) NextDeadline() (uint64, bool) {
	if len(r.deadlines) == 0 {
		return 0, false
	}
	return r.deadlines[0].deadline, true
}

// CallTimed pops and invokes every after-delay callback whose deadline has
// been reached (deadline <= now). Invocation may remove entries from the
// deadline set (including the callback removing itself), so each entry is
// removed before it is invoked and the walk then re-reads the head.
func (r *Registry) CallTimed(now uint64) {
	i := 0
	for i < len(r.deadlines) && r.deadlines[i].deadline <= now {
		e := r.deadlines[i]
		// Remove first: a callback invoked while still "in" the set that
		// re-registers itself as a fresh after-delay callback must not
		// observe its own still-pending entry.
		r.deadlines = append(r.deadlines[:i], r.deadlines[i+1:]...)
		e.cb.Fn(e.cb, nil)
		// i is not advanced: the removal shifted the next entry into
		// position i.
	}
}

// CallValueChange scans every registered value-change callback, comparing
// shadow bytes to current storage. On a difference it overwrites the
// shadow, reads the current value in the callback's requested format, and
// invokes the callback. Comparison and dispatch tolerate concurrent
// mutation of the reason set by capturing the set's members up front.
func (r *Registry) CallValueChange() {
	set := r.reasonSets[ReasonValueChange]
	members := make([]*Callback, 0, len(set))
	for cb := range set {
		members = append(members, cb)
	}
	for _, cb := range members {
		if _, live := set[cb]; !live {
			continue // removed by an earlier callback in this same pass
		}
		if cb.Target == nil {
			continue
		}
		cur := cb.Target.Bytes()
		if bytesEqual(cb.shadow, cur) {
			continue
		}
		copy(cb.shadow, cur)
		v, _ := value.Get(cb.Target.ValueTarget(), cb.Format)
		cb.Fn(cb, &v)
	}
}

// CallReason invokes every callback registered under reason (for any
// reason other than ValueChange/AfterDelay, which have their own dispatch
// entry points).
func (r *Registry) CallReason(reason Reason) {
	set := r.reasonSets[reason]
	members := make([]*Callback, 0, len(set))
	for cb := range set {
		members = append(members, cb)
	}
	for _, cb := range members {
		if _, live := set[cb]; !live {
			continue
		}
		cb.Fn(cb, nil)
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
