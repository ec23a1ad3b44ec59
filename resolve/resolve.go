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

// Package resolve implements the name/hierarchy resolver: dotted-name
// lookup against the model's scope table, indexed array access, range and
// iterator relations.
package resolve

import (
	"hash/fnv"
	"strings"

	lru "github.com/hashicorp/golang-lru"
	bloomfilter "github.com/holiman/bloomfilter/v2"

	"github.com/dlclark/regexp2"

	"github.com/probeum/govpi/log"
	"github.com/probeum/govpi/model"
)

var resolveLog = log.New("component", "resolve")

// namePattern validates a dotted hierarchical name (one or more
// dot-separated identifiers) before it is split into scope/variable parts.
var namePattern = regexp2.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*(\.[A-Za-z_][A-Za-z0-9_$]*)*$`, regexp2.None)

func validName(name string) bool {
	ok, err := namePattern.MatchString(name)
	return err == nil && ok
}

// Resolver resolves hierarchical names and indexed access against a Model,
// memoizing split results with an LRU cache and short-circuiting
// definitely-absent variable names with a per-scope bloom filter.
type Resolver struct {
	model Model

	cache  *lru.Cache // dotted name -> cachedLookup
	blooms map[string]*bloomfilter.Filter
}

// Model is the subset of model.Model the resolver needs.
type Model interface {
	ScopeByName(name string) (model.Scope, bool)
}

type cachedLookup struct {
	scopeName string
	varName   string
}

// New creates a Resolver with a name-resolution cache sized for cacheSize
// distinct dotted names.
func New(m Model, cacheSize int) *Resolver {
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	c, _ := lru.New(cacheSize)
	return &Resolver{model: m, cache: c, blooms: make(map[string]*bloomfilter.Filter)}
}

func fnvHash(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

// scopeFilter lazily builds (and caches) a bloom filter over a scope's
// known variable names, so a lookup for a nonexistent name can be rejected
// without a map probe.
func (r *Resolver) scopeFilter(scopeName string, s model.Scope) *bloomfilter.Filter {
	if f, ok := r.blooms[scopeName]; ok {
		return f
	}
	vars := s.Variables()
	n := uint64(len(vars))
	if n == 0 {
		n = 1
	}
	f, err := bloomfilter.New(n*20, 5)
	if err != nil {
		return nil
	}
	for name := range vars {
		f.AddHash(fnvHash(name))
	}
	r.blooms[scopeName] = f
	return f
}

// InvalidateScope drops the cached bloom filter for a scope, used when a
// scope's variable set could have changed (not expected mid-run, but kept
// for test fixtures that mutate a model between phases).
func (r *Resolver) InvalidateScope(scopeName string) {
	delete(r.blooms, scopeName)
}

// HandleByName resolves name (optionally rooted at scope) against the
// model: a Scope if the whole string names one, else a Variable found by
// splitting at the last '.'.
func (r *Resolver) HandleByName(name string, scope model.Scope) (scopeObj model.Scope, v *model.Variable, varScope model.Scope, ok bool) {
	full := name
	if scope != nil {
		full = scope.FullName() + "." + name
	}
	if !validName(full) {
		resolveLog.Warn("handle_by_name: malformed name", "name", full)
		return nil, nil, nil, false
	}

	if cached, hit := r.cache.Get(full); hit {
		cl := cached.(cachedLookup)
		if cl.varName == "" {
			if s, found := r.model.ScopeByName(cl.scopeName); found {
				return s, nil, nil, true
			}
			return nil, nil, nil, false
		}
		if s, found := r.model.ScopeByName(cl.scopeName); found {
			if variable, found2 := s.Variable(cl.varName); found2 {
				return nil, variable, s, true
			}
		}
		return nil, nil, nil, false
	}

	if s, found := r.model.ScopeByName(full); found {
		r.cache.Add(full, cachedLookup{scopeName: full})
		return s, nil, nil, true
	}

	idx := strings.LastIndex(full, ".")
	if idx < 0 {
		return nil, nil, nil, false
	}
	scopeName, varName := full[:idx], full[idx+1:]
	s, found := r.model.ScopeByName(scopeName)
	if !found {
		return nil, nil, nil, false
	}
	if f := r.scopeFilter(scopeName, s); f != nil && !f.ContainsHash(fnvHash(varName)) {
		return nil, nil, nil, false
	}
	variable, found := s.Variable(varName)
	if !found {
		return nil, nil, nil, false
	}
	r.cache.Add(full, cachedLookup{scopeName: scopeName, varName: varName})
	return nil, variable, s, true
}

// HandleByIndex bounds-checks index against v's unpacked range (Dims==2
// only) and returns the resolved offset, honoring either range orientation.
func HandleByIndex(v *model.Variable, index int32) (offset int, ok bool) {
	if v.Dims != 2 {
		return 0, false
	}
	return v.UnpackedRange.Offset(index)
}

// Relation is a handle() relation kind.
type Relation int

const (
	LeftRange Relation = iota
	RightRange
)

// RangeEndpoint resolves LeftRange/RightRange for a Variable.
func RangeEndpoint(v *model.Variable, rel Relation) (int32, bool) {
	if v.Dims != 2 {
		return 0, false
	}
	switch rel {
	case LeftRange:
		return v.UnpackedRange.LHS, true
	case RightRange:
		return v.UnpackedRange.RHS, true
	default:
		return 0, false
	}
}
