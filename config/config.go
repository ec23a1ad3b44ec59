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

// Package config loads the TOML fixture describing a demo model's scopes
// and variables: the runtime treats the generated simulation model as an
// external collaborator, but the demo CLI still needs one to build from.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"
	"unicode"

	"github.com/naoina/toml"

	"github.com/probeum/govpi/log"
	"github.com/probeum/govpi/model"
	"github.com/probeum/govpi/simmodel"
)

// tomlSettings pins TOML keys to Go struct field names, so fixture files
// read naturally as "Scope.Name" rather than requiring custom tag plumbing.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		var link string
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see %s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

// VariableFixture describes one variable to instantiate within a scope.
type VariableFixture struct {
	Name      string
	Type      string `toml:",omitempty"` // u8, u16, u32, u64, wide; default u32
	Bits      int
	Dims      int    `toml:",omitempty"`
	RangeLHS  int32  `toml:",omitempty"`
	RangeRHS  int32  `toml:",omitempty"`
	Direction string `toml:",omitempty"` // input, output, inout; default inout
	ReadOnly  bool   `toml:",omitempty"`
}

// ScopeFixture describes one design scope and its variables.
type ScopeFixture struct {
	Name      string
	Variables []VariableFixture
}

// Fixture is the top-level demo-model description: product identity plus
// the scope tree.
type Fixture struct {
	Product string
	Version string
	Scopes  []ScopeFixture
}

// Load reads and decodes a TOML fixture file: a buffered decode through the
// shared tomlSettings, with the file name stitched into line-numbered
// errors for a more useful message.
func Load(path string) (*Fixture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var fx Fixture
	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(&fx)
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(path + ", " + err.Error())
	}
	if err != nil {
		log.Warn("config: failed to load fixture", "path", path, "err", err)
		return nil, err
	}
	return &fx, nil
}

func elementType(s string) model.ElementType {
	switch s {
	case "u8":
		return model.U8
	case "u16":
		return model.U16
	case "u64":
		return model.U64
	case "wide":
		return model.WIDE
	default:
		return model.U32
	}
}

func direction(s string) model.Direction {
	switch s {
	case "input":
		return model.DirInput
	case "output":
		return model.DirOutput
	default:
		return model.DirInout
	}
}

// Build instantiates a simmodel.Model from a decoded fixture: one
// simmodel.Scope per ScopeFixture, one zero-initialized variable per
// VariableFixture.
func Build(fx *Fixture, fatalOnVpiErr bool, args []string) *simmodel.Model {
	m := simmodel.New(fx.Product, fx.Version, args, fatalOnVpiErr)
	for _, sf := range fx.Scopes {
		scope := simmodel.NewScope(sf.Name)
		for _, vf := range sf.Variables {
			spec := simmodel.VarSpec{
				Name:      vf.Name,
				Type:      elementType(vf.Type),
				Bits:      vf.Bits,
				Dims:      vf.Dims,
				RangeLHS:  vf.RangeLHS,
				RangeRHS:  vf.RangeRHS,
				Direction: direction(vf.Direction),
				ReadOnly:  vf.ReadOnly,
			}
			size := (spec.Bits + 7) / 8
			if size == 0 {
				size = 1
			}
			if spec.Dims == 2 {
				r := model.Range{LHS: spec.RangeLHS, RHS: spec.RangeRHS}
				size *= r.Count()
			}
			scope.AddVariable(spec, make([]byte, size))
		}
		m.AddScope(scope)
	}
	return m
}
