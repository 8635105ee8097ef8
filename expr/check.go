//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of Tabular.
//
// Tabular is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Tabular is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Tabular. If not, see https://www.gnu.org/licenses/.

package expr

import (
	"github.com/aaronlmathis/tabular/core"
)

// Program is an expression checked against a schema.
type Program struct {
	root Node
	// Type is the type every non-null result has.
	Type core.FieldType
	// fields referenced outside is_null; a null in any of them fails Test.
	touched []string
}

// Compile type checks n against schema. Unknown fields are schema errors and
// operator misuse is a type error.
func Compile(n Node, schema core.Schema) (*Program, error) {
	if n == nil {
		return nil, core.NewError(core.KindValue, "", "empty expression")
	}
	t, err := check(n, schema)
	if err != nil {
		return nil, err
	}
	return &Program{root: n, Type: t, touched: touchedFields(n)}, nil
}

// String returns the source form of the checked expression.
func (p *Program) String() string { return p.root.String() }

func check(n Node, schema core.Schema) (core.FieldType, error) {
	switch x := n.(type) {
	case Ref:
		f, ok := schema.Lookup(x.Field)
		if !ok {
			return 0, core.NewError(core.KindSchema, x.Field, "unknown field")
		}
		return f.Type, nil

	case Lit:
		t, ok := core.TypeOf(x.Value)
		if !ok {
			return 0, core.NewError(core.KindType, "", "unsupported literal %v; use is_null() to test for null", x.Value)
		}
		return t, nil

	case IsNull:
		if _, err := check(x.X, schema); err != nil {
			return 0, err
		}
		return core.TypeBoolean, nil

	case Unary:
		t, err := check(x.X, schema)
		if err != nil {
			return 0, err
		}
		switch x.Op {
		case OpNot:
			if t != core.TypeBoolean {
				return 0, core.NewError(core.KindType, firstField(x.X), "not requires boolean, got %s", t)
			}
			return core.TypeBoolean, nil
		case OpNeg:
			if !t.Numeric() {
				return 0, core.NewError(core.KindType, firstField(x.X), "unary minus requires a number, got %s", t)
			}
			return t, nil
		}
		return 0, core.NewError(core.KindValue, "", "unknown unary operator %q", x.Op)

	case Binary:
		lt, err := check(x.L, schema)
		if err != nil {
			return 0, err
		}
		rt, err := check(x.R, schema)
		if err != nil {
			return 0, err
		}
		return binaryType(x, lt, rt)
	}
	return 0, core.NewError(core.KindValue, "", "unknown expression node %T", n)
}

func binaryType(x Binary, lt, rt core.FieldType) (core.FieldType, error) {
	mismatch := func() (core.FieldType, error) {
		return 0, core.NewError(core.KindType, firstField(x), "operator %s not defined for %s and %s", x.Op, lt, rt)
	}
	switch {
	case x.Op.arithmetic():
		if x.Op == OpAdd && lt == core.TypeText && rt == core.TypeText {
			return core.TypeText, nil
		}
		if !lt.Numeric() || !rt.Numeric() {
			return mismatch()
		}
		if x.Op == OpDiv || lt == core.TypeFloat || rt == core.TypeFloat {
			return core.TypeFloat, nil
		}
		return core.TypeInteger, nil

	case x.Op.comparison():
		switch {
		case lt.Numeric() && rt.Numeric():
		case lt == core.TypeText && rt == core.TypeText:
		case lt == core.TypeBoolean && rt == core.TypeBoolean && (x.Op == OpEq || x.Op == OpNe):
		default:
			return mismatch()
		}
		return core.TypeBoolean, nil

	case x.Op == OpAnd || x.Op == OpOr:
		if lt != core.TypeBoolean || rt != core.TypeBoolean {
			return mismatch()
		}
		return core.TypeBoolean, nil
	}
	return 0, core.NewError(core.KindValue, "", "unknown binary operator %q", x.Op)
}
