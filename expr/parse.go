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
	"strings"

	"go.starlark.net/syntax"

	"github.com/aaronlmathis/tabular/core"
)

var binaryOps = map[syntax.Token]Op{
	syntax.PLUS:       OpAdd,
	syntax.MINUS:      OpSub,
	syntax.STAR:       OpMul,
	syntax.SLASH:      OpDiv,
	syntax.SLASHSLASH: OpFloorDiv,
	syntax.PERCENT:    OpMod,
	syntax.EQL:        OpEq,
	syntax.NEQ:        OpNe,
	syntax.LT:         OpLt,
	syntax.LE:         OpLe,
	syntax.GT:         OpGt,
	syntax.GE:         OpGe,
	syntax.AND:        OpAnd,
	syntax.OR:         OpOr,
}

// Parse reads an expression written in Python syntax, for example
// "age > 18 and department == 'sales'" or "salary * 1.10".
// Identifiers name fields; True and False are boolean literals; is_null(x)
// tests for null. Fields whose names are reserved words or are not valid
// identifiers are written col("name"), e.g. col("raise") or col('first name').
// Other calls, attribute access and collections are rejected.
func Parse(src string) (Node, error) {
	if strings.TrimSpace(src) == "" {
		return nil, core.NewError(core.KindParse, "", "empty expression")
	}
	opts := &syntax.FileOptions{}
	e, err := opts.ParseExpr("expression", src, 0)
	if err != nil {
		return nil, core.NewError(core.KindParse, "", "%v", err)
	}
	return convert(e)
}

// MustParse is like Parse but panics on error. Intended for constant
// expressions in code and tests.
func MustParse(src string) Node {
	n, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return n
}

func convert(e syntax.Expr) (Node, error) {
	switch x := e.(type) {
	case *syntax.ParenExpr:
		return convert(x.X)

	case *syntax.Ident:
		switch x.Name {
		case "True":
			return Lit{Value: true}, nil
		case "False":
			return Lit{Value: false}, nil
		case "None":
			return nil, core.NewError(core.KindType, "", "None is not a value; use is_null(field)")
		}
		return Ref{Field: x.Name}, nil

	case *syntax.Literal:
		switch v := x.Value.(type) {
		case int64, float64, string:
			return Lit{Value: v}, nil
		}
		return nil, core.NewError(core.KindParse, "", "unsupported literal %s", x.Raw)

	case *syntax.UnaryExpr:
		inner, err := convert(x.X)
		if err != nil {
			return nil, err
		}
		switch x.Op {
		case syntax.NOT:
			return Unary{Op: OpNot, X: inner}, nil
		case syntax.MINUS:
			if lit, ok := inner.(Lit); ok {
				switch v := lit.Value.(type) {
				case int64:
					return Lit{Value: -v}, nil
				case float64:
					return Lit{Value: -v}, nil
				}
			}
			return Unary{Op: OpNeg, X: inner}, nil
		case syntax.PLUS:
			return inner, nil
		}
		return nil, core.NewError(core.KindParse, "", "unsupported unary operator %s", x.Op)

	case *syntax.BinaryExpr:
		op, ok := binaryOps[x.Op]
		if !ok {
			return nil, core.NewError(core.KindParse, "", "unsupported operator %s", x.Op)
		}
		l, err := convert(x.X)
		if err != nil {
			return nil, err
		}
		r, err := convert(x.Y)
		if err != nil {
			return nil, err
		}
		return Binary{Op: op, L: l, R: r}, nil

	case *syntax.CallExpr:
		fn, ok := x.Fn.(*syntax.Ident)
		if !ok {
			return nil, core.NewError(core.KindParse, "", "unsupported function call")
		}
		switch fn.Name {
		case "col":
			if len(x.Args) != 1 {
				return nil, core.NewError(core.KindParse, "", "col takes exactly one argument")
			}
			lit, ok := x.Args[0].(*syntax.Literal)
			name, isStr := "", false
			if ok {
				name, isStr = lit.Value.(string)
			}
			if !isStr || name == "" {
				return nil, core.NewError(core.KindParse, "", "col takes a non-empty string field name")
			}
			return Ref{Field: name}, nil
		case "is_null":
			if len(x.Args) != 1 {
				return nil, core.NewError(core.KindParse, "", "is_null takes exactly one argument")
			}
			arg, err := convert(x.Args[0])
			if err != nil {
				return nil, err
			}
			return IsNull{X: arg}, nil
		}
		return nil, core.NewError(core.KindParse, "", "unsupported function %s", fn.Name)
	}
	return nil, core.NewError(core.KindParse, "", "unsupported expression %T", e)
}

// plainIdent reports whether name reads back as a bare field reference.
func plainIdent(name string) bool {
	switch name {
	case "", "True", "False", "None":
		return false
	}
	e, err := (&syntax.FileOptions{}).ParseExpr("field", name, 0)
	if err != nil {
		return false
	}
	id, ok := e.(*syntax.Ident)
	return ok && id.Name == name
}
