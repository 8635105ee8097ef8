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

// Package expr implements the small expression language used by filter
// predicates and derived columns.
//
// Expressions are trees of field references, literals, and unary and binary
// operators. They are type checked against a schema before evaluation, so a
// type mismatch is reported once for the whole table rather than per row.
package expr

import (
	"fmt"
	"strconv"

	"github.com/aaronlmathis/tabular/core"
)

// Op is an operator symbol.
type Op string

const (
	OpAdd      Op = "+"
	OpSub      Op = "-"
	OpMul      Op = "*"
	OpDiv      Op = "/"
	OpFloorDiv Op = "//"
	OpMod      Op = "%"
	OpEq       Op = "=="
	OpNe       Op = "!="
	OpLt       Op = "<"
	OpLe       Op = "<="
	OpGt       Op = ">"
	OpGe       Op = ">="
	OpAnd      Op = "and"
	OpOr       Op = "or"
	OpNot      Op = "not"
	OpNeg      Op = "neg"
)

func (o Op) arithmetic() bool {
	switch o {
	case OpAdd, OpSub, OpMul, OpDiv, OpFloorDiv, OpMod:
		return true
	}
	return false
}

func (o Op) comparison() bool {
	switch o {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return true
	}
	return false
}

// Node is an expression tree node.
type Node interface {
	fmt.Stringer
	node()
}

// Ref reads a field of the current record.
type Ref struct {
	Field string
}

// Lit is a constant int64, float64, string or bool.
type Lit struct {
	Value interface{}
}

// Unary applies OpNot or OpNeg.
type Unary struct {
	Op Op
	X  Node
}

// Binary applies an arithmetic, comparison or logical operator.
type Binary struct {
	Op   Op
	L, R Node
}

// IsNull is true when X evaluates to null. It is the only node that
// observes nulls without propagating them.
type IsNull struct {
	X Node
}

func (Ref) node()    {}
func (Lit) node()    {}
func (Unary) node()  {}
func (Binary) node() {}
func (IsNull) node() {}

func (r Ref) String() string {
	if plainIdent(r.Field) {
		return r.Field
	}
	return "col(" + strconv.Quote(r.Field) + ")"
}

func (l Lit) String() string {
	switch v := l.Value.(type) {
	case string:
		return strconv.Quote(v)
	case bool:
		if v {
			return "True"
		}
		return "False"
	}
	return core.Canonical(l.Value)
}

func (u Unary) String() string {
	if u.Op == OpNeg {
		return "-" + u.X.String()
	}
	return "not " + u.X.String()
}

func (b Binary) String() string {
	return "(" + b.L.String() + " " + string(b.Op) + " " + b.R.String() + ")"
}

func (n IsNull) String() string { return "is_null(" + n.X.String() + ")" }

// Field returns a reference to the named field.
func Field(name string) Node { return Ref{Field: name} }

// Value returns a literal. Go integer and float kinds are normalized.
func Value(v interface{}) Node {
	if n, err := core.Normalize(v); err == nil {
		return Lit{Value: n}
	}
	return Lit{Value: v}
}

// Bin builds a binary node.
func Bin(op Op, l, r Node) Node { return Binary{Op: op, L: l, R: r} }

// And joins predicates with OpAnd, left to right.
func And(nodes ...Node) Node { return fold(OpAnd, nodes) }

// Or joins predicates with OpOr, left to right.
func Or(nodes ...Node) Node { return fold(OpOr, nodes) }

// Not negates a predicate.
func Not(n Node) Node { return Unary{Op: OpNot, X: n} }

func fold(op Op, nodes []Node) Node {
	if len(nodes) == 0 {
		return Lit{Value: op == OpAnd}
	}
	out := nodes[0]
	for _, n := range nodes[1:] {
		out = Binary{Op: op, L: out, R: n}
	}
	return out
}

// Fields returns the distinct field names referenced by n in first-use order.
func Fields(n Node) []string {
	var out []string
	seen := map[string]bool{}
	var walk func(Node)
	walk = func(n Node) {
		switch x := n.(type) {
		case Ref:
			if !seen[x.Field] {
				seen[x.Field] = true
				out = append(out, x.Field)
			}
		case Unary:
			walk(x.X)
		case Binary:
			walk(x.L)
			walk(x.R)
		case IsNull:
			walk(x.X)
		}
	}
	walk(n)
	return out
}

// touchedFields is Fields without the references that sit under is_null.
func touchedFields(n Node) []string {
	var out []string
	seen := map[string]bool{}
	var walk func(Node)
	walk = func(n Node) {
		switch x := n.(type) {
		case Ref:
			if !seen[x.Field] {
				seen[x.Field] = true
				out = append(out, x.Field)
			}
		case Unary:
			walk(x.X)
		case Binary:
			walk(x.L)
			walk(x.R)
		}
	}
	walk(n)
	return out
}

func firstField(n Node) string {
	if f := Fields(n); len(f) > 0 {
		return f[0]
	}
	return ""
}
