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
	"math"

	"github.com/aaronlmathis/tabular/core"
)

// Eval evaluates the program against one record. A null operand makes the
// result null, except that "and" and "or" short-circuit on a decisive left
// operand and otherwise follow three-valued logic.
func (p *Program) Eval(r core.Record) (interface{}, error) {
	return eval(p.root, r)
}

// Test evaluates a boolean program as a predicate. A record whose value is
// null in any field the predicate touches outside is_null fails, whatever
// the connectives around it; this is not three-valued logic. A null result
// also counts as false.
func (p *Program) Test(r core.Record) (bool, error) {
	for _, f := range p.touched {
		if r[f] == nil {
			return false, nil
		}
	}
	v, err := eval(p.root, r)
	if err != nil {
		return false, err
	}
	b, _ := v.(bool)
	return b, nil
}

func eval(n Node, r core.Record) (interface{}, error) {
	switch x := n.(type) {
	case Ref:
		return r[x.Field], nil
	case Lit:
		return x.Value, nil
	case IsNull:
		v, err := eval(x.X, r)
		if err != nil {
			return nil, err
		}
		return v == nil, nil
	case Unary:
		v, err := eval(x.X, r)
		if err != nil || v == nil {
			return nil, err
		}
		return unary(x, v)
	case Binary:
		if x.Op == OpAnd || x.Op == OpOr {
			return logical(x, r)
		}
		l, err := eval(x.L, r)
		if err != nil {
			return nil, err
		}
		rv, err := eval(x.R, r)
		if err != nil {
			return nil, err
		}
		if l == nil || rv == nil {
			return nil, nil
		}
		if x.Op.comparison() {
			return compare(x, l, rv)
		}
		return arith(x, l, rv)
	}
	return nil, core.NewError(core.KindValue, "", "unknown expression node %T", n)
}

func unary(x Unary, v interface{}) (interface{}, error) {
	switch x.Op {
	case OpNot:
		return !v.(bool), nil
	case OpNeg:
		switch n := v.(type) {
		case int64:
			if n == math.MinInt64 {
				return nil, overflow(x.X)
			}
			return -n, nil
		case float64:
			return -n, nil
		}
	}
	return nil, core.NewError(core.KindType, firstField(x.X), "operator %s not defined for %T", x.Op, v)
}

func logical(x Binary, r core.Record) (interface{}, error) {
	l, err := eval(x.L, r)
	if err != nil {
		return nil, err
	}
	if lb, ok := l.(bool); ok {
		if x.Op == OpAnd && !lb {
			return false, nil
		}
		if x.Op == OpOr && lb {
			return true, nil
		}
	}
	rv, err := eval(x.R, r)
	if err != nil {
		return nil, err
	}
	rb, rok := rv.(bool)
	if rok {
		if x.Op == OpAnd && !rb {
			return false, nil
		}
		if x.Op == OpOr && rb {
			return true, nil
		}
	}
	if l == nil || rv == nil {
		return nil, nil
	}
	return rb, nil
}

func compare(x Binary, l, r interface{}) (interface{}, error) {
	c, ok := core.Compare(l, r)
	if !ok {
		return nil, core.NewError(core.KindType, firstField(x), "cannot compare %T with %T", l, r)
	}
	switch x.Op {
	case OpEq:
		return c == 0, nil
	case OpNe:
		return c != 0, nil
	case OpLt:
		return c < 0, nil
	case OpLe:
		return c <= 0, nil
	case OpGt:
		return c > 0, nil
	default:
		return c >= 0, nil
	}
}

func arith(x Binary, l, r interface{}) (interface{}, error) {
	if ls, ok := l.(string); ok {
		rs, _ := r.(string)
		return ls + rs, nil
	}
	li, lInt := l.(int64)
	ri, rInt := r.(int64)
	if lInt && rInt && x.Op != OpDiv {
		return intArith(x, li, ri)
	}
	lf, okL := core.ToFloat64(l)
	rf, okR := core.ToFloat64(r)
	if !okL || !okR {
		return nil, core.NewError(core.KindType, firstField(x), "operator %s not defined for %T and %T", x.Op, l, r)
	}
	var out float64
	switch x.Op {
	case OpAdd:
		out = lf + rf
	case OpSub:
		out = lf - rf
	case OpMul:
		out = lf * rf
	case OpDiv, OpFloorDiv, OpMod:
		if rf == 0 {
			return nil, divByZero(x)
		}
		switch x.Op {
		case OpDiv:
			out = lf / rf
		case OpFloorDiv:
			out = math.Floor(lf / rf)
		default:
			out = math.Mod(lf, rf)
			if out != 0 && (out < 0) != (rf < 0) {
				out += rf
			}
		}
	}
	if math.IsInf(out, 0) || math.IsNaN(out) {
		return nil, overflow(x)
	}
	return out, nil
}

func intArith(x Binary, a, b int64) (interface{}, error) {
	switch x.Op {
	case OpAdd:
		s := a + b
		if (s > a) != (b > 0) {
			return nil, overflow(x)
		}
		return s, nil
	case OpSub:
		d := a - b
		if (d < a) != (b > 0) {
			return nil, overflow(x)
		}
		return d, nil
	case OpMul:
		if a == 0 || b == 0 {
			return int64(0), nil
		}
		p := a * b
		if p/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
			return nil, overflow(x)
		}
		return p, nil
	case OpFloorDiv, OpMod:
		if b == 0 {
			return nil, divByZero(x)
		}
		if a == math.MinInt64 && b == -1 {
			if x.Op == OpMod {
				return int64(0), nil
			}
			return nil, overflow(x)
		}
		q, m := a/b, a%b
		if m != 0 && (m < 0) != (b < 0) {
			q--
			m += b
		}
		if x.Op == OpMod {
			return m, nil
		}
		return q, nil
	}
	return nil, core.NewError(core.KindValue, "", "unknown arithmetic operator %q", x.Op)
}

func divByZero(x Binary) error {
	return core.NewError(core.KindArithmetic, firstField(x), "division by zero in %s", x)
}

func overflow(n Node) error {
	return core.NewError(core.KindArithmetic, firstField(n), "numeric overflow in %s", n)
}
