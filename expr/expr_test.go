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
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/tabular/core"
)

var schema = core.Schema{
	{Name: "name", Type: core.TypeText},
	{Name: "age", Type: core.TypeInteger},
	{Name: "salary", Type: core.TypeFloat},
	{Name: "active", Type: core.TypeBoolean},
	{Name: "qty", Type: core.TypeInteger},
}

func compile(t *testing.T, src string) *Program {
	t.Helper()
	n, err := Parse(src)
	require.NoError(t, err)
	p, err := Compile(n, schema)
	require.NoError(t, err)
	return p
}

func TestParse_Shapes(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"age > 18", "(age > 18)"},
		{"salary * 1.10", "(salary * 1.1)"},
		{"not active", "not active"},
		{"age >= 18 and name == 'bob'", `((age >= 18) and (name == "bob"))`},
		{"-qty", "-qty"},
		{"-5 + age", "(-5 + age)"},
		{"is_null(salary)", "is_null(salary)"},
		{"(age + 1) // 2", "((age + 1) // 2)"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			n, err := Parse(tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n.String())
		})
	}
}

func TestParse_Rejects(t *testing.T) {
	for _, src := range []string{"", "age >", "len(name)", "a.b", "[1, 2]", "age & 1"} {
		_, err := Parse(src)
		assert.True(t, errors.Is(err, core.ErrParse), "src %q: %v", src, err)
	}
	_, err := Parse("salary == None")
	assert.True(t, errors.Is(err, core.ErrType))
}

func TestCompile_Types(t *testing.T) {
	tests := []struct {
		src  string
		want core.FieldType
	}{
		{"age + qty", core.TypeInteger},
		{"age * 1.5", core.TypeFloat},
		{"age / qty", core.TypeFloat},
		{"age // qty", core.TypeInteger},
		{"name + '!'", core.TypeText},
		{"age < salary", core.TypeBoolean},
		{"active == True", core.TypeBoolean},
		{"is_null(name) or active", core.TypeBoolean},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.want, compile(t, tt.src).Type)
		})
	}
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		src   string
		kind  core.ErrorKind
		field string
	}{
		{"bonus > 1", core.KindSchema, "bonus"},
		{"name * 2", core.KindType, "name"},
		{"name > 3", core.KindType, "name"},
		{"active < True", core.KindType, "active"},
		{"age and active", core.KindType, "age"},
		{"not age", core.KindType, "age"},
		{"-name", core.KindType, "name"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			_, err := Compile(MustParse(tt.src), schema)
			require.Error(t, err)
			var pe *core.Error
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.kind, pe.Kind)
			assert.Equal(t, tt.field, pe.Field)
		})
	}
}

func TestEval_Arithmetic(t *testing.T) {
	rec := core.Record{"name": "ann", "age": int64(7), "salary": 50000.0, "active": true, "qty": int64(-2)}
	tests := []struct {
		src  string
		want interface{}
	}{
		{"salary * 1.10", 55000.00000000001},
		{"age + qty", int64(5)},
		{"age / 2", 3.5},
		{"age // qty", int64(-4)},
		{"age % qty", int64(-1)},
		{"name + '!'", "ann!"},
		{"-qty", int64(2)},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			v, err := compile(t, tt.src).Eval(rec)
			require.NoError(t, err)
			if f, ok := tt.want.(float64); ok {
				assert.InDelta(t, f, v, 1e-6)
				return
			}
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestEval_NullPropagation(t *testing.T) {
	rec := core.Record{"name": nil, "age": nil, "salary": 10.0, "active": nil, "qty": int64(1)}

	v, err := compile(t, "age + 1").Eval(rec)
	require.NoError(t, err)
	assert.Nil(t, v)

	ok, err := compile(t, "age > 18").Test(rec)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = compile(t, "not (age > 18)").Test(rec)
	require.NoError(t, err)
	assert.False(t, ok, "negating a null comparison stays false")

	ok, err = compile(t, "is_null(age)").Test(rec)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = compile(t, "active or qty == 1").Test(rec)
	require.NoError(t, err)
	assert.False(t, ok, "a null operand fails the predicate even when or could decide")

	ok, err = compile(t, "active and qty == 1").Test(rec)
	require.NoError(t, err)
	assert.False(t, ok)

	v, err = compile(t, "active or qty == 1").Eval(rec)
	require.NoError(t, err)
	assert.Equal(t, true, v, "Eval keeps short-circuit logic")
}

func TestTest_NullTouchIsFalse(t *testing.T) {
	rec := core.Record{"name": "Bob", "age": nil, "salary": 1.0, "active": true, "qty": int64(1)}
	tests := []struct {
		src  string
		want bool
	}{
		{"age > 18 or name == 'Bob'", false},
		{"name == 'Bob' or age > 18", false},
		{"not (age > 18)", false},
		{"not (age > 18) or active", false},
		{"is_null(age) and name == 'Bob'", true},
		{"is_null(age) or age > 18", false},
		{"not is_null(age)", false},
		{"name == 'Bob'", true},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			ok, err := compile(t, tt.src).Test(rec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestParse_ColQuotesFieldNames(t *testing.T) {
	odd := core.Schema{
		{Name: "raise", Type: core.TypeFloat},
		{Name: "first name", Type: core.TypeText},
		{Name: "from", Type: core.TypeText},
	}
	n, err := Parse(`col("raise") > 0 and col('first name') == 'x'`)
	require.NoError(t, err)
	assert.Equal(t, []string{"raise", "first name"}, Fields(n))
	assert.Equal(t, `((col("raise") > 0) and (col("first name") == "x"))`, n.String())

	p, err := Compile(n, odd)
	require.NoError(t, err)
	ok, err := p.Test(core.Record{"raise": 1.5, "first name": "x", "from": "y"})
	require.NoError(t, err)
	assert.True(t, ok)

	n, err = Parse(`col("from") + "!"`)
	require.NoError(t, err)
	p, err = Compile(n, odd)
	require.NoError(t, err)
	v, err := p.Eval(core.Record{"from": "y"})
	require.NoError(t, err)
	assert.Equal(t, "y!", v)

	for _, src := range []string{"raise > 0", "col()", "col(name)", "col('a', 'b')", "col('')", "col(1)"} {
		_, err := Parse(src)
		assert.True(t, errors.Is(err, core.ErrParse), "src %q: %v", src, err)
	}
}

func TestEval_ArithmeticErrors(t *testing.T) {
	rec := core.Record{"name": "x", "age": int64(math.MaxInt64), "salary": 0.0, "active": true, "qty": int64(0)}
	for _, src := range []string{"age / qty", "age // qty", "age % qty", "1.0 / salary", "age + 1", "age * 2"} {
		_, err := compile(t, src).Eval(rec)
		assert.True(t, errors.Is(err, core.ErrArithmetic), "src %q: %v", src, err)
	}
}

func TestEval_ShortCircuitGuardsDivision(t *testing.T) {
	rec := core.Record{"name": "x", "age": int64(5), "salary": 1.0, "active": true, "qty": int64(0)}
	ok, err := compile(t, "qty != 0 and age / qty > 1").Test(rec)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBuilders(t *testing.T) {
	n := And(Bin(OpGt, Field("age"), Value(18)), Not(IsNull{X: Field("name")}))
	p, err := Compile(n, schema)
	require.NoError(t, err)
	ok, err := p.Test(core.Record{"age": int64(30), "name": "a"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"age", "name"}, Fields(n))
}
