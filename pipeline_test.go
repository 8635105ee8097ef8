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

package tabular

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/tabular/aggregate"
	"github.com/aaronlmathis/tabular/anonymize"
	"github.com/aaronlmathis/tabular/core"
	"github.com/aaronlmathis/tabular/expr"
	"github.com/aaronlmathis/tabular/filter"
	"github.com/aaronlmathis/tabular/transform"
)

func people(t *testing.T) *core.Table {
	t.Helper()
	tbl, err := core.NewTable(core.Schema{
		{Name: "name", Type: core.TypeText},
		{Name: "age", Type: core.TypeInteger},
		{Name: "salary", Type: core.TypeInteger},
	}, []core.Record{
		{"name": "Alice", "age": 25, "salary": 50000},
		{"name": "Bob", "age": 17, "salary": 30000},
	})
	require.NoError(t, err)
	return tbl
}

func staff(t *testing.T) *core.Table {
	t.Helper()
	rows := make([]core.Record, 0, 10)
	depts := []string{"eng", "ops", "sales"}
	for i := 0; i < 10; i++ {
		rows = append(rows, core.Record{
			"id":         i + 1,
			"department": depts[i%3],
			"age":        25 + i*3,
			"salary":     10000 + i*2000,
		})
	}
	tbl, err := core.NewTable(core.Schema{
		{Name: "id", Type: core.TypeInteger},
		{Name: "department", Type: core.TypeText},
		{Name: "age", Type: core.TypeInteger},
		{Name: "salary", Type: core.TypeInteger},
	}, rows)
	require.NoError(t, err)
	return tbl
}

func TestPipeline_FilterAdults(t *testing.T) {
	p, err := NewPipeline().FilterExpr("age > 18").Build()
	require.NoError(t, err)

	res, err := p.Run(context.Background(), people(t))
	require.NoError(t, err)
	require.Equal(t, 1, res.Table.Len())
	assert.Equal(t, core.Record{"name": "Alice", "age": int64(25), "salary": int64(50000)}, res.Rows()[0])
	assert.Equal(t, int64(2), res.Summary["input_rows"])
	assert.Equal(t, int64(1), res.Summary["output_rows"])
	assert.NotEmpty(t, res.RunID)

	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"rows":[{"name":"Alice","age":25,"salary":50000}],"summary":{"input_rows":2,"output_rows":1}}`, string(data))
	assert.True(t, strings.HasPrefix(string(data), `{"rows":[{"name":"Alice","age":25,"salary":50000}]`))
}

func TestPipeline_DeriveRaise(t *testing.T) {
	p, err := NewPipeline().DeriveExpr("salary_raise", "salary * 1.10").Build()
	require.NoError(t, err)

	res, err := p.Run(context.Background(), people(t))
	require.NoError(t, err)
	require.Equal(t, 2, res.Table.Len())
	assert.Equal(t, []string{"name", "age", "salary", "salary_raise"}, res.Table.Schema.Names())
	assert.InDelta(t, 55000.0, res.Rows()[0]["salary_raise"], 1e-6)
	assert.InDelta(t, 33000.0, res.Rows()[1]["salary_raise"], 1e-6)
	assert.Equal(t, int64(30000), res.Rows()[1]["salary"])
}

func TestPipeline_StepOrderIsPreserved(t *testing.T) {
	bands := anonymize.Bucket{Ranges: []anonymize.Range{
		{Low: 0, High: 50000, Label: "low"},
		{Low: 50000, High: 100000, Label: "mid"},
	}}

	p, err := NewPipeline().
		FilterExpr("age > 30").
		Aggregate(aggregate.GroupBy("department").Sum("salary", "total_salary")).
		Anonymize("total_salary", bands).
		Build()
	require.NoError(t, err)

	res, err := p.Run(context.Background(), staff(t))
	require.NoError(t, err)
	// ids 1 and 2 are dropped; groups keep first-occurrence order.
	require.Equal(t, 3, res.Table.Len())
	assert.Equal(t, []string{"department", "total_salary"}, res.Table.Schema.Names())
	assert.Equal(t, "sales", res.Rows()[0]["department"])
	assert.Equal(t, "eng", res.Rows()[1]["department"])
	assert.Equal(t, "ops", res.Rows()[2]["department"])
	// sales 60000, eng 66000, ops 42000
	assert.Equal(t, "mid", res.Rows()[0]["total_salary"])
	assert.Equal(t, "mid", res.Rows()[1]["total_salary"])
	assert.Equal(t, "low", res.Rows()[2]["total_salary"])

	// Bucketing before aggregating leaves nothing numeric to sum.
	reordered, err := NewPipeline().
		FilterExpr("age > 30").
		Anonymize("salary", bands).
		Aggregate(aggregate.GroupBy("department").Sum("salary", "total_salary")).
		Build()
	require.NoError(t, err)
	_, err = reordered.Run(context.Background(), staff(t))
	require.ErrorIs(t, err, core.ErrType)
	var perr *core.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 2, perr.Step)
	assert.Equal(t, "aggregate", perr.StepKind)
}

func TestPipeline_MaskPhone(t *testing.T) {
	in, err := core.NewTable(core.Schema{{Name: "phone", Type: core.TypeText}},
		[]core.Record{{"phone": "555-123-4567"}})
	require.NoError(t, err)

	res, err := Run(context.Background(), in, []core.Step{anonymize.Field("phone", anonymize.Mask{KeepLast: 4})})
	require.NoError(t, err)
	assert.Equal(t, "********4567", res.Rows()[0]["phone"])
}

func TestPipeline_ErrorsCarryStep(t *testing.T) {
	tests := []struct {
		name     string
		steps    []core.Step
		wantErr  error
		wantStep int
		field    string
	}{
		{
			name:     "unknown field",
			steps:    []core.Step{filter.GreaterThan("age", 18), filter.New(expr.Bin(expr.OpGt, expr.Field("height"), expr.Value(1)))},
			wantErr:  core.ErrSchema,
			wantStep: 1,
			field:    "height",
		},
		{
			name:     "division by zero",
			steps:    []core.Step{transform.DeriveColumn("x", expr.Bin(expr.OpDiv, expr.Field("salary"), expr.Value(0)))},
			wantErr:  core.ErrArithmetic,
			wantStep: 0,
		},
		{
			name:     "mask on integer",
			steps:    []core.Step{anonymize.Field("age", anonymize.Mask{KeepLast: 1})},
			wantErr:  core.ErrValue,
			wantStep: 0,
			field:    "age",
		},
		{
			name: "bucket out of range",
			steps: []core.Step{anonymize.Field("salary", anonymize.Bucket{Ranges: []anonymize.Range{
				{Low: 0, High: 40000, Label: "low"},
			}})},
			wantErr:  core.ErrRange,
			wantStep: 0,
			field:    "salary",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(context.Background(), people(t), tt.steps)
			require.ErrorIs(t, err, tt.wantErr)
			var perr *core.Error
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.wantStep, perr.Step)
			if tt.field != "" {
				assert.Equal(t, tt.field, perr.Field)
			}
		})
	}
}

func TestPipeline_FilterDropsRowsTouchingNull(t *testing.T) {
	in, err := core.NewTable(core.Schema{
		{Name: "name", Type: core.TypeText},
		{Name: "age", Type: core.TypeInteger},
	}, []core.Record{
		{"name": "Bob", "age": nil},
		{"name": "Ann", "age": 40},
	})
	require.NoError(t, err)

	for _, src := range []string{"age > 18 or name == 'Bob'", "not (age > 18)"} {
		t.Run(src, func(t *testing.T) {
			p, err := NewPipeline().FilterExpr(src).Build()
			require.NoError(t, err)
			res, err := p.Run(context.Background(), in)
			require.NoError(t, err)
			for _, r := range res.Rows() {
				assert.NotNil(t, r["age"])
			}
		})
	}

	p, err := NewPipeline().FilterExpr("age > 18 or name == 'Bob'").Build()
	require.NoError(t, err)
	res, err := p.Run(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, 1, res.Table.Len())
	assert.Equal(t, "Ann", res.Rows()[0]["name"])

	p, err = NewPipeline().FilterExpr("is_null(age) or age > 18").Build()
	require.NoError(t, err)
	res, err = p.Run(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, 1, res.Table.Len())
	assert.Equal(t, "Ann", res.Rows()[0]["name"])

	p, err = NewPipeline().FilterExpr("is_null(age)").Build()
	require.NoError(t, err)
	res, err = p.Run(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, 1, res.Table.Len())
	assert.Equal(t, "Bob", res.Rows()[0]["name"])
}

func TestPipeline_QuotedFieldNames(t *testing.T) {
	in, err := core.NewTable(core.Schema{
		{Name: "first name", Type: core.TypeText},
		{Name: "from", Type: core.TypeInteger},
	}, []core.Record{
		{"first name": "Ann", "from": 3},
		{"first name": "Bob", "from": 9},
	})
	require.NoError(t, err)

	p, err := NewPipeline().
		FilterExpr(`col("from") > 5`).
		DeriveExpr("greeting", `"hi " + col('first name')`).
		Build()
	require.NoError(t, err)
	res, err := p.Run(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, 1, res.Table.Len())
	assert.Equal(t, "hi Bob", res.Rows()[0]["greeting"])

	_, err = NewPipeline().FilterExpr("from > 5").Build()
	assert.ErrorIs(t, err, core.ErrParse)
}

func TestPipeline_RunIsAtomic(t *testing.T) {
	in := people(t)
	before := in.Fingerprint()

	var handled []int
	p, err := NewPipeline().
		DeriveExpr("bonus", "salary * 2").
		FilterExpr("bonus / (age - 17) > 0").
		WithErrorHandler(ErrorHandlerFunc(func(_ context.Context, step int, err error) {
			handled = append(handled, step)
		})).
		Build()
	require.NoError(t, err)

	res, err := p.Run(context.Background(), in)
	require.ErrorIs(t, err, core.ErrArithmetic)
	assert.Nil(t, res)
	assert.Equal(t, []int{1}, handled)
	assert.Equal(t, before, in.Fingerprint())
	assert.Equal(t, []string{"name", "age", "salary"}, in.Schema.Names())
}

func TestPipeline_Deterministic(t *testing.T) {
	p, err := NewPipeline().
		WithSalt("pepper").
		Anonymize("name", anonymize.Hash{}).
		Aggregate(aggregate.GroupBy("name").Sum("salary", "total")).
		Build()
	require.NoError(t, err)

	first, err := p.Run(context.Background(), staffWithNames(t, 50))
	require.NoError(t, err)
	second, err := p.Run(context.Background(), staffWithNames(t, 50))
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.Len(t, first.Rows()[0]["name"], anonymize.DefaultHashLength)
}

func staffWithNames(t *testing.T, n int) *core.Table {
	t.Helper()
	rows := make([]core.Record, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, core.Record{"name": fmt.Sprintf("user%d", i%7), "salary": float64(1000 + i)})
	}
	tbl, err := core.NewTable(core.Schema{
		{Name: "name", Type: core.TypeText},
		{Name: "salary", Type: core.TypeFloat},
	}, rows)
	require.NoError(t, err)
	return tbl
}

func TestPipeline_ParallelMatchesSequential(t *testing.T) {
	build := func(workers int) *Pipeline {
		p, err := NewPipeline().
			WithWorkers(workers).
			DeriveExpr("raise", "salary * 1.05").
			FilterExpr("col('raise') > 1100").
			Anonymize("name", anonymize.Hash{Format: "Customer_{hash}"}).
			Build()
		require.NoError(t, err)
		return p
	}

	// Large enough for MapRows to split the work into chunks.
	const n = 2048
	seq, err := build(0).Run(context.Background(), staffWithNames(t, n))
	require.NoError(t, err)
	par, err := build(8).Run(context.Background(), staffWithNames(t, n))
	require.NoError(t, err)
	assert.Equal(t, n-48, seq.Table.Len())
	assert.Equal(t, seq.Table.Fingerprint(), par.Table.Fingerprint())
	assert.Equal(t, seq.Summary, par.Summary)
}

func TestPipeline_Identifier(t *testing.T) {
	_, err := NewPipeline().WithIdentifier("id").Anonymize("id", anonymize.Redact{}).Build()
	assert.ErrorIs(t, err, core.ErrValue)

	_, err = NewPipeline().WithIdentifier("id").DeriveExpr("id", "id + 1").Build()
	assert.ErrorIs(t, err, core.ErrValue)

	p, err := NewPipeline().WithIdentifier("id").FilterExpr("age > 30").Build()
	require.NoError(t, err)
	_, err = p.Run(context.Background(), people(t))
	assert.ErrorIs(t, err, core.ErrSchema)

	agg, err := NewPipeline().WithIdentifier("id").
		Aggregate(aggregate.GroupBy("department").Count("*", "n")).
		Build()
	require.NoError(t, err)
	_, err = agg.Run(context.Background(), staff(t))
	require.ErrorIs(t, err, core.ErrSchema)
	var perr *core.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 0, perr.Step)
}

func TestPipeline_BuildErrors(t *testing.T) {
	_, err := NewPipeline().FilterExpr("age >").Build()
	assert.ErrorIs(t, err, core.ErrParse)

	_, err = NewPipeline().WithWorkers(-1).Build()
	assert.ErrorIs(t, err, core.ErrValue)

	_, err = NewPipeline().Step(nil).Build()
	assert.ErrorIs(t, err, core.ErrValue)

	_, err = Run(context.Background(), nil, nil)
	assert.ErrorIs(t, err, core.ErrValue)
}

func TestPipeline_AggregateSummary(t *testing.T) {
	p, err := NewPipeline().
		Aggregate(aggregate.GroupBy("department").Sum("salary", "payroll").Count("*", "headcount")).
		Build()
	require.NoError(t, err)

	res, err := p.Run(context.Background(), staff(t))
	require.NoError(t, err)
	assert.Equal(t, int64(190000), res.Summary["payroll_total"])
	assert.Equal(t, int64(10), res.Summary["headcount_total"])
	assert.Equal(t, int64(3), res.Summary["output_rows"])
}

func TestPipeline_RunCSV(t *testing.T) {
	p, err := NewPipeline().FilterExpr("age > 18").Build()
	require.NoError(t, err)

	res, err := p.RunCSV(context.Background(), strings.NewReader("name,age\nAlice,25\nBob,17\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Table.Len())

	_, err = p.RunCSV(context.Background(), strings.NewReader("name,age\nAlice\n"))
	assert.ErrorIs(t, err, core.ErrParse)
}

func TestPipeline_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, err := NewPipeline().FilterExpr("age > 18").Build()
	require.NoError(t, err)
	_, err = p.Run(ctx, people(t))
	assert.True(t, errors.Is(err, context.Canceled))
}
