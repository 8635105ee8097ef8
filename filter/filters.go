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

// Package filter provides the Filter step and composable predicate constructors.
//
// A record survives a filter only when its predicate evaluates to true. A
// predicate touching a null value outside is_null is false, even under or
// and not; this is not three-valued logic.
package filter

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/aaronlmathis/tabular/core"
	"github.com/aaronlmathis/tabular/expr"
)

// Step keeps the records for which Predicate is true, in their original order.
type Step struct {
	Predicate expr.Node
}

// New creates a filter step from a predicate tree.
func New(predicate expr.Node) *Step {
	return &Step{Predicate: predicate}
}

// Where parses a predicate such as "age > 18" into a filter step.
func Where(src string) (*Step, error) {
	n, err := expr.Parse(src)
	if err != nil {
		return nil, err
	}
	return New(n), nil
}

// Kind implements core.Step.
func (s *Step) Kind() string { return "filter" }

// Apply implements core.Step.
func (s *Step) Apply(ctx context.Context, env core.Env, in *core.Table) (*core.Table, error) {
	env = env.WithDefaults()
	start := time.Now()

	prog, err := expr.Compile(s.Predicate, in.Schema)
	if err != nil {
		return nil, err
	}
	if prog.Type != core.TypeBoolean {
		return nil, core.NewError(core.KindType, "", "predicate %s has type %s, want boolean", prog, prog.Type)
	}

	rows, err := core.MapRows(ctx, env.Workers, in.Rows, func(_ int, r core.Record) (core.Record, bool, error) {
		ok, err := prog.Test(r)
		return r, ok, err
	})
	if err != nil {
		return nil, err
	}

	env.Logger.Debug("filter applied",
		zap.String("predicate", prog.String()),
		zap.Int("rows_in", in.Len()),
		zap.Int("rows_out", len(rows)),
		zap.Duration("duration", time.Since(start)))

	return &core.Table{Schema: in.Schema, Rows: rows}, nil
}

// NotNull keeps records where the field is not null.
func NotNull(field string) *Step {
	return New(expr.Not(expr.IsNull{X: expr.Field(field)}))
}

// Equals keeps records where the field equals the value.
func Equals(field string, value interface{}) *Step {
	return New(expr.Bin(expr.OpEq, expr.Field(field), expr.Value(value)))
}

// GreaterThan keeps records where the numeric field is greater than the threshold.
func GreaterThan(field string, threshold float64) *Step {
	return New(expr.Bin(expr.OpGt, expr.Field(field), expr.Value(threshold)))
}

// LessThan keeps records where the numeric field is less than the threshold.
func LessThan(field string, threshold float64) *Step {
	return New(expr.Bin(expr.OpLt, expr.Field(field), expr.Value(threshold)))
}

// Between keeps records where the numeric field is between min and max (inclusive).
func Between(field string, min, max float64) *Step {
	return New(expr.And(
		expr.Bin(expr.OpGe, expr.Field(field), expr.Value(min)),
		expr.Bin(expr.OpLe, expr.Field(field), expr.Value(max)),
	))
}

// In keeps records where the field value is one of values.
func In(field string, values ...interface{}) *Step {
	nodes := make([]expr.Node, len(values))
	for i, v := range values {
		nodes[i] = expr.Bin(expr.OpEq, expr.Field(field), expr.Value(v))
	}
	return New(expr.Or(nodes...))
}

// And requires all predicates to hold.
func And(steps ...*Step) *Step {
	return New(expr.And(predicates(steps)...))
}

// Or requires at least one predicate to hold.
func Or(steps ...*Step) *Step {
	return New(expr.Or(predicates(steps)...))
}

// Not negates a predicate.
func Not(step *Step) *Step {
	return New(expr.Not(step.Predicate))
}

func predicates(steps []*Step) []expr.Node {
	out := make([]expr.Node, len(steps))
	for i, s := range steps {
		out[i] = s.Predicate
	}
	return out
}
