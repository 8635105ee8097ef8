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

// Package transform provides the DeriveColumn step.
//
// A derived column is computed from the record's values as they were before
// the step, then written to every record. An existing field of the same name
// keeps its position and takes the expression's type.
package transform

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/aaronlmathis/tabular/core"
	"github.com/aaronlmathis/tabular/expr"
)

// Derive computes Name from Expression for every record.
type Derive struct {
	Name       string
	Expression expr.Node
}

// DeriveColumn creates a derive step from an expression tree.
func DeriveColumn(name string, expression expr.Node) *Derive {
	return &Derive{Name: name, Expression: expression}
}

// DeriveExpr parses expression text such as "salary * 1.10".
func DeriveExpr(name, src string) (*Derive, error) {
	n, err := expr.Parse(src)
	if err != nil {
		return nil, core.WithField(err, name)
	}
	return DeriveColumn(name, n), nil
}

// Copy derives name as a copy of field.
func Copy(field, name string) *Derive {
	return DeriveColumn(name, expr.Field(field))
}

// Scale derives name as field multiplied by factor.
func Scale(field string, factor float64, name string) *Derive {
	return DeriveColumn(name, expr.Bin(expr.OpMul, expr.Field(field), expr.Value(factor)))
}

// Kind implements core.Step.
func (d *Derive) Kind() string { return "derive" }

// WritesField implements core.FieldWriter.
func (d *Derive) WritesField() string { return d.Name }

// Apply implements core.Step.
func (d *Derive) Apply(ctx context.Context, env core.Env, in *core.Table) (*core.Table, error) {
	env = env.WithDefaults()
	start := time.Now()

	if d.Name == "" {
		return nil, core.NewError(core.KindValue, "", "derived column needs a name")
	}
	prog, err := expr.Compile(d.Expression, in.Schema)
	if err != nil {
		return nil, err
	}
	float := prog.Type == core.TypeFloat

	rows, err := core.MapRows(ctx, env.Workers, in.Rows, func(_ int, r core.Record) (core.Record, bool, error) {
		v, err := prog.Eval(r)
		if err != nil {
			return nil, false, core.WithField(err, d.Name)
		}
		if i, ok := v.(int64); ok && float {
			v = float64(i)
		}
		out := r.Clone()
		out[d.Name] = v
		return out, true, nil
	})
	if err != nil {
		return nil, err
	}

	env.Logger.Debug("column derived",
		zap.String("field", d.Name),
		zap.String("expression", prog.String()),
		zap.Stringer("type", prog.Type),
		zap.Int("rows", len(rows)),
		zap.Duration("duration", time.Since(start)))

	return &core.Table{Schema: in.Schema.With(d.Name, prog.Type), Rows: rows}, nil
}
