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

// Package anonymize provides the AnonymizeField step and its methods:
// Hash, Mask, Bucket and Redact.
//
// Every method maps one value to one value and leaves nulls as null, so the
// row count and row order of the table are preserved.
package anonymize

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/aaronlmathis/tabular/core"
)

// Func anonymizes one non-null value.
type Func func(value interface{}) (interface{}, error)

// Method is an anonymization strategy.
type Method interface {
	// Name identifies the method, e.g. "hash".
	Name() string
	// Bind validates the method against the target field and returns the
	// per-value function with the resulting column type.
	Bind(field core.Field, env core.Env) (Func, core.FieldType, error)
}

// Step replaces the values of Field using Method.
type Step struct {
	Field  string
	Method Method
}

// Field creates an anonymization step.
func Field(field string, method Method) *Step {
	return &Step{Field: field, Method: method}
}

// Kind implements core.Step.
func (s *Step) Kind() string { return "anonymize" }

// WritesField implements core.FieldWriter.
func (s *Step) WritesField() string { return s.Field }

// Apply implements core.Step.
func (s *Step) Apply(ctx context.Context, env core.Env, in *core.Table) (*core.Table, error) {
	env = env.WithDefaults()
	start := time.Now()

	if s.Method == nil {
		return nil, core.NewError(core.KindValue, s.Field, "no anonymization method")
	}
	field, ok := in.Schema.Lookup(s.Field)
	if !ok {
		return nil, core.NewError(core.KindSchema, s.Field, "unknown field")
	}
	fn, outType, err := s.Method.Bind(field, env)
	if err != nil {
		return nil, core.WithField(err, s.Field)
	}

	rows, err := core.MapRows(ctx, env.Workers, in.Rows, func(_ int, r core.Record) (core.Record, bool, error) {
		v := r[s.Field]
		if v == nil {
			return r, true, nil
		}
		nv, err := fn(v)
		if err != nil {
			return nil, false, core.WithField(err, s.Field)
		}
		out := r.Clone()
		out[s.Field] = nv
		return out, true, nil
	})
	if err != nil {
		return nil, err
	}

	env.Logger.Debug("field anonymized",
		zap.String("field", s.Field),
		zap.String("method", s.Method.Name()),
		zap.Int("rows", len(rows)),
		zap.Duration("duration", time.Since(start)))

	return &core.Table{Schema: in.Schema.With(s.Field, outType), Rows: rows}, nil
}
