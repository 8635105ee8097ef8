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

package core

import (
	"context"

	"go.uber.org/zap"
)

// Env carries per-invocation settings into a step. It holds no mutable
// state, so concurrent invocations may share nothing but an Env value.
type Env struct {
	// Workers bounds per-record parallelism inside a step; values below 2 run sequentially.
	Workers int
	// Salt is appended to values before hashing.
	Salt string
	// Logger receives step-level debug output. Never nil once defaulted.
	Logger *zap.Logger
}

// WithDefaults fills unset fields.
func (e Env) WithDefaults() Env {
	if e.Logger == nil {
		e.Logger = zap.NewNop()
	}
	if e.Workers < 1 {
		e.Workers = 1
	}
	return e
}

// Step is one declarative transformation. Apply consumes a table and returns
// a new one; the input is never modified.
type Step interface {
	// Kind names the step type, e.g. "filter" or "aggregate".
	Kind() string
	// Apply runs the step.
	Apply(ctx context.Context, env Env, in *Table) (*Table, error)
}

// Summarizer is implemented by steps that contribute metrics to the run
// summary from the table they produced.
type Summarizer interface {
	Summarize(out *Table, summary map[string]interface{})
}

// FieldWriter is implemented by steps that overwrite or create a field.
type FieldWriter interface {
	WritesField() string
}

// StepFunc is a function adapter for the Step interface.
// Allows ordinary functions to be used as custom steps.
type StepFunc func(ctx context.Context, env Env, in *Table) (*Table, error)

// Kind implements the Step interface for StepFunc.
func (f StepFunc) Kind() string { return "custom" }

// Apply implements the Step interface for StepFunc.
func (f StepFunc) Apply(ctx context.Context, env Env, in *Table) (*Table, error) {
	return f(ctx, env, in)
}
