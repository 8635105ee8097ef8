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

	"github.com/aaronlmathis/tabular/core"
)

// This file re-exports the core types so that callers building pipelines
// need only import the root package.

// Record represents a single data record: field name to scalar value.
type Record = core.Record

// Table is an ordered sequence of records sharing one schema.
type Table = core.Table

// Schema is the ordered list of fields of a Table.
type Schema = core.Schema

// Field is one (name, type) pair of a Schema.
type Field = core.Field

// FieldType is the declared type of a column.
type FieldType = core.FieldType

// Column types.
const (
	Integer = core.TypeInteger
	Float   = core.TypeFloat
	Text    = core.TypeText
	Boolean = core.TypeBoolean
)

// Step is one declarative transformation.
type Step = core.Step

// StepFunc adapts a function to the Step interface.
type StepFunc = core.StepFunc

// Env carries per-invocation settings into steps.
type Env = core.Env

// Error is the error type returned by Run.
type Error = core.Error

// Sentinel errors for errors.Is checks.
var (
	ErrParse            = core.ErrParse
	ErrSchema           = core.ErrSchema
	ErrType             = core.ErrType
	ErrValue            = core.ErrValue
	ErrArithmetic       = core.ErrArithmetic
	ErrEmptyAggregation = core.ErrEmptyAggregation
	ErrRange            = core.ErrRange
)

// NewTable validates rows against schema and returns a copy.
func NewTable(schema Schema, rows []Record) (*Table, error) {
	return core.NewTable(schema, rows)
}

// ErrorHandler observes a failed run before its error is returned.
// Handlers cannot recover a run: every failure aborts it.
type ErrorHandler interface {
	// HandleError receives the annotated error. step is the failing step
	// index, or core.NoStep when the input was rejected.
	HandleError(ctx context.Context, step int, err error)
}

// ErrorHandlerFunc is a function adapter for the ErrorHandler interface.
type ErrorHandlerFunc func(ctx context.Context, step int, err error)

// HandleError implements the ErrorHandler interface for ErrorHandlerFunc.
func (f ErrorHandlerFunc) HandleError(ctx context.Context, step int, err error) {
	f(ctx, step, err)
}
