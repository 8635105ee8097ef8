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
	"io"

	"github.com/aaronlmathis/tabular/core"
	"github.com/aaronlmathis/tabular/writers"
)

// Result is the output of a successful run.
type Result struct {
	Table   *core.Table
	Summary map[string]interface{}
	// RunID identifies the run in logs.
	RunID string
}

// Rows returns the output records in order.
func (r *Result) Rows() []core.Record {
	return r.Table.Rows
}

// MarshalJSON encodes {"rows": [...], "summary": {...}} with each row's keys
// in schema order.
func (r *Result) MarshalJSON() ([]byte, error) {
	return writers.MarshalResult(r.Table, r.Summary)
}

// WriteJSON writes the result document to w.
func (r *Result) WriteJSON(ctx context.Context, w io.Writer, opts ...writers.WriterOptionJSON) error {
	return writers.NewJSONWriter(w, opts...).WriteResult(ctx, r.Table, r.Summary)
}
