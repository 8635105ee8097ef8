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

package readers

import (
	"sort"

	"github.com/aaronlmathis/tabular/core"
)

// FromRecords builds a Table from Go maps. fields fixes the column order;
// every row must carry exactly those keys. Column types are inferred from
// the values: integer kinds become integer, float kinds float, and a column
// mixing both becomes float.
func FromRecords(fields []string, rows []map[string]interface{}) (*core.Table, error) {
	return buildTable(fields, rows, core.KindSchema)
}

// buildTable normalizes rows, infers the schema and checks that every row
// has the declared keys. Key mismatches are reported with mismatchKind.
func buildTable(fields []string, rows []map[string]interface{}, mismatchKind core.ErrorKind) (*core.Table, error) {
	index := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if f == "" {
			return nil, core.NewError(core.KindSchema, "", "empty field name")
		}
		if _, dup := index[f]; dup {
			return nil, core.NewError(core.KindSchema, f, "duplicate field")
		}
		index[f] = struct{}{}
	}

	out := make([]core.Record, len(rows))
	for i, row := range rows {
		if len(row) != len(fields) {
			return nil, core.NewError(mismatchKind, extraKey(row, index), "row %d: expected fields %v", i, fields)
		}
		r := make(core.Record, len(fields))
		for _, f := range fields {
			v, ok := row[f]
			if !ok {
				return nil, core.NewError(mismatchKind, f, "row %d: missing field", i)
			}
			nv, err := core.Normalize(v)
			if err != nil {
				return nil, core.WithField(err, f)
			}
			r[f] = nv
		}
		out[i] = r
	}

	schema := make(core.Schema, len(fields))
	for j, f := range fields {
		t, err := inferValues(f, out)
		if err != nil {
			return nil, err
		}
		schema[j] = core.Field{Name: f, Type: t}
	}
	return core.NewTable(schema, out)
}

// inferValues returns the column type of field across rows. A column with
// only nulls is text.
func inferValues(field string, rows []core.Record) (core.FieldType, error) {
	var t core.FieldType
	for i, r := range rows {
		vt, ok := core.TypeOf(r[field])
		if !ok {
			continue
		}
		switch {
		case t == 0 || t == vt:
			t = vt
		case t.Numeric() && vt.Numeric():
			t = core.TypeFloat
		default:
			return 0, core.NewError(core.KindType, field, "row %d: %s value in %s column", i, vt, t)
		}
	}
	if t == 0 {
		return core.TypeText, nil
	}
	return t, nil
}

func extraKey(row map[string]interface{}, index map[string]struct{}) string {
	var extra []string
	for k := range row {
		if _, ok := index[k]; !ok {
			extra = append(extra, k)
		}
	}
	if len(extra) == 0 {
		return ""
	}
	sort.Strings(extra)
	return extra[0]
}
