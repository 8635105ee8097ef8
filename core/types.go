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

// Package core defines the table model shared by every Tabular step.
//
// A Table is an ordered list of records sharing one schema. Steps never
// mutate a table in place; each produces a fresh table for the next step.
package core

import (
	"fmt"
	"strings"
)

// FieldType is the declared type of a column.
type FieldType int

const (
	TypeInteger FieldType = iota + 1
	TypeFloat
	TypeText
	TypeBoolean
)

func (t FieldType) String() string {
	switch t {
	case TypeInteger:
		return "integer"
	case TypeFloat:
		return "float"
	case TypeText:
		return "text"
	case TypeBoolean:
		return "boolean"
	default:
		return fmt.Sprintf("FieldType(%d)", int(t))
	}
}

// Numeric reports whether values of the type support arithmetic.
func (t FieldType) Numeric() bool {
	return t == TypeInteger || t == TypeFloat
}

// ParseFieldType converts a type name such as "integer" or "text" into a FieldType.
func ParseFieldType(name string) (FieldType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "integer", "int", "int64":
		return TypeInteger, nil
	case "float", "double", "float64", "number":
		return TypeFloat, nil
	case "text", "string", "utf8":
		return TypeText, nil
	case "boolean", "bool":
		return TypeBoolean, nil
	}
	return 0, NewError(KindValue, "", "unknown field type %q", name)
}

// Field is a named, typed column.
type Field struct {
	Name string
	Type FieldType
}

// Schema is the ordered list of fields every record in a table carries.
type Schema []Field

// Index returns the position of the named field, or -1.
func (s Schema) Index(name string) int {
	for i, f := range s {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Has reports whether the schema contains the named field.
func (s Schema) Has(name string) bool {
	return s.Index(name) >= 0
}

// Lookup returns the named field.
func (s Schema) Lookup(name string) (Field, bool) {
	if i := s.Index(name); i >= 0 {
		return s[i], true
	}
	return Field{}, false
}

// Names returns the field names in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// With returns a copy of the schema where the named field has type t.
// An existing field keeps its position; a new field is appended.
func (s Schema) With(name string, t FieldType) Schema {
	out := make(Schema, len(s), len(s)+1)
	copy(out, s)
	if i := out.Index(name); i >= 0 {
		out[i].Type = t
		return out
	}
	return append(out, Field{Name: name, Type: t})
}

// Validate rejects empty and duplicate field names.
func (s Schema) Validate() error {
	seen := make(map[string]struct{}, len(s))
	for i, f := range s {
		if f.Name == "" {
			return NewError(KindSchema, "", "field %d has an empty name", i)
		}
		if _, dup := seen[f.Name]; dup {
			return NewError(KindSchema, f.Name, "duplicate field name")
		}
		switch f.Type {
		case TypeInteger, TypeFloat, TypeText, TypeBoolean:
		default:
			return NewError(KindType, f.Name, "unsupported field type %s", f.Type)
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}

func (s Schema) String() string {
	parts := make([]string, len(s))
	for i, f := range s {
		parts[i] = f.Name + ":" + f.Type.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Record represents a single row of a table.
// Each record maps field names to int64, float64, string, bool or nil values.
type Record map[string]interface{}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Table is an ordered sequence of records sharing one schema.
type Table struct {
	Schema Schema
	Rows   []Record
}

// NewTable builds a table after checking that every row carries exactly the
// schema's fields with values of the declared type or nil. Values of other
// Go integer and float kinds are normalized; rows are copied.
func NewTable(schema Schema, rows []Record) (*Table, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	t := &Table{Schema: append(Schema(nil), schema...), Rows: make([]Record, len(rows))}
	for i, row := range rows {
		if len(row) != len(schema) {
			for name := range row {
				if !schema.Has(name) {
					return nil, NewError(KindSchema, name, "row %d carries a field outside the schema", i)
				}
			}
		}
		out := make(Record, len(schema))
		for _, f := range schema {
			raw, ok := row[f.Name]
			if !ok {
				return nil, NewError(KindSchema, f.Name, "row %d is missing the field", i)
			}
			v, err := Normalize(raw)
			if err != nil {
				return nil, WithField(err, f.Name)
			}
			if !Conforms(v, f.Type) {
				return nil, NewError(KindType, f.Name, "row %d holds %T, want %s", i, raw, f.Type)
			}
			if f.Type == TypeFloat {
				v = widen(v)
			}
			out[f.Name] = v
		}
		t.Rows[i] = out
	}
	return t, nil
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Column returns the values of the named field in row order.
func (t *Table) Column(name string) ([]interface{}, error) {
	if !t.Schema.Has(name) {
		return nil, NewError(KindSchema, name, "unknown field")
	}
	out := make([]interface{}, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[name]
	}
	return out, nil
}

// Clone returns a deep copy of the table. Scalar values are immutable, so
// copying each record map is sufficient.
func (t *Table) Clone() *Table {
	out := &Table{Schema: append(Schema(nil), t.Schema...), Rows: make([]Record, len(t.Rows))}
	for i, r := range t.Rows {
		out.Rows[i] = r.Clone()
	}
	return out
}

// Ordered returns the row values in schema order, for writers that need
// a positional layout.
func (t *Table) Ordered(row int) []interface{} {
	r := t.Rows[row]
	out := make([]interface{}, len(t.Schema))
	for i, f := range t.Schema {
		out[i] = r[f.Name]
	}
	return out
}

// widen turns an integer stored in a float column into a float64.
func widen(v interface{}) interface{} {
	if i, ok := v.(int64); ok {
		return float64(i)
	}
	return v
}
