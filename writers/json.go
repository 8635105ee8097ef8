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

package writers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aaronlmathis/tabular/core"
)

// JSONWriterError wraps JSON-specific write errors with context.
type JSONWriterError struct {
	Op  string
	Err error
}

func (e *JSONWriterError) Error() string {
	return fmt.Sprintf("json writer %s: %v", e.Op, e.Err)
}

func (e *JSONWriterError) Unwrap() error {
	return e.Err
}

// JSONWriterOptions configures JSON output.
type JSONWriterOptions struct {
	Indent string
	Lines  bool
}

// WriterOptionJSON is a functional option.
type WriterOptionJSON func(*JSONWriterOptions)

// WithJSONIndent pretty-prints output with the given indent.
func WithJSONIndent(indent string) WriterOptionJSON {
	return func(o *JSONWriterOptions) { o.Indent = indent }
}

// WithJSONLines makes WriteTable emit one object per line instead of an array.
func WithJSONLines(lines bool) WriterOptionJSON {
	return func(o *JSONWriterOptions) { o.Lines = lines }
}

// JSONWriter serializes tables and pipeline results. Object keys follow
// schema order, so equal tables always produce identical bytes.
type JSONWriter struct {
	writer io.Writer
	opts   JSONWriterOptions
}

// NewJSONWriter creates a JSON writer.
func NewJSONWriter(w io.Writer, opts ...WriterOptionJSON) *JSONWriter {
	var o JSONWriterOptions
	for _, opt := range opts {
		opt(&o)
	}
	return &JSONWriter{writer: w, opts: o}
}

// WriteResult writes {"rows": [...], "summary": {...}}.
func (j *JSONWriter) WriteResult(ctx context.Context, table *core.Table, summary map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return &JSONWriterError{Op: "write_result", Err: err}
	}
	data, err := MarshalResult(table, summary)
	if err != nil {
		return &JSONWriterError{Op: "marshal_result", Err: err}
	}
	return j.emit("write_result", data)
}

// WriteTable writes the rows as a JSON array, or as JSON lines when configured.
func (j *JSONWriter) WriteTable(ctx context.Context, table *core.Table) error {
	if err := ctx.Err(); err != nil {
		return &JSONWriterError{Op: "write_table", Err: err}
	}
	if !j.opts.Lines {
		data, err := MarshalRows(table)
		if err != nil {
			return &JSONWriterError{Op: "marshal_rows", Err: err}
		}
		return j.emit("write_table", data)
	}
	for i := range table.Rows {
		data, err := MarshalRow(table.Schema, table.Rows[i])
		if err != nil {
			return &JSONWriterError{Op: "marshal_row", Err: fmt.Errorf("row %d: %w", i, err)}
		}
		if _, err := j.writer.Write(append(data, '\n')); err != nil {
			return &JSONWriterError{Op: "write_line", Err: err}
		}
	}
	return nil
}

func (j *JSONWriter) emit(op string, data []byte) error {
	if j.opts.Indent != "" {
		var buf bytes.Buffer
		if err := json.Indent(&buf, data, "", j.opts.Indent); err != nil {
			return &JSONWriterError{Op: op, Err: err}
		}
		data = buf.Bytes()
	}
	if _, err := j.writer.Write(append(data, '\n')); err != nil {
		return &JSONWriterError{Op: op, Err: err}
	}
	return nil
}

// MarshalRow encodes one record as a JSON object with keys in schema order.
func MarshalRow(schema core.Schema, r core.Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := appendRow(&buf, schema, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalRows encodes every record as a JSON array.
func MarshalRows(table *core.Table) ([]byte, error) {
	var buf bytes.Buffer
	if err := appendRows(&buf, table); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalResult encodes a table and its summary as {"rows": [...], "summary": {...}}.
func MarshalResult(table *core.Table, summary map[string]interface{}) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"rows":`)
	if err := appendRows(&buf, table); err != nil {
		return nil, err
	}
	buf.WriteString(`,"summary":`)
	if summary == nil {
		summary = map[string]interface{}{}
	}
	data, err := json.Marshal(summary)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	buf.Write(data)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func appendRows(buf *bytes.Buffer, table *core.Table) error {
	buf.WriteByte('[')
	for i, r := range table.Rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := appendRow(buf, table.Schema, r); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	buf.WriteByte(']')
	return nil
}

func appendRow(buf *bytes.Buffer, schema core.Schema, r core.Record) error {
	buf.WriteByte('{')
	for i, f := range schema {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(f.Name)
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(r[f.Name])
		if err != nil {
			return fmt.Errorf("field %q: %w", f.Name, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return nil
}
