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
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/aaronlmathis/tabular/core"
)

// SQLReaderError wraps SQL read errors with context about the operation.
type SQLReaderError struct {
	Op  string
	Err error
}

func (e *SQLReaderError) Error() string {
	return fmt.Sprintf("sql reader %s: %v", e.Op, e.Err)
}

func (e *SQLReaderError) Unwrap() error {
	return e.Err
}

// SQLReaderStats holds statistics about a query read.
type SQLReaderStats struct {
	RecordsRead     int64
	QueryDuration   time.Duration
	NullValueCounts map[string]int64
}

// SQLReader reads query results into Tables. It works with any
// database/sql driver registered in the binary.
type SQLReader struct {
	db           *sql.DB
	queryTimeout time.Duration
	stats        SQLReaderStats
}

// SQLReaderOption configures a SQLReader.
type SQLReaderOption func(*SQLReader)

// WithQueryTimeout bounds the query duration. Zero means no extra bound.
func WithQueryTimeout(timeout time.Duration) SQLReaderOption {
	return func(r *SQLReader) { r.queryTimeout = timeout }
}

// NewSQLReader creates a reader over db.
func NewSQLReader(db *sql.DB, options ...SQLReaderOption) *SQLReader {
	r := &SQLReader{
		db:           db,
		queryTimeout: 30 * time.Second,
		stats:        SQLReaderStats{NullValueCounts: make(map[string]int64)},
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// ReadSQL runs query on db and returns the result set as a Table.
func ReadSQL(ctx context.Context, db *sql.DB, query string, args ...interface{}) (*core.Table, error) {
	return NewSQLReader(db).ReadTable(ctx, query, args...)
}

// Stats returns read statistics.
func (r *SQLReader) Stats() SQLReaderStats {
	return r.stats
}

// ReadTable runs query and converts its rows. Column types come from the
// declared database types; columns without one are inferred from values.
func (r *SQLReader) ReadTable(ctx context.Context, query string, args ...interface{}) (*core.Table, error) {
	start := time.Now()
	if r.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.queryTimeout)
		defer cancel()
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &SQLReaderError{Op: "query", Err: err}
	}
	defer rows.Close()

	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, &SQLReaderError{Op: "column_types", Err: err}
	}
	names := make([]string, len(columnTypes))
	declared := make([]core.FieldType, len(columnTypes))
	for i, ct := range columnTypes {
		names[i] = ct.Name()
		declared[i] = declaredType(ct.DatabaseTypeName())
	}

	values := make([]interface{}, len(names))
	scan := make([]interface{}, len(names))
	for i := range values {
		scan[i] = &values[i]
	}

	var records []core.Record
	for rows.Next() {
		if err := rows.Scan(scan...); err != nil {
			return nil, &SQLReaderError{Op: "scan", Err: err}
		}
		rec := make(core.Record, len(names))
		for i, name := range names {
			if values[i] == nil {
				r.stats.NullValueCounts[name]++
				rec[name] = nil
				continue
			}
			v, err := convertSQLValue(values[i], declared[i])
			if err != nil {
				return nil, core.WithField(err, name)
			}
			rec[name] = v
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &SQLReaderError{Op: "rows", Err: err}
	}

	schema := make(core.Schema, len(names))
	for i, name := range names {
		t := declared[i]
		if t == 0 {
			if t, err = inferValues(name, records); err != nil {
				return nil, err
			}
		}
		schema[i] = core.Field{Name: name, Type: t}
	}

	table, err := core.NewTable(schema, records)
	if err != nil {
		return nil, err
	}
	r.stats.RecordsRead += int64(table.Len())
	r.stats.QueryDuration += time.Since(start)
	return table, nil
}

// declaredType maps a database type name to a field type, or 0 when the
// driver does not report one the reader recognizes.
func declaredType(name string) core.FieldType {
	name = strings.ToUpper(name)
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = name[:i]
	}
	switch strings.TrimSpace(name) {
	case "INT", "INT2", "INT4", "INT8", "INTEGER", "SMALLINT", "BIGINT", "TINYINT", "MEDIUMINT", "SERIAL", "BIGSERIAL":
		return core.TypeInteger
	case "REAL", "FLOAT", "FLOAT4", "FLOAT8", "DOUBLE", "DOUBLE PRECISION", "NUMERIC", "DECIMAL":
		return core.TypeFloat
	case "BOOL", "BOOLEAN":
		return core.TypeBoolean
	case "TEXT", "VARCHAR", "CHAR", "BPCHAR", "NVARCHAR", "UUID", "DATE", "TIME", "TIMESTAMP", "TIMESTAMPTZ", "DATETIME":
		return core.TypeText
	}
	return 0
}

// convertSQLValue converts a scanned driver value into the representation
// of t. A zero t keeps the value's own kind.
func convertSQLValue(value interface{}, t core.FieldType) (interface{}, error) {
	switch v := value.(type) {
	case []byte:
		value = string(v)
	case time.Time:
		value = v.UTC().Format(time.RFC3339Nano)
	}

	switch t {
	case core.TypeInteger:
		switch v := value.(type) {
		case string:
			i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil {
				return nil, core.NewError(core.KindType, "", "cannot read %q as integer", v)
			}
			return i, nil
		case bool:
			if v {
				return int64(1), nil
			}
			return int64(0), nil
		}
	case core.TypeFloat:
		if s, ok := value.(string); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, core.NewError(core.KindType, "", "cannot read %q as float", s)
			}
			return f, nil
		}
	case core.TypeBoolean:
		switch v := value.(type) {
		case int64:
			return v != 0, nil
		case string:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, core.NewError(core.KindType, "", "cannot read %q as boolean", v)
			}
			return b, nil
		}
	case core.TypeText:
		switch v := value.(type) {
		case string:
			return v, nil
		default:
			return fmt.Sprintf("%v", v), nil
		}
	}

	if nv, err := core.Normalize(value); err == nil {
		return nv, nil
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	}
	return fmt.Sprintf("%v", value), nil
}
