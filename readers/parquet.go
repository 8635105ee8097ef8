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
	"fmt"
	"io"
	"os"
	"time"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/apache/arrow/go/v12/parquet"
	"github.com/apache/arrow/go/v12/parquet/file"
	"github.com/apache/arrow/go/v12/parquet/pqarrow"

	"github.com/aaronlmathis/tabular/core"
)

// ParquetReaderError provides structured error information for parquet reader operations
type ParquetReaderError struct {
	Op  string // Operation that failed (e.g., "open_file", "schema", "read_batch")
	Err error  // Underlying error
}

func (e *ParquetReaderError) Error() string {
	return fmt.Sprintf("parquet reader %s: %v", e.Op, e.Err)
}

func (e *ParquetReaderError) Unwrap() error {
	return e.Err
}

// ParquetReaderStats holds statistics about a Parquet read.
type ParquetReaderStats struct {
	RecordsRead     int64
	BatchesRead     int64
	ReadDuration    time.Duration
	NullValueCounts map[string]int64
}

// ParquetReaderOptions configures the Parquet reader.
type ParquetReaderOptions struct {
	BatchSize int64    // Rows per Arrow batch
	Columns   []string // Column projection; empty reads all columns
}

// ReaderOption configures ParquetReaderOptions.
type ReaderOption func(*ParquetReaderOptions)

// WithBatchSize sets the number of rows per Arrow batch.
func WithBatchSize(size int64) ReaderOption {
	return func(opts *ParquetReaderOptions) { opts.BatchSize = size }
}

// WithColumnProjection limits the read to the named columns, in that order.
func WithColumnProjection(columns ...string) ReaderOption {
	return func(opts *ParquetReaderOptions) { opts.Columns = append([]string(nil), columns...) }
}

// ParquetReader converts Parquet data into Tables. Integer columns of any
// width read as integer, float32/float64 as float, strings and binary as
// text, timestamps and dates as RFC 3339 text.
type ParquetReader struct {
	opts  ParquetReaderOptions
	stats ParquetReaderStats
}

// NewParquetReader creates a Parquet reader.
func NewParquetReader(options ...ReaderOption) *ParquetReader {
	opts := ParquetReaderOptions{BatchSize: 1000}
	for _, option := range options {
		option(&opts)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}
	return &ParquetReader{opts: opts, stats: ParquetReaderStats{NullValueCounts: make(map[string]int64)}}
}

// ReadParquet reads a Parquet file into a Table.
func ReadParquet(ctx context.Context, filename string, options ...ReaderOption) (*core.Table, error) {
	return NewParquetReader(options...).ReadFile(ctx, filename)
}

// Stats returns read statistics.
func (p *ParquetReader) Stats() ParquetReaderStats {
	return p.stats
}

// ReadFile opens filename and reads it.
func (p *ParquetReader) ReadFile(ctx context.Context, filename string) (*core.Table, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, &ParquetReaderError{Op: "open_file", Err: err}
	}
	defer f.Close()
	return p.ReadTable(ctx, f)
}

// ReadTable reads every row group of the Parquet data in r.
func (p *ParquetReader) ReadTable(ctx context.Context, r parquet.ReaderAtSeeker) (*core.Table, error) {
	start := time.Now()

	parquetReader, err := file.NewParquetReader(r)
	if err != nil {
		return nil, &ParquetReaderError{Op: "create_reader", Err: err}
	}
	defer parquetReader.Close()

	arrowReader, err := pqarrow.NewFileReader(parquetReader, pqarrow.ArrowReadProperties{BatchSize: p.opts.BatchSize}, memory.NewGoAllocator())
	if err != nil {
		return nil, &ParquetReaderError{Op: "create_arrow_reader", Err: err}
	}

	schema, err := arrowReader.Schema()
	if err != nil {
		return nil, &ParquetReaderError{Op: "get_schema", Err: err}
	}

	var colIndices []int
	if len(p.opts.Columns) > 0 {
		for _, name := range p.opts.Columns {
			idx := schema.FieldIndices(name)
			if len(idx) == 0 {
				return nil, &ParquetReaderError{Op: "column_projection", Err: fmt.Errorf("column %q not found in schema", name)}
			}
			colIndices = append(colIndices, idx[0])
		}
	}

	recordReader, err := arrowReader.GetRecordReader(ctx, colIndices, nil)
	if err != nil {
		return nil, &ParquetReaderError{Op: "create_record_reader", Err: err}
	}
	defer recordReader.Release()

	out := &core.Table{}
	for _, f := range recordReader.Schema().Fields() {
		t, err := fieldTypeOf(f.Type)
		if err != nil {
			return nil, &ParquetReaderError{Op: "schema", Err: fmt.Errorf("column %s: %w", f.Name, err)}
		}
		out.Schema = append(out.Schema, core.Field{Name: f.Name, Type: t})
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, &ParquetReaderError{Op: "read_batch", Err: err}
		}
		rec, err := recordReader.Read()
		if err == io.EOF || (err == nil && rec == nil) {
			break
		}
		if err != nil {
			return nil, &ParquetReaderError{Op: "read_batch", Err: err}
		}
		p.stats.BatchesRead++
		if err := p.appendBatch(out, rec); err != nil {
			return nil, err
		}
	}

	p.stats.RecordsRead += int64(out.Len())
	p.stats.ReadDuration += time.Since(start)
	return out, nil
}

func (p *ParquetReader) appendBatch(out *core.Table, rec arrow.Record) error {
	n := int(rec.NumRows())
	base := len(out.Rows)
	for i := 0; i < n; i++ {
		out.Rows = append(out.Rows, make(core.Record, len(out.Schema)))
	}
	for c, f := range out.Schema {
		col := rec.Column(c)
		for i := 0; i < n; i++ {
			v, err := columnValue(col, i)
			if err != nil {
				return &ParquetReaderError{Op: "extract_value", Err: fmt.Errorf("column %s: %w", f.Name, err)}
			}
			if v == nil {
				p.stats.NullValueCounts[f.Name]++
			}
			out.Rows[base+i][f.Name] = v
		}
	}
	return nil
}

func fieldTypeOf(dt arrow.DataType) (core.FieldType, error) {
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64, arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return core.TypeInteger, nil
	case arrow.FLOAT32, arrow.FLOAT64:
		return core.TypeFloat, nil
	case arrow.STRING, arrow.LARGE_STRING, arrow.BINARY, arrow.TIMESTAMP, arrow.DATE32, arrow.DATE64:
		return core.TypeText, nil
	case arrow.BOOL:
		return core.TypeBoolean, nil
	}
	return 0, fmt.Errorf("unsupported arrow type %s", dt)
}

func columnValue(col arrow.Array, i int) (interface{}, error) {
	if col.IsNull(i) {
		return nil, nil
	}
	switch arr := col.(type) {
	case *array.Boolean:
		return arr.Value(i), nil
	case *array.Int8:
		return int64(arr.Value(i)), nil
	case *array.Int16:
		return int64(arr.Value(i)), nil
	case *array.Int32:
		return int64(arr.Value(i)), nil
	case *array.Int64:
		return arr.Value(i), nil
	case *array.Uint8:
		return int64(arr.Value(i)), nil
	case *array.Uint16:
		return int64(arr.Value(i)), nil
	case *array.Uint32:
		return int64(arr.Value(i)), nil
	case *array.Uint64:
		return core.Normalize(arr.Value(i))
	case *array.Float32:
		return float64(arr.Value(i)), nil
	case *array.Float64:
		return arr.Value(i), nil
	case *array.String:
		return arr.Value(i), nil
	case *array.LargeString:
		return arr.Value(i), nil
	case *array.Binary:
		return string(arr.Value(i)), nil
	case *array.Timestamp:
		unit := arr.DataType().(*arrow.TimestampType).Unit
		return arr.Value(i).ToTime(unit).UTC().Format(time.RFC3339Nano), nil
	case *array.Date32:
		return arr.Value(i).ToTime().Format("2006-01-02"), nil
	case *array.Date64:
		return arr.Value(i).ToTime().Format("2006-01-02"), nil
	}
	return nil, fmt.Errorf("unsupported arrow array %T", col)
}
