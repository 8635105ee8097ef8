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
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/apache/arrow/go/v12/parquet"
	"github.com/apache/arrow/go/v12/parquet/compress"
	"github.com/apache/arrow/go/v12/parquet/pqarrow"

	"github.com/aaronlmathis/tabular/core"
)

// ParquetWriterError wraps Parquet-specific write errors with context about the operation.
type ParquetWriterError struct {
	Op  string // Operation that failed (e.g., "schema", "write_batch", "open_file")
	Err error  // Underlying error
}

// Error returns the error string for ParquetWriterError.
func (e *ParquetWriterError) Error() string {
	return fmt.Sprintf("parquet writer %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for ParquetWriterError.
func (e *ParquetWriterError) Unwrap() error {
	return e.Err
}

// ParquetWriterOptions configures the Parquet writer.
type ParquetWriterOptions struct {
	BatchSize    int64                // Rows per Arrow record batch
	Compression  compress.Compression // Compression algorithm
	RowGroupSize int64                // Maximum rows per row group
	Metadata     map[string]string    // File metadata
}

// WriterStats holds statistics about the Parquet writer's performance.
type WriterStats struct {
	RecordsWritten  int64
	BatchesWritten  int64
	FlushDuration   time.Duration
	NullValueCounts map[string]int64
}

// WriterOption represents a configuration function for ParquetWriterOptions.
type WriterOption func(*ParquetWriterOptions)

// WithBatchSize sets the number of rows per Arrow record batch.
func WithBatchSize(size int64) WriterOption {
	return func(opts *ParquetWriterOptions) { opts.BatchSize = size }
}

// WithCompression sets the Parquet compression algorithm.
func WithCompression(compression compress.Compression) WriterOption {
	return func(opts *ParquetWriterOptions) { opts.Compression = compression }
}

// WithRowGroupSize sets the row group size for the Parquet file.
func WithRowGroupSize(size int64) WriterOption {
	return func(opts *ParquetWriterOptions) { opts.RowGroupSize = size }
}

// WithMetadata sets key/value metadata stored in the Arrow schema.
func WithMetadata(metadata map[string]string) WriterOption {
	return func(opts *ParquetWriterOptions) {
		if opts.Metadata == nil {
			opts.Metadata = make(map[string]string, len(metadata))
		}
		for k, v := range metadata {
			opts.Metadata[k] = v
		}
	}
}

// withDefaults applies default values to ParquetWriterOptions.
func (opts ParquetWriterOptions) withDefaults() ParquetWriterOptions {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}
	if opts.RowGroupSize <= 0 {
		opts.RowGroupSize = 10000
	}
	if opts.Compression == 0 {
		opts.Compression = compress.Codecs.Snappy
	}
	return opts
}

// ParquetWriter writes tables as Parquet using an Arrow schema derived from
// the table schema: integer as int64, float as float64, text as utf8 and
// boolean as bool. Every column is nullable.
type ParquetWriter struct {
	opts      ParquetWriterOptions
	allocator memory.Allocator
	stats     WriterStats
}

// NewParquetWriter creates a Parquet writer.
func NewParquetWriter(options ...WriterOption) *ParquetWriter {
	var opts ParquetWriterOptions
	for _, option := range options {
		option(&opts)
	}
	return &ParquetWriter{
		opts:      opts.withDefaults(),
		allocator: memory.NewGoAllocator(),
		stats:     WriterStats{NullValueCounts: make(map[string]int64)},
	}
}

// Stats returns the current statistics of the Parquet writer.
func (p *ParquetWriter) Stats() WriterStats {
	return p.stats
}

// ArrowSchema converts a table schema to an Arrow schema.
func ArrowSchema(schema core.Schema, metadata map[string]string) (*arrow.Schema, error) {
	fields := make([]arrow.Field, len(schema))
	for i, f := range schema {
		var dt arrow.DataType
		switch f.Type {
		case core.TypeInteger:
			dt = arrow.PrimitiveTypes.Int64
		case core.TypeFloat:
			dt = arrow.PrimitiveTypes.Float64
		case core.TypeText:
			dt = arrow.BinaryTypes.String
		case core.TypeBoolean:
			dt = arrow.FixedWidthTypes.Boolean
		default:
			return nil, fmt.Errorf("field %s: unsupported type %s", f.Name, f.Type)
		}
		fields[i] = arrow.Field{Name: f.Name, Type: dt, Nullable: true}
	}
	var md *arrow.Metadata
	if len(metadata) > 0 {
		m := arrow.MetadataFrom(metadata)
		md = &m
	}
	return arrow.NewSchema(fields, md), nil
}

// WriteFile writes the table to a Parquet file, creating parent directories.
func (p *ParquetWriter) WriteFile(ctx context.Context, filename string, table *core.Table) error {
	dir := filepath.Dir(filename)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return &ParquetWriterError{Op: "create_directory", Err: fmt.Errorf("failed to create directory %s: %w", dir, err)}
		}
	}
	file, err := os.Create(filename)
	if err != nil {
		return &ParquetWriterError{Op: "open_file", Err: fmt.Errorf("failed to create parquet file %s: %w", filename, err)}
	}
	if err := p.WriteTable(ctx, file, table); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// WriteTable writes the table to w in batches.
func (p *ParquetWriter) WriteTable(ctx context.Context, w io.Writer, table *core.Table) error {
	schema, err := ArrowSchema(table.Schema, p.opts.Metadata)
	if err != nil {
		return &ParquetWriterError{Op: "schema", Err: err}
	}

	props := parquet.NewWriterProperties(
		parquet.WithCompression(p.opts.Compression),
		parquet.WithMaxRowGroupLength(p.opts.RowGroupSize),
	)
	writer, err := pqarrow.NewFileWriter(schema, nopCloser{w}, props, pqarrow.DefaultWriterProps())
	if err != nil {
		return &ParquetWriterError{Op: "create_writer", Err: fmt.Errorf("failed to create parquet file writer: %w", err)}
	}

	for lo := 0; lo < len(table.Rows); lo += int(p.opts.BatchSize) {
		if err := ctx.Err(); err != nil {
			writer.Close()
			return &ParquetWriterError{Op: "write", Err: err}
		}
		hi := min(lo+int(p.opts.BatchSize), len(table.Rows))
		if err := p.writeBatch(writer, schema, table, lo, hi); err != nil {
			writer.Close()
			return err
		}
	}

	if err := writer.Close(); err != nil {
		return &ParquetWriterError{Op: "close_writer", Err: fmt.Errorf("failed to close parquet writer: %w", err)}
	}
	return nil
}

func (p *ParquetWriter) writeBatch(writer *pqarrow.FileWriter, schema *arrow.Schema, table *core.Table, lo, hi int) error {
	start := time.Now()

	builder := array.NewRecordBuilder(p.allocator, schema)
	defer builder.Release()

	for i, f := range table.Schema {
		fb := builder.Field(i)
		for _, r := range table.Rows[lo:hi] {
			v := r[f.Name]
			if v == nil {
				fb.AppendNull()
				p.stats.NullValueCounts[f.Name]++
				continue
			}
			if err := appendValue(fb, v); err != nil {
				return &ParquetWriterError{Op: "append_value", Err: fmt.Errorf("failed to append value for field %s: %w", f.Name, err)}
			}
		}
	}

	record := builder.NewRecord()
	defer record.Release()

	if err := writer.Write(record); err != nil {
		return &ParquetWriterError{Op: "write_batch", Err: fmt.Errorf("failed to write record batch: %w", err)}
	}

	p.stats.RecordsWritten += int64(hi - lo)
	p.stats.BatchesWritten++
	p.stats.FlushDuration += time.Since(start)
	return nil
}

// appendValue appends a normalized value to the matching Arrow builder.
func appendValue(builder array.Builder, value interface{}) error {
	switch b := builder.(type) {
	case *array.Int64Builder:
		if v, ok := value.(int64); ok {
			b.Append(v)
			return nil
		}
	case *array.Float64Builder:
		if v, ok := core.ToFloat64(value); ok {
			b.Append(v)
			return nil
		}
	case *array.StringBuilder:
		if v, ok := value.(string); ok {
			b.Append(v)
			return nil
		}
	case *array.BooleanBuilder:
		if v, ok := value.(bool); ok {
			b.Append(v)
			return nil
		}
	}
	return fmt.Errorf("cannot append %T to %T", value, builder)
}

// nopCloser keeps pqarrow from closing writers it does not own.
type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
