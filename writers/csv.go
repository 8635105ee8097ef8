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
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/aaronlmathis/tabular/core"
)

// CSVWriterError wraps CSV-specific write errors with context.
type CSVWriterError struct {
	Op  string
	Err error
}

func (e *CSVWriterError) Error() string {
	return fmt.Sprintf("csv writer %s: %v", e.Op, e.Err)
}

func (e *CSVWriterError) Unwrap() error {
	return e.Err
}

// CSVWriterStats holds CSV write statistics.
type CSVWriterStats struct {
	RecordsWritten  int64
	WriteDuration   time.Duration
	NullValueCounts map[string]int64
}

// CSVWriterOptions configures CSV output.
type CSVWriterOptions struct {
	Comma       rune
	UseCRLF     bool
	WriteHeader bool
	NullText    string
}

// WriterOptionCSV is a functional option.
type WriterOptionCSV func(*CSVWriterOptions)

func WithComma(delim rune) WriterOptionCSV {
	return func(opts *CSVWriterOptions) { opts.Comma = delim }
}

func WithWriteHeader(write bool) WriterOptionCSV {
	return func(opts *CSVWriterOptions) { opts.WriteHeader = write }
}

func WithUseCRLF(useCRLF bool) WriterOptionCSV {
	return func(opts *CSVWriterOptions) { opts.UseCRLF = useCRLF }
}

// WithNullText sets the text written for null values. The default is empty.
func WithNullText(text string) WriterOptionCSV {
	return func(opts *CSVWriterOptions) { opts.NullText = text }
}

// CSVWriter writes tables as delimited text with a header row.
type CSVWriter struct {
	writer  *csv.Writer
	options CSVWriterOptions
	stats   CSVWriterStats
}

// NewCSVWriter creates a CSV writer.
func NewCSVWriter(w io.Writer, opts ...WriterOptionCSV) *CSVWriter {
	options := CSVWriterOptions{
		Comma:       ',',
		WriteHeader: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	cw := csv.NewWriter(w)
	cw.Comma = options.Comma
	cw.UseCRLF = options.UseCRLF

	return &CSVWriter{
		writer:  cw,
		options: options,
		stats:   CSVWriterStats{NullValueCounts: make(map[string]int64)},
	}
}

// WriteTable writes the header and every row in schema order.
func (c *CSVWriter) WriteTable(ctx context.Context, table *core.Table) error {
	start := time.Now()
	if c.options.WriteHeader {
		if err := c.writer.Write(table.Schema.Names()); err != nil {
			return &CSVWriterError{Op: "write_header", Err: err}
		}
	}

	row := make([]string, len(table.Schema))
	for i, record := range table.Rows {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return &CSVWriterError{Op: "write", Err: err}
			}
		}
		for j, f := range table.Schema {
			v := record[f.Name]
			if v == nil {
				c.stats.NullValueCounts[f.Name]++
				row[j] = c.options.NullText
				continue
			}
			row[j] = core.Canonical(v)
		}
		if err := c.writer.Write(row); err != nil {
			return &CSVWriterError{Op: "write_row", Err: fmt.Errorf("row %d: %w", i, err)}
		}
		c.stats.RecordsWritten++
	}

	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		return &CSVWriterError{Op: "flush", Err: err}
	}
	c.stats.WriteDuration += time.Since(start)
	return nil
}

// Stats returns write statistics.
func (c *CSVWriter) Stats() CSVWriterStats {
	statsCopy := c.stats
	statsCopy.NullValueCounts = make(map[string]int64, len(c.stats.NullValueCounts))
	for k, v := range c.stats.NullValueCounts {
		statsCopy.NullValueCounts[k] = v
	}
	return statsCopy
}
