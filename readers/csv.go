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
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/aaronlmathis/tabular/core"
)

// CSVReaderStats holds statistics about the CSV reader's performance.
type CSVReaderStats struct {
	RecordsRead     int64
	ReadDuration    time.Duration
	NullValueCounts map[string]int64
}

// CSVReaderOptions configures the CSV reader.
type CSVReaderOptions struct {
	Comma            rune
	NullMarker       string // Cell text read as null in addition to the empty string
	TrimLeadingSpace bool
}

// ReaderOptionCSV allows functional customization of CSVReader.
type ReaderOptionCSV func(*CSVReaderOptions)

// WithCSVComma sets the field delimiter.
func WithCSVComma(r rune) ReaderOptionCSV {
	return func(o *CSVReaderOptions) { o.Comma = r }
}

// WithCSVNullMarker sets the text that parses to null, e.g. "NA".
func WithCSVNullMarker(marker string) ReaderOptionCSV {
	return func(o *CSVReaderOptions) { o.NullMarker = marker }
}

// WithCSVTrimSpace trims surrounding whitespace from unquoted cells. Quoted
// cells always keep their content. On by default.
func WithCSVTrimSpace(trim bool) ReaderOptionCSV {
	return func(o *CSVReaderOptions) { o.TrimLeadingSpace = trim }
}

// CSVReader reads delimited text with a mandatory header row into a Table.
// Column types are inferred by scanning every value of the column.
//
// A blank line between records is a record of one empty cell: a null row in
// a single-column file and a field count error otherwise. Blank lines after
// the last record are ignored.
type CSVReader struct {
	src   io.Reader
	stats CSVReaderStats
	opts  CSVReaderOptions
}

// NewCSVReader creates a CSVReader with default or overridden options.
func NewCSVReader(r io.Reader, options ...ReaderOptionCSV) *CSVReader {
	opts := CSVReaderOptions{
		Comma:            ',',
		TrimLeadingSpace: true,
	}
	for _, opt := range options {
		opt(&opts)
	}

	return &CSVReader{
		src:   r,
		opts:  opts,
		stats: CSVReaderStats{NullValueCounts: make(map[string]int64)},
	}
}

// ParseCSV reads all of r into a Table.
func ParseCSV(r io.Reader, options ...ReaderOptionCSV) (*core.Table, error) {
	return NewCSVReader(r, options...).ReadTable(context.Background())
}

// Stats returns CSV reader performance stats.
func (c *CSVReader) Stats() CSVReaderStats {
	return c.stats
}

// ReadTable reads the header and all rows. Every failure is a parse error
// naming the line, and the column where one applies.
func (c *CSVReader) ReadTable(ctx context.Context) (*core.Table, error) {
	start := time.Now()

	data, err := io.ReadAll(c.src)
	if err != nil {
		return nil, c.parseError(err)
	}
	lines := lineStarts(data)
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = c.opts.Comma
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = c.opts.TrimLeadingSpace

	headers, err := reader.Read()
	if err == io.EOF {
		return nil, core.NewError(core.KindParse, "", "missing header row")
	}
	if err != nil {
		return nil, c.parseError(err)
	}
	seen := make(map[string]struct{}, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(h)
		if h == "" {
			return nil, core.NewError(core.KindParse, "", "line 1: header column %d is empty", i+1)
		}
		if _, dup := seen[h]; dup {
			return nil, core.NewError(core.KindParse, h, "line 1: duplicate header")
		}
		seen[h] = struct{}{}
		headers[i] = h
	}

	var cells [][]string
	end := int(reader.InputOffset())
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, c.parseError(err)
		}
		line, _ := reader.FieldPos(0)

		// encoding/csv skips empty lines; each one is a row of one empty cell.
		blank := bytes.Count(data[end:lines[line-1]], []byte{'\n'})
		for k := 0; k < blank; k++ {
			if len(headers) != 1 {
				return nil, core.NewError(core.KindParse, "", "line %d: expected %d fields, got 1", line-blank+k, len(headers))
			}
			cells = append(cells, []string{""})
		}
		end = int(reader.InputOffset())

		if len(record) != len(headers) {
			return nil, core.NewError(core.KindParse, "", "line %d: expected %d fields, got %d", line, len(headers), len(record))
		}
		for j := range record {
			l, col := reader.FieldPos(j)
			off := lines[l-1] + col - 1
			quoted := off < len(data) && data[off] == '"'
			record[j] = c.cell(record[j], quoted)
		}
		cells = append(cells, record)
	}

	schema := make(core.Schema, len(headers))
	columns := make([][]interface{}, len(headers))
	for j, name := range headers {
		raw := make([]string, len(cells))
		for i := range cells {
			raw[i] = cells[i][j]
		}
		schema[j] = core.Field{Name: name, Type: inferColumn(raw, c.opts.NullMarker)}
		columns[j] = make([]interface{}, len(raw))
		for i, s := range raw {
			if c.isNull(s) {
				c.stats.NullValueCounts[name]++
				continue
			}
			columns[j][i] = convertCell(s, schema[j].Type)
		}
	}

	rows := make([]core.Record, len(cells))
	for i := range rows {
		r := make(core.Record, len(headers))
		for j, name := range headers {
			r[name] = columns[j][i]
		}
		rows[i] = r
	}

	c.stats.RecordsRead += int64(len(rows))
	c.stats.ReadDuration += time.Since(start)
	return &core.Table{Schema: schema, Rows: rows}, nil
}

func (c *CSVReader) cell(s string, quoted bool) string {
	if c.opts.TrimLeadingSpace && !quoted {
		return strings.TrimSpace(s)
	}
	return s
}

// lineStarts returns the byte offset of every line, indexed by line number - 1.
func lineStarts(data []byte) []int {
	starts := []int{0}
	for i, b := range data {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

func (c *CSVReader) isNull(s string) bool {
	return s == "" || (c.opts.NullMarker != "" && s == c.opts.NullMarker)
}

func (c *CSVReader) parseError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return core.NewError(core.KindParse, "", "line %d, column %d: %v", pe.Line, pe.Column, pe.Err)
	}
	return core.NewError(core.KindParse, "", "%v", err)
}

// inferColumn picks the narrowest type every non-null value parses as.
// A column with no values is text.
func inferColumn(values []string, nullMarker string) core.FieldType {
	isInt, isFloat, isBool, present := true, true, true, false
	for _, s := range values {
		if s == "" || (nullMarker != "" && s == nullMarker) {
			continue
		}
		present = true
		if isInt {
			if _, err := strconv.ParseInt(s, 10, 64); err != nil {
				isInt = false
			}
		}
		if isFloat {
			if _, ok := parseFinite(s); !ok {
				isFloat = false
			}
		}
		if isBool {
			if _, ok := parseBool(s); !ok {
				isBool = false
			}
		}
		if !isInt && !isFloat && !isBool {
			break
		}
	}
	switch {
	case !present:
		return core.TypeText
	case isInt:
		return core.TypeInteger
	case isFloat:
		return core.TypeFloat
	case isBool:
		return core.TypeBoolean
	default:
		return core.TypeText
	}
}

func convertCell(s string, t core.FieldType) interface{} {
	switch t {
	case core.TypeInteger:
		v, _ := strconv.ParseInt(s, 10, 64)
		return v
	case core.TypeFloat:
		v, _ := parseFinite(s)
		return v
	case core.TypeBoolean:
		v, _ := parseBool(s)
		return v
	}
	return s
}

// parseFinite parses decimal numbers only. Inf, NaN and hex floats stay text.
func parseFinite(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	if strings.ContainsAny(s, "xXpP_") {
		return 0, false
	}
	return v, true
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}
