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

package core

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// minChunk is the smallest number of rows handed to one worker.
const minChunk = 256

// RowFunc maps one record. Returning keep=false drops the record.
type RowFunc func(i int, r Record) (out Record, keep bool, err error)

// MapRows applies fn to every row and returns the kept results in input
// order. With workers > 1 the rows are split into contiguous chunks that run
// concurrently; each chunk stops at its first error and the error of the
// lowest row index is returned, so the outcome matches a sequential run.
func MapRows(ctx context.Context, workers int, rows []Record, fn RowFunc) ([]Record, error) {
	if workers < 2 || len(rows) < 2*minChunk {
		return mapChunk(ctx, rows, 0, fn)
	}

	chunk := (len(rows) + workers - 1) / workers
	if chunk < minChunk {
		chunk = minChunk
	}
	n := (len(rows) + chunk - 1) / chunk
	results := make([][]Record, n)
	errs := make([]error, n)

	var g errgroup.Group
	g.SetLimit(workers)
	for c := 0; c < n; c++ {
		lo := c * chunk
		hi := min(lo+chunk, len(rows))
		g.Go(func() error {
			results[c], errs[c] = mapChunk(ctx, rows[lo:hi], lo, fn)
			return nil
		})
	}
	_ = g.Wait()

	total := 0
	for c := 0; c < n; c++ {
		if errs[c] != nil {
			return nil, errs[c]
		}
		total += len(results[c])
	}
	out := make([]Record, 0, total)
	for _, part := range results {
		out = append(out, part...)
	}
	return out, nil
}

func mapChunk(ctx context.Context, rows []Record, offset int, fn RowFunc) ([]Record, error) {
	out := make([]Record, 0, len(rows))
	for i, r := range rows {
		if i%minChunk == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, keep, err := fn(offset+i, r)
		if err != nil {
			return nil, err
		}
		if keep {
			out = append(out, rec)
		}
	}
	return out, nil
}
