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

// Package aggregate implements the grouping Aggregate step.
//
// Records are partitioned by the tuple of their group-by values, with null
// forming a group of its own. Groups are emitted in order of first
// occurrence in the input.
package aggregate

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aaronlmathis/tabular/core"
)

// minParallelGroups is the group count above which partitions are
// aggregated concurrently.
const minParallelGroups = 64

// Spec is one (field, op, output name) aggregation.
type Spec struct {
	Field string
	Op    Op
	As    string
}

// Step groups records and computes aggregations per group.
type Step struct {
	GroupBy      []string
	Aggregations []Spec
}

// GroupBy creates an aggregate step grouping by the given fields.
// An empty field list aggregates the whole table into one record.
func GroupBy(fields ...string) *Step {
	return &Step{GroupBy: fields}
}

// Count adds a count of non-null values of field. Use AllRows to count records.
func (s *Step) Count(field, as string) *Step {
	return s.Add(field, OpCount, as)
}

// Sum adds a sum aggregation.
func (s *Step) Sum(field, as string) *Step {
	return s.Add(field, OpSum, as)
}

// Mean adds an average aggregation.
func (s *Step) Mean(field, as string) *Step {
	return s.Add(field, OpMean, as)
}

// Min adds a minimum aggregation.
func (s *Step) Min(field, as string) *Step {
	return s.Add(field, OpMin, as)
}

// Max adds a maximum aggregation.
func (s *Step) Max(field, as string) *Step {
	return s.Add(field, OpMax, as)
}

// Add appends an aggregation.
func (s *Step) Add(field string, op Op, as string) *Step {
	s.Aggregations = append(s.Aggregations, Spec{Field: field, Op: op, As: as})
	return s
}

// Kind implements core.Step.
func (s *Step) Kind() string { return "aggregate" }

type plan struct {
	specs []Spec
	types []core.FieldType
	out   core.Schema
}

func (s *Step) plan(schema core.Schema) (*plan, error) {
	p := &plan{specs: s.Aggregations}
	names := map[string]bool{}
	for _, g := range s.GroupBy {
		f, ok := schema.Lookup(g)
		if !ok {
			return nil, core.NewError(core.KindSchema, g, "unknown group-by field")
		}
		if names[g] {
			return nil, core.NewError(core.KindValue, g, "field listed twice in group_by")
		}
		names[g] = true
		p.out = append(p.out, f)
	}
	for _, spec := range s.Aggregations {
		if spec.As == "" {
			return nil, core.NewError(core.KindValue, spec.Field, "%s aggregation needs an output name", spec.Op)
		}
		if names[spec.As] {
			return nil, core.NewError(core.KindValue, spec.As, "output name collides with another output or group-by field")
		}
		names[spec.As] = true

		var in core.FieldType
		if spec.Field == AllRows && spec.Op == OpCount {
			in = core.TypeInteger
		} else {
			f, ok := schema.Lookup(spec.Field)
			if !ok {
				return nil, core.NewError(core.KindSchema, spec.Field, "unknown aggregation field")
			}
			in = f.Type
		}
		t, err := resultType(spec.Op, in)
		if err != nil {
			return nil, core.WithField(err, spec.Field)
		}
		p.types = append(p.types, in)
		p.out = append(p.out, core.Field{Name: spec.As, Type: t})
	}
	return p, nil
}

// Apply implements core.Step.
func (s *Step) Apply(ctx context.Context, env core.Env, in *core.Table) (*core.Table, error) {
	env = env.WithDefaults()
	start := time.Now()

	p, err := s.plan(in.Schema)
	if err != nil {
		return nil, err
	}

	groups := s.partition(in)
	results := make([]core.Record, len(groups))
	errs := make([]error, len(groups))

	run := func(i int) {
		results[i], errs[i] = p.fold(in.Rows, groups[i])
	}
	if env.Workers > 1 && len(groups) >= minParallelGroups {
		var g errgroup.Group
		g.SetLimit(env.Workers)
		for i := range groups {
			g.Go(func() error {
				run(i)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range groups {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			run(i)
			if errs[i] != nil {
				break
			}
		}
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	for i, g := range groups {
		key := in.Rows[g[0]]
		for _, field := range s.GroupBy {
			results[i][field] = key[field]
		}
	}

	env.Logger.Debug("aggregated",
		zap.Strings("group_by", s.GroupBy),
		zap.Int("rows_in", in.Len()),
		zap.Int("groups", len(groups)),
		zap.Duration("duration", time.Since(start)))

	return &core.Table{Schema: p.out, Rows: results}, nil
}

// partition returns the row indexes of each group in first-occurrence order.
func (s *Step) partition(in *core.Table) [][]int {
	index := map[string]int{}
	var groups [][]int
	key := make([]interface{}, len(s.GroupBy))
	for i, r := range in.Rows {
		for j, f := range s.GroupBy {
			key[j] = r[f]
		}
		k := core.GroupKey(key)
		g, ok := index[k]
		if !ok {
			g = len(groups)
			index[k] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups
}

func (p *plan) fold(rows []core.Record, members []int) (core.Record, error) {
	out := make(core.Record, len(p.out))
	for i, spec := range p.specs {
		agg := newAggregator(spec.Op, p.types[i])
		for _, m := range members {
			var v interface{} = true
			if spec.Field != AllRows {
				v = rows[m][spec.Field]
			}
			if v == nil {
				continue
			}
			if err := agg.Add(v); err != nil {
				return nil, core.WithField(err, spec.Field)
			}
		}
		res, err := agg.Result()
		if err != nil {
			return nil, core.WithField(err, spec.Field)
		}
		out[spec.As] = res
	}
	return out, nil
}

// Summarize implements core.Summarizer. For every numeric output it records
// the total and the mean across groups as <output>_total and <output>_mean.
func (s *Step) Summarize(out *core.Table, summary map[string]interface{}) {
	for _, spec := range s.Aggregations {
		f, ok := out.Schema.Lookup(spec.As)
		if !ok || !f.Type.Numeric() {
			continue
		}
		var total float64
		var itotal int64
		exact := f.Type == core.TypeInteger
		n := 0
		for _, r := range out.Rows {
			v := r[spec.As]
			if v == nil {
				continue
			}
			fv, _ := core.ToFloat64(v)
			total += fv
			if iv, isInt := v.(int64); isInt && exact {
				next := itotal + iv
				if (next > itotal) != (iv > 0) {
					exact = false
				}
				itotal = next
			}
			n++
		}
		if exact {
			summary[spec.As+"_total"] = itotal
		} else {
			summary[spec.As+"_total"] = total
		}
		if n > 0 {
			summary[spec.As+"_mean"] = total / float64(n)
		}
	}
}
