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

// Package tabular runs parameterized transformations over in-memory tables.
//
// A pipeline is an ordered list of declarative steps (filter, derive,
// aggregate, anonymize) applied to an input table. Every run is a pure
// function of its input and steps: the input is copied, each step produces a
// new table, and any failure returns only the error.
//
// Example usage:
//
//	p, err := tabular.NewPipeline().
//	    FilterExpr("age > 30").
//	    DeriveExpr("new_salary", "salary * 1.1").
//	    Aggregate(aggregate.GroupBy("department").Sum("new_salary", "payroll")).
//	    Build()
//	if err != nil { log.Fatal(err) }
//	res, err := p.Run(ctx, table)
package tabular

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aaronlmathis/tabular/aggregate"
	"github.com/aaronlmathis/tabular/anonymize"
	"github.com/aaronlmathis/tabular/core"
	"github.com/aaronlmathis/tabular/expr"
	"github.com/aaronlmathis/tabular/filter"
	"github.com/aaronlmathis/tabular/readers"
	"github.com/aaronlmathis/tabular/transform"
)

// PipelineBuilder provides a fluent API for constructing pipelines.
// Use NewPipeline() to create a new builder, add steps in order, then Build.
// The first error from a text expression is kept and returned by Build.
type PipelineBuilder struct {
	pipeline *Pipeline
	err      error
}

// NewPipeline creates a new PipelineBuilder.
func NewPipeline() *PipelineBuilder {
	return &PipelineBuilder{
		pipeline: &Pipeline{
			steps:  make([]core.Step, 0),
			logger: zap.NewNop(),
		},
	}
}

// Step appends any core.Step.
func (pb *PipelineBuilder) Step(step core.Step) *PipelineBuilder {
	pb.pipeline.steps = append(pb.pipeline.steps, step)
	return pb
}

// Filter keeps the records for which predicate is true.
func (pb *PipelineBuilder) Filter(predicate expr.Node) *PipelineBuilder {
	return pb.Step(filter.New(predicate))
}

// FilterExpr parses predicate text such as "age > 30" into a Filter step.
func (pb *PipelineBuilder) FilterExpr(src string) *PipelineBuilder {
	step, err := filter.Where(src)
	if err != nil {
		pb.fail(err)
		return pb
	}
	return pb.Step(step)
}

// Derive computes name from expression for every record.
func (pb *PipelineBuilder) Derive(name string, expression expr.Node) *PipelineBuilder {
	return pb.Step(transform.DeriveColumn(name, expression))
}

// DeriveExpr parses expression text into a DeriveColumn step.
func (pb *PipelineBuilder) DeriveExpr(name, src string) *PipelineBuilder {
	step, err := transform.DeriveExpr(name, src)
	if err != nil {
		pb.fail(err)
		return pb
	}
	return pb.Step(step)
}

// Aggregate appends a group-by aggregation.
func (pb *PipelineBuilder) Aggregate(step *aggregate.Step) *PipelineBuilder {
	return pb.Step(step)
}

// Anonymize replaces the values of field using method.
func (pb *PipelineBuilder) Anonymize(field string, method anonymize.Method) *PipelineBuilder {
	return pb.Step(anonymize.Field(field, method))
}

// WithSalt sets the salt appended to values before hashing.
func (pb *PipelineBuilder) WithSalt(salt string) *PipelineBuilder {
	pb.pipeline.salt = salt
	return pb
}

// WithWorkers bounds per-record parallelism within a step. Zero or one runs
// sequentially.
func (pb *PipelineBuilder) WithWorkers(workers int) *PipelineBuilder {
	pb.pipeline.workers = workers
	return pb
}

// WithIdentifier names the column that identifies records. It must be
// present in the input and the output, and no step may rewrite it.
func (pb *PipelineBuilder) WithIdentifier(field string) *PipelineBuilder {
	pb.pipeline.identifier = field
	return pb
}

// WithLogger sets the logger used for run and step logs.
func (pb *PipelineBuilder) WithLogger(logger *zap.Logger) *PipelineBuilder {
	if logger != nil {
		pb.pipeline.logger = logger
	}
	return pb
}

// WithErrorHandler sets a handler that observes failed runs.
func (pb *PipelineBuilder) WithErrorHandler(handler ErrorHandler) *PipelineBuilder {
	pb.pipeline.errorHandler = handler
	return pb
}

func (pb *PipelineBuilder) fail(err error) {
	if pb.err == nil {
		pb.err = core.AtStep(err, len(pb.pipeline.steps), "")
	}
}

// Build validates the configuration and returns the pipeline.
func (pb *PipelineBuilder) Build() (*Pipeline, error) {
	if pb.err != nil {
		return nil, pb.err
	}
	p := pb.pipeline
	if p.workers < 0 {
		return nil, core.NewError(core.KindValue, "", "workers must be >= 0, got %d", p.workers)
	}
	for i, step := range p.steps {
		if step == nil {
			return nil, core.AtStep(core.NewError(core.KindValue, "", "nil step"), i, "")
		}
		if w, ok := step.(core.FieldWriter); ok && p.identifier != "" && w.WritesField() == p.identifier {
			return nil, core.AtStep(core.NewError(core.KindValue, p.identifier, "identifier cannot be rewritten"), i, step.Kind())
		}
	}
	built := *p
	built.steps = append([]core.Step(nil), p.steps...)
	return &built, nil
}

// Pipeline is an immutable, reusable list of steps plus run settings.
// Concurrent calls to Run share no mutable state.
type Pipeline struct {
	steps        []core.Step
	salt         string
	workers      int
	identifier   string
	logger       *zap.Logger
	errorHandler ErrorHandler
}

// Steps returns a copy of the configured steps.
func (p *Pipeline) Steps() []core.Step {
	return append([]core.Step(nil), p.steps...)
}

// Run applies every step in order to a copy of input.
//
// Errors carry the failing step index and field. Nothing is returned
// alongside an error. Cancellation of ctx is returned unwrapped.
func (p *Pipeline) Run(ctx context.Context, input *core.Table) (*Result, error) {
	runID := uuid.NewString()
	log := p.logger.With(zap.String("run_id", runID))

	res, step, err := p.run(ctx, input, log)
	if err != nil {
		log.Warn("pipeline failed", zap.Int("step", step), zap.Error(err))
		if p.errorHandler != nil {
			p.errorHandler.HandleError(ctx, step, err)
		}
		return nil, err
	}
	res.RunID = runID
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, input *core.Table, log *zap.Logger) (*Result, int, error) {
	start := time.Now()
	if input == nil {
		return nil, core.NoStep, core.NewError(core.KindValue, "", "input table is nil")
	}
	table, err := core.NewTable(input.Schema, input.Rows)
	if err != nil {
		return nil, core.NoStep, err
	}
	if p.identifier != "" && !table.Schema.Has(p.identifier) {
		return nil, core.NoStep, core.NewError(core.KindSchema, p.identifier, "identifier missing from input")
	}

	env := core.Env{Workers: p.workers, Salt: p.salt, Logger: log}.WithDefaults()
	summary := map[string]interface{}{"input_rows": int64(table.Len())}

	for i, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return nil, i, err
		}
		stepStart := time.Now()
		out, err := step.Apply(ctx, env, table)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, i, err
			}
			return nil, i, core.AtStep(err, i, step.Kind())
		}
		if p.identifier != "" && !out.Schema.Has(p.identifier) {
			return nil, i, core.AtStep(core.NewError(core.KindSchema, p.identifier, "identifier dropped"), i, step.Kind())
		}
		if s, ok := step.(core.Summarizer); ok {
			s.Summarize(out, summary)
		}
		log.Debug("step complete",
			zap.Int("step", i),
			zap.String("kind", step.Kind()),
			zap.Int("rows_in", table.Len()),
			zap.Int("rows_out", out.Len()),
			zap.Duration("duration", time.Since(stepStart)),
		)
		table = out
	}

	summary["output_rows"] = int64(table.Len())
	log.Info("pipeline complete",
		zap.Int("steps", len(p.steps)),
		zap.Int64("input_rows", summary["input_rows"].(int64)),
		zap.Int("output_rows", table.Len()),
		zap.Duration("duration", time.Since(start)),
	)
	return &Result{Table: table, Summary: summary}, core.NoStep, nil
}

// RunCSV parses delimited text with a header row and runs the pipeline on it.
func (p *Pipeline) RunCSV(ctx context.Context, r io.Reader, options ...readers.ReaderOptionCSV) (*Result, error) {
	table, err := readers.NewCSVReader(r, options...).ReadTable(ctx)
	if err != nil {
		if p.errorHandler != nil {
			p.errorHandler.HandleError(ctx, core.NoStep, err)
		}
		return nil, err
	}
	return p.Run(ctx, table)
}

// Option configures a one-shot Run.
type Option func(*PipelineBuilder)

// WithSalt sets the hashing salt.
func WithSalt(salt string) Option {
	return func(pb *PipelineBuilder) { pb.WithSalt(salt) }
}

// WithWorkers bounds per-record parallelism.
func WithWorkers(workers int) Option {
	return func(pb *PipelineBuilder) { pb.WithWorkers(workers) }
}

// WithIdentifier names the stable identifier column.
func WithIdentifier(field string) Option {
	return func(pb *PipelineBuilder) { pb.WithIdentifier(field) }
}

// WithLogger sets the run logger.
func WithLogger(logger *zap.Logger) Option {
	return func(pb *PipelineBuilder) { pb.WithLogger(logger) }
}

// Run builds a pipeline from steps and runs it once.
func Run(ctx context.Context, input *core.Table, steps []core.Step, options ...Option) (*Result, error) {
	pb := NewPipeline()
	for _, s := range steps {
		pb.Step(s)
	}
	for _, opt := range options {
		opt(pb)
	}
	p, err := pb.Build()
	if err != nil {
		return nil, err
	}
	return p.Run(ctx, input)
}
