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

// Package definition loads pipelines declared in YAML.
//
// A definition lists steps in order; each step has exactly one key:
//
//	name: payroll
//	salt: pepper
//	identifier: id
//	steps:
//	  - filter: "age > 30"
//	  - derive: {name: new_salary, expr: "salary * 1.1"}
//	  - aggregate:
//	      group_by: [department]
//	      aggregations:
//	        - {op: sum, field: new_salary, as: payroll}
//	  - anonymize: {field: department, method: hash, length: 12}
//	  - check: {min_rows: 1, required: [department]}
//
// Filter and derive expressions name awkward columns with col, e.g.
// "col('first name') != ''".
package definition

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/aaronlmathis/tabular"
	"github.com/aaronlmathis/tabular/aggregate"
	"github.com/aaronlmathis/tabular/anonymize"
	"github.com/aaronlmathis/tabular/config"
	"github.com/aaronlmathis/tabular/core"
	"github.com/aaronlmathis/tabular/filter"
	"github.com/aaronlmathis/tabular/transform"
	"github.com/aaronlmathis/tabular/validators"
)

// Definition is a pipeline declared in YAML.
type Definition struct {
	Name       string    `yaml:"name"`
	Salt       string    `yaml:"salt,omitempty"`
	Workers    int       `yaml:"workers,omitempty" validate:"gte=0"`
	Identifier string    `yaml:"identifier,omitempty"`
	Steps      []StepDef `yaml:"steps" validate:"required,min=1,dive"`
}

// StepDef holds exactly one step.
type StepDef struct {
	Filter    string        `yaml:"filter,omitempty"`
	Derive    *DeriveDef    `yaml:"derive,omitempty"`
	Aggregate *AggregateDef `yaml:"aggregate,omitempty"`
	Anonymize *AnonymizeDef `yaml:"anonymize,omitempty"`
	Check     *CheckDef     `yaml:"check,omitempty"`
}

// DeriveDef declares a computed column.
type DeriveDef struct {
	Name string `yaml:"name" validate:"required"`
	Expr string `yaml:"expr" validate:"required"`
}

// AggregateDef declares a group-by aggregation. An empty GroupBy produces a
// single group.
type AggregateDef struct {
	GroupBy      []string         `yaml:"group_by,omitempty" validate:"dive,required"`
	Aggregations []AggregationDef `yaml:"aggregations" validate:"required,min=1,dive"`
}

// AggregationDef is one output column of an aggregation.
type AggregationDef struct {
	Op    string `yaml:"op" validate:"required,oneof=count sum mean avg min max"`
	Field string `yaml:"field" validate:"required"`
	As    string `yaml:"as" validate:"required"`
}

// AnonymizeDef declares a field anonymization. Which of the remaining keys
// apply depends on Method.
type AnonymizeDef struct {
	Field  string `yaml:"field" validate:"required"`
	Method string `yaml:"method" validate:"required,oneof=hash mask bucket redact"`

	Length int    `yaml:"length,omitempty" validate:"omitempty,min=8,max=64"`
	Format string `yaml:"format,omitempty"`
	Salt   string `yaml:"salt,omitempty"`

	KeepLast int    `yaml:"keep_last,omitempty" validate:"gte=0"`
	Char     string `yaml:"char,omitempty" validate:"omitempty,len=1"`

	// Bands names a built-in range set ("salary") instead of Ranges.
	Bands  string     `yaml:"bands,omitempty" validate:"omitempty,oneof=salary"`
	Ranges []RangeDef `yaml:"ranges,omitempty" validate:"dive"`

	Replacement string `yaml:"replacement,omitempty"`
}

// RangeDef is one bucket range. A missing bound is unbounded.
type RangeDef struct {
	Low   *float64 `yaml:"low,omitempty"`
	High  *float64 `yaml:"high,omitempty"`
	Label string   `yaml:"label" validate:"required"`
}

// CheckDef declares a data quality check.
type CheckDef struct {
	MinRows     int                     `yaml:"min_rows,omitempty" validate:"gte=0"`
	MaxRows     int                     `yaml:"max_rows,omitempty" validate:"gte=0"`
	MaxNullRate *float64                `yaml:"max_null_rate,omitempty" validate:"omitempty,gte=0,lte=1"`
	Required    []string                `yaml:"required,omitempty" validate:"dive,required"`
	Forbidden   []string                `yaml:"forbidden,omitempty" validate:"dive,required"`
	Fields      map[string]FieldRuleDef `yaml:"fields,omitempty" validate:"dive"`
}

// FieldRuleDef constrains one field's non-null values.
type FieldRuleDef struct {
	Type    string        `yaml:"type,omitempty" validate:"omitempty,oneof=integer float text boolean"`
	Pattern string        `yaml:"pattern,omitempty"`
	Min     *float64      `yaml:"min,omitempty"`
	Max     *float64      `yaml:"max,omitempty"`
	Allowed []interface{} `yaml:"allowed,omitempty"`
}

// Load reads a definition file.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	def, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// Parse decodes and validates a definition. Unknown keys are rejected.
func Parse(r io.Reader) (*Definition, error) {
	var def Definition
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&def); err != nil {
		if err == io.EOF {
			return nil, core.NewError(core.KindParse, "", "empty pipeline definition")
		}
		return nil, core.NewError(core.KindParse, "", "%w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate checks tags and that every step names exactly one kind.
func (d *Definition) Validate() error {
	if err := config.ValidateStruct(d); err != nil {
		return core.NewError(core.KindValue, "", "%w", err)
	}
	for i, s := range d.Steps {
		n := 0
		if s.Filter != "" {
			n++
		}
		if s.Derive != nil {
			n++
		}
		if s.Aggregate != nil {
			n++
		}
		if s.Anonymize != nil {
			n++
		}
		if s.Check != nil {
			n++
		}
		if n != 1 {
			return core.AtStep(core.NewError(core.KindValue, "", "step must have exactly one of filter, derive, aggregate, anonymize, check; got %d", n), i, "")
		}
	}
	return nil
}

// CoreSteps converts the definition into steps, parsing expressions.
func (d *Definition) CoreSteps() ([]core.Step, error) {
	steps := make([]core.Step, 0, len(d.Steps))
	for i, s := range d.Steps {
		step, err := s.build()
		if err != nil {
			return nil, core.AtStep(err, i, s.kind())
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// Pipeline builds a pipeline carrying the definition's salt, workers and
// identifier.
func (d *Definition) Pipeline(logger *zap.Logger) (*tabular.Pipeline, error) {
	steps, err := d.CoreSteps()
	if err != nil {
		return nil, err
	}
	pb := tabular.NewPipeline().
		WithSalt(d.Salt).
		WithWorkers(d.Workers).
		WithIdentifier(d.Identifier).
		WithLogger(logger)
	for _, s := range steps {
		pb.Step(s)
	}
	return pb.Build()
}

func (s StepDef) kind() string {
	switch {
	case s.Filter != "":
		return "filter"
	case s.Derive != nil:
		return "derive"
	case s.Aggregate != nil:
		return "aggregate"
	case s.Anonymize != nil:
		return "anonymize"
	case s.Check != nil:
		return "check"
	}
	return ""
}

func (s StepDef) build() (core.Step, error) {
	switch {
	case s.Filter != "":
		return filter.Where(s.Filter)
	case s.Derive != nil:
		return transform.DeriveExpr(s.Derive.Name, s.Derive.Expr)
	case s.Aggregate != nil:
		step := aggregate.GroupBy(s.Aggregate.GroupBy...)
		for _, a := range s.Aggregate.Aggregations {
			op, err := aggregate.ParseOp(a.Op)
			if err != nil {
				return nil, err
			}
			step.Add(a.Field, op, a.As)
		}
		return step, nil
	case s.Anonymize != nil:
		method, err := s.Anonymize.method()
		if err != nil {
			return nil, err
		}
		return anonymize.Field(s.Anonymize.Field, method), nil
	case s.Check != nil:
		return s.Check.check()
	}
	return nil, core.NewError(core.KindValue, "", "empty step")
}

func (c *CheckDef) check() (*validators.Check, error) {
	options := []validators.CheckOption{
		validators.WithMaxRows(c.MaxRows),
		validators.WithForbiddenFields(c.Forbidden...),
	}
	if c.MaxNullRate != nil {
		options = append(options, validators.WithMaxNullRate(*c.MaxNullRate))
	}
	for field, def := range c.Fields {
		rule := validators.FieldRule{Min: def.Min, Max: def.Max}
		if def.Type != "" {
			t, err := core.ParseFieldType(def.Type)
			if err != nil {
				return nil, core.WithField(err, field)
			}
			rule.Type = t
		}
		if def.Pattern != "" {
			re, err := regexp.Compile(def.Pattern)
			if err != nil {
				return nil, core.NewError(core.KindParse, field, "invalid pattern: %w", err)
			}
			rule.Pattern = re
		}
		for _, v := range def.Allowed {
			nv, err := core.Normalize(v)
			if err != nil {
				return nil, core.WithField(err, field)
			}
			rule.Allowed = append(rule.Allowed, nv)
		}
		options = append(options, validators.WithFieldRule(field, rule))
	}
	return validators.NewCheck(c.MinRows, c.Required, options...), nil
}

func (a *AnonymizeDef) method() (anonymize.Method, error) {
	switch a.Method {
	case "hash":
		return anonymize.Hash{Length: a.Length, Format: a.Format, Salt: a.Salt}, nil
	case "mask":
		var char rune
		for _, r := range a.Char {
			char = r
		}
		return anonymize.Mask{KeepLast: a.KeepLast, Char: char}, nil
	case "bucket":
		if a.Bands == "salary" {
			if len(a.Ranges) > 0 {
				return nil, core.NewError(core.KindValue, a.Field, "bucket takes bands or ranges, not both")
			}
			return anonymize.Bucket{Ranges: anonymize.SalaryBands()}, nil
		}
		ranges := make([]anonymize.Range, 0, len(a.Ranges))
		for _, r := range a.Ranges {
			low, high := math.Inf(-1), math.Inf(1)
			if r.Low != nil {
				low = *r.Low
			}
			if r.High != nil {
				high = *r.High
			}
			ranges = append(ranges, anonymize.Range{Low: low, High: high, Label: r.Label})
		}
		b := anonymize.Bucket{Ranges: ranges}
		if err := b.Validate(); err != nil {
			return nil, core.WithField(err, a.Field)
		}
		return b, nil
	case "redact":
		return anonymize.Redact{Replacement: a.Replacement}, nil
	}
	return nil, core.NewError(core.KindValue, a.Field, "unknown anonymization method %q", a.Method)
}
