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

// Package validators provides data quality checks that run as pipeline steps.
//
// A Check passes its input through unchanged when every rule holds and fails
// the run otherwise. Rules are evaluated against the table schema first, so a
// misspelled field fails before any row is inspected.
package validators

import (
	"context"
	"regexp"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/aaronlmathis/tabular/core"
)

// Check is a pass-through step asserting data quality.
type Check struct {
	MinRows int // minimum number of rows required
	MaxRows int // maximum number of rows allowed (0 = unlimited)
	// MaxNullRate bounds the share of null values per column (0.0-1.0).
	// Nil disables the check.
	MaxNullRate     *float64
	RequiredFields  []string // fields that must be in the schema
	ForbiddenFields []string // fields that must not be in the schema
	Fields          map[string]FieldRule
}

// FieldRule constrains the non-null values of one field.
type FieldRule struct {
	Type    core.FieldType // expected declared type; zero accepts any
	Pattern *regexp.Regexp // text values must match
	Min     *float64       // numeric values must be >= Min
	Max     *float64       // numeric values must be <= Max
	Allowed []interface{}  // whitelist compared with core.Compare
}

// CheckOption configures a Check.
type CheckOption func(*Check)

// WithMaxRows sets the maximum row count.
func WithMaxRows(max int) CheckOption {
	return func(c *Check) {
		c.MaxRows = max
	}
}

// WithMaxNullRate sets the maximum null value rate.
func WithMaxNullRate(rate float64) CheckOption {
	return func(c *Check) {
		c.MaxNullRate = &rate
	}
}

// WithForbiddenFields sets fields that must not be present.
func WithForbiddenFields(fields ...string) CheckOption {
	return func(c *Check) {
		c.ForbiddenFields = fields
	}
}

// WithFieldRule adds a rule for one field.
func WithFieldRule(field string, rule FieldRule) CheckOption {
	return func(c *Check) {
		if c.Fields == nil {
			c.Fields = make(map[string]FieldRule)
		}
		c.Fields[field] = rule
	}
}

// NewCheck creates a check requiring minRows rows and the given fields.
func NewCheck(minRows int, requiredFields []string, options ...CheckOption) *Check {
	c := &Check{
		MinRows:        minRows,
		RequiredFields: requiredFields,
		Fields:         make(map[string]FieldRule),
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// Kind implements core.Step.
func (c *Check) Kind() string { return "check" }

// Apply implements core.Step. The returned table is the input.
func (c *Check) Apply(ctx context.Context, env core.Env, in *core.Table) (*core.Table, error) {
	env = env.WithDefaults()
	start := time.Now()

	if err := c.validateFieldPresence(in.Schema); err != nil {
		return nil, err
	}

	n := in.Len()
	if n < c.MinRows {
		return nil, core.NewError(core.KindValue, "", "insufficient rows: got %d, need at least %d", n, c.MinRows)
	}
	if c.MaxRows > 0 && n > c.MaxRows {
		return nil, core.NewError(core.KindValue, "", "too many rows: got %d, maximum allowed %d", n, c.MaxRows)
	}

	if err := c.validateNullRates(in); err != nil {
		return nil, err
	}
	if err := c.validateFieldValues(ctx, in); err != nil {
		return nil, err
	}

	env.Logger.Debug("quality check passed",
		zap.Int("rows", n),
		zap.Int("field_rules", len(c.Fields)),
		zap.Duration("duration", time.Since(start)))
	return in, nil
}

// Summarize implements core.Summarizer.
func (c *Check) Summarize(out *core.Table, summary map[string]interface{}) {
	checked, _ := summary["rows_checked"].(int64)
	summary["rows_checked"] = checked + int64(out.Len())
}

func (c *Check) validateFieldPresence(schema core.Schema) error {
	for _, field := range c.RequiredFields {
		if !schema.Has(field) {
			return core.NewError(core.KindSchema, field, "missing required field")
		}
	}
	for _, field := range c.ForbiddenFields {
		if schema.Has(field) {
			return core.NewError(core.KindSchema, field, "forbidden field present")
		}
	}
	for _, field := range c.ruleFields() {
		f, ok := schema.Lookup(field)
		if !ok {
			return core.NewError(core.KindSchema, field, "unknown field in quality rule")
		}
		if want := c.Fields[field].Type; want != 0 && f.Type != want {
			return core.NewError(core.KindType, field, "field has type %s, expected %s", f.Type, want)
		}
	}
	return nil
}

func (c *Check) validateNullRates(in *core.Table) error {
	if c.MaxNullRate == nil || in.Len() == 0 {
		return nil
	}
	for _, f := range in.Schema {
		nulls := 0
		for _, r := range in.Rows {
			if r[f.Name] == nil {
				nulls++
			}
		}
		rate := float64(nulls) / float64(in.Len())
		if rate > *c.MaxNullRate {
			return core.NewError(core.KindValue, f.Name, "null rate %.2f exceeds maximum %.2f", rate, *c.MaxNullRate)
		}
	}
	return nil
}

func (c *Check) validateFieldValues(ctx context.Context, in *core.Table) error {
	fields := c.ruleFields()
	if len(fields) == 0 {
		return nil
	}
	for i, r := range in.Rows {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		for _, field := range fields {
			if err := c.Fields[field].check(field, i, r[field]); err != nil {
				return err
			}
		}
	}
	return nil
}

// ruleFields returns the ruled field names in a stable order.
func (c *Check) ruleFields() []string {
	fields := make([]string, 0, len(c.Fields))
	for f := range c.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

func (rule FieldRule) check(field string, row int, value interface{}) error {
	if value == nil {
		return nil
	}
	if rule.Pattern != nil {
		if s, ok := value.(string); ok && !rule.Pattern.MatchString(s) {
			return core.NewError(core.KindValue, field, "row %d: value %q does not match pattern %s", row, s, rule.Pattern)
		}
	}
	if rule.Min != nil || rule.Max != nil {
		if v, ok := core.ToFloat64(value); ok {
			if rule.Min != nil && v < *rule.Min {
				return core.NewError(core.KindRange, field, "row %d: value %v below minimum %v", row, value, *rule.Min)
			}
			if rule.Max != nil && v > *rule.Max {
				return core.NewError(core.KindRange, field, "row %d: value %v above maximum %v", row, value, *rule.Max)
			}
		}
	}
	if len(rule.Allowed) > 0 {
		for _, allowed := range rule.Allowed {
			if cmp, ok := core.Compare(value, allowed); ok && cmp == 0 {
				return nil
			}
		}
		return core.NewError(core.KindValue, field, "row %d: value %v not in allowed values", row, value)
	}
	return nil
}
