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

// Package presets provides ready-made pipelines for common jobs.
package presets

import (
	"context"

	"go.uber.org/zap"

	"github.com/aaronlmathis/tabular"
	"github.com/aaronlmathis/tabular/config"
	"github.com/aaronlmathis/tabular/core"
	"github.com/aaronlmathis/tabular/filter"
	"github.com/aaronlmathis/tabular/transform"
)

// SalaryParams configures the salary raise calculator.
type SalaryParams struct {
	// RaisePercent is the raise, e.g. 10 for 10%.
	RaisePercent float64 `validate:"gte=-100"`
	// MinAge keeps only employees strictly older than this age when set.
	MinAge *int64 `validate:"omitempty,gte=0"`
}

// SalarySteps returns the calculator steps: an optional age filter, then
// old_salary, new_salary and raise_amount columns, then the summary metrics.
func SalarySteps(params SalaryParams) ([]core.Step, error) {
	if err := config.ValidateStruct(params); err != nil {
		return nil, core.NewError(core.KindValue, "", "%w", err)
	}

	steps := make([]core.Step, 0, 5)
	if params.MinAge != nil {
		steps = append(steps, filter.GreaterThan("age", float64(*params.MinAge)))
	}
	steps = append(steps,
		transform.Copy("salary", "old_salary"),
		transform.Scale("salary", 1+params.RaisePercent/100, "new_salary"),
		transform.Scale("salary", params.RaisePercent/100, "raise_amount"),
		summaryStep{kind: "salary_summary", summarize: params.summarize},
	)
	return steps, nil
}

// SalaryPipeline builds a pipeline running SalarySteps.
func SalaryPipeline(params SalaryParams, logger *zap.Logger) (*tabular.Pipeline, error) {
	steps, err := SalarySteps(params)
	if err != nil {
		return nil, err
	}
	pb := tabular.NewPipeline().WithLogger(logger)
	for _, s := range steps {
		pb.Step(s)
	}
	return pb.Build()
}

func (p SalaryParams) summarize(out *core.Table, summary map[string]interface{}) {
	totalOld := sumColumn(out, "old_salary")
	totalNew := sumColumn(out, "new_salary")
	totalRaise := totalNew - totalOld

	summary["total_employees"] = int64(out.Len())
	summary["raise_percent"] = p.RaisePercent
	if p.MinAge != nil {
		summary["min_age_filter"] = *p.MinAge
	}
	summary["total_old_salary"] = totalOld
	summary["total_new_salary"] = totalNew
	summary["total_raise_cost"] = totalRaise
	average := 0.0
	if out.Len() > 0 {
		average = totalRaise / float64(out.Len())
	}
	summary["average_raise"] = average
}

func sumColumn(t *core.Table, name string) float64 {
	var total float64
	for _, r := range t.Rows {
		if f, ok := core.ToFloat64(r[name]); ok {
			total += f
		}
	}
	return total
}

// summaryStep passes its input through and contributes summary metrics.
type summaryStep struct {
	kind      string
	summarize func(out *core.Table, summary map[string]interface{})
}

func (s summaryStep) Kind() string { return s.kind }

func (s summaryStep) Apply(ctx context.Context, _ core.Env, in *core.Table) (*core.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return in, nil
}

func (s summaryStep) Summarize(out *core.Table, summary map[string]interface{}) {
	s.summarize(out, summary)
}
