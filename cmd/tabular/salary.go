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

package main

import (
	"github.com/spf13/cobra"

	"github.com/aaronlmathis/tabular/presets"
)

type salaryOptions struct {
	input  string
	output string
	format string
	raise  float64
	minAge int64
}

func newSalaryCmd(a *app) *cobra.Command {
	opts := &salaryOptions{}

	cmd := &cobra.Command{
		Use:   "salary",
		Short: "Apply a percentage raise to employee salaries",
		Long: `Salary adds old_salary, new_salary and raise_amount columns to an
employee table and reports total_employees, total_old_salary,
total_new_salary, total_raise_cost and average_raise in the summary.

With --min-age only employees strictly older than that age are kept.`,
		Example: `  tabular salary --input employees.csv --raise 7.5
  tabular salary --input employees.csv --raise 10 --min-age 30 --output raises.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			params := presets.SalaryParams{RaisePercent: opts.raise}
			if cmd.Flags().Changed("min-age") {
				minAge := opts.minAge
				params.MinAge = &minAge
			}
			p, err := presets.SalaryPipeline(params, a.logger)
			if err != nil {
				return err
			}
			in, err := a.readInput(cmd.Context(), opts.input, cmd.InOrStdin())
			if err != nil {
				return err
			}
			res, err := p.Run(cmd.Context(), in)
			if err != nil {
				return err
			}
			return a.writeResult(cmd.Context(), cmd.OutOrStdout(), res, opts.output, opts.format)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.input, "input", "i", "-", "Employee table with age and salary columns")
	f.StringVarP(&opts.output, "output", "o", "", "Output target (default stdout)")
	f.StringVarP(&opts.format, "format", "f", "", "Output format: json, csv, parquet")
	f.Float64Var(&opts.raise, "raise", 10, "Raise percentage")
	f.Int64Var(&opts.minAge, "min-age", 0, "Only include employees older than this age")

	return cmd
}
