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
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aaronlmathis/tabular/core"
	"github.com/aaronlmathis/tabular/definition"
	"github.com/aaronlmathis/tabular/readers"
	"github.com/aaronlmathis/tabular/types"
	"github.com/aaronlmathis/tabular/writers"
)

type runOptions struct {
	pipeline string
	input    string
	output   string
	format   string

	driver    string
	dsn       string
	query     string
	sinkTable string
}

func newRunCmd(a *app) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a YAML pipeline definition",
		Long: `Run loads a pipeline definition and applies it to one input table.

The input is read from --input (a path, "-", s3://, http(s):// or
mongo://database/collection) or, with --query, from the configured database.
The result is written to --output or to stdout as {"rows","summary"} JSON.
With --sink-table the result rows are written to that database table.`,
		Example: `  tabular run --pipeline payroll.yaml --input staff.csv
  tabular run --pipeline payroll.yaml --input s3://bucket/staff.csv --output out.parquet
  tabular run --pipeline payroll.yaml --dsn "$DATABASE_URL" --query "SELECT * FROM staff" --sink-table payroll`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runDefinition(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.pipeline, "pipeline", "p", "", "Path to the pipeline definition (required)")
	f.StringVarP(&opts.input, "input", "i", "-", "Input source")
	f.StringVarP(&opts.output, "output", "o", "", "Output target (default stdout)")
	f.StringVarP(&opts.format, "format", "f", "", "Output format: json, csv, parquet (default from --output suffix)")
	f.StringVar(&opts.driver, "driver", "", "Database driver: postgres, mysql, sqlite")
	f.StringVar(&opts.dsn, "dsn", "", "Database DSN (default TABULAR_DATABASE_URL)")
	f.StringVar(&opts.query, "query", "", "Read the input table with this SQL query")
	f.StringVar(&opts.sinkTable, "sink-table", "", "Write result rows to this database table")
	_ = cmd.MarkFlagRequired("pipeline")

	return cmd
}

func (a *app) runDefinition(cmd *cobra.Command, opts *runOptions) error {
	ctx := cmd.Context()

	def, err := definition.Load(opts.pipeline)
	if err != nil {
		return err
	}
	if def.Salt == "" {
		def.Salt = a.cfg.Pipeline.Salt
	}
	if def.Workers == 0 {
		def.Workers = a.cfg.Pipeline.Workers
	}
	p, err := def.Pipeline(a.logger.With(zap.String("pipeline", def.Name)))
	if err != nil {
		return err
	}

	var in *core.Table
	if opts.query != "" {
		db, _, err := a.openDB(ctx, opts.driver, opts.dsn)
		if err != nil {
			return err
		}
		defer db.Close()
		in, err = readers.NewSQLReader(db, readers.WithQueryTimeout(a.cfg.Database.QueryTimeout)).
			ReadTable(ctx, opts.query)
		if err != nil {
			return err
		}
	} else {
		in, err = a.readInput(ctx, opts.input, cmd.InOrStdin())
		if err != nil {
			return err
		}
	}

	res, err := p.Run(ctx, in)
	if err != nil {
		return fmt.Errorf("pipeline %q: %w", def.Name, err)
	}

	if opts.sinkTable != "" {
		db, dialect, err := a.openDB(ctx, opts.driver, opts.dsn)
		if err != nil {
			return err
		}
		defer db.Close()
		sinkOpts := []writers.SQLWriterOption{
			writers.WithTableName(opts.sinkTable),
			writers.WithDropExisting(true),
		}
		if def.Identifier != "" {
			sinkOpts = append(sinkOpts, writers.WithPrimaryKey(def.Identifier))
		}
		loc := types.SQLLocation{DB: db, Dialect: dialect, Options: sinkOpts}
		if err := loc.Write(ctx, types.FormatSQL, res); err != nil {
			return err
		}
		a.logger.Info("result written to database", zap.String("table", opts.sinkTable),
			zap.Int("rows", res.Table.Len()))
		if opts.output == "" {
			return nil
		}
	}

	return a.writeResult(ctx, cmd.OutOrStdout(), res, opts.output, opts.format)
}
