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
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aaronlmathis/tabular/core"
	"github.com/aaronlmathis/tabular/presets"
	"github.com/aaronlmathis/tabular/readers"
	"github.com/aaronlmathis/tabular/writers"
)

type anonymizeOptions struct {
	input        string
	output       string
	format       string
	driver       string
	dsn          string
	sourceTable  string
	targetTable  string
	rawTable     string
	salt         string
	maskKeepLast int
	identifier   string
}

// anonymizeStatus is printed after a database run.
type anonymizeStatus struct {
	Status           string `json:"status"`
	RecordsProcessed int    `json:"records_processed"`
	SourceTable      string `json:"source_table,omitempty"`
	RawTable         string `json:"raw_table,omitempty"`
	TargetTable      string `json:"target_table"`
	RunID            string `json:"run_id"`
}

func newAnonymizeCmd(a *app) *cobra.Command {
	opts := &anonymizeOptions{}

	cmd := &cobra.Command{
		Use:   "anonymize",
		Short: "Anonymize customer records",
		Long: `Anonymize hashes names and emails, masks phone numbers and SSNs, redacts
addresses and replaces salaries with bands. Only columns present in the input
are touched; the identifier column is kept unchanged.

With --dsn the customers are read from --source-table and written to
--target-table. With --raw-table the raw input is written alongside the
anonymized table in one transaction. Without --dsn the input is read from
--input and the anonymized table is written to --output.`,
		Example: `  tabular anonymize --input customers.csv --salt s3cret --output anon.csv
  tabular anonymize --dsn "$DATABASE_URL" --source-table customers --target-table customers_anonymized`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.anonymize(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.input, "input", "i", "-", "Customer table input when --dsn is not set")
	f.StringVarP(&opts.output, "output", "o", "", "Output target when --dsn is not set (default stdout)")
	f.StringVarP(&opts.format, "format", "f", "", "Output format: json, csv, parquet")
	f.StringVar(&opts.driver, "driver", "", "Database driver: postgres, mysql, sqlite")
	f.StringVar(&opts.dsn, "dsn", "", "Database DSN")
	f.StringVar(&opts.sourceTable, "source-table", "customers", "Table holding raw customers")
	f.StringVar(&opts.targetTable, "target-table", "customers_anonymized", "Table receiving anonymized customers")
	f.StringVar(&opts.rawTable, "raw-table", "", "Also write the raw input to this table in the same transaction")
	f.StringVar(&opts.salt, "salt", "", "Hash salt (default TABULAR_SALT)")
	f.IntVar(&opts.maskKeepLast, "mask-keep-last", presets.DefaultMaskKeepLast, "Trailing phone and SSN characters to keep")
	f.StringVar(&opts.identifier, "identifier", "id", "Column preserved unchanged")

	return cmd
}

func (a *app) anonymize(cmd *cobra.Command, opts *anonymizeOptions) error {
	ctx := cmd.Context()

	salt := opts.salt
	if salt == "" {
		salt = a.cfg.Pipeline.Salt
	}
	keepLast := opts.maskKeepLast
	params := presets.CustomerParams{
		Salt:         salt,
		MaskKeepLast: &keepLast,
		Identifier:   opts.identifier,
		Workers:      a.cfg.Pipeline.Workers,
	}

	if opts.dsn == "" {
		in, err := a.readInput(ctx, opts.input, cmd.InOrStdin())
		if err != nil {
			return err
		}
		p, err := presets.CustomerPipeline(params, in.Schema, a.logger)
		if err != nil {
			return err
		}
		res, err := p.Run(ctx, in)
		if err != nil {
			return err
		}
		return a.writeResult(ctx, cmd.OutOrStdout(), res, opts.output, opts.format)
	}

	db, dialect, err := a.openDB(ctx, opts.driver, opts.dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	in, err := readers.NewSQLReader(db, readers.WithQueryTimeout(a.cfg.Database.QueryTimeout)).
		ReadTable(ctx, "SELECT * FROM "+dialect.Quote(opts.sourceTable))
	if err != nil {
		return err
	}
	a.logger.Info("customers loaded", zap.String("table", opts.sourceTable), zap.Int("rows", in.Len()))

	p, err := presets.CustomerPipeline(params, in.Schema, a.logger)
	if err != nil {
		return err
	}
	res, err := p.Run(ctx, in)
	if err != nil {
		return err
	}

	if opts.rawTable != "" {
		_, err = writers.Handoff(ctx, db, dialect, in, res.Table, writers.HandoffOptions{
			RawTable:        opts.rawTable,
			AnonymizedTable: opts.targetTable,
			Identifier:      params.Identifier,
			Replace:         true,
		})
	} else {
		err = writeAnonymized(cmd, db, dialect, in, res.Table, opts)
	}
	if err != nil {
		return err
	}

	status := anonymizeStatus{
		Status:           "success",
		RecordsProcessed: res.Table.Len(),
		SourceTable:      opts.sourceTable,
		RawTable:         opts.rawTable,
		TargetTable:      opts.targetTable,
		RunID:            res.RunID,
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(status)
}

func writeAnonymized(cmd *cobra.Command, db *sql.DB, dialect writers.Dialect, raw, anon *core.Table, opts *anonymizeOptions) error {
	if opts.sourceTable == opts.targetTable {
		return fmt.Errorf("target table %q must differ from the source table", opts.targetTable)
	}
	if err := writers.VerifyHandoff(raw, anon, opts.identifier); err != nil {
		return err
	}
	w, err := writers.NewSQLWriter(db, dialect,
		writers.WithTableName(opts.targetTable),
		writers.WithPrimaryKey(opts.identifier),
		writers.WithDropExisting(true),
	)
	if err != nil {
		return err
	}
	return w.WriteTable(cmd.Context(), anon)
}
