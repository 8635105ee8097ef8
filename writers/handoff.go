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

package writers

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aaronlmathis/tabular/core"
)

// HandoffOptions names the tables written by Handoff.
type HandoffOptions struct {
	RawTable        string
	AnonymizedTable string
	// Identifier is the column joining raw and anonymized rows. It becomes
	// the primary key of both tables.
	Identifier string
	// Replace drops both tables before writing. On dialects without
	// transactional DDL the tables are emptied instead and keep their columns.
	Replace bool
}

// HandoffStats reports what Handoff wrote.
type HandoffStats struct {
	Raw        SQLWriterStats
	Anonymized SQLWriterStats
}

// Handoff writes the raw table and its anonymized counterpart in one
// transaction. The identifier must exist in both tables and both tables must
// carry the same identifier values in the same order; otherwise nothing is
// written.
//
// MySQL commits implicitly around CREATE and DROP, so on dialects without
// transactional DDL the tables are created before the transaction begins. A
// failed handoff there can leave new empty tables behind but never rows.
func Handoff(ctx context.Context, db *sql.DB, dialect Dialect, raw, anon *core.Table, opts HandoffOptions) (HandoffStats, error) {
	var stats HandoffStats
	if err := VerifyHandoff(raw, anon, opts.Identifier); err != nil {
		return stats, &SQLWriterError{Op: "handoff", Err: err}
	}
	if opts.RawTable == "" || opts.AnonymizedTable == "" || opts.RawTable == opts.AnonymizedTable {
		return stats, &SQLWriterError{Op: "handoff", Err: fmt.Errorf("raw and anonymized table names must be set and distinct")}
	}

	ddl := dialect.TransactionalDDL
	writerFor := func(name string) (*SQLWriter, error) {
		return NewSQLWriter(db, dialect,
			WithTableName(name),
			WithPrimaryKey(opts.Identifier),
			WithCreateTable(ddl),
			WithDropExisting(opts.Replace && ddl),
			WithDeleteExisting(opts.Replace && !ddl),
		)
	}
	rawWriter, err := writerFor(opts.RawTable)
	if err != nil {
		return stats, err
	}
	anonWriter, err := writerFor(opts.AnonymizedTable)
	if err != nil {
		return stats, err
	}

	if !ddl {
		for _, w := range []struct {
			writer *SQLWriter
			table  *core.Table
		}{{rawWriter, raw}, {anonWriter, anon}} {
			if _, err := db.ExecContext(ctx, w.writer.CreateTableSQL(w.table.Schema)); err != nil {
				return stats, &SQLWriterError{Op: "create_table", Err: err}
			}
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return stats, &SQLWriterError{Op: "begin", Err: err}
	}
	if err := rawWriter.WriteTableTx(ctx, tx, raw); err != nil {
		tx.Rollback()
		return stats, err
	}
	if err := anonWriter.WriteTableTx(ctx, tx, anon); err != nil {
		tx.Rollback()
		return stats, err
	}
	if err := tx.Commit(); err != nil {
		return stats, &SQLWriterError{Op: "commit", Err: err}
	}
	return HandoffStats{Raw: rawWriter.Stats(), Anonymized: anonWriter.Stats()}, nil
}

// VerifyHandoff checks that identifier links raw and anonymized rows one to one.
func VerifyHandoff(raw, anon *core.Table, identifier string) error {
	if identifier == "" {
		return fmt.Errorf("identifier column is required")
	}
	rf, ok := raw.Schema.Lookup(identifier)
	if !ok {
		return fmt.Errorf("identifier %q missing from raw table", identifier)
	}
	af, ok := anon.Schema.Lookup(identifier)
	if !ok {
		return fmt.Errorf("identifier %q missing from anonymized table", identifier)
	}
	if rf.Type != af.Type {
		return fmt.Errorf("identifier %q changed type from %s to %s", identifier, rf.Type, af.Type)
	}
	if raw.Len() != anon.Len() {
		return fmt.Errorf("row count mismatch: raw %d, anonymized %d", raw.Len(), anon.Len())
	}
	seen := make(map[string]struct{}, raw.Len())
	for i := range raw.Rows {
		rv, av := raw.Rows[i][identifier], anon.Rows[i][identifier]
		if rv == nil {
			return fmt.Errorf("row %d: identifier is null", i)
		}
		key := core.GroupKey([]interface{}{rv})
		if key != core.GroupKey([]interface{}{av}) {
			return fmt.Errorf("row %d: identifier %v does not match %v", i, rv, av)
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("row %d: duplicate identifier %v", i, rv)
		}
		seen[key] = struct{}{}
	}
	return nil
}
