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
	"regexp"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/aaronlmathis/tabular/core"
)

// This file implements the SQL sink used to hand pipeline results to a
// database. Rows are written inside a transaction, so a failed write leaves
// the target untouched, and are sent as multi-row INSERT statements of up to
// BatchSize rows each.

// SQLWriterError wraps SQL write errors with context about the operation.
type SQLWriterError struct {
	Op  string // The operation being performed (e.g., "create_table", "insert")
	Err error  // The underlying error
}

// Error returns the error string for SQLWriterError.
func (e *SQLWriterError) Error() string {
	return fmt.Sprintf("sql writer %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for SQLWriterError.
func (e *SQLWriterError) Unwrap() error {
	return e.Err
}

// Dialect captures the SQL differences between supported databases.
type Dialect struct {
	Name   string
	Driver string
	// Types maps field types to column types.
	Types map[core.FieldType]string
	// KeyText is the column type for a text primary key.
	KeyText     string
	placeholder func(i int) string
	quote       func(ident string) string
	// maxParams bounds the bind parameters in one statement.
	maxParams int
	// TransactionalDDL is false when CREATE and DROP commit the enclosing
	// transaction.
	TransactionalDDL bool
}

var (
	// Postgres writes through github.com/lib/pq.
	Postgres = Dialect{
		Name:   "postgres",
		Driver: "postgres",
		Types: map[core.FieldType]string{
			core.TypeInteger: "BIGINT",
			core.TypeFloat:   "DOUBLE PRECISION",
			core.TypeText:    "TEXT",
			core.TypeBoolean: "BOOLEAN",
		},
		KeyText:     "TEXT",
		placeholder: func(i int) string { return fmt.Sprintf("$%d", i) },
		quote:       doubleQuote,
		maxParams:   65535,

		TransactionalDDL: true,
	}

	// SQLite writes through modernc.org/sqlite.
	SQLite = Dialect{
		Name:   "sqlite",
		Driver: "sqlite",
		Types: map[core.FieldType]string{
			core.TypeInteger: "INTEGER",
			core.TypeFloat:   "REAL",
			core.TypeText:    "TEXT",
			core.TypeBoolean: "BOOLEAN",
		},
		KeyText:     "TEXT",
		placeholder: func(int) string { return "?" },
		quote:       doubleQuote,
		maxParams:   32766,

		TransactionalDDL: true,
	}

	// MySQL writes through github.com/go-sql-driver/mysql.
	MySQL = Dialect{
		Name:   "mysql",
		Driver: "mysql",
		Types: map[core.FieldType]string{
			core.TypeInteger: "BIGINT",
			core.TypeFloat:   "DOUBLE",
			core.TypeText:    "TEXT",
			core.TypeBoolean: "BOOLEAN",
		},
		KeyText:     "VARCHAR(255)",
		placeholder: func(int) string { return "?" },
		quote:       func(s string) string { return "`" + strings.ReplaceAll(s, "`", "``") + "`" },
		maxParams:   65535,
	}
)

func doubleQuote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// DialectFor returns the dialect with the given name.
func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "postgres", "postgresql", "pq":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "mysql", "mariadb":
		return MySQL, nil
	}
	return Dialect{}, fmt.Errorf("unsupported sql dialect %q", name)
}

// Quote quotes an identifier.
func (d Dialect) Quote(ident string) string {
	return d.quote(ident)
}

// Open connects to the database and checks the connection.
func Open(ctx context.Context, d Dialect, dsn string) (*sql.DB, error) {
	db, err := sql.Open(d.Driver, dsn)
	if err != nil {
		return nil, &SQLWriterError{Op: "connect", Err: fmt.Errorf("failed to open database: %w", err)}
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &SQLWriterError{Op: "connect", Err: fmt.Errorf("failed to ping database: %w", err)}
	}
	return db, nil
}

// ConflictResolution defines how to handle INSERT conflicts on the primary key.
type ConflictResolution int

const (
	// ConflictError returns an error on conflict.
	ConflictError ConflictResolution = iota
	// ConflictIgnore ignores conflicting rows.
	ConflictIgnore
	// ConflictUpdate overwrites conflicting rows.
	ConflictUpdate
)

// SQLWriterStats holds SQL write statistics.
type SQLWriterStats struct {
	RecordsWritten   int64
	BatchesWritten   int64
	TransactionCount int64
	WriteDuration    time.Duration
	NullValueCounts  map[string]int64
}

// SQLWriterOptions configures the SQL writer.
type SQLWriterOptions struct {
	TableName          string             // Target table name
	PrimaryKey         string             // Column declared PRIMARY KEY when creating
	BatchSize          int                // Rows per INSERT statement
	CreateTable        bool               // Create table if not exists
	DropExisting       bool               // Drop the table before creating it
	DeleteExisting     bool               // Delete all rows before inserting
	ConflictResolution ConflictResolution // Conflict handling strategy on PrimaryKey
}

// SQLWriterOption represents a configuration function for SQLWriterOptions.
type SQLWriterOption func(*SQLWriterOptions)

// WithTableName sets the target table name.
func WithTableName(tableName string) SQLWriterOption {
	return func(opts *SQLWriterOptions) { opts.TableName = tableName }
}

// WithPrimaryKey declares the key column used for table creation and conflicts.
func WithPrimaryKey(column string) SQLWriterOption {
	return func(opts *SQLWriterOptions) { opts.PrimaryKey = column }
}

// WithSQLBatchSize sets how many rows each INSERT statement carries. The
// dialect's bind parameter limit can lower it.
func WithSQLBatchSize(size int) SQLWriterOption {
	return func(opts *SQLWriterOptions) { opts.BatchSize = size }
}

// WithCreateTable creates the table from the table schema when missing.
func WithCreateTable(create bool) SQLWriterOption {
	return func(opts *SQLWriterOptions) { opts.CreateTable = create }
}

// WithDropExisting drops the target table before creating it.
func WithDropExisting(drop bool) SQLWriterOption {
	return func(opts *SQLWriterOptions) { opts.DropExisting = drop }
}

// WithDeleteExisting empties the target table inside the write transaction.
func WithDeleteExisting(del bool) SQLWriterOption {
	return func(opts *SQLWriterOptions) { opts.DeleteExisting = del }
}

// WithConflictResolution sets how conflicts on the primary key are handled.
func WithConflictResolution(resolution ConflictResolution) SQLWriterOption {
	return func(opts *SQLWriterOptions) { opts.ConflictResolution = resolution }
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLWriter writes tables into a database table.
type SQLWriter struct {
	db      *sql.DB
	dialect Dialect
	options SQLWriterOptions
	stats   SQLWriterStats
}

// NewSQLWriter creates a writer for db using dialect.
func NewSQLWriter(db *sql.DB, dialect Dialect, opts ...SQLWriterOption) (*SQLWriter, error) {
	options := SQLWriterOptions{BatchSize: 500, CreateTable: true}
	for _, opt := range opts {
		opt(&options)
	}
	if !identPattern.MatchString(options.TableName) {
		return nil, &SQLWriterError{Op: "validate", Err: fmt.Errorf("invalid table name %q", options.TableName)}
	}
	if options.ConflictResolution != ConflictError && options.PrimaryKey == "" {
		return nil, &SQLWriterError{Op: "validate", Err: fmt.Errorf("conflict resolution requires a primary key")}
	}
	if options.BatchSize <= 0 {
		options.BatchSize = 500
	}
	return &SQLWriter{
		db:      db,
		dialect: dialect,
		options: options,
		stats:   SQLWriterStats{NullValueCounts: make(map[string]int64)},
	}, nil
}

// Stats returns write statistics.
func (w *SQLWriter) Stats() SQLWriterStats {
	return w.stats
}

// WriteTable writes the table in a single transaction. On MySQL the CREATE
// and DROP statements commit on their own.
func (w *SQLWriter) WriteTable(ctx context.Context, table *core.Table) (err error) {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return &SQLWriterError{Op: "begin", Err: err}
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()
	if err = w.WriteTableTx(ctx, tx, table); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return &SQLWriterError{Op: "commit", Err: err}
	}
	w.stats.TransactionCount++
	return nil
}

// WriteTableTx writes the table within a transaction owned by the caller.
func (w *SQLWriter) WriteTableTx(ctx context.Context, tx *sql.Tx, table *core.Table) error {
	start := time.Now()
	for _, f := range table.Schema {
		if !identPattern.MatchString(f.Name) {
			return &SQLWriterError{Op: "validate", Err: fmt.Errorf("invalid column name %q", f.Name)}
		}
	}
	if w.options.PrimaryKey != "" && !table.Schema.Has(w.options.PrimaryKey) {
		return &SQLWriterError{Op: "validate", Err: fmt.Errorf("primary key %q is not a column", w.options.PrimaryKey)}
	}

	if w.options.DropExisting {
		if _, err := tx.ExecContext(ctx, w.DropTableSQL()); err != nil {
			return &SQLWriterError{Op: "drop_table", Err: err}
		}
	}
	if w.options.CreateTable || w.options.DropExisting {
		if _, err := tx.ExecContext(ctx, w.CreateTableSQL(table.Schema)); err != nil {
			return &SQLWriterError{Op: "create_table", Err: err}
		}
	}
	if w.options.DeleteExisting {
		if _, err := tx.ExecContext(ctx, w.DeleteRowsSQL()); err != nil {
			return &SQLWriterError{Op: "delete", Err: err}
		}
	}
	if len(table.Rows) == 0 {
		return nil
	}

	size := w.rowsPerStatement(len(table.Schema))
	var stmt *sql.Stmt
	if len(table.Rows) >= size {
		var err error
		stmt, err = tx.PrepareContext(ctx, w.InsertRowsSQL(table.Schema, size))
		if err != nil {
			return &SQLWriterError{Op: "prepare", Err: err}
		}
		defer stmt.Close()
	}

	values := make([]interface{}, 0, size*len(table.Schema))
	for lo := 0; lo < len(table.Rows); lo += size {
		if err := ctx.Err(); err != nil {
			return &SQLWriterError{Op: "insert", Err: err}
		}
		hi := min(lo+size, len(table.Rows))
		values = values[:0]
		for _, r := range table.Rows[lo:hi] {
			for _, f := range table.Schema {
				v := r[f.Name]
				if v == nil {
					w.stats.NullValueCounts[f.Name]++
				}
				values = append(values, v)
			}
		}
		var err error
		if hi-lo == size {
			_, err = stmt.ExecContext(ctx, values...)
		} else {
			_, err = tx.ExecContext(ctx, w.InsertRowsSQL(table.Schema, hi-lo), values...)
		}
		if err != nil {
			return &SQLWriterError{Op: "insert", Err: fmt.Errorf("rows %d-%d: %w", lo, hi-1, err)}
		}
		w.stats.BatchesWritten++
		w.stats.RecordsWritten += int64(hi - lo)
	}
	w.stats.WriteDuration += time.Since(start)
	return nil
}

// rowsPerStatement is BatchSize capped by the dialect's parameter limit.
func (w *SQLWriter) rowsPerStatement(columns int) int {
	size := w.options.BatchSize
	// Postgres rejects a statement that updates the same row twice.
	if w.options.ConflictResolution == ConflictUpdate && w.dialect.Name == Postgres.Name {
		size = 1
	}
	if w.dialect.maxParams > 0 && columns > 0 {
		size = min(size, w.dialect.maxParams/columns)
	}
	return max(size, 1)
}

// DropTableSQL returns the DROP TABLE statement.
func (w *SQLWriter) DropTableSQL() string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", w.dialect.Quote(w.options.TableName))
}

// DeleteRowsSQL returns the statement emptying the table.
func (w *SQLWriter) DeleteRowsSQL() string {
	return fmt.Sprintf("DELETE FROM %s", w.dialect.Quote(w.options.TableName))
}

// CreateTableSQL returns the CREATE TABLE statement for schema.
func (w *SQLWriter) CreateTableSQL(schema core.Schema) string {
	cols := make([]string, len(schema))
	for i, f := range schema {
		typ := w.dialect.Types[f.Type]
		if f.Name == w.options.PrimaryKey {
			if f.Type == core.TypeText {
				typ = w.dialect.KeyText
			}
			typ += " PRIMARY KEY"
		}
		cols[i] = w.dialect.Quote(f.Name) + " " + typ
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", w.dialect.Quote(w.options.TableName), strings.Join(cols, ", "))
}

// InsertSQL returns the single-row INSERT statement for schema, including
// conflict handling.
func (w *SQLWriter) InsertSQL(schema core.Schema) string {
	return w.InsertRowsSQL(schema, 1)
}

// InsertRowsSQL returns an INSERT statement carrying rows value tuples.
func (w *SQLWriter) InsertRowsSQL(schema core.Schema, rows int) string {
	cols := make([]string, len(schema))
	for i, f := range schema {
		cols[i] = w.dialect.Quote(f.Name)
	}
	tuples := make([]string, rows)
	placeholders := make([]string, len(schema))
	for r := range tuples {
		for i := range schema {
			placeholders[i] = w.dialect.placeholder(r*len(schema) + i + 1)
		}
		tuples[r] = "(" + strings.Join(placeholders, ", ") + ")"
	}
	table := w.dialect.Quote(w.options.TableName)
	base := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", table, strings.Join(cols, ", "), strings.Join(tuples, ", "))

	key := w.dialect.Quote(w.options.PrimaryKey)
	var updates []string
	for _, f := range schema {
		if f.Name == w.options.PrimaryKey {
			continue
		}
		c := w.dialect.Quote(f.Name)
		if w.dialect.Name == MySQL.Name {
			updates = append(updates, fmt.Sprintf("%s = VALUES(%s)", c, c))
		} else {
			updates = append(updates, fmt.Sprintf("%s = excluded.%s", c, c))
		}
	}

	switch w.options.ConflictResolution {
	case ConflictIgnore:
		if w.dialect.Name == MySQL.Name {
			return strings.Replace(base, "INSERT INTO", "INSERT IGNORE INTO", 1)
		}
		return base + fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", key)
	case ConflictUpdate:
		if len(updates) == 0 {
			return w.withIgnore(base, key)
		}
		if w.dialect.Name == MySQL.Name {
			return base + " ON DUPLICATE KEY UPDATE " + strings.Join(updates, ", ")
		}
		return base + fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s", key, strings.Join(updates, ", "))
	}
	return base
}

func (w *SQLWriter) withIgnore(base, key string) string {
	if w.dialect.Name == MySQL.Name {
		return strings.Replace(base, "INSERT INTO", "INSERT IGNORE INTO", 1)
	}
	return base + fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", key)
}
