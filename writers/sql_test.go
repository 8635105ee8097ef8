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
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/tabular/core"
)

func TestSQLWriterError(t *testing.T) {
	baseErr := fmt.Errorf("connection failed")
	err := &SQLWriterError{Op: "connect", Err: baseErr}
	assert.Equal(t, "sql writer connect: connection failed", err.Error())
	assert.Equal(t, baseErr, err.Unwrap())
}

func TestDialectFor(t *testing.T) {
	for name, want := range map[string]string{"postgresql": "postgres", "sqlite3": "sqlite", "MySQL": "mysql"} {
		d, err := DialectFor(name)
		require.NoError(t, err)
		assert.Equal(t, want, d.Name)
	}
	_, err := DialectFor("oracle")
	assert.Error(t, err)
}

func TestSQLWriter_Statements(t *testing.T) {
	schema := testTable(t).Schema

	pg, err := NewSQLWriter(nil, Postgres, WithTableName("people"), WithPrimaryKey("id"), WithConflictResolution(ConflictUpdate))
	require.NoError(t, err)
	assert.Equal(t,
		`CREATE TABLE IF NOT EXISTS "people" ("id" BIGINT PRIMARY KEY, "name" TEXT, "salary" DOUBLE PRECISION, "active" BOOLEAN)`,
		pg.CreateTableSQL(schema))
	assert.Equal(t,
		`INSERT INTO "people" ("id", "name", "salary", "active") VALUES ($1, $2, $3, $4) ON CONFLICT ("id") DO UPDATE SET "name" = excluded."name", "salary" = excluded."salary", "active" = excluded."active"`,
		pg.InsertSQL(schema))

	my, err := NewSQLWriter(nil, MySQL, WithTableName("people"), WithPrimaryKey("id"), WithConflictResolution(ConflictIgnore))
	require.NoError(t, err)
	assert.Equal(t, "INSERT IGNORE INTO `people` (`id`, `name`, `salary`, `active`) VALUES (?, ?, ?, ?)", my.InsertSQL(schema))

	lite, err := NewSQLWriter(nil, SQLite, WithTableName("people"))
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "people" ("id", "name", "salary", "active") VALUES (?, ?, ?, ?)`, lite.InsertSQL(schema))
}

func TestSQLWriter_Validation(t *testing.T) {
	_, err := NewSQLWriter(nil, Postgres, WithTableName("drop table;"))
	assert.Error(t, err)
	_, err = NewSQLWriter(nil, Postgres, WithTableName("t"), WithConflictResolution(ConflictIgnore))
	assert.Error(t, err)
}

func TestSQLWriter_WriteTablePostgres(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	w, err := NewSQLWriter(db, Postgres, WithTableName("people"))
	require.NoError(t, err)
	table := testTable(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(w.CreateTableSQL(table.Schema))).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(w.InsertRowsSQL(table.Schema, 2))).
		WithArgs(int64(1), "Ann, \"A\"", 55000.5, true, int64(2), nil, 42000.0, nil).
		WillReturnResult(sqlmock.NewResult(2, 2))
	mock.ExpectCommit()

	require.NoError(t, w.WriteTable(context.Background(), table))
	require.NoError(t, mock.ExpectationsWereMet())

	stats := w.Stats()
	assert.Equal(t, int64(2), stats.RecordsWritten)
	assert.Equal(t, int64(1), stats.BatchesWritten)
	assert.Equal(t, int64(1), stats.TransactionCount)
	assert.Equal(t, int64(1), stats.NullValueCounts["active"])
}

func TestSQLWriter_RollbackOnInsertError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	w, err := NewSQLWriter(db, Postgres, WithTableName("people"), WithCreateTable(false), WithSQLBatchSize(1))
	require.NoError(t, err)
	table := testTable(t)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta(w.InsertSQL(table.Schema)))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().WillReturnError(errors.New("constraint violated"))
	mock.ExpectRollback()

	err = w.WriteTable(context.Background(), table)
	var serr *SQLWriterError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "insert", serr.Op)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLWriter_InsertRowsSQL(t *testing.T) {
	schema := core.Schema{{Name: "id", Type: core.TypeInteger}, {Name: "name", Type: core.TypeText}}

	pg, err := NewSQLWriter(nil, Postgres, WithTableName("t"))
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "t" ("id", "name") VALUES ($1, $2), ($3, $4), ($5, $6)`, pg.InsertRowsSQL(schema, 3))

	my, err := NewSQLWriter(nil, MySQL, WithTableName("t"), WithPrimaryKey("id"), WithConflictResolution(ConflictUpdate))
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO `t` (`id`, `name`) VALUES (?, ?), (?, ?) ON DUPLICATE KEY UPDATE `name` = VALUES(`name`)", my.InsertRowsSQL(schema, 2))
}

func TestSQLWriter_RowsPerStatement(t *testing.T) {
	w, err := NewSQLWriter(nil, SQLite, WithTableName("t"), WithSQLBatchSize(100000))
	require.NoError(t, err)
	assert.Equal(t, 32766/4, w.rowsPerStatement(4))

	pg, err := NewSQLWriter(nil, Postgres, WithTableName("t"), WithPrimaryKey("id"), WithConflictResolution(ConflictUpdate))
	require.NoError(t, err)
	assert.Equal(t, 1, pg.rowsPerStatement(4))
}

func TestSQLWriter_MultiRowBatches(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	base := testTable(t)
	rows := append(append([]core.Record(nil), base.Rows...), core.Record{"id": int64(3), "name": "Cy", "salary": 1.0, "active": false})
	table, err := core.NewTable(base.Schema, rows)
	require.NoError(t, err)

	w, err := NewSQLWriter(db, Postgres, WithTableName("people"), WithCreateTable(false), WithSQLBatchSize(2))
	require.NoError(t, err)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta(w.InsertRowsSQL(table.Schema, 2)))
	prep.ExpectExec().
		WithArgs(int64(1), "Ann, \"A\"", 55000.5, true, int64(2), nil, 42000.0, nil).
		WillReturnResult(sqlmock.NewResult(2, 2))
	mock.ExpectExec(regexp.QuoteMeta(w.InsertRowsSQL(table.Schema, 1))).
		WithArgs(int64(3), "Cy", 1.0, false).
		WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectCommit()

	require.NoError(t, w.WriteTable(context.Background(), table))
	require.NoError(t, mock.ExpectationsWereMet())

	stats := w.Stats()
	assert.Equal(t, int64(3), stats.RecordsWritten)
	assert.Equal(t, int64(2), stats.BatchesWritten)
}

func TestSQLWriter_MultiRowSQLite(t *testing.T) {
	db := openSQLite(t)
	base := testTable(t)
	rows := make([]core.Record, 0, 7)
	for i := 0; i < 7; i++ {
		rows = append(rows, core.Record{"id": int64(i + 1), "name": fmt.Sprintf("n%d", i), "salary": float64(i), "active": i%2 == 0})
	}
	table, err := core.NewTable(base.Schema, rows)
	require.NoError(t, err)

	w, err := NewSQLWriter(db, SQLite, WithTableName("people"), WithPrimaryKey("id"), WithSQLBatchSize(3))
	require.NoError(t, err)
	require.NoError(t, w.WriteTable(context.Background(), table))
	assert.Equal(t, int64(3), w.Stats().BatchesWritten)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM people`).Scan(&n))
	assert.Equal(t, 7, n)
}

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(context.Background(), SQLite, filepath.Join(t.TempDir(), "handoff.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func anonymizedCopy(t *testing.T, raw *core.Table) *core.Table {
	t.Helper()
	rows := make([]core.Record, raw.Len())
	for i, r := range raw.Rows {
		rows[i] = core.Record{"id": r["id"], "name": "anon"}
	}
	tbl, err := core.NewTable(core.Schema{{Name: "id", Type: core.TypeInteger}, {Name: "name", Type: core.TypeText}}, rows)
	require.NoError(t, err)
	return tbl
}

func TestHandoff_SQLite(t *testing.T) {
	db := openSQLite(t)
	raw := testTable(t)
	anon := anonymizedCopy(t, raw)

	stats, err := Handoff(context.Background(), db, SQLite, raw, anon, HandoffOptions{
		RawTable: "people_raw", AnonymizedTable: "people_anon", Identifier: "id",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Raw.RecordsWritten)
	assert.Equal(t, int64(2), stats.Anonymized.RecordsWritten)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM people_raw r JOIN people_anon a ON r.id = a.id`).Scan(&n))
	assert.Equal(t, 2, n)

	var name string
	require.NoError(t, db.QueryRow(`SELECT name FROM people_anon WHERE id = 1`).Scan(&name))
	assert.Equal(t, "anon", name)

	// Writing the same keys again without Replace violates the primary key
	// and must leave both tables as they were.
	_, err = Handoff(context.Background(), db, SQLite, raw, anon, HandoffOptions{
		RawTable: "people_raw", AnonymizedTable: "people_anon", Identifier: "id",
	})
	require.Error(t, err)
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM people_raw`).Scan(&n))
	assert.Equal(t, 2, n)

	_, err = Handoff(context.Background(), db, SQLite, raw, anon, HandoffOptions{
		RawTable: "people_raw", AnonymizedTable: "people_anon", Identifier: "id", Replace: true,
	})
	require.NoError(t, err)
}

func TestVerifyHandoff(t *testing.T) {
	raw := testTable(t)
	anon := anonymizedCopy(t, raw)
	require.NoError(t, VerifyHandoff(raw, anon, "id"))

	assert.ErrorContains(t, VerifyHandoff(raw, anon, ""), "required")
	assert.ErrorContains(t, VerifyHandoff(raw, anon, "salary"), "missing from anonymized")

	reordered := anon.Clone()
	reordered.Rows[0], reordered.Rows[1] = reordered.Rows[1], reordered.Rows[0]
	assert.ErrorContains(t, VerifyHandoff(raw, reordered, "id"), "does not match")

	short := anon.Clone()
	short.Rows = short.Rows[:1]
	assert.ErrorContains(t, VerifyHandoff(raw, short, "id"), "row count mismatch")
}

func TestHandoff_NothingWrittenWhenUnverified(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	raw := testTable(t)
	_, err = Handoff(context.Background(), db, Postgres, raw, raw, HandoffOptions{
		RawTable: "a", AnonymizedTable: "b", Identifier: "missing",
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHandoff_MySQLRunsDDLBeforeTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	raw := testTable(t)
	anon := anonymizedCopy(t, raw)
	rawSQL, err := NewSQLWriter(nil, MySQL, WithTableName("people_raw"), WithPrimaryKey("id"))
	require.NoError(t, err)
	anonSQL, err := NewSQLWriter(nil, MySQL, WithTableName("people_anon"), WithPrimaryKey("id"))
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta(rawSQL.CreateTableSQL(raw.Schema))).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(anonSQL.CreateTableSQL(anon.Schema))).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(rawSQL.DeleteRowsSQL())).WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectExec(regexp.QuoteMeta(rawSQL.InsertRowsSQL(raw.Schema, 2))).WillReturnResult(sqlmock.NewResult(2, 2))
	mock.ExpectExec(regexp.QuoteMeta(anonSQL.DeleteRowsSQL())).WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectExec(regexp.QuoteMeta(anonSQL.InsertRowsSQL(anon.Schema, 2))).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err = Handoff(context.Background(), db, MySQL, raw, anon, HandoffOptions{
		RawTable: "people_raw", AnonymizedTable: "people_anon", Identifier: "id", Replace: true,
	})
	var serr *SQLWriterError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "insert", serr.Op)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHandoff_PostgresRunsDDLInsideTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	raw := testTable(t)
	anon := anonymizedCopy(t, raw)
	rawSQL, err := NewSQLWriter(nil, Postgres, WithTableName("people_raw"), WithPrimaryKey("id"))
	require.NoError(t, err)
	anonSQL, err := NewSQLWriter(nil, Postgres, WithTableName("people_anon"), WithPrimaryKey("id"))
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(rawSQL.DropTableSQL())).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(rawSQL.CreateTableSQL(raw.Schema))).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(rawSQL.InsertRowsSQL(raw.Schema, 2))).WillReturnResult(sqlmock.NewResult(2, 2))
	mock.ExpectExec(regexp.QuoteMeta(anonSQL.DropTableSQL())).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(anonSQL.CreateTableSQL(anon.Schema))).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(anonSQL.InsertRowsSQL(anon.Schema, 2))).WillReturnResult(sqlmock.NewResult(2, 2))
	mock.ExpectCommit()

	stats, err := Handoff(context.Background(), db, Postgres, raw, anon, HandoffOptions{
		RawTable: "people_raw", AnonymizedTable: "people_anon", Identifier: "id", Replace: true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Anonymized.RecordsWritten)
	require.NoError(t, mock.ExpectationsWereMet())
}
