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
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/tabular/core"
)

// Mock writer for testing
type mockWriter struct {
	*strings.Builder
	failWrite bool
	mu        sync.Mutex
}

func (m *mockWriter) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite {
		return 0, io.ErrUnexpectedEOF
	}
	return m.Builder.Write(p)
}

func (m *mockWriter) String() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Builder.String()
}

func newMockWriter() *mockWriter {
	return &mockWriter{Builder: &strings.Builder{}}
}

func testTable(t *testing.T) *core.Table {
	t.Helper()
	tbl, err := core.NewTable(core.Schema{
		{Name: "id", Type: core.TypeInteger},
		{Name: "name", Type: core.TypeText},
		{Name: "salary", Type: core.TypeFloat},
		{Name: "active", Type: core.TypeBoolean},
	}, []core.Record{
		{"id": 1, "name": "Ann, \"A\"", "salary": 55000.5, "active": true},
		{"id": 2, "name": nil, "salary": 42000.0, "active": nil},
	})
	require.NoError(t, err)
	return tbl
}

func TestJSONWriter_WriteResult(t *testing.T) {
	w := newMockWriter()
	summary := map[string]interface{}{"output_rows": 2, "input_rows": 3}
	require.NoError(t, NewJSONWriter(w).WriteResult(context.Background(), testTable(t), summary))

	want := `{"rows":[{"id":1,"name":"Ann, \"A\"","salary":55000.5,"active":true},` +
		`{"id":2,"name":null,"salary":42000,"active":null}],` +
		`"summary":{"input_rows":3,"output_rows":2}}` + "\n"
	assert.Equal(t, want, w.String())
}

func TestJSONWriter_EmptyResult(t *testing.T) {
	data, err := MarshalResult(&core.Table{Schema: core.Schema{{Name: "a", Type: core.TypeText}}}, nil)
	require.NoError(t, err)
	assert.Equal(t, `{"rows":[],"summary":{}}`, string(data))
}

func TestJSONWriter_LinesAndIndent(t *testing.T) {
	w := newMockWriter()
	require.NoError(t, NewJSONWriter(w, WithJSONLines(true)).WriteTable(context.Background(), testTable(t)))
	lines := strings.Split(strings.TrimSpace(w.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], `{"id":2,`))

	w = newMockWriter()
	require.NoError(t, NewJSONWriter(w, WithJSONIndent("  ")).WriteTable(context.Background(), testTable(t)))
	assert.Contains(t, w.String(), "\n    \"id\": 1,")
}

func TestJSONWriter_WriteError(t *testing.T) {
	w := newMockWriter()
	w.failWrite = true
	err := NewJSONWriter(w).WriteResult(context.Background(), testTable(t), nil)
	var jerr *JSONWriterError
	require.True(t, errors.As(err, &jerr))
	assert.Equal(t, "write_result", jerr.Op)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
