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

package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var people = Schema{
	{Name: "name", Type: TypeText},
	{Name: "age", Type: TypeInteger},
	{Name: "salary", Type: TypeFloat},
}

func TestNewTable_NormalizesValues(t *testing.T) {
	tbl, err := NewTable(people, []Record{
		{"name": "ana", "age": 30, "salary": 50000},
		{"name": nil, "age": int32(12), "salary": float32(1.5)},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(30), tbl.Rows[0]["age"])
	assert.Equal(t, float64(50000), tbl.Rows[0]["salary"])
	assert.Nil(t, tbl.Rows[1]["name"])
	assert.Equal(t, int64(12), tbl.Rows[1]["age"])
}

func TestNewTable_RejectsInvalidRows(t *testing.T) {
	tests := []struct {
		name string
		rows []Record
		kind ErrorKind
	}{
		{"missing field", []Record{{"name": "a", "age": 1}}, KindSchema},
		{"extra field", []Record{{"name": "a", "age": 1, "salary": 1.0, "x": 1}}, KindSchema},
		{"wrong type", []Record{{"name": 1, "age": 1, "salary": 1.0}}, KindType},
		{"unsupported value", []Record{{"name": "a", "age": []int{1}, "salary": 1.0}}, KindType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTable(people, tt.rows)
			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err))
		})
	}
}

func TestNewTable_DoesNotAliasInput(t *testing.T) {
	rows := []Record{{"name": "a", "age": 1, "salary": 2.0}}
	tbl, err := NewTable(people, rows)
	require.NoError(t, err)
	rows[0]["name"] = "changed"
	assert.Equal(t, "a", tbl.Rows[0]["name"])
}

func TestSchema_ValidateAndWith(t *testing.T) {
	require.NoError(t, people.Validate())

	dup := Schema{{Name: "a", Type: TypeText}, {Name: "a", Type: TypeInteger}}
	assert.True(t, errors.Is(dup.Validate(), ErrSchema))

	replaced := people.With("age", TypeFloat)
	assert.Equal(t, TypeFloat, replaced[1].Type)
	assert.Equal(t, TypeInteger, people[1].Type, "original schema untouched")

	appended := people.With("bonus", TypeFloat)
	assert.Equal(t, []string{"name", "age", "salary", "bonus"}, appended.Names())
}

func TestCompare(t *testing.T) {
	c, ok := Compare(int64(2), 2.5)
	require.True(t, ok)
	assert.Equal(t, -1, c)

	c, ok = Compare("b", "a")
	require.True(t, ok)
	assert.Equal(t, 1, c)

	_, ok = Compare("1", int64(1))
	assert.False(t, ok)
}

func TestGroupKey_NegativeZeroGroupsWithZero(t *testing.T) {
	assert.Equal(t, GroupKey([]interface{}{0.0}), GroupKey([]interface{}{math.Copysign(0, -1)}))
	assert.NotEqual(t, GroupKey([]interface{}{0.0}), GroupKey([]interface{}{int64(0)}))
}

func TestGroupKey_DistinguishesNullFromEmptyText(t *testing.T) {
	assert.NotEqual(t, GroupKey([]interface{}{nil}), GroupKey([]interface{}{""}))
	assert.NotEqual(t, GroupKey([]interface{}{"a", "bc"}), GroupKey([]interface{}{"ab", "c"}))
	assert.Equal(t, GroupKey([]interface{}{int64(1), true}), GroupKey([]interface{}{int64(1), true}))
}

func TestError_FormattingAndMatching(t *testing.T) {
	err := AtStep(NewError(KindArithmetic, "ratio", "division by zero"), 2, "derive")
	assert.Equal(t, `step 2 (derive): field "ratio": arithmetic error: division by zero`, err.Error())
	assert.True(t, errors.Is(err, ErrArithmetic))
	assert.False(t, errors.Is(err, ErrType))

	var pe *Error
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 2, pe.Step)
	assert.Equal(t, "ratio", pe.Field)

	wrapped := AtStep(fmt.Errorf("boom"), 0, "custom")
	assert.Equal(t, KindValue, KindOf(wrapped))
}

func TestMapRows_PreservesOrderInParallel(t *testing.T) {
	rows := make([]Record, 5000)
	for i := range rows {
		rows[i] = Record{"n": int64(i)}
	}
	out, err := MapRows(context.Background(), 8, rows, func(i int, r Record) (Record, bool, error) {
		n := r["n"].(int64)
		return Record{"n": n * 2}, n%3 == 0, nil
	})
	require.NoError(t, err)
	require.Len(t, out, 1667)
	for i, r := range out {
		assert.Equal(t, int64(i*6), r["n"])
	}
}

func TestMapRows_ReturnsLowestIndexError(t *testing.T) {
	rows := make([]Record, 4000)
	for i := range rows {
		rows[i] = Record{}
	}
	_, err := MapRows(context.Background(), 4, rows, func(i int, r Record) (Record, bool, error) {
		if i == 700 || i == 3900 {
			return nil, false, fmt.Errorf("row %d", i)
		}
		return r, true, nil
	})
	require.Error(t, err)
	assert.Equal(t, "row 700", err.Error())
}

func TestFingerprint(t *testing.T) {
	a, err := NewTable(people, []Record{{"name": "a", "age": 1, "salary": 2.0}})
	require.NoError(t, err)
	b := a.Clone()
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.Len(t, a.FingerprintHex(), 16)

	b.Rows[0]["age"] = int64(2)
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}
