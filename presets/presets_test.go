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

package presets

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aaronlmathis/tabular/core"
	"github.com/aaronlmathis/tabular/generate"
	"github.com/aaronlmathis/tabular/readers"
	"github.com/aaronlmathis/tabular/writers"
)

const employees = `name,age,department,salary
Alice,25,Engineering,50000
Bob,35,Sales,60000
Carol,45,Engineering,80000
`

func TestSalary_AllEmployees(t *testing.T) {
	p, err := SalaryPipeline(SalaryParams{RaisePercent: 10}, zap.NewNop())
	require.NoError(t, err)

	res, err := p.RunCSV(context.Background(), strings.NewReader(employees))
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "age", "department", "salary", "old_salary", "new_salary", "raise_amount"},
		res.Table.Schema.Names())
	assert.InDelta(t, 55000.0, res.Rows()[0]["new_salary"], 1e-6)
	assert.InDelta(t, 5000.0, res.Rows()[0]["raise_amount"], 1e-6)
	assert.Equal(t, int64(50000), res.Rows()[0]["old_salary"])

	s := res.Summary
	assert.Equal(t, int64(3), s["total_employees"])
	assert.Equal(t, 10.0, s["raise_percent"])
	assert.NotContains(t, s, "min_age_filter")
	assert.InDelta(t, 190000.0, s["total_old_salary"], 1e-6)
	assert.InDelta(t, 209000.0, s["total_new_salary"], 1e-6)
	assert.InDelta(t, 19000.0, s["total_raise_cost"], 1e-6)
	assert.InDelta(t, 19000.0/3, s["average_raise"], 1e-6)
}

func TestSalary_MinAge(t *testing.T) {
	minAge := int64(30)
	p, err := SalaryPipeline(SalaryParams{RaisePercent: 5, MinAge: &minAge}, nil)
	require.NoError(t, err)

	res, err := p.RunCSV(context.Background(), strings.NewReader(employees))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Table.Len())
	assert.Equal(t, int64(30), res.Summary["min_age_filter"])
	assert.Equal(t, int64(2), res.Summary["total_employees"])

	minAge = 99
	p, err = SalaryPipeline(SalaryParams{RaisePercent: 5, MinAge: &minAge}, nil)
	require.NoError(t, err)
	res, err = p.RunCSV(context.Background(), strings.NewReader(employees))
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Summary["average_raise"])
}

func TestSalary_Validation(t *testing.T) {
	_, err := SalarySteps(SalaryParams{RaisePercent: -150})
	assert.ErrorIs(t, err, core.ErrValue)

	p, err := SalaryPipeline(SalaryParams{RaisePercent: 10}, nil)
	require.NoError(t, err)
	_, err = p.RunCSV(context.Background(), strings.NewReader("name,pay\nA,1\n"))
	assert.ErrorIs(t, err, core.ErrSchema)
}

func TestCustomerPipeline(t *testing.T) {
	in, err := generate.Customers(20, 3)
	require.NoError(t, err)

	p, err := CustomerPipeline(CustomerParams{Salt: "s"}, in.Schema, zap.NewNop())
	require.NoError(t, err)
	res, err := p.Run(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, int64(20), res.Summary["records_processed"])
	require.NoError(t, writers.VerifyHandoff(in, res.Table, "id"))

	bands := map[string]bool{"< $50k": true, "$50k-$75k": true, "$75k-$100k": true, "$100k-$125k": true, "> $125k": true}
	for i, r := range res.Rows() {
		orig := in.Rows[i]
		assert.Equal(t, orig["id"], r["id"])
		assert.Equal(t, orig["age"], r["age"])
		assert.True(t, strings.HasPrefix(r["name"].(string), "Customer_"))
		assert.True(t, strings.HasSuffix(r["email"].(string), "@anonymized.local"))
		assert.Equal(t, "REDACTED", r["address"])
		phone := r["phone"].(string)
		assert.Equal(t, orig["phone"].(string)[len(phone)-4:], phone[len(phone)-4:])
		assert.Equal(t, "********", phone[:8])
		assert.True(t, bands[r["salary"].(string)], r["salary"])
	}
}

func TestCustomerSteps_PresentColumnsOnly(t *testing.T) {
	in, err := readers.ParseCSV(strings.NewReader("id,email,ssn\n1,a@b.c,123-45-6789\n"))
	require.NoError(t, err)

	keep := 0
	steps, err := CustomerSteps(CustomerParams{MaskKeepLast: &keep}, in.Schema)
	require.NoError(t, err)
	assert.Len(t, steps, 3)

	p, err := CustomerPipeline(CustomerParams{MaskKeepLast: &keep}, in.Schema, nil)
	require.NoError(t, err)
	res, err := p.Run(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "***********", res.Rows()[0]["ssn"])

	_, err = CustomerSteps(CustomerParams{Identifier: "customer_id"}, in.Schema)
	assert.ErrorIs(t, err, core.ErrSchema)
}
