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
	"go.uber.org/zap"

	"github.com/aaronlmathis/tabular"
	"github.com/aaronlmathis/tabular/anonymize"
	"github.com/aaronlmathis/tabular/config"
	"github.com/aaronlmathis/tabular/core"
)

// DefaultMaskKeepLast is the number of trailing phone and SSN characters kept.
const DefaultMaskKeepLast = 4

// CustomerParams configures customer anonymization.
type CustomerParams struct {
	Salt string
	// MaskKeepLast is the number of trailing characters left on phone and
	// ssn. Nil means DefaultMaskKeepLast.
	MaskKeepLast *int `validate:"omitempty,gte=0"`
	// Identifier is the preserved record key. Empty means "id".
	Identifier string
	Workers    int `validate:"gte=0"`
}

func (p CustomerParams) keepLast() int {
	if p.MaskKeepLast == nil {
		return DefaultMaskKeepLast
	}
	return *p.MaskKeepLast
}

func (p CustomerParams) identifier() string {
	if p.Identifier == "" {
		return "id"
	}
	return p.Identifier
}

// CustomerSteps returns anonymization steps for the customer columns present
// in schema:
//
//	name    -> Customer_<hash>
//	email   -> <hash>@anonymized.local
//	phone   -> masked
//	address -> REDACTED
//	ssn     -> masked
//	salary  -> salary band
//
// The identifier column is preserved and must be present.
func CustomerSteps(params CustomerParams, schema core.Schema) ([]core.Step, error) {
	if err := config.ValidateStruct(params); err != nil {
		return nil, core.NewError(core.KindValue, "", "%w", err)
	}
	if !schema.Has(params.identifier()) {
		return nil, core.NewError(core.KindSchema, params.identifier(), "identifier missing from input")
	}

	candidates := []struct {
		field  string
		method anonymize.Method
	}{
		{"name", anonymize.Hash{Format: "Customer_" + anonymize.HashPlaceholder}},
		{"email", anonymize.Hash{Format: anonymize.HashPlaceholder + "@anonymized.local"}},
		{"phone", anonymize.Mask{KeepLast: params.keepLast()}},
		{"address", anonymize.Redact{}},
		{"ssn", anonymize.Mask{KeepLast: params.keepLast()}},
		{"salary", anonymize.Bucket{Ranges: anonymize.SalaryBands()}},
	}

	steps := make([]core.Step, 0, len(candidates)+1)
	for _, c := range candidates {
		if c.field == params.identifier() || !schema.Has(c.field) {
			continue
		}
		steps = append(steps, anonymize.Field(c.field, c.method))
	}
	steps = append(steps, summaryStep{kind: "customer_summary", summarize: func(out *core.Table, summary map[string]interface{}) {
		summary["records_processed"] = int64(out.Len())
	}})
	return steps, nil
}

// CustomerPipeline builds the anonymization pipeline for a table with schema.
func CustomerPipeline(params CustomerParams, schema core.Schema, logger *zap.Logger) (*tabular.Pipeline, error) {
	steps, err := CustomerSteps(params, schema)
	if err != nil {
		return nil, err
	}
	pb := tabular.NewPipeline().
		WithSalt(params.Salt).
		WithWorkers(params.Workers).
		WithIdentifier(params.identifier()).
		WithLogger(logger)
	for _, s := range steps {
		pb.Step(s)
	}
	return pb.Build()
}
