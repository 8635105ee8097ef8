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

// Package generate produces synthetic customer tables for demos and tests.
package generate

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/aaronlmathis/tabular/core"
)

var (
	firstNames = []string{
		"Ada", "Ben", "Chloe", "Dmitri", "Elena", "Farah", "Gus", "Hana", "Ivan", "Jade",
		"Kofi", "Lena", "Mateo", "Nia", "Omar", "Priya", "Quinn", "Rosa", "Sven", "Tara",
	}
	lastNames = []string{
		"Adams", "Brooks", "Chen", "Diaz", "Evans", "Fischer", "Garcia", "Hughes", "Ito", "Jensen",
		"Khan", "Lopez", "Moreau", "Novak", "Okafor", "Patel", "Rossi", "Silva", "Tanaka", "Weber",
	}
	streets = []string{
		"Maple Ave", "Oak St", "Pine Rd", "Cedar Ln", "Elm Dr", "Birch Way", "Harbor Blvd", "Mill Rd",
	}
	cities = []string{
		"Springfield", "Riverton", "Lakeside", "Fairview", "Georgetown", "Ashland", "Clinton", "Dayton",
	}
	departments = []string{"Engineering", "Sales", "Marketing", "Finance", "Support", "Operations"}
	mailDomains = []string{"example.com", "example.org", "example.net"}
)

// CustomerSchema is the schema of generated customer tables.
var CustomerSchema = core.Schema{
	{Name: "id", Type: core.TypeInteger},
	{Name: "name", Type: core.TypeText},
	{Name: "email", Type: core.TypeText},
	{Name: "phone", Type: core.TypeText},
	{Name: "address", Type: core.TypeText},
	{Name: "age", Type: core.TypeInteger},
	{Name: "department", Type: core.TypeText},
	{Name: "salary", Type: core.TypeInteger},
	{Name: "ssn", Type: core.TypeText},
}

// Customers returns n synthetic customers. The same n and seed always give
// the same table. Ages fall in 25..64 and salaries in 30000..149999.
func Customers(n int, seed int64) (*core.Table, error) {
	if n < 0 {
		return nil, core.NewError(core.KindValue, "", "record count must be >= 0, got %d", n)
	}
	rng := rand.New(rand.NewPCG(uint64(seed), 0x7461627570))

	rows := make([]core.Record, 0, n)
	for i := 0; i < n; i++ {
		first := pick(rng, firstNames)
		last := pick(rng, lastNames)
		rows = append(rows, core.Record{
			"id":   int64(i + 1),
			"name": first + " " + last,
			"email": fmt.Sprintf("%s.%s%d@%s",
				strings.ToLower(first), strings.ToLower(last), rng.IntN(100), pick(rng, mailDomains)),
			"phone": fmt.Sprintf("%03d-%03d-%04d",
				200+rng.IntN(800), rng.IntN(1000), rng.IntN(10000)),
			"address":    fmt.Sprintf("%d %s, %s", 1+rng.IntN(9999), pick(rng, streets), pick(rng, cities)),
			"age":        int64(25 + rng.IntN(40)),
			"department": pick(rng, departments),
			"salary":     int64(30000 + rng.IntN(120000)),
			"ssn": fmt.Sprintf("%03d-%02d-%04d",
				100+rng.IntN(899), 10+rng.IntN(89), 1000+rng.IntN(8999)),
		})
	}
	return core.NewTable(CustomerSchema, rows)
}

func pick(rng *rand.Rand, values []string) string {
	return values[rng.IntN(len(values))]
}
