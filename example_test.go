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

package tabular_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/aaronlmathis/tabular"
	"github.com/aaronlmathis/tabular/aggregate"
	"github.com/aaronlmathis/tabular/anonymize"
	"github.com/aaronlmathis/tabular/readers"
)

func Example() {
	in, err := readers.ParseCSV(strings.NewReader("name,age,salary\nAlice,25,50000\nBob,17,30000\n"))
	if err != nil {
		log.Fatal(err)
	}

	p, err := tabular.NewPipeline().
		FilterExpr("age > 18").
		Build()
	if err != nil {
		log.Fatal(err)
	}

	res, err := p.Run(context.Background(), in)
	if err != nil {
		log.Fatal(err)
	}
	out, err := json.Marshal(res)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(string(out))
	// Output:
	// {"rows":[{"name":"Alice","age":25,"salary":50000}],"summary":{"input_rows":2,"output_rows":1}}
}

func ExamplePipelineBuilder_Aggregate() {
	in, err := readers.ParseCSV(strings.NewReader("dept,amount\neng,10\nops,5\neng,20\n"))
	if err != nil {
		log.Fatal(err)
	}

	p, err := tabular.NewPipeline().
		Aggregate(aggregate.GroupBy("dept").Sum("amount", "total").Count("*", "n")).
		Build()
	if err != nil {
		log.Fatal(err)
	}

	res, err := p.Run(context.Background(), in)
	if err != nil {
		log.Fatal(err)
	}
	out, _ := json.Marshal(res)
	fmt.Println(string(out))
	// Output:
	// {"rows":[{"dept":"eng","total":30,"n":2},{"dept":"ops","total":5,"n":1}],"summary":{"input_rows":3,"n_mean":1.5,"n_total":3,"output_rows":2,"total_mean":17.5,"total_total":35}}
}

func ExamplePipelineBuilder_Anonymize() {
	in, err := readers.ParseCSV(strings.NewReader("id,phone,address\n1,555-123-4567,1 Main St\n"))
	if err != nil {
		log.Fatal(err)
	}

	p, err := tabular.NewPipeline().
		WithIdentifier("id").
		Anonymize("phone", anonymize.Mask{KeepLast: 4}).
		Anonymize("address", anonymize.Redact{}).
		Build()
	if err != nil {
		log.Fatal(err)
	}

	res, err := p.Run(context.Background(), in)
	if err != nil {
		log.Fatal(err)
	}
	row := res.Rows()[0]
	fmt.Println(row["id"], row["phone"], row["address"])
	// Output:
	// 1 ********4567 REDACTED
}
