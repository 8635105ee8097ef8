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

package readers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/aaronlmathis/tabular/core"
)

// ParseJSON reads a JSON array of objects, or one object per line, into a
// Table. Column order is the key order of the first object; every object
// must carry the same keys with scalar values.
func ParseJSON(r io.Reader) (*core.Table, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err == io.EOF {
		return nil, core.NewError(core.KindParse, "", "empty JSON input")
	}
	if err != nil {
		return nil, core.NewError(core.KindParse, "", "%v", err)
	}

	dec := json.NewDecoder(br)
	dec.UseNumber()

	var (
		fields []string
		rows   []map[string]interface{}
	)
	add := func() error {
		keys, row, err := readObject(dec)
		if err != nil {
			return core.NewError(core.KindParse, "", "object %d: %v", len(rows), err)
		}
		if fields == nil {
			fields = keys
		}
		rows = append(rows, row)
		return nil
	}

	if first == '[' {
		if _, err := dec.Token(); err != nil {
			return nil, core.NewError(core.KindParse, "", "%v", err)
		}
		for dec.More() {
			if err := add(); err != nil {
				return nil, err
			}
		}
		if _, err := dec.Token(); err != nil {
			return nil, core.NewError(core.KindParse, "", "%v", err)
		}
		if _, err := dec.Token(); err != io.EOF {
			return nil, core.NewError(core.KindParse, "", "unexpected data after JSON array")
		}
	} else {
		for dec.More() {
			if err := add(); err != nil {
				return nil, err
			}
		}
		if _, err := dec.Token(); err != io.EOF {
			return nil, core.NewError(core.KindParse, "", "unexpected data after object %d", len(rows))
		}
	}

	return buildTable(fields, rows, core.KindParse)
}

// readObject decodes one flat object, keeping key order.
func readObject(dec *json.Decoder) ([]string, map[string]interface{}, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, fmt.Errorf("expected object, got %v", tok)
	}
	var keys []string
	row := make(map[string]interface{})
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("expected key, got %v", tok)
		}
		if _, dup := row[key]; dup {
			return nil, nil, fmt.Errorf("duplicate key %q", key)
		}
		tok, err = dec.Token()
		if err != nil {
			return nil, nil, err
		}
		v, err := scalar(tok)
		if err != nil {
			return nil, nil, fmt.Errorf("key %q: %w", key, err)
		}
		keys = append(keys, key)
		row[key] = v
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	return keys, row, nil
}

func scalar(tok json.Token) (interface{}, error) {
	switch v := tok.(type) {
	case nil, bool, string:
		return v, nil
	case json.Number:
		if i, err := strconv.ParseInt(string(v), 10, 64); err == nil {
			return i, nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	return nil, fmt.Errorf("nested values are not supported")
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.Peek(1)
		if err != nil {
			return 0, err
		}
		switch b[0] {
		case ' ', '\t', '\r', '\n':
			br.ReadByte()
		default:
			return b[0], nil
		}
	}
}
