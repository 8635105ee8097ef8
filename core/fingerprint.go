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
	"fmt"

	"github.com/zeebo/xxh3"
)

// Fingerprint returns a 64-bit digest of the schema and every row in order.
// Two tables with equal schemas and equal rows have equal fingerprints.
func (t *Table) Fingerprint() uint64 {
	h := xxh3.New()
	for _, f := range t.Schema {
		fmt.Fprintf(h, "%s\x1e%d\x1f", f.Name, f.Type)
	}
	h.Write([]byte{0x1d})
	vals := make([]interface{}, len(t.Schema))
	for _, r := range t.Rows {
		for i, f := range t.Schema {
			vals[i] = r[f.Name]
		}
		h.WriteString(GroupKey(vals))
		h.Write([]byte{0x1e})
	}
	return h.Sum64()
}

// FingerprintHex formats Fingerprint as 16 hex digits.
func (t *Table) FingerprintHex() string {
	return fmt.Sprintf("%016x", t.Fingerprint())
}
