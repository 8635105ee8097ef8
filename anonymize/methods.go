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

package anonymize

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strings"

	"github.com/aaronlmathis/tabular/core"
)

const (
	// DefaultHashLength is the number of hex characters a hash keeps.
	DefaultHashLength = 16
	// HashPlaceholder marks where the digest goes in Hash.Format.
	HashPlaceholder = "{hash}"
	// DefaultRedaction replaces redacted values.
	DefaultRedaction = "REDACTED"
)

// Hash replaces a value with a truncated hex SHA-256 of the value followed
// by the salt. Equal inputs under the same salt give equal outputs.
type Hash struct {
	// Length is the number of hex characters kept, 8 to 64. Zero means DefaultHashLength.
	Length int
	// Format wraps the digest, e.g. "Customer_{hash}". Empty means the bare digest.
	Format string
	// Salt overrides the pipeline salt when set.
	Salt string
}

func (h Hash) Name() string { return "hash" }

func (h Hash) Bind(_ core.Field, env core.Env) (Func, core.FieldType, error) {
	length := h.Length
	if length == 0 {
		length = DefaultHashLength
	}
	if length < 8 || length > sha256.Size*2 {
		return nil, 0, core.NewError(core.KindValue, "", "hash length %d outside 8..64", h.Length)
	}
	format := h.Format
	if format == "" {
		format = HashPlaceholder
	}
	if !strings.Contains(format, HashPlaceholder) {
		return nil, 0, core.NewError(core.KindValue, "", "hash format %q lacks %s", h.Format, HashPlaceholder)
	}
	salt := h.Salt
	if salt == "" {
		salt = env.Salt
	}
	return func(v interface{}) (interface{}, error) {
		sum := sha256.Sum256([]byte(core.Canonical(v) + salt))
		digest := hex.EncodeToString(sum[:])[:length]
		return strings.ReplaceAll(format, HashPlaceholder, digest), nil
	}, core.TypeText, nil
}

// Mask replaces all but the last KeepLast characters with Char.
type Mask struct {
	KeepLast int
	// Char is the mask character. Zero means '*'.
	Char rune
}

func (m Mask) Name() string { return "mask" }

func (m Mask) Bind(f core.Field, _ core.Env) (Func, core.FieldType, error) {
	if f.Type != core.TypeText {
		return nil, 0, core.NewError(core.KindValue, "", "mask applies to text fields, got %s", f.Type)
	}
	if m.KeepLast < 0 {
		return nil, 0, core.NewError(core.KindValue, "", "mask keep count %d is negative", m.KeepLast)
	}
	char := m.Char
	if char == 0 {
		char = '*'
	}
	return func(v interface{}) (interface{}, error) {
		s, ok := v.(string)
		if !ok {
			return nil, core.NewError(core.KindValue, "", "mask applies to text values, got %T", v)
		}
		runes := []rune(s)
		n := len(runes) - m.KeepLast
		for i := 0; i < n; i++ {
			runes[i] = char
		}
		return string(runes), nil
	}, core.TypeText, nil
}

// Range is a half-open interval [Low, High) with a label. Use math.Inf for
// open-ended ranges.
type Range struct {
	Low   float64
	High  float64
	Label string
}

// Bucket replaces a number with the label of the first range containing it.
type Bucket struct {
	Ranges []Range
}

func (b Bucket) Name() string { return "bucket" }

// Validate checks that ranges are non-empty, ascending and non-overlapping.
func (b Bucket) Validate() error {
	if len(b.Ranges) == 0 {
		return core.NewError(core.KindRange, "", "bucket needs at least one range")
	}
	for i, r := range b.Ranges {
		if math.IsNaN(r.Low) || math.IsNaN(r.High) || !(r.Low < r.High) {
			return core.NewError(core.KindRange, "", "range %d [%v, %v) is empty", i, r.Low, r.High)
		}
		if i > 0 && r.Low < b.Ranges[i-1].High {
			return core.NewError(core.KindRange, "", "range %d [%v, %v) overlaps or precedes range %d", i, r.Low, r.High, i-1)
		}
	}
	return nil
}

func (b Bucket) Bind(f core.Field, _ core.Env) (Func, core.FieldType, error) {
	if !f.Type.Numeric() {
		return nil, 0, core.NewError(core.KindType, "", "bucket applies to numeric fields, got %s", f.Type)
	}
	if err := b.Validate(); err != nil {
		return nil, 0, err
	}
	ranges := append([]Range(nil), b.Ranges...)
	return func(v interface{}) (interface{}, error) {
		x, ok := core.ToFloat64(v)
		if !ok {
			return nil, core.NewError(core.KindType, "", "bucket applies to numbers, got %T", v)
		}
		for _, r := range ranges {
			if x >= r.Low && x < r.High {
				return r.Label, nil
			}
		}
		return nil, core.NewError(core.KindRange, "", "value %v falls outside every bucket", v)
	}, core.TypeText, nil
}

// Redact replaces every value with a fixed text.
type Redact struct {
	// Replacement is the text written. Empty means DefaultRedaction.
	Replacement string
}

func (r Redact) Name() string { return "redact" }

func (r Redact) Bind(core.Field, core.Env) (Func, core.FieldType, error) {
	text := r.Replacement
	if text == "" {
		text = DefaultRedaction
	}
	return func(interface{}) (interface{}, error) {
		return text, nil
	}, core.TypeText, nil
}

// SalaryBands are the bucket ranges used for customer salaries.
func SalaryBands() []Range {
	return []Range{
		{Low: math.Inf(-1), High: 50000, Label: "< $50k"},
		{Low: 50000, High: 75000, Label: "$50k-$75k"},
		{Low: 75000, High: 100000, Label: "$75k-$100k"},
		{Low: 100000, High: 125000, Label: "$100k-$125k"},
		{Low: 125000, High: math.Inf(1), Label: "> $125k"},
	}
}
