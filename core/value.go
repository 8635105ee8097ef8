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
	"math"
	"strconv"
)

// Normalize converts Go scalar kinds into the four value representations a
// Record may hold: int64, float64, string and bool. nil stays nil.
func Normalize(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case nil, int64, float64, string, bool:
		return v, nil
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint:
		if uint64(v) > math.MaxInt64 {
			return nil, NewError(KindValue, "", "unsigned value %d overflows int64", v)
		}
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return nil, NewError(KindValue, "", "unsigned value %d overflows int64", v)
		}
		return int64(v), nil
	case float32:
		return float64(v), nil
	case []byte:
		return string(v), nil
	default:
		return nil, NewError(KindType, "", "unsupported value type %T", value)
	}
}

// Conforms reports whether a normalized value may be stored in a column of type t.
// Integers conform to float columns.
func Conforms(value interface{}, t FieldType) bool {
	switch value.(type) {
	case nil:
		return true
	case int64:
		return t == TypeInteger || t == TypeFloat
	case float64:
		return t == TypeFloat
	case string:
		return t == TypeText
	case bool:
		return t == TypeBoolean
	}
	return false
}

// TypeOf returns the field type of a normalized, non-nil value.
func TypeOf(value interface{}) (FieldType, bool) {
	switch value.(type) {
	case int64:
		return TypeInteger, true
	case float64:
		return TypeFloat, true
	case string:
		return TypeText, true
	case bool:
		return TypeBoolean, true
	}
	return 0, false
}

// ToFloat64 converts a numeric value to float64.
func ToFloat64(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case int64:
		return float64(v), true
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case float32:
		return float64(v), true
	}
	return 0, false
}

// Compare orders two non-nil values of compatible type. Integers and floats
// compare numerically. ok is false when the values cannot be ordered.
func Compare(a, b interface{}) (cmp int, ok bool) {
	switch va := a.(type) {
	case int64:
		if vb, isInt := b.(int64); isInt {
			return compareOrdered(va, vb), true
		}
	case string:
		if vb, isStr := b.(string); isStr {
			return compareOrdered(va, vb), true
		}
		return 0, false
	case bool:
		if vb, isBool := b.(bool); isBool {
			switch {
			case va == vb:
				return 0, true
			case !va:
				return -1, true
			default:
				return 1, true
			}
		}
		return 0, false
	}
	fa, okA := ToFloat64(a)
	fb, okB := ToFloat64(b)
	if !okA || !okB {
		return 0, false
	}
	return compareOrdered(fa, fb), true
}

func compareOrdered[T int64 | float64 | string](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Canonical renders a value as text for hashing and grouping. The rendering
// is stable across runs and platforms.
func Canonical(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}

// GroupKey encodes a tuple of values into a string key that distinguishes
// types and keeps nulls apart from empty text. Float -0 and 0 share a key.
func GroupKey(values []interface{}) string {
	buf := make([]byte, 0, 16*len(values))
	for _, v := range values {
		switch x := v.(type) {
		case nil:
			buf = append(buf, 'n')
		case int64:
			buf = append(buf, 'i')
			buf = strconv.AppendInt(buf, x, 10)
		case float64:
			if x == 0 {
				x = 0
			}
			buf = append(buf, 'f')
			buf = strconv.AppendFloat(buf, x, 'g', -1, 64)
		case string:
			buf = append(buf, 's')
			buf = strconv.AppendInt(buf, int64(len(x)), 10)
			buf = append(buf, ':')
			buf = append(buf, x...)
		case bool:
			buf = append(buf, 'b')
			buf = strconv.AppendBool(buf, x)
		}
		buf = append(buf, 0x1f)
	}
	return string(buf)
}
