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

package aggregate

import (
	"math"

	"github.com/aaronlmathis/tabular/core"
)

// Op is an aggregation operator.
type Op string

const (
	OpSum   Op = "sum"
	OpMean  Op = "mean"
	OpMin   Op = "min"
	OpMax   Op = "max"
	OpCount Op = "count"
)

// ParseOp validates an operator name.
func ParseOp(name string) (Op, error) {
	switch op := Op(name); op {
	case OpSum, OpMean, OpMin, OpMax, OpCount:
		return op, nil
	case "avg", "average":
		return OpMean, nil
	}
	return "", core.NewError(core.KindValue, "", "unknown aggregation %q", name)
}

// AllRows is the field name that makes count tally rows rather than non-null values.
const AllRows = "*"

// Aggregator folds the values of one field within one group.
// Nulls are filtered out before Add is called.
type Aggregator interface {
	// Add processes a non-null value.
	Add(value interface{}) error
	// Result returns the aggregate. Aggregators other than count fail with
	// an empty aggregation error when no value was added.
	Result() (interface{}, error)
}

// resultType returns the output column type of op over a field of type t.
func resultType(op Op, t core.FieldType) (core.FieldType, error) {
	switch op {
	case OpCount:
		return core.TypeInteger, nil
	case OpSum:
		if !t.Numeric() {
			return 0, core.NewError(core.KindType, "", "sum requires a numeric field, got %s", t)
		}
		return t, nil
	case OpMean:
		if !t.Numeric() {
			return 0, core.NewError(core.KindType, "", "mean requires a numeric field, got %s", t)
		}
		return core.TypeFloat, nil
	case OpMin, OpMax:
		if t == core.TypeBoolean {
			return 0, core.NewError(core.KindType, "", "%s is not defined for boolean fields", op)
		}
		return t, nil
	}
	return 0, core.NewError(core.KindValue, "", "unknown aggregation %q", op)
}

// newAggregator returns a fresh aggregator for op over a field of type t.
func newAggregator(op Op, t core.FieldType) Aggregator {
	switch op {
	case OpCount:
		return &CountAggregator{}
	case OpSum:
		if t == core.TypeInteger {
			return &IntSumAggregator{}
		}
		return &SumAggregator{}
	case OpMean:
		return &MeanAggregator{}
	case OpMin:
		return &MinAggregator{}
	default:
		return &MaxAggregator{}
	}
}

func empty(op Op) error {
	return core.NewError(core.KindEmptyAggregation, "", "%s over a group whose values are all null", op)
}

// CountAggregator counts non-null values.
type CountAggregator struct {
	count int64
}

func (c *CountAggregator) Add(interface{}) error {
	c.count++
	return nil
}

func (c *CountAggregator) Result() (interface{}, error) {
	return c.count, nil
}

// IntSumAggregator sums integers and reports overflow.
type IntSumAggregator struct {
	sum  int64
	seen bool
}

func (s *IntSumAggregator) Add(value interface{}) error {
	v := value.(int64)
	next := s.sum + v
	if (next > s.sum) != (v > 0) {
		return core.NewError(core.KindArithmetic, "", "integer overflow in sum")
	}
	s.sum = next
	s.seen = true
	return nil
}

func (s *IntSumAggregator) Result() (interface{}, error) {
	if !s.seen {
		return nil, empty(OpSum)
	}
	return s.sum, nil
}

// SumAggregator sums floats.
type SumAggregator struct {
	sum  float64
	seen bool
}

func (s *SumAggregator) Add(value interface{}) error {
	f, _ := core.ToFloat64(value)
	s.sum += f
	s.seen = true
	if math.IsInf(s.sum, 0) {
		return core.NewError(core.KindArithmetic, "", "float overflow in sum")
	}
	return nil
}

func (s *SumAggregator) Result() (interface{}, error) {
	if !s.seen {
		return nil, empty(OpSum)
	}
	return s.sum, nil
}

// MeanAggregator calculates the arithmetic mean.
type MeanAggregator struct {
	sum   float64
	count int64
}

func (a *MeanAggregator) Add(value interface{}) error {
	f, _ := core.ToFloat64(value)
	a.sum += f
	a.count++
	if math.IsInf(a.sum, 0) {
		return core.NewError(core.KindArithmetic, "", "float overflow in mean")
	}
	return nil
}

func (a *MeanAggregator) Result() (interface{}, error) {
	if a.count == 0 {
		return nil, empty(OpMean)
	}
	return a.sum / float64(a.count), nil
}

// MinAggregator finds the minimum value.
type MinAggregator struct {
	min interface{}
}

func (m *MinAggregator) Add(value interface{}) error {
	if m.min == nil {
		m.min = value
		return nil
	}
	if c, ok := core.Compare(value, m.min); ok && c < 0 {
		m.min = value
	}
	return nil
}

func (m *MinAggregator) Result() (interface{}, error) {
	if m.min == nil {
		return nil, empty(OpMin)
	}
	return m.min, nil
}

// MaxAggregator finds the maximum value.
type MaxAggregator struct {
	max interface{}
}

func (m *MaxAggregator) Add(value interface{}) error {
	if m.max == nil {
		m.max = value
		return nil
	}
	if c, ok := core.Compare(value, m.max); ok && c > 0 {
		m.max = value
	}
	return nil
}

func (m *MaxAggregator) Result() (interface{}, error) {
	if m.max == nil {
		return nil, empty(OpMax)
	}
	return m.max, nil
}
