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
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies pipeline failures.
type ErrorKind string

const (
	KindParse            ErrorKind = "parse"
	KindSchema           ErrorKind = "schema"
	KindType             ErrorKind = "type"
	KindValue            ErrorKind = "value"
	KindArithmetic       ErrorKind = "arithmetic"
	KindEmptyAggregation ErrorKind = "empty_aggregation"
	KindRange            ErrorKind = "range"
)

// NoStep marks errors raised outside of any step, such as input parsing.
const NoStep = -1

// Error is the error type returned by every pipeline operation. Step is the
// zero-based index of the failing step, or NoStep.
type Error struct {
	Kind     ErrorKind
	Step     int
	StepKind string
	Field    string
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Step != NoStep {
		fmt.Fprintf(&b, "step %d", e.Step)
		if e.StepKind != "" {
			fmt.Fprintf(&b, " (%s)", e.StepKind)
		}
		b.WriteString(": ")
	}
	if e.Field != "" {
		fmt.Fprintf(&b, "field %q: ", e.Field)
	}
	fmt.Fprintf(&b, "%s error", e.Kind)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so callers can write
// errors.Is(err, core.ErrSchema).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinel errors for errors.Is checks.
var (
	ErrParse            = &Error{Kind: KindParse, Step: NoStep}
	ErrSchema           = &Error{Kind: KindSchema, Step: NoStep}
	ErrType             = &Error{Kind: KindType, Step: NoStep}
	ErrValue            = &Error{Kind: KindValue, Step: NoStep}
	ErrArithmetic       = &Error{Kind: KindArithmetic, Step: NoStep}
	ErrEmptyAggregation = &Error{Kind: KindEmptyAggregation, Step: NoStep}
	ErrRange            = &Error{Kind: KindRange, Step: NoStep}
)

// NewError creates an Error of the given kind that is not yet bound to a step.
func NewError(kind ErrorKind, field, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Step: NoStep, Field: field, Err: fmt.Errorf(format, args...)}
}

// WithField sets the field on an *Error that does not name one yet.
// Other errors are returned unchanged.
func WithField(err error, field string) error {
	var e *Error
	if errors.As(err, &e) && e.Field == "" {
		cp := *e
		cp.Field = field
		return &cp
	}
	return err
}

// AtStep binds err to a step. Errors that are not *Error are classified as
// value errors so that every failure carries a kind.
func AtStep(err error, step int, stepKind string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if !errors.As(err, &e) {
		return &Error{Kind: KindValue, Step: step, StepKind: stepKind, Err: err}
	}
	cp := *e
	cp.Step = step
	cp.StepKind = stepKind
	return &cp
}

// KindOf returns the kind of a pipeline error, or "" for other errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
