/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package repository

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/tomoncle/budgetbase/types"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidationError reports a descriptor or identifier rejected before any
// request is sent.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%v: %s", e.Err, e.Field)
	}
	return fmt.Sprintf("%v: %s: %s", e.Err, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(err error, field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...), Err: err}
}

// checkColumn accepts a bare identifier.
func checkColumn(name string) error {
	if !identPattern.MatchString(name) {
		return invalid(ErrInvalidIdentifier, name, "column must match %s", identPattern)
	}
	return nil
}

// checkTable accepts "table" or "schema.table".
func checkTable(name string) error {
	parts := strings.Split(name, ".")
	if len(parts) > 2 {
		return invalid(ErrInvalidIdentifier, name, "table must be table or schema.table")
	}
	for _, p := range parts {
		if !identPattern.MatchString(p) {
			return invalid(ErrInvalidIdentifier, name, "table must match %s", identPattern)
		}
	}
	return nil
}

// quoteIdent double-quotes every dot separated part of an identifier that
// already passed checkTable or checkColumn.
func quoteIdent(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = `"` + p + `"`
	}
	return strings.Join(parts, ".")
}

// listValue returns v as a slice of elements when it is a slice or array.
// Byte slices of any named type (json.RawMessage included) are scalars.
func listValue(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func checkFilter(f types.Filter) error {
	if !f.Operator.IsValid() {
		return invalid(ErrUnknownOperator, f.Column, "operator %q, supported operators: %v", string(f.Operator), types.Operators())
	}
	if err := checkColumn(f.Column); err != nil {
		return err
	}
	items, isList := listValue(f.Value)
	switch {
	case f.Operator == types.OpIn && !isList:
		return invalid(ErrInvalidFilter, f.Column, "in requires a list value, got %T", f.Value)
	case f.Operator == types.OpIn && len(items) == 0:
		return invalid(ErrInvalidFilter, f.Column, "in requires a non-empty list")
	case f.Operator != types.OpIn && isList:
		return invalid(ErrInvalidFilter, f.Column, "%s requires a scalar value, got %T", f.Operator, f.Value)
	case f.Operator != types.OpIn && f.Value == nil:
		return invalid(ErrInvalidFilter, f.Column, "%s requires a non-nil value", f.Operator)
	}
	return nil
}

func checkFilters(filters []types.Filter) error {
	for _, f := range filters {
		if err := checkFilter(f); err != nil {
			return err
		}
	}
	return nil
}

func checkOptions(opts *types.QueryOptions) error {
	if opts == nil {
		return nil
	}
	if err := checkFilters(opts.Filters); err != nil {
		return err
	}
	if opts.OrderBy != nil {
		if err := checkColumn(opts.OrderBy.Column); err != nil {
			return err
		}
	}
	if opts.Limit != nil && *opts.Limit < 0 {
		return invalid(ErrInvalidFilter, "limit", "must not be negative")
	}
	if opts.Offset != nil && *opts.Offset < 0 {
		return invalid(ErrInvalidFilter, "offset", "must not be negative")
	}
	return nil
}

func checkFields(fields types.Fields) error {
	if len(fields) == 0 {
		return &ValidationError{Field: "fields", Err: ErrEmptyFields}
	}
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if err := checkColumn(f.Column); err != nil {
			return err
		}
		if _, dup := seen[f.Column]; dup {
			return invalid(ErrInvalidFilter, f.Column, "column assigned twice")
		}
		seen[f.Column] = struct{}{}
	}
	return nil
}

func checkID(pk string, id any) error {
	if id == nil {
		return invalid(ErrInvalidFilter, pk, "id must not be nil")
	}
	if _, isList := listValue(id); isList {
		return invalid(ErrInvalidFilter, pk, "id must be a scalar, got %T", id)
	}
	return nil
}
