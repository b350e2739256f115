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

package types

import (
	"encoding/json"
	"strings"
)

// Operator is a filter comparison understood by every repository strategy.
type Operator string

const (
	OpEq   Operator = "eq"
	OpNeq  Operator = "neq"
	OpGt   Operator = "gt"
	OpGte  Operator = "gte"
	OpLt   Operator = "lt"
	OpLte  Operator = "lte"
	OpLike Operator = "like"
	OpIn   Operator = "in"
)

var _ BaseEnum = OpEq

var operators = []struct {
	op   Operator
	sql  string
	desc string
}{
	{OpEq, "=", "equal to"},
	{OpNeq, "!=", "not equal to"},
	{OpGt, ">", "greater than"},
	{OpGte, ">=", "greater than or equal to"},
	{OpLt, "<", "less than"},
	{OpLte, "<=", "less than or equal to"},
	{OpLike, "LIKE", "matches pattern"},
	{OpIn, "IN", "member of list"},
}

// Operators returns every supported operator in declaration order.
func Operators() []Operator {
	out := make([]Operator, len(operators))
	for i, o := range operators {
		out[i] = o.op
	}
	return out
}

// ParseOperator parses an operator tag case-insensitively. The second return
// value is false for tags outside the supported set.
func ParseOperator(s string) (Operator, bool) {
	op := Operator(strings.ToLower(strings.TrimSpace(s)))
	return op, op.IsValid()
}

func (o Operator) IsValid() bool { return o.Number() != IllegalValue }

func (o Operator) Number() int {
	for i, known := range operators {
		if known.op == o {
			return i
		}
	}
	return IllegalValue
}

func (o Operator) String() string { return string(o) }

func (o Operator) Name() string {
	if !o.IsValid() {
		return IllegalName
	}
	return string(o)
}

func (o Operator) Desc() string {
	if n := o.Number(); n != IllegalValue {
		return operators[n].desc
	}
	return IllegalDesc
}

// SQL returns the SQL comparison symbol, or "" for an unknown operator.
func (o Operator) SQL() string {
	if n := o.Number(); n != IllegalValue {
		return operators[n].sql
	}
	return ""
}

// Filter is a single column predicate. In expects a non-empty slice value;
// every other operator expects a scalar.
type Filter struct {
	Column   string   `json:"column" yaml:"column"`
	Operator Operator `json:"operator" yaml:"operator"`
	Value    any      `json:"value" yaml:"value"`
}

// NewFilter is shorthand for a Filter literal.
func NewFilter(column string, op Operator, value any) Filter {
	return Filter{Column: column, Operator: op, Value: value}
}

// OrderBy sorts on one column. The zero value of Descending means ascending.
type OrderBy struct {
	Column     string `json:"column" yaml:"column"`
	Descending bool   `json:"descending,omitempty" yaml:"descending"`
}

// DefaultWindowSize is the row count assumed when an offset is supplied
// without a limit.
const DefaultWindowSize = 10

// QueryOptions describes filter, ordering and pagination intent independent
// of how a repository talks to the backend. The zero value selects all rows.
type QueryOptions struct {
	Filters []Filter `json:"filters,omitempty" yaml:"filters"`
	OrderBy *OrderBy `json:"order_by,omitempty" yaml:"order_by"`
	Limit   *int     `json:"limit,omitempty" yaml:"limit"`
	Offset  *int     `json:"offset,omitempty" yaml:"offset"`
}

// NewQueryOptions returns options holding the given filters.
func NewQueryOptions(filters ...Filter) *QueryOptions {
	return &QueryOptions{Filters: filters}
}

// Where returns a copy with an extra filter appended.
func (q QueryOptions) Where(column string, op Operator, value any) *QueryOptions {
	filters := make([]Filter, 0, len(q.Filters)+1)
	filters = append(filters, q.Filters...)
	q.Filters = append(filters, NewFilter(column, op, value))
	return &q
}

// Order returns a copy ordered by column.
func (q QueryOptions) Order(column string, descending bool) *QueryOptions {
	q.OrderBy = &OrderBy{Column: column, Descending: descending}
	return &q
}

// Paginate returns a copy with limit and offset set.
func (q QueryOptions) Paginate(limit, offset int) *QueryOptions {
	q.Limit = &limit
	q.Offset = &offset
	return &q
}

// WithLimit returns a copy with only the limit set.
func (q QueryOptions) WithLimit(limit int) *QueryOptions {
	q.Limit = &limit
	return &q
}

// WithOffset returns a copy with only the offset set.
func (q QueryOptions) WithOffset(offset int) *QueryOptions {
	q.Offset = &offset
	return &q
}

// Window resolves pagination into an explicit row count and offset. ok is
// false when neither limit nor offset is set. An offset without a limit uses
// DefaultWindowSize rows.
func (q *QueryOptions) Window() (limit, offset int, ok bool) {
	if q == nil || (q.Limit == nil && q.Offset == nil) {
		return 0, 0, false
	}
	limit = DefaultWindowSize
	if q.Limit != nil {
		limit = *q.Limit
	}
	if q.Offset != nil {
		offset = *q.Offset
	}
	return limit, offset, true
}

// HasLimit reports whether pagination bounds the row count.
func (q *QueryOptions) HasLimit() bool {
	_, _, ok := q.Window()
	return ok
}

func (q QueryOptions) String() string {
	b, _ := json.Marshal(q)
	return string(b)
}
