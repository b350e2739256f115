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

package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// FilterOperator is a PostgREST horizontal filter operator.
type FilterOperator string

const (
	OpEq    FilterOperator = "eq"
	OpNeq   FilterOperator = "neq"
	OpGt    FilterOperator = "gt"
	OpGte   FilterOperator = "gte"
	OpLt    FilterOperator = "lt"
	OpLte   FilterOperator = "lte"
	OpLike  FilterOperator = "like"
	OpILike FilterOperator = "ilike"
	OpIs    FilterOperator = "is"
	OpIn    FilterOperator = "in"
)

// Count kinds accepted by Count.
const (
	CountExact     = "exact"
	CountPlanned   = "planned"
	CountEstimated = "estimated"
)

// QueryBuilder accumulates one PostgREST request. A builder is single-use and
// not safe for concurrent use.
type QueryBuilder struct {
	client  *Client
	table   string
	method  string
	columns string
	params  url.Values
	orders  []string
	limit   *int
	offset  *int
	body    []byte
	prefer  []string
	headers map[string]string
	err     error
}

// Select sets the returned columns.
func (q *QueryBuilder) Select(columns string) *QueryBuilder {
	q.columns = columns
	return q
}

// Insert turns the request into a POST of data, returning the inserted rows.
func (q *QueryBuilder) Insert(data any) *QueryBuilder {
	return q.withBody(http.MethodPost, data, "return=representation")
}

// Update turns the request into a PATCH of data on the filtered rows,
// returning the updated rows.
func (q *QueryBuilder) Update(data any) *QueryBuilder {
	return q.withBody(http.MethodPatch, data, "return=representation")
}

// Delete turns the request into a DELETE of the filtered rows.
func (q *QueryBuilder) Delete() *QueryBuilder {
	q.method = http.MethodDelete
	q.prefer = append(q.prefer, "return=minimal")
	return q
}

// Head turns the request into a HEAD; combine with Count to read a row count
// without a body.
func (q *QueryBuilder) Head() *QueryBuilder {
	q.method = http.MethodHead
	return q
}

func (q *QueryBuilder) withBody(method string, data any, prefer string) *QueryBuilder {
	q.method = method
	body, err := json.Marshal(data)
	if err != nil {
		q.err = fmt.Errorf("marshal body: %w", err)
		return q
	}
	q.body = body
	q.prefer = append(q.prefer, prefer)
	return q
}

// reservedParams cannot be used as horizontal filter columns.
var reservedParams = map[string]bool{
	"select": true, "order": true, "limit": true, "offset": true,
	"columns": true, "on_conflict": true, "and": true, "or": true, "not": true,
}

func (q *QueryBuilder) checkColumn(column string) bool {
	if reservedParams[strings.ToLower(column)] {
		q.err = fmt.Errorf("filter on %s: %w", column, ErrReservedColumn)
		return false
	}
	return true
}

// Filter adds column=op.value.
func (q *QueryBuilder) Filter(column string, op FilterOperator, value any) *QueryBuilder {
	if !q.checkColumn(column) {
		return q
	}
	if op == OpIn {
		return q.In(column, value)
	}
	q.params.Add(column, string(op)+"."+FormatValue(value))
	return q
}

func (q *QueryBuilder) Eq(column string, value any) *QueryBuilder {
	return q.Filter(column, OpEq, value)
}

func (q *QueryBuilder) Neq(column string, value any) *QueryBuilder {
	return q.Filter(column, OpNeq, value)
}

func (q *QueryBuilder) Gt(column string, value any) *QueryBuilder {
	return q.Filter(column, OpGt, value)
}

func (q *QueryBuilder) Gte(column string, value any) *QueryBuilder {
	return q.Filter(column, OpGte, value)
}

func (q *QueryBuilder) Lt(column string, value any) *QueryBuilder {
	return q.Filter(column, OpLt, value)
}

func (q *QueryBuilder) Lte(column string, value any) *QueryBuilder {
	return q.Filter(column, OpLte, value)
}

func (q *QueryBuilder) Like(column string, pattern string) *QueryBuilder {
	return q.Filter(column, OpLike, pattern)
}

// In adds column=in.(v1,v2,...). values must be a slice or array; items with
// reserved characters are double-quoted.
func (q *QueryBuilder) In(column string, values any) *QueryBuilder {
	if !q.checkColumn(column) {
		return q
	}
	rv := reflect.ValueOf(values)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		q.err = fmt.Errorf("in filter on %s requires a list, got %T", column, values)
		return q
	}
	items := make([]string, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		items[i] = quoteListItem(FormatValue(rv.Index(i).Interface()))
	}
	q.params.Add(column, "in.("+strings.Join(items, ",")+")")
	return q
}

// Order appends an order term.
func (q *QueryBuilder) Order(column string, ascending bool) *QueryBuilder {
	dir := "asc"
	if !ascending {
		dir = "desc"
	}
	q.orders = append(q.orders, column+"."+dir)
	return q
}

func (q *QueryBuilder) Limit(n int) *QueryBuilder {
	q.limit = &n
	return q
}

func (q *QueryBuilder) Offset(n int) *QueryBuilder {
	q.offset = &n
	return q
}

// Count asks PostgREST to report the total row count in Content-Range.
func (q *QueryBuilder) Count(kind string) *QueryBuilder {
	q.prefer = append(q.prefer, "count="+kind)
	return q
}

// Header sets an extra request header.
func (q *QueryBuilder) Header(key, value string) *QueryBuilder {
	q.headers[key] = value
	return q
}

// URL returns the request URL the builder would send.
func (q *QueryBuilder) URL() string {
	params := url.Values{}
	for k, v := range q.params {
		params[k] = append([]string(nil), v...)
	}
	if (q.method == http.MethodGet || q.method == http.MethodHead) && q.columns != "" {
		params.Set("select", q.columns)
	}
	if len(q.orders) > 0 {
		params.Set("order", strings.Join(q.orders, ","))
	}
	if q.limit != nil {
		params.Set("limit", strconv.Itoa(*q.limit))
	}
	if q.offset != nil {
		params.Set("offset", strconv.Itoa(*q.offset))
	}
	u := q.client.restURL + "/" + url.PathEscape(q.table)
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// Method returns the HTTP method the builder would send.
func (q *QueryBuilder) Method() string {
	return q.method
}

// Execute sends the request. Responses with status >= 400 are returned as
// *Error.
func (q *QueryBuilder) Execute(ctx context.Context) (*Response, error) {
	if q.err != nil {
		return nil, q.err
	}
	if q.table == "" {
		return nil, fmt.Errorf("table is required")
	}
	headers := make(map[string]string, len(q.headers)+1)
	for k, v := range q.headers {
		headers[k] = v
	}
	if len(q.prefer) > 0 {
		headers["Prefer"] = strings.Join(q.prefer, ",")
	}
	resp, err := q.client.do(ctx, q.method, q.URL(), q.body, headers)
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp, nil
}

// ExecuteInto sends the request and decodes the JSON body into dest.
func (q *QueryBuilder) ExecuteInto(ctx context.Context, dest any) error {
	resp, err := q.Execute(ctx)
	if err != nil {
		return err
	}
	return resp.JSON(dest)
}

// FormatValue renders a scalar the way PostgREST expects it in a filter.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case []byte:
		return string(t)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.Format(time.RFC3339Nano)
	case fmt.Stringer:
		return t.String()
	default:
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return string(rv.Bytes())
		}
		return fmt.Sprint(t)
	}
}

func quoteListItem(s string) string {
	if s == "" || strings.ContainsAny(s, ",.:()\" \\") {
		s = strings.ReplaceAll(s, `\`, `\\`)
		s = strings.ReplaceAll(s, `"`, `\"`)
		return `"` + s + `"`
	}
	return s
}

// Response is a raw PostgREST response.
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// JSON decodes the body into v. An empty body leaves v untouched.
func (r *Response) JSON(v any) error {
	if len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// Err returns a parsed *Error for status >= 400.
func (r *Response) Err() error {
	if r.StatusCode >= 400 {
		return parseError(r.Body, r.StatusCode)
	}
	return nil
}

// Count parses the total from a Content-Range header such as "0-9/42" or
// "*/42".
func (r *Response) Count() (int64, error) {
	cr := r.Header.Get("Content-Range")
	idx := strings.LastIndexByte(cr, '/')
	if idx < 0 {
		return 0, fmt.Errorf("missing content-range total: %q", cr)
	}
	total := cr[idx+1:]
	if total == "*" {
		return 0, fmt.Errorf("count not reported: %q", cr)
	}
	n, err := strconv.ParseInt(total, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid content-range total %q: %w", cr, err)
	}
	return n, nil
}
