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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindow(t *testing.T) {
	var nilOpts *QueryOptions
	_, _, ok := nilOpts.Window()
	assert.False(t, ok)

	_, _, ok = (&QueryOptions{}).Window()
	assert.False(t, ok)

	limit, offset, ok := QueryOptions{}.WithLimit(5).Window()
	require.True(t, ok)
	assert.Equal(t, 5, limit)
	assert.Equal(t, 0, offset)

	limit, offset, ok = QueryOptions{}.Paginate(10, 20).Window()
	require.True(t, ok)
	assert.Equal(t, 10, limit)
	assert.Equal(t, 20, offset)

	limit, offset, ok = QueryOptions{}.WithOffset(30).Window()
	require.True(t, ok)
	assert.Equal(t, DefaultWindowSize, limit)
	assert.Equal(t, 30, offset)
}

func TestQueryOptionsBuildersDoNotShareFilters(t *testing.T) {
	base := NewQueryOptions(NewFilter("status", OpEq, "active"))
	a := base.Where("amount", OpGt, 100)
	b := base.Where("amount", OpLt, 5)

	assert.Len(t, base.Filters, 1)
	assert.Equal(t, 100, a.Filters[1].Value)
	assert.Equal(t, 5, b.Filters[1].Value)

	ordered := base.Order("created_at", true)
	assert.Nil(t, base.OrderBy)
	assert.Equal(t, &OrderBy{Column: "created_at", Descending: true}, ordered.OrderBy)
}

func TestParseOperator(t *testing.T) {
	for _, op := range Operators() {
		got, ok := ParseOperator(string(op))
		assert.True(t, ok, op)
		assert.Equal(t, op, got)
	}
	got, ok := ParseOperator(" GTE ")
	assert.True(t, ok)
	assert.Equal(t, OpGte, got)

	bogus, ok := ParseOperator("between")
	assert.False(t, ok)
	assert.Equal(t, IllegalName, bogus.Name())
	assert.Equal(t, "", bogus.SQL())
	assert.Equal(t, IllegalValue, bogus.Number())
}

func TestOperatorSQL(t *testing.T) {
	want := map[Operator]string{
		OpEq: "=", OpNeq: "!=", OpGt: ">", OpGte: ">=",
		OpLt: "<", OpLte: "<=", OpLike: "LIKE", OpIn: "IN",
	}
	for op, sym := range want {
		assert.Equal(t, sym, op.SQL(), op)
	}
}

func TestFieldsFromMapIsSorted(t *testing.T) {
	f := FieldsFromMap(map[string]any{"name": "rent", "amount": 1200, "category": "housing"})
	assert.Equal(t, []string{"amount", "category", "name"}, f.Columns())
	assert.Equal(t, []any{1200, "housing", "rent"}, f.Values())
}

func TestFieldsMarshalKeepsOrder(t *testing.T) {
	f := F("name", "rent", "amount", 1200, "note")
	b, err := json.Marshal(f)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"rent","amount":1200,"note":null}`, string(b))

	b, err = json.Marshal(Fields{})
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(b))
}

func TestFieldsSet(t *testing.T) {
	f := F("name", "rent")
	g := f.Set("name", "mortgage").Set("amount", 10)
	assert.Equal(t, "rent", f[0].Value)
	assert.Equal(t, Fields{{"name", "mortgage"}, {"amount", 10}}, g)
	assert.Equal(t, map[string]any{"name": "mortgage", "amount": 10}, g.Map())
}

func TestPageRequest(t *testing.T) {
	req := NewPageRequest(3, 25, &OrderBy{Column: "id"}, NewFilter("kind", OpEq, "expense"))
	opts := req.Options()
	limit, offset, ok := opts.Window()
	require.True(t, ok)
	assert.Equal(t, 25, limit)
	assert.Equal(t, 50, offset)
	assert.Equal(t, "id", opts.OrderBy.Column)
	assert.Len(t, opts.Filters, 1)

	def := NewDefaultPageRequest(0, 0)
	assert.Equal(t, 1, def.GetPage())
	assert.Equal(t, DefaultWindowSize, def.GetPageSize())
	assert.Equal(t, 0, def.GetOffset())
}

func TestPaginationPages(t *testing.T) {
	p := NewDefaultPagination[Row](1, 10)
	assert.Equal(t, 0, p.Pages())
	p.Total = 21
	assert.Equal(t, 3, p.Pages())
}

func TestRowScan(t *testing.T) {
	var r Row
	require.NoError(t, r.Scan([]byte(`{"a":1}`)))
	assert.Equal(t, float64(1), r["a"])
	require.NoError(t, r.Scan(nil))
	assert.Empty(t, r)
	assert.Error(t, r.Scan(42))

	r = Row{"name": "rent", "gone": nil}
	assert.Equal(t, "rent", r.String("name"))
	assert.Equal(t, "", r.String("gone"))
	v, err := r.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"rent","gone":null}`, string(v.([]byte)))
}
