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
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomoncle/budgetbase/database"
	"github.com/tomoncle/budgetbase/supabase"
	"github.com/tomoncle/budgetbase/types"
)

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		tag  string
		want Strategy
	}{
		{"structured-query", StructuredQuery},
		{"data-api", StructuredQuery},
		{" REST ", StructuredQuery},
		{"raw-sql", RawSQL},
		{"sql", RawSQL},
	}
	for _, tt := range tests {
		got, err := ParseStrategy(tt.tag)
		require.NoError(t, err, tt.tag)
		assert.Equal(t, tt.want, got, tt.tag)
	}

	_, err := ParseStrategy("graphql")
	assert.ErrorIs(t, err, ErrUnknownStrategy)
	var serr *StrategyError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "graphql", serr.Tag)
	assert.Contains(t, err.Error(), "structured-query, raw-sql")
}

func TestStrategyText(t *testing.T) {
	b, err := RawSQL.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "raw-sql", string(b))

	var s Strategy
	require.NoError(t, s.UnmarshalText([]byte("data-api")))
	assert.Equal(t, StructuredQuery, s)
	assert.Error(t, s.UnmarshalText([]byte("orm")))

	assert.False(t, Strategy(7).IsValid())
	_, err = Strategy(7).MarshalText()
	assert.ErrorIs(t, err, ErrUnknownStrategy)
	assert.Equal(t, []string{"structured-query", "raw-sql"}, Strategies())
}

func TestNewRejectsBadConfiguration(t *testing.T) {
	client, err := supabase.New(supabase.Config{URL: "https://x.supabase.co", APIKey: "k"})
	require.NoError(t, err)

	_, err = New[types.Row](client, "budgets", Strategy(9))
	assert.ErrorIs(t, err, ErrUnknownStrategy)

	_, err = NewFromTag[types.Row](client, "budgets", "orm")
	assert.ErrorIs(t, err, ErrUnknownStrategy)

	_, err = New[types.Row](nil, "budgets", RawSQL)
	assert.ErrorIs(t, err, ErrNilClient)

	var typedNil *supabase.Client
	_, err = New[types.Row](typedNil, "budgets", StructuredQuery)
	assert.ErrorIs(t, err, ErrNilClient)

	_, err = New[types.Row](Compose(nil, &fakeProcs{}), "budgets", StructuredQuery)
	assert.ErrorIs(t, err, ErrNilClient)

	_, err = New[types.Row](Compose(client, nil), "budgets", RawSQL)
	assert.ErrorIs(t, err, ErrNilClient)

	_, err = New[types.Row](client, "", StructuredQuery)
	assert.ErrorIs(t, err, ErrInvalidIdentifier)

	_, err = New[types.Row](client, "budgets; drop table x", RawSQL)
	assert.ErrorIs(t, err, ErrInvalidIdentifier)

	_, err = New[types.Row](client, "budgets", RawSQL, WithPrimaryKey("id)"))
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
}

func TestNewSelectsStrategy(t *testing.T) {
	client, err := supabase.New(supabase.Config{URL: "https://x.supabase.co", APIKey: "k"})
	require.NoError(t, err)

	repo, err := NewFromTag[types.Row](client, "public.budgets", "data-api")
	require.NoError(t, err)
	assert.Equal(t, StructuredQuery, repo.Strategy())
	assert.Equal(t, "public.budgets", repo.TableName())

	repo, err = NewFromTag[types.Row](client, "budgets", "sql", WithPrimaryKey("budget_id"), WithLogger(nil))
	require.NoError(t, err)
	assert.Equal(t, RawSQL, repo.Strategy())
	sqlRepo, ok := repo.(*sqlRepository[types.Row])
	require.True(t, ok)
	assert.Equal(t, "budget_id", sqlRepo.builder.pk)
	assert.NotNil(t, sqlRepo.log)
}

// Both strategies must express the same predicates, order and window for one
// descriptor.
func TestStrategiesAgree(t *testing.T) {
	var rawQuery string
	repoREST := newRestRepo(t, func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`[]`))
	})
	procs := &fakeProcs{reply: []byte(`[]`)}
	repoSQL := newSQLRepo(t, procs)

	opts := types.NewQueryOptions(
		types.NewFilter("amount", types.OpGt, 50),
		types.NewFilter("category", types.OpIn, []string{"food", "rent"}),
		types.NewFilter("name", types.OpNeq, "1); DROP TABLE x;--"),
	).Order("created_at", false).Paginate(10, 20)

	_, err := repoREST.FindMany(context.Background(), opts)
	require.NoError(t, err)
	_, err = repoSQL.FindMany(context.Background(), opts)
	require.NoError(t, err)

	q, err := url.ParseQuery(rawQuery)
	require.NoError(t, err)
	assert.Equal(t, "gt.50", q.Get("amount"))
	assert.Equal(t, "in.(food,rent)", q.Get("category"))
	assert.Equal(t, "neq.1); DROP TABLE x;--", q.Get("name"))
	assert.Equal(t, "created_at.asc", q.Get("order"))
	assert.Equal(t, "10", q.Get("limit"))
	assert.Equal(t, "20", q.Get("offset"))

	stmt := procs.last(t).stmt
	assert.Equal(t, `SELECT * FROM "budgets" WHERE "amount" > $1 AND "category" IN ($2, $3) AND "name" != $4 ORDER BY "created_at" ASC LIMIT 10 OFFSET 20`, stmt.Query)
	assert.Equal(t, []any{50, "food", "rent", "1); DROP TABLE x;--"}, stmt.Params)
}

func TestStrategiesAgreeOnMissingRow(t *testing.T) {
	repoREST := newRestRepo(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	repoSQL := newSQLRepo(t, &fakeProcs{reply: []byte(`[]`)})

	for _, repo := range []Repository[budget]{repoREST, repoSQL} {
		row, err := repo.FindByID(context.Background(), 12345)
		assert.NoError(t, err, repo.Strategy().Name())
		assert.Nil(t, row, repo.Strategy().Name())
	}
}

func TestClientImplementations(t *testing.T) {
	var _ ProcedureCaller = (*database.Executor)(nil)
	var _ Client = (*supabase.Client)(nil)
	assert.Implements(t, (*Client)(nil), Compose(nil, &fakeProcs{}))
}
