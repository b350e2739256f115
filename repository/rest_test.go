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
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomoncle/budgetbase/database"
	"github.com/tomoncle/budgetbase/supabase"
	"github.com/tomoncle/budgetbase/types"
)

type budget struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	Amount   float64 `json:"amount"`
	Category string  `json:"category"`
}

func newRestRepo(t *testing.T, handler http.HandlerFunc) Repository[budget] {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := supabase.New(supabase.Config{URL: srv.URL, APIKey: "anon-key"})
	require.NoError(t, err)
	repo, err := New[budget](client, "budgets", StructuredQuery, WithLogger(database.NopLogger{}))
	require.NoError(t, err)
	return repo
}

func TestRestFindByID(t *testing.T) {
	repo := newRestRepo(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/rest/v1/budgets", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "eq.3", q.Get("id"))
		assert.Equal(t, "2", q.Get("limit"))
		_, _ = w.Write([]byte(`[{"id":3,"name":"rent","amount":1200,"category":"home"}]`))
	})

	row, err := repo.FindByID(context.Background(), 3)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, budget{ID: 3, Name: "rent", Amount: 1200, Category: "home"}, *row)
}

func TestRestFindByIDMissing(t *testing.T) {
	repo := newRestRepo(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	row, err := repo.FindByID(context.Background(), 404)
	assert.NoError(t, err)
	assert.Nil(t, row)
}

func TestRestFindByIDMultipleRows(t *testing.T) {
	repo := newRestRepo(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":1},{"id":1}]`))
	})

	_, err := repo.FindByID(context.Background(), 1)
	assert.ErrorIs(t, err, ErrMultipleRows)
}

func TestRestFindMany(t *testing.T) {
	repo := newRestRepo(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "*", q.Get("select"))
		assert.Equal(t, "gte.18", q.Get("age"))
		assert.Equal(t, "in.(1,2,3)", q.Get("id"))
		assert.Equal(t, "like.*rent*", q.Get("name"))
		assert.Equal(t, "amount.desc", q.Get("order"))
		assert.Equal(t, "10", q.Get("limit"))
		assert.Equal(t, "20", q.Get("offset"))
		_, _ = w.Write([]byte(`[{"id":1},{"id":2}]`))
	})

	opts := types.NewQueryOptions(
		types.NewFilter("age", types.OpGte, 18),
		types.NewFilter("id", types.OpIn, []int{1, 2, 3}),
		types.NewFilter("name", types.OpLike, "*rent*"),
	).Order("amount", true).Paginate(10, 20)
	rows, err := repo.FindMany(context.Background(), opts)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestRestFindManyEmptyAndDefaults(t *testing.T) {
	repo := newRestRepo(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.False(t, q.Has("order"))
		if q.Has("offset") {
			assert.Equal(t, "10", q.Get("limit"))
		} else {
			assert.False(t, q.Has("limit"))
		}
		_, _ = w.Write([]byte(`[]`))
	})

	rows, err := repo.FindMany(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)

	rows, err = repo.FindMany(context.Background(), (&types.QueryOptions{}).WithOffset(5))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRestValidationSendsNothing(t *testing.T) {
	var calls atomic.Int32
	repo := newRestRepo(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})
	ctx := context.Background()

	_, err := repo.FindMany(ctx, types.NewQueryOptions(types.NewFilter("age", types.Operator("between"), 1)))
	assert.ErrorIs(t, err, ErrUnknownOperator)
	_, err = repo.FindMany(ctx, types.NewQueryOptions(types.NewFilter("id", types.OpIn, "1,2")))
	assert.ErrorIs(t, err, ErrInvalidFilter)
	_, err = repo.Create(ctx, nil)
	assert.ErrorIs(t, err, ErrEmptyFields)
	_, err = repo.Update(ctx, nil, types.F("name", "x"))
	assert.ErrorIs(t, err, ErrInvalidFilter)
	_, err = repo.Count(ctx, types.NewFilter("bad col", types.OpEq, 1))
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
	assert.Equal(t, int32(0), calls.Load())
}

func TestRestCreate(t *testing.T) {
	repo := newRestRepo(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"name":"rent","amount":1200}`, string(body))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`[{"id":10,"name":"rent","amount":1200}]`))
	})

	row, err := repo.Create(context.Background(), types.F("name", "rent", "amount", 1200))
	require.NoError(t, err)
	assert.Equal(t, 10, row.ID)
}

func TestRestCreateHiddenByRLS(t *testing.T) {
	repo := newRestRepo(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`[]`))
	})

	row, err := repo.Create(context.Background(), types.F("name", "rent"))
	assert.Error(t, err)
	assert.Nil(t, row)
}

func TestRestUpdate(t *testing.T) {
	repo := newRestRepo(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "eq.4", r.URL.Query().Get("id"))
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		if payload["name"] == "missing" {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		_, _ = w.Write([]byte(`[{"id":4,"name":"groceries"}]`))
	})

	row, err := repo.Update(context.Background(), 4, types.F("name", "groceries"))
	require.NoError(t, err)
	assert.Equal(t, "groceries", row.Name)

	row, err = repo.Update(context.Background(), 4, types.F("name", "missing"))
	assert.NoError(t, err)
	assert.Nil(t, row)
}

func TestRestDelete(t *testing.T) {
	repo := newRestRepo(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "eq.abc", r.URL.Query().Get("id"))
		w.WriteHeader(http.StatusNoContent)
	})

	assert.NoError(t, repo.Delete(context.Background(), "abc"))
}

func TestRestCount(t *testing.T) {
	repo := newRestRepo(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		assert.Equal(t, "count=exact", r.Header.Get("Prefer"))
		assert.Equal(t, "eq.food", r.URL.Query().Get("category"))
		w.Header().Set("Content-Range", "0-9/42")
	})

	n, err := repo.Count(context.Background(), types.NewFilter("category", types.OpEq, "food"))
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
}

func TestRestBackendError(t *testing.T) {
	repo := newRestRepo(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"42703","message":"column budgets.nope does not exist"}`))
	})

	_, err := repo.FindMany(context.Background(), types.NewQueryOptions(types.NewFilter("nope", types.OpEq, 1)))
	var apiErr *supabase.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "42703", apiErr.Code)
	assert.Contains(t, err.Error(), "find many budgets")
}
