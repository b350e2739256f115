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

package database

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/tomoncle/budgetbase/supabase"
)

func newMockExecutor(t *testing.T, opts ...ExecutorOption) (*Executor, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	db := bun.NewDB(sqlDB, pgdialect.New())
	t.Cleanup(func() { _ = db.Close() })
	return NewExecutor(db, opts...), mock
}

func call(query string, params ...any) ProcedureCall {
	if params == nil {
		params = []any{}
	}
	return ProcedureCall{QueryText: query, Params: params}
}

func TestExecutorQuerySingle(t *testing.T) {
	exec, mock := newMockExecutor(t)
	query := `SELECT * FROM "budgets" WHERE "id" = $1 LIMIT 1`
	mock.ExpectQuery(query).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(7, "groceries"))

	out, err := exec.RPC(context.Background(), ProcQuerySingle, call(query, 7))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":7,"name":"groceries"}`, string(out))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutorQuerySingleNoRows(t *testing.T) {
	exec, mock := newMockExecutor(t)
	query := `SELECT * FROM "budgets" WHERE "id" = $1`
	mock.ExpectQuery(query).
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

	out, err := exec.RPC(context.Background(), ProcQuerySingle, call(query, 404))
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutorQueryMany(t *testing.T) {
	exec, mock := newMockExecutor(t)
	query := `SELECT * FROM "budgets" WHERE "amount" >= $1 ORDER BY "id" ASC LIMIT 10`
	mock.ExpectQuery(query).
		WithArgs(2.5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "amount"}).AddRow(1, 3.5).AddRow(2, 4.0))

	out, err := exec.RPC(context.Background(), ProcQueryMany, call(query, 2.5))
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1,"amount":3.5},{"id":2,"amount":4}]`, string(out))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutorQueryManyEmpty(t *testing.T) {
	exec, mock := newMockExecutor(t)
	query := `SELECT * FROM "budgets"`
	mock.ExpectQuery(query).WillReturnRows(sqlmock.NewRows([]string{"id"}))

	out, err := exec.RPC(context.Background(), ProcQueryMany, call(query))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(out))
}

func TestExecutorExecuteSQL(t *testing.T) {
	exec, mock := newMockExecutor(t)
	query := `DELETE FROM "budgets" WHERE "id" = $1`
	mock.ExpectExec(query).WithArgs("abc").WillReturnResult(sqlmock.NewResult(0, 1))

	out, err := exec.RPC(context.Background(), ProcExecuteSQL, call(query, "abc"))
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutorKeepsInjectionInParams(t *testing.T) {
	exec, mock := newMockExecutor(t)
	query := `SELECT * FROM "budgets" WHERE "name" = $1`
	payload := "1); DROP TABLE x;--"
	mock.ExpectQuery(query).WithArgs(payload).WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := exec.RPC(context.Background(), ProcQueryMany, call(query, payload))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutorBindsObjectAndList(t *testing.T) {
	exec, mock := newMockExecutor(t)
	query := `UPDATE "budgets" SET "meta" = $1, "tags" = $2 WHERE "id" = $3`
	mock.ExpectExec(query).
		WithArgs(`{"a":1}`, `{"food","rent"}`, int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	params := []any{map[string]any{"a": 1}, []string{"food", "rent"}, 3}
	_, err := exec.RPC(context.Background(), ProcExecuteSQL, ProcedureCall{QueryText: query, Params: params})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutorRejectsBadCalls(t *testing.T) {
	exec, _ := newMockExecutor(t)

	_, err := exec.RPC(context.Background(), ProcQueryMany, call("   "))
	var apiErr *supabase.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "PGRST102", apiErr.Code)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)

	_, err = exec.RPC(context.Background(), ProcQueryMany, func() {})
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "PGRST102", apiErr.Code)

	_, err = exec.RPC(context.Background(), "drop_everything", call("SELECT 1"))
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "PGRST202", apiErr.Code)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestExecutorClassifiesDriverErrors(t *testing.T) {
	exec, mock := newMockExecutor(t)
	query := `INSERT INTO "budgets" ("id") VALUES ($1) RETURNING *`
	mock.ExpectQuery(query).
		WithArgs(int64(1)).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint", Detail: "Key (id)=(1) already exists."})

	_, err := exec.RPC(context.Background(), ProcQuerySingle, call(query, 1))
	var apiErr *supabase.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "23505", apiErr.Code)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "Key (id)=(1) already exists.", apiErr.Details)
}

func TestExecutorContextErrorPassesThrough(t *testing.T) {
	exec, mock := newMockExecutor(t)
	query := `SELECT 1`
	mock.ExpectQuery(query).WillReturnError(context.Canceled)

	_, err := exec.RPC(context.Background(), ProcQueryMany, call(query))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestJSONValue(t *testing.T) {
	assert.Equal(t, json.RawMessage(`{"a":1}`), jsonValue([]byte(`{"a":1}`)))
	assert.Equal(t, json.RawMessage(`[1,2]`), jsonValue([]byte(` [1,2] `)))
	assert.Equal(t, "42", jsonValue([]byte("42")))
	assert.Equal(t, "plain", jsonValue([]byte("plain")))
	assert.Equal(t, int64(5), jsonValue(int64(5)))
}
