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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"github.com/tomoncle/budgetbase/supabase"
)

// Names of the remote procedures used by the raw SQL repository strategy.
const (
	ProcQuerySingle = "query_single"
	ProcQueryMany   = "query_many"
	ProcExecuteSQL  = "execute_sql"
)

// ProcedureCall is the request body every procedure accepts.
type ProcedureCall struct {
	QueryText string `json:"query_text"`
	Params    []any  `json:"params"`
}

// Executor runs query_single, query_many and execute_sql against a directly
// connected database with the same request and response shapes as the
// installed procedures. It satisfies repository.ProcedureCaller.
type Executor struct {
	db     *bun.DB
	logger Logger
	hook   *QueryHook
	slow   *slowQueryHook
}

type ExecutorOption func(*Executor)

func WithExecutorLogger(logger Logger) ExecutorOption {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithQueryHook prints every procedure statement through h.
func WithQueryHook(h *QueryHook) ExecutorOption {
	return func(e *Executor) { e.hook = h }
}

// WithSlowQueryThreshold warns about statements slower than d.
func WithSlowQueryThreshold(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.slow = &slowQueryHook{slowTime: d} }
}

func NewExecutor(db *bun.DB, opts ...ExecutorOption) *Executor {
	e := &Executor{db: db, logger: NopLogger{}}
	for _, opt := range opts {
		opt(e)
	}
	if e.slow != nil {
		e.slow.logger = e.logger
	}
	return e
}

// RPC dispatches fn. Driver errors come back as *supabase.Error.
func (e *Executor) RPC(ctx context.Context, fn string, params any) ([]byte, error) {
	call, err := decodeCall(params)
	if err != nil {
		return nil, &supabase.Error{Code: "PGRST102", Message: err.Error(), StatusCode: http.StatusBadRequest}
	}
	if strings.TrimSpace(call.QueryText) == "" {
		return nil, &supabase.Error{Code: "PGRST102", Message: "query_text is required", StatusCode: http.StatusBadRequest}
	}
	args := e.bindArgs(call.Params)

	switch fn {
	case ProcQuerySingle:
		rows, err := e.query(ctx, call.QueryText, args)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return []byte("null"), nil
		}
		return json.Marshal(rows[0])
	case ProcQueryMany:
		rows, err := e.query(ctx, call.QueryText, args)
		if err != nil {
			return nil, err
		}
		return json.Marshal(rows)
	case ProcExecuteSQL:
		return nil, e.exec(ctx, call.QueryText, args)
	default:
		return nil, &supabase.Error{
			Code:       "PGRST202",
			Message:    fmt.Sprintf("Could not find the function public.%s(params, query_text)", fn),
			StatusCode: http.StatusNotFound,
		}
	}
}

func (e *Executor) query(ctx context.Context, query string, args []any) ([]map[string]interface{}, error) {
	start := time.Now()
	rows, err := e.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		e.record(query, start, err)
		return nil, ClassifySQLError(err)
	}
	out := make([]map[string]interface{}, 0)
	err = e.db.ScanRows(ctx, rows, &out)
	e.record(query, start, err)
	if err != nil {
		return nil, ClassifySQLError(err)
	}
	for _, row := range out {
		for k, v := range row {
			row[k] = jsonValue(v)
		}
	}
	return out, nil
}

func (e *Executor) exec(ctx context.Context, query string, args []any) error {
	start := time.Now()
	_, err := e.db.DB.ExecContext(ctx, query, args...)
	e.record(query, start, err)
	return ClassifySQLError(err)
}

func (e *Executor) record(query string, start time.Time, err error) {
	e.hook.Record(operationOf(query), query, start, err)
	e.slow.Record(query, start, err)
	if err != nil {
		e.logger.Debug("Procedure statement failed", "query", query, "error", err)
	}
}

func decodeCall(params any) (ProcedureCall, error) {
	var call ProcedureCall
	raw, err := json.Marshal(params)
	if err != nil {
		return call, fmt.Errorf("encode params: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&call); err != nil {
		return call, fmt.Errorf("decode params: %w", err)
	}
	return call, nil
}

// bindArgs converts JSON decoded parameters into driver values: integral
// numbers to int64, objects to JSON text and lists to Postgres arrays (JSON
// text on other dialects).
func (e *Executor) bindArgs(params []any) []any {
	args := make([]any, len(params))
	for i, p := range params {
		args[i] = e.bindArg(p)
	}
	return args
}

func (e *Executor) bindArg(p any) any {
	switch v := p.(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
		f, _ := v.Float64()
		return f
	case map[string]any:
		b, _ := json.Marshal(v)
		return string(b)
	case []any:
		if e.db.Dialect().Name() == dialect.PG {
			items := make([]any, len(v))
			for i, item := range v {
				items[i] = e.bindArg(item)
			}
			return pq.Array(items)
		}
		b, _ := json.Marshal(v)
		return string(b)
	default:
		return v
	}
}

// jsonValue keeps json/jsonb columns as nested JSON and other byte columns as
// text.
func jsonValue(v interface{}) interface{} {
	b, ok := v.([]byte)
	if !ok {
		return v
	}
	if json.Valid(b) {
		trimmed := bytes.TrimSpace(b)
		if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
			return json.RawMessage(bytes.Clone(trimmed))
		}
	}
	return string(b)
}
