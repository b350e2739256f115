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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tomoncle/budgetbase/database"
	"github.com/tomoncle/budgetbase/types"
	"github.com/tomoncle/budgetbase/utils"
)

// Names of the remote procedures the raw SQL strategy depends on.
const (
	ProcQuerySingle = database.ProcQuerySingle
	ProcQueryMany   = database.ProcQueryMany
	ProcExecuteSQL  = database.ProcExecuteSQL
)

// sqlRepository renders each call into parameterized SQL and runs it through
// one of the three procedures.
type sqlRepository[T any] struct {
	procs   ProcedureCaller
	table   string
	builder *SQLBuilder
	log     database.Logger
}

var _ Repository[types.Row] = (*sqlRepository[types.Row])(nil)

func (r *sqlRepository[T]) TableName() string  { return r.table }
func (r *sqlRepository[T]) Strategy() Strategy { return RawSQL }

func (r *sqlRepository[T]) call(ctx context.Context, op, fn string, stmt Statement) ([]byte, error) {
	start := time.Now()
	out, err := r.procs.RPC(ctx, fn, stmt)
	if err != nil {
		r.log.Warn("sql procedure failed", "table", r.table, "op", op, "procedure", fn, "error", err)
		return nil, fmt.Errorf("%s %s: %w", op, r.table, err)
	}
	r.log.Debug("sql procedure", "table", r.table, "op", op, "procedure", fn,
		"query", stmt.Query, "params", len(stmt.Params), "elapsed", utils.Elapsed(start))
	return out, nil
}

func isNull(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func decodeSingle[T any](op, table string, body []byte) (*T, error) {
	if isNull(body) {
		return nil, nil
	}
	var row T
	if err := json.Unmarshal(body, &row); err != nil {
		return nil, fmt.Errorf("%s %s: decode row: %w", op, table, err)
	}
	return &row, nil
}

func (r *sqlRepository[T]) FindByID(ctx context.Context, id any) (*T, error) {
	stmt, err := r.builder.SelectByID(id)
	if err != nil {
		return nil, err
	}
	out, err := r.call(ctx, "find by id", ProcQueryMany, stmt)
	if err != nil {
		return nil, err
	}
	if isNull(out) {
		return nil, nil
	}
	rows, err := decodeRows[T]("find by id", r.table, out)
	if err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, nil
	case 1:
		return &rows[0], nil
	default:
		return nil, fmt.Errorf("find by id %s: %w", r.table, ErrMultipleRows)
	}
}

func (r *sqlRepository[T]) FindMany(ctx context.Context, opts *types.QueryOptions) ([]T, error) {
	stmt, err := r.builder.Select(opts)
	if err != nil {
		return nil, err
	}
	out, err := r.call(ctx, "find many", ProcQueryMany, stmt)
	if err != nil {
		return nil, err
	}
	if isNull(out) {
		return make([]T, 0), nil
	}
	return decodeRows[T]("find many", r.table, out)
}

func (r *sqlRepository[T]) Create(ctx context.Context, fields types.Fields) (*T, error) {
	stmt, err := r.builder.Insert(fields)
	if err != nil {
		return nil, err
	}
	out, err := r.call(ctx, "create", ProcQuerySingle, stmt)
	if err != nil {
		return nil, err
	}
	row, err := decodeSingle[T]("create", r.table, out)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("create %s: no row returned", r.table)
	}
	return row, nil
}

func (r *sqlRepository[T]) Update(ctx context.Context, id any, fields types.Fields) (*T, error) {
	stmt, err := r.builder.Update(id, fields)
	if err != nil {
		return nil, err
	}
	out, err := r.call(ctx, "update", ProcQuerySingle, stmt)
	if err != nil {
		return nil, err
	}
	return decodeSingle[T]("update", r.table, out)
}

func (r *sqlRepository[T]) Delete(ctx context.Context, id any) error {
	stmt, err := r.builder.Delete(id)
	if err != nil {
		return err
	}
	_, err = r.call(ctx, "delete", ProcExecuteSQL, stmt)
	return err
}

func (r *sqlRepository[T]) Count(ctx context.Context, filters ...types.Filter) (int64, error) {
	stmt, err := r.builder.Count(filters)
	if err != nil {
		return 0, err
	}
	out, err := r.call(ctx, "count", ProcQuerySingle, stmt)
	if err != nil {
		return 0, err
	}
	var res struct {
		Count json.Number `json:"count"`
	}
	if isNull(out) {
		return 0, nil
	}
	if err := json.Unmarshal(out, &res); err != nil {
		return 0, fmt.Errorf("count %s: decode: %w", r.table, err)
	}
	n, err := res.Count.Int64()
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", r.table, err)
	}
	return n, nil
}
