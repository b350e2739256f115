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
	"fmt"
	"time"

	"github.com/tomoncle/budgetbase/database"
	"github.com/tomoncle/budgetbase/supabase"
	"github.com/tomoncle/budgetbase/types"
	"github.com/tomoncle/budgetbase/utils"
)

// restRepository translates each call into one PostgREST request.
type restRepository[T any] struct {
	client QueryClient
	table  string
	pk     string
	log    database.Logger
}

var _ Repository[types.Row] = (*restRepository[types.Row])(nil)

func (r *restRepository[T]) TableName() string  { return r.table }
func (r *restRepository[T]) Strategy() Strategy { return StructuredQuery }

func applyFilters(q *supabase.QueryBuilder, filters []types.Filter) *supabase.QueryBuilder {
	for _, f := range filters {
		if f.Operator == types.OpIn {
			items, _ := listValue(f.Value)
			q = q.In(f.Column, items)
			continue
		}
		q = q.Filter(f.Column, supabase.FilterOperator(f.Operator), f.Value)
	}
	return q
}

func (r *restRepository[T]) execute(ctx context.Context, op string, q *supabase.QueryBuilder) (*supabase.Response, error) {
	start := time.Now()
	resp, err := q.Execute(ctx)
	if err != nil {
		r.log.Warn("structured query failed", "table", r.table, "op", op, "error", err)
		return nil, fmt.Errorf("%s %s: %w", op, r.table, err)
	}
	r.log.Debug("structured query", "table", r.table, "op", op, "method", q.Method(),
		"status", resp.StatusCode, "elapsed", utils.Elapsed(start))
	return resp, nil
}

func decodeRows[T any](op, table string, body []byte) ([]T, error) {
	rows := make([]T, 0)
	if len(body) == 0 {
		return rows, nil
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("%s %s: decode rows: %w", op, table, err)
	}
	return rows, nil
}

func (r *restRepository[T]) FindByID(ctx context.Context, id any) (*T, error) {
	if err := checkID(r.pk, id); err != nil {
		return nil, err
	}
	resp, err := r.execute(ctx, "find by id", r.client.From(r.table).Select("*").Eq(r.pk, id).Limit(2))
	if err != nil {
		return nil, err
	}
	rows, err := decodeRows[T]("find by id", r.table, resp.Body)
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

func (r *restRepository[T]) FindMany(ctx context.Context, opts *types.QueryOptions) ([]T, error) {
	if err := checkOptions(opts); err != nil {
		return nil, err
	}
	q := r.client.From(r.table).Select("*")
	if opts != nil {
		q = applyFilters(q, opts.Filters)
		if opts.OrderBy != nil {
			q = q.Order(opts.OrderBy.Column, !opts.OrderBy.Descending)
		}
		if limit, offset, ok := opts.Window(); ok {
			q = q.Limit(limit)
			if offset > 0 {
				q = q.Offset(offset)
			}
		}
	}
	resp, err := r.execute(ctx, "find many", q)
	if err != nil {
		return nil, err
	}
	return decodeRows[T]("find many", r.table, resp.Body)
}

func (r *restRepository[T]) Create(ctx context.Context, fields types.Fields) (*T, error) {
	if err := checkFields(fields); err != nil {
		return nil, err
	}
	resp, err := r.execute(ctx, "create", r.client.From(r.table).Insert(fields))
	if err != nil {
		return nil, err
	}
	rows, err := decodeRows[T]("create", r.table, resp.Body)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		// row-level security can hide the inserted row from the returned representation
		return nil, fmt.Errorf("create %s: no row returned", r.table)
	}
	return &rows[0], nil
}

func (r *restRepository[T]) Update(ctx context.Context, id any, fields types.Fields) (*T, error) {
	if err := checkID(r.pk, id); err != nil {
		return nil, err
	}
	if err := checkFields(fields); err != nil {
		return nil, err
	}
	resp, err := r.execute(ctx, "update", r.client.From(r.table).Update(fields).Eq(r.pk, id))
	if err != nil {
		return nil, err
	}
	rows, err := decodeRows[T]("update", r.table, resp.Body)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

func (r *restRepository[T]) Delete(ctx context.Context, id any) error {
	if err := checkID(r.pk, id); err != nil {
		return err
	}
	_, err := r.execute(ctx, "delete", r.client.From(r.table).Delete().Eq(r.pk, id))
	return err
}

func (r *restRepository[T]) Count(ctx context.Context, filters ...types.Filter) (int64, error) {
	if err := checkFilters(filters); err != nil {
		return 0, err
	}
	q := applyFilters(r.client.From(r.table).Select("*").Head().Count(supabase.CountExact), filters)
	resp, err := r.execute(ctx, "count", q)
	if err != nil {
		return 0, err
	}
	n, err := resp.Count()
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", r.table, err)
	}
	return n, nil
}
