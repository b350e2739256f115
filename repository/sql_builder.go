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
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/tomoncle/budgetbase/types"
)

// Statement is SQL text with $n placeholders and its positional parameters.
type Statement struct {
	Query  string `json:"query_text"`
	Params []any  `json:"params"`
}

// SQLBuilder renders repository operations into parameterized Postgres SQL.
// Values only ever travel as parameters; table and column names are
// validated identifiers and are double-quoted.
type SQLBuilder struct {
	table string
	pk    string
}

// NewSQLBuilder validates table and primary key and returns a builder.
func NewSQLBuilder(table, pk string) (*SQLBuilder, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	if err := checkColumn(pk); err != nil {
		return nil, err
	}
	return &SQLBuilder{table: table, pk: pk}, nil
}

// where renders AND-joined predicates with ? placeholders. In values stay
// slices so sqlx.In can expand them.
func where(filters []types.Filter) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}
	if err := checkFilters(filters); err != nil {
		return "", nil, err
	}
	conds := make([]string, len(filters))
	args := make([]any, len(filters))
	for i, f := range filters {
		if f.Operator == types.OpIn {
			items, _ := listValue(f.Value)
			conds[i] = quoteIdent(f.Column) + " IN (?)"
			args[i] = items
			continue
		}
		conds[i] = fmt.Sprintf("%s %s ?", quoteIdent(f.Column), f.Operator.SQL())
		args[i] = holdScalar(f.Value)
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

// heldArg carries a byte-slice scalar (json.RawMessage and friends) through
// sqlx.In, which would otherwise expand it element by element.
type heldArg struct{ v any }

func holdScalar(v any) any {
	if v != nil && reflect.ValueOf(v).Kind() == reflect.Slice {
		return heldArg{v}
	}
	return v
}

// finish expands list arguments and rewrites ? into $n.
func finish(query string, args []any) (Statement, error) {
	if len(args) > 0 {
		var err error
		query, args, err = sqlx.In(query, args...)
		if err != nil {
			return Statement{}, fmt.Errorf("expand parameters: %w", err)
		}
		for i, a := range args {
			if h, ok := a.(heldArg); ok {
				args[i] = h.v
			}
		}
	}
	if args == nil {
		args = []any{}
	}
	return Statement{Query: sqlx.Rebind(sqlx.DOLLAR, query), Params: args}, nil
}

// Select renders SELECT * with filters, ordering and the pagination window.
func (b *SQLBuilder) Select(opts *types.QueryOptions) (Statement, error) {
	if err := checkOptions(opts); err != nil {
		return Statement{}, err
	}
	var q strings.Builder
	q.WriteString("SELECT * FROM " + quoteIdent(b.table))
	var args []any
	if opts != nil {
		clause, whereArgs, err := where(opts.Filters)
		if err != nil {
			return Statement{}, err
		}
		q.WriteString(clause)
		args = whereArgs
		if opts.OrderBy != nil {
			dir := "ASC"
			if opts.OrderBy.Descending {
				dir = "DESC"
			}
			fmt.Fprintf(&q, " ORDER BY %s %s", quoteIdent(opts.OrderBy.Column), dir)
		}
		if limit, offset, ok := opts.Window(); ok {
			fmt.Fprintf(&q, " LIMIT %d", limit)
			if offset > 0 {
				fmt.Fprintf(&q, " OFFSET %d", offset)
			}
		}
	}
	return finish(q.String(), args)
}

// SelectByID renders a primary key lookup. It fetches up to two rows so a
// non-unique key column can be detected.
func (b *SQLBuilder) SelectByID(id any) (Statement, error) {
	if err := checkID(b.pk, id); err != nil {
		return Statement{}, err
	}
	q := fmt.Sprintf("SELECT * FROM %s WHERE %s = ? LIMIT 2", quoteIdent(b.table), quoteIdent(b.pk))
	return finish(q, []any{holdScalar(id)})
}

// Count renders SELECT count(*) with filters.
func (b *SQLBuilder) Count(filters []types.Filter) (Statement, error) {
	clause, args, err := where(filters)
	if err != nil {
		return Statement{}, err
	}
	return finish("SELECT count(*) AS count FROM "+quoteIdent(b.table)+clause, args)
}

// Insert renders INSERT ... RETURNING * with columns in Fields order.
func (b *SQLBuilder) Insert(fields types.Fields) (Statement, error) {
	if err := checkFields(fields); err != nil {
		return Statement{}, err
	}
	cols := make([]string, len(fields))
	marks := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = quoteIdent(f.Column)
		marks[i] = "?"
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		quoteIdent(b.table), strings.Join(cols, ", "), strings.Join(marks, ", "))
	// field values may themselves be slices (array columns), so skip sqlx.In
	return Statement{Query: sqlx.Rebind(sqlx.DOLLAR, q), Params: fields.Values()}, nil
}

// Update renders UPDATE ... SET ... WHERE pk = $n RETURNING *. The id is the
// last parameter.
func (b *SQLBuilder) Update(id any, fields types.Fields) (Statement, error) {
	if err := checkID(b.pk, id); err != nil {
		return Statement{}, err
	}
	if err := checkFields(fields); err != nil {
		return Statement{}, err
	}
	sets := make([]string, len(fields))
	for i, f := range fields {
		sets[i] = quoteIdent(f.Column) + " = ?"
	}
	q := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ? RETURNING *",
		quoteIdent(b.table), strings.Join(sets, ", "), quoteIdent(b.pk))
	return Statement{Query: sqlx.Rebind(sqlx.DOLLAR, q), Params: append(fields.Values(), id)}, nil
}

// Delete renders DELETE ... WHERE pk = $1.
func (b *SQLBuilder) Delete(id any) (Statement, error) {
	if err := checkID(b.pk, id); err != nil {
		return Statement{}, err
	}
	q := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", quoteIdent(b.table), quoteIdent(b.pk))
	return Statement{Query: sqlx.Rebind(sqlx.DOLLAR, q), Params: []any{id}}, nil
}
