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
	"github.com/tomoncle/budgetbase/database"
	"github.com/tomoncle/budgetbase/supabase"
)

// DefaultPrimaryKey is the key column used unless WithPrimaryKey is given.
const DefaultPrimaryKey = "id"

type options struct {
	primaryKey string
	logger     database.Logger
}

// Option customises a repository built by New.
type Option func(*options)

// WithPrimaryKey sets the column FindByID, Update and Delete match on.
func WithPrimaryKey(column string) Option {
	return func(o *options) { o.primaryKey = column }
}

// WithLogger sets the logger backend calls are reported to.
func WithLogger(logger database.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New returns the repository implementation for strategy, bound to client
// and table. An unknown strategy, a nil client or an invalid table or key
// name fails here rather than on first use.
func New[T any](client Client, table string, strategy Strategy, opts ...Option) (Repository[T], error) {
	if !strategy.IsValid() {
		return nil, &StrategyError{Tag: strategy.Name()}
	}
	if client == nil {
		return nil, ErrNilClient
	}
	if c, ok := client.(*supabase.Client); ok && c == nil {
		return nil, ErrNilClient
	}
	if c, ok := client.(composedClient); ok {
		if strategy == StructuredQuery && c.QueryClient == nil {
			return nil, ErrNilClient
		}
		if strategy == RawSQL && c.ProcedureCaller == nil {
			return nil, ErrNilClient
		}
	}

	o := options{primaryKey: DefaultPrimaryKey}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = database.NewLogger("REPOSITORY")
	}
	if err := checkTable(table); err != nil {
		return nil, err
	}
	if err := checkColumn(o.primaryKey); err != nil {
		return nil, err
	}

	switch strategy {
	case RawSQL:
		builder, err := NewSQLBuilder(table, o.primaryKey)
		if err != nil {
			return nil, err
		}
		return &sqlRepository[T]{procs: client, table: table, builder: builder, log: o.logger}, nil
	default:
		return &restRepository[T]{client: client, table: table, pk: o.primaryKey, log: o.logger}, nil
	}
}

// NewFromTag is New with the strategy given as a tag such as "data-api" or
// "sql".
func NewFromTag[T any](client Client, table, tag string, opts ...Option) (Repository[T], error) {
	strategy, err := ParseStrategy(tag)
	if err != nil {
		return nil, err
	}
	return New[T](client, table, strategy, opts...)
}
