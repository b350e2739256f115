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
	"errors"
	"strings"

	"github.com/tomoncle/budgetbase/supabase"
	"github.com/tomoncle/budgetbase/types"
)

// Repository is the uniform CRUD and query surface shared by every strategy.
// Not-found reads and updates return (nil, nil). Failures are returned as
// error values; implementations never panic.
type Repository[T any] interface {
	// FindByID returns the row whose primary key equals id.
	FindByID(ctx context.Context, id any) (*T, error)

	// FindMany returns the rows matching opts. A nil opts selects every row.
	FindMany(ctx context.Context, opts *types.QueryOptions) ([]T, error)

	// Create inserts one row and returns it as stored.
	Create(ctx context.Context, fields types.Fields) (*T, error)

	// Update assigns fields on the row identified by id and returns it.
	Update(ctx context.Context, id any, fields types.Fields) (*T, error)

	// Delete removes the row identified by id.
	Delete(ctx context.Context, id any) error

	// Count returns the number of rows matching filters.
	Count(ctx context.Context, filters ...types.Filter) (int64, error)

	TableName() string
	Strategy() Strategy
}

// Strategy selects how a repository talks to the backend.
//
// StructuredQuery issues PostgREST requests under the caller's API key or
// access token, so row-level security policies apply. RawSQL sends SQL text
// to the query_single, query_many and execute_sql procedures, which run as
// SECURITY DEFINER and therefore bypass row-level security.
type Strategy int

const (
	StructuredQuery Strategy = iota
	RawSQL
)

var _ types.BaseEnum = StructuredQuery

var strategies = []struct {
	name    string
	aliases []string
	desc    string
}{
	{"structured-query", []string{"data-api", "structured", "rest"}, "PostgREST filters, ordering and pagination"},
	{"raw-sql", []string{"sql"}, "parameterized SQL through remote procedures"},
}

// ParseStrategy parses a strategy tag or alias, case-insensitively.
func ParseStrategy(s string) (Strategy, error) {
	tag := strings.ToLower(strings.TrimSpace(s))
	for i, st := range strategies {
		if st.name == tag {
			return Strategy(i), nil
		}
		for _, alias := range st.aliases {
			if alias == tag {
				return Strategy(i), nil
			}
		}
	}
	return Strategy(types.IllegalValue), &StrategyError{Tag: s}
}

// Strategies returns the canonical tags of every strategy.
func Strategies() []string {
	out := make([]string, len(strategies))
	for i, st := range strategies {
		out[i] = st.name
	}
	return out
}

func (s Strategy) IsValid() bool { return s >= 0 && int(s) < len(strategies) }

func (s Strategy) Number() int {
	if !s.IsValid() {
		return types.IllegalValue
	}
	return int(s)
}

func (s Strategy) Name() string {
	if !s.IsValid() {
		return types.IllegalName
	}
	return strategies[s].name
}

func (s Strategy) String() string { return s.Name() }

func (s Strategy) Desc() string {
	if !s.IsValid() {
		return types.IllegalDesc
	}
	return strategies[s].desc
}

// MarshalText and UnmarshalText let a Strategy appear in YAML and JSON config.
func (s Strategy) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, &StrategyError{Tag: s.Name()}
	}
	return []byte(s.Name()), nil
}

func (s *Strategy) UnmarshalText(text []byte) error {
	parsed, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

var (
	// ErrUnknownStrategy is returned by ParseStrategy and New for a strategy
	// outside the supported set.
	ErrUnknownStrategy = errors.New("unknown repository strategy")
	// ErrUnknownOperator is returned per call for a filter operator outside
	// the supported set.
	ErrUnknownOperator = errors.New("unknown filter operator")
	// ErrInvalidFilter is returned for a filter whose value does not fit its
	// operator, or for negative pagination.
	ErrInvalidFilter = errors.New("invalid filter")
	// ErrInvalidIdentifier is returned for a table or column name that is not
	// a plain SQL identifier.
	ErrInvalidIdentifier = errors.New("invalid identifier")
	// ErrEmptyFields is returned by Create and Update without any field.
	ErrEmptyFields = errors.New("no fields to write")
	// ErrMultipleRows is returned by FindByID when the key matches more than
	// one row.
	ErrMultipleRows = errors.New("multiple rows match primary key")
	// ErrNilClient is returned by New without a backend client.
	ErrNilClient = errors.New("repository client is nil")
)

// StrategyError reports an unrecognised strategy tag.
type StrategyError struct {
	Tag string
}

func (e *StrategyError) Error() string {
	return "unknown repository strategy: " + e.Tag + ", supported strategies: " + strings.Join(Strategies(), ", ")
}

func (e *StrategyError) Unwrap() error { return ErrUnknownStrategy }

// QueryClient starts PostgREST requests against a table.
type QueryClient interface {
	From(table string) *supabase.QueryBuilder
}

// ProcedureCaller invokes a remote procedure and returns its JSON payload.
type ProcedureCaller interface {
	RPC(ctx context.Context, fn string, params any) ([]byte, error)
}

// Client is the backend handle a repository is bound to. *supabase.Client
// satisfies it.
type Client interface {
	QueryClient
	ProcedureCaller
}

type composedClient struct {
	QueryClient
	ProcedureCaller
}

// Compose joins a structured query handle with a separate procedure caller,
// such as a database.Executor connected directly to Postgres.
func Compose(query QueryClient, procs ProcedureCaller) Client {
	return composedClient{QueryClient: query, ProcedureCaller: procs}
}
