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

package cli

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tomoncle/budgetbase/repository"
	"github.com/tomoncle/budgetbase/types"
)

// FindOptions holds flags for the find command.
type FindOptions struct {
	*RootOptions
	Filters []string
	Order   string
	Limit   int
	Offset  int
	Count   bool
}

// NewFindCommand creates the find command.
func NewFindCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FindOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "find <table>",
		Short: "List rows of a table",
		Long: `List rows of a table.

Example:
  budgetctl find transactions --filter amount:gte:100 --filter category:in:food,rent --order date:desc --limit 20`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := opts.queryOptions()
			if err != nil {
				return err
			}
			repo, closeFn, err := opts.openRepository(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer closeFn()

			if opts.Count {
				n, err := repo.Count(cmd.Context(), q.Filters...)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), map[string]int64{"count": n})
			}
			rows, err := repo.FindMany(cmd.Context(), q)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rows)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Filters, "filter", "f", nil, "filter as column:operator:value, repeatable; in takes a comma separated list")
	cmd.Flags().StringVarP(&opts.Order, "order", "o", "", "order as column or column:desc")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "l", -1, "maximum rows")
	cmd.Flags().IntVar(&opts.Offset, "offset", -1, "rows to skip")
	cmd.Flags().BoolVar(&opts.Count, "count", false, "print the matching row count only")

	return cmd
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "get <table> <id>",
		Short: "Show one row by primary key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, closeFn, err := rootOpts.openRepository(cmd.Context(), args[0], repository.WithPrimaryKey(key))
			if err != nil {
				return err
			}
			defer closeFn()

			row, err := repo.FindByID(cmd.Context(), ParseValue(args[1]))
			if err != nil {
				return err
			}
			if row == nil {
				return fmt.Errorf("%s %s not found", args[0], args[1])
			}
			return writeJSON(cmd.OutOrStdout(), row)
		},
	}

	cmd.Flags().StringVar(&key, "key", "id", "primary key column")

	return cmd
}

func (o *FindOptions) queryOptions() (*types.QueryOptions, error) {
	q := &types.QueryOptions{}
	for _, raw := range o.Filters {
		f, err := ParseFilter(raw)
		if err != nil {
			return nil, err
		}
		q.Filters = append(q.Filters, f)
	}
	if o.Order != "" {
		q.OrderBy = ParseOrder(o.Order)
	}
	if o.Limit >= 0 {
		q.Limit = &o.Limit
	}
	if o.Offset >= 0 {
		q.Offset = &o.Offset
	}
	return q, nil
}

// ParseFilter parses column:operator:value. The value may itself contain
// colons. For in, the value is split on commas.
func ParseFilter(s string) (types.Filter, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 || parts[0] == "" {
		return types.Filter{}, fmt.Errorf("invalid filter %q: want column:operator:value", s)
	}
	op, ok := types.ParseOperator(parts[1])
	if !ok {
		return types.Filter{}, fmt.Errorf("invalid filter %q: unknown operator %q, supported operators: %v", s, parts[1], types.Operators())
	}
	if op == types.OpIn {
		items := strings.Split(parts[2], ",")
		values := make([]any, len(items))
		for i, item := range items {
			values[i] = ParseValue(strings.TrimSpace(item))
		}
		return types.NewFilter(parts[0], op, values), nil
	}
	return types.NewFilter(parts[0], op, ParseValue(parts[2])), nil
}

// ParseOrder parses column or column:desc (column:asc is accepted too).
func ParseOrder(s string) *types.OrderBy {
	col, dir, _ := strings.Cut(s, ":")
	return &types.OrderBy{Column: col, Descending: strings.EqualFold(dir, "desc")}
}

var decimalPattern = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// ParseValue turns a command line value into an int64, a finite decimal
// float64, a bool or a string. Integers outside the int64 range stay strings.
func ParseValue(s string) any {
	n, err := strconv.ParseInt(s, 10, 64)
	if err == nil {
		return n
	}
	if errors.Is(err, strconv.ErrRange) {
		return s
	}
	if decimalPattern.MatchString(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) {
			return f
		}
	}
	if s == "true" || s == "false" {
		return s == "true"
	}
	return s
}
