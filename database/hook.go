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
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/uptrace/bun"
)

// QueryDebugEnv overrides QueryHook at runtime: "0" or empty disables it,
// "1" prints failed statements, "2" prints every statement.
const QueryDebugEnv = "BUDGETBASE_SQL_DEBUG"

var operationColors = map[string]color.Attribute{
	"SELECT": color.FgGreen,
	"INSERT": color.FgBlue,
	"UPDATE": color.FgYellow,
	"DELETE": color.FgMagenta,
}

// QueryHook prints statements in color. It is installed on the bun DB for
// bun-issued statements and called directly by the Executor for procedure
// statements.
type QueryHook struct {
	enabled bool
	verbose bool
	writer  io.Writer
}

var _ bun.QueryHook = (*QueryHook)(nil)

// NewQueryHook returns a hook writing to w, or stdout when w is nil.
func NewQueryHook(enabled, verbose bool, w io.Writer) *QueryHook {
	if w == nil {
		w = os.Stdout
	}
	return &QueryHook{enabled: enabled, verbose: verbose, writer: w}
}

func (h *QueryHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

func (h *QueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	h.Record(event.Operation(), event.Query, event.StartTime, event.Err)
}

func (h *QueryHook) mode() (enabled, verbose bool) {
	enabled, verbose = h.enabled, h.verbose
	if env, ok := os.LookupEnv(QueryDebugEnv); ok {
		enabled = env != "" && env != "0"
		verbose = env == "2"
	}
	return enabled, verbose
}

// Record prints one finished statement.
func (h *QueryHook) Record(operation, query string, start time.Time, err error) {
	if h == nil {
		return
	}
	enabled, verbose := h.mode()
	if !enabled {
		return
	}
	if !verbose && (err == nil || errors.Is(err, sql.ErrNoRows) || errors.Is(err, sql.ErrTxDone)) {
		return
	}

	now := time.Now()
	attr, ok := operationColors[strings.ToUpper(operation)]
	if !ok {
		attr = color.FgRed
	}
	args := []interface{}{
		now.Format("2006-01-02 15:04:05.000"),
		color.New(color.FgCyan).Sprintf("%8s", "[SQL]"),
		fmt.Sprintf("%12s", now.Sub(start).Round(time.Microsecond)),
		" ", color.New(attr).Sprint(query),
	}
	if err != nil {
		typ := reflect.TypeOf(err).String()
		args = append(args, "\t", color.New(color.BgRed).Sprintf(" %s: %s ", typ, err.Error()))
	}
	_, _ = fmt.Fprintln(h.writer, args...)
}

// slowQueryHook warns through the Logger when a successful statement takes
// longer than slowTime.
type slowQueryHook struct {
	slowTime time.Duration
	logger   Logger
}

func (h *slowQueryHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

func (h *slowQueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	h.Record(event.Query, event.StartTime, event.Err)
}

func (h *slowQueryHook) Record(query string, start time.Time, err error) {
	if h == nil || h.slowTime <= 0 || err != nil || h.logger == nil {
		return
	}
	if d := time.Since(start); d > h.slowTime {
		h.logger.Warn("Slow query detected", "duration", d.Round(time.Microsecond), "slow_threshold", h.slowTime, "query", query)
	}
}

// operationOf returns the leading SQL keyword of query.
func operationOf(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	op := strings.ToUpper(fields[0])
	if op == "WITH" {
		for _, f := range fields[1:] {
			switch u := strings.ToUpper(strings.TrimLeft(f, "(")); u {
			case "SELECT", "INSERT", "UPDATE", "DELETE":
				return u
			}
		}
	}
	return op
}
