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
	"net/http"
	"strings"

	"github.com/lib/pq"

	"github.com/tomoncle/budgetbase/supabase"
)

type SQLError int

const (
	UnknownErr SQLError = iota
	NoRowsErr
	NoColumnErr
	NoTableErr
	NoFunctionErr
	ExistTableErr
	DuplicateKeyErr
	NotNullViolationErr
	ForeignKeyViolationErr
	CheckConstraintViolationErr
	DataTruncatedErr
	InvalidTypeCastErr
	InvalidTextErr
	SyntaxErr
	PermissionDeniedErr
)

var sqlStates = map[SQLError]string{
	NoColumnErr:                 "42703",
	NoTableErr:                  "42P01",
	NoFunctionErr:               "42883",
	ExistTableErr:               "42P07",
	DuplicateKeyErr:             "23505",
	NotNullViolationErr:         "23502",
	ForeignKeyViolationErr:      "23503",
	CheckConstraintViolationErr: "23514",
	DataTruncatedErr:            "22001",
	InvalidTypeCastErr:          "42804",
	InvalidTextErr:              "22P02",
	SyntaxErr:                   "42601",
	PermissionDeniedErr:         "42501",
}

// SQLState returns the Postgres SQLSTATE code of the class, or "" for
// UnknownErr and NoRowsErr.
func (e SQLError) SQLState() string { return sqlStates[e] }

// IsSqlError classifies a driver error. Postgres errors are matched on their
// SQLSTATE; other drivers (sqlite) fall back to message matching.
func IsSqlError(err error) (is bool, sqlErr SQLError) {
	if err == nil {
		return false, UnknownErr
	}
	if errors.Is(err, sql.ErrNoRows) {
		return true, NoRowsErr
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		for kind, state := range sqlStates {
			if state == code {
				return true, kind
			}
		}
		return true, UnknownErr
	}
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "no such column"):
		return true, NoColumnErr
	case strings.Contains(s, "no such table"):
		return true, NoTableErr
	case strings.Contains(s, "no such function"):
		return true, NoFunctionErr
	case strings.Contains(s, "already exists") && strings.Contains(s, "table"):
		return true, ExistTableErr
	case strings.Contains(s, "unique constraint failed"):
		return true, DuplicateKeyErr
	case strings.Contains(s, "not null constraint failed"):
		return true, NotNullViolationErr
	case strings.Contains(s, "foreign key constraint failed"):
		return true, ForeignKeyViolationErr
	case strings.Contains(s, "check constraint failed"):
		return true, CheckConstraintViolationErr
	case strings.Contains(s, "syntax error"):
		return true, SyntaxErr
	}
	return false, UnknownErr
}

// statusFor follows the PostgREST mapping from SQLSTATE to HTTP status.
func statusFor(code string) int {
	switch {
	case code == "23505", code == "23503":
		return http.StatusConflict
	case code == "42501":
		return http.StatusForbidden
	case code == "42P01", code == "42883":
		return http.StatusNotFound
	case strings.HasPrefix(code, "22"), strings.HasPrefix(code, "23"), strings.HasPrefix(code, "42"):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ClassifySQLError converts a driver error into the *supabase.Error the
// hosted gateway would have reported for it, so callers handle both the
// same way. Context errors and nil pass through unchanged.
func ClassifySQLError(err error) error {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *supabase.Error
	if errors.As(err, &apiErr) {
		return err
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		return &supabase.Error{
			Code:       code,
			Message:    pqErr.Message,
			Details:    pqErr.Detail,
			Hint:       pqErr.Hint,
			StatusCode: statusFor(code),
		}
	}
	code := ""
	if ok, kind := IsSqlError(err); ok {
		code = kind.SQLState()
	}
	return &supabase.Error{
		Code:       code,
		Message:    err.Error(),
		StatusCode: statusFor(code),
	}
}
