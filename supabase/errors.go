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

package supabase

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrReservedColumn is returned by Execute when a filter names a column that
// PostgREST reads as a query parameter (select, order, limit and so on).
var ErrReservedColumn = errors.New("column name is a reserved PostgREST parameter")

// Error is a PostgREST or Postgres error reported by the server.
type Error struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	Hint       string `json:"hint,omitempty"`
	StatusCode int    `json:"-"`
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Code != "" {
		msg = fmt.Sprintf("%s (code %s)", msg, e.Code)
	}
	if e.Details != "" {
		msg += ": " + e.Details
	}
	return fmt.Sprintf("supabase: %d %s", e.StatusCode, msg)
}

// IsNotFound reports whether err is a PostgREST "no rows" style error:
// a 404 or the single-object PGRST116 code.
func IsNotFound(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.StatusCode == http.StatusNotFound || e.Code == "PGRST116"
}

// ErrorCode returns the server error code of err, or "" when err is not an
// *Error.
func ErrorCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func parseError(body []byte, status int) error {
	e := &Error{StatusCode: status}
	var payload struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
		Hint    string          `json:"hint"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || (payload.Message == "" && payload.Code == "") {
		e.Message = string(body)
		return e
	}
	e.Code = payload.Code
	e.Message = payload.Message
	e.Hint = payload.Hint
	if len(payload.Details) > 0 && string(payload.Details) != "null" {
		// details is a string in PostgREST errors but an object in some gateway errors
		var details string
		if json.Unmarshal(payload.Details, &details) != nil {
			details = string(payload.Details)
		}
		e.Details = details
	}
	return e
}
