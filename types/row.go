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

package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// Row is an untyped table row, the natural element type for repositories
// over tables without a Go model.
type Row map[string]interface{}

// Get returns the column value and whether the column is present.
func (r Row) Get(column string) (interface{}, bool) {
	v, ok := r[column]
	return v, ok
}

// String returns the column formatted with %v, or "" when absent or null.
func (r Row) String(column string) string {
	v, ok := r[column]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

// Fields converts the row into column-sorted Fields.
func (r Row) Fields() Fields {
	return FieldsFromMap(r)
}

// Value implements driver.Valuer so a Row can be bound as a JSON parameter.
func (r Row) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	return json.Marshal(r)
}

// Scan implements sql.Scanner for json/jsonb columns.
func (r *Row) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*r = make(Row)
		return nil
	case []byte:
		return json.Unmarshal(v, r)
	case string:
		return json.Unmarshal([]byte(v), r)
	default:
		return errors.New("type assertion must be []byte or string")
	}
}
