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
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Field is one column assignment used by create and update.
type Field struct {
	Column string
	Value  any
}

// Fields is an ordered list of column assignments. Order is preserved in the
// generated SQL column list and in the JSON payload sent to the backend.
type Fields []Field

// F builds Fields from alternating column/value arguments:
//
//	types.F("name", "rent", "amount", 1200)
//
// A trailing column without a value is assigned nil.
func F(kv ...any) Fields {
	fields := make(Fields, 0, (len(kv)+1)/2)
	for i := 0; i < len(kv); i += 2 {
		col := fmt.Sprint(kv[i])
		var val any
		if i+1 < len(kv) {
			val = kv[i+1]
		}
		fields = append(fields, Field{Column: col, Value: val})
	}
	return fields
}

// FieldsFromMap converts a map into Fields with keys sorted ascending, so the
// result is deterministic.
func FieldsFromMap(m map[string]any) Fields {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fields := make(Fields, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, Field{Column: k, Value: m[k]})
	}
	return fields
}

// Set returns a copy with column assigned to value, replacing an existing
// assignment in place or appending a new one.
func (f Fields) Set(column string, value any) Fields {
	out := make(Fields, len(f), len(f)+1)
	copy(out, f)
	for i := range out {
		if out[i].Column == column {
			out[i].Value = value
			return out
		}
	}
	return append(out, Field{Column: column, Value: value})
}

func (f Fields) Columns() []string {
	cols := make([]string, len(f))
	for i, fd := range f {
		cols[i] = fd.Column
	}
	return cols
}

func (f Fields) Values() []any {
	vals := make([]any, len(f))
	for i, fd := range f {
		vals[i] = fd.Value
	}
	return vals
}

// Map returns the assignments as a map. Later duplicates win.
func (f Fields) Map() map[string]any {
	m := make(map[string]any, len(f))
	for _, fd := range f {
		m[fd.Column] = fd.Value
	}
	return m
}

// MarshalJSON encodes Fields as a JSON object in list order.
func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, fd := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(fd.Column)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(fd.Value)
		if err != nil {
			return nil, fmt.Errorf("marshal field %s: %w", fd.Column, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
