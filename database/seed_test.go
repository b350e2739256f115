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
	"errors"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomoncle/budgetbase/supabase"
)

func TestSplitStatements(t *testing.T) {
	script := `-- budgets
insert into budgets (id, name) values (1, 'rent');

insert into budgets (id, name)
values (2, 'food');
create function touch() returns trigger as $$
begin
  new.updated_at := now();
  return new;
end;
$$ language plpgsql;
`
	statements := SplitStatements(script)
	require.Len(t, statements, 3)
	assert.Equal(t, "insert into budgets (id, name) values (1, 'rent');", statements[0])
	assert.Equal(t, "insert into budgets (id, name)\nvalues (2, 'food');", statements[1])
	assert.Contains(t, statements[2], "return new;\nend;\n$$ language plpgsql;")
}

func TestSplitStatementsWithoutTrailingSemicolon(t *testing.T) {
	assert.Equal(t, []string{"select 1;", "select 2"}, SplitStatements("select 1;\nselect 2\n"))
	assert.Empty(t, SplitStatements("-- only a comment\n\n"))
}

func TestSplitStatementsScansLiteralsAndComments(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   []string
	}{
		{
			name:   "semicolon inside a multi-line literal",
			script: "insert into notes (body) values ('first line;\nsecond line');\nselect 1;",
			want:   []string{"insert into notes (body) values ('first line;\nsecond line');", "select 1;"},
		},
		{
			name:   "trailing comment after a statement",
			script: "insert into budgets (id) values (1); -- trailing note\ninsert into budgets (id) values (2);",
			want:   []string{"insert into budgets (id) values (1);", "insert into budgets (id) values (2);"},
		},
		{
			name:   "comment markers inside a literal are data",
			script: "insert into notes (body) values ('keep\n-- this line');",
			want:   []string{"insert into notes (body) values ('keep\n-- this line');"},
		},
		{
			name:   "doubled and escaped quotes",
			script: `select 'it''s; fine', E'a\'b;c', "odd;""name" from t; select 2;`,
			want:   []string{`select 'it''s; fine', E'a\'b;c', "odd;""name" from t;`, "select 2;"},
		},
		{
			name:   "nested block comment",
			script: "select /* a; /* b; */ c; */ 1; select 2;",
			want:   []string{"select   1;", "select 2;"},
		},
		{
			name:   "tagged dollar quote",
			script: "do $body$ begin perform 1; end $body$; select $1;",
			want:   []string{"do $body$ begin perform 1; end $body$;", "select $1;"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitStatements(tt.script))
		})
	}
}

func TestSeederFilesOrder(t *testing.T) {
	fsys := fstest.MapFS{
		"010_transactions.sql": {Data: []byte("select 1;")},
		"002_budgets.sql":      {Data: []byte("select 1;")},
		"categories.sql":       {Data: []byte("select 1;")},
		"README.md":            {Data: []byte("docs")},
		"sub/001_users.sql":    {Data: []byte("select 1;")},
		"1000_late.sql":        {Data: []byte("select 1;")},
		"zzz.sql":              {Data: []byte("select 1;")},
	}
	files, err := NewSeeder(nil, fsys, nil).Files()
	require.NoError(t, err)

	var paths []string
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	assert.Equal(t, []string{
		"sub/001_users.sql", "002_budgets.sql", "010_transactions.sql", "1000_late.sql",
		"categories.sql", "zzz.sql",
	}, paths)
	assert.True(t, files[3].Prefixed)
	assert.Equal(t, 1000, files[3].Order)
	assert.False(t, files[4].Prefixed)
}

func TestSeederRun(t *testing.T) {
	db, mock := newMockBunDB(t, false)
	fsys := fstest.MapFS{
		"001_budgets.sql":      {Data: []byte("insert into budgets (id) values (1);\ninsert into budgets (id) values (2);\n")},
		"002_transactions.sql": {Data: []byte("-- nothing yet\n")},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`insert into budgets \(id\) values \(1\)`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`insert into budgets \(id\) values \(2\)`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	results, err := NewSeeder(db, fsys, nil).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "001_budgets.sql", results[0].File)
	assert.Equal(t, 2, results[0].Statements)
	assert.Equal(t, int64(2), results[0].RowsAffected)
	assert.Equal(t, 0, results[1].Statements)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeederRunStopsOnFailure(t *testing.T) {
	db, mock := newMockBunDB(t, false)
	fsys := fstest.MapFS{
		"001_budgets.sql": {Data: []byte("insert into missing (id) values (1);\n")},
		"002_more.sql":    {Data: []byte("select 1;\n")},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`insert into missing`).WillReturnError(errors.New(`relation "missing" does not exist: no such table`))
	mock.ExpectRollback()

	results, err := NewSeeder(db, fsys, nil).Run(context.Background())
	require.Error(t, err)
	assert.Empty(t, results)
	assert.Contains(t, err.Error(), "seed 001_budgets.sql")

	var apiErr *supabase.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, NoTableErr.SQLState(), apiErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
