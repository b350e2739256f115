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
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

var seedOrderPattern = regexp.MustCompile(`^(\d+)_`)

// SeedFile is one SQL file discovered by a Seeder. Order is the numeric
// file name prefix and is only meaningful when Prefixed is set.
type SeedFile struct {
	Path     string
	Order    int
	Prefixed bool
}

// SeedResult is the outcome of one seed file.
type SeedResult struct {
	File         string
	Statements   int
	RowsAffected int64
	Duration     time.Duration
}

// Seeder executes the *.sql files of a directory, ordered by their numeric
// prefix (001_budgets.sql before 002_transactions.sql), each file in its own
// transaction. Files without a prefix run last, by name.
type Seeder struct {
	db     *bun.DB
	fsys   fs.FS
	logger Logger
}

func NewSeeder(db *bun.DB, fsys fs.FS, logger Logger) *Seeder {
	if logger == nil {
		logger = NopLogger{}
	}
	return &Seeder{db: db, fsys: fsys, logger: logger}
}

// Files lists the seed files in execution order.
func (s *Seeder) Files() ([]SeedFile, error) {
	var files []SeedFile
	err := fs.WalkDir(s.fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".sql") {
			return nil
		}
		f := SeedFile{Path: path}
		if m := seedOrderPattern.FindStringSubmatch(d.Name()); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				f.Order, f.Prefixed = n, true
			}
		}
		files = append(files, f)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list seed files: %w", err)
	}
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].Prefixed != files[j].Prefixed {
			return files[i].Prefixed
		}
		if files[i].Order != files[j].Order {
			return files[i].Order < files[j].Order
		}
		return files[i].Path < files[j].Path
	})
	return files, nil
}

// Run executes every seed file and stops at the first failure.
func (s *Seeder) Run(ctx context.Context) ([]SeedResult, error) {
	files, err := s.Files()
	if err != nil {
		return nil, err
	}
	results := make([]SeedResult, 0, len(files))
	for _, f := range files {
		res, err := s.runFile(ctx, f)
		if err != nil {
			s.logger.Error("Seed file failed", "file", f.Path, "error", err)
			return results, fmt.Errorf("seed %s: %w", f.Path, err)
		}
		s.logger.Info("Seed file executed", "file", res.File, "statements", res.Statements,
			"rows_affected", res.RowsAffected, "duration", res.Duration)
		results = append(results, res)
	}
	return results, nil
}

func (s *Seeder) runFile(ctx context.Context, f SeedFile) (SeedResult, error) {
	start := time.Now()
	res := SeedResult{File: f.Path}
	content, err := fs.ReadFile(s.fsys, f.Path)
	if err != nil {
		return res, err
	}
	statements := SplitStatements(string(content))
	res.Statements = len(statements)
	if len(statements) == 0 {
		return res, nil
	}
	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, stmt := range statements {
			r, err := tx.ExecContext(ctx, stmt)
			if err != nil {
				return ClassifySQLError(err)
			}
			if n, err := r.RowsAffected(); err == nil {
				res.RowsAffected += n
			}
		}
		return nil
	})
	res.Duration = time.Since(start)
	return res, err
}

// SplitStatements splits a SQL script into statements on semicolons that
// sit outside quoted strings, quoted identifiers, dollar-quoted bodies and
// comments. Comments are dropped; each statement keeps its semicolon.
func SplitStatements(script string) []string {
	var (
		statements []string
		current    strings.Builder
	)
	flush := func() {
		if stmt := strings.TrimSpace(current.String()); stmt != "" && stmt != ";" {
			statements = append(statements, stmt)
		}
		current.Reset()
	}
	for i := 0; i < len(script); {
		c := script[i]
		switch {
		case c == '\'' || c == '"':
			end := quotedEnd(script, i, c == '\'' && escapeStringAt(script, i))
			current.WriteString(script[i:end])
			i = end
		case strings.HasPrefix(script[i:], "--"):
			if nl := strings.IndexByte(script[i:], '\n'); nl >= 0 {
				i += nl
			} else {
				i = len(script)
			}
		case strings.HasPrefix(script[i:], "/*"):
			i = blockCommentEnd(script, i)
			current.WriteByte(' ')
		case c == '$':
			var tag string
			if i == 0 || !isIdentByte(script[i-1]) {
				tag = dollarTag(script[i:])
			}
			if tag == "" {
				current.WriteByte(c)
				i++
				continue
			}
			end := len(script)
			if j := strings.Index(script[i+len(tag):], tag); j >= 0 {
				end = i + len(tag) + j + len(tag)
			}
			current.WriteString(script[i:end])
			i = end
		case c == ';':
			current.WriteByte(c)
			i++
			flush()
		default:
			current.WriteByte(c)
			i++
		}
	}
	flush()
	return statements
}

// quotedEnd returns the index just past the literal opened at s[start].
// A doubled quote is an escaped quote; backslash escapes apply to E'...'.
func quotedEnd(s string, start int, backslash bool) int {
	q := s[start]
	for j := start + 1; j < len(s); {
		switch {
		case backslash && s[j] == '\\':
			j += 2
		case s[j] == q:
			if j+1 < len(s) && s[j+1] == q {
				j += 2
				continue
			}
			return j + 1
		default:
			j++
		}
	}
	return len(s)
}

func escapeStringAt(s string, i int) bool {
	if i == 0 || (s[i-1] != 'E' && s[i-1] != 'e') {
		return false
	}
	return i == 1 || !isIdentByte(s[i-2])
}

// blockCommentEnd returns the index just past the comment opened at s[start].
// Block comments nest.
func blockCommentEnd(s string, start int) int {
	depth := 0
	for j := start; j < len(s); {
		switch {
		case strings.HasPrefix(s[j:], "/*"):
			depth++
			j += 2
		case strings.HasPrefix(s[j:], "*/"):
			depth--
			j += 2
			if depth == 0 {
				return j
			}
		default:
			j++
		}
	}
	return len(s)
}

// dollarTag returns the $tag$ opening s, or "" when s starts with a
// positional parameter or a lone dollar sign.
func dollarTag(s string) string {
	if len(s) < 2 || (s[1] >= '0' && s[1] <= '9') {
		return ""
	}
	j := 1
	for j < len(s) && isIdentByte(s[j]) {
		j++
	}
	if j < len(s) && s[j] == '$' {
		return s[:j+1]
	}
	return ""
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= 0x80 ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
