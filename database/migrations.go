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
	_ "embed"
	"fmt"
	"sort"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

//go:embed sql/procedures.sql
var proceduresSQL string

// ProceduresSQL returns the SQL that creates query_single, query_many and
// execute_sql on a Postgres database.
func ProceduresSQL() string {
	return proceduresSQL
}

// Migration is an applied migration record.
type Migration struct {
	bun.BaseModel `bun:"table:schema_migrations"`

	Version     string    `bun:"version,pk"`
	Name        string    `bun:"name"`
	AppliedAt   time.Time `bun:"applied_at"`
	Description string    `bun:"description"`
}

// MigrationFunc is a migration step executed within a transaction.
type MigrationFunc func(ctx context.Context, db bun.IDB) error

// MigrationItem describes a single migration version.
type MigrationItem struct {
	Version     string
	Name        string
	Description string
	// Dialects limits the migration to the listed dialects; empty means all.
	Dialects []dialect.Name
	Up       MigrationFunc
}

// MigrationManager applies versioned migrations once each, recording them in
// schema_migrations.
type MigrationManager struct {
	db         *bun.DB
	logger     Logger
	migrations []MigrationItem
}

// NewMigrationManager returns a manager preloaded with the procedure
// installation migration.
func NewMigrationManager(db *bun.DB, logger Logger) *MigrationManager {
	if logger == nil {
		logger = NopLogger{}
	}
	mm := &MigrationManager{db: db, logger: logger}
	mm.Register(MigrationItem{
		Version:     "001",
		Name:        "install_procedures",
		Description: "Create query_single, query_many and execute_sql",
		Dialects:    []dialect.Name{dialect.PG},
		Up:          installProcedures,
	})
	return mm
}

// Register adds a migration. Versions sort lexically.
func (mm *MigrationManager) Register(item MigrationItem) {
	mm.migrations = append(mm.migrations, item)
}

func installProcedures(ctx context.Context, db bun.IDB) error {
	if _, err := db.ExecContext(ctx, proceduresSQL); err != nil {
		return fmt.Errorf("install procedures: %w", err)
	}
	return nil
}

func (mm *MigrationManager) applies(item MigrationItem) bool {
	if len(item.Dialects) == 0 {
		return true
	}
	name := mm.db.Dialect().Name()
	for _, d := range item.Dialects {
		if d == name {
			return true
		}
	}
	return false
}

// RunMigrations creates the tracking table if needed and executes every
// pending migration in ascending version order.
func (mm *MigrationManager) RunMigrations(ctx context.Context) error {
	if mm.db == nil {
		return fmt.Errorf("database not initialized")
	}
	if _, err := mm.db.NewCreateTable().Model((*Migration)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	migrations := make([]MigrationItem, len(mm.migrations))
	copy(migrations, mm.migrations)
	sort.SliceStable(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	for _, migration := range migrations {
		if !mm.applies(migration) {
			mm.logger.Debug("Migration skipped for dialect", "version", migration.Version, "dialect", mm.db.Dialect().Name())
			continue
		}
		if err := mm.runMigration(ctx, migration); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", migration.Version, err)
		}
	}
	mm.logger.Info("Database migrations completed")
	return nil
}

func (mm *MigrationManager) runMigration(ctx context.Context, migration MigrationItem) error {
	exists, err := mm.db.NewSelect().
		Model((*Migration)(nil)).
		Where("version = ?", migration.Version).
		Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	return mm.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := migration.Up(ctx, tx); err != nil {
			return err
		}
		record := &Migration{
			Version:     migration.Version,
			Name:        migration.Name,
			AppliedAt:   time.Now(),
			Description: migration.Description,
		}
		if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
			return err
		}
		mm.logger.Info("Migration executed successfully", "version", migration.Version, "name", migration.Name)
		return nil
	})
}

// GetAppliedMigrations returns migration records ordered by version.
func (mm *MigrationManager) GetAppliedMigrations(ctx context.Context) ([]Migration, error) {
	var migrations []Migration
	err := mm.db.NewSelect().
		Model(&migrations).
		Order("version ASC").
		Scan(ctx)
	return migrations, err
}
