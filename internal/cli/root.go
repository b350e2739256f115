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
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tomoncle/budgetbase/config"
	"github.com/tomoncle/budgetbase/database"
	"github.com/tomoncle/budgetbase/repository"
	"github.com/tomoncle/budgetbase/types"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Strategy   string
	Local      bool
	Verbose    bool

	cfg *config.Config
}

// NewRootCommand creates the budgetctl command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "budgetctl",
		Short: "Query budget tables and manage their SQL procedures",
		Long: `budgetctl reads budget tables through the structured-query (PostgREST)
or raw-sql (remote procedure) repository strategy, and installs the
query_single, query_many and execute_sql procedures the raw-sql strategy needs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Strategy, "strategy", "", "repository strategy (structured-query|raw-sql), overrides the config")
	cmd.PersistentFlags().BoolVar(&opts.Local, "local", false, "run raw-sql procedures against the configured database instead of the API")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(NewProceduresCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewFindCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))

	return cmd
}

func (o *RootOptions) load() error {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return err
	}
	if o.Strategy != "" {
		if cfg.Strategy, err = repository.ParseStrategy(o.Strategy); err != nil {
			return err
		}
	}
	if o.Verbose {
		cfg.Log.Level = "debug"
	}
	cfg.Log.Apply()
	o.cfg = cfg
	return nil
}

// connect opens the configured database. The caller closes the factory.
func (o *RootOptions) connect(ctx context.Context, migrate, seed bool) (*database.BaseDatabaseFactory, error) {
	factory := database.NewDatabaseFactory(nil)
	if _, err := factory.CreateFromConfig(&o.cfg.Database); err != nil {
		return nil, err
	}
	if err := factory.InitializeDatabase(ctx, migrate, seed); err != nil {
		_ = factory.Close()
		return nil, err
	}
	return factory, nil
}

// openRepository returns a row repository for table and a function releasing
// what it opened.
func (o *RootOptions) openRepository(ctx context.Context, table string, extra ...repository.Option) (repository.Repository[types.Row], func() error, error) {
	noop := func() error { return nil }
	opts := append([]repository.Option{repository.WithLogger(database.NewLogger("BUDGETCTL"))}, extra...)

	if !o.Local {
		client, err := o.cfg.Supabase.NewClient()
		if err != nil {
			return nil, noop, err
		}
		repo, err := repository.New[types.Row](client, table, o.cfg.Strategy, opts...)
		return repo, noop, err
	}

	if o.cfg.Strategy != repository.RawSQL {
		return nil, noop, fmt.Errorf("--local requires the %s strategy", repository.RawSQL)
	}
	factory, err := o.connect(ctx, false, false)
	if err != nil {
		return nil, noop, err
	}
	repo, err := repository.New[types.Row](repository.Compose(nil, factory.Executor()), table, repository.RawSQL, opts...)
	if err != nil {
		_ = factory.Close()
		return nil, noop, err
	}
	return repo, factory.Close, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
