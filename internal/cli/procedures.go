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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tomoncle/budgetbase/database"
)

// NewProceduresCommand creates the procedures command and its print and
// install subcommands.
func NewProceduresCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "procedures",
		Short: "Show or install the raw-sql procedures",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "print",
		Short: "Print the SQL that creates query_single, query_many and execute_sql",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprint(cmd.OutOrStdout(), database.ProceduresSQL())
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "install",
		Short: "Install the procedures into the configured Postgres database",
		Long: `Install the procedures into the configured Postgres database.

The procedures run as SECURITY DEFINER and bypass row-level security.
EXECUTE is granted to the authenticated and service_role roles when they exist.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			factory, err := rootOpts.connect(cmd.Context(), true, false)
			if err != nil {
				return err
			}
			defer factory.Close()

			applied, err := database.NewMigrationManager(factory.GetDB(), nil).GetAppliedMigrations(cmd.Context())
			if err != nil {
				return err
			}
			for _, m := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", m.Version, m.Name, m.AppliedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	})

	return cmd
}
