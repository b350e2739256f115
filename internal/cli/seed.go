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
)

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Run the NNN_name.sql files of the seed directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir != "" {
				rootOpts.cfg.Database.SeedDir = dir
			}
			if rootOpts.cfg.Database.SeedDir == "" {
				return fmt.Errorf("no seed directory: set database.seed_dir, DB_SEED_DIR or --dir")
			}
			factory, err := rootOpts.connect(cmd.Context(), false, false)
			if err != nil {
				return err
			}
			defer factory.Close()

			results, err := factory.GetManager().Seed(cmd.Context())
			for _, r := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d statements\t%d rows\t%s\n", r.File, r.Statements, r.RowsAffected, r.Duration)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "seed directory, overrides the config")

	return cmd
}
