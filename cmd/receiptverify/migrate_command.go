package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and print the schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// opening the app migrates the store
			app, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			v, dirty, err := app.Store.MigrationVersion(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema at version %d (dirty=%s)\n", app.Store.Dialect(), v, yesNo(dirty))
			return nil
		},
	}
}
