package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand(ctx *commandContext) *cobra.Command {
	flags := ctx.flags
	rootCmd := &cobra.Command{
		Use:           "receiptverify",
		Short:         "Verify expense receipts against duplicates and manipulation",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.db, "db", "", "SQLite database path (default receipts.db; ignored when DB_URL is set)")
	pf.StringVar(&flags.org, "org", "", "Organization id (default $RV_ORG)")
	pf.StringVar(&flags.actor, "actor", "", "Acting user id (default $USER)")
	pf.StringSliceVar(&flags.perms, "perm", nil, "Permissions of the acting user (repeatable)")
	pf.StringVar(&flags.policy, "policy", "", "Tenant policy file (.yaml or .toml)")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(newSubmitCommand(ctx))
	rootCmd.AddCommand(newShowCommand(ctx))
	rootCmd.AddCommand(newReviewCommand(ctx))
	rootCmd.AddCommand(newAuditCommand(ctx))
	rootCmd.AddCommand(newExportCommand(ctx))
	rootCmd.AddCommand(newBatchCommand(ctx))
	rootCmd.AddCommand(newMigrateCommand(ctx))

	return rootCmd
}
