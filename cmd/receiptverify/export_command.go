package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var out, from, to string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write an organization's verification records to an XLSX workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fromDay, err := parseDay("from", from)
			if err != nil {
				return err
			}
			toDay, err := parseDay("to", to)
			if err != nil {
				return err
			}
			org, err := ctx.orgID()
			if err != nil {
				return err
			}
			app, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			data, err := app.Exporter.ExportXLSX(cmd.Context(), org, fromDay, toDay)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", out, len(data))
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "verifications.xlsx", "Output file")
	cmd.Flags().StringVar(&from, "from", "", "First day, YYYY-MM-DD (inclusive)")
	cmd.Flags().StringVar(&to, "to", "", "Last day, YYYY-MM-DD (inclusive)")
	return cmd
}
