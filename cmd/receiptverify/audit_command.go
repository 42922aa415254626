package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newAuditCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Rescan an organization's records for shared identifiers and identical uploads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			org, err := ctx.orgID()
			if err != nil {
				return err
			}
			app, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			rep, err := app.Auditor.Run(cmd.Context(), org)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d records scanned, %d collisions\n", rep.OrgID, rep.Scanned, len(rep.Collisions))
			if len(rep.Collisions) == 0 {
				return nil
			}
			rows := make([][]string, 0, len(rep.Collisions))
			for _, c := range rep.Collisions {
				ids := make([]string, len(c.RecordIDs))
				for i, id := range c.RecordIDs {
					ids[i] = id.String()
				}
				rows = append(rows, []string{string(c.Kind), c.Key, strings.Join(ids, "\n")})
			}
			fmt.Fprintln(out, renderTable([]string{"Kind", "Key", "Records"}, rows, nil))
			return nil
		},
	}
}
