package main

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/receipt-verifier/internal/entity"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <record-id>",
		Short: "Show a stored verification record and its review trail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("record id must be a UUID: %w", err)
			}
			app, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			rctx, err := ctx.requestContext(cmd.Context())
			if err != nil {
				return err
			}
			rec, err := app.Verifier.Get(rctx, id)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), rec)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderSummary(rec.Summary()))
			if len(rec.Matches) > 0 {
				fmt.Fprintln(out, renderMatches(rec.Matches))
			}
			if len(rec.Reviews) > 0 {
				fmt.Fprintln(out, renderReviews(rec.Reviews))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full record as JSON")
	return cmd
}

func renderMatches(ms []entity.DuplicateMatch) string {
	rows := make([][]string, 0, len(ms))
	for _, m := range ms {
		rows = append(rows, []string{m.MatchedRecordID.String(), string(m.Kind), strconv.Itoa(m.Confidence), strconv.Itoa(m.Distance), yesNo(m.SameFile)})
	}
	return renderTable([]string{"Matched record", "Kind", "Confidence", "Distance", "Same file"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft})
}

func renderReviews(rs []entity.ReviewDecision) string {
	rows := make([][]string, 0, len(rs))
	for _, r := range rs {
		rows = append(rows, []string{
			strconv.Itoa(r.Version),
			r.DecidedAt.Format("2006-01-02 15:04"),
			r.ReviewerID,
			string(r.Outcome),
			string(r.FromStatus) + " -> " + string(r.ToStatus),
			orDash(r.Notes),
		})
	}
	return renderTable([]string{"Version", "Decided", "Reviewer", "Outcome", "Status", "Notes"}, rows,
		[]columnAlignment{alignRight})
}
