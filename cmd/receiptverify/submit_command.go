package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/receipt-verifier/internal/entity"
	"github.com/joseph-ayodele/receipt-verifier/internal/pipeline"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var (
		submitter string
		eventID   string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "submit <image>",
		Short: "Verify one receipt image and store the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}
			app, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			rctx, err := ctx.requestContext(cmd.Context())
			if err != nil {
				return err
			}
			if submitter == "" {
				submitter = ctx.flags.actor
			}
			res, err := app.Verifier.Submit(rctx, pipeline.Submission{
				Image:        raw,
				SubmitterID:  submitter,
				EventID:      eventID,
				FilenameHint: filepath.Base(args[0]),
			})
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), res.Summary)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderSummary(res.Summary))
			return nil
		},
	}
	cmd.Flags().StringVar(&submitter, "submitter", "", "Submitter id (default --actor)")
	cmd.Flags().StringVar(&eventID, "event", "", "Work event the receipt belongs to")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the summary as JSON")
	return cmd
}

func renderSummary(s entity.SubmissionSummary) string {
	return renderPairs([][2]string{
		{"Record", s.RecordID.String()},
		{"Decision", string(s.Decision)},
		{"Status", string(s.Status)},
		{"Risk", fmt.Sprintf("%d (%s)", s.RiskScore, s.RiskLevel)},
		{"Duplicates", strconv.Itoa(s.DuplicateCount)},
		{"Template matches", strconv.Itoa(s.TemplateMatchCount)},
		{"Manipulation", yesNo(s.ManipulationDetected)},
		{"Issues", orDash(strings.Join(s.Issues, "\n"))},
		{"Recommendations", orDash(strings.Join(s.Recommendations, "\n"))},
		{"Version", strconv.Itoa(s.Version)},
	})
}
