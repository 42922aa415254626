package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/receipt-verifier/constants"
	"github.com/joseph-ayodele/receipt-verifier/internal/review"
)

func newReviewCommand(ctx *commandContext) *cobra.Command {
	var (
		outcome  string
		notes    string
		expected int
	)
	cmd := &cobra.Command{
		Use:   "review <record-id>",
		Short: "Apply a review decision to a record",
		Long: "Outcomes: APPROVED, REJECTED, MORE_INFO_REQUESTED, INFO_PROVIDED.\n" +
			"--expected-version must match the record's current version.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("record id must be a UUID: %w", err)
			}
			o, err := constants.ParseReviewOutcome(outcome)
			if err != nil {
				return err
			}
			app, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			rctx, err := ctx.requestContext(cmd.Context())
			if err != nil {
				return err
			}
			res, err := app.Workflow.Transition(rctx, review.Command{
				RecordID:        id,
				Outcome:         o,
				Notes:           notes,
				ExpectedVersion: expected,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s -> %s (version %d)\n",
				res.RecordID, res.Decision.FromStatus, res.NewStatus, res.NewVersion)
			return nil
		},
	}
	cmd.Flags().StringVar(&outcome, "outcome", "", "Review outcome")
	cmd.Flags().StringVar(&notes, "notes", "", "Reviewer notes")
	cmd.Flags().IntVar(&expected, "expected-version", 0, "Record version the decision is based on")
	_ = cmd.MarkFlagRequired("outcome")
	_ = cmd.MarkFlagRequired("expected-version")
	return cmd
}
