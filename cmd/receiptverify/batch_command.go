package main

import (
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/receipt-verifier/internal/async"
	"github.com/joseph-ayodele/receipt-verifier/internal/ingest"
)

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var (
		dir        string
		workers    int
		timeout    time.Duration
		skipHidden bool
		submitter  string
	)
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Verify every receipt image under a directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			org, err := ctx.orgID()
			if err != nil {
				return err
			}

			// One batch at a time per SQLite file.
			if db := ctx.dbPath(); db != "" {
				lock := flock.New(db + ".lock")
				ok, err := lock.TryLock()
				if err != nil {
					return fmt.Errorf("acquire lock: %w", err)
				}
				if !ok {
					return errors.New("another batch is running against " + db)
				}
				defer func() { _ = lock.Unlock() }()
			}

			app, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			paths, stats, failed, err := ingest.NewWalker(ctx.logger).Collect(dir, skipHidden)
			if err != nil {
				return err
			}
			for _, f := range failed {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s: %v\n", f.Path, f.Err)
			}

			sigCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			q := async.NewSubmitQueue(app.Verifier, ctx.logger, async.WithWorkers(workers), async.WithJobTimeout(timeout))
			for _, p := range paths {
				if err := q.Enqueue(sigCtx, async.Job{Path: p, OrgID: org, SubmitterID: submitter}); err != nil {
					break
				}
			}
			q.Shutdown(cmd.Context())

			rows := make([][]string, 0, len(paths))
			for _, o := range q.Outcomes() {
				rel, _ := filepath.Rel(dir, o.Job.Path)
				if o.Err != nil {
					rows = append(rows, []string{rel, "-", "ERROR", "-", o.Err.Error()})
					continue
				}
				rows = append(rows, []string{rel, o.RecordID.String(), string(o.Decision), strconv.Itoa(o.Score), ""})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"File", "Record", "Decision", "Score", "Error"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight}))

			s := q.Stats()
			fmt.Fprintf(out, "scanned %d, matched %d, verified %d, failed %d (auto-approved %d, manual review %d, rejected %d)\n",
				stats.Scanned, stats.Matched, s.Succeeded, s.Failed, s.AutoApproved, s.ManualReview, s.Rejected)
			if s.Failed > 0 {
				return fmt.Errorf("%d receipts failed", s.Failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Directory to scan")
	cmd.Flags().IntVar(&workers, "workers", 4, "Concurrent submissions")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "Per-receipt timeout")
	cmd.Flags().BoolVar(&skipHidden, "skip-hidden", true, "Skip hidden files and directories")
	cmd.Flags().StringVar(&submitter, "submitter", "", "Submitter id recorded on every receipt")
	_ = cmd.MarkFlagRequired("dir")
	return cmd
}
