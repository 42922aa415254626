package audit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// OrgLister enumerates organizations when no explicit list is configured.
type OrgLister interface {
	ListOrgs(ctx context.Context) ([]string, error)
}

// Scheduler runs the auditor on a standard 5-field cron expression
// (minute hour day-of-month month day-of-week).
type Scheduler struct {
	auditor *Auditor
	orgs    []string
	lister  OrgLister
	sched   cron.Schedule
	spec    string
	logger  *slog.Logger
}

func NewScheduler(spec string, auditor *Auditor, orgs []string, lister OrgLister, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	spec = strings.TrimSpace(spec)
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid audit schedule %q: %w", spec, err)
	}
	return &Scheduler{auditor: auditor, orgs: orgs, lister: lister, sched: sched, spec: spec, logger: logger}, nil
}

// Next returns the next run time after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.sched.Next(t)
}

// Run blocks until ctx is done, auditing every org at each scheduled time.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("audit.scheduler.started", "cron", s.spec)
	for {
		now := time.Now()
		next := s.sched.Next(now)
		s.logger.Debug("audit.scheduler.next", "at", next)

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("audit.scheduler.stopped")
			return
		case <-timer.C:
		}
		s.RunOnce(ctx)
	}
}

// RunOnce audits every configured org, or every known org when none are
// configured. Failures are logged per org.
func (s *Scheduler) RunOnce(ctx context.Context) []*Report {
	orgs := s.orgs
	if len(orgs) == 0 && s.lister != nil {
		listed, err := s.lister.ListOrgs(ctx)
		if err != nil {
			s.logger.Error("audit.scheduler.list_orgs_failed", "error", err)
			return nil
		}
		orgs = listed
	}
	var out []*Report
	for _, org := range orgs {
		rep, err := s.auditor.Run(ctx, org)
		if err != nil {
			s.logger.Error("audit.scheduler.run_failed", "org_id", org, "error", err)
			continue
		}
		out = append(out, rep)
	}
	return out
}
