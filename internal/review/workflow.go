// Package review moves verification records through reviewer decisions.
package review

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-verifier/constants"
	"github.com/joseph-ayodele/receipt-verifier/internal/common"
	"github.com/joseph-ayodele/receipt-verifier/internal/entity"
)

const maxNotesLength = 2000

// Store is the slice of the record repository the workflow needs.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.VerificationRecord, error)
	ApplyReview(ctx context.Context, id uuid.UUID, expectedVersion int, d entity.ReviewDecision) error
}

// Command asks for one transition of a record the caller last saw at ExpectedVersion.
type Command struct {
	RecordID        uuid.UUID
	Outcome         constants.ReviewOutcome
	Notes           string
	ExpectedVersion int
}

type Result struct {
	RecordID   uuid.UUID
	NewStatus  constants.RecordStatus
	NewVersion int
	Decision   entity.ReviewDecision
}

type Workflow struct {
	store  Store
	clock  func() time.Time
	logger *slog.Logger
}

type Option func(*Workflow)

func WithClock(c func() time.Time) Option {
	return func(w *Workflow) {
		if c != nil {
			w.clock = c
		}
	}
}

func NewWorkflow(store Store, logger *slog.Logger, opts ...Option) *Workflow {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Workflow{store: store, clock: time.Now, logger: logger}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Transition applies cmd on behalf of the actor in ctx. Nothing is written
// unless the transition is permitted, legal from the current status, and
// the record is still at cmd.ExpectedVersion.
func (w *Workflow) Transition(ctx context.Context, cmd Command) (*Result, error) {
	if err := validate(cmd); err != nil {
		return nil, err
	}
	actor, ok := common.ActorFromContext(ctx)
	if !ok || actor.ID == "" {
		return nil, forbidden("no acting user")
	}
	// Decisions need a reviewer permission before the record is touched.
	// INFO_PROVIDED is also open to the submitter, which needs the record.
	if cmd.Outcome != constants.OutcomeInfoProvided &&
		!actor.Can(common.PermissionReviewDecide) && !actor.Can(common.PermissionReviewOverride) {
		return nil, forbidden("actor " + actor.ID + " may not review")
	}

	log := w.logger.With("record_id", cmd.RecordID, "actor_id", actor.ID, "outcome", cmd.Outcome)

	rec, err := w.store.GetByID(ctx, cmd.RecordID)
	if err != nil {
		return nil, err
	}
	if org := common.OrgIDFromContext(ctx); org != "" && org != rec.OrgID {
		return nil, common.NewAppError(common.CodeNotFound, "record "+cmd.RecordID.String(), common.ErrNotFound)
	}
	if cmd.Outcome == constants.OutcomeInfoProvided &&
		actor.ID != rec.SubmitterID && !actor.Can(common.PermissionReviewDecide) {
		return nil, forbidden("only the submitter or a reviewer may provide info")
	}
	if rec.Version != cmd.ExpectedVersion {
		log.Warn("review.transition.stale", "expected", cmd.ExpectedVersion, "actual", rec.Version)
		return nil, common.StaleVersion(rec.ID.String(), cmd.ExpectedVersion, rec.Version)
	}

	edge, err := Next(rec, cmd.Outcome)
	if err != nil {
		log.Info("review.transition.rejected", "status", rec.Status, "error", err)
		return nil, err
	}
	if edge.Override && !actor.Can(common.PermissionReviewOverride) {
		return nil, forbidden("overriding a system decision requires " + common.PermissionReviewOverride)
	}
	if !edge.Override && cmd.Outcome != constants.OutcomeInfoProvided && !actor.Can(common.PermissionReviewDecide) {
		return nil, forbidden("deciding a review requires " + common.PermissionReviewDecide)
	}

	d := entity.ReviewDecision{
		ReviewerID: actor.ID,
		Outcome:    cmd.Outcome,
		Notes:      cmd.Notes,
		FromStatus: rec.Status,
		ToStatus:   edge.To,
		Version:    rec.Version + 1,
		DecidedAt:  w.clock().UTC(),
	}
	if err := w.store.ApplyReview(ctx, rec.ID, cmd.ExpectedVersion, d); err != nil {
		log.Warn("review.transition.apply_failed", "error", err)
		return nil, err
	}

	log.Info("review.transition.applied", "from", d.FromStatus, "to", d.ToStatus, "version", d.Version, "override", edge.Override)
	return &Result{RecordID: rec.ID, NewStatus: d.ToStatus, NewVersion: d.Version, Decision: d}, nil
}

func validate(cmd Command) error {
	v := common.NewValidator()
	if cmd.RecordID == uuid.Nil {
		v.Field("record_id", "", common.Required)
	}
	v.Field("outcome", string(cmd.Outcome), common.Required, common.OneOf(
		string(constants.OutcomeApproved),
		string(constants.OutcomeRejected),
		string(constants.OutcomeMoreInfoRequested),
		string(constants.OutcomeInfoProvided),
	))
	v.Field("expected_version", cmd.ExpectedVersion, common.Positive)
	v.Field("notes", cmd.Notes, common.MaxLen(maxNotesLength))
	if v.HasErrors() {
		return common.NewAppError(common.CodeInvalidInput, v.ErrorMessage(), common.ErrInvalidInput)
	}
	return nil
}

func forbidden(msg string) error {
	return common.NewAppError(common.CodeForbidden, msg, common.ErrUnauthorized)
}
