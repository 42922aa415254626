package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-verifier/internal/entity"
)

// Clock supplies timestamps for new records.
type Clock func() time.Time

// AssembleInput carries every component result of one submission.
type AssembleInput struct {
	OrgID        string
	SubmitterID  string
	EventID      string
	Digest       entity.ContentDigest
	Manipulation entity.ManipulationReport
	Extracted    entity.ExtractedFields
	Matches      []entity.DuplicateMatch
	Risk         entity.RiskAssessment
}

// Assemble builds a version-1 record whose status follows the automatic decision.
func Assemble(in AssembleInput, id uuid.UUID, now time.Time) (*entity.VerificationRecord, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("assemble: nil record id")
	}
	if in.OrgID == "" {
		return nil, fmt.Errorf("assemble: missing org id")
	}
	if len(in.Digest.ExactHash) == 0 {
		return nil, fmt.Errorf("assemble: missing content digest")
	}
	matches := in.Matches
	if matches == nil {
		matches = []entity.DuplicateMatch{}
	}
	now = now.UTC()
	return &entity.VerificationRecord{
		ID:           id,
		OrgID:        in.OrgID,
		SubmitterID:  in.SubmitterID,
		EventID:      in.EventID,
		Digest:       in.Digest,
		Manipulation: in.Manipulation,
		Extracted:    in.Extracted,
		Matches:      matches,
		Risk:         in.Risk,
		Status:       in.Risk.Decision.InitialStatus(),
		Reviews:      []entity.ReviewDecision{},
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}
