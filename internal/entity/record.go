package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-verifier/constants"
)

// VerificationRecord is the audit snapshot of one submission. Everything but
// Status, Reviews, Version and UpdatedAt is fixed at creation.
type VerificationRecord struct {
	ID           uuid.UUID              `json:"id"`
	OrgID        string                 `json:"org_id"`
	SubmitterID  string                 `json:"submitter_id"`
	EventID      string                 `json:"event_id,omitempty"`
	Digest       ContentDigest          `json:"digest"`
	Manipulation ManipulationReport     `json:"manipulation"`
	Extracted    ExtractedFields        `json:"extracted"`
	Matches      []DuplicateMatch       `json:"matches"`
	Risk         RiskAssessment         `json:"risk"`
	Status       constants.RecordStatus `json:"status"`
	Reviews      []ReviewDecision       `json:"reviews"`
	Version      int                    `json:"version"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// LastReview returns the most recent review decision, if any.
func (r *VerificationRecord) LastReview() (ReviewDecision, bool) {
	if len(r.Reviews) == 0 {
		return ReviewDecision{}, false
	}
	return r.Reviews[len(r.Reviews)-1], true
}

// SystemDecided reports whether the current status was set by the pipeline
// rather than by a reviewer.
func (r *VerificationRecord) SystemDecided() bool {
	_, reviewed := r.LastReview()
	return !reviewed
}

// ExactMatchCount counts EXACT_IDENTIFIER matches.
func (r *VerificationRecord) ExactMatchCount() int {
	n := 0
	for _, m := range r.Matches {
		if m.Kind == constants.MatchExactIdentifier {
			n++
		}
	}
	return n
}

// SubmissionSummary is the response of the submit endpoint.
type SubmissionSummary struct {
	RecordID             uuid.UUID              `json:"record_id"`
	RiskScore            int                    `json:"risk_score"`
	RiskLevel            constants.RiskLevel    `json:"risk_level"`
	Decision             constants.Decision     `json:"decision"`
	Issues               []string               `json:"issues"`
	Recommendations      []string               `json:"recommendations"`
	ManipulationDetected bool                   `json:"manipulation_detected"`
	DuplicateFound       bool                   `json:"duplicate_found"`
	DuplicateCount       int                    `json:"duplicate_count"`
	TemplateMatchCount   int                    `json:"template_match_count"`
	Status               constants.RecordStatus `json:"status"`
	Version              int                    `json:"version"`
}

// Summary projects the record onto the submit endpoint's response.
func (r *VerificationRecord) Summary() SubmissionSummary {
	exact := r.ExactMatchCount()
	return SubmissionSummary{
		RecordID:             r.ID,
		RiskScore:            r.Risk.Score,
		RiskLevel:            r.Risk.Level,
		Decision:             r.Risk.Decision,
		Issues:               r.Risk.Issues,
		Recommendations:      r.Risk.Recommendations,
		ManipulationDetected: r.Manipulation.Classification == constants.ClassificationHigh,
		DuplicateFound:       exact > 0,
		DuplicateCount:       exact,
		TemplateMatchCount:   len(r.Matches) - exact,
		Status:               r.Status,
		Version:              r.Version,
	}
}
