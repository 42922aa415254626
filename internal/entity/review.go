package entity

import (
	"time"

	"github.com/joseph-ayodele/receipt-verifier/constants"
)

// ReviewDecision is one append-only entry in a record's review trail.
type ReviewDecision struct {
	ReviewerID string                  `json:"reviewer_id"`
	Outcome    constants.ReviewOutcome `json:"outcome"`
	Notes      string                  `json:"notes"`
	FromStatus constants.RecordStatus  `json:"from_status"`
	ToStatus   constants.RecordStatus  `json:"to_status"`
	Version    int                     `json:"version"` // record version this decision produced
	DecidedAt  time.Time               `json:"decided_at"`
}
