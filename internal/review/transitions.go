package review

import (
	"fmt"

	"github.com/joseph-ayodele/receipt-verifier/constants"
	"github.com/joseph-ayodele/receipt-verifier/internal/common"
	"github.com/joseph-ayodele/receipt-verifier/internal/entity"
)

// Edge is one legal move out of a status.
type Edge struct {
	To       constants.RecordStatus
	Override bool // replaces a decision the system made
}

var decisionEdges = map[constants.ReviewOutcome]constants.RecordStatus{
	constants.OutcomeApproved:          constants.StatusApproved,
	constants.OutcomeRejected:          constants.StatusRejected,
	constants.OutcomeMoreInfoRequested: constants.StatusMoreInfo,
}

// Next returns the edge taken by outcome from rec's current status.
func Next(rec *entity.VerificationRecord, outcome constants.ReviewOutcome) (Edge, error) {
	switch rec.Status {
	case constants.StatusPending, constants.StatusManualReview:
		if to, ok := decisionEdges[outcome]; ok {
			return Edge{To: to}, nil
		}
	case constants.StatusMoreInfo:
		if outcome == constants.OutcomeInfoProvided {
			return Edge{To: constants.StatusPending}, nil
		}
	case constants.StatusAutoApproved:
		if to, ok := overrideTarget(outcome); ok {
			return Edge{To: to, Override: true}, nil
		}
	case constants.StatusRejected:
		if !rec.SystemDecided() {
			return Edge{}, invalid(rec.Status, outcome, "rejected by a reviewer")
		}
		if to, ok := overrideTarget(outcome); ok {
			return Edge{To: to, Override: true}, nil
		}
	case constants.StatusApproved:
		return Edge{}, invalid(rec.Status, outcome, "approved records are final")
	}
	return Edge{}, invalid(rec.Status, outcome, "")
}

// Terminal reports whether no outcome can move rec any further.
func Terminal(rec *entity.VerificationRecord) bool {
	switch rec.Status {
	case constants.StatusApproved:
		return true
	case constants.StatusRejected:
		return !rec.SystemDecided()
	}
	return false
}

func overrideTarget(outcome constants.ReviewOutcome) (constants.RecordStatus, bool) {
	switch outcome {
	case constants.OutcomeApproved:
		return constants.StatusApproved, true
	case constants.OutcomeRejected:
		return constants.StatusRejected, true
	}
	return "", false
}

func invalid(from constants.RecordStatus, outcome constants.ReviewOutcome, why string) error {
	msg := fmt.Sprintf("%s cannot move from %s", outcome, from)
	if why != "" {
		msg += ": " + why
	}
	return common.NewAppError(common.CodeTransition, msg, common.ErrInvalidTransition)
}
