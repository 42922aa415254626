package constants

import (
	"fmt"
	"strings"
)

// RecordStatus is the lifecycle status of a verification record.
type RecordStatus string

// Stable values (store these exact strings in DB).
const (
	StatusPending      RecordStatus = "PENDING"       // waiting on a reviewer after more info was provided
	StatusAutoApproved RecordStatus = "AUTO_APPROVED" // system decided, low risk
	StatusManualReview RecordStatus = "MANUAL_REVIEW" // system routed to a reviewer
	StatusMoreInfo     RecordStatus = "MORE_INFO"     // reviewer asked the submitter for more info
	StatusApproved     RecordStatus = "APPROVED"      // reviewer approved
	StatusRejected     RecordStatus = "REJECTED"      // system or reviewer rejected
)

var recordStatuses = []RecordStatus{
	StatusPending,
	StatusAutoApproved,
	StatusManualReview,
	StatusMoreInfo,
	StatusApproved,
	StatusRejected,
}

// ParseRecordStatus returns the status matching s, case-insensitively.
func ParseRecordStatus(s string) (RecordStatus, error) {
	for _, st := range recordStatuses {
		if strings.EqualFold(strings.TrimSpace(s), string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown record status %q", s)
}

// Decision is the automatic outcome of risk scoring.
type Decision string

const (
	DecisionAutoApprove  Decision = "AUTO_APPROVE"
	DecisionManualReview Decision = "MANUAL_REVIEW"
	DecisionReject       Decision = "REJECT"
)

// InitialStatus maps an automatic decision to the status a new record starts in.
func (d Decision) InitialStatus() RecordStatus {
	switch d {
	case DecisionAutoApprove:
		return StatusAutoApproved
	case DecisionReject:
		return StatusRejected
	default:
		return StatusManualReview
	}
}

// Classification buckets a manipulation score.
type Classification string

const (
	ClassificationNone   Classification = "NONE"
	ClassificationLow    Classification = "LOW"
	ClassificationMedium Classification = "MEDIUM"
	ClassificationHigh   Classification = "HIGH"
	ClassificationError  Classification = "ERROR"
)

// MatchKind is the kind of evidence behind a duplicate match.
type MatchKind string

const (
	MatchExactIdentifier MatchKind = "EXACT_IDENTIFIER"
	MatchVisualTemplate  MatchKind = "VISUAL_TEMPLATE"
)

// Rank orders match kinds when confidences tie; higher wins.
func (k MatchKind) Rank() int {
	if k == MatchExactIdentifier {
		return 1
	}
	return 0
}

// ReviewOutcome is what a reviewer (or submitter) did in a review transition.
type ReviewOutcome string

const (
	OutcomeApproved          ReviewOutcome = "APPROVED"
	OutcomeRejected          ReviewOutcome = "REJECTED"
	OutcomeMoreInfoRequested ReviewOutcome = "MORE_INFO_REQUESTED"
	OutcomeInfoProvided      ReviewOutcome = "INFO_PROVIDED"
)

var reviewOutcomes = []ReviewOutcome{
	OutcomeApproved,
	OutcomeRejected,
	OutcomeMoreInfoRequested,
	OutcomeInfoProvided,
}

// ParseReviewOutcome returns the outcome matching s, case-insensitively.
func ParseReviewOutcome(s string) (ReviewOutcome, error) {
	for _, o := range reviewOutcomes {
		if strings.EqualFold(strings.TrimSpace(s), string(o)) {
			return o, nil
		}
	}
	return "", fmt.Errorf("unknown review outcome %q", s)
}

// RiskLevel is a coarse label for a risk score.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)
