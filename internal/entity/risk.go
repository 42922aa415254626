package entity

import (
	"fmt"

	"github.com/joseph-ayodele/receipt-verifier/constants"
)

// RiskAssessment is the aggregated risk of one submission.
type RiskAssessment struct {
	Score           int                 `json:"score"`
	Level           constants.RiskLevel `json:"level"`
	Decision        constants.Decision  `json:"decision"`
	Issues          []string            `json:"issues"`
	Recommendations []string            `json:"recommendations"`
}

// NewRiskAssessment validates the score range and the issue/recommendation pairing.
func NewRiskAssessment(score int, level constants.RiskLevel, decision constants.Decision, issues, recs []string) (RiskAssessment, error) {
	if score < 0 || score > 100 {
		return RiskAssessment{}, fmt.Errorf("risk score %d outside [0,100]", score)
	}
	switch decision {
	case constants.DecisionAutoApprove, constants.DecisionManualReview, constants.DecisionReject:
	default:
		return RiskAssessment{}, fmt.Errorf("unknown decision %q", decision)
	}
	if len(issues) != len(recs) {
		return RiskAssessment{}, fmt.Errorf("%d issues but %d recommendations", len(issues), len(recs))
	}
	if issues == nil {
		issues = []string{}
	}
	if recs == nil {
		recs = []string{}
	}
	return RiskAssessment{
		Score:           score,
		Level:           level,
		Decision:        decision,
		Issues:          issues,
		Recommendations: recs,
	}, nil
}
