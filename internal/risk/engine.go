// Package risk aggregates verification signals into a score and an automatic decision.
package risk

import (
	"log/slog"

	"github.com/joseph-ayodele/receipt-verifier/constants"
	"github.com/joseph-ayodele/receipt-verifier/internal/entity"
)

// Issue texts and the recommendation paired with each.
const (
	IssueDuplicate             = "duplicate identifier found"
	IssueManipulation          = "manipulation suspected"
	IssueMissingAmount         = "amount not detected"
	IssueMissingIdentifier     = "identifier missing"
	IssueForensicFailed        = "forensic analysis failed"
	IssueScanIncomplete        = "duplicate scan incomplete"
	IssueExtractionUnavailable = "extraction service unavailable"
)

var recommendations = map[string]string{
	IssueDuplicate:             "investigate potential duplicate submission",
	IssueManipulation:          "inspect image for signs of editing",
	IssueMissingAmount:         "verify amount manually against the receipt",
	IssueMissingIdentifier:     "request a receipt showing the transaction identifier",
	IssueForensicFailed:        "re-run forensic analysis or inspect image manually",
	IssueScanIncomplete:        "re-run duplicate check before reimbursement",
	IssueExtractionUnavailable: "re-submit for extraction or enter fields manually",
}

// Recommendation returns the action paired with an issue.
func Recommendation(issue string) string {
	return recommendations[issue]
}

// Weights are the score contributions of each finding.
type Weights struct {
	Duplicate         int
	Manipulation      int
	MissingAmount     int
	MissingIdentifier int
}

func DefaultWeights() Weights {
	return Weights{Duplicate: 100, Manipulation: 40, MissingAmount: 20, MissingIdentifier: 15}
}

// Config holds weights and the inclusive lower bounds of each decision.
// ManipulationThreshold is the analyzer's HIGH boundary.
type Config struct {
	Weights               Weights
	RejectThreshold       int
	ReviewThreshold       int
	ManipulationThreshold float64
}

func DefaultConfig() Config {
	return Config{Weights: DefaultWeights(), RejectThreshold: 80, ReviewThreshold: 40, ManipulationThreshold: 70}
}

// Signals are the recoverable failures observed upstream.
type Signals struct {
	ForensicFailed        bool
	ScanFailed            bool
	ExtractionUnavailable bool
}

type Engine struct {
	cfg    Config
	logger *slog.Logger
}

func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	// The zero Config means defaults; anything else is used as given.
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{cfg: cfg, logger: logger}
}

// Assess scores a submission from scratch. Visual template matches carry no
// weight. A failed forensic pass or duplicate scan keeps the decision from
// being AUTO_APPROVE.
func (e *Engine) Assess(report entity.ManipulationReport, matches []entity.DuplicateMatch, fields entity.ExtractedFields, sig Signals) entity.RiskAssessment {
	var (
		score  int
		issues []string
	)
	add := func(weight int, issue string) {
		score += weight
		issues = append(issues, issue)
	}

	if hasExact(matches) {
		add(e.cfg.Weights.Duplicate, IssueDuplicate)
	}
	if !report.Failed() && report.Score >= e.cfg.ManipulationThreshold {
		add(e.cfg.Weights.Manipulation, IssueManipulation)
	}
	if !fields.HasAmount() {
		add(e.cfg.Weights.MissingAmount, IssueMissingAmount)
	}
	if !fields.HasIdentifier() {
		add(e.cfg.Weights.MissingIdentifier, IssueMissingIdentifier)
	}
	if sig.ForensicFailed || report.Failed() {
		issues = append(issues, IssueForensicFailed)
	}
	if sig.ScanFailed {
		issues = append(issues, IssueScanIncomplete)
	}
	if sig.ExtractionUnavailable {
		issues = append(issues, IssueExtractionUnavailable)
	}

	score = clamp(score, 0, 100)
	decision := e.decide(score)
	if decision == constants.DecisionAutoApprove && (sig.ForensicFailed || report.Failed() || sig.ScanFailed) {
		decision = constants.DecisionManualReview
	}

	recs := make([]string, len(issues))
	for i, issue := range issues {
		recs[i] = recommendations[issue]
	}

	out, err := entity.NewRiskAssessment(score, e.level(score), decision, issues, recs)
	if err != nil {
		// Unreachable with a clamped score and paired slices.
		e.logger.Error("risk.assess.invalid", "error", err)
		return entity.RiskAssessment{Score: score, Level: constants.RiskHigh, Decision: constants.DecisionManualReview, Issues: issues, Recommendations: recs}
	}
	e.logger.Debug("risk.assess.done", "score", score, "decision", decision, "issues", len(issues))
	return out
}

func (e *Engine) decide(score int) constants.Decision {
	switch {
	case score >= e.cfg.RejectThreshold:
		return constants.DecisionReject
	case score >= e.cfg.ReviewThreshold:
		return constants.DecisionManualReview
	default:
		return constants.DecisionAutoApprove
	}
}

func (e *Engine) level(score int) constants.RiskLevel {
	switch {
	case score >= e.cfg.RejectThreshold:
		return constants.RiskHigh
	case score >= e.cfg.ReviewThreshold:
		return constants.RiskMedium
	default:
		return constants.RiskLow
	}
}

func hasExact(matches []entity.DuplicateMatch) bool {
	for _, m := range matches {
		if m.Kind == constants.MatchExactIdentifier {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
