package risk

import (
	"slices"
	"testing"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-verifier/constants"
	"github.com/joseph-ayodele/receipt-verifier/internal/entity"
)

func str(s string) *string { return &s }

func fullFields() entity.ExtractedFields {
	return entity.ExtractedFields{
		Provider:           str("Grab"),
		ExternalIdentifier: str("CRN123"),
		Amount:             str("12.50"),
		Available:          true,
	}
}

func clean() entity.ManipulationReport {
	return entity.ManipulationReport{Score: 5, Classification: constants.ClassificationNone, Quality: 90}
}

func exactMatch() entity.DuplicateMatch {
	return entity.DuplicateMatch{MatchedRecordID: uuid.New(), Kind: constants.MatchExactIdentifier, Confidence: 100}
}

func visualMatch() entity.DuplicateMatch {
	return entity.DuplicateMatch{MatchedRecordID: uuid.New(), Kind: constants.MatchVisualTemplate, Confidence: 50, Distance: 7}
}

func TestAssess(t *testing.T) {
	tests := []struct {
		name      string
		report    entity.ManipulationReport
		matches   []entity.DuplicateMatch
		fields    entity.ExtractedFields
		signals   Signals
		wantScore int
		wantLevel constants.RiskLevel
		wantDec   constants.Decision
		wantIssue []string
	}{
		{
			name:      "clean receipt",
			report:    clean(),
			fields:    fullFields(),
			wantScore: 0,
			wantLevel: constants.RiskLow,
			wantDec:   constants.DecisionAutoApprove,
			wantIssue: []string{},
		},
		{
			name:      "missing amount and identifier stays below review boundary",
			report:    clean(),
			fields:    entity.ExtractedFields{Available: true},
			wantScore: 35,
			wantLevel: constants.RiskLow,
			wantDec:   constants.DecisionAutoApprove,
			wantIssue: []string{IssueMissingAmount, IssueMissingIdentifier},
		},
		{
			name:      "exact duplicate rejects",
			report:    clean(),
			matches:   []entity.DuplicateMatch{exactMatch(), exactMatch()},
			fields:    fullFields(),
			wantScore: 100,
			wantLevel: constants.RiskHigh,
			wantDec:   constants.DecisionReject,
			wantIssue: []string{IssueDuplicate},
		},
		{
			name:      "visual template match adds nothing",
			report:    clean(),
			matches:   []entity.DuplicateMatch{visualMatch()},
			fields:    fullFields(),
			wantScore: 0,
			wantLevel: constants.RiskLow,
			wantDec:   constants.DecisionAutoApprove,
			wantIssue: []string{},
		},
		{
			name:      "manipulation at the high boundary",
			report:    entity.ManipulationReport{Score: 70, Classification: constants.ClassificationHigh},
			fields:    fullFields(),
			wantScore: 40,
			wantLevel: constants.RiskMedium,
			wantDec:   constants.DecisionManualReview,
			wantIssue: []string{IssueManipulation},
		},
		{
			name:      "manipulation just below the boundary",
			report:    entity.ManipulationReport{Score: 69.99, Classification: constants.ClassificationMedium},
			fields:    fullFields(),
			wantScore: 0,
			wantLevel: constants.RiskLow,
			wantDec:   constants.DecisionAutoApprove,
			wantIssue: []string{},
		},
		{
			name:      "everything fires and the score clamps",
			report:    entity.ManipulationReport{Score: 90, Classification: constants.ClassificationHigh},
			matches:   []entity.DuplicateMatch{exactMatch()},
			fields:    entity.ExtractedFields{},
			signals:   Signals{ScanFailed: true, ExtractionUnavailable: true},
			wantScore: 100,
			wantLevel: constants.RiskHigh,
			wantDec:   constants.DecisionReject,
			wantIssue: []string{IssueDuplicate, IssueManipulation, IssueMissingAmount, IssueMissingIdentifier, IssueScanIncomplete, IssueExtractionUnavailable},
		},
		{
			name:      "forensic failure lifts the floor",
			report:    entity.FailedManipulationReport(nil),
			fields:    fullFields(),
			signals:   Signals{ForensicFailed: true},
			wantScore: 0,
			wantLevel: constants.RiskLow,
			wantDec:   constants.DecisionManualReview,
			wantIssue: []string{IssueForensicFailed},
		},
		{
			name:      "scan failure lifts the floor",
			report:    clean(),
			fields:    fullFields(),
			signals:   Signals{ScanFailed: true},
			wantScore: 0,
			wantLevel: constants.RiskLow,
			wantDec:   constants.DecisionManualReview,
			wantIssue: []string{IssueScanIncomplete},
		},
		{
			name:      "extraction outage alone does not lift the floor",
			report:    clean(),
			fields:    entity.UnavailableFields(),
			signals:   Signals{ExtractionUnavailable: true},
			wantScore: 35,
			wantLevel: constants.RiskLow,
			wantDec:   constants.DecisionAutoApprove,
			wantIssue: []string{IssueMissingAmount, IssueMissingIdentifier, IssueExtractionUnavailable},
		},
	}

	e := NewEngine(DefaultConfig(), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Assess(tt.report, tt.matches, tt.fields, tt.signals)
			if got.Score != tt.wantScore {
				t.Errorf("score = %d, want %d", got.Score, tt.wantScore)
			}
			if got.Level != tt.wantLevel {
				t.Errorf("level = %s, want %s", got.Level, tt.wantLevel)
			}
			if got.Decision != tt.wantDec {
				t.Errorf("decision = %s, want %s", got.Decision, tt.wantDec)
			}
			if !slices.Equal(got.Issues, tt.wantIssue) {
				t.Errorf("issues = %q, want %q", got.Issues, tt.wantIssue)
			}
			if len(got.Recommendations) != len(got.Issues) {
				t.Fatalf("%d recommendations for %d issues", len(got.Recommendations), len(got.Issues))
			}
			for i, issue := range got.Issues {
				if got.Recommendations[i] != Recommendation(issue) || got.Recommendations[i] == "" {
					t.Errorf("recommendation %d = %q for issue %q", i, got.Recommendations[i], issue)
				}
			}
		})
	}
}

func TestForensicFailureFloorAtTen(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Weights.MissingIdentifier = 10
	e := NewEngine(cfg, nil)

	fields := fullFields()
	fields.ExternalIdentifier = nil
	report := entity.FailedManipulationReport(nil)

	got := e.Assess(report, nil, fields, Signals{ForensicFailed: true})
	if got.Score != 10 {
		t.Fatalf("score = %d, want 10", got.Score)
	}
	if got.Decision != constants.DecisionManualReview {
		t.Fatalf("decision = %s, want MANUAL_REVIEW", got.Decision)
	}

	got = e.Assess(clean(), nil, fields, Signals{})
	if got.Decision != constants.DecisionAutoApprove {
		t.Fatalf("without the failure decision = %s, want AUTO_APPROVE", got.Decision)
	}
}

func TestAssessIsPure(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil)
	matches := []entity.DuplicateMatch{exactMatch(), visualMatch()}
	a := e.Assess(clean(), matches, fullFields(), Signals{})
	b := e.Assess(clean(), matches, fullFields(), Signals{})
	if a.Score != b.Score || a.Decision != b.Decision || !slices.Equal(a.Issues, b.Issues) {
		t.Fatalf("repeated assessment differs: %+v vs %+v", a, b)
	}
}

func TestDecisionBoundaries(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil)
	cases := []struct {
		score int
		dec   constants.Decision
		level constants.RiskLevel
	}{
		{39, constants.DecisionAutoApprove, constants.RiskLow},
		{40, constants.DecisionManualReview, constants.RiskMedium},
		{79, constants.DecisionManualReview, constants.RiskMedium},
		{80, constants.DecisionReject, constants.RiskHigh},
	}
	for _, c := range cases {
		if got := e.decide(c.score); got != c.dec {
			t.Errorf("decide(%d) = %s, want %s", c.score, got, c.dec)
		}
		if got := e.level(c.score); got != c.level {
			t.Errorf("level(%d) = %s, want %s", c.score, got, c.level)
		}
	}
}

func TestZeroWeightsAreHonored(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Weights = Weights{}
	e := NewEngine(cfg, nil)

	fields := fullFields()
	fields.Amount = nil
	got := e.Assess(clean(), []entity.DuplicateMatch{exactMatch()}, fields, Signals{})
	if got.Score != 0 || got.Decision != constants.DecisionAutoApprove {
		t.Fatalf("score=%d decision=%s, want 0 AUTO_APPROVE", got.Score, got.Decision)
	}
	if len(got.Issues) != 2 {
		t.Fatalf("issues = %v, want duplicate and missing amount still listed", got.Issues)
	}
}
