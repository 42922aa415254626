package entity

import (
	"fmt"

	"github.com/joseph-ayodele/receipt-verifier/constants"
)

// ManipulationReport is the outcome of error-level analysis on one image.
type ManipulationReport struct {
	Score          float64                  `json:"score"`
	Classification constants.Classification `json:"classification"`
	Quality        int                      `json:"quality,omitempty"`
	Error          string                   `json:"error,omitempty"`
}

// NewManipulationReport validates score and classification.
func NewManipulationReport(score float64, cls constants.Classification, quality int) (ManipulationReport, error) {
	if score < 0 || score > 100 {
		return ManipulationReport{}, fmt.Errorf("manipulation score %.2f outside [0,100]", score)
	}
	switch cls {
	case constants.ClassificationNone, constants.ClassificationLow,
		constants.ClassificationMedium, constants.ClassificationHigh:
	case constants.ClassificationError:
		if score != 0 {
			return ManipulationReport{}, fmt.Errorf("failed analysis must carry score 0, got %.2f", score)
		}
	default:
		return ManipulationReport{}, fmt.Errorf("unknown classification %q", cls)
	}
	return ManipulationReport{Score: score, Classification: cls, Quality: quality}, nil
}

// FailedManipulationReport records a forensic pass that could not complete.
func FailedManipulationReport(cause error) ManipulationReport {
	msg := "unknown failure"
	if cause != nil {
		msg = cause.Error()
	}
	return ManipulationReport{Classification: constants.ClassificationError, Error: msg}
}

// Failed reports whether the analysis did not run to completion.
func (r ManipulationReport) Failed() bool {
	return r.Classification == constants.ClassificationError
}
