package entity

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-verifier/constants"
)

// DuplicateMatch links a submission to one previously stored record.
type DuplicateMatch struct {
	MatchedRecordID uuid.UUID           `json:"matched_record_id"`
	Kind            constants.MatchKind `json:"match_kind"`
	Confidence      int                 `json:"confidence"`
	Distance        int                 `json:"distance"`
	SameFile        bool                `json:"same_file,omitempty"`
}

// NewDuplicateMatch validates the match before it enters a record.
func NewDuplicateMatch(id uuid.UUID, kind constants.MatchKind, confidence, distance int, sameFile bool) (DuplicateMatch, error) {
	if id == uuid.Nil {
		return DuplicateMatch{}, fmt.Errorf("duplicate match without record id")
	}
	if kind != constants.MatchExactIdentifier && kind != constants.MatchVisualTemplate {
		return DuplicateMatch{}, fmt.Errorf("unknown match kind %q", kind)
	}
	if confidence < 0 || confidence > 100 {
		return DuplicateMatch{}, fmt.Errorf("match confidence %d outside [0,100]", confidence)
	}
	if distance < 0 {
		return DuplicateMatch{}, fmt.Errorf("negative match distance %d", distance)
	}
	return DuplicateMatch{
		MatchedRecordID: id,
		Kind:            kind,
		Confidence:      confidence,
		Distance:        distance,
		SameFile:        sameFile,
	}, nil
}

// CorpusEntry is the read-only projection of a stored record that duplicate
// detection scans.
type CorpusEntry struct {
	RecordID             uuid.UUID
	ExactHash            []byte
	PerceptualHashes     map[string]string
	IdentifierNormalized string
}
