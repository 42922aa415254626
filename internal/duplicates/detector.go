// Package duplicates matches a new submission against an organization's
// previously stored records.
package duplicates

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/joseph-ayodele/receipt-verifier/constants"
	"github.com/joseph-ayodele/receipt-verifier/internal/common"
	"github.com/joseph-ayodele/receipt-verifier/internal/entity"
	"github.com/joseph-ayodele/receipt-verifier/internal/hashing"
)

// CorpusReader lists the stored records of one organization. Implementations
// must not mutate anything.
type CorpusReader interface {
	ScanCorpus(ctx context.Context, orgID string) ([]entity.CorpusEntry, error)
}

type Config struct {
	Thresholds         hashing.Thresholds
	TemplateConfidence int
}

func DefaultConfig() Config {
	return Config{Thresholds: hashing.DefaultThresholds(), TemplateConfidence: 50}
}

const exactConfidence = 100

type Detector struct {
	cfg    Config
	logger *slog.Logger
}

func NewDetector(cfg Config, logger *slog.Logger) *Detector {
	if cfg.Thresholds.SameTemplate <= 0 {
		cfg.Thresholds = hashing.DefaultThresholds()
	}
	if cfg.TemplateConfidence <= 0 || cfg.TemplateConfidence > 100 {
		cfg.TemplateConfidence = DefaultConfig().TemplateConfidence
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{cfg: cfg, logger: logger}
}

// NormalizeIdentifier trims and case-folds an external identifier so that
// "CRN123" and " crn123 " compare equal.
func NormalizeIdentifier(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return cases.Fold().String(s)
}

// Detect compares the submission against every corpus entry and returns at
// most one match per entry. An equal non-empty identifier wins over visual
// similarity. Results are ordered by confidence, kind, distance, then id.
func (d *Detector) Detect(digest entity.ContentDigest, identifier string, corpus []entity.CorpusEntry) []entity.DuplicateMatch {
	ident := NormalizeIdentifier(identifier)
	matches := make([]entity.DuplicateMatch, 0)

	for _, c := range corpus {
		distance, _, comparable := hashing.Compare(digest.PerceptualHashes, c.PerceptualHashes)
		sameFile := hashing.SameExact(digest.ExactHash, c.ExactHash) ||
			(comparable && d.cfg.Thresholds.Classify(distance) == hashing.SameFile)
		if !comparable {
			distance = 0
		}

		var (
			kind       constants.MatchKind
			confidence int
		)
		switch {
		case ident != "" && ident == NormalizeIdentifier(c.IdentifierNormalized):
			kind, confidence = constants.MatchExactIdentifier, exactConfidence
		case comparable && distance < d.cfg.Thresholds.SameTemplate:
			kind, confidence = constants.MatchVisualTemplate, d.cfg.TemplateConfidence
		default:
			continue
		}

		m, err := entity.NewDuplicateMatch(c.RecordID, kind, confidence, distance, sameFile)
		if err != nil {
			d.logger.Warn("duplicates.detect.skip", "record_id", c.RecordID, "error", err)
			continue
		}
		matches = append(matches, m)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.Kind.Rank() != b.Kind.Rank() {
			return a.Kind.Rank() > b.Kind.Rank()
		}
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		return a.MatchedRecordID.String() < b.MatchedRecordID.String()
	})
	return matches
}

// Scan reads the organization's corpus and runs Detect. A read failure is
// returned wrapped in common.ErrDuplicateScan.
func (d *Detector) Scan(ctx context.Context, reader CorpusReader, orgID string, digest entity.ContentDigest, identifier string) ([]entity.DuplicateMatch, error) {
	corpus, err := reader.ScanCorpus(ctx, orgID)
	if err != nil {
		return nil, common.NewAppError(common.CodeDuplicate, "scan corpus for org "+orgID, errors.Join(common.ErrDuplicateScan, err))
	}
	matches := d.Detect(digest, identifier, corpus)
	d.logger.Info("duplicates.scan.done", "org_id", orgID, "corpus_size", len(corpus), "matches", len(matches))
	return matches, nil
}
