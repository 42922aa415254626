// Package pipeline runs a submission through every verification stage and
// persists the resulting record.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/receipt-verifier/internal/common"
	"github.com/joseph-ayodele/receipt-verifier/internal/duplicates"
	"github.com/joseph-ayodele/receipt-verifier/internal/entity"
	"github.com/joseph-ayodele/receipt-verifier/internal/extract"
	"github.com/joseph-ayodele/receipt-verifier/internal/forensics"
	"github.com/joseph-ayodele/receipt-verifier/internal/hashing"
	"github.com/joseph-ayodele/receipt-verifier/internal/imaging"
	"github.com/joseph-ayodele/receipt-verifier/internal/policy"
	"github.com/joseph-ayodele/receipt-verifier/internal/risk"
)

// RecordStore is the persistence the verifier needs.
type RecordStore interface {
	duplicates.CorpusReader
	Create(ctx context.Context, rec *entity.VerificationRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.VerificationRecord, error)
}

// Extractor is satisfied by extract.Guard: it never fails hard, and reports
// unavailability through the error.
type Extractor interface {
	Extract(ctx context.Context, req extract.Request) (entity.ExtractedFields, error)
}

// Analyzer scores an image for manipulation. A failed pass is reported in the
// returned report, not as an error.
type Analyzer interface {
	Analyze(img *imaging.NormalizedImage) entity.ManipulationReport
}

// Submission is one uploaded receipt.
type Submission struct {
	Image        []byte
	OrgID        string // falls back to the context org
	SubmitterID  string
	EventID      string
	FilenameHint string
}

type SubmissionResult struct {
	Record  *entity.VerificationRecord
	Summary entity.SubmissionSummary
}

type Verifier struct {
	normalizer     *imaging.Normalizer
	hasher         *hashing.Hasher
	analyzerFor    func(forensics.Config) Analyzer
	extractor      Extractor
	store          RecordStore
	policies       *policy.Set
	clock          Clock
	newID          func() uuid.UUID
	maxVisionBytes int
	logger         *slog.Logger
}

type Option func(*Verifier)

func WithClock(c Clock) Option {
	return func(v *Verifier) {
		if c != nil {
			v.clock = c
		}
	}
}

func WithIDGenerator(f func() uuid.UUID) Option {
	return func(v *Verifier) {
		if f != nil {
			v.newID = f
		}
	}
}

// WithAnalyzer replaces the forensic analyzer built from each tenant policy.
func WithAnalyzer(f func(forensics.Config) Analyzer) Option {
	return func(v *Verifier) {
		if f != nil {
			v.analyzerFor = f
		}
	}
}

// WithMaxVisionBytes caps the upload size sent to the extraction service as-is.
func WithMaxVisionBytes(n int) Option {
	return func(v *Verifier) { v.maxVisionBytes = n }
}

func NewVerifier(
	normalizer *imaging.Normalizer,
	hasher *hashing.Hasher,
	extractor Extractor,
	store RecordStore,
	policies *policy.Set,
	logger *slog.Logger,
	opts ...Option,
) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	if policies == nil {
		policies = policy.NewSet(policy.Default())
	}
	v := &Verifier{
		normalizer: normalizer,
		hasher:     hasher,
		extractor:  extractor,
		analyzerFor: func(cfg forensics.Config) Analyzer {
			return forensics.NewAnalyzer(cfg, logger)
		},
		store:          store,
		policies:       policies,
		clock:          time.Now,
		newID:          uuid.New,
		maxVisionBytes: 10 << 20,
		logger:         logger,
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Submit verifies one receipt. It fails only on undecodable input, an
// internal hashing error, or a persistence failure. Extraction, forensic and
// duplicate-scan failures degrade into a more conservative decision.
func (v *Verifier) Submit(ctx context.Context, sub Submission) (*SubmissionResult, error) {
	start := time.Now()
	org := sub.OrgID
	if org == "" {
		org = common.OrgIDFromContext(ctx)
	}
	if org == "" {
		return nil, common.NewAppError(common.CodeInvalidInput, "org id is required", common.ErrInvalidInput)
	}
	pol, ok := policy.FromContext(ctx)
	if !ok {
		pol = v.policies.For(org)
	}
	log := v.logger.With("org_id", org, "submitter_id", sub.SubmitterID, "request_id", common.RequestIDFromContext(ctx))
	log.Info("pipeline.submit.start", "bytes", len(sub.Image))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	// Extraction starts before normalization when the upload can be sent as-is.
	normalized := make(chan *imaging.NormalizedImage, 1)
	var (
		fields     entity.ExtractedFields
		extractErr error
	)
	g.Go(func() error {
		fields, extractErr = v.extract(gctx, sub, normalized)
		return nil
	})

	img, err := v.normalizer.Normalize(ctx, sub.Image)
	if err != nil {
		close(normalized)
		cancel()
		_ = g.Wait()
		log.Warn("pipeline.submit.invalid_image", "error", err)
		return nil, err
	}
	normalized <- img

	var (
		digest entity.ContentDigest
		report entity.ManipulationReport
	)
	g.Go(func() error {
		d, err := v.hasher.Digest(img)
		if err != nil {
			return fmt.Errorf("hash: %w", err)
		}
		digest = d
		return nil
	})
	g.Go(func() error {
		report = v.analyzerFor(pol.Forensics).Analyze(img)
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Error("pipeline.submit.stage_failed", "error", err)
		return nil, common.NewAppError(common.CodeInternal, "verification stage failed", errors.Join(common.ErrInternal, err))
	}

	signals := risk.Signals{
		ForensicFailed:        report.Failed(),
		ExtractionUnavailable: extractErr != nil,
	}

	matches, err := duplicates.NewDetector(pol.Duplicates(), v.logger).Scan(ctx, v.store, org, digest, fields.Identifier())
	if err != nil {
		log.Warn("pipeline.submit.scan_failed", "error", err)
		matches = []entity.DuplicateMatch{}
		signals.ScanFailed = true
	}

	assessment := risk.NewEngine(pol.Risk, v.logger).Assess(report, matches, fields, signals)

	rec, err := Assemble(AssembleInput{
		OrgID:        org,
		SubmitterID:  sub.SubmitterID,
		EventID:      sub.EventID,
		Digest:       digest,
		Manipulation: report,
		Extracted:    fields,
		Matches:      matches,
		Risk:         assessment,
	}, v.newID(), v.clock())
	if err != nil {
		return nil, common.NewAppError(common.CodeInternal, "assemble record", errors.Join(common.ErrInternal, err))
	}

	if err := v.store.Create(ctx, rec); err != nil {
		log.Error("pipeline.submit.persist_failed", "record_id", rec.ID, "error", err)
		if !errors.Is(err, common.ErrPersistence) {
			err = common.Persistence("create record", err)
		}
		return nil, err
	}

	log.Info("pipeline.submit.done",
		"record_id", rec.ID,
		"score", assessment.Score,
		"decision", assessment.Decision,
		"status", rec.Status,
		"matches", len(matches),
		"manipulation", report.Classification,
		"extraction_available", fields.Available,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return &SubmissionResult{Record: rec, Summary: rec.Summary()}, nil
}

func (v *Verifier) extract(ctx context.Context, sub Submission, normalized <-chan *imaging.NormalizedImage) (entity.ExtractedFields, error) {
	if v.extractor == nil {
		return entity.UnavailableFields(), common.ErrExtractionUnavailable
	}

	format := imaging.Sniff(sub.Image)
	payload, mediaType, err := extract.VisionPayload(sub.Image, format, nil, v.maxVisionBytes)
	if err != nil {
		// needs the normalized buffer
		img, ok := <-normalized
		if !ok {
			return entity.UnavailableFields(), common.ErrExtractionUnavailable
		}
		payload, mediaType, err = extract.VisionPayload(sub.Image, img.Format, img.Pixels, v.maxVisionBytes)
		if err != nil {
			v.logger.Warn("pipeline.extract.payload_failed", "error", err)
			return entity.UnavailableFields(), errors.Join(common.ErrExtractionUnavailable, err)
		}
	}

	return v.extractor.Extract(ctx, extract.Request{
		Image:        payload,
		MediaType:    mediaType,
		FilenameHint: sub.FilenameHint,
	})
}

// Get returns a stored record. Records of another organization than the
// context's are reported as not found.
func (v *Verifier) Get(ctx context.Context, id uuid.UUID) (*entity.VerificationRecord, error) {
	rec, err := v.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if org := common.OrgIDFromContext(ctx); org != "" && org != rec.OrgID {
		return nil, common.NewAppError(common.CodeNotFound, "record "+id.String(), common.ErrNotFound)
	}
	return rec, nil
}
