package pipeline

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-verifier/constants"
	"github.com/joseph-ayodele/receipt-verifier/internal/common"
	"github.com/joseph-ayodele/receipt-verifier/internal/entity"
	"github.com/joseph-ayodele/receipt-verifier/internal/extract"
	"github.com/joseph-ayodele/receipt-verifier/internal/forensics"
	"github.com/joseph-ayodele/receipt-verifier/internal/hashing"
	"github.com/joseph-ayodele/receipt-verifier/internal/imaging"
	"github.com/joseph-ayodele/receipt-verifier/internal/imaging/imagingtest"
	"github.com/joseph-ayodele/receipt-verifier/internal/policy"
	"github.com/joseph-ayodele/receipt-verifier/internal/risk"
)

type fakeStore struct {
	mu        sync.Mutex
	corpus    []entity.CorpusEntry
	created   []*entity.VerificationRecord
	scanErr   error
	createErr error
}

func (s *fakeStore) ScanCorpus(_ context.Context, _ string) ([]entity.CorpusEntry, error) {
	if s.scanErr != nil {
		return nil, s.scanErr
	}
	return s.corpus, nil
}

func (s *fakeStore) Create(_ context.Context, rec *entity.VerificationRecord) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, rec)
	return nil
}

func (s *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*entity.VerificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.created {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, common.ErrNotFound
}

type fakeExtractor struct {
	fields entity.ExtractedFields
	err    error
	calls  int
	media  string
}

func (f *fakeExtractor) Extract(_ context.Context, req extract.Request) (entity.ExtractedFields, error) {
	f.calls++
	f.media = req.MediaType
	if f.err != nil {
		return entity.UnavailableFields(), f.err
	}
	out := f.fields
	out.Available = true
	return out, nil
}

func str(s string) *string { return &s }

func fields(ident string) entity.ExtractedFields {
	return entity.ExtractedFields{Provider: str("Grab"), ExternalIdentifier: str(ident), Amount: str("12.50")}
}

var fixedNow = time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)

func newVerifier(store RecordStore, ex Extractor) *Verifier {
	return NewVerifier(
		imaging.NewNormalizer(imaging.Config{}, nil),
		hashing.NewHasher(nil),
		ex,
		store,
		nil,
		nil,
		WithClock(func() time.Time { return fixedNow }),
	)
}

func receiptPNG(t *testing.T) []byte {
	t.Helper()
	return imagingtest.PNG(t, imagingtest.Receipt(21, 640, 960))
}

func submit(t *testing.T, v *Verifier, raw []byte) *SubmissionResult {
	t.Helper()
	res, err := v.Submit(context.Background(), Submission{Image: raw, OrgID: "acme", SubmitterID: "w-1", EventID: "e-1"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return res
}

func TestSubmitCleanReceiptAutoApproves(t *testing.T) {
	store := &fakeStore{}
	ex := &fakeExtractor{fields: fields("CRN-1")}
	res := submit(t, newVerifier(store, ex), receiptPNG(t))

	rec := res.Record
	if rec.Risk.Decision != constants.DecisionAutoApprove || rec.Status != constants.StatusAutoApproved {
		t.Fatalf("decision=%s status=%s issues=%v manipulation=%+v", rec.Risk.Decision, rec.Status, rec.Risk.Issues, rec.Manipulation)
	}
	if rec.Version != 1 || !rec.CreatedAt.Equal(fixedNow) || rec.OrgID != "acme" || rec.EventID != "e-1" {
		t.Fatalf("record = %+v", rec)
	}
	if len(store.created) != 1 || store.created[0] != rec {
		t.Fatal("record was not persisted")
	}
	if ex.media != "image/png" {
		t.Fatalf("extractor received %q, want the original png", ex.media)
	}
	if res.Summary.RecordID != rec.ID || res.Summary.DuplicateFound || res.Summary.Status != constants.StatusAutoApproved {
		t.Fatalf("summary = %+v", res.Summary)
	}
}

func TestSubmitIsIdempotent(t *testing.T) {
	raw := receiptPNG(t)
	store := &fakeStore{}
	v := newVerifier(store, &fakeExtractor{fields: fields("CRN-1")})

	first := submit(t, v, raw)
	second := submit(t, v, raw)

	if !reflect.DeepEqual(first.Record.Digest, second.Record.Digest) {
		t.Fatalf("digests differ:\n%+v\n%+v", first.Record.Digest, second.Record.Digest)
	}
	if !reflect.DeepEqual(first.Record.Risk, second.Record.Risk) {
		t.Fatalf("assessments differ:\n%+v\n%+v", first.Record.Risk, second.Record.Risk)
	}
	if first.Record.Manipulation != second.Record.Manipulation {
		t.Fatalf("manipulation reports differ: %+v vs %+v", first.Record.Manipulation, second.Record.Manipulation)
	}
	if first.Record.ID == second.Record.ID {
		t.Fatal("each submission gets its own record id")
	}
}

func TestSubmitExactIdentifierRejects(t *testing.T) {
	prior := uuid.New()
	store := &fakeStore{corpus: []entity.CorpusEntry{{
		RecordID:             prior,
		ExactHash:            []byte{1},
		PerceptualHashes:     map[string]string{hashing.AlgPerception: "p:ffffffffffffffff"},
		IdentifierNormalized: "crn123",
	}}}
	res := submit(t, newVerifier(store, &fakeExtractor{fields: fields(" CRN123 ")}), receiptPNG(t))

	rec := res.Record
	if len(rec.Matches) == 0 {
		t.Fatal("expected a match")
	}
	top := rec.Matches[0]
	if top.Kind != constants.MatchExactIdentifier || top.Confidence != 100 || top.MatchedRecordID != prior {
		t.Fatalf("top match = %+v", top)
	}
	if rec.Risk.Decision != constants.DecisionReject || rec.Status != constants.StatusRejected {
		t.Fatalf("decision=%s status=%s", rec.Risk.Decision, rec.Status)
	}
	if !res.Summary.DuplicateFound || res.Summary.DuplicateCount != 1 {
		t.Fatalf("summary = %+v", res.Summary)
	}
}

func TestSubmitVisualTemplateOnlyAddsNoScore(t *testing.T) {
	raw := receiptPNG(t)
	store := &fakeStore{}
	v := newVerifier(store, &fakeExtractor{fields: fields("CRN-NEW")})

	// Seed the corpus with the digest of the same image under another identifier.
	seed := submit(t, newVerifier(&fakeStore{}, &fakeExtractor{fields: fields("CRN-OLD")}), raw)
	store.corpus = []entity.CorpusEntry{{
		RecordID:             seed.Record.ID,
		ExactHash:            []byte{0},
		PerceptualHashes:     seed.Record.Digest.PerceptualHashes,
		IdentifierNormalized: "crn-old",
	}}

	res := submit(t, v, raw)
	if len(res.Record.Matches) != 1 || res.Record.Matches[0].Kind != constants.MatchVisualTemplate {
		t.Fatalf("matches = %+v", res.Record.Matches)
	}
	if res.Record.Risk.Score != seed.Record.Risk.Score {
		t.Fatalf("template match changed the score: %d vs %d", res.Record.Risk.Score, seed.Record.Risk.Score)
	}
	if res.Summary.DuplicateFound || res.Summary.TemplateMatchCount != 1 {
		t.Fatalf("summary = %+v", res.Summary)
	}
}

func TestSubmitExtractionUnavailableScores35(t *testing.T) {
	store := &fakeStore{}
	ex := &fakeExtractor{err: common.ErrExtractionUnavailable}
	res := submit(t, newVerifier(store, ex), receiptPNG(t))

	r := res.Record.Risk
	if r.Score != 35 || r.Decision != constants.DecisionAutoApprove {
		t.Fatalf("risk = %+v", r)
	}
	want := []string{risk.IssueMissingAmount, risk.IssueMissingIdentifier, risk.IssueExtractionUnavailable}
	if !reflect.DeepEqual(r.Issues, want) {
		t.Fatalf("issues = %q, want %q", r.Issues, want)
	}
	if res.Record.Extracted.Available {
		t.Fatal("extracted fields should be marked unavailable")
	}
}

func TestSubmitScanFailureForcesManualReview(t *testing.T) {
	store := &fakeStore{scanErr: errors.New("replica down")}
	res := submit(t, newVerifier(store, &fakeExtractor{fields: fields("CRN-1")}), receiptPNG(t))

	if res.Record.Risk.Decision != constants.DecisionManualReview || res.Record.Status != constants.StatusManualReview {
		t.Fatalf("decision = %s", res.Record.Risk.Decision)
	}
	if len(res.Record.Matches) != 0 {
		t.Fatal("scan failure must record zero matches")
	}
}

type failingAnalyzer struct{}

func (failingAnalyzer) Analyze(*imaging.NormalizedImage) entity.ManipulationReport {
	return entity.FailedManipulationReport(errors.New("jpeg re-encode failed"))
}

func TestSubmitForensicFailureForcesManualReview(t *testing.T) {
	pol := policy.Default()
	pol.Risk.Weights.MissingIdentifier = 10
	store := &fakeStore{}
	v := NewVerifier(
		imaging.NewNormalizer(imaging.Config{}, nil),
		hashing.NewHasher(nil),
		&fakeExtractor{fields: entity.ExtractedFields{Provider: str("Grab"), Amount: str("12.50")}},
		store,
		policy.NewSet(pol),
		nil,
		WithClock(func() time.Time { return fixedNow }),
		WithAnalyzer(func(forensics.Config) Analyzer { return failingAnalyzer{} }),
	)
	rec := submit(t, v, receiptPNG(t)).Record

	if rec.Risk.Score != 10 {
		t.Fatalf("score = %d, want 10", rec.Risk.Score)
	}
	if rec.Risk.Decision != constants.DecisionManualReview || rec.Status != constants.StatusManualReview {
		t.Fatalf("decision=%s status=%s", rec.Risk.Decision, rec.Status)
	}
	if !rec.Manipulation.Failed() || rec.Manipulation.Score != 0 {
		t.Fatalf("manipulation = %+v", rec.Manipulation)
	}
	want := []string{risk.IssueMissingIdentifier, risk.IssueForensicFailed}
	if !reflect.DeepEqual(rec.Risk.Issues, want) {
		t.Fatalf("issues = %v, want %v", rec.Risk.Issues, want)
	}
	if len(store.created) != 1 {
		t.Fatal("record was not persisted")
	}
}

func TestSubmitFatalErrors(t *testing.T) {
	t.Run("invalid image", func(t *testing.T) {
		store := &fakeStore{}
		_, err := newVerifier(store, &fakeExtractor{}).Submit(context.Background(), Submission{Image: []byte("not an image"), OrgID: "acme"})
		if !errors.Is(err, common.ErrInvalidImage) {
			t.Fatalf("err = %v, want ErrInvalidImage", err)
		}
		if len(store.created) != 0 {
			t.Fatal("nothing may be stored for an invalid image")
		}
	})

	t.Run("persistence", func(t *testing.T) {
		store := &fakeStore{createErr: errors.New("disk full")}
		_, err := newVerifier(store, &fakeExtractor{fields: fields("X")}).Submit(context.Background(), Submission{Image: receiptPNG(t), OrgID: "acme"})
		if !errors.Is(err, common.ErrPersistence) {
			t.Fatalf("err = %v, want ErrPersistence", err)
		}
	})

	t.Run("missing org", func(t *testing.T) {
		_, err := newVerifier(&fakeStore{}, &fakeExtractor{}).Submit(context.Background(), Submission{Image: receiptPNG(t)})
		if !errors.Is(err, common.ErrInvalidInput) {
			t.Fatalf("err = %v, want ErrInvalidInput", err)
		}
	})
}

func TestSubmitUsesContextOrg(t *testing.T) {
	store := &fakeStore{}
	v := newVerifier(store, &fakeExtractor{fields: fields("X")})
	ctx := common.WithOrgID(context.Background(), "globex")
	res, err := v.Submit(ctx, Submission{Image: receiptPNG(t)})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Record.OrgID != "globex" {
		t.Fatalf("org = %s", res.Record.OrgID)
	}

	if _, err := v.Get(common.WithOrgID(context.Background(), "acme"), res.Record.ID); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("cross-org Get err = %v, want ErrNotFound", err)
	}
	if got, err := v.Get(ctx, res.Record.ID); err != nil || got.ID != res.Record.ID {
		t.Fatalf("Get = %v, %v", got, err)
	}
}

func TestAssemble(t *testing.T) {
	in := AssembleInput{
		OrgID:  "acme",
		Digest: entity.ContentDigest{ExactHash: []byte{1}},
		Risk:   entity.RiskAssessment{Decision: constants.DecisionReject},
	}
	rec, err := Assemble(in, uuid.New(), fixedNow)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if rec.Status != constants.StatusRejected || rec.Version != 1 || rec.Matches == nil || rec.Reviews == nil {
		t.Fatalf("record = %+v", rec)
	}
	if _, err := Assemble(in, uuid.Nil, fixedNow); err == nil {
		t.Fatal("expected error for nil id")
	}
	in.OrgID = ""
	if _, err := Assemble(in, uuid.New(), fixedNow); err == nil {
		t.Fatal("expected error for missing org")
	}
}
