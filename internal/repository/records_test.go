package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-verifier/constants"
	"github.com/joseph-ayodele/receipt-verifier/internal/common"
	"github.com/joseph-ayodele/receipt-verifier/internal/entity"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	store, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "verifier.db"), nil)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return store
}

func str(s string) *string { return &s }

func sampleRecord(org, ident string, created time.Time) *entity.VerificationRecord {
	return &entity.VerificationRecord{
		ID:          uuid.New(),
		OrgID:       org,
		SubmitterID: "worker-1",
		EventID:     "shift-42",
		Digest: entity.ContentDigest{
			ExactHash:        []byte{0xde, 0xad, 0xbe, 0xef},
			PerceptualHashes: map[string]string{"phash": "p:00000000000000ff", "dhash": "d:0000000000000001"},
		},
		Manipulation: entity.ManipulationReport{Score: 12.5, Classification: constants.ClassificationNone, Quality: 90},
		Extracted: entity.ExtractedFields{
			Provider:           str("Grab"),
			ExternalIdentifier: str(ident),
			Amount:             str("12.50"),
			Available:          true,
		},
		Matches: []entity.DuplicateMatch{},
		Risk: entity.RiskAssessment{
			Score: 0, Level: constants.RiskLow, Decision: constants.DecisionAutoApprove,
			Issues: []string{}, Recommendations: []string{},
		},
		Status:    constants.StatusManualReview,
		Version:   1,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewRecordRepository(newTestStore(t), nil)
	created := time.Date(2025, 3, 1, 10, 30, 0, 123456789, time.UTC)

	rec := sampleRecord("acme", "CRN123", created)
	rec.Matches = []entity.DuplicateMatch{{MatchedRecordID: uuid.New(), Kind: constants.MatchVisualTemplate, Confidence: 50, Distance: 7}}
	if err := repo.Create(ctx, rec); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.OrgID != "acme" || got.EventID != "shift-42" || got.Version != 1 || got.Status != constants.StatusManualReview {
		t.Fatalf("got %+v", got)
	}
	if !got.CreatedAt.Equal(created) {
		t.Fatalf("created_at = %s, want %s", got.CreatedAt, created)
	}
	if got.Digest.ExactHex() != "deadbeef" || got.Digest.PerceptualHashes["phash"] != "p:00000000000000ff" {
		t.Fatalf("digest = %+v", got.Digest)
	}
	if got.Extracted.Identifier() != "CRN123" || !got.Extracted.Available {
		t.Fatalf("extracted = %+v", got.Extracted)
	}
	if len(got.Matches) != 1 || got.Matches[0].Distance != 7 {
		t.Fatalf("matches = %+v", got.Matches)
	}
	if got.Manipulation.Score != 12.5 || len(got.Reviews) != 0 {
		t.Fatalf("manipulation=%+v reviews=%+v", got.Manipulation, got.Reviews)
	}

	if _, err := repo.GetByID(ctx, uuid.New()); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("missing record err = %v, want ErrNotFound", err)
	}
}

func TestCreateDuplicateIDFailsAsPersistence(t *testing.T) {
	ctx := context.Background()
	repo := NewRecordRepository(newTestStore(t), nil)
	rec := sampleRecord("acme", "A", time.Now())
	if err := repo.Create(ctx, rec); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(ctx, rec); !errors.Is(err, common.ErrPersistence) {
		t.Fatalf("second Create err = %v, want ErrPersistence", err)
	}
}

func TestScanCorpusIsScopedAndNormalized(t *testing.T) {
	ctx := context.Background()
	repo := NewRecordRepository(newTestStore(t), nil)
	now := time.Now()

	a := sampleRecord("acme", " CRN123 ", now)
	b := sampleRecord("acme", "", now)
	b.Extracted.ExternalIdentifier = nil
	c := sampleRecord("globex", "CRN123", now)
	for _, r := range []*entity.VerificationRecord{a, b, c} {
		if err := repo.Create(ctx, r); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	corpus, err := repo.ScanCorpus(ctx, "acme")
	if err != nil {
		t.Fatalf("ScanCorpus: %v", err)
	}
	if len(corpus) != 2 {
		t.Fatalf("corpus size = %d, want 2", len(corpus))
	}
	byID := map[uuid.UUID]entity.CorpusEntry{}
	for _, e := range corpus {
		byID[e.RecordID] = e
	}
	if byID[a.ID].IdentifierNormalized != "crn123" {
		t.Fatalf("identifier = %q, want crn123", byID[a.ID].IdentifierNormalized)
	}
	if byID[b.ID].IdentifierNormalized != "" {
		t.Fatalf("missing identifier stored as %q", byID[b.ID].IdentifierNormalized)
	}
	if byID[a.ID].PerceptualHashes["dhash"] != "d:0000000000000001" || len(byID[a.ID].ExactHash) != 4 {
		t.Fatalf("entry = %+v", byID[a.ID])
	}

	orgs, err := repo.ListOrgs(ctx)
	if err != nil || len(orgs) != 2 || orgs[0] != "acme" || orgs[1] != "globex" {
		t.Fatalf("ListOrgs = %v, %v", orgs, err)
	}
}

func TestListRecordsByRange(t *testing.T) {
	ctx := context.Background()
	repo := NewRecordRepository(newTestStore(t), nil)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if err := repo.Create(ctx, sampleRecord("acme", "X", base.AddDate(0, 0, i))); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	from, to := base.AddDate(0, 0, 1), base.AddDate(0, 0, 4)
	recs, err := repo.ListRecords(ctx, "acme", &from, &to)
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("records = %d, want 3", len(recs))
	}
	for i := 1; i < len(recs); i++ {
		if recs[i].CreatedAt.Before(recs[i-1].CreatedAt) {
			t.Fatal("records not ordered by created_at")
		}
	}

	all, err := repo.ListRecords(ctx, "acme", nil, nil)
	if err != nil || len(all) != 5 {
		t.Fatalf("all records = %d, %v", len(all), err)
	}
}

func TestApplyReviewCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	repo := NewRecordRepository(newTestStore(t), nil)
	rec := sampleRecord("acme", "CRN1", time.Now())
	if err := repo.Create(ctx, rec); err != nil {
		t.Fatalf("Create: %v", err)
	}

	decidedAt := time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)
	d := entity.ReviewDecision{
		ReviewerID: "rev-1",
		Outcome:    constants.OutcomeApproved,
		Notes:      "looks fine",
		FromStatus: constants.StatusManualReview,
		ToStatus:   constants.StatusApproved,
		Version:    2,
		DecidedAt:  decidedAt,
	}
	if err := repo.ApplyReview(ctx, rec.ID, 1, d); err != nil {
		t.Fatalf("ApplyReview: %v", err)
	}

	// replaying the same command against the new version must fail without changes
	err := repo.ApplyReview(ctx, rec.ID, 1, d)
	if !errors.Is(err, common.ErrStaleVersion) {
		t.Fatalf("replay err = %v, want ErrStaleVersion", err)
	}

	got, err := repo.GetByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Version != 2 || got.Status != constants.StatusApproved || len(got.Reviews) != 1 {
		t.Fatalf("after review: version=%d status=%s reviews=%d", got.Version, got.Status, len(got.Reviews))
	}
	if r := got.Reviews[0]; r.ReviewerID != "rev-1" || r.Outcome != constants.OutcomeApproved || !r.DecidedAt.Equal(decidedAt) {
		t.Fatalf("review = %+v", r)
	}
	if got.Risk.Score != rec.Risk.Score || got.Risk.Decision != rec.Risk.Decision {
		t.Fatal("review must not touch the stored assessment")
	}

	if err := repo.ApplyReview(ctx, uuid.New(), 1, d); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("unknown record err = %v, want ErrNotFound", err)
	}
}
