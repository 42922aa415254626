package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-verifier/internal/entity"
)

type fakeCorpus map[string][]entity.CorpusEntry

func (f fakeCorpus) ScanCorpus(_ context.Context, org string) ([]entity.CorpusEntry, error) {
	if org == "broken" {
		return nil, errors.New("scan failed")
	}
	return f[org], nil
}

func (f fakeCorpus) ListOrgs(context.Context) ([]string, error) {
	return []string{"acme", "broken", "globex"}, nil
}

func entry(ident string, hash byte) entity.CorpusEntry {
	return entity.CorpusEntry{RecordID: uuid.New(), ExactHash: []byte{hash}, IdentifierNormalized: ident}
}

func TestRunGroupsCollisions(t *testing.T) {
	corpus := fakeCorpus{"acme": {
		entry("crn123", 1),
		entry("crn123", 2),
		entry("crn999", 3),
		entry("", 3),
		entry("", 4),
	}}
	rep, err := NewAuditor(corpus, nil).Run(context.Background(), "acme")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Scanned != 5 || len(rep.Collisions) != 2 {
		t.Fatalf("report = %+v", rep)
	}
	if c := rep.Collisions[0]; c.Kind != CollisionIdentifier || c.Key != "crn123" || len(c.RecordIDs) != 2 {
		t.Fatalf("identifier collision = %+v", c)
	}
	if c := rep.Collisions[1]; c.Kind != CollisionContent || c.Key != "03" || len(c.RecordIDs) != 2 {
		t.Fatalf("content collision = %+v", c)
	}
}

func TestSchedulerRunOnce(t *testing.T) {
	corpus := fakeCorpus{
		"acme":   {entry("a", 1), entry("a", 2)},
		"globex": {entry("b", 3)},
	}
	s, err := NewScheduler("0 3 * * *", NewAuditor(corpus, nil), nil, corpus, nil)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	reps := s.RunOnce(context.Background())
	if len(reps) != 2 || reps[0].OrgID != "acme" || len(reps[0].Collisions) != 1 || len(reps[1].Collisions) != 0 {
		t.Fatalf("reports = %+v", reps)
	}

	s.orgs = []string{"globex"}
	if reps := s.RunOnce(context.Background()); len(reps) != 1 || reps[0].OrgID != "globex" {
		t.Fatalf("configured orgs ignored: %+v", reps)
	}
}

func TestSchedulerSpec(t *testing.T) {
	if _, err := NewScheduler("every day", NewAuditor(fakeCorpus{}, nil), nil, nil, nil); err == nil {
		t.Fatal("expected error for bad spec")
	}
	s, err := NewScheduler("30 2 * * 1", NewAuditor(fakeCorpus{}, nil), nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	from := time.Date(2025, 6, 4, 12, 0, 0, 0, time.UTC) // Wednesday
	want := time.Date(2025, 6, 9, 2, 30, 0, 0, time.UTC)
	if got := s.Next(from); !got.Equal(want) {
		t.Fatalf("Next = %v, want %v", got, want)
	}
}

func TestSchedulerStopsOnCancel(t *testing.T) {
	s, err := NewScheduler("* * * * *", NewAuditor(fakeCorpus{}, nil), nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { s.Run(ctx); close(done) }()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
