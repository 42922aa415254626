package async

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-verifier/constants"
	"github.com/joseph-ayodele/receipt-verifier/internal/entity"
	"github.com/joseph-ayodele/receipt-verifier/internal/pipeline"
)

type fakeSubmitter struct {
	inFlight, peak atomic.Int32
	delay          time.Duration
}

func (f *fakeSubmitter) Submit(ctx context.Context, sub pipeline.Submission) (*pipeline.SubmissionResult, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	decision := constants.DecisionAutoApprove
	switch string(sub.Image) {
	case "bad":
		return nil, errors.New("invalid image")
	case "dup":
		decision = constants.DecisionReject
	case "odd":
		decision = constants.DecisionManualReview
	}
	return &pipeline.SubmissionResult{Record: &entity.VerificationRecord{
		ID:     uuid.New(),
		OrgID:  sub.OrgID,
		Risk:   entity.RiskAssessment{Decision: decision},
		Status: decision.InitialStatus(),
	}}, nil
}

func newTestQueue(sub Submitter, files map[string]string, opts ...Option) *SubmitQueue {
	q := NewSubmitQueue(sub, nil, opts...)
	q.read = func(path string) ([]byte, error) {
		if v, ok := files[path]; ok {
			return []byte(v), nil
		}
		return nil, errors.New("no such file")
	}
	return q
}

func TestSubmitQueueAggregatesStats(t *testing.T) {
	files := map[string]string{"a": "ok", "b": "dup", "c": "odd", "d": "bad", "e": "ok"}
	sub := &fakeSubmitter{delay: 5 * time.Millisecond}
	q := newTestQueue(sub, files, WithWorkers(2), WithQueueSize(1))

	for _, p := range []string{"a", "b", "c", "d", "e", "missing"} {
		if err := q.Enqueue(context.Background(), Job{Path: p, OrgID: "acme"}); err != nil {
			t.Fatalf("Enqueue(%s): %v", p, err)
		}
	}
	q.Shutdown(context.Background())

	want := Stats{Submitted: 6, Succeeded: 4, Failed: 2, AutoApproved: 2, ManualReview: 1, Rejected: 1}
	if got := q.Stats(); got != want {
		t.Fatalf("stats = %+v, want %+v", got, want)
	}
	if got := len(q.Outcomes()); got != 6 {
		t.Fatalf("outcomes = %d", got)
	}
	if peak := sub.peak.Load(); peak > 2 {
		t.Fatalf("peak concurrency %d exceeds 2 workers", peak)
	}
}

func TestSubmitQueueJobTimeout(t *testing.T) {
	q := newTestQueue(&fakeSubmitter{delay: time.Second}, map[string]string{"slow": "ok"}, WithJobTimeout(10*time.Millisecond))
	if err := q.Enqueue(context.Background(), Job{Path: "slow"}); err != nil {
		t.Fatal(err)
	}
	q.Shutdown(context.Background())

	out := q.Outcomes()
	if len(out) != 1 || !errors.Is(out[0].Err, context.DeadlineExceeded) {
		t.Fatalf("outcomes = %+v", out)
	}
}

func TestSubmitQueueRejectsAfterShutdown(t *testing.T) {
	q := newTestQueue(&fakeSubmitter{}, nil)
	q.Shutdown(context.Background())
	if err := q.Enqueue(context.Background(), Job{Path: "x"}); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("err = %v, want ErrQueueClosed", err)
	}
	q.Shutdown(context.Background())
}
