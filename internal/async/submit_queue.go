package async

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-verifier/constants"
	"github.com/joseph-ayodele/receipt-verifier/internal/common"
	"github.com/joseph-ayodele/receipt-verifier/internal/pipeline"
)

// ErrQueueClosed is returned by Enqueue after Shutdown has started.
var ErrQueueClosed = errors.New("queue is shutting down")

// Submitter is satisfied by *pipeline.Verifier.
type Submitter interface {
	Submit(ctx context.Context, sub pipeline.Submission) (*pipeline.SubmissionResult, error)
}

// Outcome is the result of one job.
type Outcome struct {
	Job      Job
	RecordID uuid.UUID
	Decision constants.Decision
	Status   constants.RecordStatus
	Score    int
	Err      error
	Elapsed  time.Duration
}

// Stats aggregates outcomes by result.
type Stats struct {
	Submitted    uint32
	Succeeded    uint32
	Failed       uint32
	AutoApproved uint32
	ManualReview uint32
	Rejected     uint32
}

type SubmitQueue struct {
	sub     Submitter
	logger  *slog.Logger
	workers int
	timeout time.Duration
	read    func(string) ([]byte, error)

	ch     chan Job
	sendMu sync.RWMutex // held for reading while sending on ch
	wg     sync.WaitGroup
	once   sync.Once

	mu       sync.Mutex
	closed   bool
	outcomes []Outcome
	stats    Stats
}

type Option func(*SubmitQueue)

func WithWorkers(n int) Option {
	return func(q *SubmitQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *SubmitQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}
func WithJobTimeout(d time.Duration) Option {
	return func(q *SubmitQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewSubmitQueue(sub Submitter, logger *slog.Logger, opts ...Option) *SubmitQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &SubmitQueue{
		sub:     sub,
		logger:  logger,
		workers: 4,
		timeout: time.Minute,
		read:    os.ReadFile,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *SubmitQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("async.worker.started", "worker_id", workerID)
				for job := range q.ch {
					q.record(q.process(workerID, job))
				}
				q.logger.Debug("async.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *SubmitQueue) process(workerID int, job Job) Outcome {
	start := time.Now()
	out := Outcome{Job: job}

	raw, err := q.read(job.Path)
	if err != nil {
		out.Err = err
		out.Elapsed = time.Since(start)
		q.logger.Error("async.submit.read_failed", "worker_id", workerID, "path", job.Path, "error", err)
		return out
	}

	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	if job.TraceID != "" {
		ctx = common.WithRequestID(ctx, job.TraceID)
	}
	res, err := q.sub.Submit(ctx, pipeline.Submission{
		Image:        raw,
		OrgID:        job.OrgID,
		SubmitterID:  job.SubmitterID,
		EventID:      job.EventID,
		FilenameHint: filepath.Base(job.Path),
	})
	out.Elapsed = time.Since(start)
	if err != nil {
		out.Err = err
		q.logger.Error("async.submit.failed", "worker_id", workerID, "path", job.Path, "error", err)
		return out
	}
	out.RecordID = res.Record.ID
	out.Decision = res.Record.Risk.Decision
	out.Status = res.Record.Status
	out.Score = res.Record.Risk.Score
	q.logger.Info("async.submit.ok", "worker_id", workerID, "path", job.Path, "record_id", out.RecordID, "decision", out.Decision)
	return out
}

func (q *SubmitQueue) record(o Outcome) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.outcomes = append(q.outcomes, o)
	if o.Err != nil {
		q.stats.Failed++
		return
	}
	q.stats.Succeeded++
	switch o.Decision {
	case constants.DecisionAutoApprove:
		q.stats.AutoApproved++
	case constants.DecisionReject:
		q.stats.Rejected++
	default:
		q.stats.ManualReview++
	}
}

// Enqueue blocks while the buffer is full, until ctx is done.
func (q *SubmitQueue) Enqueue(ctx context.Context, job Job) error {
	q.sendMu.RLock()
	defer q.sendMu.RUnlock()

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.logger.Warn("cannot enqueue: queue is shutting down", "path", job.Path)
		return ErrQueueClosed
	}
	q.stats.Submitted++
	q.mu.Unlock()

	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now().UTC()
	}
	select {
	case q.ch <- job:
		return nil
	default:
		q.logger.Debug("queue full, applying backpressure", "path", job.Path)
	}
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		q.mu.Lock()
		q.stats.Submitted--
		q.mu.Unlock()
		return ctx.Err()
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish.
func (q *SubmitQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	q.sendMu.Lock()
	close(q.ch)
	q.sendMu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("async.queue.shutdown_interrupted")
	case <-done:
		q.logger.Info("async.queue.drained", "succeeded", q.Stats().Succeeded, "failed", q.Stats().Failed)
	}
}

// Outcomes returns a copy of the finished jobs so far, in completion order.
func (q *SubmitQueue) Outcomes() []Outcome {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Outcome(nil), q.outcomes...)
}

func (q *SubmitQueue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats
}
