package async

import (
	"context"
	"time"
)

// Job is one file to submit through the verifier.
type Job struct {
	Path        string
	OrgID       string
	SubmitterID string
	EventID     string
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
