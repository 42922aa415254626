package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/receipt-verifier/internal/common"
	"github.com/joseph-ayodele/receipt-verifier/internal/entity"
)

const DefaultTimeout = 20 * time.Second

// Guard bounds a FieldExtractor by a timeout and converts every failure into
// unavailable fields. It never blocks past the deadline, even when the
// underlying provider ignores context cancellation.
type Guard struct {
	inner   FieldExtractor
	timeout time.Duration
	logger  *slog.Logger
}

// NewGuard wraps inner. A nil inner means extraction is disabled and every
// call reports the service as unavailable.
func NewGuard(inner FieldExtractor, timeout time.Duration, logger *slog.Logger) *Guard {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{inner: inner, timeout: timeout, logger: logger}
}

type result struct {
	fields entity.ExtractedFields
	err    error
}

// Extract returns the provider's fields, or entity.UnavailableFields together
// with an error wrapping common.ErrExtractionUnavailable. Callers treat the
// error as a signal, not a failure.
func (g *Guard) Extract(ctx context.Context, req Request) (entity.ExtractedFields, error) {
	if g.inner == nil {
		return entity.UnavailableFields(), unavailable(errors.New("no extraction provider configured"))
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("extractor panic: %v", r)}
			}
		}()
		fields, _, err := g.inner.Extract(ctx, req)
		ch <- result{fields: fields, err: err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			g.logger.Warn("extract.guard.failed", "error", res.err, "elapsed_ms", time.Since(start).Milliseconds())
			return entity.UnavailableFields(), unavailable(res.err)
		}
		res.fields.Available = true
		return res.fields, nil
	case <-ctx.Done():
		g.logger.Warn("extract.guard.timeout", "timeout", g.timeout, "error", ctx.Err())
		return entity.UnavailableFields(), unavailable(ctx.Err())
	}
}

func unavailable(cause error) error {
	return common.NewAppError(common.CodeExtraction, "extraction unavailable", errors.Join(common.ErrExtractionUnavailable, cause))
}
