// Package audit rescans stored records for duplicates that slipped past
// submission-time detection.
package audit

import (
	"context"
	"encoding/hex"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-verifier/internal/duplicates"
)

// CollisionKind says what a group of records has in common.
type CollisionKind string

const (
	CollisionIdentifier CollisionKind = "IDENTIFIER"
	CollisionContent    CollisionKind = "CONTENT" // byte-identical uploads
)

// Collision is a set of records sharing one identifier or one exact hash.
type Collision struct {
	Kind      CollisionKind
	Key       string
	RecordIDs []uuid.UUID
}

type Report struct {
	OrgID      string
	Scanned    int
	Collisions []Collision
	Elapsed    time.Duration
}

type Auditor struct {
	corpus duplicates.CorpusReader
	logger *slog.Logger
}

func NewAuditor(corpus duplicates.CorpusReader, logger *slog.Logger) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{corpus: corpus, logger: logger}
}

// Run reads the org's corpus and groups records that share a normalized
// identifier or an exact content hash. It never writes.
func (a *Auditor) Run(ctx context.Context, orgID string) (*Report, error) {
	start := time.Now()
	entries, err := a.corpus.ScanCorpus(ctx, orgID)
	if err != nil {
		return nil, err
	}

	byIdent := map[string][]uuid.UUID{}
	byHash := map[string][]uuid.UUID{}
	for _, e := range entries {
		if e.IdentifierNormalized != "" {
			byIdent[e.IdentifierNormalized] = append(byIdent[e.IdentifierNormalized], e.RecordID)
		}
		if len(e.ExactHash) > 0 {
			k := hex.EncodeToString(e.ExactHash)
			byHash[k] = append(byHash[k], e.RecordID)
		}
	}

	rep := &Report{OrgID: orgID, Scanned: len(entries)}
	rep.Collisions = append(rep.Collisions, groups(CollisionIdentifier, byIdent)...)
	rep.Collisions = append(rep.Collisions, groups(CollisionContent, byHash)...)
	rep.Elapsed = time.Since(start)

	for _, c := range rep.Collisions {
		a.logger.Warn("audit.collision", "org_id", orgID, "kind", c.Kind, "key", c.Key, "records", len(c.RecordIDs))
	}
	a.logger.Info("audit.run.done", "org_id", orgID, "scanned", rep.Scanned, "collisions", len(rep.Collisions),
		"elapsed_ms", rep.Elapsed.Milliseconds())
	return rep, nil
}

func groups(kind CollisionKind, m map[string][]uuid.UUID) []Collision {
	var out []Collision
	for k, ids := range m {
		if len(ids) < 2 {
			continue
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
		out = append(out, Collision{Kind: kind, Key: k, RecordIDs: ids})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
