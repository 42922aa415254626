package bootstrap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/joseph-ayodele/receipt-verifier/internal/common"
	"github.com/joseph-ayodele/receipt-verifier/internal/extract/anthropic"
	"github.com/joseph-ayodele/receipt-verifier/internal/extract/openai"
	"github.com/joseph-ayodele/receipt-verifier/internal/imaging/imagingtest"
	"github.com/joseph-ayodele/receipt-verifier/internal/pipeline"
)

func TestNewExtractor(t *testing.T) {
	ex, err := NewExtractor(common.ExtractionConfig{Provider: "openai", APIKey: "k"}, nil)
	if _, ok := ex.(*openai.Client); err != nil || !ok {
		t.Fatalf("openai: %T %v", ex, err)
	}
	ex, err = NewExtractor(common.ExtractionConfig{Provider: "anthropic", APIKey: "k"}, nil)
	if _, ok := ex.(*anthropic.Client); err != nil || !ok {
		t.Fatalf("anthropic: %T %v", ex, err)
	}
	if ex, err := NewExtractor(common.ExtractionConfig{Provider: "none"}, nil); err != nil || ex != nil {
		t.Fatalf("none: %v %v", ex, err)
	}
	if _, err := NewExtractor(common.ExtractionConfig{Provider: "tesseract"}, nil); !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("unknown: %v", err)
	}
}

func TestNewWiresSQLiteStack(t *testing.T) {
	dir := t.TempDir()
	policyPath := filepath.Join(dir, "policy.yaml")
	if err := os.WriteFile(policyPath, []byte("orgs:\n  acme:\n    missing_identifier_weight: 10\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := common.LoadConfig()
	cfg.Database.DSN = ""
	cfg.Database.SQLitePath = filepath.Join(dir, "records.db")
	cfg.Extraction.Provider = "none"
	cfg.PolicyFile = policyPath

	ctx := context.Background()
	app, err := New(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer app.Close()

	if got := app.Policies.For("acme").Risk.Weights.MissingIdentifier; got != 10 {
		t.Fatalf("tenant weight = %d", got)
	}

	res, err := app.Verifier.Submit(ctx, pipeline.Submission{
		Image: imagingtest.PNG(t, imagingtest.Receipt(3, 400, 600)),
		OrgID: "acme",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	// extraction disabled: amount (20) + identifier (10 for acme)
	if res.Record.Risk.Score != 30 {
		t.Fatalf("score = %d, issues = %v", res.Record.Risk.Score, res.Record.Risk.Issues)
	}
	got, err := app.Records.GetByID(ctx, res.Record.ID)
	if err != nil || got.Version != 1 {
		t.Fatalf("stored record: %v %v", got, err)
	}
}
