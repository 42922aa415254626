// Package bootstrap assembles the verification components from configuration.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/receipt-verifier/internal/audit"
	"github.com/joseph-ayodele/receipt-verifier/internal/common"
	"github.com/joseph-ayodele/receipt-verifier/internal/export"
	"github.com/joseph-ayodele/receipt-verifier/internal/extract"
	"github.com/joseph-ayodele/receipt-verifier/internal/extract/anthropic"
	"github.com/joseph-ayodele/receipt-verifier/internal/extract/openai"
	"github.com/joseph-ayodele/receipt-verifier/internal/hashing"
	"github.com/joseph-ayodele/receipt-verifier/internal/imaging"
	"github.com/joseph-ayodele/receipt-verifier/internal/pipeline"
	"github.com/joseph-ayodele/receipt-verifier/internal/policy"
	repo "github.com/joseph-ayodele/receipt-verifier/internal/repository"
	"github.com/joseph-ayodele/receipt-verifier/internal/review"
	"github.com/joseph-ayodele/receipt-verifier/internal/server"
)

// App holds every long-lived component of a process.
type App struct {
	Config   *common.Config
	Store    *repo.Store
	Records  repo.RecordRepository
	Policies *policy.Set
	Verifier *pipeline.Verifier
	Workflow *review.Workflow
	Exporter *export.Service
	Auditor  *audit.Auditor
	logger   *slog.Logger
}

// New opens and migrates the store, loads tenant policies and wires the pipeline.
func New(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	base := policy.FromConfig(cfg)
	if err := base.Validate(); err != nil {
		return nil, err
	}
	policies, err := policy.Load(cfg.PolicyFile, base)
	if err != nil {
		return nil, err
	}

	store, err := server.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	records := repo.NewRecordRepository(store, logger)

	extractor, err := NewExtractor(cfg.Extraction, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	normalizer := imaging.NewNormalizer(imaging.Config{
		CanonicalWidth:   cfg.Imaging.CanonicalWidth,
		MaxPixels:        cfg.Imaging.MaxPixels,
		HeicConverter:    cfg.Imaging.HeicConverter,
		ArtifactCacheDir: cfg.Imaging.ArtifactCacheDir,
	}, logger)

	verifier := pipeline.NewVerifier(
		normalizer,
		hashing.NewHasher(logger),
		extract.NewGuard(extractor, cfg.Extraction.Timeout, logger),
		records,
		policies,
		logger,
		pipeline.WithMaxVisionBytes(cfg.Extraction.MaxImageMB<<20),
	)

	logger.Info("bootstrap.ready",
		"extract_provider", cfg.Extraction.Provider,
		"tenant_policies", len(policies.Orgs()),
		"dialect", store.Dialect(),
	)
	return &App{
		Config:   cfg,
		Store:    store,
		Records:  records,
		Policies: policies,
		Verifier: verifier,
		Workflow: review.NewWorkflow(records, logger),
		Exporter: export.NewService(records, logger),
		Auditor:  audit.NewAuditor(records, logger),
		logger:   logger,
	}, nil
}

func (a *App) Close() {
	server.CloseDB(a.Store, a.logger)
}

// NewExtractor returns the configured extraction provider, or nil when
// extraction is disabled.
func NewExtractor(cfg common.ExtractionConfig, logger *slog.Logger) (extract.FieldExtractor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Provider {
	case "openai":
		return openai.NewClient(openai.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, logger), nil
	case "anthropic":
		return anthropic.NewClient(anthropic.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
		}, logger), nil
	case "none", "":
		logger.Warn("bootstrap.extraction_disabled")
		return nil, nil
	default:
		return nil, common.NewAppError(common.CodeConfig, fmt.Sprintf("unknown extraction provider %q", cfg.Provider), common.ErrInvalidInput)
	}
}
