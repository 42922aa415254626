// Package policy resolves the thresholds and weights that apply to one tenant.
package policy

import (
	"context"
	"fmt"

	"github.com/joseph-ayodele/receipt-verifier/internal/common"
	"github.com/joseph-ayodele/receipt-verifier/internal/duplicates"
	"github.com/joseph-ayodele/receipt-verifier/internal/forensics"
	"github.com/joseph-ayodele/receipt-verifier/internal/hashing"
	"github.com/joseph-ayodele/receipt-verifier/internal/risk"
)

// Policy is the fully resolved configuration for one organization.
type Policy struct {
	Thresholds         hashing.Thresholds
	TemplateConfidence int
	Forensics          forensics.Config
	Risk               risk.Config
}

// FromConfig builds the environment-wide default policy.
func FromConfig(cfg *common.Config) Policy {
	return Policy{
		Thresholds: hashing.Thresholds{
			SameFile:     cfg.Hashing.SameFileDistance,
			SameTemplate: cfg.Hashing.SameTemplateDistance,
		},
		TemplateConfidence: cfg.Risk.TemplateConfidence,
		Forensics: forensics.Config{
			Quality:         cfg.Forensics.Quality,
			LowThreshold:    cfg.Forensics.LowThreshold,
			MediumThreshold: cfg.Forensics.MediumThreshold,
			HighThreshold:   cfg.Forensics.HighThreshold,
		},
		Risk: risk.Config{
			Weights: risk.Weights{
				Duplicate:         cfg.Risk.DuplicateWeight,
				Manipulation:      cfg.Risk.ManipulationWeight,
				MissingAmount:     cfg.Risk.MissingAmountWeight,
				MissingIdentifier: cfg.Risk.MissingIdentifierWeight,
			},
			RejectThreshold:       cfg.Risk.RejectThreshold,
			ReviewThreshold:       cfg.Risk.ReviewThreshold,
			ManipulationThreshold: cfg.Forensics.HighThreshold,
		},
	}
}

// Default is the policy used when neither environment nor file says otherwise.
func Default() Policy {
	fc := forensics.DefaultConfig()
	rc := risk.DefaultConfig()
	rc.ManipulationThreshold = fc.HighThreshold
	return Policy{
		Thresholds:         hashing.DefaultThresholds(),
		TemplateConfidence: duplicates.DefaultConfig().TemplateConfidence,
		Forensics:          fc,
		Risk:               rc,
	}
}

// Duplicates returns the duplicate detector settings.
func (p Policy) Duplicates() duplicates.Config {
	return duplicates.Config{Thresholds: p.Thresholds, TemplateConfidence: p.TemplateConfidence}
}

// Validate checks the orderings the components rely on.
func (p Policy) Validate() error {
	switch {
	case p.Thresholds.SameFile < 0 || p.Thresholds.SameFile >= p.Thresholds.SameTemplate:
		return invalid("same_file_distance must be below same_template_distance")
	case p.TemplateConfidence < 0 || p.TemplateConfidence > 100:
		return invalid("template_confidence must be within 0..100")
	case p.Forensics.Quality < 1 || p.Forensics.Quality > 100:
		return invalid("ela_quality must be within 1..100")
	case !(p.Forensics.LowThreshold <= p.Forensics.MediumThreshold && p.Forensics.MediumThreshold <= p.Forensics.HighThreshold):
		return invalid("ela thresholds must be ascending")
	case p.Risk.ReviewThreshold < 1 || p.Risk.RejectThreshold > 100:
		return invalid("risk thresholds must be within 1..100")
	case p.Risk.ReviewThreshold >= p.Risk.RejectThreshold:
		return invalid("review_threshold must be below reject_threshold")
	case p.Risk.Weights.Duplicate < 0 || p.Risk.Weights.Manipulation < 0 ||
		p.Risk.Weights.MissingAmount < 0 || p.Risk.Weights.MissingIdentifier < 0:
		return invalid("risk weights must not be negative")
	case p.Risk.ManipulationThreshold <= 0 || p.Risk.ManipulationThreshold > 100:
		return invalid("manipulation threshold must be within (0, 100]")
	}
	return nil
}

func invalid(msg string) error {
	return common.NewAppError(common.CodeConfig, msg, common.ErrInvalidInput)
}

type ctxKey struct{}

// WithPolicy attaches the resolved policy to ctx.
func WithPolicy(ctx context.Context, p Policy) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext returns the policy attached to ctx, if any.
func FromContext(ctx context.Context) (Policy, bool) {
	p, ok := ctx.Value(ctxKey{}).(Policy)
	return p, ok
}

func (p Policy) String() string {
	return fmt.Sprintf("same_file=%d same_template=%d ela_quality=%d reject=%d review=%d",
		p.Thresholds.SameFile, p.Thresholds.SameTemplate, p.Forensics.Quality,
		p.Risk.RejectThreshold, p.Risk.ReviewThreshold)
}
