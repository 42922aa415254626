package policy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/joseph-ayodele/receipt-verifier/internal/common"
	"github.com/joseph-ayodele/receipt-verifier/internal/risk"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "policy.yaml", `
defaults:
  review_threshold: 35
orgs:
  acme:
    same_template_distance: 10
    duplicate_weight: 90
  globex:
    ela_high_threshold: 60
`)
	set, err := Load(path, Default())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	acme := set.For("acme")
	if acme.Thresholds.SameTemplate != 10 || acme.Risk.Weights.Duplicate != 90 {
		t.Fatalf("acme overrides not applied: %s", acme)
	}
	if acme.Risk.ReviewThreshold != 35 {
		t.Fatalf("acme review threshold = %d, want inherited 35", acme.Risk.ReviewThreshold)
	}

	globex := set.For("globex")
	if globex.Forensics.HighThreshold != 60 || globex.Risk.ManipulationThreshold != 60 {
		t.Fatalf("globex manipulation threshold = %.0f/%.0f, want 60", globex.Forensics.HighThreshold, globex.Risk.ManipulationThreshold)
	}

	other := set.For("unknown-org")
	if other.Thresholds.SameTemplate != 12 || other.Risk.ReviewThreshold != 35 {
		t.Fatalf("fallback policy = %s", other)
	}
	if len(set.Orgs()) != 2 {
		t.Fatalf("orgs = %v", set.Orgs())
	}
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "policy.toml", `
[defaults]
template_confidence = 60

[orgs.acme]
same_file_distance = 2
missing_amount_weight = 25
`)
	set, err := Load(path, Default())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	acme := set.For("acme")
	if acme.Thresholds.SameFile != 2 || acme.Risk.Weights.MissingAmount != 25 || acme.TemplateConfidence != 60 {
		t.Fatalf("acme = %+v", acme)
	}
	if got := acme.Duplicates(); got.TemplateConfidence != 60 || got.Thresholds.SameFile != 2 {
		t.Fatalf("duplicates config = %+v", got)
	}
}

func TestLoadRejectsInvalidPolicies(t *testing.T) {
	cases := map[string]string{
		"inverted distances.yaml": "orgs:\n  acme:\n    same_file_distance: 20\n",
		"inverted risk.yaml":      "defaults:\n  review_threshold: 90\n",
		"bad quality.yaml":        "orgs:\n  acme:\n    ela_quality: 0\n",
		"negative weight.yaml":    "orgs:\n  acme:\n    duplicate_weight: -5\n",
		"zero review.yaml":        "defaults:\n  review_threshold: 0\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, "p.yaml", body), Default())
			if !errors.Is(err, common.ErrInvalidInput) {
				t.Fatalf("err = %v, want ErrInvalidInput", err)
			}
		})
	}

	if _, err := Load(writeFile(t, "p.json", "{}"), Default()); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
	if _, err := Load(writeFile(t, "p.yaml", "orgs: [not, a, map]"), Default()); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadKeepsZeroWeights(t *testing.T) {
	body := "orgs:\n  lenient:\n    duplicate_weight: 0\n    manipulation_weight: 0\n    missing_amount_weight: 0\n    missing_identifier_weight: 0\n"
	set, err := Load(writeFile(t, "p.yaml", body), Default())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if w := set.For("lenient").Risk.Weights; w != (risk.Weights{}) {
		t.Fatalf("weights = %+v, want all zero", w)
	}
}

func TestEmptyPathUsesBase(t *testing.T) {
	set, err := Load("", Default())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if set.For("any") != Default() {
		t.Fatal("empty path should resolve to the base policy")
	}
}

func TestFromConfigMatchesDefault(t *testing.T) {
	if got := FromConfig(common.LoadConfig()); got != Default() {
		t.Fatalf("env defaults %s differ from Default() %s", got, Default())
	}
}

func TestContext(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Fatal("empty context should carry no policy")
	}
	p := Default()
	p.TemplateConfidence = 42
	got, ok := FromContext(WithPolicy(context.Background(), p))
	if !ok || got.TemplateConfidence != 42 {
		t.Fatalf("FromContext = %+v, %v", got, ok)
	}
}
