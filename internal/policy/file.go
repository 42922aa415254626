package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Override is one block of a policy file. Unset fields inherit.
type Override struct {
	SameFileDistance        *int     `yaml:"same_file_distance" toml:"same_file_distance"`
	SameTemplateDistance    *int     `yaml:"same_template_distance" toml:"same_template_distance"`
	TemplateConfidence      *int     `yaml:"template_confidence" toml:"template_confidence"`
	ELAQuality              *int     `yaml:"ela_quality" toml:"ela_quality"`
	ELALowThreshold         *float64 `yaml:"ela_low_threshold" toml:"ela_low_threshold"`
	ELAMediumThreshold      *float64 `yaml:"ela_medium_threshold" toml:"ela_medium_threshold"`
	ELAHighThreshold        *float64 `yaml:"ela_high_threshold" toml:"ela_high_threshold"`
	DuplicateWeight         *int     `yaml:"duplicate_weight" toml:"duplicate_weight"`
	ManipulationWeight      *int     `yaml:"manipulation_weight" toml:"manipulation_weight"`
	MissingAmountWeight     *int     `yaml:"missing_amount_weight" toml:"missing_amount_weight"`
	MissingIdentifierWeight *int     `yaml:"missing_identifier_weight" toml:"missing_identifier_weight"`
	RejectThreshold         *int     `yaml:"reject_threshold" toml:"reject_threshold"`
	ReviewThreshold         *int     `yaml:"review_threshold" toml:"review_threshold"`
}

// File is the on-disk policy document.
//
//	defaults:
//	  review_threshold: 35
//	orgs:
//	  acme:
//	    same_template_distance: 10
type File struct {
	Defaults Override            `yaml:"defaults" toml:"defaults"`
	Orgs     map[string]Override `yaml:"orgs" toml:"orgs"`
}

// Apply overlays o onto p.
func (o Override) Apply(p Policy) Policy {
	setInt(&p.Thresholds.SameFile, o.SameFileDistance)
	setInt(&p.Thresholds.SameTemplate, o.SameTemplateDistance)
	setInt(&p.TemplateConfidence, o.TemplateConfidence)
	setInt(&p.Forensics.Quality, o.ELAQuality)
	setFloat(&p.Forensics.LowThreshold, o.ELALowThreshold)
	setFloat(&p.Forensics.MediumThreshold, o.ELAMediumThreshold)
	setFloat(&p.Forensics.HighThreshold, o.ELAHighThreshold)
	setInt(&p.Risk.Weights.Duplicate, o.DuplicateWeight)
	setInt(&p.Risk.Weights.Manipulation, o.ManipulationWeight)
	setInt(&p.Risk.Weights.MissingAmount, o.MissingAmountWeight)
	setInt(&p.Risk.Weights.MissingIdentifier, o.MissingIdentifierWeight)
	setInt(&p.Risk.RejectThreshold, o.RejectThreshold)
	setInt(&p.Risk.ReviewThreshold, o.ReviewThreshold)
	// manipulation weight applies at the classifier's HIGH boundary
	p.Risk.ManipulationThreshold = p.Forensics.HighThreshold
	return p
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

// Set holds the base policy and the per-organization resolutions.
type Set struct {
	base Policy
	orgs map[string]Policy
}

// NewSet returns a Set with no per-organization overrides.
func NewSet(base Policy) *Set {
	return &Set{base: base, orgs: map[string]Policy{}}
}

// Load reads a policy file (.yaml, .yml or .toml) and resolves it on top of base.
// An empty path yields a Set that always returns base.
func Load(path string, base Policy) (*Set, error) {
	if path == "" {
		return NewSet(base), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}

	var f File
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &f)
	case ".toml":
		err = toml.Unmarshal(data, &f)
	default:
		return nil, invalid(fmt.Sprintf("unsupported policy file extension %q", ext))
	}
	if err != nil {
		return nil, fmt.Errorf("parse policy file %s: %w", path, err)
	}
	return Resolve(f, base)
}

// Resolve validates and flattens a parsed policy file.
func Resolve(f File, base Policy) (*Set, error) {
	defaults := f.Defaults.Apply(base)
	if err := defaults.Validate(); err != nil {
		return nil, fmt.Errorf("policy defaults: %w", err)
	}
	s := &Set{base: defaults, orgs: make(map[string]Policy, len(f.Orgs))}
	for org, o := range f.Orgs {
		p := o.Apply(defaults)
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("policy for org %s: %w", org, err)
		}
		s.orgs[org] = p
	}
	return s, nil
}

// For returns the policy for orgID, falling back to the defaults.
func (s *Set) For(orgID string) Policy {
	if p, ok := s.orgs[orgID]; ok {
		return p
	}
	return s.base
}

// Orgs lists the organizations with explicit overrides.
func (s *Set) Orgs() []string {
	out := make([]string, 0, len(s.orgs))
	for org := range s.orgs {
		out = append(out, org)
	}
	return out
}
