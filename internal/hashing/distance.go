package hashing

import (
	"bytes"
	"fmt"

	"github.com/corona10/goimagehash"
)

// Similarity classifies a perceptual distance.
type Similarity int

const (
	Distinct     Similarity = iota
	SameTemplate            // same layout/provider app, not necessarily the same transaction
	SameFile                // re-upload of the same underlying file
)

func (s Similarity) String() string {
	switch s {
	case SameFile:
		return "same_file"
	case SameTemplate:
		return "same_template"
	default:
		return "distinct"
	}
}

// Thresholds are bit-distance cut-offs. SameFile must be below SameTemplate.
type Thresholds struct {
	SameFile     int
	SameTemplate int
}

func DefaultThresholds() Thresholds {
	return Thresholds{SameFile: 4, SameTemplate: 12}
}

// Classify buckets a distance: <= SameFile is a re-upload, < SameTemplate a template match.
func (t Thresholds) Classify(distance int) Similarity {
	switch {
	case distance < 0:
		return Distinct
	case distance <= t.SameFile:
		return SameFile
	case distance < t.SameTemplate:
		return SameTemplate
	default:
		return Distinct
	}
}

// Distance returns the bit difference count between two encoded hashes of the same algorithm.
func Distance(a, b string) (int, error) {
	ha, err := goimagehash.ImageHashFromString(a)
	if err != nil {
		return 0, fmt.Errorf("parse hash %q: %w", a, err)
	}
	hb, err := goimagehash.ImageHashFromString(b)
	if err != nil {
		return 0, fmt.Errorf("parse hash %q: %w", b, err)
	}
	return ha.Distance(hb)
}

// Compare finds the distance between two perceptual hash sets using the first
// algorithm both carry, in phash, dhash, ahash order. ok is false when the sets
// share no comparable algorithm.
func Compare(a, b map[string]string) (distance int, alg string, ok bool) {
	for _, alg := range comparisonOrder {
		ha, hb := a[alg], b[alg]
		if ha == "" || hb == "" {
			continue
		}
		d, err := Distance(ha, hb)
		if err != nil {
			continue
		}
		return d, alg, true
	}
	return 0, "", false
}

// SameExact reports whether two exact hashes are identical and non-empty.
func SameExact(a, b []byte) bool {
	return len(a) > 0 && bytes.Equal(a, b)
}
