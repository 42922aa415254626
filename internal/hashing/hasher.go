// Package hashing computes exact and perceptual fingerprints of receipt images.
package hashing

import (
	"crypto/sha256"
	"fmt"
	"log/slog"

	"github.com/corona10/goimagehash"

	"github.com/joseph-ayodele/receipt-verifier/internal/entity"
	"github.com/joseph-ayodele/receipt-verifier/internal/imaging"
)

// Perceptual hash algorithm names as stored in ContentDigest.PerceptualHashes.
const (
	AlgAverage    = "ahash"
	AlgDifference = "dhash"
	AlgPerception = "phash"
)

// comparisonOrder is the preference order when two digests are compared.
var comparisonOrder = []string{AlgPerception, AlgDifference, AlgAverage}

type Hasher struct {
	logger *slog.Logger
}

func NewHasher(logger *slog.Logger) *Hasher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hasher{logger: logger}
}

// Digest computes the exact SHA-256 of the original bytes (falling back to the
// pixel buffer when no source is attached) and three perceptual hashes of the
// normalized buffer.
func (h *Hasher) Digest(img *imaging.NormalizedImage) (entity.ContentDigest, error) {
	if img == nil || img.Pixels == nil {
		return entity.ContentDigest{}, fmt.Errorf("digest: nil image")
	}

	var exact [32]byte
	if len(img.Source) > 0 {
		exact = sha256.Sum256(img.Source)
	} else {
		exact = sha256.Sum256(img.Pixels.Pix)
	}

	ahash, err := goimagehash.AverageHash(img.Pixels)
	if err != nil {
		return entity.ContentDigest{}, fmt.Errorf("average hash: %w", err)
	}
	dhash, err := goimagehash.DifferenceHash(img.Pixels)
	if err != nil {
		return entity.ContentDigest{}, fmt.Errorf("difference hash: %w", err)
	}
	phash, err := goimagehash.PerceptionHash(img.Pixels)
	if err != nil {
		return entity.ContentDigest{}, fmt.Errorf("perception hash: %w", err)
	}

	d := entity.ContentDigest{
		ExactHash: exact[:],
		PerceptualHashes: map[string]string{
			AlgAverage:    ahash.ToString(),
			AlgDifference: dhash.ToString(),
			AlgPerception: phash.ToString(),
		},
	}
	h.logger.Debug("digest computed", "exact", d.ExactHex(), "phash", d.PerceptualHashes[AlgPerception])
	return d, nil
}
