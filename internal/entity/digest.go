package entity

import "encoding/hex"

// ContentDigest is the exact and perceptual fingerprint of one submission.
type ContentDigest struct {
	ExactHash        []byte            `json:"exact_hash"`
	PerceptualHashes map[string]string `json:"perceptual_hashes"`
}

// ExactHex returns the exact hash hex-encoded.
func (d ContentDigest) ExactHex() string {
	return hex.EncodeToString(d.ExactHash)
}

// Perceptual returns the encoded perceptual hash for algorithm alg.
func (d ContentDigest) Perceptual(alg string) (string, bool) {
	h, ok := d.PerceptualHashes[alg]
	return h, ok && h != ""
}
