package imaging

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

var heicBrands = map[string]struct{}{
	"heic": {}, "heix": {}, "hevc": {}, "hevx": {},
	"heim": {}, "heis": {}, "mif1": {}, "msf1": {},
}

// isHEIC sniffs the ISO-BMFF ftyp box for a HEIF brand.
func isHEIC(raw []byte) bool {
	if len(raw) < 12 || !bytes.Equal(raw[4:8], []byte("ftyp")) {
		return false
	}
	_, ok := heicBrands[string(raw[8:12])]
	return ok
}

// convertHEICtoPNG converts HEIC/HEIF bytes to PNG bytes with the configured converter.
// converter: "heif-convert" | "magick" | "sips"
//
// When cacheDir is set the PNG is kept at {cacheDir}/{sha256}.png and reused.
func (n *Normalizer) convertHEICtoPNG(ctx context.Context, raw []byte) ([]byte, error) {
	sum := sha256.Sum256(raw)
	hashHex := hex.EncodeToString(sum[:])

	var cached string
	if n.cfg.ArtifactCacheDir != "" {
		cached = filepath.Join(n.cfg.ArtifactCacheDir, hashHex+".png")
		if b, err := os.ReadFile(cached); err == nil {
			n.logger.Debug("using cached heic->png", "cache", cached)
			return b, nil
		}
		if err := os.MkdirAll(n.cfg.ArtifactCacheDir, 0o755); err != nil {
			return nil, err
		}
	}

	tmpDir, err := os.MkdirTemp("", "rv-heic-*")
	if err != nil {
		return nil, err
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	in := filepath.Join(tmpDir, "source.heic")
	out := filepath.Join(tmpDir, "page.png")
	if err := os.WriteFile(in, raw, 0o600); err != nil {
		return nil, err
	}

	switch n.cfg.HeicConverter {
	case "heif-convert":
		if _, errb, err2 := n.runner.Run(ctx, "heif-convert", in, out); err2 != nil {
			return nil, fmt.Errorf("heif-convert failed: %w: %s", err2, truncate(string(errb), 512))
		}
	case "magick":
		if _, errb, err2 := n.runner.Run(ctx, "magick", in, out); err2 != nil {
			return nil, fmt.Errorf("magick convert failed: %w: %s", err2, truncate(string(errb), 512))
		}
	case "sips":
		if _, errb, err2 := n.runner.Run(ctx, "sips", "-s", "format", "png", in, "--out", out); err2 != nil {
			return nil, fmt.Errorf("sips convert failed: %w: %s", err2, truncate(string(errb), 512))
		}
	default:
		return nil, fmt.Errorf("HEIC not supported: set HEIC_CONVERTER to one of: heif-convert | magick | sips")
	}

	png, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("HEIC conversion produced no output: %w", err)
	}

	if cached != "" {
		if err := os.WriteFile(cached, png, 0o644); err != nil {
			n.logger.Warn("failed to cache heic->png", "cache", cached, "error", err)
		} else {
			n.logger.Debug("cached heic->png", "cache", cached)
		}
	}
	return png, nil
}
