// Package imaging decodes submitted receipt images into a canonical pixel buffer.
package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/joseph-ayodele/receipt-verifier/constants"
	"github.com/joseph-ayodele/receipt-verifier/internal/common"
)

// Config controls decoding limits and the canonical size.
type Config struct {
	CanonicalWidth   int    // default 800
	MaxPixels        int    // cap on decoded source and canonical output pixels, default 50M
	HeicConverter    string // heif-convert | magick | sips
	ArtifactCacheDir string // optional cache for converted HEIC files
}

// NormalizedImage is the canonical buffer every analysis step reads. It is
// never mutated after Normalize returns.
type NormalizedImage struct {
	Pixels *image.RGBA
	Width  int
	Height int
	Format constants.ImageFormat
	Source []byte // original submission bytes
}

type Normalizer struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

type Option func(*Normalizer)

// WithRunner swaps the external command runner used for HEIC conversion.
func WithRunner(r Runner) Option {
	return func(n *Normalizer) {
		if r != nil {
			n.runner = r
		}
	}
}

func NewNormalizer(cfg Config, logger *slog.Logger, opts ...Option) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CanonicalWidth <= 0 {
		cfg.CanonicalWidth = 800
	}
	if cfg.MaxPixels <= 0 {
		cfg.MaxPixels = 50_000_000
	}
	n := &Normalizer{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Normalize decodes raw bytes and resizes them, preserving aspect ratio, to the
// canonical width. Undecodable input fails with common.ErrInvalidImage.
func (n *Normalizer) Normalize(ctx context.Context, raw []byte) (*NormalizedImage, error) {
	if len(raw) == 0 {
		return nil, common.InvalidImage("empty image", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data := raw
	heic := isHEIC(raw)
	if heic {
		png, err := n.convertHEICtoPNG(ctx, raw)
		if err != nil {
			n.logger.Error("heic conversion failed", "error", err)
			return nil, common.InvalidImage("heic conversion failed", err)
		}
		data = png
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, common.InvalidImage("unsupported or corrupt image", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, common.InvalidImage(fmt.Sprintf("invalid dimensions %dx%d", cfg.Width, cfg.Height), nil)
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(n.cfg.MaxPixels) {
		return nil, common.InvalidImage(fmt.Sprintf("image %dx%d exceeds %d pixels", cfg.Width, cfg.Height, n.cfg.MaxPixels), nil)
	}
	height := canonicalHeight(cfg.Width, cfg.Height, n.cfg.CanonicalWidth)
	if int64(n.cfg.CanonicalWidth)*height > int64(n.cfg.MaxPixels) {
		return nil, common.InvalidImage(fmt.Sprintf("image %dx%d scales to %dx%d, over %d pixels",
			cfg.Width, cfg.Height, n.cfg.CanonicalWidth, height, n.cfg.MaxPixels), nil)
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, common.InvalidImage("decode failed", err)
	}

	dst := resize(src, n.cfg.CanonicalWidth, int(height))
	out := &NormalizedImage{
		Pixels: dst,
		Width:  dst.Bounds().Dx(),
		Height: dst.Bounds().Dy(),
		Format: constants.ImageFormat(format),
		Source: raw,
	}
	if heic {
		out.Format = constants.FormatHEIC
	}

	n.logger.Debug("image normalized",
		"format", out.Format,
		"src_w", cfg.Width, "src_h", cfg.Height,
		"w", out.Width, "h", out.Height,
	)
	return out, nil
}

// canonicalHeight is the rounded height of a srcW x srcH image scaled to width.
func canonicalHeight(srcW, srcH, width int) int64 {
	h := (int64(srcH)*int64(width) + int64(srcW)/2) / int64(srcW)
	if h < 1 {
		h = 1
	}
	return h
}

// resize flattens src onto white and scales it to width x height.
func resize(src image.Image, width, height int) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

// Sniff reports the container format of raw from its header without decoding
// pixels. It returns "" for unrecognized input.
func Sniff(raw []byte) constants.ImageFormat {
	if isHEIC(raw) {
		return constants.FormatHEIC
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return ""
	}
	return constants.ImageFormat(format)
}
