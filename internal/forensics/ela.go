// Package forensics estimates the likelihood that a receipt image was edited.
package forensics

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"io"
	"log/slog"
	"math"

	"github.com/joseph-ayodele/receipt-verifier/constants"
	"github.com/joseph-ayodele/receipt-verifier/internal/entity"
	"github.com/joseph-ayodele/receipt-verifier/internal/imaging"
)

// Config holds the recompression quality and classification boundaries.
// Boundaries are inclusive lower bounds on the 0..100 score.
type Config struct {
	Quality         int
	LowThreshold    float64
	MediumThreshold float64
	HighThreshold   float64
}

func DefaultConfig() Config {
	return Config{Quality: 90, LowThreshold: 20, MediumThreshold: 40, HighThreshold: 70}
}

type encodeFunc func(w io.Writer, img image.Image, quality int) error

func jpegEncode(w io.Writer, img image.Image, quality int) error {
	return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
}

// Analyzer runs error-level analysis: the image is recompressed at a known
// quality and the per-channel residual is amplified and averaged. Regions
// pasted in from another source recompress differently and raise the mean.
type Analyzer struct {
	cfg    Config
	logger *slog.Logger
	encode encodeFunc
}

func NewAnalyzer(cfg Config, logger *slog.Logger) *Analyzer {
	def := DefaultConfig()
	if cfg.Quality <= 0 || cfg.Quality > 100 {
		cfg.Quality = def.Quality
	}
	if cfg.HighThreshold <= 0 {
		cfg.LowThreshold, cfg.MediumThreshold, cfg.HighThreshold = def.LowThreshold, def.MediumThreshold, def.HighThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{cfg: cfg, logger: logger, encode: jpegEncode}
}

// Analyze never returns an error: any failure, including a panic inside a
// codec, yields a report classified ERROR with score 0.
func (a *Analyzer) Analyze(img *imaging.NormalizedImage) (report entity.ManipulationReport) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("forensics.ela.panic", "panic", r)
			report = entity.FailedManipulationReport(fmt.Errorf("ela panic: %v", r))
		}
	}()

	if img == nil || img.Pixels == nil {
		return a.fail(errors.New("no image to analyze"))
	}

	var buf bytes.Buffer
	if err := a.encode(&buf, img.Pixels, a.cfg.Quality); err != nil {
		return a.fail(fmt.Errorf("recompress: %w", err))
	}
	decoded, err := jpeg.Decode(&buf)
	if err != nil {
		return a.fail(fmt.Errorf("decode recompressed: %w", err))
	}
	recompressed := image.NewRGBA(img.Pixels.Bounds())
	draw.Draw(recompressed, recompressed.Bounds(), decoded, decoded.Bounds().Min, draw.Src)

	score := residualScore(img.Pixels, recompressed)
	cls := a.Classify(score)
	out, err := entity.NewManipulationReport(score, cls, a.cfg.Quality)
	if err != nil {
		return a.fail(err)
	}
	a.logger.Debug("forensics.ela.done", "score", score, "classification", cls)
	return out
}

func (a *Analyzer) fail(err error) entity.ManipulationReport {
	a.logger.Warn("forensics.ela.failed", "error", err)
	return entity.FailedManipulationReport(err)
}

// Classify buckets a score using the configured boundaries.
func (a *Analyzer) Classify(score float64) constants.Classification {
	switch {
	case score >= a.cfg.HighThreshold:
		return constants.ClassificationHigh
	case score >= a.cfg.MediumThreshold:
		return constants.ClassificationMedium
	case score >= a.cfg.LowThreshold:
		return constants.ClassificationLow
	default:
		return constants.ClassificationNone
	}
}

// residualScore amplifies the per-channel absolute difference so the largest
// residual maps to 255, then returns the mean as a percentage rounded to two
// decimals. A zero maximum leaves the scale at 1.
func residualScore(orig, recompressed *image.RGBA) float64 {
	b := orig.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return 0
	}

	var sum, maxDiff int
	for y := 0; y < h; y++ {
		po := orig.Pix[y*orig.Stride:]
		pr := recompressed.Pix[y*recompressed.Stride:]
		for x := 0; x < w; x++ {
			i := x * 4
			for c := 0; c < 3; c++ {
				d := absDiff(po[i+c], pr[i+c])
				sum += d
				if d > maxDiff {
					maxDiff = d
				}
			}
		}
	}

	scale := 1.0
	if maxDiff > 0 {
		scale = 255.0 / float64(maxDiff)
	}
	mean := float64(sum) * scale / float64(w*h*3)
	if mean > 255 {
		mean = 255
	}
	return math.Round(mean/255*100*100) / 100
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
