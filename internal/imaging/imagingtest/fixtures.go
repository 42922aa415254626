// Package imagingtest builds synthetic receipt images for tests.
package imagingtest

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"math/rand"
	"testing"
)

// Receipt draws a receipt-like image: white paper, a header band, and rows of
// dark "text" blocks whose layout is fixed by seed.
func Receipt(seed int64, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	r := rand.New(rand.NewSource(seed))
	header := color.RGBA{R: uint8(r.Intn(200)), G: uint8(r.Intn(200)), B: uint8(r.Intn(200)), A: 255}
	fill(img, image.Rect(0, 0, w, h/8), header)

	ink := color.RGBA{R: 30, G: 30, B: 30, A: 255}
	rowH := h / 24
	if rowH < 2 {
		rowH = 2
	}
	for y := h/8 + rowH; y+rowH < h; y += rowH * 2 {
		x := w / 16
		for x < w-w/16 {
			word := w/30 + r.Intn(w/10+1)
			if x+word > w-w/16 {
				break
			}
			fill(img, image.Rect(x, y, x+word, y+rowH), ink)
			x += word + w/40 + 1
		}
	}
	return img
}

// Shift returns a copy of img with a dark block painted at rect, simulating a local edit.
func Shift(img *image.RGBA, rect image.Rectangle, c color.Color) *image.RGBA {
	out := image.NewRGBA(img.Bounds())
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)
	fill(out, rect, c)
	return out
}

func fill(img *image.RGBA, rect image.Rectangle, c color.Color) {
	draw.Draw(img, rect, image.NewUniform(c), image.Point{}, draw.Src)
}

// PNG encodes img as PNG, failing the test on error.
func PNG(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// JPEG encodes img as JPEG at quality q, failing the test on error.
func JPEG(t testing.TB, img image.Image, q int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}
