package extract

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/joseph-ayodele/receipt-verifier/constants"
)

// visionFormats are the formats remote vision models accept directly.
var visionFormats = map[constants.ImageFormat]bool{
	constants.FormatJPEG: true,
	constants.FormatPNG:  true,
	constants.FormatGIF:  true,
	constants.FormatWebP: true,
}

// VisionPayload picks the bytes to send to the extraction service. The
// original upload is used when its format is accepted and it fits maxBytes;
// otherwise the normalized buffer is sent as PNG.
func VisionPayload(raw []byte, format constants.ImageFormat, normalized image.Image, maxBytes int) ([]byte, string, error) {
	if visionFormats[format] && (maxBytes <= 0 || len(raw) <= maxBytes) {
		return raw, format.MediaType(), nil
	}
	if normalized == nil {
		return nil, "", fmt.Errorf("no normalized image for %s payload", format)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, normalized); err != nil {
		return nil, "", fmt.Errorf("encode png payload: %w", err)
	}
	return buf.Bytes(), constants.FormatPNG.MediaType(), nil
}
