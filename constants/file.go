package constants

import "strings"

// ImageFormat names a raster format the normalizer can decode.
type ImageFormat string

const (
	FormatJPEG ImageFormat = "jpeg"
	FormatPNG  ImageFormat = "png"
	FormatGIF  ImageFormat = "gif"
	FormatWebP ImageFormat = "webp"
	FormatBMP  ImageFormat = "bmp"
	FormatTIFF ImageFormat = "tiff"
	FormatHEIC ImageFormat = "heic"
)

// AllowedExtensions holds the file extensions accepted by batch ingestion.
var AllowedExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"gif":  {},
	"webp": {},
	"bmp":  {},
	"tif":  {},
	"tiff": {},
	"heic": {},
	"heif": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsHEICExt reports whether ext (normalized) is a HEIC/HEIF container.
func IsHEICExt(ext string) bool {
	return ext == "heic" || ext == "heif"
}

// MediaType returns the MIME type for a decoded format.
func (f ImageFormat) MediaType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	case FormatGIF:
		return "image/gif"
	case FormatWebP:
		return "image/webp"
	case FormatBMP:
		return "image/bmp"
	case FormatTIFF:
		return "image/tiff"
	case FormatHEIC:
		return "image/heic"
	default:
		return "application/octet-stream"
	}
}
