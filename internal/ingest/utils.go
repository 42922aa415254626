package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/receipt-verifier/constants"
)

// AllowedExt checks if a file extension is one the normalizer can decode.
func AllowedExt(ext string) bool {
	ext = constants.NormalizeExt(ext)
	_, ok := constants.AllowedExtensions[ext]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return base != "." && strings.HasPrefix(base, ".")
}
