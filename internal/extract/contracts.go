// Package extract turns a receipt image into structured fields through a
// remote vision model.
package extract

import (
	"context"

	"github.com/joseph-ayodele/receipt-verifier/internal/entity"
)

// Request is one extraction call.
type Request struct {
	Image        []byte
	MediaType    string // image/jpeg | image/png | image/gif | image/webp
	FilenameHint string
}

// FieldExtractor is implemented by every remote provider. The raw JSON the
// provider returned is passed back for diagnostics.
type FieldExtractor interface {
	Extract(ctx context.Context, req Request) (entity.ExtractedFields, []byte, error)
}
