package extract

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/receipt-verifier/internal/entity"
)

// ParseFields validates a provider's JSON content and decodes it. Content
// that fails the schema is sanitized once and re-validated. The returned
// bytes are the document that was finally accepted.
func ParseFields(content []byte, logger *slog.Logger) (entity.ExtractedFields, []byte, error) {
	if logger == nil {
		logger = slog.Default()
	}
	content = []byte(stripCodeFence(string(content)))

	if err := ValidateJSON(content); err != nil {
		cleaned, dropped, sErr := NormalizeAndSanitizeJSON(content, logger)
		if sErr != nil {
			return entity.ExtractedFields{}, content, fmt.Errorf("sanitize failed: %w", sErr)
		}
		if vErr := ValidateJSON(cleaned); vErr != nil {
			logger.Error("extract.schema_validation_failed", "error", vErr, "content", string(content))
			return entity.ExtractedFields{}, content, fmt.Errorf("schema validation failed: %w", vErr)
		}
		logger.Warn("extract.lenient_sanitize_applied", "dropped", dropped)
		content = cleaned
	}

	var out entity.ExtractedFields
	if err := json.Unmarshal(content, &out); err != nil {
		return entity.ExtractedFields{}, content, fmt.Errorf("unmarshal fields: %w", err)
	}
	out.Available = true
	return out, content, nil
}

// stripCodeFence removes a ```json ... ``` wrapper some models add.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
