package extract

import (
	"encoding/json"
	"strings"

	"github.com/joseph-ayodele/receipt-verifier/constants"
)

// BuildSystemPrompt tells the model which fields to return and how to format them.
func BuildSystemPrompt() string {
	providers := make([]string, 0, 8)
	for _, p := range constants.AllProviders() {
		providers = append(providers, string(p))
	}
	parts := []string{
		"You read expense receipts (ride-hailing trips, taxis, merchant receipts) from an image.",
		"Return ONLY a JSON object matching the JSON Schema provided.",
		"'provider' is the issuing app or merchant; prefer one of: " + strings.Join(providers, ", ") + ".",
		"'external_identifier' is the booking, trip or transaction reference exactly as printed.",
		"'amount' is the total charged as a plain decimal without currency symbol, e.g. 12.50.",
		"Use ISO-8601 dates (YYYY-MM-DD) and 24-hour times (HH:MM).",
		"Never output null. If a field is not legible, omit it.",
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt carries the filename hint and the schema.
func BuildUserPrompt(req Request) string {
	var b strings.Builder
	if f := strings.TrimSpace(req.FilenameHint); f != "" {
		b.WriteString("Filename: ")
		b.WriteString(f)
		b.WriteString("\n")
	}
	b.WriteString("Extract the receipt fields from the attached image.\n\nJSON Schema:\n")
	b.WriteString(mustJSON(BuildFieldsJSONSchema()))
	return b.String()
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
