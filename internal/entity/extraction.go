package entity

import "strings"

// ExtractedFields is the structured output of the remote extraction service.
// Every field may be nil; Available is false when the service could not be reached.
type ExtractedFields struct {
	Provider           *string `json:"provider"`
	ExternalIdentifier *string `json:"external_identifier"`
	Amount             *string `json:"amount"`
	Date               *string `json:"date"`
	Time               *string `json:"time"`
	PickupLocation     *string `json:"pickup_location"`
	DropoffLocation    *string `json:"dropoff_location"`
	Available          bool    `json:"available"`
}

// UnavailableFields is the degraded result used when extraction failed.
func UnavailableFields() ExtractedFields {
	return ExtractedFields{}
}

// HasAmount reports whether a non-blank amount was extracted.
func (f ExtractedFields) HasAmount() bool { return present(f.Amount) }

// HasIdentifier reports whether a non-blank external identifier was extracted.
func (f ExtractedFields) HasIdentifier() bool { return present(f.ExternalIdentifier) }

// Identifier returns the trimmed external identifier, or "".
func (f ExtractedFields) Identifier() string {
	if f.ExternalIdentifier == nil {
		return ""
	}
	return strings.TrimSpace(*f.ExternalIdentifier)
}

func present(p *string) bool {
	return p != nil && strings.TrimSpace(*p) != ""
}

// StrOrEmpty dereferences p, returning "" for nil.
func StrOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
