package constants

import "strings"

// Provider is a canonical receipt issuer (ride-hailing app, merchant chain).
type Provider string

const (
	Uber   Provider = "Uber"
	Lyft   Provider = "Lyft"
	Grab   Provider = "Grab"
	Gojek  Provider = "Gojek"
	Bolt   Provider = "Bolt"
	DiDi   Provider = "DiDi"
	Taxi   Provider = "Taxi"
	Others Provider = "Other"
)

var allProviders = []Provider{Uber, Lyft, Grab, Gojek, Bolt, DiDi, Taxi, Others}

// Canonicalize maps a free-form provider label from extraction to a known Provider.
// The second result is false when the label was not recognized.
func Canonicalize(input string) (Provider, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return Others, false
	}

	synonyms := map[string]Provider{
		"uber eats":    Uber,
		"ubereats":     Uber,
		"uber trip":    Uber,
		"grabcar":      Grab,
		"grab car":     Grab,
		"grabfood":     Grab,
		"go-jek":       Gojek,
		"gocar":        Gojek,
		"goride":       Gojek,
		"didi chuxing": DiDi,
		"cab":          Taxi,
		"taxi cab":     Taxi,
	}
	if p, ok := synonyms[normalized]; ok {
		return p, true
	}

	for _, p := range allProviders {
		if normalized == strings.ToLower(string(p)) {
			return p, true
		}
	}
	return Others, false
}

// AllProviders lists every canonical provider.
func AllProviders() []Provider {
	return append([]Provider(nil), allProviders...)
}
