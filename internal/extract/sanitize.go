package extract

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"regexp"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/receipt-verifier/constants"
)

var (
	reDecimal  = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)
	reCurrency = regexp.MustCompile(`[^\d.,-]`)
)

// NormalizeAndSanitizeJSON repairs the common ways a model drifts from the schema:
//   - renames synonyms (fare -> amount, booking_id -> external_identifier)
//   - drops null and empty values
//   - coerces numeric and currency-decorated amounts to "12.50"
//   - canonicalizes the provider label
//   - removes unknown keys
func NormalizeAndSanitizeJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	dropped := make([]string, 0, 8)
	rename := func(from, to string) {
		if v, ok := m[from]; ok {
			if _, exists := m[to]; !exists {
				m[to] = v
			}
			delete(m, from)
			dropped = append(dropped, from+"->"+to)
		}
	}

	for _, syn := range []string{"total", "fare", "total_amount", "price"} {
		rename(syn, FieldAmount)
	}
	for _, syn := range []string{"booking_id", "transaction_id", "trip_id", "order_id", "receipt_number", "crn", "identifier"} {
		rename(syn, FieldExternalIdentifier)
	}
	rename("pickup", FieldPickupLocation)
	rename("dropoff", FieldDropoffLocation)
	rename("merchant", FieldProvider)
	rename("merchant_name", FieldProvider)

	// identifiers sometimes come back as numbers
	if v, ok := m[FieldExternalIdentifier].(float64); ok {
		m[FieldExternalIdentifier] = strconv.FormatFloat(v, 'f', -1, 64)
	}

	if v, ok := m[FieldAmount]; ok {
		switch t := v.(type) {
		case float64:
			m[FieldAmount] = fmt.Sprintf("%.2f", t)
		case string:
			if amt, ok := coerceAmount(t); ok {
				m[FieldAmount] = amt
			} else {
				delete(m, FieldAmount)
				dropped = append(dropped, FieldAmount+"(unparseable)")
			}
		default:
			delete(m, FieldAmount)
			dropped = append(dropped, FieldAmount+"(type)")
		}
	}

	for k, v := range maps.Clone(m) {
		switch t := v.(type) {
		case nil:
			delete(m, k)
			dropped = append(dropped, k+"(null)")
		case string:
			s := strings.TrimSpace(t)
			if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "n/a") {
				delete(m, k)
				dropped = append(dropped, k+"(empty)")
			} else {
				m[k] = s
			}
		}
	}

	if v, ok := m[FieldProvider].(string); ok {
		if p, known := constants.Canonicalize(v); known {
			m[FieldProvider] = string(p)
		}
	}

	allowed := make(map[string]struct{}, len(fieldNames))
	for _, f := range fieldNames {
		allowed[f] = struct{}{}
	}
	for k := range maps.Clone(m) {
		if _, ok := allowed[k]; !ok {
			delete(m, k)
			dropped = append(dropped, k+"(unknown)")
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		logger.Warn("extract.normalize_sanitize", "dropped", dropped)
	}
	return out, dropped, nil
}

// coerceAmount strips currency symbols and thousands separators and formats
// the result with two decimals.
func coerceAmount(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if reDecimal.MatchString(s) {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return "", false
		}
		return fmt.Sprintf("%.2f", f), true
	}
	s = reCurrency.ReplaceAllString(s, "")
	if strings.Count(s, ",") > 0 && strings.Count(s, ".") == 0 && len(s) > 3 && s[len(s)-3] == ',' {
		// 12,50 style decimal comma
		s = strings.Replace(s, ",", ".", 1)
	}
	s = strings.ReplaceAll(s, ",", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return "", false
	}
	return fmt.Sprintf("%.2f", f), true
}
