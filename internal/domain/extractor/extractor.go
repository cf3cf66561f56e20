// Package extractor derives invoice fields from raw OCR text.
//
// The heuristics target German invoices: a gross-amount keyword (Brutto,
// Gesamtbetrag, ...) followed by a comma-decimal number, with the
// correspondent name as the primary vendor source. The package is pure —
// no I/O, no storage — so the reconciliation engine can treat it as a
// swappable collaborator.
package extractor

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Result is the outcome of one extraction pass over a document's text.
//
// NeedsReview is a pointer so that callers can distinguish "extractor said
// clean" from "extractor gave no signal"; absent signals default to review.
type Result struct {
	Vendor      *string
	Amount      decimal.NullDecimal
	Currency    string
	Confidence  float64
	NeedsReview *bool
	Debug       Debug
}

// Debug carries diagnostic context about how the fields were found. It is
// persisted alongside the invoice so reviewers can see what matched.
type Debug struct {
	Keyword        string `json:"keyword,omitempty"`
	ContextSnippet string `json:"context_snippet,omitempty"`
	VendorOrigin   string `json:"vendor_origin,omitempty"`
	AmountMatches  int    `json:"amount_matches,omitempty"`
}

// JSON renders the debug payload for storage, nil when marshalling fails.
func (d Debug) JSON() *string {
	data, err := json.Marshal(d)
	if err != nil {
		return nil
	}
	s := string(data)
	return &s
}

// grossKeywords in priority order; the first matching keyword wins.
var grossKeywords = []string{
	"brutto",
	"gesamtbetrag",
	"rechnungsbetrag",
	"endbetrag",
	"zu zahlen",
	"gesamt",
	"summe",
	"total",
}

var (
	// Number with optional thousands separators and a decimal part,
	// e.g. 123,45 / 1.234,56 / 1234.56
	numberPattern  = `([0-9]{1,3}(?:[.,\s][0-9]{3})*(?:[.,][0-9]{2})|[0-9]+[.,][0-9]{2})`
	keywordAmount  = map[string]*regexp.Regexp{}
	fallbackAmount = regexp.MustCompile(numberPattern)
)

func init() {
	for _, kw := range grossKeywords {
		keywordAmount[kw] = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(kw) + `[^0-9€$-]{0,40}` + numberPattern)
	}
}

// Extract runs the field heuristics over the document text. The
// correspondent, when known, takes precedence as the vendor name.
func Extract(text string, correspondent *string, defaultCurrency string) *Result {
	result := &Result{Currency: detectCurrency(text, defaultCurrency)}

	confidence := 0.0

	// Amount: keyword-anchored match first, bare number fallback second.
	for _, kw := range grossKeywords {
		if m := keywordAmount[kw].FindStringSubmatchIndex(text); m != nil {
			raw := text[m[2]:m[3]]
			if value, ok := parseAmount(raw); ok {
				result.Amount = decimal.NullDecimal{Decimal: value, Valid: true}
				result.Debug.Keyword = kw
				result.Debug.ContextSnippet = snippet(text, m[0], m[1])
				confidence += 0.5
			}
			break
		}
	}
	if !result.Amount.Valid {
		matches := fallbackAmount.FindAllStringIndex(text, -1)
		result.Debug.AmountMatches = len(matches)
		// Without a keyword anchor, take the largest candidate: invoice
		// totals dominate line items.
		var best decimal.Decimal
		found := false
		for _, m := range matches {
			if value, ok := parseAmount(text[m[0]:m[1]]); ok {
				if !found || value.GreaterThan(best) {
					best = value
					found = true
					result.Debug.ContextSnippet = snippet(text, m[0], m[1])
				}
			}
		}
		if found {
			result.Amount = decimal.NullDecimal{Decimal: best, Valid: true}
			confidence += 0.25
		}
	}

	// Vendor: correspondent beats letterhead guessing.
	if correspondent != nil && strings.TrimSpace(*correspondent) != "" {
		name := strings.TrimSpace(*correspondent)
		result.Vendor = &name
		result.Debug.VendorOrigin = "correspondent"
		confidence += 0.4
	} else if line := firstLetterheadLine(text); line != "" {
		result.Vendor = &line
		result.Debug.VendorOrigin = "letterhead"
		confidence += 0.2
	}

	if confidence > 1.0 {
		confidence = 1.0
	}
	result.Confidence = confidence

	needsReview := result.Vendor == nil || !result.Amount.Valid || confidence < 0.5
	result.NeedsReview = &needsReview

	return result
}

// parseAmount normalizes German and English number formats to a decimal.
func parseAmount(raw string) (decimal.Decimal, bool) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	if s == "" {
		return decimal.Decimal{}, false
	}

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		// Both present: the rightmost separator is the decimal point.
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if len(s)-lastComma-1 == 3 && strings.Count(s, ",") == 1 {
			// 1,234 is a thousands group, not cents.
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.ReplaceAll(s, ",", ".")
		}
	case lastDot >= 0:
		if len(s)-lastDot-1 == 3 && strings.Count(s, ".") == 1 {
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	value, err := decimal.NewFromString(s)
	if err != nil || value.IsNegative() {
		return decimal.Decimal{}, false
	}
	return value.Round(2), true
}

func detectCurrency(text, fallback string) string {
	upper := strings.ToUpper(text)
	switch {
	case strings.Contains(text, "€") || strings.Contains(upper, "EUR"):
		return "EUR"
	case strings.Contains(upper, "CHF"):
		return "CHF"
	case strings.Contains(text, "$") || strings.Contains(upper, "USD"):
		return "USD"
	}
	if fallback == "" {
		return "EUR"
	}
	return strings.ToUpper(fallback)
}

// firstLetterheadLine returns the first plausible company line of the text.
func firstLetterheadLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || len(line) < 3 || len(line) > 80 {
			continue
		}
		lower := strings.ToLower(line)
		if strings.HasPrefix(lower, "rechnung") || strings.HasPrefix(lower, "invoice") ||
			strings.HasPrefix(lower, "datum") || strings.HasPrefix(lower, "seite") {
			continue
		}
		if !strings.ContainsFunc(line, isLetter) {
			continue
		}
		return line
	}
	return ""
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		r == 'ä' || r == 'ö' || r == 'ü' || r == 'Ä' || r == 'Ö' || r == 'Ü' || r == 'ß'
}

// snippet returns the matched region with a little surrounding context.
func snippet(text string, start, end int) string {
	const margin = 30
	lo := start - margin
	if lo < 0 {
		lo = 0
	}
	hi := end + margin
	if hi > len(text) {
		hi = len(text)
	}
	return strings.TrimSpace(strings.Join(strings.Fields(text[lo:hi]), " "))
}
