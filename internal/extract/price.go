package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// currencySymbols maps recognized currency symbols to ISO codes.
var currencySymbols = map[string]string{
	"$": "USD",
	"£": "GBP",
	"€": "EUR",
}

var (
	// e.g. "$42.50", "€ 21,90", "1.234,56 €"
	priceAmountRe = regexp.MustCompile(`(\d{1,3}(?:[.,\s]\d{3})*(?:[.,]\d{1,2})?|\d+(?:[.,]\d{1,2})?)`)

	// e.g. "42.50 USD", "21,90 EUR"
	priceCodeRe = regexp.MustCompile(`(?i)\b(USD|EUR|GBP|CAD|AUD|JPY|SEK|DKK|NOK|CHF|PLN)\b`)

	currencySymbolRe = regexp.MustCompile(`[$£€¥]|\bkr\b`)
)

// ParsePrice extracts a numeric price and a currency tag from raw text.
// Currency comes from a symbol ($/£/€) or a trailing ISO code; an
// unrecognized symbol is passed through unchanged as the currency tag.
// A zero return means no price was found.
func ParsePrice(text string) (float64, string) {
	if text == "" {
		return 0, ""
	}

	currency := detectCurrency(text)

	m := priceAmountRe.FindString(text)
	if m == "" {
		return 0, currency
	}

	amount, ok := parseAmount(m)
	if !ok {
		return 0, currency
	}

	return amount, currency
}

// detectCurrency finds a currency tag in the text, preferring symbols
// over ISO codes.
func detectCurrency(text string) string {
	if sym := currencySymbolRe.FindString(text); sym != "" {
		if code, ok := currencySymbols[sym]; ok {
			return code
		}
		return sym
	}
	if code := priceCodeRe.FindString(text); code != "" {
		return strings.ToUpper(code)
	}
	return ""
}

// parseAmount normalizes a matched amount string to a float. It handles
// both decimal-point ("1,234.56") and decimal-comma ("1.234,56") styles.
func parseAmount(s string) (float64, bool) {
	s = strings.ReplaceAll(s, " ", "")

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		// Whichever separator comes last is the decimal mark.
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		// A lone comma is a decimal mark when followed by 1-2 digits,
		// otherwise a thousands separator.
		if len(s)-lastComma-1 <= 2 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastDot >= 0:
		if len(s)-lastDot-1 == 3 && strings.Count(s, ".") == 1 && len(s) > 4 {
			// "1.234" reads as a thousands group
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
