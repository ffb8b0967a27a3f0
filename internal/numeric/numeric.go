// Package numeric parses OCR cell text into exact decimals.
package numeric

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var reNumber = regexp.MustCompile(`^\d+(\.\d+)?$`)

// Clean strips thousands separators and dollar signs.
func Clean(text string) string {
	return strings.TrimSpace(strings.NewReplacer(",", "", "$", "").Replace(text))
}

// IsNumber reports whether text is an unsigned integer or decimal once
// separators and currency symbols are removed.
func IsNumber(text string) bool {
	if text == "" {
		return false
	}
	return reNumber.MatchString(Clean(text))
}

// ToDecimal parses text with the same rules as IsNumber.
func ToDecimal(text string) (decimal.Decimal, bool) {
	s := Clean(text)
	if !reNumber.MatchString(s) {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// DecimalString returns the cleaned numeric text or "" when text is not numeric.
func DecimalString(text string) string {
	s := Clean(text)
	if !reNumber.MatchString(s) {
		return ""
	}
	return s
}

// Places returns the number of fractional digits carried by d.
func Places(d decimal.Decimal) int32 {
	if e := d.Exponent(); e < 0 {
		return -e
	}
	return 0
}

// Fixed formats d with at least min fractional digits, keeping any extra
// precision up to max.
func Fixed(d decimal.Decimal, min, max int32) string {
	p := Places(d)
	if p < min {
		p = min
	}
	if p > max {
		p = max
	}
	return d.StringFixed(p)
}
