// Package reconcile extracts monetary summary values and checks the
// arithmetic of summaries and line items with exact decimals.
package reconcile

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/geometry"
	"github.com/joseph-ayodele/invoice-ocr/internal/numeric"
)

// Tolerance is the largest absolute difference still treated as equal.
var Tolerance = decimal.New(1, -2)

// Summary keys.
const (
	KeySubtotal        = "subtotal"
	KeyTax             = "tax"
	KeyTotal           = "total"
	KeyPreviousCharges = "previous_charges"
	KeyCurrentCharges  = "current_charges"
)

// SummaryLabel matches label blocks that contain any Include keyword and no
// Exclude keyword.
type SummaryLabel struct {
	Key     string
	Include []string
	Exclude []string
}

func (l SummaryLabel) matches(text string) bool {
	t := strings.ToLower(text)
	hit := false
	for _, k := range l.Include {
		if strings.Contains(t, k) {
			hit = true
			break
		}
	}
	if !hit {
		return false
	}
	for _, k := range l.Exclude {
		if strings.Contains(t, k) {
			return false
		}
	}
	return true
}

var DefaultSummaryLabels = []SummaryLabel{
	{Key: KeySubtotal, Include: []string{"subtotal", "sub total", "sub-total"}},
	{Key: KeyTax, Include: []string{"tax", "vat", "gst"}, Exclude: []string{"tax id", "gstin", "tax invoice"}},
	{Key: KeyTotal, Include: []string{"total"}, Exclude: []string{"sub", "previous", "current"}},
	{Key: KeyPreviousCharges, Include: []string{"previous charges", "previous balance"}},
	{Key: KeyCurrentCharges, Include: []string{"current charges"}},
}

// Summary maps summary keys to their values.
type Summary map[string]decimal.Decimal

// SameRowTolerance bounds the vertical offset of a summary value from its label.
const SameRowTolerance = 20.0

// ExtractSummary reads the value printed to the right of each summary label:
// the nearest decimal-parseable block on the same page and row. The first
// label block that yields a value wins.
func ExtractSummary(blocks []geometry.Block, labels []SummaryLabel) Summary {
	out := Summary{}
	for _, l := range labels {
		for _, lb := range blocks {
			if !l.matches(lb.Text) {
				continue
			}
			if v, ok := valueRightOf(blocks, lb); ok {
				out[l.Key] = v
				break
			}
		}
	}
	return out
}

func valueRightOf(blocks []geometry.Block, label geometry.Block) (decimal.Decimal, bool) {
	lx, ly := label.CenterX(), label.CenterY()
	var (
		best  decimal.Decimal
		bestX float64
		found bool
	)
	for _, b := range blocks {
		if b.Page != label.Page {
			continue
		}
		bx := b.CenterX()
		if bx <= lx || !geometry.YClose(b.CenterY(), ly, SameRowTolerance) {
			continue
		}
		v, ok := numeric.ToDecimal(b.Text)
		if !ok {
			continue
		}
		if !found || bx < bestX {
			best, bestX, found = v, bx, true
		}
	}
	return best, found
}

// SummaryChecks is the outcome of the summary arithmetic.
type SummaryChecks struct {
	TotalMatch    *bool             `json:"total_match,omitempty"`
	ExpectedTotal *decimal.Decimal  `json:"expected_total,omitempty"`
	Formula       string            `json:"formula,omitempty"`
	NotApplicable map[string]string `json:"not_applicable,omitempty"`
}

const reasonNotAuthoritative = "line_items_not_authoritative_for_summary"

// ValidateSummary checks previous+current+tax = total, falling back to
// subtotal+tax = total. Utility bill line items are usage fragments, so the
// matching line-item check is reported as not applicable.
func ValidateSummary(schemaName constants.SchemaName, s Summary) SummaryChecks {
	var checks SummaryChecks

	if schemaName == constants.UtilityBill {
		switch {
		case has(s, KeyCurrentCharges):
			checks.NotApplicable = map[string]string{"current_charges_match": reasonNotAuthoritative}
		case has(s, KeySubtotal):
			checks.NotApplicable = map[string]string{"subtotal_match": reasonNotAuthoritative}
		}
	}

	switch {
	case has(s, KeyPreviousCharges, KeyCurrentCharges, KeyTax, KeyTotal):
		expected := s[KeyPreviousCharges].Add(s[KeyCurrentCharges]).Add(s[KeyTax])
		checks.setTotal(expected, s[KeyTotal], "previous_charges + current_charges + tax")
	case has(s, KeySubtotal, KeyTax, KeyTotal):
		expected := s[KeySubtotal].Add(s[KeyTax])
		checks.setTotal(expected, s[KeyTotal], "subtotal + tax")
	}
	return checks
}

func (c *SummaryChecks) setTotal(expected, total decimal.Decimal, formula string) {
	match := expected.Sub(total).Abs().LessThanOrEqual(Tolerance)
	c.TotalMatch = &match
	c.ExpectedTotal = &expected
	c.Formula = formula
}

func has(s Summary, keys ...string) bool {
	for _, k := range keys {
		if _, ok := s[k]; !ok {
			return false
		}
	}
	return true
}
