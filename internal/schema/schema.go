// Package schema classifies a reconstructed table against a fixed catalog of
// document schemas and validates its rows.
package schema

import (
	"strings"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/numeric"
	"github.com/joseph-ayodele/invoice-ocr/internal/table"
)

// Kind tags one variant of the closed schema catalog.
type Kind uint8

const (
	KindUtilityBill Kind = iota + 1
	KindProductInvoice
	KindServiceInvoice
)

// Schema is a read-only bundle of header keywords and column rules.
type Schema struct {
	Kind            Kind
	Name            constants.SchemaName
	HeaderKeywords  []string
	RequiredColumns []string
	NumericColumns  []string
}

var (
	UtilityBill = Schema{
		Kind:            KindUtilityBill,
		Name:            constants.UtilityBill,
		HeaderKeywords:  []string{"date", "usage", "kwh", "cost", "rate", "amount"},
		RequiredColumns: []string{"Date", "Amount ($)"},
		NumericColumns:  []string{"Usage (kWh)", "Cost (per kWh)", "Amount ($)"},
	}
	ProductInvoice = Schema{
		Kind:           KindProductInvoice,
		Name:           constants.ProductInvoice,
		HeaderKeywords: []string{"qty", "quantity", "description", "unit", "price", "amount"},
		NumericColumns: []string{
			"Qty", "Quantity", "Unit Price", "Amount",
			"Hrs/Qty", "Rate/Price", "Sub Total", "Subtotal",
		},
	}
	ServiceInvoice = Schema{
		Kind:            KindServiceInvoice,
		Name:            constants.ServiceInvoice,
		HeaderKeywords:  []string{"hour", "hrs", "service", "rate", "subtotal"},
		RequiredColumns: []string{"Service", "Subtotal"},
		NumericColumns:  []string{"Hrs", "Rate", "Subtotal"},
	}
)

// Catalog is evaluated in this order; earlier entries win score ties.
var Catalog = []Schema{UtilityBill, ProductInvoice, ServiceInvoice}

func normalizeHeader(text string) string {
	r := strings.NewReplacer("(", "", ")", "", "$", "")
	return strings.TrimSpace(r.Replace(strings.ToLower(text)))
}

// MatchScore counts header keywords present in the joined, normalized column text.
func (s Schema) MatchScore(columns []string) int {
	norm := make([]string, len(columns))
	for i, c := range columns {
		norm[i] = normalizeHeader(c)
	}
	joined := strings.Join(norm, " ")

	score := 0
	for _, kw := range s.HeaderKeywords {
		if strings.Contains(joined, kw) {
			score++
		}
	}
	return score
}

func (s Schema) numericOK(rec table.Record) bool {
	for _, col := range s.NumericColumns {
		if v, ok := rec[col]; ok && !numeric.IsNumber(v) {
			return false
		}
	}
	return true
}

func (s Schema) requiredOK(rec table.Record) bool {
	for _, col := range s.RequiredColumns {
		if _, ok := rec[col]; !ok {
			return false
		}
	}
	return true
}

// ValidateRow applies the variant's row predicate.
func (s Schema) ValidateRow(rec table.Record) bool {
	switch s.Kind {
	case KindUtilityBill:
		return s.numericOK(rec) && s.requiredOK(rec)
	case KindProductInvoice:
		seen := false
		for _, col := range s.NumericColumns {
			v, ok := rec[col]
			if !ok {
				continue
			}
			seen = true
			if !numeric.IsNumber(v) {
				return false
			}
		}
		return seen
	case KindServiceInvoice:
		return s.numericOK(rec)
	default:
		return s.requiredOK(rec)
	}
}
