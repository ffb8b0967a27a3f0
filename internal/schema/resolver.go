package schema

import (
	"strings"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/table"
)

var invoiceSignals = []string{"item", "quantity", "rate", "amount"}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// Resolve picks the best catalog schema for a column set. It returns false
// when no schema scores above zero and the table stays generic.
//
// Quantity-like headers without usage/kWh headers force the product schema
// both before scoring and after a utility win, since the utility keywords
// "rate" and "amount" appear on ordinary invoices too.
func Resolve(columns []string) (Schema, bool) {
	lower := make([]string, len(columns))
	for i, c := range columns {
		lower[i] = strings.ToLower(c)
	}
	joined := strings.Join(lower, " ")

	hasQty, hasUsage := false, false
	for _, c := range lower {
		if containsAny(c, "qty", "quantity", "hrs/qty") {
			hasQty = true
		}
		if containsAny(c, "usage", "kwh") {
			hasUsage = true
		}
	}

	if hasQty && !hasUsage && containsAny(joined, invoiceSignals...) {
		return ProductInvoice, true
	}

	var (
		best      Schema
		bestScore int
		found     bool
	)
	for _, s := range Catalog {
		if score := s.MatchScore(columns); score > bestScore {
			best, bestScore, found = s, score, true
		}
	}

	if found && best.Kind == KindUtilityBill && hasQty && !hasUsage {
		return ProductInvoice, true
	}
	return best, found
}

// Applied is a table after schema resolution and row filtering.
type Applied struct {
	Schema  constants.SchemaName `json:"schema"`
	Columns []string             `json:"columns"`
	Rows    []table.Record       `json:"rows"`
}

// Apply resolves the schema and keeps only rows the schema accepts.
// Generic tables keep every row.
func Apply(t table.Table) Applied {
	s, ok := Resolve(t.Columns)
	if !ok {
		return generic(t)
	}
	return s.filter(t)
}

// ApplyAs is Apply with the schema chosen by the caller. An empty name
// falls back to resolution.
func ApplyAs(t table.Table, name constants.SchemaName) Applied {
	if name == "" {
		return Apply(t)
	}
	s, ok := ByName(name)
	if !ok {
		return generic(t)
	}
	return s.filter(t)
}

func generic(t table.Table) Applied {
	return Applied{Schema: constants.Generic, Columns: t.Columns, Rows: t.Rows}
}

func (s Schema) filter(t table.Table) Applied {
	rows := make([]table.Record, 0, len(t.Rows))
	for _, r := range t.Rows {
		if s.ValidateRow(r) {
			rows = append(rows, r)
		}
	}
	return Applied{Schema: s.Name, Columns: t.Columns, Rows: rows}
}

// ByName returns the catalog entry for name.
func ByName(name constants.SchemaName) (Schema, bool) {
	for _, s := range Catalog {
		if s.Name == name {
			return s, true
		}
	}
	return Schema{}, false
}
