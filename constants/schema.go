package constants

import (
	"strings"
)

type SchemaName string

const (
	UtilityBill    SchemaName = "utility_bill"
	ProductInvoice SchemaName = "product_invoice"
	ServiceInvoice SchemaName = "service_invoice"
	Generic        SchemaName = "generic"
)

var allSchemas = []SchemaName{
	UtilityBill,
	ProductInvoice,
	ServiceInvoice,
	Generic,
}

// Canonicalize maps loose spellings ("Utility Bill", "invoice") onto a schema name.
func Canonicalize(input string) (SchemaName, bool) {
	if input == "" {
		return Generic, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)

	synonyms := map[string]SchemaName{
		"utility":   UtilityBill,
		"bill":      UtilityBill,
		"invoice":   ProductInvoice,
		"product":   ProductInvoice,
		"service":   ServiceInvoice,
		"timesheet": ServiceInvoice,
	}

	if s, ok := synonyms[normalized]; ok {
		return s, true
	}

	for _, s := range allSchemas {
		if normalized == string(s) {
			return s, true
		}
	}

	return Generic, false
}
