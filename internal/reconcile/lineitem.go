package reconcile

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/numeric"
	"github.com/joseph-ayodele/invoice-ocr/internal/table"
)

const (
	ReasonMissingNumeric = "missing_numeric"
	ReasonRateInferred   = "rate reconciled from amount"

	minPlaces = 2
	maxPlaces = 8
)

// LineItemReport is the per-row reconciliation outcome. OCRCost and
// InferredCost are set only for PASS_WITH_INFERENCE.
type LineItemReport struct {
	Status       constants.ReconcileStatus `json:"status"`
	Reason       string                    `json:"reason,omitempty"`
	Expected     string                    `json:"expected,omitempty"`
	Actual       string                    `json:"actual,omitempty"`
	Delta        string                    `json:"delta,omitempty"`
	OCRCost      string                    `json:"ocr_cost,omitempty"`
	InferredCost string                    `json:"inferred_cost,omitempty"`
}

// ReconcileLineItem checks usage × rate = amount. When the product misses
// and usage is non-zero, the rate is re-derived from amount/usage; a
// re-derived rate that reconciles keeps the OCR rate next to the inferred one.
func ReconcileLineItem(usageText, rateText, amountText string) LineItemReport {
	usage, ok1 := numeric.ToDecimal(usageText)
	rate, ok2 := numeric.ToDecimal(rateText)
	amount, ok3 := numeric.ToDecimal(amountText)
	if !ok1 || !ok2 || !ok3 {
		return LineItemReport{Status: constants.StatusSkip, Reason: ReasonMissingNumeric}
	}

	expected := usage.Mul(rate)
	delta := expected.Sub(amount).Abs()
	report := LineItemReport{
		Expected: fixed(expected),
		Actual:   fixed(amount),
		Delta:    fixed(delta),
	}

	if delta.GreaterThan(Tolerance) && !usage.IsZero() {
		inferred := publishedRate(amount.Div(usage))
		if usage.Mul(inferred).Sub(amount).Abs().LessThanOrEqual(Tolerance) {
			report.Status = constants.StatusPassWithInference
			report.Reason = ReasonRateInferred
			report.OCRCost = fixed(rate)
			report.InferredCost = fixed(inferred)
			return report
		}
	}

	if delta.LessThanOrEqual(Tolerance) {
		report.Status = constants.StatusPass
	} else {
		report.Status = constants.StatusFail
	}
	return report
}

// publishedRate drops the trailing zeros of a quotient and caps it at
// maxPlaces, so the value checked is the value emitted.
func publishedRate(q decimal.Decimal) decimal.Decimal {
	trimmed, err := decimal.NewFromString(q.String())
	if err != nil {
		trimmed = q
	}
	if numeric.Places(trimmed) > maxPlaces {
		trimmed = trimmed.Round(maxPlaces)
	}
	return trimmed
}

func fixed(d decimal.Decimal) string {
	return numeric.Fixed(d, minPlaces, maxPlaces)
}

// LineColumns names the usage, rate and amount columns of a table.
type LineColumns struct {
	Usage  string
	Rate   string
	Amount string
}

// UtilityColumns are the canonical utility bill column names.
var UtilityColumns = LineColumns{Usage: "Usage (kWh)", Rate: "Cost (per kWh)", Amount: "Amount ($)"}

// LocateColumns finds usage, rate and amount columns by name.
func LocateColumns(columns []string) (LineColumns, bool) {
	var lc LineColumns
	for _, c := range columns {
		l := strings.ToLower(c)
		switch {
		case strings.Contains(l, "cost") || strings.Contains(l, "rate"):
			if lc.Rate == "" {
				lc.Rate = c
			}
		case strings.Contains(l, "usage") || strings.Contains(l, "kwh"):
			if lc.Usage == "" {
				lc.Usage = c
			}
		case strings.Contains(l, "amount"):
			if lc.Amount == "" {
				lc.Amount = c
			}
		}
	}
	return lc, lc.Usage != "" && lc.Rate != "" && lc.Amount != ""
}

// ReconcileRow reconciles one record through the given columns.
func ReconcileRow(rec table.Record, cols LineColumns) LineItemReport {
	return ReconcileLineItem(rec[cols.Usage], rec[cols.Rate], rec[cols.Amount])
}
