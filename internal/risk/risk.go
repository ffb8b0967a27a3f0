// Package risk scores document untrustworthiness from validation signals.
package risk

import (
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/geometry"
	"github.com/joseph-ayodele/invoice-ocr/internal/validation"
)

// LowConfidenceThreshold is the mean OCR confidence below which a document is flagged.
const LowConfidenceThreshold = 0.85

// Signal is one catalog entry.
type Signal struct {
	Weight      decimal.Decimal
	Description string
}

// Signals is the fixed signal catalog.
var Signals = map[constants.RiskSignal]Signal{
	constants.TotalMismatch:    {decimal.RequireFromString("0.25"), "Subtotal + tax does not equal total"},
	constants.LineItemMismatch: {decimal.RequireFromString("0.20"), "Line item calculation mismatch"},
	constants.MissingSummary:   {decimal.RequireFromString("0.15"), "Summary totals missing"},
	constants.LowOCRConfidence: {decimal.RequireFromString("0.10"), "OCR confidence below threshold"},
}

// Result is the risk assessment of one document.
type Result struct {
	ConfidenceScore float64                         `json:"confidence_score"`
	RiskScore       float64                         `json:"risk_score"`
	RiskFlags       []constants.RiskSignal          `json:"risk_flags"`
	Explanations    map[constants.RiskSignal]string `json:"explanations"`
}

// ExtractSignals derives the raised signals from a validation report. The
// OCR confidence signal is evaluated only when blocks exist.
func ExtractSignals(report validation.Report, blocks []geometry.Block) []constants.RiskSignal {
	var out []constants.RiskSignal

	if m := report.SummaryChecks.TotalMatch; m != nil && !*m {
		out = append(out, constants.TotalMismatch)
	}
	for _, li := range report.LineItems {
		if li.Status == constants.StatusFail {
			out = append(out, constants.LineItemMismatch)
			break
		}
	}
	if len(report.Summary) == 0 {
		out = append(out, constants.MissingSummary)
	}
	if mean, ok := geometry.MeanConfidence(blocks); ok && mean < LowConfidenceThreshold {
		out = append(out, constants.LowOCRConfidence)
	}
	return out
}

// Score sums the weights of the distinct known signals, clamped to 1.
// Flags are reported in catalog order.
func Score(signals []constants.RiskSignal) Result {
	raised := make(map[constants.RiskSignal]bool, len(signals))
	for _, s := range signals {
		raised[s] = true
	}

	res := Result{
		RiskFlags:    []constants.RiskSignal{},
		Explanations: map[constants.RiskSignal]string{},
	}
	total := decimal.Zero
	for _, s := range constants.AllRiskSignals {
		if !raised[s] {
			continue
		}
		meta := Signals[s]
		total = total.Add(meta.Weight)
		res.RiskFlags = append(res.RiskFlags, s)
		res.Explanations[s] = meta.Description
	}

	one := decimal.NewFromInt(1)
	if total.GreaterThan(one) {
		total = one
	}
	total = total.Round(2)
	res.RiskScore = total.InexactFloat64()
	res.ConfidenceScore = one.Sub(total).Round(2).InexactFloat64()
	return res
}

// Assess extracts and scores the signals of a validation report.
func Assess(report validation.Report, blocks []geometry.Block) Result {
	return Score(ExtractSignals(report, blocks))
}
