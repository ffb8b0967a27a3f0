package reconcile

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/geometry"
	"github.com/joseph-ayodele/invoice-ocr/internal/table"
)

func blk(text string, x0, y0, x1, y1 float64) geometry.Block {
	return geometry.Block{Text: text, BBox: geometry.Rect(x0, y0, x1, y1), Confidence: 0.9, Page: 1}
}

func TestReconcileLineItem(t *testing.T) {
	tests := []struct {
		name   string
		usage  string
		rate   string
		amount string
		want   LineItemReport
	}{
		{
			name: "exact match", usage: "10", rate: "2.00", amount: "20.00",
			want: LineItemReport{Status: constants.StatusPass, Expected: "20.00", Actual: "20.00", Delta: "0.00"},
		},
		{
			name: "rate inferred from amount", usage: "10", rate: "1.50", amount: "20.00",
			want: LineItemReport{
				Status: constants.StatusPassWithInference, Reason: ReasonRateInferred,
				Expected: "15.00", Actual: "20.00", Delta: "5.00",
				OCRCost: "1.50", InferredCost: "2.00",
			},
		},
		{
			name: "inferred rate keeps the quotient's precision", usage: "100", rate: "0.15", amount: "12.34",
			want: LineItemReport{
				Status: constants.StatusPassWithInference, Reason: ReasonRateInferred,
				Expected: "15.00", Actual: "12.34", Delta: "2.66",
				OCRCost: "0.15", InferredCost: "0.1234",
			},
		},
		{
			name: "repeating quotient capped at eight places", usage: "3", rate: "0.5", amount: "1.00",
			want: LineItemReport{
				Status: constants.StatusPassWithInference, Reason: ReasonRateInferred,
				Expected: "1.50", Actual: "1.00", Delta: "0.50",
				OCRCost: "0.50", InferredCost: "0.33333333",
			},
		},
		{
			name: "zero usage never divides", usage: "0", rate: "1.50", amount: "20.00",
			want: LineItemReport{Status: constants.StatusFail, Expected: "0.00", Actual: "20.00", Delta: "20.00"},
		},
		{
			name: "within tolerance", usage: "3", rate: "0.333", amount: "1.00",
			want: LineItemReport{Status: constants.StatusPass, Expected: "0.999", Actual: "1.00", Delta: "0.001"},
		},
		{
			name: "unparseable operand", usage: "ten", rate: "1.50", amount: "20.00",
			want: LineItemReport{Status: constants.StatusSkip, Reason: ReasonMissingNumeric},
		},
		{
			name: "missing operand", usage: "10", rate: "", amount: "$20.00",
			want: LineItemReport{Status: constants.StatusSkip, Reason: ReasonMissingNumeric},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReconcileLineItem(tt.usage, tt.rate, tt.amount))
		})
	}
}

func TestLocateColumns(t *testing.T) {
	cols, ok := LocateColumns([]string{"Date", "Usage (kWh)", "Cost (per kWh)", "Amount ($)"})
	require.True(t, ok)
	assert.Equal(t, UtilityColumns, cols)

	_, ok = LocateColumns([]string{"Item", "Quantity", "Rate", "Amount"})
	assert.False(t, ok)
}

func TestReconcileRowMissingColumn(t *testing.T) {
	r := ReconcileRow(table.Record{"Usage (kWh)": "10", "Amount ($)": "20.00"}, UtilityColumns)
	assert.Equal(t, constants.StatusSkip, r.Status)
	assert.Equal(t, ReasonMissingNumeric, r.Reason)
}

func summaryPage() []geometry.Block {
	return []geometry.Block{
		blk("Subtotal", 500, 700, 600, 720),
		blk("100.00", 800, 700, 880, 720),
		blk("$1,000.00", 1000, 700, 1100, 720),
		blk("Tax (10%)", 500, 740, 600, 760),
		blk("10.00", 800, 740, 880, 760),
		blk("Total", 500, 780, 600, 800),
		blk("$110.00", 800, 780, 880, 800),
		blk("Tax ID", 50, 50, 120, 70),
		blk("998877", 200, 50, 300, 70),
	}
}

func TestExtractSummary(t *testing.T) {
	s := ExtractSummary(summaryPage(), DefaultSummaryLabels)
	require.Len(t, s, 3)
	assert.True(t, s[KeySubtotal].Equal(decimal.RequireFromString("100.00")))
	assert.True(t, s[KeyTax].Equal(decimal.RequireFromString("10")))
	assert.True(t, s[KeyTotal].Equal(decimal.RequireFromString("110")))
}

func TestExtractSummaryEmpty(t *testing.T) {
	assert.Empty(t, ExtractSummary([]geometry.Block{blk("Thank you", 0, 0, 10, 10)}, DefaultSummaryLabels))
}

func TestValidateSummary(t *testing.T) {
	s := ExtractSummary(summaryPage(), DefaultSummaryLabels)
	checks := ValidateSummary(constants.ProductInvoice, s)
	require.NotNil(t, checks.TotalMatch)
	assert.True(t, *checks.TotalMatch)
	assert.Equal(t, "subtotal + tax", checks.Formula)
	assert.Empty(t, checks.NotApplicable)

	s[KeyTotal] = decimal.RequireFromString("120.00")
	checks = ValidateSummary(constants.ProductInvoice, s)
	require.NotNil(t, checks.TotalMatch)
	assert.False(t, *checks.TotalMatch)
}

func TestValidateSummaryChargesFormula(t *testing.T) {
	s := Summary{
		KeyPreviousCharges: decimal.RequireFromString("40.00"),
		KeyCurrentCharges:  decimal.RequireFromString("50.00"),
		KeyTax:             decimal.RequireFromString("5.00"),
		KeyTotal:           decimal.RequireFromString("95.00"),
		KeySubtotal:        decimal.RequireFromString("1.00"),
	}
	checks := ValidateSummary(constants.UtilityBill, s)
	require.NotNil(t, checks.TotalMatch)
	assert.True(t, *checks.TotalMatch)
	assert.Equal(t, "previous_charges + current_charges + tax", checks.Formula)
	assert.Equal(t, map[string]string{"current_charges_match": reasonNotAuthoritative}, checks.NotApplicable)
}

func TestValidateSummaryIncomplete(t *testing.T) {
	checks := ValidateSummary(constants.UtilityBill, Summary{KeySubtotal: decimal.NewFromInt(5)})
	assert.Nil(t, checks.TotalMatch)
	assert.Contains(t, checks.NotApplicable, "subtotal_match")
}

func TestInferredRateReconcilesWithAmount(t *testing.T) {
	for _, tc := range [][3]string{
		{"100", "0.15", "12.34"},
		{"7", "1.00", "10.00"},
		{"1234.5", "0.10", "98.76"},
	} {
		r := ReconcileLineItem(tc[0], tc[1], tc[2])
		require.Equal(t, constants.StatusPassWithInference, r.Status, tc)
		usage := decimal.RequireFromString(tc[0])
		inferred := decimal.RequireFromString(r.InferredCost)
		amount := decimal.RequireFromString(tc[2])
		assert.True(t, usage.Mul(inferred).Sub(amount).Abs().LessThanOrEqual(Tolerance), "%v -> %s", tc, r.InferredCost)
	}
}
