package validation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/geometry"
	"github.com/joseph-ayodele/invoice-ocr/internal/table"
)

func blk(text string, page int, x0, y0, x1, y1 float64) geometry.Block {
	return geometry.Block{Text: text, BBox: geometry.Rect(x0, y0, x1, y1), Confidence: 0.9, Page: page}
}

func utilityBlocks() []geometry.Block {
	return []geometry.Block{
		blk("Bright Power Company", 1, 100, 40, 400, 70),
		blk("12 Grid Lane", 1, 100, 80, 300, 100),
		blk("(555) 123-4567", 1, 700, 40, 900, 60),
		blk("Account No", 1, 100, 400, 220, 420),
		blk("12345678", 1, 240, 400, 340, 420),
		blk("Address", 1, 100, 450, 200, 470),
		blk("44 Elm Street", 1, 220, 450, 360, 470),
		blk("Springfield, Oregon, 97403", 1, 220, 500, 460, 520),
		blk("Current Charges", 1, 600, 700, 760, 720),
		blk("30.00", 1, 900, 700, 960, 720),
		blk("Bill Summary", 1, 600, 650, 760, 670),
		blk("Reminders", 2, 100, 50, 220, 70),
		blk("1. Pay on time", 2, 100, 100, 300, 120),
		blk("to avoid late fees.", 2, 100, 130, 300, 150),
		blk("2. Keep meters clear", 2, 100, 180, 300, 200),
		blk("For any questions call us.", 2, 100, 260, 400, 280),
	}
}

func utilityRows() []table.Record {
	return []table.Record{
		{"Date": "01/05/2024", "Usage (kWh)": "10", "Cost (per kWh)": "2.00", "Amount ($)": "20.00"},
		{"Date": "01/06/2024", "Usage (kWh)": "10", "Cost (per kWh)": "1.50", "Amount ($)": "20.00"},
		{"Date": "01/07/2024", "Amount ($)": "5.00"},
	}
}

func TestValidateUtilityBill(t *testing.T) {
	rep := Validate(constants.UtilityBill, utilityRows(), utilityBlocks())

	require.Len(t, rep.LineItems, 3)
	assert.Equal(t, constants.StatusPass, rep.LineItems[0].Status)
	assert.Equal(t, "0.00", rep.LineItems[0].Delta)
	assert.Equal(t, constants.StatusPassWithInference, rep.LineItems[1].Status)
	assert.Equal(t, constants.StatusSkip, rep.LineItems[2].Status)

	inf, ok := rep.Inference(1)
	require.True(t, ok)
	assert.Equal(t, "1.50", inf.OCRCost)
	assert.Equal(t, "2.00", inf.InferredCost)
	_, ok = rep.Inference(0)
	assert.False(t, ok)

	assert.Equal(t, "12345678", rep.Fields["account_no"])
	assert.Equal(t, "44 Elm Street", rep.Fields["address"])

	require.NotNil(t, rep.CustomerAddress)
	assert.Equal(t, Address{
		Street: "44 Elm Street", City: "Springfield", State: "Oregon", PostalCode: "97403",
		Full: "44 Elm Street, Springfield, Oregon, 97403",
	}, *rep.CustomerAddress)

	require.NotNil(t, rep.Vendor)
	assert.Equal(t, "Bright Power Company", rep.Vendor.Name)
	assert.Equal(t, "12 Grid Lane", rep.Vendor.Address)
	assert.Equal(t, "(555) 123-4567", rep.Vendor.Phone)

	assert.Equal(t, Sections{BillSummary: true, Reminders: true}, rep.Sections)
	assert.Equal(t, []string{"Pay on time to avoid late fees.", "Keep meters clear"}, rep.Reminders)
	assert.Equal(t, []string{"For any questions call us."}, rep.Notes)

	require.Contains(t, rep.Summary, "current_charges")
	assert.Contains(t, rep.SummaryChecks.NotApplicable, "current_charges_match")
	assert.Nil(t, rep.SummaryChecks.TotalMatch)

	conf, ok := rep.FieldConfidence.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"current_charges": 0.9}, conf["summary"])
	assert.Contains(t, conf, "vendor")
	assert.Contains(t, conf, "reminders")
}

func TestValidateProductRowsWithoutUsage(t *testing.T) {
	rows := []table.Record{{"Item": "Widget", "Quantity": "2", "Rate": "5.00", "Amount": "10.00"}}
	rep := Validate(constants.ProductInvoice, rows, nil)
	assert.Empty(t, rep.LineItems)
	assert.Empty(t, rep.Summary)
	assert.Nil(t, rep.Vendor)
}

func TestValidateAnySchemaWithUsageColumns(t *testing.T) {
	rows := []table.Record{{"Usage": "4", "Rate": "2.50", "Amount": "10.00"}}
	rep := Validate(constants.Generic, rows, nil)
	require.Len(t, rep.LineItems, 1)
	assert.Equal(t, constants.StatusPass, rep.LineItems[0].Status)
}

func TestReportJSONFlattensLineItems(t *testing.T) {
	rep := Validate(constants.UtilityBill, utilityRows()[:1], nil)
	b, err := json.Marshal(rep)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	items := out["line_items"].([]any)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Equal(t, "PASS", item["status"])
	assert.Equal(t, 0.0, item["row"])
}

func TestVendorFromLabel(t *testing.T) {
	blocks := []geometry.Block{
		blk("From:", 1, 100, 100, 160, 120),
		blk("Northwind Traders", 1, 100, 140, 300, 160),
		blk("9 Harbor Rd", 1, 100, 180, 300, 200),
		blk("sales @ northwind.com", 1, 100, 220, 300, 240),
		blk("To:", 1, 100, 300, 160, 320),
		blk("Customer Co", 1, 100, 340, 300, 360),
	}
	v := ExtractVendor(blocks)
	assert.Equal(t, Vendor{Name: "Northwind Traders", Address: "9 Harbor Rd", Email: "sales@northwind.com"}, v)
}
