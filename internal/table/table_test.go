package table

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-ocr/internal/geometry"
)

func blk(text string, x0, y0, x1, y1 float64) geometry.Block {
	return geometry.Block{Text: text, BBox: geometry.Rect(x0, y0, x1, y1), Confidence: 0.95, Page: 1}
}

// utilityPage has a four-column header at y=100 and two data rows.
func utilityPage() []geometry.Block {
	return []geometry.Block{
		blk("Date", 100, 90, 160, 110),
		blk("Usage (kWh)", 250, 92, 370, 108),
		blk("Cost (per kWh)", 420, 91, 560, 109),
		blk("Amount ($)", 620, 90, 720, 110),
		blk("01/05/2024", 95, 140, 175, 160),
		blk("10", 300, 141, 320, 159),
		blk("1.50", 470, 140, 510, 160),
		blk("20.00", 650, 142, 700, 158),
		blk("01/06/2024", 95, 190, 175, 210),
		blk("12", 300, 190, 320, 210),
		blk("2.00", 470, 191, 510, 209),
		blk("24.00", 650, 190, 700, 210),
		blk("Page 1", 10, 890, 60, 910),
	}
}

func TestDetectHeader(t *testing.T) {
	header, ok := DetectHeader(utilityPage(), geometry.DefaultYTolerance)
	require.True(t, ok)
	assert.Len(t, header.Blocks, 4)
	assert.Equal(t, 100.0, header.Y)
}

func TestDetectHeaderNeedsThreeMembers(t *testing.T) {
	blocks := []geometry.Block{
		blk("Date", 100, 90, 160, 110),
		blk("Amount", 620, 90, 720, 110),
		blk("Total", 620, 400, 720, 420),
	}
	_, ok := DetectHeader(blocks, geometry.DefaultYTolerance)
	assert.False(t, ok)
}

func TestDetectHeaderTieKeepsFirstCluster(t *testing.T) {
	blocks := []geometry.Block{
		blk("Qty", 100, 90, 140, 110),
		blk("Rate", 200, 90, 240, 110),
		blk("Amount", 300, 90, 360, 110),
		blk("Date", 100, 490, 140, 510),
		blk("Cost", 200, 490, 240, 510),
		blk("Total", 300, 490, 360, 510),
	}
	header, ok := DetectHeader(blocks, geometry.DefaultYTolerance)
	require.True(t, ok)
	assert.Equal(t, 100.0, header.Y)
	assert.Equal(t, "Qty", header.Blocks[0].Text)
}

func TestInferColumnsSortedAndPadded(t *testing.T) {
	header := Row{Y: 100, Blocks: []geometry.Block{
		blk("Amount", 620, 90, 720, 110),
		blk("Date", 100, 90, 160, 110),
	}}
	cols := InferColumns(header)
	require.Len(t, cols, 2)
	assert.Equal(t, Column{Name: "Date", XMin: 90, XMax: 170}, cols[0])
	assert.Equal(t, Column{Name: "Amount", XMin: 610, XMax: 730}, cols[1])
	for i := 1; i < len(cols); i++ {
		assert.LessOrEqual(t, cols[i-1].XMin, cols[i].XMin)
	}
}

func TestReconstructWithHeader(t *testing.T) {
	res := Reconstruct(utilityPage(), nil)
	require.NotNil(t, res)
	assert.True(t, res.NewHeader)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, Record{
		"Date":           "01/05/2024",
		"Usage (kWh)":    "10",
		"Cost (per kWh)": "1.50",
		"Amount ($)":     "20.00",
	}, res.Rows[0])
	assert.Equal(t, 200.0, res.Context.LastY)
	assert.Equal(t, []string{"Date", "Usage (kWh)", "Cost (per kWh)", "Amount ($)"}, ColumnNames(res.Context.Columns))
}

func TestReconstructNothing(t *testing.T) {
	assert.Nil(t, Reconstruct([]geometry.Block{blk("Thank you", 800, 50, 900, 70)}, nil))
}

func TestContinuationAcrossPages(t *testing.T) {
	first := Reconstruct(utilityPage(), nil)
	require.NotNil(t, first)

	page2 := []geometry.Block{
		blk("01/07/2024", 95, 70, 175, 90),
		blk("14", 300, 70, 320, 90),
		blk("2.00", 470, 71, 510, 89),
		blk("28.00", 650, 70, 700, 90),
		blk("Notes", 95, 300, 175, 320),
		blk("see reverse", 250, 300, 370, 320),
	}
	ctx := first.Context
	res := Reconstruct(page2, &ctx)
	require.NotNil(t, res)
	assert.False(t, res.NewHeader)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "28.00", res.Rows[0]["Amount ($)"])
	assert.Equal(t, first.Context.Columns, res.Context.Columns)
	assert.Equal(t, first.Context.LastY, ctx.LastY)
}

func TestContinuationRejectsMisalignedRows(t *testing.T) {
	ctx := Context{Columns: []Column{{Name: "Qty", XMin: 90, XMax: 170}, {Name: "Amount", XMin: 610, XMax: 730}}, LastY: 500}
	page := []geometry.Block{
		blk("10", 1000, 70, 1020, 90),
		blk("20.00", 1100, 70, 1150, 90),
	}
	assert.Nil(t, Reconstruct(page, &ctx))
}

func TestProcessPagesKeepsContextOverEmptyPage(t *testing.T) {
	page2 := []geometry.Block{blk("Thank you for your business", 800, 50, 1000, 70)}
	page3 := []geometry.Block{
		blk("01/08/2024", 95, 70, 175, 90),
		blk("9", 300, 70, 320, 90),
		blk("2.00", 470, 71, 510, 89),
		blk("18.00", 650, 70, 700, 90),
	}
	tbl := ProcessPages([][]geometry.Block{utilityPage(), page2, page3})
	assert.Equal(t, []string{"Date", "Usage (kWh)", "Cost (per kWh)", "Amount ($)"}, tbl.Columns)
	require.Len(t, tbl.Rows, 3)
	assert.Equal(t, "18.00", tbl.Rows[2]["Amount ($)"])
}

func TestProcessPagesEmpty(t *testing.T) {
	tbl := ProcessPages(nil)
	assert.Empty(t, tbl.Columns)
	assert.NotNil(t, tbl.Rows)
}

func membership(rows []Row) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		var texts []string
		for _, b := range r.Blocks {
			texts = append(texts, b.Text)
		}
		sort.Strings(texts)
		out = append(out, texts)
	}
	return out
}

func TestGroupRowsIdempotent(t *testing.T) {
	inputs := [][]geometry.Block{
		utilityPage(),
		{
			blk("a", 0, 92, 10, 108),  // y=100
			blk("b", 0, 104, 10, 120), // y=112
			blk("c", 0, 73, 10, 87),   // y=80
			blk("d", 0, 81, 10, 97),   // y=89
			blk("e", 0, 118, 10, 132), // y=125
		},
	}
	for _, in := range inputs {
		once := GroupRows(in, -1000, geometry.DefaultYTolerance)
		var flat []geometry.Block
		for _, r := range once {
			flat = append(flat, r.Blocks...)
		}
		twice := GroupRows(flat, -1000, geometry.DefaultYTolerance)
		assert.Equal(t, membership(once), membership(twice))
	}
}

func TestGroupRowsSkipsExcludedBand(t *testing.T) {
	rows := GroupRows(utilityPage(), 100, geometry.DefaultYTolerance)
	for _, r := range rows {
		assert.False(t, geometry.YClose(r.Y, 100, geometry.DefaultYTolerance))
	}
	assert.Len(t, rows, 3)
}

func TestIsGenericRow(t *testing.T) {
	assert.False(t, IsGenericRow(Record{"Qty": "1"}))
	assert.False(t, IsGenericRow(Record{"Item": "Widget", "Note": "blue"}))
	assert.True(t, IsGenericRow(Record{"Item": "Widget", "Qty": "1"}))
}
