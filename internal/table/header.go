package table

import (
	"sort"
	"strings"

	"github.com/joseph-ayodele/invoice-ocr/internal/geometry"
)

// HeaderKeywords mark a block as a possible column header.
var HeaderKeywords = []string{
	"date",
	"qty",
	"quantity",
	"description",
	"usage",
	"rate",
	"price",
	"unit price",
	"cost",
	"amount",
	"total",
}

const (
	minHeaderColumns = 3
	columnMargin     = 10.0
)

// Column is a horizontal band derived from one header block.
type Column struct {
	Name string  `json:"name"`
	XMin float64 `json:"xmin"`
	XMax float64 `json:"xmax"`
}

// Contains reports whether x lies inside the band widened by pad on both sides.
func (c Column) Contains(x, pad float64) bool {
	return c.XMin-pad <= x && x <= c.XMax+pad
}

func IsHeaderText(text string) bool {
	t := strings.ToLower(text)
	for _, k := range HeaderKeywords {
		if strings.Contains(t, k) {
			return true
		}
	}
	return false
}

// DetectHeader picks the largest vertical cluster of header-like blocks.
// Ties keep the cluster found first; fewer than three members means no header.
func DetectHeader(blocks []geometry.Block, tol float64) (Row, bool) {
	var candidates []geometry.Block
	for _, b := range blocks {
		if IsHeaderText(b.Text) {
			candidates = append(candidates, b)
		}
	}
	rows := cluster(candidates, tol, nil)
	if len(rows) == 0 {
		return Row{}, false
	}

	best := 0
	for i := 1; i < len(rows); i++ {
		if len(rows[i].Blocks) > len(rows[best].Blocks) {
			best = i
		}
	}
	if len(rows[best].Blocks) < minHeaderColumns {
		return Row{}, false
	}
	return rows[best], true
}

// InferColumns turns each header block into a padded band, left to right.
func InferColumns(header Row) []Column {
	cols := make([]Column, 0, len(header.Blocks))
	for _, b := range header.Blocks {
		cols = append(cols, Column{
			Name: b.Text,
			XMin: b.BBox[0].X - columnMargin,
			XMax: b.BBox[1].X + columnMargin,
		})
	}
	sort.SliceStable(cols, func(i, j int) bool { return cols[i].XMin < cols[j].XMin })
	return cols
}

// ColumnNames lists column names left to right.
func ColumnNames(cols []Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}
