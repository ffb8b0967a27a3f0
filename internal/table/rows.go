package table

import (
	"sort"

	"github.com/joseph-ayodele/invoice-ocr/internal/geometry"
)

// Row is one vertical cluster of blocks. Y is the center of the seed block.
type Row struct {
	Y      float64
	Blocks []geometry.Block
}

// cluster groups blocks by vertical center. Each block joins the first
// existing cluster whose seed lies within tol, otherwise it seeds a new one.
// The accumulator lives only for this call.
func cluster(blocks []geometry.Block, tol float64, skip func(y float64) bool) []Row {
	var rows []Row
	for _, b := range blocks {
		y := b.CenterY()
		if skip != nil && skip(y) {
			continue
		}
		placed := false
		for i := range rows {
			if geometry.YClose(y, rows[i].Y, tol) {
				rows[i].Blocks = append(rows[i].Blocks, b)
				placed = true
				break
			}
		}
		if !placed {
			rows = append(rows, Row{Y: y, Blocks: []geometry.Block{b}})
		}
	}
	return rows
}

// GroupRows clusters blocks into rows, ignoring anything within tolerance of
// excludeY, and returns them top to bottom. Blocks are visited in center-Y
// order so the same set of blocks always yields the same rows.
func GroupRows(blocks []geometry.Block, excludeY, tol float64) []Row {
	sorted := make([]geometry.Block, len(blocks))
	copy(sorted, blocks)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CenterY() < sorted[j].CenterY() })

	rows := cluster(sorted, tol, func(y float64) bool {
		return geometry.YClose(y, excludeY, tol)
	})
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Y < rows[j].Y })
	return rows
}
