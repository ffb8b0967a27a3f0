package table

import "github.com/joseph-ayodele/invoice-ocr/internal/geometry"

// Table is the document-wide reconstruction.
type Table struct {
	Columns []string `json:"columns"`
	Rows    []Record `json:"rows"`
}

// ProcessPages runs Reconstruct over pages in order, threading the context.
// Columns come from the first page that carried a header.
func ProcessPages(pages [][]geometry.Block) Table {
	var (
		t   Table
		ctx *Context
	)
	for _, blocks := range pages {
		res := Reconstruct(blocks, ctx)
		if res == nil {
			continue
		}
		if res.NewHeader && t.Columns == nil {
			t.Columns = ColumnNames(res.Context.Columns)
		}
		t.Rows = append(t.Rows, res.Rows...)
		next := res.Context
		ctx = &next
	}
	if t.Columns == nil {
		t.Columns = []string{}
	}
	if t.Rows == nil {
		t.Rows = []Record{}
	}
	return t
}
