// Package table rebuilds tabular structure from OCR block geometry.
package table

import (
	"github.com/joseph-ayodele/invoice-ocr/internal/geometry"
	"github.com/joseph-ayodele/invoice-ocr/internal/numeric"
)

const continuationPad = 20.0

// Record maps a column name to raw cell text. Partial rows are allowed.
type Record map[string]string

// Context carries column geometry and the vertical cursor from one page to
// the next so a table can continue without a repeated header.
type Context struct {
	Columns []Column `json:"columns"`
	LastY   float64  `json:"last_y"`
}

// Result is the outcome of reconstructing one page.
type Result struct {
	Rows      []Record
	Context   Context
	NewHeader bool
}

// AssignCells places each block in the first column containing its center.
func AssignCells(row Row, cols []Column) Record {
	rec := Record{}
	for _, b := range row.Blocks {
		cx := b.CenterX()
		for _, c := range cols {
			if c.Contains(cx, 0) {
				rec[c.Name] = b.Text
				break
			}
		}
	}
	return rec
}

func alignedWith(row Row, cols []Column) bool {
	for _, b := range row.Blocks {
		cx := b.CenterX()
		for _, c := range cols {
			if c.Contains(cx, continuationPad) {
				return true
			}
		}
	}
	return false
}

// IsGenericRow is the schema-agnostic check used for continuation rows:
// at least two cells and at least one numeric cell.
func IsGenericRow(rec Record) bool {
	if len(rec) < 2 {
		return false
	}
	for _, v := range rec {
		if numeric.IsNumber(v) {
			return true
		}
	}
	return false
}

// Reconstruct extracts table rows from one page. When the page has no header
// it tries to continue prev. It returns nil when neither applies; the caller
// keeps its previous context in that case.
func Reconstruct(blocks []geometry.Block, prev *Context) *Result {
	tol := geometry.DefaultYTolerance

	if header, ok := DetectHeader(blocks, tol); ok {
		cols := InferColumns(header)
		rows := GroupRows(blocks, header.Y, tol)

		out := &Result{NewHeader: true}
		lastY := header.Y
		for _, r := range rows {
			rec := AssignCells(r, cols)
			if len(rec) >= 2 {
				out.Rows = append(out.Rows, rec)
				lastY = r.Y
			}
		}
		out.Context = Context{Columns: cols, LastY: lastY}
		return out
	}

	if prev == nil {
		return nil
	}

	rows := GroupRows(blocks, prev.LastY, tol)
	var continued []Record
	for _, r := range rows {
		if !alignedWith(r, prev.Columns) {
			continue
		}
		rec := AssignCells(r, prev.Columns)
		if IsGenericRow(rec) {
			continued = append(continued, rec)
		}
	}
	if len(continued) == 0 {
		return nil
	}
	cols := make([]Column, len(prev.Columns))
	copy(cols, prev.Columns)
	return &Result{
		Rows:    continued,
		Context: Context{Columns: cols, LastY: prev.LastY},
	}
}
