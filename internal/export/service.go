package export

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-ocr/internal/normalize"
)

// Sheet names of the workbook.
const (
	SheetDocuments = "Documents"
	SheetLineItems = "Line Items"
	SheetFields    = "Fields"
	SheetRisk      = "Risk"
)

// Entry is one processed document with the file it came from.
type Entry struct {
	SourcePath string
	Document   normalize.Document
	Err        error
}

// Service produces XLSX workbooks summarizing processed documents.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

type sheetWriter struct {
	f     *excelize.File
	sheet string
	row   int
}

func (w *sheetWriter) write(values ...any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, w.row)
		_ = w.f.SetCellValue(w.sheet, cell, v)
	}
	w.row++
}

func newSheet(f *excelize.File, name string, headers ...string) (*sheetWriter, error) {
	if index, _ := f.GetSheetIndex(name); index == -1 {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}
	w := &sheetWriter{f: f, sheet: name, row: 1}
	row := make([]any, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	w.write(row...)
	return w, nil
}

// DocumentsXLSX returns a workbook with one Documents row per entry and the
// line items, fields and risk flags of the successful ones.
func (s *Service) DocumentsXLSX(entries []Entry) ([]byte, error) {
	start := time.Now()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	docs, err := newSheet(f, SheetDocuments,
		"Document ID", "Source", "Status", "Document Type", "Seller", "Buyer",
		"Document No", "Currency", "Subtotal", "Tax", "Total", "Risk Score", "Risk Flags")
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		d := e.Document
		if e.Err != nil {
			docs.write(d.Meta.DocumentID, e.SourcePath, "FAILED: "+e.Err.Error())
			continue
		}
		n := d.Normalized
		docs.write(
			d.Meta.DocumentID, e.SourcePath, "DONE", d.Document.DocumentType,
			deref(n.Seller.Name), deref(n.Buyer.Name), deref(n.DocumentID), deref(n.Currency),
			deref(n.Totals.Subtotal), deref(n.Totals.Tax), deref(n.Totals.Total),
			d.Risk.RiskScore, joinFlags(d),
		)
	}
	_ = f.DeleteSheet("Sheet1")
	activeIndex, _ := f.GetSheetIndex(SheetDocuments)
	f.SetActiveSheet(activeIndex)

	if err := s.lineItems(f, entries); err != nil {
		return nil, err
	}

	fields, err := newSheet(f, SheetFields, "Document ID", "Key", "Value", "Type", "Confidence")
	if err != nil {
		return nil, err
	}
	risk, err := newSheet(f, SheetRisk, "Document ID", "Risk Score", "Confidence Score", "Flag", "Explanation")
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Err != nil {
			continue
		}
		d := e.Document
		id := d.Meta.DocumentID
		for _, fc := range d.ExtractedContent.Fields {
			var conf any = ""
			if fc.Confidence != nil {
				conf = *fc.Confidence
			}
			fields.write(id, fc.Key, fc.Value, fc.InferredType, conf)
		}
		if len(d.Risk.RiskFlags) == 0 {
			risk.write(id, d.Risk.RiskScore, d.Risk.ConfidenceScore, "", "")
		}
		for _, flag := range d.Risk.RiskFlags {
			risk.write(id, d.Risk.RiskScore, d.Risk.ConfidenceScore, string(flag), d.Risk.Explanations[flag])
		}
	}

	_ = f.SetColWidth(SheetDocuments, "A", "A", 38) // id
	_ = f.SetColWidth(SheetDocuments, "B", "B", 48) // path
	_ = f.SetColWidth(SheetDocuments, "E", "F", 28) // parties
	_ = f.SetColWidth(SheetFields, "B", "C", 32)
	_ = f.SetColWidth(SheetRisk, "E", "E", 44)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.xlsx.ok", "documents", len(entries), "bytes", buf.Len(), "duration_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), nil
}

// lineItems writes one row per line item. Columns are the union of item keys
// across documents in first-seen order, each item's keys sorted.
func (s *Service) lineItems(f *excelize.File, entries []Entry) error {
	var keys []string
	seen := map[string]bool{}
	for _, e := range entries {
		if e.Err != nil {
			continue
		}
		for _, item := range e.Document.Normalized.LineItems {
			ks := make([]string, 0, len(item))
			for k := range item {
				ks = append(ks, k)
			}
			sort.Strings(ks)
			for _, k := range ks {
				if !seen[k] {
					seen[k] = true
					keys = append(keys, k)
				}
			}
		}
	}

	w, err := newSheet(f, SheetLineItems, append([]string{"Document ID", "Row"}, keys...)...)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Err != nil {
			continue
		}
		for i, item := range e.Document.Normalized.LineItems {
			row := []any{e.Document.Meta.DocumentID, i + 1}
			for _, k := range keys {
				row = append(row, cellValue(item[k]))
			}
			w.write(row...)
		}
	}
	return nil
}

func cellValue(v any) any {
	switch t := v.(type) {
	case nil:
		return ""
	case []string:
		return strings.Join(t, ", ")
	case string, int, float64, bool:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func joinFlags(d normalize.Document) string {
	parts := make([]string, len(d.Risk.RiskFlags))
	for i, f := range d.Risk.RiskFlags {
		parts[i] = string(f)
	}
	return strings.Join(parts, ", ")
}
