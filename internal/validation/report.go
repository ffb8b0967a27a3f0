// Package validation assembles the per-document validation report: line-item
// and summary reconciliation, labelled fields, layout enrichment and the
// field confidence map.
package validation

import (
	"sort"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/confidence"
	"github.com/joseph-ayodele/invoice-ocr/internal/fields"
	"github.com/joseph-ayodele/invoice-ocr/internal/geometry"
	"github.com/joseph-ayodele/invoice-ocr/internal/reconcile"
	"github.com/joseph-ayodele/invoice-ocr/internal/table"
)

// LineItem is the reconciliation outcome of the row at index Row.
type LineItem struct {
	Row int `json:"row"`
	reconcile.LineItemReport
}

// Report is the validation outcome of one document.
type Report struct {
	Schema          constants.SchemaName    `json:"schema"`
	LineItems       []LineItem              `json:"line_items"`
	Fields          map[string]string       `json:"fields"`
	Vendor          *Vendor                 `json:"vendor,omitempty"`
	CustomerAddress *Address                `json:"customer_address_full,omitempty"`
	Sections        Sections                `json:"sections"`
	Reminders       []string                `json:"reminders,omitempty"`
	Notes           []string                `json:"notes,omitempty"`
	Summary         reconcile.Summary       `json:"summary"`
	FieldConfidence any                     `json:"field_confidence"`
	SummaryChecks   reconcile.SummaryChecks `json:"summary_checks"`
}

// Inference returns the rate inference for row i, if one was made.
func (r Report) Inference(i int) (reconcile.LineItemReport, bool) {
	for _, li := range r.LineItems {
		if li.Row == i && li.Status == constants.StatusPassWithInference {
			return li.LineItemReport, true
		}
	}
	return reconcile.LineItemReport{}, false
}

// Options override the label catalogs.
type Options struct {
	Labels        []fields.Label
	SummaryLabels []reconcile.SummaryLabel
}

func (o Options) withDefaults() Options {
	if o.Labels == nil {
		o.Labels = fields.DefaultLabels
	}
	if o.SummaryLabels == nil {
		o.SummaryLabels = reconcile.DefaultSummaryLabels
	}
	return o
}

// Validate runs every check with the default catalogs.
func Validate(schemaName constants.SchemaName, rows []table.Record, blocks []geometry.Block) Report {
	return ValidateWithOptions(schemaName, rows, blocks, Options{})
}

func ValidateWithOptions(schemaName constants.SchemaName, rows []table.Record, blocks []geometry.Block, opts Options) Report {
	opts = opts.withDefaults()

	rep := Report{
		Schema:    schemaName,
		LineItems: reconcileRows(schemaName, rows),
		Fields:    fields.Extract(blocks, opts.Labels),
		Summary:   reconcile.ExtractSummary(blocks, opts.SummaryLabels),
	}

	e := Enrich(blocks, rep.Fields)
	rep.Vendor = e.Vendor
	rep.CustomerAddress = e.CustomerAddress
	rep.Sections = e.Sections
	rep.Reminders = e.Reminders
	rep.Notes = e.Notes

	rep.FieldConfidence = confidence.Map(confidenceSource(rep), blocks)
	rep.SummaryChecks = reconcile.ValidateSummary(schemaName, rep.Summary)
	return rep
}

// reconcileRows checks every utility bill row, and rows of other schemas that
// carry usage, rate and amount columns.
func reconcileRows(schemaName constants.SchemaName, rows []table.Record) []LineItem {
	out := []LineItem{}
	for i, row := range rows {
		cols, ok := reconcile.LocateColumns(sortedKeys(row))
		if !ok {
			if schemaName != constants.UtilityBill {
				continue
			}
			cols = reconcile.UtilityColumns
		}
		out = append(out, LineItem{Row: i, LineItemReport: reconcile.ReconcileRow(row, cols)})
	}
	return out
}

func sortedKeys(rec table.Record) []string {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func confidenceSource(rep Report) map[string]any {
	src := map[string]any{
		"fields":  rep.Fields,
		"summary": rep.Summary,
	}
	if rep.Vendor != nil {
		src["vendor"] = rep.Vendor
	}
	if rep.CustomerAddress != nil {
		src["customer_address_full"] = rep.CustomerAddress
	}
	if len(rep.Reminders) > 0 {
		src["reminders"] = rep.Reminders
	}
	if len(rep.Notes) > 0 {
		src["notes"] = rep.Notes
	}
	return src
}
