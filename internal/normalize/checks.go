package normalize

import (
	"math"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/geometry"
	"github.com/joseph-ayodele/invoice-ocr/internal/validation"
)

const (
	CheckLineItem  = "line_item_check"
	CheckTotalMath = "total_math_check"
	CheckDateRange = "date_range_check"

	MismatchDateRange = "DATE_RANGE_INCONSISTENT"

	inferredRateField = "line_items.rate"
)

// BuildValidation lists the line item, total and date checks with their
// mismatches and the values that were inferred rather than read.
func BuildValidation(report validation.Report) Validation {
	v := Validation{
		Checks:         []Check{},
		Mismatches:     []Mismatch{},
		InferredFields: []InferredField{},
		Raw:            report,
	}

	for _, li := range report.LineItems {
		v.Checks = append(v.Checks, Check{Name: CheckLineItem, Passed: li.Status.Passed(), Details: li})
		if li.Status == constants.StatusPassWithInference {
			v.InferredFields = append(v.InferredFields, InferredField{
				Field:          inferredRateField,
				Reason:         li.Reason,
				OCRValue:       li.OCRCost,
				InferredValue:  li.InferredCost,
				SourcePriority: append([]string(nil), UtilitySourcePriority...),
			})
		}
		if li.Status == constants.StatusFail {
			v.Mismatches = append(v.Mismatches, Mismatch{Type: string(constants.LineItemMismatch), Details: li})
		}
	}

	if m := report.SummaryChecks.TotalMatch; m != nil {
		v.Checks = append(v.Checks, Check{Name: CheckTotalMath, Passed: *m})
		if !*m {
			v.Mismatches = append(v.Mismatches, Mismatch{
				Type:    string(constants.TotalMismatch),
				Details: summaryStrings(report.Summary),
			})
		}
	}

	f := report.Fields
	ok := datesOrdered(f["period_from"], f["period_until"]) && datesOrdered(f["statement_date"], f["due_date"])
	v.Checks = append(v.Checks, Check{Name: CheckDateRange, Passed: ok})
	if !ok {
		v.Mismatches = append(v.Mismatches, Mismatch{
			Type: MismatchDateRange,
			Details: map[string]*string{
				"period_from":    strPtr(f["period_from"]),
				"period_until":   strPtr(f["period_until"]),
				"statement_date": strPtr(f["statement_date"]),
				"due_date":       strPtr(f["due_date"]),
			},
		})
	}
	return v
}

// datesOrdered is false only when both dates parse and start is after end.
func datesOrdered(start, end string) bool {
	s, ok1 := parseDate(start)
	e, ok2 := parseDate(end)
	if !ok1 || !ok2 {
		return true
	}
	return !s.After(e)
}

var sections = []string{"fields", "vendor", "summary", "reminders", "notes"}

// BuildConfidence averages field confidences per section and block
// confidences over the document.
func BuildConfidence(report validation.Report, blocks []geometry.Block) Confidence {
	fc, _ := report.FieldConfidence.(map[string]any)
	c := Confidence{
		FieldLevel:   report.FieldConfidence,
		SectionLevel: make(map[string]*float64, len(sections)),
	}
	for _, s := range sections {
		c.SectionLevel[s] = average(fc[s])
	}
	if mean, ok := geometry.MeanConfidence(blocks); ok {
		c.OverallDocument = ptr(round3(mean))
	}
	return c
}

// average takes the mean of the numeric values of a map or list.
func average(v any) *float64 {
	var vals []any
	switch t := v.(type) {
	case map[string]any:
		for _, x := range t {
			vals = append(vals, x)
		}
	case []any:
		vals = t
	}
	var sum float64
	n := 0
	for _, x := range vals {
		if f, ok := x.(float64); ok && !math.IsNaN(f) {
			sum += f
			n++
		}
	}
	if n == 0 {
		return nil
	}
	return ptr(round3(sum / float64(n)))
}
