// Package fields resolves labelled key/value fields (invoice number, dates,
// account numbers, totals) from block proximity.
package fields

import (
	"regexp"
	"strings"

	"github.com/joseph-ayodele/invoice-ocr/internal/geometry"
)

// Label is one field key and the keywords that mark its label blocks.
type Label struct {
	Key      string
	Keywords []string
}

// DefaultLabels is the built-in label catalog, in output order.
var DefaultLabels = []Label{
	{Key: "invoice_number", Keywords: []string{"invoice number", "invoice no"}},
	{Key: "invoice_date", Keywords: []string{"invoice date"}},
	{Key: "order_number", Keywords: []string{"order number"}},
	{Key: "total_due", Keywords: []string{"total due"}},
	{Key: "account_no", Keywords: []string{"account no", "account number"}},
	{Key: "statement_date", Keywords: []string{"statement date"}},
	{Key: "account_name", Keywords: []string{"account name"}},
	{Key: "period_from", Keywords: []string{"period statement from", "period from"}},
	{Key: "period_until", Keywords: []string{"period statement until", "period until"}},
	{Key: "address", Keywords: []string{"address"}},
	{Key: "due_date", Keywords: []string{"due date"}},
}

var reDate = regexp.MustCompile(`[A-Za-z]+\s+\d{1,2},\s+\d{4}|\d{1,2}/\d{1,2}/\d{2,4}`)

// Patterns holds per-field value formats. Fields without an entry accept any text.
var Patterns = map[string]*regexp.Regexp{
	"invoice_number": regexp.MustCompile(`[A-Za-z]{2,}-?\d+|\d{4,}`),
	"invoice_date":   reDate,
	"total_due":      regexp.MustCompile(`\$?\s*\d+(?:,\d{3})*(?:\.\d+)?`),
	"account_no":     regexp.MustCompile(`\d{6,}`),
	"statement_date": reDate,
	"period_from":    reDate,
	"period_until":   reDate,
	"due_date":       reDate,
}

// Options are the proximity windows, in page units.
type Options struct {
	SameRowTolerance float64 // max |dy| for a same-row value
	BelowWindow      float64 // max dy for a value under the label
	MaxDrift         float64 // max |dx| for a value under the label
}

func DefaultOptions() Options {
	return Options{SameRowTolerance: 20, BelowWindow: 120, MaxDrift: 300}
}

// Extract resolves every label key with default options.
func Extract(blocks []geometry.Block, labels []Label) map[string]string {
	return ExtractWithOptions(blocks, labels, DefaultOptions())
}

// ExtractWithOptions resolves each key from its label blocks. Labels are tried
// in block order and the first one yielding a value wins.
func ExtractWithOptions(blocks []geometry.Block, labels []Label, opts Options) map[string]string {
	out := make(map[string]string)
	all := allKeywords(labels)
	lower := make([]string, len(blocks))
	for i, b := range blocks {
		lower[i] = strings.ToLower(b.Text)
	}

	for _, l := range labels {
		for i := range blocks {
			if !containsAny(lower[i], l.Keywords) {
				continue
			}
			if v, ok := valueFor(blocks, i, l.Key, all, opts); ok {
				out[l.Key] = v
				break
			}
		}
	}
	return out
}

func allKeywords(labels []Label) []string {
	var kws []string
	for _, l := range labels {
		kws = append(kws, l.Keywords...)
	}
	return kws
}

func containsAny(s string, subs []string) bool {
	for _, k := range subs {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func validCandidate(key, text string, keywords []string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return false
	}
	if containsAny(strings.ToLower(t), keywords) {
		return false
	}
	if p, ok := Patterns[key]; ok && !p.MatchString(t) {
		return false
	}
	return true
}

// valueFor scores every candidate on the label's page. Same-row values to the
// right rank by 5*|dy|+dx; otherwise values below rank by 2*|dx|+dy. The
// lowest score wins and earlier blocks win ties.
func valueFor(blocks []geometry.Block, labelIdx int, key string, keywords []string, opts Options) (string, bool) {
	label := blocks[labelIdx]
	lx, ly := label.CenterX(), label.CenterY()

	best := ""
	bestScore := 0.0
	found := false
	for i, b := range blocks {
		if i == labelIdx || b.Page != label.Page {
			continue
		}
		if !validCandidate(key, b.Text, keywords) {
			continue
		}
		bx, by := b.CenterX(), b.CenterY()
		dx, dy := bx-lx, by-ly

		var score float64
		switch {
		case abs(dy) <= opts.SameRowTolerance && bx > lx:
			score = abs(dy)*5 + dx
		case dy > 0 && dy <= opts.BelowWindow && abs(dx) <= opts.MaxDrift:
			score = abs(dx)*2 + dy
		default:
			continue
		}
		if !found || score < bestScore {
			best, bestScore, found = strings.TrimSpace(b.Text), score, true
		}
	}
	return best, found
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// KnownLabel reports whether a lowercased label names a catalog field.
func KnownLabel(label string, labels []Label) bool {
	for _, l := range labels {
		if l.Key == label {
			return true
		}
		for _, k := range l.Keywords {
			if k == label {
				return true
			}
		}
	}
	return false
}
