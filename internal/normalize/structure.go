package normalize

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/joseph-ayodele/invoice-ocr/internal/fields"
	"github.com/joseph-ayodele/invoice-ocr/internal/geometry"
	"github.com/joseph-ayodele/invoice-ocr/internal/numeric"
	"github.com/joseph-ayodele/invoice-ocr/internal/reconcile"
	"github.com/joseph-ayodele/invoice-ocr/internal/schema"
	"github.com/joseph-ayodele/invoice-ocr/internal/validation"
)

const (
	headerBand        = 0.18
	footerBand        = 0.82
	repeatedMinLength = 8
)

var (
	reSlashDate = regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`)
	reLongDate  = regexp.MustCompile(`^[A-Za-z]+\s+\d{1,2},\s+\d{4}$`)
	rePhoneOnly = regexp.MustCompile(`^\(\d{3}\)\s*\d{3}-\d{4}$`)
	reNumber    = regexp.MustCompile(`^\d+(\.\d+)?$`)

	addressKeys    = []string{"address", "city", "state", "postal"}
	identifierKeys = []string{"id", "account", "no", "number", "reference"}

	// extraKnownLabels are printed labels the field catalog reads under other names.
	extraKnownLabels = []string{
		"phone", "email", "website", "account no", "statement date", "due date",
		"invoice number", "invoice date", "order number", "total due",
	}
)

func pageNumbers(blocks []geometry.Block) []int {
	seen := map[int]bool{}
	var pages []int
	for _, b := range blocks {
		if !seen[b.Page] {
			seen[b.Page] = true
			pages = append(pages, b.Page)
		}
	}
	sort.Ints(pages)
	return pages
}

// DetectStructure splits each page into header and footer bands, and lists
// text repeated on more than one page next to the table and summary layout.
func DetectStructure(blocks []geometry.Block, applied schema.Applied, report validation.Report, items []LineItem) Structure {
	st := Structure{
		Headers:        []PageText{},
		Footers:        []PageText{},
		Tables:         []TableRef{{Schema: string(applied.Schema), Columns: applied.Columns}},
		Sections:       report.Sections,
		LineItems:      items,
		Summaries:      summaryStrings(report.Summary),
		MetadataBlocks: []MetadataBlock{},
		RepeatedBlocks: []RepeatedBlock{},
	}
	if st.LineItems == nil {
		st.LineItems = rowItems(applied.Rows)
	}

	type repeat struct {
		text  string
		pages map[int]bool
	}
	var (
		order    []string
		repeated = map[string]*repeat{}
		byPage   = geometry.ByPage(blocks)
	)
	for _, page := range pageNumbers(blocks) {
		pblocks := byPage[page]
		ymax := 0.0
		for _, b := range pblocks {
			ymax = max(ymax, geometry.MaxY(b.BBox))
		}
		headerCut, footerCut := ymax*headerBand, ymax*footerBand

		for _, b := range pblocks {
			text := clean(b.Text)
			if text == "" {
				continue
			}
			cy := b.CenterY()
			if cy <= headerCut {
				st.Headers = append(st.Headers, PageText{Page: page, Text: text})
			}
			if cy >= footerCut {
				st.Footers = append(st.Footers, PageText{Page: page, Text: text})
			}
			key := strings.ToLower(text)
			r, ok := repeated[key]
			if !ok {
				r = &repeat{text: text, pages: map[int]bool{}}
				repeated[key] = r
				order = append(order, key)
			}
			r.pages[page] = true
		}
	}
	for _, key := range order {
		r := repeated[key]
		if len(r.pages) < 2 || len(r.text) <= repeatedMinLength {
			continue
		}
		pages := make([]int, 0, len(r.pages))
		for p := range r.pages {
			pages = append(pages, p)
		}
		sort.Ints(pages)
		st.RepeatedBlocks = append(st.RepeatedBlocks, RepeatedBlock{Text: r.text, Pages: pages})
	}

	for _, k := range sortedFieldKeys(report.Fields) {
		st.MetadataBlocks = append(st.MetadataBlocks, MetadataBlock{Label: k, Value: report.Fields[k]})
	}
	return st
}

func summaryStrings(s reconcile.Summary) map[string]string {
	out := make(map[string]string, len(s))
	for k, v := range s {
		out[k] = numeric.Fixed(v, 2, 8)
	}
	return out
}

func sortedFieldKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// InferType guesses the kind of value from its text and, failing that, its key.
func InferType(key, value string) string {
	switch {
	case reSlashDate.MatchString(value) || reLongDate.MatchString(value):
		return "date"
	case strings.Contains(value, "@"):
		return "email"
	case rePhoneOnly.MatchString(value):
		return "phone"
	case reNumber.MatchString(numeric.Clean(value)):
		return "number"
	case containsAny(key, addressKeys):
		return "address"
	case containsAny(key, identifierKeys):
		return "identifier"
	default:
		return "text"
	}
}

// FieldsWithContext flattens every extracted value with its section path
// and confidence.
func FieldsWithContext(report validation.Report) []FieldContext {
	fc, _ := report.FieldConfidence.(map[string]any)
	out := []FieldContext{}
	add := func(section, key, value string) {
		if value == "" {
			return
		}
		path := section + "." + key
		out = append(out, FieldContext{
			Key:           path,
			Value:         value,
			InferredType:  InferType(strings.ToLower(path), value),
			SourceContext: section,
			Confidence:    lookupConfidence(fc, section, key),
		})
	}

	for _, k := range sortedFieldKeys(report.Fields) {
		add("fields", k, report.Fields[k])
	}
	summary := summaryStrings(report.Summary)
	for _, k := range sortedFieldKeys(summary) {
		add("summary", k, summary[k])
	}
	if v := report.Vendor; v != nil {
		add("vendor", "name", v.Name)
		add("vendor", "address", v.Address)
		add("vendor", "phone", v.Phone)
		add("vendor", "email", v.Email)
		add("vendor", "website", v.Website)
	}
	if a := report.CustomerAddress; a != nil {
		add("customer_address_full", "street", a.Street)
		add("customer_address_full", "city", a.City)
		add("customer_address_full", "state", a.State)
		add("customer_address_full", "postal_code", a.PostalCode)
		add("customer_address_full", "full", a.Full)
	}
	for i, r := range report.Reminders {
		add("reminders", fmt.Sprint(i), r)
	}
	for i, n := range report.Notes {
		add("notes", fmt.Sprint(i), n)
	}
	return out
}

// lookupConfidence reads fc[section][key], indexing lists by position.
func lookupConfidence(fc map[string]any, section, key string) *float64 {
	var v any
	switch sec := fc[section].(type) {
	case map[string]any:
		v = sec[key]
	case []any:
		var i int
		if _, err := fmt.Sscan(key, &i); err == nil && i >= 0 && i < len(sec) {
			v = sec[i]
		}
	}
	if f, ok := v.(float64); ok {
		return &f
	}
	return nil
}

// DiscoverUnknownFields collects "label: value" blocks whose label is not a
// known field. The first occurrence of each slug wins.
func DiscoverUnknownFields(blocks []geometry.Block, known map[string]string, labels []fields.Label) map[string]UnknownField {
	knownSet := map[string]bool{}
	for k := range known {
		knownSet[k] = true
	}
	for _, l := range extraKnownLabels {
		knownSet[l] = true
	}

	out := map[string]UnknownField{}
	for _, b := range blocks {
		label, value, ok := strings.Cut(clean(b.Text), ":")
		if !ok {
			continue
		}
		label, value = cleanLower(label), clean(value)
		if label == "" || value == "" || knownSet[label] || fields.KnownLabel(label, labels) {
			continue
		}
		key := Slug(label)
		if _, dup := out[key]; dup {
			continue
		}
		out[key] = UnknownField{
			RawLabel:        label,
			Value:           value,
			NormalizedKey:   key,
			Confidence:      b.Confidence,
			SchemaDiscovery: true,
		}
	}
	return out
}

func LogicalBlocks(blocks []geometry.Block) []LogicalBlock {
	out := []LogicalBlock{}
	for _, b := range blocks {
		if t := clean(b.Text); t != "" {
			out = append(out, LogicalBlock{Page: b.Page, Text: t, Confidence: b.Confidence})
		}
	}
	return out
}
