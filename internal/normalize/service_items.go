package normalize

import (
	"math"
	"strings"

	"github.com/joseph-ayodele/invoice-ocr/internal/geometry"
	"github.com/joseph-ayodele/invoice-ocr/internal/numeric"
)

const (
	serviceRowTolerance = 24.0
	serviceHeaderGap    = 35.0
	serviceSummaryGap   = 20.0
	serviceSummaryMin   = 80.0
	serviceDefaultSpan  = 600.0
)

var (
	serviceHeaders = []string{"hrs/qty", "service", "rate/price", "adjust", "sub total"}

	// serviceLabelWords mark header-area label rows that fall inside the
	// item band.
	serviceLabelWords = []string{"invoice date", "order number", "due date", "total due"}
)

// serviceBand assigns a block to the column whose header center is within
// width of it. Bands are tried in order.
type serviceBand struct {
	key   string
	x     float64
	width float64
}

type serviceItem struct {
	description, details                            string
	quantity, unitPrice, adjustment, lineTotal      string
	hasDescription, hasQuantity, hasPrice, hasTotal bool
}

func (s serviceItem) priced() bool {
	return s.quantity != "" && s.unitPrice != "" && s.lineTotal != ""
}

func (s serviceItem) lineItem() LineItem {
	li := LineItem{}
	if s.hasDescription {
		li["description"] = s.description
	}
	if s.details != "" {
		li["details"] = s.details
	}
	if s.hasQuantity {
		li["quantity"] = nullable(s.quantity)
	}
	if s.hasPrice {
		li["unit_price"] = nullable(s.unitPrice)
	}
	if s.adjustment != "" {
		li["adjustment_percent"] = s.adjustment
	}
	if s.hasTotal {
		li["line_total"] = nullable(s.lineTotal)
	}
	return li
}

// ExtractServiceLineItems reads rows under a Hrs/Qty, Service, Rate/Price,
// Adjust, Sub Total header. Columns are banded around each header's
// center-X. A row with a description but no quantity is a detail line and
// is folded into the item above it.
func ExtractServiceLineItems(blocks []geometry.Block) []LineItem {
	headers := map[string]geometry.Block{}
	for _, b := range blocks {
		t := cleanLower(b.Text)
		if _, seen := headers[t]; !seen && containsExact(t, serviceHeaders) {
			headers[t] = b
		}
	}
	for _, h := range serviceHeaders {
		if _, ok := headers[h]; !ok {
			return nil
		}
	}

	page := headers["service"].Page
	hy := headers["service"].CenterY()
	xRate := headers["rate/price"].CenterX()
	bands := []serviceBand{
		{"quantity", headers["hrs/qty"].CenterX(), 120},
		{"description", headers["service"].CenterX(), 280},
		{"unit_price", xRate, 180},
		{"adjustment_percent", headers["adjust"].CenterX(), 170},
		{"line_total", headers["sub total"].CenterX(), 180},
	}

	summaryStart := hy + serviceDefaultSpan
	for _, b := range blocks {
		if b.Page != page || cleanLower(b.Text) != "sub total" {
			continue
		}
		if b.CenterY() > hy+serviceSummaryMin && b.CenterX() > xRate {
			summaryStart = b.CenterY()
			break
		}
	}

	rows := itemRows(blocks, page, hy+serviceHeaderGap, summaryStart-serviceSummaryGap, serviceRowTolerance)

	var kept []serviceItem
	for _, r := range rows {
		var rec serviceItem
		for _, b := range r.Blocks {
			t := clean(b.Text)
			if t == "" {
				continue
			}
			switch columnAt(bands, b.CenterX()) {
			case "quantity":
				rec.quantity, rec.hasQuantity = numeric.DecimalString(t), true
			case "description":
				rec.description = strings.TrimSpace(rec.description + " " + t)
				rec.hasDescription = true
			case "unit_price":
				rec.unitPrice, rec.hasPrice = numeric.DecimalString(t), true
			case "adjustment_percent":
				rec.adjustment = numeric.DecimalString(strings.ReplaceAll(t, "%", ""))
			case "line_total":
				rec.lineTotal, rec.hasTotal = numeric.DecimalString(t), true
			}
		}

		if rec.description != "" && !containsAny(strings.ToLower(rec.description), serviceLabelWords) {
			kept = append(kept, rec)
		} else if rec.priced() {
			kept = append(kept, rec)
		}
	}

	var merged []serviceItem
	for _, rec := range kept {
		if rec.priced() {
			merged = append(merged, rec)
			continue
		}
		if len(merged) > 0 && rec.description != "" && !rec.hasQuantity {
			last := &merged[len(merged)-1]
			if last.hasDescription {
				last.details = rec.description
			} else {
				last.description, last.hasDescription = rec.description, true
			}
			continue
		}
		merged = append(merged, rec)
	}

	out := make([]LineItem, len(merged))
	for i, it := range merged {
		out[i] = it.lineItem()
	}
	return out
}

func columnAt(bands []serviceBand, x float64) string {
	for _, b := range bands {
		if math.Abs(x-b.x) < b.width {
			return b.key
		}
	}
	return ""
}
