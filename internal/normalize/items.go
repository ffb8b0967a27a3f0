package normalize

import (
	"regexp"
	"sort"
	"strings"

	"github.com/joseph-ayodele/invoice-ocr/internal/geometry"
	"github.com/joseph-ayodele/invoice-ocr/internal/numeric"
	"github.com/joseph-ayodele/invoice-ocr/internal/reconcile"
	"github.com/joseph-ayodele/invoice-ocr/internal/table"
	"github.com/joseph-ayodele/invoice-ocr/internal/validation"
)

const (
	itemRowTolerance = 22.0
	itemHeaderGap    = 25.0
	itemSummaryGap   = 15.0
	itemDefaultSpan  = 700.0
)

var (
	reSKU          = regexp.MustCompile(`^[A-Z]{2,}-[A-Z]{2,}-\d+$`)
	productHeaders = []string{"item", "quantity", "rate", "amount"}

	// UtilitySourcePriority orders the sources trusted for a reconciled rate.
	UtilitySourcePriority = []string{"amount", "usage", "rate"}
)

type productItem struct {
	description, details, sku, category string
	quantity, unitPrice, lineTotal      string
}

func (p productItem) complete() bool {
	return p.description != "" && p.quantity != "" && p.unitPrice != "" && p.lineTotal != ""
}

func (p productItem) lineItem() LineItem {
	li := LineItem{
		"description": p.description,
		"quantity":    nullable(p.quantity),
		"unit_price":  nullable(p.unitPrice),
		"line_total":  nullable(p.lineTotal),
	}
	for k, v := range map[string]string{"details": p.details, "sku": p.sku, "category": p.category} {
		if v != "" {
			li[k] = v
		}
	}
	return li
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// ExtractProductLineItems reads item rows under an Item/Quantity/Rate/Amount
// header, stopping above the subtotal. Rows without numbers are folded into
// the previous item as its SKU and category, or as details.
func ExtractProductLineItems(blocks []geometry.Block) []LineItem {
	headers := map[string]geometry.Block{}
	for _, b := range blocks {
		t := cleanLower(b.Text)
		if containsExact(t, productHeaders) {
			headers[t] = b
		}
	}
	for _, h := range productHeaders {
		if _, ok := headers[h]; !ok {
			return nil
		}
	}

	page := headers["item"].Page
	hy := headers["item"].CenterY()
	xItem, xQty := headers["item"].CenterX(), headers["quantity"].CenterX()
	xRate, xAmount := headers["rate"].CenterX(), headers["amount"].CenterX()
	itemRight, qtyRight, rateRight := (xItem+xQty)/2, (xQty+xRate)/2, (xRate+xAmount)/2

	summaryStart := hy + itemDefaultSpan
	for _, b := range blocks {
		if b.Page != page {
			continue
		}
		if t := cleanLower(b.Text); t == "subtotal" || t == "subtotal:" {
			summaryStart = b.CenterY()
			break
		}
	}

	rows := itemRows(blocks, page, hy+itemHeaderGap, summaryStart-itemSummaryGap, itemRowTolerance)

	var items []productItem
	for _, r := range rows {
		var rec productItem
		for _, b := range r.Blocks {
			t := clean(b.Text)
			if t == "" {
				continue
			}
			switch x := b.CenterX(); {
			case x <= itemRight:
				rec.description = strings.TrimSpace(rec.description + " " + t)
			case x <= qtyRight:
				rec.quantity = numeric.DecimalString(t)
			case x <= rateRight:
				rec.unitPrice = numeric.DecimalString(t)
			default:
				rec.lineTotal = numeric.DecimalString(t)
			}
		}

		if rec.complete() {
			items = append(items, rec)
			continue
		}
		if rec.description == "" || len(items) == 0 {
			continue
		}
		last := &items[len(items)-1]
		parts := strings.Split(rec.description, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if sku := parts[len(parts)-1]; reSKU.MatchString(sku) {
			last.sku = sku
			if len(parts) > 1 {
				last.category = strings.Join(parts[:len(parts)-1], ", ")
			}
		} else {
			last.details = rec.description
		}
	}

	out := make([]LineItem, len(items))
	for i, it := range items {
		out[i] = it.lineItem()
	}
	return out
}

// itemRows clusters the blocks of page whose center-Y lies in [top, bottom]
// into rows, top to bottom. A block joins the first row within tol.
func itemRows(blocks []geometry.Block, page int, top, bottom, tol float64) []table.Row {
	var rows []*table.Row
	for _, b := range blocks {
		y := b.CenterY()
		if b.Page != page || y < top || y > bottom {
			continue
		}
		placed := false
		for _, r := range rows {
			if geometry.YClose(y, r.Y, tol) {
				r.Blocks = append(r.Blocks, b)
				placed = true
				break
			}
		}
		if !placed {
			rows = append(rows, &table.Row{Y: y, Blocks: []geometry.Block{b}})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Y < rows[j].Y })

	out := make([]table.Row, len(rows))
	for i, r := range rows {
		out[i] = *r
	}
	return out
}

// UtilityLineItems copies utility rows, replacing an inferred rate with the
// reconciled value and keeping the OCR reading beside it.
func UtilityLineItems(rows []table.Record, report validation.Report) []LineItem {
	out := make([]LineItem, 0, len(rows))
	for i, r := range rows {
		li := make(LineItem, len(r)+3)
		for k, v := range r {
			li[k] = v
		}
		inf, ok := report.Inference(i)
		if !ok {
			li["_cost_confidence"] = "ocr"
			li["_source_priority"] = []string{"ocr"}
			out = append(out, li)
			continue
		}

		cols, found := reconcile.LocateColumns(keysOf(r))
		if !found {
			cols = reconcile.UtilityColumns
		}
		li[cols.Rate] = inf.InferredCost
		li["_ocr_cost_per_kwh"] = inf.OCRCost
		li["_cost_confidence"] = "inferred"
		li["_source_priority"] = append([]string(nil), UtilitySourcePriority...)
		out = append(out, li)
	}
	return out
}

func rowItems(rows []table.Record) []LineItem {
	out := make([]LineItem, len(rows))
	for i, r := range rows {
		li := make(LineItem, len(r))
		for k, v := range r {
			li[k] = v
		}
		out[i] = li
	}
	return out
}

func keysOf(r table.Record) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
