package normalize

import (
	"regexp"
	"sort"
	"strings"

	"github.com/joseph-ayodele/invoice-ocr/internal/geometry"
)

var (
	reCityStatePostal = regexp.MustCompile(`^\s*(.*?)[,\s]+([A-Za-z]{2,})\s+(\d{4,10})\s*$`)
	reLeadingDigit    = regexp.MustCompile(`^\d`)
	reLetter          = regexp.MustCompile(`[A-Za-z]`)
	reTrailingE       = regexp.MustCompile(`(?i),\s*e$`)
)

const (
	partyColumnMaxX = 1200.0
	sellerSpan      = 500.0
	buyerSpan       = 380.0
	billToSpan      = 420.0
	headerGap       = 20.0
)

var (
	serviceTableHeaders = []string{"hrs/qty", "service"}
	buyerSkip           = []string{"hrs/qty", "service", "rate/price", "sub total", "invoice date", "due date"}
	sellerSkip          = []string{"invoice", "date:", "#", "bill to:", "ship to:", "ship mode:"}
	billToSkip          = []string{"ship to:", "ship mode:", "second class"}
)

// Party is a name with its contact lines split out.
type Party struct {
	Name    string
	Address PartyAddress
	Email   string
	Phone   string
}

// Parties holds the seller and buyer read from the From/To blocks.
type Parties struct {
	Seller, Buyer Party
	Found         bool
}

func findLabel(blocks []geometry.Block, text string) (geometry.Block, bool) {
	for _, b := range blocks {
		if cleanLower(b.Text) == text {
			return b, true
		}
	}
	return geometry.Block{}, false
}

// ExtractParties reads the left column under "From:", "To:" or "Bill To:".
// Without a From block the seller is the topmost title-like line above Bill To.
func ExtractParties(blocks []geometry.Block) Parties {
	from, hasFrom := findLabel(blocks, "from:")
	to, hasTo := findLabel(blocks, "to:")
	billTo, hasBillTo := findLabel(blocks, "bill to:")
	if !hasFrom && !hasTo && !hasBillTo {
		return Parties{}
	}

	page := billTo.Page
	switch {
	case hasFrom:
		page = from.Page
	case hasTo:
		page = to.Page
	}

	var left []geometry.Block
	for _, b := range blocks {
		if b.Page == page && b.CenterX() < partyColumnMaxX {
			left = append(left, b)
		}
	}
	sort.SliceStable(left, func(i, j int) bool {
		if left[i].CenterY() != left[j].CenterY() {
			return left[i].CenterY() < left[j].CenterY()
		}
		return left[i].CenterX() < left[j].CenterX()
	})

	var sellerLines, buyerLines []string
	if hasFrom {
		top := from.CenterY()
		end := top + sellerSpan
		if hasTo {
			end = to.CenterY()
		}
		sellerLines = linesBetween(left, top, end, nil)
	}

	if hasTo {
		stop := to.CenterY() + buyerSpan
		for _, b := range left {
			if containsExact(cleanLower(b.Text), serviceTableHeaders) {
				stop = min(stop, b.CenterY()-headerGap)
				break
			}
		}
		buyerLines = linesBetween(left, to.CenterY(), stop, buyerSkip)
	}

	if len(sellerLines) == 0 && hasBillTo {
		by := billTo.CenterY()
		for _, b := range left {
			t := clean(b.Text)
			if t == "" || b.CenterY() >= by || containsAny(strings.ToLower(t), sellerSkip) {
				continue
			}
			sellerLines = []string{t}
			break
		}

		stop := by + billToSpan
		if item, ok := findLabel(blocks, "item"); ok {
			stop = item.CenterY() - headerGap
		}
		buyerLines = linesBetween(left, by, stop, billToSkip)
	}

	return Parties{Seller: parseParty(sellerLines), Buyer: parseParty(buyerLines), Found: true}
}

// linesBetween returns the text of blocks strictly between top and bottom.
func linesBetween(blocks []geometry.Block, top, bottom float64, skip []string) []string {
	var out []string
	for _, b := range blocks {
		y := b.CenterY()
		if y <= top || y >= bottom {
			continue
		}
		t := clean(b.Text)
		if t == "" || containsAny(strings.ToLower(t), skip) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func containsExact(s string, set []string) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}

// parseParty picks the first line that reads like a name, then splits the
// remaining lines into email, phone and address.
func parseParty(lines []string) Party {
	if len(lines) == 0 {
		return Party{}
	}
	nameIdx := 0
	for i, l := range lines {
		if !reLeadingDigit.MatchString(l) && reLetter.MatchString(l) {
			nameIdx = i
			break
		}
	}

	p := Party{Name: lines[nameIdx]}
	var addr []string
	for i, l := range lines {
		if i == nameIdx {
			continue
		}
		if e := sanitizeEmail(l); e != "" {
			p.Email = e
			continue
		}
		if ph := rePhone.FindString(l); ph != "" {
			p.Phone = ph
			continue
		}
		addr = append(addr, cleanAddressLine(l))
	}

	if len(addr) > 0 {
		p.Address.Line1 = ptr(addr[0])
	}
	if len(addr) > 1 {
		p.Address.Line2 = ptr(addr[1])
	}
	switch {
	case len(addr) > 2:
		if !splitCityStatePostal(addr[2], &p.Address) {
			p.Address.Line3 = ptr(addr[2])
		}
	case len(addr) > 1:
		splitCityStatePostal(addr[1], &p.Address)
	}
	return p
}

func splitCityStatePostal(line string, a *PartyAddress) bool {
	m := reCityStatePostal.FindStringSubmatch(line)
	if m == nil {
		return false
	}
	a.City = ptr(strings.TrimSpace(m[1]))
	a.State = ptr(strings.TrimSpace(m[2]))
	a.PostalCode = ptr(strings.TrimSpace(m[3]))
	return true
}

func cleanAddressLine(s string) string {
	t := reTrailingE.ReplaceAllString(clean(s), "")
	return strings.ReplaceAll(t, "United.", "United")
}
