package validation

import (
	"regexp"
	"sort"
	"strings"

	"github.com/joseph-ayodele/invoice-ocr/internal/geometry"
)

var (
	rePhone           = regexp.MustCompile(`\(\d{3}\)\s*\d{3}-\d{4}`)
	reEmail           = regexp.MustCompile(`[A-Za-z0-9._%+-]+\s*@\s*[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	reURL             = regexp.MustCompile(`(?:https?://)?(?:www\.)?[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	reCityStatePostal = regexp.MustCompile(`^\s*(.*?),\s*([A-Za-z][A-Za-z\s]+),\s*(\d{4,10})\s*$`)
	reReminder        = regexp.MustCompile(`^\s*\d+\.\s*(.+)`)
	reSpace           = regexp.MustCompile(`\s+`)
)

const (
	leftColumnMaxX   = 1200.0
	headerBandMaxY   = 360.0
	fromBlockSpan    = 500.0
	vendorDriftX     = 220.0
	addressLineBelow = 100.0
	addressDriftX    = 300.0
)

var (
	reminderStops = []string{"for any questions", "if you have any questions"}
	noteMarkers   = []string{
		"for any questions",
		"if you have any questions",
		"present your statement",
		"please check your online accounts",
	}
)

// Vendor is the issuing party as printed on the document.
type Vendor struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Website string `json:"website,omitempty"`
}

func (v Vendor) empty() bool { return v == Vendor{} }

// Address is a customer address split into its parts when the second line
// reads "city, state, postal".
type Address struct {
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Full       string `json:"full,omitempty"`
}

// Sections flags well-known bill sections found anywhere in the text.
type Sections struct {
	MeterInformation bool `json:"meter_information"`
	BillSummary      bool `json:"bill_summary"`
	Reminders        bool `json:"reminders"`
}

// Enrichment is the layout-derived context around the extracted fields.
type Enrichment struct {
	Vendor          *Vendor
	CustomerAddress *Address
	Sections        Sections
	Reminders       []string
	Notes           []string
}

// Enrich derives vendor, customer address, section flags, reminders and notes.
func Enrich(blocks []geometry.Block, fields map[string]string) Enrichment {
	var e Enrichment
	if v := ExtractVendor(blocks); !v.empty() {
		e.Vendor = &v
	}
	if a := ExtractCustomerAddress(blocks, fields["address"]); a != (Address{}) {
		e.CustomerAddress = &a
	}
	e.Sections = ExtractSections(blocks)
	e.Reminders, e.Notes = ExtractRemindersAndNotes(blocks)
	return e
}

// sortedPage returns the non-blank blocks of one page in reading order.
func sortedPage(blocks []geometry.Block, page int) []geometry.Block {
	var out []geometry.Block
	for _, b := range blocks {
		if b.Page == page && strings.TrimSpace(b.Text) != "" {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CenterY() != out[j].CenterY() {
			return out[i].CenterY() < out[j].CenterY()
		}
		return out[i].CenterX() < out[j].CenterX()
	})
	return out
}

func firstMatch(blocks []geometry.Block, re *regexp.Regexp) string {
	for _, b := range blocks {
		if m := re.FindString(b.Text); m != "" {
			return m
		}
	}
	return ""
}

func findExact(blocks []geometry.Block, text string) (geometry.Block, bool) {
	for _, b := range blocks {
		if strings.EqualFold(strings.TrimSpace(b.Text), text) {
			return b, true
		}
	}
	return geometry.Block{}, false
}

// ExtractVendor reads the "From:" block when the page carries one, and
// otherwise the company line in the header band with the lines under it.
func ExtractVendor(blocks []geometry.Block) Vendor {
	page1 := sortedPage(blocks, 1)
	if v, ok := vendorFromLabel(page1); ok {
		return v
	}

	var (
		v       Vendor
		nameBlk geometry.Block
		top     []geometry.Block
	)
	for _, b := range page1 {
		if b.CenterY() < headerBandMaxY {
			top = append(top, b)
		}
	}
	for _, b := range top {
		if strings.Contains(strings.ToLower(b.Text), "company") {
			v.Name = strings.TrimSpace(b.Text)
			nameBlk = b
			break
		}
	}

	if v.Name != "" {
		var lines []string
		nx, ny := nameBlk.CenterX(), nameBlk.CenterY()
		for _, b := range top {
			text := strings.TrimSpace(b.Text)
			if b == nameBlk || text == "" {
				continue
			}
			if b.CenterY() <= ny || abs(b.CenterX()-nx) >= vendorDriftX {
				continue
			}
			if rePhone.MatchString(text) || reEmail.MatchString(text) || strings.Contains(strings.ToLower(text), "website") {
				continue
			}
			lines = append(lines, text)
		}
		if len(lines) > 2 {
			lines = lines[:2]
		}
		v.Address = strings.Join(lines, ", ")
	}

	v.Phone = firstMatch(blocks, rePhone)
	v.Email = firstMatch(blocks, reEmail)
	v.Website = website(blocks)
	return v
}

func vendorFromLabel(page1 []geometry.Block) (Vendor, bool) {
	from, ok := findExact(page1, "from:")
	if !ok {
		return Vendor{}, false
	}
	fy := from.CenterY()
	stopY := fy + fromBlockSpan
	if to, ok := findExact(page1, "to:"); ok {
		stopY = to.CenterY()
	}

	var lines []string
	for _, b := range page1 {
		if b.CenterX() < leftColumnMaxX && b.CenterY() > fy && b.CenterY() < stopY {
			lines = append(lines, strings.TrimSpace(b.Text))
		}
	}
	if len(lines) == 0 {
		return Vendor{}, false
	}

	v := Vendor{Name: lines[0]}
	var addr []string
	for _, ln := range lines[1:] {
		if m := reEmail.FindString(ln); m != "" {
			v.Email = strings.ToLower(reSpace.ReplaceAllString(m, ""))
			continue
		}
		if m := rePhone.FindString(ln); m != "" {
			v.Phone = m
			continue
		}
		low := strings.ToLower(ln)
		if strings.Contains(low, "invoice date") || strings.Contains(low, "order number") {
			continue
		}
		addr = append(addr, ln)
	}
	if len(addr) > 3 {
		addr = addr[:3]
	}
	v.Address = strings.Join(addr, ", ")
	return v, true
}

func website(blocks []geometry.Block) string {
	for _, b := range blocks {
		if strings.Contains(strings.ToLower(b.Text), "website") {
			if m := reURL.FindString(b.Text); m != "" {
				return m
			}
		}
	}
	for _, b := range blocks {
		if strings.Contains(b.Text, "@") {
			continue
		}
		if m := reURL.FindString(b.Text); m != "" {
			return m
		}
	}
	return ""
}

// ExtractCustomerAddress completes the extracted street line with the line
// printed under it.
func ExtractCustomerAddress(blocks []geometry.Block, street string) Address {
	if street == "" {
		return Address{}
	}
	a := Address{Street: street, Full: street}

	page1 := sortedPage(blocks, 1)
	sb, ok := findExact(page1, strings.TrimSpace(street))
	if !ok {
		return a
	}
	sx, sy := sb.CenterX(), sb.CenterY()
	line2 := ""
	for _, c := range page1 {
		dy := c.CenterY() - sy
		if dy <= 0 || dy > addressLineBelow || abs(c.CenterX()-sx) > addressDriftX {
			continue
		}
		low := strings.ToLower(c.Text)
		if strings.Contains(low, "period statement") || strings.Contains(low, "date") {
			continue
		}
		line2 = strings.TrimSpace(c.Text)
		break
	}
	if line2 == "" {
		return a
	}

	a.Full = street + ", " + line2
	if m := reCityStatePostal.FindStringSubmatch(line2); m != nil {
		a.City = strings.TrimSpace(m[1])
		a.State = strings.TrimSpace(m[2])
		a.PostalCode = strings.TrimSpace(m[3])
	}
	return a
}

func ExtractSections(blocks []geometry.Block) Sections {
	texts := make([]string, len(blocks))
	for i, b := range blocks {
		texts[i] = strings.ToLower(b.Text)
	}
	low := strings.Join(texts, " ")
	return Sections{
		MeterInformation: strings.Contains(low, "meter information"),
		BillSummary:      strings.Contains(low, "bill summary"),
		Reminders:        strings.Contains(low, "reminders"),
	}
}

// ExtractRemindersAndNotes reads numbered reminders, joined with their
// continuation lines, and known note sentences from the pages after the first.
func ExtractRemindersAndNotes(blocks []geometry.Block) (reminders, notes []string) {
	maxPage := 0
	for _, b := range blocks {
		if b.Page > maxPage {
			maxPage = b.Page
		}
	}

	for page := 2; page <= maxPage; page++ {
		lines := sortedPage(blocks, page)
		for i := 0; i < len(lines); {
			text := strings.TrimSpace(lines[i].Text)
			if m := reReminder.FindStringSubmatch(text); m != nil {
				parts := []string{strings.TrimSpace(m[1])}
				j := i + 1
				for ; j < len(lines); j++ {
					next := strings.TrimSpace(lines[j].Text)
					if reReminder.MatchString(next) || containsAny(strings.ToLower(next), reminderStops) {
						break
					}
					parts = append(parts, next)
				}
				reminders = append(reminders, strings.Join(parts, " "))
				i = j
				continue
			}
			if containsAny(strings.ToLower(text), noteMarkers) {
				notes = append(notes, text)
			}
			i++
		}
	}
	return reminders, notes
}

func containsAny(s string, subs []string) bool {
	for _, k := range subs {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
