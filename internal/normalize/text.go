package normalize

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/joseph-ayodele/invoice-ocr/internal/geometry"
	"github.com/joseph-ayodele/invoice-ocr/internal/numeric"
)

var (
	reSpace        = regexp.MustCompile(`\s+`)
	reSlug         = regexp.MustCompile(`[^a-z0-9]+`)
	reEmail        = regexp.MustCompile(`[A-Za-z0-9._%+-]+\s*@\s*[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	rePhone        = regexp.MustCompile(`\(\d{3}\)\s*\d{3}-\d{4}`)
	reMoney        = regexp.MustCompile(`\$?\s*\d+(?:,\d{3})*(?:\.\d+)?`)
	rePaymentTerms = regexp.MustCompile(`due\s+within\s+(\d+)\s+days`)
	reHashNumber   = regexp.MustCompile(`^#\s*([A-Za-z0-9-]+)$`)
	reGSTIN        = regexp.MustCompile(`\b[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][A-Z0-9]Z[A-Z0-9]\b`)
)

var documentTitles = []string{"invoice", "utility bill", "statement", "receipt"}

func clean(s string) string {
	return strings.TrimSpace(reSpace.ReplaceAllString(s, " "))
}

func cleanLower(s string) string { return strings.ToLower(clean(s)) }

func ptr[T any](v T) *T { return &v }

// strPtr returns nil for blank strings.
func strPtr(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func joinedText(blocks []geometry.Block) string {
	parts := make([]string, len(blocks))
	for i, b := range blocks {
		parts[i] = b.Text
	}
	return strings.Join(parts, " ")
}

// Slug folds accents away and joins the alphanumeric runs of s with "_".
func Slug(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	out := strings.Trim(reSlug.ReplaceAllString(strings.ToLower(strings.TrimSpace(folded)), "_"), "_")
	if out == "" {
		return "unknown_field"
	}
	return out
}

// decimalString formats a numeric cell or label value as a fixed-point
// string, nil when it is not a plain number.
func decimalString(text string) *string {
	d, ok := numeric.ToDecimal(text)
	if !ok {
		return nil
	}
	return ptr(numeric.Fixed(d, 2, 8))
}

// DetectCurrency returns the ISO code when exactly one of $, € or £ appears.
func DetectCurrency(blocks []geometry.Block) *string {
	text := joinedText(blocks)
	found := map[string]bool{
		"USD": strings.Contains(text, "$"),
		"EUR": strings.Contains(text, "€"),
		"GBP": strings.Contains(text, "£"),
	}
	code, n := "", 0
	for c, ok := range found {
		if ok {
			code = c
			n++
		}
	}
	if n != 1 {
		return nil
	}
	return &code
}

// PaymentTermsDays reads "due within N days".
func PaymentTermsDays(blocks []geometry.Block) *int {
	m := rePaymentTerms.FindStringSubmatch(cleanLower(joinedText(blocks)))
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &n
}

func documentTitle(blocks []geometry.Block) *string {
	for _, b := range blocks {
		t := clean(b.Text)
		for _, title := range documentTitles {
			if strings.EqualFold(t, title) {
				return &t
			}
		}
	}
	return nil
}

func labelMap(blocks []geometry.Block) map[string]string {
	seen := map[string]bool{}
	for _, b := range blocks {
		seen[cleanLower(b.Text)] = true
	}
	out := map[string]string{}
	if seen["from:"] {
		out["seller"] = "From"
	}
	if seen["to:"] {
		out["buyer"] = "To"
	} else if seen["bill to:"] {
		out["buyer"] = "Bill To"
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

var dateLayouts = []string{"Jan 2 2006", "January 2 2006", "1/2/2006"}

// NormalizeDate rewrites recognizable dates as "January 2, 2006" and returns
// anything else unchanged.
func NormalizeDate(text string) string {
	t := strings.ReplaceAll(clean(text), ",", "")
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, t); err == nil {
			return d.Format("January 2, 2006")
		}
	}
	return text
}

// parseDate accepts the two layouts printed on bills.
func parseDate(text string) (time.Time, bool) {
	for _, layout := range []string{"January 2, 2006", "1/2/2006"} {
		if d, err := time.Parse(layout, strings.TrimSpace(text)); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

func headerInvoiceNumber(blocks []geometry.Block) string {
	for _, b := range blocks {
		if m := reHashNumber.FindStringSubmatch(clean(b.Text)); m != nil {
			return m[1]
		}
	}
	return ""
}

// valueRightOf returns the nearest block to the right of the first label
// containing any keyword, on the same row and page.
func valueRightOf(blocks []geometry.Block, keywords []string, tol float64) string {
	for i, label := range blocks {
		low := cleanLower(label.Text)
		if !containsAny(low, keywords) {
			continue
		}
		ly, lx := label.CenterY(), label.CenterX()

		type cand struct {
			dx   float64
			text string
		}
		var cands []cand
		for j, b := range blocks {
			if j == i || b.Page != label.Page {
				continue
			}
			if !geometry.YClose(b.CenterY(), ly, tol) || b.CenterX() <= lx {
				continue
			}
			if t := clean(b.Text); t != "" {
				cands = append(cands, cand{b.CenterX() - lx, t})
			}
		}
		if len(cands) > 0 {
			sort.SliceStable(cands, func(a, b int) bool { return cands[a].dx < cands[b].dx })
			return cands[0].text
		}
	}
	return ""
}

func sanitizeEmail(text string) string {
	m := reEmail.FindString(text)
	if m == "" {
		return ""
	}
	return strings.ToLower(reSpace.ReplaceAllString(m, ""))
}

// emailNormalized reports whether the compact email only appears on the page
// with spaces around "@", so the output value was repaired.
func emailNormalized(email string, blocks []geometry.Block) bool {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" {
		return false
	}
	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(local) + `\s*@\s*` + regexp.QuoteMeta(domain) + `\b`)
	if err != nil {
		return false
	}
	for _, b := range blocks {
		t := clean(b.Text)
		if t != "" && re.MatchString(t) && !strings.Contains(t, email) {
			return true
		}
	}
	return false
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
