package normalize

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/joseph-ayodele/invoice-ocr/internal/geometry"
)

var (
	reAccount       = regexp.MustCompile(`(?i)(?:acc(?:ount)?\s*#?\s*)([0-9 ]{6,})`)
	reBSB           = regexp.MustCompile(`(?i)(?:bsb\s*#?\s*)([0-9 ]{6,})`)
	rePaid          = regexp.MustCompile(`\bpaid\b`)
	rePaymentStatus = regexp.MustCompile(`\bpayment\s*status\b.*\bpaid\b`)
	reStatusPaid    = regexp.MustCompile(`\bstatus\b.*\bpaid\b`)
	reReceived      = regexp.MustCompile(`\bpayment\s*received\b`)
)

const (
	bankNameAbove = 120.0
	bankNameMaxX  = 900.0
	statusPaid    = "paid"
)

var bankLabelWords = []string{"acc #", "account #", "bsb #"}

// PaymentStatus returns "paid" when the document says so.
func PaymentStatus(blocks []geometry.Block) *string {
	for _, b := range blocks {
		t := cleanLower(b.Text)
		if t == statusPaid || rePaymentStatus.MatchString(t) || reStatusPaid.MatchString(t) || reReceived.MatchString(t) {
			return ptr(statusPaid)
		}
	}
	return nil
}

// ExtractPayments reads the payment status and bank transfer details. The
// bank name is the closest non-amount line above the account number.
func ExtractPayments(blocks []geometry.Block) Payments {
	var (
		bank    Bank
		acc     geometry.Block
		hasAcc  bool
		bsbText string
	)
	status := PaymentStatus(blocks)

	for _, b := range blocks {
		t := clean(b.Text)
		if t == "" {
			continue
		}
		if m := reAccount.FindStringSubmatch(t); m != nil {
			bank.AccountNumber = clean(m[1])
			if !hasAcc {
				acc, hasAcc = b, true
			}
			continue
		}
		if m := reBSB.FindStringSubmatch(t); m != nil {
			bank.BSB = clean(m[1])
			bsbText = t
		}
	}

	if hasAcc {
		ay := acc.CenterY()
		type cand struct {
			dy, x float64
			text  string
		}
		var cands []cand
		for _, b := range blocks {
			if b.Page != acc.Page {
				continue
			}
			t := clean(b.Text)
			y, x := b.CenterY(), b.CenterX()
			if t == "" || y < ay-bankNameAbove || y > ay || x >= bankNameMaxX {
				continue
			}
			if containsAny(strings.ToLower(t), bankLabelWords) || reMoney.MatchString(t) {
				continue
			}
			cands = append(cands, cand{math.Abs(ay - y), x, t})
		}
		sort.SliceStable(cands, func(i, j int) bool {
			if cands[i].dy != cands[j].dy {
				return cands[i].dy < cands[j].dy
			}
			return cands[i].x < cands[j].x
		})
		if len(cands) > 0 {
			bank.Name = cands[0].text
		}
	}

	if status == nil && bsbText != "" && rePaid.MatchString(strings.ToLower(bsbText)) {
		status = ptr(statusPaid)
	}

	out := Payments{Status: status}
	if bank != (Bank{}) {
		out.Bank = &bank
	}
	return out
}
