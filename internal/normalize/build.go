package normalize

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/fields"
	"github.com/joseph-ayodele/invoice-ocr/internal/geometry"
	"github.com/joseph-ayodele/invoice-ocr/internal/numeric"
	"github.com/joseph-ayodele/invoice-ocr/internal/preprocess"
	"github.com/joseph-ayodele/invoice-ocr/internal/reconcile"
	"github.com/joseph-ayodele/invoice-ocr/internal/risk"
	"github.com/joseph-ayodele/invoice-ocr/internal/schema"
	"github.com/joseph-ayodele/invoice-ocr/internal/table"
	"github.com/joseph-ayodele/invoice-ocr/internal/validation"
)

const (
	VariantGST     = "gst"
	VariantTelecom = "telecom"
	VariantUtility = "utility"
	VariantGeneric = "generic"

	labelRowTolerance = 20.0
)

// Input is everything the earlier stages produced for one document.
type Input struct {
	DocumentID     string
	Blocks         []geometry.Block
	PageCount      int
	Table          schema.Applied
	Report         validation.Report
	Risk           risk.Result
	OCREngine      string
	Preprocess     preprocess.Report
	ProcessingTime time.Duration

	// Labels is the field catalog used for the report; nil means the default.
	Labels []fields.Label
}

// DetectVariant picks the document family from its wording.
func DetectVariant(schemaName constants.SchemaName, blocks []geometry.Block) string {
	raw := joinedText(blocks)
	low := strings.ToLower(raw)
	switch {
	case strings.Contains(low, "gst") || reGSTIN.MatchString(raw):
		return VariantGST
	case containsAny(low, []string{"telecom", "phone bill", "mobile"}):
		return VariantTelecom
	case schemaName == constants.UtilityBill || strings.Contains(low, "meter") || strings.Contains(low, "kwh"):
		return VariantUtility
	default:
		return VariantGeneric
	}
}

// Build assembles the universal document.
func Build(in Input) Document {
	labels := in.Labels
	if labels == nil {
		labels = fields.DefaultLabels
	}
	blocks := in.Blocks
	if in.Table.Columns == nil {
		in.Table.Columns = []string{}
	}
	if in.Table.Rows == nil {
		in.Table.Rows = []table.Record{}
	}

	norm := buildNormalized(in.Table, in.Report, blocks)
	variant := DetectVariant(in.Table.Schema, blocks)
	vd := VariantData{Variant: variant}
	f := in.Report.Fields
	switch variant {
	case VariantUtility:
		norm.Period = Period{PeriodFrom: strPtr(f["period_from"]), PeriodUntil: strPtr(f["period_until"])}
		vd.Utility = &UtilityVariant{Meter: norm.Period}
	case VariantTelecom:
		norm.Period = Period{
			AccountNo:   strPtr(f["account_no"]),
			PeriodFrom:  strPtr(f["period_from"]),
			PeriodUntil: strPtr(f["period_until"]),
		}
		vd.Telecom = &TelecomVariant{ServiceAccount: norm.Period}
	case VariantGST:
		if m := reGSTIN.FindString(joinedText(blocks)); m != "" {
			norm.Seller.TaxID = ptr(m)
		}
		vd.GST = &GSTVariant{TaxID: norm.Seller.TaxID}
	}

	unknownFields := DiscoverUnknownFields(blocks, f, labels)
	vd.SchemaDiscovery = len(unknownFields) > 0

	if in.Risk.RiskFlags == nil {
		in.Risk = risk.Assess(in.Report, blocks)
	}

	return Document{
		Document: Classify(in.Table.Schema, blocks, in.PageCount),
		ExtractedContent: ExtractedContent{
			Structure:     DetectStructure(blocks, in.Table, in.Report, norm.LineItems),
			Fields:        FieldsWithContext(in.Report),
			LogicalBlocks: LogicalBlocks(blocks),
		},
		Tables:        []schema.Applied{in.Table},
		Normalized:    norm,
		VariantData:   vd,
		UnknownFields: unknownFields,
		Validation:    BuildValidation(in.Report),
		Confidence:    BuildConfidence(in.Report, blocks),
		Risk:          in.Risk,
		Meta: Meta{
			EngineVersion: constants.EngineVersion,
			SchemaVersion: constants.SchemaVersion,
			OCREngine:     in.OCREngine,
			Preprocess: PreprocessMeta{
				Version: constants.PreprocessVersion,
				Deskew:  in.Preprocess,
			},
			ProcessingTimeMS: in.ProcessingTime.Milliseconds(),
			DocumentID:       in.DocumentID,
		},
	}
}

func summaryValue(s reconcile.Summary, keys ...string) *string {
	for _, k := range keys {
		if d, ok := s[k]; ok {
			return ptr(money(d))
		}
	}
	return nil
}

func money(d decimal.Decimal) string { return numeric.Fixed(d, 2, 8) }

func buildNormalized(t schema.Applied, rep validation.Report, blocks []geometry.Block) Normalized {
	f, summary := rep.Fields, rep.Summary
	isUtility := t.Schema == constants.UtilityBill

	var parties Parties
	if strings.Contains(string(t.Schema), "invoice") {
		parties = ExtractParties(blocks)
	}

	items := rowItems(t.Rows)
	if t.Schema == constants.ProductInvoice || t.Schema == constants.ServiceInvoice {
		extracted := ExtractProductLineItems(blocks)
		if len(extracted) == 0 {
			extracted = ExtractServiceLineItems(blocks)
		}
		if len(extracted) > 0 {
			items = extracted
		}
	}

	n := Normalized{
		DocumentTitle: documentTitle(blocks),
		OrderNumber:   strPtr(firstNonEmpty(f["order_number"], valueRightOf(blocks, []string{"order number"}, labelRowTolerance))),
		Currency:      DetectCurrency(blocks),
		LabelMap:      labelMap(blocks),
		DueDate:       strPtr(f["due_date"]),
		Notes:         nonNil(rep.Notes),
		Reminders:     nonNil(rep.Reminders),
		Payments:      ExtractPayments(blocks),
	}
	n.PaymentTermsDays = PaymentTermsDays(blocks)

	issue := firstNonEmpty(f["invoice_date"], f["statement_date"], valueRightOf(blocks, []string{"invoice date"}, labelRowTolerance))
	if issue == "" {
		if d := valueRightOf(blocks, []string{"date:", "date"}, labelRowTolerance); d != "" {
			issue = NormalizeDate(d)
		}
	}
	n.IssueDate = strPtr(issue)

	if isUtility {
		n.DocumentID = strPtr(f["invoice_number"])
		n.AccountNo = strPtr(f["account_no"])
		n.LineItemSourcePriority = append([]string(nil), UtilitySourcePriority...)
		items = UtilityLineItems(t.Rows, rep)
	} else {
		n.DocumentID = strPtr(firstNonEmpty(
			f["invoice_number"],
			f["account_no"],
			valueRightOf(blocks, []string{"invoice number", "invoice no"}, labelRowTolerance),
			headerInvoiceNumber(blocks),
		))
	}

	n.Totals = Totals{
		Subtotal:        summaryValue(summary, reconcile.KeySubtotal, reconcile.KeyCurrentCharges),
		Shipping:        decimalString(valueRightOf(blocks, []string{"shipping:", "shipping"}, labelRowTolerance)),
		Tax:             summaryValue(summary, reconcile.KeyTax),
		Total:           summaryValue(summary, reconcile.KeyTotal),
		PreviousCharges: summaryValue(summary, reconcile.KeyPreviousCharges),
		CurrentCharges:  summaryValue(summary, reconcile.KeyCurrentCharges),
	}
	if n.Totals.Subtotal == nil {
		n.Totals.Subtotal = decimalString(valueRightOf(blocks, []string{"sub total"}, labelRowTolerance))
	}
	if n.Totals.Total == nil {
		n.Totals.Total = decimalString(f["total_due"])
	}
	n.Taxes = Taxes{Tax: n.Totals.Tax}

	if t.Schema == constants.ProductInvoice && len(items) == 1 && items[0]["line_total"] == nil && n.Totals.Subtotal != nil {
		items[0]["line_total"] = *n.Totals.Subtotal
	}
	n.LineItems = items

	n.Seller = buildSeller(parties.Seller, rep.Vendor, blocks)
	n.Buyer = buildBuyer(parties.Buyer, f["account_name"], rep.CustomerAddress)
	return n
}

func buildSeller(p Party, v *validation.Vendor, blocks []geometry.Block) Seller {
	var vendor validation.Vendor
	if v != nil {
		vendor = *v
	}
	s := Seller{
		Name:    strPtr(firstNonEmpty(p.Name, vendor.Name)),
		Phone:   strPtr(firstNonEmpty(p.Phone, vendor.Phone)),
		Email:   strPtr(firstNonEmpty(p.Email, vendor.Email)),
		Website: strPtr(vendor.Website),
	}
	switch {
	case !p.Address.empty():
		s.Address = ptr(p.Address)
	case vendor.Address != "":
		s.Address = &PartyAddress{Full: ptr(vendor.Address)}
	}
	if s.Email != nil {
		s.EmailNormalized = ptr(emailNormalized(*s.Email, blocks))
	}
	return s
}

func buildBuyer(p Party, accountName string, addr *validation.Address) Buyer {
	b := Buyer{
		Name:  strPtr(firstNonEmpty(p.Name, accountName)),
		Email: strPtr(p.Email),
		Phone: strPtr(p.Phone),
	}
	switch {
	case !p.Address.empty():
		b.Address = ptr(p.Address)
	case addr != nil:
		b.Address = &PartyAddress{
			Line1:      strPtr(addr.Street),
			City:       strPtr(addr.City),
			State:      strPtr(addr.State),
			PostalCode: strPtr(addr.PostalCode),
			Full:       strPtr(addr.Full),
		}
	}
	return b
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
