// Package normalize turns a validated table and its OCR blocks into the
// universal document: classification, normalized invoice fields, structure,
// validation outcome, confidence and risk.
package normalize

import (
	"github.com/joseph-ayodele/invoice-ocr/internal/preprocess"
	"github.com/joseph-ayodele/invoice-ocr/internal/risk"
	"github.com/joseph-ayodele/invoice-ocr/internal/schema"
	"github.com/joseph-ayodele/invoice-ocr/internal/validation"
)

// Document is the final output of one processed file.
type Document struct {
	Document         Info                    `json:"document"`
	ExtractedContent ExtractedContent        `json:"extracted_content"`
	Tables           []schema.Applied        `json:"tables"`
	Normalized       Normalized              `json:"normalized"`
	VariantData      VariantData             `json:"variant_data"`
	UnknownFields    map[string]UnknownField `json:"unknown_fields"`
	Validation       Validation              `json:"validation"`
	Confidence       Confidence              `json:"confidence"`
	Risk             risk.Result             `json:"risk"`
	Meta             Meta                    `json:"meta"`
}

type Language struct {
	Code       string  `json:"code"`
	Confidence float64 `json:"confidence"`
}

// Info is the document classification.
type Info struct {
	DocumentType           string     `json:"document_type"`
	DocumentTypeConfidence float64    `json:"document_type_confidence"`
	Domain                 string     `json:"domain"`
	DomainConfidence       float64    `json:"domain_confidence"`
	Pages                  int        `json:"pages"`
	Languages              []Language `json:"languages"`
}

type PartyAddress struct {
	Line1      *string `json:"line1,omitempty"`
	Line2      *string `json:"line2,omitempty"`
	Line3      *string `json:"line3,omitempty"`
	City       *string `json:"city,omitempty"`
	State      *string `json:"state,omitempty"`
	PostalCode *string `json:"postal_code,omitempty"`
	Full       *string `json:"full,omitempty"`
}

func (a *PartyAddress) empty() bool {
	return a == nil || *a == PartyAddress{}
}

type Seller struct {
	Name            *string       `json:"name"`
	Address         *PartyAddress `json:"address"`
	Phone           *string       `json:"phone"`
	Email           *string       `json:"email"`
	Website         *string       `json:"website"`
	TaxID           *string       `json:"tax_id"`
	EmailNormalized *bool         `json:"email_normalized,omitempty"`
}

type Buyer struct {
	Name    *string       `json:"name"`
	Address *PartyAddress `json:"address"`
	Email   *string       `json:"email"`
	Phone   *string       `json:"phone"`
}

// Totals are fixed-point decimal strings; values that do not parse as
// numbers are null.
type Totals struct {
	Subtotal        *string `json:"subtotal"`
	Shipping        *string `json:"shipping"`
	Tax             *string `json:"tax"`
	Total           *string `json:"total"`
	PreviousCharges *string `json:"previous_charges"`
	CurrentCharges  *string `json:"current_charges"`
}

type Taxes struct {
	Tax *string `json:"tax"`
}

type Bank struct {
	AccountNumber string `json:"account_number,omitempty"`
	BSB           string `json:"bsb,omitempty"`
	Name          string `json:"name,omitempty"`
}

type Payments struct {
	Status *string `json:"status"`
	Bank   *Bank   `json:"bank,omitempty"`
}

// Period is the billing period, with the account for telecom statements.
type Period struct {
	AccountNo   *string `json:"account_no,omitempty"`
	PeriodFrom  *string `json:"period_from,omitempty"`
	PeriodUntil *string `json:"period_until,omitempty"`
}

// LineItem is one normalized row. Utility rows keep their column names;
// invoice rows use description/quantity/unit_price/line_total.
type LineItem map[string]any

type Normalized struct {
	Seller                 Seller            `json:"seller"`
	Buyer                  Buyer             `json:"buyer"`
	DocumentTitle          *string           `json:"document_title"`
	DocumentID             *string           `json:"document_id"`
	OrderNumber            *string           `json:"order_number"`
	AccountNo              *string           `json:"account_no"`
	Currency               *string           `json:"currency"`
	PaymentTermsDays       *int              `json:"payment_terms_days"`
	LabelMap               map[string]string `json:"label_map"`
	IssueDate              *string           `json:"issue_date"`
	DueDate                *string           `json:"due_date"`
	LineItems              []LineItem        `json:"line_items"`
	LineItemSourcePriority []string          `json:"line_item_source_priority"`
	Totals                 Totals            `json:"totals"`
	Taxes                  Taxes             `json:"taxes"`
	Payments               Payments          `json:"payments"`
	Period                 Period            `json:"period"`
	Notes                  []string          `json:"notes"`
	Reminders              []string          `json:"reminders"`
}

type UtilityVariant struct {
	Meter Period `json:"meter"`
}

type TelecomVariant struct {
	ServiceAccount Period `json:"service_account"`
}

type GSTVariant struct {
	TaxID *string `json:"tax_id"`
}

type VariantData struct {
	Variant         string          `json:"variant"`
	Utility         *UtilityVariant `json:"utility,omitempty"`
	Telecom         *TelecomVariant `json:"telecom,omitempty"`
	GST             *GSTVariant     `json:"gst,omitempty"`
	SchemaDiscovery bool            `json:"schema_discovery,omitempty"`
}

// UnknownField is a "label: value" block whose label is not a known field.
type UnknownField struct {
	RawLabel        string  `json:"raw_label"`
	Value           string  `json:"value"`
	NormalizedKey   string  `json:"normalized_key"`
	Confidence      float64 `json:"confidence"`
	SchemaDiscovery bool    `json:"schema_discovery"`
}

type PageText struct {
	Page int    `json:"page"`
	Text string `json:"text"`
}

type TableRef struct {
	Schema  string   `json:"schema"`
	Columns []string `json:"columns"`
}

type MetadataBlock struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type RepeatedBlock struct {
	Text  string `json:"text"`
	Pages []int  `json:"pages"`
}

type Structure struct {
	Headers        []PageText          `json:"headers"`
	Footers        []PageText          `json:"footers"`
	Tables         []TableRef          `json:"tables"`
	Sections       validation.Sections `json:"sections"`
	LineItems      []LineItem          `json:"line_items"`
	Summaries      map[string]string   `json:"summaries"`
	MetadataBlocks []MetadataBlock     `json:"metadata_blocks"`
	RepeatedBlocks []RepeatedBlock     `json:"repeated_blocks"`
}

// FieldContext is one extracted value with where it came from.
type FieldContext struct {
	Key           string   `json:"key"`
	Value         string   `json:"value"`
	InferredType  string   `json:"inferred_type"`
	SourceContext string   `json:"source_context"`
	Confidence    *float64 `json:"confidence"`
}

type LogicalBlock struct {
	Page       int     `json:"page"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

type ExtractedContent struct {
	Structure     Structure      `json:"structure"`
	Fields        []FieldContext `json:"fields"`
	LogicalBlocks []LogicalBlock `json:"logical_blocks"`
}

type Check struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Details any    `json:"details,omitempty"`
}

type Mismatch struct {
	Type    string `json:"type"`
	Details any    `json:"details"`
}

type InferredField struct {
	Field          string   `json:"field"`
	Reason         string   `json:"reason"`
	OCRValue       string   `json:"ocr_value"`
	InferredValue  string   `json:"inferred_value"`
	SourcePriority []string `json:"source_priority"`
}

type Validation struct {
	Checks         []Check           `json:"checks"`
	Mismatches     []Mismatch        `json:"mismatches"`
	InferredFields []InferredField   `json:"inferred_fields"`
	Raw            validation.Report `json:"raw"`
}

type Confidence struct {
	FieldLevel      any                 `json:"field_level"`
	SectionLevel    map[string]*float64 `json:"section_level"`
	OverallDocument *float64            `json:"overall_document"`
}

type PreprocessMeta struct {
	Version string            `json:"version"`
	Deskew  preprocess.Report `json:"deskew"`
}

type Meta struct {
	EngineVersion    string         `json:"engine_version"`
	SchemaVersion    string         `json:"schema_version"`
	OCREngine        string         `json:"ocr_engine"`
	Preprocess       PreprocessMeta `json:"preprocess"`
	ProcessingTimeMS int64          `json:"processing_time_ms"`
	DocumentID       string         `json:"document_id"`
}
