package constants

// RiskSignal is one fixed indicator of document untrustworthiness.
type RiskSignal string

const (
	TotalMismatch    RiskSignal = "TOTAL_MISMATCH"
	LineItemMismatch RiskSignal = "LINE_ITEM_MISMATCH"
	MissingSummary   RiskSignal = "MISSING_SUMMARY"
	LowOCRConfidence RiskSignal = "LOW_OCR_CONFIDENCE"
)

// AllRiskSignals lists signals in reporting order.
var AllRiskSignals = []RiskSignal{
	TotalMismatch,
	LineItemMismatch,
	MissingSummary,
	LowOCRConfidence,
}

// Versions stamped into every output document.
const (
	EngineVersion     = "2.0.0"
	SchemaVersion     = "1.1.0"
	PreprocessVersion = "1.0.0"
)
