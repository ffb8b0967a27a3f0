package normalize

import (
	"math"
	"strings"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/geometry"
)

const (
	classifyThreshold = 0.7
	unknown           = "unknown"
)

var financeWords = []string{"invoice", "bill", "tax", "amount", "charges", "statement"}

// Classify assigns a document type and domain. Either collapses to "unknown"
// when its confidence is below 0.7.
func Classify(schemaName constants.SchemaName, blocks []geometry.Block, pages int) Info {
	joined := strings.ToLower(joinedText(blocks))

	docType, conf := unknown, 0.5
	switch {
	case schemaName != "" && schemaName != constants.Generic:
		docType, conf = string(schemaName), 0.95
	case strings.Contains(joined, "invoice"):
		docType, conf = "invoice", 0.75
	case strings.Contains(joined, "statement"):
		docType, conf = "statement", 0.72
	case strings.Contains(joined, "bill"):
		docType, conf = "bill", 0.72
	}

	domain, domainConf := unknown, 0.5
	switch {
	case containsAny(joined, financeWords):
		domain, domainConf = "finance", 0.65
		if docType != unknown {
			domainConf = 0.86
		}
	case strings.Contains(joined, "government"):
		domain, domainConf = "govt", 0.7
	case strings.Contains(joined, "legal"):
		domain, domainConf = "legal", 0.7
	}

	info := Info{
		DocumentType:           docType,
		DocumentTypeConfidence: round3(conf),
		Domain:                 domain,
		DomainConfidence:       round3(domainConf),
		Pages:                  pages,
		Languages:              DetectLanguages(blocks),
	}
	if conf < classifyThreshold {
		info.DocumentType = unknown
	}
	if domainConf < classifyThreshold {
		info.Domain = unknown
	}
	return info
}

// DetectLanguages reports English when more than 90% of the characters are ASCII.
func DetectLanguages(blocks []geometry.Block) []Language {
	texts := make([]string, len(blocks))
	for i, b := range blocks {
		texts[i] = b.Text
	}
	text := strings.Join(texts, " ")
	if strings.TrimSpace(text) == "" {
		return []Language{{Code: unknown, Confidence: 0}}
	}

	var total, ascii int
	for _, r := range text {
		total++
		if r < 128 {
			ascii++
		}
	}
	ratio := float64(ascii) / float64(total)
	if ratio > 0.9 {
		return []Language{{Code: "en", Confidence: round3(math.Min(1, 0.8+0.2*ratio))}}
	}
	return []Language{{Code: unknown, Confidence: 0.5}}
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
