package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/joseph-ayodele/invoice-ocr/constants"
)

// Result is one pipeline run as persisted by a ResultStore. Document holds
// the serialized universal document and is nil for failed runs.
type Result struct {
	DocumentID string
	SourcePath string
	Status     constants.JobStatus
	Schema     constants.SchemaName
	RiskScore  float64
	Document   json.RawMessage
	Error      string
	CreatedAt  time.Time
}

// ResultStore persists pipeline results. Save upserts by DocumentID.
type ResultStore interface {
	Save(ctx context.Context, r Result) error
	Close() error
}

const resultsTable = "document_results"

func (r Result) createdAt() time.Time {
	if r.CreatedAt.IsZero() {
		return time.Now().UTC()
	}
	return r.CreatedAt.UTC()
}

func (r Result) document() []byte {
	if len(r.Document) == 0 {
		return nil
	}
	return r.Document
}
