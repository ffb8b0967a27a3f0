package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/geometry"
	"github.com/joseph-ayodele/invoice-ocr/internal/metrics"
	"github.com/joseph-ayodele/invoice-ocr/internal/normalize"
	"github.com/joseph-ayodele/invoice-ocr/internal/ocr"
	"github.com/joseph-ayodele/invoice-ocr/internal/preprocess"
	"github.com/joseph-ayodele/invoice-ocr/internal/repository"
	"github.com/joseph-ayodele/invoice-ocr/internal/risk"
	"github.com/joseph-ayodele/invoice-ocr/internal/schema"
	"github.com/joseph-ayodele/invoice-ocr/internal/table"
	"github.com/joseph-ayodele/invoice-ocr/internal/validation"
)

// TextExtractor turns a file into positioned OCR blocks.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (ocr.Result, error)
}

// PageMeta describes where a set of page blocks came from.
type PageMeta struct {
	DocumentID string
	SourcePath string
	OCREngine  string
	Preprocess preprocess.Report
	Started    time.Time
	// Schema skips resolution when set.
	Schema constants.SchemaName
}

// Processor runs OCR, table reconstruction, validation, risk scoring and
// normalization. It holds no per-document state and is safe for concurrent use.
type Processor struct {
	logger    *slog.Logger
	extractor TextExtractor
	stores    []repository.ResultStore
	metrics   *metrics.Metrics
	schema    constants.SchemaName
}

type Option func(*Processor)

// WithStores persists every run into each store.
func WithStores(stores ...repository.ResultStore) Option {
	return func(p *Processor) { p.stores = append(p.stores, stores...) }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

// WithSchema forces every document onto one schema. A PageMeta.Schema
// still takes precedence.
func WithSchema(name constants.SchemaName) Option {
	return func(p *Processor) { p.schema = name }
}

func NewProcessor(logger *slog.Logger, extractor TextExtractor, opts ...Option) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{logger: logger, extractor: extractor}
	for _, o := range opts {
		o(p)
	}
	return p
}

// ProcessFile OCRs path and structures the result. Only collaborator
// failures (rasterizer, converter, engine, stores) are returned as errors;
// a document with no recognizable structure yields an empty document.
func (p *Processor) ProcessFile(ctx context.Context, path string) (normalize.Document, error) {
	start := time.Now()
	docID := common.DocumentIDFromContext(ctx)
	if docID == "" {
		docID = uuid.NewString()
		ctx = common.WithDocumentID(ctx, docID)
	}
	p.logger.Info("processor.start", "document_id", docID, "path", path)

	if p.extractor == nil {
		err := common.NewAppError(common.CodeOCRUnavailable, "no ocr extractor configured", common.ErrCollaborator)
		p.fail(ctx, docID, path, start, err)
		return normalize.Document{}, err
	}
	res, err := p.extractor.Extract(ctx, path)
	if err != nil {
		p.logger.Error("processor.ocr.failed", "document_id", docID, "path", path, "err", err)
		p.fail(ctx, docID, path, start, err)
		return normalize.Document{}, err
	}
	p.logger.Debug("processor.ocr.ok",
		"document_id", docID,
		"pages", len(res.Pages),
		"blocks", len(res.Blocks),
		"engine", res.Engine,
	)

	doc, err := p.processPages(ctx, res.PageBlocks(), PageMeta{
		DocumentID: docID,
		SourcePath: path,
		OCREngine:  res.Engine,
		Preprocess: res.Preprocess,
		Started:    start,
	})
	if err != nil {
		p.fail(ctx, docID, path, start, err)
		return doc, err
	}
	return doc, nil
}

// ProcessPages structures already recognized page blocks. Blocks without a
// page number take their position in pages (1-based). Failures are recorded
// the same way ProcessFile records them.
func (p *Processor) ProcessPages(ctx context.Context, pages [][]geometry.Block, meta PageMeta) (normalize.Document, error) {
	if meta.DocumentID == "" {
		meta.DocumentID = uuid.NewString()
	}
	if meta.Started.IsZero() {
		meta.Started = time.Now()
	}
	doc, err := p.processPages(ctx, pages, meta)
	if err != nil {
		p.fail(ctx, meta.DocumentID, meta.SourcePath, meta.Started, err)
		return doc, err
	}
	return doc, nil
}

func (p *Processor) processPages(ctx context.Context, pages [][]geometry.Block, meta PageMeta) (normalize.Document, error) {
	if err := ctx.Err(); err != nil {
		return normalize.Document{}, err
	}

	pages = numberPages(pages)
	var blocks []geometry.Block
	for _, pg := range pages {
		blocks = append(blocks, pg...)
	}

	forced := meta.Schema
	if forced == "" {
		forced = p.schema
	}
	applied := schema.ApplyAs(table.ProcessPages(pages), forced)
	report := validation.Validate(applied.Schema, applied.Rows, blocks)
	assessed := risk.Assess(report, blocks)
	p.logger.Debug("processor.analyze.ok",
		"document_id", meta.DocumentID,
		"schema", applied.Schema,
		"columns", len(applied.Columns),
		"rows", len(applied.Rows),
		"risk_score", assessed.RiskScore,
	)

	doc := normalize.Build(normalize.Input{
		DocumentID:     meta.DocumentID,
		Blocks:         blocks,
		PageCount:      len(pages),
		Table:          applied,
		Report:         report,
		Risk:           assessed,
		OCREngine:      meta.OCREngine,
		Preprocess:     meta.Preprocess,
		ProcessingTime: time.Since(meta.Started),
	})
	if err := normalize.ValidateJSON(doc); err != nil {
		p.logger.Error("processor.contract.failed", "document_id", meta.DocumentID, "err", err)
		return doc, common.NewAppError(common.CodeOutputContract, "document violates output contract",
			fmt.Errorf("%w: %w", common.ErrValidation, err))
	}

	if err := p.persist(ctx, doc, applied.Schema, meta.SourcePath); err != nil {
		return doc, err
	}
	elapsed := time.Since(meta.Started)
	p.metrics.RecordDocument(applied.Schema, assessed.RiskScore, assessed.RiskFlags, elapsed)
	p.logger.Info("processor.ok",
		"document_id", meta.DocumentID,
		"schema", applied.Schema,
		"document_type", doc.Document.DocumentType,
		"risk_score", assessed.RiskScore,
		"flags", len(assessed.RiskFlags),
		"duration_ms", elapsed.Milliseconds(),
	)
	return doc, nil
}

func numberPages(pages [][]geometry.Block) [][]geometry.Block {
	out := make([][]geometry.Block, len(pages))
	for i, pg := range pages {
		cp := make([]geometry.Block, len(pg))
		copy(cp, pg)
		for j := range cp {
			if cp[j].Page == 0 {
				cp[j].Page = i + 1
			}
		}
		out[i] = cp
	}
	return out
}

func (p *Processor) persist(ctx context.Context, doc normalize.Document, name constants.SchemaName, path string) error {
	if len(p.stores) == 0 {
		return nil
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	return p.save(ctx, repository.Result{
		DocumentID: doc.Meta.DocumentID,
		SourcePath: path,
		Status:     constants.JobStatusDone,
		Schema:     name,
		RiskScore:  doc.Risk.RiskScore,
		Document:   b,
	})
}

// fail records a failed run, even when ctx is already canceled. Store errors
// are logged only; the original failure is what the caller sees.
func (p *Processor) fail(ctx context.Context, docID, path string, start time.Time, cause error) {
	p.metrics.RecordFailure(common.CodeOf(cause))
	if len(p.stores) == 0 {
		return
	}
	var se *storeError
	if errors.As(cause, &se) {
		return
	}
	_ = p.save(context.WithoutCancel(ctx), repository.Result{
		DocumentID: docID,
		SourcePath: path,
		Status:     constants.JobStatusFailed,
		Error:      cause.Error(),
		CreatedAt:  start,
	})
}

type storeError struct{ err error }

func (e *storeError) Error() string { return e.err.Error() }
func (e *storeError) Unwrap() error { return e.err }

func (p *Processor) save(ctx context.Context, r repository.Result) error {
	for _, s := range p.stores {
		if err := s.Save(ctx, r); err != nil {
			p.logger.Error("processor.store.failed", "document_id", r.DocumentID, "status", r.Status, "err", err)
			return &storeError{common.NewAppError(common.CodeStoreUnavailable, "save result",
				fmt.Errorf("%w: %w", common.ErrCollaborator, err))}
		}
	}
	return nil
}
