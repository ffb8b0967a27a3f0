// Package ocr turns PDF and image files into positioned text blocks: pages are
// rasterized, deskewed and passed to a line-level OCR engine.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "golang.org/x/image/tiff"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/geometry"
	"github.com/joseph-ayodele/invoice-ocr/internal/preprocess"
)

type Config struct {
	Pdftoppm string // binary name or absolute path; if empty -> "pdftoppm"
	DPI      int    // rasterization DPI for PDFs, default 300
	MaxPages int    // 0 = no limit

	HeicConverter    string
	ArtifactCacheDir string
}

// Page is the OCR output of one page.
type Page struct {
	Number int              `json:"page"`
	Image  string           `json:"image"`
	Blocks []geometry.Block `json:"blocks"`
}

type Result struct {
	Pages      []Page            `json:"pages"`
	Blocks     []geometry.Block  `json:"blocks"`
	SourceType string            `json:"source_type"` // constants.PDF | constants.IMAGE
	Engine     string            `json:"engine"`
	Preprocess preprocess.Report `json:"preprocess"`
	Duration   time.Duration     `json:"duration"`
	Warnings   []string          `json:"warnings,omitempty"`
}

// PageBlocks returns the blocks of every page in page order.
func (r Result) PageBlocks() [][]geometry.Block {
	out := make([][]geometry.Block, len(r.Pages))
	for i, p := range r.Pages {
		out[i] = p.Blocks
	}
	return out
}

type Extractor struct {
	cfg    Config
	runner Runner
	engine Engine
	deskew *preprocess.Deskewer
	logger *slog.Logger
}

func NewExtractor(cfg Config, engine Engine, deskew *preprocess.Deskewer, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.ArtifactCacheDir == "" {
		cfg.ArtifactCacheDir = "./tmp"
	}
	if deskew == nil {
		deskew = preprocess.New(preprocess.DefaultOptions(), logger)
	}
	return &Extractor{cfg: cfg, runner: execRunner{}, engine: engine, deskew: deskew, logger: logger}
}

// WithRunner swaps the command runner used for rasterizing and conversion.
func (e *Extractor) WithRunner(r Runner) *Extractor {
	e.runner = r
	return e
}

func unavailable(msg string, err error) error {
	return common.NewAppError(common.CodeOCRUnavailable, msg, fmt.Errorf("%w: %w", common.ErrCollaborator, err))
}

// Extract renders path into page images and runs deskew and OCR on each page.
// Rasterizer, converter and engine failures are returned as OCR_UNAVAILABLE.
func (e *Extractor) Extract(ctx context.Context, path string) (Result, error) {
	start := time.Now()
	ext := constants.NormalizeExt(filepath.Ext(path))
	format := constants.MapExtToFormat(ext)
	e.logger.Debug("ocr.extract.start", "path", path, "ext", ext, "engine", e.engine.Name())

	res := Result{
		SourceType: format,
		Engine:     e.engine.Name(),
		Preprocess: preprocess.Report{Enabled: e.deskew.Enabled(), Pages: []preprocess.Metadata{}},
		Pages:      []Page{},
		Blocks:     []geometry.Block{},
	}

	var (
		pages   []string
		cleanup func()
		warns   []string
		err     error
	)
	switch format {
	case constants.PDF:
		pages, cleanup, warns, err = e.renderPDF(ctx, path)
		if err != nil {
			res.Warnings = warns
			return res, unavailable("rasterize pdf", err)
		}
	case constants.IMAGE:
		if constants.IsHEICExt(ext) {
			hashHex, _ := contentHashFromCtx(ctx)
			out, w, c, err := convertHEICtoPNG(ctx, e.runner, e.logger, e.cfg.HeicConverter, path, e.cfg.ArtifactCacheDir, hashHex)
			warns = append(warns, w...)
			if err != nil {
				if c != nil {
					c()
				}
				e.logger.Error("ocr.heic.failed", "path", path, "error", err)
				res.Warnings = warns
				return res, unavailable("convert heic", err)
			}
			cleanup = c
			path = out
		}
		pages = []string{path}
	default:
		e.logger.Error("ocr.extract.unsupported", "extension", ext)
		return res, common.NewAppError(common.CodeUnsupportedFormat,
			fmt.Sprintf("unsupported extension: %q", ext), common.ErrUnsupportedFormat)
	}
	if cleanup != nil {
		defer cleanup()
	}
	res.Warnings = warns

	for i, p := range pages {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		num := i + 1
		blocks, meta, err := e.recognizePage(ctx, p, num)
		if err != nil {
			e.logger.Error("ocr.page.failed", "page", num, "error", err)
			return res, unavailable(fmt.Sprintf("recognize page %d", num), err)
		}
		res.Pages = append(res.Pages, Page{Number: num, Image: filepath.Base(p), Blocks: blocks})
		res.Blocks = append(res.Blocks, blocks...)
		res.Preprocess.Pages = append(res.Preprocess.Pages, meta)
	}

	res.Duration = time.Since(start)
	e.logger.Info("ocr.extract.ok",
		"pages", len(res.Pages),
		"blocks", len(res.Blocks),
		"duration_ms", res.Duration.Milliseconds())
	return res, nil
}

func (e *Extractor) recognizePage(ctx context.Context, path string, num int) ([]geometry.Block, preprocess.Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, preprocess.Metadata{}, err
	}
	img, _, err := image.Decode(f)
	_ = f.Close()
	if err != nil {
		return nil, preprocess.Metadata{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}

	img, meta := e.deskew.Correct(img)
	meta.Page = num

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, meta, fmt.Errorf("encode page: %w", err)
	}

	dets, err := e.engine.Detect(ctx, buf.Bytes())
	if err != nil {
		return nil, meta, err
	}
	return ToBlocks(dets, num), meta, nil
}

// ToBlocks converts detections into page blocks, dropping empty lines.
func ToBlocks(dets []Detection, page int) []geometry.Block {
	blocks := make([]geometry.Block, 0, len(dets))
	for _, d := range dets {
		text := NormalizeText(d.Text)
		if text == "" {
			continue
		}
		blocks = append(blocks, geometry.Block{
			Text:       text,
			BBox:       d.Box,
			Confidence: math.Round(d.Confidence*1000) / 1000,
			Page:       page,
		})
	}
	return blocks
}
