// Package tesseract implements ocr.Engine on the gosseract client.
package tesseract

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"

	"github.com/joseph-ayodele/invoice-ocr/internal/geometry"
	"github.com/joseph-ayodele/invoice-ocr/internal/ocr"
)

// Engine recognizes text lines with libtesseract. A fresh client is created
// per page so the engine is safe for concurrent use.
type Engine struct {
	Languages   []string
	TessdataDir string
	PSM         int

	clientFactory func() *gosseract.Client
}

func New(languages []string, tessdataDir string, psm int) *Engine {
	return &Engine{Languages: languages, TessdataDir: tessdataDir, PSM: psm, clientFactory: gosseract.NewClient}
}

func (e *Engine) Name() string { return "tesseract" }

func (e *Engine) Detect(ctx context.Context, png []byte) ([]ocr.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := e.clientFactory()
	defer c.Close()

	if e.TessdataDir != "" {
		if err := c.SetTessdataPrefix(e.TessdataDir); err != nil {
			return nil, fmt.Errorf("set tessdata: %w", err)
		}
	}
	if len(e.Languages) > 0 {
		if err := c.SetLanguage(e.Languages...); err != nil {
			return nil, fmt.Errorf("set languages: %w", err)
		}
	}
	if e.PSM > 0 {
		if err := c.SetPageSegMode(gosseract.PageSegMode(e.PSM)); err != nil {
			return nil, fmt.Errorf("set psm: %w", err)
		}
	}
	if err := c.SetImageFromBytes(png); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("recognize lines: %w", err)
	}
	return Detections(boxes), nil
}

// Detections maps gosseract line boxes onto 4-point boxes with 0..1 confidence.
func Detections(boxes []gosseract.BoundingBox) []ocr.Detection {
	out := make([]ocr.Detection, 0, len(boxes))
	for _, b := range boxes {
		out = append(out, ocr.Detection{
			Text: b.Word,
			Box: geometry.Rect(
				float64(b.Box.Min.X), float64(b.Box.Min.Y),
				float64(b.Box.Max.X), float64(b.Box.Max.Y),
			),
			Confidence: b.Confidence / 100,
		})
	}
	return out
}
