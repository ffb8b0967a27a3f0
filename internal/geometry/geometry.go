// Package geometry holds the OCR detection model and the bounding-box helpers
// every layout component relies on.
package geometry

import (
	"encoding/json"
	"fmt"
	"math"
)

// DefaultYTolerance is the vertical distance under which two centers share a row.
const DefaultYTolerance = 15.0

// Point is one polygon corner. It serializes as [x, y].
type Point struct {
	X float64
	Y float64
}

func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.X, p.Y})
}

func (p *Point) UnmarshalJSON(b []byte) error {
	var xy []float64
	if err := json.Unmarshal(b, &xy); err != nil {
		return fmt.Errorf("point: %w", err)
	}
	if len(xy) != 2 {
		return fmt.Errorf("point: want 2 coordinates, got %d", len(xy))
	}
	p.X, p.Y = xy[0], xy[1]
	return nil
}

// BBox is a 4-point polygon in reading order: top-left, top-right,
// bottom-right, bottom-left.
type BBox [4]Point

// Rect builds an axis-aligned BBox.
func Rect(x0, y0, x1, y1 float64) BBox {
	return BBox{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}}
}

// Block is one OCR-detected text span.
type Block struct {
	Text       string  `json:"text"`
	BBox       BBox    `json:"bbox"`
	Confidence float64 `json:"confidence"`
	Page       int     `json:"page"`
}

func CenterX(b BBox) float64 {
	return (b[0].X + b[1].X) / 2
}

func CenterY(b BBox) float64 {
	return (b[0].Y + b[2].Y) / 2
}

// MaxY returns the lowest edge of the polygon.
func MaxY(b BBox) float64 {
	y := b[0].Y
	for _, p := range b[1:] {
		y = math.Max(y, p.Y)
	}
	return y
}

// YClose reports whether two vertical centers are within tol of each other.
func YClose(y1, y2, tol float64) bool {
	return math.Abs(y1-y2) <= tol
}

func (b Block) CenterX() float64 { return CenterX(b.BBox) }
func (b Block) CenterY() float64 { return CenterY(b.BBox) }

// ByPage groups blocks by page number, preserving detection order.
func ByPage(blocks []Block) map[int][]Block {
	out := make(map[int][]Block)
	for _, b := range blocks {
		out[b.Page] = append(out[b.Page], b)
	}
	return out
}

// MeanConfidence returns the average block confidence and false for an empty set.
func MeanConfidence(blocks []Block) (float64, bool) {
	if len(blocks) == 0 {
		return 0, false
	}
	var sum float64
	for _, b := range blocks {
		sum += b.Confidence
	}
	return sum / float64(len(blocks)), true
}
