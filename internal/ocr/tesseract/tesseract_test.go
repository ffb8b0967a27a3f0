package tesseract

import (
	"image"
	"testing"

	"github.com/otiai10/gosseract/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-ocr/internal/geometry"
)

func TestDetections(t *testing.T) {
	boxes := []gosseract.BoundingBox{
		{Box: image.Rect(10, 20, 110, 40), Word: "Invoice Number: INV-1001\n", Confidence: 91.5},
		{Box: image.Rect(10, 60, 90, 80), Word: "Total", Confidence: 80},
	}
	dets := Detections(boxes)
	require.Len(t, dets, 2)
	assert.Equal(t, geometry.Rect(10, 20, 110, 40), dets[0].Box)
	assert.InDelta(t, 0.915, dets[0].Confidence, 1e-9)
	assert.Equal(t, "Total", dets[1].Text)
	assert.Equal(t, 70.0, geometry.CenterY(dets[1].Box))
}

func TestName(t *testing.T) {
	assert.Equal(t, "tesseract", New([]string{"eng"}, "", 0).Name())
}
