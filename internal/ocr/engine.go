package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/invoice-ocr/internal/geometry"
)

// Detection is one recognized text line on a page image.
type Detection struct {
	Text       string
	Box        geometry.BBox
	Confidence float64 // 0..1
}

// Engine recognizes text lines in a PNG-encoded page image.
type Engine interface {
	Name() string
	Detect(ctx context.Context, png []byte) ([]Detection, error)
}

// TSVEngine runs the tesseract binary in TSV mode and groups its words into lines.
type TSVEngine struct {
	Binary      string
	Language    string
	TessdataDir string
	PSM         int

	runner Runner
	logger *slog.Logger
}

func NewTSVEngine(binary, lang, tessdataDir string, psm int, logger *slog.Logger) *TSVEngine {
	if logger == nil {
		logger = slog.Default()
	}
	if binary == "" {
		binary = "tesseract"
	}
	if lang == "" {
		lang = "eng"
	}
	return &TSVEngine{Binary: binary, Language: lang, TessdataDir: tessdataDir, PSM: psm, runner: execRunner{}, logger: logger}
}

// WithRunner swaps the command runner.
func (e *TSVEngine) WithRunner(r Runner) *TSVEngine {
	e.runner = r
	return e
}

func (e *TSVEngine) Name() string { return "tesseract" }

func (e *TSVEngine) Detect(ctx context.Context, png []byte) ([]Detection, error) {
	tmpDir, err := os.MkdirTemp("", "invoice-tsv-*")
	if err != nil {
		return nil, err
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	in := filepath.Join(tmpDir, "page.png")
	if err := os.WriteFile(in, png, 0o600); err != nil {
		return nil, err
	}

	// tesseract <file> stdout -l <lang> [--psm N] [--tessdata-dir D] tsv
	args := []string{in, "stdout", "-l", e.Language}
	if e.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(e.PSM))
	}
	if e.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.TessdataDir)
	}
	args = append(args, "tsv")

	out, errb, err := e.runner.Run(ctx, e.Binary, e.logger, args...)
	if err != nil {
		return nil, fmt.Errorf("tesseract TSV: %w: %s", err, truncate(string(errb), 512))
	}
	return ParseTSV(string(out)), nil
}

type lineKey struct{ page, block, par, line int }

type lineAcc struct {
	words          []string
	x0, y0, x1, y1 float64
	confSum        float64
	confN          int
}

// ParseTSV groups tesseract word rows (level 5) into lines in first-seen order.
// Line confidence is the mean word confidence scaled to 0..1.
func ParseTSV(tsv string) []Detection {
	var (
		order []lineKey
		lines = map[lineKey]*lineAcc{}
	)
	for i, ln := range strings.Split(tsv, "\n") {
		if i == 0 || strings.TrimSpace(ln) == "" {
			continue // header
		}
		cols := strings.Split(strings.TrimRight(ln, "\r"), "\t")
		if len(cols) < 12 || cols[0] != "5" {
			continue
		}
		text := strings.TrimSpace(cols[11])
		if text == "" {
			continue
		}
		nums := make([]int, 10)
		ok := true
		for j := 1; j <= 9; j++ {
			n, err := strconv.Atoi(cols[j])
			if err != nil {
				ok = false
				break
			}
			nums[j] = n
		}
		if !ok {
			continue
		}
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil {
			continue
		}

		k := lineKey{nums[1], nums[2], nums[3], nums[4]}
		left, top := float64(nums[6]), float64(nums[7])
		right, bottom := left+float64(nums[8]), top+float64(nums[9])
		acc, seen := lines[k]
		if !seen {
			acc = &lineAcc{x0: left, y0: top, x1: right, y1: bottom}
			lines[k] = acc
			order = append(order, k)
		}
		acc.words = append(acc.words, text)
		acc.x0, acc.y0 = math.Min(acc.x0, left), math.Min(acc.y0, top)
		acc.x1, acc.y1 = math.Max(acc.x1, right), math.Max(acc.y1, bottom)
		if conf >= 0 {
			acc.confSum += conf
			acc.confN++
		}
	}

	out := make([]Detection, 0, len(order))
	for _, k := range order {
		acc := lines[k]
		conf := 0.0
		if acc.confN > 0 {
			conf = acc.confSum / float64(acc.confN) / 100
		}
		out = append(out, Detection{
			Text:       strings.Join(acc.words, " "),
			Box:        geometry.Rect(acc.x0, acc.y0, acc.x1, acc.y1),
			Confidence: conf,
		})
	}
	return out
}
