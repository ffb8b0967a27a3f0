package ocr

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/geometry"
	"github.com/joseph-ayodele/invoice-ocr/internal/preprocess"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls [][]string
	fn    func(name string, args []string) ([]byte, []byte, error)
}

func (f *fakeRunner) Run(_ context.Context, name string, _ *slog.Logger, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{name}, args...))
	f.mu.Unlock()
	return f.fn(name, args)
}

type fakeEngine struct {
	mu    sync.Mutex
	pages int
	dets  []Detection
	err   error
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Detect(_ context.Context, data []byte) ([]Detection, error) {
	if _, err := png.Decode(bytes.NewReader(data)); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.pages++
	f.mu.Unlock()
	return f.dets, f.err
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 40, 30))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	img.SetGray(5, 5, color.Gray{Y: 0})
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func newTestExtractor(cfg Config, eng Engine) *Extractor {
	return NewExtractor(cfg, eng, preprocess.New(preprocess.Options{Enabled: false}, nil), nil)
}

var sampleDets = []Detection{
	{Text: "Invoice   Number: INV-1001", Box: geometry.Rect(10, 10, 200, 30), Confidence: 0.91234},
	{Text: "-----", Box: geometry.Rect(10, 40, 200, 42), Confidence: 0.5},
	{Text: "Total $30.00", Box: geometry.Rect(10, 60, 120, 80), Confidence: 0.8},
}

func TestExtractImage(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "bill.png")
	writePNG(t, in)

	eng := &fakeEngine{dets: sampleDets}
	res, err := newTestExtractor(Config{}, eng).Extract(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, constants.IMAGE, res.SourceType)
	assert.Equal(t, "fake", res.Engine)
	require.Len(t, res.Pages, 1)
	assert.Equal(t, 1, res.Pages[0].Number)
	assert.Equal(t, "bill.png", res.Pages[0].Image)

	require.Len(t, res.Blocks, 2)
	assert.Equal(t, "Invoice Number: INV-1001", res.Blocks[0].Text)
	assert.Equal(t, 0.912, res.Blocks[0].Confidence)
	assert.Equal(t, 1, res.Blocks[0].Page)
	assert.Equal(t, "Total $30.00", res.Blocks[1].Text)

	assert.False(t, res.Preprocess.Enabled)
	require.Len(t, res.Preprocess.Pages, 1)
	assert.Equal(t, 1, res.Preprocess.Pages[0].Page)
	assert.False(t, res.Preprocess.Pages[0].Applied)
}

func TestExtractPDFRendersPagesInOrder(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "statement.pdf")
	require.NoError(t, os.WriteFile(in, []byte("%PDF-1.4"), 0o600))

	r := &fakeRunner{fn: func(name string, args []string) ([]byte, []byte, error) {
		prefix := args[len(args)-1]
		for _, n := range []string{"10", "2", "1"} {
			writePNG(t, prefix+"-"+n+".png")
		}
		return nil, nil, nil
	}}
	eng := &fakeEngine{dets: sampleDets[:1]}
	ex := newTestExtractor(Config{DPI: 200, MaxPages: 2}, eng).WithRunner(r)

	res, err := ex.Extract(context.Background(), in)
	require.NoError(t, err)

	require.Len(t, r.calls, 1)
	assert.Equal(t, []string{"pdftoppm", "-r", "200", "-png", in}, r.calls[0][:5])
	assert.Equal(t, constants.PDF, res.SourceType)
	require.Len(t, res.Pages, 2)
	assert.Equal(t, "page-1.png", res.Pages[0].Image)
	assert.Equal(t, "page-2.png", res.Pages[1].Image)
	assert.Equal(t, 2, res.Blocks[1].Page)
	assert.Len(t, res.PageBlocks(), 2)
	assert.Equal(t, 2, eng.pages)

	// rendered pages are removed once extraction finishes
	_, statErr := os.Stat(filepath.Dir(r.calls[0][len(r.calls[0])-1]))
	assert.True(t, os.IsNotExist(statErr))
}

func TestExtractPDFRasterizerFailure(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "broken.pdf")
	require.NoError(t, os.WriteFile(in, []byte("x"), 0o600))

	r := &fakeRunner{fn: func(string, []string) ([]byte, []byte, error) {
		return nil, []byte("Syntax Error"), errors.New("exit status 1")
	}}
	_, err := newTestExtractor(Config{}, &fakeEngine{}).WithRunner(r).Extract(context.Background(), in)
	require.Error(t, err)

	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, common.CodeOCRUnavailable, appErr.Code)
	assert.ErrorIs(t, err, common.ErrCollaborator)
}

func TestExtractHEICUsesConverterAndCache(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "photo.heic")
	require.NoError(t, os.WriteFile(in, []byte("heic"), 0o600))
	cache := filepath.Join(dir, "cache")

	r := &fakeRunner{fn: func(name string, args []string) ([]byte, []byte, error) {
		writePNG(t, args[1])
		return nil, nil, nil
	}}
	ex := newTestExtractor(Config{HeicConverter: "magick", ArtifactCacheDir: cache}, &fakeEngine{dets: sampleDets}).WithRunner(r)
	ctx := WithContentHash(context.Background(), "abc123")

	res, err := ex.Extract(ctx, in)
	require.NoError(t, err)
	require.Len(t, r.calls, 1)
	assert.Equal(t, "magick", r.calls[0][0])
	assert.Equal(t, "abc123.png", res.Pages[0].Image)
	assert.FileExists(t, filepath.Join(cache, "abc123.png"))

	// second run hits the cache
	_, err = ex.Extract(ctx, in)
	require.NoError(t, err)
	assert.Len(t, r.calls, 1)
}

func TestExtractHEICWithoutConverter(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "photo.heif")
	require.NoError(t, os.WriteFile(in, []byte("heif"), 0o600))

	_, err := newTestExtractor(Config{}, &fakeEngine{}).Extract(context.Background(), in)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, common.CodeOCRUnavailable, appErr.Code)
}

func TestExtractUnsupported(t *testing.T) {
	_, err := newTestExtractor(Config{}, &fakeEngine{}).Extract(context.Background(), "notes.docx")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, common.CodeUnsupportedFormat, appErr.Code)
	assert.ErrorIs(t, err, common.ErrUnsupportedFormat)
}

func TestExtractEngineFailure(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "bill.png")
	writePNG(t, in)

	eng := &fakeEngine{err: errors.New("tesseract missing")}
	_, err := newTestExtractor(Config{}, eng).Extract(context.Background(), in)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, common.CodeOCRUnavailable, appErr.Code)
	assert.ErrorIs(t, err, common.ErrCollaborator)
	assert.Contains(t, err.Error(), "tesseract missing")
}

func TestParseTSV(t *testing.T) {
	tsv := "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
		"1\t1\t0\t0\t0\t0\t0\t0\t1000\t1000\t-1\t\n" +
		"5\t1\t1\t1\t1\t1\t10\t20\t50\t12\t90\tInvoice\n" +
		"5\t1\t1\t1\t1\t2\t70\t18\t60\t16\t80\tNumber:\n" +
		"5\t1\t1\t1\t2\t1\t10\t50\t40\t12\t-1\t \n" +
		"5\t1\t2\t1\t1\t1\t300\t20\t40\t12\t70\tTotal\n" +
		"5\t1\t1\t1\t1\t3\t140\t20\t30\t12\t70\tINV-1\n"

	dets := ParseTSV(tsv)
	require.Len(t, dets, 2)
	assert.Equal(t, "Invoice Number: INV-1", dets[0].Text)
	assert.Equal(t, geometry.Rect(10, 18, 170, 34), dets[0].Box)
	assert.InDelta(t, 0.8, dets[0].Confidence, 1e-9)
	assert.Equal(t, "Total", dets[1].Text)
	assert.InDelta(t, 0.7, dets[1].Confidence, 1e-9)
}

func TestSortPages(t *testing.T) {
	paths := []string{"/t/page-10.png", "/t/page-2.png", "/t/page-1.png"}
	sortPages(paths)
	assert.Equal(t, []string{"/t/page-1.png", "/t/page-2.png", "/t/page-10.png"}, paths)
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "Amount Due", NormalizeText("  Amount \tDue "))
	assert.Empty(t, NormalizeText("______"))
	assert.Equal(t, "--", NormalizeText("--"))
}
