package bootstrap

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/ocr"
	"github.com/joseph-ayodele/invoice-ocr/internal/ocr/tesseract"
	"github.com/joseph-ayodele/invoice-ocr/internal/repository"
)

func TestEngine(t *testing.T) {
	e, err := Engine(common.OCRConfig{Engine: common.EngineTesseractCLI, Tesseract: "tesseract", Language: "eng"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &ocr.TSVEngine{}, e)

	e, err = Engine(common.OCRConfig{Engine: common.EngineGosseract, Language: "eng+deu"}, nil)
	require.NoError(t, err)
	require.IsType(t, &tesseract.Engine{}, e)
	assert.Equal(t, []string{"eng", "deu"}, e.(*tesseract.Engine).Languages)

	_, err = Engine(common.OCRConfig{Engine: "paddle"}, nil)
	assert.Equal(t, common.CodeConfig, common.CodeOf(err))
}

func TestExtractor(t *testing.T) {
	cfg := common.LoadConfig()
	x, err := Extractor(cfg, nil)
	require.NoError(t, err)
	assert.NotNil(t, x)
}

func TestOpenStoresSQLiteOnly(t *testing.T) {
	cfg := &common.Config{SQLite: common.SQLiteConfig{Path: filepath.Join(t.TempDir(), "results.db")}}
	s, err := OpenStores(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer s.Close(nil)

	require.Len(t, s.List, 1)
	assert.Nil(t, s.Pool)
	require.NotNil(t, s.SQLite)
	require.NoError(t, s.SQLite.Save(context.Background(), repository.Result{DocumentID: "d1", SourcePath: "/in/a.pdf"}))
}

func TestOpenStoresNone(t *testing.T) {
	s, err := OpenStores(context.Background(), &common.Config{}, nil)
	require.NoError(t, err)
	assert.Empty(t, s.List)
}

func TestOpenStoresBadDSN(t *testing.T) {
	cfg := &common.Config{Database: common.DatabaseConfig{DSN: "postgres://user@localhost:notaport/db"}}
	_, err := OpenStores(context.Background(), cfg, nil)
	assert.Equal(t, common.CodeStoreUnavailable, common.CodeOf(err))
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(env, []byte("INVOICE_OCR_TEST_VAR=from-file\n"), 0o600))
	t.Setenv("INVOICE_OCR_TEST_VAR", "")
	require.NoError(t, os.Unsetenv("INVOICE_OCR_TEST_VAR"))

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), env))
	assert.Equal(t, "from-file", os.Getenv("INVOICE_OCR_TEST_VAR"))
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	Logger(&buf, true, slog.LevelInfo).Info("hello", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
	buf.Reset()
	Logger(&buf, false, slog.LevelWarn).Info("quiet")
	assert.Empty(t, buf.String())
}
