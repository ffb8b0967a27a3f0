// Package bootstrap wires configuration into the OCR extractor, result
// stores and loggers shared by the binaries under cmd/.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/ocr"
	"github.com/joseph-ayodele/invoice-ocr/internal/ocr/tesseract"
	"github.com/joseph-ayodele/invoice-ocr/internal/preprocess"
	"github.com/joseph-ayodele/invoice-ocr/internal/repository"
)

// LoadDotEnv loads each existing file into the environment. Variables that
// are already set win. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Logger returns a JSON or text slog logger writing to w.
func Logger(w io.Writer, jsonOutput bool, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if jsonOutput {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Engine picks the OCR engine named by OCR_ENGINE.
func Engine(cfg common.OCRConfig, logger *slog.Logger) (ocr.Engine, error) {
	switch cfg.Engine {
	case common.EngineTesseractCLI, "":
		return ocr.NewTSVEngine(cfg.Tesseract, cfg.Language, cfg.TessdataDir, cfg.PSM, logger), nil
	case common.EngineGosseract:
		return tesseract.New(strings.Split(cfg.Language, "+"), cfg.TessdataDir, cfg.PSM), nil
	default:
		return nil, common.NewAppError(common.CodeConfig, fmt.Sprintf("unknown ocr engine %q", cfg.Engine), common.ErrInvalidInput)
	}
}

// Extractor builds the OCR extractor with deskew settings from cfg.
func Extractor(cfg *common.Config, logger *slog.Logger) (*ocr.Extractor, error) {
	engine, err := Engine(cfg.OCR, logger)
	if err != nil {
		return nil, err
	}
	deskew := preprocess.New(preprocess.Options{
		Enabled:     cfg.Preprocess.Deskew,
		MinAbsAngle: cfg.Preprocess.MinAbsAngle,
		MaxAbsAngle: cfg.Preprocess.MaxAbsAngle,
	}, logger)
	return ocr.NewExtractor(ocr.Config{
		Pdftoppm:         cfg.OCR.Pdftoppm,
		DPI:              cfg.OCR.DPI,
		MaxPages:         cfg.OCR.MaxPages,
		HeicConverter:    cfg.OCR.HeicConverter,
		ArtifactCacheDir: cfg.OCR.ArtifactCacheDir,
	}, engine, deskew, logger), nil
}

// Stores holds the result sinks enabled by configuration.
type Stores struct {
	List   []repository.ResultStore
	Pool   *pgxpool.Pool
	SQLite *repository.SQLiteStore
}

// OpenStores opens Postgres when DB_URL is set and SQLite when SQLITE_PATH
// is set. Neither is required.
func OpenStores(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*Stores, error) {
	s := &Stores{}
	if dsn := cfg.Database.DSN; dsn != "" {
		pool, err := repository.Open(ctx, repository.Config{
			DSN:              dsn,
			MaxConns:         cfg.Database.MaxConns,
			MinConns:         cfg.Database.MinConns,
			MaxConnLifetime:  cfg.Database.MaxConnLifetime,
			MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
			DialTimeout:      cfg.Database.DialTimeout,
			StatementTimeout: cfg.Database.StatementTimeout,
		}, logger)
		if err != nil {
			return nil, common.NewAppError(common.CodeStoreUnavailable, "open postgres", err)
		}
		pg := repository.NewPostgresStore(pool, logger)
		if err := pg.EnsureSchema(ctx); err != nil {
			repository.Close(pool, logger)
			return nil, common.NewAppError(common.CodeStoreUnavailable, "postgres schema", err)
		}
		s.Pool = pool
		s.List = append(s.List, pg)
	}
	if path := cfg.SQLite.Path; path != "" {
		lite, err := repository.OpenSQLite(ctx, path, logger)
		if err != nil {
			s.Close(logger)
			return nil, common.NewAppError(common.CodeStoreUnavailable, "open sqlite", err)
		}
		s.SQLite = lite
		s.List = append(s.List, lite)
	}
	return s, nil
}

func (s *Stores) Close(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, st := range s.List {
		if err := st.Close(); err != nil {
			logger.Warn("closing result store", "error", err)
		}
	}
	s.List = nil
}
