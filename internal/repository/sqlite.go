package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/common"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS ` + resultsTable + ` (
	document_id   TEXT PRIMARY KEY,
	source_path   TEXT NOT NULL,
	status        TEXT NOT NULL,
	schema_name   TEXT NOT NULL DEFAULT '',
	risk_score    REAL NOT NULL DEFAULT 0,
	document      TEXT,
	error_message TEXT NOT NULL DEFAULT '',
	created_at    TEXT NOT NULL
)`

const sqliteUpsert = `
INSERT INTO ` + resultsTable + ` (document_id, source_path, status, schema_name, risk_score, document, error_message, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (document_id) DO UPDATE SET
	status = excluded.status,
	schema_name = excluded.schema_name,
	risk_score = excluded.risk_score,
	document = excluded.document,
	error_message = excluded.error_message`

// SQLiteStore keeps results in a local database file.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLite opens (creating if needed) the database at path and bootstraps
// the results table.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// single writer
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap sqlite: %w", err)
	}
	logger.Info("sqlite result store ready", "path", path)
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, r Result) error {
	var doc any
	if b := r.document(); b != nil {
		doc = string(b)
	}
	_, err := s.db.ExecContext(ctx, sqliteUpsert,
		r.DocumentID, r.SourcePath, string(r.Status), string(r.Schema),
		r.RiskScore, doc, r.Error, r.createdAt().Format(time.RFC3339Nano))
	if err != nil {
		s.logger.Error("result save failed", "document_id", r.DocumentID, "error", err)
		return err
	}
	s.logger.Debug("result saved", "document_id", r.DocumentID, "status", r.Status)
	return nil
}

// Get loads a stored result; common.ErrNotFound when absent.
func (s *SQLiteStore) Get(ctx context.Context, documentID string) (Result, error) {
	var (
		r         Result
		status    string
		schema    string
		doc       sql.NullString
		createdAt string
	)
	row := s.db.QueryRowContext(ctx,
		`SELECT document_id, source_path, status, schema_name, risk_score, document, error_message, created_at
		 FROM `+resultsTable+` WHERE document_id = ?`, documentID)
	err := row.Scan(&r.DocumentID, &r.SourcePath, &status, &schema, &r.RiskScore, &doc, &r.Error, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Result{}, common.WrapError(common.ErrNotFound, "result "+documentID)
	}
	if err != nil {
		return Result{}, err
	}
	r.Status = constants.JobStatus(status)
	r.Schema = constants.SchemaName(schema)
	if doc.Valid {
		r.Document = []byte(doc.String)
	}
	if r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return Result{}, fmt.Errorf("parse created_at: %w", err)
	}
	return r, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
