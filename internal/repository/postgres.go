package repository

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS ` + resultsTable + ` (
	document_id   TEXT PRIMARY KEY,
	source_path   TEXT NOT NULL,
	status        TEXT NOT NULL,
	schema_name   TEXT NOT NULL DEFAULT '',
	risk_score    DOUBLE PRECISION NOT NULL DEFAULT 0,
	document      JSONB,
	error_message TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL
)`

const postgresUpsert = `
INSERT INTO ` + resultsTable + ` (document_id, source_path, status, schema_name, risk_score, document, error_message, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (document_id) DO UPDATE SET
	status = EXCLUDED.status,
	schema_name = EXCLUDED.schema_name,
	risk_score = EXCLUDED.risk_score,
	document = EXCLUDED.document,
	error_message = EXCLUDED.error_message`

// PostgresStore writes results into the document_results table.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPostgresStore(pool *pgxpool.Pool, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{pool: pool, logger: logger}
}

// EnsureSchema creates the results table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		s.logger.Error("results table bootstrap failed", "error", err)
		return err
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, r Result) error {
	_, err := s.pool.Exec(ctx, postgresUpsert,
		r.DocumentID, r.SourcePath, string(r.Status), string(r.Schema),
		r.RiskScore, r.document(), r.Error, r.createdAt())
	if err != nil {
		s.logger.Error("result save failed", "document_id", r.DocumentID, "error", err)
		return err
	}
	s.logger.Debug("result saved", "document_id", r.DocumentID, "status", r.Status)
	return nil
}

func (s *PostgresStore) Close() error {
	Close(s.pool, s.logger)
	return nil
}
