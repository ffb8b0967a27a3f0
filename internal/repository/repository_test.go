package repository

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/common"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "results.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteSaveAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	in := Result{
		DocumentID: "doc-1",
		SourcePath: "/in/bill.pdf",
		Status:     constants.JobStatusDone,
		Schema:     constants.UtilityBill,
		RiskScore:  0.25,
		Document:   json.RawMessage(`{"meta":{"document_id":"doc-1"}}`),
		CreatedAt:  created,
	}
	require.NoError(t, s.Save(ctx, in))

	got, err := s.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, in.SourcePath, got.SourcePath)
	assert.Equal(t, constants.JobStatusDone, got.Status)
	assert.Equal(t, constants.UtilityBill, got.Schema)
	assert.Equal(t, 0.25, got.RiskScore)
	assert.JSONEq(t, `{"meta":{"document_id":"doc-1"}}`, string(got.Document))
	assert.True(t, created.Equal(got.CreatedAt))
}

func TestSQLiteSaveUpserts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, Result{DocumentID: "doc-2", SourcePath: "a.png", Status: constants.JobStatusRunning}))
	require.NoError(t, s.Save(ctx, Result{DocumentID: "doc-2", SourcePath: "a.png", Status: constants.JobStatusFailed, Error: "OCR_UNAVAILABLE: boom"}))

	got, err := s.Get(ctx, "doc-2")
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusFailed, got.Status)
	assert.Equal(t, "OCR_UNAVAILABLE: boom", got.Error)
	assert.Nil(t, got.Document)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSQLiteGetMissing(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestOpenRejectsBadDSN(t *testing.T) {
	_, err := Open(context.Background(), Config{DSN: "postgres://user@localhost:notaport/db"}, nil)
	assert.Error(t, err)
}

var _ ResultStore = (*SQLiteStore)(nil)
var _ ResultStore = (*PostgresStore)(nil)
