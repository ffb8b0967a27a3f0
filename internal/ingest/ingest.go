// Package ingest discovers input documents and turns them into processing
// jobs: one-off directory scans, a filesystem watcher and a Redis list.
package ingest

import (
	"context"

	"github.com/joseph-ayodele/invoice-ocr/internal/async"
)

// FileResult is the per-file scan outcome.
type FileResult struct {
	Path         string
	JobID        string
	Deduplicated bool
	HashHex      string
	Err          string
}

// DirStats summarizes a directory scan.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Queued       uint32
	Deduplicated uint32
	Failed       uint32
}

// Enqueuer accepts jobs; async.Queue implementations satisfy it.
type Enqueuer interface {
	Enqueue(ctx context.Context, job async.Job) error
}
