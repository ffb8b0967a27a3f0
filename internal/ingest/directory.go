package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joseph-ayodele/invoice-ocr/internal/async"
)

// Scanner enqueues files, skipping content it has already queued.
type Scanner struct {
	queue  Enqueuer
	logger *slog.Logger

	mu   sync.Mutex
	seen map[string]string // content hash -> first path
}

func NewScanner(queue Enqueuer, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{queue: queue, logger: logger, seen: map[string]string{}}
}

// IngestPath hashes path and enqueues it unless identical content was
// already queued by this scanner.
func (s *Scanner) IngestPath(ctx context.Context, path string) (FileResult, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return FileResult{Path: path}, fmt.Errorf("abs path: %w", err)
	}
	out := FileResult{Path: abs}
	if !AllowedExt(filepath.Ext(abs)) {
		return out, fmt.Errorf("unsupported or missing extension: %q", filepath.Ext(abs))
	}

	hashHex, err := hashFile(abs)
	if err != nil {
		return out, fmt.Errorf("hash: %w", err)
	}
	out.HashHex = hashHex

	s.mu.Lock()
	first, dup := s.seen[hashHex]
	if !dup {
		s.seen[hashHex] = abs
	}
	s.mu.Unlock()
	if dup {
		s.logger.Debug("ingest.duplicate", "path", abs, "first", first)
		out.Deduplicated = true
		return out, nil
	}

	job := async.NewJob(abs)
	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.mu.Lock()
		delete(s.seen, hashHex)
		s.mu.Unlock()
		return out, fmt.Errorf("enqueue: %w", err)
	}
	out.JobID = job.ID.String()
	return out, nil
}

// IngestDirectory walks root, skips hidden entries if requested, and calls
// IngestPath for each supported file. Returns per-file results + aggregate stats.
func (s *Scanner) IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]FileResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root_path is required")
	}

	var results []FileResult
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, FileResult{Path: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		r, err := s.IngestPath(ctx, path)
		if err != nil {
			r.Err = err.Error()
			results = append(results, r)
			stats.Failed++
			return nil
		}
		results = append(results, r)
		if r.Deduplicated {
			stats.Deduplicated++
		} else {
			stats.Queued++
		}
		return nil
	})

	s.logger.Info("ingest.directory.done", "root", root,
		"scanned", stats.Scanned, "matched", stats.Matched, "queued", stats.Queued,
		"deduplicated", stats.Deduplicated, "failed", stats.Failed)
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	return results, stats, nil
}
