package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	jobs "github.com/joseph-ayodele/invoice-ocr/internal/async"
	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/metrics"
	"github.com/joseph-ayodele/invoice-ocr/internal/normalize"
)

// ErrQueueClosed is returned by Enqueue after Shutdown.
var ErrQueueClosed = errors.New("queue is shutting down")

// FileProcessor is the part of core.Processor the workers need.
type FileProcessor interface {
	ProcessFile(ctx context.Context, path string) (normalize.Document, error)
}

// ResultHandler observes every finished job. It runs on the worker goroutine.
type ResultHandler func(job jobs.Job, doc normalize.Document, err error)

type ProcessorQueue struct {
	proc     FileProcessor
	logger   *slog.Logger
	metrics  *metrics.Metrics
	onResult ResultHandler
	workers  int
	timeout  time.Duration

	ch   chan jobs.Job
	wg   sync.WaitGroup
	once sync.Once

	// stop is closed by Shutdown to release senders blocked on a full ch.
	// ch itself is closed only once senders is zero.
	stop    chan struct{}
	senders sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan jobs.Job, n)
		}
	}
}
func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}
func WithResultHandler(h ResultHandler) Option {
	return func(q *ProcessorQueue) { q.onResult = h }
}
func WithMetrics(m *metrics.Metrics) Option {
	return func(q *ProcessorQueue) { q.metrics = m }
}

func NewProcessorQueue(proc FileProcessor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan jobs.Job, 256),
		stop:    make(chan struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)

				for job := range q.ch {
					q.metrics.SetQueueDepth(len(q.ch))
					q.run(workerID, job)
				}

				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// run processes one job under its own timeout, keyed by the job id.
func (q *ProcessorQueue) run(workerID int, job jobs.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	ctx = common.WithDocumentID(ctx, job.ID.String())
	if job.TraceID != "" {
		ctx = common.WithRequestID(ctx, job.TraceID)
	}

	doc, err := q.proc.ProcessFile(ctx, job.Path)
	if err != nil {
		q.logger.Error("processing failed", "worker_id", workerID, "job_id", job.ID, "path", job.Path, "error", err)
	} else {
		q.logger.Info("processed file successfully", "worker_id", workerID, "job_id", job.ID, "path", job.Path,
			"schema", doc.Document.DocumentType, "risk_score", doc.Risk.RiskScore)
	}
	if q.onResult != nil {
		q.onResult(job, doc, err)
	}
}

// Enqueue blocks while the queue is full, until ctx is done or Shutdown
// starts.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job jobs.Job) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.logger.Warn("cannot enqueue: queue is shutting down", "path", job.Path)
		return ErrQueueClosed
	}
	q.senders.Add(1)
	q.mu.Unlock()
	defer q.senders.Done()

	select {
	case q.ch <- job:
	default:
		q.logger.Warn("queue full, applying backpressure", "path", job.Path)
		select {
		case q.ch <- job:
		case <-ctx.Done():
			return ctx.Err()
		case <-q.stop:
			q.logger.Warn("cannot enqueue: queue is shutting down", "path", job.Path)
			return ErrQueueClosed
		}
	}
	q.metrics.RecordEnqueued()
	q.metrics.SetQueueDepth(len(q.ch))
	q.logger.Info("queued file for processing", "job_id", job.ID, "path", job.Path)
	return nil
}

func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.stop)
	q.mu.Unlock()

	q.senders.Wait()
	close(q.ch)

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}

var _ jobs.Queue = (*ProcessorQueue)(nil)
