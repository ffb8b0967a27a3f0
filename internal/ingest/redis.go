package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/joseph-ayodele/invoice-ocr/internal/async"
)

// listMessage is the wire form of a job on the Redis list. A bare path
// (not JSON) is accepted too.
type listMessage struct {
	ID      string `json:"id,omitempty"`
	Path    string `json:"path"`
	TraceID string `json:"trace_id,omitempty"`
}

func encodeJob(job async.Job) (string, error) {
	b, err := json.Marshal(listMessage{ID: job.ID.String(), Path: job.Path, TraceID: job.TraceID})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeJob(raw string) (async.Job, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return async.Job{}, errors.New("empty message")
	}
	if !strings.HasPrefix(raw, "{") {
		return async.NewJob(raw), nil
	}
	var m listMessage
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return async.Job{}, fmt.Errorf("decode job: %w", err)
	}
	if strings.TrimSpace(m.Path) == "" {
		return async.Job{}, errors.New("job has no path")
	}
	job := async.NewJob(m.Path)
	job.TraceID = m.TraceID
	if m.ID != "" {
		id, err := uuid.Parse(m.ID)
		if err != nil {
			return async.Job{}, fmt.Errorf("job id: %w", err)
		}
		job.ID = id
	}
	return job, nil
}

// RedisSource pops jobs from a Redis list with BRPOP and hands them to a queue.
type RedisSource struct {
	client  redis.Cmdable
	key     string
	timeout time.Duration
	logger  *slog.Logger
}

func NewRedisSource(client redis.Cmdable, key string, logger *slog.Logger) *RedisSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisSource{client: client, key: key, timeout: 5 * time.Second, logger: logger}
}

// Run consumes until ctx is done. Malformed messages are logged and dropped.
func (s *RedisSource) Run(ctx context.Context, q Enqueuer) error {
	s.logger.Info("ingest.redis.start", "key", s.key)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := s.client.BRPop(ctx, s.timeout, s.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Error("ingest.redis.pop.failed", "key", s.key, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}
		if len(res) < 2 {
			continue
		}

		job, err := decodeJob(res[1])
		if err != nil {
			s.logger.Warn("ingest.redis.bad_message", "key", s.key, "error", err)
			continue
		}
		if err := q.Enqueue(ctx, job); err != nil {
			s.logger.Error("ingest.redis.enqueue.failed", "job_id", job.ID, "path", job.Path, "error", err)
			return err
		}
	}
}

// RedisProducer pushes jobs onto the list a RedisSource consumes.
type RedisProducer struct {
	client redis.Cmdable
	key    string
}

func NewRedisProducer(client redis.Cmdable, key string) *RedisProducer {
	return &RedisProducer{client: client, key: key}
}

// Push enqueues path with LPUSH and returns the job it created.
func (p *RedisProducer) Push(ctx context.Context, path string) (async.Job, error) {
	job := async.NewJob(path)
	msg, err := encodeJob(job)
	if err != nil {
		return async.Job{}, err
	}
	if err := p.client.LPush(ctx, p.key, msg).Err(); err != nil {
		return async.Job{}, fmt.Errorf("lpush %s: %w", p.key, err)
	}
	return job, nil
}
