package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-ocr/internal/async"
)

type recordingQueue struct {
	mu    sync.Mutex
	jobs  []async.Job
	err   error
	onAdd func(n int)
}

func (q *recordingQueue) Enqueue(_ context.Context, job async.Job) error {
	q.mu.Lock()
	if q.err != nil {
		q.mu.Unlock()
		return q.err
	}
	q.jobs = append(q.jobs, job)
	n := len(q.jobs)
	q.mu.Unlock()
	if q.onAdd != nil {
		q.onAdd(n)
	}
	return nil
}

func (q *recordingQueue) paths() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.jobs))
	for i, j := range q.jobs {
		out[i] = filepath.Base(j.Path)
	}
	sort.Strings(out)
	return out
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestIngestDirectory(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "a.pdf"), "first")
	write(t, filepath.Join(root, "nested", "b.PNG"), "second")
	write(t, filepath.Join(root, "copy-of-a.pdf"), "first")
	write(t, filepath.Join(root, "notes.txt"), "skip me")
	write(t, filepath.Join(root, ".hidden", "c.jpg"), "hidden")

	q := &recordingQueue{}
	results, stats, err := NewScanner(q, nil).IngestDirectory(context.Background(), root, true)
	require.NoError(t, err)

	assert.Equal(t, uint32(3), stats.Matched)
	assert.Equal(t, uint32(2), stats.Queued)
	assert.Equal(t, uint32(1), stats.Deduplicated)
	assert.Equal(t, uint32(0), stats.Failed)
	assert.Len(t, results, 3)
	assert.Len(t, q.paths(), 2)
	assert.Contains(t, q.paths(), "b.PNG")
}

func TestIngestDirectoryIncludesHiddenWhenAsked(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, ".hidden", "c.jpg"), "hidden")

	q := &recordingQueue{}
	_, stats, err := NewScanner(q, nil).IngestDirectory(context.Background(), root, false)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), stats.Queued)
}

func TestIngestDirectoryRequiresRoot(t *testing.T) {
	_, _, err := NewScanner(&recordingQueue{}, nil).IngestDirectory(context.Background(), "  ", true)
	assert.Error(t, err)
}

func TestIngestPath(t *testing.T) {
	dir := t.TempDir()
	bill := filepath.Join(dir, "bill.pdf")
	write(t, bill, "content")

	q := &recordingQueue{}
	s := NewScanner(q, nil)
	r, err := s.IngestPath(context.Background(), bill)
	require.NoError(t, err)
	assert.NotEmpty(t, r.JobID)
	assert.Len(t, r.HashHex, 64)
	assert.False(t, r.Deduplicated)

	_, err = s.IngestPath(context.Background(), filepath.Join(dir, "notes.docx"))
	assert.ErrorContains(t, err, "unsupported")
}

func TestIngestPathEnqueueFailureForgetsHash(t *testing.T) {
	bill := filepath.Join(t.TempDir(), "bill.pdf")
	write(t, bill, "content")

	q := &recordingQueue{err: errors.New("closed")}
	s := NewScanner(q, nil)
	_, err := s.IngestPath(context.Background(), bill)
	require.Error(t, err)

	q.err = nil
	r, err := s.IngestPath(context.Background(), bill)
	require.NoError(t, err)
	assert.False(t, r.Deduplicated)
}

func TestIsHiddenAndAllowedExt(t *testing.T) {
	assert.True(t, IsHidden("/a/.git"))
	assert.False(t, IsHidden("."))
	assert.False(t, IsHidden("/a/b.pdf"))
	assert.True(t, AllowedExt(".HEIC"))
	assert.True(t, AllowedExt("tiff"))
	assert.False(t, AllowedExt(".docx"))
}

func waitFor(t *testing.T, ch <-chan string, d time.Duration) (string, bool) {
	t.Helper()
	select {
	case p, ok := <-ch:
		return p, ok
	case <-time.After(d):
		return "", false
	}
}

func TestWatcherInitialScanAndDebounce(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "existing.pdf"), "x")
	write(t, filepath.Join(root, "ignored.txt"), "x")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{root}, InitialScan: true, Debounce: 100 * time.Millisecond}, nil)
	require.NoError(t, err)

	p, ok := waitFor(t, events, 2*time.Second)
	require.True(t, ok)
	assert.Equal(t, "existing.pdf", filepath.Base(p))

	fresh := filepath.Join(root, "fresh.png")
	write(t, fresh, "one")
	write(t, fresh, "two")

	p, ok = waitFor(t, events, 2*time.Second)
	require.True(t, ok)
	assert.Equal(t, fresh, p)

	_, ok = waitFor(t, events, 300*time.Millisecond)
	assert.False(t, ok, "burst is coalesced into one event")

	cancel()
	for range events {
	}
}

func TestWatcherRequiresRoots(t *testing.T) {
	_, _, err := StartWatcher(context.Background(), WatchConfig{}, nil)
	assert.Error(t, err)
}

func TestDecodeJob(t *testing.T) {
	job, err := decodeJob(" /in/a.pdf ")
	require.NoError(t, err)
	assert.Equal(t, "/in/a.pdf", job.Path)

	job, err = decodeJob(`{"id":"3f1c1d2e-8a4b-4c6d-9e0f-112233445566","path":"/in/b.png","trace_id":"t-1"}`)
	require.NoError(t, err)
	assert.Equal(t, "/in/b.png", job.Path)
	assert.Equal(t, "3f1c1d2e-8a4b-4c6d-9e0f-112233445566", job.ID.String())
	assert.Equal(t, "t-1", job.TraceID)

	for _, raw := range []string{"", `{"path":""}`, `{"path":"a.pdf","id":"nope"}`, `{broken`} {
		_, err := decodeJob(raw)
		assert.Error(t, err, raw)
	}
}

func TestEncodeDecodeJob(t *testing.T) {
	in := async.NewJob("/in/c.pdf")
	in.TraceID = "trace"
	raw, err := encodeJob(in)
	require.NoError(t, err)

	out, err := decodeJob(raw)
	require.NoError(t, err)
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.Path, out.Path)
	assert.Equal(t, in.TraceID, out.TraceID)
}

// fakeList implements the two list commands the source and producer use.
type fakeList struct {
	redis.Cmdable
	mu    sync.Mutex
	items []string
}

func (f *fakeList) LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range values {
		f.items = append([]string{v.(string)}, f.items...)
	}
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(int64(len(f.items)))
	return cmd
}

func (f *fakeList) BRPop(ctx context.Context, _ time.Duration, keys ...string) *redis.StringSliceCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewStringSliceCmd(ctx)
	if len(f.items) == 0 {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	last := f.items[len(f.items)-1]
	f.items = f.items[:len(f.items)-1]
	cmd.SetVal([]string{keys[0], last})
	return cmd
}

func TestRedisProducerAndSource(t *testing.T) {
	list := &fakeList{}
	prod := NewRedisProducer(list, "jobs")
	first, err := prod.Push(context.Background(), "/in/1.pdf")
	require.NoError(t, err)
	_, err = prod.Push(context.Background(), "/in/2.pdf")
	require.NoError(t, err)
	list.items = append([]string{"{not json"}, list.items...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q := &recordingQueue{onAdd: func(n int) {
		if n == 2 {
			cancel()
		}
	}}

	err = NewRedisSource(list, "jobs", nil).Run(ctx, q)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, q.jobs, 2)
	assert.Equal(t, first.ID, q.jobs[0].ID, "FIFO: LPUSH + BRPOP")
	assert.Equal(t, "/in/2.pdf", q.jobs[1].Path)
}

func TestRedisSourceStopsOnEnqueueError(t *testing.T) {
	list := &fakeList{items: []string{"/in/a.pdf"}}
	q := &recordingQueue{err: errors.New("queue closed")}
	err := NewRedisSource(list, "jobs", nil).Run(context.Background(), q)
	assert.EqualError(t, err, "queue closed")
}
