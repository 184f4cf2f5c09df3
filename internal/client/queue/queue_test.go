package queue

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeDoer records replayed requests and answers with a scripted
// status or error.
type fakeDoer struct {
	mu       sync.Mutex
	requests []*http.Request
	status   int
	err      error
	delay    time.Duration
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	status := f.status
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(strings.NewReader("{}")),
	}, nil
}

func (f *fakeDoer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func newTestQueue(t *testing.T, doer Doer) *Queue {
	t.Helper()
	q, err := OpenInMemory(doer, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func TestAddAndPendingOrder(t *testing.T) {
	q := newTestQueue(t, &fakeDoer{})

	base := time.Now()
	step := 0
	q.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Second)
	}

	first, err := q.Add("http://hub/api/tasks", http.MethodPost, nil, []byte(`{"title":"a"}`))
	require.NoError(t, err)
	second, err := q.Add("http://hub/api/tasks", http.MethodPost, nil, []byte(`{"title":"b"}`))
	require.NoError(t, err)

	pending, err := q.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first, pending[0].ID)
	assert.Equal(t, second, pending[1].ID)
}

func TestSyncReplaysAndDrains(t *testing.T) {
	doer := &fakeDoer{}
	q := newTestQueue(t, doer)

	_, err := q.Add("http://hub/api/tasks", http.MethodPost,
		map[string]string{"Authorization": "Bearer x"}, []byte(`{"title":"a"}`))
	require.NoError(t, err)

	res, err := q.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Attempted: 1, Replayed: 1}, res)

	require.Equal(t, 1, doer.count())
	assert.Equal(t, "Bearer x", doer.requests[0].Header.Get("Authorization"))

	pending, err := q.Pending()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSyncIsExactlyOnceUnderConcurrency(t *testing.T) {
	doer := &fakeDoer{delay: 20 * time.Millisecond}
	q := newTestQueue(t, doer)

	for range 3 {
		_, err := q.Add("http://hub/api/tasks", http.MethodPost, nil, []byte(`{}`))
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	var replayed atomic.Int64
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := q.Sync(context.Background())
			assert.NoError(t, err)
			replayed.Add(int64(res.Replayed))
		}()
	}
	wg.Wait()

	// One Sync wins the race and flushes everything; the loser is a
	// no-op. No request is ever sent twice.
	assert.Equal(t, int64(3), replayed.Load())
	assert.Equal(t, 3, doer.count())
}

func TestSyncFailureSchedulesBackoff(t *testing.T) {
	doer := &fakeDoer{err: errors.New("connection refused")}
	q := newTestQueue(t, doer)

	start := time.Now()
	q.now = func() time.Time { return start }

	_, err := q.Add("http://hub/api/tasks", http.MethodPost, nil, []byte(`{}`))
	require.NoError(t, err)

	res, err := q.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Attempted: 1, Failed: 1}, res)

	pending, err := q.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].RetryCount)
	assert.Contains(t, pending[0].LastError, "connection refused")
	assert.Equal(t, start.Add(backoffBase).Unix(), pending[0].NextAttempt.Unix())

	// Inside the backoff window the request is skipped entirely.
	res, err = q.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SyncResult{}, res)
	assert.Equal(t, 1, doer.count())

	// After the window it is retried.
	q.now = func() time.Time { return start.Add(backoffBase + time.Second) }
	res, err = q.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Attempted)
	assert.Equal(t, 2, doer.count())
}

func TestSyncDeadLettersAfterMaxRetries(t *testing.T) {
	doer := &fakeDoer{status: http.StatusInternalServerError}
	q := newTestQueue(t, doer)

	clock := time.Now()
	q.now = func() time.Time { return clock }

	id, err := q.Add("http://hub/api/tasks", http.MethodPost, nil, []byte(`{}`))
	require.NoError(t, err)

	for range MaxRetries {
		res, err := q.Sync(context.Background())
		require.NoError(t, err)
		require.Equal(t, 1, res.Attempted)
		clock = clock.Add(2 * backoffCap)
	}

	pending, err := q.Pending()
	require.NoError(t, err)
	assert.Empty(t, pending)

	dead, err := q.DeadLetters()
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, id, dead[0].ID)
	assert.Equal(t, MaxRetries, dead[0].RetryCount)

	// Dead letters are never replayed again.
	res, err := q.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SyncResult{}, res)
	assert.Equal(t, MaxRetries, doer.count())
}

func TestSyncSkipsWhileOffline(t *testing.T) {
	doer := &fakeDoer{}
	q := newTestQueue(t, doer)
	q.online.Store(false)

	_, err := q.Add("http://hub/api/tasks", http.MethodPost, nil, []byte(`{}`))
	require.NoError(t, err)

	res, err := q.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SyncResult{}, res)
	assert.Equal(t, 0, doer.count())
}

func TestSetOnlineTriggersFlush(t *testing.T) {
	doer := &fakeDoer{}
	q := newTestQueue(t, doer)

	q.SetOnline(false)
	_, err := q.Add("http://hub/api/tasks", http.MethodPost, nil, []byte(`{}`))
	require.NoError(t, err)

	q.SetOnline(true)

	require.Eventually(t, func() bool {
		pending, err := q.Pending()
		return err == nil && len(pending) == 0
	}, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, 1, doer.count())
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	assert.Equal(t, 2*time.Second, backoff(1))
	assert.Equal(t, 4*time.Second, backoff(2))
	assert.Equal(t, 8*time.Second, backoff(3))
	assert.Equal(t, backoffCap, backoff(6))
	assert.Equal(t, backoffCap, backoff(40))
}
