package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eyetask/driverhub/internal/cache"
	"github.com/eyetask/driverhub/internal/client/queue"
)

func newReadCache(t *testing.T) *cache.Manager {
	t.Helper()
	m := cache.New(zap.NewNop())
	t.Cleanup(m.Close)
	return m
}

// downDoer simulates a dead network.
type downDoer struct{}

func (downDoer) Do(*http.Request) (*http.Response, error) {
	return nil, errors.New("connection refused")
}

func newOfflineClient(t *testing.T) (*Client, *queue.Queue) {
	t.Helper()
	q, err := queue.OpenInMemory(downDoer{}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })
	q.SetOnline(false)

	c := New("http://hub", downDoer{}, q, nil, zap.NewNop())
	return c, q
}

func TestOfflineMutationIsQueuedWithSyntheticAck(t *testing.T) {
	c, q := newOfflineClient(t)
	c.SetToken("tok")

	resp, err := c.Do(context.Background(), http.MethodPost, "/api/tasks", []byte(`{"title":"a"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var ack queuedAck
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ack))
	assert.True(t, ack.Success)
	assert.True(t, ack.Queued)
	require.NotEmpty(t, ack.ID)

	pending, err := q.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, ack.ID, pending[0].ID)
	assert.Equal(t, "http://hub/api/tasks", pending[0].URL)
	assert.Equal(t, "Bearer tok", pending[0].Headers["Authorization"])
}

func TestOfflineGetIsNeverQueued(t *testing.T) {
	c, q := newOfflineClient(t)

	_, err := c.Do(context.Background(), http.MethodGet, "/api/tasks", nil)
	require.Error(t, err)

	pending, err := q.Pending()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestFailedMutationGoesOfflineAndQueues(t *testing.T) {
	q, err := queue.OpenInMemory(downDoer{}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })

	// Queue believes it is online; the transport is down.
	c := New("http://hub", downDoer{}, q, nil, zap.NewNop())

	resp, err := c.Do(context.Background(), http.MethodPost, "/api/tasks", []byte(`{}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.False(t, q.Online())
}

func TestLoginStoresToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/login", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{"token":"issued-token"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client(), nil, nil, zap.NewNop())
	require.NoError(t, c.Login(context.Background(), "dana", "s3cret"))
	assert.Equal(t, "issued-token", c.token)
}

func TestGetJSONDecodesEnvelopeAndCaches(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":[{"id":"t-1","title":"deliver"}]}`))
	}))
	defer srv.Close()

	readCache := newReadCache(t)
	c := New(srv.URL, srv.Client(), nil, readCache, zap.NewNop())

	var tasks []struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
	require.NoError(t, c.GetJSON(context.Background(), "/api/tasks", &tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, "t-1", tasks[0].ID)

	// The second read is served from cache.
	require.NoError(t, c.GetJSON(context.Background(), "/api/tasks", &tasks))
	assert.Equal(t, int32(1), hits.Load())
}

func TestGetJSONSurfacesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"success":false,"error":"forbidden"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client(), nil, nil, zap.NewNop())
	err := c.GetJSON(context.Background(), "/api/tasks", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "forbidden")
}

func TestStatusReportsLocalStores(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":[]}`))
	}))
	defer srv.Close()

	q, err := queue.OpenInMemory(srv.Client(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })

	readCache := newReadCache(t)
	c := New(srv.URL, srv.Client(), q, readCache, zap.NewNop())

	st, err := c.Status()
	require.NoError(t, err)
	assert.True(t, st.Online)
	assert.Equal(t, 0, st.CachedResponses)
	assert.Equal(t, 0, st.PendingRequests)

	// A read populates the response cache; a queued mutation shows up
	// as a pending request.
	require.NoError(t, c.GetJSON(context.Background(), "/api/tasks", nil))
	q.SetOnline(false)
	resp, err := c.Do(context.Background(), http.MethodPost, "/api/tasks", []byte(`{}`))
	require.NoError(t, err)
	resp.Body.Close()

	st, err = c.Status()
	require.NoError(t, err)
	assert.False(t, st.Online)
	assert.Equal(t, 1, st.CachedResponses)
	assert.Equal(t, 1, st.PendingRequests)
	assert.Equal(t, 0, st.DeadLetters)
}

func TestStatusWithoutLocalStores(t *testing.T) {
	c := New("http://hub", downDoer{}, nil, nil, zap.NewNop())
	st, err := c.Status()
	require.NoError(t, err)
	assert.True(t, st.Online)
	assert.Equal(t, 0, st.CachedResponses)
}

func TestFetchVisitorNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client(), nil, nil, zap.NewNop())
	_, found, err := c.FetchVisitor(context.Background(), "v-1")
	require.NoError(t, err)
	assert.False(t, found)
}
