// Package queue implements the persistent offline request queue.
//
// Mutating API calls attempted while offline are stored in an embedded
// BadgerDB and replayed in timestamp order once connectivity returns.
// Replay is serialized: concurrent Sync calls collapse into a single
// in-flight flush so a queued mutation is never submitted twice.
package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	pendingPrefix = "queue/"
	deadPrefix    = "dead/"

	// MaxRetries bounds replay attempts per request; requests that
	// exhaust it move to the dead-letter set.
	MaxRetries = 5

	// backoffBase and backoffCap shape the exponential delay between
	// replay attempts for a failing request.
	backoffBase = 2 * time.Second
	backoffCap  = time.Minute

	// reconnectDelay defers the automatic flush after going online so
	// flapping connectivity does not hammer the server.
	reconnectDelay = 2 * time.Second
)

// Request is a deferred mutating HTTP call.
type Request struct {
	ID         string            `json:"id"`
	URL        string            `json:"url"`
	Method     string            `json:"method"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       []byte            `json:"body,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
	RetryCount int               `json:"retryCount"`
	// NextAttempt is the earliest time the next replay may run,
	// derived from RetryCount with exponential backoff.
	NextAttempt time.Time `json:"nextAttempt"`
	// LastError records why the most recent replay failed.
	LastError string `json:"lastError,omitempty"`
}

// SyncResult summarizes one flush pass.
type SyncResult struct {
	Attempted    int
	Replayed     int
	Failed       int
	DeadLettered int
}

// Doer abstracts the HTTP client used for replay.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Queue is the badger-backed offline request queue.
type Queue struct {
	db     *badger.DB
	client Doer
	log    *zap.Logger

	online         atomic.Bool
	syncInProgress atomic.Bool
	now            func() time.Time
}

// Open opens a persistent queue at path.
func Open(path string, client Doer, log *zap.Logger) (*Queue, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	return open(opts, client, log)
}

// OpenInMemory opens a queue that is lost on close, for tests.
func OpenInMemory(client Doer, log *zap.Logger) (*Queue, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	return open(opts, client, log)
}

func open(opts badger.Options, client Doer, log *zap.Logger) (*Queue, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open queue store: %w", err)
	}
	q := &Queue{db: db, client: client, log: log, now: time.Now}
	q.online.Store(true)
	return q, nil
}

// Close closes the underlying store.
func (q *Queue) Close() error {
	return q.db.Close()
}

// Online reports the last known connectivity state.
func (q *Queue) Online() bool {
	return q.online.Load()
}

// SetOnline records a connectivity transition. Going from offline to
// online schedules an automatic flush after a short delay.
func (q *Queue) SetOnline(online bool) {
	was := q.online.Swap(online)
	if online && !was {
		go func() {
			time.Sleep(reconnectDelay)
			if _, err := q.Sync(context.Background()); err != nil {
				q.log.Warn("automatic queue flush failed", zap.Error(err))
			}
		}()
	}
}

// Add persists a request with a generated id and timestamp and returns
// the id.
func (q *Queue) Add(url, method string, headers map[string]string, body []byte) (string, error) {
	req := Request{
		ID:        uuid.NewString(),
		URL:       url,
		Method:    method,
		Headers:   headers,
		Body:      body,
		Timestamp: q.now(),
	}
	if err := q.put(pendingPrefix, req); err != nil {
		return "", err
	}
	return req.ID, nil
}

// Pending returns the queued requests in submission order.
func (q *Queue) Pending() ([]Request, error) {
	return q.list(pendingPrefix)
}

// DeadLetters returns requests that exhausted their retries, for
// surfacing to the user.
func (q *Queue) DeadLetters() ([]Request, error) {
	return q.list(deadPrefix)
}

// Sync replays pending requests in submission order. At most one flush
// runs at a time; a call that loses the race returns immediately with
// an empty result. Requests still inside their backoff window are
// skipped until a later pass.
func (q *Queue) Sync(ctx context.Context) (SyncResult, error) {
	var res SyncResult
	if !q.syncInProgress.CompareAndSwap(false, true) {
		return res, nil
	}
	defer q.syncInProgress.Store(false)

	if !q.Online() {
		return res, nil
	}

	pending, err := q.Pending()
	if err != nil {
		return res, err
	}

	now := q.now()
	for _, req := range pending {
		if now.Before(req.NextAttempt) {
			continue
		}
		res.Attempted++

		if err := q.replay(ctx, req); err != nil {
			req.RetryCount++
			req.LastError = err.Error()
			if req.RetryCount >= MaxRetries {
				res.DeadLettered++
				q.log.Warn("queued request dead-lettered",
					zap.String("id", req.ID), zap.String("url", req.URL), zap.Error(err))
				if err := q.move(req, deadPrefix); err != nil {
					return res, err
				}
				continue
			}
			res.Failed++
			req.NextAttempt = now.Add(backoff(req.RetryCount))
			q.log.Warn("queued request replay failed",
				zap.String("id", req.ID), zap.Int("retryCount", req.RetryCount), zap.Error(err))
			if err := q.put(pendingPrefix, req); err != nil {
				return res, err
			}
			continue
		}

		res.Replayed++
		if err := q.delete(pendingPrefix, req.ID); err != nil {
			return res, err
		}
	}
	return res, nil
}

// replay submits one stored request. Any transport error or 5xx status
// counts as a failure; 4xx responses are treated as permanently
// rejected and reported as errors too, consuming a retry.
func (q *Queue) replay(ctx context.Context, req Request) error {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	resp, err := q.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("replay: server returned %s", resp.Status)
	}
	return nil
}

func (q *Queue) put(prefix string, req Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	err = q.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefix+req.ID), data)
	})
	if err != nil {
		return fmt.Errorf("store request: %w", err)
	}
	return nil
}

func (q *Queue) delete(prefix, id string) error {
	err := q.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(prefix + id))
	})
	if err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	return nil
}

// move transfers a request between prefixes atomically.
func (q *Queue) move(req Request, toPrefix string) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	err = q.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(pendingPrefix + req.ID)); err != nil {
			return err
		}
		return txn.Set([]byte(toPrefix+req.ID), data)
	})
	if err != nil {
		return fmt.Errorf("move request: %w", err)
	}
	return nil
}

func (q *Queue) list(prefix string) ([]Request, error) {
	var requests []Request
	err := q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var req Request
				if err := json.Unmarshal(val, &req); err != nil {
					return fmt.Errorf("decode request: %w", err)
				}
				requests = append(requests, req)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(requests, func(i, j int) bool {
		return requests[i].Timestamp.Before(requests[j].Timestamp)
	})
	return requests, nil
}

// backoff returns the delay before the next attempt for a request that
// has failed retryCount times.
func backoff(retryCount int) time.Duration {
	d := backoffBase << (retryCount - 1)
	if d > backoffCap || d <= 0 {
		return backoffCap
	}
	return d
}
