// Package api provides the offline-aware HTTP client used by the
// agent. Mutations attempted while offline are diverted into the
// persistent queue and acknowledged with a synthetic 202 response;
// reads are never queued and may be served from the local cache.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eyetask/driverhub/internal/cache"
	"github.com/eyetask/driverhub/internal/client/queue"
	"github.com/eyetask/driverhub/internal/models"
)

// readCacheTTL bounds how long GET responses are reused while the
// server remains reachable.
const readCacheTTL = time.Minute

// envelope mirrors the server's JSON response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// queuedAck is the body of the synthetic response returned for
// mutations accepted into the offline queue.
type queuedAck struct {
	Success bool   `json:"success"`
	Queued  bool   `json:"queued"`
	ID      string `json:"id"`
}

// Client talks to the hub API.
type Client struct {
	baseURL string
	token   string
	http    queue.Doer
	queue   *queue.Queue
	cache   *cache.Manager
	log     *zap.Logger
}

// New builds a client. The queue and cache are optional; without a
// queue offline mutations fail instead of deferring.
func New(baseURL string, httpClient queue.Doer, q *queue.Queue, c *cache.Manager, log *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		queue:   q,
		cache:   c,
		log:     log,
	}
}

// SetToken stores the bearer token attached to subsequent requests.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Status is a point-in-time view of the client's local stores, for
// diagnostic display only.
type Status struct {
	// Online reflects the queue's connectivity flag.
	Online bool
	// CachedResponses counts API responses currently held in the read
	// cache, stale entries included until the next sweep.
	CachedResponses int
	// PendingRequests and DeadLetters are the offline queue depths.
	PendingRequests int
	DeadLetters     int
}

// Status reports connectivity and local store depths. A client built
// without a queue reports itself online.
func (c *Client) Status() (Status, error) {
	st := Status{Online: true}
	if c.cache != nil {
		st.CachedResponses = c.cache.Len()
	}
	if c.queue != nil {
		st.Online = c.queue.Online()
		pending, err := c.queue.Pending()
		if err != nil {
			return st, fmt.Errorf("read queue: %w", err)
		}
		dead, err := c.queue.DeadLetters()
		if err != nil {
			return st, fmt.Errorf("read dead letters: %w", err)
		}
		st.PendingRequests = len(pending)
		st.DeadLetters = len(dead)
	}
	return st, nil
}

// Login authenticates and stores the returned token on the client.
func (c *Client) Login(ctx context.Context, username, password string) error {
	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	resp, err := c.send(ctx, http.MethodPost, "/api/login", body)
	if err != nil {
		return err
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := decodeEnvelope(resp, &out); err != nil {
		return err
	}
	c.token = out.Token
	return nil
}

// Do performs an API call. POST, PUT and DELETE issued while the
// client is offline are stored in the queue and answered with a
// synthetic 202; GET requests always hit the network.
func (c *Client) Do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	if isMutation(method) && c.queue != nil && !c.queue.Online() {
		return c.enqueue(method, path, body)
	}

	resp, err := c.send(ctx, method, path, body)
	if err != nil && isMutation(method) && c.queue != nil {
		c.queue.SetOnline(false)
		c.log.Info("request failed, going offline", zap.String("path", path), zap.Error(err))
		return c.enqueue(method, path, body)
	}
	return resp, err
}

// GetJSON fetches path and decodes the envelope's data field into out.
// Responses are cached briefly and served stale when the server is
// unreachable.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	fetch := func(ctx context.Context) (any, error) {
		resp, err := c.send(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		raw, err := readEnvelope(resp)
		if err != nil {
			return nil, err
		}
		return raw, nil
	}

	var raw json.RawMessage
	if c.cache != nil {
		v, err := c.cache.Get(ctx, "get:"+path, fetch, cache.Options{TTL: readCacheTTL})
		if err != nil {
			return err
		}
		raw = v.(json.RawMessage)
	} else {
		v, err := fetch(ctx)
		if err != nil {
			return err
		}
		raw = v.(json.RawMessage)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// FetchVisitor returns the server's record for a visitor id. found is
// false when the server does not know the id.
func (c *Client) FetchVisitor(ctx context.Context, visitorID string) (models.Visitor, bool, error) {
	resp, err := c.send(ctx, http.MethodGet, "/api/visitors/"+visitorID, nil)
	if err != nil {
		return models.Visitor{}, false, err
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return models.Visitor{}, false, nil
	}
	var v models.Visitor
	if err := decodeEnvelope(resp, &v); err != nil {
		return models.Visitor{}, false, err
	}
	return v, true, nil
}

// RegisterVisitor submits a visitor name. Registration is never
// queued; the caller only records it locally after the server accepts.
func (c *Client) RegisterVisitor(ctx context.Context, visitorID, name string) error {
	body, err := json.Marshal(map[string]string{"visitorId": visitorID, "name": name})
	if err != nil {
		return fmt.Errorf("encode visitor: %w", err)
	}
	resp, err := c.send(ctx, http.MethodPost, "/api/visitors", body)
	if err != nil {
		return err
	}
	return decodeEnvelope(resp, nil)
}

// LogVisit records a visit for analytics. Visits are best-effort and
// follow the normal offline queueing path.
func (c *Client) LogVisit(ctx context.Context, visitorID string) error {
	body, err := json.Marshal(map[string]string{"visitorId": visitorID})
	if err != nil {
		return fmt.Errorf("encode visit: %w", err)
	}
	resp, err := c.Do(ctx, http.MethodPost, "/api/analytics", body)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *Client) enqueue(method, path string, body []byte) (*http.Response, error) {
	headers := map[string]string{"Content-Type": "application/json"}
	if c.token != "" {
		headers["Authorization"] = "Bearer " + c.token
	}
	id, err := c.queue.Add(c.baseURL+path, method, headers, body)
	if err != nil {
		return nil, fmt.Errorf("queue request: %w", err)
	}

	ack, err := json.Marshal(queuedAck{Success: true, Queued: true, ID: id})
	if err != nil {
		return nil, fmt.Errorf("encode ack: %w", err)
	}
	return &http.Response{
		StatusCode: http.StatusAccepted,
		Status:     "202 Accepted",
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(ack)),
	}, nil
}

func (c *Client) send(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func isMutation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

// readEnvelope consumes a response body and returns the envelope data,
// converting error envelopes and non-2xx statuses into errors.
func readEnvelope(resp *http.Response) (json.RawMessage, error) {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode >= 400 || !env.Success {
		msg := env.Error
		if msg == "" {
			msg = resp.Status
		}
		return nil, fmt.Errorf("server error: %s", msg)
	}
	return env.Data, nil
}

func decodeEnvelope(resp *http.Response, out any) error {
	defer resp.Body.Close()
	data, err := readEnvelope(resp)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
