// Package visitor maintains the device's visitor identity: a stable
// visitor id, a per-process session id, and the registered display
// name. State lives in a local JSON file and is reconciled against the
// server, which is authoritative for registration.
package visitor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eyetask/driverhub/internal/models"
)

const (
	// minReconcileInterval throttles on-demand reconciles so rapid
	// navigation does not turn into a poll loop.
	minReconcileInterval = 10 * time.Second

	// autoReconcileInterval is the background reconcile period.
	autoReconcileInterval = time.Minute
)

// State is the persisted identity snapshot.
type State struct {
	VisitorID    string    `json:"visitorId"`
	Name         string    `json:"name,omitempty"`
	IsRegistered bool      `json:"isRegistered"`
	LastSyncedAt time.Time `json:"lastSyncedAt,omitempty"`
}

// API is the server surface the tracker needs.
type API interface {
	FetchVisitor(ctx context.Context, visitorID string) (models.Visitor, bool, error)
	RegisterVisitor(ctx context.Context, visitorID, name string) error
}

// Tracker owns the local identity file.
type Tracker struct {
	mu        sync.Mutex
	path      string
	state     State
	sessionID string
	api       API
	log       *zap.Logger

	lastReconcile time.Time
	now           func() time.Time
}

// New loads (or creates) the identity stored at path and starts a
// fresh session id.
func New(path string, api API, log *zap.Logger) (*Tracker, error) {
	if log == nil {
		log = zap.NewNop()
	}
	t := &Tracker{
		path:      path,
		sessionID: uuid.NewString(),
		api:       api,
		log:       log,
		now:       time.Now,
	}
	if err := t.load(); err != nil {
		return nil, err
	}
	if t.state.VisitorID == "" {
		t.state.VisitorID = uuid.NewString()
		if err := t.save(); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// VisitorID returns the stable device identity.
func (t *Tracker) VisitorID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.VisitorID
}

// SessionID returns the id generated for this process.
func (t *Tracker) SessionID() string {
	return t.sessionID
}

// Current returns a copy of the persisted state.
func (t *Tracker) Current() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Register submits the name to the server and, only once the server
// accepts, records it locally. A failed call leaves local state
// untouched so the two sides never disagree in the local-ahead
// direction.
func (t *Tracker) Register(ctx context.Context, name string) error {
	t.mu.Lock()
	visitorID := t.state.VisitorID
	t.mu.Unlock()

	if err := t.api.RegisterVisitor(ctx, visitorID, name); err != nil {
		return fmt.Errorf("register visitor: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.Name = name
	t.state.IsRegistered = true
	t.state.LastSyncedAt = t.now()
	return t.save()
}

// Reconcile pulls the server's view and makes local state match it.
// The server wins in both directions: a name the server no longer has
// clears all local registration state, and a differing server name
// overwrites the local one. Calls within the throttle window are
// no-ops.
func (t *Tracker) Reconcile(ctx context.Context) error {
	t.mu.Lock()
	if t.now().Sub(t.lastReconcile) < minReconcileInterval {
		t.mu.Unlock()
		return nil
	}
	t.lastReconcile = t.now()
	visitorID := t.state.VisitorID
	t.mu.Unlock()

	remote, found, err := t.api.FetchVisitor(ctx, visitorID)
	if err != nil {
		return fmt.Errorf("fetch visitor: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !found || remote.Name == "" {
		if t.state.Name == "" && !t.state.IsRegistered {
			return nil
		}
		t.log.Info("registration revoked on server, clearing local identity name",
			zap.String("visitorId", visitorID))
		t.state.Name = ""
		t.state.IsRegistered = false
		t.state.LastSyncedAt = t.now()
		return t.save()
	}

	if t.state.Name == remote.Name && t.state.IsRegistered {
		return nil
	}
	t.state.Name = remote.Name
	t.state.IsRegistered = true
	t.state.LastSyncedAt = t.now()
	return t.save()
}

// StartAutoReconcile reconciles on a timer until ctx is cancelled.
func (t *Tracker) StartAutoReconcile(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(autoReconcileInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := t.Reconcile(ctx); err != nil {
					t.log.Warn("auto reconcile failed", zap.Error(err))
				}
			}
		}
	}()
}

func (t *Tracker) load() error {
	data, err := os.ReadFile(t.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read identity file: %w", err)
	}
	if err := json.Unmarshal(data, &t.state); err != nil {
		return fmt.Errorf("decode identity file: %w", err)
	}
	return nil
}

// save writes the state file. Callers must hold t.mu.
func (t *Tracker) save() error {
	data, err := json.MarshalIndent(t.state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode identity file: %w", err)
	}
	if dir := filepath.Dir(t.path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create identity dir: %w", err)
		}
	}
	if err := os.WriteFile(t.path, data, 0o640); err != nil {
		return fmt.Errorf("write identity file: %w", err)
	}
	return nil
}
