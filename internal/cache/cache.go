// Package cache implements an in-memory TTL cache with
// stale-while-revalidate semantics and a periodic expiry sweep.
//
// Entries are served while unexpired. Entries older than the stale window
// are still returned immediately, but trigger a single non-blocking
// background refresh. A failed fetch falls back to existing data for the
// same version when any is present, preferring degraded availability over
// a hard failure.
package cache

import (
	"context"
	"regexp"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultTTL is the hard expiry applied when options leave TTL unset.
	DefaultTTL = 5 * time.Minute
	// StaleWindow is the age past which an entry triggers background refresh.
	StaleWindow = 2 * time.Minute
	// SweepInterval is how often expired entries are removed regardless of access.
	SweepInterval = time.Minute
)

// Fetcher loads a fresh value on cache miss or background refresh.
type Fetcher func(ctx context.Context) (any, error)

// Options adjust a single Get call.
type Options struct {
	// TTL is the hard expiry. Zero means DefaultTTL.
	TTL time.Duration
	// Version namespaces the entry. A stored entry with a different
	// version never matches, which invalidates old data implicitly.
	Version string
	// DisableStaleRefresh turns off the background revalidation.
	DisableStaleRefresh bool
}

// entry is a stored value with its freshness metadata.
type entry struct {
	data      any
	timestamp time.Time
	expiresAt time.Time
	version   string
}

// Manager is a mutex-guarded TTL cache safe for concurrent use.
type Manager struct {
	mu         sync.Mutex
	entries    map[string]entry
	refreshing map[string]bool

	log  *zap.Logger
	now  func() time.Time
	stop chan struct{}
	once sync.Once
}

// New creates a Manager and starts its background sweep goroutine.
// Call Close to stop the sweep.
func New(log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{
		entries:    make(map[string]entry),
		refreshing: make(map[string]bool),
		log:        log,
		now:        time.Now,
		stop:       make(chan struct{}),
	}
	go m.sweepLoop()
	return m
}

// Close stops the background sweep.
func (m *Manager) Close() {
	m.once.Do(func() { close(m.stop) })
}

// Get returns the cached value for key, or fetches it with fetcher.
//
// Behavior by entry age:
//   - younger than StaleWindow: returned as-is, fetcher not called
//   - past StaleWindow but unexpired: returned immediately, exactly one
//     background fetcher call refreshes the entry; refresh failures are
//     logged and not surfaced
//   - expired or absent: fetcher is awaited; on failure an existing entry
//     for the same version is returned as a degraded fallback, otherwise
//     the error propagates
func (m *Manager) Get(ctx context.Context, key string, fetcher Fetcher, opts Options) (any, error) {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	m.mu.Lock()
	ent, ok := m.entries[key]
	now := m.now()
	if ok && ent.version == opts.Version && now.Before(ent.expiresAt) {
		age := now.Sub(ent.timestamp)
		if age >= StaleWindow && !opts.DisableStaleRefresh && !m.refreshing[key] {
			m.refreshing[key] = true
			go m.refresh(key, fetcher, ttl, opts.Version)
		}
		m.mu.Unlock()
		return ent.data, nil
	}
	m.mu.Unlock()

	data, err := fetcher(ctx)
	if err != nil {
		// Serve whatever we still hold for this version over failing hard.
		m.mu.Lock()
		ent, ok := m.entries[key]
		m.mu.Unlock()
		if ok && ent.version == opts.Version {
			m.log.Warn("cache fetch failed, serving stale data",
				zap.String("key", key), zap.Error(err))
			return ent.data, nil
		}
		return nil, err
	}

	m.store(key, data, ttl, opts.Version)
	return data, nil
}

// refresh runs the background revalidation for a stale entry.
func (m *Manager) refresh(key string, fetcher Fetcher, ttl time.Duration, version string) {
	defer func() {
		m.mu.Lock()
		delete(m.refreshing, key)
		m.mu.Unlock()
	}()

	data, err := fetcher(context.Background())
	if err != nil {
		m.log.Warn("cache background refresh failed",
			zap.String("key", key), zap.Error(err))
		return
	}
	m.store(key, data, ttl, version)
}

func (m *Manager) store(key string, data any, ttl time.Duration, version string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.entries[key] = entry{
		data:      data,
		timestamp: now,
		expiresAt: now.Add(ttl),
		version:   version,
	}
}

// Invalidate removes a single entry.
func (m *Manager) Invalidate(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

// InvalidatePattern removes all entries whose key matches re.
func (m *Manager) InvalidatePattern(re *regexp.Regexp) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.entries {
		if re.MatchString(key) {
			delete(m.entries, key)
		}
	}
}

// Clear empties the whole cache.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]entry)
}

// Len reports the number of stored entries, expired or not.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// sweepLoop removes expired entries every SweepInterval, bounding
// memory growth for keys that are never read again.
func (m *Manager) sweepLoop() {
	ticker := time.NewTicker(SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Manager) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for key, ent := range m.entries {
		if !now.Before(ent.expiresAt) {
			delete(m.entries, key)
		}
	}
}
