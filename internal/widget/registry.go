package widget

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ErrSessionNotFound is returned when a session id is unknown or expired.
var ErrSessionNotFound = errors.New("session not found")

// Registry tracks live widget sessions by id and evicts the ones that have
// gone quiet for longer than the TTL.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Flow
	ttl      time.Duration
	logger   *slog.Logger
}

// NewRegistry creates a session registry. Call Janitor to start eviction.
func NewRegistry(ttl time.Duration, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		sessions: make(map[string]*Flow),
		ttl:      ttl,
		logger:   logger.With("component", "session-registry"),
	}
}

// Add registers a new session and returns its id.
func (r *Registry) Add(f *Flow) string {
	id := ulid.Make().String()
	r.mu.Lock()
	r.sessions[id] = f
	r.mu.Unlock()
	return id
}

// Get returns the session for an id.
func (r *Registry) Get(id string) (*Flow, error) {
	r.mu.RLock()
	f, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return f, nil
}

// Remove closes and deletes a session. Removing an unknown id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	f, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		f.Close()
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Janitor evicts idle and closed sessions until the context is cancelled.
// Intended to run as a goroutine from main.
func (r *Registry) Janitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *Registry) sweep() {
	cutoff := time.Now().Add(-r.ttl)

	r.mu.Lock()
	var evicted []*Flow
	for id, f := range r.sessions {
		if f.State() == StateClosed || f.LastActive().Before(cutoff) {
			delete(r.sessions, id)
			evicted = append(evicted, f)
		}
	}
	remaining := len(r.sessions)
	r.mu.Unlock()

	for _, f := range evicted {
		f.Close()
	}
	if len(evicted) > 0 {
		r.logger.Debug("evicted idle sessions", "count", len(evicted), "remaining", remaining)
	}
}
