// internal/handlers/session.go
package handlers

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/ammerola/medboard/internal/core/services"
	"github.com/ammerola/medboard/internal/handlers/middleware"
	"github.com/ammerola/medboard/internal/pkg/metrics"
)

// anonymousSession serves requests that arrive without a session cookie.
const anonymousSession = "anonymous"

// Session is the per-browser controller state
type Session struct {
	ID        string
	Inventory *services.InventoryController
	Queries   *services.QueryController
}

// SessionFactory builds the controllers for a new session id
type SessionFactory func(id string) *Session

// SessionRegistry keeps sessions in memory and drops them after ttl of
// inactivity. An evicted session has its in-flight query cancelled.
type SessionRegistry struct {
	mu      sync.Mutex
	cache   *cache.Cache
	ttl     time.Duration
	factory SessionFactory
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewSessionRegistry creates a registry. m may be nil.
func NewSessionRegistry(ttl time.Duration, factory SessionFactory, m *metrics.Metrics, logger *slog.Logger) *SessionRegistry {
	r := &SessionRegistry{
		cache:   cache.New(ttl, ttl/2),
		ttl:     ttl,
		factory: factory,
		metrics: m,
		logger:  logger.With(slog.String("component", "sessions")),
	}
	r.cache.OnEvicted(func(id string, v interface{}) {
		if s, ok := v.(*Session); ok && s.Queries != nil {
			s.Queries.Cancel()
		}
		r.metrics.SetActiveSessions(r.cache.ItemCount())
		r.logger.Debug("session evicted", slog.String("session_id", id))
	})
	return r
}

// Get returns the session for id, creating it on first use. Each call
// extends the session's lifetime.
func (r *SessionRegistry) Get(id string) *Session {
	if id == "" {
		id = anonymousSession
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.cache.Get(id); ok {
		s := v.(*Session)
		r.cache.Set(id, s, r.ttl)
		return s
	}

	s := r.factory(id)
	s.ID = id
	r.cache.Set(id, s, r.ttl)
	r.metrics.SetActiveSessions(r.cache.ItemCount())
	r.logger.Debug("session created", slog.String("session_id", id))
	return s
}

// FromRequest returns the session named by the request's session cookie
func (r *SessionRegistry) FromRequest(req *http.Request) *Session {
	return r.Get(middleware.SessionIDFrom(req.Context()))
}

// ClientID is the key the persistent stores use for the request's browser
func ClientID(req *http.Request) string {
	if id := middleware.SessionIDFrom(req.Context()); id != "" {
		return id
	}
	return anonymousSession
}

// Len returns the number of live sessions
func (r *SessionRegistry) Len() int {
	return r.cache.ItemCount()
}

// Close cancels every session's in-flight query and empties the registry
func (r *SessionRegistry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.cache.Items() {
		r.cache.Delete(id)
	}
}
