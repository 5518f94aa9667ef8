// Package broadcast implements the in-process fan-out layer: a registry of
// live client sessions, per-session subscription filters, and a broadcaster
// that delivers event envelopes to every matching session. Fan-out is
// single-process and in-memory only; there is no durable log and no delivery
// acknowledgment.
package broadcast

import (
	"sync"
	"time"
)

// Conn is the transport a session writes to. The websocket handler adapts
// *websocket.Conn; tests supply fakes.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// Session is one live client connection and its optional subscription.
type Session struct {
	ID        string
	Conn      Conn
	CreatedAt time.Time

	mu    sync.Mutex
	alive bool
	sub   *Subscription
}

// Alive reports whether the session is still registered and writable.
func (s *Session) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alive
}

// Subscription returns the session's current filter, or nil if it has none.
func (s *Session) Subscription() *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sub
}

// setSubscription swaps the session's filter atomically. A nil value clears it.
func (s *Session) setSubscription(sub *Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sub = sub
}

func (s *Session) markDead() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alive = false
	s.sub = nil
}

// Registry tracks live sessions. All access goes through its API; the
// internal map is never exposed.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Register adds a session for the given connection. Registering an id that is
// already present replaces the stale entry; the previous connection is closed.
func (r *Registry) Register(sessionID string, conn Conn) *Session {
	sess := &Session{
		ID:        sessionID,
		Conn:      conn,
		CreatedAt: time.Now(),
		alive:     true,
	}

	r.mu.Lock()
	prev := r.sessions[sessionID]
	r.sessions[sessionID] = sess
	r.mu.Unlock()

	if prev != nil {
		prev.markDead()
		if prev.Conn != nil {
			_ = prev.Conn.Close()
		}
	}
	return sess
}

// Unregister removes a session and clears its subscription. It is idempotent:
// unregistering an absent id is a no-op. The session's connection is closed so
// a transport error path tears the peer down even if no close frame arrived.
func (r *Registry) Unregister(sessionID string) {
	r.mu.Lock()
	sess, ok := r.sessions[sessionID]
	if ok {
		delete(r.sessions, sessionID)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	sess.markDead()
	if sess.Conn != nil {
		_ = sess.Conn.Close()
	}
}

// Get returns the session for an id, or nil if it is not registered.
func (r *Registry) Get(sessionID string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[sessionID]
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// ForEach calls fn for every session. Iteration works on a snapshot taken
// under the read lock, so a concurrent Register or Unregister never exposes a
// session mid-mutation. When liveOnly is set, sessions already marked dead
// are skipped.
func (r *Registry) ForEach(liveOnly bool, fn func(*Session)) {
	r.mu.RLock()
	snapshot := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		snapshot = append(snapshot, sess)
	}
	r.mu.RUnlock()

	for _, sess := range snapshot {
		if liveOnly && !sess.Alive() {
			continue
		}
		fn(sess)
	}
}
