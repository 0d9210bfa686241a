// Package memory keeps sessions in process memory. Sessions are lost on
// restart and are not shared between instances.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pr-poehali-dev/zdrav-project/internal/domain"
	apperrors "github.com/pr-poehali-dev/zdrav-project/pkg/errors"
)

// SessionRepository implements repository.SessionRepository with a map.
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	nowFunc  func() time.Time
}

// NewSessionRepository creates an empty in-memory repository.
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{
		sessions: make(map[string]*domain.Session),
		nowFunc:  time.Now,
	}
}

// Get returns a copy of the session. Expired sessions are evicted and
// reported as not found.
func (r *SessionRepository) Get(_ context.Context, id string) (*domain.Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()

	if !ok {
		return nil, apperrors.NotFound("session", id)
	}
	if s.Expired(r.nowFunc()) {
		r.mu.Lock()
		if cur, ok := r.sessions[id]; ok && cur == s {
			delete(r.sessions, id)
		}
		r.mu.Unlock()
		return nil, apperrors.NotFound("session", id)
	}
	return s.Clone(), nil
}

// Save stores a copy of the session.
func (r *SessionRepository) Save(_ context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s.Clone()
	return nil
}

// Delete removes the session.
func (r *SessionRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

// Ping always succeeds.
func (r *SessionRepository) Ping(context.Context) error { return nil }

// Len returns the number of stored sessions, expired ones included.
func (r *SessionRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep evicts every expired session and returns how many were removed.
func (r *SessionRepository) Sweep() int {
	now := r.nowFunc()

	r.mu.Lock()
	defer r.mu.Unlock()

	var n int
	for id, s := range r.sessions {
		if s.Expired(now) {
			delete(r.sessions, id)
			n++
		}
	}
	return n
}

// RunJanitor sweeps expired sessions every interval until ctx is done.
func (r *SessionRepository) RunJanitor(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				logger.Debug("expired sessions evicted", slog.Int("count", n))
			}
		}
	}
}
