package repository

import (
	"context"

	"github.com/pr-poehali-dev/zdrav-project/internal/domain"
)

// SessionRepository stores storefront sessions by ID. Implementations expire
// sessions after their TTL and return copies, never shared pointers.
type SessionRepository interface {
	// Get returns the session, or an apperrors.NotFound error when it does
	// not exist or has expired.
	Get(ctx context.Context, id string) (*domain.Session, error)

	// Save creates or overwrites the session.
	Save(ctx context.Context, s *domain.Session) error

	// Delete removes the session. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}
