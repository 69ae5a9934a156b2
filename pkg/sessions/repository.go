package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no session matches the lookup.
var ErrNotFound = errors.New("session not found")

// Repository is the persistence port for sessions. Revocation flips
// is_active off; expired rows are physically removed by DeleteExpired.
type Repository interface {
	Create(ctx context.Context, session Session) error

	// FindByTokenHash returns the session with the given refresh-secret
	// digest regardless of state. Callers check validity.
	FindByTokenHash(ctx context.Context, tokenHash string) (Session, error)

	// Touch bumps last_used_at.
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error

	// DeactivateByTokenHash revokes the session; an unknown hash is a
	// no-op.
	DeactivateByTokenHash(ctx context.Context, tokenHash string) error

	// Deactivate revokes the session by ID, scoped to the owning user.
	// It returns ErrNotFound when the session does not exist or belongs
	// to someone else.
	Deactivate(ctx context.Context, userID, id uuid.UUID) error

	// DeactivateAllForUser revokes every active session of the user and
	// returns how many were revoked.
	DeactivateAllForUser(ctx context.Context, userID uuid.UUID) (int64, error)

	// ListActiveForUser returns the user's valid sessions, newest first.
	ListActiveForUser(ctx context.Context, userID uuid.UUID) ([]Session, error)

	// DeleteExpired removes sessions past their deadline and returns how
	// many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
