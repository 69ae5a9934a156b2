package loginattempt

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence port for the login-attempt ledger.
type Repository interface {
	Record(ctx context.Context, attempt Attempt) error

	// CountRecentFailuresByIP counts failed attempts from the given IP
	// since the cutoff, across all emails.
	CountRecentFailuresByIP(ctx context.Context, ip string, since time.Time) (int64, error)

	// LastSuccess returns the most recent successful attempt for the
	// user, or found=false when the user has never logged in.
	LastSuccess(ctx context.Context, userID uuid.UUID) (Attempt, bool, error)

	// ListRecent returns the newest attempts for an email, most recent
	// first, capped at limit.
	ListRecent(ctx context.Context, email string, limit int) ([]Attempt, error)

	// DeleteOlderThan removes ledger entries created before the cutoff
	// and returns how many were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
