package account

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no identity matches the lookup.
	ErrNotFound = errors.New("identity not found")

	// ErrDuplicateEmail is returned by Create when the email is taken.
	ErrDuplicateEmail = errors.New("email already registered")
)

// TwoFactorParams carries the full two-factor configuration written by
// SetTwoFactor.
type TwoFactorParams struct {
	Enabled     bool
	Method      string
	Secret      string
	BackupCodes []string
}

// Store is the credential-store collaborator: lookup and update of
// identity records and their embedded security state.
//
// The security-state mutators are atomic at the store level.
// IncrementFailedAttempts in particular must be an atomic
// increment-and-fetch: two concurrent failed attempts reading the same
// stale counter would otherwise both miss the lock threshold.
type Store interface {
	Create(ctx context.Context, identity Identity) (Identity, error)
	FindByEmail(ctx context.Context, email string) (Identity, error)
	FindByID(ctx context.Context, id uuid.UUID) (Identity, error)

	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	SetVerified(ctx context.Context, id uuid.UUID) error

	// IncrementFailedAttempts atomically increments the counter and, when
	// the new value reaches maxAttempts, sets the lock with
	// lockUntil = now + lockDuration in the same operation. It returns the
	// post-increment counter and whether the account is now locked.
	IncrementFailedAttempts(ctx context.Context, id uuid.UUID, maxAttempts int32, lockDuration time.Duration) (int32, bool, error)

	// ResetFailedAttempts zeroes the counter and clears any lock.
	ResetFailedAttempts(ctx context.Context, id uuid.UUID) error

	SetTwoFactor(ctx context.Context, id uuid.UUID, params TwoFactorParams) error
	ReplaceBackupCodes(ctx context.Context, id uuid.UUID, codes []string) error

	AddTrustedDevice(ctx context.Context, id uuid.UUID, dev TrustedDevice) error
	RemoveTrustedDevice(ctx context.Context, id uuid.UUID, deviceID string) error
	TouchTrustedDevice(ctx context.Context, id uuid.UUID, deviceID string, at time.Time) error
}
