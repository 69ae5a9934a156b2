package otp

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no active challenge matches.
	ErrNotFound = errors.New("challenge not found")

	// ErrAttemptsExhausted is returned when a guarded write is refused
	// because the challenge is already verified or out of attempts.
	ErrAttemptsExhausted = errors.New("challenge attempts exhausted")
)

// Repository is the persistence port for outstanding challenges.
type Repository interface {
	Create(ctx context.Context, challenge Challenge) error

	// FindActive returns the newest unverified, unexpired challenge for
	// the user and purpose, or ErrNotFound.
	FindActive(ctx context.Context, userID uuid.UUID, purpose Purpose) (Challenge, error)

	// IncrementAttempts atomically bumps the attempt counter and returns
	// the new value. The increment is refused with ErrAttemptsExhausted
	// once the challenge is verified or maxAttempts have been recorded,
	// so concurrent guesses cannot push the counter past the budget.
	IncrementAttempts(ctx context.Context, id uuid.UUID, maxAttempts int32) (int32, error)

	// MarkVerified marks the challenge consumed. It is guarded the same
	// way as IncrementAttempts: a challenge that is already verified or
	// out of attempts returns ErrAttemptsExhausted.
	MarkVerified(ctx context.Context, id uuid.UUID, maxAttempts int32) error

	// InvalidateActive expires any outstanding challenges for the user
	// and purpose, so reissuing leaves a single live code.
	InvalidateActive(ctx context.Context, userID uuid.UUID, purpose Purpose) error

	// DeleteExpired removes challenges past their deadline and returns
	// how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
