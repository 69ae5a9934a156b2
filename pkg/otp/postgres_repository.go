package otp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements Repository using PostgreSQL. It
// expects an otp_challenges table with the columns named in Create.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL challenge repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Create(ctx context.Context, challenge Challenge) error {
	query := `
		INSERT INTO otp_challenges (
			id, user_id, email, code, purpose, attempts, verified,
			expires_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	if challenge.ID == uuid.Nil {
		challenge.ID = uuid.New()
	}
	if challenge.CreatedAt.IsZero() {
		challenge.CreatedAt = time.Now().UTC()
	}

	_, err := r.pool.Exec(ctx, query,
		challenge.ID,
		challenge.UserID,
		challenge.Email,
		challenge.Code,
		challenge.Purpose,
		challenge.Attempts,
		challenge.Verified,
		challenge.ExpiresAt,
		challenge.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create challenge: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindActive(ctx context.Context, userID uuid.UUID, purpose Purpose) (Challenge, error) {
	query := `
		SELECT id, user_id, email, code, purpose, attempts, verified,
		       expires_at, created_at
		FROM otp_challenges
		WHERE user_id = $1
		  AND purpose = $2
		  AND verified = FALSE
		  AND expires_at > NOW()
		ORDER BY created_at DESC
		LIMIT 1
	`

	var c Challenge
	err := r.pool.QueryRow(ctx, query, userID, purpose).Scan(
		&c.ID,
		&c.UserID,
		&c.Email,
		&c.Code,
		&c.Purpose,
		&c.Attempts,
		&c.Verified,
		&c.ExpiresAt,
		&c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Challenge{}, ErrNotFound
		}
		return Challenge{}, fmt.Errorf("failed to find challenge: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) IncrementAttempts(ctx context.Context, id uuid.UUID, maxAttempts int32) (int32, error) {
	// The attempts < max guard makes the budget enforcement part of the
	// UPDATE itself: concurrent guesses that all read the same snapshot
	// cannot each push the counter past the budget.
	query := `
		UPDATE otp_challenges
		SET attempts = attempts + 1
		WHERE id = $1
		  AND verified = FALSE
		  AND attempts < $2
		RETURNING attempts
	`

	var attempts int32
	if err := r.pool.QueryRow(ctx, query, id, maxAttempts).Scan(&attempts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAttemptsExhausted
		}
		return 0, fmt.Errorf("failed to increment challenge attempts: %w", err)
	}
	return attempts, nil
}

func (r *PostgresRepository) MarkVerified(ctx context.Context, id uuid.UUID, maxAttempts int32) error {
	query := `
		UPDATE otp_challenges
		SET verified = TRUE
		WHERE id = $1
		  AND verified = FALSE
		  AND attempts < $2
	`

	result, err := r.pool.Exec(ctx, query, id, maxAttempts)
	if err != nil {
		return fmt.Errorf("failed to mark challenge verified: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrAttemptsExhausted
	}
	return nil
}

func (r *PostgresRepository) InvalidateActive(ctx context.Context, userID uuid.UUID, purpose Purpose) error {
	query := `
		UPDATE otp_challenges
		SET expires_at = NOW()
		WHERE user_id = $1
		  AND purpose = $2
		  AND verified = FALSE
		  AND expires_at > NOW()
	`

	_, err := r.pool.Exec(ctx, query, userID, purpose)
	if err != nil {
		return fmt.Errorf("failed to invalidate challenges: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM otp_challenges WHERE expires_at < $1`

	result, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired challenges: %w", err)
	}
	return result.RowsAffected(), nil
}
