package loginattempt

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
// expects a login_attempts table with the columns named in Record.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL login-attempt ledger.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Record(ctx context.Context, attempt Attempt) error {
	query := `
		INSERT INTO login_attempts (
			id, email, user_id, ip_address, user_agent, fingerprint,
			outcome, suspicious, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	if attempt.ID == uuid.Nil {
		attempt.ID = uuid.New()
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now().UTC()
	}

	_, err := r.pool.Exec(ctx, query,
		attempt.ID,
		attempt.Email,
		attempt.UserID,
		attempt.IPAddress,
		attempt.UserAgent,
		attempt.Fingerprint,
		attempt.Outcome,
		attempt.Suspicious,
		attempt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record login attempt: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CountRecentFailuresByIP(ctx context.Context, ip string, since time.Time) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM login_attempts
		WHERE ip_address = $1
		  AND outcome <> 'success'
		  AND created_at >= $2
	`

	var count int64
	if err := r.pool.QueryRow(ctx, query, ip, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count recent failures: %w", err)
	}
	return count, nil
}

func (r *PostgresRepository) LastSuccess(ctx context.Context, userID uuid.UUID) (Attempt, bool, error) {
	query := `
		SELECT id, email, user_id, ip_address, user_agent, fingerprint,
		       outcome, suspicious, created_at
		FROM login_attempts
		WHERE user_id = $1 AND outcome = 'success'
		ORDER BY created_at DESC
		LIMIT 1
	`

	attempt, err := scanAttempt(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Attempt{}, false, nil
		}
		return Attempt{}, false, fmt.Errorf("failed to load last success: %w", err)
	}
	return attempt, true, nil
}

func (r *PostgresRepository) ListRecent(ctx context.Context, email string, limit int) ([]Attempt, error) {
	query := `
		SELECT id, email, user_id, ip_address, user_agent, fingerprint,
		       outcome, suspicious, created_at
		FROM login_attempts
		WHERE email = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, email, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list login attempts: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan login attempt: %w", err)
		}
		attempts = append(attempts, attempt)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("error iterating login attempts: %w", rows.Err())
	}
	return attempts, nil
}

func (r *PostgresRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM login_attempts WHERE created_at < $1`

	result, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old login attempts: %w", err)
	}
	return result.RowsAffected(), nil
}

func scanAttempt(row pgx.Row) (Attempt, error) {
	var a Attempt
	err := row.Scan(
		&a.ID,
		&a.Email,
		&a.UserID,
		&a.IPAddress,
		&a.UserAgent,
		&a.Fingerprint,
		&a.Outcome,
		&a.Suspicious,
		&a.CreatedAt,
	)
	if err != nil {
		return Attempt{}, err
	}
	return a, nil
}
