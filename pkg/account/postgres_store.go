package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using PostgreSQL. It expects an
// identities table with the columns listed in identityColumns (email
// unique, backup_codes text[]) and a trusted_devices table keyed on
// (identity_id, device_id).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL identity store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const identityColumns = `
	id, email, name, password_hash, role, is_verified, is_active,
	last_login_at, failed_login_attempts, account_locked, lock_until,
	two_factor_enabled, two_factor_method, two_factor_secret, backup_codes,
	password_changed_at, created_at, updated_at
`

// Create inserts a new identity. A unique-violation on email maps to
// ErrDuplicateEmail.
func (s *PostgresStore) Create(ctx context.Context, identity Identity) (Identity, error) {
	query := `
		INSERT INTO identities (
			id, email, name, password_hash, role, is_verified, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + identityColumns

	if identity.ID == uuid.Nil {
		identity.ID = uuid.New()
	}

	row := s.pool.QueryRow(ctx, query,
		identity.ID,
		identity.Email,
		identity.Name,
		identity.PasswordHash,
		identity.Role,
		identity.IsVerified,
		identity.IsActive,
	)

	created, err := scanIdentity(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Identity{}, ErrDuplicateEmail
		}
		return Identity{}, fmt.Errorf("failed to create identity: %w", err)
	}

	return created, nil
}

// FindByEmail looks up an identity by email, including trusted devices.
func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE email = $1`
	return s.findOne(ctx, query, email)
}

// FindByID looks up an identity by ID, including trusted devices.
func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE id = $1`
	return s.findOne(ctx, query, id)
}

func (s *PostgresStore) findOne(ctx context.Context, query string, arg interface{}) (Identity, error) {
	identity, err := scanIdentity(s.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Identity{}, ErrNotFound
		}
		return Identity{}, fmt.Errorf("failed to find identity: %w", err)
	}

	devices, err := s.loadTrustedDevices(ctx, identity.ID)
	if err != nil {
		return Identity{}, err
	}
	identity.Security.TrustedDevices = devices

	return identity, nil
}

func (s *PostgresStore) loadTrustedDevices(ctx context.Context, id uuid.UUID) ([]TrustedDevice, error) {
	query := `
		SELECT device_id, device_name, last_used_at
		FROM trusted_devices
		WHERE identity_id = $1
		ORDER BY last_used_at DESC
	`

	rows, err := s.pool.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load trusted devices: %w", err)
	}
	defer rows.Close()

	var devices []TrustedDevice
	for rows.Next() {
		var d TrustedDevice
		if err := rows.Scan(&d.DeviceID, &d.DeviceName, &d.LastUsedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trusted device: %w", err)
		}
		devices = append(devices, d)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("error iterating trusted devices: %w", rows.Err())
	}

	return devices, nil
}

// UpdatePassword replaces the password hash and stamps
// password_changed_at.
func (s *PostgresStore) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	query := `
		UPDATE identities
		SET password_hash = $2,
		    password_changed_at = NOW(),
		    updated_at = NOW()
		WHERE id = $1
	`

	result, err := s.pool.Exec(ctx, query, id, passwordHash)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateLastLogin stamps the last successful login time.
func (s *PostgresStore) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE identities
		SET last_login_at = $2,
		    updated_at = NOW()
		WHERE id = $1
	`

	_, err := s.pool.Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// SetVerified flips the verification flag.
func (s *PostgresStore) SetVerified(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE identities
		SET is_verified = TRUE,
		    updated_at = NOW()
		WHERE id = $1
	`

	result, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to set verified: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementFailedAttempts performs the increment and the conditional
// lock in a single UPDATE so that concurrent failures cannot both read a
// stale counter.
func (s *PostgresStore) IncrementFailedAttempts(ctx context.Context, id uuid.UUID, maxAttempts int32, lockDuration time.Duration) (int32, bool, error) {
	query := `
		UPDATE identities
		SET failed_login_attempts = failed_login_attempts + 1,
		    account_locked = (failed_login_attempts + 1 >= $2),
		    lock_until = CASE
		        WHEN failed_login_attempts + 1 >= $2
		        THEN NOW() + make_interval(secs => $3)
		        ELSE lock_until
		    END,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING failed_login_attempts, account_locked
	`

	var attempts int32
	var locked bool
	err := s.pool.QueryRow(ctx, query, id, maxAttempts, lockDuration.Seconds()).Scan(&attempts, &locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, ErrNotFound
		}
		return 0, false, fmt.Errorf("failed to increment failed attempts: %w", err)
	}

	return attempts, locked, nil
}

// ResetFailedAttempts zeroes the counter and clears any lock.
func (s *PostgresStore) ResetFailedAttempts(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE identities
		SET failed_login_attempts = 0,
		    account_locked = FALSE,
		    lock_until = NULL,
		    updated_at = NOW()
		WHERE id = $1
	`

	_, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to reset failed attempts: %w", err)
	}
	return nil
}

// SetTwoFactor writes the full two-factor configuration.
func (s *PostgresStore) SetTwoFactor(ctx context.Context, id uuid.UUID, params TwoFactorParams) error {
	query := `
		UPDATE identities
		SET two_factor_enabled = $2,
		    two_factor_method = $3,
		    two_factor_secret = $4,
		    backup_codes = $5,
		    updated_at = NOW()
		WHERE id = $1
	`

	result, err := s.pool.Exec(ctx, query, id, params.Enabled, params.Method, params.Secret, params.BackupCodes)
	if err != nil {
		return fmt.Errorf("failed to set two-factor state: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceBackupCodes overwrites the stored backup-code hashes, used when
// a code is consumed.
func (s *PostgresStore) ReplaceBackupCodes(ctx context.Context, id uuid.UUID, codes []string) error {
	query := `
		UPDATE identities
		SET backup_codes = $2,
		    updated_at = NOW()
		WHERE id = $1
	`

	_, err := s.pool.Exec(ctx, query, id, codes)
	if err != nil {
		return fmt.Errorf("failed to replace backup codes: %w", err)
	}
	return nil
}

// AddTrustedDevice upserts a trusted-device entry.
func (s *PostgresStore) AddTrustedDevice(ctx context.Context, id uuid.UUID, dev TrustedDevice) error {
	query := `
		INSERT INTO trusted_devices (identity_id, device_id, device_name, last_used_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (identity_id, device_id)
		DO UPDATE SET device_name = $3, last_used_at = $4
	`

	at := dev.LastUsedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, query, id, dev.DeviceID, dev.DeviceName, at)
	if err != nil {
		return fmt.Errorf("failed to add trusted device: %w", err)
	}
	return nil
}

// RemoveTrustedDevice deletes a trusted-device entry; removing an
// unknown device is a no-op.
func (s *PostgresStore) RemoveTrustedDevice(ctx context.Context, id uuid.UUID, deviceID string) error {
	query := `
		DELETE FROM trusted_devices
		WHERE identity_id = $1 AND device_id = $2
	`

	_, err := s.pool.Exec(ctx, query, id, deviceID)
	if err != nil {
		return fmt.Errorf("failed to remove trusted device: %w", err)
	}
	return nil
}

// TouchTrustedDevice bumps last_used_at for a trusted device.
func (s *PostgresStore) TouchTrustedDevice(ctx context.Context, id uuid.UUID, deviceID string, at time.Time) error {
	query := `
		UPDATE trusted_devices
		SET last_used_at = $3
		WHERE identity_id = $1 AND device_id = $2
	`

	_, err := s.pool.Exec(ctx, query, id, deviceID, at)
	if err != nil {
		return fmt.Errorf("failed to touch trusted device: %w", err)
	}
	return nil
}

func scanIdentity(row pgx.Row) (Identity, error) {
	var i Identity
	var lastLogin, lockUntil, passwordChanged *time.Time
	var method, secret *string
	var backupCodes []string

	err := row.Scan(
		&i.ID,
		&i.Email,
		&i.Name,
		&i.PasswordHash,
		&i.Role,
		&i.IsVerified,
		&i.IsActive,
		&lastLogin,
		&i.Security.FailedLoginAttempts,
		&i.Security.AccountLocked,
		&lockUntil,
		&i.Security.TwoFactorEnabled,
		&method,
		&secret,
		&backupCodes,
		&passwordChanged,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	if err != nil {
		return Identity{}, err
	}

	i.LastLoginAt = lastLogin
	i.Security.LockUntil = lockUntil
	i.Security.PasswordChangedAt = passwordChanged
	if method != nil {
		i.Security.TwoFactorMethod = *method
	}
	if secret != nil {
		i.Security.TwoFactorSecret = *secret
	}
	i.Security.BackupCodes = backupCodes

	return i, nil
}
