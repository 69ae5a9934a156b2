package account

import (
	"time"

	"github.com/google/uuid"
)

// Two-factor methods.
const (
	TwoFactorMethodEmail = "email"
	TwoFactorMethodApp   = "app"
)

// TrustedDevice is a device fingerprint previously confirmed via 2FA,
// exempted from repeat challenges until removed or expired.
type TrustedDevice struct {
	DeviceID   string    `json:"device_id"`
	DeviceName string    `json:"device_name"`
	LastUsedAt time.Time `json:"last_used_at"`
}

// SecurityState is the lockout / two-factor sub-state embedded in an
// identity record. accountLocked is authoritative together with
// lockUntil: the lock clears lazily on the next login attempt once
// lockUntil has passed.
type SecurityState struct {
	FailedLoginAttempts int32
	AccountLocked       bool
	LockUntil           *time.Time
	TrustedDevices      []TrustedDevice
	TwoFactorEnabled    bool
	TwoFactorMethod     string
	TwoFactorSecret     string   // TOTP secret, app method only
	BackupCodes         []string // bcrypt hashes, single use
	PasswordChangedAt   *time.Time
}

// Identity is a user record as seen by the authentication subsystem.
type Identity struct {
	ID           uuid.UUID
	Email        string
	Name         string
	PasswordHash string
	Role         string
	IsVerified   bool
	IsActive     bool
	LastLoginAt  *time.Time
	Security     SecurityState
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsTrustedDevice reports whether the given device fingerprint is in the
// trusted list.
func (i *Identity) IsTrustedDevice(deviceID string) bool {
	for _, d := range i.Security.TrustedDevices {
		if d.DeviceID == deviceID {
			return true
		}
	}
	return false
}

// LockExpired reports whether a set lock has already elapsed.
func (i *Identity) LockExpired(now time.Time) bool {
	return i.Security.AccountLocked &&
		i.Security.LockUntil != nil &&
		now.After(*i.Security.LockUntil)
}

// Profile is the sanitized identity view returned to callers. It never
// carries the password hash, the TOTP secret or backup codes.
type Profile struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	Role        string     `json:"role"`
	IsVerified  bool       `json:"is_verified"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	TwoFactor   bool       `json:"two_factor_enabled"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Profile returns the sanitized view of the identity.
func (i *Identity) Profile() Profile {
	return Profile{
		ID:          i.ID,
		Email:       i.Email,
		Name:        i.Name,
		Role:        i.Role,
		IsVerified:  i.IsVerified,
		LastLoginAt: i.LastLoginAt,
		TwoFactor:   i.Security.TwoFactorEnabled,
		CreatedAt:   i.CreatedAt,
	}
}
