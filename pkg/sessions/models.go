package sessions

import (
	"time"

	"github.com/google/uuid"
)

// DefaultSessionTTL is how long a refresh secret stays valid. Renewal
// does not extend it; after seven days the user signs in again.
const DefaultSessionTTL = 7 * 24 * time.Hour

// Session is one signed-in device. TokenHash is the SHA-256 digest of
// the refresh secret; the secret itself is never stored. Revocation
// deactivates the record rather than deleting it; expired rows are
// purged later by the sweeper.
type Session struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	TokenHash   string
	Fingerprint string
	DeviceName  string
	UserAgent   string
	IPAddress   string
	IsActive    bool
	CreatedAt   time.Time
	LastUsedAt  time.Time
	ExpiresAt   time.Time
}

// Expired reports whether the session is past its deadline.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Valid reports whether the session is active and unexpired.
func (s *Session) Valid(now time.Time) bool {
	return s.IsActive && !s.Expired(now)
}

// Info is the sanitized session view returned to callers. It carries no
// token material.
type Info struct {
	ID         uuid.UUID `json:"id"`
	DeviceName string    `json:"device_name"`
	IPAddress  string    `json:"ip_address"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Info returns the sanitized view of the session.
func (s *Session) Info() Info {
	return Info{
		ID:         s.ID,
		DeviceName: s.DeviceName,
		IPAddress:  s.IPAddress,
		CreatedAt:  s.CreatedAt,
		LastUsedAt: s.LastUsedAt,
		ExpiresAt:  s.ExpiresAt,
	}
}

// DeviceMeta is the request metadata captured when a session is
// created.
type DeviceMeta struct {
	Fingerprint string
	DeviceName  string
	UserAgent   string
	IPAddress   string
}
