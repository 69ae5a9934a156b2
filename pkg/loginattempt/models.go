package loginattempt

import (
	"time"

	"github.com/google/uuid"
)

// Outcome classifies a recorded login attempt.
type Outcome string

const (
	OutcomeSuccess            Outcome = "success"
	OutcomeInvalidCredentials Outcome = "invalid_credentials"
	OutcomeAccountLocked      Outcome = "account_locked"
	OutcomeAccountInactive    Outcome = "account_inactive"
	OutcomeTwoFactorRequired  Outcome = "2fa_required"
)

// Succeeded reports whether the outcome represents a completed login.
func (o Outcome) Succeeded() bool {
	return o == OutcomeSuccess
}

// Attempt is one entry in the login-attempt ledger. Email is recorded
// even when no matching identity exists, so probing of unknown accounts
// is still visible.
type Attempt struct {
	ID          uuid.UUID
	Email       string
	UserID      *uuid.UUID
	IPAddress   string
	UserAgent   string
	Fingerprint string
	Outcome     Outcome
	Suspicious  bool
	CreatedAt   time.Time
}
