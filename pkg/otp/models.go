package otp

import (
	"time"

	"github.com/google/uuid"
)

// Purpose scopes a challenge to the flow that issued it. A code minted
// for one purpose never verifies another.
type Purpose string

const (
	PurposeEmailVerification Purpose = "email_verification"
	PurposeTwoFactorLogin    Purpose = "2fa_login"
	PurposePasswordReset     Purpose = "password_reset"
	PurposeAccountRecovery   Purpose = "account_recovery"
)

// Challenge is one outstanding one-time code.
type Challenge struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Email     string
	Code      string
	Purpose   Purpose
	Attempts  int32
	Verified  bool
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the challenge is past its deadline.
func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
