package authflow

import (
	"github.com/google/uuid"

	"github.com/voyatra/auth-service/pkg/account"
	"github.com/voyatra/auth-service/pkg/errs"
	"github.com/voyatra/auth-service/pkg/sessions"
)

// LoginStatus is the non-error outcome of a login flow run.
type LoginStatus string

const (
	// StatusSuccess means a session was issued.
	StatusSuccess LoginStatus = "success"

	// StatusTwoFactorRequired means a challenge was issued and the
	// caller must complete verify2FA.
	StatusTwoFactorRequired LoginStatus = "2fa_required"
)

// LoginRequest is one login attempt with its request metadata.
type LoginRequest struct {
	Email    string
	Password string

	IPAddress   string
	UserAgent   string
	Fingerprint string
	DeviceName  string

	// TrustDevice asks for the device to be added to the trusted list
	// once 2FA completes.
	TrustDevice bool
}

// LoginResult is what a flow run hands back. Exactly one of Err or a
// status outcome is set.
type LoginResult struct {
	Status LoginStatus

	// Success payload.
	Profile account.Profile
	Tokens  *sessions.TokenPair

	// Pending-2FA payload.
	UserID          uuid.UUID
	TwoFactorMethod string
	Suspicious      bool

	Err *errs.Error
}
