package api

import (
	"time"

	"github.com/google/uuid"
)

// RegisterRequest is the POST /auth/register body.
type RegisterRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// LoginRequest is the POST /auth/login body.
type LoginRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	TrustDevice bool   `json:"trust_device,omitempty"`
}

// VerifyEmailRequest is the POST /auth/verify-email body.
type VerifyEmailRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// Verify2FARequest is the POST /auth/verify-2fa body.
type Verify2FARequest struct {
	UserID      uuid.UUID `json:"user_id"`
	Code        string    `json:"code"`
	TrustDevice bool      `json:"trust_device,omitempty"`
}

// RefreshRequest carries the refresh secret for renew and logout.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// ForgotPasswordRequest is the POST /auth/password/forgot body.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest is the POST /auth/password/reset body.
type ResetPasswordRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

// ChangePasswordRequest is the POST /auth/password/change body.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Enable2FARequest is the POST /auth/2fa/enable body.
type Enable2FARequest struct {
	Method string `json:"method"`
}

// ProfileResponse is the sanitized identity returned on success.
type ProfileResponse struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	Role        string     `json:"role"`
	IsVerified  bool       `json:"is_verified"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	TwoFactor   bool       `json:"two_factor_enabled"`
	CreatedAt   time.Time  `json:"created_at"`
}

// TokenResponse is the payload of a completed authentication.
type TokenResponse struct {
	AccessToken     string          `json:"access_token"`
	AccessExpiresAt time.Time       `json:"access_expires_at"`
	RefreshToken    string          `json:"refresh_token"`
	Profile         ProfileResponse `json:"profile"`
}

// TwoFactorPendingResponse is returned when login needs a second
// factor.
type TwoFactorPendingResponse struct {
	Status          string    `json:"status"`
	UserID          uuid.UUID `json:"user_id"`
	TwoFactorMethod string    `json:"two_factor_method"`
	Suspicious      bool      `json:"suspicious,omitempty"`
	Message         string    `json:"message"`
}

// AccessTokenResponse is the payload of a token refresh.
type AccessTokenResponse struct {
	AccessToken     string    `json:"access_token"`
	AccessExpiresAt time.Time `json:"access_expires_at"`
}

// SessionResponse is one active session in a session listing.
type SessionResponse struct {
	ID         uuid.UUID `json:"id"`
	DeviceName string    `json:"device_name"`
	IPAddress  string    `json:"ip_address"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// TrustedDeviceResponse is one entry in a trusted-device listing.
type TrustedDeviceResponse struct {
	DeviceID   string    `json:"device_id"`
	DeviceName string    `json:"device_name"`
	LastUsedAt time.Time `json:"last_used_at"`
}

// Enable2FAResponse is the one-time enrollment payload.
type Enable2FAResponse struct {
	Method      string   `json:"method"`
	TOTPSecret  string   `json:"totp_secret,omitempty"`
	TOTPUrl     string   `json:"totp_url,omitempty"`
	BackupCodes []string `json:"backup_codes"`
}

// MessageResponse is a plain confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the failure envelope.
type ErrorResponse struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
