package authflow

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/voyatra/auth-service/pkg/account"
	"github.com/voyatra/auth-service/pkg/errs"
	"github.com/voyatra/auth-service/pkg/otp"
	"github.com/voyatra/auth-service/pkg/password"
	"github.com/voyatra/auth-service/pkg/sessions"
)

const (
	// DefaultMaxFailedAttempts is the failed-login count that locks the
	// account.
	DefaultMaxFailedAttempts = 5

	// DefaultLockDuration is how long the lock holds.
	DefaultLockDuration = 30 * time.Minute

	// backupCodeCount is how many single-use backup codes an enrollment
	// hands out.
	backupCodeCount = 10
)

// Service is the authentication orchestrator: the façade every caller
// goes through. It owns no state; everything lives in the injected
// collaborators.
type Service struct {
	deps       *ServiceDependencies
	executor   *FlowExecutor
	totpIssuer string
}

// Option configures the service.
type Option func(*Service)

// WithLockPolicy overrides the lockout policy.
func WithLockPolicy(maxAttempts int32, lockDuration time.Duration) Option {
	return func(s *Service) {
		s.deps.MaxFailedAttempts = maxAttempts
		s.deps.LockDuration = lockDuration
	}
}

// WithTOTPIssuer overrides the issuer shown in authenticator apps.
func WithTOTPIssuer(issuer string) Option {
	return func(s *Service) { s.totpIssuer = issuer }
}

// NewService wires the orchestrator with the default login flow.
func NewService(deps *ServiceDependencies, opts ...Option) *Service {
	if deps.MaxFailedAttempts == 0 {
		deps.MaxFailedAttempts = DefaultMaxFailedAttempts
	}
	if deps.LockDuration == 0 {
		deps.LockDuration = DefaultLockDuration
	}

	registry := NewStepRegistry().
		AddStep(NewCredentialCheckStep()).
		AddStep(NewLockCheckStep()).
		AddStep(NewPasswordCheckStep()).
		AddStep(NewTwoFactorCheckStep()).
		AddStep(NewSuspicionCheckStep()).
		AddStep(NewSessionIssueStep())

	s := &Service{
		deps:       deps,
		executor:   NewFlowExecutor(registry, deps),
		totpIssuer: "auth-service",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login runs the full login state machine.
func (s *Service) Login(ctx context.Context, request LoginRequest) LoginResult {
	return s.executor.Execute(ctx, request)
}

// RegisterRequest is a new-account registration.
type RegisterRequest struct {
	Email    string
	Name     string
	Password string
	Role     string

	IPAddress   string
	UserAgent   string
	Fingerprint string
	DeviceName  string
}

// Register creates the identity and issues a session immediately; the
// account starts unverified and VerifyEmail flips the flag. The
// duplicate-email conflict is deliberately not disguised.
func (s *Service) Register(ctx context.Context, request RegisterRequest) LoginResult {
	result := LoginResult{}

	evaluation := s.deps.PolicyChecker.Evaluate(request.Password)
	if !evaluation.IsValid {
		result.Err = errs.ValidationFailed(map[string]interface{}{
			"password": evaluation.Errors,
		})
		return result
	}

	hash, err := password.Hash(request.Password)
	if err != nil {
		result.Err = errs.Internal(err)
		return result
	}

	role := request.Role
	if role == "" {
		role = "user"
	}
	identity, err := s.deps.Store.Create(ctx, account.Identity{
		Email:        request.Email,
		Name:         request.Name,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	})
	if err != nil {
		if errors.Is(err, account.ErrDuplicateEmail) {
			result.Err = errs.New(errs.CodeConflict, "email is already registered")
			return result
		}
		result.Err = errs.Internal(err)
		return result
	}

	if _, err := s.deps.OTP.Issue(ctx, identity.ID, identity.Email, otp.PurposeEmailVerification); err != nil {
		// Registration stands even when the verification code cannot be
		// issued; the user can request another one.
		slog.Error("Failed to issue verification code", "err", err, "email", identity.Email)
	}

	s.completeAuthentication(ctx, &identity, loginRequestFrom(request), &result)
	return result
}

// VerifyEmail consumes an email_verification code, flips the flag and
// issues a fresh session.
func (s *Service) VerifyEmail(ctx context.Context, email, code string, meta LoginRequest) LoginResult {
	result := LoginResult{}

	identity, err := s.deps.Store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			result.Err = errs.New(errs.CodeChallengeInvalid, "code is invalid or expired")
			return result
		}
		result.Err = errs.Internal(err)
		return result
	}

	if err := s.deps.OTP.Verify(ctx, identity.ID, otp.PurposeEmailVerification, code); err != nil {
		result.Err = asFlowError(err)
		return result
	}

	if err := s.deps.Store.SetVerified(ctx, identity.ID); err != nil {
		result.Err = errs.Internal(err)
		return result
	}
	identity.IsVerified = true

	meta.Email = identity.Email
	s.completeAuthentication(ctx, &identity, meta, &result)
	return result
}

// Verify2FA completes a pending login: it validates the second factor
// (emailed code, authenticator passcode or backup code) and re-enters
// the flow at session issue.
func (s *Service) Verify2FA(ctx context.Context, userID uuid.UUID, code string, meta LoginRequest) LoginResult {
	result := LoginResult{}

	identity, err := s.deps.Store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			result.Err = errs.New(errs.CodeChallengeInvalid, "code is invalid or expired")
			return result
		}
		result.Err = errs.Internal(err)
		return result
	}

	if err := s.verifySecondFactor(ctx, &identity, code); err != nil {
		result.Err = asFlowError(err)
		return result
	}

	meta.Email = identity.Email
	s.completeAuthentication(ctx, &identity, meta, &result)
	return result
}

// verifySecondFactor tries the configured method first and falls back
// to a single-use backup code.
func (s *Service) verifySecondFactor(ctx context.Context, identity *account.Identity, code string) error {
	var primaryErr error
	if identity.Security.TwoFactorEnabled &&
		identity.Security.TwoFactorMethod == account.TwoFactorMethodApp {
		if otp.ValidateTOTP(code, identity.Security.TwoFactorSecret) {
			return nil
		}
		primaryErr = errs.New(errs.CodeChallengeInvalid, "code is invalid or expired")
	} else {
		primaryErr = s.deps.OTP.Verify(ctx, identity.ID, otp.PurposeTwoFactorLogin, code)
		if primaryErr == nil {
			return nil
		}
	}

	if s.consumeBackupCode(ctx, identity, code) {
		return nil
	}
	return primaryErr
}

func (s *Service) consumeBackupCode(ctx context.Context, identity *account.Identity, code string) bool {
	for i, hash := range identity.Security.BackupCodes {
		match, err := password.Verify(code, hash)
		if err != nil || !match {
			continue
		}

		remaining := make([]string, 0, len(identity.Security.BackupCodes)-1)
		remaining = append(remaining, identity.Security.BackupCodes[:i]...)
		remaining = append(remaining, identity.Security.BackupCodes[i+1:]...)
		if err := s.deps.Store.ReplaceBackupCodes(ctx, identity.ID, remaining); err != nil {
			slog.Error("Failed to consume backup code", "err", err, "user_id", identity.ID)
			return false
		}
		identity.Security.BackupCodes = remaining
		return true
	}
	return false
}

// RefreshToken exchanges a refresh secret for a new access token.
func (s *Service) RefreshToken(ctx context.Context, refreshSecret string) (string, time.Time, error) {
	return s.deps.Sessions.Renew(ctx, refreshSecret)
}

// Logout revokes the presented session. Idempotent.
func (s *Service) Logout(ctx context.Context, refreshSecret string) error {
	return s.deps.Sessions.Revoke(ctx, refreshSecret)
}

// LogoutAll revokes every session of the user.
func (s *Service) LogoutAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.deps.Sessions.RevokeAll(ctx, userID)
}

// RequestPasswordReset issues a password_reset code when the email
// exists. The response is identical either way.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	identity, err := s.deps.Store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil
		}
		slog.Error("Password reset lookup failed", "err", err)
		return nil
	}

	if _, err := s.deps.OTP.Issue(ctx, identity.ID, identity.Email, otp.PurposePasswordReset); err != nil {
		slog.Error("Failed to issue password reset code", "err", err, "email", email)
	}
	return nil
}

// ResetPassword consumes a password_reset code, replaces the password
// and revokes every existing session.
func (s *Service) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	identity, err := s.deps.Store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			// Same answer as a wrong code; no account probing here.
			return errs.New(errs.CodeChallengeInvalid, "code is invalid or expired")
		}
		return errs.Internal(err)
	}

	// Strength is checked before the code so a rejected replacement does
	// not burn the challenge.
	evaluation := s.deps.PolicyChecker.Evaluate(newPassword)
	if !evaluation.IsValid {
		return errs.ValidationFailed(map[string]interface{}{
			"password": evaluation.Errors,
		})
	}

	if err := s.deps.OTP.Verify(ctx, identity.ID, otp.PurposePasswordReset, code); err != nil {
		return asFlowError(err)
	}

	hash, err := password.Hash(newPassword)
	if err != nil {
		return errs.Internal(err)
	}
	if err := s.deps.Store.UpdatePassword(ctx, identity.ID, hash); err != nil {
		return errs.Internal(err)
	}
	if err := s.deps.Store.ResetFailedAttempts(ctx, identity.ID); err != nil {
		slog.Error("Failed to reset lockout counters", "err", err, "user_id", identity.ID)
	}

	// Every prior refresh token dies with the old password.
	if _, err := s.deps.Sessions.RevokeAll(ctx, identity.ID); err != nil {
		return asFlowError(err)
	}
	return nil
}

// ChangePassword replaces the password for an authenticated user after
// re-checking the current one. Existing sessions stay alive.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	identity, err := s.deps.Store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return errs.InvalidCredentials()
		}
		return errs.Internal(err)
	}

	match, err := password.Verify(currentPassword, identity.PasswordHash)
	if err != nil {
		return errs.Internal(err)
	}
	if !match {
		return errs.InvalidCredentials()
	}

	evaluation := s.deps.PolicyChecker.Evaluate(newPassword)
	if !evaluation.IsValid {
		return errs.ValidationFailed(map[string]interface{}{
			"password": evaluation.Errors,
		})
	}

	hash, err := password.Hash(newPassword)
	if err != nil {
		return errs.Internal(err)
	}
	if err := s.deps.Store.UpdatePassword(ctx, userID, hash); err != nil {
		return errs.Internal(err)
	}
	return nil
}

// TwoFactorEnrollment is what Enable2FA hands back. The TOTP secret and
// the backup codes appear here once and are never recoverable.
type TwoFactorEnrollment struct {
	Method      string
	TOTPSecret  string
	TOTPUrl     string
	BackupCodes []string
}

// Enable2FA turns on the second factor for the user. The app method
// provisions a TOTP secret for authenticator enrollment; both methods
// hand out single-use backup codes.
func (s *Service) Enable2FA(ctx context.Context, userID uuid.UUID, method string) (TwoFactorEnrollment, error) {
	if method != account.TwoFactorMethodEmail && method != account.TwoFactorMethodApp {
		return TwoFactorEnrollment{}, errs.Newf(errs.CodeValidationFailed,
			"unknown two-factor method %q", method)
	}

	identity, err := s.deps.Store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return TwoFactorEnrollment{}, errs.New(errs.CodeNotFound, "account not found")
		}
		return TwoFactorEnrollment{}, errs.Internal(err)
	}

	enrollment := TwoFactorEnrollment{Method: method}
	params := account.TwoFactorParams{Enabled: true, Method: method}

	if method == account.TwoFactorMethodApp {
		prov, err := otp.GenerateTOTPSecret(s.totpIssuer, identity.Email)
		if err != nil {
			return TwoFactorEnrollment{}, errs.Internal(err)
		}
		enrollment.TOTPSecret = prov.Secret
		enrollment.TOTPUrl = prov.URL
		params.Secret = prov.Secret
	}

	plaintexts, hashes, err := generateBackupCodes(backupCodeCount)
	if err != nil {
		return TwoFactorEnrollment{}, errs.Internal(err)
	}
	enrollment.BackupCodes = plaintexts
	params.BackupCodes = hashes

	if err := s.deps.Store.SetTwoFactor(ctx, userID, params); err != nil {
		return TwoFactorEnrollment{}, errs.Internal(err)
	}
	return enrollment, nil
}

// Disable2FA turns the second factor off and discards the TOTP secret
// and backup codes.
func (s *Service) Disable2FA(ctx context.Context, userID uuid.UUID) error {
	if err := s.deps.Store.SetTwoFactor(ctx, userID, account.TwoFactorParams{}); err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return errs.New(errs.CodeNotFound, "account not found")
		}
		return errs.Internal(err)
	}
	return nil
}

// ListSessions returns the user's active sessions.
func (s *Service) ListSessions(ctx context.Context, userID uuid.UUID) ([]sessions.Info, error) {
	return s.deps.Sessions.ListActive(ctx, userID)
}

// RevokeSession revokes one of the user's sessions by ID.
func (s *Service) RevokeSession(ctx context.Context, userID, sessionID uuid.UUID) error {
	return s.deps.Sessions.RevokeByID(ctx, userID, sessionID)
}

// ListTrustedDevices returns the user's trusted devices.
func (s *Service) ListTrustedDevices(ctx context.Context, userID uuid.UUID) ([]account.TrustedDevice, error) {
	identity, err := s.deps.Store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, errs.New(errs.CodeNotFound, "account not found")
		}
		return nil, errs.Internal(err)
	}
	return identity.Security.TrustedDevices, nil
}

// RemoveTrustedDevice drops a device from the trusted list; the next
// login from it faces 2FA again.
func (s *Service) RemoveTrustedDevice(ctx context.Context, userID uuid.UUID, deviceID string) error {
	if err := s.deps.Store.RemoveTrustedDevice(ctx, userID, deviceID); err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return errs.New(errs.CodeNotFound, "account not found")
		}
		return errs.Internal(err)
	}
	return nil
}

// completeAuthentication is the shared session-issue tail.
func (s *Service) completeAuthentication(ctx context.Context, identity *account.Identity, meta LoginRequest, result *LoginResult) {
	if err := issueSession(ctx, s.deps, identity, meta, result); err != nil {
		result.Err = asFlowError(err)
	}
}

func loginRequestFrom(request RegisterRequest) LoginRequest {
	return LoginRequest{
		Email:       request.Email,
		IPAddress:   request.IPAddress,
		UserAgent:   request.UserAgent,
		Fingerprint: request.Fingerprint,
		DeviceName:  request.DeviceName,
	}
}

// asFlowError keeps structured errors and wraps everything else as a
// server error.
func asFlowError(err error) *errs.Error {
	var flowErr *errs.Error
	if errors.As(err, &flowErr) {
		return flowErr
	}
	return errs.Internal(err)
}

// generateBackupCodes returns plaintext codes for the user and bcrypt
// hashes for storage.
func generateBackupCodes(n int) ([]string, []string, error) {
	plaintexts := make([]string, 0, n)
	hashes := make([]string, 0, n)
	for i := 0; i < n; i++ {
		raw := make([]byte, 5)
		if _, err := rand.Read(raw); err != nil {
			return nil, nil, fmt.Errorf("failed to generate backup code: %w", err)
		}
		code := hex.EncodeToString(raw)

		hash, err := password.Hash(code)
		if err != nil {
			return nil, nil, err
		}
		plaintexts = append(plaintexts, code)
		hashes = append(hashes, hash)
	}
	return plaintexts, hashes, nil
}
