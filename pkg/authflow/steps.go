package authflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/voyatra/auth-service/pkg/account"
	"github.com/voyatra/auth-service/pkg/device"
	"github.com/voyatra/auth-service/pkg/errs"
	"github.com/voyatra/auth-service/pkg/loginattempt"
	"github.com/voyatra/auth-service/pkg/otp"
	"github.com/voyatra/auth-service/pkg/password"
	"github.com/voyatra/auth-service/pkg/sessions"
)

// recordAttempt appends to the ledger without blocking the flow.
func recordAttempt(flowContext *FlowContext, outcome loginattempt.Outcome, suspicious bool) {
	attempt := loginattempt.Attempt{
		Email:       flowContext.Request.Email,
		IPAddress:   flowContext.Request.IPAddress,
		UserAgent:   flowContext.Request.UserAgent,
		Fingerprint: flowContext.Request.Fingerprint,
		Outcome:     outcome,
		Suspicious:  suspicious,
	}
	if flowContext.Identity.ID != uuid.Nil {
		id := flowContext.Identity.ID
		attempt.UserID = &id
	}
	flowContext.Services.Attempts.RecordAsync(attempt)
}

// CredentialCheckStep resolves the identity record by email. An unknown
// email fails with the same message as a wrong password.
type CredentialCheckStep struct{}

func NewCredentialCheckStep() *CredentialCheckStep {
	return &CredentialCheckStep{}
}

func (s *CredentialCheckStep) Name() string { return "credential_check" }

func (s *CredentialCheckStep) Order() int { return OrderCredentialCheck }

func (s *CredentialCheckStep) ShouldSkip(ctx context.Context, flowContext *FlowContext) bool {
	return false
}

func (s *CredentialCheckStep) Execute(ctx context.Context, flowContext *FlowContext) (*StepResult, error) {
	identity, err := flowContext.Services.Store.FindByEmail(ctx, flowContext.Request.Email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			recordAttempt(flowContext, loginattempt.OutcomeInvalidCredentials, false)
			return &StepResult{Error: errs.InvalidCredentials()}, nil
		}
		return nil, err
	}

	flowContext.Identity = identity
	return &StepResult{Continue: true}, nil
}

// LockCheckStep enforces the lockout and clears elapsed locks lazily,
// then rejects deactivated accounts.
type LockCheckStep struct{}

func NewLockCheckStep() *LockCheckStep {
	return &LockCheckStep{}
}

func (s *LockCheckStep) Name() string { return "lock_check" }

func (s *LockCheckStep) Order() int { return OrderLockCheck }

func (s *LockCheckStep) ShouldSkip(ctx context.Context, flowContext *FlowContext) bool {
	return false
}

func (s *LockCheckStep) Execute(ctx context.Context, flowContext *FlowContext) (*StepResult, error) {
	identity := &flowContext.Identity
	now := time.Now().UTC()

	if identity.LockExpired(now) {
		// Lazy unlock once lockUntil has passed.
		if err := flowContext.Services.Store.ResetFailedAttempts(ctx, identity.ID); err != nil {
			return nil, err
		}
		identity.Security.AccountLocked = false
		identity.Security.LockUntil = nil
		identity.Security.FailedLoginAttempts = 0
	}

	if identity.Security.AccountLocked {
		recordAttempt(flowContext, loginattempt.OutcomeAccountLocked, false)
		return &StepResult{Error: lockedError(identity.Security.LockUntil, now)}, nil
	}

	if !identity.IsActive {
		recordAttempt(flowContext, loginattempt.OutcomeAccountInactive, false)
		return &StepResult{
			Error: errs.New(errs.CodeAccountInactive, "account is deactivated"),
		}, nil
	}

	return &StepResult{Continue: true}, nil
}

func lockedError(lockUntil *time.Time, now time.Time) *errs.Error {
	e := errs.New(errs.CodeAccountLocked, "account is temporarily locked, try again later")
	if lockUntil != nil {
		minutes := int(lockUntil.Sub(now).Minutes()) + 1
		e = errs.Newf(errs.CodeAccountLocked,
			"account is temporarily locked, try again in %d minutes", minutes).
			WithDetail("lock_until", lockUntil.Format(time.RFC3339))
	}
	return e
}

// PasswordCheckStep verifies the password and drives the failed-attempt
// counter. The increment-and-lock happens atomically in the store.
type PasswordCheckStep struct{}

func NewPasswordCheckStep() *PasswordCheckStep {
	return &PasswordCheckStep{}
}

func (s *PasswordCheckStep) Name() string { return "password_check" }

func (s *PasswordCheckStep) Order() int { return OrderPasswordCheck }

func (s *PasswordCheckStep) ShouldSkip(ctx context.Context, flowContext *FlowContext) bool {
	return false
}

func (s *PasswordCheckStep) Execute(ctx context.Context, flowContext *FlowContext) (*StepResult, error) {
	identity := &flowContext.Identity
	deps := flowContext.Services

	match, err := password.Verify(flowContext.Request.Password, identity.PasswordHash)
	if err != nil {
		return nil, err
	}
	if match {
		return &StepResult{Continue: true}, nil
	}

	attempts, locked, err := deps.Store.IncrementFailedAttempts(
		ctx, identity.ID, deps.MaxFailedAttempts, deps.LockDuration)
	if err != nil {
		// The increment did not persist; do not pretend it succeeded.
		return nil, err
	}

	if locked {
		lockUntil := time.Now().UTC().Add(deps.LockDuration)
		recordAttempt(flowContext, loginattempt.OutcomeAccountLocked, false)
		return &StepResult{Error: lockedError(&lockUntil, time.Now().UTC())}, nil
	}

	recordAttempt(flowContext, loginattempt.OutcomeInvalidCredentials, false)
	attemptsLeft := deps.MaxFailedAttempts - attempts
	return &StepResult{
		Error: errs.InvalidCredentials().WithDetail("attempts_left", attemptsLeft),
	}, nil
}

// TwoFactorCheckStep issues the second-factor challenge when the
// account has 2FA enabled and the device is not trusted.
type TwoFactorCheckStep struct{}

func NewTwoFactorCheckStep() *TwoFactorCheckStep {
	return &TwoFactorCheckStep{}
}

func (s *TwoFactorCheckStep) Name() string { return "twofactor_check" }

func (s *TwoFactorCheckStep) Order() int { return OrderTwoFactorCheck }

func (s *TwoFactorCheckStep) ShouldSkip(ctx context.Context, flowContext *FlowContext) bool {
	identity := &flowContext.Identity
	if !identity.Security.TwoFactorEnabled {
		return true
	}
	return identity.IsTrustedDevice(flowContext.Request.Fingerprint)
}

func (s *TwoFactorCheckStep) Execute(ctx context.Context, flowContext *FlowContext) (*StepResult, error) {
	identity := &flowContext.Identity
	deps := flowContext.Services

	// The app method needs no server-side challenge; the code comes
	// from the authenticator.
	if identity.Security.TwoFactorMethod == account.TwoFactorMethodEmail {
		if _, err := deps.OTP.Issue(ctx, identity.ID, identity.Email, otp.PurposeTwoFactorLogin); err != nil {
			return nil, err
		}
	}

	recordAttempt(flowContext, loginattempt.OutcomeTwoFactorRequired, false)
	flowContext.Result.Status = StatusTwoFactorRequired
	flowContext.Result.UserID = identity.ID
	flowContext.Result.TwoFactorMethod = identity.Security.TwoFactorMethod
	return &StepResult{EarlyReturn: true}, nil
}

// SuspicionCheckStep applies the suspicious-login heuristic and steps
// up to an OTP challenge when it fires.
type SuspicionCheckStep struct{}

func NewSuspicionCheckStep() *SuspicionCheckStep {
	return &SuspicionCheckStep{}
}

func (s *SuspicionCheckStep) Name() string { return "suspicion_check" }

func (s *SuspicionCheckStep) Order() int { return OrderSuspicionCheck }

func (s *SuspicionCheckStep) ShouldSkip(ctx context.Context, flowContext *FlowContext) bool {
	// A device the user already confirmed is not stepped up again.
	return flowContext.Identity.IsTrustedDevice(flowContext.Request.Fingerprint)
}

func (s *SuspicionCheckStep) Execute(ctx context.Context, flowContext *FlowContext) (*StepResult, error) {
	identity := &flowContext.Identity
	deps := flowContext.Services

	suspicious, err := deps.Attempts.Assess(ctx, identity.ID, flowContext.Request.IPAddress)
	if err != nil {
		// The heuristic is advisory; a ledger outage must not block
		// logins.
		slog.Error("Suspicion assessment failed", "err", err, "email", identity.Email)
		return &StepResult{Continue: true}, nil
	}
	if !suspicious {
		return &StepResult{Continue: true}, nil
	}

	deps.Attempts.NotifySuspicious(identity.Email,
		flowContext.Request.UserAgent, flowContext.Request.IPAddress, time.Now().UTC())

	if flowContext.Request.TrustDevice {
		// Caller asked to trust this device; the step-up is skipped but
		// the attempt is still marked suspicious in the ledger.
		flowContext.Result.Suspicious = true
		return &StepResult{Continue: true}, nil
	}

	if _, err := deps.OTP.Issue(ctx, identity.ID, identity.Email, otp.PurposeTwoFactorLogin); err != nil {
		return nil, err
	}

	recordAttempt(flowContext, loginattempt.OutcomeTwoFactorRequired, true)
	flowContext.Result.Status = StatusTwoFactorRequired
	flowContext.Result.UserID = identity.ID
	flowContext.Result.TwoFactorMethod = account.TwoFactorMethodEmail
	flowContext.Result.Suspicious = true
	return &StepResult{EarlyReturn: true}, nil
}

// SessionIssueStep completes the login: counter reset, last-login
// stamp, optional device trust, session and token issue, success
// ledger entry.
type SessionIssueStep struct{}

func NewSessionIssueStep() *SessionIssueStep {
	return &SessionIssueStep{}
}

func (s *SessionIssueStep) Name() string { return "session_issue" }

func (s *SessionIssueStep) Order() int { return OrderSessionIssue }

func (s *SessionIssueStep) ShouldSkip(ctx context.Context, flowContext *FlowContext) bool {
	return false
}

func (s *SessionIssueStep) Execute(ctx context.Context, flowContext *FlowContext) (*StepResult, error) {
	if err := issueSession(ctx, flowContext.Services, &flowContext.Identity,
		flowContext.Request, flowContext.Result); err != nil {
		var flowErr *errs.Error
		if errors.As(err, &flowErr) {
			return &StepResult{Error: flowErr}, nil
		}
		return nil, err
	}
	return &StepResult{Continue: false}, nil
}

// issueSession is the shared tail of every successful authentication
// path: login, verify2FA, registration and email verification all end
// here.
func issueSession(ctx context.Context, deps *ServiceDependencies, identity *account.Identity, request LoginRequest, result *LoginResult) error {
	if identity.Security.FailedLoginAttempts > 0 || identity.Security.AccountLocked {
		if err := deps.Store.ResetFailedAttempts(ctx, identity.ID); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	if err := deps.Store.UpdateLastLogin(ctx, identity.ID, now); err != nil {
		slog.Error("Failed to stamp last login", "err", err, "user_id", identity.ID)
	}

	if request.TrustDevice && request.Fingerprint != "" {
		dev := account.TrustedDevice{
			DeviceID:   request.Fingerprint,
			DeviceName: deviceName(request),
			LastUsedAt: now,
		}
		if err := deps.Store.AddTrustedDevice(ctx, identity.ID, dev); err != nil {
			slog.Error("Failed to add trusted device", "err", err, "user_id", identity.ID)
		}
	} else if identity.IsTrustedDevice(request.Fingerprint) {
		if err := deps.Store.TouchTrustedDevice(ctx, identity.ID, request.Fingerprint, now); err != nil {
			slog.Error("Failed to touch trusted device", "err", err, "user_id", identity.ID)
		}
	}

	pair, err := deps.Sessions.Create(ctx, identity.ID, sessionMeta(request))
	if err != nil {
		return err
	}

	deps.Attempts.RecordAsync(loginattempt.Attempt{
		Email:       identity.Email,
		UserID:      &identity.ID,
		IPAddress:   request.IPAddress,
		UserAgent:   request.UserAgent,
		Fingerprint: request.Fingerprint,
		Outcome:     loginattempt.OutcomeSuccess,
		Suspicious:  result.Suspicious,
	})

	identity.LastLoginAt = &now
	result.Status = StatusSuccess
	result.Profile = identity.Profile()
	result.Tokens = &pair
	result.UserID = identity.ID
	return nil
}

func sessionMeta(request LoginRequest) sessions.DeviceMeta {
	return sessions.DeviceMeta{
		Fingerprint: request.Fingerprint,
		DeviceName:  deviceName(request),
		UserAgent:   request.UserAgent,
		IPAddress:   request.IPAddress,
	}
}

func deviceName(request LoginRequest) string {
	if request.DeviceName != "" {
		return request.DeviceName
	}
	summary := device.Summarize(request.UserAgent)
	if summary.Name != "" {
		return summary.Name
	}
	return fmt.Sprintf("device %s", request.Fingerprint)
}
