package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/voyatra/auth-service/pkg/errs"
	"github.com/voyatra/auth-service/pkg/notice"
	"github.com/voyatra/auth-service/pkg/notification"
)

const (
	// CodeLength is the number of digits in a challenge code.
	CodeLength = 6

	// DefaultTTL is how long a challenge stays valid.
	DefaultTTL = 15 * time.Minute

	// MaxAttempts is the number of verification attempts a challenge
	// allows before it is burned.
	MaxAttempts = 5

	codeMin  = 100000
	codeSpan = 900000
)

// noticeByPurpose maps each challenge purpose to the email notice that
// delivers its code.
var noticeByPurpose = map[Purpose]notification.NoticeType{
	PurposeEmailVerification: notice.EmailVerificationNotice,
	PurposeTwoFactorLogin:    notice.TwofaCodeNotice,
	PurposePasswordReset:     notice.PasswordResetNotice,
	PurposeAccountRecovery:   notice.AccountRecoveryNotice,
}

// Service issues and verifies one-time codes.
type Service struct {
	repo     Repository
	notifier *notification.NotificationManager
	ttl      time.Duration
}

// Option configures the service.
type Option func(*Service)

// WithTTL overrides the challenge lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) { s.ttl = ttl }
}

// NewService creates an OTP service. The notifier may be nil, in which
// case codes are issued but not delivered, which tests rely on.
func NewService(repo Repository, notifier *notification.NotificationManager, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		notifier: notifier,
		ttl:      DefaultTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue creates a fresh challenge for the user and purpose, expiring
// any prior outstanding one, and emails the code. Delivery runs on a
// background goroutine so a slow SMTP server never delays the caller.
func (s *Service) Issue(ctx context.Context, userID uuid.UUID, email string, purpose Purpose) (Challenge, error) {
	code, err := generateCode()
	if err != nil {
		return Challenge{}, fmt.Errorf("failed to generate code: %w", err)
	}

	if err := s.repo.InvalidateActive(ctx, userID, purpose); err != nil {
		return Challenge{}, err
	}

	challenge := Challenge{
		ID:        uuid.New(),
		UserID:    userID,
		Email:     email,
		Code:      code,
		Purpose:   purpose,
		ExpiresAt: time.Now().UTC().Add(s.ttl),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, challenge); err != nil {
		return Challenge{}, err
	}

	s.deliver(challenge)
	return challenge, nil
}

func (s *Service) deliver(challenge Challenge) {
	if s.notifier == nil {
		return
	}

	noticeType, ok := noticeByPurpose[challenge.Purpose]
	if !ok {
		slog.Error("No notice registered for challenge purpose", "purpose", challenge.Purpose)
		return
	}

	go func() {
		err := s.notifier.Send(noticeType, notification.NotificationData{
			To: challenge.Email,
			Data: map[string]string{
				"Code":      challenge.Code,
				"ExpiresIn": fmt.Sprintf("%d minutes", int(s.ttl.Minutes())),
			},
		})
		if err != nil {
			slog.Error("Failed to deliver one-time code",
				"err", err, "purpose", challenge.Purpose, "email", challenge.Email)
		}
	}()
}

// Verify checks a submitted code against the user's active challenge
// for the purpose. Missing and expired challenges produce the same
// error as a wrong code, so a caller cannot distinguish them. Every
// mismatch counts against the attempt budget.
func (s *Service) Verify(ctx context.Context, userID uuid.UUID, purpose Purpose, code string) error {
	challenge, err := s.repo.FindActive(ctx, userID, purpose)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return errs.New(errs.CodeChallengeInvalid, "code is invalid or expired")
		}
		return errs.Internal(err)
	}

	if challenge.Attempts >= MaxAttempts {
		return errs.New(errs.CodeTooManyAttempts, "too many verification attempts, request a new code")
	}

	// The repository guards both writes against the budget, so
	// concurrent verifications that read the same snapshot cannot spend
	// more than MaxAttempts between them or verify an exhausted
	// challenge.
	if subtle.ConstantTimeCompare([]byte(challenge.Code), []byte(code)) != 1 {
		if _, err := s.repo.IncrementAttempts(ctx, challenge.ID, MaxAttempts); err != nil {
			if errors.Is(err, ErrAttemptsExhausted) {
				return errs.New(errs.CodeTooManyAttempts, "too many verification attempts, request a new code")
			}
			return errs.Internal(err)
		}
		return errs.New(errs.CodeChallengeInvalid, "code is invalid or expired")
	}

	if err := s.repo.MarkVerified(ctx, challenge.ID, MaxAttempts); err != nil {
		if errors.Is(err, ErrAttemptsExhausted) {
			return errs.New(errs.CodeTooManyAttempts, "too many verification attempts, request a new code")
		}
		return errs.Internal(err)
	}
	return nil
}

// Sweep removes expired challenges.
func (s *Service) Sweep(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, time.Now().UTC())
}

// StartSweeper runs Sweep on the given interval until the context is
// cancelled.
func (s *Service) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := s.Sweep(ctx)
				if err != nil {
					slog.Error("Challenge sweep failed", "err", err)
					continue
				}
				if removed > 0 {
					slog.Info("Swept expired challenges", "removed", removed)
				}
			}
		}
	}()
}

// generateCode draws a uniform six-digit code from [100000, 999999].
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}
