package loginattempt

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/voyatra/auth-service/pkg/device"
	"github.com/voyatra/auth-service/pkg/notice"
	"github.com/voyatra/auth-service/pkg/notification"
)

const (
	// DefaultFailureWindow is how far back the per-IP failure count
	// looks when assessing suspicion.
	DefaultFailureWindow = time.Hour

	// DefaultFailureThreshold is the per-IP failed-attempt count at
	// which a login is considered suspicious.
	DefaultFailureThreshold = 3

	// DefaultRetention is how long ledger entries are kept before the
	// sweeper removes them.
	DefaultRetention = 90 * 24 * time.Hour

	recordTimeout = 5 * time.Second
)

// Service records login attempts and assesses whether a login looks
// suspicious.
type Service struct {
	repo             Repository
	notifier         *notification.NotificationManager
	failureWindow    time.Duration
	failureThreshold int64
	retention        time.Duration
}

// Option configures the service.
type Option func(*Service)

// WithFailureWindow overrides the per-IP failure lookback window.
func WithFailureWindow(window time.Duration) Option {
	return func(s *Service) { s.failureWindow = window }
}

// WithFailureThreshold overrides the per-IP failure count threshold.
func WithFailureThreshold(threshold int64) Option {
	return func(s *Service) { s.failureThreshold = threshold }
}

// WithRetention overrides how long ledger entries are kept.
func WithRetention(retention time.Duration) Option {
	return func(s *Service) { s.retention = retention }
}

// NewService creates a login-attempt service. The notifier may be nil,
// in which case suspicious-login alerts are skipped.
func NewService(repo Repository, notifier *notification.NotificationManager, opts ...Option) *Service {
	s := &Service{
		repo:             repo,
		notifier:         notifier,
		failureWindow:    DefaultFailureWindow,
		failureThreshold: DefaultFailureThreshold,
		retention:        DefaultRetention,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record writes one ledger entry.
func (s *Service) Record(ctx context.Context, attempt Attempt) error {
	return s.repo.Record(ctx, attempt)
}

// RecordAsync writes the ledger entry on a background goroutine so that
// ledger availability never delays or fails a login. Errors are logged
// and dropped.
func (s *Service) RecordAsync(attempt Attempt) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := s.repo.Record(ctx, attempt); err != nil {
			slog.Error("Failed to record login attempt",
				"err", err, "email", attempt.Email, "outcome", attempt.Outcome)
		}
	}()
}

// Assess reports whether a login from the given IP looks suspicious:
// either the IP has accumulated too many recent failures, or it differs
// from the IP of the user's last successful login. A user with no prior
// successful login is never flagged on the IP-change rule.
func (s *Service) Assess(ctx context.Context, userID uuid.UUID, ip string) (bool, error) {
	since := time.Now().UTC().Add(-s.failureWindow)
	failures, err := s.repo.CountRecentFailuresByIP(ctx, ip, since)
	if err != nil {
		return false, err
	}
	if failures >= s.failureThreshold {
		return true, nil
	}

	last, found, err := s.repo.LastSuccess(ctx, userID)
	if err != nil {
		return false, err
	}
	if found && last.IPAddress != ip {
		return true, nil
	}
	return false, nil
}

// NotifySuspicious sends the suspicious-login alert email on a
// background goroutine. The login itself proceeds regardless.
func (s *Service) NotifySuspicious(email, userAgent, ip string, at time.Time) {
	if s.notifier == nil {
		return
	}

	summary := device.Summarize(userAgent)
	go func() {
		err := s.notifier.Send(notice.SuspiciousLoginNotice, notification.NotificationData{
			To: email,
			Data: map[string]string{
				"Device": summary.Name,
				"IP":     ip,
				"Time":   at.UTC().Format(time.RFC1123),
			},
		})
		if err != nil {
			slog.Error("Failed to send suspicious-login alert", "err", err, "email", email)
		}
	}()
}

// ListRecent returns the newest ledger entries for an email.
func (s *Service) ListRecent(ctx context.Context, email string, limit int) ([]Attempt, error) {
	return s.repo.ListRecent(ctx, email, limit)
}

// Sweep removes ledger entries older than the retention period.
func (s *Service) Sweep(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-s.retention)
	return s.repo.DeleteOlderThan(ctx, cutoff)
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
					slog.Error("Login-attempt sweep failed", "err", err)
					continue
				}
				if removed > 0 {
					slog.Info("Swept old login attempts", "removed", removed)
				}
			}
		}
	}()
}
