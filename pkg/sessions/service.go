package sessions

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/voyatra/auth-service/pkg/errs"
	"github.com/voyatra/auth-service/pkg/tokens"
)

// TokenPair is what a completed login hands back: a short-lived access
// token and the long-lived refresh secret. The refresh secret appears
// here once and is never recoverable afterwards.
type TokenPair struct {
	AccessToken     string
	AccessExpiresAt time.Time
	RefreshSecret   string
	Session         Info
}

// Service creates, renews and revokes sessions.
type Service struct {
	repo   Repository
	minter *tokens.Minter
	ttl    time.Duration
}

// Option configures the service.
type Option func(*Service)

// WithTTL overrides the session lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) { s.ttl = ttl }
}

// NewService creates a session service.
func NewService(repo Repository, minter *tokens.Minter, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		minter: minter,
		ttl:    DefaultSessionTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create opens a session for the user: a fresh refresh secret, its
// digest persisted with the device metadata, and a minted access
// token.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, meta DeviceMeta) (TokenPair, error) {
	secret, err := tokens.NewRefreshSecret()
	if err != nil {
		return TokenPair{}, errs.Internal(err)
	}

	now := time.Now().UTC()
	session := Session{
		ID:          uuid.New(),
		UserID:      userID,
		TokenHash:   tokens.HashSecret(secret),
		Fingerprint: meta.Fingerprint,
		DeviceName:  meta.DeviceName,
		UserAgent:   meta.UserAgent,
		IPAddress:   meta.IPAddress,
		IsActive:    true,
		CreatedAt:   now,
		LastUsedAt:  now,
		ExpiresAt:   now.Add(s.ttl),
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return TokenPair{}, errs.Internal(err)
	}

	access, accessExpiry, err := s.minter.MintAccessToken(userID)
	if err != nil {
		return TokenPair{}, errs.Internal(err)
	}

	return TokenPair{
		AccessToken:     access,
		AccessExpiresAt: accessExpiry,
		RefreshSecret:   secret,
		Session:         session.Info(),
	}, nil
}

// Renew exchanges a refresh secret for a new access token. The session
// keeps its original expiry; the refresh secret is not rotated. Unknown
// and expired secrets produce the same error.
func (s *Service) Renew(ctx context.Context, refreshSecret string) (string, time.Time, error) {
	session, err := s.find(ctx, refreshSecret)
	if err != nil {
		return "", time.Time{}, err
	}

	access, accessExpiry, err := s.minter.MintAccessToken(session.UserID)
	if err != nil {
		return "", time.Time{}, errs.Internal(err)
	}

	if err := s.repo.Touch(ctx, session.ID, time.Now().UTC()); err != nil {
		slog.Error("Failed to touch session", "err", err, "session_id", session.ID)
	}

	return access, accessExpiry, nil
}

// Lookup resolves a refresh secret to its live session.
func (s *Service) Lookup(ctx context.Context, refreshSecret string) (Session, error) {
	return s.find(ctx, refreshSecret)
}

func (s *Service) find(ctx context.Context, refreshSecret string) (Session, error) {
	session, err := s.repo.FindByTokenHash(ctx, tokens.HashSecret(refreshSecret))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, errs.New(errs.CodeSessionInvalid, "session is expired or invalid")
		}
		return Session{}, errs.Internal(err)
	}
	if !session.Valid(time.Now().UTC()) {
		return Session{}, errs.New(errs.CodeSessionInvalid, "session is expired or invalid")
	}
	return session, nil
}

// Revoke deactivates the session holding the given refresh secret.
// Revoking a secret that matches nothing, or one already revoked,
// succeeds; logout is idempotent.
func (s *Service) Revoke(ctx context.Context, refreshSecret string) error {
	if err := s.repo.DeactivateByTokenHash(ctx, tokens.HashSecret(refreshSecret)); err != nil {
		return errs.Internal(err)
	}
	return nil
}

// RevokeByID deactivates one of the user's sessions by ID.
func (s *Service) RevokeByID(ctx context.Context, userID, sessionID uuid.UUID) error {
	if err := s.repo.Deactivate(ctx, userID, sessionID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return errs.New(errs.CodeNotFound, "session not found")
		}
		return errs.Internal(err)
	}
	return nil
}

// RevokeAll deactivates every active session of the user and returns
// how many were revoked.
func (s *Service) RevokeAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	revoked, err := s.repo.DeactivateAllForUser(ctx, userID)
	if err != nil {
		return 0, errs.Internal(err)
	}
	return revoked, nil
}

// ListActive returns the user's live sessions without token material.
func (s *Service) ListActive(ctx context.Context, userID uuid.UUID) ([]Info, error) {
	active, err := s.repo.ListActiveForUser(ctx, userID)
	if err != nil {
		return nil, errs.Internal(err)
	}

	infos := make([]Info, 0, len(active))
	for _, session := range active {
		infos = append(infos, session.Info())
	}
	return infos, nil
}

// Sweep removes expired sessions.
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
					slog.Error("Session sweep failed", "err", err)
					continue
				}
				if removed > 0 {
					slog.Info("Swept expired sessions", "removed", removed)
				}
			}
		}
	}()
}
