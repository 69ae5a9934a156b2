package sessions

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemRepository is an in-memory session repository for tests and
// local development.
type InMemRepository struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]Session
}

// NewInMemRepository creates an empty in-memory session repository.
func NewInMemRepository() *InMemRepository {
	return &InMemRepository{sessions: make(map[uuid.UUID]Session)}
}

func (r *InMemRepository) Create(ctx context.Context, session Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = session
	return nil
}

func (r *InMemRepository) FindByTokenHash(ctx context.Context, tokenHash string) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.sessions {
		if s.TokenHash == tokenHash {
			return s, nil
		}
	}
	return Session{}, ErrNotFound
}

func (r *InMemRepository) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil
	}
	s.LastUsedAt = at
	r.sessions[id] = s
	return nil
}

func (r *InMemRepository) DeactivateByTokenHash(ctx context.Context, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, s := range r.sessions {
		if s.TokenHash == tokenHash {
			s.IsActive = false
			r.sessions[id] = s
			return nil
		}
	}
	return nil
}

func (r *InMemRepository) Deactivate(ctx context.Context, userID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok || s.UserID != userID {
		return ErrNotFound
	}
	s.IsActive = false
	r.sessions[id] = s
	return nil
}

func (r *InMemRepository) DeactivateAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var revoked int64
	for id, s := range r.sessions {
		if s.UserID == userID && s.IsActive {
			s.IsActive = false
			r.sessions[id] = s
			revoked++
		}
	}
	return revoked, nil
}

func (r *InMemRepository) ListActiveForUser(ctx context.Context, userID uuid.UUID) ([]Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	var result []Session
	for _, s := range r.sessions {
		if s.UserID == userID && s.Valid(now) {
			result = append(result, s)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (r *InMemRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for id, s := range r.sessions {
		if s.Expired(now) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed, nil
}
