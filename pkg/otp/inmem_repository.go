package otp

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemRepository is an in-memory challenge repository for tests and
// local development.
type InMemRepository struct {
	mu         sync.Mutex
	challenges map[uuid.UUID]Challenge
}

// NewInMemRepository creates an empty in-memory challenge repository.
func NewInMemRepository() *InMemRepository {
	return &InMemRepository{challenges: make(map[uuid.UUID]Challenge)}
}

func (r *InMemRepository) Create(ctx context.Context, challenge Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if challenge.ID == uuid.Nil {
		challenge.ID = uuid.New()
	}
	if challenge.CreatedAt.IsZero() {
		challenge.CreatedAt = time.Now().UTC()
	}
	r.challenges[challenge.ID] = challenge
	return nil
}

func (r *InMemRepository) FindActive(ctx context.Context, userID uuid.UUID, purpose Purpose) (Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	var newest Challenge
	found := false
	for _, c := range r.challenges {
		if c.UserID != userID || c.Purpose != purpose || c.Verified || c.Expired(now) {
			continue
		}
		if !found || c.CreatedAt.After(newest.CreatedAt) {
			newest = c
			found = true
		}
	}
	if !found {
		return Challenge{}, ErrNotFound
	}
	return newest, nil
}

func (r *InMemRepository) IncrementAttempts(ctx context.Context, id uuid.UUID, maxAttempts int32) (int32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.challenges[id]
	if !ok {
		return 0, ErrNotFound
	}
	// Checked under the same lock as the write, mirroring the conditional
	// UPDATE in the postgres repository.
	if c.Verified || c.Attempts >= maxAttempts {
		return 0, ErrAttemptsExhausted
	}
	c.Attempts++
	r.challenges[id] = c
	return c.Attempts, nil
}

func (r *InMemRepository) MarkVerified(ctx context.Context, id uuid.UUID, maxAttempts int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.challenges[id]
	if !ok {
		return ErrNotFound
	}
	if c.Verified || c.Attempts >= maxAttempts {
		return ErrAttemptsExhausted
	}
	c.Verified = true
	r.challenges[id] = c
	return nil
}

func (r *InMemRepository) InvalidateActive(ctx context.Context, userID uuid.UUID, purpose Purpose) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	for id, c := range r.challenges {
		if c.UserID == userID && c.Purpose == purpose && !c.Verified && !c.Expired(now) {
			c.ExpiresAt = now
			r.challenges[id] = c
		}
	}
	return nil
}

func (r *InMemRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for id, c := range r.challenges {
		if c.Expired(now) {
			delete(r.challenges, id)
			removed++
		}
	}
	return removed, nil
}
