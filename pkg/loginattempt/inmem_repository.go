package loginattempt

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemRepository is an in-memory ledger for tests and local
// development.
type InMemRepository struct {
	mu       sync.Mutex
	attempts []Attempt
}

// NewInMemRepository creates an empty in-memory login-attempt ledger.
func NewInMemRepository() *InMemRepository {
	return &InMemRepository{}
}

func (r *InMemRepository) Record(ctx context.Context, attempt Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if attempt.ID == uuid.Nil {
		attempt.ID = uuid.New()
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now().UTC()
	}
	r.attempts = append(r.attempts, attempt)
	return nil
}

func (r *InMemRepository) CountRecentFailuresByIP(ctx context.Context, ip string, since time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for _, a := range r.attempts {
		if a.IPAddress == ip && !a.Outcome.Succeeded() && !a.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (r *InMemRepository) LastSuccess(ctx context.Context, userID uuid.UUID) (Attempt, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var last Attempt
	found := false
	for _, a := range r.attempts {
		if a.UserID != nil && *a.UserID == userID && a.Outcome.Succeeded() {
			if !found || a.CreatedAt.After(last.CreatedAt) {
				last = a
				found = true
			}
		}
	}
	return last, found, nil
}

func (r *InMemRepository) ListRecent(ctx context.Context, email string, limit int) ([]Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []Attempt
	for _, a := range r.attempts {
		if a.Email == email {
			matched = append(matched, a)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (r *InMemRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.attempts[:0]
	var removed int64
	for _, a := range r.attempts {
		if a.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, a)
	}
	r.attempts = kept
	return removed, nil
}

// All returns a snapshot of every recorded attempt, for tests.
func (r *InMemRepository) All() []Attempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Attempt(nil), r.attempts...)
}
