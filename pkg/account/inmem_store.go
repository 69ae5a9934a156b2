package account

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemStore is an in-memory Store for tests and local development.
type InMemStore struct {
	mu         sync.Mutex
	identities map[uuid.UUID]Identity
	byEmail    map[string]uuid.UUID
}

// NewInMemStore creates an empty in-memory identity store.
func NewInMemStore() *InMemStore {
	return &InMemStore{
		identities: make(map[uuid.UUID]Identity),
		byEmail:    make(map[string]uuid.UUID),
	}
}

func (s *InMemStore) Create(ctx context.Context, identity Identity) (Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[identity.Email]; exists {
		return Identity{}, ErrDuplicateEmail
	}

	if identity.ID == uuid.Nil {
		identity.ID = uuid.New()
	}
	now := time.Now().UTC()
	identity.CreatedAt = now
	identity.UpdatedAt = now

	s.identities[identity.ID] = identity
	s.byEmail[identity.Email] = identity.ID
	return cloneIdentity(identity), nil
}

func (s *InMemStore) FindByEmail(ctx context.Context, email string) (Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[email]
	if !ok {
		return Identity{}, ErrNotFound
	}
	return cloneIdentity(s.identities[id]), nil
}

func (s *InMemStore) FindByID(ctx context.Context, id uuid.UUID) (Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.identities[id]
	if !ok {
		return Identity{}, ErrNotFound
	}
	return cloneIdentity(identity), nil
}

func (s *InMemStore) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return s.update(id, func(i *Identity) {
		now := time.Now().UTC()
		i.PasswordHash = passwordHash
		i.Security.PasswordChangedAt = &now
	})
}

func (s *InMemStore) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return s.update(id, func(i *Identity) {
		i.LastLoginAt = &at
	})
}

func (s *InMemStore) SetVerified(ctx context.Context, id uuid.UUID) error {
	return s.update(id, func(i *Identity) {
		i.IsVerified = true
	})
}

// IncrementFailedAttempts holds the store lock for the whole
// read-modify-write, which gives the same increment-and-fetch atomicity
// as the single-statement SQL path.
func (s *InMemStore) IncrementFailedAttempts(ctx context.Context, id uuid.UUID, maxAttempts int32, lockDuration time.Duration) (int32, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.identities[id]
	if !ok {
		return 0, false, ErrNotFound
	}

	identity.Security.FailedLoginAttempts++
	if identity.Security.FailedLoginAttempts >= maxAttempts {
		identity.Security.AccountLocked = true
		until := time.Now().UTC().Add(lockDuration)
		identity.Security.LockUntil = &until
	}
	identity.UpdatedAt = time.Now().UTC()
	s.identities[id] = identity

	return identity.Security.FailedLoginAttempts, identity.Security.AccountLocked, nil
}

func (s *InMemStore) ResetFailedAttempts(ctx context.Context, id uuid.UUID) error {
	return s.update(id, func(i *Identity) {
		i.Security.FailedLoginAttempts = 0
		i.Security.AccountLocked = false
		i.Security.LockUntil = nil
	})
}

func (s *InMemStore) SetTwoFactor(ctx context.Context, id uuid.UUID, params TwoFactorParams) error {
	return s.update(id, func(i *Identity) {
		i.Security.TwoFactorEnabled = params.Enabled
		i.Security.TwoFactorMethod = params.Method
		i.Security.TwoFactorSecret = params.Secret
		i.Security.BackupCodes = append([]string(nil), params.BackupCodes...)
	})
}

func (s *InMemStore) ReplaceBackupCodes(ctx context.Context, id uuid.UUID, codes []string) error {
	return s.update(id, func(i *Identity) {
		i.Security.BackupCodes = append([]string(nil), codes...)
	})
}

func (s *InMemStore) AddTrustedDevice(ctx context.Context, id uuid.UUID, dev TrustedDevice) error {
	if dev.LastUsedAt.IsZero() {
		dev.LastUsedAt = time.Now().UTC()
	}
	return s.update(id, func(i *Identity) {
		for idx, d := range i.Security.TrustedDevices {
			if d.DeviceID == dev.DeviceID {
				i.Security.TrustedDevices[idx] = dev
				return
			}
		}
		i.Security.TrustedDevices = append(i.Security.TrustedDevices, dev)
	})
}

func (s *InMemStore) RemoveTrustedDevice(ctx context.Context, id uuid.UUID, deviceID string) error {
	return s.update(id, func(i *Identity) {
		devices := i.Security.TrustedDevices[:0]
		for _, d := range i.Security.TrustedDevices {
			if d.DeviceID != deviceID {
				devices = append(devices, d)
			}
		}
		i.Security.TrustedDevices = devices
	})
}

func (s *InMemStore) TouchTrustedDevice(ctx context.Context, id uuid.UUID, deviceID string, at time.Time) error {
	return s.update(id, func(i *Identity) {
		for idx, d := range i.Security.TrustedDevices {
			if d.DeviceID == deviceID {
				i.Security.TrustedDevices[idx].LastUsedAt = at
				return
			}
		}
	})
}

func (s *InMemStore) update(id uuid.UUID, fn func(*Identity)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.identities[id]
	if !ok {
		return ErrNotFound
	}
	fn(&identity)
	identity.UpdatedAt = time.Now().UTC()
	s.identities[id] = identity
	return nil
}

func cloneIdentity(i Identity) Identity {
	c := i
	c.Security.TrustedDevices = append([]TrustedDevice(nil), i.Security.TrustedDevices...)
	c.Security.BackupCodes = append([]string(nil), i.Security.BackupCodes...)
	return c
}
