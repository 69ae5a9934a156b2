package account

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*InMemStore, Identity) {
	store := NewInMemStore()
	identity, err := store.Create(context.Background(), Identity{
		Email:        "alice@example.com",
		Name:         "Alice",
		PasswordHash: "$2a$10$hash",
		Role:         "user",
		IsActive:     true,
	})
	require.NoError(t, err)
	return store, identity
}

func TestInMemStore_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	store, identity := newTestStore(t)

	t.Run("FindByEmail", func(t *testing.T) {
		found, err := store.FindByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, identity.ID, found.ID)
	})

	t.Run("FindByID", func(t *testing.T) {
		found, err := store.FindByID(ctx, identity.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", found.Email)
	})

	t.Run("UnknownEmail", func(t *testing.T) {
		_, err := store.FindByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		_, err := store.Create(ctx, Identity{Email: "alice@example.com"})
		assert.ErrorIs(t, err, ErrDuplicateEmail)
	})
}

func TestInMemStore_IncrementFailedAttempts(t *testing.T) {
	ctx := context.Background()
	store, identity := newTestStore(t)

	for i := int32(1); i < 5; i++ {
		attempts, locked, err := store.IncrementFailedAttempts(ctx, identity.ID, 5, 30*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, attempts)
		assert.False(t, locked)
	}

	attempts, locked, err := store.IncrementFailedAttempts(ctx, identity.ID, 5, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int32(5), attempts)
	assert.True(t, locked)

	found, err := store.FindByID(ctx, identity.ID)
	require.NoError(t, err)
	require.NotNil(t, found.Security.LockUntil)
	assert.WithinDuration(t, time.Now().UTC().Add(30*time.Minute), *found.Security.LockUntil, 5*time.Second)
}

// Concurrent failures must not both observe a pre-threshold counter and
// miss the lock.
func TestInMemStore_IncrementFailedAttempts_Concurrent(t *testing.T) {
	ctx := context.Background()
	store, identity := newTestStore(t)

	for i := 0; i < 4; i++ {
		_, _, err := store.IncrementFailedAttempts(ctx, identity.ID, 5, 30*time.Minute)
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	results := make([]bool, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, locked, err := store.IncrementFailedAttempts(ctx, identity.ID, 5, 30*time.Minute)
			require.NoError(t, err)
			results[idx] = locked
		}(i)
	}
	wg.Wait()

	assert.True(t, results[0])
	assert.True(t, results[1])

	found, err := store.FindByID(ctx, identity.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(6), found.Security.FailedLoginAttempts)
	assert.True(t, found.Security.AccountLocked)
}

func TestInMemStore_ResetFailedAttempts(t *testing.T) {
	ctx := context.Background()
	store, identity := newTestStore(t)

	for i := 0; i < 5; i++ {
		_, _, err := store.IncrementFailedAttempts(ctx, identity.ID, 5, 30*time.Minute)
		require.NoError(t, err)
	}

	require.NoError(t, store.ResetFailedAttempts(ctx, identity.ID))

	found, err := store.FindByID(ctx, identity.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(0), found.Security.FailedLoginAttempts)
	assert.False(t, found.Security.AccountLocked)
	assert.Nil(t, found.Security.LockUntil)
}

func TestInMemStore_TrustedDevices(t *testing.T) {
	ctx := context.Background()
	store, identity := newTestStore(t)

	require.NoError(t, store.AddTrustedDevice(ctx, identity.ID, TrustedDevice{
		DeviceID:   "fp-1",
		DeviceName: "Chrome on macOS",
	}))
	require.NoError(t, store.AddTrustedDevice(ctx, identity.ID, TrustedDevice{
		DeviceID:   "fp-2",
		DeviceName: "Firefox on Linux",
	}))

	found, err := store.FindByID(ctx, identity.ID)
	require.NoError(t, err)
	assert.Len(t, found.Security.TrustedDevices, 2)
	assert.True(t, found.IsTrustedDevice("fp-1"))

	t.Run("UpsertSameDevice", func(t *testing.T) {
		require.NoError(t, store.AddTrustedDevice(ctx, identity.ID, TrustedDevice{
			DeviceID:   "fp-1",
			DeviceName: "Chrome on macOS (updated)",
		}))
		found, err := store.FindByID(ctx, identity.ID)
		require.NoError(t, err)
		assert.Len(t, found.Security.TrustedDevices, 2)
	})

	t.Run("Remove", func(t *testing.T) {
		require.NoError(t, store.RemoveTrustedDevice(ctx, identity.ID, "fp-2"))
		found, err := store.FindByID(ctx, identity.ID)
		require.NoError(t, err)
		assert.Len(t, found.Security.TrustedDevices, 1)
		assert.False(t, found.IsTrustedDevice("fp-2"))
	})

	t.Run("RemoveUnknownIsNoop", func(t *testing.T) {
		assert.NoError(t, store.RemoveTrustedDevice(ctx, identity.ID, "fp-missing"))
	})

	t.Run("Touch", func(t *testing.T) {
		at := time.Now().UTC().Add(time.Hour)
		require.NoError(t, store.TouchTrustedDevice(ctx, identity.ID, "fp-1", at))
		found, err := store.FindByID(ctx, identity.ID)
		require.NoError(t, err)
		assert.Equal(t, at, found.Security.TrustedDevices[0].LastUsedAt)
	})
}

func TestInMemStore_TwoFactor(t *testing.T) {
	ctx := context.Background()
	store, identity := newTestStore(t)

	require.NoError(t, store.SetTwoFactor(ctx, identity.ID, TwoFactorParams{
		Enabled:     true,
		Method:      TwoFactorMethodApp,
		Secret:      "JBSWY3DPEHPK3PXP",
		BackupCodes: []string{"$2a$10$a", "$2a$10$b"},
	}))

	found, err := store.FindByID(ctx, identity.ID)
	require.NoError(t, err)
	assert.True(t, found.Security.TwoFactorEnabled)
	assert.Equal(t, TwoFactorMethodApp, found.Security.TwoFactorMethod)
	assert.Len(t, found.Security.BackupCodes, 2)

	require.NoError(t, store.ReplaceBackupCodes(ctx, identity.ID, []string{"$2a$10$b"}))
	found, err = store.FindByID(ctx, identity.ID)
	require.NoError(t, err)
	assert.Len(t, found.Security.BackupCodes, 1)
}

func TestIdentity_LockExpired(t *testing.T) {
	past := time.Now().UTC().Add(-time.Minute)
	future := time.Now().UTC().Add(time.Minute)

	tests := []struct {
		name     string
		security SecurityState
		want     bool
	}{
		{"NotLocked", SecurityState{}, false},
		{"LockedNoDeadline", SecurityState{AccountLocked: true}, false},
		{"LockedStillActive", SecurityState{AccountLocked: true, LockUntil: &future}, false},
		{"LockedElapsed", SecurityState{AccountLocked: true, LockUntil: &past}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			i := Identity{Security: tc.security}
			assert.Equal(t, tc.want, i.LockExpired(time.Now().UTC()))
		})
	}
}

func TestIdentity_ProfileOmitsSecrets(t *testing.T) {
	i := Identity{
		ID:           uuid.New(),
		Email:        "alice@example.com",
		PasswordHash: "$2a$10$hash",
		Security: SecurityState{
			TwoFactorEnabled: true,
			TwoFactorSecret:  "JBSWY3DPEHPK3PXP",
			BackupCodes:      []string{"$2a$10$a"},
		},
	}

	p := i.Profile()
	assert.Equal(t, i.Email, p.Email)
	assert.True(t, p.TwoFactor)
}
