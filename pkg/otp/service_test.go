package otp

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyatra/auth-service/pkg/errs"
	"github.com/voyatra/auth-service/pkg/notice"
)

func TestGenerateCode(t *testing.T) {
	for i := 0; i < 100; i++ {
		code, err := generateCode()
		require.NoError(t, err)
		require.Len(t, code, CodeLength)

		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
	}
}

func TestService_IssueAndVerify(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("RoundTrip", func(t *testing.T) {
		svc := NewService(NewInMemRepository(), nil)

		challenge, err := svc.Issue(ctx, userID, "alice@example.com", PurposeTwoFactorLogin)
		require.NoError(t, err)

		require.NoError(t, svc.Verify(ctx, userID, PurposeTwoFactorLogin, challenge.Code))
	})

	t.Run("VerifiedChallengeCannotBeReused", func(t *testing.T) {
		svc := NewService(NewInMemRepository(), nil)

		challenge, err := svc.Issue(ctx, userID, "alice@example.com", PurposeTwoFactorLogin)
		require.NoError(t, err)
		require.NoError(t, svc.Verify(ctx, userID, PurposeTwoFactorLogin, challenge.Code))

		err = svc.Verify(ctx, userID, PurposeTwoFactorLogin, challenge.Code)
		assert.True(t, errs.IsCode(err, errs.CodeChallengeInvalid))
	})

	t.Run("WrongPurposeDoesNotVerify", func(t *testing.T) {
		svc := NewService(NewInMemRepository(), nil)

		challenge, err := svc.Issue(ctx, userID, "alice@example.com", PurposePasswordReset)
		require.NoError(t, err)

		err = svc.Verify(ctx, userID, PurposeTwoFactorLogin, challenge.Code)
		assert.True(t, errs.IsCode(err, errs.CodeChallengeInvalid))
	})

	t.Run("NoChallengeLooksLikeWrongCode", func(t *testing.T) {
		svc := NewService(NewInMemRepository(), nil)

		err := svc.Verify(ctx, userID, PurposeTwoFactorLogin, "123456")
		assert.True(t, errs.IsCode(err, errs.CodeChallengeInvalid))
	})

	t.Run("ExpiredChallengeLooksLikeWrongCode", func(t *testing.T) {
		svc := NewService(NewInMemRepository(), nil, WithTTL(time.Nanosecond))

		challenge, err := svc.Issue(ctx, userID, "alice@example.com", PurposeTwoFactorLogin)
		require.NoError(t, err)
		time.Sleep(time.Millisecond)

		err = svc.Verify(ctx, userID, PurposeTwoFactorLogin, challenge.Code)
		assert.True(t, errs.IsCode(err, errs.CodeChallengeInvalid))
	})

	t.Run("ReissueInvalidatesOldCode", func(t *testing.T) {
		svc := NewService(NewInMemRepository(), nil)

		old, err := svc.Issue(ctx, userID, "alice@example.com", PurposeTwoFactorLogin)
		require.NoError(t, err)
		fresh, err := svc.Issue(ctx, userID, "alice@example.com", PurposeTwoFactorLogin)
		require.NoError(t, err)

		if old.Code != fresh.Code {
			err = svc.Verify(ctx, userID, PurposeTwoFactorLogin, old.Code)
			assert.True(t, errs.IsCode(err, errs.CodeChallengeInvalid))
		}
		require.NoError(t, svc.Verify(ctx, userID, PurposeTwoFactorLogin, fresh.Code))
	})
}

func TestService_AttemptBudget(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	repo := NewInMemRepository()
	svc := NewService(repo, nil)

	challenge, err := svc.Issue(ctx, userID, "alice@example.com", PurposeTwoFactorLogin)
	require.NoError(t, err)

	wrong := "000000"
	if challenge.Code == wrong {
		wrong = "000001"
	}

	for i := 0; i < MaxAttempts; i++ {
		err := svc.Verify(ctx, userID, PurposeTwoFactorLogin, wrong)
		assert.True(t, errs.IsCode(err, errs.CodeChallengeInvalid))
	}

	// Budget exhausted: even the right code is refused now.
	err = svc.Verify(ctx, userID, PurposeTwoFactorLogin, challenge.Code)
	assert.True(t, errs.IsCode(err, errs.CodeTooManyAttempts))
}

func TestService_AttemptBudgetUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	repo := NewInMemRepository()
	svc := NewService(repo, nil)

	challenge, err := svc.Issue(ctx, userID, "alice@example.com", PurposeTwoFactorLogin)
	require.NoError(t, err)

	wrong := "000000"
	if challenge.Code == wrong {
		wrong = "000001"
	}

	// All guesses read the same fresh challenge snapshot; the guarded
	// increment must still cap the recorded attempts at the budget.
	const guesses = 30
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < guesses; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			svc.Verify(ctx, userID, PurposeTwoFactorLogin, wrong)
		}()
	}
	close(start)
	wg.Wait()

	stored, err := repo.FindActive(ctx, userID, PurposeTwoFactorLogin)
	require.NoError(t, err)
	assert.Equal(t, int32(MaxAttempts), stored.Attempts)

	err = svc.Verify(ctx, userID, PurposeTwoFactorLogin, challenge.Code)
	assert.True(t, errs.IsCode(err, errs.CodeTooManyAttempts))
}

func TestRepository_GuardedWrites(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemRepository()

	challenge := Challenge{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		Email:     "alice@example.com",
		Code:      "123456",
		Purpose:   PurposeTwoFactorLogin,
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}
	require.NoError(t, repo.Create(ctx, challenge))

	t.Run("IncrementStopsAtBudget", func(t *testing.T) {
		for i := 1; i <= MaxAttempts; i++ {
			attempts, err := repo.IncrementAttempts(ctx, challenge.ID, MaxAttempts)
			require.NoError(t, err)
			assert.Equal(t, int32(i), attempts)
		}
		_, err := repo.IncrementAttempts(ctx, challenge.ID, MaxAttempts)
		assert.ErrorIs(t, err, ErrAttemptsExhausted)
	})

	t.Run("VerifyRefusedPastBudget", func(t *testing.T) {
		err := repo.MarkVerified(ctx, challenge.ID, MaxAttempts)
		assert.ErrorIs(t, err, ErrAttemptsExhausted)
	})

	t.Run("VerifiedChallengeRefusesBothWrites", func(t *testing.T) {
		fresh := Challenge{
			ID:        uuid.New(),
			UserID:    uuid.New(),
			Email:     "bob@example.com",
			Code:      "654321",
			Purpose:   PurposeTwoFactorLogin,
			ExpiresAt: time.Now().UTC().Add(time.Hour),
		}
		require.NoError(t, repo.Create(ctx, fresh))
		require.NoError(t, repo.MarkVerified(ctx, fresh.ID, MaxAttempts))

		_, err := repo.IncrementAttempts(ctx, fresh.ID, MaxAttempts)
		assert.ErrorIs(t, err, ErrAttemptsExhausted)
		assert.ErrorIs(t, repo.MarkVerified(ctx, fresh.ID, MaxAttempts), ErrAttemptsExhausted)
	})
}

func TestService_DeliversCodeByEmail(t *testing.T) {
	ctx := context.Background()
	nm, mock, err := notice.NewMockNotificationManager()
	require.NoError(t, err)
	svc := NewService(NewInMemRepository(), nm)

	challenge, err := svc.Issue(ctx, uuid.New(), "alice@example.com", PurposePasswordReset)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return mock.Count() == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, "alice@example.com", mock.LastTo())
	assert.Equal(t, challenge.Code, mock.LastData()["Code"])
}

func TestService_Sweep(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemRepository()
	svc := NewService(repo, nil, WithTTL(time.Nanosecond))

	_, err := svc.Issue(ctx, uuid.New(), "alice@example.com", PurposeEmailVerification)
	require.NoError(t, err)
	time.Sleep(time.Millisecond)

	removed, err := svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestTOTP(t *testing.T) {
	prov, err := GenerateTOTPSecret("auth-service", "alice@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, prov.Secret)
	assert.Contains(t, prov.URL, "otpauth://totp/")

	assert.False(t, ValidateTOTP("000000", prov.Secret))
}
