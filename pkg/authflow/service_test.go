package authflow

import (
	"context"
	"testing"
	"time"

	totplib "github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyatra/auth-service/pkg/account"
	"github.com/voyatra/auth-service/pkg/errs"
	"github.com/voyatra/auth-service/pkg/otp"
)

func registerReq(email string) RegisterRequest {
	return RegisterRequest{
		Email:       email,
		Name:        "Test User",
		Password:    testPassword,
		IPAddress:   "203.0.113.1",
		UserAgent:   "Mozilla/5.0",
		Fingerprint: "fp-test",
	}
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("IssuesSessionBeforeVerification", func(t *testing.T) {
		env := newTestEnv(t)

		result := env.svc.Register(ctx, registerReq("alice@example.com"))

		require.Nil(t, result.Err)
		assert.Equal(t, StatusSuccess, result.Status)
		assert.False(t, result.Profile.IsVerified)
		require.NotNil(t, result.Tokens)

		// A verification challenge is outstanding.
		_, err := env.otpRepo.FindActive(ctx, result.UserID, otp.PurposeEmailVerification)
		assert.NoError(t, err)
	})

	t.Run("WeakPasswordRejected", func(t *testing.T) {
		env := newTestEnv(t)

		req := registerReq("alice@example.com")
		req.Password = "weak"
		result := env.svc.Register(ctx, req)

		require.NotNil(t, result.Err)
		assert.Equal(t, errs.CodeValidationFailed, result.Err.Code)
	})

	t.Run("DuplicateEmailRevealsConflict", func(t *testing.T) {
		env := newTestEnv(t)

		first := env.svc.Register(ctx, registerReq("alice@example.com"))
		require.Nil(t, first.Err)

		second := env.svc.Register(ctx, registerReq("alice@example.com"))
		require.NotNil(t, second.Err)
		assert.Equal(t, errs.CodeConflict, second.Err.Code)
	})
}

func TestVerifyEmail(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	reg := env.svc.Register(ctx, registerReq("alice@example.com"))
	require.Nil(t, reg.Err)

	challenge, err := env.otpRepo.FindActive(ctx, reg.UserID, otp.PurposeEmailVerification)
	require.NoError(t, err)

	result := env.svc.VerifyEmail(ctx, "alice@example.com", challenge.Code, loginReq("alice@example.com", ""))
	require.Nil(t, result.Err)
	assert.Equal(t, StatusSuccess, result.Status)
	assert.True(t, result.Profile.IsVerified)
	require.NotNil(t, result.Tokens)

	// The consumed code does not verify twice.
	again := env.svc.VerifyEmail(ctx, "alice@example.com", challenge.Code, loginReq("alice@example.com", ""))
	require.NotNil(t, again.Err)
	assert.Equal(t, errs.CodeChallengeInvalid, again.Err.Code)
}

func TestVerify2FA_EmailCode(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	identity := env.createAccount(t, "alice@example.com")

	require.NoError(t, env.store.SetTwoFactor(ctx, identity.ID, account.TwoFactorParams{
		Enabled: true,
		Method:  account.TwoFactorMethodEmail,
	}))

	pending := env.svc.Login(ctx, loginReq("alice@example.com", testPassword))
	require.Equal(t, StatusTwoFactorRequired, pending.Status)

	challenge, err := env.otpRepo.FindActive(ctx, identity.ID, otp.PurposeTwoFactorLogin)
	require.NoError(t, err)

	t.Run("WrongCode", func(t *testing.T) {
		result := env.svc.Verify2FA(ctx, identity.ID, "000000", loginReq("alice@example.com", ""))
		require.NotNil(t, result.Err)
		assert.Equal(t, errs.CodeChallengeInvalid, result.Err.Code)
	})

	t.Run("CorrectCodeIssuesSession", func(t *testing.T) {
		meta := loginReq("alice@example.com", "")
		meta.TrustDevice = true
		result := env.svc.Verify2FA(ctx, identity.ID, challenge.Code, meta)

		require.Nil(t, result.Err)
		assert.Equal(t, StatusSuccess, result.Status)
		require.NotNil(t, result.Tokens)

		// The device was added to the trusted list.
		stored, err := env.store.FindByID(ctx, identity.ID)
		require.NoError(t, err)
		assert.True(t, stored.IsTrustedDevice("fp-test"))
	})
}

func TestVerify2FA_AuthenticatorApp(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	identity := env.createAccount(t, "alice@example.com")

	enrollment, err := env.svc.Enable2FA(ctx, identity.ID, account.TwoFactorMethodApp)
	require.NoError(t, err)
	require.NotEmpty(t, enrollment.TOTPSecret)

	passcode, err := totplib.GenerateCode(enrollment.TOTPSecret, time.Now())
	require.NoError(t, err)

	result := env.svc.Verify2FA(ctx, identity.ID, passcode, loginReq("alice@example.com", ""))
	require.Nil(t, result.Err)
	assert.Equal(t, StatusSuccess, result.Status)
}

func TestVerify2FA_BackupCode(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	identity := env.createAccount(t, "alice@example.com")

	enrollment, err := env.svc.Enable2FA(ctx, identity.ID, account.TwoFactorMethodEmail)
	require.NoError(t, err)
	require.Len(t, enrollment.BackupCodes, 10)

	backup := enrollment.BackupCodes[0]

	result := env.svc.Verify2FA(ctx, identity.ID, backup, loginReq("alice@example.com", ""))
	require.Nil(t, result.Err)
	assert.Equal(t, StatusSuccess, result.Status)

	// Single use: the same code is dead now.
	again := env.svc.Verify2FA(ctx, identity.ID, backup, loginReq("alice@example.com", ""))
	require.NotNil(t, again.Err)
	assert.Equal(t, errs.CodeChallengeInvalid, again.Err.Code)

	stored, err := env.store.FindByID(ctx, identity.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Security.BackupCodes, 9)
}

func TestRefreshLogout(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.createAccount(t, "alice@example.com")

	login := env.svc.Login(ctx, loginReq("alice@example.com", testPassword))
	require.Nil(t, login.Err)

	access, expiry, err := env.svc.RefreshToken(ctx, login.Tokens.RefreshSecret)
	require.NoError(t, err)
	assert.NotEmpty(t, access)
	assert.True(t, expiry.After(time.Now()))

	require.NoError(t, env.svc.Logout(ctx, login.Tokens.RefreshSecret))

	_, _, err = env.svc.RefreshToken(ctx, login.Tokens.RefreshSecret)
	assert.True(t, errs.IsCode(err, errs.CodeSessionInvalid))

	// Logout again is a no-op, not an error.
	assert.NoError(t, env.svc.Logout(ctx, login.Tokens.RefreshSecret))
}

func TestPasswordReset(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	identity := env.createAccount(t, "alice@example.com")

	t.Run("UnknownEmailAnswersGenerically", func(t *testing.T) {
		assert.NoError(t, env.svc.RequestPasswordReset(ctx, "nobody@example.com"))
	})

	login := env.svc.Login(ctx, loginReq("alice@example.com", testPassword))
	require.Nil(t, login.Err)

	require.NoError(t, env.svc.RequestPasswordReset(ctx, "alice@example.com"))
	challenge, err := env.otpRepo.FindActive(ctx, identity.ID, otp.PurposePasswordReset)
	require.NoError(t, err)

	t.Run("WeakReplacementRejected", func(t *testing.T) {
		err := env.svc.ResetPassword(ctx, "alice@example.com", challenge.Code, "weak")
		assert.True(t, errs.IsCode(err, errs.CodeValidationFailed))
	})

	t.Run("ResetRevokesAllSessions", func(t *testing.T) {
		// The weak attempt did not burn the challenge.
		require.NoError(t, env.svc.ResetPassword(ctx, "alice@example.com", challenge.Code, "Newpass1!"))

		// Old refresh secret is dead.
		_, _, err = env.svc.RefreshToken(ctx, login.Tokens.RefreshSecret)
		assert.True(t, errs.IsCode(err, errs.CodeSessionInvalid))

		// New password works; the device is trusted to keep the
		// suspicion step out of the way.
		require.NoError(t, env.store.AddTrustedDevice(ctx, identity.ID, account.TrustedDevice{DeviceID: "fp-test"}))
		result := env.svc.Login(ctx, loginReq("alice@example.com", "Newpass1!"))
		require.Nil(t, result.Err)
		assert.Equal(t, StatusSuccess, result.Status)
	})
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	identity := env.createAccount(t, "alice@example.com")

	login := env.svc.Login(ctx, loginReq("alice@example.com", testPassword))
	require.Nil(t, login.Err)

	t.Run("WrongCurrentPassword", func(t *testing.T) {
		err := env.svc.ChangePassword(ctx, identity.ID, "Wrong1!aa", "Newpass1!")
		assert.True(t, errs.IsCode(err, errs.CodeInvalidCredentials))
	})

	t.Run("KeepsExistingSessions", func(t *testing.T) {
		require.NoError(t, env.svc.ChangePassword(ctx, identity.ID, testPassword, "Newpass1!"))

		// Unlike reset, an authenticated change leaves sessions alive.
		_, _, err := env.svc.RefreshToken(ctx, login.Tokens.RefreshSecret)
		assert.NoError(t, err)
	})
}

func TestEnableDisable2FA(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	identity := env.createAccount(t, "alice@example.com")

	t.Run("UnknownMethod", func(t *testing.T) {
		_, err := env.svc.Enable2FA(ctx, identity.ID, "carrier-pigeon")
		assert.True(t, errs.IsCode(err, errs.CodeValidationFailed))
	})

	t.Run("AppMethodProvisionsTOTP", func(t *testing.T) {
		enrollment, err := env.svc.Enable2FA(ctx, identity.ID, account.TwoFactorMethodApp)
		require.NoError(t, err)
		assert.NotEmpty(t, enrollment.TOTPSecret)
		assert.Contains(t, enrollment.TOTPUrl, "otpauth://totp/")
		assert.Len(t, enrollment.BackupCodes, 10)

		stored, err := env.store.FindByID(ctx, identity.ID)
		require.NoError(t, err)
		assert.True(t, stored.Security.TwoFactorEnabled)
		assert.Equal(t, account.TwoFactorMethodApp, stored.Security.TwoFactorMethod)
	})

	t.Run("DisableClearsState", func(t *testing.T) {
		require.NoError(t, env.svc.Disable2FA(ctx, identity.ID))

		stored, err := env.store.FindByID(ctx, identity.ID)
		require.NoError(t, err)
		assert.False(t, stored.Security.TwoFactorEnabled)
		assert.Empty(t, stored.Security.TwoFactorSecret)
		assert.Empty(t, stored.Security.BackupCodes)
	})
}

func TestSessionManagement(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	identity := env.createAccount(t, "alice@example.com")

	first := env.svc.Login(ctx, loginReq("alice@example.com", testPassword))
	require.Nil(t, first.Err)
	second := env.svc.Login(ctx, loginReq("alice@example.com", testPassword))
	require.Nil(t, second.Err)

	infos, err := env.svc.ListSessions(ctx, identity.ID)
	require.NoError(t, err)
	assert.Len(t, infos, 2)

	require.NoError(t, env.svc.RevokeSession(ctx, identity.ID, infos[0].ID))

	infos, err = env.svc.ListSessions(ctx, identity.ID)
	require.NoError(t, err)
	assert.Len(t, infos, 1)

	removed, err := env.svc.LogoutAll(ctx, identity.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	infos, err = env.svc.ListSessions(ctx, identity.ID)
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestTrustedDeviceManagement(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	identity := env.createAccount(t, "alice@example.com")

	meta := loginReq("alice@example.com", testPassword)
	meta.TrustDevice = true
	result := env.svc.Login(ctx, meta)
	require.Nil(t, result.Err)

	devices, err := env.svc.ListTrustedDevices(ctx, identity.ID)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "fp-test", devices[0].DeviceID)

	require.NoError(t, env.svc.RemoveTrustedDevice(ctx, identity.ID, "fp-test"))

	devices, err = env.svc.ListTrustedDevices(ctx, identity.ID)
	require.NoError(t, err)
	assert.Empty(t, devices)
}
