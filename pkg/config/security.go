package config

import "time"

// SecurityConfig holds lockout, challenge and session behavior.
// Duration fields accept ISO 8601 ("PT30M") or Go ("30m") formats.
type SecurityConfig struct {
	// MaxFailedAttempts is the failed-login count that locks the account.
	MaxFailedAttempts int32 `env:"AUTH_MAX_FAILED_ATTEMPTS" env-default:"5"`

	// LockoutDuration is how long a locked account stays locked.
	LockoutDuration string `env:"AUTH_LOCKOUT_DURATION" env-default:"PT30M"`

	// SessionTTL is the refresh-secret lifetime.
	SessionTTL string `env:"AUTH_SESSION_TTL" env-default:"P7D"`

	// OTPTTL is the one-time-code lifetime.
	OTPTTL string `env:"AUTH_OTP_TTL" env-default:"PT15M"`

	// AttemptRetention is how long login-attempt ledger entries are kept.
	AttemptRetention string `env:"AUTH_ATTEMPT_RETENTION" env-default:"P90D"`

	// SweepInterval is how often the background sweepers run.
	SweepInterval string `env:"AUTH_SWEEP_INTERVAL" env-default:"PT1H"`
}

func (c *SecurityConfig) ParseLockoutDuration() (time.Duration, error) {
	return parseISO8601OrGoDuration(c.LockoutDuration)
}

func (c *SecurityConfig) ParseSessionTTL() (time.Duration, error) {
	return parseISO8601OrGoDuration(c.SessionTTL)
}

func (c *SecurityConfig) ParseOTPTTL() (time.Duration, error) {
	return parseISO8601OrGoDuration(c.OTPTTL)
}

func (c *SecurityConfig) ParseAttemptRetention() (time.Duration, error) {
	return parseISO8601OrGoDuration(c.AttemptRetention)
}

func (c *SecurityConfig) ParseSweepInterval() (time.Duration, error) {
	return parseISO8601OrGoDuration(c.SweepInterval)
}
