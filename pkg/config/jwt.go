package config

import "time"

// JwtConfig holds access-token signing settings.
type JwtConfig struct {
	Secret   string `env:"AUTH_JWT_SECRET" env-default:"very-secure-jwt-secret"`
	Issuer   string `env:"AUTH_JWT_ISSUER" env-default:"auth-service"`
	Audience string `env:"AUTH_JWT_AUDIENCE" env-default:"auth-service"`

	// AccessTokenExpiry accepts ISO 8601 ("PT15M") or Go ("15m") formats.
	AccessTokenExpiry string `env:"AUTH_ACCESS_TOKEN_EXPIRY" env-default:"PT15M"`
}

func (c *JwtConfig) ParseAccessTokenExpiry() (time.Duration, error) {
	return parseISO8601OrGoDuration(c.AccessTokenExpiry)
}
