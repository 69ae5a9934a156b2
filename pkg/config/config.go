package config

import (
	"github.com/ilyakaznacheev/cleanenv"
)

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host string `env:"AUTH_HTTP_HOST" env-default:"0.0.0.0"`
	Port uint16 `env:"AUTH_HTTP_PORT" env-default:"4000"`
}

// PasswordConfig holds password-policy settings.
type PasswordConfig struct {
	MinLength        int  `env:"AUTH_PASSWORD_MIN_LENGTH" env-default:"8"`
	RequireUppercase bool `env:"AUTH_PASSWORD_REQUIRE_UPPERCASE" env-default:"true"`
	RequireLowercase bool `env:"AUTH_PASSWORD_REQUIRE_LOWERCASE" env-default:"true"`
	RequireDigit     bool `env:"AUTH_PASSWORD_REQUIRE_DIGIT" env-default:"true"`
	RequireSpecial   bool `env:"AUTH_PASSWORD_REQUIRE_SPECIAL" env-default:"true"`
}

// Config is the full service configuration, populated from environment
// variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Jwt      JwtConfig
	Security SecurityConfig
	Password PasswordConfig
	Email    EmailConfig
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
