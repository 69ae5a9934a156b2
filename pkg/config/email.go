package config

import "github.com/voyatra/auth-service/pkg/notification"

// EmailConfig holds SMTP settings for outgoing mail.
type EmailConfig struct {
	Host     string `env:"AUTH_SMTP_HOST" env-default:"localhost"`
	Port     int    `env:"AUTH_SMTP_PORT" env-default:"1025"`
	Username string `env:"AUTH_SMTP_USERNAME" env-default:""`
	Password string `env:"AUTH_SMTP_PASSWORD" env-default:""`
	From     string `env:"AUTH_SMTP_FROM" env-default:"no-reply@example.com"`
	TLS      bool   `env:"AUTH_SMTP_TLS" env-default:"false"`
}

// ToSMTPConfig converts the config to the notification package's SMTP
// settings.
func (c EmailConfig) ToSMTPConfig() notification.SMTPConfig {
	return notification.SMTPConfig{
		Host:     c.Host,
		Port:     c.Port,
		Username: c.Username,
		Password: c.Password,
		From:     c.From,
		TLS:      c.TLS,
	}
}
