package notice

import (
	"embed"
	"log/slog"

	"github.com/voyatra/auth-service/pkg/notification"
)

// Notice types sent by the authentication service.
const (
	EmailVerificationNotice notification.NoticeType = "email_verification"
	TwofaCodeNotice         notification.NoticeType = "2fa_code"
	PasswordResetNotice     notification.NoticeType = "password_reset"
	AccountRecoveryNotice   notification.NoticeType = "account_recovery"
	SuspiciousLoginNotice   notification.NoticeType = "suspicious_login"
)

//go:embed templates/*
var templateFiles embed.FS

func loadTemplate(filename string) string {
	content, err := templateFiles.ReadFile(filename)
	if err != nil {
		slog.Error("Error reading template file", "err", err, "filename", filename)
		return ""
	}
	return string(content)
}

// NewNotificationManager builds a notification manager with the email
// notifier and every notice template registered.
func NewNotificationManager(smtpConfig notification.SMTPConfig) (*notification.NotificationManager, error) {
	nm := notification.NewNotificationManager()

	emailNotifier, err := notification.NewEmailNotifier(smtpConfig)
	if err != nil {
		return nil, err
	}
	nm.RegisterNotifier(notification.EmailSystem, emailNotifier)

	if err := registerTemplates(nm); err != nil {
		return nil, err
	}
	return nm, nil
}

// NewConsoleNotificationManager builds a manager that logs notices
// instead of sending them, for local development.
func NewConsoleNotificationManager() (*notification.NotificationManager, error) {
	nm := notification.NewNotificationManager()
	nm.RegisterNotifier(notification.EmailSystem, &notification.ConsoleNotifier{})

	if err := registerTemplates(nm); err != nil {
		return nil, err
	}
	return nm, nil
}

// NewMockNotificationManager builds a manager backed by a capturing mock
// notifier, for tests and the in-memory demo binary.
func NewMockNotificationManager() (*notification.NotificationManager, *notification.MockNotifier, error) {
	nm := notification.NewNotificationManager()
	mock := &notification.MockNotifier{}
	nm.RegisterNotifier(notification.EmailSystem, mock)

	if err := registerTemplates(nm); err != nil {
		return nil, nil, err
	}
	return nm, mock, nil
}

func registerTemplates(nm *notification.NotificationManager) error {
	templates := map[notification.NoticeType]notification.NoticeTemplate{
		EmailVerificationNotice: {
			Subject: "Verify your email address",
			Html:    loadTemplate("templates/email/email_verification.html"),
		},
		TwofaCodeNotice: {
			Subject: "Your sign-in code",
			Html:    loadTemplate("templates/email/2fa_code.html"),
		},
		PasswordResetNotice: {
			Subject: "Password reset code",
			Html:    loadTemplate("templates/email/password_reset.html"),
		},
		AccountRecoveryNotice: {
			Subject: "Account recovery code",
			Html:    loadTemplate("templates/email/account_recovery.html"),
		},
		SuspiciousLoginNotice: {
			Subject: "Unusual sign-in activity on your account",
			Html:    loadTemplate("templates/email/suspicious_login.html"),
		},
	}

	for noticeType, template := range templates {
		if err := nm.RegisterNotification(noticeType, notification.EmailSystem, template); err != nil {
			return err
		}
	}
	return nil
}
