package notification

import "log/slog"

// ConsoleNotifier writes notices to the log instead of delivering them.
// Useful for local development where no SMTP server is running.
type ConsoleNotifier struct{}

func (c *ConsoleNotifier) Send(noticeType NoticeType, notification NotificationData, template NoticeTemplate) error {
	slog.Info("Notice", "type", noticeType, "to", notification.To, "subject", template.Subject, "data", notification.Data)
	return nil
}
