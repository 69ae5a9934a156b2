package notification

// NotificationSystem represents a delivery channel (e.g. email, SMS).
type NotificationSystem string

// NoticeType identifies a kind of notice (e.g. "2fa_code", "password_reset").
type NoticeType string

const (
	EmailSystem NotificationSystem = "email"
	SMSSystem   NotificationSystem = "sms"
)

// NoticeTemplate holds the subject and body templates for a notice.
// Bodies are Go text/html templates rendered against NotificationData.Data.
type NoticeTemplate struct {
	Subject string
	Text    string
	Html    string
}

// NotificationData carries the recipient and template data for one send.
type NotificationData struct {
	To   string
	Data map[string]string
}

// Notifier delivers a rendered notice over one delivery channel.
type Notifier interface {
	Send(noticeType NoticeType, notification NotificationData, template NoticeTemplate) error
}
