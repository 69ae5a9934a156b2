package notification

import "sync"

// MockNotifier captures sent notifications for tests.
type MockNotifier struct {
	mu                sync.Mutex
	SentNotifications []NotificationData
	SentTypes         []NoticeType
}

func (m *MockNotifier) Send(noticeType NoticeType, notification NotificationData, template NoticeTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentNotifications = append(m.SentNotifications, notification)
	m.SentTypes = append(m.SentTypes, noticeType)
	return nil
}

// Count returns how many notifications have been sent.
func (m *MockNotifier) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.SentNotifications)
}

// LastTo returns the recipient of the most recent notification, or ""
// when nothing has been sent.
func (m *MockNotifier) LastTo() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.SentNotifications) == 0 {
		return ""
	}
	return m.SentNotifications[len(m.SentNotifications)-1].To
}

// LastData returns the template data of the most recent notification,
// or nil when nothing has been sent.
func (m *MockNotifier) LastData() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.SentNotifications) == 0 {
		return nil
	}
	return m.SentNotifications[len(m.SentNotifications)-1].Data
}
