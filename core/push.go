package core

// PushMessage is a push notification addressed to a single user's devices.
type PushMessage struct {
	UserID string
	Title  string
	Body   string
	Data   map[string]string
}

// PushService is any service that can deliver push notifications.
type PushService interface {
	// SendMessages delivers messages concurrently; delivery is best-effort.
	SendMessages(messages ...*PushMessage)
}
