package notification

import "time"

// Kind classifies a notification for client-side routing.
type Kind string

const (
	KindApplicationDecided Kind = "application:decided"
	KindHoursReviewed      Kind = "hours:reviewed"
	KindChatMessage        Kind = "chat:message"
	KindFeedPost           Kind = "feed:post"
	KindEventUpdated       Kind = "event:updated"
)

// Notification is one entry in a user's in-app inbox, mirrored to their
// devices through the push transport.
type Notification struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Kind      Kind              `json:"kind"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	ReadAt    time.Time         `json:"read_at,omitempty"`
	CreatedAt time.Time         `json:"created_at"` // UTC
}

func (n Notification) Read() bool {
	return !n.ReadAt.IsZero()
}

// QueryFilter filters a user's inbox.
type QueryFilter struct {
	UserID     string
	UnreadOnly bool
	Limit      int
}
