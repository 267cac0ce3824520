package chat

import (
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/balozi/core"
)

// Message is one direct message between two users.
type Message struct {
	ID          string    `json:"id"`
	ThreadID    string    `json:"thread_id"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id"`
	Body        string    `json:"body"`
	// ClientRef is the sender-generated reference used to reconcile an
	// optimistic local send with the server-acknowledged message.
	ClientRef string    `json:"client_ref,omitempty"`
	SentAt    time.Time `json:"sent_at"` // UTC
}

// NewMessage contains information needed to send a Message.
type NewMessage struct {
	RecipientID string `json:"recipient_id" validate:"required"`
	Body        string `json:"body" validate:"required,notblank"`
	ClientRef   string `json:"client_ref"`
}

func (nm *NewMessage) Validate(validate *validator.Validate) error {
	nm.Body = core.CleanString(nm.Body)
	return validate.Struct(nm)
}

// ThreadID derives the deterministic conversation key for a pair of users:
// the two IDs sorted and joined, so both ends compute the same key.
func ThreadID(userA, userB string) string {
	pair := []string{userA, userB}
	sort.Strings(pair)
	return strings.Join(pair, ":")
}

// ThreadSummary is one row of a user's conversation list.
type ThreadSummary struct {
	ThreadID string  `json:"thread_id"`
	PeerID   string  `json:"peer_id"`
	Last     Message `json:"last"`
}

// HistoryFilter pages through a thread's messages, oldest first.
type HistoryFilter struct {
	ThreadID string
	Since    time.Time // messages strictly after this instant
	Limit    int
}
