package chat

import (
	"context"
	"errors"
	"time"

	"github.com/trezcool/balozi/core"
	"github.com/trezcool/balozi/core/notification"
)

var ErrNotFound = errors.New("message not found")

// TopicPrefix namespaces chat topics on the realtime broker.
const TopicPrefix = "chat:"

type (
	Repository interface {
		CreateMessage(ctx context.Context, msg Message) (Message, error)
		// FilterMessages returns a thread's messages, oldest first.
		FilterMessages(ctx context.Context, filter HistoryFilter) ([]Message, error)
		// QueryThreads returns the user's conversations, most recent first.
		QueryThreads(ctx context.Context, userID string) ([]ThreadSummary, error)
	}

	Service struct {
		repo     Repository
		broker   core.Broker
		notifSvc *notification.Service
		logger   core.Logger
	}
)

func NewService(repo Repository, broker core.Broker, notifSvc *notification.Service, logger core.Logger) *Service {
	return &Service{
		repo:     repo,
		broker:   broker,
		notifSvc: notifSvc,
		logger:   logger,
	}
}

// Send persists the message, fans it out on the thread's realtime topic and
// notifies the recipient. The same ClientRef sent twice (client retry) yields
// the original message back rather than a duplicate.
func (svc *Service) Send(ctx context.Context, senderID string, nm NewMessage) (Message, error) {
	threadID := ThreadID(senderID, nm.RecipientID)

	if nm.ClientRef != "" {
		// retry detection: an identical send may already be acknowledged
		history, err := svc.repo.FilterMessages(ctx, HistoryFilter{ThreadID: threadID})
		if err != nil {
			return Message{}, err
		}
		for _, msg := range history {
			if msg.ClientRef == nm.ClientRef && msg.SenderID == senderID {
				return msg, nil
			}
		}
	}

	msg, err := svc.repo.CreateMessage(ctx, Message{
		ThreadID:    threadID,
		SenderID:    senderID,
		RecipientID: nm.RecipientID,
		Body:        nm.Body,
		ClientRef:   nm.ClientRef,
		SentAt:      time.Now().UTC(),
	})
	if err != nil {
		return Message{}, err
	}

	if svc.broker != nil {
		err := svc.broker.Publish(ctx, core.RealtimeEvent{
			Topic:   TopicPrefix + threadID,
			Kind:    "chat:message",
			Payload: msg,
		})
		if err != nil && svc.logger != nil {
			svc.logger.Warn("realtime publish failed", err)
		}
	}
	if svc.notifSvc != nil {
		_, err := svc.notifSvc.Notify(ctx, nm.RecipientID, notification.KindChatMessage,
			"New message", nm.Body, map[string]string{"thread_id": threadID, "sender_id": senderID})
		if err != nil && svc.logger != nil {
			svc.logger.Warn("notification dispatch failed", err)
		}
	}
	return msg, nil
}

// History returns a thread's messages for one of its participants.
func (svc *Service) History(ctx context.Context, userID, peerID string, since time.Time, limit int) ([]Message, error) {
	return svc.repo.FilterMessages(ctx, HistoryFilter{
		ThreadID: ThreadID(userID, peerID),
		Since:    since,
		Limit:    limit,
	})
}

// Threads returns the user's conversation list.
func (svc *Service) Threads(ctx context.Context, userID string) ([]ThreadSummary, error) {
	return svc.repo.QueryThreads(ctx, userID)
}

// Subscribe attaches to a thread's realtime topic.
func (svc *Service) Subscribe(userID, peerID string) (<-chan core.RealtimeEvent, func()) {
	return svc.broker.Subscribe(TopicPrefix + ThreadID(userID, peerID))
}
