package notification

import (
	"context"
	"errors"
	"time"

	"github.com/trezcool/balozi/core"
)

var ErrNotFound = errors.New("notification not found")

type (
	Repository interface {
		CreateNotification(ctx context.Context, notif Notification) (Notification, error)
		FilterNotifications(ctx context.Context, filter QueryFilter) ([]Notification, error)
		// MarkNotificationsRead stamps ReadAt on the given notifications,
		// scoped to userID so users cannot ack each other's inboxes.
		MarkNotificationsRead(ctx context.Context, userID string, at time.Time, ids ...string) error
	}

	Service struct {
		repo    Repository
		pushSvc core.PushService
	}
)

func NewService(repo Repository, pushSvc core.PushService) *Service {
	return &Service{repo: repo, pushSvc: pushSvc}
}

// Notify records an inbox entry for the user and mirrors it to their devices.
// Push delivery is best-effort; the inbox record is the source of truth.
func (svc *Service) Notify(ctx context.Context, userID string, kind Kind, title, body string, data map[string]string) (Notification, error) {
	notif, err := svc.repo.CreateNotification(ctx, Notification{
		UserID:    userID,
		Kind:      kind,
		Title:     title,
		Body:      body,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return Notification{}, err
	}

	if svc.pushSvc != nil {
		svc.pushSvc.SendMessages(&core.PushMessage{
			UserID: userID,
			Title:  title,
			Body:   body,
			Data:   data,
		})
	}
	return notif, nil
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Notification, error) {
	return svc.repo.FilterNotifications(ctx, filter)
}

func (svc *Service) MarkRead(ctx context.Context, userID string, ids ...string) error {
	return svc.repo.MarkNotificationsRead(ctx, userID, time.Now().UTC(), ids...)
}
