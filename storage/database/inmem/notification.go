package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/balozi/core/notification"
)

type notificationRepository struct {
	db *notificationTable
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *DB) *notificationRepository {
	return &notificationRepository{db: db.notification}
}

func (repo *notificationRepository) CreateNotification(ctx context.Context, notif notification.Notification) (notification.Notification, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if notif.ID == "" {
		notif.ID = uuid.New().String()
	}
	repo.db.table[notif.ID] = &notif
	return notif, nil
}

func (repo *notificationRepository) FilterNotifications(ctx context.Context, filter notification.QueryFilter) ([]notification.Notification, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var notifs []notification.Notification
	for _, notif := range repo.db.table {
		if notif.UserID != filter.UserID {
			continue
		}
		if filter.UnreadOnly && notif.Read() {
			continue
		}
		notifs = append(notifs, *notif)
	}
	sort.Slice(notifs, func(i, j int) bool { return notifs[i].CreatedAt.After(notifs[j].CreatedAt) })
	if filter.Limit > 0 && len(notifs) > filter.Limit {
		notifs = notifs[:filter.Limit]
	}
	return notifs, nil
}

func (repo *notificationRepository) MarkNotificationsRead(ctx context.Context, userID string, at time.Time, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, id := range ids {
		notif, ok := repo.db.table[id]
		if !ok || notif.UserID != userID || notif.Read() {
			continue
		}
		notif.ReadAt = at.UTC()
	}
	return nil
}
