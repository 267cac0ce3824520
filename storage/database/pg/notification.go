package pgrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/balozi/core/notification"
)

type notificationRepository struct {
	db *sqlx.DB
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *sqlx.DB) *notificationRepository {
	return &notificationRepository{db: db}
}

type notificationRow struct {
	ID        string       `db:"id"`
	UserID    string       `db:"user_id"`
	Kind      string       `db:"kind"`
	Title     string       `db:"title"`
	Body      string       `db:"body"`
	Data      []byte       `db:"data"` // json object
	ReadAt    sql.NullTime `db:"read_at"`
	CreatedAt time.Time    `db:"created_at"`
}

func (r notificationRow) toNotification() (notification.Notification, error) {
	notif := notification.Notification{
		ID:        r.ID,
		UserID:    r.UserID,
		Kind:      notification.Kind(r.Kind),
		Title:     r.Title,
		Body:      r.Body,
		CreatedAt: r.CreatedAt,
	}
	if r.ReadAt.Valid {
		notif.ReadAt = r.ReadAt.Time
	}
	if len(r.Data) > 0 {
		if err := json.Unmarshal(r.Data, &notif.Data); err != nil {
			return notification.Notification{}, errors.Wrap(err, "decoding notification data")
		}
	}
	return notif, nil
}

const notificationCols = `id, user_id, kind, title, body, data, read_at, created_at`

func (repo notificationRepository) CreateNotification(ctx context.Context, notif notification.Notification) (notification.Notification, error) {
	notif.ID = uuid.New().String()
	data, err := json.Marshal(notif.Data)
	if err != nil {
		return notification.Notification{}, errors.Wrap(err, "encoding notification data")
	}
	_, err = repo.db.ExecContext(ctx, `
		INSERT INTO notification (`+notificationCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		notif.ID, notif.UserID, string(notif.Kind), notif.Title, notif.Body, data,
		sql.NullTime{Time: notif.ReadAt, Valid: !notif.ReadAt.IsZero()}, notif.CreatedAt)
	if err != nil {
		return notification.Notification{}, errors.Wrap(err, "inserting notification")
	}
	return notif, nil
}

func (repo notificationRepository) FilterNotifications(ctx context.Context, filter notification.QueryFilter) ([]notification.Notification, error) {
	q := `SELECT ` + notificationCols + ` FROM notification WHERE user_id = ?`
	args := []interface{}{filter.UserID}

	if filter.UnreadOnly {
		q += ` AND read_at IS NULL`
	}
	q += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	q = repo.db.Rebind(q)

	var rows []notificationRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "filtering notifications")
	}
	notifs := make([]notification.Notification, 0, len(rows))
	for _, row := range rows {
		notif, err := row.toNotification()
		if err != nil {
			return nil, err
		}
		notifs = append(notifs, notif)
	}
	return notifs, nil
}

func (repo notificationRepository) MarkNotificationsRead(ctx context.Context, userID string, at time.Time, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := repo.db.ExecContext(ctx, `
		UPDATE notification SET read_at = $1
		WHERE user_id = $2 AND id = ANY($3) AND read_at IS NULL`,
		at.UTC(), userID, pq.StringArray(ids))
	return errors.Wrap(err, "marking notifications read")
}
