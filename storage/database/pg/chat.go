package pgrepos

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/balozi/core/chat"
)

type chatRepository struct {
	db *sqlx.DB
}

var _ chat.Repository = (*chatRepository)(nil) // interface compliance check

func NewChatRepository(db *sqlx.DB) *chatRepository {
	return &chatRepository{db: db}
}

type messageRow struct {
	ID          string    `db:"id"`
	ThreadID    string    `db:"thread_id"`
	SenderID    string    `db:"sender_id"`
	RecipientID string    `db:"recipient_id"`
	Body        string    `db:"body"`
	ClientRef   string    `db:"client_ref"`
	SentAt      time.Time `db:"sent_at"`
}

const messageCols = `id, thread_id, sender_id, recipient_id, body, client_ref, sent_at`

func (repo chatRepository) CreateMessage(ctx context.Context, msg chat.Message) (chat.Message, error) {
	msg.ID = uuid.New().String()
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO chat_message (`+messageCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		msg.ID, msg.ThreadID, msg.SenderID, msg.RecipientID, msg.Body, msg.ClientRef, msg.SentAt)
	if err != nil {
		return chat.Message{}, errors.Wrap(err, "inserting message")
	}
	return msg, nil
}

func (repo chatRepository) FilterMessages(ctx context.Context, filter chat.HistoryFilter) ([]chat.Message, error) {
	q := `SELECT ` + messageCols + ` FROM chat_message WHERE thread_id = ?`
	args := []interface{}{filter.ThreadID}

	if !filter.Since.IsZero() {
		q += ` AND sent_at > ?`
		args = append(args, filter.Since.UTC())
	}
	q += ` ORDER BY sent_at ASC, id ASC`
	if filter.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	q = repo.db.Rebind(q)

	var rows []messageRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "filtering messages")
	}
	msgs := make([]chat.Message, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, chat.Message(row))
	}
	return msgs, nil
}

func (repo chatRepository) QueryThreads(ctx context.Context, userID string) ([]chat.ThreadSummary, error) {
	// latest message per thread the user participates in
	var rows []messageRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT DISTINCT ON (thread_id) `+messageCols+`
		FROM chat_message
		WHERE sender_id = $1 OR recipient_id = $1
		ORDER BY thread_id, sent_at DESC, id DESC`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "querying threads")
	}

	threads := make([]chat.ThreadSummary, 0, len(rows))
	for _, row := range rows {
		peerID := row.SenderID
		if peerID == userID {
			peerID = row.RecipientID
		}
		threads = append(threads, chat.ThreadSummary{
			ThreadID: row.ThreadID,
			PeerID:   peerID,
			Last:     chat.Message(row),
		})
	}
	// most recent conversation first
	sort.Slice(threads, func(i, j int) bool {
		return threads[i].Last.SentAt.After(threads[j].Last.SentAt)
	})
	return threads, nil
}
