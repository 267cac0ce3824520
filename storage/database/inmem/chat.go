package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/balozi/core/chat"
)

type chatRepository struct {
	db *chatTable
}

var _ chat.Repository = (*chatRepository)(nil) // interface compliance check

func NewChatRepository(db *DB) *chatRepository {
	return &chatRepository{db: db.chat}
}

func (repo *chatRepository) CreateMessage(ctx context.Context, msg chat.Message) (chat.Message, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	repo.db.table = append(repo.db.table, &msg)
	return msg, nil
}

func (repo *chatRepository) FilterMessages(ctx context.Context, filter chat.HistoryFilter) ([]chat.Message, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var msgs []chat.Message
	for _, msg := range repo.db.table {
		if msg.ThreadID != filter.ThreadID {
			continue
		}
		if !filter.Since.IsZero() && !msg.SentAt.After(filter.Since) {
			continue
		}
		msgs = append(msgs, *msg)
	}
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].SentAt.Before(msgs[j].SentAt) })
	if filter.Limit > 0 && len(msgs) > filter.Limit {
		msgs = msgs[len(msgs)-filter.Limit:]
	}
	return msgs, nil
}

func (repo *chatRepository) QueryThreads(ctx context.Context, userID string) ([]chat.ThreadSummary, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	last := make(map[string]chat.Message)
	for _, msg := range repo.db.table {
		if msg.SenderID != userID && msg.RecipientID != userID {
			continue
		}
		if prev, ok := last[msg.ThreadID]; !ok || msg.SentAt.After(prev.SentAt) {
			last[msg.ThreadID] = *msg
		}
	}

	threads := make([]chat.ThreadSummary, 0, len(last))
	for threadID, msg := range last {
		peerID := msg.SenderID
		if peerID == userID {
			peerID = msg.RecipientID
		}
		threads = append(threads, chat.ThreadSummary{ThreadID: threadID, PeerID: peerID, Last: msg})
	}
	sort.Slice(threads, func(i, j int) bool { return threads[i].Last.SentAt.After(threads[j].Last.SentAt) })
	return threads, nil
}
