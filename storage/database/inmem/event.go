package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/balozi/core/event"
)

type eventRepository struct {
	db *eventTable
}

var _ event.Repository = (*eventRepository)(nil) // interface compliance check

func NewEventRepository(db *DB) *eventRepository {
	return &eventRepository{db: db.event}
}

func (repo *eventRepository) CreateEvent(ctx context.Context, evt event.Event) (event.Event, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if evt.ID == "" {
		evt.ID = uuid.New().String()
	}
	repo.db.table[evt.ID] = &evt
	return evt, nil
}

func (repo *eventRepository) UpdateEvent(ctx context.Context, evt event.Event) (event.Event, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[evt.ID]; !ok {
		return event.Event{}, event.ErrNotFound
	}
	repo.db.table[evt.ID] = &evt
	return evt, nil
}

func (repo *eventRepository) DeleteEvent(ctx context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return event.ErrNotFound
	}
	delete(repo.db.table, id)
	delete(repo.db.rsvps, id)
	delete(repo.db.comments, id)
	return nil
}

func (repo *eventRepository) GetEventByID(ctx context.Context, id string) (event.Event, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if evt, ok := repo.db.table[id]; ok {
		return *evt, nil
	}
	return event.Event{}, event.ErrNotFound
}

func (repo *eventRepository) FilterEvents(ctx context.Context, filter event.QueryFilter) ([]event.Event, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var events []event.Event
	for _, evt := range repo.db.table {
		if filter.Search != "" && !eventMatches(*evt, filter.Search) {
			continue
		}
		if !filter.From.IsZero() && evt.StartsAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && evt.StartsAt.After(filter.To) {
			continue
		}
		if !filter.UpcomingAt.IsZero() && !evt.EndsAt.After(filter.UpcomingAt) {
			continue
		}
		events = append(events, *evt)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].StartsAt.Before(events[j].StartsAt) })
	return events, nil
}

func eventMatches(evt event.Event, search string) bool {
	search = strings.ToLower(search)
	return strings.Contains(strings.ToLower(evt.Title), search) ||
		strings.Contains(strings.ToLower(evt.Location), search)
}

func (repo *eventRepository) UpsertRSVP(ctx context.Context, rsvp event.RSVP) (event.RSVP, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[rsvp.EventID]; !ok {
		return event.RSVP{}, event.ErrNotFound
	}
	replies, ok := repo.db.rsvps[rsvp.EventID]
	if !ok {
		replies = make(map[string]*event.RSVP)
		repo.db.rsvps[rsvp.EventID] = replies
	}
	replies[rsvp.UserID] = &rsvp
	return rsvp, nil
}

func (repo *eventRepository) QueryRSVPs(ctx context.Context, eventID string) ([]event.RSVP, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	replies := repo.db.rsvps[eventID]
	rsvps := make([]event.RSVP, 0, len(replies))
	for _, rsvp := range replies {
		rsvps = append(rsvps, *rsvp)
	}
	sort.Slice(rsvps, func(i, j int) bool { return rsvps[i].UpdatedAt.Before(rsvps[j].UpdatedAt) })
	return rsvps, nil
}

func (repo *eventRepository) CreateComment(ctx context.Context, cmt event.Comment) (event.Comment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[cmt.EventID]; !ok {
		return event.Comment{}, event.ErrNotFound
	}
	if cmt.ID == "" {
		cmt.ID = uuid.New().String()
	}
	repo.db.comments[cmt.EventID] = append(repo.db.comments[cmt.EventID], &cmt)
	return cmt, nil
}

func (repo *eventRepository) QueryComments(ctx context.Context, eventID string) ([]event.Comment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	stored := repo.db.comments[eventID]
	comments := make([]event.Comment, 0, len(stored))
	for _, cmt := range stored {
		comments = append(comments, *cmt)
	}
	return comments, nil
}
