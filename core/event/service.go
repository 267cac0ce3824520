package event

import (
	"context"
	"errors"
	"time"

	"github.com/trezcool/balozi/core"
)

var (
	// errors
	ErrNotFound      = errors.New("event not found")
	ErrInvalidStatus = errors.New("invalid rsvp status")
)

const realtimeTopic = "events"

type (
	Repository interface {
		CreateEvent(ctx context.Context, evt Event) (Event, error)
		UpdateEvent(ctx context.Context, evt Event) (Event, error)
		DeleteEvent(ctx context.Context, id string) error
		GetEventByID(ctx context.Context, id string) (Event, error)
		// FilterEvents applies AND operation on available QueryFilter fields,
		// ordered by StartsAt ascending.
		FilterEvents(ctx context.Context, filter QueryFilter) ([]Event, error)

		// UpsertRSVP overwrites the user's previous reply to the event.
		UpsertRSVP(ctx context.Context, rsvp RSVP) (RSVP, error)
		QueryRSVPs(ctx context.Context, eventID string) ([]RSVP, error)

		CreateComment(ctx context.Context, cmt Comment) (Comment, error)
		// QueryComments returns an event's comments, oldest first.
		QueryComments(ctx context.Context, eventID string) ([]Comment, error)
	}

	Service struct {
		repo     Repository
		broker   core.Broker
		calendar core.CalendarService // nil disables the one-way sync
		logger   core.Logger
	}
)

func NewService(repo Repository, broker core.Broker, calendar core.CalendarService, logger core.Logger) *Service {
	return &Service{
		repo:     repo,
		broker:   broker,
		calendar: calendar,
		logger:   logger,
	}
}

func (svc *Service) Create(ctx context.Context, ne NewEvent, createdBy string) (Event, error) {
	now := time.Now().UTC()
	evt, err := svc.repo.CreateEvent(ctx, Event{
		Title:       ne.Title,
		Description: ne.Description,
		Location:    ne.Location,
		StartsAt:    ne.StartsAt,
		EndsAt:      ne.EndsAt,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return Event{}, err
	}
	svc.publish(ctx, "event:created", evt)
	svc.syncCalendar(ctx, evt)
	return evt, nil
}

func (svc *Service) Update(ctx context.Context, id string, ne NewEvent) (Event, error) {
	evt, err := svc.repo.GetEventByID(ctx, id)
	if err != nil {
		return Event{}, err
	}
	evt.Title = ne.Title
	evt.Description = ne.Description
	evt.Location = ne.Location
	evt.StartsAt = ne.StartsAt
	evt.EndsAt = ne.EndsAt
	evt.UpdatedAt = time.Now().UTC()

	evt, err = svc.repo.UpdateEvent(ctx, evt)
	if err != nil {
		return Event{}, err
	}
	svc.publish(ctx, "event:updated", evt)
	svc.syncCalendar(ctx, evt)
	return evt, nil
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	if err := svc.repo.DeleteEvent(ctx, id); err != nil {
		return err
	}
	svc.publish(ctx, "event:deleted", Event{ID: id})
	if svc.calendar != nil {
		if err := svc.calendar.RemoveEntry(ctx, id); err != nil && svc.logger != nil {
			svc.logger.Warn("calendar remove failed", err)
		}
	}
	return nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Event, error) {
	return svc.repo.GetEventByID(ctx, id)
}

func (svc *Service) Filter(ctx context.Context, filter QueryFilter) ([]Event, error) {
	return svc.repo.FilterEvents(ctx, filter)
}

// Reply upserts the user's RSVP and refreshes the calendar headcount.
func (svc *Service) Reply(ctx context.Context, eventID, userID string, status RSVPStatus) (RSVP, error) {
	if !status.Valid() {
		return RSVP{}, ErrInvalidStatus
	}
	evt, err := svc.repo.GetEventByID(ctx, eventID)
	if err != nil {
		return RSVP{}, err
	}

	rsvp, err := svc.repo.UpsertRSVP(ctx, RSVP{
		EventID:   eventID,
		UserID:    userID,
		Status:    status,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return RSVP{}, err
	}
	svc.publish(ctx, "event:rsvp", rsvp)
	svc.syncCalendar(ctx, evt)
	return rsvp, nil
}

func (svc *Service) RSVPs(ctx context.Context, eventID string) ([]RSVP, error) {
	return svc.repo.QueryRSVPs(ctx, eventID)
}

func (svc *Service) Comment(ctx context.Context, eventID, userID string, nc NewComment) (Comment, error) {
	if _, err := svc.repo.GetEventByID(ctx, eventID); err != nil {
		return Comment{}, err
	}
	cmt, err := svc.repo.CreateComment(ctx, Comment{
		EventID:   eventID,
		UserID:    userID,
		Body:      nc.Body,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return Comment{}, err
	}
	svc.publish(ctx, "event:comment", cmt)
	return cmt, nil
}

func (svc *Service) Comments(ctx context.Context, eventID string) ([]Comment, error) {
	return svc.repo.QueryComments(ctx, eventID)
}

func (svc *Service) publish(ctx context.Context, kind string, payload interface{}) {
	if svc.broker == nil {
		return
	}
	err := svc.broker.Publish(ctx, core.RealtimeEvent{
		Topic:   realtimeTopic,
		Kind:    kind,
		Payload: payload,
	})
	if err != nil && svc.logger != nil {
		svc.logger.Warn("realtime publish failed", err)
	}
}

// syncCalendar pushes the event to the external calendar; sync is one-way and
// best-effort, a failure never fails the triggering operation.
func (svc *Service) syncCalendar(ctx context.Context, evt Event) {
	if svc.calendar == nil {
		return
	}
	var going, maybe int
	if rsvps, err := svc.repo.QueryRSVPs(ctx, evt.ID); err == nil {
		for _, r := range rsvps {
			switch r.Status {
			case RSVPGoing:
				going++
			case RSVPMaybe:
				maybe++
			}
		}
	}
	if err := svc.calendar.PushEntry(ctx, calendarEntry(evt, going, maybe)); err != nil && svc.logger != nil {
		svc.logger.Warn("calendar sync failed", err)
	}
}
