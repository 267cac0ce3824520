package event

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/balozi/core"
)

// Event is a scheduled program event ambassadors can RSVP to and comment on.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// NewEvent contains information needed to schedule a new Event.
type NewEvent struct {
	Title       string    `json:"title" validate:"required,notblank"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	StartsAt    time.Time `json:"starts_at" validate:"required"`
	EndsAt      time.Time `json:"ends_at" validate:"required"`
}

func (ne *NewEvent) Validate(validate *validator.Validate) error {
	ne.Title = core.CleanString(ne.Title)
	ne.Description = core.CleanString(ne.Description)
	ne.Location = core.CleanString(ne.Location)

	if err := validate.Struct(ne); err != nil {
		return err
	}
	if !ne.EndsAt.After(ne.StartsAt) {
		return core.NewValidationError(
			errors.New("invalid event schedule"),
			core.FieldError{Field: "ends_at", Error: "must be after starts_at"},
		)
	}
	return nil
}

// RSVPStatus is an attendee's reply.
type RSVPStatus string

const (
	RSVPGoing    RSVPStatus = "going"
	RSVPMaybe    RSVPStatus = "maybe"
	RSVPDeclined RSVPStatus = "declined"
)

func (s RSVPStatus) Valid() bool {
	switch s {
	case RSVPGoing, RSVPMaybe, RSVPDeclined:
		return true
	}
	return false
}

// RSVP is one user's reply to one event; re-replying overwrites it.
type RSVP struct {
	EventID   string     `json:"event_id"`
	UserID    string     `json:"user_id"`
	Status    RSVPStatus `json:"status"`
	UpdatedAt time.Time  `json:"updated_at"` // UTC
}

// Comment is a user comment on an event.
type Comment struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	UserID    string    `json:"user_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// NewComment contains information needed to post a Comment.
type NewComment struct {
	Body string `json:"body" validate:"required,notblank"`
}

func (nc *NewComment) Validate(validate *validator.Validate) error {
	nc.Body = core.CleanString(nc.Body)
	return validate.Struct(nc)
}

// QueryFilter filters event queries. Fields are ANDed.
type QueryFilter struct {
	Search     string // matches title or location
	From       time.Time
	To         time.Time
	UpcomingAt time.Time // events not yet ended at this instant
}
