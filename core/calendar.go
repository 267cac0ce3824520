package core

import (
	"context"
	"time"
)

// CalendarEntry is the one-way projection of an event pushed to an external
// calendar. The external calendar is never read back.
type CalendarEntry struct {
	UID         string
	Title       string
	Description string
	Location    string
	StartsAt    time.Time
	EndsAt      time.Time
}

// CalendarService pushes event entries to an external calendar.
type CalendarService interface {
	// PushEntry creates or replaces the entry identified by entry.UID.
	PushEntry(ctx context.Context, entry CalendarEntry) error
	// RemoveEntry deletes the entry; unknown UIDs are a no-op.
	RemoveEntry(ctx context.Context, uid string) error
}
