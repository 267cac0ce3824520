package event

import (
	"fmt"
	"strings"
	"time"

	"github.com/trezcool/balozi/core"
)

// SyncDescription builds the description block pushed with an event to the
// external calendar: the event's own description followed by location, time
// and RSVP headcount lines. Pure; the sync itself happens in the service.
func SyncDescription(evt Event, going, maybe int) string {
	var b strings.Builder
	if evt.Description != "" {
		b.WriteString(evt.Description)
		b.WriteString("\n\n")
	}
	if evt.Location != "" {
		fmt.Fprintf(&b, "Where: %s\n", evt.Location)
	}
	fmt.Fprintf(&b, "When: %s - %s\n",
		evt.StartsAt.UTC().Format(time.RFC1123),
		evt.EndsAt.UTC().Format(time.RFC1123),
	)
	fmt.Fprintf(&b, "RSVPs: %d going, %d maybe\n", going, maybe)
	return b.String()
}

// calendarEntry projects an event to its external-calendar form.
func calendarEntry(evt Event, going, maybe int) core.CalendarEntry {
	return core.CalendarEntry{
		UID:         evt.ID,
		Title:       evt.Title,
		Description: SyncDescription(evt, going, maybe),
		Location:    evt.Location,
		StartsAt:    evt.StartsAt,
		EndsAt:      evt.EndsAt,
	}
}
