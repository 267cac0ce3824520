package pgrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/balozi/core/event"
)

type eventRepository struct {
	db *sqlx.DB
}

var _ event.Repository = (*eventRepository)(nil) // interface compliance check

func NewEventRepository(db *sqlx.DB) *eventRepository {
	return &eventRepository{db: db}
}

type eventRow struct {
	ID          string    `db:"id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	Location    string    `db:"location"`
	StartsAt    time.Time `db:"starts_at"`
	EndsAt      time.Time `db:"ends_at"`
	CreatedBy   string    `db:"created_by"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r eventRow) toEvent() event.Event {
	return event.Event(r)
}

const eventCols = `id, title, description, location, starts_at, ends_at, created_by, created_at, updated_at`

func (repo eventRepository) CreateEvent(ctx context.Context, evt event.Event) (event.Event, error) {
	evt.ID = uuid.New().String()
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO event (`+eventCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		evt.ID, evt.Title, evt.Description, evt.Location,
		evt.StartsAt, evt.EndsAt, evt.CreatedBy, evt.CreatedAt, evt.UpdatedAt)
	if err != nil {
		return event.Event{}, errors.Wrap(err, "inserting event")
	}
	return evt, nil
}

func (repo eventRepository) UpdateEvent(ctx context.Context, evt event.Event) (event.Event, error) {
	res, err := repo.db.ExecContext(ctx, `
		UPDATE event
		SET title = $1, description = $2, location = $3, starts_at = $4, ends_at = $5, updated_at = $6
		WHERE id = $7`,
		evt.Title, evt.Description, evt.Location, evt.StartsAt, evt.EndsAt, evt.UpdatedAt, evt.ID)
	if err != nil {
		return event.Event{}, errors.Wrap(err, "updating event")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return event.Event{}, event.ErrNotFound
	}
	return evt, nil
}

func (repo eventRepository) DeleteEvent(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM event WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting event")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return event.ErrNotFound
	}
	return nil
}

func (repo eventRepository) GetEventByID(ctx context.Context, id string) (event.Event, error) {
	var row eventRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT `+eventCols+` FROM event WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return event.Event{}, event.ErrNotFound
		}
		return event.Event{}, errors.Wrap(err, "getting event")
	}
	return row.toEvent(), nil
}

func (repo eventRepository) FilterEvents(ctx context.Context, filter event.QueryFilter) ([]event.Event, error) {
	q := `SELECT ` + eventCols + ` FROM event WHERE 1=1`
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return "?"
	}

	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		q += ` AND (title ILIKE ` + arg(val) + ` OR location ILIKE ` + arg(val) + `)`
	}
	if !filter.From.IsZero() {
		q += ` AND starts_at >= ` + arg(filter.From.UTC())
	}
	if !filter.To.IsZero() {
		q += ` AND starts_at <= ` + arg(filter.To.UTC())
	}
	if !filter.UpcomingAt.IsZero() {
		q += ` AND ends_at > ` + arg(filter.UpcomingAt.UTC())
	}
	q += ` ORDER BY starts_at ASC`
	q = repo.db.Rebind(q)

	var rows []eventRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "filtering events")
	}
	events := make([]event.Event, 0, len(rows))
	for _, row := range rows {
		events = append(events, row.toEvent())
	}
	return events, nil
}

func (repo eventRepository) UpsertRSVP(ctx context.Context, rsvp event.RSVP) (event.RSVP, error) {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO event_rsvp (event_id, user_id, status, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event_id, user_id)
		DO UPDATE SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`,
		rsvp.EventID, rsvp.UserID, string(rsvp.Status), rsvp.UpdatedAt)
	if err != nil {
		return event.RSVP{}, errors.Wrap(err, "upserting rsvp")
	}
	return rsvp, nil
}

func (repo eventRepository) QueryRSVPs(ctx context.Context, eventID string) ([]event.RSVP, error) {
	type rsvpRow struct {
		EventID   string    `db:"event_id"`
		UserID    string    `db:"user_id"`
		Status    string    `db:"status"`
		UpdatedAt time.Time `db:"updated_at"`
	}
	var rows []rsvpRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT event_id, user_id, status, updated_at FROM event_rsvp
		WHERE event_id = $1 ORDER BY updated_at ASC`, eventID)
	if err != nil {
		return nil, errors.Wrap(err, "querying rsvps")
	}
	rsvps := make([]event.RSVP, 0, len(rows))
	for _, row := range rows {
		rsvps = append(rsvps, event.RSVP{
			EventID:   row.EventID,
			UserID:    row.UserID,
			Status:    event.RSVPStatus(row.Status),
			UpdatedAt: row.UpdatedAt,
		})
	}
	return rsvps, nil
}

func (repo eventRepository) CreateComment(ctx context.Context, cmt event.Comment) (event.Comment, error) {
	cmt.ID = uuid.New().String()
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO event_comment (id, event_id, user_id, body, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		cmt.ID, cmt.EventID, cmt.UserID, cmt.Body, cmt.CreatedAt)
	if err != nil {
		return event.Comment{}, errors.Wrap(err, "inserting comment")
	}
	return cmt, nil
}

func (repo eventRepository) QueryComments(ctx context.Context, eventID string) ([]event.Comment, error) {
	type commentRow struct {
		ID        string    `db:"id"`
		EventID   string    `db:"event_id"`
		UserID    string    `db:"user_id"`
		Body      string    `db:"body"`
		CreatedAt time.Time `db:"created_at"`
	}
	var rows []commentRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT id, event_id, user_id, body, created_at FROM event_comment
		WHERE event_id = $1 ORDER BY created_at ASC`, eventID)
	if err != nil {
		return nil, errors.Wrap(err, "querying comments")
	}
	comments := make([]event.Comment, 0, len(rows))
	for _, row := range rows {
		comments = append(comments, event.Comment(row))
	}
	return comments, nil
}
