package pgrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/balozi/core/hours"
)

type hoursRepository struct {
	db *sqlx.DB
}

var _ hours.Repository = (*hoursRepository)(nil) // interface compliance check

func NewHoursRepository(db *sqlx.DB) *hoursRepository {
	return &hoursRepository{db: db}
}

type entryRow struct {
	ID          string          `db:"id"`
	UserID      string          `db:"user_id"`
	Activity    string          `db:"activity"`
	Description string          `db:"description"`
	Hours       decimal.Decimal `db:"hours"`
	ServedOn    time.Time       `db:"served_on"`
	Status      string          `db:"status"`
	ReviewedBy  string          `db:"reviewed_by"`
	ReviewNote  string          `db:"review_note"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
	ReviewedAt  sql.NullTime    `db:"reviewed_at"`
}

func (r entryRow) toEntry() hours.Entry {
	entry := hours.Entry{
		ID:          r.ID,
		UserID:      r.UserID,
		Activity:    r.Activity,
		Description: r.Description,
		Hours:       r.Hours,
		ServedOn:    r.ServedOn,
		Status:      hours.Status(r.Status),
		ReviewedBy:  r.ReviewedBy,
		ReviewNote:  r.ReviewNote,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.ReviewedAt.Valid {
		entry.ReviewedAt = r.ReviewedAt.Time
	}
	return entry
}

const entryCols = `id, user_id, activity, description, hours, served_on, status, reviewed_by, review_note, created_at, updated_at, reviewed_at`

func (repo hoursRepository) CreateEntry(ctx context.Context, entry hours.Entry) (hours.Entry, error) {
	entry.ID = uuid.New().String()
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO hours_entry (`+entryCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		entry.ID, entry.UserID, entry.Activity, entry.Description, entry.Hours,
		entry.ServedOn, string(entry.Status), entry.ReviewedBy, entry.ReviewNote,
		entry.CreatedAt, entry.UpdatedAt,
		sql.NullTime{Time: entry.ReviewedAt, Valid: !entry.ReviewedAt.IsZero()})
	if err != nil {
		return hours.Entry{}, errors.Wrap(err, "inserting entry")
	}
	return entry, nil
}

func (repo hoursRepository) GetEntryByID(ctx context.Context, id string) (hours.Entry, error) {
	var row entryRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT `+entryCols+` FROM hours_entry WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return hours.Entry{}, hours.ErrNotFound
		}
		return hours.Entry{}, errors.Wrap(err, "getting entry")
	}
	return row.toEntry(), nil
}

func (repo hoursRepository) FilterEntries(ctx context.Context, filter hours.QueryFilter) ([]hours.Entry, error) {
	q := `SELECT ` + entryCols + ` FROM hours_entry WHERE 1=1`
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return "?"
	}

	if filter.UserID != "" {
		q += ` AND user_id = ` + arg(filter.UserID)
	}
	if filter.Status != "" {
		q += ` AND status = ` + arg(string(filter.Status))
	}
	if !filter.ServedFrom.IsZero() {
		q += ` AND served_on >= ` + arg(filter.ServedFrom.UTC())
	}
	if !filter.ServedTo.IsZero() {
		q += ` AND served_on <= ` + arg(filter.ServedTo.UTC())
	}
	q += ` ORDER BY served_on DESC, created_at DESC`
	q = repo.db.Rebind(q)

	var rows []entryRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "filtering entries")
	}
	entries := make([]hours.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.toEntry())
	}
	return entries, nil
}

// ReviewEntry flips pending -> approved|rejected in one guarded statement so
// two racing reviews cannot both land.
func (repo hoursRepository) ReviewEntry(ctx context.Context, id string, to hours.Status, reviewedBy, note string) (hours.Entry, error) {
	now := time.Now().UTC()
	var row entryRow
	err := repo.db.GetContext(ctx, &row, `
		UPDATE hours_entry
		SET status = $1, reviewed_by = $2, review_note = $3, reviewed_at = $4, updated_at = $4
		WHERE id = $5 AND status = $6
		RETURNING `+entryCols,
		string(to), reviewedBy, note, now, id, string(hours.StatusPending))
	if err == nil {
		return row.toEntry(), nil
	}
	if err != sql.ErrNoRows {
		return hours.Entry{}, errors.Wrap(err, "reviewing entry")
	}

	if _, gErr := repo.GetEntryByID(ctx, id); gErr != nil {
		return hours.Entry{}, gErr
	}
	return hours.Entry{}, hours.ErrInvalidState
}

func (repo hoursRepository) SumApprovedHours(ctx context.Context, userID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := repo.db.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(hours), 0) FROM hours_entry
		WHERE user_id = $1 AND status = $2`,
		userID, string(hours.StatusApproved))
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "summing approved hours")
	}
	return total, nil
}
