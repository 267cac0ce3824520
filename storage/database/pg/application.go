package pgrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/balozi/core/application"
)

type applicationRepository struct {
	db *sqlx.DB
}

var _ application.Repository = (*applicationRepository)(nil) // interface compliance check

func NewApplicationRepository(db *sqlx.DB) *applicationRepository {
	return &applicationRepository{db: db}
}

type applicationRow struct {
	ID          string `db:"id"`
	Phone       string `db:"phone"`
	Status      string `db:"status"`
	CurrentStep int    `db:"current_step"`

	FirstName    string `db:"first_name"`
	LastName     string `db:"last_name"`
	Email        string `db:"email"`
	CurrentGrade string `db:"current_grade"`
	EntryGrade   string `db:"entry_grade"`

	GPA           string `db:"gpa"`
	TranscriptURL string `db:"transcript_url"`

	Ref1Name  string `db:"ref1_name"`
	Ref1Email string `db:"ref1_email"`
	Ref2Name  string `db:"ref2_name"`
	Ref2Email string `db:"ref2_email"`

	Answer1 string `db:"answer1"`
	Answer2 string `db:"answer2"`
	Answer3 string `db:"answer3"`
	Answer4 string `db:"answer4"`
	Answer5 string `db:"answer5"`
	Answer6 string `db:"answer6"`
	Answer7 string `db:"answer7"`
	Answer8 string `db:"answer8"`
	Answer9 string `db:"answer9"`

	DecidedBy   string       `db:"decided_by"`
	CreatedAt   time.Time    `db:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at"`
	SubmittedAt sql.NullTime `db:"submitted_at"`
	DecidedAt   sql.NullTime `db:"decided_at"`
}

func (r applicationRow) toApp() application.Application {
	app := application.Application{
		ID:            r.ID,
		Phone:         r.Phone,
		Status:        application.Status(r.Status),
		CurrentStep:   r.CurrentStep,
		FirstName:     r.FirstName,
		LastName:      r.LastName,
		Email:         r.Email,
		CurrentGrade:  r.CurrentGrade,
		EntryGrade:    r.EntryGrade,
		GPA:           r.GPA,
		TranscriptURL: r.TranscriptURL,
		Ref1Name:      r.Ref1Name,
		Ref1Email:     r.Ref1Email,
		Ref2Name:      r.Ref2Name,
		Ref2Email:     r.Ref2Email,
		Answer1:       r.Answer1,
		Answer2:       r.Answer2,
		Answer3:       r.Answer3,
		Answer4:       r.Answer4,
		Answer5:       r.Answer5,
		Answer6:       r.Answer6,
		Answer7:       r.Answer7,
		Answer8:       r.Answer8,
		Answer9:       r.Answer9,
		DecidedBy:     r.DecidedBy,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.SubmittedAt.Valid {
		app.SubmittedAt = r.SubmittedAt.Time
	}
	if r.DecidedAt.Valid {
		app.DecidedAt = r.DecidedAt.Time
	}
	return app
}

func newApplicationRow(app application.Application) applicationRow {
	return applicationRow{
		ID:            app.ID,
		Phone:         app.Phone,
		Status:        string(app.Status),
		CurrentStep:   app.CurrentStep,
		FirstName:     app.FirstName,
		LastName:      app.LastName,
		Email:         app.Email,
		CurrentGrade:  app.CurrentGrade,
		EntryGrade:    app.EntryGrade,
		GPA:           app.GPA,
		TranscriptURL: app.TranscriptURL,
		Ref1Name:      app.Ref1Name,
		Ref1Email:     app.Ref1Email,
		Ref2Name:      app.Ref2Name,
		Ref2Email:     app.Ref2Email,
		Answer1:       app.Answer1,
		Answer2:       app.Answer2,
		Answer3:       app.Answer3,
		Answer4:       app.Answer4,
		Answer5:       app.Answer5,
		Answer6:       app.Answer6,
		Answer7:       app.Answer7,
		Answer8:       app.Answer8,
		Answer9:       app.Answer9,
		DecidedBy:     app.DecidedBy,
		CreatedAt:     app.CreatedAt,
		UpdatedAt:     app.UpdatedAt,
		SubmittedAt:   sql.NullTime{Time: app.SubmittedAt, Valid: !app.SubmittedAt.IsZero()},
		DecidedAt:     sql.NullTime{Time: app.DecidedAt, Valid: !app.DecidedAt.IsZero()},
	}
}

const applicationCols = `id, phone, status, current_step,
	first_name, last_name, email, current_grade, entry_grade,
	gpa, transcript_url,
	ref1_name, ref1_email, ref2_name, ref2_email,
	answer1, answer2, answer3, answer4, answer5, answer6, answer7, answer8, answer9,
	decided_by, created_at, updated_at, submitted_at, decided_at`

// trapNoRowsErr maps psql "no rows" err to application.ErrNotFound
func trapAppNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return application.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo applicationRepository) GetApplicationByPhone(ctx context.Context, phone string) (application.Application, error) {
	var row applicationRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT `+applicationCols+` FROM application WHERE phone = $1`, phone)
	if err != nil {
		return application.Application{}, trapAppNoRowsErr(err, "getting application")
	}
	return row.toApp(), nil
}

func (repo applicationRepository) FilterApplications(ctx context.Context, filter application.QueryFilter) ([]application.Application, error) {
	q := `SELECT ` + applicationCols + ` FROM application WHERE 1=1`
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return "?"
	}

	if filter.Status != "" {
		q += ` AND status = ` + arg(string(filter.Status))
	}
	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		q += ` AND (first_name ILIKE ` + arg(val) + ` OR last_name ILIKE ` + arg(val) +
			` OR email ILIKE ` + arg(val) + ` OR phone LIKE ` + arg(val) + `)`
	}
	if !filter.CreatedFrom.IsZero() {
		q += ` AND created_at >= ` + arg(filter.CreatedFrom.UTC())
	}
	if !filter.CreatedTo.IsZero() {
		q += ` AND created_at <= ` + arg(filter.CreatedTo.UTC())
	}
	q += orderBy(filter.Orderings, applicationOrderCols, `created_at DESC`)
	q = repo.db.Rebind(q)

	var rows []applicationRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "filtering applications")
	}
	apps := make([]application.Application, 0, len(rows))
	for _, row := range rows {
		apps = append(apps, row.toApp())
	}
	return apps, nil
}

// UpsertApplicationStep merges patch into the record for phone inside a
// single-row transaction so concurrent step saves cannot interleave a
// half-merged state. CurrentStep only ever grows.
func (repo applicationRepository) UpsertApplicationStep(ctx context.Context, phone string, patch application.StepPatch) (application.Application, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return application.Application{}, errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()

	var row applicationRow
	err = tx.GetContext(ctx, &row,
		`SELECT `+applicationCols+` FROM application WHERE phone = $1 FOR UPDATE`, phone)
	switch err {
	case nil:
		if application.Status(row.Status) != application.StatusDraft {
			return application.Application{}, application.ErrInvalidState
		}
		app := patch.Apply(row.toApp())
		app.UpdatedAt = now
		row = newApplicationRow(app)
		if _, err = tx.NamedExecContext(ctx, `
			UPDATE application SET
				current_step = :current_step,
				first_name = :first_name, last_name = :last_name, email = :email,
				current_grade = :current_grade, entry_grade = :entry_grade,
				gpa = :gpa, transcript_url = :transcript_url,
				ref1_name = :ref1_name, ref1_email = :ref1_email,
				ref2_name = :ref2_name, ref2_email = :ref2_email,
				answer1 = :answer1, answer2 = :answer2, answer3 = :answer3,
				answer4 = :answer4, answer5 = :answer5, answer6 = :answer6,
				answer7 = :answer7, answer8 = :answer8, answer9 = :answer9,
				updated_at = :updated_at
			WHERE phone = :phone`, row); err != nil {
			return application.Application{}, errors.Wrap(err, "updating application step")
		}
	case sql.ErrNoRows:
		app := patch.Apply(application.Application{
			ID:        uuid.New().String(),
			Phone:     phone,
			Status:    application.StatusDraft,
			CreatedAt: now,
			UpdatedAt: now,
		})
		row = newApplicationRow(app)
		if _, err = tx.NamedExecContext(ctx, `
			INSERT INTO application (`+applicationCols+`) VALUES (
				:id, :phone, :status, :current_step,
				:first_name, :last_name, :email, :current_grade, :entry_grade,
				:gpa, :transcript_url,
				:ref1_name, :ref1_email, :ref2_name, :ref2_email,
				:answer1, :answer2, :answer3, :answer4, :answer5, :answer6, :answer7, :answer8, :answer9,
				:decided_by, :created_at, :updated_at, :submitted_at, :decided_at)`, row); err != nil {
			return application.Application{}, errors.Wrap(err, "inserting application")
		}
	default:
		return application.Application{}, errors.Wrap(err, "getting application for update")
	}

	if err = tx.Commit(); err != nil {
		return application.Application{}, errors.Wrap(err, "committing application step")
	}
	return row.toApp(), nil
}

// FinalizeApplication flips draft -> submitted in one guarded statement so
// two racing submits cannot both succeed.
func (repo applicationRepository) FinalizeApplication(ctx context.Context, phone string) (application.Application, error) {
	now := time.Now().UTC()
	var row applicationRow
	err := repo.db.GetContext(ctx, &row, `
		UPDATE application
		SET status = $1, submitted_at = $2, updated_at = $2
		WHERE phone = $3 AND status = $4
		RETURNING `+applicationCols,
		string(application.StatusSubmitted), now, phone, string(application.StatusDraft))
	if err == nil {
		return row.toApp(), nil
	}
	if err != sql.ErrNoRows {
		return application.Application{}, errors.Wrap(err, "finalizing application")
	}

	// no draft row: either already submitted or nothing there at all
	if _, gErr := repo.GetApplicationByPhone(ctx, phone); gErr != nil {
		return application.Application{}, gErr
	}
	return application.Application{}, application.ErrAlreadySubmitted
}

func (repo applicationRepository) DecideApplication(ctx context.Context, phone string, to application.Status, decidedBy string) (application.Application, error) {
	if !application.StatusSubmitted.CanTransition(to) {
		return application.Application{}, application.ErrInvalidState
	}

	now := time.Now().UTC()
	var row applicationRow
	err := repo.db.GetContext(ctx, &row, `
		UPDATE application
		SET status = $1, decided_by = $2, decided_at = $3, updated_at = $3
		WHERE phone = $4 AND status = $5
		RETURNING `+applicationCols,
		string(to), decidedBy, now, phone, string(application.StatusSubmitted))
	if err == nil {
		return row.toApp(), nil
	}
	if err != sql.ErrNoRows {
		return application.Application{}, errors.Wrap(err, "deciding application")
	}

	if _, gErr := repo.GetApplicationByPhone(ctx, phone); gErr != nil {
		return application.Application{}, gErr
	}
	return application.Application{}, application.ErrInvalidState
}

func (repo applicationRepository) DeleteApplication(ctx context.Context, phone string) error {
	res, err := repo.db.ExecContext(ctx,
		`DELETE FROM application WHERE phone = $1 AND status = $2`,
		phone, string(application.StatusDraft))
	if err != nil {
		return errors.Wrap(err, "deleting application")
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	if _, err := repo.GetApplicationByPhone(ctx, phone); err != nil {
		return err
	}
	return application.ErrInvalidState
}
