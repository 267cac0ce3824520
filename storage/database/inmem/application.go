package inmemdb

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/balozi/core/application"
)

type applicationRepository struct {
	db *applicationTable
}

var _ application.Repository = (*applicationRepository)(nil) // interface compliance check

func NewApplicationRepository(db *DB) *applicationRepository {
	return &applicationRepository{db: db.application}
}

func (repo *applicationRepository) GetApplicationByPhone(ctx context.Context, phone string) (application.Application, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if app, ok := repo.db.table[phone]; ok {
		return *app, nil
	}
	return application.Application{}, application.ErrNotFound
}

func (repo *applicationRepository) FilterApplications(ctx context.Context, filter application.QueryFilter) ([]application.Application, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	apps := make([]application.Application, 0, len(repo.db.table))
	for _, app := range repo.db.table {
		if filter.Status != "" && app.Status != filter.Status {
			continue
		}
		if filter.Search != "" && !appMatches(*app, filter.Search) {
			continue
		}
		if !filter.CreatedFrom.IsZero() && app.CreatedAt.Before(filter.CreatedFrom) {
			continue
		}
		if !filter.CreatedTo.IsZero() && app.CreatedAt.After(filter.CreatedTo) {
			continue
		}
		apps = append(apps, *app)
	}
	return apps, nil
}

func appMatches(app application.Application, search string) bool {
	search = strings.ToLower(search)
	for _, field := range []string{app.FirstName, app.LastName, app.Email, app.Phone} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

func (repo *applicationRepository) UpsertApplicationStep(ctx context.Context, phone string, patch application.StepPatch) (application.Application, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	now := time.Now().UTC()
	existing, ok := repo.db.table[phone]
	if !ok {
		app := patch.Apply(application.Application{
			ID:        uuid.New().String(),
			Phone:     phone,
			Status:    application.StatusDraft,
			CreatedAt: now,
			UpdatedAt: now,
		})
		repo.db.table[phone] = &app
		return app, nil
	}
	if existing.Status != application.StatusDraft {
		return application.Application{}, application.ErrInvalidState
	}

	app := patch.Apply(*existing)
	app.UpdatedAt = now
	repo.db.table[phone] = &app
	return app, nil
}

func (repo *applicationRepository) FinalizeApplication(ctx context.Context, phone string) (application.Application, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	app, ok := repo.db.table[phone]
	if !ok {
		return application.Application{}, application.ErrNotFound
	}
	if app.Status != application.StatusDraft {
		return application.Application{}, application.ErrAlreadySubmitted
	}

	now := time.Now().UTC()
	app.Status = application.StatusSubmitted
	app.SubmittedAt = now
	app.UpdatedAt = now
	return *app, nil
}

func (repo *applicationRepository) DecideApplication(ctx context.Context, phone string, to application.Status, decidedBy string) (application.Application, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	app, ok := repo.db.table[phone]
	if !ok {
		return application.Application{}, application.ErrNotFound
	}
	if !app.Status.CanTransition(to) {
		return application.Application{}, application.ErrInvalidState
	}

	now := time.Now().UTC()
	app.Status = to
	app.DecidedBy = decidedBy
	app.DecidedAt = now
	app.UpdatedAt = now
	return *app, nil
}

func (repo *applicationRepository) DeleteApplication(ctx context.Context, phone string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	app, ok := repo.db.table[phone]
	if !ok {
		return application.ErrNotFound
	}
	if app.Status != application.StatusDraft {
		return application.ErrInvalidState
	}
	delete(repo.db.table, phone)
	return nil
}
