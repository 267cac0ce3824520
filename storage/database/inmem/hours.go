package inmemdb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/trezcool/balozi/core/hours"
)

type hoursRepository struct {
	db *hoursTable
}

var _ hours.Repository = (*hoursRepository)(nil) // interface compliance check

func NewHoursRepository(db *DB) *hoursRepository {
	return &hoursRepository{db: db.hours}
}

func (repo *hoursRepository) CreateEntry(ctx context.Context, entry hours.Entry) (hours.Entry, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	repo.db.table[entry.ID] = &entry
	return entry, nil
}

func (repo *hoursRepository) GetEntryByID(ctx context.Context, id string) (hours.Entry, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if entry, ok := repo.db.table[id]; ok {
		return *entry, nil
	}
	return hours.Entry{}, hours.ErrNotFound
}

func (repo *hoursRepository) FilterEntries(ctx context.Context, filter hours.QueryFilter) ([]hours.Entry, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var entries []hours.Entry
	for _, entry := range repo.db.table {
		if filter.UserID != "" && entry.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && entry.Status != filter.Status {
			continue
		}
		if !filter.ServedFrom.IsZero() && entry.ServedOn.Before(filter.ServedFrom) {
			continue
		}
		if !filter.ServedTo.IsZero() && entry.ServedOn.After(filter.ServedTo) {
			continue
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

func (repo *hoursRepository) ReviewEntry(ctx context.Context, id string, to hours.Status, reviewedBy, note string) (hours.Entry, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	entry, ok := repo.db.table[id]
	if !ok {
		return hours.Entry{}, hours.ErrNotFound
	}
	if entry.Status != hours.StatusPending {
		return hours.Entry{}, hours.ErrInvalidState
	}

	now := time.Now().UTC()
	entry.Status = to
	entry.ReviewedBy = reviewedBy
	entry.ReviewNote = note
	entry.ReviewedAt = now
	entry.UpdatedAt = now
	return *entry, nil
}

func (repo *hoursRepository) SumApprovedHours(ctx context.Context, userID string) (decimal.Decimal, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	total := decimal.Zero
	for _, entry := range repo.db.table {
		if entry.UserID == userID && entry.Status == hours.StatusApproved {
			total = total.Add(entry.Hours)
		}
	}
	return total, nil
}
