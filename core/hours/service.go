package hours

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/balozi/core"
	"github.com/trezcool/balozi/core/notification"
)

var (
	// errors
	ErrNotFound     = errors.New("entry not found")
	ErrInvalidState = errors.New("entry has already been reviewed")
)

type (
	Repository interface {
		CreateEntry(ctx context.Context, entry Entry) (Entry, error)
		GetEntryByID(ctx context.Context, id string) (Entry, error)
		// FilterEntries applies AND operation on available QueryFilter fields.
		FilterEntries(ctx context.Context, filter QueryFilter) ([]Entry, error)
		// ReviewEntry transitions pending -> approved|rejected exactly once;
		// ErrInvalidState if the entry already left pending.
		ReviewEntry(ctx context.Context, id string, to Status, reviewedBy, note string) (Entry, error)
		// SumApprovedHours totals the approved hours for a user.
		SumApprovedHours(ctx context.Context, userID string) (decimal.Decimal, error)
	}

	Service struct {
		repo     Repository
		notifSvc *notification.Service
		logger   core.Logger
	}
)

func NewService(repo Repository, notifSvc *notification.Service, logger core.Logger) *Service {
	return &Service{repo: repo, notifSvc: notifSvc, logger: logger}
}

// Submit records a new pending entry for the user; hrs comes pre-validated
// from NewEntry.Validate.
func (svc *Service) Submit(ctx context.Context, userID string, ne NewEntry, hrs decimal.Decimal) (Entry, error) {
	now := time.Now().UTC()
	return svc.repo.CreateEntry(ctx, Entry{
		UserID:      userID,
		Activity:    ne.Activity,
		Description: ne.Description,
		Hours:       hrs,
		ServedOn:    ne.ServedOn,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *Service) GetByID(ctx context.Context, id string) (Entry, error) {
	return svc.repo.GetEntryByID(ctx, id)
}

func (svc *Service) Filter(ctx context.Context, filter QueryFilter) ([]Entry, error) {
	return svc.repo.FilterEntries(ctx, filter)
}

// Approve marks a pending entry approved and notifies its owner.
func (svc *Service) Approve(ctx context.Context, id, reviewedBy, note string) (Entry, error) {
	return svc.review(ctx, id, StatusApproved, reviewedBy, note)
}

// Reject marks a pending entry rejected and notifies its owner.
func (svc *Service) Reject(ctx context.Context, id, reviewedBy, note string) (Entry, error) {
	return svc.review(ctx, id, StatusRejected, reviewedBy, note)
}

func (svc *Service) review(ctx context.Context, id string, to Status, reviewedBy, note string) (Entry, error) {
	entry, err := svc.repo.ReviewEntry(ctx, id, to, reviewedBy, note)
	if err != nil {
		return Entry{}, err
	}

	if svc.notifSvc != nil {
		title := "Service hours approved"
		if to == StatusRejected {
			title = "Service hours rejected"
		}
		body := fmt.Sprintf("%s hours for %q", entry.Hours.StringFixed(2), entry.Activity)
		_, err := svc.notifSvc.Notify(ctx, entry.UserID, notification.KindHoursReviewed, title, body, map[string]string{
			"entry_id": entry.ID,
			"status":   string(entry.Status),
		})
		if err != nil && svc.logger != nil {
			svc.logger.Warn("notification dispatch failed", err)
		}
	}
	return entry, nil
}

// ApprovedTotal returns the user's total approved hours.
func (svc *Service) ApprovedTotal(ctx context.Context, userID string) (decimal.Decimal, error) {
	return svc.repo.SumApprovedHours(ctx, userID)
}

// csv column layout for bulk entry import
var csvHeader = []string{"user_id", "activity", "description", "hours", "served_on", "status"}

// ImportCSV bulk-creates entries from a CSV stream.
// Expected columns: user_id,activity,description,hours,served_on(2006-01-02),status
// (status optional, defaults to pending).
func (svc *Service) ImportCSV(ctx context.Context, r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(csvHeader)
	reader.TrimLeadingSpace = true

	var count int
	for line := 1; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, pkgerrors.Wrapf(err, "reading csv line %d", line)
		}
		if line == 1 && strings.EqualFold(record[0], csvHeader[0]) {
			continue // header row
		}

		userID := core.CleanString(record[0])
		activity := core.CleanString(record[1])
		if userID == "" || activity == "" {
			return count, pkgerrors.Errorf("csv line %d: user_id and activity are required", line)
		}
		hrs, err := parseHours(record[3])
		if err != nil {
			return count, pkgerrors.Wrapf(err, "csv line %d", line)
		}
		servedOn, err := time.Parse("2006-01-02", core.CleanString(record[4]))
		if err != nil {
			return count, pkgerrors.Wrapf(err, "csv line %d: parsing served_on", line)
		}
		status := Status(core.CleanString(record[5], true /* lower */))
		if status == "" {
			status = StatusPending
		}
		if !status.Valid() {
			return count, pkgerrors.Errorf("csv line %d: invalid status %q", line, status)
		}

		now := time.Now().UTC()
		if _, err := svc.repo.CreateEntry(ctx, Entry{
			UserID:      userID,
			Activity:    activity,
			Description: core.CleanString(record[2]),
			Hours:       hrs,
			ServedOn:    servedOn,
			Status:      status,
			CreatedAt:   now,
			UpdatedAt:   now,
		}); err != nil {
			return count, pkgerrors.Wrapf(err, "csv line %d", line)
		}
		count++
	}
	return count, nil
}
