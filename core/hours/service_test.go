package hours_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/balozi/core"
	"github.com/trezcool/balozi/core/hours"
	"github.com/trezcool/balozi/core/notification"
	pushsvc "github.com/trezcool/balozi/services/push"
	inmemdb "github.com/trezcool/balozi/storage/database/inmem"
)

func setup(t *testing.T) (*hours.Service, *notification.Service) {
	t.Helper()

	db, err := inmemdb.Open()
	require.NoError(t, err)

	notifSvc := notification.NewService(inmemdb.NewNotificationRepository(db), pushsvc.NewMockService())
	return hours.NewService(inmemdb.NewHoursRepository(db), notifSvc, nil), notifSvc
}

func newEntry(activity, hrs string) hours.NewEntry {
	return hours.NewEntry{
		Activity: activity,
		Hours:    hrs,
		ServedOn: time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC),
	}
}

func TestNewEntry_Validate(t *testing.T) {
	validate, _ := core.NewValidator()

	tests := []struct {
		name  string
		entry hours.NewEntry
		want  string // expected parsed hours; empty means error
	}{
		{name: "ok", entry: newEntry("Tutoring", "2.5"), want: "2.5"},
		{name: "whole day", entry: newEntry("Camp", "24"), want: "24"},
		{name: "missing activity", entry: newEntry("  ", "2")},
		{name: "zero hours", entry: newEntry("Tutoring", "0")},
		{name: "negative", entry: newEntry("Tutoring", "-1")},
		{name: "over a day", entry: newEntry("Tutoring", "24.01")},
		{name: "not a number", entry: newEntry("Tutoring", "two")},
		{name: "missing served_on", entry: hours.NewEntry{Activity: "Tutoring", Hours: "2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hrs, err := tt.entry.Validate(validate)
			if tt.want == "" {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, hrs.Equal(decimal.RequireFromString(tt.want)), "got %s", hrs)
		})
	}
}

func TestService_reviewFlow(t *testing.T) {
	ctx := context.Background()
	svc, notifSvc := setup(t)

	entry, err := svc.Submit(ctx, "usr1", newEntry("Tutoring", "2.5"), decimal.RequireFromString("2.5"))
	require.NoError(t, err)
	assert.Equal(t, hours.StatusPending, entry.Status)

	// nothing approved yet
	total, err := svc.ApprovedTotal(ctx, "usr1")
	require.NoError(t, err)
	assert.True(t, total.IsZero())

	entry, err = svc.Approve(ctx, entry.ID, "admin", "looks good")
	require.NoError(t, err)
	assert.Equal(t, hours.StatusApproved, entry.Status)
	assert.Equal(t, "admin", entry.ReviewedBy)
	assert.Equal(t, "looks good", entry.ReviewNote)
	assert.False(t, entry.ReviewedAt.IsZero())

	// review is final
	_, err = svc.Reject(ctx, entry.ID, "admin", "")
	assert.ErrorIs(t, err, hours.ErrInvalidState)

	// owner was notified
	notifs, err := notifSvc.Query(ctx, notification.QueryFilter{UserID: "usr1"})
	require.NoError(t, err)
	require.Len(t, notifs, 1)
	assert.Equal(t, notification.KindHoursReviewed, notifs[0].Kind)
	assert.Equal(t, "Service hours approved", notifs[0].Title)

	_, err = svc.Approve(ctx, "nope", "admin", "")
	assert.ErrorIs(t, err, hours.ErrNotFound)
}

func TestService_ApprovedTotal(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	submit := func(userID, hrs string) hours.Entry {
		entry, err := svc.Submit(ctx, userID, newEntry("Tutoring", hrs), decimal.RequireFromString(hrs))
		require.NoError(t, err)
		return entry
	}

	e1 := submit("usr1", "2.5")
	e2 := submit("usr1", "1.25")
	submit("usr1", "4")            // stays pending
	e3 := submit("usr1", "3")      // rejected
	other := submit("usr2", "8")   // someone else's

	for _, entry := range []hours.Entry{e1, e2, other} {
		_, err := svc.Approve(ctx, entry.ID, "admin", "")
		require.NoError(t, err)
	}
	_, err := svc.Reject(ctx, e3.ID, "admin", "no proof")
	require.NoError(t, err)

	total, err := svc.ApprovedTotal(ctx, "usr1")
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("3.75")), "got %s", total)
}

func TestService_Filter(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	jan := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	ne := newEntry("Tutoring", "2")
	ne.ServedOn = jan
	_, err := svc.Submit(ctx, "usr1", ne, decimal.NewFromInt(2))
	require.NoError(t, err)

	ne = newEntry("Cleanup", "3")
	ne.ServedOn = feb
	entry, err := svc.Submit(ctx, "usr1", ne, decimal.NewFromInt(3))
	require.NoError(t, err)
	_, err = svc.Approve(ctx, entry.ID, "admin", "")
	require.NoError(t, err)

	got, err := svc.Filter(ctx, hours.QueryFilter{UserID: "usr1"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = svc.Filter(ctx, hours.QueryFilter{UserID: "usr1", Status: hours.StatusApproved})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Cleanup", got[0].Activity)

	got, err = svc.Filter(ctx, hours.QueryFilter{UserID: "usr1", ServedFrom: feb.AddDate(0, 0, -1)})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Cleanup", got[0].Activity)

	got, err = svc.Filter(ctx, hours.QueryFilter{UserID: "usr2"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestService_ImportCSV(t *testing.T) {
	ctx := context.Background()

	t.Run("ok with header", func(t *testing.T) {
		svc, _ := setup(t)
		csv := strings.Join([]string{
			"user_id,activity,description,hours,served_on,status",
			"usr1,Tutoring,Math support,2.5,2026-01-10,approved",
			"usr1,Cleanup,,3,2026-02-10,",
			"usr2,Camp,Weekend camp,8,2026-02-12,pending",
		}, "\n")

		count, err := svc.ImportCSV(ctx, strings.NewReader(csv))
		require.NoError(t, err)
		assert.Equal(t, 3, count)

		total, err := svc.ApprovedTotal(ctx, "usr1")
		require.NoError(t, err)
		assert.True(t, total.Equal(decimal.RequireFromString("2.5")), "got %s", total)

		got, err := svc.Filter(ctx, hours.QueryFilter{UserID: "usr1", Status: hours.StatusPending})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Cleanup", got[0].Activity, "blank status defaults to pending")
	})

	t.Run("bad rows abort with line context", func(t *testing.T) {
		tests := []struct {
			name string
			row  string
		}{
			{name: "missing user", row: ",Tutoring,,2,2026-01-10,"},
			{name: "bad hours", row: "usr1,Tutoring,,25,2026-01-10,"},
			{name: "bad date", row: "usr1,Tutoring,,2,01/10/2026,"},
			{name: "bad status", row: "usr1,Tutoring,,2,2026-01-10,maybe"},
			{name: "short row", row: "usr1,Tutoring"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				svc, _ := setup(t)
				count, err := svc.ImportCSV(ctx, strings.NewReader(tt.row))
				require.Error(t, err)
				assert.Contains(t, err.Error(), "line 1")
				assert.Zero(t, count)
			})
		}
	})
}

func TestService_ImportCSV_hoursWrapped(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	_, err := svc.ImportCSV(ctx, strings.NewReader("usr1,Tutoring,,0,2026-01-10,"))
	require.Error(t, err)
	var vErr *core.ValidationError
	assert.True(t, errors.As(err, &vErr), "hours range failures stay typed through the wrap")
}
