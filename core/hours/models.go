package hours

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/balozi/core"
)

// Status is a service-hour entry's review state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

var (
	hoursMax = decimal.NewFromInt(24)

	hoursRangeText = "hours must be a number greater than 0 and at most 24"
)

// Entry is one submitted block of ambassador service hours.
type Entry struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Activity    string          `json:"activity"`
	Description string          `json:"description"`
	Hours       decimal.Decimal `json:"hours"`
	ServedOn    time.Time       `json:"served_on"`
	Status      Status          `json:"status"`
	ReviewedBy  string          `json:"reviewed_by,omitempty"`
	ReviewNote  string          `json:"review_note,omitempty"`
	CreatedAt   time.Time       `json:"created_at"` // UTC
	UpdatedAt   time.Time       `json:"updated_at"` // UTC
	ReviewedAt  time.Time       `json:"reviewed_at,omitempty"`
}

// NewEntry contains information needed to submit a new Entry.
type NewEntry struct {
	Activity    string    `json:"activity" validate:"required,notblank"`
	Description string    `json:"description"`
	Hours       string    `json:"hours" validate:"required"`
	ServedOn    time.Time `json:"served_on" validate:"required"`
}

func (ne *NewEntry) Validate(validate *validator.Validate) (decimal.Decimal, error) {
	ne.Activity = core.CleanString(ne.Activity)
	ne.Description = core.CleanString(ne.Description)

	if err := validate.Struct(ne); err != nil {
		return decimal.Zero, err
	}
	return parseHours(ne.Hours)
}

// parseHours requires a decimal in (0, 24]; out-of-range or non-numeric input
// is a validation error.
func parseHours(raw string) (decimal.Decimal, error) {
	fldErr := func() error {
		return core.NewValidationError(
			errors.New("invalid hours"),
			core.FieldError{Field: "hours", Error: hoursRangeText},
		)
	}
	hrs, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fldErr()
	}
	if !hrs.IsPositive() || hrs.GreaterThan(hoursMax) {
		return decimal.Zero, fldErr()
	}
	return hrs, nil
}

// ReviewEntry is an admin's verdict on a pending Entry.
type ReviewEntry struct {
	Note string `json:"note"`
}

// QueryFilter filters entry queries. Fields are ANDed.
type QueryFilter struct {
	UserID     string
	Status     Status
	ServedFrom time.Time
	ServedTo   time.Time
}
