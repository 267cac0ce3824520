package application

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/balozi/core"
)

var (
	gpaMin = decimal.Zero
	gpaMax = decimal.NewFromInt(5)

	requiredText     = "this field is required"
	invalidPhoneText = "a valid 10-digit phone number is required"
	invalidEmailText = "a valid email address is required"
	gpaRangeText     = "gpa must be a number between 0.00 and 5.00"
)

// ValidateStep is the pure gatekeeper run before any persistence call.
// It checks the fields owned by step against the accumulated app and returns
// a core.ValidationError listing every missing or invalid field, or nil.
// An empty or whitespace-only string counts as absent.
func ValidateStep(step int, app Application) error {
	var flds []core.FieldError
	requireField := func(name, val string) {
		if strings.TrimSpace(val) == "" {
			flds = append(flds, core.FieldError{Field: name, Error: requiredText})
		}
	}
	requireEmail := func(name, val string) {
		if strings.TrimSpace(val) == "" {
			flds = append(flds, core.FieldError{Field: name, Error: requiredText})
		} else if _, err := mail.ParseAddress(val); err != nil {
			flds = append(flds, core.FieldError{Field: name, Error: invalidEmailText})
		}
	}

	switch step {
	case StepContact:
		if _, ok := NormalizePhone(app.Phone); !ok {
			flds = append(flds, core.FieldError{Field: "phone", Error: invalidPhoneText})
		}
	case StepPersonal:
		requireField("first_name", app.FirstName)
		requireField("last_name", app.LastName)
		requireEmail("email", app.Email)
		requireField("current_grade", app.CurrentGrade)
		requireField("entry_grade", app.EntryGrade)
	case StepAcademic:
		if fldErr := validateGPA(app.GPA); fldErr != nil {
			flds = append(flds, *fldErr)
		}
		requireField("transcript_url", app.TranscriptURL)
	case StepReferences:
		requireField("ref1_name", app.Ref1Name)
		requireEmail("ref1_email", app.Ref1Email)
		requireField("ref2_name", app.Ref2Name)
		requireEmail("ref2_email", app.Ref2Email)
	case StepQuestionnaire:
		// all nine answers are required simultaneously; no partial credit
		for i, answer := range app.Answers() {
			requireField(fmt.Sprintf("answer%d", i+1), answer)
		}
	default:
		return errors.Errorf("unknown step %d", step)
	}

	if len(flds) > 0 {
		return core.NewValidationError(errors.Errorf("step %d is incomplete", step), flds...)
	}
	return nil
}

// ValidateAll re-runs every step's validation against the final accumulated
// app. It must be called immediately before finalization: steps may have been
// saved out of order across resumed sessions, so individual step passes do not
// imply the whole record is complete.
func ValidateAll(app Application) error {
	var flds []core.FieldError
	for step := StepContact; step <= LastStep; step++ {
		if err := ValidateStep(step, app); err != nil {
			var vErr *core.ValidationError
			if errors.As(err, &vErr) {
				flds = append(flds, vErr.Fields...)
				continue
			}
			return err
		}
	}
	if len(flds) > 0 {
		return core.NewValidationError(errors.New("application is incomplete"), flds...)
	}
	return nil
}

// validateGPA requires a decimal in [0.00, 5.00]; out-of-range or non-numeric
// input is an error, never a silent clamp.
func validateGPA(raw string) *core.FieldError {
	if strings.TrimSpace(raw) == "" {
		return &core.FieldError{Field: "gpa", Error: requiredText}
	}
	gpa, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return &core.FieldError{Field: "gpa", Error: gpaRangeText}
	}
	if gpa.LessThan(gpaMin) || gpa.GreaterThan(gpaMax) {
		return &core.FieldError{Field: "gpa", Error: gpaRangeText}
	}
	return nil
}
