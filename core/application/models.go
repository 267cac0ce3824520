package application

import (
	"regexp"
	"time"

	"github.com/trezcool/balozi/core"
)

// Status is an Application's lifecycle state. Transitions are one-directional:
// draft -> submitted -> approved|rejected. The only way back is an explicit
// applicant-invoked delete of a draft record.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
)

var statusTransitions = map[Status][]Status{
	StatusDraft:     {StatusSubmitted},
	StatusSubmitted: {StatusApproved, StatusRejected},
	StatusApproved:  {},
	StatusRejected:  {},
}

func (s Status) Valid() bool {
	_, ok := statusTransitions[s]
	return ok
}

// CanTransition reports whether s -> to is in the transition table.
func (s Status) CanTransition(to Status) bool {
	for _, next := range statusTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return len(statusTransitions[s]) == 0
}

// Steps of the intake form.
const (
	StepContact       = 1
	StepPersonal      = 2
	StepAcademic      = 3
	StepReferences    = 4
	StepQuestionnaire = 5

	LastStep = StepQuestionnaire
)

// Application is an ambassador application record, keyed by the applicant's
// normalized 10-digit phone number. All fields are optional until their
// owning step is completed.
type Application struct {
	ID          string `json:"id"`
	Phone       string `json:"phone"` // natural key; digits only
	Status      Status `json:"status"`
	CurrentStep int    `json:"current_step"` // highest step saved; never decreases while draft

	// personal (step 2)
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	CurrentGrade string `json:"current_grade"`
	EntryGrade   string `json:"entry_grade"`

	// academic (step 3)
	GPA           string `json:"gpa"` // validated decimal in [0.00, 5.00]
	TranscriptURL string `json:"transcript_url"`

	// references (step 4)
	Ref1Name  string `json:"ref1_name"`
	Ref1Email string `json:"ref1_email"`
	Ref2Name  string `json:"ref2_name"`
	Ref2Email string `json:"ref2_email"`

	// questionnaire (step 5)
	Answer1 string `json:"answer1"`
	Answer2 string `json:"answer2"`
	Answer3 string `json:"answer3"`
	Answer4 string `json:"answer4"`
	Answer5 string `json:"answer5"`
	Answer6 string `json:"answer6"`
	Answer7 string `json:"answer7"`
	Answer8 string `json:"answer8"`
	Answer9 string `json:"answer9"`

	DecidedBy   string    `json:"decided_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
	SubmittedAt time.Time `json:"submitted_at,omitempty"`
	DecidedAt   time.Time `json:"decided_at,omitempty"`
}

var nonDigitRegex = regexp.MustCompile(`\D`)

// NormalizePhone strips non-digit characters from raw and reports whether the
// result is exactly 10 digits.
func NormalizePhone(raw string) (string, bool) {
	phone := nonDigitRegex.ReplaceAllString(raw, "")
	return phone, len(phone) == 10
}

// Per-step patches. Each contains only the fields owned by its step and is
// applied wholesale: re-saving a step overwrites that step's fields, nothing else.

type ContactStep struct {
	Phone string `json:"phone"`
}

type PersonalStep struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	CurrentGrade string `json:"current_grade"`
	EntryGrade   string `json:"entry_grade"`
}

type AcademicStep struct {
	GPA string `json:"gpa"`
}

// TranscriptStep is written by the upload path only, so a transcript upload
// never clobbers a concurrently saved GPA.
type TranscriptStep struct {
	URL string `json:"transcript_url"`
}

type ReferencesStep struct {
	Ref1Name  string `json:"ref1_name"`
	Ref1Email string `json:"ref1_email"`
	Ref2Name  string `json:"ref2_name"`
	Ref2Email string `json:"ref2_email"`
}

type QuestionnaireStep struct {
	Answer1 string `json:"answer1"`
	Answer2 string `json:"answer2"`
	Answer3 string `json:"answer3"`
	Answer4 string `json:"answer4"`
	Answer5 string `json:"answer5"`
	Answer6 string `json:"answer6"`
	Answer7 string `json:"answer7"`
	Answer8 string `json:"answer8"`
	Answer9 string `json:"answer9"`
}

// StepPatch is an incremental save for a single step.
type StepPatch struct {
	Step int

	Contact       *ContactStep
	Personal      *PersonalStep
	Academic      *AcademicStep
	Transcript    *TranscriptStep
	References    *ReferencesStep
	Questionnaire *QuestionnaireStep
}

// Apply merges the patch into app field-by-field and bumps CurrentStep to
// max(app.CurrentStep, patch.Step). It never regresses CurrentStep and is
// idempotent: applying the same patch twice yields the same record.
func (p StepPatch) Apply(app Application) Application {
	if p.Contact != nil {
		app.Phone = p.Contact.Phone
	}
	if p.Personal != nil {
		app.FirstName = p.Personal.FirstName
		app.LastName = p.Personal.LastName
		app.Email = p.Personal.Email
		app.CurrentGrade = p.Personal.CurrentGrade
		app.EntryGrade = p.Personal.EntryGrade
	}
	if p.Academic != nil {
		app.GPA = p.Academic.GPA
	}
	if p.Transcript != nil {
		app.TranscriptURL = p.Transcript.URL
	}
	if p.References != nil {
		app.Ref1Name = p.References.Ref1Name
		app.Ref1Email = p.References.Ref1Email
		app.Ref2Name = p.References.Ref2Name
		app.Ref2Email = p.References.Ref2Email
	}
	if p.Questionnaire != nil {
		app.Answer1 = p.Questionnaire.Answer1
		app.Answer2 = p.Questionnaire.Answer2
		app.Answer3 = p.Questionnaire.Answer3
		app.Answer4 = p.Questionnaire.Answer4
		app.Answer5 = p.Questionnaire.Answer5
		app.Answer6 = p.Questionnaire.Answer6
		app.Answer7 = p.Questionnaire.Answer7
		app.Answer8 = p.Questionnaire.Answer8
		app.Answer9 = p.Questionnaire.Answer9
	}
	if p.Step > app.CurrentStep {
		app.CurrentStep = p.Step
	}
	return app
}

// Answers returns the nine questionnaire answers in order.
func (app Application) Answers() [9]string {
	return [9]string{
		app.Answer1, app.Answer2, app.Answer3,
		app.Answer4, app.Answer5, app.Answer6,
		app.Answer7, app.Answer8, app.Answer9,
	}
}

// QueryFilter filters admin application queries. Fields are ANDed.
type QueryFilter struct {
	Status      Status
	Search      string // matches name, email or phone
	CreatedFrom time.Time
	CreatedTo   time.Time
	Orderings   []core.DBOrdering
}
