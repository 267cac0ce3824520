package application

import (
	"context"
	"io"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/trezcool/balozi/core"
)

// Phase is the client-visible state of an intake session.
type Phase string

const (
	PhaseAwaitingContact Phase = "awaiting_contact"
	PhaseStep            Phase = "step"
	PhaseSubmitted       Phase = "submitted"
	PhaseBlocked         Phase = "blocked" // existing non-draft record; edits refused
)

// transcript upload fast-fail limits; the FileStore remains the authority.
var transcriptContentTypes = map[string]string{
	"application/pdf": ".pdf",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
}

// Workflow drives one applicant's intake session: resume lookup, per-step
// validation, incremental persistence, transcript upload and final submission.
// It is the only component that talks to both the application Repository
// (through Service) and the FileStore.
//
// The session state is reconstructable purely from the persisted record
// (Status + CurrentStep); the in-memory phase/step only mirror it.
type Workflow struct {
	conf  *core.Config
	svc   *Service
	files core.FileStore

	phase Phase
	step  int
	app   Application
}

func NewWorkflow(conf *core.Config, svc *Service, files core.FileStore) *Workflow {
	return &Workflow{
		conf:  conf,
		svc:   svc,
		files: files,
		phase: PhaseAwaitingContact,
	}
}

func (w *Workflow) Phase() Phase { return w.phase }

// Step returns the step currently being edited; 0 outside PhaseStep.
func (w *Workflow) Step() int { return w.step }

// Draft returns the latest known snapshot of the applicant's record.
func (w *Workflow) Draft() Application { return w.app }

// editingStep derives the resume point from a persisted draft: the step after
// the highest one saved, capped at the questionnaire.
func editingStep(app Application) int {
	step := app.CurrentStep + 1
	if step > LastStep {
		step = LastStep
	}
	if step < StepPersonal {
		step = StepPersonal
	}
	return step
}

// SubmitContact starts or resumes a session for the given phone number.
// A brand-new applicant gets a draft created at step 1 and enters editing at
// step 2; an existing draft resumes exactly where it left off; a record that
// already left draft status blocks the session with ErrAlreadySubmitted.
func (w *Workflow) SubmitContact(ctx context.Context, rawPhone string) (Application, error) {
	if w.phase != PhaseAwaitingContact {
		return Application{}, errors.Wrap(ErrInvalidState, "contact already submitted")
	}

	phone, ok := NormalizePhone(rawPhone)
	if !ok {
		return Application{}, core.NewValidationError(
			errors.New("invalid contact"),
			core.FieldError{Field: "phone", Error: invalidPhoneText},
		)
	}

	app, err := w.svc.GetByPhone(ctx, phone)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		// first contact; create the draft at step 1
		app, err = w.svc.SaveStep(ctx, phone, StepPatch{
			Step:    StepContact,
			Contact: &ContactStep{Phone: phone},
		})
		if err != nil {
			return Application{}, errors.Wrap(err, "creating draft")
		}
	default:
		// storage failure: do not treat as a fresh application
		return Application{}, errors.Wrap(err, "looking up application")
	}

	if app.Status != StatusDraft {
		w.phase = PhaseBlocked
		w.app = app
		w.step = 0
		return app, ErrAlreadySubmitted
	}

	w.phase = PhaseStep
	w.app = app
	w.step = editingStep(app)
	return app, nil
}

// SaveStep validates then persists one step's fields. Validation failures
// surface the offending fields and leave both the session and the stored
// record untouched; storage failures leave the session in place so the user
// can retry without re-entering data.
func (w *Workflow) SaveStep(ctx context.Context, step int, patch StepPatch) (Application, error) {
	if w.phase != PhaseStep {
		return Application{}, errors.Wrap(ErrInvalidState, "no editable draft in session")
	}

	patch.Step = step
	if err := ValidateStep(step, patch.Apply(w.app)); err != nil {
		return Application{}, err
	}

	app, err := w.svc.SaveStep(ctx, w.app.Phone, patch)
	if err != nil {
		return Application{}, errors.Wrapf(err, "saving step %d", step)
	}

	w.app = app
	if step < LastStep && step >= w.step {
		w.step = step + 1
	}
	return app, nil
}

// UploadTranscript stores the transcript and records its URL on the draft.
// The content-type allowlist and size ceiling here are a fast-fail; the
// FileStore performs the authoritative checks. A failed or aborted upload
// leaves the stored transcript URL unchanged.
func (w *Workflow) UploadTranscript(ctx context.Context, filename, contentType string, size int64, content io.Reader) (Application, error) {
	if w.phase != PhaseStep || w.step < StepAcademic {
		return Application{}, errors.Wrap(ErrInvalidState, "academic section not reached")
	}
	if _, ok := transcriptContentTypes[contentType]; !ok {
		return Application{}, core.ErrUnsupportedFileType
	}
	if max := w.conf.Uploads.MaxTranscriptSize; max > 0 && size > max {
		return Application{}, core.ErrFileTooLarge
	}

	name := "transcripts/" + w.app.Phone + filepath.Ext(filename)
	url, err := w.files.Upload(ctx, name, contentType, size, content)
	if err != nil {
		return Application{}, errors.Wrap(err, "uploading transcript")
	}

	app, err := w.svc.SaveStep(ctx, w.app.Phone, StepPatch{
		Step:       StepAcademic,
		Transcript: &TranscriptStep{URL: url},
	})
	if err != nil {
		return Application{}, errors.Wrap(err, "recording transcript")
	}
	w.app = app
	return app, nil
}

// Submit re-validates the full accumulated record, then finalizes it.
// A concurrent or repeated submit that hits ErrAlreadySubmitted is treated as
// success: the end state is identical either way.
func (w *Workflow) Submit(ctx context.Context) (Application, error) {
	// a repeat submit in the same session is a success, not an error
	if w.phase == PhaseSubmitted {
		return w.app, nil
	}
	if w.phase != PhaseStep {
		return Application{}, errors.Wrap(ErrInvalidState, "no editable draft in session")
	}

	// refetch: steps may have been saved from another device since resume
	app, err := w.svc.GetByPhone(ctx, w.app.Phone)
	if err != nil {
		return Application{}, errors.Wrap(err, "reloading application")
	}
	w.app = app

	if err := ValidateAll(app); err != nil {
		return Application{}, err
	}

	app, err = w.svc.Finalize(ctx, w.app.Phone)
	switch {
	case err == nil:
		w.app = app
	case errors.Is(err, ErrAlreadySubmitted):
		// double-click or cross-device race; same end state
		if cur, gErr := w.svc.GetByPhone(ctx, w.app.Phone); gErr == nil {
			w.app = cur
		}
	default:
		return Application{}, errors.Wrap(err, "finalizing application")
	}

	w.phase = PhaseSubmitted
	w.step = 0
	return w.app, nil
}

// Restart deletes the applicant's draft so they can start over from empty.
// This is the only destructive operation and is irreversible; it is refused
// once the record left draft status.
func (w *Workflow) Restart(ctx context.Context) error {
	if w.phase != PhaseStep {
		return errors.Wrap(ErrInvalidState, "no editable draft in session")
	}
	if err := w.svc.Delete(ctx, w.app.Phone); err != nil {
		return errors.Wrap(err, "deleting draft")
	}
	w.phase = PhaseAwaitingContact
	w.step = 0
	w.app = Application{}
	return nil
}
