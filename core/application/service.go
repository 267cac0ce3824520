package application

import (
	"context"
	"errors"
	"net/mail"

	"github.com/trezcool/balozi/core"
)

var (
	// errors
	ErrNotFound         = errors.New("application not found")
	ErrAlreadySubmitted = errors.New("application already submitted")
	ErrInvalidState     = errors.New("operation not allowed in current application status")
)

type (
	// Repository is the single source of truth for application records.
	// Implementations must keep "not found" (ErrNotFound) distinct from
	// infrastructure failures: a transient outage must never read as a
	// fresh application.
	Repository interface {
		// GetApplicationByPhone has no side effects; phone is pre-normalized.
		GetApplicationByPhone(ctx context.Context, phone string) (Application, error)
		// FilterApplications applies AND operation on available QueryFilter fields.
		FilterApplications(ctx context.Context, filter QueryFilter) ([]Application, error)
		// UpsertApplicationStep merges patch into the record for phone, creating
		// a draft if absent. CurrentStep becomes max(existing, patch.Step); the
		// merge is idempotent. Fails with ErrInvalidState once the record left
		// draft status.
		UpsertApplicationStep(ctx context.Context, phone string, patch StepPatch) (Application, error)
		// FinalizeApplication transitions draft -> submitted exactly once.
		// Fails with ErrAlreadySubmitted if the record already left draft,
		// even under a concurrent double-submit race.
		FinalizeApplication(ctx context.Context, phone string) (Application, error)
		// DecideApplication transitions submitted -> approved|rejected.
		// It never alters CurrentStep or applicant fields.
		DecideApplication(ctx context.Context, phone string, to Status, decidedBy string) (Application, error)
		// DeleteApplication removes a draft record; ErrInvalidState otherwise.
		DeleteApplication(ctx context.Context, phone string) error
	}

	Service struct {
		conf    *core.Config
		repo    Repository
		mailSvc core.EmailService
	}
)

func NewService(conf *core.Config, repo Repository, mailSvc core.EmailService) *Service {
	return &Service{
		conf:    conf,
		repo:    repo,
		mailSvc: mailSvc,
	}
}

func (svc *Service) GetByPhone(ctx context.Context, phone string) (Application, error) {
	return svc.repo.GetApplicationByPhone(ctx, phone)
}

func (svc *Service) Filter(ctx context.Context, filter QueryFilter) ([]Application, error) {
	return svc.repo.FilterApplications(ctx, filter)
}

func (svc *Service) SaveStep(ctx context.Context, phone string, patch StepPatch) (Application, error) {
	return svc.repo.UpsertApplicationStep(ctx, phone, patch)
}

func (svc *Service) Finalize(ctx context.Context, phone string) (Application, error) {
	app, err := svc.repo.FinalizeApplication(ctx, phone)
	if err != nil {
		return Application{}, err
	}
	svc.notifyAdmins(app)
	return app, nil
}

func (svc *Service) Delete(ctx context.Context, phone string) error {
	return svc.repo.DeleteApplication(ctx, phone)
}

// Approve moves a submitted application to its approved terminal state.
func (svc *Service) Approve(ctx context.Context, phone, decidedBy string) (Application, error) {
	return svc.decide(ctx, phone, StatusApproved, decidedBy)
}

// Reject moves a submitted application to its rejected terminal state.
func (svc *Service) Reject(ctx context.Context, phone, decidedBy string) (Application, error) {
	return svc.decide(ctx, phone, StatusRejected, decidedBy)
}

func (svc *Service) decide(ctx context.Context, phone string, to Status, decidedBy string) (Application, error) {
	app, err := svc.repo.DecideApplication(ctx, phone, to, decidedBy)
	if err != nil {
		return Application{}, err
	}
	svc.notifyApplicant(app)
	return app, nil
}

// notifyAdmins emails the program admins when a new application comes in.
func (svc *Service) notifyAdmins(app Application) {
	if svc.mailSvc == nil || svc.conf.AdminEmail == "" {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Address: svc.conf.AdminEmail}},
		Subject:      "New ambassador application",
		TemplateName: "application-submitted",
		TemplateData: app,
	})
}

// notifyApplicant emails the applicant once their application is decided.
func (svc *Service) notifyApplicant(app Application) {
	if svc.mailSvc == nil || app.Email == "" {
		return
	}
	tmpl := "application-approved"
	if app.Status == StatusRejected {
		tmpl = "application-rejected"
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: app.FirstName + " " + app.LastName, Address: app.Email}},
		Subject:      "Your ambassador application",
		TemplateName: tmpl,
		TemplateData: app,
	})
}
