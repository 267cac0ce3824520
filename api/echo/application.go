package echoapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/balozi/core"
	"github.com/trezcool/balozi/core/application"
)

type applicationApi struct {
	conf  *core.Config
	svc   *application.Service
	files core.FileStore
}

// SessionResponse is the intake session state returned by every workflow
// endpoint: the phase, the step the client should render and the accumulated
// draft for prefilling.
type SessionResponse struct {
	Phase       application.Phase       `json:"phase"`
	Step        int                     `json:"step,omitempty"`
	Application application.Application `json:"application"`
}

func registerApplicationAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := applicationApi{
		conf:  opts.Conf,
		svc:   opts.ApplicationSvc,
		files: opts.Files,
	}

	ag := g.Group("/applications")

	// un-authed intake endpoints; the session is keyed by the applicant's phone
	ag.POST("/contact", api.contact)
	ag.PUT("/:phone/steps/:step", api.saveStep)
	ag.POST("/:phone/transcript", api.uploadTranscript)
	ag.POST("/:phone/submit", api.submit)
	ag.DELETE("/:phone", api.restart)

	// admin endpoints
	mg := ag.Group("", jwt, adminMiddleware())
	mg.GET("", api.query)
	mg.GET("/:phone", api.retrieve)
	mg.POST("/:phone/approve", api.approve)
	mg.POST("/:phone/reject", api.reject)
}

// resume rebuilds the intake session for phone from the stored record.
func (api *applicationApi) resume(ctx echo.Context, phone string) (*application.Workflow, error) {
	wf := application.NewWorkflow(api.conf, api.svc, api.files)
	if _, err := wf.SubmitContact(ctx.Request().Context(), phone); err != nil {
		return wf, err
	}
	return wf, nil
}

func (api *applicationApi) session(wf *application.Workflow) SessionResponse {
	return SessionResponse{
		Phase:       wf.Phase(),
		Step:        wf.Step(),
		Application: wf.Draft(),
	}
}

// Handlers

func (api *applicationApi) contact(ctx echo.Context) error {
	var data application.ContactStep
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ContactStep")
	}

	wf, err := api.resume(ctx, data.Phone)
	if err != nil {
		// a submitted or decided record blocks further edits but the contact
		// endpoint still reports where the applicant stands
		if errors.Cause(err) == application.ErrAlreadySubmitted {
			return ctx.JSON(http.StatusOK, api.session(wf))
		}
		return err
	}
	return ctx.JSON(http.StatusOK, api.session(wf))
}

func (api *applicationApi) saveStep(ctx echo.Context) error {
	step, err := strconv.Atoi(ctx.Param("step"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid step")
	}

	patch := application.StepPatch{Step: step}
	switch step {
	case application.StepPersonal:
		data := new(application.PersonalStep)
		if err := ctx.Bind(data); err != nil {
			return errors.Wrap(err, "binding to PersonalStep")
		}
		patch.Personal = data
	case application.StepAcademic:
		data := new(application.AcademicStep)
		if err := ctx.Bind(data); err != nil {
			return errors.Wrap(err, "binding to AcademicStep")
		}
		patch.Academic = data
	case application.StepReferences:
		data := new(application.ReferencesStep)
		if err := ctx.Bind(data); err != nil {
			return errors.Wrap(err, "binding to ReferencesStep")
		}
		patch.References = data
	case application.StepQuestionnaire:
		data := new(application.QuestionnaireStep)
		if err := ctx.Bind(data); err != nil {
			return errors.Wrap(err, "binding to QuestionnaireStep")
		}
		patch.Questionnaire = data
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "invalid step")
	}

	wf, err := api.resume(ctx, ctx.Param("phone"))
	if err != nil {
		return err
	}
	if _, err = wf.SaveStep(ctx.Request().Context(), step, patch); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.session(wf))
}

func (api *applicationApi) uploadTranscript(ctx echo.Context) error {
	fh, err := ctx.FormFile("transcript")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "transcript file is required")
	}

	wf, err := api.resume(ctx, ctx.Param("phone"))
	if err != nil {
		return err
	}

	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded transcript")
	}
	defer f.Close()

	_, err = wf.UploadTranscript(ctx.Request().Context(), fh.Filename, fh.Header.Get(echo.HeaderContentType), fh.Size, f)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.session(wf))
}

func (api *applicationApi) submit(ctx echo.Context) error {
	wf, err := api.resume(ctx, ctx.Param("phone"))
	if err != nil {
		// a stateless retry of an already-submitted record is a success,
		// same as the concurrent double-submit handled by the workflow
		if errors.Cause(err) == application.ErrAlreadySubmitted {
			return ctx.JSON(http.StatusOK, api.session(wf))
		}
		return err
	}
	if _, err = wf.Submit(ctx.Request().Context()); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.session(wf))
}

func (api *applicationApi) restart(ctx echo.Context) error {
	wf, err := api.resume(ctx, ctx.Param("phone"))
	if err != nil {
		return err
	}
	if err = wf.Restart(ctx.Request().Context()); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *applicationApi) query(ctx echo.Context) error {
	var ord Ordering
	ord.Bind(ctx)

	apps, err := api.svc.Filter(ctx.Request().Context(), application.QueryFilter{
		Status:      application.Status(ctx.QueryParam("status")),
		Search:      ctx.QueryParam("search"),
		CreatedFrom: bindTime(ctx, "created_from"),
		CreatedTo:   bindTime(ctx, "created_to"),
		Orderings:   ord.Orderings,
	})
	if err != nil {
		return errors.Wrap(err, "filtering applications")
	}
	return ctx.JSON(http.StatusOK, apps)
}

func (api *applicationApi) retrieve(ctx echo.Context) error {
	app, err := api.svc.GetByPhone(ctx.Request().Context(), ctx.Param("phone"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, app)
}

func (api *applicationApi) approve(ctx echo.Context) error {
	return api.decide(ctx, api.svc.Approve)
}

func (api *applicationApi) reject(ctx echo.Context) error {
	return api.decide(ctx, api.svc.Reject)
}

func (api *applicationApi) decide(
	ctx echo.Context,
	op func(c context.Context, phone, decidedBy string) (application.Application, error),
) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	app, err := op(ctx.Request().Context(), ctx.Param("phone"), claims.Subject)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, app)
}
