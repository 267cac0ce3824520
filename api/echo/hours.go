package echoapi

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/balozi/core"
	"github.com/trezcool/balozi/core/hours"
)

type hoursApi struct {
	svc      *hours.Service
	validate *validator.Validate
}

func registerHoursAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := hoursApi{
		svc:      opts.HoursSvc,
		validate: opts.Validate,
	}

	hg := g.Group("/hours", jwt)
	hg.POST("", api.submit)
	hg.GET("", api.query)
	hg.GET("/total", api.total)
	hg.POST("/import", api.importCSV, adminMiddleware())
	hg.POST("/:id/approve", api.approve, adminMiddleware())
	hg.POST("/:id/reject", api.reject, adminMiddleware())
}

// Handlers

func (api *hoursApi) submit(ctx echo.Context) error {
	var data hours.NewEntry
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEntry")
	}
	hrs, err := data.Validate(api.validate)
	if err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	entry, err := api.svc.Submit(ctx.Request().Context(), claims.Subject, data, hrs)
	if err != nil {
		return errors.Wrap(err, "submitting hours")
	}
	return ctx.JSON(http.StatusCreated, entry)
}

// query returns the caller's own entries; admins may filter any user's with
// the user_id param.
func (api *hoursApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	filter := hours.QueryFilter{
		UserID:     claims.Subject,
		Status:     hours.Status(ctx.QueryParam("status")),
		ServedFrom: bindTime(ctx, "served_from"),
		ServedTo:   bindTime(ctx, "served_to"),
	}
	if claims.IsAdmin {
		filter.UserID = ctx.QueryParam("user_id")
	}

	entries, err := api.svc.Filter(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "filtering hours")
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *hoursApi) total(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	userID := claims.Subject
	if claims.IsAdmin {
		if id := ctx.QueryParam("user_id"); id != "" {
			userID = id
		}
	}

	total, err := api.svc.ApprovedTotal(ctx.Request().Context(), userID)
	if err != nil {
		return errors.Wrap(err, "totaling approved hours")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"user_id": userID, "total": total})
}

func (api *hoursApi) approve(ctx echo.Context) error {
	return api.review(ctx, api.svc.Approve)
}

func (api *hoursApi) reject(ctx echo.Context) error {
	return api.review(ctx, api.svc.Reject)
}

func (api *hoursApi) review(
	ctx echo.Context,
	op func(c context.Context, id, reviewedBy, note string) (hours.Entry, error),
) error {
	var data hours.ReviewEntry
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ReviewEntry")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	entry, err := op(ctx.Request().Context(), ctx.Param("id"), claims.Subject, data.Note)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, entry)
}

func (api *hoursApi) importCSV(ctx echo.Context) error {
	fh, err := ctx.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "csv file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded csv")
	}
	defer f.Close()

	count, err := api.svc.ImportCSV(ctx.Request().Context(), f)
	if err != nil {
		return core.NewValidationError(err)
	}
	return ctx.JSON(http.StatusOK, echo.Map{"imported": count})
}
