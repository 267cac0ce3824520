package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/balozi/core/event"
)

type eventApi struct {
	svc      *event.Service
	validate *validator.Validate
}

func registerEventAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := eventApi{
		svc:      opts.EventSvc,
		validate: opts.Validate,
	}

	eg := g.Group("/events", jwt)
	eg.GET("", api.query)
	eg.POST("", api.create, adminMiddleware())
	eg.GET("/:id", api.retrieve)
	eg.PUT("/:id", api.update, adminMiddleware())
	eg.DELETE("/:id", api.destroy, adminMiddleware())
	eg.POST("/:id/rsvp", api.rsvp)
	eg.GET("/:id/rsvps", api.queryRSVPs)
	eg.POST("/:id/comments", api.comment)
	eg.GET("/:id/comments", api.queryComments)
}

// Handlers

func (api *eventApi) create(ctx echo.Context) error {
	var data event.NewEvent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEvent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	evt, err := api.svc.Create(ctx.Request().Context(), data, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "creating event")
	}
	return ctx.JSON(http.StatusCreated, evt)
}

func (api *eventApi) query(ctx echo.Context) error {
	filter := event.QueryFilter{
		Search: ctx.QueryParam("search"),
		From:   bindTime(ctx, "from"),
		To:     bindTime(ctx, "to"),
	}
	if ctx.QueryParam("upcoming") == "true" {
		filter.UpcomingAt = time.Now().UTC()
	}

	events, err := api.svc.Filter(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "filtering events")
	}
	return ctx.JSON(http.StatusOK, events)
}

func (api *eventApi) retrieve(ctx echo.Context) error {
	evt, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, evt)
}

func (api *eventApi) update(ctx echo.Context) error {
	var data event.NewEvent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEvent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	evt, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, evt)
}

func (api *eventApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *eventApi) rsvp(ctx echo.Context) error {
	var data struct {
		Status event.RSVPStatus `json:"status"`
	}
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding rsvp status")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	reply, err := api.svc.Reply(ctx.Request().Context(), ctx.Param("id"), claims.Subject, data.Status)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, reply)
}

func (api *eventApi) queryRSVPs(ctx echo.Context) error {
	rsvps, err := api.svc.RSVPs(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying rsvps")
	}
	return ctx.JSON(http.StatusOK, rsvps)
}

func (api *eventApi) comment(ctx echo.Context) error {
	var data event.NewComment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewComment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	cmt, err := api.svc.Comment(ctx.Request().Context(), ctx.Param("id"), claims.Subject, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, cmt)
}

func (api *eventApi) queryComments(ctx echo.Context) error {
	comments, err := api.svc.Comments(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying comments")
	}
	return ctx.JSON(http.StatusOK, comments)
}
