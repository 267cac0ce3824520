package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/balozi/core/notification"
)

type notificationApi struct {
	svc *notification.Service
}

func registerNotificationAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := notificationApi{svc: opts.NotificationSvc}

	ng := g.Group("/notifications", jwt)
	ng.GET("", api.query)
	ng.POST("/read", api.markRead)
}

// Handlers

func (api *notificationApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	filter := notification.QueryFilter{
		UserID:     claims.Subject,
		UnreadOnly: ctx.QueryParam("unread") == "true",
	}
	if raw := ctx.QueryParam("limit"); raw != "" {
		filter.Limit, _ = strconv.Atoi(raw)
	}

	notifs, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying notifications")
	}
	return ctx.JSON(http.StatusOK, notifs)
}

func (api *notificationApi) markRead(ctx echo.Context) error {
	var data struct {
		IDs []string `json:"ids"`
	}
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding ids")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	if err := api.svc.MarkRead(ctx.Request().Context(), claims.Subject, data.IDs...); err != nil {
		return errors.Wrap(err, "marking notifications read")
	}
	return ctx.NoContent(http.StatusNoContent)
}
