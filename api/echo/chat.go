package echoapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/balozi/core/chat"
)

type chatApi struct {
	svc      *chat.Service
	validate *validator.Validate
}

func registerChatAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := chatApi{
		svc:      opts.ChatSvc,
		validate: opts.Validate,
	}

	cg := g.Group("/chat", jwt)
	cg.GET("/threads", api.queryThreads)
	cg.POST("/messages", api.send)
	cg.GET("/:peer/messages", api.history)
	cg.POST("/:peer/reconcile", api.reconcile)
	cg.GET("/:peer/stream", api.stream)
}

// Handlers

func (api *chatApi) send(ctx echo.Context) error {
	var data chat.NewMessage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessage")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	msg, err := api.svc.Send(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "sending message")
	}
	return ctx.JSON(http.StatusCreated, msg)
}

func (api *chatApi) history(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var limit int
	if raw := ctx.QueryParam("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	msgs, err := api.svc.History(ctx.Request().Context(), claims.Subject, ctx.Param("peer"), bindTime(ctx, "since"), limit)
	if err != nil {
		return errors.Wrap(err, "querying history")
	}
	return ctx.JSON(http.StatusOK, msgs)
}

// reconcile merges the server-side history with the client's optimistic
// pending sends, returning the converged view of the thread.
func (api *chatApi) reconcile(ctx echo.Context) error {
	var data struct {
		Pending []chat.Message `json:"pending"`
	}
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding pending messages")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	history, err := api.svc.History(ctx.Request().Context(), claims.Subject, ctx.Param("peer"), bindTime(ctx, "since"), 0)
	if err != nil {
		return errors.Wrap(err, "querying history")
	}
	return ctx.JSON(http.StatusOK, chat.Reconcile(history, data.Pending))
}

func (api *chatApi) queryThreads(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	threads, err := api.svc.Threads(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying threads")
	}
	return ctx.JSON(http.StatusOK, threads)
}

// stream pushes the thread's live messages as server-sent events until the
// client disconnects.
func (api *chatApi) stream(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	res := ctx.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	events, cancel := api.svc.Subscribe(claims.Subject, ctx.Param("peer"))
	defer cancel()

	done := ctx.Request().Context().Done()
	for {
		select {
		case <-done:
			return nil
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			payload, err := json.Marshal(evt)
			if err != nil {
				return errors.Wrap(err, "encoding event")
			}
			if _, err = fmt.Fprintf(res, "data: %s\n\n", payload); err != nil {
				return nil // client gone
			}
			res.Flush()
		}
	}
}
