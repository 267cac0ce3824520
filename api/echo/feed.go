package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/balozi/core/feed"
)

type feedApi struct {
	svc      *feed.Service
	validate *validator.Validate
}

func registerFeedAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := feedApi{
		svc:      opts.FeedSvc,
		validate: opts.Validate,
	}

	fg := g.Group("/feed", jwt)
	fg.GET("", api.query)
	fg.POST("", api.publish)
	fg.GET("/:id", api.retrieve)
	fg.DELETE("/:id", api.destroy)
	fg.POST("/:id/comments", api.comment)
	fg.GET("/:id/comments", api.queryComments)
}

// Handlers

func (api *feedApi) publish(ctx echo.Context) error {
	var data feed.NewPost
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPost")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	post, err := api.svc.Publish(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "publishing post")
	}
	return ctx.JSON(http.StatusCreated, post)
}

func (api *feedApi) query(ctx echo.Context) error {
	filter := feed.QueryFilter{
		AuthorID: ctx.QueryParam("author_id"),
		Before:   bindTime(ctx, "before"),
	}
	if raw := ctx.QueryParam("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			filter.Limit = limit
		}
	}

	posts, err := api.svc.Filter(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "filtering posts")
	}
	return ctx.JSON(http.StatusOK, posts)
}

func (api *feedApi) retrieve(ctx echo.Context) error {
	post, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, post)
}

func (api *feedApi) destroy(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id"), claims.Subject, claims.IsAdmin); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *feedApi) comment(ctx echo.Context) error {
	var data feed.NewComment
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

func (api *feedApi) queryComments(ctx echo.Context) error {
	comments, err := api.svc.Comments(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying comments")
	}
	return ctx.JSON(http.StatusOK, comments)
}
