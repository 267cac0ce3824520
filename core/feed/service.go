package feed

import (
	"context"
	"errors"
	"time"

	"github.com/trezcool/balozi/core"
	"github.com/trezcool/balozi/core/notification"
)

var (
	// errors
	ErrNotFound  = errors.New("post not found")
	ErrForbidden = errors.New("not the post author")
)

const realtimeTopic = "feed"

type (
	Repository interface {
		CreatePost(ctx context.Context, post Post) (Post, error)
		GetPostByID(ctx context.Context, id string) (Post, error)
		// FilterPosts returns posts newest first.
		FilterPosts(ctx context.Context, filter QueryFilter) ([]Post, error)
		DeletePost(ctx context.Context, id string) error

		CreateComment(ctx context.Context, cmt Comment) (Comment, error)
		// QueryComments returns a post's comments, oldest first.
		QueryComments(ctx context.Context, postID string) ([]Comment, error)
	}

	Service struct {
		repo     Repository
		broker   core.Broker
		notifSvc *notification.Service
		logger   core.Logger
	}
)

func NewService(repo Repository, broker core.Broker, notifSvc *notification.Service, logger core.Logger) *Service {
	return &Service{
		repo:     repo,
		broker:   broker,
		notifSvc: notifSvc,
		logger:   logger,
	}
}

func (svc *Service) Publish(ctx context.Context, authorID string, np NewPost) (Post, error) {
	post, err := svc.repo.CreatePost(ctx, Post{
		AuthorID:  authorID,
		Body:      np.Body,
		ImageURL:  np.ImageURL,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return Post{}, err
	}
	svc.publish(ctx, "feed:post", post)
	return post, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Post, error) {
	return svc.repo.GetPostByID(ctx, id)
}

func (svc *Service) Filter(ctx context.Context, filter QueryFilter) ([]Post, error) {
	return svc.repo.FilterPosts(ctx, filter)
}

// Delete removes a post; authors may delete their own, admins any.
func (svc *Service) Delete(ctx context.Context, id, requesterID string, isAdmin bool) error {
	post, err := svc.repo.GetPostByID(ctx, id)
	if err != nil {
		return err
	}
	if !isAdmin && post.AuthorID != requesterID {
		return ErrForbidden
	}
	if err := svc.repo.DeletePost(ctx, id); err != nil {
		return err
	}
	svc.publish(ctx, "feed:post:deleted", Post{ID: id})
	return nil
}

// Comment replies to a post and notifies the post's author.
func (svc *Service) Comment(ctx context.Context, postID, authorID string, nc NewComment) (Comment, error) {
	post, err := svc.repo.GetPostByID(ctx, postID)
	if err != nil {
		return Comment{}, err
	}
	cmt, err := svc.repo.CreateComment(ctx, Comment{
		PostID:    postID,
		AuthorID:  authorID,
		Body:      nc.Body,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return Comment{}, err
	}
	svc.publish(ctx, "feed:comment", cmt)

	// no self-notifications
	if svc.notifSvc != nil && post.AuthorID != authorID {
		_, err := svc.notifSvc.Notify(ctx, post.AuthorID, notification.KindFeedPost,
			"New comment on your post", nc.Body, map[string]string{"post_id": postID})
		if err != nil && svc.logger != nil {
			svc.logger.Warn("notification dispatch failed", err)
		}
	}
	return cmt, nil
}

func (svc *Service) Comments(ctx context.Context, postID string) ([]Comment, error) {
	return svc.repo.QueryComments(ctx, postID)
}

func (svc *Service) publish(ctx context.Context, kind string, payload interface{}) {
	if svc.broker == nil {
		return
	}
	err := svc.broker.Publish(ctx, core.RealtimeEvent{
		Topic:   realtimeTopic,
		Kind:    kind,
		Payload: payload,
	})
	if err != nil && svc.logger != nil {
		svc.logger.Warn("realtime publish failed", err)
	}
}
