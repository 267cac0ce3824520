package feed_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/balozi/core/feed"
	"github.com/trezcool/balozi/core/notification"
	pushsvc "github.com/trezcool/balozi/services/push"
	realtimesvc "github.com/trezcool/balozi/services/realtime"
	inmemdb "github.com/trezcool/balozi/storage/database/inmem"
)

func setup(t *testing.T) (*feed.Service, *notification.Service) {
	t.Helper()

	db, err := inmemdb.Open()
	require.NoError(t, err)

	broker := realtimesvc.NewBroker()
	t.Cleanup(broker.Close)

	notifSvc := notification.NewService(inmemdb.NewNotificationRepository(db), pushsvc.NewMockService())
	return feed.NewService(inmemdb.NewFeedRepository(db), broker, notifSvc, nil), notifSvc
}

func TestService_publishAndQuery(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	var posts []feed.Post
	for i := 1; i <= 5; i++ {
		post, err := svc.Publish(ctx, "usr1", feed.NewPost{Body: fmt.Sprintf("post %d", i)})
		require.NoError(t, err)
		posts = append(posts, post)
	}
	other, err := svc.Publish(ctx, "usr2", feed.NewPost{Body: "hello from usr2"})
	require.NoError(t, err)

	got, err := svc.Filter(ctx, feed.QueryFilter{})
	require.NoError(t, err)
	require.Len(t, got, 6)
	assert.Equal(t, "hello from usr2", got[0].Body, "newest first")
	assert.Equal(t, "post 1", got[5].Body)

	got, err = svc.Filter(ctx, feed.QueryFilter{AuthorID: "usr2"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, other.ID, got[0].ID)

	// pagination: everything strictly older than post 3
	got, err = svc.Filter(ctx, feed.QueryFilter{Before: posts[2].CreatedAt, Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "post 2", got[0].Body)
	assert.Equal(t, "post 1", got[1].Body)

	got, err = svc.Filter(ctx, feed.QueryFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "hello from usr2", got[0].Body)
	assert.Equal(t, "post 5", got[1].Body)
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	post, err := svc.Publish(ctx, "usr1", feed.NewPost{Body: "soon gone"})
	require.NoError(t, err)

	// only the author or an admin may delete
	err = svc.Delete(ctx, post.ID, "usr2", false)
	assert.ErrorIs(t, err, feed.ErrForbidden)
	_, err = svc.GetByID(ctx, post.ID)
	assert.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, post.ID, "usr1", false))
	_, err = svc.GetByID(ctx, post.ID)
	assert.ErrorIs(t, err, feed.ErrNotFound)

	// admin override
	post, err = svc.Publish(ctx, "usr1", feed.NewPost{Body: "also gone"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, post.ID, "admin", true))

	assert.ErrorIs(t, svc.Delete(ctx, "nope", "admin", true), feed.ErrNotFound)
}

func TestService_comments(t *testing.T) {
	ctx := context.Background()
	svc, notifSvc := setup(t)

	post, err := svc.Publish(ctx, "usr1", feed.NewPost{Body: "first!"})
	require.NoError(t, err)

	_, err = svc.Comment(ctx, "nope", "usr2", feed.NewComment{Body: "hi"})
	assert.ErrorIs(t, err, feed.ErrNotFound)

	_, err = svc.Comment(ctx, post.ID, "usr2", feed.NewComment{Body: "nice"})
	require.NoError(t, err)
	_, err = svc.Comment(ctx, post.ID, "usr1", feed.NewComment{Body: "thanks"})
	require.NoError(t, err)

	comments, err := svc.Comments(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "nice", comments[0].Body, "oldest first")

	// the author is notified of usr2's comment but not of their own reply
	notifs, err := notifSvc.Query(ctx, notification.QueryFilter{UserID: "usr1"})
	require.NoError(t, err)
	require.Len(t, notifs, 1)
	assert.Equal(t, notification.KindFeedPost, notifs[0].Kind)
	assert.Equal(t, "nice", notifs[0].Body)
}

func TestService_commentsSurviveOnlyWithPost(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	post, err := svc.Publish(ctx, "usr1", feed.NewPost{Body: "temp"})
	require.NoError(t, err)
	_, err = svc.Comment(ctx, post.ID, "usr2", feed.NewComment{Body: "hi"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, post.ID, "usr1", false))
	comments, err := svc.Comments(ctx, post.ID)
	require.NoError(t, err)
	assert.Empty(t, comments)
}
