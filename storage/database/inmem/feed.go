package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/balozi/core/feed"
)

type feedRepository struct {
	db *feedTable
}

var _ feed.Repository = (*feedRepository)(nil) // interface compliance check

func NewFeedRepository(db *DB) *feedRepository {
	return &feedRepository{db: db.feed}
}

func (repo *feedRepository) CreatePost(ctx context.Context, post feed.Post) (feed.Post, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if post.ID == "" {
		post.ID = uuid.New().String()
	}
	repo.db.table[post.ID] = &post
	return post, nil
}

func (repo *feedRepository) GetPostByID(ctx context.Context, id string) (feed.Post, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if post, ok := repo.db.table[id]; ok {
		return *post, nil
	}
	return feed.Post{}, feed.ErrNotFound
}

func (repo *feedRepository) FilterPosts(ctx context.Context, filter feed.QueryFilter) ([]feed.Post, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var posts []feed.Post
	for _, post := range repo.db.table {
		if filter.AuthorID != "" && post.AuthorID != filter.AuthorID {
			continue
		}
		if !filter.Before.IsZero() && !post.CreatedAt.Before(filter.Before) {
			continue
		}
		posts = append(posts, *post)
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].CreatedAt.After(posts[j].CreatedAt) })
	if filter.Limit > 0 && len(posts) > filter.Limit {
		posts = posts[:filter.Limit]
	}
	return posts, nil
}

func (repo *feedRepository) DeletePost(ctx context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return feed.ErrNotFound
	}
	delete(repo.db.table, id)
	delete(repo.db.comments, id)
	return nil
}

func (repo *feedRepository) CreateComment(ctx context.Context, cmt feed.Comment) (feed.Comment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[cmt.PostID]; !ok {
		return feed.Comment{}, feed.ErrNotFound
	}
	if cmt.ID == "" {
		cmt.ID = uuid.New().String()
	}
	repo.db.comments[cmt.PostID] = append(repo.db.comments[cmt.PostID], &cmt)
	return cmt, nil
}

func (repo *feedRepository) QueryComments(ctx context.Context, postID string) ([]feed.Comment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	stored := repo.db.comments[postID]
	comments := make([]feed.Comment, 0, len(stored))
	for _, cmt := range stored {
		comments = append(comments, *cmt)
	}
	return comments, nil
}
