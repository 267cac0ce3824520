package pgrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/balozi/core/feed"
)

type feedRepository struct {
	db *sqlx.DB
}

var _ feed.Repository = (*feedRepository)(nil) // interface compliance check

func NewFeedRepository(db *sqlx.DB) *feedRepository {
	return &feedRepository{db: db}
}

type postRow struct {
	ID        string    `db:"id"`
	AuthorID  string    `db:"author_id"`
	Body      string    `db:"body"`
	ImageURL  string    `db:"image_url"`
	CreatedAt time.Time `db:"created_at"`
}

const postCols = `id, author_id, body, image_url, created_at`

func (repo feedRepository) CreatePost(ctx context.Context, post feed.Post) (feed.Post, error) {
	post.ID = uuid.New().String()
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO feed_post (`+postCols+`) VALUES ($1, $2, $3, $4, $5)`,
		post.ID, post.AuthorID, post.Body, post.ImageURL, post.CreatedAt)
	if err != nil {
		return feed.Post{}, errors.Wrap(err, "inserting post")
	}
	return post, nil
}

func (repo feedRepository) GetPostByID(ctx context.Context, id string) (feed.Post, error) {
	var row postRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT `+postCols+` FROM feed_post WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return feed.Post{}, feed.ErrNotFound
		}
		return feed.Post{}, errors.Wrap(err, "getting post")
	}
	return feed.Post(row), nil
}

func (repo feedRepository) FilterPosts(ctx context.Context, filter feed.QueryFilter) ([]feed.Post, error) {
	q := `SELECT ` + postCols + ` FROM feed_post WHERE 1=1`
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return "?"
	}

	if filter.AuthorID != "" {
		q += ` AND author_id = ` + arg(filter.AuthorID)
	}
	if !filter.Before.IsZero() {
		q += ` AND created_at < ` + arg(filter.Before.UTC())
	}
	q += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		q += ` LIMIT ` + arg(filter.Limit)
	}
	q = repo.db.Rebind(q)

	var rows []postRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "filtering posts")
	}
	posts := make([]feed.Post, 0, len(rows))
	for _, row := range rows {
		posts = append(posts, feed.Post(row))
	}
	return posts, nil
}

func (repo feedRepository) DeletePost(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM feed_post WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting post")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return feed.ErrNotFound
	}
	return nil
}

func (repo feedRepository) CreateComment(ctx context.Context, cmt feed.Comment) (feed.Comment, error) {
	cmt.ID = uuid.New().String()
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO feed_comment (id, post_id, author_id, body, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		cmt.ID, cmt.PostID, cmt.AuthorID, cmt.Body, cmt.CreatedAt)
	if err != nil {
		return feed.Comment{}, errors.Wrap(err, "inserting comment")
	}
	return cmt, nil
}

func (repo feedRepository) QueryComments(ctx context.Context, postID string) ([]feed.Comment, error) {
	type commentRow struct {
		ID        string    `db:"id"`
		PostID    string    `db:"post_id"`
		AuthorID  string    `db:"author_id"`
		Body      string    `db:"body"`
		CreatedAt time.Time `db:"created_at"`
	}
	var rows []commentRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT id, post_id, author_id, body, created_at FROM feed_comment
		WHERE post_id = $1 ORDER BY created_at ASC`, postID)
	if err != nil {
		return nil, errors.Wrap(err, "querying comments")
	}
	comments := make([]feed.Comment, 0, len(rows))
	for _, row := range rows {
		comments = append(comments, feed.Comment(row))
	}
	return comments, nil
}
