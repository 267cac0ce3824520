package feed

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/balozi/core"
)

// Post is one entry on the program's social feed.
type Post struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// NewPost contains information needed to publish a Post.
type NewPost struct {
	Body     string `json:"body" validate:"required,notblank"`
	ImageURL string `json:"image_url" validate:"omitempty,url"`
}

func (np *NewPost) Validate(validate *validator.Validate) error {
	np.Body = core.CleanString(np.Body)
	return validate.Struct(np)
}

// Comment is a reply to a feed Post.
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// NewComment contains information needed to reply to a Post.
type NewComment struct {
	Body string `json:"body" validate:"required,notblank"`
}

func (nc *NewComment) Validate(validate *validator.Validate) error {
	nc.Body = core.CleanString(nc.Body)
	return validate.Struct(nc)
}

// QueryFilter pages through the feed, newest first.
type QueryFilter struct {
	AuthorID string
	Before   time.Time // posts strictly older than this instant
	Limit    int
}
