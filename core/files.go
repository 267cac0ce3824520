package core

import (
	"context"
	"errors"
	"io"
)

var (
	ErrFileTooLarge        = errors.New("file too large")
	ErrUnsupportedFileType = errors.New("unsupported file type")
)

// FileStore stores uploaded files and returns a durable public URL.
// It is the authority on content-type and size limits; callers may fast-fail
// but must not assume their own checks were honored.
type FileStore interface {
	Upload(ctx context.Context, name, contentType string, size int64, content io.Reader) (url string, err error)
	// Delete removes a previously uploaded file. Unknown URLs are a no-op.
	Delete(ctx context.Context, url string) error
}
