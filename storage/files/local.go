package filestore

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/balozi/core"
)

// allowed upload content types and their canonical extensions
var allowedContentTypes = map[string]string{
	"application/pdf": ".pdf",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
}

// localStore keeps uploads on the local disk under a configured root
// directory, served back under the "/uploads/" URL prefix. Good enough for
// a single-node deployment; an S3-backed store can drop in behind
// core.FileStore when needed.
type localStore struct {
	root    string
	maxSize int64
}

var _ core.FileStore = (*localStore)(nil) // interface compliance check

func NewLocalStore(conf *core.Config) (*localStore, error) {
	if err := os.MkdirAll(conf.Uploads.Dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating uploads dir")
	}
	return &localStore{
		root:    conf.Uploads.Dir,
		maxSize: conf.Uploads.MaxTranscriptSize,
	}, nil
}

func (store *localStore) Upload(ctx context.Context, name, contentType string, size int64, content io.Reader) (string, error) {
	if _, ok := allowedContentTypes[contentType]; !ok {
		return "", core.ErrUnsupportedFileType
	}
	if size > store.maxSize {
		return "", core.ErrFileTooLarge
	}

	name = sanitizeName(name)
	dst := filepath.Join(store.root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", errors.Wrap(err, "creating upload subdir")
	}

	// write to a temp file and rename into place so a failed or aborted
	// replacement leaves any previously stored file intact
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return "", errors.Wrap(err, "creating upload file")
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name()) // no-op once renamed
	}()

	// re-check the declared size against the actual stream
	n, err := io.Copy(tmp, io.LimitReader(content, store.maxSize+1))
	if err != nil {
		return "", errors.Wrap(err, "writing upload file")
	}
	if n > store.maxSize {
		return "", core.ErrFileTooLarge
	}
	if err = tmp.Close(); err != nil {
		return "", errors.Wrap(err, "closing upload file")
	}
	if err = os.Rename(tmp.Name(), dst); err != nil {
		return "", errors.Wrap(err, "replacing upload file")
	}
	return "/uploads/" + name, nil
}

func (store *localStore) Delete(ctx context.Context, url string) error {
	name := strings.TrimPrefix(url, "/uploads/")
	if name == url || name == "" {
		return nil // not ours
	}
	name = sanitizeName(name)
	if err := os.Remove(filepath.Join(store.root, filepath.FromSlash(name))); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing upload file")
	}
	return nil
}

// sanitizeName collapses the name to a clean slash path and strips any
// leading traversal so uploads cannot escape the root.
func sanitizeName(name string) string {
	name = path.Clean("/" + strings.ReplaceAll(name, "\\", "/"))
	return strings.TrimPrefix(name, "/")
}
