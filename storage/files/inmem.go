package filestore

import (
	"context"
	"io"
	"io/ioutil"
	"sync"

	"github.com/trezcool/balozi/core"
)

// inMemStore is a test double keeping uploads in a map.
type inMemStore struct {
	mutex   sync.RWMutex
	files   map[string][]byte
	maxSize int64
}

var _ core.FileStore = (*inMemStore)(nil) // interface compliance check

func NewInMemStore(maxSize int64) *inMemStore {
	return &inMemStore{
		files:   make(map[string][]byte),
		maxSize: maxSize,
	}
}

func (store *inMemStore) Upload(ctx context.Context, name, contentType string, size int64, content io.Reader) (string, error) {
	if _, ok := allowedContentTypes[contentType]; !ok {
		return "", core.ErrUnsupportedFileType
	}
	if size > store.maxSize {
		return "", core.ErrFileTooLarge
	}
	data, err := ioutil.ReadAll(io.LimitReader(content, store.maxSize+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > store.maxSize {
		return "", core.ErrFileTooLarge
	}

	store.mutex.Lock()
	defer store.mutex.Unlock()
	url := "/uploads/" + sanitizeName(name)
	store.files[url] = data
	return url, nil
}

func (store *inMemStore) Delete(ctx context.Context, url string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	delete(store.files, url)
	return nil
}

// Contents returns the stored bytes for url; nil if absent.
func (store *inMemStore) Contents(url string) []byte {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	return store.files[url]
}
