package filestore_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/balozi/core"
	filestore "github.com/trezcool/balozi/storage/files"
)

// brokenReader fails mid-stream, like a dropped client connection.
type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestLocalStore_replacementKeepsPreviousFile(t *testing.T) {
	ctx := context.Background()
	conf := &core.Config{
		Uploads: core.UploadsConfig{
			Dir:               t.TempDir(),
			MaxTranscriptSize: 1 << 10,
		},
	}
	store, err := filestore.NewLocalStore(conf)
	require.NoError(t, err)

	name := "transcripts/5551234567.pdf"
	onDisk := filepath.Join(conf.Uploads.Dir, "transcripts", "5551234567.pdf")

	url, err := store.Upload(ctx, name, "application/pdf", 2, strings.NewReader("v1"))
	require.NoError(t, err)
	assert.Equal(t, "/uploads/"+name, url)

	t.Run("failed replacement leaves the original intact", func(t *testing.T) {
		_, err := store.Upload(ctx, name, "application/pdf", 2, brokenReader{})
		require.Error(t, err)

		data, err := os.ReadFile(onDisk)
		require.NoError(t, err)
		assert.Equal(t, "v1", string(data))
	})

	t.Run("oversized replacement leaves the original intact", func(t *testing.T) {
		big := strings.NewReader(strings.Repeat("x", int(conf.Uploads.MaxTranscriptSize)+1))
		_, err := store.Upload(ctx, name, "application/pdf", 2, big)
		assert.Equal(t, core.ErrFileTooLarge, err)

		data, err := os.ReadFile(onDisk)
		require.NoError(t, err)
		assert.Equal(t, "v1", string(data))
	})

	t.Run("successful replacement swaps the content", func(t *testing.T) {
		_, err := store.Upload(ctx, name, "application/pdf", 7, strings.NewReader("v2 long"))
		require.NoError(t, err)

		data, err := os.ReadFile(onDisk)
		require.NoError(t, err)
		assert.Equal(t, "v2 long", string(data))
	})

	t.Run("no temp files left behind", func(t *testing.T) {
		entries, err := os.ReadDir(filepath.Join(conf.Uploads.Dir, "transcripts"))
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "5551234567.pdf", entries[0].Name())
	})
}
