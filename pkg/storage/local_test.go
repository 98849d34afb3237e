package storage

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestLocalPutOpenDelete(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	key := MediaKey("abc", ".png")
	require.NoError(t, store.Put(ctx, key, "image/png", bytes.NewReader(pngHeader), int64(len(pngHeader))))

	body, ct, err := store.Open(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, body.Close())
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)
	assert.Equal(t, "image/png", ct)

	require.NoError(t, store.Delete(ctx, key))
	_, _, err = store.Open(ctx, key)
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.ErrorIs(t, store.Delete(ctx, key), ErrObjectNotFound)
}

func TestLocalRejectsTraversal(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	err = store.Put(context.Background(), "../escape.png", "image/png", bytes.NewReader(pngHeader), 0)
	assert.Error(t, err)
}

func TestDetectImageType(t *testing.T) {
	ct, ext, ok := DetectImageType(pngHeader)
	assert.True(t, ok)
	assert.Equal(t, "image/png", ct)
	assert.Equal(t, ".png", ext)

	_, _, ok = DetectImageType([]byte("%PDF-1.4 not an image"))
	assert.False(t, ok)
}

func TestMediaKey(t *testing.T) {
	assert.Equal(t, "media/42.jpg", MediaKey("42", ".jpg"))
}

func TestOpenSelectsBackend(t *testing.T) {
	store, err := Open(context.Background(), BackendLocal, t.TempDir(), S3Config{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Local{}, store)

	_, err = Open(context.Background(), BackendS3, "", S3Config{}, nil)
	assert.Error(t, err, "bucket required")

	_, err = Open(context.Background(), "tape", "", S3Config{}, nil)
	assert.Error(t, err)
}
