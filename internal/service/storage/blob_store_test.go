package storage

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BlobStore {
	t.Helper()
	store, err := NewBlobStore(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)
	return store
}

// failingReader returns some bytes and then an error.
type failingReader struct {
	sent bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.sent {
		r.sent = true
		return copy(p, "partial"), nil
	}
	return 0, errors.New("connection reset")
}

func TestBlobStore_PutAndRead(t *testing.T) {
	store := newTestStore(t)

	n, err := store.Put("cam-20250101_120000.png", strings.NewReader("png bytes"))
	require.NoError(t, err)
	assert.Equal(t, int64(len("png bytes")), n)

	data, err := os.ReadFile(store.Path("cam-20250101_120000.png"))
	require.NoError(t, err)
	assert.Equal(t, "png bytes", string(data))
}

func TestBlobStore_PutOverwrites(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Put("k.png", strings.NewReader("first"))
	require.NoError(t, err)
	_, err = store.Put("k.png", strings.NewReader("second"))
	require.NoError(t, err)

	data, err := os.ReadFile(store.Path("k.png"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestBlobStore_PutFailureLeavesNothing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Put("k.png", &failingReader{})
	require.Error(t, err)

	var blobErr *Error
	require.ErrorAs(t, err, &blobErr)
	assert.Equal(t, "put", blobErr.Op)
	assert.Equal(t, "k.png", blobErr.Key)

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries, "no final blob and no temp file may remain")
}

func TestBlobStore_PutFailureKeepsPreviousBlob(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Put("k.png", strings.NewReader("good"))
	require.NoError(t, err)

	_, err = store.Put("k.png", &failingReader{})
	require.Error(t, err)

	data, err := os.ReadFile(store.Path("k.png"))
	require.NoError(t, err)
	assert.Equal(t, "good", string(data))
}

func TestBlobStore_DeleteIsIdempotent(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Put("k.png", bytes.NewReader([]byte{1, 2, 3}))
	require.NoError(t, err)

	require.NoError(t, store.Delete("k.png"))
	require.NoError(t, store.Delete("k.png"))
	require.NoError(t, store.Delete("never-existed.png"))

	exists, err := store.Exists("k.png")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestBlobStore_ListKeysSkipsTempAndDirs(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Put("a.png", strings.NewReader("a"))
	require.NoError(t, err)
	_, err = store.Put("b.png", strings.NewReader("b"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), ".tmp-123"), []byte("x"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(store.Dir(), "sub"), 0755))

	keys, err := store.ListKeys()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.png", "b.png"}, keys)
}

func TestBlobStore_RejectsInvalidKeys(t *testing.T) {
	store := newTestStore(t)

	for _, key := range []string{"", ".", "..", "../escape.png", "a/b.png", `a\b.png`, "nul\x00.png", ".tmp-x"} {
		_, err := store.Put(key, strings.NewReader("x"))
		assert.ErrorIs(t, err, ErrInvalidKey, "put %q", key)
		assert.ErrorIs(t, store.Delete(key), ErrInvalidKey, "delete %q", key)
		_, err = store.Exists(key)
		assert.ErrorIs(t, err, ErrInvalidKey, "exists %q", key)
	}

	_, err := os.Stat(filepath.Join(filepath.Dir(store.Dir()), "escape.png"))
	assert.True(t, os.IsNotExist(err))
}

func TestBlobStore_ExistsOnDirectory(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.Mkdir(filepath.Join(store.Dir(), "sub"), 0755))

	exists, err := store.Exists("sub")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestBlobStore_PutEmptyStream(t *testing.T) {
	store := newTestStore(t)

	n, err := store.Put("empty.png", io.LimitReader(strings.NewReader("ignored"), 0))
	require.NoError(t, err)
	assert.Zero(t, n)

	exists, err := store.Exists("empty.png")
	require.NoError(t, err)
	assert.True(t, exists)
}
