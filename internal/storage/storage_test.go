package storage

import (
	"context"
	"encoding/base64"
	"os"
	"path"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreSaveAndDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "/uploads/")
	require.NoError(t, err)

	url, err := store.Save(context.Background(), "receipt.png", "image/png", []byte("png-bytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/uploads/"), "url %q", url)
	assert.Equal(t, ".png", path.Ext(url))

	data, err := os.ReadFile(filepath.Join(dir, path.Base(url)))
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)

	require.NoError(t, store.Delete(context.Background(), url))
	_, err = os.Stat(filepath.Join(dir, path.Base(url)))
	assert.True(t, os.IsNotExist(err))
}

func TestLocalStoreUniqueNames(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/uploads")
	require.NoError(t, err)

	first, err := store.Save(context.Background(), "a.jpg", "image/jpeg", []byte("1"))
	require.NoError(t, err)
	second, err := store.Save(context.Background(), "a.jpg", "image/jpeg", []byte("2"))
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestLocalStoreDeleteRejectsForeignURL(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/uploads")
	require.NoError(t, err)

	err = store.Delete(context.Background(), "https://elsewhere.example/file.png")
	assert.Error(t, err)
}

func TestLocalStoreRequiresDir(t *testing.T) {
	_, err := NewLocalStore("", "/uploads")
	assert.Error(t, err)
}

func TestInlineStoreRoundTrip(t *testing.T) {
	store := NewInlineStore()

	url, err := store.Save(context.Background(), "a.png", "image/png", []byte("hello"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "data:image/png;base64,"), "url %q", url)

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(url, "data:image/png;base64,"))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), decoded)

	assert.NoError(t, store.Delete(context.Background(), url))
	assert.Error(t, store.Delete(context.Background(), "/uploads/a.png"))
}

func TestInlineStoreDefaultsContentType(t *testing.T) {
	store := NewInlineStore()
	url, err := store.Save(context.Background(), "blob", "", []byte{1})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "data:application/octet-stream;base64,"))
}

func TestFromConfigSelectsBackend(t *testing.T) {
	local, err := FromConfig(context.Background(), Config{
		Backend: "local", Dir: t.TempDir(), BaseURL: "/uploads",
	})
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, local)

	inline, err := FromConfig(context.Background(), Config{Backend: "inline"})
	require.NoError(t, err)
	assert.IsType(t, &InlineStore{}, inline)

	_, err = FromConfig(context.Background(), Config{Backend: "tape-drive"})
	assert.Error(t, err)
}
