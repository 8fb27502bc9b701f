package blobstore

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_PutGetDeleteRoundTrip(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx := context.Background()

	uri, err := store.Put(ctx, "docs", 42, "report final.txt", strings.NewReader("hello"), 5, "text/plain")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "local://docs/"))

	rc, err := store.Get(ctx, uri)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))

	require.NoError(t, store.Delete(ctx, uri))
	_, err = store.Get(ctx, uri)
	assert.Error(t, err)
}

func TestLocalStore_DeleteMissingFileIsNotAnError(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	err := store.Delete(context.Background(), "local://docs/999-missing.txt")
	assert.NoError(t, err)
}

func TestLocalStore_GetRejectsUnsupportedScheme(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	_, err := store.Get(context.Background(), "s3://bucket/key")
	assert.ErrorIs(t, err, ErrUnsupportedScheme)
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "report_final.txt", sanitizeName("report final.txt"))
	assert.Equal(t, "a.b-c_d.txt", sanitizeName("a.b-c_d.txt"))
	assert.Equal(t, "passwd", sanitizeName("../../etc/passwd"), "filepath.Base strips directory components")
}
