package local

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vbonduro/staydesk/internal/docstore"
)

func TestLocalDocStoreSaveAndOpen(t *testing.T) {
	store, err := NewLocalDocStore(t.TempDir())
	require.NoError(t, err)
	store.now = func() time.Time { return time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC) }

	ctx := context.Background()
	data := []byte("%PDF-1.4 fake passport")

	key, size, err := store.Save(ctx, ".pdf", bytes.NewReader(data))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "guest_docs/2026/10/18/"), key)
	assert.True(t, strings.HasSuffix(key, ".pdf"), key)
	assert.Equal(t, int64(len(data)), size)

	reader, err := store.Open(ctx, key)
	require.NoError(t, err)
	defer reader.Close()

	got, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestLocalDocStoreUniqueKeys(t *testing.T) {
	store, err := NewLocalDocStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	a, _, err := store.Save(ctx, ".jpg", strings.NewReader("a"))
	require.NoError(t, err)
	b, _, err := store.Save(ctx, ".jpg", strings.NewReader("b"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestLocalDocStoreRejectsBadExtension(t *testing.T) {
	store, err := NewLocalDocStore(t.TempDir())
	require.NoError(t, err)

	_, _, err = store.Save(context.Background(), "/../../x", strings.NewReader("a"))
	assert.Error(t, err)
}

func TestLocalDocStoreDelete(t *testing.T) {
	store, err := NewLocalDocStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	key, _, err := store.Save(ctx, ".png", strings.NewReader("png"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, key))

	_, err = store.Open(ctx, key)
	assert.ErrorIs(t, err, docstore.ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, key), docstore.ErrNotFound)
}

func TestLocalDocStorePathTraversal(t *testing.T) {
	store, err := NewLocalDocStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Open(context.Background(), "../../etc/passwd")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, docstore.ErrNotFound)
}

var _ docstore.DocStore = (*LocalDocStore)(nil)
