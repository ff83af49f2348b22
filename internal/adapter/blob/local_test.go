package blob

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalRoundTrip(t *testing.T) {
	store := NewLocal(t.TempDir())
	ctx := context.Background()

	path, err := store.Upload(ctx, []byte(`{"big":true}`), "GetBig_1.json", "signalr-temp")
	require.NoError(t, err)
	assert.Equal(t, "signalr-temp/GetBig_1.json", path)

	data, err := store.Read(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, `{"big":true}`, string(data))

	deleted, err := store.Delete(ctx, path)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = store.Read(ctx, path)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalUploadNeverOverwrites(t *testing.T) {
	store := NewLocal(t.TempDir())
	ctx := context.Background()

	_, err := store.Upload(ctx, []byte("first"), "x.json", "f")
	require.NoError(t, err)

	_, err = store.Upload(ctx, []byte("second"), "x.json", "f")
	assert.Error(t, err)

	data, err := store.Read(ctx, "f/x.json")
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}

func TestLocalDeleteMissing(t *testing.T) {
	store := NewLocal(t.TempDir())

	deleted, err := store.Delete(context.Background(), "f/ghost.json")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestLocalPathsNeverEscapeRoot(t *testing.T) {
	store := NewLocal(t.TempDir())
	ctx := context.Background()

	// Traversal segments are folded away, the blob stays under the root.
	path, err := store.Upload(ctx, []byte("x"), "../../etc/passwd", "f")
	require.NoError(t, err)
	assert.Equal(t, "etc/passwd", path)

	_, err = store.Read(ctx, "../outside")
	assert.Error(t, err)

	_, err = store.Read(ctx, "")
	assert.Error(t, err)
}
