package blob

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The HTTP client and the Handler speak the same contract: whatever one side
// uploads, the other addresses under the identical opaque path.
func TestHTTPAgainstHandler(t *testing.T) {
	local := NewLocal(t.TempDir())
	handler := NewHandler(local, slog.Default())

	r := chi.NewRouter()
	r.Group(handler.Routes)
	srv := httptest.NewServer(r)
	defer srv.Close()

	remote := NewHTTP(srv.URL)
	ctx := context.Background()

	path, err := remote.Upload(ctx, []byte(`{"n":1}`), "GetN_1.json", "signalr-temp")
	require.NoError(t, err)
	assert.Equal(t, "signalr-temp/GetN_1.json", path)

	// Path produced over HTTP resolves against the backing store directly.
	data, err := local.Read(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, `{"n":1}`, string(data))

	data, err = remote.Read(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, `{"n":1}`, string(data))

	deleted, err := remote.Delete(ctx, path)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = remote.Delete(ctx, path)
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = remote.Read(ctx, path)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHTTPUploadMissingName(t *testing.T) {
	local := NewLocal(t.TempDir())
	handler := NewHandler(local, slog.Default())

	r := chi.NewRouter()
	r.Group(handler.Routes)
	srv := httptest.NewServer(r)
	defer srv.Close()

	remote := NewHTTP(srv.URL)
	_, err := remote.Upload(context.Background(), []byte("x"), "", "f")
	assert.Error(t, err)
}
