package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-rpc-service/internal/adapter/blob"
	"github.com/webitel/im-rpc-service/internal/domain/model"
)

type answer struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newDecoder(t *testing.T, autoDelete bool) (*Decoder, blob.Store) {
	t.Helper()
	store := blob.NewLocal(t.TempDir())
	return NewDecoder(store, slog.Default(), "signalr-temp", autoDelete), store
}

func TestAsNull(t *testing.T) {
	d, _ := newDecoder(t, true)

	out, err := As[answer](context.Background(), d, model.NullResponse())
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestAsError(t *testing.T) {
	d, _ := newDecoder(t, true)

	out, err := As[answer](context.Background(), d, model.ErrorResponse("peer exploded"))
	assert.Nil(t, out)

	var clientErr *model.ClientError
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, "peer exploded", clientErr.Message)
}

func TestAsJSON(t *testing.T) {
	d, _ := newDecoder(t, true)

	out, err := As[answer](context.Background(), d,
		model.JSONResponse(json.RawMessage(`{"name":"x","count":3}`)))
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, answer{Name: "x", Count: 3}, *out)
}

// encoding/json matches field names case-insensitively, so peers using
// PascalCase keys decode without tag gymnastics.
func TestAsJSONCaseInsensitiveFields(t *testing.T) {
	d, _ := newDecoder(t, true)

	out, err := As[answer](context.Background(), d,
		model.JSONResponse(json.RawMessage(`{"Name":"x","COUNT":7}`)))
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, answer{Name: "x", Count: 7}, *out)
}

func TestAsJSONEmbeddedInString(t *testing.T) {
	d, _ := newDecoder(t, true)

	out, err := As[answer](context.Background(), d,
		model.JSONResponse(json.RawMessage(`"{\"name\":\"y\",\"count\":5}"`)))
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, answer{Name: "y", Count: 5}, *out)
}

func TestAsJSONNullPayload(t *testing.T) {
	d, _ := newDecoder(t, true)

	out, err := As[answer](context.Background(), d,
		model.JSONResponse(json.RawMessage(`null`)))
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestAsJSONGarbage(t *testing.T) {
	d, _ := newDecoder(t, true)

	_, err := As[answer](context.Background(), d,
		model.JSONResponse(json.RawMessage(`{{nope`)))
	assert.ErrorIs(t, err, model.ErrDecodeFailed)
}

func TestAsFileReadOnce(t *testing.T) {
	d, store := newDecoder(t, true)
	ctx := context.Background()

	payload, _ := json.Marshal(answer{Name: "big", Count: 1})
	path, err := store.Upload(ctx, payload, "GetBig_1.json", "signalr-temp")
	require.NoError(t, err)

	out, err := As[answer](ctx, d, model.FileResponse(path))
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, "big", out.Name)

	// The temp blob was consumed by the first decode.
	_, err = As[answer](ctx, d, model.FileResponse(path))
	assert.ErrorIs(t, err, model.ErrBlobMissing)
}

func TestAsFileOutsideTempFolderIsKept(t *testing.T) {
	d, store := newDecoder(t, true)
	ctx := context.Background()

	payload, _ := json.Marshal(answer{Name: "durable"})
	path, err := store.Upload(ctx, payload, "report.json", "exports")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		out, err := As[answer](ctx, d, model.FileResponse(path))
		require.NoError(t, err)
		require.NotNil(t, out)
		assert.Equal(t, "durable", out.Name)
	}
}

func TestAsFileAutoDeleteDisabled(t *testing.T) {
	d, store := newDecoder(t, false)
	ctx := context.Background()

	payload, _ := json.Marshal(answer{Name: "sticky"})
	path, err := store.Upload(ctx, payload, "GetSticky_1.json", "signalr-temp")
	require.NoError(t, err)

	_, err = As[answer](ctx, d, model.FileResponse(path))
	require.NoError(t, err)

	_, err = As[answer](ctx, d, model.FileResponse(path))
	assert.NoError(t, err)
}

func TestAsFileMissing(t *testing.T) {
	d, _ := newDecoder(t, true)

	_, err := As[answer](context.Background(), d,
		model.FileResponse("signalr-temp/never-written.json"))
	assert.ErrorIs(t, err, model.ErrBlobMissing)
}

func TestAsUnknownEnvelopeTag(t *testing.T) {
	d, _ := newDecoder(t, true)

	_, err := As[answer](context.Background(), d,
		model.Response{ResponseType: "Mystery"})
	assert.ErrorIs(t, err, model.ErrDecodeFailed)
}
