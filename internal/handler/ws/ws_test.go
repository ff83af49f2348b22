package ws_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-rpc-service/infra/storage/sqlite"
	"github.com/webitel/im-rpc-service/internal/adapter/blob"
	"github.com/webitel/im-rpc-service/internal/client"
	"github.com/webitel/im-rpc-service/internal/domain/correlator"
	"github.com/webitel/im-rpc-service/internal/domain/model"
	"github.com/webitel/im-rpc-service/internal/domain/registry"
	"github.com/webitel/im-rpc-service/internal/handler/ws"
	"github.com/webitel/im-rpc-service/internal/metrics"
	"github.com/webitel/im-rpc-service/internal/service"
)

// fabric assembles the full server stack over a real socket: sqlite registry,
// hub, correlator and blob store, exactly as the fx graph wires them.
type fabric struct {
	srv     *httptest.Server
	reg     *registry.Registry
	hub     *ws.Hub
	invoker *service.InvokeService
	decoder *service.Decoder
	blobs   blob.Store
}

func newFabric(t *testing.T) *fabric {
	t.Helper()
	logger := slog.Default()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	reg := registry.New(store, logger)
	pending := correlator.NewTable()
	m := metrics.New(prometheus.NewRegistry())
	hub := ws.NewHub(logger, pending, m, "ConnectionEvent")
	reg.AddBroadcaster(hub)

	invoker := service.NewInvokeService(logger, hub, service.NewResolver(reg), pending, m, service.InvokeConfig{
		MaxConcurrentRequests: 10,
		RequestTimeout:        5 * time.Second,
		SemaphoreTimeout:      time.Second,
	})

	blobs := blob.NewLocal(t.TempDir())
	decoder := service.NewDecoder(blobs, logger, "signalr-temp", true)

	handler := ws.NewHandler(logger, hub, reg)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &fabric{srv: srv, reg: reg, hub: hub, invoker: invoker, decoder: decoder, blobs: blobs}
}

func (f *fabric) wsURL() string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http")
}

// dial starts a client for userID and waits until the registry sees it.
func (f *fabric) dial(t *testing.T, userID string, opts client.Options) *client.Client {
	t.Helper()
	opts.URL = f.wsURL()
	opts.UserID = userID

	c, err := client.New(opts)
	require.NoError(t, err)

	before := f.hub.CountPeers()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			t.Logf("client stopped: %v", err)
		}
	}()

	// Registration commits before the hub attach, so waiting on the hub
	// guarantees both.
	require.Eventually(t, func() bool {
		return f.hub.CountPeers() == before+1
	}, 3*time.Second, 10*time.Millisecond, "client never attached")
	return c
}

type echoReq struct {
	Text string `json:"text"`
}

type echoResp struct {
	Text string `json:"text"`
}

func TestInvokeOverRealSocket(t *testing.T) {
	f := newFabric(t)

	c := f.dial(t, "alice", client.Options{})
	c.Handle("Echo", func(_ context.Context, param json.RawMessage) (any, error) {
		var req echoReq
		if err := json.Unmarshal(param, &req); err != nil {
			return nil, err
		}
		return echoResp{Text: req.Text}, nil
	})

	resp, err := f.invoker.Invoke(context.Background(), model.ToUser("alice"), "Echo", echoReq{Text: "hello"})
	require.NoError(t, err)
	require.Equal(t, model.ResponseJSON, resp.ResponseType)

	out, err := service.As[echoResp](context.Background(), f.decoder, resp)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, "hello", out.Text)
}

func TestInvokeNullReply(t *testing.T) {
	f := newFabric(t)

	c := f.dial(t, "alice", client.Options{})
	c.Handle("Fire", func(context.Context, json.RawMessage) (any, error) {
		return nil, nil
	})

	resp, err := f.invoker.Invoke(context.Background(), model.ToUser("alice"), "Fire", nil)
	require.NoError(t, err)
	assert.Equal(t, model.ResponseNull, resp.ResponseType)
}

func TestInvokeClientFailure(t *testing.T) {
	f := newFabric(t)

	c := f.dial(t, "alice", client.Options{})
	c.Handle("Explode", func(context.Context, json.RawMessage) (any, error) {
		return nil, errors.New("handler blew up")
	})

	resp, err := f.invoker.Invoke(context.Background(), model.ToUser("alice"), "Explode", nil)
	require.NoError(t, err)
	require.Equal(t, model.ResponseError, resp.ResponseType)

	_, err = service.As[echoResp](context.Background(), f.decoder, resp)
	var clientErr *model.ClientError
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, "handler blew up", clientErr.Message)
}

func TestInvokeUnknownMethodYieldsErrorEnvelope(t *testing.T) {
	f := newFabric(t)
	f.dial(t, "alice", client.Options{})

	resp, err := f.invoker.Invoke(context.Background(), model.ToUser("alice"), "NoSuchMethod", nil)
	require.NoError(t, err)
	assert.Equal(t, model.ResponseError, resp.ResponseType)
	assert.Contains(t, resp.ErrorMessage, "NoSuchMethod")
}

// Oversized results spill into the blob store; the decoder pulls them back
// and consumes the temp blob.
func TestLargeResultSpillsToBlob(t *testing.T) {
	f := newFabric(t)

	c := f.dial(t, "alice", client.Options{
		Blobs:             f.blobs,
		MaxDirectDataSize: 64,
		TempFolder:        "signalr-temp",
	})
	big := strings.Repeat("x", 4096)
	c.Handle("GetBig", func(context.Context, json.RawMessage) (any, error) {
		return echoResp{Text: big}, nil
	})

	resp, err := f.invoker.Invoke(context.Background(), model.ToUser("alice"), "GetBig", nil)
	require.NoError(t, err)
	require.Equal(t, model.ResponseFile, resp.ResponseType)
	assert.True(t, strings.HasPrefix(resp.FilePath, "signalr-temp/"))

	out, err := service.As[echoResp](context.Background(), f.decoder, resp)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, big, out.Text)

	// Read-once: the spilled blob is gone after decoding.
	_, err = f.blobs.Read(context.Background(), resp.FilePath)
	assert.ErrorIs(t, err, blob.ErrNotFound)
}

func TestFirstReplyWinsAcrossConnections(t *testing.T) {
	f := newFabric(t)

	var replies sync.WaitGroup
	replies.Add(2)
	for _, label := range []string{"first", "second"} {
		c := f.dial(t, "alice", client.Options{})
		tag := label
		c.Handle("WhoAmI", func(context.Context, json.RawMessage) (any, error) {
			defer replies.Done()
			return echoResp{Text: tag}, nil
		})
	}

	resp, err := f.invoker.Invoke(context.Background(), model.ToUser("alice"), "WhoAmI", nil)
	require.NoError(t, err)
	require.Equal(t, model.ResponseJSON, resp.ResponseType)

	out, err := service.As[echoResp](context.Background(), f.decoder, resp)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Contains(t, []string{"first", "second"}, out.Text)

	// Both handlers ran; the loser's reply was dropped as late.
	replies.Wait()
}

func TestConnectionEventFanOut(t *testing.T) {
	f := newFabric(t)

	events := make(chan model.ConnectionEvent, 8)
	c := f.dial(t, "watcher", client.Options{})
	c.Handle("ConnectionEvent", func(_ context.Context, param json.RawMessage) (any, error) {
		var ev model.ConnectionEvent
		if err := json.Unmarshal(param, &ev); err != nil {
			return nil, err
		}
		events <- ev
		return nil, nil
	})

	f.dial(t, "alice", client.Options{})

	select {
	case ev := <-events:
		assert.Equal(t, model.EventOpened, ev.Kind)
		assert.Equal(t, "alice", ev.UserID)
	case <-time.After(3 * time.Second):
		t.Fatal("no connection event received")
	}
}

func TestBroadcastReachesEveryPeer(t *testing.T) {
	f := newFabric(t)

	var mu sync.Mutex
	seen := map[string]bool{}
	for _, user := range []string{"alice", "bob"} {
		c := f.dial(t, user, client.Options{})
		id := user
		c.Handle("Ping", func(context.Context, json.RawMessage) (any, error) {
			mu.Lock()
			seen[id] = true
			mu.Unlock()
			return echoResp{Text: id}, nil
		})
	}

	_, err := f.invoker.Invoke(context.Background(), model.ToAll(), "Ping", nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen["alice"] && seen["bob"]
	}, 3*time.Second, 10*time.Millisecond)
}

func TestDetachOnClientDisconnect(t *testing.T) {
	f := newFabric(t)

	ctx, cancel := context.WithCancel(context.Background())
	c, err := client.New(client.Options{URL: f.wsURL(), UserID: "alice"})
	require.NoError(t, err)
	go func() { _ = c.Run(ctx) }()

	require.Eventually(t, func() bool {
		return f.hub.CountPeers() == 1
	}, 3*time.Second, 10*time.Millisecond)

	cancel()

	require.Eventually(t, func() bool {
		connected, err := f.reg.IsConnected(context.Background(), "alice")
		return err == nil && !connected && f.hub.CountPeers() == 0
	}, 3*time.Second, 10*time.Millisecond)
}
