package registry_test

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-rpc-service/infra/storage/sqlite"
	"github.com/webitel/im-rpc-service/internal/domain/model"
	"github.com/webitel/im-rpc-service/internal/domain/registry"
)

type eventSink struct {
	mu     sync.Mutex
	events []model.ConnectionEvent
}

func (s *eventSink) BroadcastEvent(_ context.Context, ev model.ConnectionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *eventSink) kinds() []model.EventKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	kinds := make([]model.EventKind, len(s.events))
	for i, ev := range s.events {
		kinds[i] = ev.Kind
	}
	return kinds
}

func newRegistry(t *testing.T, opts ...registry.Option) (*registry.Registry, *eventSink) {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	sink := &eventSink{}
	reg := registry.New(store, slog.Default(), opts...)
	reg.AddBroadcaster(sink)
	return reg, sink
}

func TestOpenCloseLifecycle(t *testing.T) {
	reg, sink := newRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.OnOpen(ctx, "alice", "conn-1", "firefox"))

	connected, err := reg.IsConnected(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, connected)

	ids, err := reg.ConnectionsOf(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"conn-1"}, ids)

	require.NoError(t, reg.OnClose(ctx, "alice", "conn-1"))

	connected, err = reg.IsConnected(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, connected)

	assert.Equal(t, []model.EventKind{model.EventOpened, model.EventClosed}, sink.kinds())
}

func TestOpenWithoutIdentityIsIgnored(t *testing.T) {
	reg, sink := newRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.OnOpen(ctx, "", "anon-conn", ""))
	require.NoError(t, reg.OnClose(ctx, "", "anon-conn"))

	users, err := reg.CountUsers(ctx)
	require.NoError(t, err)
	assert.Zero(t, users)
	assert.Empty(t, sink.kinds())
}

func TestDuplicateOpenBroadcastsReopened(t *testing.T) {
	reg, sink := newRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.OnOpen(ctx, "alice", "conn-1", ""))
	require.NoError(t, reg.OnOpen(ctx, "alice", "conn-1", ""))

	conns, err := reg.CountConnections(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, conns)
	assert.Equal(t, []model.EventKind{model.EventOpened, model.EventReopened}, sink.kinds())
}

func TestRedundantCloseIsHarmless(t *testing.T) {
	reg, _ := newRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.OnOpen(ctx, "alice", "conn-1", ""))
	require.NoError(t, reg.OnClose(ctx, "alice", "conn-1"))
	require.NoError(t, reg.OnClose(ctx, "alice", "conn-1"))
}

func TestStaleConnectionsInvisible(t *testing.T) {
	// Zero stale age: everything is past the horizon immediately.
	reg, _ := newRegistry(t, registry.WithStaleAge(0))
	ctx := context.Background()

	require.NoError(t, reg.OnOpen(ctx, "alice", "conn-1", ""))
	time.Sleep(5 * time.Millisecond)

	connected, err := reg.IsConnected(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, connected)

	// The sweep actually evicts the row.
	require.NoError(t, reg.SweepStale(ctx, "alice"))
	n, err := reg.CountConnections(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLookupCachesUser(t *testing.T) {
	reg, _ := newRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.OnOpen(ctx, "alice", "conn-1", ""))

	u, err := reg.Lookup(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "alice", u.UserID)

	missing, err := reg.Lookup(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestBroadcastDisabled(t *testing.T) {
	reg, sink := newRegistry(t, registry.WithBroadcastEvents(false))
	ctx := context.Background()

	require.NoError(t, reg.OnOpen(ctx, "alice", "conn-1", ""))
	require.NoError(t, reg.OnClose(ctx, "alice", "conn-1"))
	assert.Empty(t, sink.kinds())
}
