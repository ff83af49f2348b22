// Package registry keeps the durable record of which authenticated users hold
// which live connections. The store is authoritative; the transport's
// in-memory dispatcher table only reflects what is addressable right now, and
// the two may briefly diverge during open/close.
package registry

import (
	"context"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/webitel/im-rpc-service/internal/domain/model"
)

const defaultIdentityCacheSize = 4096

// Broadcaster receives connection lifecycle events. The websocket hub fans
// them out to peers; the pubsub dispatcher exports them to the message bus.
type Broadcaster interface {
	BroadcastEvent(ctx context.Context, ev model.ConnectionEvent)
}

// UserLookup is a plain key→record probe for display purposes.
type UserLookup interface {
	Lookup(ctx context.Context, userID string) (*model.ConnectedUser, error)
}

// Interface guard
var _ UserLookup = (*Registry)(nil)

// Registry implements the connection lifecycle over a ConnectionStore.
// It tolerates missed disconnects (staleness sweep), duplicate registrations
// (replay guard inside the store transaction) and redundant closes.
type Registry struct {
	store  ConnectionStore
	logger *slog.Logger

	staleAge        time.Duration
	autoPurge       bool
	broadcastEvents bool
	trackUserAgent  bool
	cacheSize       int

	identities   *lru.Cache[string, model.ConnectedUser]
	broadcasters []Broadcaster
}

func New(store ConnectionStore, logger *slog.Logger, opts ...Option) *Registry {
	r := &Registry{
		store:           store,
		logger:          logger,
		staleAge:        5 * time.Minute,
		autoPurge:       true,
		broadcastEvents: true,
		trackUserAgent:  true,
		cacheSize:       defaultIdentityCacheSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	cache, _ := lru.New[string, model.ConnectedUser](r.cacheSize)
	r.identities = cache
	return r
}

// AddBroadcaster registers an event sink. Not safe to call once connections
// are flowing; wiring happens at startup.
func (r *Registry) AddBroadcaster(b Broadcaster) {
	r.broadcasters = append(r.broadcasters, b)
}

// OnOpen records a freshly opened connection. Idempotent under replays of the
// same connection identifier. An open without a user identity is invisible to
// the registry: the transport may keep the socket, but nothing is recorded.
func (r *Registry) OnOpen(ctx context.Context, userID, connID, userAgent string) error {
	if userID == "" {
		r.logger.Debug("open without user identity ignored", "conn_id", connID)
		return nil
	}
	if !r.trackUserAgent {
		userAgent = ""
	}

	now := time.Now()
	replaced, err := r.store.Open(ctx, OpenRecord{
		UserID:           userID,
		ConnectionID:     connID,
		UserAgent:        userAgent,
		OpenedAt:         now,
		StaleBefore:      now.Add(-r.staleAge),
		PurgeAllInactive: r.autoPurge,
	})
	if err != nil {
		return err
	}
	// The sweep may have removed rows this entry was derived from.
	r.identities.Remove(userID)

	kind := model.EventOpened
	if replaced {
		r.logger.Warn("duplicate connection replay", "conn_id", connID, "user_id", userID)
		kind = model.EventReopened
	}
	r.broadcast(ctx, model.ConnectionEvent{
		UserID:       userID,
		ConnectionID: connID,
		UserAgent:    userAgent,
		Kind:         kind,
		At:           now,
	})
	return nil
}

// OnClose removes the connection row. Idempotent under redundant close: a
// missing row is a warning, not an error. A close without a user identity is
// a no-op and never broadcasts.
func (r *Registry) OnClose(ctx context.Context, userID, connID string) error {
	if userID == "" {
		r.logger.Debug("close without user identity ignored", "conn_id", connID)
		return nil
	}

	now := time.Now()
	deleted, err := r.store.CloseConnection(ctx, userID, connID, now)
	if err != nil {
		return err
	}
	if !deleted {
		r.logger.Warn("close for unknown connection", "conn_id", connID, "user_id", userID)
	}

	// Verify the row is really gone. A stale identity cache inside the store
	// can resurrect it; delete once more if so.
	exists, err := r.store.ConnectionExists(ctx, connID)
	if err != nil {
		return err
	}
	if exists {
		r.logger.Warn("connection row survived close, retrying delete", "conn_id", connID)
		if err := r.store.DeleteConnection(ctx, connID); err != nil {
			return err
		}
	}
	r.identities.Remove(userID)

	r.broadcast(ctx, model.ConnectionEvent{
		UserID:       userID,
		ConnectionID: connID,
		Kind:         model.EventClosed,
		At:           now,
	})
	return nil
}

// IsConnected reports whether the user holds at least one connection passing
// the staleness predicate.
func (r *Registry) IsConnected(ctx context.Context, userID string) (bool, error) {
	conns, err := r.liveConnections(ctx, userID)
	if err != nil {
		return false, err
	}
	return len(conns) > 0, nil
}

// SweepStale evicts rows of the given users that crossed the staleness
// horizon. Target resolution for per-user targets runs this first.
func (r *Registry) SweepStale(ctx context.Context, userIDs ...string) error {
	purged, err := r.store.PurgeStale(ctx, userIDs, time.Now().Add(-r.staleAge))
	if err != nil {
		return err
	}
	if purged > 0 {
		r.logger.Info("purged stale connections", "count", purged, "users", len(userIDs))
		for _, id := range userIDs {
			r.identities.Remove(id)
		}
	}
	return nil
}

// ConnectionsOf lists the identifiers of the user's live connections.
func (r *Registry) ConnectionsOf(ctx context.Context, userID string) ([]string, error) {
	conns, err := r.liveConnections(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(conns))
	for _, c := range conns {
		ids = append(ids, c.ConnectionID)
	}
	return ids, nil
}

// ConnectionsOfUsers lists connection identifiers for a set of users.
func (r *Registry) ConnectionsOfUsers(ctx context.Context, userIDs []string) ([]string, error) {
	return r.store.ConnectionsOfUsers(ctx, userIDs)
}

// ConnectionActive reports whether a specific connection identifier is
// registered.
func (r *Registry) ConnectionActive(ctx context.Context, connID string) (bool, error) {
	return r.store.ConnectionExists(ctx, connID)
}

func (r *Registry) CountUsers(ctx context.Context) (int, error) {
	return r.store.CountUsers(ctx)
}

func (r *Registry) CountConnections(ctx context.Context) (int, error) {
	return r.store.CountConnections(ctx)
}

func (r *Registry) SnapshotUsers(ctx context.Context) ([]model.UserSnapshot, error) {
	return r.store.SnapshotUsers(ctx)
}

// Lookup resolves a user record through the identity cache. Sweeps and
// lifecycle writes invalidate affected entries.
func (r *Registry) Lookup(ctx context.Context, userID string) (*model.ConnectedUser, error) {
	if cached, ok := r.identities.Get(userID); ok {
		return &cached, nil
	}
	u, err := r.store.User(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u != nil {
		r.identities.Add(userID, *u)
	}
	return u, nil
}

// liveConnections reads the user's rows and filters the ones past the
// staleness horizon without deleting them; eviction is the sweeper's job.
func (r *Registry) liveConnections(ctx context.Context, userID string) ([]model.Connection, error) {
	conns, err := r.store.ConnectionsOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	horizon := time.Now().Add(-r.staleAge)
	live := conns[:0]
	for _, c := range conns {
		if c.OpenedAt.After(horizon) {
			live = append(live, c)
		}
	}
	return live, nil
}

func (r *Registry) broadcast(ctx context.Context, ev model.ConnectionEvent) {
	if !r.broadcastEvents {
		return
	}
	for _, b := range r.broadcasters {
		b.BroadcastEvent(ctx, ev)
	}
}
