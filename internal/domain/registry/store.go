package registry

import (
	"context"
	"time"

	"github.com/webitel/im-rpc-service/internal/domain/model"
)

// OpenRecord carries everything the store needs to commit one connection open
// as a single transaction.
type OpenRecord struct {
	UserID       string
	ConnectionID string
	UserAgent    string
	OpenedAt     time.Time

	// StaleBefore: rows of this user opened before this instant are purged
	// inside the same transaction, before the new row is inserted.
	StaleBefore time.Time

	// PurgeAllInactive additionally sweeps inactive rows of every user,
	// clearing leftovers of a crash.
	PurgeAllInactive bool
}

// ConnectionStore is the durable record of (user, connection) pairs. Writes
// commit atomically: a failed open or close leaves the previous state intact.
type ConnectionStore interface {
	// Open runs the open procedure in one transaction: purge stale rows of
	// the user, drop a replayed row with the same ConnectionID, upsert the
	// user record, insert the connection. replaced reports whether the same
	// ConnectionID was already present.
	Open(ctx context.Context, rec OpenRecord) (replaced bool, err error)

	// CloseConnection stamps LastDisconnectAt on the user record and deletes
	// the connection row. deleted is false when no such row existed.
	CloseConnection(ctx context.Context, userID, connID string, at time.Time) (deleted bool, err error)

	// DeleteConnection removes a single row outside the close procedure.
	// Used to retry a close whose row survived a stale identity cache.
	DeleteConnection(ctx context.Context, connID string) error

	// PurgeStale deletes rows of the given users opened before the horizon.
	PurgeStale(ctx context.Context, userIDs []string, before time.Time) (int64, error)

	ConnectionExists(ctx context.Context, connID string) (bool, error)
	ConnectionsOf(ctx context.Context, userID string) ([]model.Connection, error)
	ConnectionsOfUsers(ctx context.Context, userIDs []string) ([]string, error)
	CountUsers(ctx context.Context) (int, error)
	CountConnections(ctx context.Context) (int, error)
	SnapshotUsers(ctx context.Context) ([]model.UserSnapshot, error)
	User(ctx context.Context, userID string) (*model.ConnectedUser, error)
}
