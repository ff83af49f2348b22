// Package sqlite persists the connection registry in an embedded database.
// The pure-Go driver keeps the service free of cgo.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/webitel/im-rpc-service/internal/domain/model"
	"github.com/webitel/im-rpc-service/internal/domain/registry"
	_ "modernc.org/sqlite"
)

// Interface guard
var _ registry.ConnectionStore = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS connected_users (
	user_id            TEXT PRIMARY KEY,
	last_connect_at    INTEGER,
	last_disconnect_at INTEGER
);

CREATE TABLE IF NOT EXISTS connections (
	connection_id TEXT PRIMARY KEY,
	user_id       TEXT NOT NULL REFERENCES connected_users(user_id) ON DELETE CASCADE,
	user_agent    TEXT NOT NULL DEFAULT '',
	active        INTEGER NOT NULL DEFAULT 1,
	opened_at     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_connections_user ON connections(user_id);
CREATE INDEX IF NOT EXISTS idx_connections_opened ON connections(opened_at);
`

// Store implements registry.ConnectionStore over a sqlite database.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the database at path and bootstraps the
// schema. WAL keeps readers unblocked during lifecycle writes.
func New(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, storeErr("open", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, storeErr("bootstrap", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Open(ctx context.Context, rec registry.OpenRecord) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, storeErr("begin", err)
	}
	defer tx.Rollback()

	var replaced bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM connections WHERE connection_id = ?)`,
		rec.ConnectionID).Scan(&replaced)
	if err != nil {
		return false, storeErr("replay probe", err)
	}

	// Stale and inactive rows of this user go first, then the replayed row,
	// so the insert below never trips the primary key.
	_, err = tx.ExecContext(ctx,
		`DELETE FROM connections WHERE user_id = ? AND (active = 0 OR opened_at < ?)`,
		rec.UserID, rec.StaleBefore.UnixNano())
	if err != nil {
		return false, storeErr("stale sweep", err)
	}
	if replaced {
		if _, err = tx.ExecContext(ctx,
			`DELETE FROM connections WHERE connection_id = ?`, rec.ConnectionID); err != nil {
			return false, storeErr("replay sweep", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO connected_users (user_id, last_connect_at) VALUES (?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET last_connect_at = excluded.last_connect_at`,
		rec.UserID, rec.OpenedAt.UnixNano())
	if err != nil {
		return false, storeErr("upsert user", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO connections (connection_id, user_id, user_agent, active, opened_at)
		 VALUES (?, ?, ?, 1, ?)`,
		rec.ConnectionID, rec.UserID, rec.UserAgent, rec.OpenedAt.UnixNano())
	if err != nil {
		return false, storeErr("insert connection", err)
	}

	if rec.PurgeAllInactive {
		if _, err = tx.ExecContext(ctx, `DELETE FROM connections WHERE active = 0`); err != nil {
			return false, storeErr("global purge", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, storeErr("commit open", err)
	}
	return replaced, nil
}

func (s *Store) CloseConnection(ctx context.Context, userID, connID string, at time.Time) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, storeErr("begin", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE connected_users SET last_disconnect_at = ? WHERE user_id = ?`,
		at.UnixNano(), userID)
	if err != nil {
		return false, storeErr("touch user", err)
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM connections WHERE connection_id = ?`, connID)
	if err != nil {
		return false, storeErr("delete connection", err)
	}
	n, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return false, storeErr("commit close", err)
	}
	return n > 0, nil
}

func (s *Store) DeleteConnection(ctx context.Context, connID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM connections WHERE connection_id = ?`, connID)
	if err != nil {
		return storeErr("delete connection", err)
	}
	return nil
}

func (s *Store) PurgeStale(ctx context.Context, userIDs []string, before time.Time) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(userIDs)+1)
	for _, id := range userIDs {
		args = append(args, id)
	}
	args = append(args, before.UnixNano())

	q := fmt.Sprintf(
		`DELETE FROM connections WHERE user_id IN (%s) AND (active = 0 OR opened_at < ?)`,
		placeholders(len(userIDs)))
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, storeErr("purge stale", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *Store) ConnectionExists(ctx context.Context, connID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM connections WHERE connection_id = ?)`, connID).Scan(&exists)
	if err != nil {
		return false, storeErr("connection probe", err)
	}
	return exists, nil
}

func (s *Store) ConnectionsOf(ctx context.Context, userID string) ([]model.Connection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT connection_id, user_id, user_agent, active, opened_at
		 FROM connections WHERE user_id = ? ORDER BY opened_at`, userID)
	if err != nil {
		return nil, storeErr("connections of user", err)
	}
	defer rows.Close()
	return scanConnections(rows)
}

func (s *Store) ConnectionsOfUsers(ctx context.Context, userIDs []string) ([]string, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(userIDs))
	for _, id := range userIDs {
		args = append(args, id)
	}
	q := fmt.Sprintf(
		`SELECT connection_id FROM connections WHERE user_id IN (%s) ORDER BY opened_at`,
		placeholders(len(userIDs)))
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, storeErr("connections of users", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, storeErr("scan connection id", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT user_id) FROM connections`).Scan(&n)
	if err != nil {
		return 0, storeErr("count users", err)
	}
	return n, nil
}

func (s *Store) CountConnections(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM connections`).Scan(&n)
	if err != nil {
		return 0, storeErr("count connections", err)
	}
	return n, nil
}

func (s *Store) SnapshotUsers(ctx context.Context) ([]model.UserSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.connection_id, c.user_id, c.user_agent, c.active, c.opened_at, u.last_connect_at
		 FROM connections c JOIN connected_users u ON u.user_id = c.user_id
		 ORDER BY c.user_id, c.opened_at`)
	if err != nil {
		return nil, storeErr("snapshot", err)
	}
	defer rows.Close()

	var (
		snaps []model.UserSnapshot
		cur   *model.UserSnapshot
	)
	for rows.Next() {
		var (
			c           model.Connection
			openedAt    int64
			lastConnect sql.NullInt64
		)
		if err := rows.Scan(&c.ConnectionID, &c.UserID, &c.UserAgent, &c.Active, &openedAt, &lastConnect); err != nil {
			return nil, storeErr("scan snapshot", err)
		}
		c.OpenedAt = time.Unix(0, openedAt)

		if cur == nil || cur.UserID != c.UserID {
			snaps = append(snaps, model.UserSnapshot{UserID: c.UserID})
			cur = &snaps[len(snaps)-1]
			if lastConnect.Valid {
				t := time.Unix(0, lastConnect.Int64)
				cur.LastConnectAt = &t
			}
		}
		cur.Connections = append(cur.Connections, c)
	}
	return snaps, rows.Err()
}

func (s *Store) User(ctx context.Context, userID string) (*model.ConnectedUser, error) {
	var (
		u          model.ConnectedUser
		connect    sql.NullInt64
		disconnect sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, last_connect_at, last_disconnect_at
		 FROM connected_users WHERE user_id = ?`, userID).
		Scan(&u.UserID, &connect, &disconnect)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("user probe", err)
	}
	if connect.Valid {
		t := time.Unix(0, connect.Int64)
		u.LastConnectAt = &t
	}
	if disconnect.Valid {
		t := time.Unix(0, disconnect.Int64)
		u.LastDisconnectAt = &t
	}
	return &u, nil
}

func scanConnections(rows *sql.Rows) ([]model.Connection, error) {
	var conns []model.Connection
	for rows.Next() {
		var (
			c        model.Connection
			openedAt int64
		)
		if err := rows.Scan(&c.ConnectionID, &c.UserID, &c.UserAgent, &c.Active, &openedAt); err != nil {
			return nil, storeErr("scan connection", err)
		}
		c.OpenedAt = time.Unix(0, openedAt)
		conns = append(conns, c)
	}
	return conns, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", model.ErrStore, op, err)
}
