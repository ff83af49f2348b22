package model

import "time"

// ServerVersion is reported to peers in connection events and diagnostics.
const ServerVersion = "1.0.0"

// ConnectedUser is the durable record of an authenticated principal that has
// held at least one connection. Users are created lazily on first open and
// never deleted by this service.
type ConnectedUser struct {
	UserID           string
	LastConnectAt    *time.Time
	LastDisconnectAt *time.Time
}

// Connection is the durable record of one live duplex channel.
// On honest shutdown the row is deleted, not flipped to inactive; inactive
// rows only survive a crash and are removed by the staleness sweep.
type Connection struct {
	ConnectionID string
	UserID       string
	UserAgent    string
	Active       bool
	OpenedAt     time.Time
}

// UserSnapshot is a read-only projection of a user and their live connections,
// served to diagnostic consumers.
type UserSnapshot struct {
	UserID        string       `json:"user_id"`
	LastConnectAt *time.Time   `json:"last_connect_at,omitempty"`
	Connections   []Connection `json:"connections"`
}

// EventKind discriminates connection lifecycle events.
type EventKind string

const (
	EventOpened   EventKind = "opened"
	EventClosed   EventKind = "closed"
	EventReopened EventKind = "reopened"
)

// ConnectionEvent is broadcast to peers (and to the message bus) when a
// connection opens or closes, gated by the BroadcastConnectionEvents option.
type ConnectionEvent struct {
	UserID       string    `json:"user_id"`
	ConnectionID string    `json:"connection_id"`
	UserAgent    string    `json:"user_agent,omitempty"`
	Kind         EventKind `json:"kind"`
	At           time.Time `json:"at"`
}
