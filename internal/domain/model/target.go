package model

// TargetKind enumerates the addressing modes of Invoke.
type TargetKind int8

const (
	TargetAll TargetKind = iota + 1
	TargetUser
	TargetUsers
	TargetConnection
	TargetConnections
)

func (k TargetKind) String() string {
	switch k {
	case TargetAll:
		return "all"
	case TargetUser:
		return "user"
	case TargetUsers:
		return "users"
	case TargetConnection:
		return "connection"
	case TargetConnections:
		return "connections"
	default:
		return "unknown"
	}
}

// Target selects the connection set an invocation is sent to.
// Construct via ToAll, ToUser, ToUsers, ToConnection or ToConnections.
type Target struct {
	kind TargetKind
	ids  []string
}

func (t Target) Kind() TargetKind { return t.kind }
func (t Target) IDs() []string    { return t.ids }

// ToAll addresses every live connection on this hub.
func ToAll() Target { return Target{kind: TargetAll} }

// ToUser addresses all connections of one user.
func ToUser(userID string) Target {
	return Target{kind: TargetUser, ids: []string{userID}}
}

// ToUsers addresses all connections of a set of users.
func ToUsers(userIDs ...string) Target {
	return Target{kind: TargetUsers, ids: userIDs}
}

// ToConnection addresses a single connection identifier.
func ToConnection(connID string) Target {
	return Target{kind: TargetConnection, ids: []string{connID}}
}

// ToConnections addresses an explicit connection set, passed through without
// a registry lookup.
func ToConnections(connIDs ...string) Target {
	return Target{kind: TargetConnections, ids: connIDs}
}
