package service

import (
	"context"
	"fmt"

	"github.com/webitel/im-rpc-service/internal/domain/model"
	"github.com/webitel/im-rpc-service/internal/domain/registry"
)

// Resolution is a resolved target: either the broadcast tag or a concrete
// connection set.
type Resolution struct {
	Broadcast bool
	ConnIDs   []string
}

// Resolver maps invocation targets to connection sets against the durable
// registry. Per-user targets sweep stale rows before resolving so that a
// half-dead channel never counts as a live target.
type Resolver struct {
	registry *registry.Registry
}

func NewResolver(reg *registry.Registry) *Resolver {
	return &Resolver{registry: reg}
}

func (r *Resolver) Resolve(ctx context.Context, target model.Target) (Resolution, error) {
	switch target.Kind() {
	case model.TargetAll:
		return Resolution{Broadcast: true}, nil

	case model.TargetUser, model.TargetUsers:
		ids := target.IDs()
		if err := r.registry.SweepStale(ctx, ids...); err != nil {
			return Resolution{}, err
		}
		connIDs, err := r.registry.ConnectionsOfUsers(ctx, ids)
		if err != nil {
			return Resolution{}, err
		}
		if len(connIDs) == 0 {
			return Resolution{}, fmt.Errorf("%w: users %v", model.ErrNoTarget, ids)
		}
		return Resolution{ConnIDs: connIDs}, nil

	case model.TargetConnection:
		connID := target.IDs()[0]
		active, err := r.registry.ConnectionActive(ctx, connID)
		if err != nil {
			return Resolution{}, err
		}
		if !active {
			return Resolution{}, fmt.Errorf("%w: %s", model.ErrInactiveConnection, connID)
		}
		return Resolution{ConnIDs: []string{connID}}, nil

	case model.TargetConnections:
		ids := target.IDs()
		if len(ids) == 0 {
			return Resolution{}, model.ErrNoTarget
		}
		// Explicit sets pass through; unknown connections are dropped by the
		// transport and the call times out or another target answers.
		return Resolution{ConnIDs: ids}, nil

	default:
		return Resolution{}, fmt.Errorf("unknown target kind %v", target.Kind())
	}
}
