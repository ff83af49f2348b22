// Package correlator holds the in-memory table matching server-initiated
// requests to the replies that complete them. The table is the only mutable
// shared structure on the invoke hot path.
package correlator

import (
	"sync"

	"github.com/webitel/im-rpc-service/internal/domain/model"
)

// Table maps request identifiers to single-shot completion slots. A slot is
// consumed by the first of: reply received, deadline, caller cancellation.
type Table struct {
	mu    sync.Mutex
	slots map[string]chan model.Response
}

func NewTable() *Table {
	return &Table{
		slots: make(map[string]chan model.Response),
	}
}

// Register allocates the completion slot for a fresh request identifier.
// A collision means identifier reuse, which is a bug upstream, never a
// condition to retry.
func (t *Table) Register(requestID string) (<-chan model.Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, dup := t.slots[requestID]; dup {
		return nil, model.ErrRequestIDCollision
	}
	slot := make(chan model.Response, 1)
	t.slots[requestID] = slot
	return slot, nil
}

// Complete delivers the reply for requestID and consumes the slot. It returns
// false when no slot is waiting: either the request already completed (a late
// reply from a second target) or it was never registered here.
func (t *Table) Complete(requestID string, resp model.Response) bool {
	t.mu.Lock()
	slot, ok := t.slots[requestID]
	if ok {
		delete(t.slots, requestID)
	}
	t.mu.Unlock()
	if !ok {
		return false
	}
	slot <- resp // buffered, never blocks
	return true
}

// Remove discards the slot without completing it. Idempotent.
func (t *Table) Remove(requestID string) {
	t.mu.Lock()
	delete(t.slots, requestID)
	t.mu.Unlock()
}

// Len reports the number of requests still awaiting a reply.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots)
}
