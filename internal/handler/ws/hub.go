package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/webitel/im-rpc-service/internal/domain/correlator"
	"github.com/webitel/im-rpc-service/internal/domain/model"
	rpcmarshaller "github.com/webitel/im-rpc-service/internal/handler/marshaller/rpc"
	"github.com/webitel/im-rpc-service/internal/metrics"
)

// Hub is the in-memory dispatcher table: connID → live peer. It reflects what
// is addressable right now; the durable registry remains the authority on who
// is connected, and the two may briefly diverge during open/close. Sends to
// unknown connections are simply dropped.
type Hub struct {
	logger      *slog.Logger
	pending     *correlator.Table
	metrics     *metrics.Set
	eventMethod string

	// peers stores map[string]*Peer, keyed by connection identifier.
	peers sync.Map
}

func NewHub(logger *slog.Logger, pending *correlator.Table, m *metrics.Set, eventMethod string) *Hub {
	return &Hub{
		logger:      logger,
		pending:     pending,
		metrics:     m,
		eventMethod: eventMethod,
	}
}

func (h *Hub) Attach(p *Peer) {
	h.peers.Store(p.ConnID, p)
	h.metrics.Connections.Inc()
}

func (h *Hub) Detach(connID string) {
	if val, ok := h.peers.LoadAndDelete(connID); ok {
		val.(*Peer).shutdown()
		h.metrics.Connections.Dec()
	}
}

// CountPeers reports the number of addressable connections on this process.
func (h *Hub) CountPeers() int {
	n := 0
	h.peers.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// SendCall delivers one Call frame to a single connection. False means the
// connection is unknown here or its outbound buffer is saturated; the caller
// treats that as a partial-send failure.
func (h *Hub) SendCall(connID string, call model.Call) bool {
	val, ok := h.peers.Load(connID)
	if !ok {
		return false
	}
	frame, err := rpcmarshaller.MarshalCall(call)
	if err != nil {
		h.logger.Error("call frame marshal failed", "method", call.Method, "err", err)
		return false
	}
	return val.(*Peer).enqueue(frame)
}

// BroadcastCall delivers one Call frame to every live connection and reports
// how many accepted it.
func (h *Hub) BroadcastCall(call model.Call) int {
	frame, err := rpcmarshaller.MarshalCall(call)
	if err != nil {
		h.logger.Error("call frame marshal failed", "method", call.Method, "err", err)
		return 0
	}
	sent := 0
	h.peers.Range(func(_, val any) bool {
		if val.(*Peer).enqueue(frame) {
			sent++
		}
		return true
	})
	return sent
}

// BroadcastEvent fans a connection lifecycle event out to all peers as a
// fire-and-forget Call on the configured event method.
func (h *Hub) BroadcastEvent(_ context.Context, ev model.ConnectionEvent) {
	param, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("connection event marshal failed", "err", err)
		return
	}
	h.BroadcastCall(model.Call{Method: h.eventMethod, Param: param})
}

// dispatch routes one inbound frame. Replies complete the pending slot by
// request identifier alone; there is intentionally no correlation by
// connection identity. Anything malformed is logged and dropped so one bad
// frame never tears down sibling processing.
func (h *Hub) dispatch(connID string, raw []byte) {
	frame, err := rpcmarshaller.Unmarshal(raw)
	if err != nil {
		h.logger.Warn("inbound frame rejected", "conn_id", connID, "err", err)
		return
	}
	switch frame.Type {
	case rpcmarshaller.FrameReply:
		if !h.pending.Complete(frame.Reply.RequestID, frame.Reply.Response) {
			h.metrics.LateReplies.Inc()
			h.logger.Warn("late reply dropped",
				"request_id", frame.Reply.RequestID,
				"conn_id", connID,
			)
		}
	case rpcmarshaller.FrameCall:
		// Clients do not originate calls on this fabric.
		h.logger.Warn("unexpected call frame from peer", "conn_id", connID, "method", frame.Call.Method)
	}
}
