package ws

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound frame size. Replies stay small because large payloads
	// spill over to the blob side-channel.
	maxMessageSize = 512 * 1024

	// Outbound buffer per peer. A saturated buffer counts as a failed send.
	sendBuffer = 256
)

// Peer is one live duplex channel and its outbound queue.
type Peer struct {
	ConnID    string
	UserID    string
	UserAgent string

	conn   *websocket.Conn
	send   chan []byte
	logger *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

func newPeer(conn *websocket.Conn, connID, userID, userAgent string, logger *slog.Logger) *Peer {
	return &Peer{
		ConnID:    connID,
		UserID:    userID,
		UserAgent: userAgent,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// enqueue hands a frame to the write pump without blocking. False when the
// peer is gone or its buffer is full.
func (p *Peer) enqueue(frame []byte) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.send <- frame:
		return true
	default:
		p.logger.Warn("peer send buffer full, frame dropped", "conn_id", p.ConnID)
		return false
	}
}

func (p *Peer) shutdown() {
	p.closeOnce.Do(func() {
		close(p.done)
		p.conn.Close()
	})
}

// readPump consumes inbound frames until the connection dies. Each frame is
// dispatched independently; a dispatch panic or error never stops the loop's
// siblings on other connections.
func (p *Peer) readPump(dispatch func(connID string, raw []byte)) {
	defer p.shutdown()

	p.conn.SetReadLimit(maxMessageSize)
	_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				p.logger.Warn("peer read failed", "conn_id", p.ConnID, "err", err)
			}
			return
		}
		p.safeDispatch(dispatch, raw)
	}
}

func (p *Peer) safeDispatch(dispatch func(connID string, raw []byte), raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("inbound dispatch panic", "conn_id", p.ConnID, "panic", r)
		}
	}()
	dispatch(p.ConnID, raw)
}

// writePump serializes all writes to the socket: queued frames and pings.
func (p *Peer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		p.shutdown()
	}()

	for {
		select {
		case <-p.done:
			return
		case frame := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				p.logger.Warn("peer write failed", "conn_id", p.ConnID, "err", err)
				return
			}
		case <-ticker.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
