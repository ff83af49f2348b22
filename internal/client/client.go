// Package client is the peer-side executor: it dials the fabric, waits for
// calls, runs the registered method handlers and sends exactly one reply per
// request. Oversized results spill into the blob store and travel by path.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/webitel/im-rpc-service/internal/adapter/blob"
	"github.com/webitel/im-rpc-service/internal/domain/model"
	rpcmarshaller "github.com/webitel/im-rpc-service/internal/handler/marshaller/rpc"
)

const (
	handshakeTimeout = 10 * time.Second
	writeWait        = 10 * time.Second
)

// Handler executes one method. A nil result with a nil error produces a Null
// reply; an error produces an Error reply carrying err.Error().
type Handler func(ctx context.Context, param json.RawMessage) (any, error)

// Options configures a Client. UserID is mandatory; everything else has a
// usable zero value.
type Options struct {
	// URL of the websocket endpoint, e.g. ws://host:8080/ws.
	URL    string
	UserID string

	// Blobs is where oversized results go. Nil disables spillover and every
	// result is inlined regardless of size.
	Blobs blob.Store
	// MaxDirectDataSize is the inline threshold in bytes. Zero means 10 KiB.
	MaxDirectDataSize int
	// TempFolder names the blob folder for spilled results.
	TempFolder string

	Logger *slog.Logger

	// OnNotify receives fire-and-forget calls (connection events, pushes)
	// that have no registered handler. May be nil.
	OnNotify func(method string, param json.RawMessage)
}

// Client holds one live connection to the fabric.
type Client struct {
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex // guards handlers before Run, writes after
	handlers map[string]Handler

	conn *websocket.Conn
	wmu  sync.Mutex // serializes frame writes
}

func New(opts Options) (*Client, error) {
	if opts.UserID == "" {
		return nil, fmt.Errorf("client: user id required")
	}
	if opts.MaxDirectDataSize <= 0 {
		opts.MaxDirectDataSize = 10 * 1024
	}
	if opts.TempFolder == "" {
		opts.TempFolder = "signalr-temp"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{
		opts:     opts,
		logger:   opts.Logger,
		handlers: make(map[string]Handler),
	}, nil
}

// Handle registers fn for method. Later registrations replace earlier ones.
// Safe to call concurrently with a running connection.
func (c *Client) Handle(method string, fn Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[method] = fn
}

// Run dials, then reads frames until the connection drops or ctx is
// cancelled. Each addressed call runs in its own goroutine so a slow handler
// never blocks the read loop.
func (c *Client) Run(ctx context.Context) error {
	header := http.Header{}
	header.Set("X-User-Id", c.opts.UserID)

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.opts.URL, header)
	if err != nil {
		return fmt.Errorf("client: dial %s: %w", c.opts.URL, err)
	}
	c.conn = conn
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				return fmt.Errorf("client: read: %w", err)
			}
			return nil
		}

		frame, err := rpcmarshaller.Unmarshal(data)
		if err != nil {
			c.logger.Warn("malformed frame dropped", "err", err)
			continue
		}
		if frame.Type != rpcmarshaller.FrameCall {
			c.logger.Warn("unexpected frame from server", "type", frame.Type)
			continue
		}

		call := *frame.Call
		if call.RequestID == "" {
			c.notify(call)
			continue
		}
		go c.execute(ctx, call)
	}
}

func (c *Client) notify(call model.Call) {
	c.mu.Lock()
	fn := c.handlers[call.Method]
	c.mu.Unlock()
	if fn != nil {
		if _, err := fn(context.Background(), call.Param); err != nil {
			c.logger.Warn("notify handler failed", "method", call.Method, "err", err)
		}
		return
	}
	if c.opts.OnNotify != nil {
		c.opts.OnNotify(call.Method, call.Param)
	}
}

func (c *Client) execute(ctx context.Context, call model.Call) {
	resp := c.respond(ctx, call)
	if err := c.sendReply(model.Reply{RequestID: call.RequestID, Response: resp}); err != nil {
		c.logger.Warn("reply send failed", "request_id", call.RequestID, "err", err)
	}
}

// respond runs the handler and folds its outcome into a response envelope.
func (c *Client) respond(ctx context.Context, call model.Call) model.Response {
	c.mu.Lock()
	fn := c.handlers[call.Method]
	c.mu.Unlock()
	if fn == nil {
		return model.ErrorResponse(fmt.Sprintf("unknown method %q", call.Method))
	}

	result, err := fn(ctx, call.Param)
	if err != nil {
		return model.ErrorResponse(err.Error())
	}
	if result == nil {
		return model.NullResponse()
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return model.ErrorResponse(fmt.Sprintf("marshal result: %v", err))
	}

	if c.opts.Blobs != nil && len(payload) > c.opts.MaxDirectDataSize {
		name := fmt.Sprintf("%s_%s.json", call.Method, uuid.NewString())
		path, err := c.opts.Blobs.Upload(ctx, payload, name, c.opts.TempFolder)
		if err != nil {
			return model.ErrorResponse(fmt.Sprintf("spill result: %v", err))
		}
		return model.FileResponse(path)
	}
	return model.JSONResponse(payload)
}

func (c *Client) sendReply(reply model.Reply) error {
	data, err := rpcmarshaller.MarshalReply(reply)
	if err != nil {
		return err
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}
