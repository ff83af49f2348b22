package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/im-rpc-service/internal/domain/correlator"
	"github.com/webitel/im-rpc-service/internal/domain/model"
	"github.com/webitel/im-rpc-service/internal/metrics"
	"golang.org/x/sync/semaphore"
)

// Sender is the transport seam the correlator emits frames through. The
// websocket hub implements it.
type Sender interface {
	SendCall(connID string, call model.Call) bool
	BroadcastCall(call model.Call) int
}

// Invoker is the primary interface for callers that want to run a method on
// connected clients. The returned envelope is raw: an Error envelope is a
// successful invocation whose peer failed. Use As for the typed projection.
type Invoker interface {
	Invoke(ctx context.Context, target model.Target, method string, param any) (model.Response, error)
}

// Interface guard
var _ Invoker = (*InvokeService)(nil)

// InvokeConfig bounds the correlator in concurrency and time.
type InvokeConfig struct {
	MaxConcurrentRequests int
	RequestTimeout        time.Duration
	SemaphoreTimeout      time.Duration
}

// InvokeService implements the request/response correlator over the pending
// table and a fire-and-forget transport.
type InvokeService struct {
	logger   *slog.Logger
	sender   Sender
	resolver *Resolver
	pending  *correlator.Table
	metrics  *metrics.Set

	sem        *semaphore.Weighted
	semTimeout time.Duration
	reqTimeout time.Duration
}

func NewInvokeService(
	logger *slog.Logger,
	sender Sender,
	resolver *Resolver,
	pending *correlator.Table,
	m *metrics.Set,
	cfg InvokeConfig,
) *InvokeService {
	return &InvokeService{
		logger:     logger,
		sender:     sender,
		resolver:   resolver,
		pending:    pending,
		metrics:    m,
		sem:        semaphore.NewWeighted(int64(cfg.MaxConcurrentRequests)),
		semTimeout: cfg.SemaphoreTimeout,
		reqTimeout: cfg.RequestTimeout,
	}
}

// Invoke runs one method on the resolved target set and returns the first
// reply. Later replies from sibling targets are dropped by the pending table.
// All exit paths release the admission permit and remove the pending slot.
func (s *InvokeService) Invoke(ctx context.Context, target model.Target, method string, param any) (model.Response, error) {
	if err := s.acquire(ctx); err != nil {
		return model.Response{}, err
	}
	defer s.sem.Release(1)

	s.metrics.InvokesInFlight.Inc()
	defer s.metrics.InvokesInFlight.Dec()

	res, err := s.resolver.Resolve(ctx, target)
	if err != nil {
		return model.Response{}, err
	}

	requestID := uuid.NewString()
	slot, err := s.pending.Register(requestID)
	if err != nil {
		return model.Response{}, err
	}
	defer s.pending.Remove(requestID)

	call := model.Call{RequestID: requestID, Method: method}
	if param != nil {
		raw, err := json.Marshal(param)
		if err != nil {
			return model.Response{}, fmt.Errorf("invoke %s: encode param: %w", method, err)
		}
		call.Param = raw
	}

	sent := 0
	if res.Broadcast {
		sent = s.sender.BroadcastCall(call)
	} else {
		for _, connID := range res.ConnIDs {
			if s.sender.SendCall(connID, call) {
				sent++
			} else {
				// Partial-send failures never cancel the call; any remaining
				// target can still answer.
				s.logger.Warn("call send failed",
					"method", method, "conn_id", connID, "request_id", requestID)
			}
		}
	}
	if sent == 0 {
		// Every send was refused, so no reply can ever arrive. Fail now
		// instead of burning the full request timeout.
		return model.Response{}, fmt.Errorf("%w: no reachable connection for %s", model.ErrNoTarget, method)
	}

	timer := time.NewTimer(s.reqTimeout)
	defer timer.Stop()

	select {
	case resp := <-slot:
		return resp, nil
	case <-timer.C:
		return model.Response{}, fmt.Errorf("%w: %s after %s", model.ErrTimeout, method, s.reqTimeout)
	case <-ctx.Done():
		return model.Response{}, ctx.Err()
	}
}

// acquire takes one admission permit, waiting at most the semaphore timeout.
func (s *InvokeService) acquire(ctx context.Context) error {
	acquireCtx, cancel := context.WithTimeout(ctx, s.semTimeout)
	defer cancel()

	if err := s.sem.Acquire(acquireCtx, 1); err != nil {
		// Caller cancellation takes precedence over the overload verdict.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return model.ErrOverloaded
	}
	return nil
}
