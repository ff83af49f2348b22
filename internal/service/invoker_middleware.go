package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/webitel/im-rpc-service/internal/domain/model"
	"github.com/webitel/im-rpc-service/internal/metrics"
)

// invokerMiddleware decorates the Invoker with timing, outcome metrics and
// structured logging, keeping the correlator itself free of cross-cutting
// concerns.
type invokerMiddleware struct {
	next    Invoker
	logger  *slog.Logger
	metrics *metrics.Set
}

// NewInstrumentedInvoker wraps next with the middleware. Wired as an fx
// decorator at the application root so every consumer sees the wrapped value.
func NewInstrumentedInvoker(next Invoker, logger *slog.Logger, m *metrics.Set) Invoker {
	return &invokerMiddleware{next: next, logger: logger, metrics: m}
}

func (m *invokerMiddleware) Invoke(ctx context.Context, target model.Target, method string, param any) (model.Response, error) {
	start := time.Now()

	resp, err := m.next.Invoke(ctx, target, method, param)

	elapsed := time.Since(start)
	outcome := classify(err)
	m.metrics.InvokeTotal.WithLabelValues(outcome).Inc()
	m.metrics.InvokeDuration.Observe(elapsed.Seconds())

	if err != nil {
		m.logger.Warn("invoke failed",
			"method", method,
			"target", target.Kind().String(),
			"outcome", outcome,
			"duration_ms", elapsed.Milliseconds(),
			"err", err,
		)
		return resp, err
	}

	m.logger.Debug("invoke completed",
		"method", method,
		"target", target.Kind().String(),
		"response", string(resp.ResponseType),
		"duration_ms", elapsed.Milliseconds(),
	)
	return resp, nil
}

func classify(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, model.ErrTimeout):
		return "timeout"
	case errors.Is(err, model.ErrOverloaded):
		return "overloaded"
	case errors.Is(err, model.ErrNoTarget), errors.Is(err, model.ErrInactiveConnection):
		return "no_target"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}
