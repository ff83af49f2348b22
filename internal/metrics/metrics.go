// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/fx"
)

// Set bundles every collector the service records.
type Set struct {
	// Connections counts live websocket peers attached to the hub.
	Connections prometheus.Gauge

	// InvokesInFlight tracks invocations between admission and completion.
	InvokesInFlight prometheus.Gauge

	// InvokeTotal counts finished invocations by outcome
	// (ok, timeout, overloaded, no_target, client_error, error).
	InvokeTotal *prometheus.CounterVec

	// InvokeDuration observes wall time of finished invocations.
	InvokeDuration prometheus.Histogram

	// LateReplies counts replies that arrived after their request completed.
	LateReplies prometheus.Counter
}

func New(reg prometheus.Registerer) *Set {
	factory := promauto.With(reg)
	return &Set{
		Connections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "im_rpc_ws_connections",
			Help: "Live websocket connections attached to the hub.",
		}),
		InvokesInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "im_rpc_invokes_in_flight",
			Help: "Invocations currently holding an admission permit.",
		}),
		InvokeTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "im_rpc_invokes_total",
			Help: "Finished invocations by outcome.",
		}, []string{"outcome"}),
		InvokeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "im_rpc_invoke_duration_seconds",
			Help:    "Wall time of finished invocations.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		}),
		LateReplies: factory.NewCounter(prometheus.CounterOpts{
			Name: "im_rpc_late_replies_total",
			Help: "Replies dropped because their request already completed.",
		}),
	}
}

var Module = fx.Module("metrics",
	fx.Provide(
		func() *prometheus.Registry { return prometheus.NewRegistry() },
		func(reg *prometheus.Registry) *Set { return New(reg) },
	),
)
