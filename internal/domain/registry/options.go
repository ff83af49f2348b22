package registry

import "time"

// Option is a functional configuration type for the Registry.
type Option func(*Registry)

// WithStaleAge sets the staleness horizon: a connection row older than this
// is not believed to reflect a live channel and is evicted on the next sweep.
func WithStaleAge(d time.Duration) Option {
	return func(r *Registry) {
		r.staleAge = d
	}
}

// WithAutoPurgeOffline toggles the global sweep of inactive rows performed on
// every open.
func WithAutoPurgeOffline(enabled bool) Option {
	return func(r *Registry) {
		r.autoPurge = enabled
	}
}

// WithBroadcastEvents toggles connection-event fan-out to peers.
func WithBroadcastEvents(enabled bool) Option {
	return func(r *Registry) {
		r.broadcastEvents = enabled
	}
}

// WithTrackUserAgent toggles capturing the free-form user-agent label at open.
func WithTrackUserAgent(enabled bool) Option {
	return func(r *Registry) {
		r.trackUserAgent = enabled
	}
}

// WithIdentityCacheSize sizes the LRU cache backing user lookups.
func WithIdentityCacheSize(size int) Option {
	return func(r *Registry) {
		r.cacheSize = size
	}
}
