package relay

import (
	"log/slog"
	"time"
)

// Option is used to override defaults when creating a new Relay
type Option func(*Relay)

// WithInterval overrides the time between two flushes of Run
func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		r.interval = d
	}
}

// WithLogger overrides the default logger
func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

// WithConcurrency limits how many emits run at the same time
func WithConcurrency(n int) Option {
	return func(r *Relay) {
		r.concurrency = n
	}
}

// WithEvictOnFinish controls whether a process is evicted from the
// sequencer once its final notification has been emitted. Defaults to
// false: a finished process keeps dropping redelivered notifications, while
// an evicted one would start over and emit them again. Only enable it when
// the input cannot repeat a process after its final notification.
func WithEvictOnFinish(evict bool) Option {
	return func(r *Relay) {
		r.evictOnFinish = evict
	}
}
