package sequencer

import "log/slog"

// Option is used to override defaults when creating a new Sequencer
type Option func(*Sequencer)

// WithLogger overrides the default logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sequencer) {
		s.logger = logger
	}
}

// WithCounter overrides the default counter
func WithCounter(counter Counter) Option {
	return func(s *Sequencer) {
		s.counter = counter
	}
}

// FinishedHandler is called once a drain has emitted the final notification
// of a process. No more notifications will be accepted or emitted for it.
type FinishedHandler = func(processID string)

// WithFinishedHandler sets a handler called when a process finishes.
func WithFinishedHandler(h FinishedHandler) Option {
	return func(s *Sequencer) {
		s.finishedHandler = h
	}
}

// EvictHandler is called after Evict removed the buffer of a process.
type EvictHandler = func(processID string, last Status)

// WithEvictHandler sets a handler called when a process buffer is evicted.
func WithEvictHandler(h EvictHandler) Option {
	return func(s *Sequencer) {
		s.evictHandler = h
	}
}
