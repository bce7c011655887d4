package listener

import (
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/kinesis/types"
)

// Option is used to override defaults when creating a new Listener
type Option func(*Listener)

// WithStore overrides the default checkpoint storage
func WithStore(store Store) Option {
	return func(l *Listener) {
		l.store = store
	}
}

// WithLogger overrides the default logger
func WithLogger(logger *slog.Logger) Option {
	return func(l *Listener) {
		l.logger = logger
	}
}

// WithCounter overrides the default counter
func WithCounter(counter Counter) Option {
	return func(l *Listener) {
		l.counter = counter
	}
}

// WithClient overrides the default client
func WithClient(client Client) Option {
	return func(l *Listener) {
		l.client = client
	}
}

// WithDecoder overrides the default JSON decoder of record payloads
func WithDecoder(d Decoder) Option {
	return func(l *Listener) {
		l.decoder = d
	}
}

// WithShardIteratorType overrides the starting point for shards without a
// checkpoint
func WithShardIteratorType(t types.ShardIteratorType) Option {
	return func(l *Listener) {
		l.initialShardIteratorType = t
	}
}

// WithScanInterval overrides the wait between polls of an idle shard
func WithScanInterval(d time.Duration) Option {
	return func(l *Listener) {
		l.scanInterval = d
	}
}

// WithMaxRecords overrides the maximum number of records to be
// returned in a single GetRecords call (specify a value of up to 10,000)
func WithMaxRecords(n int32) Option {
	return func(l *Listener) {
		l.maxRecords = n
	}
}

// WithMaxRetries overrides how many consecutive recoverable errors a shard
// tolerates before the scan fails
func WithMaxRetries(n int) Option {
	return func(l *Listener) {
		l.maxRetries = n
	}
}

// ShardClosedHandler is a handler that will be called when the listener has reached the end of a closed shard.
// No more records for that shard will be provided by the listener.
// An error can be returned to stop the listener.
type ShardClosedHandler = func(streamName, shardID string) error

// WithShardClosedHandler sets the handler for closed shards
func WithShardClosedHandler(h ShardClosedHandler) Option {
	return func(l *Listener) {
		l.shardClosedHandler = h
	}
}

// WithMaxHold limits how long an unfinished process may hold the shard
// checkpoint back. Zero holds until the process finishes.
func WithMaxHold(d time.Duration) Option {
	return func(l *Listener) {
		l.maxHold = d
	}
}
