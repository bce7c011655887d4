// Package postgres stores listener checkpoints in a Postgres table:
//
//	CREATE TABLE checkpoints (
//	    namespace       TEXT NOT NULL,
//	    shard_id        TEXT NOT NULL,
//	    sequence_number TEXT NOT NULL,
//	    PRIMARY KEY (namespace, shard_id)
//	);
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
)

const getCheckpointQuery = `SELECT sequence_number FROM %s WHERE namespace = $1 AND shard_id = $2`

const upsertCheckpointQuery = `INSERT INTO %s (namespace, shard_id, sequence_number) VALUES ($1, $2, $3)
ON CONFLICT (namespace, shard_id) DO UPDATE SET sequence_number = EXCLUDED.sequence_number`

type key struct {
	streamName string
	shardID    string
}

// Option is used to override defaults when creating a new Checkpoint
type Option func(*Checkpoint)

// WithMaxInterval sets the flush interval
func WithMaxInterval(maxInterval time.Duration) Option {
	return func(c *Checkpoint) {
		c.maxInterval = maxInterval
	}
}

// WithLogger overrides the default logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Checkpoint) {
		c.logger = logger
	}
}

// Open connects to Postgres and returns a checkpoint using it.
func Open(appName, tableName, connectionStr string, opts ...Option) (*Checkpoint, error) {
	conn, err := sql.Open("postgres", connectionStr)
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	return New(appName, tableName, conn, opts...)
}

// New returns a checkpoint that uses Postgres for underlying storage.
// Checkpoints are buffered in memory and written every maxInterval and on
// Shutdown.
func New(appName, tableName string, conn *sql.DB, opts ...Option) (*Checkpoint, error) {
	if appName == "" {
		return nil, errors.New("must provide app name")
	}
	if tableName == "" {
		return nil, errors.New("must provide table name")
	}

	table := pq.QuoteIdentifier(tableName)
	ck := &Checkpoint{
		conn:        conn,
		appName:     appName,
		get:         fmt.Sprintf(getCheckpointQuery, table),
		upsert:      fmt.Sprintf(upsertCheckpointQuery, table),
		done:        make(chan struct{}),
		maxInterval: time.Minute,
		checkpoints: map[key]string{},
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(ck)
	}

	go ck.loop()

	return ck, nil
}

// Checkpoint stores and retrieves the last sequence number read from a shard
type Checkpoint struct {
	appName     string
	get         string
	upsert      string
	conn        *sql.DB
	mu          sync.Mutex // protects the checkpoints
	done        chan struct{}
	checkpoints map[key]string
	maxInterval time.Duration
	logger      *slog.Logger

	shutdownOnce sync.Once
	shutdownErr  error
}

// GetCheckpoint returns the last sequence number of a shard, or "" when the
// shard has no checkpoint yet. A checkpoint that was set but not flushed
// yet takes precedence over the stored one.
func (c *Checkpoint) GetCheckpoint(ctx context.Context, streamName, shardID string) (string, error) {
	c.mu.Lock()
	seq, ok := c.checkpoints[key{streamName: streamName, shardID: shardID}]
	c.mu.Unlock()
	if ok {
		return seq, nil
	}

	err := c.conn.QueryRowContext(ctx, c.get, c.namespace(streamName), shardID).Scan(&seq)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "get checkpoint")
	}
	return seq, nil
}

// SetCheckpoint stores a checkpoint for a shard (e.g. sequence number of last record processed by application).
// Upon failover, record processing is resumed from this point.
func (c *Checkpoint) SetCheckpoint(_ context.Context, streamName, shardID, sequenceNumber string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sequenceNumber == "" {
		return errors.New("sequence number should not be empty")
	}

	c.checkpoints[key{streamName: streamName, shardID: shardID}] = sequenceNumber
	return nil
}

// Shutdown the checkpoint. Save any in-flight data. Later calls return the
// result of the first one.
func (c *Checkpoint) Shutdown() error {
	c.shutdownOnce.Do(func() {
		c.done <- struct{}{}
		c.shutdownErr = c.save()
	})
	return c.shutdownErr
}

func (c *Checkpoint) loop() {
	tick := time.NewTicker(c.maxInterval)
	defer tick.Stop()
	defer close(c.done)

	for {
		select {
		case <-tick.C:
			if err := c.save(); err != nil {
				c.logger.Error("save checkpoints", slog.String("error", err.Error()))
			}
		case <-c.done:
			return
		}
	}
}

func (c *Checkpoint) save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, sequenceNumber := range c.checkpoints {
		if _, err := c.conn.Exec(c.upsert, c.namespace(key.streamName), key.shardID, sequenceNumber); err != nil {
			return errors.Wrapf(err, "upsert checkpoint for shard %s", key.shardID)
		}
		delete(c.checkpoints, key)
	}

	return nil
}

func (c *Checkpoint) namespace(streamName string) string {
	return fmt.Sprintf("%s-%s", c.appName, streamName)
}
