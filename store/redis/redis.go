package redis

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const localhost = "127.0.0.1:6379"

// New returns a checkpoint that uses Redis for underlying storage. Without
// WithClient it connects to REDIS_URL, or localhost.
func New(appName string, opts ...Option) (*Checkpoint, error) {
	if appName == "" {
		return nil, errors.New("must provide app name")
	}

	c := &Checkpoint{
		appName: appName,
	}

	// override defaults
	for _, opt := range opts {
		opt(c)
	}

	// default client if none provided
	if c.client == nil {
		addr := os.Getenv("REDIS_URL")
		if addr == "" {
			addr = localhost
		}
		c.client = redis.NewClient(&redis.Options{Addr: addr})
	}

	// verify we can ping server
	if err := c.client.Ping(context.Background()).Err(); err != nil {
		return nil, errors.Wrap(err, "ping redis")
	}

	return c, nil
}

// Checkpoint stores and retrieves the last sequence number read from a shard
type Checkpoint struct {
	appName string
	client  *redis.Client
}

// GetCheckpoint fetches the checkpoint for a particular Shard.
func (c *Checkpoint) GetCheckpoint(ctx context.Context, streamName, shardID string) (string, error) {
	val, err := c.client.Get(ctx, c.key(streamName, shardID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "get checkpoint")
	}
	return val, nil
}

// SetCheckpoint stores a checkpoint for a shard (e.g. sequence number of last record processed by application).
// Upon failover, record processing is resumed from this point.
func (c *Checkpoint) SetCheckpoint(ctx context.Context, streamName, shardID, sequenceNumber string) error {
	if sequenceNumber == "" {
		return errors.New("sequence number should not be empty")
	}
	if err := c.client.Set(ctx, c.key(streamName, shardID), sequenceNumber, 0).Err(); err != nil {
		return errors.Wrap(err, "set checkpoint")
	}
	return nil
}

// key generates a unique Redis key for storage of Checkpoint.
func (c *Checkpoint) key(streamName, shardID string) string {
	return fmt.Sprintf("%v:checkpoint:%v:%v", c.appName, streamName, shardID)
}
