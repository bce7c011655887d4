// Package store provides an in-memory checkpoint store for the listener.
// Checkpoints are lost when the application exits; use it for tests and
// single instance deployments that replay the stream on start.
package store

import (
	"context"
	"errors"
	"sync"
)

// New returns an empty in-memory store.
func New() *Store {
	return &Store{}
}

// Store keeps checkpoints keyed by stream and shard.
type Store struct {
	sync.Map
}

// SetCheckpoint stores the sequence number of the last record read from a shard.
func (c *Store) SetCheckpoint(_ context.Context, streamName, shardID, sequenceNumber string) error {
	if sequenceNumber == "" {
		return errors.New("sequence number should not be empty")
	}
	c.Store(streamName+":"+shardID, sequenceNumber)
	return nil
}

// GetCheckpoint returns the stored sequence number, or "" when the shard
// has none.
func (c *Store) GetCheckpoint(_ context.Context, streamName, shardID string) (string, error) {
	val, ok := c.Load(streamName + ":" + shardID)
	if !ok {
		return "", nil
	}
	return val.(string), nil
}
