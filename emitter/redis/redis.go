// Package redis emits drained notifications to Redis lists, one list per
// process, so that consumers can read them with LRANGE.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	sequencer "github.com/alexgridx/notification-sequencer"
)

// Option is used to override defaults when creating a new Emitter
type Option func(*Emitter)

// WithMaxLen trims every list to its n most recent notifications; zero
// keeps everything.
func WithMaxLen(n int64) Option {
	return func(e *Emitter) {
		e.maxLen = n
	}
}

// New returns an emitter writing to the lists <appName>:notifications:<process id>.
func New(appName string, client *redis.Client, opts ...Option) (*Emitter, error) {
	if appName == "" {
		return nil, errors.New("must provide app name")
	}
	if client == nil {
		return nil, errors.New("must provide redis client")
	}

	e := &Emitter{
		appName: appName,
		client:  client,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Emitter appends notifications to Redis lists.
type Emitter struct {
	appName string
	client  *redis.Client
	maxLen  int64
}

// Emit appends ns to the list of processID in a single transaction.
func (e *Emitter) Emit(ctx context.Context, processID string, ns []sequencer.Notification) error {
	if len(ns) == 0 {
		return nil
	}

	values := make([]interface{}, 0, len(ns))
	for _, n := range ns {
		b, err := json.Marshal(n)
		if err != nil {
			return errors.Wrap(err, "marshal notification")
		}
		values = append(values, b)
	}

	key := e.key(processID)
	_, err := e.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		if e.maxLen > 0 {
			pipe.LTrim(ctx, key, -e.maxLen, -1)
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "push notifications of process %s", processID)
	}
	return nil
}

// key generates the Redis list key of a process.
func (e *Emitter) key(processID string) string {
	return fmt.Sprintf("%v:notifications:%v", e.appName, processID)
}
