package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis"
	"github.com/redis/go-redis/v9"
)

func newTestCheckpoint(t *testing.T) (*Checkpoint, *miniredis.Miniredis) {
	t.Helper()

	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis error: %v", err)
	}
	t.Cleanup(s.Close)

	client := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})

	c, err := New("app", WithClient(client))
	if err != nil {
		t.Fatalf("new checkpoint error: %v", err)
	}
	return c, s
}

func Test_CheckpointOptions(t *testing.T) {
	newTestCheckpoint(t)
}

func Test_NewRequiresAppName(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatalf("new checkpoint expected error for empty app name")
	}
}

func Test_CheckpointLifecycle(t *testing.T) {
	ctx := context.Background()
	c, s := newTestCheckpoint(t)

	// missing
	val, err := c.GetCheckpoint(ctx, "streamName", "shardID")
	if err != nil || val != "" {
		t.Fatalf("get checkpoint expected empty value, got %q, %v", val, err)
	}

	// set
	if err := c.SetCheckpoint(ctx, "streamName", "shardID", "testSeqNum"); err != nil {
		t.Fatalf("set checkpoint error: %v", err)
	}

	// get
	val, err = c.GetCheckpoint(ctx, "streamName", "shardID")
	if err != nil {
		t.Fatalf("get checkpoint error: %v", err)
	}
	if val != "testSeqNum" {
		t.Fatalf("checkpoint exists expected %s, got %s", "testSeqNum", val)
	}

	if got, _ := s.Get("app:checkpoint:streamName:shardID"); got != "testSeqNum" {
		t.Fatalf("stored value expected %s, got %s", "testSeqNum", got)
	}
}

func Test_SetEmptySeqNum(t *testing.T) {
	c, _ := newTestCheckpoint(t)

	err := c.SetCheckpoint(context.Background(), "streamName", "shardID", "")
	if err == nil {
		t.Fatalf("should not allow empty sequence number")
	}
}

func Test_key(t *testing.T) {
	c, _ := newTestCheckpoint(t)

	want := "app:checkpoint:stream:shard"

	if got := c.key("stream", "shard"); got != want {
		t.Fatalf("checkpoint key, want %s, got %s", want, got)
	}
}
