package ddb

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pkg/errors"
)

// Client is the part of the DynamoDB api used by the checkpoint
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Option is used to override defaults when creating a new Checkpoint
type Option func(*Checkpoint)

// WithMaxInterval sets the flush interval
func WithMaxInterval(maxInterval time.Duration) Option {
	return func(c *Checkpoint) {
		c.maxInterval = maxInterval
	}
}

// WithDynamoClient sets the dynamoDb client
func WithDynamoClient(svc Client) Option {
	return func(c *Checkpoint) {
		c.client = svc
	}
}

// WithRetryer sets the retryer
func WithRetryer(r Retryer) Option {
	return func(c *Checkpoint) {
		c.retryer = r
	}
}

// WithBackoff overrides the wait between two PutItem attempts of a flush
func WithBackoff(backoff func(attempt int) time.Duration) Option {
	return func(c *Checkpoint) {
		c.backoff = backoff
	}
}

// WithLogger overrides the default logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Checkpoint) {
		c.logger = logger
	}
}

// New returns a checkpoint that uses DynamoDB for underlying storage.
// Checkpoints are buffered in memory and written every maxInterval and on
// Shutdown.
func New(appName, tableName string, opts ...Option) (*Checkpoint, error) {
	ck := &Checkpoint{
		tableName:   tableName,
		appName:     appName,
		maxInterval: time.Minute,
		done:        make(chan struct{}),
		checkpoints: map[key]string{},
		retryer:     &DefaultRetryer{},
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxRetries:  5,
		backoff:     exponentialBackoff,
	}

	for _, opt := range opts {
		opt(ck)
	}

	// default client
	if ck.client == nil {
		cfg, err := config.LoadDefaultConfig(context.TODO())
		if err != nil {
			return nil, errors.Wrap(err, "load aws config")
		}
		ck.client = dynamodb.NewFromConfig(cfg)
	}

	go ck.loop()

	return ck, nil
}

// Checkpoint stores and retrieves the last sequence number read from a
// shard in a DynamoDB table keyed by (namespace, shard_id)
type Checkpoint struct {
	tableName   string
	appName     string
	client      Client
	maxInterval time.Duration
	mu          sync.Mutex // protects the checkpoints
	checkpoints map[key]string
	done        chan struct{}
	retryer     Retryer
	logger      *slog.Logger
	maxRetries  int
	backoff     func(attempt int) time.Duration

	shutdownOnce sync.Once
	shutdownErr  error
}

type key struct {
	streamName string
	shardID    string
}

type item struct {
	Namespace      string `dynamodbav:"namespace"`
	ShardID        string `dynamodbav:"shard_id"`
	SequenceNumber string `dynamodbav:"sequence_number"`
}

// GetCheckpoint determines if a checkpoint for a particular Shard exists.
// Typically used to determine whether we should start processing the shard with
// TRIM_HORIZON or AFTER_SEQUENCE_NUMBER (if checkpoint exists).
func (c *Checkpoint) GetCheckpoint(ctx context.Context, streamName, shardID string) (string, error) {
	params := &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		ConsistentRead: aws.Bool(true),
		Key: map[string]types.AttributeValue{
			"namespace": &types.AttributeValueMemberS{
				Value: c.namespace(streamName),
			},
			"shard_id": &types.AttributeValueMemberS{
				Value: shardID,
			},
		},
	}

	var (
		resp *dynamodb.GetItemOutput
		err  error
	)
	for attempt := 0; ; attempt++ {
		resp, err = c.client.GetItem(ctx, params)
		if err == nil {
			break
		}
		if attempt >= c.maxRetries || !c.retryer.ShouldRetry(err) {
			return "", errors.Wrap(err, "get item")
		}
	}

	var i item
	if err := attributevalue.UnmarshalMap(resp.Item, &i); err != nil {
		return "", errors.Wrap(err, "unmarshal item")
	}
	return i.SequenceNumber, nil
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

// save writes the buffered checkpoints. The lock is not held while
// writing, so SetCheckpoint is not blocked by retries; a checkpoint that
// changed in the meantime stays buffered for the next flush.
func (c *Checkpoint) save() error {
	c.mu.Lock()
	pending := make(map[key]string, len(c.checkpoints))
	for k, v := range c.checkpoints {
		pending[k] = v
	}
	c.mu.Unlock()

	for key, sequenceNumber := range pending {
		if err := c.put(key, sequenceNumber); err != nil {
			return err
		}

		c.mu.Lock()
		if c.checkpoints[key] == sequenceNumber {
			delete(c.checkpoints, key)
		}
		c.mu.Unlock()
	}

	return nil
}

func (c *Checkpoint) put(key key, sequenceNumber string) error {
	item, err := attributevalue.MarshalMap(item{
		Namespace:      c.namespace(key.streamName),
		ShardID:        key.shardID,
		SequenceNumber: sequenceNumber,
	})
	if err != nil {
		return errors.Wrap(err, "marshal map")
	}

	for attempt := 0; ; attempt++ {
		_, err = c.client.PutItem(context.TODO(), &dynamodb.PutItemInput{
			TableName: aws.String(c.tableName),
			Item:      item,
		})
		if err == nil {
			return nil
		}
		if attempt >= c.maxRetries || !c.retryer.ShouldRetry(err) {
			return errors.Wrapf(err, "put item for shard %s", key.shardID)
		}
		time.Sleep(c.backoff(attempt))
	}
}

func (c *Checkpoint) namespace(streamName string) string {
	return fmt.Sprintf("%s-%s", c.appName, streamName)
}
