package listener

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
	"github.com/aws/aws-sdk-go-v2/service/kinesis/types"
	"github.com/awslabs/kinesis-aggregation/go/v2/deaggregator"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	sequencer "github.com/alexgridx/notification-sequencer"
)

// Client is the part of the kinesis api used by the listener
type Client interface {
	ListShards(ctx context.Context, params *kinesis.ListShardsInput, optFns ...func(*kinesis.Options)) (*kinesis.ListShardsOutput, error)
	GetShardIterator(ctx context.Context, params *kinesis.GetShardIteratorInput, optFns ...func(*kinesis.Options)) (*kinesis.GetShardIteratorOutput, error)
	GetRecords(ctx context.Context, params *kinesis.GetRecordsInput, optFns ...func(*kinesis.Options)) (*kinesis.GetRecordsOutput, error)
}

// Acceptor receives the decoded notifications. *sequencer.Sequencer
// implements it.
type Acceptor interface {
	AcceptAll(ns []sequencer.Notification) error
}

// Counter interface is used for exposing basic metrics from the scanner
type Counter interface {
	Add(string, int64)
}

type noopCounter struct{}

func (n noopCounter) Add(string, int64) {}

// New creates a kinesis listener with default settings. Use Option to override
// any of the optional attributes.
func New(streamName string, acceptor Acceptor, opts ...Option) (*Listener, error) {
	if streamName == "" {
		return nil, errors.New("must provide stream name")
	}
	if acceptor == nil {
		return nil, errors.New("must provide acceptor")
	}

	// new listener with noop storage, counter, and logger
	l := &Listener{
		streamName:               streamName,
		acceptor:                 acceptor,
		initialShardIteratorType: types.ShardIteratorTypeTrimHorizon,
		store:                    &noopStore{},
		counter:                  &noopCounter{},
		logger:                   slog.New(slog.NewTextHandler(io.Discard, nil)),
		decoder:                  DecodeJSON,
		scanInterval:             250 * time.Millisecond,
		maxRecords:               10000,
		maxRetries:               50,
		maxHold:                  time.Hour,
	}

	// override defaults
	for _, opt := range opts {
		opt(l)
	}

	// default client if none provided
	if l.client == nil {
		cfg, err := config.LoadDefaultConfig(context.TODO())
		if err != nil {
			return nil, errors.Wrap(err, "load aws config")
		}
		l.client = kinesis.NewFromConfig(cfg)
	}

	return l, nil
}

// Listener reads notifications from a Kinesis stream and hands them to an
// Acceptor, checkpointing its progress per shard.
type Listener struct {
	streamName               string
	acceptor                 Acceptor
	initialShardIteratorType types.ShardIteratorType
	client                   Client
	logger                   *slog.Logger
	store                    Store
	counter                  Counter
	decoder                  Decoder
	scanInterval             time.Duration
	maxRecords               int32
	maxRetries               int
	shardClosedHandler       ShardClosedHandler
	maxHold                  time.Duration
}

// Scan launches a goroutine per shard of the stream and blocks until all of
// them have returned. The first shard error cancels the others.
func (l *Listener) Scan(ctx context.Context) error {
	shards, err := listShards(ctx, l.client, l.streamName)
	if err != nil {
		return err
	}
	if len(shards) == 0 {
		return errors.New("no shards available")
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, shard := range shards {
		shardID := aws.ToString(shard.ShardId)
		g.Go(func() error {
			if err := l.ScanShard(ctx, shardID); err != nil {
				return errors.Wrapf(err, "shard %s", shardID)
			}
			return nil
		})
	}
	return g.Wait()
}

// ScanShard loops over the records of a specific shard, passes the
// notifications they carry to the acceptor and checkpoints the progress.
// It returns nil when ctx is done or the shard is closed.
//
// When the acceptor is a Tracker, the checkpoint never moves past the first
// record of a process that is still open, so a restart replays it whole.
func (l *Listener) ScanShard(ctx context.Context, shardID string) error {
	lastSeqNum, err := l.store.GetCheckpoint(ctx, l.streamName, shardID)
	if err != nil {
		return errors.Wrap(err, "get checkpoint")
	}

	tracker, _ := l.acceptor.(Tracker)
	held := newHolds(tracker, l.maxHold, lastSeqNum)
	checkpoint := lastSeqNum

	shardIterator, err := l.getShardIterator(ctx, shardID, lastSeqNum)
	if err != nil {
		return errors.Wrap(err, "get shard iterator")
	}

	logger := l.logger.With(
		slog.String("stream", l.streamName),
		slog.String("shard", shardID),
	)
	logger.Info("scanning", slog.String("last_seq", lastSeqNum))
	defer logger.Info("stop scan")

	var attempts int
	for {
		resp, err := l.client.GetRecords(ctx, &kinesis.GetRecordsInput{
			Limit:         aws.Int32(l.maxRecords),
			ShardIterator: shardIterator,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if !isRecoverableError(err) {
				return errors.Wrap(err, "get records")
			}

			attempts++
			if attempts > l.maxRetries {
				return errors.Wrapf(err, "get records failed %d times", attempts)
			}
			logger.Warn("get records", slog.Int("attempt", attempts), slog.String("error", err.Error()))
			if !sleep(ctx, waitTime(attempts)) {
				return nil
			}

			// the iterator may have expired while waiting
			shardIterator, err = l.getShardIterator(ctx, shardID, lastSeqNum)
			if err != nil {
				return errors.Wrap(err, "get shard iterator")
			}
			continue
		}
		attempts = 0

		records, err := deaggregator.DeaggregateRecords(resp.Records)
		if err != nil {
			return errors.Wrap(err, "deaggregate records")
		}

		if len(records) > 0 {
			l.handle(logger, shardID, records, held)
			lastSeqNum = aws.ToString(records[len(records)-1].SequenceNumber)

			if ck := held.checkpoint(); ck != "" && ck != checkpoint {
				if err := l.store.SetCheckpoint(ctx, l.streamName, shardID, ck); err != nil {
					return errors.Wrap(err, "set checkpoint")
				}
				checkpoint = ck
				counterCheckpointsWritten.WithLabelValues(l.streamName, shardID).Inc()
			}
		}

		if resp.NextShardIterator == nil {
			logger.Info("shard closed")
			if l.shardClosedHandler != nil {
				if err := l.shardClosedHandler(l.streamName, shardID); err != nil {
					return errors.Wrap(err, "shard closed handler")
				}
			}
			return nil
		}
		shardIterator = resp.NextShardIterator

		if len(resp.Records) == 0 && !sleep(ctx, l.scanInterval) {
			return nil
		}
	}
}

// handle decodes a batch of records and passes the notifications on.
// Records that cannot be decoded are skipped.
func (l *Listener) handle(logger *slog.Logger, shardID string, records []types.Record, held *holds) {
	var batch []sequencer.Notification
	for _, r := range records {
		seq := aws.ToString(r.SequenceNumber)
		ns, err := l.decoder(r.Data)
		if err != nil {
			logger.Warn("skipping record",
				slog.String("seq", seq),
				slog.String("error", err.Error()),
			)
			counterDecodeErrors.WithLabelValues(l.streamName, shardID).Inc()
			l.counter.Add("decode_errors", 1)
			held.observe(seq, nil)
			continue
		}

		ids := make([]string, 0, len(ns))
		for _, n := range ns {
			ids = append(ids, n.ProcessID)
		}
		held.observe(seq, ids)
		batch = append(batch, ns...)
	}

	counterRecordsConsumed.WithLabelValues(l.streamName, shardID).Add(float64(len(records)))
	l.counter.Add("records", int64(len(records)))

	if len(batch) == 0 {
		return
	}
	if err := l.acceptor.AcceptAll(batch); err != nil {
		logger.Warn("rejected notifications", slog.String("error", err.Error()))
	}
}

func (l *Listener) getShardIterator(ctx context.Context, shardID, seqNum string) (*string, error) {
	params := &kinesis.GetShardIteratorInput{
		ShardId:    aws.String(shardID),
		StreamName: aws.String(l.streamName),
	}

	if seqNum != "" {
		params.ShardIteratorType = types.ShardIteratorTypeAfterSequenceNumber
		params.StartingSequenceNumber = aws.String(seqNum)
	} else {
		params.ShardIteratorType = l.initialShardIteratorType
	}

	res, err := l.client.GetShardIterator(ctx, params)
	if err != nil {
		return nil, err
	}
	return res.ShardIterator, nil
}
