// Command producer puts notifications read as JSON lines onto a Kinesis
// stream. Records are partitioned by process id so that every notification
// of a process lands on the same shard.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
	"github.com/aws/aws-sdk-go-v2/service/kinesis/types"
	"github.com/pkg/errors"

	sequencer "github.com/alexgridx/notification-sequencer"
)

// PutRecords accepts at most 500 entries per call
const maxBatchSize = 500

var (
	streamName      = flag.String("stream", "", "Stream name")
	kinesisEndpoint = flag.String("endpoint", "http://localhost:4567", "Kinesis endpoint")
	awsRegion       = flag.String("region", "us-west-2", "AWS Region")
	input           = flag.String("f", "-", "File with one notification per line, - for stdin")
	shardCount      = flag.Int("shards", 2, "Shard count used when the stream has to be created")
)

type client interface {
	ListStreams(ctx context.Context, params *kinesis.ListStreamsInput, optFns ...func(*kinesis.Options)) (*kinesis.ListStreamsOutput, error)
	CreateStream(ctx context.Context, params *kinesis.CreateStreamInput, optFns ...func(*kinesis.Options)) (*kinesis.CreateStreamOutput, error)
	PutRecords(ctx context.Context, params *kinesis.PutRecordsInput, optFns ...func(*kinesis.Options)) (*kinesis.PutRecordsOutput, error)
}

func main() {
	flag.Parse()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if *streamName == "" {
		logger.Error("-stream is required")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	var r io.Reader = os.Stdin
	if *input != "-" {
		f, err := os.Open(*input)
		if err != nil {
			logger.Error("open input", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer f.Close()
		r = f
	}

	svc := kinesis.New(kinesis.Options{
		BaseEndpoint: kinesisEndpoint,
		Region:       *awsRegion,
		Credentials:  credentials.NewStaticCredentialsProvider("user", "pass", "token"),
	})

	// create stream if doesn't exist
	created, err := createStream(ctx, svc, *streamName, int32(*shardCount))
	if err != nil {
		logger.Error("create stream", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if created {
		waiter := kinesis.NewStreamExistsWaiter(svc)
		err := waiter.Wait(ctx, &kinesis.DescribeStreamInput{StreamName: streamName}, 2*time.Minute)
		if err != nil {
			logger.Error("wait for stream", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	n, err := produce(ctx, svc, *streamName, r)
	if err != nil {
		logger.Error("produce", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("finished populating stream", slog.Int("records", n))
}

// createStream creates the stream unless it already exists. It reports
// whether the stream was created.
func createStream(ctx context.Context, svc client, name string, shards int32) (bool, error) {
	resp, err := svc.ListStreams(ctx, &kinesis.ListStreamsInput{})
	if err != nil {
		return false, errors.Wrap(err, "list streams")
	}
	if slices.Contains(resp.StreamNames, name) {
		return false, nil
	}

	_, err = svc.CreateStream(ctx, &kinesis.CreateStreamInput{
		StreamName: aws.String(name),
		ShardCount: aws.Int32(shards),
	})
	if err != nil {
		return false, errors.Wrap(err, "create stream")
	}
	return true, nil
}

// produce reads notifications from r and puts them onto the stream in
// batches. Lines that are not valid notifications abort the run.
func produce(ctx context.Context, svc client, name string, r io.Reader) (int, error) {
	var (
		records []types.PutRecordsRequestEntry
		total   int
		line    int
	)

	b := bufio.NewScanner(r)
	for b.Scan() {
		line++
		if len(b.Bytes()) == 0 {
			continue
		}

		entry, err := newEntry(b.Bytes())
		if err != nil {
			return total, errors.Wrapf(err, "line %d", line)
		}
		records = append(records, entry)

		if len(records) == maxBatchSize {
			if err := putRecords(ctx, svc, name, records); err != nil {
				return total, err
			}
			total += len(records)
			records = nil
		}
	}
	if err := b.Err(); err != nil {
		return total, errors.Wrap(err, "read input")
	}

	if len(records) > 0 {
		if err := putRecords(ctx, svc, name, records); err != nil {
			return total, err
		}
		total += len(records)
	}
	return total, nil
}

func newEntry(data []byte) (types.PutRecordsRequestEntry, error) {
	var n sequencer.Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return types.PutRecordsRequestEntry{}, errors.Wrap(err, "decode notification")
	}
	if n.ProcessID == "" {
		return types.PutRecordsRequestEntry{}, sequencer.ErrEmptyProcessID
	}
	if n.State == sequencer.StateUnknown {
		return types.PutRecordsRequestEntry{}, errors.New("missing state")
	}

	return types.PutRecordsRequestEntry{
		Data:         slices.Clone(data),
		PartitionKey: aws.String(n.ProcessID),
	}, nil
}

func putRecords(ctx context.Context, svc client, name string, records []types.PutRecordsRequestEntry) error {
	resp, err := svc.PutRecords(ctx, &kinesis.PutRecordsInput{
		StreamName: aws.String(name),
		Records:    records,
	})
	if err != nil {
		return errors.Wrap(err, "put records")
	}
	if failed := aws.ToInt32(resp.FailedRecordCount); failed > 0 {
		return errors.Errorf("%d of %d records failed", failed, len(records))
	}
	return nil
}
