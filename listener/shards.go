package listener

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
	"github.com/aws/aws-sdk-go-v2/service/kinesis/types"
	"github.com/pkg/errors"
)

// listShards pulls a list of shards from the kinesis api, following the
// pagination tokens.
func listShards(ctx context.Context, client Client, streamName string) ([]types.Shard, error) {
	var (
		ss    []types.Shard
		input = &kinesis.ListShardsInput{
			StreamName: aws.String(streamName),
		}
	)

	for {
		resp, err := client.ListShards(ctx, input)
		if err != nil {
			return nil, errors.Wrap(err, "list shards")
		}
		ss = append(ss, resp.Shards...)

		if resp.NextToken == nil {
			return ss, nil
		}

		// StreamName must not be set together with NextToken
		input = &kinesis.ListShardsInput{
			NextToken: resp.NextToken,
		}
	}
}
