package listener

import (
	"context"
	"errors"
	"math"
	"net"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/kinesis/types"
)

type isRecoverableErrorFunc func(error) bool

var isRecoverableErrors = []isRecoverableErrorFunc{
	kinesisIsRecoverableError,
	netIsRecoverableError,
	urlIsRecoverableError,
}

// isRecoverableError determines whether the error is recoverable
func isRecoverableError(err error) bool {
	for _, errF := range isRecoverableErrors {
		if errF(err) {
			return true
		}
	}
	return false
}

func kinesisIsRecoverableError(err error) bool {
	var (
		throughput *types.ProvisionedThroughputExceededException
		limit      *types.LimitExceededException
		kms        *types.KMSThrottlingException
	)
	return errors.As(err, &throughput) || errors.As(err, &limit) || errors.As(err, &kms)
}

func urlIsRecoverableError(err error) bool {
	var uErr *url.Error
	return errors.As(err, &uErr)
}

func netIsRecoverableError(err error) bool {
	recoverableErrors := map[string]bool{
		"connection reset by peer": true,
	}

	var cErr *net.OpError
	if errors.As(err, &cErr) && cErr.Err != nil {
		return recoverableErrors[cErr.Err.Error()]
	}
	return false
}

// waitTime is the aws exponential backoff, up to 5 minutes
// http://docs.aws.amazon.com/general/latest/gr/api-retries.html
func waitTime(attempts int) time.Duration {
	if attempts <= 0 {
		return 0
	}
	return time.Duration(math.Min(100*math.Pow(2, float64(attempts)), 300000)) * time.Millisecond
}

// sleep waits for d or until ctx is done, whichever comes first. It
// reports whether the full duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
