package ddb

import (
	"errors"
	"math"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Retryer interface contains one method that decides whether to retry based on error
type Retryer interface {
	ShouldRetry(error) bool
}

// DefaultRetryer retries throttled requests.
type DefaultRetryer struct{}

// ShouldRetry when error occured
func (r *DefaultRetryer) ShouldRetry(err error) bool {
	var throughput *types.ProvisionedThroughputExceededException
	return errors.As(err, &throughput)
}

// exponentialBackoff waits 100ms before the first retry and doubles the
// wait for every further attempt, up to 5 seconds.
func exponentialBackoff(attempt int) time.Duration {
	const (
		base    = 100 * time.Millisecond
		maxWait = 5 * time.Second
	)
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if d <= 0 || d > maxWait {
		return maxWait
	}
	return d
}
