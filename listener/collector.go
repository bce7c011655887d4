package listener

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	labelStreamName = "stream_name"
	labelShardID    = "shard_id"
)

var (
	counterRecordsConsumed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "notification",
		Subsystem: "listener",
		Name:      "records_consumed_total",
		Help:      "Number of records read from the shard belonging to the stream, after deaggregation.",
	}, []string{
		labelStreamName,
		labelShardID,
	})

	counterDecodeErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "notification",
		Subsystem: "listener",
		Name:      "decode_errors_total",
		Help:      "Number of records whose payload could not be decoded into notifications. Such records are skipped.",
	}, []string{
		labelStreamName,
		labelShardID,
	})

	counterCheckpointsWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "notification",
		Subsystem: "listener",
		Name:      "checkpoints_written_total",
		Help:      "Number of checkpoints that have been written for the shard belonging to the stream. Note that stores may flush them independently at a fixed interval.",
	}, []string{
		labelStreamName,
		labelShardID,
	})
)

// Collectors returns the listener's Prometheus collectors.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		counterRecordsConsumed,
		counterDecodeErrors,
		counterCheckpointsWritten,
	}
}
