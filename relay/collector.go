package relay

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	counterBatchesEmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "notification",
		Subsystem: "relay",
		Name:      "batches_emitted_total",
		Help:      "Number of drained batches handed to the emitter successfully.",
	})

	counterEmitErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "notification",
		Subsystem: "relay",
		Name:      "emit_errors_total",
		Help:      "Number of drained batches the emitter failed to deliver. These notifications are not drained again.",
	})
)

// Collectors returns the relay's Prometheus collectors.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		counterBatchesEmitted,
		counterEmitErrors,
	}
}
