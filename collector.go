package sequencer

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	labelState  = "state"
	labelReason = "reason"

	reasonFinished = "finished"
	reasonInvalid  = "invalid"
)

var (
	counterAccepted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "notification",
		Subsystem: "sequencer",
		Name:      "notifications_accepted_total",
		Help:      "Number of notifications appended to a process buffer.",
	}, []string{
		labelState,
	})

	counterDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "notification",
		Subsystem: "sequencer",
		Name:      "notifications_dropped_total",
		Help:      "Number of notifications discarded on accept, either because the process already finished or because the notification had no process id.",
	}, []string{
		labelReason,
	})

	counterEmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "notification",
		Subsystem: "sequencer",
		Name:      "notifications_emitted_total",
		Help:      "Number of notifications returned by drain.",
	}, []string{
		labelState,
	})

	counterFinished = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "notification",
		Subsystem: "sequencer",
		Name:      "processes_finished_total",
		Help:      "Number of processes for which a final notification has been emitted.",
	})

	histogramDrainSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "notification",
		Subsystem: "sequencer",
		Name:      "drain_batch_size",
		Help:      "Number of notifications returned by a single drain call.",
		Buckets:   []float64{0, 1, 2, 4, 8, 16, 32},
	})
)

// Collectors returns the sequencer's Prometheus collectors so that callers
// can register them with the registry of their choice.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		counterAccepted,
		counterDropped,
		counterEmitted,
		counterFinished,
		histogramDrainSize,
	}
}
