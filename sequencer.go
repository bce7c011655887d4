package sequencer

import (
	"log/slog"

	"github.com/pkg/errors"
)

// Status is a point in time view of a process buffer.
type Status struct {
	Received    int
	Emitted     int
	Pending     int
	Finished    bool
	LastEmitted *Notification
}

// New creates a Sequencer with default settings. Use Option to override
// any of the optional attributes.
func New(opts ...Option) *Sequencer {
	s := &Sequencer{
		logger:  discardLogger(),
		counter: &noopCounter{},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Sequencer accumulates out of order notifications per process and hands
// them out in protocol order.
//
// All methods are safe for concurrent use. Calls for the same process are
// serialized on that process' buffer; calls for different processes do not
// contend.
type Sequencer struct {
	buffers bufferStore

	logger          *slog.Logger
	counter         Counter
	finishedHandler FinishedHandler
	evictHandler    EvictHandler
}

// Accept stores n in the buffer of its process. Notifications arriving
// after the process finished are dropped without error.
func (s *Sequencer) Accept(n Notification) error {
	if n.ProcessID == "" {
		counterDropped.WithLabelValues(reasonInvalid).Inc()
		return ErrEmptyProcessID
	}

	b := s.buffers.loadOrCreate(n.ProcessID)
	if !b.add(n) {
		s.logger.Debug("dropping notification for finished process",
			slog.String("process_id", n.ProcessID),
			slog.String("state", n.State.String()),
		)
		counterDropped.WithLabelValues(reasonFinished).Inc()
		s.counter.Add("dropped", 1)
		return nil
	}

	counterAccepted.WithLabelValues(n.State.String()).Inc()
	s.counter.Add("accepted", 1)
	return nil
}

// AcceptAll calls Accept for each notification in order. An invalid
// notification does not prevent the rest from being accepted; all errors
// are returned together.
func (s *Sequencer) AcceptAll(ns []Notification) error {
	var errs []error
	for i, n := range ns {
		if err := s.Accept(n); err != nil {
			errs = append(errs, errors.Wrapf(err, "notification %d", i))
		}
	}
	return joinErrors(errs)
}

// Drain returns the notifications of a process that became ready since
// the previous call, in protocol order. The result is empty when nothing
// new can be emitted yet or the process has finished.
func (s *Sequencer) Drain(processID string) ([]Notification, error) {
	b, ok := s.buffers.load(processID)
	if !ok {
		return nil, &NotFoundError{ProcessID: processID}
	}

	out, finished := b.drain()
	histogramDrainSize.Observe(float64(len(out)))
	for _, n := range out {
		counterEmitted.WithLabelValues(n.State.String()).Inc()
	}
	s.counter.Add("emitted", int64(len(out)))

	if finished {
		counterFinished.Inc()
		s.logger.Info("process finished",
			slog.String("process_id", processID),
			slog.String("state", out[len(out)-1].State.String()),
		)
		if s.finishedHandler != nil {
			s.finishedHandler(processID)
		}
	}
	return out, nil
}

// Evict removes the buffer of a process. It is meant for the collaborator
// that knows a process will not be queried anymore. A later Accept for the
// same id starts over with an empty buffer. Evict reports whether a buffer
// was removed.
func (s *Sequencer) Evict(processID string) bool {
	b, ok := s.buffers.load(processID)
	if !ok || !s.buffers.delete(processID) {
		return false
	}

	last := b.status()
	s.logger.Info("process evicted",
		slog.String("process_id", processID),
		slog.Bool("finished", last.Finished),
		slog.Int("pending", last.Pending),
	)
	if s.evictHandler != nil {
		s.evictHandler(processID, last)
	}
	return true
}

// Status returns a snapshot of a process buffer.
func (s *Sequencer) Status(processID string) (Status, error) {
	b, ok := s.buffers.load(processID)
	if !ok {
		return Status{}, &NotFoundError{ProcessID: processID}
	}
	return b.status(), nil
}

// ProcessIDs returns the ids of all tracked processes, sorted.
func (s *Sequencer) ProcessIDs() []string {
	return s.buffers.keys()
}
