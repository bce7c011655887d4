// Package relay moves notifications from a Sequencer to an Emitter. It is
// the consumer the sequencer expects: it polls every tracked process, and
// because it is the only reader it can also evict finished processes when
// asked to.
package relay

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	sequencer "github.com/alexgridx/notification-sequencer"
	"github.com/alexgridx/notification-sequencer/emitter"
)

// Source is the part of the Sequencer used by the relay.
type Source interface {
	ProcessIDs() []string
	Drain(processID string) ([]sequencer.Notification, error)
	Evict(processID string) bool
}

// New returns a relay draining src into e.
func New(src Source, e emitter.Emitter, opts ...Option) *Relay {
	r := &Relay{
		src:           src,
		emitter:       e,
		interval:      time.Second,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		concurrency:   8,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Relay periodically drains a Sequencer.
type Relay struct {
	src           Source
	emitter       emitter.Emitter
	interval      time.Duration
	logger        *slog.Logger
	concurrency   int
	evictOnFinish bool
}

// Run flushes every interval until ctx is done. Emit errors are logged and
// do not stop the loop. A final flush runs after ctx is done so that
// notifications already accepted are not left behind.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := r.Flush(context.WithoutCancel(ctx)); err != nil {
				r.logger.Error("final flush", slog.String("error", err.Error()))
			}
			return nil
		case <-ticker.C:
			if err := r.Flush(ctx); err != nil {
				r.logger.Error("flush", slog.String("error", err.Error()))
			}
		}
	}
}

// Flush drains every tracked process once and emits the non-empty results.
// Distinct processes are emitted in parallel; the notifications of one
// process are always emitted as a single ordered batch.
func (r *Relay) Flush(ctx context.Context) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	if r.concurrency > 0 {
		g.SetLimit(r.concurrency)
	}

	for _, id := range r.src.ProcessIDs() {
		ns, err := r.src.Drain(id)
		if err != nil {
			// evicted between listing and draining
			if sequencer.IsNotFound(err) {
				continue
			}
			mu.Lock()
			errs = append(errs, errors.Wrapf(err, "drain %s", id))
			mu.Unlock()
			continue
		}
		if len(ns) == 0 {
			continue
		}

		g.Go(func() error {
			if err := r.emit(ctx, id, ns); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()

	return stderrors.Join(errs...)
}

func (r *Relay) emit(ctx context.Context, id string, ns []sequencer.Notification) error {
	if err := r.emitter.Emit(ctx, id, ns); err != nil {
		r.logger.Error("emit",
			slog.String("process_id", id),
			slog.Int("count", len(ns)),
			slog.String("error", err.Error()),
		)
		counterEmitErrors.Inc()
		return errors.Wrapf(err, "emit %s", id)
	}
	counterBatchesEmitted.Inc()

	r.logger.Debug("emitted", slog.String("process_id", id), slog.Int("count", len(ns)))
	if r.evictOnFinish && ns[len(ns)-1].State.IsFinal() {
		r.src.Evict(id)
	}
	return nil
}
