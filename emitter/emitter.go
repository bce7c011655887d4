// Package emitter defines where drained notifications go. The relay hands
// every non-empty drain result to an Emitter, in protocol order.
package emitter

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/pkg/errors"

	sequencer "github.com/alexgridx/notification-sequencer"
)

// Emitter receives the notifications drained for one process. An error
// means the batch was not delivered; it will not be drained again.
type Emitter interface {
	Emit(ctx context.Context, processID string, ns []sequencer.Notification) error
}

// Func is a convenience type to avoid having to declare a struct
// to implement the Emitter interface.
type Func func(ctx context.Context, processID string, ns []sequencer.Notification) error

// Emit implements the Emitter interface
func (f Func) Emit(ctx context.Context, processID string, ns []sequencer.Notification) error {
	return f(ctx, processID, ns)
}

// Multi emits to every emitter in order and stops at the first error.
type Multi []Emitter

// Emit implements the Emitter interface
func (m Multi) Emit(ctx context.Context, processID string, ns []sequencer.Notification) error {
	for i, e := range m {
		if err := e.Emit(ctx, processID, ns); err != nil {
			return errors.Wrapf(err, "emitter %d", i)
		}
	}
	return nil
}

// Writer emits notifications as JSON lines.
type Writer struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewWriter returns a Writer emitting to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: json.NewEncoder(w)}
}

// Emit implements the Emitter interface
func (w *Writer) Emit(_ context.Context, _ string, ns []sequencer.Notification) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, n := range ns {
		if err := w.enc.Encode(n); err != nil {
			return errors.Wrap(err, "encode notification")
		}
	}
	return nil
}
