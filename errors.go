package sequencer

import (
	stderrors "errors"
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound is matched by every NotFoundError.
	ErrNotFound = errors.New("process not found")

	// ErrEmptyProcessID is returned by Accept for a notification without a
	// process id.
	ErrEmptyProcessID = errors.New("notification has no process id")
)

// NotFoundError is returned when a process has no buffer, either because no
// notification was ever accepted for it or because it was evicted.
type NotFoundError struct {
	ProcessID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("process %q not found", e.ProcessID)
}

// Is lets errors.Is match ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// IsNotFound reports whether err, or any error it wraps, is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func joinErrors(errs []error) error {
	return stderrors.Join(errs...)
}
