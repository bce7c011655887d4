package sequencer

import (
	"io"
	"log/slog"
)

// discardLogger is the default logger for the sequencer so that nothing is
// printed unless WithLogger is used.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
