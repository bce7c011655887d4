package listener

import (
	"time"

	sequencer "github.com/alexgridx/notification-sequencer"
)

// Tracker reports the state of a process. When the acceptor implements it,
// checkpoints are held back so that a restart replays every process that
// was still open. *sequencer.Sequencer implements it.
type Tracker interface {
	Status(processID string) (sequencer.Status, error)
}

type hold struct {
	ordinal int64
	resume  string
	since   time.Time
}

// holds tracks, for one shard, the processes seen since the last checkpoint
// that have not finished yet, and where a replay has to start to see their
// first record again.
type holds struct {
	tracker Tracker
	maxAge  time.Duration
	now     func() time.Time

	open   map[string]hold
	next   int64
	last   string // sequence number of the last record observed
	before string // last distinct sequence number before last
}

func newHolds(tracker Tracker, maxAge time.Duration, start string) *holds {
	return &holds{
		tracker: tracker,
		maxAge:  maxAge,
		now:     time.Now,
		open:    map[string]hold{},
		last:    start,
		before:  start,
	}
}

// observe records that the record seq carried notifications of processIDs.
// Records of an aggregate share a sequence number, so a replay starts after
// the previous distinct one.
func (h *holds) observe(seq string, processIDs []string) {
	if seq != h.last {
		h.before, h.last = h.last, seq
	}
	if h.tracker == nil {
		return
	}
	for _, id := range processIDs {
		if _, ok := h.open[id]; ok || id == "" {
			continue
		}
		h.open[id] = hold{ordinal: h.next, resume: h.before, since: h.now()}
		h.next++
	}
}

// checkpoint returns the sequence number that is safe to store, or "" when
// nothing is. Processes that finished, were evicted or were held longer
// than maxAge no longer hold the checkpoint back.
func (h *holds) checkpoint() string {
	var (
		oldest hold
		found  bool
	)
	for id, hd := range h.open {
		if !h.isOpen(id) || (h.maxAge > 0 && h.now().Sub(hd.since) > h.maxAge) {
			delete(h.open, id)
			continue
		}
		if !found || hd.ordinal < oldest.ordinal {
			oldest, found = hd, true
		}
	}
	if !found {
		return h.last
	}
	return oldest.resume
}

func (h *holds) isOpen(processID string) bool {
	st, err := h.tracker.Status(processID)
	if err != nil {
		return false
	}
	return !st.Finished
}
