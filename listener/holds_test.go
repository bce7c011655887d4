package listener

import (
	"testing"
	"time"

	sequencer "github.com/alexgridx/notification-sequencer"
)

func accepted(t *testing.T, seq *sequencer.Sequencer, id string, states ...sequencer.State) {
	t.Helper()
	for _, s := range states {
		if err := seq.Accept(sequencer.Notification{ProcessID: id, State: s}); err != nil {
			t.Fatalf("accept error: %v", err)
		}
	}
}

func TestHolds_Checkpoint(t *testing.T) {
	seq := sequencer.New()
	h := newHolds(seq, 0, "0")

	accepted(t, seq, "A", sequencer.Start1)
	h.observe("1", []string{"A"})
	accepted(t, seq, "B", sequencer.Start2)
	h.observe("2", []string{"B"})
	h.observe("3", nil)

	if ck := h.checkpoint(); ck != "0" {
		t.Fatalf("checkpoint expected %s, got %s", "0", ck)
	}

	// A finishes, B still holds the record before its first one
	accepted(t, seq, "A", sequencer.Final1)
	seq.Drain("A")
	seq.Drain("A")
	if ck := h.checkpoint(); ck != "1" {
		t.Fatalf("checkpoint expected %s, got %s", "1", ck)
	}

	// an evicted process no longer holds
	seq.Evict("B")
	if ck := h.checkpoint(); ck != "3" {
		t.Fatalf("checkpoint expected %s, got %s", "3", ck)
	}
}

func TestHolds_AggregatedRecords(t *testing.T) {
	seq := sequencer.New()
	h := newHolds(seq, 0, "")

	h.observe("1", nil)
	// two user records of one aggregate share a sequence number
	accepted(t, seq, "A", sequencer.Start1)
	h.observe("2", nil)
	accepted(t, seq, "B", sequencer.Start1)
	h.observe("2", []string{"B"})

	if ck := h.checkpoint(); ck != "1" {
		t.Fatalf("checkpoint expected %s, got %s", "1", ck)
	}
}

func TestHolds_MaxAge(t *testing.T) {
	seq := sequencer.New()
	h := newHolds(seq, time.Minute, "")

	now := time.Date(2024, 8, 12, 0, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return now }

	accepted(t, seq, "A", sequencer.Mid1)
	h.observe("1", []string{"A"})
	h.observe("2", nil)

	if ck := h.checkpoint(); ck != "" {
		t.Fatalf("checkpoint expected to be held, got %s", ck)
	}

	now = now.Add(2 * time.Minute)
	if ck := h.checkpoint(); ck != "2" {
		t.Fatalf("checkpoint expected %s after max hold, got %s", "2", ck)
	}
}

func TestHolds_WithoutTracker(t *testing.T) {
	h := newHolds(nil, 0, "")
	h.observe("1", []string{"A"})

	if ck := h.checkpoint(); ck != "1" {
		t.Fatalf("checkpoint expected %s, got %s", "1", ck)
	}
}
