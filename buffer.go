package sequencer

import "sync"

// buffer holds every notification received for one process and the
// emission cursor into them.
//
// emitted is a count of notifications handed out, and doubles as the index
// into received where the pending window begins.
type buffer struct {
	mu sync.Mutex

	received    []Notification
	lastEmitted *Notification
	emitted     int
	finished    bool
}

// add appends n unless the process has already finished. It reports
// whether n was kept.
func (b *buffer) add(n Notification) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.finished {
		return false
	}
	b.received = append(b.received, n)
	return true
}

// drain returns the notifications that became ready since the previous
// call. The second value reports whether this call finished the process.
func (b *buffer) drain() ([]Notification, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.finished {
		return nil, false
	}

	var (
		pending = b.received[b.emitted:]
		out     = []Notification{}
	)
	// a cold drain surfaces the start alone; mid and final wait for the
	// next call
	if b.emitted == 0 {
		out = b.drainStart(pending, out)
	} else {
		out = b.drainMid(pending, out)
		out = b.drainFinal(pending, out)
	}
	return out, b.finished
}

// emit records n as handed out.
func (b *buffer) emit(out []Notification, n Notification) []Notification {
	b.lastEmitted = &n
	b.emitted++
	if n.State.IsFinal() {
		b.finished = true
	}
	return append(out, n)
}

func (b *buffer) drainStart(pending, out []Notification) []Notification {
	if n, ok := first(pending, Start1); ok {
		return b.emit(out, n)
	}
	if n, ok := first(pending, Start2); ok {
		return b.emit(out, n)
	}
	return out
}

// drainMid interleaves the two middle lanes. A MID2 may complete a MID1
// emitted by an earlier call, and a single unpaired MID1 may go out ahead
// of its partner as long as the last emitted notification is not a MID1.
func (b *buffer) drainMid(pending, out []Notification) []Notification {
	var m1, m2 []Notification
	for _, n := range pending {
		switch n.State {
		case Mid1:
			m1 = append(m1, n)
		case Mid2:
			m2 = append(m2, n)
		}
	}
	if len(m1) == 0 && len(m2) == 0 {
		return out
	}

	if len(m2) > 0 && b.lastState() == Mid1 {
		out = b.emit(out, m2[0])
		m2 = m2[1:]
	}

	i := 0
	for ; i < len(m1) && i < len(m2); i++ {
		out = b.emit(out, m1[i])
		out = b.emit(out, m2[i])
	}
	if i < len(m1) && b.lastState() != Mid1 {
		out = b.emit(out, m1[i])
	}
	return out
}

func (b *buffer) drainFinal(pending, out []Notification) []Notification {
	if n, ok := first(pending, Final1); ok {
		return b.emit(out, n)
	}
	if n, ok := first(pending, Final2); ok {
		return b.emit(out, n)
	}
	return out
}

func (b *buffer) lastState() State {
	if b.lastEmitted == nil {
		return StateUnknown
	}
	return b.lastEmitted.State
}

func (b *buffer) status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := Status{
		Received: len(b.received),
		Emitted:  b.emitted,
		Pending:  len(b.received) - b.emitted,
		Finished: b.finished,
	}
	if b.lastEmitted != nil {
		last := *b.lastEmitted
		st.LastEmitted = &last
	}
	return st
}

func first(ns []Notification, s State) (Notification, bool) {
	for _, n := range ns {
		if n.State == s {
			return n, true
		}
	}
	return Notification{}, false
}
