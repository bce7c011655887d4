package sequencer

import (
	"sort"
	"sync"
)

// bufferStore is the keyed collection of process buffers owned by a
// Sequencer.
type bufferStore struct {
	m sync.Map // process id -> *buffer
}

// loadOrCreate returns the buffer for id, creating it on first sight. Two
// callers racing on a new id get the same buffer.
func (s *bufferStore) loadOrCreate(id string) *buffer {
	if b, ok := s.m.Load(id); ok {
		return b.(*buffer)
	}
	b, _ := s.m.LoadOrStore(id, &buffer{})
	return b.(*buffer)
}

func (s *bufferStore) load(id string) (*buffer, bool) {
	b, ok := s.m.Load(id)
	if !ok {
		return nil, false
	}
	return b.(*buffer), true
}

func (s *bufferStore) delete(id string) bool {
	_, ok := s.m.LoadAndDelete(id)
	return ok
}

func (s *bufferStore) keys() []string {
	var ids []string
	s.m.Range(func(k, _ any) bool {
		ids = append(ids, k.(string))
		return true
	})
	sort.Strings(ids)
	return ids
}
