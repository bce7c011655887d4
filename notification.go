package sequencer

import (
	"encoding/json"
	"fmt"
)

// State is a step of the notification protocol. The protocol opens with one
// of two start signals, alternates between two middle lanes and closes with
// one of two final signals.
type State int

// Protocol states. StateUnknown is never emitted.
const (
	StateUnknown State = iota
	Start1
	Start2
	Mid1
	Mid2
	Final1
	Final2
)

var stateNames = map[State]string{
	Start1: "START1",
	Start2: "START2",
	Mid1:   "MID1",
	Mid2:   "MID2",
	Final1: "FINAL1",
	Final2: "FINAL2",
}

// ParseState returns the State for its wire name.
func ParseState(s string) (State, error) {
	for st, name := range stateNames {
		if name == s {
			return st, nil
		}
	}
	return StateUnknown, fmt.Errorf("unknown state %q", s)
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// IsStart reports whether s opens the protocol.
func (s State) IsStart() bool { return s == Start1 || s == Start2 }

// IsMid reports whether s belongs to one of the middle lanes.
func (s State) IsMid() bool { return s == Mid1 || s == Mid2 }

// IsFinal reports whether s closes the protocol.
func (s State) IsFinal() bool { return s == Final1 || s == Final2 }

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	if _, ok := stateNames[s]; !ok {
		return nil, fmt.Errorf("cannot marshal state %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	st, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// Notification is a status report of a single process. Data is carried
// through the sequencer untouched.
type Notification struct {
	ProcessID string          `json:"process_id"`
	State     State           `json:"state"`
	Data      json.RawMessage `json:"data,omitempty"`
}
