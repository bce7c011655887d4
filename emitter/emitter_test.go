package emitter

import (
	"bytes"
	"context"
	"errors"
	"testing"

	sequencer "github.com/alexgridx/notification-sequencer"
)

func TestWriter_Emit(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	err := w.Emit(context.Background(), "P", []sequencer.Notification{
		{ProcessID: "P", State: sequencer.Start1},
		{ProcessID: "P", State: sequencer.Final2, Data: []byte(`{"ok":true}`)},
	})
	if err != nil {
		t.Fatalf("emit error: %v", err)
	}

	want := `{"process_id":"P","state":"START1"}` + "\n" +
		`{"process_id":"P","state":"FINAL2","data":{"ok":true}}` + "\n"
	if buf.String() != want {
		t.Fatalf("writer expected %q, got %q", want, buf.String())
	}
}

func TestMulti_Emit(t *testing.T) {
	var calls []string
	record := func(name string, err error) Emitter {
		return Func(func(_ context.Context, processID string, _ []sequencer.Notification) error {
			calls = append(calls, name+":"+processID)
			return err
		})
	}

	boom := errors.New("boom")
	m := Multi{record("a", nil), record("b", boom), record("c", nil)}

	if err := m.Emit(context.Background(), "P", nil); !errors.Is(err, boom) {
		t.Fatalf("multi expected boom, got %v", err)
	}
	if len(calls) != 2 || calls[0] != "a:P" || calls[1] != "b:P" {
		t.Fatalf("multi expected to stop after b, got %v", calls)
	}
}
