package listener

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"

	sequencer "github.com/alexgridx/notification-sequencer"
)

// Decoder turns the payload of one stream record into notifications.
type Decoder func(data []byte) ([]sequencer.Notification, error)

// DecodeJSON accepts either a single JSON notification or a JSON array of
// them.
func DecodeJSON(data []byte) ([]sequencer.Notification, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty record")
	}

	if data[0] == '[' {
		var ns []sequencer.Notification
		if err := json.Unmarshal(data, &ns); err != nil {
			return nil, errors.Wrap(err, "decode notification batch")
		}
		return ns, nil
	}

	var n sequencer.Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, errors.Wrap(err, "decode notification")
	}
	return []sequencer.Notification{n}, nil
}
