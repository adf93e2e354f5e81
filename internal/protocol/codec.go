package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Line codec: one JSON object per line, '\n' terminated, UTF-8.

// MaxLineSize is the largest inbound line the read loop will accept.
// UI snapshots of deep hierarchies can run to hundreds of kilobytes.
const MaxLineSize = 4 * 1024 * 1024

// ErrMissingType is returned when an inbound line has no "type" field.
var ErrMissingType = errors.New("protocol: message has no type field")

// MarshalLine encodes v as JSON and appends the line terminator.
func MarshalLine(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding message: %w", err)
	}
	return append(data, '\n'), nil
}

// PeekType extracts the message type from a raw line without decoding the
// full payload, so the read loop can pick the right struct.
func PeekType(line []byte) (Type, error) {
	var head struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(line, &head); err != nil {
		return "", fmt.Errorf("decoding message envelope: %w", err)
	}
	if head.Type == "" {
		return "", ErrMissingType
	}
	return head.Type, nil
}
