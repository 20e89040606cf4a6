package relay

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedMessage is returned by Dispatch when an inbound frame is not JSON.
var ErrMalformedMessage = errors.New("relay: malformed message")

// Message types sent by the server.
const (
	TypeInit    = "init"
	TypeDevices = "devices"
)

const (
	targetIDField = "targetId"
	senderIDField = "senderId"
)

// devicePrefixLen is how many identifier characters appear in a device name.
const devicePrefixLen = 4

// InitMessage tells a new client its session identifier.
type InitMessage struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// DeviceListEntry is the public projection of a ClientRecord.
type DeviceListEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DevicesMessage carries the full roster.
type DevicesMessage struct {
	Type    string            `json:"type"`
	Devices []DeviceListEntry `json:"devices"`
}

// DeviceName derives the display name for id.
func DeviceName(id string) string {
	if len(id) > devicePrefixLen {
		id = id[:devicePrefixLen]
	}
	return "Device " + id
}

// Envelope is an inbound client message. Fields other than targetId are
// carried through untouched.
type Envelope struct {
	fields map[string]json.RawMessage
}

// ParseEnvelope decodes raw. A non-nil error means raw is not valid JSON.
// Valid JSON that is not an object yields an envelope without a target.
func ParseEnvelope(raw []byte) (*Envelope, error) {
	var probe json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return &Envelope{}, nil
	}
	return &Envelope{fields: fields}, nil
}

// TargetID returns the declared target, or "" when absent or not a string.
func (e *Envelope) TargetID() string {
	raw, ok := e.fields[targetIDField]
	if !ok {
		return ""
	}
	var target string
	if err := json.Unmarshal(raw, &target); err != nil {
		return ""
	}
	return target
}

// stamp returns the envelope encoded with senderId set to id.
func (e *Envelope) stamp(senderID string) ([]byte, error) {
	out := make(map[string]json.RawMessage, len(e.fields)+1)
	for k, v := range e.fields {
		out[k] = v
	}
	sender, err := json.Marshal(senderID)
	if err != nil {
		return nil, fmt.Errorf("encode sender id: %w", err)
	}
	out[senderIDField] = sender
	return json.Marshal(out)
}
