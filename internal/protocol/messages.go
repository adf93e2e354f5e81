package protocol

import (
	"encoding/json"
	"time"
)

// Wire message types for the agent<->server session. Every message is a
// single JSON object terminated by '\n'; the "type" field selects the shape.

// Type identifies the shape of a wire message.
type Type string

const (
	// TypeHandshake is the first message the agent sends after connecting.
	TypeHandshake Type = "handshake"

	// TypeHandshakeResponse is the server's reply to a handshake.
	TypeHandshakeResponse Type = "handshake_response"

	// TypeHeartbeat is the periodic keepalive sent by the agent.
	TypeHeartbeat Type = "heartbeat"

	// TypeHeartbeatResponse is the server's optional heartbeat reply.
	TypeHeartbeatResponse Type = "heartbeat_response"

	// TypeWelcome is an informational greeting some servers send.
	TypeWelcome Type = "welcome"

	// TypeRequest asks the agent to execute an action.
	TypeRequest Type = "request"

	// TypeResponse carries the outcome of a request, in either direction.
	TypeResponse Type = "response"

	// TypeEvent is an unsolicited notification from the agent.
	TypeEvent Type = "event"
)

// HandshakeStatusOK is the only handshake_response status that admits the
// session. Anything else fails the connection attempt.
const HandshakeStatusOK = "ok"

// DeviceInfo describes the device the agent runs on.
type DeviceInfo struct {
	Model        string `json:"model"`
	Manufacturer string `json:"manufacturer"`
	OSVersion    string `json:"osVersion"`
	SDKVersion   int    `json:"sdkVersion"`
}

// HandshakeMessage announces the agent's identity and capabilities.
type HandshakeMessage struct {
	Type Type `json:"type"`

	// DeviceID uniquely identifies this agent to the server.
	DeviceID string `json:"deviceId"`

	// Timestamp is unix seconds (fractional) at send time.
	Timestamp float64 `json:"timestamp"`

	DeviceInfo DeviceInfo `json:"deviceInfo"`

	// Capabilities lists the action names this agent can execute.
	Capabilities []string `json:"capabilities"`
}

// HandshakeResponse is the server's verdict on a handshake.
type HandshakeResponse struct {
	Type    Type   `json:"type"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HeartbeatMessage is the periodic keepalive.
type HeartbeatMessage struct {
	Type      Type    `json:"type"`
	DeviceID  string  `json:"deviceId"`
	Timestamp float64 `json:"timestamp"`
}

// WelcomeMessage is logged and otherwise ignored.
type WelcomeMessage struct {
	Type    Type   `json:"type"`
	Message string `json:"message,omitempty"`
}

// RequestMessage asks the receiving side to execute an action.
type RequestMessage struct {
	Type Type `json:"type"`

	// RequestID correlates the eventual response with this request.
	RequestID string `json:"requestId"`

	// ActionType names the action (e.g. "click", "get_ui_state").
	ActionType string `json:"actionType"`

	// Parameters carries action-specific arguments. Shape depends on
	// ActionType; the executor decodes it into a typed struct.
	Parameters map[string]any `json:"parameters,omitempty"`

	Timestamp float64 `json:"timestamp"`
}

// ResponseMessage carries the outcome of a request.
type ResponseMessage struct {
	Type      Type           `json:"type"`
	RequestID string         `json:"requestId"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp float64        `json:"timestamp"`
}

// EventMessage is an unsolicited notification (action results, UI changes,
// device status). On the wire the Data fields are flattened into the top
// level object alongside type/eventType/deviceId/timestamp, matching what
// servers expect.
type EventMessage struct {
	Type      Type
	EventType string
	DeviceID  string
	Timestamp float64
	Data      map[string]any
}

// MarshalJSON flattens Data into the envelope. Reserved keys in Data are
// dropped rather than allowed to clobber the envelope fields.
func (m EventMessage) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(m.Data)+4)
	for k, v := range m.Data {
		switch k {
		case "type", "eventType", "deviceId", "timestamp":
			continue
		}
		flat[k] = v
	}
	flat["type"] = m.Type
	flat["eventType"] = m.EventType
	flat["deviceId"] = m.DeviceID
	flat["timestamp"] = m.Timestamp
	return json.Marshal(flat)
}

// UnmarshalJSON reverses the flattening performed by MarshalJSON.
func (m *EventMessage) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if s, ok := raw["type"].(string); ok {
		m.Type = Type(s)
	}
	if s, ok := raw["eventType"].(string); ok {
		m.EventType = s
	}
	if s, ok := raw["deviceId"].(string); ok {
		m.DeviceID = s
	}
	if f, ok := raw["timestamp"].(float64); ok {
		m.Timestamp = f
	}
	delete(raw, "type")
	delete(raw, "eventType")
	delete(raw, "deviceId")
	delete(raw, "timestamp")
	if len(raw) > 0 {
		m.Data = raw
	}
	return nil
}

// Now returns the current time as unix seconds with fractional precision,
// the timestamp format used throughout the wire protocol.
func Now() float64 {
	return float64(time.Now().UnixMilli()) / 1000.0
}

// Capabilities returns the action names advertised during handshake.
func Capabilities() []string {
	return []string{
		"click",
		"long_click",
		"swipe",
		"type_text",
		"scroll",
		"launch_app",
		"press_back",
		"press_home",
		"press_recents",
		"find_element",
		"get_text",
		"get_ui_state",
		"get_installed_apps",
	}
}
