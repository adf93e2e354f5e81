package protocol

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestMarshalLineTerminated(t *testing.T) {
	line, err := MarshalLine(HeartbeatMessage{
		Type:      TypeHeartbeat,
		DeviceID:  "dev-1",
		Timestamp: 1700000000.5,
	})
	if err != nil {
		t.Fatalf("MarshalLine() error = %v", err)
	}
	if !bytes.HasSuffix(line, []byte("\n")) {
		t.Errorf("line missing terminator: %q", line)
	}
	if bytes.Count(line, []byte("\n")) != 1 {
		t.Errorf("line contains embedded newlines: %q", line)
	}
}

func TestPeekType(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Type
		wantErr bool
	}{
		{"request", `{"type":"request","requestId":"r1"}`, TypeRequest, false},
		{"response", `{"type":"response","requestId":"r1"}`, TypeResponse, false},
		{"welcome", `{"type":"welcome"}`, TypeWelcome, false},
		{"missing type", `{"requestId":"r1"}`, "", true},
		{"not json", `hello`, "", true},
		{"empty object", `{}`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PeekType([]byte(tt.line))
			if (err != nil) != tt.wantErr {
				t.Fatalf("PeekType() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("PeekType() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEventMessageFlattening(t *testing.T) {
	msg := EventMessage{
		Type:      TypeEvent,
		EventType: "action_result",
		DeviceID:  "dev-1",
		Timestamp: 1700000001.25,
		Data: map[string]any{
			"status":  "success",
			"message": "clicked",
			// reserved keys must not clobber the envelope
			"type":     "bogus",
			"deviceId": "bogus",
		},
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var flat map[string]any
	if err := json.Unmarshal(raw, &flat); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if flat["type"] != "event" {
		t.Errorf("type = %v, want event", flat["type"])
	}
	if flat["eventType"] != "action_result" {
		t.Errorf("eventType = %v, want action_result", flat["eventType"])
	}
	if flat["deviceId"] != "dev-1" {
		t.Errorf("deviceId = %v, want dev-1", flat["deviceId"])
	}
	if flat["status"] != "success" {
		t.Errorf("status = %v, want success (data not flattened)", flat["status"])
	}
	if _, nested := flat["data"]; nested {
		t.Error("data field present, payload was not flattened")
	}

	var back EventMessage
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("Unmarshal(EventMessage) error = %v", err)
	}
	if back.EventType != msg.EventType || back.DeviceID != msg.DeviceID {
		t.Errorf("round trip envelope = %+v", back)
	}
	if back.Data["message"] != "clicked" {
		t.Errorf("round trip data = %v", back.Data)
	}
}

func TestHandshakeMessageShape(t *testing.T) {
	raw, err := json.Marshal(HandshakeMessage{
		Type:      TypeHandshake,
		DeviceID:  "dev-1",
		Timestamp: 1700000000,
		DeviceInfo: DeviceInfo{
			Model:        "Pixel 8",
			Manufacturer: "Google",
			OSVersion:    "15",
			SDKVersion:   35,
		},
		Capabilities: Capabilities(),
	})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var flat map[string]any
	if err := json.Unmarshal(raw, &flat); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	info, ok := flat["deviceInfo"].(map[string]any)
	if !ok {
		t.Fatalf("deviceInfo missing: %v", flat)
	}
	if info["sdkVersion"] != float64(35) {
		t.Errorf("sdkVersion = %v, want 35", info["sdkVersion"])
	}
	caps, ok := flat["capabilities"].([]any)
	if !ok || len(caps) == 0 {
		t.Fatalf("capabilities missing: %v", flat)
	}
}
