package mqtt

import (
	"errors"
	"testing"

	"github.com/nerrad567/droid-agent/internal/infrastructure/config"
)

func testMQTTConfig() config.MQTTConfig {
	cfg := config.MQTTConfig{}
	cfg.Enabled = true
	cfg.Broker.Host = "broker.lab"
	cfg.Broker.Port = 1883
	cfg.Broker.ClientID = "pixel-lab-3"
	cfg.Auth.Username = "agent"
	cfg.Auth.Password = "secret"
	cfg.QoS = 1
	return cfg
}

func TestPublishValidation(t *testing.T) {
	// A zero-value client is never connected, so validation errors must
	// surface before any broker interaction.
	c := &Client{cfg: testMQTTConfig(), deviceID: "pixel-lab-3"}

	if err := c.Publish("", []byte("x"), 0, false); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic: err = %v, want ErrInvalidTopic", err)
	}
	if err := c.Publish("droidagent/event/d/x", []byte("x"), 3, false); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("qos 3: err = %v, want ErrInvalidQoS", err)
	}
	big := make([]byte, maxPayloadSize+1)
	if err := c.Publish("droidagent/event/d/x", big, 0, false); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("oversized payload: err = %v, want ErrPublishFailed", err)
	}
	if err := c.Publish("droidagent/event/d/x", []byte("x"), 0, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected: err = %v, want ErrNotConnected", err)
	}
}

func TestCloseNilClient(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on unconnected client = %v", err)
	}
}
