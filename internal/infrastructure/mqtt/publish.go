package mqtt

import (
	"encoding/json"
	"fmt"
)

// maxPayloadSize caps outbound messages (1MB). UI snapshots can be large
// but anything over this indicates a runaway hierarchy.
const maxPayloadSize = 1 << 20

// Publish sends a message to the specified MQTT topic.
//
// Parameters:
//   - topic: The topic to publish to (e.g., "droidagent/event/dev-1/action_result")
//   - payload: The message payload (typically JSON, max 1MB)
//   - qos: Quality of Service level (0, 1, or 2)
//   - retained: Whether the broker should retain the message for new subscribers
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// PublishJSON marshals v and publishes it with the configured default QoS.
func (c *Client) PublishJSON(topic string, v any, retained bool) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encoding payload: %w", ErrPublishFailed, err)
	}
	return c.Publish(topic, payload, byte(c.cfg.QoS), retained)
}

// PublishEvent publishes an event payload on the device's event topic.
// Events are not retained; they are a stream, not state.
func (c *Client) PublishEvent(eventType string, payload any) error {
	topic := Topics{}.Event(c.deviceID, eventType)
	if err := c.PublishJSON(topic, payload, false); err != nil {
		if logger := c.getLogger(); logger != nil {
			logger.Warn("event publish failed", "topic", topic, "error", err)
		}
		return err
	}
	return nil
}

// PublishHealth publishes a retained health report on the device's health
// topic.
func (c *Client) PublishHealth(payload any) error {
	return c.PublishJSON(Topics{}.Health(c.deviceID), payload, true)
}
