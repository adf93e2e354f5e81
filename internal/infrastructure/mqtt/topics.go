package mqtt

import "fmt"

// Topic scheme: droidagent/{category}/{deviceId}[/{qualifier}]
const (
	// TopicPrefix is the base for all agent topics.
	TopicPrefix = "droidagent"
)

// Topics provides builders for the agent's MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase.
type Topics struct{}

// Status returns the retained online/offline status topic for a device.
//
// Example: droidagent/status/pixel-lab-3
func (Topics) Status(deviceID string) string {
	return fmt.Sprintf("%s/status/%s", TopicPrefix, deviceID)
}

// Event returns the topic for one event type from a device.
//
// Example: droidagent/event/pixel-lab-3/action_result
func (Topics) Event(deviceID, eventType string) string {
	return fmt.Sprintf("%s/event/%s/%s", TopicPrefix, deviceID, eventType)
}

// Health returns the retained health report topic for a device.
//
// Example: droidagent/health/pixel-lab-3
func (Topics) Health(deviceID string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, deviceID)
}
