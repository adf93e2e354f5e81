package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteActionMetric records one executed action.
//
// The write is non-blocking; points are batched and sent asynchronously.
// Dropped silently if the client is not connected, so callers never stall
// an action on a metrics outage.
//
// Parameters:
//   - deviceID: The agent's device identity
//   - actionType: Canonical action name (e.g., "click", "swipe")
//   - success: Whether the action succeeded
//   - duration: Wall-clock execution time
func (c *Client) WriteActionMetric(deviceID, actionType string, success bool, duration time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"action_metrics",
		map[string]string{
			"device_id":   deviceID,
			"action_type": actionType,
		},
		map[string]interface{}{
			"success":     success,
			"duration_ms": float64(duration.Milliseconds()),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteSessionEvent records a session lifecycle transition
// ("connected", "disconnected", "handshake_failed").
func (c *Client) WriteSessionEvent(deviceID, event string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"session_events",
		map[string]string{
			"device_id": deviceID,
			"event":     event,
		},
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteUIChange records a detected UI transition along with the size of the
// interactive surface, useful for spotting screens that churn.
func (c *Client) WriteUIChange(deviceID, packageName string, interactiveNodes int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"ui_changes",
		map[string]string{
			"device_id": deviceID,
			"package":   packageName,
		},
		map[string]interface{}{
			"interactive_nodes": interactiveNodes,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
// Use this for measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
