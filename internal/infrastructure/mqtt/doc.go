// Package mqtt publishes the agent's out-of-band event feed.
//
// Action results, UI-change notifications and health reports go out on
// droidagent/* topics so observers can follow the device without joining
// the TCP session. The client is publish-only, with LWT-based offline
// detection and automatic reconnection handled by paho.
package mqtt
