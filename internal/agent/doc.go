// Package agent orchestrates the device-automation agent.
//
// The Agent owns the server session, serves inbound action requests
// through the executor, watches the backend for UI changes and fans
// outcomes out to the event feed, the history store and the metrics
// sink. Run keeps the session alive with exponential-backoff reconnects.
package agent
