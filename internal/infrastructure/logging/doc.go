// Package logging provides the structured logger used across the agent.
//
// It wraps log/slog with the configured output, format and level, and
// stamps every record with the service name and version.
package logging
