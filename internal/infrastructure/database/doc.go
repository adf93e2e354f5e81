// Package database manages the agent's SQLite store: connection setup with
// WAL and busy-timeout pragmas, embedded schema migrations, and health
// checks.
package database
