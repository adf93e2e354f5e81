// Package config loads, defaults and validates the agent configuration.
//
// Configuration comes from a YAML file with environment variable overrides
// (DROIDAGENT_* pattern). Defaults are applied first, then file values,
// then environment overrides, and the result is validated before use.
package config
