// Package influxdb records action metrics to InfluxDB v2.
//
// The agent writes a point per executed action (type, outcome, duration),
// per session transition and per detected UI change. Writes are batched
// and non-blocking; a metrics outage never delays action execution.
package influxdb
