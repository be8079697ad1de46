// Package influxdb provides optional transition telemetry for Boom Gate
// Core.
//
// Each accepted gate transition is written as a point to the
// gate_transitions measurement. Writes are batched and asynchronous, so
// telemetry outages cannot affect gate operation. The whole package is
// inert unless influxdb.enabled is set.
package influxdb
