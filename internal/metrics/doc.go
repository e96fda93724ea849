// Package metrics exports Prometheus metrics for the controller: commands,
// emissions, pulses and the current actuator level.
package metrics
