// Package sysinfo provides the read-only environment sources consumed by the
// status command: uptime, free memory and the number of connected peers.
package sysinfo
