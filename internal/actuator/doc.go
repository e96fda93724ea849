// Package actuator implements the output channel: the single binary line
// that drives the laser diode.
//
// GPIOChannel drives a real pin through periph.io, SimulatedChannel keeps
// the line in memory for desktop runs, and Recorder captures timestamped
// transitions for tests. Every write is read back; a mismatch or a driver
// error is reported as ErrActuatorFault.
package actuator
