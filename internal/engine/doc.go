// Package engine is the signal engine: it executes a morse message as a
// timed sequence of pulses on an actuator channel.
//
// Holds are blocking waits and an emission always runs to completion; the
// context only carries the logger. A failed write stops the emission with
// actuator.ErrActuatorFault and no compensating write is attempted.
package engine
