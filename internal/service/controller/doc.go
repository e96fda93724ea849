// Package controller runs the laser controller process: it loads settings,
// takes ownership of the output pin, runs the startup self-test and serves
// the HTTP command interface plus the optional health and metrics
// endpoints until the context is canceled or the actuator faults.
package controller
