// Package dispatch maps inbound commands to signal engine invocations or
// status reads and produces structured acknowledgements.
//
// At most one actuation runs at a time. Whether the acknowledgement precedes
// or follows actuation is part of each command's contract: a signal is
// acknowledged before the first pulse, a test pulse after the last one.
// Status reads never wait for the engine.
package dispatch
