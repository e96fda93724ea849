// Package trigger sends a signal or test command to the laser controller,
// retrying until the controller acknowledges it.
package trigger
