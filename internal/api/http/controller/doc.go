// Package controller implements the HTTP transport of the laser controller.
//
// It resolves request paths to dispatcher commands, serializes the
// structured acknowledgements and renders the control page.
package controller
