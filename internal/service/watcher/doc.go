// Package watcher polls the controller status report and, when configured,
// its gRPC health service, logging every observation.
package watcher
