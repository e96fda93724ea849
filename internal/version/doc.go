// Package version exposes build metadata of the controller and gateway binaries.
//
// Version, Commit and BuildTime are injected with ldflags; local builds keep
// the defaults. Full is printed by the version subcommand and logged by the
// controller on startup, UserAgent tags gateway requests.
package version
