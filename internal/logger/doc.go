// Package logger wraps zap with a global sugared logger for the controller
// and gateway binaries.
//
// Loggers travel in context.Context: services scope them with WithName and
// WithKV and the package-level helpers (Info, InfoKV, ErrorKV, ...) pull the
// scoped logger back out. Output goes to stdout and, when configured, to a
// size-rotated file.
package logger
