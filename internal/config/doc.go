// Package config defines the settings shared by the controller and gateway
// binaries and provides helpers to load, validate and save them as YAML.
//
// A loaded Config is treated as immutable: it is built once at startup and
// passed by pointer into the engine, dispatcher and transports.
package config
