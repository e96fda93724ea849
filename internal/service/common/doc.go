// Package common holds helpers shared by the gateway services.
//
// It provides a small HTTP client for the controller command interface,
// a gRPC health probe and detection of the calling actor (hostname/username)
// that is sent along with every command.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
