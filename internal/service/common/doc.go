// Package common holds helpers shared by the device and the operator client.
//
// It provides a lightweight gRPC client for the remote console with per-call
// timeouts and a helper to detect the current system actor (hostname/username)
// that is sent with every command.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
