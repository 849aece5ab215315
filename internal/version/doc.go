// Package version exposes build metadata for the smart-alarm binaries.
//
// Version, Commit and BuildTime are injected with -ldflags by release builds.
// UserAgent names the device on outbound websocket connections.
package version
