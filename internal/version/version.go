package version

import (
	"fmt"
	"runtime"
)

var (
	// Version is the semantic version of the build. It can be overridden via ldflags.
	Version = "1.0.0"
	// Commit is the short git SHA embedded at build time (or "none").
	Commit = "none"
	// BuildTime is the UTC build timestamp embedded at build time.
	BuildTime = "unknown"
)

// Short returns only the semantic version string.
func Short() string {
	return Version
}

// UserAgent identifies the device on outbound links such as the websocket bridge.
func UserAgent() string {
	return "smart-alarm/" + Version
}

// Full renders the version of binary with build metadata and the target platform.
func Full(binary string) string {
	return fmt.Sprintf("%s %s (commit %s, built %s, %s/%s)",
		binary, Version, Commit, BuildTime, runtime.GOOS, runtime.GOARCH)
}
