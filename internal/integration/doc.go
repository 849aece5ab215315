// Package integration holds end-to-end tests that run a device with its
// remote console and drive it through the local link, the gRPC client and
// the alarm-ctl service.
package integration
