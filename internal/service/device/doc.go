// Package device runs the smart-alarm device.
//
// Run wires the settings, the output backend, the tone generator, the mode
// controller and the command dispatcher together, then runs three activities:
// the tick source advancing the controller, the foreground loop polling the
// console transport and executing command lines, and the optional gRPC remote
// console. Remote command lines are queued to the foreground loop so that
// handlers never run concurrently with each other.
package device
