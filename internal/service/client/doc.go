// Package client implements the alarm-ctl operator command.
//
// It sends one command line to the device remote console, or asks for the
// controller status, and prints the reply. With Wait set it keeps retrying
// while the device is unreachable, for example while it is still booting.
package client
