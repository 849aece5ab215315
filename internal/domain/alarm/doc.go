// Package alarm contains core domain types shared by the controller, the
// command handlers and the remote console.
//
// It defines Mode (the active alarm behavior), Phase (the sub-state of the
// repeat cycle), Color (the status indicator palette), Snapshot (a copy of the
// controller state at one tick) and Actor (who issued a remote command).
package alarm
