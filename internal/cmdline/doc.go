// Package cmdline implements the line-oriented command dispatcher of the
// alarm device.
//
// Bytes are fed one at a time into a bounded line buffer. A carriage return
// or newline completes the line, which is then resolved against a
// fixed-capacity table of named handlers. Resolution keys on the first
// character of the command word, lower-casing only that character, the
// way the device firmware always has. Handlers read their integer arguments
// on demand with ArgInt and answer through the injected byte sink.
//
// A Dispatcher is driven by a single foreground loop and is not safe for
// concurrent use.
package cmdline
