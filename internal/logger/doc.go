// Package logger wraps zap for the smart-alarm binaries.
//
// A global sugared logger writes a console format to stderr, never to stdout,
// because stdout may be the device console itself. The level is shared and
// atomic, so the settings watcher can change it while the device runs. While
// the stdio console holds the terminal in raw mode, SetRawTerminal makes the
// default sink emit CRLF line endings.
//
// Loggers travel in contexts. WithName, WithKV and WithFields attach the
// component name, the boot id or the remote actor once, and every helper
// such as InfoKV picks them up.
package logger
