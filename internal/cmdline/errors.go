package cmdline

import "errors"

var (
	// ErrRegistryFull is returned when the command table is at capacity.
	ErrRegistryFull = errors.New("command registry full")
	// ErrInvalidName is returned for empty, over-long or non-printable names.
	ErrInvalidName = errors.New("invalid command name")
	// ErrDuplicateName is returned when a name is already registered.
	ErrDuplicateName = errors.New("duplicate command name")
	// ErrArgument is returned when an integer argument is missing or not numeric.
	ErrArgument = errors.New("argument missing or invalid")
)
