package alarm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidActor is returned when an actor string is not username@hostname.
var ErrInvalidActor = errors.New("actor must be username@hostname")

// Actor identifies who issued a command through the remote console.
type Actor struct {
	// Hostname is the machine name where the command was issued.
	Hostname string
	// Username is the system user who issued the command.
	Username string
}

// Clone returns a deep copy of the actor.
func (a *Actor) Clone() *Actor {
	if a == nil {
		return nil
	}

	cloned := *a

	return &cloned
}

// String renders the actor as username@hostname.
func (a *Actor) String() string {
	if a == nil {
		return "<unknown>"
	}

	return fmt.Sprintf("%s@%s", a.Username, a.Hostname)
}

// ParseActor reads the username@hostname form produced by String.
// The hostname cannot contain '@', so the last one separates the parts.
func ParseActor(s string) (*Actor, error) {
	at := strings.LastIndexByte(s, '@')
	if at <= 0 || at == len(s)-1 {
		return nil, fmt.Errorf("%q: %w", s, ErrInvalidActor)
	}

	return &Actor{
		Username: s[:at],
		Hostname: s[at+1:],
	}, nil
}
