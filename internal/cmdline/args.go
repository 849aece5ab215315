package cmdline

import (
	"fmt"
	"strconv"
	"strings"
)

// ArgInt parses the k-th argument (1-indexed) of the current line as a decimal integer.
//
// Like scanning with "%*c%d", exactly one leading character is skipped first.
// If the command word continues with letters the rest of the word is skipped
// too, while a number glued to the first character ("a1") is argument 1.
// A missing or non-numeric argument yields 0 and ErrArgument.
func (d *Dispatcher) ArgInt(k int) (int, error) {
	args := arguments(d.line)
	if k < 1 || k > len(args) {
		return 0, fmt.Errorf("argument %d: %w", k, ErrArgument)
	}

	v, err := strconv.Atoi(args[k-1])
	if err != nil {
		return 0, fmt.Errorf("argument %d %q: %w", k, args[k-1], ErrArgument)
	}

	return v, nil
}

// ArgCount returns the number of arguments following the command.
func (d *Dispatcher) ArgCount() int {
	return len(arguments(d.line))
}

func arguments(line string) []string {
	rest := strings.TrimLeft(line, " \t")
	if rest == "" {
		return nil
	}

	rest = rest[1:]

	if rest != "" && !isSpace(rest[0]) && !startsNumber(rest) {
		i := strings.IndexAny(rest, " \t")
		if i < 0 {
			return nil
		}

		rest = rest[i:]
	}

	return strings.Fields(rest)
}

func startsNumber(s string) bool {
	if isDigit(s[0]) {
		return true
	}

	return (s[0] == '-' || s[0] == '+') && len(s) > 1 && isDigit(s[1])
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t'
}
