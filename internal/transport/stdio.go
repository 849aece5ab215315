package transport

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/oshokin/smart-alarm/internal/logger"
)

// PasswordEnv holds the websocket bridge password for unattended starts.
const PasswordEnv = "SMART_ALARM_PASSWORD"

// stdio joins the process standard streams into one link.
type stdio struct {
	in  io.Reader
	out io.Writer
}

func (s *stdio) Read(p []byte) (int, error)  { return s.in.Read(p) }
func (s *stdio) Write(p []byte) (int, error) { return s.out.Write(p) }

// Close leaves the standard streams open for the rest of the process.
func (s *stdio) Close() error { return nil }

// OpenStdio uses standard input and output as the console link.
// A terminal on stdin is switched to raw mode, so bytes arrive as typed,
// and restored on Close.
func OpenStdio() (*Stream, error) {
	restore := func() {}

	fd := int(os.Stdin.Fd()) //nolint:gosec // File descriptors fit in int.
	if term.IsTerminal(fd) {
		state, err := term.MakeRaw(fd)
		if err != nil {
			return nil, fmt.Errorf("make terminal raw: %w", err)
		}

		// Log lines on the same terminal need explicit carriage returns now.
		rawStderr := term.IsTerminal(int(os.Stderr.Fd())) //nolint:gosec // File descriptors fit in int.
		logger.SetRawTerminal(rawStderr)

		restore = func() {
			_ = term.Restore(fd, state)

			logger.SetRawTerminal(false)
		}
	}

	s := NewStream(&stdio{in: os.Stdin, out: os.Stdout})
	s.onClose = restore

	return s, nil
}

// Password returns the websocket bridge password from PasswordEnv, or prompts
// for it on the terminal without echo.
func Password() (string, error) {
	if pw := os.Getenv(PasswordEnv); pw != "" {
		return pw, nil
	}

	_, _ = fmt.Fprint(os.Stderr, "Password: ")

	fd := int(os.Stdin.Fd()) //nolint:gosec // File descriptors fit in int.
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}

		return strings.TrimSpace(line), nil
	}

	password, err := term.ReadPassword(fd)

	_, _ = fmt.Fprintln(os.Stderr)

	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	return string(password), nil
}
