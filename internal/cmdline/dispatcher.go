package cmdline

import (
	"fmt"
	"io"
	"strings"
)

const (
	// DefaultCapacity is the number of commands a table holds.
	DefaultCapacity = 10
	// MaxNameLength is the longest accepted command name.
	MaxNameLength = 14
	// DefaultBufferSize is the line buffer capacity in bytes.
	DefaultBufferSize = 80
)

// Reply texts shared by the dispatcher and the command handlers.
const (
	ReplyOK          = "OK"
	ReplyOutOfRange  = "ERROR - Value out of range"
	ReplyInvalidArg  = "ERROR - Invalid argument"
	ReplyLineTooLong = "ERROR - Line too long"
)

const (
	replyUnknownFmt   = "Unknown command: %s"
	helpLineFormat    = "%-*s %s"
	helpNameMinWidth  = 8
	asciiCaseDistance = 'a' - 'A'
)

// Handler is invoked with no arguments; it reads the current line through the dispatcher.
type Handler func()

// Entry is one registered command.
type Entry struct {
	// Name is the command word.
	Name string
	// Help is the one-line description shown by Help.
	Help string
	// Handler runs when the entry is resolved.
	Handler Handler
}

// MatchMode selects how a command word is resolved.
type MatchMode int

const (
	// MatchFirstChar resolves on the first character of the command word.
	// An entry whose full name equals the word wins over other entries sharing the
	// character, otherwise the earliest registered entry wins.
	MatchFirstChar MatchMode = iota
	// MatchExact resolves on the whole command word, ignoring case.
	MatchExact
)

// String returns the configuration name of the mode.
func (m MatchMode) String() string {
	if m == MatchExact {
		return "exact"
	}

	return "first-char"
}

// ParseMatchMode converts a configuration name into a MatchMode.
func ParseMatchMode(s string) (MatchMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "first-char":
		return MatchFirstChar, true
	case "exact":
		return MatchExact, true
	default:
		return MatchFirstChar, false
	}
}

// Dispatcher owns the command table and the line buffer.
type Dispatcher struct {
	entries   []Entry
	matchMode MatchMode
	echo      bool
	out       func(byte)

	buf      []byte
	overflow bool
	ready    bool

	line    string
	command string
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithCapacity sets the command table capacity.
func WithCapacity(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.entries = make([]Entry, 0, n)
		}
	}
}

// WithBufferSize sets the line buffer capacity.
func WithBufferSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.buf = make([]byte, 0, n)
		}
	}
}

// WithMatchMode selects the resolution strategy.
func WithMatchMode(m MatchMode) Option {
	return func(d *Dispatcher) {
		d.matchMode = m
	}
}

// WithEcho makes Feed write accepted bytes back to the sink.
func WithEcho(echo bool) Option {
	return func(d *Dispatcher) {
		d.echo = echo
	}
}

// WithOutput sets the initial byte sink.
func WithOutput(out func(byte)) Option {
	return func(d *Dispatcher) {
		d.out = out
	}
}

// New creates a dispatcher with default capacity and buffer size.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		entries: make([]Entry, 0, DefaultCapacity),
		buf:     make([]byte, 0, DefaultBufferSize),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Register adds a command. Duplicates are rejected and leave the table unchanged.
func (d *Dispatcher) Register(name, help string, handler Handler) error {
	if !validName(name) || handler == nil {
		return fmt.Errorf("%q: %w", name, ErrInvalidName)
	}

	for _, e := range d.entries {
		if e.Name == name {
			return fmt.Errorf("%q: %w", name, ErrDuplicateName)
		}
	}

	if len(d.entries) == cap(d.entries) {
		return fmt.Errorf("%q: %w", name, ErrRegistryFull)
	}

	d.entries = append(d.entries, Entry{
		Name:    name,
		Help:    help,
		Handler: handler,
	})

	return nil
}

// SetOutput replaces the byte sink used for replies.
func (d *Dispatcher) SetOutput(out func(byte)) {
	d.out = out
}

// Output returns the current byte sink.
func (d *Dispatcher) Output() func(byte) {
	return d.out
}

// Feed appends one received byte to the line buffer.
// It returns false when the byte was refused because a complete line is still pending.
func (d *Dispatcher) Feed(b byte) bool {
	if d.ready {
		return false
	}

	if b == '\r' || b == '\n' {
		switch {
		case d.overflow:
			d.echoString("\r\n")
			d.Reply(ReplyLineTooLong)
			d.reset()
		case len(d.buf) > 0:
			d.echoString("\r\n")

			d.ready = true
		}

		return true
	}

	if d.overflow {
		return true
	}

	if len(d.buf) == cap(d.buf) {
		d.overflow = true

		return true
	}

	d.buf = append(d.buf, b)

	if d.echo {
		d.write(b)
	}

	return true
}

// RunPending dispatches the pending line, if any, and reports whether it did.
func (d *Dispatcher) RunPending() bool {
	if !d.ready {
		return false
	}

	line := string(d.buf)
	d.reset()
	d.Execute(line)

	return true
}

// Execute resolves and runs one complete line.
// The line stays current for ArgInt until the next call.
func (d *Dispatcher) Execute(line string) {
	d.line = line
	d.command = commandWord(line)

	if d.command == "" {
		return
	}

	entry, ok := d.lookup(d.command)
	if !ok {
		d.Replyf(replyUnknownFmt, line)

		return
	}

	entry.Handler()
}

// Line returns the raw current line.
func (d *Dispatcher) Line() string {
	return d.line
}

// Command returns the command word with its first character lower-cased.
func (d *Dispatcher) Command() string {
	return d.command
}

// Reply writes one line of text to the sink.
func (d *Dispatcher) Reply(text string) {
	d.writeString(text)
	d.writeString("\n")
}

// Replyf formats and writes one line of text to the sink.
func (d *Dispatcher) Replyf(format string, args ...any) {
	d.Reply(fmt.Sprintf(format, args...))
}

// Writer returns an io.Writer that writes through the sink with newline translation.
func (d *Dispatcher) Writer() io.Writer {
	return sinkWriter{d}
}

// Help renders one line per registered command.
func (d *Dispatcher) Help() {
	width := helpNameMinWidth
	for _, e := range d.entries {
		width = max(width, len(e.Name))
	}

	for _, e := range d.entries {
		d.Replyf(helpLineFormat, width, e.Name, e.Help)
	}
}

func (d *Dispatcher) lookup(word string) (Entry, bool) {
	if d.matchMode == MatchExact {
		for _, e := range d.entries {
			if strings.EqualFold(e.Name, word) {
				return e, true
			}
		}

		return Entry{}, false
	}

	var (
		candidate Entry
		found     bool
	)

	for _, e := range d.entries {
		if lower(e.Name[0]) != word[0] {
			continue
		}

		if e.Name == word {
			return e, true
		}

		if !found {
			candidate, found = e, true
		}
	}

	return candidate, found
}

func (d *Dispatcher) reset() {
	d.buf = d.buf[:0]
	d.overflow = false
	d.ready = false
}

func (d *Dispatcher) echoString(s string) {
	if d.echo {
		for i := range len(s) {
			d.write(s[i])
		}
	}
}

// writeString sends s to the sink, emitting a carriage return before every newline.
func (d *Dispatcher) writeString(s string) {
	for i := range len(s) {
		if s[i] == '\n' {
			d.write('\r')
		}

		d.write(s[i])
	}
}

func (d *Dispatcher) write(b byte) {
	if d.out != nil {
		d.out(b)
	}
}

// sinkWriter adapts the dispatcher sink to io.Writer.
type sinkWriter struct {
	d *Dispatcher
}

func (w sinkWriter) Write(p []byte) (int, error) {
	w.d.writeString(string(p))

	return len(p), nil
}

// commandWord returns the first field of line with only its first character lower-cased.
func commandWord(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}

	word := []byte(fields[0])
	word[0] = lower(word[0])

	return string(word)
}

func lower(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + asciiCaseDistance
	}

	return b
}

func validName(name string) bool {
	if name == "" || len(name) > MaxNameLength {
		return false
	}

	for i := range len(name) {
		if name[i] <= ' ' || name[i] > '~' {
			return false
		}
	}

	return true
}
