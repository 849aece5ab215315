package device

import (
	"bytes"
	"strings"
	"sync"

	"github.com/oshokin/smart-alarm/internal/transport"
)

// fakeLink is an in-memory console link for driving the foreground loop.
type fakeLink struct {
	// mu guards every field.
	mu sync.Mutex
	// in holds the bytes typed by the operator and not yet received.
	in []byte
	// pending holds sent bytes until Flush.
	pending []byte
	// out holds flushed bytes.
	out bytes.Buffer
	// err ends the input once in is drained.
	err error
	// closed is set by Close.
	closed bool
}

var _ transport.Transport = (*fakeLink)(nil)

// typeLine queues s as operator input.
func (f *fakeLink) typeLine(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.in = append(f.in, s...)
}

// endInput makes Err report err after the queued input is consumed.
func (f *fakeLink) endInput(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.err = err
}

// output returns everything flushed so far.
func (f *fakeLink) output() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.out.String()
}

// contains reports whether the flushed output contains s.
func (f *fakeLink) contains(s string) bool {
	return strings.Contains(f.output(), s)
}

func (f *fakeLink) ReceiveByte() (byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.in) == 0 {
		return 0, false
	}

	b := f.in[0]
	f.in = f.in[1:]

	return b, true
}

func (f *fakeLink) SendByte(b byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return transport.ErrClosed
	}

	f.pending = append(f.pending, b)

	return nil
}

func (f *fakeLink) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.out.Write(f.pending)
	f.pending = f.pending[:0]

	return nil
}

func (f *fakeLink) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.in) > 0 {
		return nil
	}

	return f.err
}

func (f *fakeLink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true

	return nil
}
