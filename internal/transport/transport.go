package transport

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync"
)

const (
	// inputQueueSize bounds the bytes read ahead of the device loop.
	inputQueueSize = 256
	// readChunkSize is the size of a single read from the underlying link.
	readChunkSize = 64
	// writeBufferSize holds a full reply between flushes.
	writeBufferSize = 512
)

// ErrClosed is returned when writing to a closed transport.
var ErrClosed = errors.New("transport closed")

// Transport is a polled, byte-oriented console link.
type Transport interface {
	// ReceiveByte returns the next received byte, or false when none is waiting.
	ReceiveByte() (byte, bool)
	// SendByte queues one byte for transmission.
	SendByte(b byte) error
	// Flush transmits every queued byte.
	Flush() error
	// Err returns the error that ended the input, or nil while the link is up.
	Err() error
	// Close releases the link.
	Close() error
}

// Stream adapts an io.ReadWriteCloser to Transport.
// A reader goroutine moves incoming bytes into a bounded queue so that
// ReceiveByte never blocks.
type Stream struct {
	// rwc is the underlying link.
	rwc io.ReadWriteCloser
	// in holds received bytes until the device loop takes them.
	in chan byte
	// done is closed by Close to stop the reader goroutine.
	done chan struct{}
	// readerDone is closed when the reader goroutine exits.
	readerDone chan struct{}

	// mu guards the writer and the closed flag.
	mu     sync.Mutex
	w      *bufio.Writer
	closed bool

	// errMu guards err.
	errMu sync.Mutex
	err   error

	closeOnce sync.Once
	closeErr  error
	// onClose runs after the link is closed, for example to restore a terminal.
	onClose func()
}

// NewStream wraps rwc and starts reading from it.
func NewStream(rwc io.ReadWriteCloser) *Stream {
	s := &Stream{
		rwc:        rwc,
		in:         make(chan byte, inputQueueSize),
		done:       make(chan struct{}),
		readerDone: make(chan struct{}),
		w:          bufio.NewWriterSize(rwc, writeBufferSize),
	}

	go s.readLoop()

	return s
}

func (s *Stream) readLoop() {
	defer close(s.readerDone)

	buf := make([]byte, readChunkSize)

	for {
		n, err := s.rwc.Read(buf)
		for _, b := range buf[:n] {
			select {
			case s.in <- b:
			case <-s.done:
				return
			}
		}

		if err != nil {
			s.setErr(err)

			return
		}
	}
}

func (s *Stream) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()

	if s.err == nil {
		s.err = err
	}
}

// ReceiveByte implements Transport.
func (s *Stream) ReceiveByte() (byte, bool) {
	select {
	case b := <-s.in:
		return b, true
	default:
		return 0, false
	}
}

// SendByte implements Transport.
func (s *Stream) SendByte(b byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	if err := s.w.WriteByte(b); err != nil {
		return fmt.Errorf("send byte: %w", err)
	}

	return nil
}

// Write queues p; it lets a Stream serve as an io.Writer for replies.
func (s *Stream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	return s.w.Write(p)
}

// Flush implements Transport.
func (s *Stream) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	if s.w.Buffered() == 0 {
		return nil
	}

	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	return nil
}

// Err implements Transport. Queued bytes remain readable after the input ends.
func (s *Stream) Err() error {
	select {
	case <-s.readerDone:
	default:
		return nil
	}

	if len(s.in) > 0 {
		return nil
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()

	return s.err
}

// Close flushes pending output and closes the link.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		flushErr := s.w.Flush()
		s.closed = true
		s.mu.Unlock()

		close(s.done)

		s.closeErr = errors.Join(flushErr, s.rwc.Close())
		s.setErr(ErrClosed)

		if s.onClose != nil {
			s.onClose()
		}
	})

	return s.closeErr
}
