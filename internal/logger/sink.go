package logger

import (
	"bytes"
	"sync/atomic"

	"go.uber.org/zap/zapcore"
)

// terminalSink translates line feeds into CRLF while raw mode is on.
// A terminal in raw mode does not return the carriage by itself, so plain
// log lines would drift to the right under the console.
type terminalSink struct {
	zapcore.WriteSyncer

	raw atomic.Bool
}

func newTerminalSink(ws zapcore.WriteSyncer) *terminalSink {
	return &terminalSink{WriteSyncer: ws}
}

// Write implements io.Writer. It reports len(p) on success so callers never
// see the extra carriage returns.
func (s *terminalSink) Write(p []byte) (int, error) {
	if !s.raw.Load() || !bytes.Contains(p, []byte{'\n'}) {
		return s.WriteSyncer.Write(p)
	}

	if _, err := s.WriteSyncer.Write(toCRLF(p)); err != nil {
		return 0, err
	}

	return len(p), nil
}

// SetRawTerminal tells the default sink whether stderr shares a raw-mode terminal.
func SetRawTerminal(raw bool) {
	stderr.raw.Store(raw)
}

// toCRLF inserts a carriage return before every bare line feed.
func toCRLF(p []byte) []byte {
	out := make([]byte, 0, len(p)+bytes.Count(p, []byte{'\n'}))

	for i, b := range p {
		if b == '\n' && (i == 0 || p[i-1] != '\r') {
			out = append(out, '\r')
		}

		out = append(out, b)
	}

	return out
}
