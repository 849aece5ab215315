package transport

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/oshokin/smart-alarm/internal/version"
)

// handshakeTimeout bounds the websocket upgrade.
const handshakeTimeout = 10 * time.Second

var errUnsupportedScheme = errors.New("unsupported URL scheme (use ws:// or wss://)")

// WebSocketOptions configures OpenWebSocket.
type WebSocketOptions struct {
	// URL is the ws:// or wss:// address of the serial bridge.
	URL string
	// Username and Password enable HTTP basic auth when both are set.
	Username string
	Password string
	// SkipVerify disables certificate verification for wss://.
	SkipVerify bool
}

// OpenWebSocket dials a websocket serial bridge.
func OpenWebSocket(ctx context.Context, opts WebSocketOptions) (*Stream, error) {
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse websocket url: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("%s: %w", u.Scheme, errUnsupportedScheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}

	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: opts.SkipVerify, //nolint:gosec // Opt-in for bridges with self-signed certificates.
		}
	}

	headers := http.Header{}
	headers.Set("User-Agent", version.UserAgent())

	if opts.Username != "" && opts.Password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(opts.Username + ":" + opts.Password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	conn, resp, err := dialer.DialContext(ctx, opts.URL, headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial websocket (HTTP %d): %w", resp.StatusCode, err)
		}

		return nil, fmt.Errorf("dial websocket: %w", err)
	}

	return NewStream(&wsConn{conn: conn}), nil
}

// wsConn presents a websocket as a byte stream.
// Each flush becomes one binary message; text and binary messages are both accepted.
type wsConn struct {
	conn *websocket.Conn
	// buf holds the unread tail of the last message. Only the reader goroutine touches it.
	buf []byte

	writeMu sync.Mutex
}

func (w *wsConn) Read(p []byte) (int, error) {
	for len(w.buf) == 0 {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			return 0, err
		}

		if messageType != websocket.BinaryMessage && messageType != websocket.TextMessage {
			continue
		}

		w.buf = data
	}

	n := copy(p, w.buf)
	w.buf = w.buf[n:]

	return n, nil
}

func (w *wsConn) Write(p []byte) (int, error) {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}

	return len(p), nil
}

func (w *wsConn) Close() error {
	w.writeMu.Lock()
	_ = w.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	w.writeMu.Unlock()

	return w.conn.Close()
}
