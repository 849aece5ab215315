package transport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/smart-alarm/internal/version"
)

// newBridge starts a websocket server that echoes every message with an "echo:" prefix.
func newBridge(t *testing.T) string {
	t.Helper()

	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "operator" || pass != "secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)

			return
		}

		if r.Header.Get("User-Agent") != version.UserAgent() {
			http.Error(w, "bad agent", http.StatusBadRequest)

			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		defer func() {
			_ = conn.Close()
		}()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}

			if err = conn.WriteMessage(websocket.TextMessage, append([]byte("echo:"), data...)); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// TestOpenWebSocket checks the round trip through a bridge with basic auth.
func TestOpenWebSocket(t *testing.T) {
	t.Parallel()

	url := newBridge(t)

	s, err := OpenWebSocket(t.Context(), WebSocketOptions{
		URL:      url,
		Username: "operator",
		Password: "secret",
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = s.Close()
	})

	_, err = s.Write([]byte("ping"))
	require.NoError(t, err)
	require.NoError(t, s.Flush())

	var got []byte

	require.Eventually(t, func() bool {
		drain(s, &got)

		return len(got) == len("echo:ping")
	}, 2*time.Second, time.Millisecond)

	require.Equal(t, "echo:ping", string(got))
}

// TestOpenWebSocketErrors covers bad schemes and rejected credentials.
func TestOpenWebSocketErrors(t *testing.T) {
	t.Parallel()

	_, err := OpenWebSocket(t.Context(), WebSocketOptions{URL: "http://example.com/serial"})
	require.ErrorIs(t, err, errUnsupportedScheme)

	url := newBridge(t)

	_, err = OpenWebSocket(t.Context(), WebSocketOptions{
		URL:      url,
		Username: "operator",
		Password: "wrong",
	})
	require.ErrorContains(t, err, "HTTP 401")
}
