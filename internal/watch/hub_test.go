package watch

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, hub *Hub) (*websocket.Conn, func()) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(hub.HandleWS))

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return hub.ClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	return conn, func() {
		conn.Close()
		server.Close()
	}
}

func TestHubBroadcastsToConnectedClients(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	conn, cleanup := dialHub(t, hub)
	defer cleanup()

	hub.Broadcast(Message{Type: "analytics_updated"})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "analytics_updated", msg.Type)
}

// A peer that stops reading eventually fills its socket buffers; broadcast
// writes must time out and evict it rather than block the hub forever.
func TestHubEvictsStalledClient(t *testing.T) {
	prev := writeWait
	writeWait = 50 * time.Millisecond
	defer func() { writeWait = prev }()

	hub := NewHub(zerolog.Nop())
	// Connected but never reading.
	_, cleanup := dialHub(t, hub)
	defer cleanup()

	payload := strings.Repeat("x", 256*1024)
	require.Eventually(t, func() bool {
		hub.Broadcast(Message{Type: "analytics_updated", Payload: payload})
		return hub.ClientCount() == 0
	}, 10*time.Second, 10*time.Millisecond)
}

func TestHubDropsClosedClients(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	conn, cleanup := dialHub(t, hub)
	defer cleanup()

	conn.Close()

	require.Eventually(t, func() bool {
		hub.Broadcast(Message{Type: "analytics_updated"})
		return hub.ClientCount() == 0
	}, time.Second, 10*time.Millisecond)
}
