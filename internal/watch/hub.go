package watch

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// writeWait bounds each broadcast write so a stalled peer with a full socket
// buffer cannot wedge the hub; it times out and is dropped instead.
var writeWait = 5 * time.Second

// Message is the envelope pushed to connected dashboards.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Hub fans analytics-change notifications out to every connected dashboard.
// Clients only listen; inbound frames are drained and discarded.
type Hub struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Same-origin dashboard; notifications carry no secrets.
				return true
			},
		},
		log: log,
	}
}

func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()
	h.log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("dashboard connected")

	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.clients, conn)
			h.mu.Unlock()
			conn.Close()
			h.log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("dashboard disconnected")
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Broadcast sends the message to all connected clients, dropping any whose
// write fails or times out.
func (h *Hub) Broadcast(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			h.log.Debug().Err(err).Msg("dropping websocket client")
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// ClientCount reports the number of connected dashboards.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
