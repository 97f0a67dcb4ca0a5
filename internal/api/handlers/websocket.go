package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/onnwee/barnes-hut-tree/internal/layout"
	"github.com/onnwee/barnes-hut-tree/internal/logger"
	"github.com/onnwee/barnes-hut-tree/internal/metrics"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 30 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 512

	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS middleware handles origins
		return true
	},
}

// WebSocketMessage is one frame sent to clients.
type WebSocketMessage struct {
	Type    string      `json:"type"` // "layout", "step"
	Payload interface{} `json:"payload"`
}

// StepMessage announces a step and carries the new positions.
type StepMessage struct {
	Result layout.StepResult `json:"result"`
	Layout layout.Document   `json:"layout"`
}

// DocumentSource renders the current layout for newly connected clients.
type DocumentSource interface {
	Document() layout.Document
}

// Client is one WebSocket connection.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// lastVersion is the newest layout version queued to this client.
	mu          sync.Mutex
	lastVersion uint64
}

// Hub tracks connected clients and fans layout updates out to them. It
// implements layout.Publisher.
type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan hubMessage
	done       chan struct{}

	mu sync.RWMutex
}

type hubMessage struct {
	version uint64
	data    []byte
}

// NewHub creates a hub. Run must be started before clients connect.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan hubMessage, 64),
		done:       make(chan struct{}),
	}
}

// Run owns the client set until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				h.dropLocked(c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketConnections.Inc()
			logger.Info("WebSocket client connected", "client_id", c.id, "total_clients", n)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				h.dropLocked(c)
				logger.Info("WebSocket client disconnected", "client_id", c.id, "total_clients", len(h.clients))
			}
			h.mu.Unlock()

		case m := <-h.broadcast:
			h.mu.Lock()
			sent := 0
			for c := range h.clients {
				if !c.queue(m.version, m.data) {
					// Slow consumer; it can reconnect for a fresh layout.
					logger.Warn("WebSocket client too slow, dropping", "client_id", c.id)
					h.dropLocked(c)
					continue
				}
				sent++
			}
			h.mu.Unlock()
			metrics.WebSocketMessagesSent.Add(float64(sent))
		}
	}
}

func (h *Hub) dropLocked(c *Client) {
	delete(h.clients, c)
	close(c.send)
	metrics.WebSocketConnections.Dec()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// PublishLayout broadcasts a step to every client. It never blocks the
// caller; when the broadcast queue is full the update is dropped, since a
// later one supersedes it.
func (h *Hub) PublishLayout(res layout.StepResult, doc layout.Document) {
	if h.ClientCount() == 0 {
		return
	}
	data, err := json.Marshal(WebSocketMessage{Type: "step", Payload: StepMessage{Result: res, Layout: doc}})
	if err != nil {
		logger.Error("Failed to marshal WebSocket step message", "error", err)
		return
	}
	select {
	case h.broadcast <- hubMessage{version: doc.Version, data: data}:
	default:
		logger.Warn("WebSocket broadcast queue full, dropping update", "version", doc.Version)
	}
}

// queue reports false when the client's buffer is full. Versions at or
// below the last queued one are skipped.
func (c *Client) queue(version uint64, data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if version != 0 && version <= c.lastVersion {
		return true
	}
	select {
	case c.send <- data:
		c.lastVersion = version
		return true
	default:
		return false
	}
}

// readPump discards client frames and keeps the read deadline fresh.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket unexpected close", "client_id", c.id, "error", err)
			}
			return
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// WebSocketHandler upgrades connections and attaches them to a hub.
type WebSocketHandler struct {
	hub    *Hub
	source DocumentSource
}

func NewWebSocketHandler(hub *Hub, source DocumentSource) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, source: source}
}

// HandleWebSocket handles GET /ws. The first frame is the full layout.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		logger.WarnContext(r.Context(), "Failed to upgrade to WebSocket", "error", err)
		return
	}

	c := &Client{
		id:   uuid.NewString(),
		hub:  h.hub,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	doc := h.source.Document()
	if data, err := json.Marshal(WebSocketMessage{Type: "layout", Payload: doc}); err == nil {
		c.queue(doc.Version, data)
	}
	select {
	case h.hub.register <- c:
	case <-h.hub.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// Hub returns the hub clients are attached to.
func (h *WebSocketHandler) Hub() *Hub {
	return h.hub
}
