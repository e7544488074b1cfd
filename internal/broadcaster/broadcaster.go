package broadcaster

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"bridgeflow-backend/internal/utils"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Config holds hub configuration
type Config struct {
	MaxClients      int           `json:"maxClients"`      // Maximum clients (default: 1000)
	BufferSize      int           `json:"bufferSize"`      // Buffered messages per client (default: 16)
	DropSlowClients bool          `json:"dropSlowClients"` // Disconnect clients whose buffer is full
	PingInterval    time.Duration `json:"pingInterval"`
	WriteTimeout    time.Duration `json:"writeTimeout"`
}

// DefaultConfig returns default hub configuration
func DefaultConfig() Config {
	return Config{
		MaxClients:      utils.EnvInt("WS_MAX_CLIENTS", 1000),
		BufferSize:      utils.EnvInt("WS_BUFFER_SIZE", 16),
		DropSlowClients: true,
		PingInterval:    54 * time.Second,
		WriteTimeout:    10 * time.Second,
	}
}

// Message is the envelope every pushed payload travels in
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Client is one WebSocket connection
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// ID returns the client's id
func (c *Client) ID() string {
	return c.id
}

// Hub fans dashboard snapshots out to WebSocket clients. New clients get the latest
// snapshot right after connecting.
type Hub struct {
	config     Config
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
	upgrader   websocket.Upgrader
	logger     *zap.Logger

	mu     sync.RWMutex
	latest []byte
}

// NewHub creates a hub. Start must run for clients to be served.
func NewHub(config Config, logger *zap.Logger) *Hub {
	if config.BufferSize <= 0 {
		config.BufferSize = 16
	}
	if config.PingInterval <= 0 {
		config.PingInterval = 54 * time.Second
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 10 * time.Second
	}
	return &Hub{
		config:     config,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 8),
		done:       make(chan struct{}),
		logger:     utils.ComponentLogger(logger, utils.BroadcasterComponent),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // CORS is enforced by the HTTP layer
			},
		},
	}
}

// Start runs the hub loop until ctx is done, then disconnects every client
func (h *Hub) Start(ctx context.Context) {
	defer close(h.done)
	h.logger.Info("Hub started", zap.Int("maxClients", h.config.MaxClients))

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			h.logger.Info("Hub stopped")
			return

		case c := <-h.register:
			h.handleRegister(c)

		case c := <-h.unregister:
			h.handleUnregister(c)

		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

func (h *Hub) handleRegister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.config.MaxClients > 0 && len(h.clients) >= h.config.MaxClients {
		h.logger.Warn("Client limit reached, rejecting connection", zap.String("client", c.id))
		close(c.send)
		return
	}
	h.clients[c] = true

	if h.latest != nil {
		c.send <- h.latest // fresh buffer, cannot block
	}
	h.logger.Debug("Client connected", zap.String("client", c.id), zap.Int("clients", len(h.clients)))
}

func (h *Hub) handleUnregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		h.logger.Debug("Client disconnected", zap.String("client", c.id), zap.Int("clients", len(h.clients)))
	}
}

func (h *Hub) fanOut(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	dropped := 0
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			if h.config.DropSlowClients {
				delete(h.clients, c)
				close(c.send)
				dropped++
			}
		}
	}
	if dropped > 0 {
		h.logger.Warn("Dropped slow clients", zap.Int("dropped", dropped), zap.Int("clients", len(h.clients)))
	}
}

// Publish wraps data in a Message, keeps it as the latest snapshot and queues it for every client
func (h *Hub) Publish(msgType string, data interface{}) error {
	payload, err := json.Marshal(Message{Type: msgType, Data: data})
	if err != nil {
		return utils.WrapError(err, utils.ErrorTypeInternal, "ENCODE_FAILED", "failed to encode snapshot", utils.BroadcasterComponent)
	}

	h.mu.Lock()
	h.latest = payload
	h.mu.Unlock()

	select {
	case h.broadcast <- payload:
	default:
		h.logger.Warn("Broadcast queue full, clients will catch up on the next snapshot", zap.String("type", msgType))
	}
	return nil
}

// ServeWS upgrades the request to a WebSocket connection and registers the client
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("WebSocket upgrade failed", zap.Error(err))
		return
	}

	c := &Client{
		id:   newClientID(),
		conn: conn,
		send: make(chan []byte, h.config.BufferSize),
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go h.writePump(c)
	go h.readPump(c)
}

func newClientID() string {
	return "client_" + uuid.NewString()
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// writePump drains the client's queue into the connection and keeps it alive with pings
func (h *Hub) writePump(c *Client) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client input and unregisters the client once the connection drops
func (h *Hub) readPump(c *Client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()

	readWait := h.config.PingInterval + h.config.WriteTimeout
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(readWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
