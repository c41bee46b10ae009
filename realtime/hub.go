// Package realtime pushes sort progress to websocket clients.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	EventSort = "sort"

	StatusSorted   = "sorted"
	StatusUnsorted = "unsorted"
	StatusFailed   = "failed"
)

// Event represents a message sent to websocket clients
type Event struct {
	Type      string `json:"type"`
	Path      string `json:"path,omitempty"`
	Code      string `json:"code,omitempty"`
	Status    string `json:"status,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub is a simple pubsub for websocket clients. Run must be running for
// clients to connect.
type Hub struct {
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	done       chan struct{}
	mu         sync.RWMutex

	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewHub builds a hub accepting browsers from allowedOrigins. Clients that
// send no Origin header are always accepted.
func NewHub(allowedOrigins []string, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}
	return &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origins["*"] || origins[origin]
			},
		},
		log: logger.Named("realtime"),
	}
}

// Run delivers broadcasts until ctx is cancelled, then disconnects every
// client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- message:
				default:
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.mu.Unlock()
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues event for every client. It never blocks; events are
// dropped when the queue is full.
func (h *Hub) Broadcast(event Event) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}
	encoded, err := json.Marshal(event)
	if err != nil {
		h.log.Warn("failed to marshal event", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- encoded:
	default:
		h.log.Warn("dropping event, broadcast channel full", zap.String("type", event.Type))
	}
}

// ServeWS upgrades the connection and registers a client
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &client{conn: conn, send: make(chan []byte, 256)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	// writer
	go func() {
		for msg := range c.send {
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
		c.conn.Close()
	}()

	// reader (just consume pings/close)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
