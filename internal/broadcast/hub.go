package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xtrntr/cadran/internal/models"
)

const writeWait = 5 * time.Second

// Message is the frame pushed to websocket clients
type Message struct {
	Type  string           `json:"type"` // "snapshot" or "event"
	Lots  []models.Lot     `json:"lots,omitempty"`
	Event *models.LotEvent `json:"event,omitempty"`
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub pushes lot events and periodic full snapshots to every connected browser
type Hub struct {
	upgrader websocket.Upgrader
	snapshot func() []models.Lot
	logger   *slog.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHub creates a hub; snapshot supplies the lots sent on connect and on every refresh
func NewHub(snapshot func() []models.Lot, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins in development
			},
		},
		snapshot: snapshot,
		logger:   logger.With(slog.String("caller", "Hub")),
		clients:  make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the connection and keeps it registered until the peer goes away
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade connection", slog.Any("error", err))
		return
	}

	c := &client{conn: conn}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	// Send initial snapshot
	if data, err := json.Marshal(Message{Type: "snapshot", Lots: h.snapshot()}); err == nil {
		if err := c.write(data); err != nil {
			h.remove(c)
			return
		}
	}

	// Keep connection alive and handle disconnection
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.remove(c)
			return
		}
	}
}

// HandleLotEvent pushes ev to every client
func (h *Hub) HandleLotEvent(_ context.Context, ev models.LotEvent) error {
	data, err := json.Marshal(Message{Type: "event", Event: &ev})
	if err != nil {
		return fmt.Errorf("failed to marshal lot event: %w", err)
	}
	h.broadcast(data)
	return nil
}

// BroadcastSnapshot pushes every lot to every client
func (h *Hub) BroadcastSnapshot() {
	data, err := json.Marshal(Message{Type: "snapshot", Lots: h.snapshot()})
	if err != nil {
		h.logger.Error("failed to marshal snapshot", slog.Any("error", err))
		return
	}
	h.broadcast(data)
}

// Run refreshes every client with a full snapshot each interval until ctx is done
func (h *Hub) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.BroadcastSnapshot()
		}
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.conn.Close()
		delete(h.clients, c)
	}
}

func (h *Hub) broadcast(data []byte) {
	h.mu.RLock()
	var failed []*client
	for c := range h.clients {
		if err := c.write(data); err != nil {
			h.logger.Warn("failed to send message", slog.Any("error", err))
			failed = append(failed, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range failed {
		h.remove(c)
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.conn.Close()
}
