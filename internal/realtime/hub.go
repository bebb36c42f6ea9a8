package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"ridedispatch/internal/domain"
)

var (
	// ErrHandleNotFound is returned when no live connection holds the handle.
	ErrHandleNotFound = errors.New("connection handle not found")

	// ErrSlowConsumer is returned when a connection's send buffer is full.
	ErrSlowConsumer = errors.New("connection send buffer full")

	// ErrHubClosed is returned when the hub no longer accepts connections.
	ErrHubClosed = errors.New("hub closed")
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 << 10
	presenceWait   = 5 * time.Second
)

// Presence records which handle a participant is reachable through.
type Presence interface {
	Bind(ctx context.Context, role domain.Role, participantID, handle string) error
	Unbind(ctx context.Context, role domain.Role, participantID, handle string) error
}

// LocationUpdater stores captain positions reported over the socket.
type LocationUpdater interface {
	UpdateLocation(ctx context.Context, captainID string, loc domain.Location) error
}

// HubConfig tunes the hub.
type HubConfig struct {
	SendBuffer     int
	AllowedOrigins []string // empty allows same-origin requests only
}

// Hub owns every websocket connection served by this process.
type Hub struct {
	presence  Presence
	locations LocationUpdater
	cfg       HubConfig
	upgrader  websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*client
	closed  bool
}

// NewHub creates a new Hub.
func NewHub(presence Presence, locations LocationUpdater, cfg HubConfig) *Hub {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 32
	}
	h := &Hub{
		presence:  presence,
		locations: locations,
		cfg:       cfg,
		clients:   make(map[string]*client),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	// Without an allowlist the upgrader's own same-origin check applies.
	if len(cfg.AllowedOrigins) > 0 {
		h.upgrader.CheckOrigin = h.checkOrigin
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// Serve upgrades the request and binds the connection to the participant.
// The caller must have authenticated the participant already.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, role domain.Role, participantID string) error {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, ErrHubClosed.Error(), http.StatusServiceUnavailable)
		return ErrHubClosed
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := newClient(h, conn, role, participantID)
	if err := h.register(c); err != nil {
		c.close()
		return err
	}

	log.Printf("[WS] %s %s connected handle=%s", role, participantID, c.handle)

	go c.writePump()
	go c.readPump()
	return nil
}

func (h *Hub) register(c *client) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrHubClosed
	}
	h.clients[c.handle] = c
	h.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), presenceWait)
	defer cancel()

	if err := h.presence.Bind(ctx, c.role, c.participantID, c.handle); err != nil {
		h.mu.Lock()
		delete(h.clients, c.handle)
		h.mu.Unlock()
		return err
	}
	return nil
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c.handle]
	delete(h.clients, c.handle)
	h.mu.Unlock()

	c.close()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), presenceWait)
	defer cancel()

	if err := h.presence.Unbind(ctx, c.role, c.participantID, c.handle); err != nil {
		log.Printf("[WS] %s %s: failed to unbind handle=%s: %v", c.role, c.participantID, c.handle, err)
	}
	log.Printf("[WS] %s %s disconnected handle=%s", c.role, c.participantID, c.handle)
}

// Send enqueues an event for the connection behind handle. It never waits
// on the network.
func (h *Hub) Send(ctx context.Context, handle, event string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.RLock()
	c, ok := h.clients[handle]
	h.mu.RUnlock()
	if !ok {
		return ErrHandleNotFound
	}

	data, err := encode(event, payload)
	if err != nil {
		return err
	}
	return c.enqueue(data)
}

// Close disconnects every client and rejects new connections.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.unregister(c)
	}
}

// Len returns the number of live connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// message is the wire envelope in both directions.
type message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(message{Event: event, Data: data})
}

func newHandle() string {
	return uuid.New().String()
}
