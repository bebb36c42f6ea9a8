package realtime

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"ridedispatch/internal/domain"
)

const (
	EventUpdateLocation = "update-location-captain"
	EventError          = "error"
)

type client struct {
	hub           *Hub
	conn          *websocket.Conn
	handle        string
	role          domain.Role
	participantID string

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(h *Hub, conn *websocket.Conn, role domain.Role, participantID string) *client {
	return &client{
		hub:           h,
		conn:          conn,
		handle:        newHandle(),
		role:          role,
		participantID: participantID,
		send:          make(chan []byte, h.cfg.SendBuffer),
		done:          make(chan struct{}),
	}
}

// enqueue never blocks. The send channel is never closed, so a late
// enqueue on a dead client is dropped with the client.
func (c *client) enqueue(data []byte) error {
	select {
	case <-c.done:
		return ErrHandleNotFound
	default:
	}

	select {
	case c.send <- data:
		return nil
	default:
		return ErrSlowConsumer
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

func (c *client) readPump() {
	defer c.hub.unregister(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WS] %s %s: read error: %v", c.role, c.participantID, err)
			}
			return
		}

		var msg message
		if err := json.Unmarshal(payload, &msg); err != nil {
			c.reject("Invalid message")
			continue
		}

		switch msg.Event {
		case EventUpdateLocation:
			c.handleLocation(msg.Data)
		default:
			c.reject("Unknown event")
		}
	}
}

type locationUpdate struct {
	Location *struct {
		Lat *float64 `json:"lat"`
		Lng *float64 `json:"lng"`
	} `json:"location"`
}

func (c *client) handleLocation(data json.RawMessage) {
	if c.role != domain.RoleCaptain {
		c.reject("Only captains report location")
		return
	}

	var update locationUpdate
	if err := json.Unmarshal(data, &update); err != nil || update.Location == nil ||
		update.Location.Lat == nil || update.Location.Lng == nil {
		c.reject("Invalid location data")
		return
	}

	loc := domain.Location{Lat: *update.Location.Lat, Lng: *update.Location.Lng}
	if !loc.Valid() {
		c.reject("Invalid location data")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), presenceWait)
	defer cancel()

	if err := c.hub.locations.UpdateLocation(ctx, c.participantID, loc); err != nil {
		log.Printf("[WS] captain %s: location update failed: %v", c.participantID, err)
	}
}

func (c *client) reject(reason string) {
	data, err := encode(EventError, map[string]string{"message": reason})
	if err != nil {
		return
	}
	if err := c.enqueue(data); err != nil {
		log.Printf("[WS] %s %s: dropped error event: %v", c.role, c.participantID, err)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}
