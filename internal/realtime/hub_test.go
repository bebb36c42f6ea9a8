package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"ridedispatch/internal/domain"
)

type mockPresence struct {
	mu        sync.Mutex
	bindings  map[string]string
	unbinds   int
	bindError error
}

func newMockPresence() *mockPresence {
	return &mockPresence{bindings: make(map[string]string)}
}

func (m *mockPresence) Bind(ctx context.Context, role domain.Role, participantID, handle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bindError != nil {
		return m.bindError
	}
	m.bindings[string(role)+":"+participantID] = handle
	return nil
}

func (m *mockPresence) Unbind(ctx context.Context, role domain.Role, participantID, handle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unbinds++
	key := string(role) + ":" + participantID
	if m.bindings[key] == handle {
		delete(m.bindings, key)
	}
	return nil
}

func (m *mockPresence) handle(role domain.Role, participantID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bindings[string(role)+":"+participantID]
}

func (m *mockPresence) unbindCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unbinds
}

type mockLocations struct {
	mu      sync.Mutex
	updates map[string]domain.Location
}

func (m *mockLocations) UpdateLocation(ctx context.Context, captainID string, loc domain.Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updates == nil {
		m.updates = make(map[string]domain.Location)
	}
	m.updates[captainID] = loc
	return nil
}

func (m *mockLocations) get(captainID string) (domain.Location, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	loc, ok := m.updates[captainID]
	return loc, ok
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func startHub(t *testing.T) (*Hub, *mockPresence, *mockLocations, string) {
	t.Helper()
	presence := newMockPresence()
	locations := &mockLocations{}
	hub := NewHub(presence, locations, HubConfig{SendBuffer: 4})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role := domain.Role(r.URL.Query().Get("role"))
		_ = hub.Serve(w, r, role, r.URL.Query().Get("id"))
	}))
	t.Cleanup(func() {
		hub.Close()
		server.Close()
	})

	return hub, presence, locations, "ws" + strings.TrimPrefix(server.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return msg
}

func TestHub_SendUnknownHandle(t *testing.T) {
	hub := NewHub(newMockPresence(), &mockLocations{}, HubConfig{})

	err := hub.Send(context.Background(), "missing", "newRide", nil)
	if !errors.Is(err, ErrHandleNotFound) {
		t.Errorf("expected ErrHandleNotFound, got %v", err)
	}
}

func TestHub_SendFullBufferDoesNotBlock(t *testing.T) {
	hub := NewHub(newMockPresence(), &mockLocations{}, HubConfig{SendBuffer: 1})
	c := &client{
		hub:    hub,
		handle: "h1",
		send:   make(chan []byte, 1),
		done:   make(chan struct{}),
	}
	hub.clients[c.handle] = c

	if err := hub.Send(context.Background(), "h1", "newRide", map[string]string{"id": "r1"}); err != nil {
		t.Fatalf("first send: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- hub.Send(context.Background(), "h1", "newRide", map[string]string{"id": "r2"})
	}()

	select {
	case err := <-done:
		if !errors.Is(err, ErrSlowConsumer) {
			t.Errorf("expected ErrSlowConsumer, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Send blocked on a full buffer")
	}
}

func TestHub_SendCancelledContext(t *testing.T) {
	hub := NewHub(newMockPresence(), &mockLocations{}, HubConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := hub.Send(ctx, "any", "newRide", nil); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestHub_DeliversToConnectedClient(t *testing.T) {
	hub, presence, _, url := startHub(t)
	conn := dial(t, url+"/?role=captain&id=cap-1")

	waitFor(t, func() bool { return presence.handle(domain.RoleCaptain, "cap-1") != "" })
	handle := presence.handle(domain.RoleCaptain, "cap-1")

	if err := hub.Send(context.Background(), handle, "newRide", map[string]string{"id": "ride-1"}); err != nil {
		t.Fatalf("send: %v", err)
	}

	msg := readMessage(t, conn)
	if msg.Event != "newRide" {
		t.Errorf("expected newRide, got %s", msg.Event)
	}
	var data map[string]string
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data["id"] != "ride-1" {
		t.Errorf("expected ride-1, got %q", data["id"])
	}
}

func TestHub_CaptainLocationUpdate(t *testing.T) {
	_, presence, locations, url := startHub(t)
	conn := dial(t, url+"/?role=captain&id=cap-1")
	waitFor(t, func() bool { return presence.handle(domain.RoleCaptain, "cap-1") != "" })

	err := conn.WriteJSON(map[string]any{
		"event": EventUpdateLocation,
		"data":  map[string]any{"location": map[string]float64{"lat": 12.97, "lng": 77.59}},
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	waitFor(t, func() bool {
		_, ok := locations.get("cap-1")
		return ok
	})
	loc, _ := locations.get("cap-1")
	if loc.Lat != 12.97 || loc.Lng != 77.59 {
		t.Errorf("unexpected location %+v", loc)
	}
}

func TestHub_InvalidLocationGetsErrorEvent(t *testing.T) {
	_, presence, locations, url := startHub(t)
	conn := dial(t, url+"/?role=captain&id=cap-1")
	waitFor(t, func() bool { return presence.handle(domain.RoleCaptain, "cap-1") != "" })

	err := conn.WriteJSON(map[string]any{
		"event": EventUpdateLocation,
		"data":  map[string]any{"location": map[string]string{"lat": "north"}},
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	msg := readMessage(t, conn)
	if msg.Event != EventError {
		t.Errorf("expected error event, got %s", msg.Event)
	}
	if _, ok := locations.get("cap-1"); ok {
		t.Error("invalid location must not be stored")
	}
}

func TestHub_DisconnectUnbindsPresence(t *testing.T) {
	hub, presence, _, url := startHub(t)
	conn := dial(t, url+"/?role=user&id=user-1")
	waitFor(t, func() bool { return presence.handle(domain.RoleUser, "user-1") != "" })

	conn.Close()

	waitFor(t, func() bool { return presence.handle(domain.RoleUser, "user-1") == "" })
	waitFor(t, func() bool { return hub.Len() == 0 })
	if presence.unbindCount() != 1 {
		t.Errorf("expected 1 unbind, got %d", presence.unbindCount())
	}
}

func TestHub_RejectsCrossOriginByDefault(t *testing.T) {
	_, presence, _, url := startHub(t)

	header := http.Header{"Origin": {"https://evil.example"}}
	conn, resp, err := websocket.DefaultDialer.Dial(url+"/?role=user&id=user-1", header)
	if err == nil {
		conn.Close()
		t.Fatal("expected cross-origin upgrade to be refused")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403, got %+v", resp)
	}
	if presence.handle(domain.RoleUser, "user-1") != "" {
		t.Error("refused connection must not bind presence")
	}

	sameOrigin := http.Header{"Origin": {"http" + strings.TrimPrefix(url, "ws")}}
	conn, _, err = websocket.DefaultDialer.Dial(url+"/?role=user&id=user-1", sameOrigin)
	if err != nil {
		t.Fatalf("same-origin dial: %v", err)
	}
	conn.Close()
}

func TestHub_CheckOriginAllowlist(t *testing.T) {
	hub := NewHub(newMockPresence(), &mockLocations{}, HubConfig{AllowedOrigins: []string{"https://app.example"}})

	testCases := []struct {
		origin string
		want   bool
	}{
		{"https://app.example", true},
		{"https://evil.example", false},
		{"", false},
	}

	for _, tc := range testCases {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if tc.origin != "" {
			r.Header.Set("Origin", tc.origin)
		}
		if got := hub.upgrader.CheckOrigin(r); got != tc.want {
			t.Errorf("origin %q: expected %v, got %v", tc.origin, tc.want, got)
		}
	}
}
