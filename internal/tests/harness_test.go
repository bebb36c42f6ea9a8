package tests

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"github.com/gorilla/websocket"

	"ridedispatch/internal/app"
	"ridedispatch/internal/domain"
	"ridedispatch/internal/handler"
	"ridedispatch/internal/maps"
	"ridedispatch/internal/middleware"
	"ridedispatch/internal/realtime"
	"ridedispatch/internal/service"
)

const testSecret = "integration-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

// harness runs the full HTTP and websocket stack against in-memory stores.
type harness struct {
	t         *testing.T
	server    *httptest.Server
	hub       *realtime.Hub
	rides     *MockRideRepository
	presence  *MockPresenceStore
	locations *MockLocationStore
	oracle    *StubOracle
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	rides := NewMockRideRepository()
	users := NewMockUserRepository()
	users.AddUser(&domain.User{ID: "user-1", Name: "Asha", Phone: "+911111111111"})
	captains := NewMockCaptainRepository()
	for _, id := range []string{"cap-1", "cap-2", "cap-3"} {
		captains.AddCaptain(&domain.Captain{
			ID:           id,
			Name:         "Captain " + id,
			VehicleClass: domain.VehicleClassStandard,
			VehiclePlate: "KA-" + id,
		})
	}
	presence := NewMockPresenceStore()
	locations := NewMockLocationStore()
	oracle := &StubOracle{Route: maps.Route{DistanceMeters: 5000, DurationSeconds: 600}}

	hub := realtime.NewHub(presence, locations, realtime.HubConfig{SendBuffer: 16})
	fares := service.NewFareService(oracle, nil)
	rideService := service.NewRideService(service.RideServiceDeps{
		RideRepo:    rides,
		UserRepo:    users,
		CaptainRepo: captains,
		Fares:       fares,
		Codes:       service.NewCodeGenerator(),
		Broadcaster: service.NewDispatchService(presence, hub, service.DispatchConfig{DeliveryTimeout: time.Second}),
		Notifier:    service.NewNotificationService(presence, hub, time.Second),
	})

	router := app.NewRouter(app.RouterDeps{
		RideHandler:   handler.NewRideHandler(rideService, fares),
		SocketHandler: handler.NewSocketHandler(hub),
		Authenticator: middleware.NewAuthenticator(testSecret),
	})
	server := httptest.NewServer(app.WithCORS(router, nil))

	t.Cleanup(func() {
		hub.Close()
		server.Close()
	})

	return &harness{
		t:         t,
		server:    server,
		hub:       hub,
		rides:     rides,
		presence:  presence,
		locations: locations,
		oracle:    oracle,
	}
}

func signToken(id string, role domain.Role) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  id,
		"role": string(role),
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
}

func token(t *testing.T, id string, role domain.Role) string {
	t.Helper()
	signed, err := signToken(id, role)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

// connect opens a websocket as the participant and waits until presence is bound.
func (h *harness) connect(id string, role domain.Role) *websocket.Conn {
	h.t.Helper()

	wsURL := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/ws?token=" + url.QueryEscape(token(h.t, id, role))
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		h.t.Fatalf("dial as %s %s: %v", role, id, err)
	}
	h.t.Cleanup(func() { conn.Close() })

	waitFor(h.t, func() bool { return h.presence.IsBound(role, id) })
	return conn
}

// do sends a JSON request as the participant. An empty id sends no token.
func (h *harness) do(method, path, id string, role domain.Role, body any) (int, []byte) {
	h.t.Helper()
	code, data, err := h.send(method, path, id, role, body)
	if err != nil {
		h.t.Fatalf("%s %s: %v", method, path, err)
	}
	return code, data
}

// send is do without failing the test, for use off the test goroutine.
func (h *harness) send(method, path, id string, role domain.Role, body any) (int, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, nil, err
		}
	}
	req, err := http.NewRequest(method, h.server.URL+path, &buf)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if id != "" {
		signed, err := signToken(id, role)
		if err != nil {
			return 0, nil, err
		}
		req.Header.Set("Authorization", "Bearer "+signed)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, data, nil
}

func (h *harness) createRide(class string) handler.RideResponse {
	h.t.Helper()

	code, body := h.do(http.MethodPost, "/v1/rides", "user-1", domain.RoleUser, map[string]string{
		"pickup":        "A",
		"destination":   "B",
		"vehicle_class": class,
	})
	if code != http.StatusCreated {
		h.t.Fatalf("create ride: expected 201, got %d: %s", code, body)
	}
	return decodeRide(h.t, body)
}

func decodeRide(t *testing.T, body []byte) handler.RideResponse {
	t.Helper()
	var ride handler.RideResponse
	if err := json.Unmarshal(body, &ride); err != nil {
		t.Fatalf("decode ride: %v (%s)", err, body)
	}
	return ride
}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// readEvent reads from conn until the named event arrives, skipping others.
func readEvent(t *testing.T, conn *websocket.Conn, event string) json.RawMessage {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", event, err)
		}
		var msg envelope
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("decode envelope: %v", err)
		}
		if msg.Event == event {
			return msg.Data
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
