package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/maps"
	"ridedispatch/internal/redis"
	"ridedispatch/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK RIDE REPOSITORY
// ──────────────────────────────────────────────

// mockRideRepository is an in-memory RideRepository. ConditionalUpdate
// checks and writes under one lock, like a single guarded UPDATE.
type mockRideRepository struct {
	mu    sync.RWMutex
	rides map[string]*domain.Ride

	CreateCallCount int32
	UpdateCallCount int32
	AppliedCount    int32

	CreateError error
	UpdateError error
	GetError    error
}

func newMockRideRepository() *mockRideRepository {
	return &mockRideRepository{rides: make(map[string]*domain.Ride)}
}

func (m *mockRideRepository) addRide(ride *domain.Ride) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *ride
	m.rides[ride.ID] = &copy
}

func (m *mockRideRepository) ride(id string) *domain.Ride {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ride, ok := m.rides[id]
	if !ok {
		return nil
	}
	copy := *ride
	return &copy
}

func (m *mockRideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.addRide(ride)
	return nil
}

func (m *mockRideRepository) GetByID(ctx context.Context, id string, withSecret bool) (*domain.Ride, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	ride := m.ride(id)
	if ride == nil {
		return nil, repository.ErrNotFound
	}
	if !withSecret {
		ride.OTP = ""
	}
	return ride, nil
}

func (m *mockRideRepository) GetByIDForCaptain(ctx context.Context, id, captainID string, withSecret bool) (*domain.Ride, error) {
	ride, err := m.GetByID(ctx, id, withSecret)
	if err != nil {
		return nil, err
	}
	if ride.CaptainID != captainID {
		return nil, repository.ErrNotFound
	}
	return ride, nil
}

func (m *mockRideRepository) ConditionalUpdate(ctx context.Context, id string, expected domain.RideStatus, patch repository.RidePatch) (bool, error) {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if m.UpdateError != nil {
		return false, m.UpdateError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[id]
	if !ok || ride.Status != expected {
		return false, nil
	}

	ride.Status = patch.Status
	if patch.CaptainID != "" {
		ride.CaptainID = patch.CaptainID
	}
	if !patch.AcceptedAt.IsZero() {
		ride.AcceptedAt = patch.AcceptedAt
	}
	if !patch.StartedAt.IsZero() {
		ride.StartedAt = patch.StartedAt
	}
	if !patch.CompletedAt.IsZero() {
		ride.CompletedAt = patch.CompletedAt
	}
	atomic.AddInt32(&m.AppliedCount, 1)
	return true, nil
}

// ──────────────────────────────────────────────
// MOCK USER / CAPTAIN REPOSITORIES
// ──────────────────────────────────────────────

type mockUserRepository struct {
	users map[string]*domain.User
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *user
	return &copy, nil
}

type mockCaptainRepository struct {
	captains map[string]*domain.Captain
}

func (m *mockCaptainRepository) GetByID(ctx context.Context, id string) (*domain.Captain, error) {
	captain, ok := m.captains[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *captain
	return &copy, nil
}

// ──────────────────────────────────────────────
// MOCK DISTANCE ORACLE
// ──────────────────────────────────────────────

type mockOracle struct {
	route     maps.Route
	err       error
	callCount int32
}

func (m *mockOracle) DistanceTime(ctx context.Context, origin, destination string) (*maps.Route, error) {
	atomic.AddInt32(&m.callCount, 1)
	if m.err != nil {
		return nil, m.err
	}
	route := m.route
	return &route, nil
}

// ──────────────────────────────────────────────
// MOCK REGISTRY / DELIVERER
// ──────────────────────────────────────────────

type mockRegistry struct {
	mu       sync.Mutex
	captains []redis.Presence
	users    map[string]string
	err      error
	calls    int32
}

func (m *mockRegistry) ReachableCaptains(ctx context.Context) ([]redis.Presence, error) {
	atomic.AddInt32(&m.calls, 1)
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]redis.Presence, len(m.captains))
	copy(out, m.captains)
	return out, nil
}

func (m *mockRegistry) HandleFor(ctx context.Context, role domain.Role, participantID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if role == domain.RoleUser {
		if handle, ok := m.users[participantID]; ok {
			return handle, nil
		}
	}
	for _, c := range m.captains {
		if role == domain.RoleCaptain && c.ParticipantID == participantID {
			return c.Handle, nil
		}
	}
	return "", redis.ErrNotConnected
}

type sentEvent struct {
	Handle  string
	Event   string
	Payload any
}

type mockDeliverer struct {
	mu     sync.Mutex
	sent   []sentEvent
	errs   map[string]error
	slow   map[string]bool // blocks until the context expires
	onSend func(handle string)
}

func (m *mockDeliverer) Send(ctx context.Context, handle, event string, payload any) error {
	if m.onSend != nil {
		m.onSend(handle)
	}
	if m.slow[handle] {
		<-ctx.Done()
		return ctx.Err()
	}
	if err := m.errs[handle]; err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentEvent{Handle: handle, Event: event, Payload: payload})
	return nil
}

func (m *mockDeliverer) events() []sentEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sentEvent, len(m.sent))
	copy(out, m.sent)
	return out
}

func (m *mockDeliverer) eventsFor(handle string) []sentEvent {
	var out []sentEvent
	for _, e := range m.events() {
		if e.Handle == handle {
			out = append(out, e)
		}
	}
	return out
}

// ──────────────────────────────────────────────
// FIXTURES
// ──────────────────────────────────────────────

// zeroReader yields an endless stream of zero bytes.
type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

type testEnv struct {
	rides     *mockRideRepository
	oracle    *mockOracle
	registry  *mockRegistry
	deliverer *mockDeliverer
	service   *RideService
}

func newTestEnv() *testEnv {
	rides := newMockRideRepository()
	oracle := &mockOracle{route: maps.Route{DistanceMeters: 5000, DurationSeconds: 600}}
	registry := &mockRegistry{users: map[string]string{"user-1": "user-handle"}}
	deliverer := &mockDeliverer{}

	svc := NewRideService(RideServiceDeps{
		RideRepo: rides,
		UserRepo: &mockUserRepository{users: map[string]*domain.User{
			"user-1": {ID: "user-1", Name: "Asha"},
		}},
		CaptainRepo: &mockCaptainRepository{captains: map[string]*domain.Captain{
			"cap-1": {ID: "cap-1", Name: "Ravi", VehiclePlate: "KA01"},
			"cap-2": {ID: "cap-2", Name: "Meera", VehiclePlate: "KA02"},
		}},
		Fares:       NewFareService(oracle, nil),
		Codes:       NewCodeGenerator(),
		Broadcaster: NewDispatchService(registry, deliverer, DispatchConfig{DeliveryTimeout: 100 * time.Millisecond}),
		Notifier:    NewNotificationService(registry, deliverer, 100*time.Millisecond),
	})

	return &testEnv{
		rides:     rides,
		oracle:    oracle,
		registry:  registry,
		deliverer: deliverer,
		service:   svc,
	}
}

func (e *testEnv) addRide(status domain.RideStatus, captainID string) *domain.Ride {
	ride := &domain.Ride{
		ID:           "ride-1",
		UserID:       "user-1",
		Pickup:       "A",
		Destination:  "B",
		VehicleClass: domain.VehicleClassStandard,
		Fare:         100,
		OTP:          "123456",
		Status:       status,
		CaptainID:    captainID,
		CreatedAt:    time.Now(),
	}
	e.rides.addRide(ride)
	return ride
}
