package tests

import (
	"context"
	"sync"
	"sync/atomic"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/maps"
	"ridedispatch/internal/redis"
	"ridedispatch/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK RIDE REPOSITORY
// ──────────────────────────────────────────────

// MockRideRepository is an in-memory ride ledger. ConditionalUpdate compares
// and writes under a single lock, the same guarantee the guarded SQL UPDATE gives.
type MockRideRepository struct {
	mu    sync.RWMutex
	rides map[string]*domain.Ride

	// Counters for verification
	CreateCallCount            int32
	ConditionalUpdateCallCount int32
	AppliedUpdateCount         int32

	// Error injection
	CreateError error
}

// NewMockRideRepository creates a new mock ride repository.
func NewMockRideRepository() *MockRideRepository {
	return &MockRideRepository{
		rides: make(map[string]*domain.Ride),
	}
}

func (m *MockRideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *ride
	copy.User, copy.Captain = nil, nil
	m.rides[ride.ID] = &copy
	return nil
}

func (m *MockRideRepository) GetByID(ctx context.Context, id string, withSecret bool) (*domain.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ride, ok := m.rides[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	// Return a copy to avoid mutation issues.
	copy := *ride
	if !withSecret {
		copy.OTP = ""
	}
	return &copy, nil
}

func (m *MockRideRepository) GetByIDForCaptain(ctx context.Context, id, captainID string, withSecret bool) (*domain.Ride, error) {
	ride, err := m.GetByID(ctx, id, withSecret)
	if err != nil {
		return nil, err
	}
	if ride.CaptainID != captainID {
		return nil, repository.ErrNotFound
	}
	return ride, nil
}

func (m *MockRideRepository) ConditionalUpdate(ctx context.Context, id string, expected domain.RideStatus, patch repository.RidePatch) (bool, error) {
	atomic.AddInt32(&m.ConditionalUpdateCallCount, 1)

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
	atomic.AddInt32(&m.AppliedUpdateCount, 1)
	return true, nil
}

// Ride returns a copy of the stored ride, including its OTP.
func (m *MockRideRepository) Ride(id string) *domain.Ride {
	ride, err := m.GetByID(context.Background(), id, true)
	if err != nil {
		return nil
	}
	return ride
}

// ──────────────────────────────────────────────
// MOCK USER / CAPTAIN REPOSITORIES
// ──────────────────────────────────────────────

// MockUserRepository is a mock implementation of UserRepository.
type MockUserRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User
}

// NewMockUserRepository creates a new mock user repository.
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[string]*domain.User)}
}

// AddUser adds a user to the mock repository.
func (m *MockUserRepository) AddUser(user *domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *user
	return &copy, nil
}

// MockCaptainRepository is a mock implementation of CaptainRepository.
type MockCaptainRepository struct {
	mu       sync.RWMutex
	captains map[string]*domain.Captain
}

// NewMockCaptainRepository creates a new mock captain repository.
func NewMockCaptainRepository() *MockCaptainRepository {
	return &MockCaptainRepository{captains: make(map[string]*domain.Captain)}
}

// AddCaptain adds a captain to the mock repository.
func (m *MockCaptainRepository) AddCaptain(captain *domain.Captain) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.captains[captain.ID] = captain
}

func (m *MockCaptainRepository) GetByID(ctx context.Context, id string) (*domain.Captain, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	captain, ok := m.captains[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *captain
	return &copy, nil
}

// ──────────────────────────────────────────────
// MOCK PRESENCE STORE
// ──────────────────────────────────────────────

// MockPresenceStore is an in-memory stand-in for the Redis presence hashes.
// It serves both the hub (Bind/Unbind) and the dispatcher (lookups).
type MockPresenceStore struct {
	mu       sync.Mutex
	bindings map[domain.Role]map[string]string
}

// NewMockPresenceStore creates a new mock presence store.
func NewMockPresenceStore() *MockPresenceStore {
	return &MockPresenceStore{
		bindings: map[domain.Role]map[string]string{
			domain.RoleUser:    {},
			domain.RoleCaptain: {},
		},
	}
}

func (m *MockPresenceStore) Bind(ctx context.Context, role domain.Role, participantID, handle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bindings[role][participantID] = handle
	return nil
}

func (m *MockPresenceStore) Unbind(ctx context.Context, role domain.Role, participantID, handle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bindings[role][participantID] == handle {
		delete(m.bindings[role], participantID)
	}
	return nil
}

func (m *MockPresenceStore) HandleFor(ctx context.Context, role domain.Role, participantID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	handle, ok := m.bindings[role][participantID]
	if !ok {
		return "", redis.ErrNotConnected
	}
	return handle, nil
}

func (m *MockPresenceStore) ReachableCaptains(ctx context.Context) ([]redis.Presence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	captains := make([]redis.Presence, 0, len(m.bindings[domain.RoleCaptain]))
	for id, handle := range m.bindings[domain.RoleCaptain] {
		captains = append(captains, redis.Presence{ParticipantID: id, Handle: handle})
	}
	return captains, nil
}

// IsBound reports whether the participant currently holds a handle.
func (m *MockPresenceStore) IsBound(role domain.Role, participantID string) bool {
	_, err := m.HandleFor(context.Background(), role, participantID)
	return err == nil
}

// ──────────────────────────────────────────────
// MOCK LOCATION STORE / DISTANCE ORACLE
// ──────────────────────────────────────────────

// MockLocationStore records captain positions.
type MockLocationStore struct {
	mu        sync.Mutex
	locations map[string]domain.Location
}

// NewMockLocationStore creates a new mock location store.
func NewMockLocationStore() *MockLocationStore {
	return &MockLocationStore{locations: make(map[string]domain.Location)}
}

func (m *MockLocationStore) UpdateLocation(ctx context.Context, captainID string, loc domain.Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations[captainID] = loc
	return nil
}

// Location returns the last stored position of a captain.
func (m *MockLocationStore) Location(captainID string) (domain.Location, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	loc, ok := m.locations[captainID]
	return loc, ok
}

// StubOracle returns a fixed route.
type StubOracle struct {
	Route     maps.Route
	Err       error
	CallCount int32
}

func (s *StubOracle) DistanceTime(ctx context.Context, origin, destination string) (*maps.Route, error) {
	atomic.AddInt32(&s.CallCount, 1)
	if s.Err != nil {
		return nil, s.Err
	}
	route := s.Route
	return &route, nil
}
