package redis

import (
	"context"

	"ridedispatch/internal/domain"
)

// LocationStoreInterface defines the interface for captain location operations.
type LocationStoreInterface interface {
	UpdateLocation(ctx context.Context, captainID string, loc domain.Location) error
}

// PresenceStoreInterface defines the interface for connection presence.
type PresenceStoreInterface interface {
	Bind(ctx context.Context, role domain.Role, participantID, handle string) error
	Unbind(ctx context.Context, role domain.Role, participantID, handle string) error
	HandleFor(ctx context.Context, role domain.Role, participantID string) (string, error)
	ReachableCaptains(ctx context.Context) ([]Presence, error)
}

// Ensure concrete types implement interfaces.
var (
	_ LocationStoreInterface = (*LocationStore)(nil)
	_ PresenceStoreInterface = (*PresenceStore)(nil)
)
