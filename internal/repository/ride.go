package repository

import (
	"context"
	"time"

	"ridedispatch/internal/domain"
)

// RidePatch holds the fields written by a conditional update.
// Zero values are left untouched.
type RidePatch struct {
	Status      domain.RideStatus
	CaptainID   string
	AcceptedAt  time.Time
	StartedAt   time.Time
	CompletedAt time.Time
}

// RideRepository defines the persistence operations for rides.
type RideRepository interface {
	// Create persists a new ride.
	Create(ctx context.Context, ride *domain.Ride) error

	// GetByID retrieves a ride by ID. The OTP is only populated when
	// withSecret is true.
	GetByID(ctx context.Context, id string, withSecret bool) (*domain.Ride, error)

	// GetByIDForCaptain retrieves a ride by ID only if it is bound to captainID.
	GetByIDForCaptain(ctx context.Context, id, captainID string, withSecret bool) (*domain.Ride, error)

	// ConditionalUpdate applies patch only if the ride's current status equals
	// expected. It reports whether the patch was applied.
	ConditionalUpdate(ctx context.Context, id string, expected domain.RideStatus, patch RidePatch) (bool, error)
}
