package repository

import (
	"context"

	"ridedispatch/internal/domain"
)

// CaptainRepository defines the read operations for captains.
type CaptainRepository interface {
	// GetByID retrieves a captain by ID.
	GetByID(ctx context.Context, id string) (*domain.Captain, error)
}

// UserRepository defines the read operations for users.
type UserRepository interface {
	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id string) (*domain.User, error)
}
