package postgres

import (
	"context"
	"database/sql"
	"errors"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/repository"
)

// CaptainRepository is a PostgreSQL implementation of repository.CaptainRepository.
type CaptainRepository struct {
	q Querier
}

// NewCaptainRepository creates a new PostgreSQL captain repository.
func NewCaptainRepository(db *sql.DB) *CaptainRepository {
	return &CaptainRepository{q: db}
}

// GetByID retrieves a captain by ID.
func (r *CaptainRepository) GetByID(ctx context.Context, id string) (*domain.Captain, error) {
	query := `
		SELECT id, COALESCE(name, ''), COALESCE(phone, ''), vehicle_class,
			COALESCE(vehicle_color, ''), COALESCE(vehicle_plate, ''), COALESCE(vehicle_capacity, 0)
		FROM captains WHERE id = $1
	`

	var captain domain.Captain
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&captain.ID,
		&captain.Name,
		&captain.Phone,
		&captain.VehicleClass,
		&captain.VehicleColor,
		&captain.VehiclePlate,
		&captain.VehicleCapacity,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return &captain, nil
}
