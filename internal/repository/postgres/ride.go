package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/repository"
)

// RideRepository is a PostgreSQL implementation of repository.RideRepository.
type RideRepository struct {
	q Querier
}

// NewRideRepository creates a new PostgreSQL ride repository.
func NewRideRepository(db *sql.DB) *RideRepository {
	return &RideRepository{q: db}
}

const rideColumns = `id, user_id, pickup, destination, vehicle_class, fare, distance_meters, duration_seconds, otp, status, captain_id, created_at, accepted_at, started_at, completed_at`

// Create persists a new ride.
func (r *RideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	query := `
		INSERT INTO rides (` + rideColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.q.ExecContext(ctx, query,
		ride.ID,
		ride.UserID,
		ride.Pickup,
		ride.Destination,
		ride.VehicleClass,
		ride.Fare,
		ride.DistanceMeters,
		ride.DurationSeconds,
		ride.OTP,
		ride.Status,
		nullString(ride.CaptainID),
		ride.CreatedAt,
		nullTime(ride.AcceptedAt),
		nullTime(ride.StartedAt),
		nullTime(ride.CompletedAt),
	)

	return err
}

// GetByID retrieves a ride by ID.
func (r *RideRepository) GetByID(ctx context.Context, id string, withSecret bool) (*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1`
	return scanRide(r.q.QueryRowContext(ctx, query, id), withSecret)
}

// GetByIDForCaptain retrieves a ride by ID that is bound to the given captain.
func (r *RideRepository) GetByIDForCaptain(ctx context.Context, id, captainID string, withSecret bool) (*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1 AND captain_id = $2`
	return scanRide(r.q.QueryRowContext(ctx, query, id, captainID), withSecret)
}

// ConditionalUpdate applies patch in a single statement guarded by the
// expected status. Concurrent callers racing on the same transition see at
// most one applied update.
func (r *RideRepository) ConditionalUpdate(ctx context.Context, id string, expected domain.RideStatus, patch repository.RidePatch) (bool, error) {
	query := `
		UPDATE rides
		SET status = $1,
			captain_id = COALESCE($2, captain_id),
			accepted_at = COALESCE($3, accepted_at),
			started_at = COALESCE($4, started_at),
			completed_at = COALESCE($5, completed_at)
		WHERE id = $6 AND status = $7
	`

	result, err := r.q.ExecContext(ctx, query,
		patch.Status,
		nullString(patch.CaptainID),
		nullTime(patch.AcceptedAt),
		nullTime(patch.StartedAt),
		nullTime(patch.CompletedAt),
		id,
		expected,
	)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected == 1, nil
}

func scanRide(row *sql.Row, withSecret bool) (*domain.Ride, error) {
	var ride domain.Ride
	var captainID sql.NullString
	var acceptedAt, startedAt, completedAt sql.NullTime

	err := row.Scan(
		&ride.ID,
		&ride.UserID,
		&ride.Pickup,
		&ride.Destination,
		&ride.VehicleClass,
		&ride.Fare,
		&ride.DistanceMeters,
		&ride.DurationSeconds,
		&ride.OTP,
		&ride.Status,
		&captainID,
		&ride.CreatedAt,
		&acceptedAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	if !withSecret {
		ride.OTP = ""
	}
	if captainID.Valid {
		ride.CaptainID = captainID.String
	}
	if acceptedAt.Valid {
		ride.AcceptedAt = acceptedAt.Time
	}
	if startedAt.Valid {
		ride.StartedAt = startedAt.Time
	}
	if completedAt.Valid {
		ride.CompletedAt = completedAt.Time
	}

	return &ride, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
