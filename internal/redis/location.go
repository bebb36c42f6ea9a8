package redis

import (
	"context"

	"github.com/redis/go-redis/v9"

	"ridedispatch/internal/domain"
)

const captainLocationKey = "captains:locations"

// LocationStore handles captain location operations in Redis.
type LocationStore struct {
	client *redis.Client
}

// NewLocationStore creates a new LocationStore.
func NewLocationStore(client *redis.Client) *LocationStore {
	return &LocationStore{client: client}
}

// UpdateLocation stores a captain's location using GEOADD.
func (s *LocationStore) UpdateLocation(ctx context.Context, captainID string, loc domain.Location) error {
	return s.client.GeoAdd(ctx, captainLocationKey, &redis.GeoLocation{
		Name:      captainID,
		Longitude: loc.Lng,
		Latitude:  loc.Lat,
	}).Err()
}
