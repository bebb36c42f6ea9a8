package maps

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/newrelic/go-agent/v3/newrelic"
	"googlemaps.github.io/maps"
)

// ErrRouteNotFound is returned when either location cannot be resolved or
// no drivable route exists between them.
var ErrRouteNotFound = errors.New("route not found")

// Route is the distance and travel time between two locations.
type Route struct {
	DistanceMeters  int
	DurationSeconds int
}

// DistanceService resolves routes with the Google Distance Matrix API.
type DistanceService struct {
	client *maps.Client
}

// NewDistanceService creates a new DistanceService with the given API key.
// Extra client options are passed through, mainly so tests can point the
// client at a local server.
func NewDistanceService(apiKey string, opts ...maps.ClientOption) (*DistanceService, error) {
	opts = append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)
	client, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &DistanceService{client: client}, nil
}

// DistanceTime returns the driving distance and duration from origin to destination.
func (s *DistanceService) DistanceTime(ctx context.Context, origin, destination string) (*Route, error) {
	defer newrelic.FromContext(ctx).StartSegment("maps/DistanceMatrix").End()

	resp, err := s.client.DistanceMatrix(ctx, &maps.DistanceMatrixRequest{
		Origins:      []string{origin},
		Destinations: []string{destination},
		Mode:         maps.TravelModeDriving,
	})
	if err != nil {
		return nil, fmt.Errorf("maps api error: %w", err)
	}

	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 {
		return nil, ErrRouteNotFound
	}

	element := resp.Rows[0].Elements[0]
	switch strings.ToUpper(element.Status) {
	case "OK":
	case "NOT_FOUND", "ZERO_RESULTS":
		return nil, ErrRouteNotFound
	default:
		return nil, fmt.Errorf("maps api element status %s", element.Status)
	}

	return &Route{
		DistanceMeters:  element.Distance.Meters,
		DurationSeconds: int(element.Duration.Seconds()),
	}, nil
}
