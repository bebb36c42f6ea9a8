package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/maps"
)

// DistanceOracle resolves distance and travel time between two locations.
type DistanceOracle interface {
	DistanceTime(ctx context.Context, origin, destination string) (*maps.Route, error)
}

// Ensure the Google implementation satisfies DistanceOracle.
var _ DistanceOracle = (*maps.DistanceService)(nil)

// Rate is the pricing of one vehicle class.
type Rate struct {
	Base      float64
	PerKm     float64
	PerMinute float64
}

// Amount prices a route, rounding half away from zero to whole currency units.
func (r Rate) Amount(route maps.Route) int64 {
	km := float64(route.DistanceMeters) / 1000
	minutes := float64(route.DurationSeconds) / 60
	return int64(math.Round(r.Base + km*r.PerKm + minutes*r.PerMinute))
}

// RateTable maps each vehicle class to its rate.
type RateTable map[domain.VehicleClass]Rate

// Validate reports whether every vehicle class has a rate that prices any
// trip, including a zero-length one, at one currency unit or more.
func (t RateTable) Validate() error {
	for _, class := range domain.VehicleClasses {
		rate, ok := t[class]
		if !ok {
			return fmt.Errorf("%w: no rate for %s", ErrInvalidRateTable, class)
		}
		if rate.Base < 1 {
			return fmt.Errorf("%w: %s base must be at least 1, got %v", ErrInvalidRateTable, class, rate.Base)
		}
		if rate.PerKm < 0 || rate.PerMinute < 0 {
			return fmt.Errorf("%w: %s per-km and per-minute must not be negative", ErrInvalidRateTable, class)
		}
	}
	return nil
}

// DefaultRateTable returns the standard rates.
func DefaultRateTable() RateTable {
	return RateTable{
		domain.VehicleClassEconomy:  {Base: 20, PerKm: 8, PerMinute: 1.5},
		domain.VehicleClassStandard: {Base: 30, PerKm: 10, PerMinute: 2},
		domain.VehicleClassPremium:  {Base: 50, PerKm: 15, PerMinute: 3},
	}
}

// FareEstimate holds the quote for every class along with the route it was computed from.
type FareEstimate struct {
	Fares map[domain.VehicleClass]int64
	Route maps.Route
}

// FareService computes fare quotes.
type FareService struct {
	oracle DistanceOracle
	rates  RateTable
}

// NewFareService creates a new FareService. A nil rate table uses DefaultRateTable.
func NewFareService(oracle DistanceOracle, rates RateTable) *FareService {
	if rates == nil {
		rates = DefaultRateTable()
	}
	return &FareService{
		oracle: oracle,
		rates:  rates,
	}
}

// Estimate quotes every vehicle class for the trip. The oracle is called exactly once.
func (s *FareService) Estimate(ctx context.Context, pickup, destination string) (*FareEstimate, error) {
	if strings.TrimSpace(pickup) == "" {
		return nil, ErrInvalidPickup
	}
	if strings.TrimSpace(destination) == "" {
		return nil, ErrInvalidDestination
	}

	route, err := s.oracle.DistanceTime(ctx, pickup, destination)
	if err != nil {
		if errors.Is(err, maps.ErrRouteNotFound) {
			return nil, ErrUnresolvableRoute
		}
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}

	fares := make(map[domain.VehicleClass]int64, len(s.rates))
	for class, rate := range s.rates {
		amount := rate.Amount(*route)
		if amount <= 0 {
			log.Printf("[FARE] %s priced at %d for %dm/%ds, rejecting", class, amount, route.DistanceMeters, route.DurationSeconds)
			return nil, fmt.Errorf("%w: %s priced at %d", ErrNonPositiveFare, class, amount)
		}
		fares[class] = amount
	}

	return &FareEstimate{
		Fares: fares,
		Route: *route,
	}, nil
}
