package domain

import (
	"strings"
	"time"
)

// RideStatus represents the current status of a ride.
type RideStatus string

const (
	RideStatusRequested RideStatus = "requested"
	RideStatusAccepted  RideStatus = "accepted"
	RideStatusOngoing   RideStatus = "ongoing"
	RideStatusCompleted RideStatus = "completed"
)

// Next returns the status that follows s in the lifecycle.
// The second return value is false for the terminal status.
func (s RideStatus) Next() (RideStatus, bool) {
	switch s {
	case RideStatusRequested:
		return RideStatusAccepted, true
	case RideStatusAccepted:
		return RideStatusOngoing, true
	case RideStatusOngoing:
		return RideStatusCompleted, true
	default:
		return "", false
	}
}

// VehicleClass is the service class a ride is priced and dispatched for.
type VehicleClass string

const (
	VehicleClassEconomy  VehicleClass = "economy"
	VehicleClassStandard VehicleClass = "standard"
	VehicleClassPremium  VehicleClass = "premium"
)

// VehicleClasses lists every class in display order.
var VehicleClasses = []VehicleClass{
	VehicleClassEconomy,
	VehicleClassStandard,
	VehicleClassPremium,
}

// ParseVehicleClass normalises a class name. The legacy names moto, auto
// and car map to economy, standard and premium.
func ParseVehicleClass(s string) (VehicleClass, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "economy", "moto":
		return VehicleClassEconomy, true
	case "standard", "auto":
		return VehicleClassStandard, true
	case "premium", "car":
		return VehicleClassPremium, true
	default:
		return "", false
	}
}

// Ride represents a ride request in the system.
type Ride struct {
	ID              string
	UserID          string
	Pickup          string
	Destination     string
	VehicleClass    VehicleClass
	Fare            int64
	DistanceMeters  int
	DurationSeconds int
	OTP             string // empty unless read with secret
	Status          RideStatus
	CaptainID       string // empty while requested
	CreatedAt       time.Time
	AcceptedAt      time.Time
	StartedAt       time.Time
	CompletedAt     time.Time

	// Populated by the service layer, never persisted with the ride.
	User    *User
	Captain *Captain
}

// Offer returns the view of the ride broadcast to captains.
func (r *Ride) Offer() RideOffer {
	offer := RideOffer{
		ID:              r.ID,
		UserID:          r.UserID,
		Pickup:          r.Pickup,
		Destination:     r.Destination,
		VehicleClass:    r.VehicleClass,
		Fare:            r.Fare,
		DistanceMeters:  r.DistanceMeters,
		DurationSeconds: r.DurationSeconds,
		Status:          r.Status,
		CreatedAt:       r.CreatedAt,
	}
	if r.User != nil {
		offer.UserName = r.User.Name
	}
	return offer
}

// RideOffer is the payload of a newRide event. It never carries the OTP.
type RideOffer struct {
	ID              string       `json:"id"`
	UserID          string       `json:"user_id"`
	UserName        string       `json:"user_name,omitempty"`
	Pickup          string       `json:"pickup"`
	Destination     string       `json:"destination"`
	VehicleClass    VehicleClass `json:"vehicle_class"`
	Fare            int64        `json:"fare"`
	DistanceMeters  int          `json:"distance_meters"`
	DurationSeconds int          `json:"duration_seconds"`
	Status          RideStatus   `json:"status"`
	CreatedAt       time.Time    `json:"created_at"`
}
