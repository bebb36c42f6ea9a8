package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/middleware"
	"ridedispatch/internal/service"
)

// RideLifecycle is the ride operations exposed over HTTP.
type RideLifecycle interface {
	CreateRide(ctx context.Context, req service.CreateRideRequest) (*domain.Ride, error)
	GetRide(ctx context.Context, req service.GetRideRequest) (*domain.Ride, error)
	ConfirmRide(ctx context.Context, req service.ConfirmRideRequest) (*domain.Ride, error)
	StartRide(ctx context.Context, req service.StartRideRequest) (*domain.Ride, error)
	EndRide(ctx context.Context, req service.EndRideRequest) (*domain.Ride, error)
}

// FareQuoter prices a trip for every vehicle class.
type FareQuoter interface {
	Estimate(ctx context.Context, pickup, destination string) (*service.FareEstimate, error)
}

// Ensure the services satisfy the handler contracts.
var (
	_ RideLifecycle = (*service.RideService)(nil)
	_ FareQuoter    = (*service.FareService)(nil)
)

// RideHandler handles HTTP requests for rides.
type RideHandler struct {
	rides RideLifecycle
	fares FareQuoter
}

// NewRideHandler creates a new RideHandler.
func NewRideHandler(rides RideLifecycle, fares FareQuoter) *RideHandler {
	return &RideHandler{
		rides: rides,
		fares: fares,
	}
}

// CreateRideRequest is the HTTP request body for creating a ride.
type CreateRideRequest struct {
	Pickup       string `json:"pickup"`
	Destination  string `json:"destination"`
	VehicleClass string `json:"vehicle_class"`
	VehicleType  string `json:"vehicle_type,omitempty"` // legacy: moto, auto, car
}

// RideActionRequest is the HTTP request body for confirm and end.
type RideActionRequest struct {
	RideID string `json:"ride_id"`
}

// StartRideRequest is the HTTP request body for starting a ride.
type StartRideRequest struct {
	RideID string `json:"ride_id"`
	OTP    string `json:"otp"`
}

// FareResponse is the HTTP response for a fare quote.
type FareResponse struct {
	Fares           map[domain.VehicleClass]int64 `json:"fares"`
	DistanceMeters  int                           `json:"distance_meters"`
	DurationSeconds int                           `json:"duration_seconds"`
}

// UserResponse is the requester detail embedded in a ride.
type UserResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

// CaptainResponse is the captain detail embedded in a ride.
type CaptainResponse struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Phone           string `json:"phone,omitempty"`
	VehicleClass    string `json:"vehicle_class,omitempty"`
	VehicleColor    string `json:"vehicle_color,omitempty"`
	VehiclePlate    string `json:"vehicle_plate,omitempty"`
	VehicleCapacity int    `json:"vehicle_capacity,omitempty"`
}

// RideResponse is the HTTP representation of a ride.
type RideResponse struct {
	ID              string           `json:"id"`
	UserID          string           `json:"user_id"`
	User            *UserResponse    `json:"user,omitempty"`
	Pickup          string           `json:"pickup"`
	Destination     string           `json:"destination"`
	VehicleClass    string           `json:"vehicle_class"`
	Fare            int64            `json:"fare"`
	DistanceMeters  int              `json:"distance_meters"`
	DurationSeconds int              `json:"duration_seconds"`
	Status          string           `json:"status"`
	OTP             string           `json:"otp,omitempty"`
	CaptainID       string           `json:"captain_id,omitempty"`
	Captain         *CaptainResponse `json:"captain,omitempty"`
	CreatedAt       string           `json:"created_at"`
	AcceptedAt      string           `json:"accepted_at,omitempty"`
	StartedAt       string           `json:"started_at,omitempty"`
	CompletedAt     string           `json:"completed_at,omitempty"`
}

func newRideResponse(ride *domain.Ride) RideResponse {
	response := RideResponse{
		ID:              ride.ID,
		UserID:          ride.UserID,
		Pickup:          ride.Pickup,
		Destination:     ride.Destination,
		VehicleClass:    string(ride.VehicleClass),
		Fare:            ride.Fare,
		DistanceMeters:  ride.DistanceMeters,
		DurationSeconds: ride.DurationSeconds,
		Status:          string(ride.Status),
		OTP:             ride.OTP,
		CaptainID:       ride.CaptainID,
		CreatedAt:       formatTime(ride.CreatedAt),
		AcceptedAt:      formatTime(ride.AcceptedAt),
		StartedAt:       formatTime(ride.StartedAt),
		CompletedAt:     formatTime(ride.CompletedAt),
	}

	if ride.User != nil {
		response.User = &UserResponse{
			ID:    ride.User.ID,
			Name:  ride.User.Name,
			Phone: ride.User.Phone,
		}
	}
	if ride.Captain != nil {
		response.Captain = &CaptainResponse{
			ID:              ride.Captain.ID,
			Name:            ride.Captain.Name,
			Phone:           ride.Captain.Phone,
			VehicleClass:    string(ride.Captain.VehicleClass),
			VehicleColor:    ride.Captain.VehicleColor,
			VehiclePlate:    ride.Captain.VehiclePlate,
			VehicleCapacity: ride.Captain.VehicleCapacity,
		}
	}

	return response
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

// GetFare handles GET /v1/rides/fare
func (h *RideHandler) GetFare(c *gin.Context) {
	estimate, err := h.fares.Estimate(c.Request.Context(), c.Query("pickup"), c.Query("destination"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, FareResponse{
		Fares:           estimate.Fares,
		DistanceMeters:  estimate.Route.DistanceMeters,
		DurationSeconds: estimate.Route.DurationSeconds,
	})
}

// CreateRide handles POST /v1/rides
func (h *RideHandler) CreateRide(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	var req CreateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	class := req.VehicleClass
	if class == "" {
		class = req.VehicleType
	}

	ride, err := h.rides.CreateRide(c.Request.Context(), service.CreateRideRequest{
		UserID:       identity.ID,
		Pickup:       req.Pickup,
		Destination:  req.Destination,
		VehicleClass: class,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, newRideResponse(ride))
}

// GetRide handles GET /v1/rides/:id
// Only the requester and the bound captain can see a ride.
func (h *RideHandler) GetRide(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	ride, err := h.rides.GetRide(c.Request.Context(), service.GetRideRequest{
		RideID:   c.Param("id"),
		ViewerID: identity.ID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, newRideResponse(ride))
}

// ConfirmRide handles POST /v1/rides/confirm
func (h *RideHandler) ConfirmRide(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	var req RideActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ride, err := h.rides.ConfirmRide(c.Request.Context(), service.ConfirmRideRequest{
		RideID:    req.RideID,
		CaptainID: identity.ID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, newRideResponse(ride))
}

// StartRide handles POST /v1/rides/start
func (h *RideHandler) StartRide(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	var req StartRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ride, err := h.rides.StartRide(c.Request.Context(), service.StartRideRequest{
		RideID:    req.RideID,
		OTP:       req.OTP,
		CaptainID: identity.ID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, newRideResponse(ride))
}

// EndRide handles POST /v1/rides/end
func (h *RideHandler) EndRide(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	var req RideActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ride, err := h.rides.EndRide(c.Request.Context(), service.EndRideRequest{
		RideID:    req.RideID,
		CaptainID: identity.ID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, newRideResponse(ride))
}
