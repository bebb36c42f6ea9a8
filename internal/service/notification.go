package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/redis"
)

// NotificationType is the event name pushed to the requester.
type NotificationType string

const (
	NotificationRideConfirmed NotificationType = "ride-confirmed"
	NotificationRideStarted   NotificationType = "ride-started"
	NotificationRideEnded     NotificationType = "ride-ended"
)

// RideUpdate is the payload of requester notifications.
type RideUpdate struct {
	RideID    string            `json:"ride_id"`
	Status    domain.RideStatus `json:"status"`
	Fare      int64             `json:"fare"`
	CaptainID string            `json:"captain_id,omitempty"`
	Captain   *CaptainSummary   `json:"captain,omitempty"`
	OTP       string            `json:"otp,omitempty"`
	At        time.Time         `json:"at"`
}

// CaptainSummary is the captain detail shown to the requester.
type CaptainSummary struct {
	Name         string `json:"name"`
	VehicleColor string `json:"vehicle_color,omitempty"`
	VehiclePlate string `json:"vehicle_plate,omitempty"`
}

// NotificationService pushes lifecycle events to the requester's connection.
// Delivery is best-effort; failures are logged only.
type NotificationService struct {
	registry  ConnectionRegistry
	deliverer Deliverer
	timeout   time.Duration
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(registry ConnectionRegistry, deliverer Deliverer, timeout time.Duration) *NotificationService {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &NotificationService{
		registry:  registry,
		deliverer: deliverer,
		timeout:   timeout,
	}
}

// NotifyRideConfirmed tells the requester a captain accepted the ride.
// The OTP is included so the requester can hand it to the captain at pickup.
func (s *NotificationService) NotifyRideConfirmed(ctx context.Context, ride *domain.Ride) {
	update := newRideUpdate(ride)
	update.OTP = ride.OTP
	s.send(ctx, ride.UserID, NotificationRideConfirmed, update)
}

// NotifyRideStarted tells the requester the ride is under way.
func (s *NotificationService) NotifyRideStarted(ctx context.Context, ride *domain.Ride) {
	s.send(ctx, ride.UserID, NotificationRideStarted, newRideUpdate(ride))
}

// NotifyRideEnded tells the requester the ride is complete.
func (s *NotificationService) NotifyRideEnded(ctx context.Context, ride *domain.Ride) {
	s.send(ctx, ride.UserID, NotificationRideEnded, newRideUpdate(ride))
}

func newRideUpdate(ride *domain.Ride) RideUpdate {
	update := RideUpdate{
		RideID:    ride.ID,
		Status:    ride.Status,
		Fare:      ride.Fare,
		CaptainID: ride.CaptainID,
		At:        time.Now(),
	}
	if ride.Captain != nil {
		update.Captain = &CaptainSummary{
			Name:         ride.Captain.Name,
			VehicleColor: ride.Captain.VehicleColor,
			VehiclePlate: ride.Captain.VehiclePlate,
		}
	}
	return update
}

func (s *NotificationService) send(ctx context.Context, userID string, kind NotificationType, update RideUpdate) {
	if s == nil {
		return
	}

	handle, err := s.registry.HandleFor(ctx, domain.RoleUser, userID)
	if err != nil {
		if !errors.Is(err, redis.ErrNotConnected) {
			newrelic.FromContext(ctx).NoticeError(err)
		}
		log.Printf("[NOTIFICATION] Type=%s, Recipient=%s: no handle: %v", kind, userID, err)
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.deliverer.Send(sendCtx, handle, string(kind), update); err != nil {
		log.Printf("[NOTIFICATION] Type=%s, Recipient=%s: delivery failed: %v", kind, userID, err)
		return
	}

	log.Printf("[NOTIFICATION] Type=%s, Recipient=%s, Ride=%s", kind, userID, update.RideID)
}
