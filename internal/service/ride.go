package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/repository"
)

// DefaultOTPDigits is the length of ride verification codes.
const DefaultOTPDigits = 6

// Broadcaster announces new rides to captains.
type Broadcaster interface {
	Broadcast(ctx context.Context, ride *domain.Ride) BroadcastReport
}

// Ensure DispatchService implements Broadcaster.
var _ Broadcaster = (*DispatchService)(nil)

// RideServiceDeps contains the collaborators of RideService.
type RideServiceDeps struct {
	RideRepo    repository.RideRepository
	UserRepo    repository.UserRepository
	CaptainRepo repository.CaptainRepository
	Fares       *FareService
	Codes       *CodeGenerator
	Broadcaster Broadcaster
	Notifier    *NotificationService // optional
	OTPDigits   int
}

// RideService drives rides through requested, accepted, ongoing and completed.
type RideService struct {
	rideRepo    repository.RideRepository
	userRepo    repository.UserRepository
	captainRepo repository.CaptainRepository
	fares       *FareService
	codes       *CodeGenerator
	broadcaster Broadcaster
	notifier    *NotificationService
	otpDigits   int
	now         func() time.Time
}

// NewRideService creates a new RideService.
func NewRideService(deps RideServiceDeps) *RideService {
	digits := deps.OTPDigits
	if digits == 0 {
		digits = DefaultOTPDigits
	}
	codes := deps.Codes
	if codes == nil {
		codes = NewCodeGenerator()
	}
	return &RideService{
		rideRepo:    deps.RideRepo,
		userRepo:    deps.UserRepo,
		captainRepo: deps.CaptainRepo,
		fares:       deps.Fares,
		codes:       codes,
		broadcaster: deps.Broadcaster,
		notifier:    deps.Notifier,
		otpDigits:   digits,
		now:         time.Now,
	}
}

// CreateRideRequest contains the parameters for creating a ride.
type CreateRideRequest struct {
	UserID       string
	Pickup       string
	Destination  string
	VehicleClass string
}

// CreateRide prices and persists a new ride, then offers it to every
// reachable captain. A failed or empty broadcast does not fail the call.
func (s *RideService) CreateRide(ctx context.Context, req CreateRideRequest) (*domain.Ride, error) {
	class, err := validateCreateRequest(req)
	if err != nil {
		return nil, err
	}

	estimate, err := s.fares.Estimate(ctx, req.Pickup, req.Destination)
	if err != nil {
		return nil, err
	}

	fare, ok := estimate.Fares[class]
	if !ok {
		return nil, ErrInvalidVehicleClass
	}

	otp, err := s.codes.Generate(s.otpDigits)
	if err != nil {
		return nil, err
	}

	ride := &domain.Ride{
		ID:              uuid.New().String(),
		UserID:          req.UserID,
		Pickup:          strings.TrimSpace(req.Pickup),
		Destination:     strings.TrimSpace(req.Destination),
		VehicleClass:    class,
		Fare:            fare,
		DistanceMeters:  estimate.Route.DistanceMeters,
		DurationSeconds: estimate.Route.DurationSeconds,
		OTP:             otp,
		Status:          domain.RideStatusRequested,
		CreatedAt:       s.now(),
	}

	if err := s.rideRepo.Create(ctx, ride); err != nil {
		return nil, upstream(err)
	}

	persisted, err := s.rideRepo.GetByID(ctx, ride.ID, false)
	if err != nil {
		return nil, s.lookupError(err)
	}
	s.enrich(ctx, persisted)

	if s.broadcaster != nil {
		s.broadcaster.Broadcast(ctx, persisted)
	}

	return persisted, nil
}

func validateCreateRequest(req CreateRideRequest) (domain.VehicleClass, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return "", ErrInvalidUserID
	}
	if strings.TrimSpace(req.Pickup) == "" {
		return "", ErrInvalidPickup
	}
	if strings.TrimSpace(req.Destination) == "" {
		return "", ErrInvalidDestination
	}
	if strings.TrimSpace(req.VehicleClass) == "" {
		return "", ErrInvalidVehicleClass
	}
	class, ok := domain.ParseVehicleClass(req.VehicleClass)
	if !ok {
		return "", ErrInvalidVehicleClass
	}
	return class, nil
}

// GetRideRequest contains the parameters for reading a ride.
type GetRideRequest struct {
	RideID   string
	ViewerID string
}

// GetRide retrieves a ride for one of its participants. Anyone else gets
// ErrRideNotFound. The requester also gets the OTP until the ride starts,
// so a missed ride-confirmed push can be recovered by polling.
func (s *RideService) GetRide(ctx context.Context, req GetRideRequest) (*domain.Ride, error) {
	if req.RideID == "" {
		return nil, ErrInvalidRideID
	}
	if req.ViewerID == "" {
		return nil, ErrInvalidViewerID
	}

	ride, err := s.rideRepo.GetByID(ctx, req.RideID, true)
	if err != nil {
		return nil, s.lookupError(err)
	}

	switch req.ViewerID {
	case ride.UserID:
		if ride.Status != domain.RideStatusRequested && ride.Status != domain.RideStatusAccepted {
			ride.OTP = ""
		}
	case ride.CaptainID:
		ride.OTP = ""
	default:
		return nil, ErrRideNotFound
	}

	s.enrich(ctx, ride)
	return ride, nil
}

// ConfirmRideRequest contains the parameters for accepting a ride.
type ConfirmRideRequest struct {
	RideID    string
	CaptainID string
}

// ConfirmRide binds the ride to the claiming captain. Only one of any number
// of concurrent claims on a requested ride succeeds; the others get
// ErrAlreadyClaimed.
func (s *RideService) ConfirmRide(ctx context.Context, req ConfirmRideRequest) (*domain.Ride, error) {
	if req.RideID == "" {
		return nil, ErrInvalidRideID
	}
	if req.CaptainID == "" {
		return nil, ErrInvalidCaptainID
	}

	_, applied, err := s.advance(ctx, req.RideID, domain.RideStatusRequested, repository.RidePatch{
		CaptainID:  req.CaptainID,
		AcceptedAt: s.now(),
	})
	if err != nil {
		return nil, err
	}

	if !applied {
		if _, err := s.rideRepo.GetByID(ctx, req.RideID, false); err != nil {
			return nil, s.lookupError(err)
		}
		return nil, ErrAlreadyClaimed
	}

	ride, err := s.rideRepo.GetByID(ctx, req.RideID, true)
	if err != nil {
		return nil, s.lookupError(err)
	}
	s.enrich(ctx, ride)

	s.notifier.NotifyRideConfirmed(ctx, ride)

	return ride, nil
}

// StartRideRequest contains the parameters for starting a ride.
type StartRideRequest struct {
	RideID    string
	OTP       string
	CaptainID string
}

// StartRide moves an accepted ride to ongoing once the bound captain
// presents the requester's OTP.
func (s *RideService) StartRide(ctx context.Context, req StartRideRequest) (*domain.Ride, error) {
	if req.RideID == "" {
		return nil, ErrInvalidRideID
	}
	if req.OTP == "" {
		return nil, ErrInvalidOTP
	}
	if req.CaptainID == "" {
		return nil, ErrInvalidCaptainID
	}

	ride, err := s.rideRepo.GetByID(ctx, req.RideID, true)
	if err != nil {
		return nil, s.lookupError(err)
	}

	if ride.Status != domain.RideStatusAccepted {
		return nil, ErrInvalidState
	}
	if ride.CaptainID != req.CaptainID {
		return nil, ErrCaptainMismatch
	}
	if subtle.ConstantTimeCompare([]byte(req.OTP), []byte(ride.OTP)) != 1 {
		return nil, ErrInvalidCredential
	}

	startedAt := s.now()
	next, applied, err := s.advance(ctx, ride.ID, ride.Status, repository.RidePatch{
		StartedAt: startedAt,
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, ErrInvalidState
	}

	ride.Status = next
	ride.StartedAt = startedAt
	ride.OTP = ""
	s.enrich(ctx, ride)

	s.notifier.NotifyRideStarted(ctx, ride)

	return ride, nil
}

// EndRideRequest contains the parameters for completing a ride.
type EndRideRequest struct {
	RideID    string
	CaptainID string
}

// EndRide completes an ongoing ride. Rides bound to another captain are
// reported as not found.
func (s *RideService) EndRide(ctx context.Context, req EndRideRequest) (*domain.Ride, error) {
	if req.RideID == "" {
		return nil, ErrInvalidRideID
	}
	if req.CaptainID == "" {
		return nil, ErrInvalidCaptainID
	}

	ride, err := s.rideRepo.GetByIDForCaptain(ctx, req.RideID, req.CaptainID, false)
	if err != nil {
		return nil, s.lookupError(err)
	}

	if ride.Status != domain.RideStatusOngoing {
		return nil, ErrInvalidState
	}

	completedAt := s.now()
	next, applied, err := s.advance(ctx, ride.ID, ride.Status, repository.RidePatch{
		CompletedAt: completedAt,
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, ErrInvalidState
	}

	ride.Status = next
	ride.CompletedAt = completedAt
	s.enrich(ctx, ride)

	s.notifier.NotifyRideEnded(ctx, ride)

	return ride, nil
}

// advance moves a ride from the given status to the one after it, applying
// patch in the same guarded write. applied is false when the ride was no
// longer in that status.
func (s *RideService) advance(ctx context.Context, rideID string, from domain.RideStatus, patch repository.RidePatch) (domain.RideStatus, bool, error) {
	next, ok := from.Next()
	if !ok {
		return "", false, ErrInvalidState
	}
	patch.Status = next

	applied, err := s.rideRepo.ConditionalUpdate(ctx, rideID, from, patch)
	if err != nil {
		return "", false, upstream(err)
	}
	return next, applied, nil
}

// enrich attaches user and captain detail. Lookup failures leave the
// corresponding field nil.
func (s *RideService) enrich(ctx context.Context, ride *domain.Ride) {
	if s.userRepo != nil && ride.UserID != "" {
		user, err := s.userRepo.GetByID(ctx, ride.UserID)
		if err != nil {
			log.Printf("[RIDE] ride=%s: user %s lookup failed: %v", ride.ID, ride.UserID, err)
		} else {
			ride.User = user
		}
	}

	if s.captainRepo != nil && ride.CaptainID != "" {
		captain, err := s.captainRepo.GetByID(ctx, ride.CaptainID)
		if err != nil {
			log.Printf("[RIDE] ride=%s: captain %s lookup failed: %v", ride.ID, ride.CaptainID, err)
		} else {
			ride.Captain = captain
		}
	}
}

func (s *RideService) lookupError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrRideNotFound
	}
	return upstream(err)
}

func upstream(err error) error {
	return fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
}
