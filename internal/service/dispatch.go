package service

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"golang.org/x/sync/errgroup"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/redis"
)

// EventNewRide is pushed to every reachable captain when a ride is created.
const EventNewRide = "newRide"

// ConnectionRegistry maps participants to their live delivery handles.
type ConnectionRegistry interface {
	ReachableCaptains(ctx context.Context) ([]redis.Presence, error)
	HandleFor(ctx context.Context, role domain.Role, participantID string) (string, error)
}

// Deliverer pushes an event to the connection behind a handle.
// Implementations must not block on a slow consumer.
type Deliverer interface {
	Send(ctx context.Context, handle, event string, payload any) error
}

// Ensure the Redis registry satisfies ConnectionRegistry.
var _ ConnectionRegistry = (*redis.PresenceStore)(nil)

// BroadcastReport summarises one fan-out.
type BroadcastReport struct {
	Reachable int
	Delivered int
	Failed    int
}

// DispatchConfig tunes the fan-out.
type DispatchConfig struct {
	DeliveryTimeout time.Duration
	MaxParallel     int
}

// DispatchService fans new rides out to reachable captains.
type DispatchService struct {
	registry  ConnectionRegistry
	deliverer Deliverer
	cfg       DispatchConfig
}

// NewDispatchService creates a new DispatchService.
func NewDispatchService(registry ConnectionRegistry, deliverer Deliverer, cfg DispatchConfig) *DispatchService {
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 2 * time.Second
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 32
	}
	return &DispatchService{
		registry:  registry,
		deliverer: deliverer,
		cfg:       cfg,
	}
}

// Broadcast pushes a newRide offer to every captain reachable at the time of
// the call. Failures are logged and counted but never returned.
func (s *DispatchService) Broadcast(ctx context.Context, ride *domain.Ride) BroadcastReport {
	txn := newrelic.FromContext(ctx)
	defer txn.StartSegment("dispatch/Broadcast").End()

	captains, err := s.registry.ReachableCaptains(ctx)
	if err != nil {
		log.Printf("[DISPATCH] ride=%s: failed to list reachable captains: %v", ride.ID, err)
		txn.NoticeError(err)
		return BroadcastReport{}
	}

	report := BroadcastReport{Reachable: len(captains)}
	if len(captains) == 0 {
		log.Printf("[DISPATCH] ride=%s: no reachable captains", ride.ID)
		return report
	}

	offer := ride.Offer()
	var delivered, failed int32

	var g errgroup.Group
	g.SetLimit(s.cfg.MaxParallel)
	for _, captain := range captains {
		g.Go(func() error {
			sendCtx, cancel := context.WithTimeout(ctx, s.cfg.DeliveryTimeout)
			defer cancel()

			if err := s.deliverer.Send(sendCtx, captain.Handle, EventNewRide, offer); err != nil {
				atomic.AddInt32(&failed, 1)
				log.Printf("[DISPATCH] ride=%s captain=%s: delivery failed: %v", ride.ID, captain.ParticipantID, err)
				return nil
			}
			atomic.AddInt32(&delivered, 1)
			return nil
		})
	}
	_ = g.Wait()

	report.Delivered = int(delivered)
	report.Failed = int(failed)
	log.Printf("[DISPATCH] ride=%s: reachable=%d delivered=%d failed=%d",
		ride.ID, report.Reachable, report.Delivered, report.Failed)

	return report
}
