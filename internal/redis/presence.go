package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"ridedispatch/internal/domain"
)

// ErrNotConnected is returned when a participant holds no delivery handle.
var ErrNotConnected = errors.New("participant not connected")

const (
	captainPresenceKey = "presence:captain"
	userPresenceKey    = "presence:user"
)

// unbindScript deletes the binding only if it still points at the handle
// being closed, so a reconnect on another node is not clobbered.
var unbindScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], ARGV[1]) == ARGV[2] then
	return redis.call("HDEL", KEYS[1], ARGV[1])
end
return 0
`)

// Presence is a participant bound to a live delivery handle.
type Presence struct {
	ParticipantID string
	Handle        string
}

// PresenceStore tracks which participants are connected, and through which handle.
type PresenceStore struct {
	client *redis.Client
}

// NewPresenceStore creates a new PresenceStore.
func NewPresenceStore(client *redis.Client) *PresenceStore {
	return &PresenceStore{client: client}
}

func presenceKey(role domain.Role) (string, error) {
	switch role {
	case domain.RoleCaptain:
		return captainPresenceKey, nil
	case domain.RoleUser:
		return userPresenceKey, nil
	default:
		return "", fmt.Errorf("unknown role %q", role)
	}
}

// Bind records handle as the participant's current connection, replacing any previous one.
func (s *PresenceStore) Bind(ctx context.Context, role domain.Role, participantID, handle string) error {
	key, err := presenceKey(role)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, key, participantID, handle).Err()
}

// Unbind removes the participant's binding if it still refers to handle.
func (s *PresenceStore) Unbind(ctx context.Context, role domain.Role, participantID, handle string) error {
	key, err := presenceKey(role)
	if err != nil {
		return err
	}
	return unbindScript.Run(ctx, s.client, []string{key}, participantID, handle).Err()
}

// HandleFor returns the participant's current handle.
func (s *PresenceStore) HandleFor(ctx context.Context, role domain.Role, participantID string) (string, error) {
	key, err := presenceKey(role)
	if err != nil {
		return "", err
	}

	handle, err := s.client.HGet(ctx, key, participantID).Result()
	if err != nil {
		if err == redis.Nil {
			return "", ErrNotConnected
		}
		return "", err
	}
	return handle, nil
}

// ReachableCaptains returns a snapshot of every connected captain.
func (s *PresenceStore) ReachableCaptains(ctx context.Context) ([]Presence, error) {
	bindings, err := s.client.HGetAll(ctx, captainPresenceKey).Result()
	if err != nil {
		return nil, err
	}

	captains := make([]Presence, 0, len(bindings))
	for id, handle := range bindings {
		captains = append(captains, Presence{
			ParticipantID: id,
			Handle:        handle,
		})
	}
	return captains, nil
}
