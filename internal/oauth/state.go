package oauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Proton-105/profile-service/pkg/redis"
)

const stateKeyPrefix = "oauth:state:"

var ErrInvalidState = errors.New("oauth state is unknown or expired")

// StateStore keeps one-time login states in Redis to protect the callback against CSRF.
type StateStore struct {
	kv  redis.KV
	ttl time.Duration
}

func NewStateStore(kv redis.KV, ttl time.Duration) *StateStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &StateStore{kv: kv, ttl: ttl}
}

// Issue creates a fresh state value.
func (s *StateStore) Issue(ctx context.Context) (string, error) {
	state := uuid.NewString()

	ok, err := s.kv.SetNX(ctx, stateKeyPrefix+state, "1", s.ttl)
	if err != nil {
		return "", fmt.Errorf("store oauth state: %w", err)
	}
	if !ok {
		return "", errors.New("store oauth state: duplicate state")
	}

	return state, nil
}

// Consume validates state and removes it so it cannot be replayed.
func (s *StateStore) Consume(ctx context.Context, state string) error {
	if state == "" {
		return ErrInvalidState
	}

	_, err := s.kv.GetDel(ctx, stateKeyPrefix+state)
	if errors.Is(err, redis.Nil) {
		return ErrInvalidState
	}
	if err != nil {
		return fmt.Errorf("consume oauth state: %w", err)
	}

	return nil
}
