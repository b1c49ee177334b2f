// Package cache implements Redis-backed short-lived state storage.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/socialimageapp/authentication-api-service/internal/domain/oauth"
	"github.com/socialimageapp/authentication-api-service/internal/repository"
)

const (
	stateKeyPrefix = "oauth:state:"
	stateTTL       = 5 * time.Minute
)

// RedisStateStore implements OAuthStateStore backed by Redis.
type RedisStateStore struct {
	client redis.UniversalClient
}

var _ repository.OAuthStateStore = (*RedisStateStore)(nil)

// NewRedisStateStore constructs a Redis-backed state store.
func NewRedisStateStore(client redis.UniversalClient) *RedisStateStore {
	return &RedisStateStore{client: client}
}

func stateKey(state string) string {
	return stateKeyPrefix + state
}

// SaveState stores the encoded OAuth state payload with TTL.
func (s *RedisStateStore) SaveState(ctx context.Context, state oauth.State) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := s.client.Set(ctx, stateKey(state.State), payload, stateTTL).Err(); err != nil {
		return fmt.Errorf("persist state: %w", err)
	}
	return nil
}

// GetState loads and decodes the state payload. A missing or expired key
// yields ErrInvalidState.
func (s *RedisStateStore) GetState(ctx context.Context, state string) (oauth.State, error) {
	bytes, err := s.client.Get(ctx, stateKey(state)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return oauth.State{}, oauth.ErrInvalidState
		}
		return oauth.State{}, fmt.Errorf("load state: %w", err)
	}
	var stored oauth.State
	if err := json.Unmarshal(bytes, &stored); err != nil {
		return oauth.State{}, fmt.Errorf("decode state: %w", err)
	}
	return stored, nil
}

// DeleteState removes the persisted state key.
func (s *RedisStateStore) DeleteState(ctx context.Context, state string) error {
	if err := s.client.Del(ctx, stateKey(state)).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("delete state: %w", err)
	}
	return nil
}
