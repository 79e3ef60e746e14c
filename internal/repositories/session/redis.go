package session

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/tavernkeep/dm-engine/internal/entities"
	"github.com/tavernkeep/dm-engine/internal/errors"
	"github.com/tavernkeep/dm-engine/internal/pkg/clock"
	redisclient "github.com/tavernkeep/dm-engine/internal/redis"
)

const (
	// Key pattern: game_session:{session_id}
	sessionKeyPrefix = "game_session:"

	errSessionIDEmpty = "session ID cannot be empty"
	errStateNil       = "state cannot be nil"
)

// Config holds the configuration for the Redis repository
type Config struct {
	Client redisclient.Client
	Clock  clock.Clock

	// DefaultTTL applies when SaveInput.TTL is zero; zero keeps saves
	// forever.
	DefaultTTL time.Duration
}

// Validate ensures all required dependencies are provided
func (c *Config) Validate() error {
	if c.Client == nil {
		return errors.InvalidArgument("redis client is required")
	}
	if c.Clock == nil {
		return errors.InvalidArgument("clock is required")
	}
	return nil
}

type redisRepository struct {
	client     redisclient.Client
	clock      clock.Clock
	defaultTTL time.Duration
}

// NewRedisRepository creates a new Redis repository for game sessions
func NewRedisRepository(cfg *Config) (Repository, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return &redisRepository{
		client:     cfg.Client,
		clock:      cfg.Clock,
		defaultTTL: cfg.DefaultTTL,
	}, nil
}

// Ensure redisRepository implements Repository
var _ Repository = (*redisRepository)(nil)

// Save persists the full game state as JSON
func (r *redisRepository) Save(ctx context.Context, input *SaveInput) (*SaveOutput, error) {
	if input == nil || input.State == nil {
		return nil, errors.InvalidArgument(errStateNil)
	}
	if input.State.SessionID == "" {
		return nil, errors.InvalidArgument(errSessionIDEmpty)
	}

	now := r.clock.Now()
	input.State.LastSaved = now

	stateJSON, err := json.Marshal(input.State)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal session %s", input.State.SessionID)
	}

	ttl := input.TTL
	if ttl == 0 {
		ttl = r.defaultTTL
	}

	key := r.buildKey(input.State.SessionID)
	if err := r.client.Set(ctx, key, stateJSON, ttl).Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to store session %s in Redis", input.State.SessionID)
	}

	return &SaveOutput{SavedAt: now}, nil
}

// Get loads a session's game state
func (r *redisRepository) Get(ctx context.Context, input *GetInput) (*GetOutput, error) {
	if input == nil || input.SessionID == "" {
		return nil, errors.InvalidArgument(errSessionIDEmpty)
	}

	stateJSON, err := r.client.Get(ctx, r.buildKey(input.SessionID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, errors.NotFoundf("session %q not found", input.SessionID)
		}
		return nil, errors.Wrapf(err, "failed to get session %s from Redis", input.SessionID)
	}

	var state entities.GameState
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal session %s", input.SessionID)
	}

	return &GetOutput{State: &state}, nil
}

// Delete removes a saved session
func (r *redisRepository) Delete(ctx context.Context, input *DeleteInput) (*DeleteOutput, error) {
	if input == nil || input.SessionID == "" {
		return nil, errors.InvalidArgument(errSessionIDEmpty)
	}

	if err := r.client.Del(ctx, r.buildKey(input.SessionID)).Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to delete session %s from Redis", input.SessionID)
	}
	return &DeleteOutput{}, nil
}

// buildKey creates the Redis key for a session
func (r *redisRepository) buildKey(sessionID string) string {
	return sessionKeyPrefix + sessionID
}
