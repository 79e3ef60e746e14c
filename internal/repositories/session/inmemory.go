package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/tavernkeep/dm-engine/internal/entities"
	"github.com/tavernkeep/dm-engine/internal/errors"
)

// InMemoryRepository implements Repository with process-local storage.
// States are stored as serialized JSON so loads return independent
// copies, matching the Redis repository's semantics.
type InMemoryRepository struct {
	mu    sync.RWMutex
	store map[string][]byte
}

// NewInMemory creates a new in-memory repository
func NewInMemory() *InMemoryRepository {
	return &InMemoryRepository{
		store: make(map[string][]byte),
	}
}

// Ensure InMemoryRepository implements Repository
var _ Repository = (*InMemoryRepository)(nil)

// Save persists the full game state
func (r *InMemoryRepository) Save(_ context.Context, input *SaveInput) (*SaveOutput, error) {
	if input == nil || input.State == nil {
		return nil, errors.InvalidArgument(errStateNil)
	}
	if input.State.SessionID == "" {
		return nil, errors.InvalidArgument(errSessionIDEmpty)
	}

	now := time.Now()
	input.State.LastSaved = now

	stateJSON, err := json.Marshal(input.State)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal session %s", input.State.SessionID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.store[input.State.SessionID] = stateJSON

	return &SaveOutput{SavedAt: now}, nil
}

// Get loads a session's game state
func (r *InMemoryRepository) Get(_ context.Context, input *GetInput) (*GetOutput, error) {
	if input == nil || input.SessionID == "" {
		return nil, errors.InvalidArgument(errSessionIDEmpty)
	}

	r.mu.RLock()
	stateJSON, exists := r.store[input.SessionID]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.NotFoundf("session %q not found", input.SessionID)
	}

	var state entities.GameState
	if err := json.Unmarshal(stateJSON, &state); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal session %s", input.SessionID)
	}

	return &GetOutput{State: &state}, nil
}

// Delete removes a saved session
func (r *InMemoryRepository) Delete(_ context.Context, input *DeleteInput) (*DeleteOutput, error) {
	if input == nil || input.SessionID == "" {
		return nil, errors.InvalidArgument(errSessionIDEmpty)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.store, input.SessionID)

	return &DeleteOutput{}, nil
}
