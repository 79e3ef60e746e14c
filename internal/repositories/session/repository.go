// Package session provides storage for game session state. The full
// GameState round-trips through the repository with no field loss.
package session

import (
	"context"
	"time"

	"github.com/tavernkeep/dm-engine/internal/entities"
)

// SaveInput contains parameters for saving a session
type SaveInput struct {
	State *entities.GameState

	// TTL bounds how long the save lives; zero means no expiry
	TTL time.Duration
}

// SaveOutput contains the result of saving a session
type SaveOutput struct {
	SavedAt time.Time
}

// GetInput contains parameters for loading a session
type GetInput struct {
	SessionID string
}

// GetOutput contains the loaded session state
type GetOutput struct {
	State *entities.GameState
}

// DeleteInput contains parameters for deleting a session
type DeleteInput struct {
	SessionID string
}

// DeleteOutput contains the result of deleting a session
type DeleteOutput struct{}

// Repository defines the interface for session storage
type Repository interface {
	// Save persists the full game state
	Save(ctx context.Context, input *SaveInput) (*SaveOutput, error)

	// Get loads a session's game state by id
	Get(ctx context.Context, input *GetInput) (*GetOutput, error)

	// Delete removes a saved session
	Delete(ctx context.Context, input *DeleteInput) (*DeleteOutput, error)
}
