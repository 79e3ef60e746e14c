// Package session defines the interface for game session operations
package session

import (
	"context"
	"time"

	"github.com/tavernkeep/dm-engine/internal/entities"
	"github.com/tavernkeep/dm-engine/internal/rules/combat"
)

// Service defines the interface for game session operations. Calls for
// the same session must be serialized by the caller; the pipeline is
// synchronous and each ProcessInput persists the resulting state.
type Service interface {
	// Session lifecycle
	NewSession(ctx context.Context, input *NewSessionInput) (*NewSessionOutput, error)
	GetSession(ctx context.Context, input *GetSessionInput) (*GetSessionOutput, error)
	SaveSession(ctx context.Context, input *SaveSessionInput) (*SaveSessionOutput, error)
	EndSession(ctx context.Context, input *EndSessionInput) (*EndSessionOutput, error)

	// Gameplay
	ProcessInput(ctx context.Context, input *ProcessInputInput) (*ProcessInputOutput, error)
}

// NewSessionInput defines the request for starting a session
type NewSessionInput struct {
	Character *entities.Character
}

// NewSessionOutput defines the response for starting a session
type NewSessionOutput struct {
	SessionID        string
	State            *entities.GameState
	OpeningNarration string
}

// GetSessionInput defines the request for loading a session
type GetSessionInput struct {
	SessionID string
}

// GetSessionOutput defines the response for loading a session
type GetSessionOutput struct {
	State *entities.GameState
}

// SaveSessionInput defines the request for persisting a session
type SaveSessionInput struct {
	SessionID string
	TTL       time.Duration // zero means the repository default
}

// SaveSessionOutput defines the response for persisting a session
type SaveSessionOutput struct {
	SavedAt time.Time
}

// EndSessionInput defines the request for ending a session
type EndSessionInput struct {
	SessionID string
	// Discard deletes the save instead of writing a final one
	Discard bool
}

// EndSessionOutput defines the response for ending a session
type EndSessionOutput struct{}

// ProcessInputInput defines one turn of player input
type ProcessInputInput struct {
	SessionID string
	Text      string
}

// ProcessInputOutput defines the response for one turn
type ProcessInputOutput struct {
	Narration      string
	Speaker        string
	PortraitType   string
	PortraitSource string

	// Events are presentation lines for applied effects: triggered
	// actions, movement notes, combat rolls.
	Events []string

	InCombat     bool
	CombatStatus *combat.Status
}
