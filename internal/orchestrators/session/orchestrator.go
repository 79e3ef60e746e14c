// Package session implements the game session orchestrator: it owns the
// lifecycle of live sessions and runs the per-turn pipeline across the
// world manager, the narrator, and the combat engine.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/KirkDiggler/rpg-toolkit/events"

	"github.com/tavernkeep/dm-engine/internal/entities"
	"github.com/tavernkeep/dm-engine/internal/errors"
	"github.com/tavernkeep/dm-engine/internal/narrator"
	"github.com/tavernkeep/dm-engine/internal/pkg/clock"
	"github.com/tavernkeep/dm-engine/internal/pkg/idgen"
	sessionrepo "github.com/tavernkeep/dm-engine/internal/repositories/session"
	"github.com/tavernkeep/dm-engine/internal/rules/combat"
	"github.com/tavernkeep/dm-engine/internal/rules/dice"
	sessionsvc "github.com/tavernkeep/dm-engine/internal/services/session"
	"github.com/tavernkeep/dm-engine/internal/world"
)

// Config holds the dependencies for the session orchestrator
type Config struct {
	Repository sessionrepo.Repository

	// Campaign content, immutable after wiring
	Campaign   *entities.Campaign
	Nodes      map[string]*entities.Node
	NPCs       *entities.NPCRegistry
	Encounters *entities.EncounterRegistry

	Generator narrator.Generator
	Roller    *dice.Roller
	Monsters  combat.MonsterSource
	Weapons   combat.WeaponSource

	// Optional
	EventBus    events.EventBus
	IDGenerator idgen.Generator
	Clock       clock.Clock
	DMName      string
	Logger      *slog.Logger
}

// Validate ensures all required dependencies are provided
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()

	if c.Repository == nil {
		vb.RequiredField("Repository")
	}
	if c.Campaign == nil {
		vb.RequiredField("Campaign")
	}
	if len(c.Nodes) == 0 {
		vb.RequiredField("Nodes")
	}
	if c.NPCs == nil {
		vb.RequiredField("NPCs")
	}
	if c.Generator == nil {
		vb.RequiredField("Generator")
	}
	if c.Roller == nil {
		vb.RequiredField("Roller")
	}

	return vb.Build()
}

// liveSession is the in-memory half of one session: the single-writer
// world manager plus the narration and combat pipelines bound to it.
type liveSession struct {
	world    *world.Manager
	narrator *narrator.Coordinator
	combat   *combat.Engine

	// encounter is the id of the running encounter, for rewards
	encounter string
}

// Orchestrator implements the session.Service interface
type Orchestrator struct {
	repo       sessionrepo.Repository
	campaign   *entities.Campaign
	nodes      map[string]*entities.Node
	npcs       *entities.NPCRegistry
	encounters *entities.EncounterRegistry
	generator  narrator.Generator
	roller     *dice.Roller
	monsters   combat.MonsterSource
	weapons    combat.WeaponSource
	bus        events.EventBus
	idgen      idgen.Generator
	clock      clock.Clock
	dmName     string
	log        *slog.Logger

	mu     sync.Mutex
	active map[string]*liveSession
}

// New creates a new session orchestrator
func New(cfg *Config) (*Orchestrator, error) {
	if cfg == nil {
		return nil, errors.InvalidArgument("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	gen := cfg.IDGenerator
	if gen == nil {
		gen = idgen.NewUUID("sess")
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Orchestrator{
		repo:       cfg.Repository,
		campaign:   cfg.Campaign,
		nodes:      cfg.Nodes,
		npcs:       cfg.NPCs,
		encounters: cfg.Encounters,
		generator:  cfg.Generator,
		roller:     cfg.Roller,
		monsters:   cfg.Monsters,
		weapons:    cfg.Weapons,
		bus:        cfg.EventBus,
		idgen:      gen,
		clock:      clk,
		dmName:     cfg.DMName,
		log:        log,
		active:     make(map[string]*liveSession),
	}, nil
}

// Ensure Orchestrator implements the Service interface
var _ sessionsvc.Service = (*Orchestrator)(nil)

// NewSession creates a fresh game state at the campaign's starting node
// and persists it immediately.
func (o *Orchestrator) NewSession(ctx context.Context, input *sessionsvc.NewSessionInput) (*sessionsvc.NewSessionOutput, error) {
	if input == nil || input.Character == nil {
		return nil, errors.InvalidArgument("character is required")
	}

	chapter := o.campaign.StartingChapter()
	if chapter == nil {
		return nil, errors.FailedPrecondition("campaign has no chapters")
	}
	if chapter.StartingNode == "" {
		return nil, errors.FailedPreconditionf("chapter %s has no starting node", chapter.ChapterID)
	}

	sessionID := o.idgen.Generate()
	state, err := entities.NewGameState(&entities.GameStateConfig{
		SessionID:  sessionID,
		CampaignID: o.campaign.CampaignID,
		Character:  input.Character,
		ChapterID:  chapter.ChapterID,
		NodeID:     chapter.StartingNode,
		Now:        o.clock.Now(),
	})
	if err != nil {
		return nil, err
	}

	live, err := o.activate(state)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.active[sessionID] = live
	o.mu.Unlock()

	if _, err := o.persist(ctx, live, 0); err != nil {
		return nil, err
	}

	o.log.InfoContext(ctx, "session created",
		"session_id", sessionID,
		"campaign_id", o.campaign.CampaignID,
		"starting_node", chapter.StartingNode)

	return &sessionsvc.NewSessionOutput{
		SessionID:        sessionID,
		State:            state,
		OpeningNarration: chapter.IntroNarration,
	}, nil
}

// GetSession returns a session's state, loading it from the repository
// if it is not already live.
func (o *Orchestrator) GetSession(ctx context.Context, input *sessionsvc.GetSessionInput) (*sessionsvc.GetSessionOutput, error) {
	if input == nil || input.SessionID == "" {
		return nil, errors.InvalidArgument("sessionID is required")
	}

	live, err := o.session(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}
	return &sessionsvc.GetSessionOutput{State: live.world.State()}, nil
}

// SaveSession persists a session's full state, including any live combat
func (o *Orchestrator) SaveSession(ctx context.Context, input *sessionsvc.SaveSessionInput) (*sessionsvc.SaveSessionOutput, error) {
	if input == nil || input.SessionID == "" {
		return nil, errors.InvalidArgument("sessionID is required")
	}

	live, err := o.session(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}

	savedAt, err := o.persist(ctx, live, input.TTL)
	if err != nil {
		return nil, err
	}
	return &sessionsvc.SaveSessionOutput{SavedAt: savedAt}, nil
}

// EndSession deactivates a session after a final save, or deletes the
// save entirely when Discard is set.
func (o *Orchestrator) EndSession(ctx context.Context, input *sessionsvc.EndSessionInput) (*sessionsvc.EndSessionOutput, error) {
	if input == nil || input.SessionID == "" {
		return nil, errors.InvalidArgument("sessionID is required")
	}

	if input.Discard {
		o.deactivate(input.SessionID)
		if _, err := o.repo.Delete(ctx, &sessionrepo.DeleteInput{SessionID: input.SessionID}); err != nil {
			return nil, err
		}
		return &sessionsvc.EndSessionOutput{}, nil
	}

	live, err := o.session(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}
	if _, err := o.persist(ctx, live, 0); err != nil {
		return nil, err
	}
	o.deactivate(input.SessionID)

	return &sessionsvc.EndSessionOutput{}, nil
}

// ProcessInput runs one synchronous turn: combat routing when a fight is
// active, otherwise the narration pipeline, then a save. A failed turn
// is not saved.
func (o *Orchestrator) ProcessInput(ctx context.Context, input *sessionsvc.ProcessInputInput) (*sessionsvc.ProcessInputOutput, error) {
	if input == nil || input.SessionID == "" {
		return nil, errors.InvalidArgument("sessionID is required")
	}
	if input.Text == "" {
		return nil, errors.InvalidArgument("text is required")
	}

	live, err := o.session(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}

	var out *sessionsvc.ProcessInputOutput
	if live.combat.Phase() == combat.PhaseCombatActive {
		out, err = o.combatTurn(ctx, live, input.Text)
	} else {
		out, err = o.narrationTurn(ctx, live, input.Text)
	}
	if err != nil {
		return nil, err
	}
	if out.InCombat {
		out.CombatStatus = live.combat.Status()
	}

	if _, err := o.persist(ctx, live, 0); err != nil {
		return nil, err
	}
	return out, nil
}

// narrationTurn runs the narrator pipeline and starts an encounter when
// the player initiates combat at a node that carries one.
func (o *Orchestrator) narrationTurn(ctx context.Context, live *liveSession, text string) (*sessionsvc.ProcessInputOutput, error) {
	response, err := live.narrator.ProcessInput(ctx, text)
	if err != nil {
		return nil, err
	}

	out := &sessionsvc.ProcessInputOutput{
		Narration:      response.Narration,
		Speaker:        response.Speaker,
		PortraitType:   response.PortraitType,
		PortraitSource: response.PortraitSource,
	}
	for _, actionID := range response.TriggeredActions {
		out.Events = append(out.Events, "Something shifts: "+actionID)
	}
	if response.MoveWarning != "" {
		out.Events = append(out.Events, response.MoveWarning)
	}

	if response.Intent != nil && response.Intent.Type == narrator.IntentCombat {
		lines, err := o.startEncounter(ctx, live)
		if err != nil {
			return nil, err
		}
		out.Events = append(out.Events, lines...)
		out.InCombat = live.combat.Phase() == combat.PhaseCombatActive
	}

	return out, nil
}

// session returns the live session, activating it from the repository on
// first access.
func (o *Orchestrator) session(ctx context.Context, sessionID string) (*liveSession, error) {
	o.mu.Lock()
	live, ok := o.active[sessionID]
	o.mu.Unlock()
	if ok {
		return live, nil
	}

	loaded, err := o.repo.Get(ctx, &sessionrepo.GetInput{SessionID: sessionID})
	if err != nil {
		return nil, err
	}

	live, err = o.activate(loaded.State)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.active[sessionID] = live
	o.mu.Unlock()

	o.log.InfoContext(ctx, "session activated from store", "session_id", sessionID)
	return live, nil
}

// activate binds the pipelines to a game state
func (o *Orchestrator) activate(state *entities.GameState) (*liveSession, error) {
	worldMgr, err := world.New(&world.Config{
		Campaign:   o.campaign,
		Nodes:      o.nodes,
		NPCs:       o.npcs,
		Encounters: o.encounters,
		State:      state,
		EventBus:   o.bus,
		Clock:      o.clock,
		Logger:     o.log,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to build world manager")
	}

	engine, err := combat.New(&combat.Config{
		Roller:   o.roller,
		Monsters: o.monsters,
		Weapons:  o.weapons,
		Logger:   o.log,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to build combat engine")
	}
	if state.Combat.Active {
		engine.Restore(state.Combat)
	}

	coordinator, err := narrator.New(&narrator.Config{
		World:     worldMgr,
		Generator: o.generator,
		DMName:    o.dmName,
		Logger:    o.log,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to build narrator")
	}

	return &liveSession{
		world:    worldMgr,
		narrator: coordinator,
		combat:   engine,
	}, nil
}

func (o *Orchestrator) deactivate(sessionID string) {
	o.mu.Lock()
	delete(o.active, sessionID)
	o.mu.Unlock()
}

// persist snapshots live combat into the state and writes it
func (o *Orchestrator) persist(ctx context.Context, live *liveSession, ttl time.Duration) (time.Time, error) {
	state := live.world.State()
	state.Combat = live.combat.Snapshot()

	saved, err := o.repo.Save(ctx, &sessionrepo.SaveInput{State: state, TTL: ttl})
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "failed to save session %s", state.SessionID)
	}
	return saved.SavedAt, nil
}
