package entities

import (
	"time"

	"github.com/KirkDiggler/rpg-toolkit/core"

	"github.com/tavernkeep/dm-engine/internal/errors"
)

// Campaign content and the game state carry toolkit entity identity so
// they can source events on the bus.
var (
	_ core.Entity = (*GameState)(nil)
	_ core.Entity = (*Campaign)(nil)
	_ core.Entity = (*Node)(nil)
	_ core.Entity = (*NPC)(nil)
	_ core.Entity = (*Encounter)(nil)
)

// GameMode describes what kind of interaction the session is in
type GameMode string

// Game modes
const (
	ModeExploration GameMode = "exploration"
	ModeDialogue    GameMode = "dialogue"
	ModeNarration   GameMode = "dm_narration"
	ModeCombat      GameMode = "combat"
)

// TimeOfDay tracks the in-world clock
type TimeOfDay string

// Times of day
const (
	TimeDawn      TimeOfDay = "dawn"
	TimeMorning   TimeOfDay = "morning"
	TimeMidday    TimeOfDay = "midday"
	TimeAfternoon TimeOfDay = "afternoon"
	TimeEvening   TimeOfDay = "evening"
	TimeNight     TimeOfDay = "night"
)

// AbilityScores holds the six core ability scores
type AbilityScores struct {
	Strength     int `json:"str"`
	Dexterity    int `json:"dex"`
	Constitution int `json:"con"`
	Intelligence int `json:"int"`
	Wisdom       int `json:"wis"`
	Charisma     int `json:"cha"`
}

// Score returns the score for a short ability name ("str", "dex", ...).
// Unknown names return 10, the neutral score.
func (a AbilityScores) Score(ability string) int {
	switch ability {
	case "str", "strength":
		return a.Strength
	case "dex", "dexterity":
		return a.Dexterity
	case "con", "constitution":
		return a.Constitution
	case "int", "intelligence":
		return a.Intelligence
	case "wis", "wisdom":
		return a.Wisdom
	case "cha", "charisma":
		return a.Charisma
	}
	return 10
}

// Modifier returns the ability modifier using floor division,
// so score 9 gives -1 rather than 0.
func (a AbilityScores) Modifier(ability string) int {
	return AbilityModifier(a.Score(ability))
}

// AbilityModifier computes floor((score-10)/2)
func AbilityModifier(score int) int {
	modifier := (score - 10) / 2
	// Go truncates toward zero; adjust for negative odd differences
	if score < 10 && (score-10)%2 != 0 {
		modifier--
	}
	return modifier
}

// HitPoints tracks current, max, and temporary HP
type HitPoints struct {
	Current int `json:"current"`
	Max     int `json:"max"`
	Temp    int `json:"temp"`
}

// Currency in coins
type Currency struct {
	Copper   int `json:"cp"`
	Silver   int `json:"sp"`
	Gold     int `json:"gp"`
	Platinum int `json:"pp"`
}

// TotalInGold converts all coins to a gold equivalent
func (c Currency) TotalInGold() float64 {
	return float64(c.Copper)/100 + float64(c.Silver)/10 + float64(c.Gold) + float64(c.Platinum)*10
}

// InventoryItem is one stack of items the character carries
type InventoryItem struct {
	ItemID     string `json:"item_id"`
	Quantity   int    `json:"quantity"`
	Equipped   bool   `json:"equipped"`
	CustomName string `json:"custom_name,omitempty"`
}

// Proficiencies lists what the character is proficient with
type Proficiencies struct {
	Skills       []string `json:"skills,omitempty"`
	Armor        []string `json:"armor,omitempty"`
	Weapons      []string `json:"weapons,omitempty"`
	Tools        []string `json:"tools,omitempty"`
	SavingThrows []string `json:"saving_throws,omitempty"`
}

// Character is the player character's sheet
type Character struct {
	Name             string          `json:"name"`
	Race             string          `json:"race"`
	Class            string          `json:"class"`
	Level            int             `json:"level"`
	Experience       int             `json:"experience"`
	AbilityScores    AbilityScores   `json:"ability_scores"`
	HP               HitPoints       `json:"hp"`
	ArmorClass       int             `json:"armor_class"`
	Speed            int             `json:"speed"`
	ProficiencyBonus int             `json:"proficiency_bonus"`
	Proficiencies    Proficiencies   `json:"proficiencies"`
	Inventory        []InventoryItem `json:"inventory,omitempty"`
	Gold             Currency        `json:"gold"`
	ClassFeatures    []string        `json:"class_features,omitempty"`
	Conditions       []string        `json:"conditions,omitempty"`
}

// HasItem reports whether the character carries at least one of the item
func (c *Character) HasItem(itemID string) bool {
	for _, item := range c.Inventory {
		if item.ItemID == itemID && item.Quantity > 0 {
			return true
		}
	}
	return false
}

// ItemIDs returns the ids of all carried items
func (c *Character) ItemIDs() []string {
	ids := make([]string, 0, len(c.Inventory))
	for _, item := range c.Inventory {
		if item.Quantity > 0 {
			ids = append(ids, item.ItemID)
		}
	}
	return ids
}

// CharacterConfig holds the invariant-bearing fields for NewCharacter
type CharacterConfig struct {
	Name          string
	Race          string
	Class         string
	Level         int
	AbilityScores AbilityScores
	HPMax         int
	ArmorClass    int
	Speed         int
}

// Validate checks required fields and score ranges
func (c *CharacterConfig) Validate() error {
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("name", c.Name, vb)
	errors.ValidateRequired("race", c.Race, vb)
	errors.ValidateRequired("class", c.Class, vb)
	errors.ValidateRange("level", c.Level, 1, 20, vb)
	errors.ValidateRange("hpMax", c.HPMax, 1, 999, vb)
	for _, score := range []struct {
		name  string
		value int
	}{
		{"str", c.AbilityScores.Strength},
		{"dex", c.AbilityScores.Dexterity},
		{"con", c.AbilityScores.Constitution},
		{"int", c.AbilityScores.Intelligence},
		{"wis", c.AbilityScores.Wisdom},
		{"cha", c.AbilityScores.Charisma},
	} {
		errors.ValidateRange(score.name, score.value, 1, 30, vb)
	}
	return vb.Build()
}

// NewCharacter builds a validated character sheet. Proficiency bonus
// follows level per the SRD progression.
func NewCharacter(cfg *CharacterConfig) (*Character, error) {
	if cfg == nil {
		return nil, errors.InvalidArgument("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	armorClass := cfg.ArmorClass
	if armorClass == 0 {
		armorClass = 10
	}
	speed := cfg.Speed
	if speed == 0 {
		speed = 30
	}

	return &Character{
		Name:             cfg.Name,
		Race:             cfg.Race,
		Class:            cfg.Class,
		Level:            cfg.Level,
		AbilityScores:    cfg.AbilityScores,
		HP:               HitPoints{Current: cfg.HPMax, Max: cfg.HPMax},
		ArmorClass:       armorClass,
		Speed:            speed,
		ProficiencyBonus: 2 + (cfg.Level-1)/4,
	}, nil
}

// Location is where the character currently is in the node graph
type Location struct {
	ChapterID    string    `json:"chapter_id"`
	NodeID       string    `json:"node_id"`
	PreviousNode string    `json:"previous_node,omitempty"`
	EnteredAt    time.Time `json:"entered_at"`
}

// QuestObjective is one step of a quest
type QuestObjective struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Quest statuses
const (
	QuestActive    = "active"
	QuestCompleted = "completed"
	QuestFailed    = "failed"
)

// Quest tracks one quest and its objectives
type Quest struct {
	QuestID     string           `json:"quest_id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Status      string           `json:"status"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Objectives  []QuestObjective `json:"objectives,omitempty"`
}

// StoryProgress holds flags and quests
type StoryProgress struct {
	Flags  map[string]bool `json:"flags"`
	Quests []*Quest        `json:"quests,omitempty"`
}

// HasFlag reports whether a flag is set true; unset flags are false
func (s *StoryProgress) HasFlag(flag string) bool {
	return s.Flags[flag]
}

// ActiveQuests returns quests with active status
func (s *StoryProgress) ActiveQuests() []*Quest {
	var active []*Quest
	for _, q := range s.Quests {
		if q.Status == QuestActive {
			active = append(active, q)
		}
	}
	return active
}

// RelationshipEvent records one disposition-changing event
type RelationshipEvent struct {
	Event     string    `json:"event"`
	Change    int       `json:"change"`
	Timestamp time.Time `json:"timestamp"`
}

// Disposition and trust bounds
const (
	DispositionMin = -100
	DispositionMax = 100
	TrustMin       = 0
	TrustMax       = 100
)

// NPCRelationship tracks standing with one NPC. Disposition is bounded
// [-100,100], trust [0,100]; both are clamped on every write.
type NPCRelationship struct {
	NPCID       string              `json:"npc_id"`
	Disposition int                 `json:"disposition"`
	Trust       int                 `json:"trust"`
	Met         bool                `json:"met"`
	History     []RelationshipEvent `json:"history,omitempty"`
}

// NewNPCRelationship creates a relationship with clamped starting values
func NewNPCRelationship(npcID string, disposition, trust int) *NPCRelationship {
	return &NPCRelationship{
		NPCID:       npcID,
		Disposition: clampInt(disposition, DispositionMin, DispositionMax),
		Trust:       clampInt(trust, TrustMin, TrustMax),
	}
}

// Adjust applies clamped disposition and trust deltas and records the
// triggering event.
func (r *NPCRelationship) Adjust(dDisposition, dTrust int, event string, at time.Time) {
	r.Disposition = clampInt(r.Disposition+dDisposition, DispositionMin, DispositionMax)
	r.Trust = clampInt(r.Trust+dTrust, TrustMin, TrustMax)
	if event != "" {
		r.History = append(r.History, RelationshipEvent{
			Event:     event,
			Change:    dDisposition,
			Timestamp: at,
		})
	}
}

// Attitude bands disposition into hostile/unfriendly/neutral/friendly/devoted
func (r *NPCRelationship) Attitude() string {
	return DispositionAttitude(r.Disposition)
}

// DispositionAttitude bands a raw disposition value
func DispositionAttitude(disposition int) string {
	switch {
	case disposition < -50:
		return "hostile"
	case disposition < -20:
		return "unfriendly"
	case disposition < 20:
		return "neutral"
	case disposition < 50:
		return "friendly"
	default:
		return "devoted"
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// DialogueExchange is one line of conversation
type DialogueExchange struct {
	Speaker   string    `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// MaxRecentExchanges bounds the rolling conversation log
const MaxRecentExchanges = 10

// ConversationState tracks who is talking and the recent exchange log
type ConversationState struct {
	CurrentSpeaker  string             `json:"current_speaker,omitempty"`
	Mode            GameMode           `json:"mode"`
	RecentExchanges []DialogueExchange `json:"recent_exchanges,omitempty"`
}

// AddExchange appends a line and trims the log to the most recent entries
func (c *ConversationState) AddExchange(speaker, text string, at time.Time) {
	c.RecentExchanges = append(c.RecentExchanges, DialogueExchange{
		Speaker:   speaker,
		Text:      text,
		Timestamp: at,
	})
	if len(c.RecentExchanges) > MaxRecentExchanges {
		c.RecentExchanges = c.RecentExchanges[len(c.RecentExchanges)-MaxRecentExchanges:]
	}
}

// Attack is one attack option a combatant can use. DamageDice may be a
// dice expression ("1d8") or a flat value ("1" for unarmed strikes).
type Attack struct {
	Name           string `json:"name"`
	AttackBonus    int    `json:"attack_bonus"`
	DamageDice     string `json:"damage_dice"`
	DamageModifier int    `json:"damage_modifier"`
	DamageType     string `json:"damage_type"`
}

// Combatant is a participant in combat. A player combatant stays alive
// at 0 HP until three failed death saves; anyone else is defeated at 0.
type Combatant struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	HPCurrent          int      `json:"hp_current"`
	HPMax              int      `json:"hp_max"`
	ArmorClass         int      `json:"armor_class"`
	Initiative         int      `json:"initiative"`
	InitiativeModifier int      `json:"initiative_modifier"`
	IsPlayer           bool     `json:"is_player"`
	Attacks            []Attack `json:"attacks,omitempty"`
	Speed              int      `json:"speed"`
	Conditions         []string `json:"conditions,omitempty"`
	IsConscious        bool     `json:"is_conscious"`
	DeathSaveSuccesses int      `json:"death_save_successes"`
	DeathSaveFailures  int      `json:"death_save_failures"`
	XPValue            int      `json:"xp_value,omitempty"`
}

// IsAlive reports whether the combatant is still in the fight
func (c *Combatant) IsAlive() bool {
	return c.HPCurrent > 0 || (c.IsPlayer && c.DeathSaveFailures < 3)
}

// CombatState is the persisted snapshot of an active combat
type CombatState struct {
	Active           bool                  `json:"active"`
	Round            int                   `json:"round"`
	TurnOrder        []string              `json:"turn_order,omitempty"`
	CurrentTurnIndex int                   `json:"current_turn_index"`
	Combatants       map[string]*Combatant `json:"combatants,omitempty"`
	Environment      string                `json:"environment,omitempty"`
}

// WorldState is the ambient world clock
type WorldState struct {
	TimeOfDay    TimeOfDay `json:"time_of_day"`
	Weather      string    `json:"weather"`
	DaysElapsed  int       `json:"days_elapsed"`
	GlobalEvents []string  `json:"global_events,omitempty"`
}

// ActionRecord is one entry in the action history
type ActionRecord struct {
	Action    string                 `json:"action"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// GameState is the master mutable state for one play session. It is
// mutated only through the world StateManager and serializes to JSON
// with full round-trip fidelity.
type GameState struct {
	SessionID  string    `json:"session_id"`
	CampaignID string    `json:"campaign_id"`
	StartedAt  time.Time `json:"started_at"`
	LastSaved  time.Time `json:"last_saved"`

	Character     *Character                  `json:"character"`
	Location      Location                    `json:"location"`
	StoryProgress StoryProgress               `json:"story_progress"`
	Relationships map[string]*NPCRelationship `json:"relationships"`

	Conversation ConversationState `json:"conversation"`
	Combat       CombatState       `json:"combat"`
	World        WorldState        `json:"world"`

	ActionHistory []ActionRecord `json:"action_history,omitempty"`
	NodesVisited  []string       `json:"nodes_visited,omitempty"`
}

// GetID implements core.Entity
func (g *GameState) GetID() string { return g.SessionID }

// GetType implements core.Entity
func (g *GameState) GetType() string { return "game_session" }

// GameStateConfig holds the fields required to start a session
type GameStateConfig struct {
	SessionID  string
	CampaignID string
	Character  *Character
	ChapterID  string
	NodeID     string
	Now        time.Time
}

// Validate checks required fields
func (c *GameStateConfig) Validate() error {
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("sessionID", c.SessionID, vb)
	errors.ValidateRequired("campaignID", c.CampaignID, vb)
	errors.ValidateRequired("chapterID", c.ChapterID, vb)
	errors.ValidateRequired("nodeID", c.NodeID, vb)
	if c.Character == nil {
		vb.RequiredField("character")
	}
	return vb.Build()
}

// NewGameState creates the state for a fresh session at the campaign's
// starting node. The starting node counts as visited.
func NewGameState(cfg *GameStateConfig) (*GameState, error) {
	if cfg == nil {
		return nil, errors.InvalidArgument("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := cfg.Now
	if now.IsZero() {
		now = time.Now()
	}

	return &GameState{
		SessionID:  cfg.SessionID,
		CampaignID: cfg.CampaignID,
		StartedAt:  now,
		LastSaved:  now,
		Character:  cfg.Character,
		Location: Location{
			ChapterID: cfg.ChapterID,
			NodeID:    cfg.NodeID,
			EnteredAt: now,
		},
		StoryProgress: StoryProgress{Flags: make(map[string]bool)},
		Relationships: make(map[string]*NPCRelationship),
		Conversation:  ConversationState{Mode: ModeExploration},
		World:         WorldState{TimeOfDay: TimeMorning, Weather: "clear"},
		NodesVisited:  []string{cfg.NodeID},
	}, nil
}

// Relationship returns the relationship with an NPC, creating a neutral
// one on first contact.
func (g *GameState) Relationship(npcID string) *NPCRelationship {
	if rel, ok := g.Relationships[npcID]; ok {
		return rel
	}
	rel := NewNPCRelationship(npcID, 50, 50)
	g.Relationships[npcID] = rel
	return rel
}

// RecordAction appends to the action history and bumps LastSaved
func (g *GameState) RecordAction(action string, details map[string]interface{}, at time.Time) {
	g.ActionHistory = append(g.ActionHistory, ActionRecord{
		Action:    action,
		Details:   details,
		Timestamp: at,
	})
	g.LastSaved = at
}

// HasVisited reports whether a node has been entered before
func (g *GameState) HasVisited(nodeID string) bool {
	for _, id := range g.NodesVisited {
		if id == nodeID {
			return true
		}
	}
	return false
}
