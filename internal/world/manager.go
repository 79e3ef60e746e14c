// Package world owns the mutable game state for one session: the node
// graph, story flags, NPC relationships, quests, and the conversation
// mode. All mutation goes through the Manager; every mutation publishes
// a state.* domain event.
package world

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/KirkDiggler/rpg-toolkit/events"

	"github.com/tavernkeep/dm-engine/internal/entities"
	"github.com/tavernkeep/dm-engine/internal/errors"
	"github.com/tavernkeep/dm-engine/internal/pkg/clock"
)

// Config holds the Manager dependencies
type Config struct {
	Campaign   *entities.Campaign
	Nodes      map[string]*entities.Node
	NPCs       *entities.NPCRegistry
	Encounters *entities.EncounterRegistry
	State      *entities.GameState
	EventBus   events.EventBus
	Clock      clock.Clock
	Logger     *slog.Logger
}

// Validate checks required fields
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()
	if c.Campaign == nil {
		vb.RequiredField("campaign")
	}
	if len(c.Nodes) == 0 {
		vb.RequiredField("nodes")
	}
	if c.NPCs == nil {
		vb.RequiredField("npcs")
	}
	if c.State == nil {
		vb.RequiredField("state")
	}
	return vb.Build()
}

// Manager is the single writer for one session's GameState
type Manager struct {
	campaign   *entities.Campaign
	nodes      map[string]*entities.Node
	npcs       *entities.NPCRegistry
	encounters *entities.EncounterRegistry
	state      *entities.GameState
	bus        events.EventBus
	clock      clock.Clock
	log        *slog.Logger
}

// New creates a Manager for an existing game state
func New(cfg *Config) (*Manager, error) {
	if cfg == nil {
		return nil, errors.InvalidArgument("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Manager{
		campaign:   cfg.Campaign,
		nodes:      cfg.Nodes,
		npcs:       cfg.NPCs,
		encounters: cfg.Encounters,
		state:      cfg.State,
		bus:        cfg.EventBus,
		clock:      clk,
		log:        log,
	}, nil
}

// State returns the managed game state. Callers must treat it as
// read-only; mutation goes through Manager methods.
func (m *Manager) State() *entities.GameState {
	return m.state
}

// Campaign returns the loaded campaign definition
func (m *Manager) Campaign() *entities.Campaign {
	return m.campaign
}

// Node looks a node up in the campaign's node table
func (m *Manager) Node(nodeID string) (*entities.Node, error) {
	node, ok := m.nodes[nodeID]
	if !ok {
		return nil, errors.NotFoundf("node %q not found", nodeID)
	}
	return node, nil
}

// CurrentNode returns the node the character is at
func (m *Manager) CurrentNode() (*entities.Node, error) {
	return m.Node(m.state.Location.NodeID)
}

// NPC looks an NPC up in the campaign registry
func (m *Manager) NPC(npcID string) (*entities.NPC, error) {
	npc := m.npcs.Get(npcID)
	if npc == nil {
		return nil, errors.NotFoundf("npc %q not found", npcID)
	}
	return npc, nil
}

// Encounter looks an encounter up in the campaign registry
func (m *Manager) Encounter(encounterID string) (*entities.Encounter, error) {
	if m.encounters == nil {
		return nil, errors.NotFoundf("encounter %q not found", encounterID)
	}
	enc := m.encounters.Get(encounterID)
	if enc == nil {
		return nil, errors.NotFoundf("encounter %q not found", encounterID)
	}
	return enc, nil
}

// AvailableExits returns the current node's exits whose flag and item
// requirements hold.
func (m *Manager) AvailableExits() (map[string]*entities.NodeExit, error) {
	node, err := m.CurrentNode()
	if err != nil {
		return nil, err
	}
	return node.AvailableExits(m.state.StoryProgress.Flags, m.state.Character.ItemIDs()), nil
}

// MoveResult describes a completed move
type MoveResult struct {
	Node       *entities.Node
	FirstVisit bool

	// ViaExit is false when the target was not among the current
	// node's available exits. The move still happens; movement is
	// advisory-gated so orchestration can override the graph.
	ViaExit bool

	TransitionPrompt string
	GateWarning      string
	OnEnter          *entities.OnEnterBehavior
}

// MoveTo moves the character to a node. It fails only when the target
// id is unknown; moving outside the available exits succeeds but is
// logged as anomalous. Soft gates warn without blocking.
func (m *Manager) MoveTo(ctx context.Context, targetID string) (*MoveResult, error) {
	target, err := m.Node(targetID)
	if err != nil {
		return nil, err
	}

	from := m.state.Location.NodeID
	result := &MoveResult{Node: target}

	available, err := m.AvailableExits()
	if err == nil {
		for _, exit := range available {
			if exit.TargetNode == targetID {
				result.ViaExit = true
				result.TransitionPrompt = exit.TransitionPrompt
				if exit.SoftGate != nil && !m.CheckCondition(exit.SoftGate.Condition) {
					result.GateWarning = exit.SoftGate.WarningPrompt
				}
				break
			}
		}
	}
	if !result.ViaExit {
		m.log.Warn("move outside available exits",
			"from", from,
			"to", targetID)
	}

	now := m.clock.Now()
	result.FirstVisit = !m.state.HasVisited(targetID)

	m.state.Location.PreviousNode = from
	m.state.Location.NodeID = targetID
	if target.ChapterID != "" {
		m.state.Location.ChapterID = target.ChapterID
	}
	m.state.Location.EnteredAt = now
	if result.FirstVisit {
		m.state.NodesVisited = append(m.state.NodesVisited, targetID)
	}

	if result.FirstVisit {
		result.OnEnter = target.OnEnterFirst
	} else {
		result.OnEnter = target.OnEnterSubsequent
	}
	if result.OnEnter != nil {
		for _, flag := range result.OnEnter.SetFlags {
			m.SetFlag(ctx, flag)
		}
	}

	m.state.RecordAction("move", map[string]interface{}{
		"from":     from,
		"to":       targetID,
		"via_exit": result.ViaExit,
	}, now)

	m.publish(ctx, TopicMoved, map[string]interface{}{
		"from":        from,
		"to":          targetID,
		"first_visit": result.FirstVisit,
	})

	return result, nil
}

// CheckCondition evaluates a flag expression: OR of ANDs with `!`
// negation and no grouping. The empty expression is true.
func (m *Manager) CheckCondition(expr string) bool {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return true
	}

	for _, alternative := range strings.Split(expr, "||") {
		holds := true
		for _, term := range strings.Split(alternative, "&&") {
			term = strings.TrimSpace(term)
			if flag, negated := strings.CutPrefix(term, "!"); negated {
				if m.state.StoryProgress.HasFlag(strings.TrimSpace(flag)) {
					holds = false
					break
				}
			} else if !m.state.StoryProgress.HasFlag(term) {
				holds = false
				break
			}
		}
		if holds {
			return true
		}
	}
	return false
}

// HasFlag reports whether a story flag is set
func (m *Manager) HasFlag(flag string) bool {
	return m.state.StoryProgress.HasFlag(flag)
}

// SetFlag sets a story flag true
func (m *Manager) SetFlag(ctx context.Context, flag string) {
	m.state.StoryProgress.Flags[flag] = true
	m.publish(ctx, TopicFlagSet, map[string]interface{}{"flag": flag})
}

// ClearFlag sets a story flag false
func (m *Manager) ClearFlag(ctx context.Context, flag string) {
	m.state.StoryProgress.Flags[flag] = false
	m.publish(ctx, TopicFlagCleared, map[string]interface{}{"flag": flag})
}

// ModifyRelationship applies clamped disposition and trust deltas to
// the relationship with an NPC, recording the triggering event.
func (m *Manager) ModifyRelationship(ctx context.Context, npcID string, dDisposition, dTrust int, event string) *entities.NPCRelationship {
	rel := m.state.Relationship(npcID)
	rel.Adjust(dDisposition, dTrust, event, m.clock.Now())

	m.publish(ctx, TopicRelationship, map[string]interface{}{
		"npc_id":      npcID,
		"disposition": rel.Disposition,
		"trust":       rel.Trust,
		"event":       event,
	})
	return rel
}

// NPCDisposition returns the current disposition with an NPC, falling
// back to the NPC's base disposition before first contact.
func (m *Manager) NPCDisposition(npcID string) int {
	if rel, ok := m.state.Relationships[npcID]; ok {
		return rel.Disposition
	}
	if npc := m.npcs.Get(npcID); npc != nil {
		return npc.BaseDisposition
	}
	return 0
}

// NPCAttitude returns the attitude band for the current disposition
func (m *Manager) NPCAttitude(npcID string) string {
	return entities.DispositionAttitude(m.NPCDisposition(npcID))
}

// NPCGreeting returns the greeting line for an NPC. The first meeting
// uses the first-meeting line and marks the NPC as met.
func (m *Manager) NPCGreeting(npcID string) (string, error) {
	npc, err := m.NPC(npcID)
	if err != nil {
		return "", err
	}

	rel := m.state.Relationship(npcID)
	if !rel.Met {
		rel.Met = true
		return npc.Dialogue.GreetingFirst, nil
	}
	return npc.Greeting(rel.Disposition), nil
}

// NPCFarewell returns the farewell line for an NPC by disposition
func (m *Manager) NPCFarewell(npcID string) (string, error) {
	npc, err := m.NPC(npcID)
	if err != nil {
		return "", err
	}
	return npc.Farewell(m.NPCDisposition(npcID)), nil
}

// NPCKnowledge returns the information for a topic when the NPC is
// willing to share it under the current trust and flags.
func (m *Manager) NPCKnowledge(npcID, topicID string) (string, bool) {
	npc := m.npcs.Get(npcID)
	if npc == nil {
		return "", false
	}

	trust := 0
	if rel, ok := m.state.Relationships[npcID]; ok {
		trust = rel.Trust
	}
	if !npc.CanShareTopic(topicID, trust, m.state.StoryProgress.Flags) {
		return "", false
	}
	return npc.TopicInfo(topicID), true
}

// NPCTradePriceModifier returns the price multiplier an NPC charges at
// the current disposition.
func (m *Manager) NPCTradePriceModifier(npcID string) float64 {
	npc := m.npcs.Get(npcID)
	if npc == nil {
		return 1.0
	}
	return npc.TradePriceModifier(m.NPCDisposition(npcID))
}

// StartQuest begins a quest. The name defaults to the quest id. Starting
// an already-known quest is a no-op returning the existing quest.
func (m *Manager) StartQuest(ctx context.Context, questID, name, description string) *entities.Quest {
	for _, q := range m.state.StoryProgress.Quests {
		if q.QuestID == questID {
			m.log.Warn("quest already started", "quest_id", questID)
			return q
		}
	}

	if name == "" {
		name = questID
	}
	quest := &entities.Quest{
		QuestID:     questID,
		Name:        name,
		Description: description,
		Status:      entities.QuestActive,
		StartedAt:   m.clock.Now(),
	}
	m.state.StoryProgress.Quests = append(m.state.StoryProgress.Quests, quest)

	m.publish(ctx, TopicQuestStarted, map[string]interface{}{"quest_id": questID})
	return quest
}

// CompleteObjective marks a quest objective complete. Unknown quest or
// objective ids are a no-op with a logged warning. Completing the last
// objective completes the quest.
func (m *Manager) CompleteObjective(ctx context.Context, questID, objectiveID string) bool {
	var quest *entities.Quest
	for _, q := range m.state.StoryProgress.Quests {
		if q.QuestID == questID {
			quest = q
			break
		}
	}
	if quest == nil {
		m.log.Warn("objective for unknown quest", "quest_id", questID, "objective_id", objectiveID)
		return false
	}

	now := m.clock.Now()
	found := false
	allDone := true
	for i := range quest.Objectives {
		obj := &quest.Objectives[i]
		if obj.ID == objectiveID {
			found = true
			obj.Completed = true
			obj.CompletedAt = &now
		}
		if !obj.Completed {
			allDone = false
		}
	}
	if !found {
		m.log.Warn("unknown objective", "quest_id", questID, "objective_id", objectiveID)
		return false
	}

	if allDone && len(quest.Objectives) > 0 {
		quest.Status = entities.QuestCompleted
		quest.CompletedAt = &now
	}

	m.publish(ctx, TopicObjectiveCompleted, map[string]interface{}{
		"quest_id":     questID,
		"objective_id": objectiveID,
	})
	return true
}

// GrantXP adds experience to the character
func (m *Manager) GrantXP(ctx context.Context, amount int) {
	if amount <= 0 {
		return
	}
	m.state.Character.Experience += amount
	m.publish(ctx, TopicXPGranted, map[string]interface{}{
		"amount": amount,
		"total":  m.state.Character.Experience,
	})
}

// GrantItem adds one of an item to the inventory, stacking with any
// existing entry.
func (m *Manager) GrantItem(itemID string) {
	for i := range m.state.Character.Inventory {
		if m.state.Character.Inventory[i].ItemID == itemID {
			m.state.Character.Inventory[i].Quantity++
			return
		}
	}
	m.state.Character.Inventory = append(m.state.Character.Inventory, entities.InventoryItem{
		ItemID:   itemID,
		Quantity: 1,
	})
}

// RemoveItem removes one of an item from the inventory, dropping the
// entry when the stack empties. Removing an unheld item is a no-op.
func (m *Manager) RemoveItem(itemID string) {
	for i := range m.state.Character.Inventory {
		if m.state.Character.Inventory[i].ItemID != itemID {
			continue
		}
		m.state.Character.Inventory[i].Quantity--
		if m.state.Character.Inventory[i].Quantity <= 0 {
			m.state.Character.Inventory = append(
				m.state.Character.Inventory[:i],
				m.state.Character.Inventory[i+1:]...)
		}
		return
	}
}

// SetCurrentSpeaker sets the active conversation partner. An empty id
// ends the conversation and returns to exploration mode.
func (m *Manager) SetCurrentSpeaker(npcID string) {
	m.state.Conversation.CurrentSpeaker = npcID
	if npcID == "" {
		m.state.Conversation.Mode = entities.ModeExploration
	} else {
		m.state.Conversation.Mode = entities.ModeDialogue
	}
}

// SetMode switches the interaction mode directly. Combat orchestration
// uses this; dialogue transitions go through SetCurrentSpeaker.
func (m *Manager) SetMode(mode entities.GameMode) {
	m.state.Conversation.Mode = mode
}

// AddDialogue appends a line to the rolling conversation log
func (m *Manager) AddDialogue(speaker, text string) {
	m.state.Conversation.AddExchange(speaker, text, m.clock.Now())
}

// ActionResult describes the effects of an executed significant action
type ActionResult struct {
	ActionID      string
	SuccessPrompt string

	FlagsSet           []string
	FlagsCleared       []string
	ItemsGranted       []string
	ItemsRemoved       []string
	QuestStarted       string
	ObjectiveCompleted string
	XPGranted          int
}

// ExecuteSignificantAction runs a gated action on the current node.
// Every requirement is validated before any effect applies; on failure
// nothing is mutated and a FailedPrecondition error carries the reason.
func (m *Manager) ExecuteSignificantAction(ctx context.Context, actionID string) (*ActionResult, error) {
	node, err := m.CurrentNode()
	if err != nil {
		return nil, err
	}
	action, ok := node.SignificantActions[actionID]
	if !ok {
		return nil, errors.NotFoundf("action %q not found at node %q", actionID, node.NodeID)
	}

	// Validation phase: no mutation
	for _, flag := range action.RequiresFlags {
		if !m.state.StoryProgress.HasFlag(flag) {
			return nil, errors.FailedPreconditionf("requires flag %q", flag)
		}
	}
	for _, item := range action.RequiresItems {
		if !m.state.Character.HasItem(item) {
			return nil, errors.FailedPreconditionf("requires item %q", item)
		}
	}
	for npcID, threshold := range action.RequiresRelationship {
		if m.NPCDisposition(npcID) < threshold {
			return nil, errors.FailedPreconditionf(
				"requires disposition %d with %q", threshold, npcID)
		}
	}

	// Effect phase: applied as one batch
	result := &ActionResult{
		ActionID:      actionID,
		SuccessPrompt: action.SuccessPrompt,
	}

	for _, flag := range action.SetsFlags {
		m.SetFlag(ctx, flag)
		result.FlagsSet = append(result.FlagsSet, flag)
	}
	for _, flag := range action.ClearsFlags {
		m.ClearFlag(ctx, flag)
		result.FlagsCleared = append(result.FlagsCleared, flag)
	}
	for npcID, update := range action.UpdatesRelationships {
		m.ModifyRelationship(ctx, npcID, update.Disposition, update.Trust, "action:"+actionID)
	}
	for _, item := range action.GrantsItems {
		m.GrantItem(item)
		result.ItemsGranted = append(result.ItemsGranted, item)
	}
	for _, item := range action.RemovesItems {
		m.RemoveItem(item)
		result.ItemsRemoved = append(result.ItemsRemoved, item)
	}
	if action.GrantsQuest != "" {
		m.StartQuest(ctx, action.GrantsQuest, "", "")
		result.QuestStarted = action.GrantsQuest
	}
	if action.CompletesObjective != "" {
		questID, objectiveID, ok := strings.Cut(action.CompletesObjective, ".")
		if ok {
			m.CompleteObjective(ctx, questID, objectiveID)
			result.ObjectiveCompleted = action.CompletesObjective
		} else {
			m.log.Warn("malformed objective reference",
				"action_id", actionID,
				"reference", action.CompletesObjective)
		}
	}
	if action.GrantsXP > 0 {
		m.GrantXP(ctx, action.GrantsXP)
		result.XPGranted = action.GrantsXP
	}

	m.state.RecordAction("significant_action", map[string]interface{}{
		"action_id": actionID,
		"node_id":   node.NodeID,
	}, m.clock.Now())

	m.publish(ctx, TopicActionExecuted, map[string]interface{}{
		"action_id": actionID,
		"node_id":   node.NodeID,
	})

	return result, nil
}

// timeOfDayOrder drives the world clock cycle
var timeOfDayOrder = []entities.TimeOfDay{
	entities.TimeDawn,
	entities.TimeMorning,
	entities.TimeMidday,
	entities.TimeAfternoon,
	entities.TimeEvening,
	entities.TimeNight,
}

// AdvanceTime moves the world clock to the next time of day, rolling
// the day counter when night passes into dawn.
func (m *Manager) AdvanceTime() {
	current := m.state.World.TimeOfDay
	for i, tod := range timeOfDayOrder {
		if tod == current {
			next := timeOfDayOrder[(i+1)%len(timeOfDayOrder)]
			m.state.World.TimeOfDay = next
			if next == entities.TimeDawn {
				m.state.World.DaysElapsed++
			}
			return
		}
	}
	m.state.World.TimeOfDay = entities.TimeMorning
}

// SetWeather sets the ambient weather
func (m *Manager) SetWeather(weather string) {
	m.state.World.Weather = weather
}

// CharacterSummary renders a one-line sheet summary for prompts
func (m *Manager) CharacterSummary() string {
	c := m.state.Character
	return fmt.Sprintf("%s, level %d %s %s, HP %d/%d, AC %d",
		c.Name, c.Level, c.Race, c.Class, c.HP.Current, c.HP.Max, c.ArmorClass)
}
