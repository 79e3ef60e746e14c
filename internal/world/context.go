package world

import (
	"sort"

	"github.com/tavernkeep/dm-engine/internal/entities"
)

// NPCContext is one present NPC as seen by the prompt builder
type NPCContext struct {
	NPCID       string   `json:"npc_id"`
	Name        string   `json:"name"`
	Role        string   `json:"role,omitempty"`
	Description string   `json:"description,omitempty"`
	Attitude    string   `json:"attitude"`
	Disposition int      `json:"disposition"`
	Topics      []string `json:"topics,omitempty"`
}

// ExitContext is one available exit as seen by the prompt builder
type ExitContext struct {
	ExitID      string `json:"exit_id"`
	TargetNode  string `json:"target"`
	Direction   string `json:"direction,omitempty"`
	Description string `json:"description"`
}

// QuestContext is one active quest as seen by the prompt builder
type QuestContext struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Snapshot is the bounded context block for one narration turn. It is
// a read-only copy; mutating it does not touch game state.
type Snapshot struct {
	CampaignTitle       string `json:"campaign_title"`
	CampaignDescription string `json:"campaign_description,omitempty"`

	NodeID              string                  `json:"node_id"`
	NodeName            string                  `json:"node_name"`
	LocationDescription string                  `json:"location_description"`
	Ambient             entities.AmbientDetails `json:"ambient"`
	FirstVisit          bool                    `json:"first_visit"`

	CharacterSummary string `json:"character_summary"`

	NPCsPresent    []NPCContext    `json:"npcs_present,omitempty"`
	AvailableExits []ExitContext   `json:"available_exits,omitempty"`
	Flags          map[string]bool `json:"flags,omitempty"`
	ActiveQuests   []QuestContext  `json:"active_quests,omitempty"`

	Mode            entities.GameMode           `json:"mode"`
	CurrentSpeaker  string                      `json:"current_speaker,omitempty"`
	RecentExchanges []entities.DialogueExchange `json:"recent_exchanges,omitempty"`

	TimeOfDay entities.TimeOfDay `json:"time_of_day"`
	Weather   string             `json:"weather,omitempty"`
}

// ContextSnapshot assembles the narration context for the current
// location. Exits are sorted by id for deterministic prompts.
func (m *Manager) ContextSnapshot() (*Snapshot, error) {
	node, err := m.CurrentNode()
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		CampaignTitle:       m.campaign.Title,
		CampaignDescription: m.campaign.Description,
		NodeID:              node.NodeID,
		NodeName:            node.Name,
		LocationDescription: node.Description.Long,
		Ambient:             node.Ambient,
		FirstVisit:          m.isFirstVisit(node.NodeID),
		CharacterSummary:    m.CharacterSummary(),
		Mode:                m.state.Conversation.Mode,
		CurrentSpeaker:      m.state.Conversation.CurrentSpeaker,
		TimeOfDay:           m.state.World.TimeOfDay,
		Weather:             m.state.World.Weather,
	}

	snap.Flags = make(map[string]bool, len(m.state.StoryProgress.Flags))
	for flag, value := range m.state.StoryProgress.Flags {
		snap.Flags[flag] = value
	}

	for _, presence := range node.NPCsPresent {
		npc := m.npcs.Get(presence.NPCID)
		if npc == nil {
			m.log.Warn("node references unknown npc",
				"node_id", node.NodeID,
				"npc_id", presence.NPCID)
			continue
		}
		snap.NPCsPresent = append(snap.NPCsPresent, NPCContext{
			NPCID:       npc.NPCID,
			Name:        npc.Name,
			Role:        npc.Role,
			Description: npc.Appearance.Short,
			Attitude:    m.NPCAttitude(npc.NPCID),
			Disposition: m.NPCDisposition(npc.NPCID),
			Topics:      presence.Topics,
		})
	}

	available := node.AvailableExits(m.state.StoryProgress.Flags, m.state.Character.ItemIDs())
	exitIDs := make([]string, 0, len(available))
	for exitID := range available {
		exitIDs = append(exitIDs, exitID)
	}
	sort.Strings(exitIDs)
	for _, exitID := range exitIDs {
		exit := available[exitID]
		snap.AvailableExits = append(snap.AvailableExits, ExitContext{
			ExitID:      exitID,
			TargetNode:  exit.TargetNode,
			Direction:   exit.Direction,
			Description: exit.Description,
		})
	}

	for _, quest := range m.state.StoryProgress.ActiveQuests() {
		snap.ActiveQuests = append(snap.ActiveQuests, QuestContext{
			Name:        quest.Name,
			Description: quest.Description,
		})
	}

	if len(m.state.Conversation.RecentExchanges) > 0 {
		snap.RecentExchanges = append(snap.RecentExchanges, m.state.Conversation.RecentExchanges...)
	}

	return snap, nil
}

// isFirstVisit reports whether the current stay is the first time at
// the node. Visited nodes are appended once on first arrival, so the
// first stay is exactly when the node is the newest entry and occurs
// only once.
func (m *Manager) isFirstVisit(nodeID string) bool {
	visited := m.state.NodesVisited
	if len(visited) == 0 || visited[len(visited)-1] != nodeID {
		return false
	}
	for _, id := range visited[:len(visited)-1] {
		if id == nodeID {
			return false
		}
	}
	return true
}
