package entities

// ImagePrompt describes a scene for image generation
type ImagePrompt struct {
	Scene    string `json:"scene"`
	Style    string `json:"style,omitempty"`
	Negative string `json:"negative,omitempty"`
}

// NodeDescription has a one-line summary and the full narration text
type NodeDescription struct {
	Short       string       `json:"short"`
	Long        string       `json:"long"`
	ImagePrompt *ImagePrompt `json:"image_prompt,omitempty"`
}

// NPCPresence places an NPC at a node
type NPCPresence struct {
	NPCID                      string   `json:"npc_id"`
	Role                       string   `json:"role"`
	Required                   bool     `json:"required"`
	Topics                     []string `json:"topics,omitempty"`
	InitialDispositionModifier int      `json:"initial_disposition_modifier,omitempty"`
}

// ItemForSale is an item purchasable at a node
type ItemForSale struct {
	ItemID   string `json:"item_id"`
	Cost     string `json:"cost"`
	Quantity int    `json:"quantity"` // -1 means unlimited
}

// RelationshipUpdate is a disposition/trust delta applied by an action
type RelationshipUpdate struct {
	Disposition int `json:"disposition"`
	Trust       int `json:"trust"`
}

// SignificantAction is a gated, effectful interaction on a node.
// All requirements are checked before any effect is applied.
type SignificantAction struct {
	ActionID           string `json:"action_id"`
	TriggerDescription string `json:"trigger_description"`

	RequiresFlags        []string       `json:"requires_flags,omitempty"`
	RequiresItems        []string       `json:"requires_items,omitempty"`
	RequiresRelationship map[string]int `json:"requires_relationship,omitempty"`

	SetsFlags            []string                      `json:"sets_flags,omitempty"`
	ClearsFlags          []string                      `json:"clears_flags,omitempty"`
	GrantsItems          []string                      `json:"grants_items,omitempty"`
	RemovesItems         []string                      `json:"removes_items,omitempty"`
	GrantsQuest          string                        `json:"grants_quest,omitempty"`
	CompletesObjective   string                        `json:"completes_objective,omitempty"` // "quest_id.objective_id"
	UpdatesRelationships map[string]RelationshipUpdate `json:"updates_relationships,omitempty"`
	GrantsXP             int                           `json:"grants_xp,omitempty"`

	SuccessPrompt string `json:"success_prompt,omitempty"`
	FailurePrompt string `json:"failure_prompt,omitempty"`
}

// SoftGate warns before an exit without blocking it
type SoftGate struct {
	Condition     string `json:"condition"`
	WarningNPC    string `json:"warning_npc,omitempty"`
	WarningPrompt string `json:"warning_prompt,omitempty"`
}

// NodeExit connects a node to another
type NodeExit struct {
	TargetNode  string `json:"target_node"`
	Description string `json:"description"`
	Direction   string `json:"direction,omitempty"`

	AlwaysAvailable bool     `json:"always_available"`
	RequiresFlags   []string `json:"requires_flags,omitempty"`
	RequiresItems   []string `json:"requires_items,omitempty"`
	BlockedMessage  string   `json:"blocked_message,omitempty"`

	SoftGate *SoftGate `json:"soft_gate,omitempty"`

	TransitionPrompt string `json:"transition_prompt,omitempty"`
}

// EncounterReference ties a combat encounter to a node
type EncounterReference struct {
	EncounterID   string   `json:"encounter_id"`
	Trigger       string   `json:"trigger"` // "on_enter", "on_exit", "manual", "random"
	Chance        float64  `json:"chance,omitempty"`
	OnceOnly      bool     `json:"once_only"`
	RequiresFlags []string `json:"requires_flags,omitempty"`
}

// AmbientDetails color the node's atmosphere
type AmbientDetails struct {
	Sounds []string `json:"sounds,omitempty"`
	Smells []string `json:"smells,omitempty"`
	Mood   string   `json:"mood,omitempty"`
}

// OnEnterBehavior runs when the player enters a node
type OnEnterBehavior struct {
	NarrationPrompt  string   `json:"narration_prompt"`
	AutoApproachNPC  string   `json:"auto_approach_npc,omitempty"`
	TriggerEncounter string   `json:"trigger_encounter,omitempty"`
	SetFlags         []string `json:"set_flags,omitempty"`
}

// Node is a micro-location in the campaign graph and the primary
// context unit for narration.
type Node struct {
	NodeID    string `json:"node_id"`
	Name      string `json:"name"`
	ChapterID string `json:"chapter_id"`

	Description NodeDescription `json:"description"`

	NPCsPresent    []NPCPresence `json:"npcs_present,omitempty"`
	ItemsAvailable []ItemForSale `json:"items_available,omitempty"`
	ItemsFindable  []string      `json:"items_findable,omitempty"`

	SignificantActions map[string]*SignificantAction `json:"significant_actions,omitempty"`
	Encounters         []EncounterReference          `json:"encounters,omitempty"`

	Exits map[string]*NodeExit `json:"exits,omitempty"`

	Ambient AmbientDetails `json:"ambient"`

	OnEnterFirst      *OnEnterBehavior `json:"on_enter_first,omitempty"`
	OnEnterSubsequent *OnEnterBehavior `json:"on_enter_subsequent,omitempty"`
}

// GetID implements core.Entity
func (n *Node) GetID() string { return n.NodeID }

// GetType implements core.Entity
func (n *Node) GetType() string { return "node" }

// AvailableExits filters exits by flag and item requirements
func (n *Node) AvailableExits(flags map[string]bool, inventory []string) map[string]*NodeExit {
	held := make(map[string]bool, len(inventory))
	for _, id := range inventory {
		held[id] = true
	}

	available := make(map[string]*NodeExit)
	for exitID, exit := range n.Exits {
		if exit.AlwaysAvailable {
			available[exitID] = exit
			continue
		}
		ok := true
		for _, f := range exit.RequiresFlags {
			if !flags[f] {
				ok = false
				break
			}
		}
		if ok {
			for _, item := range exit.RequiresItems {
				if !held[item] {
					ok = false
					break
				}
			}
		}
		if ok {
			available[exitID] = exit
		}
	}
	return available
}

// PresentNPCIDs returns the ids of NPCs at this node
func (n *Node) PresentNPCIDs() []string {
	ids := make([]string, 0, len(n.NPCsPresent))
	for _, p := range n.NPCsPresent {
		ids = append(ids, p.NPCID)
	}
	return ids
}
