package entities

import "strings"

// NPCAppearance is presentation-only visual data
type NPCAppearance struct {
	Short          string `json:"short"`
	Detailed       string `json:"detailed,omitempty"`
	PortraitPrompt string `json:"portrait_prompt,omitempty"`
	PortraitURL    string `json:"portrait_url,omitempty"` // cached, the one mutable field
}

// NPCPersonality drives how the narrator plays the NPC
type NPCPersonality struct {
	Traits []string `json:"traits,omitempty"`
	Ideals []string `json:"ideals,omitempty"`
	Bonds  []string `json:"bonds,omitempty"`
	Flaws  []string `json:"flaws,omitempty"`
}

// NPCVoice describes speech style for narration
type NPCVoice struct {
	Style          string   `json:"style,omitempty"`
	SpeechPatterns []string `json:"speech_patterns,omitempty"`
	Catchphrases   []string `json:"catchphrases,omitempty"`
}

// Knowledge share conditions
const (
	ShareAlways        = "always"
	ShareIfAsked       = "if_asked"
	ShareRequiresTrust = "requires_trust"
	shareFlagPrefix    = "requires_flag:"
)

// KnowledgeTopic is something the NPC knows and may share
type KnowledgeTopic struct {
	TopicID        string `json:"topic_id"`
	Knows          bool   `json:"knows"`
	Information    string `json:"information,omitempty"`
	ShareCondition string `json:"share_condition"`
	TrustThreshold int    `json:"trust_threshold,omitempty"`
}

// DialogueLines are pre-written lines for common situations
type DialogueLines struct {
	GreetingFirst      string `json:"greeting_first,omitempty"`
	GreetingFriendly   string `json:"greeting_friendly,omitempty"`
	GreetingUnfriendly string `json:"greeting_unfriendly,omitempty"`
	GreetingHostile    string `json:"greeting_hostile,omitempty"`

	FarewellFriendly   string `json:"farewell_friendly,omitempty"`
	FarewellNeutral    string `json:"farewell_neutral,omitempty"`
	FarewellUnfriendly string `json:"farewell_unfriendly,omitempty"`

	Custom map[string]string `json:"custom,omitempty"`
}

// TradeConfig describes an NPC's shop behavior
type TradeConfig struct {
	CanTrade  bool     `json:"can_trade"`
	Inventory []string `json:"inventory,omitempty"`
	BuysItems bool     `json:"buys_items"`

	PriceModifier    float64 `json:"price_modifier,omitempty"`
	FriendlyDiscount float64 `json:"friendly_discount,omitempty"`
	HostileMarkup    float64 `json:"hostile_markup,omitempty"`
}

// NPC is a complete NPC definition, owned by the campaign registry and
// immutable after load except for the cached portrait URL.
type NPC struct {
	NPCID string `json:"npc_id"`
	Name  string `json:"name"`
	Race  string `json:"race,omitempty"`

	Appearance  NPCAppearance  `json:"appearance"`
	Personality NPCPersonality `json:"personality"`
	Voice       NPCVoice       `json:"voice"`

	Role       string `json:"role,omitempty"`
	Occupation string `json:"occupation,omitempty"`
	Faction    string `json:"faction,omitempty"`

	Knowledge map[string]*KnowledgeTopic `json:"knowledge,omitempty"`
	Dialogue  DialogueLines              `json:"dialogue"`

	BaseDisposition int `json:"base_disposition"`

	Trade TradeConfig `json:"trade"`

	CanFight         bool   `json:"can_fight"`
	MonsterStatBlock string `json:"monster_stat_block,omitempty"`
	IsEssential      bool   `json:"is_essential"`
}

// GetID implements core.Entity
func (n *NPC) GetID() string { return n.NPCID }

// GetType implements core.Entity
func (n *NPC) GetType() string { return "npc" }

// Greeting picks a greeting line by disposition. Neutral standing uses
// the first-meeting line.
func (n *NPC) Greeting(disposition int) string {
	switch {
	case disposition < -50:
		return n.Dialogue.GreetingHostile
	case disposition < -20:
		return n.Dialogue.GreetingUnfriendly
	case disposition < 40:
		return n.Dialogue.GreetingFirst
	default:
		return n.Dialogue.GreetingFriendly
	}
}

// Farewell picks a farewell line by disposition
func (n *NPC) Farewell(disposition int) string {
	switch {
	case disposition < -20:
		return n.Dialogue.FarewellUnfriendly
	case disposition < 40:
		return n.Dialogue.FarewellNeutral
	default:
		return n.Dialogue.FarewellFriendly
	}
}

// CanShareTopic evaluates the topic's share condition against the
// current trust and story flags.
func (n *NPC) CanShareTopic(topicID string, trust int, flags map[string]bool) bool {
	topic, ok := n.Knowledge[topicID]
	if !ok || !topic.Knows {
		return false
	}

	switch {
	case topic.ShareCondition == ShareAlways, topic.ShareCondition == ShareIfAsked:
		return true
	case topic.ShareCondition == ShareRequiresTrust:
		return trust >= topic.TrustThreshold
	case strings.HasPrefix(topic.ShareCondition, shareFlagPrefix):
		return flags[strings.TrimPrefix(topic.ShareCondition, shareFlagPrefix)]
	}
	return false
}

// TopicInfo returns the information text for a topic, if known
func (n *NPC) TopicInfo(topicID string) string {
	if topic, ok := n.Knowledge[topicID]; ok {
		return topic.Information
	}
	return ""
}

// TradePriceModifier returns the price multiplier for the current
// disposition: discount when devoted, markup when hostile.
func (n *NPC) TradePriceModifier(disposition int) float64 {
	if !n.Trade.CanTrade {
		return 1.0
	}

	base := n.Trade.PriceModifier
	if base == 0 {
		base = 1.0
	}

	switch {
	case disposition >= 60:
		return base * (1 - n.Trade.FriendlyDiscount)
	case disposition <= -50:
		return base * (1 + n.Trade.HostileMarkup)
	}
	return base
}

// NPCRegistry holds all NPCs in a campaign
type NPCRegistry struct {
	NPCs map[string]*NPC `json:"npcs"`
}

// NewNPCRegistry creates an empty registry
func NewNPCRegistry() *NPCRegistry {
	return &NPCRegistry{NPCs: make(map[string]*NPC)}
}

// Get looks an NPC up by id
func (r *NPCRegistry) Get(npcID string) *NPC {
	return r.NPCs[npcID]
}

// Add registers an NPC
func (r *NPCRegistry) Add(npc *NPC) {
	r.NPCs[npc.NPCID] = npc
}

// GetByRole returns all NPCs with the given role
func (r *NPCRegistry) GetByRole(role string) []*NPC {
	var out []*NPC
	for _, npc := range r.NPCs {
		if npc.Role == role {
			out = append(out, npc)
		}
	}
	return out
}
