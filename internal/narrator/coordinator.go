package narrator

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/tavernkeep/dm-engine/internal/entities"
	"github.com/tavernkeep/dm-engine/internal/errors"
	"github.com/tavernkeep/dm-engine/internal/world"
)

// Generator produces narration text from a prompt
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// SpeakerDM is the canonical narrator speaker id
const SpeakerDM = "dm"

// defaultDMPortrait is shown when the narrator speaks
const defaultDMPortrait = "static/images/dm/dm_portrait.png"

// Portrait types
const (
	PortraitDM    = "dm"
	PortraitNPC   = "npc"
	PortraitScene = "scene"
)

var strayTags = regexp.MustCompile(`\[[^\]]+\]`)

// Response is one resolved narration turn
type Response struct {
	Narration      string
	Speaker        string // SpeakerDM or an npc id
	PortraitType   string
	PortraitSource string

	Intent *Intent

	// Applied effects, for presentation
	TriggeredActions []string
	MovedTo          string
	MoveWarning      string
}

// Config holds the Coordinator dependencies
type Config struct {
	World     *world.Manager
	Generator Generator

	// Optional; keyword defaults are used when nil
	Classifier Classifier
	Triggers   TriggerDetector

	DMName     string // name players address the narrator by
	DMPortrait string
	Logger     *slog.Logger
}

// Validate checks required fields
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()
	if c.World == nil {
		vb.RequiredField("world")
	}
	if c.Generator == nil {
		vb.RequiredField("generator")
	}
	return vb.Build()
}

// Coordinator runs the narration pipeline: classify, prompt, generate,
// validate, apply.
type Coordinator struct {
	world      *world.Manager
	generator  Generator
	classifier Classifier
	triggers   TriggerDetector
	dmPortrait string
	log        *slog.Logger
}

// New creates a Coordinator
func New(cfg *Config) (*Coordinator, error) {
	if cfg == nil {
		return nil, errors.InvalidArgument("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	classifier := cfg.Classifier
	if classifier == nil {
		classifier = NewKeywordClassifier(cfg.World, cfg.DMName)
	}
	triggers := cfg.Triggers
	if triggers == nil {
		triggers = NewKeywordTriggerDetector(cfg.World)
	}
	dmPortrait := cfg.DMPortrait
	if dmPortrait == "" {
		dmPortrait = defaultDMPortrait
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Coordinator{
		world:      cfg.World,
		generator:  cfg.Generator,
		classifier: classifier,
		triggers:   triggers,
		dmPortrait: dmPortrait,
		log:        log,
	}, nil
}

// DMPortrait returns the configured narrator portrait path
func (c *Coordinator) DMPortrait() string {
	return c.dmPortrait
}

// ProcessInput runs one narration turn. System commands short-circuit
// without calling the generator. A generator failure propagates and
// leaves the game state untouched for the turn.
func (c *Coordinator) ProcessInput(ctx context.Context, playerInput string) (*Response, error) {
	intent := c.classifier.Classify(playerInput)
	c.log.Info("classified player input", "intent", intent.String())

	if intent.Type == IntentSystem {
		return c.handleSystemCommand(intent), nil
	}

	prompt, err := c.BuildPrompt(intent)
	if err != nil {
		return nil, err
	}

	raw, err := c.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeUnavailable, "narration generation failed")
	}

	response, err := c.ParseResponse(raw, intent)
	if err != nil {
		return nil, err
	}

	if err := c.apply(ctx, response, intent); err != nil {
		return nil, err
	}
	return response, nil
}

// BuildPrompt assembles the bounded context block and the output
// contract for one turn. It does not mutate state.
func (c *Coordinator) BuildPrompt(intent *Intent) (string, error) {
	snap, err := c.world.ContextSnapshot()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are the Dungeon Master for a tabletop fantasy game.\n")
	fmt.Fprintf(&b, "Campaign: %s\n\n", snap.CampaignTitle)
	fmt.Fprintf(&b, "CURRENT LOCATION: %s\n", snap.NodeName)
	fmt.Fprintf(&b, "Description: %s\n", snap.LocationDescription)
	if snap.Ambient.Mood != "" {
		fmt.Fprintf(&b, "Atmosphere: %s\n", snap.Ambient.Mood)
	}
	b.WriteString("\n")

	if len(snap.NPCsPresent) > 0 {
		b.WriteString("NPCs PRESENT:\n")
		for _, npc := range snap.NPCsPresent {
			fmt.Fprintf(&b, "  - %s (%s): %s\n", npc.Name, npc.NPCID, npc.Description)
			fmt.Fprintf(&b, "    Attitude toward player: %s\n", npc.Attitude)
		}
	} else {
		b.WriteString("No NPCs present at this location.\n")
	}
	b.WriteString("\n")

	if snap.CurrentSpeaker != "" {
		if npc, err := c.world.NPC(snap.CurrentSpeaker); err == nil {
			fmt.Fprintf(&b, "CURRENT CONVERSATION: Player is talking to %s\n", npc.Name)
			if len(npc.Personality.Traits) > 0 {
				fmt.Fprintf(&b, "  Personality: %s\n", strings.Join(npc.Personality.Traits, ", "))
			}
			if npc.Voice.Style != "" {
				fmt.Fprintf(&b, "  Voice style: %s\n", npc.Voice.Style)
			}
			if len(npc.Voice.SpeechPatterns) > 0 {
				fmt.Fprintf(&b, "  Speech patterns: %s\n", strings.Join(npc.Voice.SpeechPatterns, ", "))
			}
			b.WriteString("\n")
		}
	}

	if len(snap.RecentExchanges) > 0 {
		b.WriteString("RECENT CONVERSATION:\n")
		for _, exchange := range snap.RecentExchanges {
			fmt.Fprintf(&b, "  %s: %s\n", exchange.Speaker, exchange.Text)
		}
		b.WriteString("\n")
	}

	c.writeIntentInstructions(&b, intent, snap)

	b.WriteString("\nRESPONSE FORMAT:\n")
	b.WriteString("Start your response with a speaker tag: [DM] for narration or [NpcName] for dialogue.\n")
	b.WriteString("Use ONLY ONE speaker tag at the start.\n")
	valid := make([]string, 0, len(snap.NPCsPresent)+1)
	valid = append(valid, "[DM]")
	for _, npc := range snap.NPCsPresent {
		valid = append(valid, "["+npc.Name+"]")
	}
	fmt.Fprintf(&b, "Valid speakers: %s\n\n", strings.Join(valid, ", "))
	b.WriteString("Keep responses concise (2-4 sentences for dialogue, 3-5 for narration).\n\n")
	fmt.Fprintf(&b, "Player says: %q\n", intent.CleanedInput)

	return b.String(), nil
}

func (c *Coordinator) writeIntentInstructions(b *strings.Builder, intent *Intent, snap *world.Snapshot) {
	switch intent.Type {
	case IntentDialogue:
		b.WriteString("INSTRUCTION: The player is speaking in character.\n")
		if snap.CurrentSpeaker != "" {
			if npc, err := c.world.NPC(snap.CurrentSpeaker); err == nil {
				fmt.Fprintf(b, "Respond as %s.\n", npc.Name)
			}
		} else {
			b.WriteString("No active conversation. Have an NPC present approach or use [DM] narration.\n")
		}

	case IntentMovement:
		b.WriteString("INSTRUCTION: The player wants to move to a new location.\n")
		b.WriteString("Respond as [DM] describing their movement.\n")
		if intent.Target != "" {
			if node, err := c.world.Node(intent.Target); err == nil {
				fmt.Fprintf(b, "They are heading to: %s\n", node.Name)
				b.WriteString("Describe the transition briefly.\n")
			}
		}

	case IntentCombat:
		b.WriteString("INSTRUCTION: The player is starting a fight.\n")
		b.WriteString("Respond as [DM] describing the moment before violence; do not resolve attacks.\n")

	default:
		b.WriteString("INSTRUCTION: The player is performing an action.\n")
		b.WriteString("Respond as [DM] describing the result of their action.\n")
		if node, err := c.world.CurrentNode(); err == nil {
			for _, actionID := range c.triggers.Detect(intent.CleanedInput, node) {
				action := node.SignificantActions[actionID]
				fmt.Fprintf(b, "NOTE: This might trigger significant action %q: %s\n",
					actionID, action.TriggerDescription)
			}
		}
	}
}

// ParseResponse extracts and validates the speaker tag and picks the
// portrait. It does not mutate state.
func (c *Coordinator) ParseResponse(raw string, intent *Intent) (*Response, error) {
	node, err := c.world.CurrentNode()
	if err != nil {
		return nil, err
	}

	tag, narration := extractSpeakerTag(raw)
	speaker := c.validateSpeaker(tag, node)
	portraitType, portraitSource := c.portraitFor(speaker, node)

	return &Response{
		Narration:      narration,
		Speaker:        speaker,
		PortraitType:   portraitType,
		PortraitSource: portraitSource,
		Intent:         intent,
	}, nil
}

// extractSpeakerTag splits the leading [Tag] off the response and strips
// any stray tags from the remainder. A missing tag defaults to DM.
func extractSpeakerTag(raw string) (tag, narration string) {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "[") {
		if end := strings.Index(raw, "]"); end > 0 {
			tag = strings.TrimSpace(raw[1:end])
			narration = strings.TrimSpace(raw[end+1:])
			narration = strings.TrimSpace(strayTags.ReplaceAllString(narration, ""))
			return tag, narration
		}
	}
	return "DM", raw
}

// validateSpeaker resolves a speaker tag via the fallback chain: exact
// NPC id, exact name, substring either way, current conversation
// speaker still present at the node, then DM.
func (c *Coordinator) validateSpeaker(tag string, node *entities.Node) string {
	tagLower := strings.ToLower(tag)
	if tagLower == SpeakerDM {
		return SpeakerDM
	}

	for _, presence := range node.NPCsPresent {
		npc, err := c.world.NPC(presence.NPCID)
		if err != nil {
			continue
		}
		idLower := strings.ToLower(presence.NPCID)
		nameLower := strings.ToLower(npc.Name)

		if tagLower == idLower || tagLower == nameLower {
			return presence.NPCID
		}
		if strings.Contains(tagLower, idLower) || strings.Contains(nameLower, tagLower) {
			return presence.NPCID
		}
	}

	current := c.world.State().Conversation.CurrentSpeaker
	if current != "" {
		for _, presence := range node.NPCsPresent {
			if presence.NPCID == current {
				c.log.Warn("invalid speaker tag, falling back to current speaker",
					"tag", tag, "speaker", current)
				return current
			}
		}
	}

	c.log.Warn("invalid speaker tag, falling back to DM", "tag", tag)
	return SpeakerDM
}

// portraitFor picks the image deterministically: the scene image on a
// first visit with a scene prompt, else the speaking NPC's portrait,
// else the DM portrait.
func (c *Coordinator) portraitFor(speaker string, node *entities.Node) (string, string) {
	if speaker == SpeakerDM {
		if c.isFirstVisit(node.NodeID) && node.Description.ImagePrompt != nil {
			return PortraitScene, node.Description.ImagePrompt.Scene
		}
		return PortraitDM, c.dmPortrait
	}

	if npc, err := c.world.NPC(speaker); err == nil {
		if npc.Appearance.PortraitURL != "" {
			return PortraitNPC, npc.Appearance.PortraitURL
		}
		return PortraitNPC, npc.Appearance.PortraitPrompt
	}
	return PortraitDM, c.dmPortrait
}

func (c *Coordinator) isFirstVisit(nodeID string) bool {
	snap, err := c.world.ContextSnapshot()
	if err != nil {
		return false
	}
	return snap.NodeID == nodeID && snap.FirstVisit
}

// apply performs the turn's state changes: speaker bookkeeping, batched
// significant-action effects, movement, and the conversation log.
func (c *Coordinator) apply(ctx context.Context, response *Response, intent *Intent) error {
	// Speaker bookkeeping: speaking as an NPC makes them the active
	// conversation partner; DM narration after a direct DM address
	// ends the conversation.
	if response.Speaker != SpeakerDM {
		c.world.SetCurrentSpeaker(response.Speaker)
	} else if intent.DMAddressed {
		c.world.SetCurrentSpeaker("")
	}

	node, err := c.world.CurrentNode()
	if err != nil {
		return err
	}
	for _, actionID := range c.triggers.Detect(intent.CleanedInput, node) {
		result, err := c.world.ExecuteSignificantAction(ctx, actionID)
		if err != nil {
			// Detection is heuristic; unmet gates are normal
			c.log.Info("triggered action did not execute",
				"action_id", actionID, "reason", errors.GetMessage(err))
			continue
		}
		response.TriggeredActions = append(response.TriggeredActions, result.ActionID)
	}

	if intent.Type == IntentMovement && intent.Target != "" {
		move, err := c.world.MoveTo(ctx, intent.Target)
		if err != nil {
			c.log.Warn("move failed", "target", intent.Target, "error", err)
		} else {
			response.MovedTo = move.Node.NodeID
			response.MoveWarning = move.GateWarning
		}
	}

	c.world.AddDialogue("player", intent.CleanedInput)
	c.world.AddDialogue(response.Speaker, response.Narration)
	return nil
}

// handleSystemCommand answers meta commands locally
func (c *Coordinator) handleSystemCommand(intent *Intent) *Response {
	response := &Response{
		Speaker:        SpeakerDM,
		PortraitType:   PortraitDM,
		PortraitSource: c.dmPortrait,
		Intent:         intent,
	}

	state := c.world.State()
	input := intent.CleanedInput

	switch {
	case strings.Contains(input, "inventory"):
		var items []string
		for _, item := range state.Character.Inventory {
			items = append(items, fmt.Sprintf("%dx %s", item.Quantity, item.ItemID))
		}
		carried := "nothing"
		if len(items) > 0 {
			carried = strings.Join(items, ", ")
		}
		response.Narration = "You are carrying: " + carried

	case strings.Contains(input, "stats"), strings.Contains(input, "character"):
		response.Narration = c.world.CharacterSummary() +
			fmt.Sprintf(", XP %d", state.Character.Experience)

	case strings.Contains(input, "help"):
		response.Narration = "Speak naturally: talk to people, describe actions, " +
			"or say where you want to go. Try: inventory, stats, save."

	case strings.Contains(input, "save"):
		// Persistence lives above this layer; surface the request
		response.Narration = "Saving your game."

	default:
		response.Narration = "I didn't understand that command."
	}

	return response
}
