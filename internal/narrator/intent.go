// Package narrator turns raw player input into narration: it classifies
// intent, builds the generation prompt from the world context, validates
// the generated response, and applies the resulting state changes.
package narrator

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/tavernkeep/dm-engine/internal/world"
)

// IntentType is what the player is trying to do
type IntentType string

// Intent types
const (
	IntentDialogue IntentType = "dialogue"
	IntentAction   IntentType = "action"
	IntentMovement IntentType = "movement"
	IntentCombat   IntentType = "combat"
	IntentSystem   IntentType = "system"
)

// Intent is the parsed player input
type Intent struct {
	Type         IntentType
	Target       string // npc id or node id, depending on type
	RawInput     string
	CleanedInput string
	DMAddressed  bool
}

// Classifier parses raw player input into an Intent
type Classifier interface {
	Classify(input string) *Intent
}

// Keyword tables for the default classifier
var (
	movementKeywords = []string{
		"go to", "head to", "walk to", "travel to", "leave",
		"exit", "enter", "move to", "go back", "return to",
	}
	combatKeywords = []string{"attack", "fight", "strike", "hit", "cast", "shoot"}
	systemKeywords = []string{"save", "load", "inventory", "character", "stats", "help"}
	fillerWords    = map[string]bool{
		"ok": true, "okay": true, "alright": true, "hey": true,
		"so": true, "well": true, "um": true, "uh": true,
	}

	leadingPunctuation = regexp.MustCompile(`^[,.\s]+`)
)

// KeywordClassifier is the default Classifier: fixed keyword tables with
// first-match priority movement > DM-addressed > combat > system >
// dialogue (when a conversation is active) > action.
type KeywordClassifier struct {
	world      *world.Manager
	dmPatterns []*regexp.Regexp
}

// NewKeywordClassifier builds a classifier. dmName is the name players
// use to address the narrator directly (alongside "dm" and
// "dungeon master").
func NewKeywordClassifier(w *world.Manager, dmName string) *KeywordClassifier {
	patterns := []*regexp.Regexp{
		regexp.MustCompile(`\bdm\b`),
		regexp.MustCompile(`\bdungeon\s*master\b`),
	}
	if dmName != "" {
		patterns = append(patterns,
			regexp.MustCompile(`\b`+regexp.QuoteMeta(strings.ToLower(dmName))+`\b`))
	}
	return &KeywordClassifier{world: w, dmPatterns: patterns}
}

// Classify parses player input
func (c *KeywordClassifier) Classify(input string) *Intent {
	lower := strings.ToLower(strings.TrimSpace(input))

	dmAddressed := false
	for _, pattern := range c.dmPatterns {
		if pattern.MatchString(lower) {
			dmAddressed = true
			break
		}
	}

	cleaned := c.cleanInput(lower)
	intentType := c.classify(cleaned, dmAddressed)

	return &Intent{
		Type:         intentType,
		Target:       c.findTarget(cleaned, intentType),
		RawInput:     input,
		CleanedInput: cleaned,
		DMAddressed:  dmAddressed,
	}
}

// cleanInput strips the DM address and leading filler words
func (c *KeywordClassifier) cleanInput(lower string) string {
	for _, pattern := range c.dmPatterns {
		lower = pattern.ReplaceAllString(lower, "")
	}

	words := strings.Fields(lower)
	for len(words) > 0 && fillerWords[strings.Trim(words[0], ".,!?")] {
		words = words[1:]
	}

	cleaned := strings.Join(words, " ")
	cleaned = leadingPunctuation.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}

func (c *KeywordClassifier) classify(cleaned string, dmAddressed bool) IntentType {
	for _, kw := range movementKeywords {
		if strings.Contains(cleaned, kw) {
			return IntentMovement
		}
	}
	if dmAddressed {
		return IntentAction
	}
	for _, kw := range combatKeywords {
		if strings.Contains(cleaned, kw) {
			return IntentCombat
		}
	}
	for _, kw := range systemKeywords {
		if strings.Contains(cleaned, kw) {
			return IntentSystem
		}
	}
	if c.world.State().Conversation.CurrentSpeaker != "" {
		return IntentDialogue
	}
	return IntentAction
}

// findTarget resolves the intent's target: an exit's destination node
// for movement, an NPC id for dialogue.
func (c *KeywordClassifier) findTarget(cleaned string, intentType IntentType) string {
	switch intentType {
	case IntentMovement:
		return c.findExitTarget(cleaned)
	case IntentDialogue:
		return c.findDialogueTarget(cleaned)
	}
	return ""
}

func (c *KeywordClassifier) findExitTarget(cleaned string) string {
	available, err := c.world.AvailableExits()
	if err != nil {
		return ""
	}

	// Deterministic match order
	exitIDs := make([]string, 0, len(available))
	for exitID := range available {
		exitIDs = append(exitIDs, exitID)
	}
	sort.Strings(exitIDs)

	for _, exitID := range exitIDs {
		exit := available[exitID]
		if strings.Contains(cleaned, strings.ToLower(exit.TargetNode)) {
			return exit.TargetNode
		}
		if exit.Direction != "" && strings.Contains(cleaned, strings.ToLower(exit.Direction)) {
			return exit.TargetNode
		}
		for _, word := range strings.Fields(strings.ToLower(exit.Description)) {
			if len(word) > 3 && strings.Contains(cleaned, word) {
				return exit.TargetNode
			}
		}
	}
	return ""
}

func (c *KeywordClassifier) findDialogueTarget(cleaned string) string {
	node, err := c.world.CurrentNode()
	if err == nil {
		for _, presence := range node.NPCsPresent {
			npc, err := c.world.NPC(presence.NPCID)
			if err != nil {
				continue
			}
			if strings.Contains(cleaned, strings.ToLower(npc.Name)) {
				return presence.NPCID
			}
		}
	}
	return c.world.State().Conversation.CurrentSpeaker
}

// String renders the intent for logging
func (i *Intent) String() string {
	return fmt.Sprintf("%s target=%q dm_addressed=%t", i.Type, i.Target, i.DMAddressed)
}
