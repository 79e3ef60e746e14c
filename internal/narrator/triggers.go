package narrator

import (
	"sort"
	"strings"

	"github.com/tavernkeep/dm-engine/internal/entities"
	"github.com/tavernkeep/dm-engine/internal/world"
)

// TriggerDetector decides which of a node's significant actions the
// player's input set off. Detection is a pre-filter; execution still
// re-validates every requirement atomically.
type TriggerDetector interface {
	Detect(cleanedInput string, node *entities.Node) []string
}

// minTriggerOverlap is how many meaningful words of the trigger
// description must appear in the input.
const (
	minTriggerOverlap = 2
	minTriggerWordLen = 4
)

// KeywordTriggerDetector is the default TriggerDetector: an action
// triggers when at least two words longer than three characters overlap
// between the input and the trigger description, and the action's flag
// and item requirements already hold.
type KeywordTriggerDetector struct {
	world *world.Manager
}

// NewKeywordTriggerDetector builds the default detector
func NewKeywordTriggerDetector(w *world.Manager) *KeywordTriggerDetector {
	return &KeywordTriggerDetector{world: w}
}

// Detect returns the triggered action ids in deterministic order
func (d *KeywordTriggerDetector) Detect(cleanedInput string, node *entities.Node) []string {
	inputWords := make(map[string]bool)
	for _, word := range strings.Fields(strings.ToLower(cleanedInput)) {
		inputWords[word] = true
	}

	var triggered []string
	for actionID, action := range node.SignificantActions {
		if !d.requirementsHold(action) {
			continue
		}

		triggerWords := make(map[string]bool)
		for _, word := range strings.Fields(strings.ToLower(action.TriggerDescription)) {
			if len(word) >= minTriggerWordLen {
				triggerWords[word] = true
			}
		}
		overlap := 0
		for word := range triggerWords {
			if inputWords[word] {
				overlap++
			}
		}
		if overlap >= minTriggerOverlap {
			triggered = append(triggered, actionID)
		}
	}

	sort.Strings(triggered)
	return triggered
}

func (d *KeywordTriggerDetector) requirementsHold(action *entities.SignificantAction) bool {
	for _, flag := range action.RequiresFlags {
		if !d.world.HasFlag(flag) {
			return false
		}
	}
	character := d.world.State().Character
	for _, item := range action.RequiresItems {
		if !character.HasItem(item) {
			return false
		}
	}
	return true
}
