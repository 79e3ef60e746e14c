package narrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tavernkeep/dm-engine/internal/entities"
	"github.com/tavernkeep/dm-engine/internal/pkg/clock"
	"github.com/tavernkeep/dm-engine/internal/world"
)

// scriptedGenerator returns a fixed response and records prompts
type scriptedGenerator struct {
	response string
	err      error
	prompts  []string
}

func (g *scriptedGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	return g.response, nil
}

func testWorld(t *testing.T) *world.Manager {
	t.Helper()

	character, err := entities.NewCharacter(&entities.CharacterConfig{
		Name: "Kira", Race: "human", Class: "fighter", Level: 1,
		AbilityScores: entities.AbilityScores{
			Strength: 16, Dexterity: 12, Constitution: 14,
			Intelligence: 10, Wisdom: 10, Charisma: 10,
		},
		HPMax: 12,
	})
	require.NoError(t, err)
	character.Inventory = []entities.InventoryItem{{ItemID: "rusty-key", Quantity: 1}}

	state, err := entities.NewGameState(&entities.GameStateConfig{
		SessionID: "sess_1", CampaignID: "emberfall", Character: character,
		ChapterID: "ch1", NodeID: "village-square",
	})
	require.NoError(t, err)

	npcs := entities.NewNPCRegistry()
	npcs.Add(&entities.NPC{
		NPCID: "mira",
		Name:  "Mira",
		Role:  "innkeeper",
		Appearance: entities.NPCAppearance{
			Short:          "a weary innkeeper",
			PortraitPrompt: "portrait of a weary innkeeper",
		},
	})

	nodes := map[string]*entities.Node{
		"village-square": {
			NodeID: "village-square",
			Name:   "Village Square",
			Description: entities.NodeDescription{
				Long:        "A muddy square ringed by timber houses.",
				ImagePrompt: &entities.ImagePrompt{Scene: "a muddy village square at dawn"},
			},
			NPCsPresent: []entities.NPCPresence{{NPCID: "mira", Role: "innkeeper"}},
			SignificantActions: map[string]*entities.SignificantAction{
				"unlock-cellar": {
					ActionID:           "unlock-cellar",
					TriggerDescription: "unlock the cellar door with the rusty key",
					RequiresItems:      []string{"rusty-key"},
					SetsFlags:          []string{"cellar_open"},
					GrantsXP:           25,
				},
			},
			Exits: map[string]*entities.NodeExit{
				"inn": {
					TargetNode:      "ember-hearth",
					Description:     "The inn's warm doorway",
					Direction:       "north",
					AlwaysAvailable: true,
				},
			},
		},
		"ember-hearth": {NodeID: "ember-hearth", Name: "The Ember Hearth"},
	}

	manager, err := world.New(&world.Config{
		Campaign: &entities.Campaign{
			CampaignID: "emberfall",
			Title:      "Shadows over Emberfall",
		},
		Nodes: nodes,
		NPCs:  npcs,
		State: state,
		Clock: clock.NewFixed(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)
	return manager
}

func testCoordinator(t *testing.T, w *world.Manager, gen *scriptedGenerator) *Coordinator {
	t.Helper()
	coordinator, err := New(&Config{
		World:     w,
		Generator: gen,
		DMName:    "Joe",
	})
	require.NoError(t, err)
	return coordinator
}

func TestNew(t *testing.T) {
	_, err := New(&Config{})
	assert.Error(t, err)

	_, err = New(nil)
	assert.Error(t, err)
}

func TestClassifier(t *testing.T) {
	w := testWorld(t)
	classifier := NewKeywordClassifier(w, "Joe")

	t.Run("movement beats everything", func(t *testing.T) {
		intent := classifier.Classify("Joe, go to the inn and attack")
		assert.Equal(t, IntentMovement, intent.Type)
		assert.True(t, intent.DMAddressed)
	})

	t.Run("movement target by direction", func(t *testing.T) {
		intent := classifier.Classify("head to the north")
		assert.Equal(t, IntentMovement, intent.Type)
		assert.Equal(t, "ember-hearth", intent.Target)
	})

	t.Run("movement target by description keyword", func(t *testing.T) {
		intent := classifier.Classify("go to the warm doorway")
		assert.Equal(t, "ember-hearth", intent.Target)
	})

	t.Run("dm addressed is an action", func(t *testing.T) {
		intent := classifier.Classify("Joe, I search the barrels")
		assert.Equal(t, IntentAction, intent.Type)
		assert.True(t, intent.DMAddressed)
		assert.Equal(t, "i search the barrels", intent.CleanedInput)
	})

	t.Run("dungeon master spelling", func(t *testing.T) {
		intent := classifier.Classify("dungeon master, help me out")
		assert.True(t, intent.DMAddressed)
	})

	t.Run("combat keywords", func(t *testing.T) {
		intent := classifier.Classify("attack the shadows")
		assert.Equal(t, IntentCombat, intent.Type)
	})

	t.Run("system keywords", func(t *testing.T) {
		intent := classifier.Classify("show my inventory")
		assert.Equal(t, IntentSystem, intent.Type)
	})

	t.Run("filler words stripped", func(t *testing.T) {
		intent := classifier.Classify("Okay, so, hey Joe please open the door")
		assert.Equal(t, "please open the door", intent.CleanedInput)
	})

	t.Run("active conversation defaults to dialogue", func(t *testing.T) {
		w.SetCurrentSpeaker("mira")
		defer w.SetCurrentSpeaker("")

		intent := classifier.Classify("any rooms free tonight?")
		assert.Equal(t, IntentDialogue, intent.Type)
		assert.Equal(t, "mira", intent.Target, "falls back to current speaker")
	})

	t.Run("dialogue target by npc name", func(t *testing.T) {
		w.SetCurrentSpeaker("mira")
		defer w.SetCurrentSpeaker("")

		intent := classifier.Classify("tell mira she makes fine stew")
		assert.Equal(t, "mira", intent.Target)
	})

	t.Run("no conversation defaults to action", func(t *testing.T) {
		intent := classifier.Classify("look under the cart")
		assert.Equal(t, IntentAction, intent.Type)
	})
}

func TestTriggerDetector(t *testing.T) {
	w := testWorld(t)
	detector := NewKeywordTriggerDetector(w)
	node, err := w.CurrentNode()
	require.NoError(t, err)

	t.Run("two meaningful overlapping words trigger", func(t *testing.T) {
		triggered := detector.Detect("i unlock the cellar door", node)
		assert.Equal(t, []string{"unlock-cellar"}, triggered)
	})

	t.Run("one overlapping word is not enough", func(t *testing.T) {
		triggered := detector.Detect("i peek into the cellar", node)
		assert.Empty(t, triggered)
	})

	t.Run("short words do not count", func(t *testing.T) {
		triggered := detector.Detect("the key the with", node)
		assert.Empty(t, triggered)
	})

	t.Run("unmet item requirement suppresses detection", func(t *testing.T) {
		w.RemoveItem("rusty-key")
		defer w.GrantItem("rusty-key")

		triggered := detector.Detect("i unlock the cellar door", node)
		assert.Empty(t, triggered)
	})
}

func TestExtractSpeakerTag(t *testing.T) {
	t.Run("leading tag", func(t *testing.T) {
		tag, narration := extractSpeakerTag("[Mira] Two silver a night.")
		assert.Equal(t, "Mira", tag)
		assert.Equal(t, "Two silver a night.", narration)
	})

	t.Run("stray tags stripped", func(t *testing.T) {
		tag, narration := extractSpeakerTag("[DM] The door creaks. [Mira] Hmph.")
		assert.Equal(t, "DM", tag)
		assert.NotContains(t, narration, "[Mira]")
	})

	t.Run("missing tag defaults to DM", func(t *testing.T) {
		tag, narration := extractSpeakerTag("The rain keeps falling.")
		assert.Equal(t, "DM", tag)
		assert.Equal(t, "The rain keeps falling.", narration)
	})
}

func TestValidateSpeaker(t *testing.T) {
	w := testWorld(t)
	coordinator := testCoordinator(t, w, &scriptedGenerator{})
	node, err := w.CurrentNode()
	require.NoError(t, err)

	assert.Equal(t, "dm", coordinator.validateSpeaker("DM", node))
	assert.Equal(t, "mira", coordinator.validateSpeaker("mira", node))
	assert.Equal(t, "mira", coordinator.validateSpeaker("Mira", node))
	assert.Equal(t, "mira", coordinator.validateSpeaker("NPC_mira", node), "substring match")
	assert.Equal(t, "dm", coordinator.validateSpeaker("Gandalf", node))

	w.SetCurrentSpeaker("mira")
	assert.Equal(t, "mira", coordinator.validateSpeaker("Gandalf", node),
		"unknown tag falls back to current speaker when present")
}

func TestPortraitSelection(t *testing.T) {
	w := testWorld(t)
	coordinator := testCoordinator(t, w, &scriptedGenerator{})
	node, err := w.CurrentNode()
	require.NoError(t, err)

	t.Run("first visit with scene prompt shows scene", func(t *testing.T) {
		portraitType, source := coordinator.portraitFor("dm", node)
		assert.Equal(t, PortraitScene, portraitType)
		assert.Equal(t, "a muddy village square at dawn", source)
	})

	t.Run("npc speaker shows npc portrait", func(t *testing.T) {
		portraitType, source := coordinator.portraitFor("mira", node)
		assert.Equal(t, PortraitNPC, portraitType)
		assert.Equal(t, "portrait of a weary innkeeper", source)
	})

	t.Run("revisit shows dm portrait", func(t *testing.T) {
		_, err := w.MoveTo(context.Background(), "ember-hearth")
		require.NoError(t, err)
		_, err = w.MoveTo(context.Background(), "village-square")
		require.NoError(t, err)

		portraitType, source := coordinator.portraitFor("dm", node)
		assert.Equal(t, PortraitDM, portraitType)
		assert.Equal(t, defaultDMPortrait, source)
	})
}

func TestProcessInputDialogue(t *testing.T) {
	w := testWorld(t)
	gen := &scriptedGenerator{response: "[Mira] Two silver a night, meals included."}
	coordinator := testCoordinator(t, w, gen)

	response, err := coordinator.ProcessInput(context.Background(), "ask mira about rooms")
	require.NoError(t, err)

	assert.Equal(t, "mira", response.Speaker)
	assert.Equal(t, "Two silver a night, meals included.", response.Narration)
	assert.Equal(t, "mira", w.State().Conversation.CurrentSpeaker,
		"speaking NPC becomes the conversation partner")
	assert.Equal(t, entities.ModeDialogue, w.State().Conversation.Mode)
	assert.Len(t, w.State().Conversation.RecentExchanges, 2,
		"player line and response line both logged")

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "Shadows over Emberfall")
	assert.Contains(t, gen.prompts[0], "Valid speakers: [DM], [Mira]")
}

func TestProcessInputTriggersAction(t *testing.T) {
	w := testWorld(t)
	gen := &scriptedGenerator{response: "[DM] The lock clicks open."}
	coordinator := testCoordinator(t, w, gen)

	response, err := coordinator.ProcessInput(context.Background(), "Joe, I unlock the cellar door")
	require.NoError(t, err)

	assert.Equal(t, []string{"unlock-cellar"}, response.TriggeredActions)
	assert.True(t, w.HasFlag("cellar_open"))
	assert.Equal(t, 25, w.State().Character.Experience)
}

func TestProcessInputMovement(t *testing.T) {
	w := testWorld(t)
	gen := &scriptedGenerator{response: "[DM] You push through the warm doorway."}
	coordinator := testCoordinator(t, w, gen)

	response, err := coordinator.ProcessInput(context.Background(), "go to the warm doorway")
	require.NoError(t, err)

	assert.Equal(t, "ember-hearth", response.MovedTo)
	assert.Equal(t, "ember-hearth", w.State().Location.NodeID)
}

func TestProcessInputGeneratorFailure(t *testing.T) {
	w := testWorld(t)
	gen := &scriptedGenerator{err: assert.AnError}
	coordinator := testCoordinator(t, w, gen)

	_, err := coordinator.ProcessInput(context.Background(), "look around the square")
	require.Error(t, err)

	assert.Empty(t, w.State().Conversation.RecentExchanges, "failed turn leaves no trace")
	assert.Empty(t, w.State().ActionHistory)
	assert.Equal(t, 0, w.State().Character.Experience)
}

func TestSystemCommandShortCircuits(t *testing.T) {
	w := testWorld(t)
	gen := &scriptedGenerator{}
	coordinator := testCoordinator(t, w, gen)

	response, err := coordinator.ProcessInput(context.Background(), "show my inventory")
	require.NoError(t, err)

	assert.Contains(t, response.Narration, "rusty-key")
	assert.Equal(t, "dm", response.Speaker)
	assert.Empty(t, gen.prompts, "system commands never reach the generator")

	response, err = coordinator.ProcessInput(context.Background(), "stats please")
	require.NoError(t, err)
	assert.Contains(t, response.Narration, "Kira")
}
