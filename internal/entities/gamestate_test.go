package entities_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tavernkeep/dm-engine/internal/entities"
)

func validCharacterConfig() *entities.CharacterConfig {
	return &entities.CharacterConfig{
		Name:  "Kira",
		Race:  "human",
		Class: "fighter",
		Level: 1,
		AbilityScores: entities.AbilityScores{
			Strength: 16, Dexterity: 12, Constitution: 14,
			Intelligence: 10, Wisdom: 13, Charisma: 8,
		},
		HPMax:      12,
		ArmorClass: 16,
	}
}

func TestAbilityModifier(t *testing.T) {
	testCases := []struct {
		score    int
		expected int
	}{
		{1, -5},
		{7, -2},
		{8, -1},
		{9, -1},
		{10, 0},
		{11, 0},
		{12, 1},
		{15, 2},
		{16, 3},
		{20, 5},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, entities.AbilityModifier(tc.score), "score %d", tc.score)
	}
}

func TestNewCharacter(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		char, err := entities.NewCharacter(validCharacterConfig())
		require.NoError(t, err)
		assert.Equal(t, "Kira", char.Name)
		assert.Equal(t, 12, char.HP.Current)
		assert.Equal(t, 12, char.HP.Max)
		assert.Equal(t, 2, char.ProficiencyBonus)
		assert.Equal(t, 30, char.Speed)
	})

	t.Run("proficiency bonus scales with level", func(t *testing.T) {
		cfg := validCharacterConfig()
		cfg.Level = 5
		char, err := entities.NewCharacter(cfg)
		require.NoError(t, err)
		assert.Equal(t, 3, char.ProficiencyBonus)
	})

	t.Run("missing name", func(t *testing.T) {
		cfg := validCharacterConfig()
		cfg.Name = ""
		_, err := entities.NewCharacter(cfg)
		assert.Error(t, err)
	})

	t.Run("score out of range", func(t *testing.T) {
		cfg := validCharacterConfig()
		cfg.AbilityScores.Strength = 35
		_, err := entities.NewCharacter(cfg)
		assert.Error(t, err)
	})

	t.Run("nil config", func(t *testing.T) {
		_, err := entities.NewCharacter(nil)
		assert.Error(t, err)
	})
}

func TestNewGameState(t *testing.T) {
	char, err := entities.NewCharacter(validCharacterConfig())
	require.NoError(t, err)

	t.Run("starting node counts as visited", func(t *testing.T) {
		state, err := entities.NewGameState(&entities.GameStateConfig{
			SessionID:  "sess_1",
			CampaignID: "camp_1",
			Character:  char,
			ChapterID:  "ch1",
			NodeID:     "village_square",
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"village_square"}, state.NodesVisited)
		assert.Equal(t, entities.ModeExploration, state.Conversation.Mode)
		assert.Equal(t, entities.TimeMorning, state.World.TimeOfDay)
	})

	t.Run("missing character", func(t *testing.T) {
		_, err := entities.NewGameState(&entities.GameStateConfig{
			SessionID:  "sess_1",
			CampaignID: "camp_1",
			ChapterID:  "ch1",
			NodeID:     "village_square",
		})
		assert.Error(t, err)
	})
}

func TestRelationshipClamping(t *testing.T) {
	rel := entities.NewNPCRelationship("marcus", 5000, -10)
	assert.Equal(t, 100, rel.Disposition)
	assert.Equal(t, 0, rel.Trust)
}

func TestRelationshipAttitude(t *testing.T) {
	testCases := []struct {
		disposition int
		attitude    string
	}{
		{-100, "hostile"},
		{-51, "hostile"},
		{-50, "unfriendly"},
		{-21, "unfriendly"},
		{-20, "neutral"},
		{0, "neutral"},
		{19, "neutral"},
		{20, "friendly"},
		{49, "friendly"},
		{50, "devoted"},
		{100, "devoted"},
	}

	for _, tc := range testCases {
		rel := entities.NewNPCRelationship("npc", tc.disposition, 50)
		assert.Equal(t, tc.attitude, rel.Attitude(), "disposition %d", tc.disposition)
	}
}

func TestConversationLogBounded(t *testing.T) {
	conv := &entities.ConversationState{Mode: entities.ModeDialogue}
	now := time.Now()
	for i := 0; i < 15; i++ {
		conv.AddExchange("player", "line", now)
	}
	assert.Len(t, conv.RecentExchanges, entities.MaxRecentExchanges)
}

func TestCombatantIsAlive(t *testing.T) {
	t.Run("npc defeated at zero", func(t *testing.T) {
		c := &entities.Combatant{ID: "goblin_0", HPCurrent: 0, HPMax: 7}
		assert.False(t, c.IsAlive())
	})

	t.Run("player alive at zero until three failures", func(t *testing.T) {
		c := &entities.Combatant{ID: "player", IsPlayer: true, HPCurrent: 0, HPMax: 12, DeathSaveFailures: 2}
		assert.True(t, c.IsAlive())
		c.DeathSaveFailures = 3
		assert.False(t, c.IsAlive())
	})
}

func TestGameStateRoundTrip(t *testing.T) {
	char, err := entities.NewCharacter(validCharacterConfig())
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	state, err := entities.NewGameState(&entities.GameStateConfig{
		SessionID:  "sess_rt",
		CampaignID: "camp_1",
		Character:  char,
		ChapterID:  "ch1",
		NodeID:     "village_square",
		Now:        now,
	})
	require.NoError(t, err)

	state.StoryProgress.Flags["met_marcus"] = true
	state.Relationship("marcus").Disposition = 30
	state.Conversation.AddExchange("player", "Hello", now)
	state.RecordAction("greeted_marcus", map[string]interface{}{"npc": "marcus"}, now)
	state.Combat = entities.CombatState{
		Active:    true,
		Round:     2,
		TurnOrder: []string{"player", "goblin_0"},
		Combatants: map[string]*entities.Combatant{
			"player":   {ID: "player", Name: "Kira", IsPlayer: true, HPCurrent: 8, HPMax: 12, IsConscious: true},
			"goblin_0": {ID: "goblin_0", Name: "Goblin", HPCurrent: 3, HPMax: 7, IsConscious: true},
		},
	}

	data, err := json.Marshal(state)
	require.NoError(t, err)

	var restored entities.GameState
	require.NoError(t, json.Unmarshal(data, &restored))

	assert.Equal(t, state.SessionID, restored.SessionID)
	assert.Equal(t, state.Character, restored.Character)
	assert.Equal(t, state.StoryProgress.Flags, restored.StoryProgress.Flags)
	assert.Equal(t, state.Relationships["marcus"].Disposition, restored.Relationships["marcus"].Disposition)
	assert.Equal(t, state.Combat.Combatants["goblin_0"].HPCurrent, restored.Combat.Combatants["goblin_0"].HPCurrent)
	assert.Len(t, restored.ActionHistory, 1)
}
