package world_test

import (
	"context"
	"testing"
	"time"

	"github.com/KirkDiggler/rpg-toolkit/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/tavernkeep/dm-engine/internal/entities"
	"github.com/tavernkeep/dm-engine/internal/errors"
	"github.com/tavernkeep/dm-engine/internal/pkg/clock"
	"github.com/tavernkeep/dm-engine/internal/world"
)

// recordingBus captures published topics
type recordingBus struct {
	topics []string
}

func (b *recordingBus) Publish(_ context.Context, e events.Event) error {
	b.topics = append(b.topics, e.Type())
	return nil
}
func (b *recordingBus) Subscribe(_ string, _ events.Handler) string { return "sub-id" }
func (b *recordingBus) SubscribeFunc(_ string, _ int, _ events.HandlerFunc) string {
	return "sub-id"
}
func (b *recordingBus) Unsubscribe(_ string) error { return nil }
func (b *recordingBus) Clear(_ string)             {}
func (b *recordingBus) ClearAll()                  {}

type ManagerTestSuite struct {
	suite.Suite
	ctx     context.Context
	bus     *recordingBus
	manager *world.Manager
	state   *entities.GameState
}

func (s *ManagerTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.bus = &recordingBus{}

	character, err := entities.NewCharacter(&entities.CharacterConfig{
		Name:  "Kira",
		Race:  "human",
		Class: "fighter",
		Level: 1,
		AbilityScores: entities.AbilityScores{
			Strength: 16, Dexterity: 12, Constitution: 14,
			Intelligence: 10, Wisdom: 9, Charisma: 8,
		},
		HPMax: 12,
	})
	s.Require().NoError(err)
	character.Inventory = []entities.InventoryItem{
		{ItemID: "rusty-key", Quantity: 1},
	}

	s.state, err = entities.NewGameState(&entities.GameStateConfig{
		SessionID:  "sess_1",
		CampaignID: "emberfall",
		Character:  character,
		ChapterID:  "ch1",
		NodeID:     "village-square",
	})
	s.Require().NoError(err)

	npcs := entities.NewNPCRegistry()
	npcs.Add(&entities.NPC{
		NPCID:           "mira",
		Name:            "Mira",
		Role:            "innkeeper",
		BaseDisposition: 10,
		Appearance:      entities.NPCAppearance{Short: "a weary innkeeper"},
		Dialogue: entities.DialogueLines{
			GreetingFirst:    "New face. Welcome to the Ember Hearth.",
			GreetingFriendly: "Good to see you again!",
			GreetingHostile:  "Get out.",
			FarewellFriendly: "Safe roads.",
			FarewellNeutral:  "Goodbye.",
		},
		Knowledge: map[string]*entities.KnowledgeTopic{
			"cellar-noises": {
				TopicID:        "cellar-noises",
				Knows:          true,
				Information:    "Something scrapes under the floor at night.",
				ShareCondition: entities.ShareAlways,
			},
			"smuggler-tunnel": {
				TopicID:        "smuggler-tunnel",
				Knows:          true,
				Information:    "There is a tunnel behind the wine racks.",
				ShareCondition: entities.ShareRequiresTrust,
				TrustThreshold: 70,
			},
			"lord-secret": {
				TopicID:        "lord-secret",
				Knows:          true,
				Information:    "The lord never left the keep that night.",
				ShareCondition: "requires_flag:found_letter",
			},
		},
		Trade: entities.TradeConfig{
			CanTrade:         true,
			FriendlyDiscount: 0.1,
			HostileMarkup:    0.5,
		},
	})

	nodes := map[string]*entities.Node{
		"village-square": {
			NodeID:    "village-square",
			Name:      "Village Square",
			ChapterID: "ch1",
			Description: entities.NodeDescription{
				Short: "The square",
				Long:  "A muddy square ringed by timber houses.",
			},
			NPCsPresent: []entities.NPCPresence{
				{NPCID: "mira", Role: "innkeeper", Topics: []string{"cellar-noises"}},
			},
			SignificantActions: map[string]*entities.SignificantAction{
				"unlock-cellar": {
					ActionID:           "unlock-cellar",
					TriggerDescription: "unlock the cellar door with the rusty key",
					RequiresItems:      []string{"rusty-key"},
					SetsFlags:          []string{"cellar_open"},
					RemovesItems:       []string{"rusty-key"},
					GrantsItems:        []string{"lantern"},
					GrantsQuest:        "cellar-mystery",
					GrantsXP:           25,
					UpdatesRelationships: map[string]entities.RelationshipUpdate{
						"mira": {Disposition: 10, Trust: 5},
					},
					SuccessPrompt: "The lock gives way.",
				},
				"open-vault": {
					ActionID:      "open-vault",
					RequiresFlags: []string{"vault_code_known"},
					RequiresItems: []string{"vault-key"},
					SetsFlags:     []string{"vault_open"},
					GrantsXP:      100,
				},
			},
			Exits: map[string]*entities.NodeExit{
				"inn": {
					TargetNode:      "ember-hearth",
					Description:     "The inn's warm doorway",
					Direction:       "north",
					AlwaysAvailable: true,
				},
				"cellar": {
					TargetNode:    "inn-cellar",
					Description:   "Stairs down into the dark",
					RequiresFlags: []string{"cellar_open"},
				},
				"forest": {
					TargetNode:      "dark-forest",
					Description:     "A trail into the trees",
					AlwaysAvailable: true,
					SoftGate: &entities.SoftGate{
						Condition:     "heard_warning",
						WarningPrompt: "The locals say nobody walks that trail after dusk.",
					},
				},
			},
		},
		"ember-hearth": {
			NodeID:    "ember-hearth",
			Name:      "The Ember Hearth",
			ChapterID: "ch1",
			OnEnterFirst: &entities.OnEnterBehavior{
				NarrationPrompt: "Describe the common room",
				SetFlags:        []string{"visited_inn"},
			},
		},
		"inn-cellar":  {NodeID: "inn-cellar", Name: "Inn Cellar", ChapterID: "ch1"},
		"dark-forest": {NodeID: "dark-forest", Name: "Dark Forest", ChapterID: "ch1"},
	}

	campaign := &entities.Campaign{
		CampaignID:  "emberfall",
		Title:       "Shadows over Emberfall",
		Description: "A village mystery.",
		Chapters: []*entities.Chapter{
			{ChapterID: "ch1", Title: "Arrival", StartingNode: "village-square"},
		},
	}

	manager, err := world.New(&world.Config{
		Campaign: campaign,
		Nodes:    nodes,
		NPCs:     npcs,
		State:    s.state,
		EventBus: s.bus,
		Clock:    clock.NewFixed(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)),
	})
	s.Require().NoError(err)
	s.manager = manager
}

func (s *ManagerTestSuite) TestNewValidation() {
	_, err := world.New(&world.Config{})
	s.Error(err)

	_, err = world.New(nil)
	s.Error(err)
}

func (s *ManagerTestSuite) TestCheckCondition() {
	s.manager.SetFlag(s.ctx, "a")
	s.manager.SetFlag(s.ctx, "b")

	testCases := []struct {
		expr     string
		expected bool
	}{
		{"", true},
		{"a", true},
		{"c", false},
		{"!c", true},
		{"!a", false},
		{"a && b", true},
		{"a && c", false},
		{"c || a", true},
		{"c || d", false},
		// OR of ANDs, no grouping: (a && c) || (b && !d)
		{"a && c || b && !d", true},
		{"a && c || b && a && !b", false},
	}

	for _, tc := range testCases {
		s.Equal(tc.expected, s.manager.CheckCondition(tc.expr), "expr %q", tc.expr)
	}
}

func (s *ManagerTestSuite) TestAvailableExitsGating() {
	exits, err := s.manager.AvailableExits()
	s.Require().NoError(err)
	s.Contains(exits, "inn")
	s.Contains(exits, "forest")
	s.NotContains(exits, "cellar", "flag-gated exit hidden until flag set")

	s.manager.SetFlag(s.ctx, "cellar_open")
	exits, err = s.manager.AvailableExits()
	s.Require().NoError(err)
	s.Contains(exits, "cellar")
}

func (s *ManagerTestSuite) TestMoveTo() {
	result, err := s.manager.MoveTo(s.ctx, "ember-hearth")
	s.Require().NoError(err)

	s.True(result.ViaExit)
	s.True(result.FirstVisit)
	s.Equal("village-square", s.state.Location.PreviousNode)
	s.Equal("ember-hearth", s.state.Location.NodeID)
	s.Contains(s.state.NodesVisited, "ember-hearth")
	s.True(s.manager.HasFlag("visited_inn"), "on-enter flags applied")
	s.Contains(s.bus.topics, world.TopicMoved)
}

func (s *ManagerTestSuite) TestMoveToUnknownNode() {
	_, err := s.manager.MoveTo(s.ctx, "the-moon")
	s.True(errors.IsNotFound(err))
	s.Equal("village-square", s.state.Location.NodeID, "failed move leaves location untouched")
}

func (s *ManagerTestSuite) TestMoveOutsideExitsIsAdvisory() {
	// inn-cellar is not an available exit, but the node exists
	result, err := s.manager.MoveTo(s.ctx, "inn-cellar")
	s.Require().NoError(err)
	s.False(result.ViaExit)
	s.Equal("inn-cellar", s.state.Location.NodeID)
}

func (s *ManagerTestSuite) TestMoveVisitIsIdempotent() {
	_, err := s.manager.MoveTo(s.ctx, "ember-hearth")
	s.Require().NoError(err)
	_, err = s.manager.MoveTo(s.ctx, "village-square")
	s.Require().NoError(err)
	result, err := s.manager.MoveTo(s.ctx, "ember-hearth")
	s.Require().NoError(err)

	s.False(result.FirstVisit)
	count := 0
	for _, id := range s.state.NodesVisited {
		if id == "ember-hearth" {
			count++
		}
	}
	s.Equal(1, count)
}

func (s *ManagerTestSuite) TestSoftGateWarns() {
	result, err := s.manager.MoveTo(s.ctx, "dark-forest")
	s.Require().NoError(err)
	s.Equal("The locals say nobody walks that trail after dusk.", result.GateWarning)
	s.Equal("dark-forest", s.state.Location.NodeID, "soft gate never blocks")
}

func (s *ManagerTestSuite) TestSoftGateSilentWhenConditionHolds() {
	s.manager.SetFlag(s.ctx, "heard_warning")
	result, err := s.manager.MoveTo(s.ctx, "dark-forest")
	s.Require().NoError(err)
	s.Empty(result.GateWarning)
}

func (s *ManagerTestSuite) TestModifyRelationship() {
	rel := s.manager.ModifyRelationship(s.ctx, "mira", 30, 10, "helped carry barrels")
	s.Equal(80, rel.Disposition) // 50 default + 30
	s.Equal(60, rel.Trust)
	s.Len(rel.History, 1)

	rel = s.manager.ModifyRelationship(s.ctx, "mira", 5000, -5000, "impossible swing")
	s.Equal(100, rel.Disposition, "disposition clamps at 100")
	s.Equal(0, rel.Trust, "trust clamps at 0")
	s.Contains(s.bus.topics, world.TopicRelationship)
}

func (s *ManagerTestSuite) TestNPCDispositionFallsBackToBase() {
	s.Equal(10, s.manager.NPCDisposition("mira"), "base disposition before first contact")
	s.manager.ModifyRelationship(s.ctx, "mira", -100, 0, "insulted her ale")
	s.Equal(-50, s.manager.NPCDisposition("mira"))
	s.Equal("unfriendly", s.manager.NPCAttitude("mira"), "hostile starts strictly below -50")

	s.manager.ModifyRelationship(s.ctx, "mira", -1, 0, "threw the ale back")
	s.Equal("hostile", s.manager.NPCAttitude("mira"))
}

func (s *ManagerTestSuite) TestNPCGreeting() {
	greeting, err := s.manager.NPCGreeting("mira")
	s.Require().NoError(err)
	s.Equal("New face. Welcome to the Ember Hearth.", greeting)
	s.True(s.state.Relationships["mira"].Met)

	greeting, err = s.manager.NPCGreeting("mira")
	s.Require().NoError(err)
	s.Equal("Good to see you again!", greeting, "disposition 50 is friendly band")

	_, err = s.manager.NPCGreeting("nobody")
	s.True(errors.IsNotFound(err))
}

func (s *ManagerTestSuite) TestNPCKnowledge() {
	info, ok := s.manager.NPCKnowledge("mira", "cellar-noises")
	s.True(ok)
	s.Equal("Something scrapes under the floor at night.", info)

	_, ok = s.manager.NPCKnowledge("mira", "smuggler-tunnel")
	s.False(ok, "trust 0 below threshold before first contact")

	s.manager.ModifyRelationship(s.ctx, "mira", 0, 30, "kept her secret") // trust 80
	info, ok = s.manager.NPCKnowledge("mira", "smuggler-tunnel")
	s.True(ok)
	s.NotEmpty(info)

	_, ok = s.manager.NPCKnowledge("mira", "lord-secret")
	s.False(ok)
	s.manager.SetFlag(s.ctx, "found_letter")
	_, ok = s.manager.NPCKnowledge("mira", "lord-secret")
	s.True(ok)
}

func (s *ManagerTestSuite) TestNPCTradePriceModifier() {
	s.Equal(1.0, s.manager.NPCTradePriceModifier("mira"))

	s.manager.ModifyRelationship(s.ctx, "mira", 20, 0, "regular customer") // 70
	s.InDelta(0.9, s.manager.NPCTradePriceModifier("mira"), 0.0001)

	s.manager.ModifyRelationship(s.ctx, "mira", -140, 0, "broke a chair") // -70
	s.InDelta(1.5, s.manager.NPCTradePriceModifier("mira"), 0.0001)
}

func (s *ManagerTestSuite) TestQuests() {
	quest := s.manager.StartQuest(s.ctx, "cellar-mystery", "", "")
	s.Equal("cellar-mystery", quest.Name, "name defaults to the quest id")
	s.Equal(entities.QuestActive, quest.Status)

	again := s.manager.StartQuest(s.ctx, "cellar-mystery", "Other Name", "")
	s.Same(quest, again, "starting twice returns the existing quest")
	s.Len(s.state.StoryProgress.Quests, 1)

	quest.Objectives = []entities.QuestObjective{
		{ID: "find-source", Description: "Find the source of the noises"},
		{ID: "report-back", Description: "Tell Mira what you found"},
	}

	s.False(s.manager.CompleteObjective(s.ctx, "no-such-quest", "find-source"))
	s.False(s.manager.CompleteObjective(s.ctx, "cellar-mystery", "no-such-objective"))

	s.True(s.manager.CompleteObjective(s.ctx, "cellar-mystery", "find-source"))
	s.Equal(entities.QuestActive, quest.Status)

	s.True(s.manager.CompleteObjective(s.ctx, "cellar-mystery", "report-back"))
	s.Equal(entities.QuestCompleted, quest.Status)
	s.NotNil(quest.CompletedAt)
}

func (s *ManagerTestSuite) TestExecuteSignificantAction() {
	result, err := s.manager.ExecuteSignificantAction(s.ctx, "unlock-cellar")
	s.Require().NoError(err)

	s.Equal("The lock gives way.", result.SuccessPrompt)
	s.True(s.manager.HasFlag("cellar_open"))
	s.False(s.state.Character.HasItem("rusty-key"), "key consumed")
	s.True(s.state.Character.HasItem("lantern"))
	s.Equal(25, s.state.Character.Experience)
	s.Equal(60, s.state.Relationships["mira"].Disposition)
	s.Len(s.state.StoryProgress.Quests, 1)
	s.Contains(s.bus.topics, world.TopicActionExecuted)
	s.Contains(s.bus.topics, world.TopicXPGranted)
}

func (s *ManagerTestSuite) TestSignificantActionFailureIsAtomic() {
	// open-vault needs a flag and an item we don't have
	_, err := s.manager.ExecuteSignificantAction(s.ctx, "open-vault")
	s.True(errors.IsFailedPrecondition(err))

	s.False(s.manager.HasFlag("vault_open"))
	s.Equal(0, s.state.Character.Experience)
	s.Empty(s.state.ActionHistory)
	s.NotContains(s.bus.topics, world.TopicActionExecuted)
}

func (s *ManagerTestSuite) TestSignificantActionUnknownID() {
	_, err := s.manager.ExecuteSignificantAction(s.ctx, "dance")
	s.True(errors.IsNotFound(err))
}

func (s *ManagerTestSuite) TestConversation() {
	s.manager.SetCurrentSpeaker("mira")
	s.Equal(entities.ModeDialogue, s.state.Conversation.Mode)
	s.Equal("mira", s.state.Conversation.CurrentSpeaker)

	s.manager.AddDialogue("player", "Any rooms free?")
	s.manager.AddDialogue("mira", "Two silver a night.")
	s.Len(s.state.Conversation.RecentExchanges, 2)

	s.manager.SetCurrentSpeaker("")
	s.Equal(entities.ModeExploration, s.state.Conversation.Mode)
	s.Empty(s.state.Conversation.CurrentSpeaker)
}

func (s *ManagerTestSuite) TestContextSnapshot() {
	s.manager.SetCurrentSpeaker("mira")
	s.manager.AddDialogue("player", "Hello")
	s.manager.StartQuest(s.ctx, "cellar-mystery", "The Cellar Mystery", "Find out what scrapes below.")

	snap, err := s.manager.ContextSnapshot()
	s.Require().NoError(err)

	s.Equal("Shadows over Emberfall", snap.CampaignTitle)
	s.Equal("village-square", snap.NodeID)
	s.Equal("A muddy square ringed by timber houses.", snap.LocationDescription)
	s.True(snap.FirstVisit, "starting node counts as a first visit")

	s.Require().Len(snap.NPCsPresent, 1)
	s.Equal("Mira", snap.NPCsPresent[0].Name)
	s.Equal("neutral", snap.NPCsPresent[0].Attitude)
	s.Equal([]string{"cellar-noises"}, snap.NPCsPresent[0].Topics)

	s.Len(snap.AvailableExits, 2)
	s.Equal("forest", snap.AvailableExits[0].ExitID, "exits sorted by id")
	s.Equal("inn", snap.AvailableExits[1].ExitID)

	s.Require().Len(snap.ActiveQuests, 1)
	s.Equal("The Cellar Mystery", snap.ActiveQuests[0].Name)

	s.Equal(entities.ModeDialogue, snap.Mode)
	s.Equal("mira", snap.CurrentSpeaker)
	s.Len(snap.RecentExchanges, 1)
	s.Equal(entities.TimeMorning, snap.TimeOfDay)
}

func (s *ManagerTestSuite) TestSnapshotFirstVisitClearsOnReturn() {
	_, err := s.manager.MoveTo(s.ctx, "ember-hearth")
	s.Require().NoError(err)
	_, err = s.manager.MoveTo(s.ctx, "village-square")
	s.Require().NoError(err)

	snap, err := s.manager.ContextSnapshot()
	s.Require().NoError(err)
	s.False(snap.FirstVisit)
}

func (s *ManagerTestSuite) TestAdvanceTime() {
	s.Equal(entities.TimeMorning, s.state.World.TimeOfDay)

	s.manager.AdvanceTime() // midday
	s.manager.AdvanceTime() // afternoon
	s.manager.AdvanceTime() // evening
	s.manager.AdvanceTime() // night
	s.Equal(0, s.state.World.DaysElapsed)

	s.manager.AdvanceTime() // dawn, next day
	s.Equal(entities.TimeDawn, s.state.World.TimeOfDay)
	s.Equal(1, s.state.World.DaysElapsed)
}

func TestManagerTestSuite(t *testing.T) {
	suite.Run(t, new(ManagerTestSuite))
}

func TestManagerWithoutBus(t *testing.T) {
	character, err := entities.NewCharacter(&entities.CharacterConfig{
		Name: "Bren", Race: "dwarf", Class: "cleric", Level: 1,
		AbilityScores: entities.AbilityScores{
			Strength: 12, Dexterity: 10, Constitution: 14,
			Intelligence: 10, Wisdom: 16, Charisma: 10,
		},
		HPMax: 10,
	})
	require.NoError(t, err)

	state, err := entities.NewGameState(&entities.GameStateConfig{
		SessionID: "sess_2", CampaignID: "c", Character: character,
		ChapterID: "ch1", NodeID: "n1",
	})
	require.NoError(t, err)

	manager, err := world.New(&world.Config{
		Campaign: &entities.Campaign{CampaignID: "c", Title: "T"},
		Nodes:    map[string]*entities.Node{"n1": {NodeID: "n1", Name: "N"}},
		NPCs:     entities.NewNPCRegistry(),
		State:    state,
	})
	require.NoError(t, err)

	// mutations without a bus must not panic
	manager.SetFlag(context.Background(), "f")
	assert.True(t, manager.HasFlag("f"))
}
