package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/tavernkeep/dm-engine/internal/entities"
	"github.com/tavernkeep/dm-engine/internal/errors"
	"github.com/tavernkeep/dm-engine/internal/pkg/clock"
	"github.com/tavernkeep/dm-engine/internal/repositories/session"
	"github.com/tavernkeep/dm-engine/internal/testutils"
)

type RedisRepositoryTestSuite struct {
	suite.Suite
	ctx     context.Context
	repo    session.Repository
	cleanup func()
}

func (s *RedisRepositoryTestSuite) SetupTest() {
	s.ctx = context.Background()

	client, cleanup := testutils.CreateTestRedisClient(s.T())
	s.cleanup = cleanup

	repo, err := session.NewRedisRepository(&session.Config{
		Client: client,
		Clock:  clock.NewFixed(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)),
	})
	s.Require().NoError(err)
	s.repo = repo
}

func (s *RedisRepositoryTestSuite) TearDownTest() {
	if s.cleanup != nil {
		s.cleanup()
	}
}

func (s *RedisRepositoryTestSuite) testState() *entities.GameState {
	character, err := entities.NewCharacter(&entities.CharacterConfig{
		Name: "Kira", Race: "human", Class: "fighter", Level: 3,
		AbilityScores: entities.AbilityScores{
			Strength: 16, Dexterity: 12, Constitution: 14,
			Intelligence: 10, Wisdom: 9, Charisma: 8,
		},
		HPMax: 24,
	})
	s.Require().NoError(err)
	character.Inventory = []entities.InventoryItem{
		{ItemID: "longsword", Quantity: 1, Equipped: true},
		{ItemID: "torch", Quantity: 3},
	}

	state, err := entities.NewGameState(&entities.GameStateConfig{
		SessionID:  "sess_abc",
		CampaignID: "emberfall",
		Character:  character,
		ChapterID:  "ch1",
		NodeID:     "village-square",
	})
	s.Require().NoError(err)

	state.StoryProgress.Flags["met_mira"] = true
	state.StoryProgress.Quests = []*entities.Quest{
		{
			QuestID: "cellar-mystery", Name: "The Cellar Mystery",
			Status: entities.QuestActive, StartedAt: time.Now().UTC(),
			Objectives: []entities.QuestObjective{
				{ID: "find-source", Description: "Find the source"},
			},
		},
	}
	state.Relationships["mira"] = entities.NewNPCRelationship("mira", 60, 55)
	state.Conversation.AddExchange("player", "hello", time.Now().UTC())
	state.Combat = entities.CombatState{
		Active: true, Round: 2,
		TurnOrder:  []string{"player", "goblin_1"},
		Combatants: map[string]*entities.Combatant{"player": {ID: "player", Name: "Kira", HPCurrent: 20, HPMax: 24, IsPlayer: true, IsConscious: true}},
	}
	return state
}

func (s *RedisRepositoryTestSuite) TestSaveAndGetRoundTrip() {
	state := s.testState()

	saved, err := s.repo.Save(s.ctx, &session.SaveInput{State: state})
	s.Require().NoError(err)
	s.False(saved.SavedAt.IsZero())

	loaded, err := s.repo.Get(s.ctx, &session.GetInput{SessionID: "sess_abc"})
	s.Require().NoError(err)

	// full fidelity: every section of state survives the round trip
	s.Equal(state.SessionID, loaded.State.SessionID)
	s.Equal(state.Character, loaded.State.Character)
	s.Equal(state.Location.NodeID, loaded.State.Location.NodeID)
	s.Equal(state.StoryProgress.Flags, loaded.State.StoryProgress.Flags)
	s.Equal(state.StoryProgress.Quests[0].QuestID, loaded.State.StoryProgress.Quests[0].QuestID)
	s.Equal(state.Relationships["mira"].Disposition, loaded.State.Relationships["mira"].Disposition)
	s.Len(loaded.State.Conversation.RecentExchanges, 1)
	s.True(loaded.State.Combat.Active)
	s.Equal(2, loaded.State.Combat.Round)
	s.Equal(state.NodesVisited, loaded.State.NodesVisited)
}

func (s *RedisRepositoryTestSuite) TestGetMissing() {
	_, err := s.repo.Get(s.ctx, &session.GetInput{SessionID: "nope"})
	s.True(errors.IsNotFound(err))
}

func (s *RedisRepositoryTestSuite) TestDelete() {
	state := s.testState()
	_, err := s.repo.Save(s.ctx, &session.SaveInput{State: state})
	s.Require().NoError(err)

	_, err = s.repo.Delete(s.ctx, &session.DeleteInput{SessionID: "sess_abc"})
	s.Require().NoError(err)

	_, err = s.repo.Get(s.ctx, &session.GetInput{SessionID: "sess_abc"})
	s.True(errors.IsNotFound(err))
}

func (s *RedisRepositoryTestSuite) TestValidation() {
	_, err := s.repo.Save(s.ctx, &session.SaveInput{})
	s.True(errors.IsInvalidArgument(err))

	_, err = s.repo.Get(s.ctx, &session.GetInput{})
	s.True(errors.IsInvalidArgument(err))
}

func TestRedisRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RedisRepositoryTestSuite))
}

func TestInMemoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := session.NewInMemory()

	character, err := entities.NewCharacter(&entities.CharacterConfig{
		Name: "Bren", Race: "dwarf", Class: "cleric", Level: 1,
		AbilityScores: entities.AbilityScores{
			Strength: 12, Dexterity: 10, Constitution: 14,
			Intelligence: 10, Wisdom: 16, Charisma: 10,
		},
		HPMax: 10,
	})
	if err != nil {
		t.Fatal(err)
	}
	state, err := entities.NewGameState(&entities.GameStateConfig{
		SessionID: "sess_mem", CampaignID: "c", Character: character,
		ChapterID: "ch1", NodeID: "n1",
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := repo.Save(ctx, &session.SaveInput{State: state}); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := repo.Get(ctx, &session.GetInput{SessionID: "sess_mem"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	// loads are independent copies
	loaded.State.Character.HP.Current = 1
	reloaded, err := repo.Get(ctx, &session.GetInput{SessionID: "sess_mem"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if reloaded.State.Character.HP.Current != 10 {
		t.Fatalf("stored state was aliased: got HP %d", reloaded.State.Character.HP.Current)
	}
}
