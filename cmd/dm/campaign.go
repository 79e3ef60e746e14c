package main

import "github.com/tavernkeep/dm-engine/internal/entities"

// The built-in demo campaign: a three-node village mystery that
// exercises dialogue, gated actions, soft-gated exits, and one combat
// encounter. Campaign file loading sits above the engine; this content
// is what a loader would produce.

func demoCampaign() *entities.Campaign {
	return &entities.Campaign{
		CampaignID:  "emberfall",
		Title:       "Shadows over Emberfall",
		Description: "Something has been stealing from the cellars of a quiet village on the forest's edge.",
		Setting: entities.CampaignSetting{
			World:            "The Reach",
			Region:           "Emberfall",
			StartingLocation: "village-square",
		},
		Chapters: []*entities.Chapter{
			{
				ChapterID:     "ch1",
				Title:         "The Quiet Village",
				ChapterNumber: 1,
				Nodes:         []string{"village-square", "ember-hearth", "dark-forest"},
				StartingNode:  "village-square",
				IntroNarration: "Dusk settles over Emberfall as you arrive. The square is near empty, " +
					"and the innkeeper watches you from her doorway.",
				CompletionConditions: entities.ChapterCompletionConditions{
					RequiredFlags: []string{"forest_safe"},
				},
			},
		},
	}
}

func demoNPCs() *entities.NPCRegistry {
	npcs := entities.NewNPCRegistry()
	npcs.Add(&entities.NPC{
		NPCID: "mira",
		Name:  "Mira",
		Race:  "human",
		Role:  "innkeeper",
		Appearance: entities.NPCAppearance{
			Short:          "a weary innkeeper with flour-dusted sleeves",
			PortraitPrompt: "portrait of a weary middle-aged innkeeper, warm lamplight",
		},
		Personality: entities.NPCPersonality{
			Traits: []string{"guarded", "practical", "fiercely protective of the village"},
		},
		Voice: entities.NPCVoice{
			Style:          "short sentences, dry humor",
			SpeechPatterns: []string{"calls strangers 'traveler'"},
		},
		Knowledge: map[string]*entities.KnowledgeTopic{
			"cellar-thefts": {
				TopicID:        "cellar-thefts",
				Knows:          true,
				Information:    "Food has gone missing from three cellars this month, always on moonless nights.",
				ShareCondition: entities.ShareAlways,
			},
			"forest-tracks": {
				TopicID:        "forest-tracks",
				Knows:          true,
				Information:    "Mira found paw prints behind the inn, leading east into the pines.",
				ShareCondition: entities.ShareRequiresTrust,
				TrustThreshold: 60,
			},
		},
		Dialogue: entities.DialogueLines{
			GreetingFirst:    "Another traveler. Well, come in before the light goes.",
			GreetingFriendly: "Good to see you again. The stew's still warm.",
			FarewellNeutral:  "Mind the road after dark.",
		},
		BaseDisposition: 10,
		Trade: entities.TradeConfig{
			CanTrade:         true,
			Inventory:        []string{"torch", "rations"},
			FriendlyDiscount: 0.1,
			HostileMarkup:    0.5,
		},
	})
	return npcs
}

func demoNodes() map[string]*entities.Node {
	return map[string]*entities.Node{
		"village-square": {
			NodeID:    "village-square",
			Name:      "Village Square",
			ChapterID: "ch1",
			Description: entities.NodeDescription{
				Short:       "The muddy heart of Emberfall.",
				Long:        "A muddy square ringed by timber houses. The inn's sign creaks in the wind.",
				ImagePrompt: &entities.ImagePrompt{Scene: "a muddy village square at dusk, timber houses, creaking inn sign"},
			},
			NPCsPresent: []entities.NPCPresence{
				{NPCID: "mira", Role: "innkeeper", Topics: []string{"cellar-thefts", "forest-tracks"}},
			},
			SignificantActions: map[string]*entities.SignificantAction{
				"search-cellar": {
					ActionID:           "search-cellar",
					TriggerDescription: "search the raided cellar behind the inn for tracks",
					SetsFlags:          []string{"found_tracks"},
					GrantsQuest:        "cellar-mystery",
					GrantsXP:           25,
					SuccessPrompt:      "Fresh paw prints press into the spilled flour, leading east.",
				},
			},
			Exits: map[string]*entities.NodeExit{
				"inn": {
					TargetNode:       "ember-hearth",
					Description:      "The inn's warm doorway",
					Direction:        "north",
					AlwaysAvailable:  true,
					TransitionPrompt: "The hearth's warmth meets you at the door.",
				},
				"forest-trail": {
					TargetNode:      "dark-forest",
					Description:     "A narrow trail into the dark forest",
					Direction:       "east",
					AlwaysAvailable: true,
					SoftGate: &entities.SoftGate{
						Condition:     "found_tracks",
						WarningNPC:    "mira",
						WarningPrompt: "You don't know what you're walking into out there.",
					},
				},
			},
			Ambient: entities.AmbientDetails{
				Sounds: []string{"wind in the shutters", "a dog barking far off"},
				Mood:   "uneasy quiet",
			},
			OnEnterFirst: &entities.OnEnterBehavior{
				NarrationPrompt: "Introduce the village at dusk and the watching innkeeper.",
				SetFlags:        []string{"arrived_emberfall"},
			},
		},
		"ember-hearth": {
			NodeID:    "ember-hearth",
			Name:      "The Ember Hearth",
			ChapterID: "ch1",
			Description: entities.NodeDescription{
				Short: "Emberfall's only inn.",
				Long:  "Low beams, a roaring hearth, and three empty tables. It smells of bread and pine smoke.",
			},
			NPCsPresent: []entities.NPCPresence{
				{NPCID: "mira", Role: "innkeeper", Topics: []string{"cellar-thefts"}},
			},
			ItemsAvailable: []entities.ItemForSale{
				{ItemID: "torch", Cost: "1d4", Quantity: -1},
				{ItemID: "rations", Cost: "2d4", Quantity: 10},
			},
			Exits: map[string]*entities.NodeExit{
				"square": {
					TargetNode:      "village-square",
					Description:     "Back out to the square",
					Direction:       "south",
					AlwaysAvailable: true,
				},
			},
			Ambient: entities.AmbientDetails{
				Sounds: []string{"crackling fire"},
				Smells: []string{"fresh bread"},
				Mood:   "warm shelter",
			},
		},
		"dark-forest": {
			NodeID:    "dark-forest",
			Name:      "Dark Forest",
			ChapterID: "ch1",
			Description: entities.NodeDescription{
				Short:       "Black pines east of the village.",
				Long:        "Black pines crowd the narrow trail. Every few steps the undergrowth shifts.",
				ImagePrompt: &entities.ImagePrompt{Scene: "a dark pine forest trail at night, shifting undergrowth"},
			},
			Encounters: []entities.EncounterReference{
				{EncounterID: "wolf-ambush", Trigger: "manual", OnceOnly: true},
			},
			Exits: map[string]*entities.NodeExit{
				"back": {
					TargetNode:      "village-square",
					Description:     "The trail back to the village",
					Direction:       "west",
					AlwaysAvailable: true,
				},
			},
			Ambient: entities.AmbientDetails{
				Sounds: []string{"branches snapping", "low growls"},
				Mood:   "hunted",
			},
			OnEnterFirst: &entities.OnEnterBehavior{
				NarrationPrompt: "Describe the forest closing in and something pacing the player.",
			},
		},
	}
}

func demoEncounters() *entities.EncounterRegistry {
	encounters := entities.NewEncounterRegistry()
	encounters.Add(&entities.Encounter{
		EncounterID: "wolf-ambush",
		Name:        "Wolf Ambush",
		Description: "The cellar thieves turn out to have teeth.",
		Difficulty:  "easy",
		Enemies: []entities.EnemyInstance{
			{EnemyID: "wolf-1", MonsterID: "wolf", Count: 2, Name: "Gaunt Wolf"},
		},
		Environment: entities.EncounterEnvironment{
			Description: "A narrow trail hemmed in by pines",
			Terrain:     "forest",
			Lighting:    "darkness",
		},
		IntroNarration:   "Two gaunt wolves slide out of the dark, hackles raised.",
		VictoryNarration: "The forest falls silent. Whatever drove the wolves to the cellars, it ends here.",
		DefeatNarration:  "The wolves drag you back toward the treeline before something scares them off.",
		Rewards: entities.EncounterReward{
			XP:        50,
			Items:     []string{"wolf-pelt"},
			SetsFlags: []string{"forest_safe"},
		},
		EnemyTactics: "Flank and harry the weakest target.",
	})
	return encounters
}
