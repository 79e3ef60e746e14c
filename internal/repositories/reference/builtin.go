package reference

import "github.com/tavernkeep/dm-engine/internal/entities"

// builtinMonsters are the SRD stat blocks available without a campaign
// bundle.
var builtinMonsters = []*entities.MonsterStatBlock{
	{
		MonsterID:  "goblin",
		Name:       "Goblin",
		Size:       "Small",
		Type:       "humanoid",
		ArmorClass: 15,
		HitPoints:  7,
		Speed:      30,
		AbilityScores: entities.AbilityScores{
			Strength: 8, Dexterity: 14, Constitution: 10,
			Intelligence: 10, Wisdom: 8, Charisma: 8,
		},
		Actions: []entities.MonsterAction{
			{Name: "Scimitar", AttackBonus: 4, DamageDice: "1d6+2", DamageType: "slashing"},
			{Name: "Shortbow", AttackBonus: 4, DamageDice: "1d6+2", DamageType: "piercing"},
		},
		ChallengeRating: 0.25,
		XP:              50,
	},
	{
		MonsterID:  "wolf",
		Name:       "Wolf",
		Size:       "Medium",
		Type:       "beast",
		ArmorClass: 13,
		HitPoints:  11,
		Speed:      40,
		AbilityScores: entities.AbilityScores{
			Strength: 12, Dexterity: 15, Constitution: 12,
			Intelligence: 3, Wisdom: 12, Charisma: 6,
		},
		Actions: []entities.MonsterAction{
			{Name: "Bite", AttackBonus: 4, DamageDice: "2d4+2", DamageType: "piercing"},
		},
		ChallengeRating: 0.25,
		XP:              50,
	},
	{
		MonsterID:  "skeleton",
		Name:       "Skeleton",
		Size:       "Medium",
		Type:       "undead",
		ArmorClass: 13,
		HitPoints:  13,
		Speed:      30,
		AbilityScores: entities.AbilityScores{
			Strength: 10, Dexterity: 14, Constitution: 15,
			Intelligence: 6, Wisdom: 8, Charisma: 5,
		},
		Actions: []entities.MonsterAction{
			{Name: "Shortsword", AttackBonus: 4, DamageDice: "1d6+2", DamageType: "piercing"},
		},
		ChallengeRating: 0.25,
		XP:              50,
	},
	{
		MonsterID:  "bandit",
		Name:       "Bandit",
		Size:       "Medium",
		Type:       "humanoid",
		ArmorClass: 12,
		HitPoints:  11,
		Speed:      30,
		AbilityScores: entities.AbilityScores{
			Strength: 11, Dexterity: 12, Constitution: 12,
			Intelligence: 10, Wisdom: 10, Charisma: 10,
		},
		Actions: []entities.MonsterAction{
			{Name: "Scimitar", AttackBonus: 3, DamageDice: "1d6+1", DamageType: "slashing"},
			{Name: "Light Crossbow", AttackBonus: 3, DamageDice: "1d8+1", DamageType: "piercing"},
		},
		ChallengeRating: 0.125,
		XP:              25,
	},
	{
		MonsterID:  "giant-rat",
		Name:       "Giant Rat",
		Size:       "Small",
		Type:       "beast",
		ArmorClass: 12,
		HitPoints:  7,
		Speed:      30,
		AbilityScores: entities.AbilityScores{
			Strength: 7, Dexterity: 15, Constitution: 11,
			Intelligence: 2, Wisdom: 10, Charisma: 4,
		},
		Actions: []entities.MonsterAction{
			{Name: "Bite", AttackBonus: 4, DamageDice: "1d4+2", DamageType: "piercing"},
		},
		ChallengeRating: 0.125,
		XP:              25,
	},
}

// builtinWeapons cover the common starting gear
var builtinWeapons = []*entities.WeaponRef{
	{WeaponID: "longsword", Name: "Longsword", DamageDice: "1d8", DamageType: "slashing"},
	{WeaponID: "shortsword", Name: "Shortsword", DamageDice: "1d6", DamageType: "piercing", Finesse: true},
	{WeaponID: "dagger", Name: "Dagger", DamageDice: "1d4", DamageType: "piercing", Finesse: true},
	{WeaponID: "rapier", Name: "Rapier", DamageDice: "1d8", DamageType: "piercing", Finesse: true},
	{WeaponID: "mace", Name: "Mace", DamageDice: "1d6", DamageType: "bludgeoning"},
	{WeaponID: "greataxe", Name: "Greataxe", DamageDice: "1d12", DamageType: "slashing"},
	{WeaponID: "quarterstaff", Name: "Quarterstaff", DamageDice: "1d6", DamageType: "bludgeoning"},
	{WeaponID: "shortbow", Name: "Shortbow", DamageDice: "1d6", DamageType: "piercing", Ranged: true},
	{WeaponID: "longbow", Name: "Longbow", DamageDice: "1d8", DamageType: "piercing", Ranged: true},
	{WeaponID: "light-crossbow", Name: "Light Crossbow", DamageDice: "1d8", DamageType: "piercing", Ranged: true},
}
