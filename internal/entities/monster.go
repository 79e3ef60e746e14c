package entities

// MonsterAction is one attack a monster can make. DamageDice may embed
// a flat bonus ("2d6+2"); the combat engine separates dice from bonus
// when resolving criticals.
type MonsterAction struct {
	Name        string `json:"name"`
	AttackBonus int    `json:"attack_bonus"`
	DamageDice  string `json:"damage_dice"`
	DamageType  string `json:"damage_type"`
}

// MonsterStatBlock is the reference data for one monster type,
// consumed by the combat engine to instantiate enemy combatants.
type MonsterStatBlock struct {
	MonsterID  string `json:"monster_id"`
	Name       string `json:"name"`
	Size       string `json:"size,omitempty"`
	Type       string `json:"type,omitempty"`
	ArmorClass int    `json:"armor_class"`
	HitPoints  int    `json:"hit_points"`
	Speed      int    `json:"speed"`

	AbilityScores AbilityScores `json:"ability_scores"`

	Actions []MonsterAction `json:"actions,omitempty"`

	ChallengeRating float64 `json:"challenge_rating,omitempty"`
	XP              int     `json:"xp,omitempty"`
}

// GetID implements core.Entity
func (m *MonsterStatBlock) GetID() string { return m.MonsterID }

// GetType implements core.Entity
func (m *MonsterStatBlock) GetType() string { return "monster" }

// InitiativeModifier derives the DEX modifier used for initiative
func (m *MonsterStatBlock) InitiativeModifier() int {
	return m.AbilityScores.Modifier("dex")
}

// WeaponRef is the reference data for one weapon, used to build player
// attacks from equipped inventory.
type WeaponRef struct {
	WeaponID   string `json:"weapon_id"`
	Name       string `json:"name"`
	DamageDice string `json:"damage_dice"`
	DamageType string `json:"damage_type"`
	Ranged     bool   `json:"ranged"`
	Finesse    bool   `json:"finesse"`
}
