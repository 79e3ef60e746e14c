package entities

// EnemyInstance is one enemy slot in an encounter
type EnemyInstance struct {
	EnemyID         string   `json:"enemy_id"`
	MonsterID       string   `json:"monster_id"`
	Name            string   `json:"name,omitempty"` // display name, may differ from the stat block
	Count           int      `json:"count"`
	HPModifier      int      `json:"hp_modifier,omitempty"`
	CustomEquipment []string `json:"custom_equipment,omitempty"`
}

// EncounterReward is granted on victory
type EncounterReward struct {
	XP        int      `json:"xp,omitempty"`
	Gold      string   `json:"gold,omitempty"` // dice expression like "2d6"
	Items     []string `json:"items,omitempty"`
	SetsFlags []string `json:"sets_flags,omitempty"`
}

// EncounterEnvironment describes the battlefield
type EncounterEnvironment struct {
	Description     string   `json:"description,omitempty"`
	Terrain         string   `json:"terrain,omitempty"`
	Lighting        string   `json:"lighting,omitempty"`
	CoverAvailable  bool     `json:"cover_available"`
	SpecialFeatures []string `json:"special_features,omitempty"`
}

// Encounter is a combat encounter definition
type Encounter struct {
	EncounterID string `json:"encounter_id"`
	Name        string `json:"name"`
	Description string `json:"description"`

	Difficulty string `json:"difficulty,omitempty"`

	Enemies []EnemyInstance `json:"enemies"`

	Environment EncounterEnvironment `json:"environment"`

	IntroNarration   string `json:"intro_narration,omitempty"`
	VictoryNarration string `json:"victory_narration,omitempty"`
	DefeatNarration  string `json:"defeat_narration,omitempty"`

	Rewards EncounterReward `json:"rewards"`

	EnemyTactics string  `json:"enemy_tactics,omitempty"`
	MoraleBreak  float64 `json:"morale_break,omitempty"`
}

// GetID implements core.Entity
func (e *Encounter) GetID() string { return e.EncounterID }

// GetType implements core.Entity
func (e *Encounter) GetType() string { return "encounter" }

// EncounterRegistry holds all encounters in a campaign
type EncounterRegistry struct {
	Encounters map[string]*Encounter `json:"encounters"`
}

// NewEncounterRegistry creates an empty registry
func NewEncounterRegistry() *EncounterRegistry {
	return &EncounterRegistry{Encounters: make(map[string]*Encounter)}
}

// Get looks an encounter up by id
func (r *EncounterRegistry) Get(encounterID string) *Encounter {
	return r.Encounters[encounterID]
}

// Add registers an encounter
func (r *EncounterRegistry) Add(enc *Encounter) {
	r.Encounters[enc.EncounterID] = enc
}
