// Package combat implements the turn-based combat state machine:
// initiative, attacks, damage, death saves, and victory detection.
package combat

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/tavernkeep/dm-engine/internal/entities"
	"github.com/tavernkeep/dm-engine/internal/errors"
	"github.com/tavernkeep/dm-engine/internal/rules/dice"
)

// Phase is the combat state machine phase
type Phase string

// Combat phases
const (
	PhaseNotInCombat       Phase = "not_in_combat"
	PhaseRollingInitiative Phase = "rolling_initiative"
	PhaseCombatActive      Phase = "combat_active"
	PhaseCombatEnded       Phase = "combat_ended"
)

// MonsterSource provides monster stat blocks by id
type MonsterSource interface {
	GetMonster(ctx context.Context, monsterID string) (*entities.MonsterStatBlock, error)
}

// WeaponSource provides weapon reference data by id
type WeaponSource interface {
	GetWeapon(ctx context.Context, weaponID string) (*entities.WeaponRef, error)
}

// InitiativeEntry records one combatant's initiative roll
type InitiativeEntry struct {
	CombatantID string `json:"combatant_id"`
	Name        string `json:"name"`
	Roll        int    `json:"roll"`
	Modifier    int    `json:"modifier"`
	Total       int    `json:"total"`
}

// StartResult describes the opening of combat
type StartResult struct {
	Round      int               `json:"round"`
	Initiative []InitiativeEntry `json:"initiative"`
	TurnOrder  []string          `json:"turn_order"`
	CurrentID  string            `json:"current_id"`
}

// TurnResult describes a turn advance
type TurnResult struct {
	Round     int    `json:"round"`
	CurrentID string `json:"current_id"`
	Name      string `json:"name"`
}

// AttackResult is the immutable outcome of one attack
type AttackResult struct {
	Hit         bool         `json:"hit"`
	Critical    bool         `json:"critical"`
	Fumble      bool         `json:"fumble"`
	AttackRoll  *dice.Result `json:"attack_roll"`
	AttackTotal int          `json:"attack_total"`
	TargetAC    int          `json:"target_ac"`
	Damage      int          `json:"damage"`
	DamageRolls []int        `json:"damage_rolls,omitempty"`
	DamageType  string       `json:"damage_type,omitempty"`
	Attacker    string       `json:"attacker"`
	Target      string       `json:"target"`
	TargetState string       `json:"target_state,omitempty"`
}

// String renders the attack outcome for presentation
func (r *AttackResult) String() string {
	if r.Fumble {
		return fmt.Sprintf("%s fumbles their attack!", r.Attacker)
	}
	if !r.Hit {
		return fmt.Sprintf("%s misses %s (rolled %d vs AC %d)", r.Attacker, r.Target, r.AttackTotal, r.TargetAC)
	}
	crit := ""
	if r.Critical {
		crit = " Critical hit!"
	}
	return fmt.Sprintf("%s hits %s for %d %s damage.%s", r.Attacker, r.Target, r.Damage, r.DamageType, crit)
}

// DeathSaveResult is the outcome of one death saving throw
type DeathSaveResult struct {
	Roll      *dice.Result `json:"roll"`
	Success   bool         `json:"success"`
	Successes int          `json:"successes"`
	Failures  int          `json:"failures"`
	Stable    bool         `json:"stable"`
	Dead      bool         `json:"dead"`
	Revived   bool         `json:"revived"`
}

// Summary is produced when combat ends
type Summary struct {
	Rounds            int      `json:"rounds"`
	EnemiesDefeated   []string `json:"enemies_defeated"`
	XPEarned          int      `json:"xp_earned"`
	PlayerHPRemaining int      `json:"player_hp_remaining"`
}

// StatusEntry is one line of the combat status snapshot
type StatusEntry struct {
	CombatantID string `json:"combatant_id"`
	Name        string `json:"name"`
	HPCurrent   int    `json:"hp_current"`
	HPMax       int    `json:"hp_max"`
	IsCurrent   bool   `json:"is_current"`
	IsConscious bool   `json:"is_conscious"`
	IsAlive     bool   `json:"is_alive"`
}

// Status is a presentation snapshot of the fight
type Status struct {
	Phase   Phase         `json:"phase"`
	Round   int           `json:"round"`
	Entries []StatusEntry `json:"entries,omitempty"`
}

// defaultEnemyXP is used when a stat block carries no XP value
const defaultEnemyXP = 50

// Config holds the Engine dependencies
type Config struct {
	Roller   *dice.Roller
	Monsters MonsterSource
	Weapons  WeaponSource
	Logger   *slog.Logger
}

// Validate checks required fields. Monster and weapon sources are
// optional; without them the combatant factories are unavailable but
// pre-built combatants still work.
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()
	if c.Roller == nil {
		vb.RequiredField("roller")
	}
	return vb.Build()
}

// Engine manages one combat encounter at a time
type Engine struct {
	roller   *dice.Roller
	monsters MonsterSource
	weapons  WeaponSource
	log      *slog.Logger

	phase            Phase
	combatants       map[string]*entities.Combatant
	registered       []string // insertion order, the initiative tie-break
	turnOrder        []string
	currentTurnIndex int
	round            int
	spawned          int
}

// New creates a combat Engine in the NotInCombat phase
func New(cfg *Config) (*Engine, error) {
	if cfg == nil {
		return nil, errors.InvalidArgument("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Engine{
		roller:     cfg.Roller,
		monsters:   cfg.Monsters,
		weapons:    cfg.Weapons,
		log:        log,
		phase:      PhaseNotInCombat,
		combatants: make(map[string]*entities.Combatant),
	}, nil
}

// Phase returns the current state machine phase
func (e *Engine) Phase() Phase {
	return e.phase
}

// CreatePlayerCombatant builds a combatant from the character sheet.
// Attacks come from equipped weapons; a weapon missing from the
// reference table is skipped with a warning rather than guessed at.
// With no usable weapon the combatant gets an unarmed strike.
func (e *Engine) CreatePlayerCombatant(ctx context.Context, char *entities.Character) (*entities.Combatant, error) {
	if char == nil {
		return nil, errors.InvalidArgument("character is required")
	}

	strMod := char.AbilityScores.Modifier("str")
	dexMod := char.AbilityScores.Modifier("dex")

	var attacks []entities.Attack
	if e.weapons != nil {
		for _, item := range char.Inventory {
			if !item.Equipped {
				continue
			}
			weapon, err := e.weapons.GetWeapon(ctx, item.ItemID)
			if err != nil {
				if errors.IsNotFound(err) {
					e.log.WarnContext(ctx, "equipped item has no weapon data, skipping",
						"item_id", item.ItemID)
					continue
				}
				return nil, errors.Wrapf(err, "failed to look up weapon %s", item.ItemID)
			}

			attackMod := strMod
			switch {
			case weapon.Finesse:
				attackMod = max(strMod, dexMod)
			case weapon.Ranged:
				attackMod = dexMod
			}

			attacks = append(attacks, entities.Attack{
				Name:           weapon.Name,
				AttackBonus:    attackMod + char.ProficiencyBonus,
				DamageDice:     weapon.DamageDice,
				DamageModifier: attackMod,
				DamageType:     weapon.DamageType,
			})
		}
	}

	if len(attacks) == 0 {
		attacks = append(attacks, entities.Attack{
			Name:           "Unarmed Strike",
			AttackBonus:    strMod + char.ProficiencyBonus,
			DamageDice:     "1",
			DamageModifier: strMod,
			DamageType:     "bludgeoning",
		})
	}

	return &entities.Combatant{
		ID:                 "player",
		Name:               char.Name,
		HPCurrent:          char.HP.Current,
		HPMax:              char.HP.Max,
		ArmorClass:         char.ArmorClass,
		InitiativeModifier: dexMod,
		IsPlayer:           true,
		Attacks:            attacks,
		Speed:              char.Speed,
		IsConscious:        char.HP.Current > 0,
	}, nil
}

// CreateMonsterCombatant instantiates an enemy from a stat block.
// An unknown monster id propagates as NotFound; the caller decides on
// the fallback.
func (e *Engine) CreateMonsterCombatant(ctx context.Context, monsterID, name string, hpModifier int) (*entities.Combatant, error) {
	if e.monsters == nil {
		return nil, errors.FailedPrecondition("no monster source configured")
	}

	block, err := e.monsters.GetMonster(ctx, monsterID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to look up monster %s", monsterID)
	}

	attacks := make([]entities.Attack, 0, len(block.Actions))
	for _, action := range block.Actions {
		attacks = append(attacks, entities.Attack{
			Name:        action.Name,
			AttackBonus: action.AttackBonus,
			DamageDice:  action.DamageDice,
			DamageType:  action.DamageType,
		})
	}

	if name == "" {
		name = block.Name
	}
	hp := block.HitPoints + hpModifier
	if hp < 1 {
		hp = 1
	}

	xp := block.XP
	if xp == 0 {
		xp = defaultEnemyXP
	}

	e.spawned++
	return &entities.Combatant{
		ID:                 fmt.Sprintf("%s_%d", monsterID, e.spawned),
		Name:               name,
		HPCurrent:          hp,
		HPMax:              hp,
		ArmorClass:         block.ArmorClass,
		InitiativeModifier: block.InitiativeModifier(),
		Attacks:            attacks,
		Speed:              block.Speed,
		IsConscious:        true,
		XPValue:            xp,
	}, nil
}

// CreateEncounterCombatants instantiates every enemy slot of an
// encounter, expanding counts.
func (e *Engine) CreateEncounterCombatants(ctx context.Context, enc *entities.Encounter) ([]*entities.Combatant, error) {
	if enc == nil {
		return nil, errors.InvalidArgument("encounter is required")
	}

	var enemies []*entities.Combatant
	for _, slot := range enc.Enemies {
		count := slot.Count
		if count < 1 {
			count = 1
		}
		for i := 0; i < count; i++ {
			name := slot.Name
			if name != "" && count > 1 {
				name = fmt.Sprintf("%s %d", slot.Name, i+1)
			}
			enemy, err := e.CreateMonsterCombatant(ctx, slot.MonsterID, name, slot.HPModifier)
			if err != nil {
				return nil, err
			}
			enemies = append(enemies, enemy)
		}
	}
	return enemies, nil
}

// StartCombat registers combatants, rolls initiative for each, and
// orders turns by descending total. Equal totals keep registration
// order.
func (e *Engine) StartCombat(player *entities.Combatant, enemies []*entities.Combatant) (*StartResult, error) {
	if e.phase == PhaseCombatActive || e.phase == PhaseRollingInitiative {
		return nil, errors.FailedPrecondition("combat is already active")
	}
	if player == nil {
		return nil, errors.InvalidArgument("player combatant is required")
	}
	if len(enemies) == 0 {
		return nil, errors.InvalidArgument("at least one enemy is required")
	}

	e.phase = PhaseRollingInitiative
	e.combatants = make(map[string]*entities.Combatant)
	e.registered = e.registered[:0]
	e.round = 1

	e.register(player)
	for _, enemy := range enemies {
		e.register(enemy)
	}

	entries := make([]InitiativeEntry, 0, len(e.registered))
	for _, id := range e.registered {
		c := e.combatants[id]
		roll, err := e.roller.Roll("1d20")
		if err != nil {
			e.phase = PhaseNotInCombat
			return nil, errors.Wrap(err, "failed to roll initiative")
		}
		c.Initiative = roll.Total + c.InitiativeModifier
		entries = append(entries, InitiativeEntry{
			CombatantID: c.ID,
			Name:        c.Name,
			Roll:        roll.Rolls[0],
			Modifier:    c.InitiativeModifier,
			Total:       c.Initiative,
		})
	}

	// stable sort keeps registration order on ties
	e.turnOrder = append([]string(nil), e.registered...)
	sort.SliceStable(e.turnOrder, func(i, j int) bool {
		return e.combatants[e.turnOrder[i]].Initiative > e.combatants[e.turnOrder[j]].Initiative
	})

	e.currentTurnIndex = 0
	e.phase = PhaseCombatActive

	e.log.Info("combat started",
		"combatants", len(e.combatants),
		"first", e.turnOrder[0])

	return &StartResult{
		Round:      e.round,
		Initiative: entries,
		TurnOrder:  append([]string(nil), e.turnOrder...),
		CurrentID:  e.turnOrder[0],
	}, nil
}

func (e *Engine) register(c *entities.Combatant) {
	e.combatants[c.ID] = c
	e.registered = append(e.registered, c.ID)
}

// CurrentCombatant returns whose turn it is, nil outside combat
func (e *Engine) CurrentCombatant() *entities.Combatant {
	if len(e.turnOrder) == 0 {
		return nil
	}
	return e.combatants[e.turnOrder[e.currentTurnIndex]]
}

// Combatant looks a combatant up by id
func (e *Engine) Combatant(id string) *entities.Combatant {
	return e.combatants[id]
}

// NextTurn advances the turn pointer, wrapping into a new round and
// skipping combatants who are dead or unconscious. The skip is bounded
// by one full lap so a table of downed combatants cannot loop forever.
func (e *Engine) NextTurn() (*TurnResult, error) {
	if e.phase != PhaseCombatActive {
		return nil, errors.FailedPrecondition("combat is not active")
	}

	e.currentTurnIndex++
	if e.currentTurnIndex >= len(e.turnOrder) {
		e.currentTurnIndex = 0
		e.round++
	}

	for attempts := 0; attempts < len(e.turnOrder); attempts++ {
		current := e.CurrentCombatant()
		if current != nil && current.IsAlive() && current.IsConscious {
			break
		}
		e.currentTurnIndex = (e.currentTurnIndex + 1) % len(e.turnOrder)
		if e.currentTurnIndex == 0 {
			e.round++
		}
	}

	current := e.CurrentCombatant()
	return &TurnResult{
		Round:     e.round,
		CurrentID: current.ID,
		Name:      current.Name,
	}, nil
}

// Attack resolves one attack. A natural 20 hits automatically and
// doubles the damage dice (the flat modifier applies once); a natural
// 1 misses regardless of bonus. Every hit deals at least 1 damage,
// applied to the target immediately.
func (e *Engine) Attack(attackerID, targetID string, attackIndex int) (*AttackResult, error) {
	if e.phase != PhaseCombatActive {
		return nil, errors.FailedPrecondition("combat is not active")
	}

	attacker := e.combatants[attackerID]
	target := e.combatants[targetID]
	if attacker == nil {
		return nil, errors.NotFoundf("combatant %s not found", attackerID)
	}
	if target == nil {
		return nil, errors.NotFoundf("combatant %s not found", targetID)
	}
	if len(attacker.Attacks) == 0 {
		return nil, errors.FailedPreconditionf("%s has no attacks", attacker.Name)
	}

	if attackIndex < 0 || attackIndex >= len(attacker.Attacks) {
		attackIndex = len(attacker.Attacks) - 1
	}
	attack := attacker.Attacks[attackIndex]

	attackRoll, err := e.roller.Roll("1d20")
	if err != nil {
		return nil, errors.Wrap(err, "failed to roll attack")
	}
	attackTotal := attackRoll.Total + attack.AttackBonus

	critical := attackRoll.Natural20
	fumble := attackRoll.Natural1
	hit := critical || (!fumble && attackTotal >= target.ArmorClass)

	result := &AttackResult{
		Hit:         hit,
		Critical:    critical,
		Fumble:      fumble,
		AttackRoll:  attackRoll,
		AttackTotal: attackTotal,
		TargetAC:    target.ArmorClass,
		DamageType:  attack.DamageType,
		Attacker:    attacker.Name,
		Target:      target.Name,
	}

	if hit {
		damage, damageRolls, err := e.rollDamage(attack, critical)
		if err != nil {
			return nil, err
		}
		if damage < 1 {
			damage = 1
		}
		result.Damage = damage
		result.DamageRolls = damageRolls
		result.TargetState = e.applyDamage(target, damage)
	}

	e.log.Info("attack resolved",
		"attacker", attackerID,
		"target", targetID,
		"hit", result.Hit,
		"critical", result.Critical,
		"damage", result.Damage)

	return result, nil
}

// rollDamage evaluates an attack's damage. Flat damage values ("1")
// are used as-is; dice expressions roll their dice twice on a
// critical, with any flat bonus applied once.
func (e *Engine) rollDamage(attack entities.Attack, critical bool) (int, []int, error) {
	expr, err := dice.Parse(attack.DamageDice)
	if err != nil {
		// flat damage like unarmed "1"
		var flat int
		if _, scanErr := fmt.Sscanf(attack.DamageDice, "%d", &flat); scanErr != nil {
			return 0, nil, errors.InvalidArgumentf("invalid damage expression: %s", attack.DamageDice)
		}
		return flat + attack.DamageModifier, []int{flat}, nil
	}

	count := expr.Count
	if critical {
		count *= 2
	}

	rolls, err := e.roller.RollDice(count, expr.Size)
	if err != nil {
		return 0, nil, errors.Wrap(err, "failed to roll damage")
	}

	damage := expr.Modifier + attack.DamageModifier
	for _, roll := range rolls {
		damage += roll
	}
	return damage, rolls, nil
}

func (e *Engine) applyDamage(target *entities.Combatant, amount int) string {
	actual := amount
	if actual > target.HPCurrent {
		actual = target.HPCurrent
	}
	target.HPCurrent -= actual

	if target.HPCurrent <= 0 {
		target.HPCurrent = 0
		target.IsConscious = false
		if target.IsPlayer {
			return fmt.Sprintf("%s falls unconscious!", target.Name)
		}
		return fmt.Sprintf("%s is defeated!", target.Name)
	}
	return fmt.Sprintf("%s takes %d damage (%d/%d HP)", target.Name, actual, target.HPCurrent, target.HPMax)
}

// Heal restores HP up to the maximum. Healing an unconscious combatant
// above 0 HP restores consciousness and resets death saves.
func (e *Engine) Heal(combatantID string, amount int) (int, error) {
	c := e.combatants[combatantID]
	if c == nil {
		return 0, errors.NotFoundf("combatant %s not found", combatantID)
	}
	if amount < 0 {
		return 0, errors.InvalidArgument("heal amount must be non-negative")
	}

	actual := amount
	if actual > c.HPMax-c.HPCurrent {
		actual = c.HPMax - c.HPCurrent
	}
	c.HPCurrent += actual

	if !c.IsConscious && c.HPCurrent > 0 {
		c.IsConscious = true
		c.DeathSaveSuccesses = 0
		c.DeathSaveFailures = 0
	}
	return actual, nil
}

// RollDeathSave makes a death saving throw for a downed player
// combatant. 10 or higher succeeds; a natural 20 revives at 1 HP; a
// natural 1 counts as two failures. Three successes stabilize, three
// failures kill.
func (e *Engine) RollDeathSave(combatantID string) (*DeathSaveResult, error) {
	c := e.combatants[combatantID]
	if c == nil {
		return nil, errors.NotFoundf("combatant %s not found", combatantID)
	}
	if !c.IsPlayer {
		return nil, errors.FailedPreconditionf("%s does not make death saves", c.Name)
	}
	if c.HPCurrent > 0 || !c.IsAlive() {
		return nil, errors.FailedPreconditionf("%s is not dying", c.Name)
	}

	roll, err := e.roller.Roll("1d20")
	if err != nil {
		return nil, errors.Wrap(err, "failed to roll death save")
	}

	result := &DeathSaveResult{Roll: roll}
	switch {
	case roll.Natural20:
		c.HPCurrent = 1
		c.IsConscious = true
		c.DeathSaveSuccesses = 0
		c.DeathSaveFailures = 0
		result.Success = true
		result.Revived = true
	case roll.Natural1:
		c.DeathSaveFailures += 2
	case roll.Total >= 10:
		c.DeathSaveSuccesses++
		result.Success = true
	default:
		c.DeathSaveFailures++
	}

	result.Successes = c.DeathSaveSuccesses
	result.Failures = c.DeathSaveFailures
	result.Stable = c.DeathSaveSuccesses >= 3
	result.Dead = c.DeathSaveFailures >= 3
	return result, nil
}

// CheckCombatEnd reports whether the fight is over. Defeat when no
// player combatant is alive, victory when no enemy is. There is no
// draw state.
func (e *Engine) CheckCombatEnd() (ended bool, victory bool) {
	playerAlive := false
	enemyAlive := false
	for _, c := range e.combatants {
		if !c.IsAlive() {
			continue
		}
		if c.IsPlayer {
			playerAlive = true
		} else {
			enemyAlive = true
		}
	}

	if !playerAlive {
		e.phase = PhaseCombatEnded
		return true, false
	}
	if !enemyAlive {
		e.phase = PhaseCombatEnded
		return true, true
	}
	return false, false
}

// Status returns a presentation snapshot of the current fight
func (e *Engine) Status() *Status {
	status := &Status{Phase: e.phase, Round: e.round}
	if e.phase != PhaseCombatActive && e.phase != PhaseCombatEnded {
		return status
	}
	for i, id := range e.turnOrder {
		c := e.combatants[id]
		status.Entries = append(status.Entries, StatusEntry{
			CombatantID: c.ID,
			Name:        c.Name,
			HPCurrent:   c.HPCurrent,
			HPMax:       c.HPMax,
			IsCurrent:   i == e.currentTurnIndex,
			IsConscious: c.IsConscious,
			IsAlive:     c.IsAlive(),
		})
	}
	return status
}

// EndCombat summarizes the fight and clears all combat state back to
// NotInCombat.
func (e *Engine) EndCombat() *Summary {
	summary := &Summary{
		Rounds:          e.round,
		EnemiesDefeated: []string{},
	}
	for _, id := range e.registered {
		c := e.combatants[id]
		if c.IsPlayer {
			summary.PlayerHPRemaining = c.HPCurrent
			continue
		}
		if !c.IsAlive() {
			summary.EnemiesDefeated = append(summary.EnemiesDefeated, c.Name)
			xp := c.XPValue
			if xp == 0 {
				xp = defaultEnemyXP
			}
			summary.XPEarned += xp
		}
	}

	e.phase = PhaseNotInCombat
	e.combatants = make(map[string]*entities.Combatant)
	e.registered = nil
	e.turnOrder = nil
	e.currentTurnIndex = 0
	e.round = 0

	return summary
}

// Snapshot captures the live combat for persistence
func (e *Engine) Snapshot() entities.CombatState {
	state := entities.CombatState{
		Active:           e.phase == PhaseCombatActive,
		Round:            e.round,
		TurnOrder:        append([]string(nil), e.turnOrder...),
		CurrentTurnIndex: e.currentTurnIndex,
	}
	if len(e.combatants) > 0 {
		state.Combatants = make(map[string]*entities.Combatant, len(e.combatants))
		for id, c := range e.combatants {
			copied := *c
			copied.Attacks = append([]entities.Attack(nil), c.Attacks...)
			state.Combatants[id] = &copied
		}
	}
	return state
}

// Restore rebuilds the engine from a persisted snapshot
func (e *Engine) Restore(state entities.CombatState) {
	if !state.Active {
		return
	}
	e.phase = PhaseCombatActive
	e.round = state.Round
	e.turnOrder = append([]string(nil), state.TurnOrder...)
	e.currentTurnIndex = state.CurrentTurnIndex
	e.combatants = make(map[string]*entities.Combatant, len(state.Combatants))
	e.registered = make([]string, 0, len(state.Combatants))
	for _, id := range state.TurnOrder {
		if c, ok := state.Combatants[id]; ok {
			copied := *c
			copied.Attacks = append([]entities.Attack(nil), c.Attacks...)
			e.combatants[id] = &copied
			e.registered = append(e.registered, id)
		}
	}
}
