// Package checks resolves ability checks, skill checks, and saving
// throws for a bound character.
package checks

import (
	"fmt"
	"strings"

	"github.com/tavernkeep/dm-engine/internal/entities"
	"github.com/tavernkeep/dm-engine/internal/errors"
	"github.com/tavernkeep/dm-engine/internal/rules/dice"
)

// skillAbilityMap maps each SRD skill to its governing ability
var skillAbilityMap = map[string]string{
	"acrobatics":      "dex",
	"animal-handling": "wis",
	"arcana":          "int",
	"athletics":       "str",
	"deception":       "cha",
	"history":         "int",
	"insight":         "wis",
	"intimidation":    "cha",
	"investigation":   "int",
	"medicine":        "wis",
	"nature":          "int",
	"perception":      "wis",
	"performance":     "cha",
	"persuasion":      "cha",
	"religion":        "int",
	"sleight-of-hand": "dex",
	"stealth":         "dex",
	"survival":        "wis",
}

// Check types
const (
	TypeAbility = "ability"
	TypeSkill   = "skill"
	TypeSave    = "save"
)

// Result is the immutable outcome of one check
type Result struct {
	Success         bool         `json:"success"`
	Total           int          `json:"total"`
	DC              int          `json:"dc"`
	Roll            *dice.Result `json:"roll"`
	Modifier        int          `json:"modifier"`
	CheckType       string       `json:"check_type"`
	CheckName       string       `json:"check_name"`
	CriticalSuccess bool         `json:"critical_success"`
	CriticalFailure bool         `json:"critical_failure"`
	Margin          int          `json:"margin"`
}

// String renders the check outcome for presentation
func (r *Result) String() string {
	outcome := "FAILURE"
	switch {
	case r.CriticalSuccess:
		outcome = "CRITICAL SUCCESS"
	case r.CriticalFailure:
		outcome = "CRITICAL FAILURE"
	case r.Success:
		outcome = "SUCCESS"
	}
	return fmt.Sprintf("%s check: %d + %d = %d vs DC %d - %s",
		r.CheckName, r.Roll.Rolls[0], r.Modifier, r.Total, r.DC, outcome)
}

// RollOptions selects plain, advantage, or disadvantage rolling.
// When both flags are set, advantage wins.
type RollOptions struct {
	Advantage    bool
	Disadvantage bool
}

// Config holds the Engine dependencies. The character is bound at
// construction so an unbound engine cannot exist.
type Config struct {
	Character *entities.Character
	Roller    *dice.Roller
}

// Validate checks required fields
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()
	if c.Character == nil {
		vb.RequiredField("character")
	}
	if c.Roller == nil {
		vb.RequiredField("roller")
	}
	return vb.Build()
}

// Engine resolves d20 checks for one character
type Engine struct {
	character *entities.Character
	roller    *dice.Roller
}

// New creates an Engine bound to a character
func New(cfg *Config) (*Engine, error) {
	if cfg == nil {
		return nil, errors.InvalidArgument("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		character: cfg.Character,
		roller:    cfg.Roller,
	}, nil
}

// AbilityModifier returns the character's modifier for an ability
func (e *Engine) AbilityModifier(ability string) int {
	return e.character.AbilityScores.Modifier(strings.ToLower(ability))
}

// SkillModifier returns ability modifier plus proficiency bonus when
// the character is proficient. Skill names accept "_", " ", or "-"
// separators interchangeably.
func (e *Engine) SkillModifier(skill string) int {
	normalized := normalizeName(skill)

	ability, ok := skillAbilityMap[normalized]
	if !ok {
		ability = "int"
	}
	modifier := e.AbilityModifier(ability)

	for _, prof := range e.character.Proficiencies.Skills {
		if normalizeName(prof) == normalized {
			modifier += e.character.ProficiencyBonus
			break
		}
	}
	return modifier
}

// AbilityCheck rolls 1d20 + ability modifier against the DC
func (e *Engine) AbilityCheck(ability string, dc int, opts RollOptions) (*Result, error) {
	return e.check(TypeAbility, strings.ToLower(ability), e.AbilityModifier(ability), dc, opts)
}

// SkillCheck rolls 1d20 + skill modifier against the DC
func (e *Engine) SkillCheck(skill string, dc int, opts RollOptions) (*Result, error) {
	return e.check(TypeSkill, normalizeName(skill), e.SkillModifier(skill), dc, opts)
}

// SavingThrow rolls 1d20 + ability modifier (+ proficiency when the
// character is proficient in that save) against the DC. Proficiency
// entries accept "str", "saving-throw-str", and "saving_throw_str"
// spellings.
func (e *Engine) SavingThrow(ability string, dc int, opts RollOptions) (*Result, error) {
	abilityLower := strings.ToLower(ability)
	modifier := e.AbilityModifier(ability)

	for _, prof := range e.character.Proficiencies.SavingThrows {
		if strings.TrimPrefix(normalizeName(prof), "saving-throw-") == abilityLower {
			modifier += e.character.ProficiencyBonus
			break
		}
	}

	return e.check(TypeSave, abilityLower, modifier, dc, opts)
}

func (e *Engine) check(checkType, name string, modifier, dc int, opts RollOptions) (*Result, error) {
	var roll *dice.Result
	var err error

	switch {
	case opts.Advantage:
		roll, _, _, err = e.roller.RollWithAdvantage("1d20")
	case opts.Disadvantage:
		roll, _, _, err = e.roller.RollWithDisadvantage("1d20")
	default:
		roll, err = e.roller.Roll("1d20")
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to roll %s check", name)
	}

	total := roll.Total + modifier

	return &Result{
		Success:         total >= dc,
		Total:           total,
		DC:              dc,
		Roll:            roll,
		Modifier:        modifier,
		CheckType:       checkType,
		CheckName:       name,
		CriticalSuccess: roll.Natural20,
		CriticalFailure: roll.Natural1,
		Margin:          total - dc,
	}, nil
}

func normalizeName(name string) string {
	s := strings.ToLower(name)
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, "_", "-")
	return s
}
