// Package dice parses and evaluates dice expressions of the form
// [N]dM[+K|-K], with advantage and disadvantage variants.
package dice

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	rpgdice "github.com/KirkDiggler/rpg-toolkit/dice"

	"github.com/tavernkeep/dm-engine/internal/errors"
)

// expression grammar: optional count, die size, optional flat modifier
var dicePattern = regexp.MustCompile(`^(\d*)d(\d+)([+-]\d+)?$`)

// Result is the immutable outcome of one roll
type Result struct {
	Total      int    `json:"total"`
	Rolls      []int  `json:"rolls"`
	Modifier   int    `json:"modifier"`
	Expression string `json:"expression"`
	Natural20  bool   `json:"natural_20"`
	Natural1   bool   `json:"natural_1"`
}

// String renders the roll in "2d6+3 = [4 2] +3 = 9" form
func (r *Result) String() string {
	if r.Modifier != 0 {
		sign := ""
		if r.Modifier > 0 {
			sign = "+"
		}
		return fmt.Sprintf("%s = %v %s%d = %d", r.Expression, r.Rolls, sign, r.Modifier, r.Total)
	}
	return fmt.Sprintf("%s = %v = %d", r.Expression, r.Rolls, r.Total)
}

// Expression is a parsed dice expression
type Expression struct {
	Count    int
	Size     int
	Modifier int
}

// Parse normalizes and parses a dice expression. Case and spaces are
// ignored; a bare "dM" means "1dM".
func Parse(expression string) (Expression, error) {
	normalized := strings.ReplaceAll(strings.ToLower(expression), " ", "")

	match := dicePattern.FindStringSubmatch(normalized)
	if match == nil {
		return Expression{}, errors.InvalidArgumentf("invalid dice expression: %s", expression)
	}

	count := 1
	if match[1] != "" {
		count, _ = strconv.Atoi(match[1])
	}
	size, _ := strconv.Atoi(match[2])
	if size < 1 {
		return Expression{}, errors.InvalidArgumentf("invalid die size in expression: %s", expression)
	}
	modifier := 0
	if match[3] != "" {
		modifier, _ = strconv.Atoi(match[3])
	}

	return Expression{Count: count, Size: size, Modifier: modifier}, nil
}

// Config holds the Roller dependencies
type Config struct {
	// Source provides the raw die faces; inject a deterministic source
	// in tests.
	Source rpgdice.Roller
}

// Validate checks required fields
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()
	if c.Source == nil {
		vb.RequiredField("source")
	}
	return vb.Build()
}

// Roller evaluates dice expressions against an injected random source
type Roller struct {
	source rpgdice.Roller
}

// New creates a Roller
func New(cfg *Config) (*Roller, error) {
	if cfg == nil {
		return nil, errors.InvalidArgument("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Roller{source: cfg.Source}, nil
}

// NewDefault creates a Roller backed by the toolkit's default source
func NewDefault() *Roller {
	return &Roller{source: rpgdice.DefaultRoller}
}

// Roll evaluates an expression. Natural20/Natural1 are set only when
// the expression is a single d20.
func (r *Roller) Roll(expression string) (*Result, error) {
	expr, err := Parse(expression)
	if err != nil {
		return nil, err
	}

	rolls, err := r.rollDice(expr.Count, expr.Size)
	if err != nil {
		return nil, err
	}

	total := expr.Modifier
	for _, roll := range rolls {
		total += roll
	}

	singleD20 := expr.Count == 1 && expr.Size == 20

	return &Result{
		Total:      total,
		Rolls:      rolls,
		Modifier:   expr.Modifier,
		Expression: strings.ReplaceAll(strings.ToLower(expression), " ", ""),
		Natural20:  singleD20 && rolls[0] == 20,
		Natural1:   singleD20 && rolls[0] == 1,
	}, nil
}

// RollWithAdvantage rolls the expression twice and selects the higher
// total. Both raw results are returned for auditing.
func (r *Roller) RollWithAdvantage(expression string) (final, roll1, roll2 *Result, err error) {
	roll1, err = r.Roll(expression)
	if err != nil {
		return nil, nil, nil, err
	}
	roll2, err = r.Roll(expression)
	if err != nil {
		return nil, nil, nil, err
	}
	if roll1.Total >= roll2.Total {
		return roll1, roll1, roll2, nil
	}
	return roll2, roll1, roll2, nil
}

// RollWithDisadvantage rolls the expression twice and selects the
// lower total
func (r *Roller) RollWithDisadvantage(expression string) (final, roll1, roll2 *Result, err error) {
	roll1, err = r.Roll(expression)
	if err != nil {
		return nil, nil, nil, err
	}
	roll2, err = r.Roll(expression)
	if err != nil {
		return nil, nil, nil, err
	}
	if roll1.Total <= roll2.Total {
		return roll1, roll1, roll2, nil
	}
	return roll2, roll1, roll2, nil
}

// RollDice rolls count dice of the given size with no modifier,
// returning the individual faces. Used by the combat engine when
// doubling damage dice on a critical.
func (r *Roller) RollDice(count, size int) ([]int, error) {
	if size < 1 {
		return nil, errors.InvalidArgumentf("invalid die size: %d", size)
	}
	return r.rollDice(count, size)
}

func (r *Roller) rollDice(count, size int) ([]int, error) {
	if count == 0 {
		return []int{}, nil
	}
	rolls, err := r.source.RollN(count, size)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to roll %dd%d", count, size)
	}
	return rolls, nil
}
