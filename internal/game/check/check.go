// Package check implements skill checks and opposed contests on top of the
// dice roller and a per-game check-mechanics ruleset.
package check

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/keeper/internal/game/character"
	"github.com/cory-johannsen/keeper/internal/game/dice"
	"github.com/cory-johannsen/keeper/internal/game/ruleset"
)

// RulesetSource resolves the check mechanics for a game.
type RulesetSource interface {
	// GetRuleset returns the game's ruleset, or ruleset.ErrNotFound.
	GetRuleset(ctx context.Context, gameID string) (*ruleset.Ruleset, error)
}

// CharacterSource resolves characters by id.
type CharacterSource interface {
	// GetCharacter returns the character, or character.ErrNotFound.
	GetCharacter(ctx context.Context, id string) (*character.Character, error)
}

// Input describes one check. Skill and Attribute are both optional and both
// contribute to the modifier when supplied and present on the character.
type Input struct {
	GameID      string
	CharacterID string
	Skill       string
	Attribute   string
	Difficulty  int
	Bonus       int
}

// Result is the full outcome of one check. Margin is always total minus
// difficulty, even when a critical threshold overrides Success.
type Result struct {
	Success         bool            `json:"success"`
	Total           int             `json:"total"`
	Margin          int             `json:"margin"`
	Modifier        int             `json:"modifier"`
	Roll            dice.RollResult `json:"roll"`
	CriticalSuccess bool            `json:"criticalSuccess"`
	CriticalFailure bool            `json:"criticalFailure"`
}

// Evaluator resolves checks against a game's configured mechanics.
type Evaluator struct {
	rules  RulesetSource
	chars  CharacterSource
	roller *dice.Roller
	logger *zap.Logger
}

// NewEvaluator creates an Evaluator.
//
// Precondition: all arguments must be non-nil.
func NewEvaluator(rules RulesetSource, chars CharacterSource, roller *dice.Roller, logger *zap.Logger) *Evaluator {
	return &Evaluator{rules: rules, chars: chars, roller: roller, logger: logger}
}

// Evaluate rolls the game's base dice and resolves the check. The additive
// modifier is Bonus plus the character's skill value plus the attribute
// transformed as floor((value-10)/2); skill and attribute each contribute only
// when named and present on the character. Success is total >= difficulty
// unless the first die trips a critical threshold. The critical-failure
// threshold is evaluated before critical-success; when both match, the check
// fails.
//
// Precondition: the game must have a ruleset; a missing ruleset is an error,
// not an absent result.
func (ev *Evaluator) Evaluate(ctx context.Context, in Input) (*Result, error) {
	rs, err := ev.rules.GetRuleset(ctx, in.GameID)
	if errors.Is(err, ruleset.ErrNotFound) {
		return nil, fmt.Errorf("check: game %q has no ruleset", in.GameID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading ruleset for game %q: %w", in.GameID, err)
	}

	expr, err := dice.Parse(rs.CheckMechanics.BaseDice)
	if err != nil {
		return nil, fmt.Errorf("ruleset %q base dice: %w", in.GameID, err)
	}

	modifier := in.Bonus
	if in.CharacterID != "" && (in.Skill != "" || in.Attribute != "") {
		char, err := ev.chars.GetCharacter(ctx, in.CharacterID)
		if errors.Is(err, character.ErrNotFound) {
			return nil, fmt.Errorf("check: unknown character %q", in.CharacterID)
		}
		if err != nil {
			return nil, fmt.Errorf("loading character %q: %w", in.CharacterID, err)
		}
		if in.Skill != "" {
			if v, ok := char.Skill(in.Skill); ok {
				modifier += v
			}
		}
		if in.Attribute != "" {
			if v, ok := char.Attribute(in.Attribute); ok {
				modifier += character.AbilityMod(v)
			}
		}
	}

	roll := ev.roller.Roll(expr)
	total := roll.Total() + modifier

	result := &Result{
		Success:  total >= in.Difficulty,
		Total:    total,
		Margin:   total - in.Difficulty,
		Modifier: modifier,
		Roll:     roll,
	}

	mech := rs.CheckMechanics
	switch {
	case mech.CriticalFailure != nil && roll.First() <= *mech.CriticalFailure:
		result.CriticalFailure = true
		result.Success = false
	case mech.CriticalSuccess != nil && roll.First() >= *mech.CriticalSuccess:
		result.CriticalSuccess = true
		result.Success = true
	}

	ev.logger.Debug("check resolved",
		zap.String("game_id", in.GameID),
		zap.String("character_id", in.CharacterID),
		zap.Int("total", total),
		zap.Int("difficulty", in.Difficulty),
		zap.Bool("success", result.Success),
	)
	return result, nil
}
