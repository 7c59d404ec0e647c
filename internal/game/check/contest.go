package check

import (
	"context"
	"fmt"
)

// Contest winners.
const (
	WinnerAttacker = "attacker"
	WinnerDefender = "defender"
	WinnerTie      = "tie"
)

// Side names one participant's skill and attribute for a contest.
type Side struct {
	CharacterID string
	Skill       string
	Attribute   string
	Bonus       int
}

// ContestResult pairs the two check results with the decided winner. Each
// side's critical outcome is preserved in its own Result but only the totals
// decide the contest.
type ContestResult struct {
	Attacker *Result `json:"attacker"`
	Defender *Result `json:"defender"`
	Winner   string  `json:"winner"`
}

// Contest resolves an opposed check: both sides roll independent checks at
// difficulty 0 so their totals are directly comparable. The strictly greater
// total wins; equal totals are a tie.
func (ev *Evaluator) Contest(ctx context.Context, gameID string, attacker, defender Side) (*ContestResult, error) {
	atk, err := ev.Evaluate(ctx, Input{
		GameID:      gameID,
		CharacterID: attacker.CharacterID,
		Skill:       attacker.Skill,
		Attribute:   attacker.Attribute,
		Bonus:       attacker.Bonus,
	})
	if err != nil {
		return nil, fmt.Errorf("attacker check: %w", err)
	}

	def, err := ev.Evaluate(ctx, Input{
		GameID:      gameID,
		CharacterID: defender.CharacterID,
		Skill:       defender.Skill,
		Attribute:   defender.Attribute,
		Bonus:       defender.Bonus,
	})
	if err != nil {
		return nil, fmt.Errorf("defender check: %w", err)
	}

	winner := WinnerTie
	switch {
	case atk.Total > def.Total:
		winner = WinnerAttacker
	case def.Total > atk.Total:
		winner = WinnerDefender
	}

	return &ContestResult{Attacker: atk, Defender: def, Winner: winner}, nil
}
