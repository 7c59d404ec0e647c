// Package effect implements the status-effect tracker: named, stackable,
// optionally time-limited modifiers applied to a target entity.
package effect

import "errors"

// ErrNotFound is returned by stores when a status effect lookup yields no results.
var ErrNotFound = errors.New("status effect not found")

// Type categorizes a status effect.
type Type string

const (
	TypeBuff    Type = "buff"
	TypeDebuff  Type = "debuff"
	TypeNeutral Type = "neutral"
	TypeNone    Type = "none"
)

// StatusEffect is one named effect on a target. The uniqueness key is
// (GameID, TargetID, Name): reapplying the same name stacks instead of
// duplicating the row.
type StatusEffect struct {
	ID         string
	GameID     string
	TargetID   string
	Name       string
	EffectType Type
	// Duration is the rounds remaining; nil means permanent.
	Duration *int
	// Stacks multiplies every per-stack delta in Effects.
	Stacks int
	// MaxStacks caps Stacks when non-nil.
	MaxStacks *int
	// Effects maps a modifier key to its per-stack delta.
	Effects map[string]float64
	// SourceID and SourceType optionally reference what inflicted the effect.
	SourceID   *string
	SourceType *string
}

// Permanent reports whether the effect has no duration and never decays.
func (e *StatusEffect) Permanent() bool {
	return e.Duration == nil
}

// ClampStacks caps Stacks at MaxStacks when a cap is set.
//
// Postcondition: MaxStacks == nil or Stacks <= *MaxStacks.
func (e *StatusEffect) ClampStacks() {
	if e.MaxStacks != nil && e.Stacks > *e.MaxStacks {
		e.Stacks = *e.MaxStacks
	}
}

// Contribution returns the effect's net deltas: per-stack delta multiplied by
// the current stack count, per key.
func (e *StatusEffect) Contribution() map[string]float64 {
	out := make(map[string]float64, len(e.Effects))
	for key, perStack := range e.Effects {
		out[key] = perStack * float64(e.Stacks)
	}
	return out
}
