package effect

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/keeper/internal/event"
)

// Store provides status effect persistence.
type Store interface {
	// GetEffect returns the effect with the given id, or ErrNotFound.
	GetEffect(ctx context.Context, id string) (*StatusEffect, error)
	// FindEffect returns the effect matching the uniqueness key, or ErrNotFound.
	FindEffect(ctx context.Context, gameID, targetID, name string) (*StatusEffect, error)
	// ListEffectsByGame returns all effects on the given game.
	ListEffectsByGame(ctx context.Context, gameID string) ([]*StatusEffect, error)
	// ListEffectsByTarget returns all effects on the given target.
	ListEffectsByTarget(ctx context.Context, targetID string) ([]*StatusEffect, error)
	// PutEffect inserts or replaces the effect record.
	PutEffect(ctx context.Context, e *StatusEffect) error
	// DeleteEffect removes the effect with the given id; unknown ids are a no-op.
	DeleteEffect(ctx context.Context, id string) error
}

// ApplyInput describes one apply call. Stacks defaults to 1 when zero.
type ApplyInput struct {
	GameID     string
	TargetID   string
	Name       string
	EffectType Type
	Stacks     int
	Duration   *int
	MaxStacks  *int
	Effects    map[string]float64
	SourceID   *string
	SourceType *string
}

// Filter narrows a Clear call. Nil fields match everything.
type Filter struct {
	EffectType *Type
	Name       *string
}

// TickResult partitions a game's timed effects after one decay pass.
// Permanent effects appear in neither list.
type TickResult struct {
	// Expired effects were deleted; their Duration is reported as 0.
	Expired []*StatusEffect
	// Remaining effects persist with their decremented duration.
	Remaining []*StatusEffect
}

// Tracker owns status effect stacking, decay, and aggregation. Mutations are
// synchronous read-modify-write calls; callers serialize per target.
type Tracker struct {
	store  Store
	bus    *event.Bus
	logger *zap.Logger
}

// NewTracker creates a Tracker.
//
// Precondition: all arguments must be non-nil.
func NewTracker(store Store, bus *event.Bus, logger *zap.Logger) *Tracker {
	return &Tracker{store: store, bus: bus, logger: logger}
}

// Apply creates the effect or merges into the row sharing its
// (gameID, targetID, name) key. On merge, stacks are incremented by the
// requested amount and clamped to the effective max; a duration supplied on
// this call replaces the stored one — a refresh, not an extension.
//
// Postcondition: the returned effect is persisted and its stacks respect MaxStacks.
func (t *Tracker) Apply(ctx context.Context, in ApplyInput) (*StatusEffect, error) {
	if in.GameID == "" || in.TargetID == "" || in.Name == "" {
		return nil, fmt.Errorf("effect: gameId, targetId, and name are required")
	}

	stacks := in.Stacks
	if stacks == 0 {
		stacks = 1
	}

	existing, err := t.store.FindEffect(ctx, in.GameID, in.TargetID, in.Name)
	switch {
	case err == nil:
		existing.Stacks += stacks
		if in.MaxStacks != nil {
			existing.MaxStacks = in.MaxStacks
		}
		existing.ClampStacks()
		if in.Duration != nil {
			existing.Duration = in.Duration
		}
		if err := t.store.PutEffect(ctx, existing); err != nil {
			return nil, fmt.Errorf("persisting effect %q: %w", existing.ID, err)
		}
		t.publishApplied(existing)
		return existing, nil

	case errors.Is(err, ErrNotFound):
		created := &StatusEffect{
			ID:         uuid.NewString(),
			GameID:     in.GameID,
			TargetID:   in.TargetID,
			Name:       in.Name,
			EffectType: in.EffectType,
			Duration:   in.Duration,
			Stacks:     stacks,
			MaxStacks:  in.MaxStacks,
			Effects:    in.Effects,
			SourceID:   in.SourceID,
			SourceType: in.SourceType,
		}
		if created.EffectType == "" {
			created.EffectType = TypeNone
		}
		if created.Effects == nil {
			created.Effects = map[string]float64{}
		}
		created.ClampStacks()
		if err := t.store.PutEffect(ctx, created); err != nil {
			return nil, fmt.Errorf("persisting effect %q: %w", created.Name, err)
		}
		t.publishApplied(created)
		return created, nil

	default:
		return nil, fmt.Errorf("looking up effect %q: %w", in.Name, err)
	}
}

// Tick subtracts amount from every timed effect on the game. Effects whose
// duration drops to 0 or below are deleted and reported as expired with
// duration 0; permanent effects are untouched and excluded from both lists.
//
// Precondition: amount must be >= 1.
func (t *Tracker) Tick(ctx context.Context, gameID string, amount int) (*TickResult, error) {
	if amount < 1 {
		return nil, fmt.Errorf("effect: tick amount must be >= 1, got %d", amount)
	}

	effects, err := t.store.ListEffectsByGame(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("listing effects for game %q: %w", gameID, err)
	}

	result := &TickResult{}
	for _, e := range effects {
		if e.Permanent() {
			continue
		}
		remaining := *e.Duration - amount
		if remaining <= 0 {
			if err := t.store.DeleteEffect(ctx, e.ID); err != nil {
				return nil, fmt.Errorf("deleting expired effect %q: %w", e.ID, err)
			}
			zero := 0
			e.Duration = &zero
			result.Expired = append(result.Expired, e)
			t.bus.Publish(event.Event{
				Type:       event.TypeEffectExpired,
				GameID:     e.GameID,
				EntityID:   e.ID,
				EntityType: "statusEffect",
				Data:       map[string]any{"name": e.Name, "targetId": e.TargetID},
			})
			continue
		}
		e.Duration = &remaining
		if err := t.store.PutEffect(ctx, e); err != nil {
			return nil, fmt.Errorf("persisting effect %q: %w", e.ID, err)
		}
		result.Remaining = append(result.Remaining, e)
	}

	t.logger.Debug("effect durations ticked",
		zap.String("game_id", gameID),
		zap.Int("amount", amount),
		zap.Int("expired", len(result.Expired)),
		zap.Int("remaining", len(result.Remaining)),
	)
	return result, nil
}

// ModifyStacks adds delta to the effect's stacks. A result of 0 or below
// deletes the effect entirely and reports stacks as 0; otherwise the new
// count is clamped to MaxStacks and persisted.
//
// Postcondition: Returns (nil, nil) for an unknown effect id.
func (t *Tracker) ModifyStacks(ctx context.Context, id string, delta int) (*StatusEffect, error) {
	e, err := t.store.GetEffect(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading effect %q: %w", id, err)
	}

	e.Stacks += delta
	if e.Stacks <= 0 {
		if err := t.store.DeleteEffect(ctx, e.ID); err != nil {
			return nil, fmt.Errorf("deleting effect %q: %w", e.ID, err)
		}
		e.Stacks = 0
		return e, nil
	}

	e.ClampStacks()
	if err := t.store.PutEffect(ctx, e); err != nil {
		return nil, fmt.Errorf("persisting effect %q: %w", e.ID, err)
	}
	return e, nil
}

// Clear bulk-deletes the target's effects, optionally narrowed by effect type
// and/or exact name. Returns the number removed.
func (t *Tracker) Clear(ctx context.Context, targetID string, filter *Filter) (int, error) {
	effects, err := t.store.ListEffectsByTarget(ctx, targetID)
	if err != nil {
		return 0, fmt.Errorf("listing effects for target %q: %w", targetID, err)
	}

	removed := 0
	for _, e := range effects {
		if filter != nil {
			if filter.EffectType != nil && e.EffectType != *filter.EffectType {
				continue
			}
			if filter.Name != nil && e.Name != *filter.Name {
				continue
			}
		}
		if err := t.store.DeleteEffect(ctx, e.ID); err != nil {
			return removed, fmt.Errorf("deleting effect %q: %w", e.ID, err)
		}
		removed++
	}
	return removed, nil
}

// List returns all effects currently on the target.
func (t *Tracker) List(ctx context.Context, targetID string) ([]*StatusEffect, error) {
	effects, err := t.store.ListEffectsByTarget(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("listing effects for target %q: %w", targetID, err)
	}
	return effects, nil
}

// EffectiveModifiers aggregates the target's net modifiers: for every effect
// and every (key, perStackDelta) pair, perStackDelta*stacks is summed into the
// result keyed by key. This is the single aggregation point consumers fold
// into combat math and checks.
func (t *Tracker) EffectiveModifiers(ctx context.Context, targetID string) (map[string]float64, error) {
	effects, err := t.store.ListEffectsByTarget(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("listing effects for target %q: %w", targetID, err)
	}

	modifiers := make(map[string]float64)
	for _, e := range effects {
		for key, delta := range e.Contribution() {
			modifiers[key] += delta
		}
	}
	return modifiers, nil
}

func (t *Tracker) publishApplied(e *StatusEffect) {
	t.bus.Publish(event.Event{
		Type:       event.TypeEffectApplied,
		GameID:     e.GameID,
		EntityID:   e.ID,
		EntityType: "statusEffect",
		Data:       map[string]any{"name": e.Name, "targetId": e.TargetID, "stacks": e.Stacks},
	})
}
