package gameserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/cory-johannsen/keeper/internal/game/effect"
)

// EffectView is the wire form of a status effect.
type EffectView struct {
	ID         string             `json:"id" jsonschema:"effect identifier"`
	GameID     string             `json:"game_id" jsonschema:"owning game identifier"`
	TargetID   string             `json:"target_id" jsonschema:"affected entity identifier"`
	Name       string             `json:"name" jsonschema:"effect name, unique per target"`
	EffectType string             `json:"effect_type" jsonschema:"buff, debuff, neutral, or none"`
	Duration   *int               `json:"duration,omitempty" jsonschema:"rounds remaining; absent means permanent"`
	Stacks     int                `json:"stacks" jsonschema:"current stack count"`
	MaxStacks  *int               `json:"max_stacks,omitempty" jsonschema:"stack cap when set"`
	Effects    map[string]float64 `json:"effects" jsonschema:"modifier key to per-stack delta"`
	SourceID   *string            `json:"source_id,omitempty" jsonschema:"optional source entity id"`
	SourceType *string            `json:"source_type,omitempty" jsonschema:"optional source entity type"`
}

func effectView(e *effect.StatusEffect) EffectView {
	// The effects map must stay non-nil: nil marshals as JSON null, which
	// the tool's output schema rejects (it requires an object).
	modifiers := e.Effects
	if modifiers == nil {
		modifiers = map[string]float64{}
	}
	return EffectView{
		ID:         e.ID,
		GameID:     e.GameID,
		TargetID:   e.TargetID,
		Name:       e.Name,
		EffectType: string(e.EffectType),
		Duration:   e.Duration,
		Stacks:     e.Stacks,
		MaxStacks:  e.MaxStacks,
		Effects:    modifiers,
		SourceID:   e.SourceID,
		SourceType: e.SourceType,
	}
}

func effectViews(effects []*effect.StatusEffect) []EffectView {
	views := make([]EffectView, len(effects))
	for i, e := range effects {
		views[i] = effectView(e)
	}
	return views
}

// ApplyEffectInput creates or stacks a status effect.
type ApplyEffectInput struct {
	GameID     string             `json:"game_id" jsonschema:"owning game identifier"`
	TargetID   string             `json:"target_id" jsonschema:"entity to affect"`
	Name       string             `json:"name" jsonschema:"effect name; reapplying the same name stacks"`
	EffectType string             `json:"effect_type,omitempty" jsonschema:"buff, debuff, or neutral"`
	Stacks     int                `json:"stacks,omitempty" jsonschema:"stacks to add, default 1"`
	Duration   *int               `json:"duration,omitempty" jsonschema:"rounds the effect lasts; omit for permanent. On reapply this replaces the stored duration"`
	MaxStacks  *int               `json:"max_stacks,omitempty" jsonschema:"stack cap"`
	Effects    map[string]float64 `json:"effects,omitempty" jsonschema:"modifier key to per-stack delta"`
	SourceID   *string            `json:"source_id,omitempty" jsonschema:"optional source entity id"`
	SourceType *string            `json:"source_type,omitempty" jsonschema:"optional source entity type"`
}

// EffectResult wraps one effect; Found is false when the id is unknown.
type EffectResult struct {
	Found  bool       `json:"found" jsonschema:"false when no effect has the given id"`
	Effect EffectView `json:"effect,omitempty" jsonschema:"the effect when found"`
}

// TickDurationsInput advances effect decay for a game.
type TickDurationsInput struct {
	GameID string `json:"game_id" jsonschema:"game whose effects decay"`
	Amount int    `json:"amount,omitempty" jsonschema:"rounds to subtract, default 1"`
}

// TickDurationsResult partitions the game's timed effects after the tick.
type TickDurationsResult struct {
	Expired   []EffectView `json:"expired" jsonschema:"effects deleted by this tick, duration reported as 0"`
	Remaining []EffectView `json:"remaining" jsonschema:"timed effects still active with decremented durations"`
}

// ModifyStacksInput adjusts an effect's stack count.
type ModifyStacksInput struct {
	EffectID string `json:"effect_id" jsonschema:"effect identifier"`
	Delta    int    `json:"delta" jsonschema:"stacks to add (negative to remove)"`
}

// ClearEffectsInput bulk-removes a target's effects.
type ClearEffectsInput struct {
	TargetID   string `json:"target_id" jsonschema:"entity whose effects are cleared"`
	EffectType string `json:"effect_type,omitempty" jsonschema:"only clear effects of this type"`
	Name       string `json:"name,omitempty" jsonschema:"only clear effects with this exact name"`
}

// ClearEffectsResult reports how many effects were removed.
type ClearEffectsResult struct {
	Removed int `json:"removed" jsonschema:"number of effects deleted"`
}

// TargetInput addresses a target entity.
type TargetInput struct {
	TargetID string `json:"target_id" jsonschema:"entity identifier"`
}

// ListEffectsResult lists a target's effects.
type ListEffectsResult struct {
	Effects []EffectView `json:"effects" jsonschema:"all effects currently on the target"`
}

// EffectiveModifiersResult is a target's aggregated net modifiers.
type EffectiveModifiersResult struct {
	Modifiers map[string]float64 `json:"modifiers" jsonschema:"modifier key to summed per-stack delta times stacks"`
}

func registerEffectTools(server *mcp.Server, tracker *effect.Tracker) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "apply_status_effect",
		Description: "Applies a status effect to a target. Reapplying the same name stacks it (clamped to max_stacks) and a supplied duration replaces the stored one.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in ApplyEffectInput) (*mcp.CallToolResult, EffectResult, error) {
		e, err := tracker.Apply(ctx, effect.ApplyInput{
			GameID:     in.GameID,
			TargetID:   in.TargetID,
			Name:       in.Name,
			EffectType: effect.Type(in.EffectType),
			Stacks:     in.Stacks,
			Duration:   in.Duration,
			MaxStacks:  in.MaxStacks,
			Effects:    in.Effects,
			SourceID:   in.SourceID,
			SourceType: in.SourceType,
		})
		if err != nil {
			return nil, EffectResult{}, err
		}
		return nil, EffectResult{Found: true, Effect: effectView(e)}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "tick_status_durations",
		Description: "Subtracts rounds from every timed effect in the game. Effects reaching zero are deleted and listed as expired; permanent effects are untouched.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in TickDurationsInput) (*mcp.CallToolResult, TickDurationsResult, error) {
		amount := in.Amount
		if amount == 0 {
			amount = 1
		}
		result, err := tracker.Tick(ctx, in.GameID, amount)
		if err != nil {
			return nil, TickDurationsResult{}, err
		}
		return nil, TickDurationsResult{
			Expired:   effectViews(result.Expired),
			Remaining: effectViews(result.Remaining),
		}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "modify_effect_stacks",
		Description: "Adds or removes stacks on an effect. A result of zero or below deletes the effect; the result is clamped to max_stacks otherwise.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in ModifyStacksInput) (*mcp.CallToolResult, EffectResult, error) {
		e, err := tracker.ModifyStacks(ctx, in.EffectID, in.Delta)
		if err != nil {
			return nil, EffectResult{}, err
		}
		if e == nil {
			// The zero view needs an empty (not nil) effects map to satisfy
			// the output schema; nil marshals as JSON null.
			return nil, EffectResult{Effect: EffectView{Effects: map[string]float64{}}}, nil
		}
		return nil, EffectResult{Found: true, Effect: effectView(e)}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "clear_status_effects",
		Description: "Bulk-deletes a target's effects, optionally narrowed by effect type and/or exact name.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in ClearEffectsInput) (*mcp.CallToolResult, ClearEffectsResult, error) {
		var filter *effect.Filter
		if in.EffectType != "" || in.Name != "" {
			filter = &effect.Filter{}
			if in.EffectType != "" {
				t := effect.Type(in.EffectType)
				filter.EffectType = &t
			}
			if in.Name != "" {
				n := in.Name
				filter.Name = &n
			}
		}
		removed, err := tracker.Clear(ctx, in.TargetID, filter)
		if err != nil {
			return nil, ClearEffectsResult{}, err
		}
		return nil, ClearEffectsResult{Removed: removed}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_status_effects",
		Description: "Lists every effect currently on a target.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in TargetInput) (*mcp.CallToolResult, ListEffectsResult, error) {
		effects, err := tracker.List(ctx, in.TargetID)
		if err != nil {
			return nil, ListEffectsResult{}, err
		}
		return nil, ListEffectsResult{Effects: effectViews(effects)}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_effective_modifiers",
		Description: "Aggregates a target's net modifiers: per-stack delta times stacks, summed per key across all effects. The single aggregation point for combat math and checks.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in TargetInput) (*mcp.CallToolResult, EffectiveModifiersResult, error) {
		modifiers, err := tracker.EffectiveModifiers(ctx, in.TargetID)
		if err != nil {
			return nil, EffectiveModifiersResult{}, err
		}
		return nil, EffectiveModifiersResult{Modifiers: modifiers}, nil
	})
}
