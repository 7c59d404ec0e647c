package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/keeper/internal/game/effect"
)

// EffectRepository provides status effect persistence operations.
type EffectRepository struct {
	db *pgxpool.Pool
}

// NewEffectRepository creates an EffectRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewEffectRepository(db *pgxpool.Pool) *EffectRepository {
	return &EffectRepository{db: db}
}

const effectColumns = `id, game_id, target_id, name, effect_type, duration, stacks, max_stacks, effects, source_id, source_type`

func scanEffect(row pgx.Row) (*effect.StatusEffect, error) {
	var (
		e       effect.StatusEffect
		effects []byte
	)
	err := row.Scan(
		&e.ID, &e.GameID, &e.TargetID, &e.Name, &e.EffectType,
		&e.Duration, &e.Stacks, &e.MaxStacks, &effects, &e.SourceID, &e.SourceType,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(effects, &e.Effects); err != nil {
		return nil, fmt.Errorf("decoding effect %q modifiers: %w", e.ID, err)
	}
	return &e, nil
}

// GetEffect retrieves a status effect by id.
//
// Postcondition: Returns the StatusEffect or effect.ErrNotFound.
func (r *EffectRepository) GetEffect(ctx context.Context, id string) (*effect.StatusEffect, error) {
	e, err := scanEffect(r.db.QueryRow(ctx,
		`SELECT `+effectColumns+` FROM status_effects WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, effect.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying effect: %w", err)
	}
	return e, nil
}

// FindEffect retrieves the effect matching the (gameID, targetID, name)
// uniqueness key.
//
// Postcondition: Returns the StatusEffect or effect.ErrNotFound.
func (r *EffectRepository) FindEffect(ctx context.Context, gameID, targetID, name string) (*effect.StatusEffect, error) {
	e, err := scanEffect(r.db.QueryRow(ctx,
		`SELECT `+effectColumns+` FROM status_effects WHERE game_id = $1 AND target_id = $2 AND name = $3`,
		gameID, targetID, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, effect.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying effect by key: %w", err)
	}
	return e, nil
}

// ListEffectsByGame returns all effects in the given game.
func (r *EffectRepository) ListEffectsByGame(ctx context.Context, gameID string) ([]*effect.StatusEffect, error) {
	return r.list(ctx, `SELECT `+effectColumns+` FROM status_effects WHERE game_id = $1 ORDER BY created_at ASC`, gameID)
}

// ListEffectsByTarget returns all effects on the given target.
func (r *EffectRepository) ListEffectsByTarget(ctx context.Context, targetID string) ([]*effect.StatusEffect, error) {
	return r.list(ctx, `SELECT `+effectColumns+` FROM status_effects WHERE target_id = $1 ORDER BY created_at ASC`, targetID)
}

func (r *EffectRepository) list(ctx context.Context, query string, arg any) ([]*effect.StatusEffect, error) {
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("listing effects: %w", err)
	}
	defer rows.Close()

	effects := make([]*effect.StatusEffect, 0)
	for rows.Next() {
		e, err := scanEffect(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning effect row: %w", err)
		}
		effects = append(effects, e)
	}
	return effects, rows.Err()
}

// PutEffect inserts or replaces the effect record.
//
// Precondition: e.ID, e.GameID, e.TargetID, and e.Name must be non-empty.
func (r *EffectRepository) PutEffect(ctx context.Context, e *effect.StatusEffect) error {
	effects, err := json.Marshal(e.Effects)
	if err != nil {
		return fmt.Errorf("encoding effect %q modifiers: %w", e.ID, err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO status_effects
			(id, game_id, target_id, name, effect_type, duration, stacks, max_stacks, effects, source_id, source_type)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO UPDATE SET
			effect_type = EXCLUDED.effect_type,
			duration    = EXCLUDED.duration,
			stacks      = EXCLUDED.stacks,
			max_stacks  = EXCLUDED.max_stacks,
			effects     = EXCLUDED.effects,
			source_id   = EXCLUDED.source_id,
			source_type = EXCLUDED.source_type,
			updated_at  = NOW()`,
		e.ID, e.GameID, e.TargetID, e.Name, e.EffectType,
		e.Duration, e.Stacks, e.MaxStacks, effects, e.SourceID, e.SourceType,
	)
	if err != nil {
		return fmt.Errorf("upserting effect: %w", err)
	}
	return nil
}

// DeleteEffect removes the effect with the given id; unknown ids are a no-op.
func (r *EffectRepository) DeleteEffect(ctx context.Context, id string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM status_effects WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting effect: %w", err)
	}
	return nil
}
