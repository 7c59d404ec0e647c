package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/keeper/internal/game/ruleset"
)

// RulesetRepository provides per-game check mechanics lookups.
type RulesetRepository struct {
	db *pgxpool.Pool
}

// NewRulesetRepository creates a RulesetRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewRulesetRepository(db *pgxpool.Pool) *RulesetRepository {
	return &RulesetRepository{db: db}
}

// GetRuleset retrieves the game's ruleset.
//
// Postcondition: Returns the Ruleset or ruleset.ErrNotFound.
func (r *RulesetRepository) GetRuleset(ctx context.Context, gameID string) (*ruleset.Ruleset, error) {
	var rs ruleset.Ruleset
	err := r.db.QueryRow(ctx, `
		SELECT game_id, name, base_dice, critical_success, critical_failure
		FROM rulesets WHERE game_id = $1`,
		gameID,
	).Scan(&rs.GameID, &rs.Name, &rs.CheckMechanics.BaseDice,
		&rs.CheckMechanics.CriticalSuccess, &rs.CheckMechanics.CriticalFailure)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ruleset.ErrNotFound
		}
		return nil, fmt.Errorf("querying ruleset: %w", err)
	}
	return &rs, nil
}

// PutRuleset inserts or replaces the game's ruleset. Used by YAML seed
// loading at startup.
//
// Precondition: rs must pass Validate.
func (r *RulesetRepository) PutRuleset(ctx context.Context, rs *ruleset.Ruleset) error {
	if err := rs.Validate(); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO rulesets (game_id, name, base_dice, critical_success, critical_failure)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (game_id) DO UPDATE SET
			name             = EXCLUDED.name,
			base_dice        = EXCLUDED.base_dice,
			critical_success = EXCLUDED.critical_success,
			critical_failure = EXCLUDED.critical_failure,
			updated_at       = NOW()`,
		rs.GameID, rs.Name, rs.CheckMechanics.BaseDice,
		rs.CheckMechanics.CriticalSuccess, rs.CheckMechanics.CriticalFailure,
	)
	if err != nil {
		return fmt.Errorf("upserting ruleset: %w", err)
	}
	return nil
}
