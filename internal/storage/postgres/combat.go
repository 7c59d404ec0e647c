package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/keeper/internal/game/combat"
)

// CombatRepository provides combat persistence operations.
type CombatRepository struct {
	db *pgxpool.Pool
}

// NewCombatRepository creates a CombatRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewCombatRepository(db *pgxpool.Pool) *CombatRepository {
	return &CombatRepository{db: db}
}

// GetCombat retrieves a combat by id.
//
// Postcondition: Returns the Combat or combat.ErrNotFound.
func (r *CombatRepository) GetCombat(ctx context.Context, id string) (*combat.Combat, error) {
	var (
		c            combat.Combat
		participants []byte
		log          []byte
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, game_id, location_id, participants, turn_index, round, status, log
		FROM combats WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.GameID, &c.LocationID, &participants, &c.TurnIndex, &c.Round, &c.Status, &log)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, combat.ErrNotFound
		}
		return nil, fmt.Errorf("querying combat: %w", err)
	}
	if err := json.Unmarshal(participants, &c.Participants); err != nil {
		return nil, fmt.Errorf("decoding combat %q participants: %w", id, err)
	}
	if err := json.Unmarshal(log, &c.Log); err != nil {
		return nil, fmt.Errorf("decoding combat %q log: %w", id, err)
	}
	return &c, nil
}

// PutCombat inserts or replaces the combat record.
//
// Precondition: c.ID and c.GameID must be non-empty.
// Postcondition: A subsequent GetCombat(c.ID) returns the stored state.
func (r *CombatRepository) PutCombat(ctx context.Context, c *combat.Combat) error {
	participants, err := json.Marshal(c.Participants)
	if err != nil {
		return fmt.Errorf("encoding combat %q participants: %w", c.ID, err)
	}
	logJSON, err := json.Marshal(c.Log)
	if err != nil {
		return fmt.Errorf("encoding combat %q log: %w", c.ID, err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO combats (id, game_id, location_id, participants, turn_index, round, status, log)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE SET
			participants = EXCLUDED.participants,
			turn_index   = EXCLUDED.turn_index,
			round        = EXCLUDED.round,
			status       = EXCLUDED.status,
			log          = EXCLUDED.log,
			updated_at   = NOW()`,
		c.ID, c.GameID, c.LocationID, participants, c.TurnIndex, c.Round, c.Status, logJSON,
	)
	if err != nil {
		return fmt.Errorf("upserting combat: %w", err)
	}
	return nil
}

// ListActiveByGame returns the game's unresolved combats ordered by creation time.
func (r *CombatRepository) ListActiveByGame(ctx context.Context, gameID string) ([]*combat.Combat, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, game_id, location_id, participants, turn_index, round, status, log
		FROM combats WHERE game_id = $1 AND status = $2 ORDER BY created_at ASC`,
		gameID, combat.StatusActive,
	)
	if err != nil {
		return nil, fmt.Errorf("listing combats: %w", err)
	}
	defer rows.Close()

	combats := make([]*combat.Combat, 0)
	for rows.Next() {
		var (
			c            combat.Combat
			participants []byte
			log          []byte
		)
		if err := rows.Scan(&c.ID, &c.GameID, &c.LocationID, &participants, &c.TurnIndex, &c.Round, &c.Status, &log); err != nil {
			return nil, fmt.Errorf("scanning combat row: %w", err)
		}
		if err := json.Unmarshal(participants, &c.Participants); err != nil {
			return nil, fmt.Errorf("decoding combat %q participants: %w", c.ID, err)
		}
		if err := json.Unmarshal(log, &c.Log); err != nil {
			return nil, fmt.Errorf("decoding combat %q log: %w", c.ID, err)
		}
		combats = append(combats, &c)
	}
	return combats, rows.Err()
}
