package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/keeper/internal/game/character"
)

// CharacterRepository provides read-only character lookups. Character CRUD is
// owned by an external collaborator; the keeper only reads attributes and
// skills for initiative rolls and checks.
type CharacterRepository struct {
	db *pgxpool.Pool
}

// NewCharacterRepository creates a CharacterRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewCharacterRepository(db *pgxpool.Pool) *CharacterRepository {
	return &CharacterRepository{db: db}
}

// GetCharacter retrieves a character by id.
//
// Postcondition: Returns the Character or character.ErrNotFound.
func (r *CharacterRepository) GetCharacter(ctx context.Context, id string) (*character.Character, error) {
	var (
		c          character.Character
		attributes []byte
		skills     []byte
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, game_id, name, attributes, skills, status
		FROM characters WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.GameID, &c.Name, &attributes, &skills, &c.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, character.ErrNotFound
		}
		return nil, fmt.Errorf("querying character: %w", err)
	}
	if err := json.Unmarshal(attributes, &c.Attributes); err != nil {
		return nil, fmt.Errorf("decoding character %q attributes: %w", id, err)
	}
	if err := json.Unmarshal(skills, &c.Skills); err != nil {
		return nil, fmt.Errorf("decoding character %q skills: %w", id, err)
	}
	return &c, nil
}
