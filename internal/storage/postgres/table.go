package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/keeper/internal/game/table"
)

// TableRepository provides random table persistence operations. Entries are
// stored as a single JSONB document so the stored order survives round-trips.
type TableRepository struct {
	db *pgxpool.Pool
}

// NewTableRepository creates a TableRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewTableRepository(db *pgxpool.Pool) *TableRepository {
	return &TableRepository{db: db}
}

// GetTable retrieves a random table by id.
//
// Postcondition: Returns the RandomTable or table.ErrNotFound.
func (r *TableRepository) GetTable(ctx context.Context, id string) (*table.RandomTable, error) {
	var (
		t       table.RandomTable
		entries []byte
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, game_id, name, category, roll_expression, entries
		FROM random_tables WHERE id = $1`,
		id,
	).Scan(&t.ID, &t.GameID, &t.Name, &t.Category, &t.RollExpression, &entries)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, table.ErrNotFound
		}
		return nil, fmt.Errorf("querying random table: %w", err)
	}
	if err := json.Unmarshal(entries, &t.Entries); err != nil {
		return nil, fmt.Errorf("decoding table %q entries: %w", id, err)
	}
	return &t, nil
}

// ListTablesByGame returns the game's tables ordered by name.
func (r *TableRepository) ListTablesByGame(ctx context.Context, gameID string) ([]*table.RandomTable, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, game_id, name, category, roll_expression, entries
		FROM random_tables WHERE game_id = $1 ORDER BY name ASC`,
		gameID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing random tables: %w", err)
	}
	defer rows.Close()

	tables := make([]*table.RandomTable, 0)
	for rows.Next() {
		var (
			t       table.RandomTable
			entries []byte
		)
		if err := rows.Scan(&t.ID, &t.GameID, &t.Name, &t.Category, &t.RollExpression, &entries); err != nil {
			return nil, fmt.Errorf("scanning random table row: %w", err)
		}
		if err := json.Unmarshal(entries, &t.Entries); err != nil {
			return nil, fmt.Errorf("decoding table %q entries: %w", t.ID, err)
		}
		tables = append(tables, &t)
	}
	return tables, rows.Err()
}

// PutTable inserts or replaces the table record. The entry list is replaced
// wholesale; there is no per-entry editing.
//
// Precondition: t.ID, t.GameID, and t.Name must be non-empty.
func (r *TableRepository) PutTable(ctx context.Context, t *table.RandomTable) error {
	entries, err := json.Marshal(t.Entries)
	if err != nil {
		return fmt.Errorf("encoding table %q entries: %w", t.ID, err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO random_tables (id, game_id, name, category, roll_expression, entries)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE SET
			name            = EXCLUDED.name,
			category        = EXCLUDED.category,
			roll_expression = EXCLUDED.roll_expression,
			entries         = EXCLUDED.entries,
			updated_at      = NOW()`,
		t.ID, t.GameID, t.Name, t.Category, t.RollExpression, entries,
	)
	if err != nil {
		return fmt.Errorf("upserting random table: %w", err)
	}
	return nil
}

// DeleteTable removes the table with the given id; unknown ids are a no-op.
func (r *TableRepository) DeleteTable(ctx context.Context, id string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM random_tables WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting random table: %w", err)
	}
	return nil
}
