package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/keeper/internal/game/resource"
)

// ResourceRepository provides resource and change-history persistence.
type ResourceRepository struct {
	db *pgxpool.Pool
}

// NewResourceRepository creates a ResourceRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewResourceRepository(db *pgxpool.Pool) *ResourceRepository {
	return &ResourceRepository{db: db}
}

// GetResource retrieves a resource by id.
//
// Postcondition: Returns the Resource or resource.ErrNotFound.
func (r *ResourceRepository) GetResource(ctx context.Context, id string) (*resource.Resource, error) {
	var res resource.Resource
	err := r.db.QueryRow(ctx, `
		SELECT id, game_id, owner_type, owner_id, name, category, value, min_value, max_value
		FROM resources WHERE id = $1`,
		id,
	).Scan(&res.ID, &res.GameID, &res.OwnerType, &res.OwnerID, &res.Name, &res.Category,
		&res.Value, &res.MinValue, &res.MaxValue)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, resource.ErrNotFound
		}
		return nil, fmt.Errorf("querying resource: %w", err)
	}
	return &res, nil
}

// PutResource inserts or replaces the resource record.
//
// Precondition: res.ID, res.GameID, and res.Name must be non-empty.
func (r *ResourceRepository) PutResource(ctx context.Context, res *resource.Resource) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO resources (id, game_id, owner_type, owner_id, name, category, value, min_value, max_value)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO UPDATE SET
			name       = EXCLUDED.name,
			category   = EXCLUDED.category,
			value      = EXCLUDED.value,
			min_value  = EXCLUDED.min_value,
			max_value  = EXCLUDED.max_value,
			updated_at = NOW()`,
		res.ID, res.GameID, res.OwnerType, res.OwnerID, res.Name, res.Category,
		res.Value, res.MinValue, res.MaxValue,
	)
	if err != nil {
		return fmt.Errorf("upserting resource: %w", err)
	}
	return nil
}

// DeleteResource removes the resource; its change rows cascade via the
// resource_changes foreign key. Unknown ids are a no-op.
func (r *ResourceRepository) DeleteResource(ctx context.Context, id string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM resources WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting resource: %w", err)
	}
	return nil
}

// AppendChange appends one ledger row. Rows are never updated afterward.
func (r *ResourceRepository) AppendChange(ctx context.Context, c *resource.Change) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO resource_changes (id, resource_id, previous_value, new_value, delta, reason, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		c.ID, c.ResourceID, c.PreviousValue, c.NewValue, c.Delta, c.Reason, c.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("inserting resource change: %w", err)
	}
	return nil
}

// ListChanges returns the resource's change rows newest first; limit <= 0
// means no cap.
func (r *ResourceRepository) ListChanges(ctx context.Context, resourceID string, limit int) ([]*resource.Change, error) {
	query := `
		SELECT id, resource_id, previous_value, new_value, delta, reason, created_at
		FROM resource_changes WHERE resource_id = $1 ORDER BY created_at DESC`
	args := []any{resourceID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing resource changes: %w", err)
	}
	defer rows.Close()

	changes := make([]*resource.Change, 0)
	for rows.Next() {
		var c resource.Change
		if err := rows.Scan(&c.ID, &c.ResourceID, &c.PreviousValue, &c.NewValue, &c.Delta, &c.Reason, &c.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning resource change row: %w", err)
		}
		changes = append(changes, &c)
	}
	return changes, rows.Err()
}
