package table

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/keeper/internal/game/dice"
)

// Store provides random table lookups.
type Store interface {
	// GetTable returns the table with the given id, or ErrNotFound.
	GetTable(ctx context.Context, id string) (*RandomTable, error)
}

// Result is one resolution step. Subtable holds the nested result when the
// selected entry chains into another table.
type Result struct {
	TableID   string          `json:"tableId"`
	TableName string          `json:"tableName"`
	Roll      dice.RollResult `json:"roll"`
	Modifier  int             `json:"modifier"`
	Total     int             `json:"total"`
	Entry     TableEntry      `json:"entry"`
	Subtable  *Result         `json:"subtable,omitempty"`
}

// Resolver rolls random tables.
type Resolver struct {
	store  Store
	roller *dice.Roller
	logger *zap.Logger
}

// NewResolver creates a Resolver.
//
// Precondition: all arguments must be non-nil.
func NewResolver(store Store, roller *dice.Roller, logger *zap.Logger) *Resolver {
	return &Resolver{store: store, roller: roller, logger: logger}
}

// Resolve rolls the table's dice expression, adds modifier, and selects an
// entry in three stages: the first entry in stored order whose range contains
// the total; failing that, a weighted draw over entries with positive weight;
// failing that, unconditionally the first entry. When the selected entry names
// a subtable it is resolved recursively with the modifier reset to 0.
// Recursion depth is unbounded; a self-referencing table chain will loop.
//
// Precondition: the table must have at least one entry.
// Postcondition: Returns (nil, nil) for an unknown table id.
func (r *Resolver) Resolve(ctx context.Context, tableID string, modifier int) (*Result, error) {
	t, err := r.store.GetTable(ctx, tableID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading table %q: %w", tableID, err)
	}
	return r.resolve(ctx, t, modifier)
}

func (r *Resolver) resolve(ctx context.Context, t *RandomTable, modifier int) (*Result, error) {
	if len(t.Entries) == 0 {
		return nil, fmt.Errorf("table %q has no entries", t.ID)
	}

	roll, err := r.roller.RollExpr(t.Expression())
	if err != nil {
		return nil, fmt.Errorf("table %q roll expression: %w", t.ID, err)
	}
	total := roll.Total() + modifier

	entry := r.selectEntry(t, total)
	result := &Result{
		TableID:   t.ID,
		TableName: t.Name,
		Roll:      roll,
		Modifier:  modifier,
		Total:     total,
		Entry:     entry,
	}

	r.logger.Debug("table resolved",
		zap.String("table_id", t.ID),
		zap.Int("total", total),
		zap.String("result", entry.Result),
	)

	if entry.SubtableID != nil {
		sub, err := r.store.GetTable(ctx, *entry.SubtableID)
		if err != nil {
			return nil, fmt.Errorf("loading subtable %q of table %q: %w", *entry.SubtableID, t.ID, err)
		}
		nested, err := r.resolve(ctx, sub, 0)
		if err != nil {
			return nil, err
		}
		result.Subtable = nested
	}
	return result, nil
}

// selectEntry applies the three selection stages in order.
func (r *Resolver) selectEntry(t *RandomTable, total int) TableEntry {
	for _, e := range t.Entries {
		if e.Contains(total) {
			return e
		}
	}

	var totalWeight float64
	for _, e := range t.Entries {
		if e.Weight != nil && *e.Weight > 0 {
			totalWeight += *e.Weight
		}
	}
	if totalWeight > 0 {
		draw := dice.UniformFloat(r.roller.Source(), totalWeight)
		for _, e := range t.Entries {
			if e.Weight == nil || *e.Weight <= 0 {
				continue
			}
			draw -= *e.Weight
			if draw < 0 {
				return e
			}
		}
	}

	// No range matched and no positive weights exist. The first entry is the
	// unconditional fallback so a non-empty table always yields a result.
	return t.Entries[0]
}
