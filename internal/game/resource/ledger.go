package resource

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/keeper/internal/event"
)

// Store provides resource and change-history persistence.
type Store interface {
	// GetResource returns the resource with the given id, or ErrNotFound.
	GetResource(ctx context.Context, id string) (*Resource, error)
	// PutResource inserts or replaces the resource record.
	PutResource(ctx context.Context, r *Resource) error
	// DeleteResource removes the resource and cascades its change history.
	DeleteResource(ctx context.Context, id string) error
	// AppendChange appends one ledger row.
	AppendChange(ctx context.Context, c *Change) error
	// ListChanges returns the resource's changes newest first; limit <= 0
	// means no cap.
	ListChanges(ctx context.Context, resourceID string, limit int) ([]*Change, error)
}

// Update modes for value adjustments.
const (
	ModeDelta = "delta"
	ModeSet   = "set"
)

// CreateInput describes a new resource.
type CreateInput struct {
	GameID    string
	OwnerType string
	OwnerID   *string
	Name      string
	Category  string
	Value     float64
	MinValue  *float64
	MaxValue  *float64
}

// FloatPatch is a tri-state optional bound update: leave the field alone,
// clear it, or set a new value.
type FloatPatch struct {
	// Set marks the field as present in the patch at all.
	Set bool
	// Value is the new bound; nil clears it.
	Value *float64
}

// Patch lists the metadata fields of a resource that may change after
// creation. Nil pointer fields are left untouched.
type Patch struct {
	Name     *string
	Category *string
	MinValue FloatPatch
	MaxValue FloatPatch
}

// Ledger owns resource lifecycle, clamped value movement, and the append-only
// change history.
type Ledger struct {
	store  Store
	bus    *event.Bus
	logger *zap.Logger
	now    func() time.Time
}

// NewLedger creates a Ledger.
//
// Precondition: all arguments must be non-nil.
func NewLedger(store Store, bus *event.Bus, logger *zap.Logger) *Ledger {
	return &Ledger{store: store, bus: bus, logger: logger, now: time.Now}
}

// Create persists a new resource with its initial value clamped to the
// supplied bounds. Bounds themselves are accepted as given; min > max is not
// rejected.
func (l *Ledger) Create(ctx context.Context, in CreateInput) (*Resource, error) {
	if in.GameID == "" || in.Name == "" {
		return nil, fmt.Errorf("resource: gameId and name are required")
	}
	if in.OwnerType != OwnerGame && in.OwnerType != OwnerCharacter {
		return nil, fmt.Errorf("resource: ownerType must be %q or %q, got %q", OwnerGame, OwnerCharacter, in.OwnerType)
	}

	r := &Resource{
		ID:        uuid.NewString(),
		GameID:    in.GameID,
		OwnerType: in.OwnerType,
		OwnerID:   in.OwnerID,
		Name:      in.Name,
		Category:  in.Category,
		Value:     in.Value,
		MinValue:  in.MinValue,
		MaxValue:  in.MaxValue,
	}
	r.Clamp()

	if err := l.store.PutResource(ctx, r); err != nil {
		return nil, fmt.Errorf("persisting resource %q: %w", r.Name, err)
	}
	l.logger.Info("resource created",
		zap.String("resource_id", r.ID),
		zap.String("game_id", r.GameID),
		zap.String("name", r.Name),
		zap.Float64("value", r.Value),
	)
	return r, nil
}

// Get returns the resource, or (nil, nil) for an unknown id.
func (l *Ledger) Get(ctx context.Context, id string) (*Resource, error) {
	r, err := l.store.GetResource(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading resource %q: %w", id, err)
	}
	return r, nil
}

// UpdateValue moves the resource's value, clamps it, and appends exactly one
// Change recording the movement actually applied. Mode "delta" adds value to
// the current value; mode "set" replaces it.
//
// Postcondition: the recorded Delta equals NewValue - PreviousValue after
// clamping, so a clamped request records the clamped delta. Returns
// (nil, nil, nil) for an unknown resource id.
func (l *Ledger) UpdateValue(ctx context.Context, id, mode string, value float64, reason *string) (*Resource, *Change, error) {
	r, err := l.store.GetResource(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("loading resource %q: %w", id, err)
	}

	previous := r.Value
	switch mode {
	case ModeDelta:
		r.Value = previous + value
	case ModeSet:
		r.Value = value
	default:
		return nil, nil, fmt.Errorf("resource: mode must be %q or %q, got %q", ModeDelta, ModeSet, mode)
	}
	r.Clamp()

	if err := l.store.PutResource(ctx, r); err != nil {
		return nil, nil, fmt.Errorf("persisting resource %q: %w", r.ID, err)
	}

	change := &Change{
		ID:            uuid.NewString(),
		ResourceID:    r.ID,
		PreviousValue: previous,
		NewValue:      r.Value,
		Delta:         r.Value - previous,
		Reason:        reason,
		Timestamp:     l.now().UTC(),
	}
	if err := l.store.AppendChange(ctx, change); err != nil {
		return nil, nil, fmt.Errorf("appending change for resource %q: %w", r.ID, err)
	}

	l.bus.Publish(event.Event{
		Type:       event.TypeResourceChanged,
		GameID:     r.GameID,
		EntityID:   r.ID,
		EntityType: "resource",
		Data: map[string]any{
			"name":          r.Name,
			"previousValue": change.PreviousValue,
			"newValue":      change.NewValue,
			"delta":         change.Delta,
		},
	})
	return r, change, nil
}

// Update applies a metadata patch. A bound change re-clamps the current value
// immediately but appends no Change row; the history records caller-driven
// movement only.
//
// Postcondition: Returns (nil, nil) for an unknown resource id.
func (l *Ledger) Update(ctx context.Context, id string, patch Patch) (*Resource, error) {
	r, err := l.store.GetResource(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading resource %q: %w", id, err)
	}

	if patch.Name != nil {
		r.Name = *patch.Name
	}
	if patch.Category != nil {
		r.Category = *patch.Category
	}
	if patch.MinValue.Set {
		r.MinValue = patch.MinValue.Value
	}
	if patch.MaxValue.Set {
		r.MaxValue = patch.MaxValue.Value
	}
	r.Clamp()

	if err := l.store.PutResource(ctx, r); err != nil {
		return nil, fmt.Errorf("persisting resource %q: %w", r.ID, err)
	}
	return r, nil
}

// History returns the resource's change rows newest first, capped at limit
// when limit > 0.
func (l *Ledger) History(ctx context.Context, resourceID string, limit int) ([]*Change, error) {
	changes, err := l.store.ListChanges(ctx, resourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing changes for resource %q: %w", resourceID, err)
	}
	return changes, nil
}

// Delete removes the resource and its entire change history. Unknown ids are
// a no-op.
func (l *Ledger) Delete(ctx context.Context, id string) error {
	if err := l.store.DeleteResource(ctx, id); err != nil {
		return fmt.Errorf("deleting resource %q: %w", id, err)
	}
	return nil
}
