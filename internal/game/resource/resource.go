// Package resource implements the bounded resource ledger: named numeric
// pools clamped to optional bounds, with an append-only change history.
package resource

import (
	"errors"
	"time"
)

// ErrNotFound is returned by stores when a resource lookup yields no results.
var ErrNotFound = errors.New("resource not found")

// Owner types for a resource.
const (
	OwnerGame      = "game"
	OwnerCharacter = "character"
)

// Resource is one bounded numeric pool. MinValue and MaxValue are
// independently nullable; a nil bound means unbounded on that side. Bounds are
// never validated for min <= max.
//
// Invariant: Value is within [MinValue, MaxValue] wherever a bound is set.
type Resource struct {
	ID        string   `json:"id"`
	GameID    string   `json:"gameId"`
	OwnerType string   `json:"ownerType"`
	OwnerID   *string  `json:"ownerId,omitempty"`
	Name      string   `json:"name"`
	Category  string   `json:"category"`
	Value     float64  `json:"value"`
	MinValue  *float64 `json:"minValue,omitempty"`
	MaxValue  *float64 `json:"maxValue,omitempty"`
}

// Clamp forces Value inside the configured bounds.
//
// Postcondition: MinValue == nil or Value >= *MinValue; MaxValue == nil or
// Value <= *MaxValue (with max applied after min when bounds are inverted).
func (r *Resource) Clamp() {
	if r.MinValue != nil && r.Value < *r.MinValue {
		r.Value = *r.MinValue
	}
	if r.MaxValue != nil && r.Value > *r.MaxValue {
		r.Value = *r.MaxValue
	}
}

// Change is one append-only ledger row. Delta always reflects the clamped
// movement actually applied, not the movement the caller requested.
type Change struct {
	ID            string    `json:"id"`
	ResourceID    string    `json:"resourceId"`
	PreviousValue float64   `json:"previousValue"`
	NewValue      float64   `json:"newValue"`
	Delta         float64   `json:"delta"`
	Reason        *string   `json:"reason,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}
