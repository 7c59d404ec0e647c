// Package table implements random table resolution: ordered range matching
// with a weighted fallback and recursive subtable expansion.
package table

import "errors"

// ErrNotFound is returned by stores when a table lookup yields no results.
var ErrNotFound = errors.New("random table not found")

// DefaultRollExpression is used when a table does not set its own.
const DefaultRollExpression = "1d100"

// TableEntry is one row of a random table. Ranges may overlap and need not
// partition the roll space; stored order decides among overlaps.
type TableEntry struct {
	MinRoll int    `json:"minRoll"`
	MaxRoll int    `json:"maxRoll"`
	Result  string `json:"result"`
	// Weight is consulted only on the range-miss fallback path.
	Weight *float64 `json:"weight,omitempty"`
	// SubtableID chains resolution into another table when set.
	SubtableID *string `json:"subtableId,omitempty"`
}

// Contains reports whether roll falls within the entry's inclusive range.
func (e TableEntry) Contains(roll int) bool {
	return roll >= e.MinRoll && roll <= e.MaxRoll
}

// RandomTable is an ordered list of entries rolled against a dice expression.
type RandomTable struct {
	ID             string       `json:"id"`
	GameID         string       `json:"gameId"`
	Name           string       `json:"name"`
	Category       string       `json:"category"`
	RollExpression string       `json:"rollExpression"`
	Entries        []TableEntry `json:"entries"`
}

// Expression returns the table's roll expression, defaulting to 1d100.
func (t *RandomTable) Expression() string {
	if t.RollExpression == "" {
		return DefaultRollExpression
	}
	return t.RollExpression
}
