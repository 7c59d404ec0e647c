// Package dice provides the randomness abstraction and roll-result types
// for the keeper resolution engine.
package dice

import (
	"fmt"
	"strconv"
	"strings"
)

// RollResult holds the full audit trail for a single dice roll evaluation.
//
// Postcondition: Total() == sum(Dice) + Modifier.
type RollResult struct {
	Expression string // original expression string, e.g. "2d6+3"
	Dice       []int  // individual die results before modifier
	Modifier   int    // flat modifier (may be negative)
}

// Total returns the sum of all die results plus the modifier.
func (r RollResult) Total() int {
	total := r.Modifier
	for _, d := range r.Dice {
		total += d
	}
	return total
}

// First returns the first individual die of the roll, or 0 if no dice were
// rolled. Critical thresholds compare against this value, not the total.
func (r RollResult) First() int {
	if len(r.Dice) == 0 {
		return 0
	}
	return r.Dice[0]
}

// String returns a human-readable audit string in the format:
//
//	"2d6+3 → [4 5] +3 = 12"
//
// Precondition: r.Expression is non-empty.
func (r RollResult) String() string {
	if r.Expression == "" {
		panic("dice: RollResult.String() precondition violated: Expression must be non-empty")
	}
	var b strings.Builder
	b.WriteString(r.Expression)
	b.WriteString(" → [")
	for i, d := range r.Dice {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.Itoa(d))
	}
	b.WriteString("] ")
	b.WriteString(fmt.Sprintf("%+d", r.Modifier))
	b.WriteString(" = ")
	b.WriteString(strconv.Itoa(r.Total()))
	return b.String()
}
