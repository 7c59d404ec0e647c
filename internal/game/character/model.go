// Package character defines the read-only character context consumed by the
// resolution engine and the turn sequencer. Character CRUD lives outside this
// service; the core only ever reads attributes and skills.
package character

import "errors"

// ErrNotFound is returned when a character lookup yields no results.
var ErrNotFound = errors.New("character not found")

// AttributeDexterity is the attribute folded into initiative rolls.
const AttributeDexterity = "dexterity"

// Character is the minimal character view the core needs: a bag of named
// attribute scores and skill values.
type Character struct {
	ID         string
	GameID     string
	Name       string
	Attributes map[string]int
	Skills     map[string]int
	Status     string
}

// Attribute returns the named attribute score and whether it is present.
func (c *Character) Attribute(name string) (int, bool) {
	v, ok := c.Attributes[name]
	return v, ok
}

// Skill returns the named skill value and whether it is present.
func (c *Character) Skill(name string) (int, bool) {
	v, ok := c.Skills[name]
	return v, ok
}

// AbilityMod computes the standard ability modifier using floor division:
// floor((score - 10) / 2). Negative scores round toward negative infinity,
// so a score of 9 yields -1, not 0.
//
// Postcondition: Returns floor((score - 10) / 2).
func AbilityMod(score int) int {
	diff := score - 10
	if diff < 0 {
		return (diff - 1) / 2
	}
	return diff / 2
}
