// Package combat implements the turn sequencer: the state machine governing
// participant ordering, round advancement, and combat termination.
package combat

import (
	"errors"
	"sort"
)

// ErrNotFound is returned by stores when a combat lookup yields no results.
var ErrNotFound = errors.New("combat not found")

// Status is the combat lifecycle state.
type Status string

const (
	// StatusActive is the initial state; turns may advance.
	StatusActive Status = "active"
	// StatusResolved is terminal. There are no transitions out of it.
	StatusResolved Status = "resolved"
)

// Participant is one combatant slot within a Combat. The slice order is fixed
// after creation; removal only flips IsActive so indices stay stable.
type Participant struct {
	CharacterID string `json:"characterId"`
	Initiative  int    `json:"initiative"`
	IsActive    bool   `json:"isActive"`
}

// Combat holds the persistent state of a single encounter.
type Combat struct {
	ID           string
	GameID       string
	LocationID   string
	Participants []Participant
	TurnIndex    int
	Round        int
	Status       Status
	Log          []string
}

// Resolved reports whether the combat has reached its terminal state.
func (c *Combat) Resolved() bool {
	return c.Status == StatusResolved
}

// ActiveCount returns the number of participants still active.
func (c *Combat) ActiveCount() int {
	n := 0
	for _, p := range c.Participants {
		if p.IsActive {
			n++
		}
	}
	return n
}

// Current returns the participant whose turn it is, or nil when the combat
// has no participants.
func (c *Combat) Current() *Participant {
	if len(c.Participants) == 0 || c.TurnIndex >= len(c.Participants) {
		return nil
	}
	return &c.Participants[c.TurnIndex]
}

// Advance moves to the next active participant: TurnIndex increments modulo
// the participant count, Round increments whenever the index wraps to 0, and
// inactive participants are skipped by repeating the increment. Returns false
// when a full cycle (attempts == participant count) finds no active
// participant; the caller is expected to resolve the combat instead.
//
// Precondition: c must not be resolved.
// Postcondition: On true, Current() is active.
func (c *Combat) Advance() bool {
	n := len(c.Participants)
	if n == 0 {
		return false
	}
	for attempts := 0; attempts < n; attempts++ {
		c.TurnIndex = (c.TurnIndex + 1) % n
		if c.TurnIndex == 0 {
			c.Round++
		}
		if c.Participants[c.TurnIndex].IsActive {
			return true
		}
	}
	return false
}

// Deactivate flips the participant with the given character id to inactive,
// leaving the slice order and indices untouched. Returns false when no
// participant matches.
func (c *Combat) Deactivate(characterID string) bool {
	for i := range c.Participants {
		if c.Participants[i].CharacterID == characterID {
			c.Participants[i].IsActive = false
			return true
		}
	}
	return false
}

// AppendLog appends entry to the combat log. The engine enforces no size bound.
func (c *Combat) AppendLog(entry string) {
	c.Log = append(c.Log, entry)
}

// SortByInitiative orders participants highest initiative first. The sort is
// stable: equal initiatives keep their insertion order, which is the
// authoritative tie-break rule.
func SortByInitiative(participants []Participant) {
	sort.SliceStable(participants, func(i, j int) bool {
		return participants[i].Initiative > participants[j].Initiative
	})
}
