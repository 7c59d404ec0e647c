package combat

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/keeper/internal/event"
	"github.com/cory-johannsen/keeper/internal/game/character"
	"github.com/cory-johannsen/keeper/internal/game/dice"
)

// initiativeDice is the base initiative roll. The dexterity modifier is added
// on top when the participant has a dexterity attribute.
var initiativeDice = dice.MustParse("1d20")

// Store provides combat persistence.
type Store interface {
	// GetCombat returns the combat with the given id, or ErrNotFound.
	GetCombat(ctx context.Context, id string) (*Combat, error)
	// PutCombat inserts or replaces the combat record.
	PutCombat(ctx context.Context, c *Combat) error
}

// CharacterSource resolves participant character ids.
type CharacterSource interface {
	// GetCharacter returns the character with the given id, or character.ErrNotFound.
	GetCharacter(ctx context.Context, id string) (*character.Character, error)
}

// GameSource answers whether a game exists.
type GameSource interface {
	GameExists(ctx context.Context, gameID string) (bool, error)
}

// Sequencer orchestrates the combat lifecycle: validated start, turn/round
// advancement, participant removal, termination, and log appends. Every
// mutation is a synchronous read-modify-write against the Store; callers
// serialize concurrent operations per combat id.
type Sequencer struct {
	store  Store
	chars  CharacterSource
	games  GameSource
	roller *dice.Roller
	bus    *event.Bus
	logger *zap.Logger
}

// NewSequencer creates a Sequencer.
//
// Precondition: all arguments must be non-nil.
func NewSequencer(store Store, chars CharacterSource, games GameSource, roller *dice.Roller, bus *event.Bus, logger *zap.Logger) *Sequencer {
	return &Sequencer{
		store:  store,
		chars:  chars,
		games:  games,
		roller: roller,
		bus:    bus,
		logger: logger,
	}
}

// Start validates the game and every participant id, rolls initiative, and
// persists a new active combat. Validation is all-or-nothing: any failed
// lookup aborts the call before anything is written.
//
// Initiative is the 1d20 total plus the dexterity ability modifier when the
// character has a dexterity attribute, else the plain 1d20 total. Participants
// are sorted descending by initiative; ties keep their input order.
//
// Postcondition: On success the returned combat has TurnIndex 0, Round 1,
// StatusActive, an empty log, and a "combat started" event was published.
func (s *Sequencer) Start(ctx context.Context, gameID, locationID string, participantIDs []string) (*Combat, error) {
	if len(participantIDs) == 0 {
		return nil, fmt.Errorf("combat: at least one participant is required")
	}

	exists, err := s.games.GameExists(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("checking game %q: %w", gameID, err)
	}
	if !exists {
		return nil, fmt.Errorf("combat: game %q not found", gameID)
	}

	// Resolve every character before rolling or writing anything.
	chars := make([]*character.Character, 0, len(participantIDs))
	for _, id := range participantIDs {
		ch, err := s.chars.GetCharacter(ctx, id)
		if errors.Is(err, character.ErrNotFound) {
			return nil, fmt.Errorf("combat: participant %q not found", id)
		}
		if err != nil {
			return nil, fmt.Errorf("resolving participant %q: %w", id, err)
		}
		chars = append(chars, ch)
	}

	participants := make([]Participant, 0, len(chars))
	for _, ch := range chars {
		roll := s.roller.Roll(initiativeDice)
		initiative := roll.Total()
		if dex, ok := ch.Attribute(character.AttributeDexterity); ok {
			initiative += character.AbilityMod(dex)
		}
		participants = append(participants, Participant{
			CharacterID: ch.ID,
			Initiative:  initiative,
			IsActive:    true,
		})
	}
	SortByInitiative(participants)

	c := &Combat{
		ID:           uuid.NewString(),
		GameID:       gameID,
		LocationID:   locationID,
		Participants: participants,
		TurnIndex:    0,
		Round:        1,
		Status:       StatusActive,
		Log:          []string{},
	}

	if err := s.store.PutCombat(ctx, c); err != nil {
		return nil, fmt.Errorf("persisting combat: %w", err)
	}

	s.logger.Info("combat started",
		zap.String("combat_id", c.ID),
		zap.String("game_id", gameID),
		zap.Int("participants", len(participants)),
	)
	s.bus.Publish(event.Event{
		Type:       event.TypeCombatStarted,
		GameID:     gameID,
		EntityID:   c.ID,
		EntityType: "combat",
		Data:       map[string]any{"participants": len(participants), "locationId": locationID},
	})

	return c, nil
}

// Get returns the combat with the given id, or (nil, nil) when absent.
func (s *Sequencer) Get(ctx context.Context, combatID string) (*Combat, error) {
	c, err := s.store.GetCombat(ctx, combatID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading combat %q: %w", combatID, err)
	}
	return c, nil
}

// Advance moves the combat to the next active participant, incrementing the
// round whenever the turn index wraps. When a full cycle finds no active
// participant the combat auto-resolves instead of advancing.
//
// Postcondition: Returns (nil, nil) for an unknown combat id; a resolved
// combat is returned unchanged.
func (s *Sequencer) Advance(ctx context.Context, combatID string) (*Combat, error) {
	c, err := s.Get(ctx, combatID)
	if err != nil || c == nil {
		return c, err
	}
	if c.Resolved() {
		return c, nil
	}

	if !c.Advance() {
		return s.resolve(ctx, c)
	}

	if err := s.store.PutCombat(ctx, c); err != nil {
		return nil, fmt.Errorf("persisting combat %q: %w", combatID, err)
	}
	return c, nil
}

// RemoveParticipant flips the participant inactive without disturbing the
// participant order. When at most one active participant remains the combat
// auto-resolves.
//
// Postcondition: Returns (nil, nil) for an unknown combat id; an unknown
// character id leaves the combat untouched.
func (s *Sequencer) RemoveParticipant(ctx context.Context, combatID, characterID string) (*Combat, error) {
	c, err := s.Get(ctx, combatID)
	if err != nil || c == nil {
		return c, err
	}
	if c.Resolved() {
		return c, nil
	}

	if !c.Deactivate(characterID) {
		return c, nil
	}

	if c.ActiveCount() <= 1 {
		return s.resolve(ctx, c)
	}

	if err := s.store.PutCombat(ctx, c); err != nil {
		return nil, fmt.Errorf("persisting combat %q: %w", combatID, err)
	}
	return c, nil
}

// End resolves the combat. Resolving an already-resolved combat is a no-op.
//
// Postcondition: Returns (nil, nil) for an unknown combat id; the "combat
// ended" event is published only on the transition to resolved.
func (s *Sequencer) End(ctx context.Context, combatID string) (*Combat, error) {
	c, err := s.Get(ctx, combatID)
	if err != nil || c == nil {
		return c, err
	}
	if c.Resolved() {
		return c, nil
	}
	return s.resolve(ctx, c)
}

// Log appends entry to the combat log.
//
// Postcondition: Returns (nil, nil) for an unknown combat id.
func (s *Sequencer) Log(ctx context.Context, combatID, entry string) (*Combat, error) {
	c, err := s.Get(ctx, combatID)
	if err != nil || c == nil {
		return c, err
	}

	c.AppendLog(entry)
	if err := s.store.PutCombat(ctx, c); err != nil {
		return nil, fmt.Errorf("persisting combat %q: %w", combatID, err)
	}
	return c, nil
}

// resolve transitions c to the terminal state, persists it, and publishes the
// "combat ended" event.
func (s *Sequencer) resolve(ctx context.Context, c *Combat) (*Combat, error) {
	c.Status = StatusResolved
	if err := s.store.PutCombat(ctx, c); err != nil {
		return nil, fmt.Errorf("persisting combat %q: %w", c.ID, err)
	}

	s.logger.Info("combat ended",
		zap.String("combat_id", c.ID),
		zap.String("game_id", c.GameID),
		zap.Int("round", c.Round),
	)
	s.bus.Publish(event.Event{
		Type:       event.TypeCombatEnded,
		GameID:     c.GameID,
		EntityID:   c.ID,
		EntityType: "combat",
		Data:       map[string]any{"round": c.Round},
	})
	return c, nil
}
