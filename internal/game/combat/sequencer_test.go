package combat_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/keeper/internal/event"
	"github.com/cory-johannsen/keeper/internal/game/character"
	"github.com/cory-johannsen/keeper/internal/game/combat"
	"github.com/cory-johannsen/keeper/internal/game/dice"
)

// memStore is an in-memory combat Store that counts writes.
type memStore struct {
	combats map[string]*combat.Combat
	puts    int
}

func newMemStore() *memStore {
	return &memStore{combats: make(map[string]*combat.Combat)}
}

func (m *memStore) GetCombat(_ context.Context, id string) (*combat.Combat, error) {
	c, ok := m.combats[id]
	if !ok {
		return nil, combat.ErrNotFound
	}
	cp := *c
	cp.Participants = append([]combat.Participant(nil), c.Participants...)
	cp.Log = append([]string(nil), c.Log...)
	return &cp, nil
}

func (m *memStore) PutCombat(_ context.Context, c *combat.Combat) error {
	m.puts++
	cp := *c
	cp.Participants = append([]combat.Participant(nil), c.Participants...)
	cp.Log = append([]string(nil), c.Log...)
	m.combats[c.ID] = &cp
	return nil
}

// fakeChars resolves characters from a fixed map.
type fakeChars struct {
	chars map[string]*character.Character
}

func (f *fakeChars) GetCharacter(_ context.Context, id string) (*character.Character, error) {
	c, ok := f.chars[id]
	if !ok {
		return nil, character.ErrNotFound
	}
	return c, nil
}

// fakeGames knows a fixed set of game ids.
type fakeGames struct {
	games map[string]bool
}

func (f *fakeGames) GameExists(_ context.Context, gameID string) (bool, error) {
	return f.games[gameID], nil
}

// scriptSource replays a fixed sequence of Intn results.
type scriptSource struct {
	values []int
	i      int
}

func (s *scriptSource) Intn(n int) int {
	v := s.values[s.i%len(s.values)]
	s.i++
	return v % n
}

type recordingSubscriber struct {
	events []event.Event
}

func (r *recordingSubscriber) Notify(e event.Event) {
	r.events = append(r.events, e)
}

func newSequencer(store *memStore, chars *fakeChars, games *fakeGames, src dice.Source) (*combat.Sequencer, *recordingSubscriber) {
	logger := zap.NewNop()
	bus := event.NewBus(logger)
	sub := &recordingSubscriber{}
	bus.Subscribe(sub)
	roller := dice.NewLoggedRoller(src, logger)
	return combat.NewSequencer(store, chars, games, roller, bus, logger), sub
}

func standardFixtures() (*memStore, *fakeChars, *fakeGames) {
	store := newMemStore()
	chars := &fakeChars{chars: map[string]*character.Character{
		"alice": {ID: "alice", GameID: "g1", Attributes: map[string]int{"dexterity": 14}},
		"bob":   {ID: "bob", GameID: "g1", Attributes: map[string]int{"dexterity": 10}},
		"carol": {ID: "carol", GameID: "g1"}, // no attributes at all
	}}
	games := &fakeGames{games: map[string]bool{"g1": true}}
	return store, chars, games
}

func TestSequencer_Start(t *testing.T) {
	store, chars, games := standardFixtures()
	// Intn(20) results 9, 9, 9 → each d20 roll is 10.
	seq, sub := newSequencer(store, chars, games, &scriptSource{values: []int{9}})

	c, err := seq.Start(context.Background(), "g1", "loc-1", []string{"alice", "bob", "carol"})
	require.NoError(t, err)

	assert.Equal(t, combat.StatusActive, c.Status)
	assert.Equal(t, 0, c.TurnIndex)
	assert.Equal(t, 1, c.Round)
	assert.Empty(t, c.Log)
	require.Len(t, c.Participants, 3)

	// alice: 10 + floor((14-10)/2) = 12; bob: 10 + 0 = 10; carol: plain 10.
	assert.Equal(t, "alice", c.Participants[0].CharacterID)
	assert.Equal(t, 12, c.Participants[0].Initiative)
	// bob and carol tie at 10 and keep their input order.
	assert.Equal(t, "bob", c.Participants[1].CharacterID)
	assert.Equal(t, "carol", c.Participants[2].CharacterID)

	require.Len(t, sub.events, 1)
	assert.Equal(t, event.TypeCombatStarted, sub.events[0].Type)
	assert.Equal(t, c.ID, sub.events[0].EntityID)
}

func TestSequencer_Start_UnknownParticipantWritesNothing(t *testing.T) {
	store, chars, games := standardFixtures()
	seq, sub := newSequencer(store, chars, games, &scriptSource{values: []int{9}})

	_, err := seq.Start(context.Background(), "g1", "loc-1", []string{"alice", "ghost"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
	assert.Equal(t, 0, store.puts, "failed validation must leave no combat record")
	assert.Empty(t, sub.events)
}

func TestSequencer_Start_UnknownGame(t *testing.T) {
	store, chars, games := standardFixtures()
	seq, _ := newSequencer(store, chars, games, &scriptSource{values: []int{9}})

	_, err := seq.Start(context.Background(), "missing", "loc-1", []string{"alice"})
	require.Error(t, err)
	assert.Equal(t, 0, store.puts)
}

func TestSequencer_Start_NoParticipants(t *testing.T) {
	store, chars, games := standardFixtures()
	seq, _ := newSequencer(store, chars, games, &scriptSource{values: []int{9}})

	_, err := seq.Start(context.Background(), "g1", "loc-1", nil)
	assert.Error(t, err)
}

func TestSequencer_Advance_ThreeCallsReturnToTopOfRoundTwo(t *testing.T) {
	store, chars, games := standardFixtures()
	seq, _ := newSequencer(store, chars, games, &scriptSource{values: []int{9}})

	c, err := seq.Start(context.Background(), "g1", "loc-1", []string{"alice", "bob", "carol"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		c, err = seq.Advance(context.Background(), c.ID)
		require.NoError(t, err)
		require.NotNil(t, c)
	}
	assert.Equal(t, 0, c.TurnIndex)
	assert.Equal(t, 2, c.Round)
	assert.Equal(t, combat.StatusActive, c.Status)
}

func TestSequencer_Advance_UnknownCombatIsAbsent(t *testing.T) {
	store, chars, games := standardFixtures()
	seq, _ := newSequencer(store, chars, games, &scriptSource{values: []int{9}})

	c, err := seq.Advance(context.Background(), "no-such-combat")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestSequencer_Advance_AutoResolvesWhenNobodyActive(t *testing.T) {
	store, chars, games := standardFixtures()
	seq, sub := newSequencer(store, chars, games, &scriptSource{values: []int{9}})

	c, err := seq.Start(context.Background(), "g1", "loc-1", []string{"alice", "bob"})
	require.NoError(t, err)

	// Deactivate both directly in the store to force the no-active path.
	stored := store.combats[c.ID]
	for i := range stored.Participants {
		stored.Participants[i].IsActive = false
	}

	c, err = seq.Advance(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, combat.StatusResolved, c.Status)

	var ended int
	for _, e := range sub.events {
		if e.Type == event.TypeCombatEnded {
			ended++
		}
	}
	assert.Equal(t, 1, ended)
}

func TestSequencer_RemoveParticipant_AutoResolvesAtOneActive(t *testing.T) {
	store, chars, games := standardFixtures()
	seq, sub := newSequencer(store, chars, games, &scriptSource{values: []int{9}})

	c, err := seq.Start(context.Background(), "g1", "loc-1", []string{"alice", "bob"})
	require.NoError(t, err)

	c, err = seq.RemoveParticipant(context.Background(), c.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, combat.StatusResolved, c.Status, "one active participant left resolves the combat")
	require.Len(t, c.Participants, 2, "participant slots are never removed")
	assert.False(t, c.Participants[1].IsActive)

	var ended int
	for _, e := range sub.events {
		if e.Type == event.TypeCombatEnded {
			ended++
		}
	}
	assert.Equal(t, 1, ended)
}

func TestSequencer_RemoveParticipant_ThreeStaysActive(t *testing.T) {
	store, chars, games := standardFixtures()
	seq, _ := newSequencer(store, chars, games, &scriptSource{values: []int{9}})

	c, err := seq.Start(context.Background(), "g1", "loc-1", []string{"alice", "bob", "carol"})
	require.NoError(t, err)

	c, err = seq.RemoveParticipant(context.Background(), c.ID, "carol")
	require.NoError(t, err)
	assert.Equal(t, combat.StatusActive, c.Status)
	assert.Equal(t, 2, c.ActiveCount())
}

func TestSequencer_RemoveParticipant_UnknownCharacterIsNoOp(t *testing.T) {
	store, chars, games := standardFixtures()
	seq, _ := newSequencer(store, chars, games, &scriptSource{values: []int{9}})

	c, err := seq.Start(context.Background(), "g1", "loc-1", []string{"alice", "bob"})
	require.NoError(t, err)
	putsAfterStart := store.puts

	c, err = seq.RemoveParticipant(context.Background(), c.ID, "ghost")
	require.NoError(t, err)
	assert.Equal(t, combat.StatusActive, c.Status)
	assert.Equal(t, putsAfterStart, store.puts, "no-op removal writes nothing")
}

func TestSequencer_End_IsIdempotent(t *testing.T) {
	store, chars, games := standardFixtures()
	seq, sub := newSequencer(store, chars, games, &scriptSource{values: []int{9}})

	c, err := seq.Start(context.Background(), "g1", "loc-1", []string{"alice", "bob"})
	require.NoError(t, err)

	c, err = seq.End(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, combat.StatusResolved, c.Status)

	c, err = seq.End(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, combat.StatusResolved, c.Status)

	var ended int
	for _, e := range sub.events {
		if e.Type == event.TypeCombatEnded {
			ended++
		}
	}
	assert.Equal(t, 1, ended, "ending twice publishes a single event")
}

func TestSequencer_Log_Appends(t *testing.T) {
	store, chars, games := standardFixtures()
	seq, _ := newSequencer(store, chars, games, &scriptSource{values: []int{9}})

	c, err := seq.Start(context.Background(), "g1", "loc-1", []string{"alice", "bob"})
	require.NoError(t, err)

	c, err = seq.Log(context.Background(), c.ID, "alice attacks bob")
	require.NoError(t, err)
	c, err = seq.Log(context.Background(), c.ID, "bob staggers")
	require.NoError(t, err)

	assert.Equal(t, []string{"alice attacks bob", "bob staggers"}, c.Log)
}
