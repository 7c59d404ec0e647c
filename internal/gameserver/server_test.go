package gameserver_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/keeper/internal/event"
	"github.com/cory-johannsen/keeper/internal/game/character"
	"github.com/cory-johannsen/keeper/internal/game/check"
	"github.com/cory-johannsen/keeper/internal/game/combat"
	"github.com/cory-johannsen/keeper/internal/game/dice"
	"github.com/cory-johannsen/keeper/internal/game/effect"
	"github.com/cory-johannsen/keeper/internal/game/resource"
	"github.com/cory-johannsen/keeper/internal/game/ruleset"
	"github.com/cory-johannsen/keeper/internal/game/table"
	"github.com/cory-johannsen/keeper/internal/gameserver"
)

// memState backs every store interface with in-memory maps.
type memState struct {
	combats   map[string]*combat.Combat
	effects   map[string]*effect.StatusEffect
	resources map[string]*resource.Resource
	changes   []*resource.Change
	tables    map[string]*table.RandomTable
	chars     map[string]*character.Character
	games     map[string]bool
	rules     map[string]*ruleset.Ruleset
}

func newMemState() *memState {
	return &memState{
		combats:   map[string]*combat.Combat{},
		effects:   map[string]*effect.StatusEffect{},
		resources: map[string]*resource.Resource{},
		tables:    map[string]*table.RandomTable{},
		chars:     map[string]*character.Character{},
		games:     map[string]bool{},
		rules:     map[string]*ruleset.Ruleset{},
	}
}

func (m *memState) GetCombat(_ context.Context, id string) (*combat.Combat, error) {
	c, ok := m.combats[id]
	if !ok {
		return nil, combat.ErrNotFound
	}
	cp := *c
	cp.Participants = append([]combat.Participant(nil), c.Participants...)
	cp.Log = append([]string(nil), c.Log...)
	return &cp, nil
}

func (m *memState) PutCombat(_ context.Context, c *combat.Combat) error {
	cp := *c
	cp.Participants = append([]combat.Participant(nil), c.Participants...)
	cp.Log = append([]string(nil), c.Log...)
	m.combats[c.ID] = &cp
	return nil
}

func (m *memState) GetEffect(_ context.Context, id string) (*effect.StatusEffect, error) {
	e, ok := m.effects[id]
	if !ok {
		return nil, effect.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *memState) FindEffect(_ context.Context, gameID, targetID, name string) (*effect.StatusEffect, error) {
	for _, e := range m.effects {
		if e.GameID == gameID && e.TargetID == targetID && e.Name == name {
			cp := *e
			return &cp, nil
		}
	}
	return nil, effect.ErrNotFound
}

func (m *memState) ListEffectsByGame(_ context.Context, gameID string) ([]*effect.StatusEffect, error) {
	var out []*effect.StatusEffect
	for _, e := range m.effects {
		if e.GameID == gameID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memState) ListEffectsByTarget(_ context.Context, targetID string) ([]*effect.StatusEffect, error) {
	var out []*effect.StatusEffect
	for _, e := range m.effects {
		if e.TargetID == targetID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memState) PutEffect(_ context.Context, e *effect.StatusEffect) error {
	cp := *e
	m.effects[e.ID] = &cp
	return nil
}

func (m *memState) DeleteEffect(_ context.Context, id string) error {
	delete(m.effects, id)
	return nil
}

func (m *memState) GetResource(_ context.Context, id string) (*resource.Resource, error) {
	r, ok := m.resources[id]
	if !ok {
		return nil, resource.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memState) PutResource(_ context.Context, r *resource.Resource) error {
	cp := *r
	m.resources[r.ID] = &cp
	return nil
}

func (m *memState) DeleteResource(_ context.Context, id string) error {
	delete(m.resources, id)
	return nil
}

func (m *memState) AppendChange(_ context.Context, c *resource.Change) error {
	cp := *c
	m.changes = append(m.changes, &cp)
	return nil
}

func (m *memState) ListChanges(_ context.Context, resourceID string, limit int) ([]*resource.Change, error) {
	var out []*resource.Change
	for i := len(m.changes) - 1; i >= 0; i-- {
		if m.changes[i].ResourceID == resourceID {
			cp := *m.changes[i]
			out = append(out, &cp)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memState) GetTable(_ context.Context, id string) (*table.RandomTable, error) {
	t, ok := m.tables[id]
	if !ok {
		return nil, table.ErrNotFound
	}
	return t, nil
}

func (m *memState) GetCharacter(_ context.Context, id string) (*character.Character, error) {
	c, ok := m.chars[id]
	if !ok {
		return nil, character.ErrNotFound
	}
	return c, nil
}

func (m *memState) GameExists(_ context.Context, gameID string) (bool, error) {
	return m.games[gameID], nil
}

func (m *memState) GetRuleset(_ context.Context, gameID string) (*ruleset.Ruleset, error) {
	rs, ok := m.rules[gameID]
	if !ok {
		return nil, ruleset.ErrNotFound
	}
	return rs, nil
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

func intPtr(v int) *int { return &v }

// startSession builds the full in-memory stack, serves it over an in-memory
// transport, and returns a connected client session.
func startSession(t *testing.T, state *memState, src dice.Source) *mcp.ClientSession {
	t.Helper()
	logger := zap.NewNop()
	bus := event.NewBus(logger)
	roller := dice.NewLoggedRoller(src, logger)

	server := gameserver.New("keeper-test", gameserver.Deps{
		Sequencer: combat.NewSequencer(state, state, state, roller, bus, logger),
		Tracker:   effect.NewTracker(state, bus, logger),
		Evaluator: check.NewEvaluator(state, state, roller, logger),
		Resolver:  table.NewResolver(state, roller, logger),
		Ledger:    resource.NewLedger(state, bus, logger),
		Roller:    roller,
		Logger:    logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Run(ctx, serverTransport)
	}()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = session.Close()
		cancel()
		<-serveErr
	})
	return session
}

func call(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	require.NoError(t, err)
	return result
}

func decode[T any](t *testing.T, result *mcp.CallToolResult) T {
	t.Helper()
	data, err := json.Marshal(result.StructuredContent)
	require.NoError(t, err)
	var out T
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func seededState() *memState {
	state := newMemState()
	state.games["g1"] = true
	state.chars["alice"] = &character.Character{
		ID: "alice", GameID: "g1", Name: "Alice",
		Attributes: map[string]int{"dexterity": 14, "strength": 16},
		Skills:     map[string]int{"athletics": 3},
	}
	state.chars["bob"] = &character.Character{
		ID: "bob", GameID: "g1", Name: "Bob",
		Attributes: map[string]int{"dexterity": 10},
	}
	state.rules["g1"] = &ruleset.Ruleset{
		GameID: "g1",
		Name:   "standard",
		CheckMechanics: ruleset.CheckMechanics{
			BaseDice:        "1d20",
			CriticalSuccess: intPtr(20),
			CriticalFailure: intPtr(1),
		},
	}
	return state
}

func TestServer_RollDice(t *testing.T) {
	session := startSession(t, seededState(), &scriptSource{values: []int{3, 4}})

	result := call(t, session, "roll_dice", map[string]any{"expression": "2d6+3"})
	require.False(t, result.IsError)

	roll := decode[gameserver.RollView](t, result)
	assert.Equal(t, "2d6+3", roll.Expression)
	assert.Equal(t, []int{4, 5}, roll.Dice)
	assert.Equal(t, 12, roll.Total)
}

func TestServer_RollDice_BadExpressionIsErrorResult(t *testing.T) {
	session := startSession(t, seededState(), &scriptSource{values: []int{0}})

	result := call(t, session, "roll_dice", map[string]any{"expression": "d20+"})
	assert.True(t, result.IsError, "parse faults surface as tool errors, not protocol errors")
}

func TestServer_CombatLifecycle(t *testing.T) {
	session := startSession(t, seededState(), &scriptSource{values: []int{9}})

	started := decode[gameserver.CombatResult](t, call(t, session, "start_combat", map[string]any{
		"game_id":         "g1",
		"location_id":     "tavern",
		"participant_ids": []string{"alice", "bob"},
	}))
	require.True(t, started.Found)
	assert.Equal(t, "active", started.Combat.Status)
	require.Len(t, started.Combat.Participants, 2)
	// alice: 10 + 2 dex mod = 12; bob: 10. Alice goes first.
	assert.Equal(t, "alice", started.Combat.Participants[0].CharacterID)
	assert.Equal(t, "alice", started.Combat.CurrentTurnID)

	advanced := decode[gameserver.CombatResult](t, call(t, session, "next_turn", map[string]any{
		"combat_id": started.Combat.ID,
	}))
	assert.Equal(t, "bob", advanced.Combat.CurrentTurnID)
	assert.Equal(t, 1, advanced.Combat.Round)

	logged := decode[gameserver.CombatResult](t, call(t, session, "add_combat_log", map[string]any{
		"combat_id": started.Combat.ID,
		"entry":     "bob braces for impact",
	}))
	assert.Equal(t, []string{"bob braces for impact"}, logged.Combat.Log)

	removed := decode[gameserver.CombatResult](t, call(t, session, "remove_participant", map[string]any{
		"combat_id":    started.Combat.ID,
		"character_id": "bob",
	}))
	assert.Equal(t, "resolved", removed.Combat.Status, "one active participant auto-resolves")

	ended := decode[gameserver.CombatResult](t, call(t, session, "end_combat", map[string]any{
		"combat_id": started.Combat.ID,
	}))
	assert.Equal(t, "resolved", ended.Combat.Status, "end_combat is idempotent")
}

func TestServer_GetCombat_UnknownIsAbsentNotError(t *testing.T) {
	session := startSession(t, seededState(), &scriptSource{values: []int{9}})

	result := call(t, session, "get_combat", map[string]any{"combat_id": "no-such"})
	require.False(t, result.IsError)
	got := decode[gameserver.CombatResult](t, result)
	assert.False(t, got.Found)
}

func TestServer_StartCombat_UnknownGameIsErrorResult(t *testing.T) {
	session := startSession(t, seededState(), &scriptSource{values: []int{9}})

	result := call(t, session, "start_combat", map[string]any{
		"game_id":         "missing",
		"participant_ids": []string{"alice"},
	})
	assert.True(t, result.IsError)
}

func TestServer_EffectToolsRoundTrip(t *testing.T) {
	session := startSession(t, seededState(), &scriptSource{values: []int{9}})

	applied := decode[gameserver.EffectResult](t, call(t, session, "apply_status_effect", map[string]any{
		"game_id":     "g1",
		"target_id":   "alice",
		"name":        "poisoned",
		"effect_type": "debuff",
		"duration":    2,
		"max_stacks":  2,
		"effects":     map[string]float64{"health_regen": -1},
	}))
	require.True(t, applied.Found)
	assert.Equal(t, 1, applied.Effect.Stacks)

	applied = decode[gameserver.EffectResult](t, call(t, session, "apply_status_effect", map[string]any{
		"game_id":   "g1",
		"target_id": "alice",
		"name":      "poisoned",
	}))
	assert.Equal(t, 2, applied.Effect.Stacks)

	mods := decode[gameserver.EffectiveModifiersResult](t, call(t, session, "get_effective_modifiers", map[string]any{
		"target_id": "alice",
	}))
	assert.InDelta(t, -2.0, mods.Modifiers["health_regen"], 1e-9)

	ticked := decode[gameserver.TickDurationsResult](t, call(t, session, "tick_status_durations", map[string]any{
		"game_id": "g1",
	}))
	require.Len(t, ticked.Remaining, 1)
	require.NotNil(t, ticked.Remaining[0].Duration)
	assert.Equal(t, 1, *ticked.Remaining[0].Duration)

	ticked = decode[gameserver.TickDurationsResult](t, call(t, session, "tick_status_durations", map[string]any{
		"game_id": "g1",
	}))
	require.Len(t, ticked.Expired, 1)
	assert.Equal(t, "poisoned", ticked.Expired[0].Name)

	listed := decode[gameserver.ListEffectsResult](t, call(t, session, "list_status_effects", map[string]any{
		"target_id": "alice",
	}))
	assert.Empty(t, listed.Effects)
}

func TestServer_SkillCheck(t *testing.T) {
	// Intn(20) = 9 → die 10.
	session := startSession(t, seededState(), &scriptSource{values: []int{9}})

	result := decode[gameserver.CheckView](t, call(t, session, "skill_check", map[string]any{
		"game_id":      "g1",
		"character_id": "alice",
		"skill":        "athletics",
		"attribute":    "strength",
		"difficulty":   15,
	}))
	// 10 + 3 skill + 3 str mod = 16.
	assert.True(t, result.Success)
	assert.Equal(t, 16, result.Total)
	assert.Equal(t, 1, result.Margin)
}

func TestServer_OpposedCheck(t *testing.T) {
	// Attacker d20: 15, defender d20: 8.
	session := startSession(t, seededState(), &scriptSource{values: []int{14, 7}})

	result := decode[gameserver.OpposedCheckResult](t, call(t, session, "opposed_check", map[string]any{
		"game_id":  "g1",
		"attacker": map[string]any{"character_id": "alice"},
		"defender": map[string]any{"character_id": "bob"},
	}))
	assert.Equal(t, "attacker", result.Winner)
	assert.Equal(t, 15, result.Attacker.Total)
}

func TestServer_RollTable(t *testing.T) {
	state := seededState()
	state.tables["t1"] = &table.RandomTable{
		ID: "t1", GameID: "g1", Name: "encounters", RollExpression: "1d20",
		Entries: []table.TableEntry{
			{MinRoll: 1, MaxRoll: 10, Result: "wolves"},
			{MinRoll: 11, MaxRoll: 20, Result: "dragon"},
		},
	}
	session := startSession(t, state, &scriptSource{values: []int{11}})

	result := decode[gameserver.RollTableResult](t, call(t, session, "roll_table", map[string]any{
		"table_id": "t1",
	}))
	require.True(t, result.Found)
	assert.Equal(t, "dragon", result.Result.Entry.Result)

	absent := decode[gameserver.RollTableResult](t, call(t, session, "roll_table", map[string]any{
		"table_id": "nope",
	}))
	assert.False(t, absent.Found)
}

func TestServer_ResourceToolsRoundTrip(t *testing.T) {
	session := startSession(t, seededState(), &scriptSource{values: []int{9}})

	created := decode[gameserver.ResourceResult](t, call(t, session, "create_resource", map[string]any{
		"game_id":    "g1",
		"owner_type": "character",
		"owner_id":   "alice",
		"name":       "health",
		"value":      90,
		"min_value":  0,
		"max_value":  100,
	}))
	require.True(t, created.Found)

	updated := decode[gameserver.UpdateResourceValueResult](t, call(t, session, "update_resource_value", map[string]any{
		"resource_id": created.Resource.ID,
		"mode":        "delta",
		"value":       20,
		"reason":      "healing potion",
	}))
	require.True(t, updated.Found)
	assert.Equal(t, 100.0, updated.Resource.Value)
	assert.Equal(t, 10.0, updated.Change.Delta, "history records the clamped movement")

	patched := decode[gameserver.ResourceResult](t, call(t, session, "update_resource", map[string]any{
		"resource_id": created.Resource.ID,
		"max_value":   map[string]any{"value": 60},
	}))
	assert.Equal(t, 60.0, patched.Resource.Value, "tightened bound re-clamps")

	history := decode[gameserver.ResourceHistoryResult](t, call(t, session, "get_resource_history", map[string]any{
		"resource_id": created.Resource.ID,
	}))
	assert.Len(t, history.Changes, 1, "bound re-clamp writes no history row")

	deleted := decode[gameserver.DeleteResourceResult](t, call(t, session, "delete_resource", map[string]any{
		"resource_id": created.Resource.ID,
	}))
	assert.True(t, deleted.Deleted)

	absent := decode[gameserver.ResourceResult](t, call(t, session, "get_resource", map[string]any{
		"resource_id": created.Resource.ID,
	}))
	assert.False(t, absent.Found)
}
