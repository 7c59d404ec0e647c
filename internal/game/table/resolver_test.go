package table_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/keeper/internal/game/dice"
	"github.com/cory-johannsen/keeper/internal/game/table"
)

type memStore struct {
	tables map[string]*table.RandomTable
}

func (m *memStore) GetTable(_ context.Context, id string) (*table.RandomTable, error) {
	t, ok := m.tables[id]
	if !ok {
		return nil, table.ErrNotFound
	}
	return t, nil
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

func floatPtr(v float64) *float64 { return &v }
func strPtr(v string) *string     { return &v }

func newResolver(store *memStore, src dice.Source) *table.Resolver {
	logger := zap.NewNop()
	return table.NewResolver(store, dice.NewLoggedRoller(src, logger), logger)
}

func encounterTable() *table.RandomTable {
	return &table.RandomTable{
		ID:             "t1",
		GameID:         "g1",
		Name:           "encounters",
		RollExpression: "1d20",
		Entries: []table.TableEntry{
			{MinRoll: 1, MaxRoll: 10, Result: "wolves"},
			{MinRoll: 11, MaxRoll: 15, Result: "bandits"},
			{MinRoll: 5, MaxRoll: 20, Result: "unreachable overlap"},
			{MinRoll: 16, MaxRoll: 20, Result: "dragon"},
		},
	}
}

func TestResolver_FirstRangeMatchWins(t *testing.T) {
	store := &memStore{tables: map[string]*table.RandomTable{"t1": encounterTable()}}
	// Intn(20) = 11 → roll 12, lands in both "bandits" and the overlap row.
	r := newResolver(store, &scriptSource{values: []int{11}})

	res, err := r.Resolve(context.Background(), "t1", 0)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 12, res.Total)
	assert.Equal(t, "bandits", res.Entry.Result, "stored order decides among overlapping ranges")
	assert.Nil(t, res.Subtable)
}

func TestResolver_ModifierShiftsTotal(t *testing.T) {
	store := &memStore{tables: map[string]*table.RandomTable{"t1": encounterTable()}}
	// Intn(20) = 11 → roll 12; +5 modifier → 17.
	r := newResolver(store, &scriptSource{values: []int{11}})

	res, err := r.Resolve(context.Background(), "t1", 5)
	require.NoError(t, err)
	assert.Equal(t, 17, res.Total)
	assert.Equal(t, 5, res.Modifier)
	assert.Equal(t, "dragon", res.Entry.Result)
}

func TestResolver_RangeMissFallsBackToWeights(t *testing.T) {
	store := &memStore{tables: map[string]*table.RandomTable{"t1": {
		ID:             "t1",
		Name:           "loot",
		RollExpression: "1d6",
		Entries: []table.TableEntry{
			{MinRoll: 50, MaxRoll: 60, Result: "gold", Weight: floatPtr(1)},
			{MinRoll: 70, MaxRoll: 80, Result: "gems", Weight: floatPtr(3)},
			{MinRoll: 90, MaxRoll: 99, Result: "nothing"},
		},
	}}}
	// First Intn is the d6 roll (total 3, misses every range). The second
	// drives the weighted draw: 2^52 of 2^53 → uniform 0.5 of total weight 4
	// = 2.0, which exhausts "gold" (2.0 - 1 = 1.0) and lands in "gems".
	r := newResolver(store, &scriptSource{values: []int{2, 1 << 52}})

	res, err := r.Resolve(context.Background(), "t1", 0)
	require.NoError(t, err)
	assert.Equal(t, "gems", res.Entry.Result)
}

func TestResolver_WeightedDrawLowValueSelectsFirstWeighted(t *testing.T) {
	store := &memStore{tables: map[string]*table.RandomTable{"t1": {
		ID:             "t1",
		Name:           "loot",
		RollExpression: "1d6",
		Entries: []table.TableEntry{
			{MinRoll: 50, MaxRoll: 60, Result: "unweighted"},
			{MinRoll: 70, MaxRoll: 80, Result: "gold", Weight: floatPtr(2)},
			{MinRoll: 90, MaxRoll: 99, Result: "gems", Weight: floatPtr(2)},
		},
	}}}
	// Draw 0 → first positive-weight entry; unweighted rows are skipped.
	r := newResolver(store, &scriptSource{values: []int{2, 0}})

	res, err := r.Resolve(context.Background(), "t1", 0)
	require.NoError(t, err)
	assert.Equal(t, "gold", res.Entry.Result)
}

func TestResolver_NoMatchNoWeightsReturnsFirstEntry(t *testing.T) {
	store := &memStore{tables: map[string]*table.RandomTable{"t1": {
		ID:             "t1",
		Name:           "sparse",
		RollExpression: "1d6",
		Entries: []table.TableEntry{
			{MinRoll: 50, MaxRoll: 60, Result: "first"},
			{MinRoll: 70, MaxRoll: 80, Result: "second"},
		},
	}}}
	r := newResolver(store, &scriptSource{values: []int{2}})

	res, err := r.Resolve(context.Background(), "t1", 0)
	require.NoError(t, err)
	assert.Equal(t, "first", res.Entry.Result, "a non-empty table always yields a result")
}

func TestResolver_NegativeWeightsAreIgnored(t *testing.T) {
	store := &memStore{tables: map[string]*table.RandomTable{"t1": {
		ID:             "t1",
		Name:           "sparse",
		RollExpression: "1d6",
		Entries: []table.TableEntry{
			{MinRoll: 50, MaxRoll: 60, Result: "first", Weight: floatPtr(-5)},
			{MinRoll: 70, MaxRoll: 80, Result: "second", Weight: floatPtr(0)},
		},
	}}}
	r := newResolver(store, &scriptSource{values: []int{2}})

	res, err := r.Resolve(context.Background(), "t1", 0)
	require.NoError(t, err)
	assert.Equal(t, "first", res.Entry.Result, "non-positive weights never enter the draw")
}

func TestResolver_DefaultExpressionIs1d100(t *testing.T) {
	store := &memStore{tables: map[string]*table.RandomTable{"t1": {
		ID:   "t1",
		Name: "percentile",
		Entries: []table.TableEntry{
			{MinRoll: 1, MaxRoll: 100, Result: "anything"},
		},
	}}}
	r := newResolver(store, &scriptSource{values: []int{41}})

	res, err := r.Resolve(context.Background(), "t1", 0)
	require.NoError(t, err)
	assert.Equal(t, "1d100", res.Roll.Expression)
	assert.Equal(t, 42, res.Total)
}

func TestResolver_SubtableResolvesWithModifierReset(t *testing.T) {
	store := &memStore{tables: map[string]*table.RandomTable{
		"outer": {
			ID:             "outer",
			Name:           "outer",
			RollExpression: "1d20",
			Entries: []table.TableEntry{
				{MinRoll: 1, MaxRoll: 20, Result: "see treasure table", SubtableID: strPtr("inner")},
			},
		},
		"inner": {
			ID:             "inner",
			Name:           "inner",
			RollExpression: "1d6",
			Entries: []table.TableEntry{
				{MinRoll: 1, MaxRoll: 3, Result: "copper"},
				{MinRoll: 4, MaxRoll: 6, Result: "silver"},
			},
		},
	}}
	// Outer d20 rolls 10 (+7 modifier = 17); inner d6 rolls 5 with modifier 0.
	r := newResolver(store, &scriptSource{values: []int{9, 4}})

	res, err := r.Resolve(context.Background(), "outer", 7)
	require.NoError(t, err)
	assert.Equal(t, 17, res.Total)
	require.NotNil(t, res.Subtable)
	assert.Equal(t, "inner", res.Subtable.TableID)
	assert.Equal(t, 0, res.Subtable.Modifier, "subtable resolution resets the modifier")
	assert.Equal(t, 5, res.Subtable.Total)
	assert.Equal(t, "silver", res.Subtable.Entry.Result)
}

func TestResolver_UnknownTableIsAbsent(t *testing.T) {
	store := &memStore{tables: map[string]*table.RandomTable{}}
	r := newResolver(store, &scriptSource{values: []int{0}})

	res, err := r.Resolve(context.Background(), "nope", 0)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestResolver_EmptyTableIsAnError(t *testing.T) {
	store := &memStore{tables: map[string]*table.RandomTable{"t1": {ID: "t1", Name: "empty"}}}
	r := newResolver(store, &scriptSource{values: []int{0}})

	_, err := r.Resolve(context.Background(), "t1", 0)
	assert.Error(t, err)
}
