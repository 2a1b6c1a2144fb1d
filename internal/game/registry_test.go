package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credit-ledger/internal/model"
)

type stubGame struct{ t model.GameType }

func (g stubGame) Type() model.GameType                  { return g.t }
func (g stubGame) Name() string                          { return string(g.t) }
func (g stubGame) Description() string                   { return "" }
func (g stubGame) ValidateParams(model.GameParams) error { return nil }
func (g stubGame) Resolve(RNG, int64, model.GameParams) (*Result, error) {
	return &Result{}, nil
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(stubGame{model.GameSlots}))
	require.NoError(t, r.Register(stubGame{model.GameDice}))
	assert.Error(t, r.Register(nil))
	assert.Error(t, r.Register(stubGame{""}))

	g, ok := r.Get(model.GameDice)
	require.True(t, ok)
	assert.Equal(t, model.GameDice, g.Type())

	_, ok = r.Get("roulette")
	assert.False(t, ok)

	assert.Equal(t, 2, r.Count())
	assert.Equal(t, []string{"dice", "slots"}, r.Types())
}

func TestFixedRNG_Cycles(t *testing.T) {
	rng := NewFixedRNG(1, 8)
	assert.Equal(t, 1, rng.IntN(6))
	assert.Equal(t, 2, rng.IntN(6))
	assert.Equal(t, 1, rng.IntN(6))
}

func TestSystemRNG_InRange(t *testing.T) {
	var rng SystemRNG
	for i := 0; i < 1000; i++ {
		v := rng.IntN(7)
		require.True(t, v >= 0 && v < 7)
	}
}
