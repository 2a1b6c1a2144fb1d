package slot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"credit-ledger/internal/game"
	"credit-ledger/internal/model"
)

func TestCalculateWin(t *testing.T) {
	tests := []struct {
		name     string
		reels    [3]string
		bet      int64
		expected int64
	}{
		{"three diamonds", [3]string{Diamond, Diamond, Diamond}, 100, 5000},
		{"three sevens", [3]string{Seven, Seven, Seven}, 100, 3000},
		{"three stars", [3]string{Star, Star, Star}, 100, 2000},
		{"three grapes", [3]string{Grape, Grape, Grape}, 100, 1000},
		{"three oranges", [3]string{Orange, Orange, Orange}, 100, 800},
		{"three lemons", [3]string{Lemon, Lemon, Lemon}, 100, 600},
		{"three cherries", [3]string{Cherry, Cherry, Cherry}, 100, 500},

		{"pair left", [3]string{Cherry, Cherry, Lemon}, 100, 200},
		{"pair right", [3]string{Lemon, Cherry, Cherry}, 100, 200},
		{"pair split", [3]string{Cherry, Lemon, Cherry}, 100, 200},

		{"no match", [3]string{Cherry, Lemon, Star}, 100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CalculateWin(tt.reels, tt.bet))
		})
	}
}

func TestResolve_ForcedDraws(t *testing.T) {
	g := New()

	// Index 0 is diamond.
	res, err := g.Resolve(game.NewFixedRNG(0, 0, 0), 10, model.NewSlotsParams())
	require.NoError(t, err)
	assert.Equal(t, int64(500), res.WinAmount)
	require.NotNil(t, res.Outcome.Slots)
	assert.Equal(t, [3]string{Diamond, Diamond, Diamond}, res.Outcome.Slots.Symbols)

	// cherry, cherry, lemon
	res, err = g.Resolve(game.NewFixedRNG(6, 6, 5), 10, model.NewSlotsParams())
	require.NoError(t, err)
	assert.Equal(t, int64(20), res.WinAmount)

	// cherry, lemon, star
	res, err = g.Resolve(game.NewFixedRNG(6, 5, 2), 10, model.NewSlotsParams())
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.WinAmount)
	assert.False(t, res.Outcome.Win)
}

func TestValidateParams(t *testing.T) {
	g := New()
	assert.NoError(t, g.ValidateParams(model.NewSlotsParams()))
	assert.ErrorIs(t, g.ValidateParams(model.NewDiceParams(7)), game.ErrInvalidParams)
	assert.ErrorIs(t, g.ValidateParams(model.GameParams{Game: model.GameSlots}), game.ErrInvalidParams)
}

// TestSpinProperty checks every spin draws known symbols and pays one of the
// three payout classes.
func TestSpinProperty(t *testing.T) {
	known := map[string]bool{}
	for _, s := range Symbols {
		known[s] = true
	}

	rapid.Check(t, func(t *rapid.T) {
		draws := rapid.SliceOfN(rapid.IntRange(0, 100), 3, 3).Draw(t, "draws")
		bet := rapid.Int64Range(1, 10_000).Draw(t, "bet")

		reels := Spin(game.NewFixedRNG(draws...))
		for _, s := range reels {
			if !known[s] {
				t.Fatalf("unknown symbol %q", s)
			}
		}

		win := CalculateWin(reels, bet)
		distinct := map[string]bool{reels[0]: true, reels[1]: true, reels[2]: true}
		switch len(distinct) {
		case 1:
			if win != bet*tripleMultipliers[reels[0]] {
				t.Fatalf("triple %v paid %d", reels, win)
			}
		case 2:
			if win != bet*PairMultiplier {
				t.Fatalf("pair %v paid %d", reels, win)
			}
		default:
			if win != 0 {
				t.Fatalf("no match %v paid %d", reels, win)
			}
		}
	})
}
