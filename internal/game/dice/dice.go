// Package dice implements the two-dice prediction game.
//
// The player predicts the total of two dice. A correct prediction pays the
// bet times the multiplier for that total, floored to whole credits; any
// other total pays nothing.
package dice

import (
	"fmt"

	"github.com/shopspring/decimal"

	"credit-ledger/internal/game"
	"credit-ledger/internal/model"
)

// Prediction bounds.
const (
	MinPrediction = 2
	MaxPrediction = 12
)

// multipliers pays roughly the inverse of each total's probability.
var multipliers = map[int]decimal.Decimal{
	2:  decimal.NewFromInt(36),
	3:  decimal.NewFromInt(18),
	4:  decimal.NewFromInt(12),
	5:  decimal.NewFromInt(9),
	6:  decimal.RequireFromString("7.2"),
	7:  decimal.NewFromInt(6),
	8:  decimal.RequireFromString("7.2"),
	9:  decimal.NewFromInt(9),
	10: decimal.NewFromInt(12),
	11: decimal.NewFromInt(18),
	12: decimal.NewFromInt(36),
}

// DiceGame implements game.Game for dice.
type DiceGame struct{}

// New creates a new DiceGame.
func New() *DiceGame {
	return &DiceGame{}
}

// Type returns the game's identifier.
func (d *DiceGame) Type() model.GameType {
	return model.GameDice
}

// Name returns the game's display name.
func (d *DiceGame) Name() string {
	return "Dice"
}

// Description returns a brief description of the game.
func (d *DiceGame) Description() string {
	return "Predict the total of two dice (2-12). 7 pays 6x, 2 and 12 pay 36x."
}

// Multiplier returns the payout multiplier for a predicted total.
func Multiplier(total int) (decimal.Decimal, bool) {
	m, ok := multipliers[total]
	return m, ok
}

// ValidateParams checks the prediction is a reachable total.
func (d *DiceGame) ValidateParams(params model.GameParams) error {
	if err := params.Validate(); err != nil {
		return fmt.Errorf("%w: %w", game.ErrInvalidParams, err)
	}
	if params.Game != model.GameDice {
		return fmt.Errorf("%w: expected dice params, got %s", game.ErrInvalidParams, params.Game)
	}
	if p := params.Dice.Prediction; p < MinPrediction || p > MaxPrediction {
		return fmt.Errorf("%w: prediction must be between %d and %d, got %d",
			game.ErrInvalidParams, MinPrediction, MaxPrediction, p)
	}
	return nil
}

// Roll draws two independent dice in [1,6].
func Roll(rng game.RNG) (int, int) {
	return rng.IntN(6) + 1, rng.IntN(6) + 1
}

// CalculateWin returns the amount paid for bet when the dice total is total
// and the player predicted prediction.
func CalculateWin(total, prediction int, bet int64) int64 {
	if total != prediction {
		return 0
	}
	m, ok := multipliers[total]
	if !ok {
		return 0
	}
	return decimal.NewFromInt(bet).Mul(m).Floor().IntPart()
}

// Resolve rolls the dice and settles the prediction.
func (d *DiceGame) Resolve(rng game.RNG, bet int64, params model.GameParams) (*game.Result, error) {
	if err := d.ValidateParams(params); err != nil {
		return nil, err
	}

	d1, d2 := Roll(rng)
	total := d1 + d2
	prediction := params.Dice.Prediction
	win := CalculateWin(total, prediction, bet)

	var description string
	if win > 0 {
		description = fmt.Sprintf("🎲🎲 %d + %d = %d\n🎉 Called it! You won %d credits.", d1, d2, total, win)
	} else {
		description = fmt.Sprintf("🎲🎲 %d + %d = %d\n😢 You predicted %d and lost %d credits.", d1, d2, total, prediction, bet)
	}

	return &game.Result{
		WinAmount: win,
		Outcome: model.Outcome{
			Game: model.GameDice,
			Win:  win > 0,
			Dice: &model.DiceOutcome{D1: d1, D2: d2, Total: total},
		},
		Description: description,
	}, nil
}
