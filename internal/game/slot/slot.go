// Package slot implements the three-reel slot machine.
//
// Each reel draws one of seven symbols uniformly. Three of a kind pays the
// symbol's multiplier, exactly two matching pays 2x, no match pays nothing.
package slot

import (
	"fmt"
	"strings"

	"credit-ledger/internal/game"
	"credit-ledger/internal/model"
)

// Symbol names.
const (
	Diamond = "diamond"
	Seven   = "seven"
	Star    = "star"
	Grape   = "grape"
	Orange  = "orange"
	Lemon   = "lemon"
	Cherry  = "cherry"
)

// PairMultiplier is paid when exactly two reels match.
const PairMultiplier = 2

// Symbols is the reel, in draw-index order.
var Symbols = []string{Diamond, Seven, Star, Grape, Orange, Lemon, Cherry}

// tripleMultipliers pays three of a kind.
var tripleMultipliers = map[string]int64{
	Diamond: 50,
	Seven:   30,
	Star:    20,
	Grape:   10,
	Orange:  8,
	Lemon:   6,
	Cherry:  5,
}

// symbolEmoji is used for display only.
var symbolEmoji = map[string]string{
	Diamond: "💎",
	Seven:   "7️⃣",
	Star:    "⭐",
	Grape:   "🍇",
	Orange:  "🍊",
	Lemon:   "🍋",
	Cherry:  "🍒",
}

// SlotGame implements game.Game for the slot machine.
type SlotGame struct{}

// New creates a new SlotGame.
func New() *SlotGame {
	return &SlotGame{}
}

// Type returns the game's identifier.
func (s *SlotGame) Type() model.GameType {
	return model.GameSlots
}

// Name returns the game's display name.
func (s *SlotGame) Name() string {
	return "Slot Machine"
}

// Description returns a brief description of the game.
func (s *SlotGame) Description() string {
	return "Spin three reels. Three of a kind pays up to 50x, any pair pays 2x."
}

// ValidateParams checks the params carry the slots variant.
func (s *SlotGame) ValidateParams(params model.GameParams) error {
	if err := params.Validate(); err != nil {
		return fmt.Errorf("%w: %w", game.ErrInvalidParams, err)
	}
	if params.Game != model.GameSlots {
		return fmt.Errorf("%w: expected slots params, got %s", game.ErrInvalidParams, params.Game)
	}
	return nil
}

// Spin draws three independent symbols.
func Spin(rng game.RNG) [3]string {
	var reels [3]string
	for i := range reels {
		reels[i] = Symbols[rng.IntN(len(Symbols))]
	}
	return reels
}

// CalculateWin returns the amount paid for bet on the given reels.
func CalculateWin(reels [3]string, bet int64) int64 {
	a, b, c := reels[0], reels[1], reels[2]

	if a == b && b == c {
		return bet * tripleMultipliers[a]
	}

	if a == b || b == c || a == c {
		return bet * PairMultiplier
	}

	return 0
}

// Resolve spins the reels and settles the bet.
func (s *SlotGame) Resolve(rng game.RNG, bet int64, params model.GameParams) (*game.Result, error) {
	if err := s.ValidateParams(params); err != nil {
		return nil, err
	}

	reels := Spin(rng)
	win := CalculateWin(reels, bet)

	display := make([]string, len(reels))
	for i, sym := range reels {
		display[i] = symbolEmoji[sym]
	}
	line := strings.Join(display, " ")

	var description string
	switch {
	case reels[0] == reels[1] && reels[1] == reels[2]:
		description = fmt.Sprintf("🎰 %s\n🎊 JACKPOT! Three %s! You won %d credits.", line, reels[0], win)
	case win > 0:
		description = fmt.Sprintf("🎰 %s\n🎉 A pair! You won %d credits.", line, win)
	default:
		description = fmt.Sprintf("🎰 %s\n😢 No match. You lost %d credits.", line, bet)
	}

	return &game.Result{
		WinAmount: win,
		Outcome: model.Outcome{
			Game:  model.GameSlots,
			Win:   win > 0,
			Slots: &model.SlotsOutcome{Symbols: reels},
		},
		Description: description,
	}, nil
}
