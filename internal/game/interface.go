// Package game defines the mini-game interface, the registry the wager engine
// looks games up in, and the random source games draw from.
package game

import (
	"errors"

	"credit-ledger/internal/model"
)

// ErrInvalidParams is returned when wager params are not valid for a game.
var ErrInvalidParams = errors.New("invalid game params")

// Result is the resolved outcome of a single wager.
type Result struct {
	WinAmount   int64         // Gross amount credited back; 0 on a loss
	Outcome     model.Outcome // Typed record of what was drawn
	Description string        // Human-readable summary
}

// Game resolves wagers for one game type. Implementations are pure: they
// draw from the supplied RNG and never touch balances.
type Game interface {
	// Type returns the game's identifier.
	Type() model.GameType

	// Name returns the game's display name.
	Name() string

	// Description returns a brief description of the payout rules.
	Description() string

	// ValidateParams checks the player's choices before any lock is taken.
	ValidateParams(params model.GameParams) error

	// Resolve draws the outcome and computes the win amount for bet.
	Resolve(rng RNG, bet int64, params model.GameParams) (*Result, error)
}
