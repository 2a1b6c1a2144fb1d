package model

import (
	"errors"
	"fmt"
)

// GameType identifies a mini-game.
type GameType string

const (
	GameDice  GameType = "dice"
	GameSlots GameType = "slots"
)

// Payload validation errors.
var (
	ErrUnknownGame      = errors.New("unknown game type")
	ErrParamsMismatch   = errors.New("game params do not match game type")
	ErrInvalidTargeting = errors.New("invalid promotion targeting")
)

// DiceParams are the player's choices for a dice wager.
type DiceParams struct {
	Prediction int `json:"prediction"`
}

// SlotsParams are the player's choices for a slots wager. Slots take none
// today; the variant exists so every game has a typed payload.
type SlotsParams struct{}

// GameParams is a tagged union with exactly one variant set, matching Game.
// It is stored as jsonb.
type GameParams struct {
	Game  GameType     `json:"game"`
	Dice  *DiceParams  `json:"dice,omitempty"`
	Slots *SlotsParams `json:"slots,omitempty"`
}

// NewDiceParams builds dice wager params.
func NewDiceParams(prediction int) GameParams {
	return GameParams{Game: GameDice, Dice: &DiceParams{Prediction: prediction}}
}

// NewSlotsParams builds slots wager params.
func NewSlotsParams() GameParams {
	return GameParams{Game: GameSlots, Slots: &SlotsParams{}}
}

// Validate checks that exactly the variant named by Game is populated.
func (p GameParams) Validate() error {
	switch p.Game {
	case GameDice:
		if p.Dice == nil || p.Slots != nil {
			return fmt.Errorf("%w: %s", ErrParamsMismatch, p.Game)
		}
	case GameSlots:
		if p.Slots == nil || p.Dice != nil {
			return fmt.Errorf("%w: %s", ErrParamsMismatch, p.Game)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownGame, p.Game)
	}
	return nil
}

// DiceOutcome is the drawn pair of dice.
type DiceOutcome struct {
	D1    int `json:"d1"`
	D2    int `json:"d2"`
	Total int `json:"total"`
}

// SlotsOutcome is the three drawn reel symbols.
type SlotsOutcome struct {
	Symbols [3]string `json:"symbols"`
}

// Outcome is the resolved game result, a tagged union like GameParams.
type Outcome struct {
	Game  GameType      `json:"game"`
	Win   bool          `json:"win"`
	Dice  *DiceOutcome  `json:"dice,omitempty"`
	Slots *SlotsOutcome `json:"slots,omitempty"`
}

// TargetKind selects who may claim a promotion.
type TargetKind string

const (
	TargetAll     TargetKind = "ALL"
	TargetPlayers TargetKind = "PLAYERS"
)

// Targeting restricts which players may claim a promotion.
type Targeting struct {
	Kind      TargetKind `json:"kind"`
	PlayerIDs []int64    `json:"player_ids,omitempty"`
}

// Validate checks the targeting variant.
func (t Targeting) Validate() error {
	switch t.Kind {
	case TargetAll:
		if len(t.PlayerIDs) > 0 {
			return fmt.Errorf("%w: ALL carries no player ids", ErrInvalidTargeting)
		}
	case TargetPlayers:
		if len(t.PlayerIDs) == 0 {
			return fmt.Errorf("%w: PLAYERS needs at least one player id", ErrInvalidTargeting)
		}
	default:
		return fmt.Errorf("%w: kind %q", ErrInvalidTargeting, t.Kind)
	}
	return nil
}

// Allows reports whether playerID is targeted.
func (t Targeting) Allows(playerID int64) bool {
	if t.Kind != TargetPlayers {
		return true
	}
	for _, id := range t.PlayerIDs {
		if id == playerID {
			return true
		}
	}
	return false
}
