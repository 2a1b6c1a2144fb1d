package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestGameParams_Validate(t *testing.T) {
	tests := []struct {
		name    string
		params  GameParams
		wantErr error
	}{
		{"dice ok", NewDiceParams(7), nil},
		{"slots ok", NewSlotsParams(), nil},
		{"dice without variant", GameParams{Game: GameDice}, ErrParamsMismatch},
		{"slots carrying dice", GameParams{Game: GameSlots, Slots: &SlotsParams{}, Dice: &DiceParams{}}, ErrParamsMismatch},
		{"unknown game", GameParams{Game: "roulette"}, ErrUnknownGame},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestTargeting_Validate(t *testing.T) {
	assert.NoError(t, Targeting{Kind: TargetAll}.Validate())
	assert.NoError(t, Targeting{Kind: TargetPlayers, PlayerIDs: []int64{1}}.Validate())
	assert.ErrorIs(t, Targeting{Kind: TargetPlayers}.Validate(), ErrInvalidTargeting)
	assert.ErrorIs(t, Targeting{Kind: TargetAll, PlayerIDs: []int64{1}}.Validate(), ErrInvalidTargeting)
	assert.ErrorIs(t, Targeting{}.Validate(), ErrInvalidTargeting)
}

// TestTargetingAllowsProperty checks that a PLAYERS target admits exactly the
// listed ids and ALL admits everyone.
func TestTargetingAllowsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ids := rapid.SliceOfNDistinct(rapid.Int64Range(1, 1000), 1, 20, rapid.ID[int64]).Draw(t, "ids")
		candidate := rapid.Int64Range(1, 1000).Draw(t, "candidate")

		listed := false
		for _, id := range ids {
			if id == candidate {
				listed = true
			}
		}

		target := Targeting{Kind: TargetPlayers, PlayerIDs: ids}
		if target.Allows(candidate) != listed {
			t.Fatalf("Allows(%d) = %v, listed = %v", candidate, !listed, listed)
		}
		if !(Targeting{Kind: TargetAll}).Allows(candidate) {
			t.Fatalf("ALL must allow %d", candidate)
		}
	})
}

func TestBonusBalance_Remaining(t *testing.T) {
	b := BonusBalance{WageringRequired: 500, WageringCompleted: 200}
	assert.Equal(t, int64(300), b.Remaining())

	b.WageringCompleted = 600
	assert.Equal(t, int64(0), b.Remaining())
}

func TestClaimStatus_Terminal(t *testing.T) {
	assert.False(t, ClaimPendingApproval.Terminal())
	assert.True(t, ClaimApproved.Terminal())
	assert.True(t, ClaimRejected.Terminal())
}
