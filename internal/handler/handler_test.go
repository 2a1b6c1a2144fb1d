package handler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credit-ledger/internal/config"
	"credit-ledger/internal/model"
	"credit-ledger/internal/service"
)

type stubAccounts map[int64]*model.Account

func (s stubAccounts) Get(_ context.Context, id int64) (*model.Account, error) {
	if a, ok := s[id]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("%w: account %d", service.ErrNotFound, id)
}

func TestIdentity_Principal(t *testing.T) {
	accounts := stubAccounts{
		10: {ID: 10, Role: model.RoleClient},
		11: {ID: 11, Role: model.RolePlayer},
	}
	cfg := &config.Config{Admin: config.AdminConfig{IDs: []int64{1, 11}}}
	id := NewIdentity(accounts, cfg)
	ctx := context.Background()

	p, err := id.Principal(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, service.Principal{ID: 10, Role: model.RoleClient}, p)

	p, err = id.Principal(ctx, 1)
	require.NoError(t, err, "listed admins need no account")
	assert.True(t, p.IsAdmin())

	p, err = id.Principal(ctx, 11)
	require.NoError(t, err)
	assert.True(t, p.IsAdmin(), "the admin list overrides the stored role")

	_, err = id.Principal(ctx, 99)
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestParseWagerArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    wagerArgs
		wantErr string
	}{
		{
			name: "dice",
			args: []string{"dice", "100", "7"},
			want: wagerArgs{game: model.GameDice, bet: 100, params: model.NewDiceParams(7)},
		},
		{
			name: "slots upper case",
			args: []string{"SLOTS", "50"},
			want: wagerArgs{game: model.GameSlots, bet: 50, params: model.NewSlotsParams()},
		},
		{name: "missing bet", args: []string{"dice"}, wantErr: "Usage"},
		{name: "bad bet", args: []string{"dice", "lots", "7"}, wantErr: "Invalid bet"},
		{name: "dice without prediction", args: []string{"dice", "10"}, wantErr: "prediction"},
		{name: "slots extra arg", args: []string{"slots", "10", "7"}, wantErr: "Usage"},
		{name: "unknown game", args: []string{"roulette", "10"}, wantErr: "Unknown game"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseWagerArgs(tt.args)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePromotionArgs(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	in, err := parsePromotionArgs([]string{"100", "1000", "24", "proof", "max=2", "level=3", "wagering=4", "players=5,6"}, now)
	require.NoError(t, err)
	assert.Equal(t, int64(100), in.Value)
	assert.Equal(t, int64(1000), in.TotalBudget)
	assert.Equal(t, now.Add(24*time.Hour), in.EndTime)
	assert.True(t, in.RequiresProof)
	assert.Equal(t, 2, in.MaxClaimsPerPlayer)
	assert.Equal(t, 3, in.MinLevel)
	require.NotNil(t, in.WageringMultiplier)
	assert.Equal(t, int64(4), *in.WageringMultiplier)
	assert.Equal(t, model.Targeting{Kind: model.TargetPlayers, PlayerIDs: []int64{5, 6}}, in.Targeting)

	in, err = parsePromotionArgs([]string{"10", "100", "1"}, now)
	require.NoError(t, err)
	assert.Equal(t, 1, in.MaxClaimsPerPlayer)
	assert.Nil(t, in.WageringMultiplier)
	assert.Empty(t, in.Targeting.Kind)

	_, err = parsePromotionArgs([]string{"10", "100"}, now)
	assert.ErrorContains(t, err, "Usage")

	_, err = parsePromotionArgs([]string{"10", "100", "1", "vip"}, now)
	assert.ErrorContains(t, err, "Unknown option")

	_, err = parsePromotionArgs([]string{"10", "100", "1", "players=5,x"}, now)
	assert.ErrorContains(t, err, "Invalid player")
}

func TestParseHistoryArgs(t *testing.T) {
	player := service.Principal{ID: 7, Role: model.RolePlayer}
	admin := service.Principal{ID: 1, Role: model.RoleAdmin}

	id, cursor, err := parseHistoryArgs(player, nil)
	require.NoError(t, err)
	assert.Equal(t, [2]int64{7, 0}, [2]int64{id, cursor})

	id, cursor, err = parseHistoryArgs(player, []string{"42"})
	require.NoError(t, err)
	assert.Equal(t, [2]int64{7, 42}, [2]int64{id, cursor})

	_, _, err = parseHistoryArgs(player, []string{"9", "0"})
	assert.Error(t, err, "players may only read their own history")

	id, cursor, err = parseHistoryArgs(admin, []string{"9", "5"})
	require.NoError(t, err)
	assert.Equal(t, [2]int64{9, 5}, [2]int64{id, cursor})
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("%w: bet must be at least 1", service.ErrValidation), "❌ bet must be at least 1"},
		{service.ErrInsufficientFunds, "❌ Insufficient balance"},
		{service.ErrBusy, "⏳ The account is busy, please try again"},
		{fmt.Errorf("%w: claim x", service.ErrNotFound), "❌ Not found"},
		{ErrNotRegistered, "❌ You have no account yet. Send /start first."},
		{errors.New("connection reset"), "❌ Something went wrong, please try again later"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, errorMessage(tt.err), tt.err.Error())
	}
}

func TestFormatHistory(t *testing.T) {
	page := &service.HistoryPage{
		Entries: []*model.LedgerEntry{
			{ID: 3, Reason: model.ReasonOpening, Delta: 1000, ResultingBalance: 1000},
			{ID: 8, Reason: model.ReasonWager, Delta: -100, ResultingBalance: 900},
		},
		NextCursor: 8,
	}

	out := formatHistory(7, page)
	assert.Contains(t, out, "#3 OPENING +1000 → 1000")
	assert.Contains(t, out, "#8 WAGER -100 → 900")
	assert.Contains(t, out, "/history 8")

	assert.Equal(t, "📜 No ledger entries", formatHistory(7, &service.HistoryPage{}))
}

func TestFormatDailyTop(t *testing.T) {
	out := formatDailyTop(
		[]*model.DailyRank{{AccountID: 1, NetProfit: 500, Wagers: 2}},
		nil,
	)
	assert.Contains(t, out, "🥇 1: +500 (2 wagers)")
	assert.Contains(t, out, "No data yet")
}

func TestAuditNotice(t *testing.T) {
	assert.Empty(t, auditNotice(nil))
	assert.Contains(t, auditNotice(service.ErrAuditWrite), "delayed")
}
