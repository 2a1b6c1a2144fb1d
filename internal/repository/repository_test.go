// Tests use testcontainers-go to spin up a PostgreSQL container.
package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credit-ledger/internal/model"
	"credit-ledger/internal/pkg/db/dbtest"
)

func createAccount(t *testing.T, pool *pgxpool.Pool, id int64, role model.Role, balance int64) *model.Account {
	t.Helper()
	ctx := context.Background()
	accounts := NewAccountRepository()

	a, err := accounts.Create(ctx, pool, id, role, 0)
	require.NoError(t, err)
	if balance != 0 {
		a, err = accounts.ApplyDelta(ctx, pool, id, balance)
		require.NoError(t, err)
	}
	return a
}

func createPromotion(t *testing.T, pool *pgxpool.Pool, clientID, value, budget int64) *model.Promotion {
	t.Helper()
	p, err := NewPromotionRepository().Create(context.Background(), pool, &model.Promotion{
		ID:                 uuid.New(),
		ClientID:           clientID,
		Value:              value,
		TotalBudget:        budget,
		MaxClaimsPerPlayer: 1,
		Targeting:          model.Targeting{Kind: model.TargetAll},
		EndTime:            time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	return p
}

// ============================================================================
// AccountRepository Tests
// ============================================================================

func TestAccountRepository_CreateAndGet(t *testing.T) {
	pool := dbtest.New(t)
	repo := NewAccountRepository()
	ctx := context.Background()

	a, err := repo.Create(ctx, pool, 42, model.RolePlayer, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(42), a.ID)
	assert.Equal(t, model.RolePlayer, a.Role)
	assert.Equal(t, 3, a.Level)
	assert.Equal(t, int64(0), a.Balance)
	assert.False(t, a.Closed())

	got, err := repo.GetByID(ctx, pool, 42)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	_, err = repo.Create(ctx, pool, 42, model.RolePlayer, 0)
	assert.ErrorIs(t, err, ErrAccountExists)

	_, err = repo.GetByID(ctx, pool, 999)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestAccountRepository_ApplyDelta(t *testing.T) {
	pool := dbtest.New(t)
	repo := NewAccountRepository()
	ctx := context.Background()
	createAccount(t, pool, 1, model.RolePlayer, 100)

	a, err := repo.ApplyDelta(ctx, pool, 1, -40)
	require.NoError(t, err)
	assert.Equal(t, int64(60), a.Balance)
	assert.Equal(t, int64(2), a.Version)

	_, err = repo.ApplyDelta(ctx, pool, 1, -61)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = repo.ApplyDelta(ctx, pool, 2, 10)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestAccountRepository_Close(t *testing.T) {
	pool := dbtest.New(t)
	repo := NewAccountRepository()
	ctx := context.Background()
	createAccount(t, pool, 1, model.RolePlayer, 0)

	closed, err := repo.Close(ctx, pool, 1)
	require.NoError(t, err)
	require.True(t, closed.Closed())

	again, err := repo.Close(ctx, pool, 1)
	require.NoError(t, err)
	assert.Equal(t, closed.ClosedAt.Unix(), again.ClosedAt.Unix())
}

func TestAccountRepository_LockAccountInTx(t *testing.T) {
	pool := dbtest.New(t)
	repo := NewAccountRepository()
	ctx := context.Background()
	createAccount(t, pool, 1, model.RolePlayer, 10)

	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	a, err := repo.LockAccount(ctx, tx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(10), a.Balance)

	_, err = repo.LockAccount(ctx, tx, 2)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

// ============================================================================
// LedgerRepository Tests
// ============================================================================

func TestLedgerRepository_AppendAndPage(t *testing.T) {
	pool := dbtest.New(t)
	repo := NewLedgerRepository()
	ctx := context.Background()
	createAccount(t, pool, 1, model.RolePlayer, 0)

	var ids []int64
	for i := 1; i <= 5; i++ {
		e := &StoredEntry{LedgerEntry: model.LedgerEntry{
			AccountID:        1,
			Delta:            int64(i),
			Reason:           model.ReasonAdminAdjust,
			ActorID:          9,
			ResultingBalance: int64(i),
		}}
		require.NoError(t, repo.Append(ctx, pool, e))
		ids = append(ids, e.ID)
	}

	first, err := repo.ListByAccount(ctx, pool, 1, 0, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, ids[0], first[0].ID)
	assert.Equal(t, ids[1], first[1].ID)

	rest, err := repo.ListByAccount(ctx, pool, 1, first[1].ID, 10)
	require.NoError(t, err)
	require.Len(t, rest, 3)
	assert.Equal(t, ids[4], rest[2].ID)
}

func TestLedgerRepository_Mismatches(t *testing.T) {
	pool := dbtest.New(t)
	repo := NewLedgerRepository()
	ctx := context.Background()

	// Balance changed without a ledger entry.
	createAccount(t, pool, 1, model.RolePlayer, 50)
	createAccount(t, pool, 2, model.RolePlayer, 0)

	mismatches, err := repo.Mismatches(ctx, pool)
	require.NoError(t, err)
	require.Len(t, mismatches, 1)
	assert.Equal(t, int64(1), mismatches[0].AccountID)
	assert.Equal(t, int64(50), mismatches[0].Drift())

	require.NoError(t, repo.Append(ctx, pool, &StoredEntry{LedgerEntry: model.LedgerEntry{
		AccountID: 1, Delta: 50, Reason: model.ReasonOpening, ResultingBalance: 50,
	}}))

	mismatches, err = repo.Mismatches(ctx, pool)
	require.NoError(t, err)
	assert.Empty(t, mismatches)
}

func TestLedgerRepository_Reseal(t *testing.T) {
	pool := dbtest.New(t)
	repo := NewLedgerRepository()
	ctx := context.Background()
	createAccount(t, pool, 1, model.RolePlayer, 0)

	e := &StoredEntry{
		LedgerEntry: model.LedgerEntry{AccountID: 1, Delta: 1, Reason: model.ReasonOpening, ResultingBalance: 1, KeyID: "old"},
		Sealed:      []byte("sealed-old"),
	}
	require.NoError(t, repo.Append(ctx, pool, e))

	batch, err := repo.ListSealedWith(ctx, pool, "old", 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)

	require.NoError(t, repo.Reseal(ctx, pool, e.ID, []byte("sealed-new"), "new"))

	batch, err = repo.ListSealedWith(ctx, pool, "old", 10)
	require.NoError(t, err)
	assert.Empty(t, batch)

	entries, err := repo.ListByAccount(ctx, pool, 1, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, "new", entries[0].KeyID)
	assert.Equal(t, []byte("sealed-new"), entries[0].Sealed)
}

// ============================================================================
// PromotionRepository Tests
// ============================================================================

func TestPromotionRepository_ConsumeBudget(t *testing.T) {
	pool := dbtest.New(t)
	repo := NewPromotionRepository()
	ctx := context.Background()
	createAccount(t, pool, 1, model.RoleClient, 0)
	p := createPromotion(t, pool, 1, 100, 250)

	got, err := repo.GetByID(ctx, pool, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TargetAll, got.Targeting.Kind)
	assert.Equal(t, model.PromotionActive, got.Status)

	p, err = repo.ConsumeBudget(ctx, pool, p.ID, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), p.UsedBudget)
	assert.Equal(t, model.PromotionActive, p.Status)

	_, err = repo.ConsumeBudget(ctx, pool, p.ID, 200)
	assert.ErrorIs(t, err, ErrBudgetExceeded)

	p, err = repo.ConsumeBudget(ctx, pool, p.ID, 150)
	require.NoError(t, err)
	assert.Equal(t, int64(250), p.UsedBudget)
	assert.Equal(t, model.PromotionDepleted, p.Status)
}

func TestPromotionRepository_ExpireAndEnd(t *testing.T) {
	pool := dbtest.New(t)
	repo := NewPromotionRepository()
	ctx := context.Background()
	createAccount(t, pool, 1, model.RoleClient, 0)
	due := createPromotion(t, pool, 1, 10, 100)
	other := createPromotion(t, pool, 1, 10, 100)

	n, err := repo.ExpireDue(ctx, pool, due.EndTime.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	ok, err := repo.EndActive(ctx, pool, other.ID, model.PromotionCancelled)
	require.NoError(t, err)
	assert.True(t, ok)

	n, err = repo.ExpireDue(ctx, pool, due.EndTime.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := repo.GetByID(ctx, pool, other.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PromotionCancelled, got.Status)

	ok, err = repo.EndActive(ctx, pool, due.ID, model.PromotionCancelled)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.GetByID(ctx, pool, uuid.New())
	assert.ErrorIs(t, err, ErrPromotionNotFound)
}

// ============================================================================
// ClaimRepository Tests
// ============================================================================

func TestClaimRepository_OneOpenClaim(t *testing.T) {
	pool := dbtest.New(t)
	repo := NewClaimRepository()
	ctx := context.Background()
	createAccount(t, pool, 1, model.RoleClient, 0)
	createAccount(t, pool, 2, model.RolePlayer, 0)
	p := createPromotion(t, pool, 1, 10, 100)

	first, err := repo.Create(ctx, pool, &model.PromotionClaim{ID: uuid.New(), PromotionID: p.ID, PlayerID: 2, ClaimedValue: 10})
	require.NoError(t, err)
	assert.Equal(t, model.ClaimPendingApproval, first.Status)

	_, err = repo.Create(ctx, pool, &model.PromotionClaim{ID: uuid.New(), PromotionID: p.ID, PlayerID: 2, ClaimedValue: 10})
	assert.ErrorIs(t, err, ErrDuplicateClaim)

	reason := "blurry screenshot"
	rejected, err := repo.Decide(ctx, pool, first.ID, model.ClaimRejected, 1, &reason)
	require.NoError(t, err)
	assert.Equal(t, model.ClaimRejected, rejected.Status)
	require.NotNil(t, rejected.DecidedAt)

	_, err = repo.Decide(ctx, pool, first.ID, model.ClaimApproved, 1, nil)
	assert.ErrorIs(t, err, ErrClaimNotPending)

	// A rejected claim can be superseded by a new one.
	second, err := repo.Create(ctx, pool, &model.PromotionClaim{
		ID: uuid.New(), PromotionID: p.ID, PlayerID: 2, ClaimedValue: 10, SupersedesID: &first.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, second.SupersedesID)
	assert.Equal(t, first.ID, *second.SupersedesID)

	n, err := repo.CountActive(ctx, pool, p.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	latest, err := repo.Latest(ctx, pool, p.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	pending, err := repo.ListPendingForClient(ctx, pool, 1, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)
}

// ============================================================================
// BonusRepository Tests
// ============================================================================

func TestBonusRepository_GrantAndAdvance(t *testing.T) {
	pool := dbtest.New(t)
	repo := NewBonusRepository()
	ctx := context.Background()
	createAccount(t, pool, 1, model.RoleClient, 0)
	createAccount(t, pool, 2, model.RolePlayer, 0)

	b, err := repo.Grant(ctx, pool, 2, 1, 100, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(500), b.WageringRequired)

	b, err = repo.Grant(ctx, pool, 2, 1, 50, 250)
	require.NoError(t, err)
	assert.Equal(t, int64(150), b.BonusAmount)
	assert.Equal(t, int64(750), b.WageringRequired)

	moved, err := repo.AdvanceWagering(ctx, pool, 2, 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(1), moved)

	balances, err := repo.ListByAccount(ctx, pool, 2)
	require.NoError(t, err)
	require.Len(t, balances, 1)
	assert.Equal(t, int64(750), balances[0].WageringCompleted)
	assert.Equal(t, int64(0), balances[0].Remaining())

	moved, err = repo.AdvanceWagering(ctx, pool, 2, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), moved)
}

// ============================================================================
// WagerRepository Tests
// ============================================================================

func TestWagerRepository_DailyRanking(t *testing.T) {
	pool := dbtest.New(t)
	repo := NewWagerRepository()
	ctx := context.Background()
	createAccount(t, pool, 1, model.RolePlayer, 1000)
	createAccount(t, pool, 2, model.RolePlayer, 1000)

	records := []*model.WagerRecord{
		{AccountID: 1, BetAmount: 100, WinAmount: 600},
		{AccountID: 2, BetAmount: 100, WinAmount: 0},
		{AccountID: 2, BetAmount: 50, WinAmount: 0},
	}
	balances := map[int64]int64{1: 1000, 2: 1000}
	for _, w := range records {
		w.ID = uuid.New()
		w.GameType = model.GameDice
		w.GameParams = model.NewDiceParams(7)
		w.Result = model.Outcome{Game: model.GameDice, Dice: &model.DiceOutcome{D1: 3, D2: 4, Total: 7}}
		w.BalanceBefore = balances[w.AccountID]
		w.BalanceAfter = w.BalanceBefore - w.BetAmount + w.WinAmount
		balances[w.AccountID] = w.BalanceAfter
		require.NoError(t, repo.Create(ctx, pool, w))
	}

	winners, err := repo.GetDailyWinners(ctx, pool, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, winners, 1)
	assert.Equal(t, int64(1), winners[0].AccountID)
	assert.Equal(t, int64(500), winners[0].NetProfit)

	losers, err := repo.GetDailyLosers(ctx, pool, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, losers, 1)
	assert.Equal(t, int64(-150), losers[0].NetProfit)
	assert.Equal(t, int64(2), losers[0].Wagers)

	net, err := repo.GetAccountDailyNet(ctx, pool, 2, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(-150), net)

	wagers, err := repo.ListByAccount(ctx, pool, 1, 10)
	require.NoError(t, err)
	require.Len(t, wagers, 1)
	require.NotNil(t, wagers[0].Result.Dice)
	assert.Equal(t, 7, wagers[0].Result.Dice.Total)
	require.NotNil(t, wagers[0].GameParams.Dice)
	assert.Equal(t, 7, wagers[0].GameParams.Dice.Prediction)
}

func TestWagerRepository_RejectsInconsistentSettlement(t *testing.T) {
	pool := dbtest.New(t)
	repo := NewWagerRepository()
	createAccount(t, pool, 1, model.RolePlayer, 1000)

	err := repo.Create(context.Background(), pool, &model.WagerRecord{
		ID:            uuid.New(),
		AccountID:     1,
		GameType:      model.GameSlots,
		BetAmount:     100,
		WinAmount:     0,
		BalanceBefore: 1000,
		BalanceAfter:  1000,
		GameParams:    model.NewSlotsParams(),
		Result:        model.Outcome{Game: model.GameSlots},
	})
	assert.Error(t, err)
}

// ============================================================================
// ReferralRepository Tests
// ============================================================================

func TestReferralRepository_PaysOnce(t *testing.T) {
	pool := dbtest.New(t)
	repo := NewReferralRepository()
	ctx := context.Background()
	createAccount(t, pool, 1, model.RolePlayer, 0)
	createAccount(t, pool, 2, model.RolePlayer, 0)
	createAccount(t, pool, 3, model.RolePlayer, 0)

	none, err := repo.GetByReferred(ctx, pool, 2)
	require.NoError(t, err)
	assert.Nil(t, none)

	require.NoError(t, repo.Create(ctx, pool, &model.Referral{ReferrerID: 1, ReferredID: 2, Amount: 100}))

	err = repo.Create(ctx, pool, &model.Referral{ReferrerID: 3, ReferredID: 2, Amount: 100})
	assert.ErrorIs(t, err, ErrReferralExists)

	ref, err := repo.GetByReferred(ctx, pool, 2)
	require.NoError(t, err)
	require.NotNil(t, ref)
	assert.Equal(t, int64(1), ref.ReferrerID)
	assert.Nil(t, ref.EntryID)
}
