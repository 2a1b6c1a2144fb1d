package repository

import (
	"context"
	"fmt"
	"time"

	"credit-ledger/internal/model"
	"credit-ledger/internal/pkg/db"
)

// WagerRepository handles wager records and the daily ranking built on them.
type WagerRepository struct{}

// NewWagerRepository creates a new WagerRepository instance.
func NewWagerRepository() *WagerRepository {
	return &WagerRepository{}
}

// Create records a settled wager. The schema enforces
// balance_after = balance_before - bet_amount + win_amount.
func (r *WagerRepository) Create(ctx context.Context, q db.Querier, w *model.WagerRecord) error {
	const query = `
		INSERT INTO wager_records (id, account_id, game_type, bet_amount, win_amount, result,
			balance_before, balance_after, game_params, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING created_at
	`

	err := q.QueryRow(ctx, query,
		w.ID,
		w.AccountID,
		w.GameType,
		w.BetAmount,
		w.WinAmount,
		w.Result,
		w.BalanceBefore,
		w.BalanceAfter,
		w.GameParams,
	).Scan(&w.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create wager record: %w", err)
	}

	return nil
}

// ListByAccount returns the account's most recent wagers, newest first.
func (r *WagerRepository) ListByAccount(ctx context.Context, q db.Querier, accountID int64, limit int) ([]*model.WagerRecord, error) {
	const query = `
		SELECT id, account_id, game_type, bet_amount, win_amount, result,
		       balance_before, balance_after, game_params, created_at
		FROM wager_records
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := q.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get wagers: %w", err)
	}
	defer rows.Close()

	var wagers []*model.WagerRecord
	for rows.Next() {
		var w model.WagerRecord
		err := rows.Scan(
			&w.ID,
			&w.AccountID,
			&w.GameType,
			&w.BetAmount,
			&w.WinAmount,
			&w.Result,
			&w.BalanceBefore,
			&w.BalanceAfter,
			&w.GameParams,
			&w.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wager: %w", err)
		}
		wagers = append(wagers, &w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wagers: %w", err)
	}

	return wagers, nil
}

// dayBounds returns the start of date's day and the start of the next one.
func dayBounds(date time.Time) (time.Time, time.Time) {
	startOfDay := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	return startOfDay, startOfDay.AddDate(0, 0, 1)
}

// GetDailyWinners retrieves accounts with a positive net wager result on
// date, best first.
func (r *WagerRepository) GetDailyWinners(ctx context.Context, q db.Querier, date time.Time, limit int) ([]*model.DailyRank, error) {
	const query = `
		SELECT account_id, SUM(win_amount - bet_amount) AS net_profit, COUNT(*) AS wagers
		FROM wager_records
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY account_id
		HAVING SUM(win_amount - bet_amount) > 0
		ORDER BY net_profit DESC, account_id
		LIMIT $3
	`
	return r.dailyRanks(ctx, q, query, date, limit)
}

// GetDailyLosers retrieves accounts with a negative net wager result on
// date, largest loss first.
func (r *WagerRepository) GetDailyLosers(ctx context.Context, q db.Querier, date time.Time, limit int) ([]*model.DailyRank, error) {
	const query = `
		SELECT account_id, SUM(win_amount - bet_amount) AS net_profit, COUNT(*) AS wagers
		FROM wager_records
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY account_id
		HAVING SUM(win_amount - bet_amount) < 0
		ORDER BY net_profit ASC, account_id
		LIMIT $3
	`
	return r.dailyRanks(ctx, q, query, date, limit)
}

func (r *WagerRepository) dailyRanks(ctx context.Context, q db.Querier, query string, date time.Time, limit int) ([]*model.DailyRank, error) {
	start, end := dayBounds(date)

	rows, err := q.Query(ctx, query, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily ranking: %w", err)
	}
	defer rows.Close()

	var ranks []*model.DailyRank
	for rows.Next() {
		var rank model.DailyRank
		if err := rows.Scan(&rank.AccountID, &rank.NetProfit, &rank.Wagers); err != nil {
			return nil, fmt.Errorf("failed to scan daily rank: %w", err)
		}
		ranks = append(ranks, &rank)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily ranking: %w", err)
	}

	return ranks, nil
}

// GetAccountDailyNet retrieves one account's net wager result for a date.
func (r *WagerRepository) GetAccountDailyNet(ctx context.Context, q db.Querier, accountID int64, date time.Time) (int64, error) {
	start, end := dayBounds(date)

	const query = `
		SELECT COALESCE(SUM(win_amount - bet_amount), 0)
		FROM wager_records
		WHERE account_id = $1 AND created_at >= $2 AND created_at < $3
	`

	var net int64
	if err := q.QueryRow(ctx, query, accountID, start, end).Scan(&net); err != nil {
		return 0, fmt.Errorf("failed to get daily net: %w", err)
	}

	return net, nil
}
