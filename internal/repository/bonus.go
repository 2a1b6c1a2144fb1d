package repository

import (
	"context"
	"fmt"

	"credit-ledger/internal/model"
	"credit-ledger/internal/pkg/db"
)

// BonusRepository handles per-client bonus sub-balances.
type BonusRepository struct{}

// NewBonusRepository creates a new BonusRepository instance.
func NewBonusRepository() *BonusRepository {
	return &BonusRepository{}
}

// Grant adds bonus and wagering requirement to the player's sub-balance for
// a client, creating it on first use.
func (r *BonusRepository) Grant(ctx context.Context, q db.Querier, accountID, clientID, bonus, wagering int64) (*model.BonusBalance, error) {
	const query = `
		INSERT INTO bonus_balances (account_id, client_id, bonus_amount, wagering_required, wagering_completed, updated_at)
		VALUES ($1, $2, $3, $4, 0, NOW())
		ON CONFLICT (account_id, client_id) DO UPDATE
		SET bonus_amount = bonus_balances.bonus_amount + EXCLUDED.bonus_amount,
		    wagering_required = bonus_balances.wagering_required + EXCLUDED.wagering_required,
		    updated_at = NOW()
		RETURNING account_id, client_id, bonus_amount, wagering_required, wagering_completed, updated_at
	`

	var b model.BonusBalance
	err := q.QueryRow(ctx, query, accountID, clientID, bonus, wagering).Scan(
		&b.AccountID,
		&b.ClientID,
		&b.BonusAmount,
		&b.WageringRequired,
		&b.WageringCompleted,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to grant bonus: %w", err)
	}

	return &b, nil
}

// AdvanceWagering adds amount to wagering progress of every unfinished
// sub-balance of the account, capped at the requirement. It returns how many
// sub-balances moved.
func (r *BonusRepository) AdvanceWagering(ctx context.Context, q db.Querier, accountID, amount int64) (int64, error) {
	const query = `
		UPDATE bonus_balances
		SET wagering_completed = LEAST(wagering_required, wagering_completed + $2),
		    updated_at = NOW()
		WHERE account_id = $1 AND wagering_completed < wagering_required
	`

	result, err := q.Exec(ctx, query, accountID, amount)
	if err != nil {
		return 0, fmt.Errorf("failed to advance wagering: %w", err)
	}

	return result.RowsAffected(), nil
}

// ListByAccount returns the account's bonus sub-balances.
func (r *BonusRepository) ListByAccount(ctx context.Context, q db.Querier, accountID int64) ([]*model.BonusBalance, error) {
	const query = `
		SELECT account_id, client_id, bonus_amount, wagering_required, wagering_completed, updated_at
		FROM bonus_balances
		WHERE account_id = $1
		ORDER BY client_id
	`

	rows, err := q.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bonus balances: %w", err)
	}
	defer rows.Close()

	var balances []*model.BonusBalance
	for rows.Next() {
		var b model.BonusBalance
		err := rows.Scan(
			&b.AccountID,
			&b.ClientID,
			&b.BonusAmount,
			&b.WageringRequired,
			&b.WageringCompleted,
			&b.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bonus balance: %w", err)
		}
		balances = append(balances, &b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bonus balances: %w", err)
	}

	return balances, nil
}
