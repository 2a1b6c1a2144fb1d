package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"credit-ledger/internal/model"
	"credit-ledger/internal/pkg/db"
)

const accountColumns = `id, role, level, balance, version, closed_at, created_at, updated_at`

// AccountRepository handles account and balance persistence.
type AccountRepository struct{}

// NewAccountRepository creates a new AccountRepository instance.
func NewAccountRepository() *AccountRepository {
	return &AccountRepository{}
}

func scanAccount(row pgx.Row) (*model.Account, error) {
	var a model.Account
	err := row.Scan(
		&a.ID,
		&a.Role,
		&a.Level,
		&a.Balance,
		&a.Version,
		&a.ClosedAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Create creates an account with a zero balance. Opening credit is applied
// separately so it produces a ledger entry.
func (r *AccountRepository) Create(ctx context.Context, q db.Querier, id int64, role model.Role, level int) (*model.Account, error) {
	const query = `
		INSERT INTO accounts (id, role, level, balance, version, created_at, updated_at)
		VALUES ($1, $2, $3, 0, 0, NOW(), NOW())
		RETURNING ` + accountColumns

	account, err := scanAccount(q.QueryRow(ctx, query, id, role, level))
	if err != nil {
		if mapped := mapConstraint(err); mapped != nil {
			return nil, mapped
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return account, nil
}

// GetByID retrieves an account without locking it.
// Returns ErrAccountNotFound if the account does not exist.
func (r *AccountRepository) GetByID(ctx context.Context, q db.Querier, id int64) (*model.Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	account, err := scanAccount(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return account, nil
}

// LockAccount reads an account under an exclusive row lock held until the
// enclosing transaction ends. q must be a transaction.
func (r *AccountRepository) LockAccount(ctx context.Context, q db.Querier, id int64) (*model.Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`

	account, err := scanAccount(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}

	return account, nil
}

// ApplyDelta adds delta to the balance and bumps the version.
// A result below zero is refused by the schema and reported as
// ErrInsufficientFunds.
func (r *AccountRepository) ApplyDelta(ctx context.Context, q db.Querier, id int64, delta int64) (*model.Account, error) {
	const query = `
		UPDATE accounts
		SET balance = balance + $2, version = version + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + accountColumns

	account, err := scanAccount(q.QueryRow(ctx, query, id, delta))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		if mapped := mapConstraint(err); mapped != nil {
			return nil, mapped
		}
		return nil, fmt.Errorf("failed to apply balance delta: %w", err)
	}

	return account, nil
}

// Close marks the account closed. Closing twice is a no-op.
func (r *AccountRepository) Close(ctx context.Context, q db.Querier, id int64) (*model.Account, error) {
	const query = `
		UPDATE accounts
		SET closed_at = COALESCE(closed_at, NOW()), updated_at = NOW()
		WHERE id = $1
		RETURNING ` + accountColumns

	account, err := scanAccount(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to close account: %w", err)
	}

	return account, nil
}

// SetLevel updates the account level used by promotion eligibility.
func (r *AccountRepository) SetLevel(ctx context.Context, q db.Querier, id int64, level int) error {
	const query = `UPDATE accounts SET level = $2, updated_at = NOW() WHERE id = $1`

	result, err := q.Exec(ctx, query, id, level)
	if err != nil {
		return fmt.Errorf("failed to set account level: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrAccountNotFound
	}

	return nil
}
