package repository

import (
	"context"
	"fmt"

	"credit-ledger/internal/model"
	"credit-ledger/internal/pkg/db"
)

// StoredEntry is a ledger entry as persisted: its context is still sealed.
type StoredEntry struct {
	model.LedgerEntry
	Sealed []byte
}

// Mismatch is an account whose balance disagrees with its ledger.
type Mismatch struct {
	AccountID int64
	Balance   int64
	LedgerSum int64
}

// Drift returns balance minus the ledger sum.
func (m Mismatch) Drift() int64 {
	return m.Balance - m.LedgerSum
}

// LedgerRepository handles the append-only ledger.
type LedgerRepository struct{}

// NewLedgerRepository creates a new LedgerRepository instance.
func NewLedgerRepository() *LedgerRepository {
	return &LedgerRepository{}
}

// Append inserts an entry and fills in its id and timestamp. Entries are
// never updated except for re-sealing their context.
func (r *LedgerRepository) Append(ctx context.Context, q db.Querier, e *StoredEntry) error {
	const query = `
		INSERT INTO ledger_entries (account_id, delta, reason, actor_id, resulting_balance, context, key_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id, created_at
	`

	err := q.QueryRow(ctx, query,
		e.AccountID,
		e.Delta,
		e.Reason,
		e.ActorID,
		e.ResultingBalance,
		e.Sealed,
		e.KeyID,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}

	return nil
}

// ListByAccount returns up to limit entries of an account with id greater
// than afterID, in insertion order.
func (r *LedgerRepository) ListByAccount(ctx context.Context, q db.Querier, accountID, afterID int64, limit int) ([]*StoredEntry, error) {
	const query = `
		SELECT id, account_id, delta, reason, actor_id, resulting_balance, context, key_id, created_at
		FROM ledger_entries
		WHERE account_id = $1 AND id > $2
		ORDER BY id ASC
		LIMIT $3
	`

	rows, err := q.Query(ctx, query, accountID, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*StoredEntry
	for rows.Next() {
		var e StoredEntry
		err := rows.Scan(
			&e.ID,
			&e.AccountID,
			&e.Delta,
			&e.Reason,
			&e.ActorID,
			&e.ResultingBalance,
			&e.Sealed,
			&e.KeyID,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}

	return entries, nil
}

// Mismatches returns every account whose balance differs from the sum of its
// ledger entries.
func (r *LedgerRepository) Mismatches(ctx context.Context, q db.Querier) ([]Mismatch, error) {
	const query = `
		SELECT a.id, a.balance, COALESCE(SUM(e.delta), 0) AS ledger_sum
		FROM accounts a
		LEFT JOIN ledger_entries e ON e.account_id = a.id
		GROUP BY a.id, a.balance
		HAVING a.balance <> COALESCE(SUM(e.delta), 0)
		ORDER BY a.id
	`

	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile ledger: %w", err)
	}
	defer rows.Close()

	var out []Mismatch
	for rows.Next() {
		var m Mismatch
		if err := rows.Scan(&m.AccountID, &m.Balance, &m.LedgerSum); err != nil {
			return nil, fmt.Errorf("failed to scan mismatch: %w", err)
		}
		out = append(out, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating mismatches: %w", err)
	}

	return out, nil
}

// ListSealedWith returns up to limit entries sealed under keyID, oldest first,
// locking them so concurrent re-encryption batches skip each other.
func (r *LedgerRepository) ListSealedWith(ctx context.Context, q db.Querier, keyID string, limit int) ([]*StoredEntry, error) {
	const query = `
		SELECT id, context, key_id
		FROM ledger_entries
		WHERE key_id = $1 AND context IS NOT NULL
		ORDER BY id
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`

	rows, err := q.Query(ctx, query, keyID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sealed entries: %w", err)
	}
	defer rows.Close()

	var entries []*StoredEntry
	for rows.Next() {
		var e StoredEntry
		if err := rows.Scan(&e.ID, &e.Sealed, &e.KeyID); err != nil {
			return nil, fmt.Errorf("failed to scan sealed entry: %w", err)
		}
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sealed entries: %w", err)
	}

	return entries, nil
}

// Reseal replaces an entry's sealed context and key id.
func (r *LedgerRepository) Reseal(ctx context.Context, q db.Querier, id int64, sealed []byte, keyID string) error {
	const query = `UPDATE ledger_entries SET context = $2, key_id = $3 WHERE id = $1`

	if _, err := q.Exec(ctx, query, id, sealed, keyID); err != nil {
		return fmt.Errorf("failed to reseal ledger entry: %w", err)
	}

	return nil
}
