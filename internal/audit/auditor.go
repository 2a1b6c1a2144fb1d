// Package audit is the transaction auditor: the append-only ledger every
// balance mutation is recorded in.
//
// Entries are appended inside the locked transaction under a savepoint. A
// failed append rolls back only the savepoint, so settlement still commits;
// the entry is retried after commit under the account's row lock and, if
// that also fails, escalated through the log as an audit write failure.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"credit-ledger/internal/model"
	"credit-ledger/internal/pkg/db"
	"credit-ledger/internal/pkg/lock"
	"credit-ledger/internal/pkg/sealer"
	"credit-ledger/internal/repository"
)

// ErrWriteFailed is returned when a ledger entry could not be written even
// after the post-commit retry. The financial operation itself committed.
var ErrWriteFailed = errors.New("audit write failed")

// EntryStore persists ledger entries.
type EntryStore interface {
	Append(ctx context.Context, q db.Querier, e *repository.StoredEntry) error
	ListByAccount(ctx context.Context, q db.Querier, accountID, afterID int64, limit int) ([]*repository.StoredEntry, error)
	Mismatches(ctx context.Context, q db.Querier) ([]repository.Mismatch, error)
	ListSealedWith(ctx context.Context, q db.Querier, keyID string, limit int) ([]*repository.StoredEntry, error)
	Reseal(ctx context.Context, q db.Querier, id int64, sealed []byte, keyID string) error
}

// Locker runs fn in a transaction holding one account's row lock.
type Locker interface {
	WithAccountLock(ctx context.Context, accountID int64, fn lock.TxFunc) error
}

// Options tunes the post-commit retry.
type Options struct {
	RetryAttempts uint64
	RetryInterval time.Duration
}

// Auditor writes, reads and maintains the ledger.
type Auditor struct {
	pool   db.Conn
	store  EntryStore
	sealer *sealer.Sealer
	opts   Options
}

// New creates an Auditor.
func New(pool db.Conn, store EntryStore, s *sealer.Sealer, opts Options) *Auditor {
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 50 * time.Millisecond
	}
	return &Auditor{pool: pool, store: store, sealer: s, opts: opts}
}

// Begin starts collecting the entries of one locked transaction.
// A Batch must not be reused across transaction attempts.
func (a *Auditor) Begin() *Batch {
	return &Batch{auditor: a}
}

// seal encodes and seals an entry's context.
func (a *Auditor) seal(e *model.LedgerEntry) (*repository.StoredEntry, error) {
	stored := &repository.StoredEntry{LedgerEntry: *e}
	if len(e.Context) == 0 {
		stored.KeyID = ""
		return stored, nil
	}

	plain, err := json.Marshal(e.Context)
	if err != nil {
		return nil, fmt.Errorf("failed to encode entry context: %w", err)
	}

	sealed, keyID, err := a.sealer.Seal(plain)
	if err != nil {
		return nil, fmt.Errorf("failed to seal entry context: %w", err)
	}

	stored.Sealed = sealed
	stored.KeyID = keyID
	return stored, nil
}

// open reverses seal.
func (a *Auditor) open(stored *repository.StoredEntry) (*model.LedgerEntry, error) {
	e := stored.LedgerEntry
	if stored.Sealed == nil {
		return &e, nil
	}

	plain, err := a.sealer.Open(stored.KeyID, stored.Sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to open entry %d: %w", stored.ID, err)
	}

	if err := json.Unmarshal(plain, &e.Context); err != nil {
		return nil, fmt.Errorf("failed to decode entry %d context: %w", stored.ID, err)
	}

	return &e, nil
}

// write seals and appends e on q, filling in its id, key id and timestamp.
func (a *Auditor) write(ctx context.Context, q db.Querier, e *model.LedgerEntry) error {
	stored, err := a.seal(e)
	if err != nil {
		return err
	}
	if err := a.store.Append(ctx, q, stored); err != nil {
		return err
	}
	e.ID = stored.ID
	e.KeyID = stored.KeyID
	e.CreatedAt = stored.CreatedAt
	return nil
}

// Batch tracks the entries appended within one transaction.
type Batch struct {
	auditor  *Auditor
	deferred []*model.LedgerEntry
	causes   []error
}

// Append writes e inside tx under a savepoint. On failure the savepoint is
// rolled back, the surrounding transaction stays usable and e is kept for
// Flush. Append never fails the enclosing transaction.
func (b *Batch) Append(ctx context.Context, tx pgx.Tx, e *model.LedgerEntry) {
	err := b.appendInSavepoint(ctx, tx, e)
	if err == nil {
		return
	}

	log.Warn().
		Err(err).
		Int64("account_id", e.AccountID).
		Int64("delta", e.Delta).
		Str("reason", string(e.Reason)).
		Msg("Ledger append failed in transaction, deferring to post-commit retry")

	e.ID = 0
	b.deferred = append(b.deferred, e)
	b.causes = append(b.causes, err)
}

func (b *Batch) appendInSavepoint(ctx context.Context, tx pgx.Tx, e *model.LedgerEntry) error {
	sp, err := tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to open savepoint: %w", err)
	}

	if err := b.auditor.write(ctx, sp, e); err != nil {
		if rbErr := sp.Rollback(ctx); rbErr != nil {
			log.Error().Err(rbErr).Msg("Failed to roll back ledger savepoint")
		}
		return err
	}

	if err := sp.Commit(ctx); err != nil {
		return fmt.Errorf("failed to release savepoint: %w", err)
	}
	return nil
}

// Deferred reports how many entries are waiting for Flush.
func (b *Batch) Deferred() int {
	return len(b.deferred)
}

// Flush retries deferred entries. It must only be called after the
// transaction committed. With a locker each entry is written while its
// account is locked, so no lower entry id of that account can still be
// uncommitted when it becomes visible to history readers. A nil locker
// writes straight to the pool. Entries that still cannot be written are
// logged with event=audit_write_failure and reported as ErrWriteFailed; the
// caller must not treat that as a failure of the financial operation.
func (b *Batch) Flush(ctx context.Context, locker Locker) error {
	if len(b.deferred) == 0 {
		return nil
	}

	a := b.auditor
	detached := context.WithoutCancel(ctx)

	var failed int
	for i, e := range b.deferred {
		policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(a.opts.RetryInterval), a.opts.RetryAttempts)
		err := backoff.Retry(func() error {
			e.ID = 0
			if locker == nil {
				return a.write(detached, a.pool, e)
			}
			return locker.WithAccountLock(detached, e.AccountID, func(ctx context.Context, tx pgx.Tx, _ lock.Held) error {
				return a.write(ctx, tx, e)
			})
		}, policy)
		if err == nil {
			log.Info().
				Int64("account_id", e.AccountID).
				Int64("entry_id", e.ID).
				Msg("Deferred ledger entry written after commit")
			continue
		}

		failed++
		log.Error().
			Err(err).
			AnErr("first_cause", b.causes[i]).
			Str("event", "audit_write_failure").
			Int64("account_id", e.AccountID).
			Int64("actor_id", e.ActorID).
			Int64("delta", e.Delta).
			Int64("resulting_balance", e.ResultingBalance).
			Str("reason", string(e.Reason)).
			Msg("Ledger entry lost after commit")
	}

	b.deferred = nil
	b.causes = nil

	if failed > 0 {
		return fmt.Errorf("%w: %d entries", ErrWriteFailed, failed)
	}
	return nil
}

// History returns up to limit entries of an account with id greater than
// cursor, in insertion order, and the cursor to resume from. The next cursor
// is 0 when the page is not full.
func (a *Auditor) History(ctx context.Context, accountID, cursor int64, limit int) ([]*model.LedgerEntry, int64, error) {
	stored, err := a.store.ListByAccount(ctx, a.pool, accountID, cursor, limit)
	if err != nil {
		return nil, 0, err
	}

	entries := make([]*model.LedgerEntry, 0, len(stored))
	for _, s := range stored {
		e, err := a.open(s)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}

	var next int64
	if len(entries) == limit && limit > 0 {
		next = entries[len(entries)-1].ID
	}

	return entries, next, nil
}

// Reconcile compares every account's balance with the sum of its entries and
// logs each disagreement.
func (a *Auditor) Reconcile(ctx context.Context) ([]repository.Mismatch, error) {
	mismatches, err := a.store.Mismatches(ctx, a.pool)
	if err != nil {
		return nil, err
	}

	for _, m := range mismatches {
		log.Error().
			Str("event", "ledger_mismatch").
			Int64("account_id", m.AccountID).
			Int64("balance", m.Balance).
			Int64("ledger_sum", m.LedgerSum).
			Int64("drift", m.Drift()).
			Msg("Account balance disagrees with ledger")
	}

	return mismatches, nil
}

// ReencryptBatch re-seals up to batchSize entries sealed under fromKeyID with
// the active key and returns how many were rewritten. Concurrent batches skip
// each other's rows. Use fromKeyID "" to seal entries written before any key
// was configured.
func (a *Auditor) ReencryptBatch(ctx context.Context, fromKeyID string, batchSize int) (n int, err error) {
	active := a.sealer.ActiveKeyID()
	if active == "" || fromKeyID == active || batchSize <= 0 {
		return 0, nil
	}

	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	entries, err := a.store.ListSealedWith(ctx, tx, fromKeyID, batchSize)
	if err != nil {
		return 0, err
	}

	for _, e := range entries {
		sealed, keyID, rsErr := a.sealer.Reseal(e.KeyID, e.Sealed)
		if rsErr != nil {
			err = fmt.Errorf("failed to reseal entry %d: %w", e.ID, rsErr)
			return 0, err
		}
		if err = a.store.Reseal(ctx, tx, e.ID, sealed, keyID); err != nil {
			return 0, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit re-encryption: %w", err)
	}

	if len(entries) > 0 {
		log.Info().
			Str("from_key_id", fromKeyID).
			Str("to_key_id", active).
			Int("entries", len(entries)).
			Msg("Re-encrypted ledger entries")
	}

	return len(entries), nil
}
